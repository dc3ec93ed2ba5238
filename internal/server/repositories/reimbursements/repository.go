package reimbursements

import (
	"context"

	"github.com/dmitrijs2005/reembolsai/internal/server/models"
)

// Repository stores reimbursement requests. Ids are global, so callers must
// check ownership of anything returned by GetByID.
type Repository interface {
	Create(ctx context.Context, r *models.Reimbursement) (*models.Reimbursement, error)
	GetByID(ctx context.Context, id string) (*models.Reimbursement, error)
	// ListByUser returns the user's records, newest first.
	ListByUser(ctx context.Context, userID string) ([]*models.Reimbursement, error)
	Update(ctx context.Context, r *models.Reimbursement) error
}
