// Package actionlogs stores the append-only audit trail.
package actionlogs

import (
	"context"

	"github.com/dmitrijs2005/reembolsai/internal/server/models"
)

type Repository interface {
	Append(ctx context.Context, entry *models.ActionLog) error
	// ListByUser returns the user's entries, oldest first.
	ListByUser(ctx context.Context, userID string) ([]*models.ActionLog, error)
}
