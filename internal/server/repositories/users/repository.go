package users

import (
	"context"

	"github.com/dmitrijs2005/reembolsai/internal/server/models"
)

// Repository stores accounts. Lookups that find nothing return
// common.ErrorNotFound; Create returns common.ErrorAlreadyExists when the
// e-mail (compared case-insensitively) is taken.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByVerificationToken(ctx context.Context, token string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*models.User, error)
}
