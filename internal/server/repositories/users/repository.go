package users

import (
	"context"

	"github.com/dmitrijs2005/foliokeeper/internal/server/models"
)

// Repository persists users. Lookups return common.ErrorNotFound when no
// row matches; Create returns common.ErrorConflict on a duplicate email.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	UpdatePassword(ctx context.Context, id string, hashedPassword string) error
}
