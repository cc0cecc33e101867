// Package users persists user accounts. Lookups that find nothing return
// common.ErrorNotFound; a duplicate email on create returns
// common.ErrorConflict.
package users

import (
	"context"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

type Repository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, user models.NewUser) (*models.User, error)
	UpdatePassword(ctx context.Context, email, passwordHash string) error
	// UpdateRefreshTokenHash overwrites the stored refresh token digest. An
	// empty hash clears it.
	UpdateRefreshTokenHash(ctx context.Context, id, hash string) error
}
