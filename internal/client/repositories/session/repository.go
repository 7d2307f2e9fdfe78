// Package session persists the CLI login in the local SQLite database.
// The session table holds at most one row.
package session

import (
	"context"

	"github.com/dmitrijs2005/foliokeeper/internal/client/models"
)

type Repository interface {
	// Get returns the stored session, or nil when logged out.
	Get(ctx context.Context) (*models.Session, error)
	// Save replaces the stored session.
	Save(ctx context.Context, s *models.Session) error
	// UpdateTokens swaps the token pair of the stored session.
	UpdateTokens(ctx context.Context, accessToken, refreshToken string) error
	Clear(ctx context.Context) error
}
