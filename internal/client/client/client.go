package client

import (
	"context"

	"github.com/dmitrijs2005/foliokeeper/internal/client/models"
)

type Client interface {
	Register(ctx context.Context, email, password, fullName string) (*models.TokenPair, error)
	Login(ctx context.Context, email, password string) (*models.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error)
	RequestReset(ctx context.Context, email string) (*models.ResetResponse, error)
	ConfirmReset(ctx context.Context, token, newPassword string) (string, error)
	Me(ctx context.Context) (*models.User, error)
	Status(ctx context.Context) (*models.AuthStatus, error)
	Ping(ctx context.Context) error
}

// TokenStore holds the token pair used for authenticated calls.
type TokenStore interface {
	Tokens(ctx context.Context) (accessToken, refreshToken string, err error)
	SaveTokens(ctx context.Context, accessToken, refreshToken string) error
}
