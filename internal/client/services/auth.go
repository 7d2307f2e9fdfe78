// Package services contains application services for the foliokeeper CLI.
// This file defines the authentication service: register, login, logout,
// token refresh and password reset, with the session kept in the local
// database.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/foliokeeper/internal/client/client"
	"github.com/dmitrijs2005/foliokeeper/internal/client/models"
	"github.com/dmitrijs2005/foliokeeper/internal/client/repositories/session"
	"github.com/dmitrijs2005/foliokeeper/internal/common"
)

// AuthService defines authentication operations for the CLI.
//
// Register and Login persist the returned token pair as the local session.
// Logout only forgets it; tokens are stateless on the server.
type AuthService interface {
	Register(ctx context.Context, email string, password []byte, fullName string) error
	Login(ctx context.Context, email string, password []byte) error
	Logout(ctx context.Context) error
	WhoAmI(ctx context.Context) (*models.User, error)
	Status(ctx context.Context) (*models.AuthStatus, error)
	Refresh(ctx context.Context) error
	RequestReset(ctx context.Context, email string) (*models.ResetResponse, error)
	ConfirmReset(ctx context.Context, token string, newPassword []byte) (string, error)
	Ping(ctx context.Context) error
	// CurrentEmail returns the email of the stored session, or "".
	CurrentEmail(ctx context.Context) (string, error)
}

type authService struct {
	client   client.Client
	sessions session.Repository
}

func NewAuthService(c client.Client, sessions session.Repository) AuthService {
	return &authService{client: c, sessions: sessions}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (a *authService) Register(ctx context.Context, email string, password []byte, fullName string) error {
	defer common.WipeByteArray(password)

	email = normalizeEmail(email)
	pair, err := a.client.Register(ctx, email, string(password), strings.TrimSpace(fullName))
	if err != nil {
		return err
	}
	return a.saveSession(ctx, email, pair)
}

func (a *authService) Login(ctx context.Context, email string, password []byte) error {
	defer common.WipeByteArray(password)

	email = normalizeEmail(email)
	pair, err := a.client.Login(ctx, email, string(password))
	if err != nil {
		return err
	}
	return a.saveSession(ctx, email, pair)
}

func (a *authService) saveSession(ctx context.Context, email string, pair *models.TokenPair) error {
	s := &models.Session{Email: email, AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}
	if err := a.sessions.Save(ctx, s); err != nil {
		return fmt.Errorf("session saving error: %w", err)
	}
	return nil
}

func (a *authService) Logout(ctx context.Context) error {
	return a.sessions.Clear(ctx)
}

func (a *authService) WhoAmI(ctx context.Context) (*models.User, error) {
	return a.client.Me(ctx)
}

func (a *authService) Status(ctx context.Context) (*models.AuthStatus, error) {
	return a.client.Status(ctx)
}

// Refresh exchanges the stored refresh token for a new pair.
func (a *authService) Refresh(ctx context.Context) error {
	s, err := a.sessions.Get(ctx)
	if err != nil {
		return err
	}
	if s == nil {
		return client.ErrNotLoggedIn
	}

	pair, err := a.client.Refresh(ctx, s.RefreshToken)
	if err != nil {
		return err
	}
	return a.sessions.UpdateTokens(ctx, pair.AccessToken, pair.RefreshToken)
}

func (a *authService) RequestReset(ctx context.Context, email string) (*models.ResetResponse, error) {
	return a.client.RequestReset(ctx, normalizeEmail(email))
}

func (a *authService) ConfirmReset(ctx context.Context, token string, newPassword []byte) (string, error) {
	defer common.WipeByteArray(newPassword)
	return a.client.ConfirmReset(ctx, strings.TrimSpace(token), string(newPassword))
}

func (a *authService) Ping(ctx context.Context) error {
	return a.client.Ping(ctx)
}

func (a *authService) CurrentEmail(ctx context.Context) (string, error) {
	s, err := a.sessions.Get(ctx)
	if err != nil || s == nil {
		return "", err
	}
	return s.Email, nil
}

// SessionTokens exposes the stored session as a client.TokenStore.
type SessionTokens struct {
	sessions session.Repository
}

func NewSessionTokens(sessions session.Repository) *SessionTokens {
	return &SessionTokens{sessions: sessions}
}

func (t *SessionTokens) Tokens(ctx context.Context) (string, string, error) {
	s, err := t.sessions.Get(ctx)
	if err != nil || s == nil {
		return "", "", err
	}
	return s.AccessToken, s.RefreshToken, nil
}

func (t *SessionTokens) SaveTokens(ctx context.Context, accessToken, refreshToken string) error {
	err := t.sessions.UpdateTokens(ctx, accessToken, refreshToken)
	if errors.Is(err, common.ErrorNotFound) {
		return client.ErrNotLoggedIn
	}
	return err
}
