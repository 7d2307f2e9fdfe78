package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/foliokeeper/internal/common"
	"github.com/dmitrijs2005/foliokeeper/internal/dbx"
	"github.com/dmitrijs2005/foliokeeper/internal/logging"
	"github.com/dmitrijs2005/foliokeeper/internal/server/auth/password"
	"github.com/dmitrijs2005/foliokeeper/internal/server/auth/tokens"
	"github.com/dmitrijs2005/foliokeeper/internal/server/models"
	"github.com/dmitrijs2005/foliokeeper/internal/server/repositories/repomanager"
)

const (
	MsgInvalidRefreshToken = "Invalid refresh token"
	MsgInvalidResetToken   = "Invalid or expired reset token"
	MsgResetRequested      = "If the email exists, a reset token has been sent"
	MsgPasswordReset       = "Password reset successfully"
)

// ResetRequest is the outcome of a password reset request. ResetToken is
// only set when token exposure is enabled and the email is known.
type ResetRequest struct {
	Message    string `json:"message"`
	ResetToken string `json:"reset_token,omitempty"`
}

// AuthService orchestrates self-hosted authentication. Each operation that
// touches the store runs in its own transaction.
type AuthService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	codec       *tokens.Codec
	hasher      password.Hasher
	notifier    ResetNotifier
	exposeReset bool
	logger      logging.Logger
	dummy       func() (string, error)
}

type AuthOption func(*AuthService)

func WithResetNotifier(n ResetNotifier) AuthOption {
	return func(s *AuthService) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithExposeResetToken returns reset tokens in API responses. Development
// only.
func WithExposeResetToken(on bool) AuthOption {
	return func(s *AuthService) { s.exposeReset = on }
}

func WithLogger(l logging.Logger) AuthOption {
	return func(s *AuthService) {
		if l != nil {
			s.logger = l.With("module", "auth_service")
		}
	}
}

func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, codec *tokens.Codec, hasher password.Hasher, opts ...AuthOption) *AuthService {
	s := &AuthService{
		db:          db,
		repomanager: m,
		codec:       codec,
		hasher:      hasher,
		logger:      logging.Nop{},
	}
	for _, o := range opts {
		o(s)
	}
	if s.notifier == nil {
		s.notifier = NewLogNotifier(s.logger)
	}
	s.dummy = sync.OnceValues(func() (string, error) {
		return hasher.Hash("foliokeeper-timing-equaliser")
	})
	return s
}

func (s *AuthService) store(tx dbx.DBTX) (*UserStore, error) {
	dummy, err := s.dummy()
	if err != nil {
		return nil, fmt.Errorf("hash dummy password: %w", err)
	}
	return NewUserStore(s.repomanager.Users(tx), s.hasher, dummy), nil
}

// Register creates the user and returns a fresh token pair.
func (s *AuthService) Register(ctx context.Context, email, plain, fullName string) (*tokens.TokenPair, error) {
	var pair *tokens.TokenPair
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		store, err := s.store(tx)
		if err != nil {
			return err
		}
		user, err := store.Create(ctx, email, plain, fullName)
		if err != nil {
			return err
		}
		pair, err = s.codec.IssuePair(user.ID, user.Email)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "user registered", "email", NormalizeEmail(email))
	return pair, nil
}

// Login authenticates and returns a fresh token pair.
func (s *AuthService) Login(ctx context.Context, email, plain string) (*tokens.TokenPair, error) {
	var pair *tokens.TokenPair
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		store, err := s.store(tx)
		if err != nil {
			return err
		}
		user, err := store.Authenticate(ctx, email, plain)
		if err != nil {
			return err
		}
		pair, err = s.codec.IssuePair(user.ID, user.Email)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pair, nil
}

// Refresh exchanges a refresh token for a new pair. The subject is not
// looked up again, so a deleted or deactivated user keeps refreshing until
// the token expires.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*tokens.TokenPair, error) {
	claims, err := s.codec.Verify(refreshToken, tokens.KindRefresh)
	if err != nil {
		if errors.Is(err, common.ErrConfiguration) {
			return nil, err
		}
		return nil, common.NewError(common.ErrorUnauthorized, MsgInvalidRefreshToken)
	}
	return s.codec.IssuePair(claims.Subject, claims.Email)
}

// RequestPasswordReset issues a reset token for a known email and hands it
// to the notifier. The response does not reveal whether the email exists.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) (*ResetRequest, error) {
	var (
		user  *models.User
		token string
	)
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		store, err := s.store(tx)
		if err != nil {
			return err
		}
		user, err = store.FindByEmail(ctx, email)
		if err != nil || user == nil {
			return err
		}
		token, err = s.codec.Issue(user.ID, user.Email, tokens.KindPasswordReset, s.codec.TTL(tokens.KindPasswordReset))
		return err
	})
	if err != nil {
		return nil, err
	}

	res := &ResetRequest{Message: MsgResetRequested}
	if user == nil {
		return res, nil
	}

	if err := s.notifier.NotifyPasswordReset(ctx, user, token, s.codec.TTL(tokens.KindPasswordReset)); err != nil {
		s.logger.Error(ctx, "reset notification failed", "user_id", user.ID, "error", err)
	}
	if s.exposeReset {
		res.ResetToken = token
	}
	return res, nil
}

// ConfirmPasswordReset sets a new password for the subject of a valid reset
// token. Every failure reads the same to the caller.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	claims, err := s.codec.Verify(token, tokens.KindPasswordReset)
	if err != nil {
		if errors.Is(err, common.ErrConfiguration) {
			return err
		}
		return common.NewError(common.ErrorBadRequest, MsgInvalidResetToken)
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		store, err := s.store(tx)
		if err != nil {
			return err
		}
		return store.UpdatePassword(ctx, claims.Subject, newPassword)
	})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.NewError(common.ErrorBadRequest, MsgInvalidResetToken)
		}
		return err
	}

	s.logger.Info(ctx, "password reset completed", "user_id", claims.Subject)
	return nil
}

// CurrentUser loads the user behind an access token subject.
func (s *AuthService) CurrentUser(ctx context.Context, id string) (*models.User, error) {
	var user *models.User
	err := dbx.WithTx(ctx, s.db, &sql.TxOptions{ReadOnly: true}, func(ctx context.Context, tx dbx.DBTX) error {
		store, err := s.store(tx)
		if err != nil {
			return err
		}
		user, err = store.FindByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, common.NewError(common.ErrorNotFound, "User not found")
	}
	return user, nil
}
