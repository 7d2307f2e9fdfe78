// Package services contains server-side business logic: the credential
// store, the authentication orchestrator and statement storage.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/foliokeeper/internal/common"
	"github.com/dmitrijs2005/foliokeeper/internal/server/auth/password"
	"github.com/dmitrijs2005/foliokeeper/internal/server/models"
	"github.com/dmitrijs2005/foliokeeper/internal/server/repositories/users"
)

// MsgInvalidCredentials is the single message for every failed login.
const MsgInvalidCredentials = "Invalid email or password"

// NormalizeEmail trims and lower-cases an address before lookup or insert.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// UserStore is the credential store bound to one repository handle, which
// may be a pool or a transaction.
type UserStore struct {
	repo   users.Repository
	hasher password.Hasher
	dummy  string
}

// NewUserStore binds a store to repo. dummyDigest is compared against for
// unknown emails so a miss costs the same as a wrong password.
func NewUserStore(repo users.Repository, hasher password.Hasher, dummyDigest string) *UserStore {
	return &UserStore{repo: repo, hasher: hasher, dummy: dummyDigest}
}

// FindByID returns the user or (nil, nil) when absent.
func (s *UserStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return u, nil
}

// FindByEmail returns the user or (nil, nil) when absent.
func (s *UserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := s.repo.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return u, nil
}

// Create registers an active, unverified user. A duplicate email yields
// common.ErrorConflict, whether caught here or by the unique index.
func (s *UserStore) Create(ctx context.Context, email, plain, fullName string) (*models.User, error) {
	email = NormalizeEmail(email)

	existing, err := s.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, common.NewError(common.ErrorConflict, "Email already registered")
	}

	digest, err := s.hasher.Hash(plain)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Email:          email,
		HashedPassword: digest,
		IsActive:       true,
		IsVerified:     false,
	}
	if name := strings.TrimSpace(fullName); name != "" {
		user.FullName = &name
	}

	created, err := s.repo.Create(ctx, user)
	if err != nil {
		if errors.Is(err, common.ErrorConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}
	return created, nil
}

// Authenticate returns the user for a valid email/password pair. Unknown
// email, inactive account and wrong password all give the same error.
func (s *UserStore) Authenticate(ctx context.Context, email, plain string) (*models.User, error) {
	u, err := s.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if u == nil {
		s.hasher.Verify(plain, s.dummy)
		return nil, common.NewError(common.ErrorUnauthorized, MsgInvalidCredentials)
	}
	if !s.hasher.Verify(plain, u.HashedPassword) || !u.IsActive {
		return nil, common.NewError(common.ErrorUnauthorized, MsgInvalidCredentials)
	}
	return u, nil
}

// UpdatePassword rehashes and stores a new password. A vanished user gives
// common.ErrorNotFound.
func (s *UserStore) UpdatePassword(ctx context.Context, id, plain string) error {
	digest, err := s.hasher.Hash(plain)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.repo.UpdatePassword(ctx, id, digest); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return err
		}
		return fmt.Errorf("error updating password: %w", err)
	}
	return nil
}
