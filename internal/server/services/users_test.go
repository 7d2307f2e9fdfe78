package services

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/foliokeeper/internal/common"
	"github.com/dmitrijs2005/foliokeeper/internal/server/auth/password"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type countingHasher struct {
	password.Hasher
	verifies int
}

func (h *countingHasher) Verify(plain, digest string) bool {
	h.verifies++
	return h.Hasher.Verify(plain, digest)
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "a@b.com", NormalizeEmail("  A@B.Com\t"))
}

func TestUserStore_FindAbsentReturnsNil(t *testing.T) {
	store := NewUserStore(newFakeUsersRepo(), password.NewBcryptHasher(password.WithCost(bcrypt.MinCost)), "")

	u, err := store.FindByEmail(context.Background(), "none@example.com")
	require.NoError(t, err)
	assert.Nil(t, u)

	u, err = store.FindByID(context.Background(), "none")
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestUserStore_UnknownEmailStillHashes(t *testing.T) {
	base := password.NewBcryptHasher(password.WithCost(bcrypt.MinCost))
	dummy, err := base.Hash("dummy")
	require.NoError(t, err)
	h := &countingHasher{Hasher: base}
	store := NewUserStore(newFakeUsersRepo(), h, dummy)

	_, err = store.Authenticate(context.Background(), "ghost@example.com", "x")
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
	assert.Equal(t, 1, h.verifies)
}

func TestUserStore_UpdatePasswordMissingUser(t *testing.T) {
	store := NewUserStore(newFakeUsersRepo(), password.NewBcryptHasher(password.WithCost(bcrypt.MinCost)), "")

	err := store.UpdatePassword(context.Background(), "missing", "new-password")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestUserStore_CreateStoresNormalisedEmail(t *testing.T) {
	repo := newFakeUsersRepo()
	store := NewUserStore(repo, password.NewBcryptHasher(password.WithCost(bcrypt.MinCost)), "")

	u, err := store.Create(context.Background(), " Mixed@Case.ORG ", "password123", "  ")
	require.NoError(t, err)
	assert.Equal(t, "mixed@case.org", u.Email)
	assert.Nil(t, u.FullName)

	_, err = store.Create(context.Background(), "mixed@case.org", "password123", "")
	assert.ErrorIs(t, err, common.ErrorConflict)
}
