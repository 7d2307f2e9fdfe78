// Package password hashes and verifies user passwords with bcrypt.
package password

import (
	"fmt"

	"github.com/dmitrijs2005/foliokeeper/internal/common"
	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultCost is the bcrypt work factor used unless WithCost overrides it.
	DefaultCost = 12
	// MaxBytes is the longest input bcrypt accepts.
	MaxBytes = 72
)

// ErrTooLong is returned by Hash for input over MaxBytes. It is a validation
// error, so it reaches callers as a client mistake.
var ErrTooLong = common.NewError(common.ErrorValidation,
	fmt.Sprintf("password must be at most %d bytes", MaxBytes))

// Hasher produces and checks password digests.
type Hasher interface {
	Hash(plain string) (string, error)
	Verify(plain, digest string) bool
}

type BcryptHasher struct {
	cost int
}

type Option func(*BcryptHasher)

// WithCost sets the bcrypt work factor. Values outside bcrypt's range fall
// back to DefaultCost.
func WithCost(cost int) Option {
	return func(h *BcryptHasher) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			h.cost = cost
		}
	}
}

func NewBcryptHasher(opts ...Option) *BcryptHasher {
	h := &BcryptHasher{cost: DefaultCost}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Hash returns a salted digest of plain. Input longer than MaxBytes is
// rejected with ErrTooLong; multi-byte characters count by their encoding.
func (h *BcryptHasher) Hash(plain string) (string, error) {
	if len(plain) > MaxBytes {
		return "", ErrTooLong
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify reports whether plain matches digest. Malformed digests and library
// errors report false.
func (h *BcryptHasher) Verify(plain, digest string) bool {
	if digest == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plain)) == nil
}
