package jwks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/foliokeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims are the identity claims of a verified provider token.
type Claims struct {
	Subject   string
	Email     string
	Username  string
	Groups    []string
	TokenUse  string
	ExpiresAt time.Time
}

type wireClaims struct {
	Email    string   `json:"email,omitempty"`
	Username string   `json:"cognito:username,omitempty"`
	Groups   []string `json:"cognito:groups,omitempty"`
	TokenUse string   `json:"token_use,omitempty"`
	jwt.RegisteredClaims
}

type Verifier struct {
	cache    *Cache
	audience string
	issuer   string
	now      func() time.Time
}

type VerifierOption func(*Verifier)

func WithVerifierClock(now func() time.Time) VerifierOption {
	return func(v *Verifier) {
		if now != nil {
			v.now = now
		}
	}
}

func NewVerifier(cache *Cache, audience, issuer string, opts ...VerifierOption) *Verifier {
	v := &Verifier{cache: cache, audience: audience, issuer: issuer, now: time.Now}
	for _, o := range opts {
		o(v)
	}
	return v
}

// Verify checks an RS256 token against the cached key set, then its expiry,
// audience and issuer.
func (v *Verifier) Verify(ctx context.Context, token string) (*Claims, error) {
	if v == nil || v.cache == nil {
		return nil, fmt.Errorf("%w: token verifier is not configured", common.ErrConfiguration)
	}

	wc := &wireClaims{}
	_, err := jwt.ParseWithClaims(token, wc, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		return v.cache.Key(ctx, kid)
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithAudience(v.audience),
		jwt.WithIssuer(v.issuer),
		jwt.WithTimeFunc(v.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, classify(err)
	}

	claims := &Claims{
		Subject:  wc.Subject,
		Email:    wc.Email,
		Username: wc.Username,
		Groups:   wc.Groups,
		TokenUse: wc.TokenUse,
	}
	if claims.Groups == nil {
		claims.Groups = []string{}
	}
	if wc.ExpiresAt != nil {
		claims.ExpiresAt = wc.ExpiresAt.Time
	}
	return claims, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, ErrUnknownKeyID):
		return ErrUnknownKeyID
	case errors.Is(err, ErrKeySetUnavailable):
		return err
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrInvalidSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return common.ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return ErrAudienceMismatch
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return ErrIssuerMismatch
	default:
		return fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}
}
