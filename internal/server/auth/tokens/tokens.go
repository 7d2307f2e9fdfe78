// Package tokens issues and verifies the HMAC-signed JWTs used in
// self-hosted mode. Three kinds exist (access, refresh, password_reset) and
// a token of one kind is never accepted where another is expected.
package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/foliokeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Kind string

const (
	KindAccess        Kind = "access"
	KindRefresh       Kind = "refresh"
	KindPasswordReset Kind = "password_reset"
)

// Default lifetimes.
const (
	DefaultAccessTTL  = 30 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
	DefaultResetTTL   = time.Hour
)

// Claims is the verified content of a token.
type Claims struct {
	Subject   string
	Email     string
	Type      Kind
	ExpiresAt time.Time
	IssuedAt  time.Time
}

type wireClaims struct {
	Email string `json:"email,omitempty"`
	Type  Kind   `json:"type"`
	jwt.RegisteredClaims
}

// TokenPair is returned by register, login and refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

type Config struct {
	SecretKey  string
	Algorithm  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	ResetTTL   time.Duration
}

type Codec struct {
	secret []byte
	method jwt.SigningMethod
	ttl    map[Kind]time.Duration
	now    func() time.Time
}

type Option func(*Codec)

// WithClock replaces time.Now for issuing and validating.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

func NewCodec(cfg Config, opts ...Option) (*Codec, error) {
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("%w: JWT secret key is not set", common.ErrConfiguration)
	}

	alg := cfg.Algorithm
	if alg == "" {
		alg = jwt.SigningMethodHS256.Alg()
	}
	var method jwt.SigningMethod
	switch alg {
	case jwt.SigningMethodHS256.Alg():
		method = jwt.SigningMethodHS256
	case jwt.SigningMethodHS384.Alg():
		method = jwt.SigningMethodHS384
	case jwt.SigningMethodHS512.Alg():
		method = jwt.SigningMethodHS512
	default:
		return nil, fmt.Errorf("%w: unsupported JWT algorithm %q", common.ErrConfiguration, alg)
	}

	c := &Codec{
		secret: []byte(cfg.SecretKey),
		method: method,
		ttl: map[Kind]time.Duration{
			KindAccess:        orDefault(cfg.AccessTTL, DefaultAccessTTL),
			KindRefresh:       orDefault(cfg.RefreshTTL, DefaultRefreshTTL),
			KindPasswordReset: orDefault(cfg.ResetTTL, DefaultResetTTL),
		},
		now: time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d == 0 {
		return def
	}
	return d
}

// TTL returns the configured lifetime for kind.
func (c *Codec) TTL(kind Kind) time.Duration {
	if c == nil || c.ttl == nil {
		return 0
	}
	return c.ttl[kind]
}

func (c *Codec) ready() error {
	if c == nil || len(c.secret) == 0 || c.method == nil {
		return fmt.Errorf("%w: token codec has no signing secret", common.ErrConfiguration)
	}
	return nil
}

func (c *Codec) clock() time.Time {
	if c.now == nil {
		return time.Now()
	}
	return c.now()
}

// Issue signs a token of the given kind that expires ttl from now. A ttl of
// zero or less yields a token that is already expired.
func (c *Codec) Issue(subject, email string, kind Kind, ttl time.Duration) (string, error) {
	if err := c.ready(); err != nil {
		return "", err
	}

	now := c.clock()
	claims := wireClaims{
		Email: email,
		Type:  kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(c.method, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// IssuePair returns a fresh access and refresh token for the same subject.
func (c *Codec) IssuePair(subject, email string) (*TokenPair, error) {
	access, err := c.Issue(subject, email, KindAccess, c.TTL(KindAccess))
	if err != nil {
		return nil, err
	}
	refresh, err := c.Issue(subject, email, KindRefresh, c.TTL(KindRefresh))
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh, TokenType: "bearer"}, nil
}

// Verify checks signature, expiry and kind. Expired tokens give
// common.ErrTokenExpired; a token of another kind gives
// common.ErrWrongTokenType; everything else gives common.ErrInvalidToken.
func (c *Codec) Verify(token string, expected Kind) (*Claims, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}

	wc := &wireClaims{}
	_, err := jwt.ParseWithClaims(token, wc, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithTimeFunc(c.clock),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}

	if wc.Type != expected {
		return nil, common.ErrWrongTokenType
	}
	if wc.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", common.ErrInvalidToken)
	}

	claims := &Claims{Subject: wc.Subject, Email: wc.Email, Type: wc.Type}
	if wc.ExpiresAt != nil {
		claims.ExpiresAt = wc.ExpiresAt.Time
	}
	if wc.IssuedAt != nil {
		claims.IssuedAt = wc.IssuedAt.Time
	}
	return claims, nil
}
