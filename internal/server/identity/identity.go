// Package identity resolves the caller behind a request. One Provider is
// chosen at start-up: self-hosted (HMAC access tokens) or delegated
// (provider-issued RS256 tokens). The Resolver wraps it with the header
// parsing and API-key rules shared by every transport.
package identity

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/dmitrijs2005/foliokeeper/internal/common"
	"github.com/dmitrijs2005/foliokeeper/internal/server/auth/jwks"
	"github.com/dmitrijs2005/foliokeeper/internal/server/auth/tokens"
)

const (
	ModeSelfHosted = "self_hosted"
	ModeDelegated  = "delegated"

	AdminGroup = "admin"
)

// Authentication methods recorded on an Identity.
const (
	MethodBearer = "bearer"
	MethodAPIKey = "api_key"
)

// Identity describes an authenticated caller. A nil *Identity is anonymous.
type Identity struct {
	Subject  string   `json:"sub"`
	Email    string   `json:"email,omitempty"`
	Username string   `json:"username,omitempty"`
	Groups   []string `json:"groups,omitempty"`
	Method   string   `json:"-"`
}

func (i *Identity) InGroup(g string) bool {
	return i != nil && slices.Contains(i.Groups, g)
}

// Provider authenticates bearer tokens for one deployment mode.
type Provider interface {
	Mode() string
	Authenticate(ctx context.Context, token string) (*Identity, error)
	AuthorizeAdmin(ctx context.Context, id *Identity) error
}

type AccessVerifier interface {
	Verify(token string, expected tokens.Kind) (*tokens.Claims, error)
}

type SelfHostedProvider struct {
	codec AccessVerifier
}

func NewSelfHostedProvider(codec AccessVerifier) *SelfHostedProvider {
	return &SelfHostedProvider{codec: codec}
}

func (p *SelfHostedProvider) Mode() string { return ModeSelfHosted }

func (p *SelfHostedProvider) Authenticate(_ context.Context, token string) (*Identity, error) {
	claims, err := p.codec.Verify(token, tokens.KindAccess)
	if err != nil {
		return nil, err
	}
	return &Identity{Subject: claims.Subject, Email: claims.Email, Method: MethodBearer}, nil
}

// AuthorizeAdmin lets every authenticated caller through. Self-hosted mode
// has no role model yet.
func (p *SelfHostedProvider) AuthorizeAdmin(_ context.Context, id *Identity) error {
	if id == nil {
		return common.NewError(common.ErrorUnauthorized, "Authentication required")
	}
	return nil
}

type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*jwks.Claims, error)
}

type DelegatedProvider struct {
	verifier TokenVerifier
}

func NewDelegatedProvider(v TokenVerifier) *DelegatedProvider {
	return &DelegatedProvider{verifier: v}
}

func (p *DelegatedProvider) Mode() string { return ModeDelegated }

func (p *DelegatedProvider) Authenticate(ctx context.Context, token string) (*Identity, error) {
	claims, err := p.verifier.Verify(ctx, token)
	if err != nil {
		return nil, err
	}
	return &Identity{
		Subject:  claims.Subject,
		Email:    claims.Email,
		Username: claims.Username,
		Groups:   claims.Groups,
		Method:   MethodBearer,
	}, nil
}

func (p *DelegatedProvider) AuthorizeAdmin(_ context.Context, id *Identity) error {
	if id == nil {
		return common.NewError(common.ErrorUnauthorized, "Authentication required")
	}
	if !id.InGroup(AdminGroup) {
		return common.NewError(common.ErrorForbidden, "Admin access required")
	}
	return nil
}

type Resolver struct {
	provider Provider
	apiKeys  [][sha256.Size]byte
}

// NewResolver builds a resolver around p. apiKeys are only honoured in
// delegated mode.
func NewResolver(p Provider, apiKeys []string) *Resolver {
	r := &Resolver{provider: p}
	for _, k := range apiKeys {
		if k == "" {
			continue
		}
		r.apiKeys = append(r.apiKeys, sha256.Sum256([]byte(k)))
	}
	return r
}

func (r *Resolver) Mode() string { return r.provider.Mode() }

// Required authenticates the Authorization header value. Every failure
// matches common.ErrorUnauthorized; token errors stay matchable too.
func (r *Resolver) Required(ctx context.Context, header string) (*Identity, error) {
	token, err := BearerToken(header)
	if err != nil {
		return nil, err
	}
	id, err := r.provider.Authenticate(ctx, token)
	if err != nil {
		if errors.Is(err, common.ErrConfiguration) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", common.ErrorUnauthorized, err)
	}
	return id, nil
}

// Optional is Required without failures: anything that does not
// authenticate is anonymous.
func (r *Resolver) Optional(ctx context.Context, header string) *Identity {
	if strings.TrimSpace(header) == "" {
		return nil
	}
	id, err := r.Required(ctx, header)
	if err != nil {
		return nil
	}
	return id
}

// Admin authenticates and then applies the provider's admin rule.
func (r *Resolver) Admin(ctx context.Context, header string) (*Identity, error) {
	id, err := r.Required(ctx, header)
	if err != nil {
		return nil, err
	}
	if err := r.provider.AuthorizeAdmin(ctx, id); err != nil {
		return nil, err
	}
	return id, nil
}

// APIKey accepts a service key from the configured allow-list.
func (r *Resolver) APIKey(key string) (*Identity, error) {
	if r.provider.Mode() != ModeDelegated {
		return nil, common.NewError(common.ErrorUnauthorized, "API keys are not accepted")
	}
	if key == "" {
		return nil, common.NewError(common.ErrorUnauthorized, "API key missing")
	}

	sum := sha256.Sum256([]byte(key))
	match := 0
	for _, k := range r.apiKeys {
		match |= subtle.ConstantTimeCompare(sum[:], k[:])
	}
	if match != 1 {
		return nil, common.NewError(common.ErrorUnauthorized, "Invalid API key")
	}
	return &Identity{Subject: "api-key", Method: MethodAPIKey}, nil
}

func (r *Resolver) APIKeysConfigured() bool { return len(r.apiKeys) > 0 }

// BearerToken extracts the token from "Bearer <token>".
func BearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", common.NewError(common.ErrorUnauthorized, "Authorization header missing")
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", common.NewError(common.ErrorUnauthorized, "Invalid authorization header format")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", common.NewError(common.ErrorUnauthorized, "Invalid authorization header format")
	}
	return token, nil
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity stored by WithIdentity, or nil.
func FromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(ctxKey{}).(*Identity)
	return id
}
