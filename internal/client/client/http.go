package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/foliokeeper/internal/client/models"
)

const (
	defaultTimeout   = 10 * time.Second
	maxErrorBodySize = 1 << 20
)

type HTTPClient struct {
	baseURL string
	http    *http.Client
	tokens  TokenStore

	// serializes refreshes so concurrent calls do not spend the same
	// refresh token twice
	refreshMu sync.Mutex
}

// NewHTTPClient returns a client for the API rooted at baseURL, e.g.
// "http://127.0.0.1:8080/api/v1". tokens may be nil when only
// unauthenticated calls are made.
func NewHTTPClient(baseURL string, timeout time.Duration, tokens TokenStore) *HTTPClient {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		tokens:  tokens,
	}
}

func (c *HTTPClient) Register(ctx context.Context, email, password, fullName string) (*models.TokenPair, error) {
	in := map[string]string{"email": email, "password": password}
	if fullName != "" {
		in["full_name"] = fullName
	}
	var out models.TokenPair
	if err := c.send(ctx, http.MethodPost, "/auth/register", in, &out, ""); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) Login(ctx context.Context, email, password string) (*models.TokenPair, error) {
	in := map[string]string{"email": email, "password": password}
	var out models.TokenPair
	if err := c.send(ctx, http.MethodPost, "/auth/login", in, &out, ""); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	in := map[string]string{"refresh_token": refreshToken}
	var out models.TokenPair
	if err := c.send(ctx, http.MethodPost, "/auth/refresh", in, &out, ""); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) RequestReset(ctx context.Context, email string) (*models.ResetResponse, error) {
	in := map[string]string{"email": email}
	var out models.ResetResponse
	if err := c.send(ctx, http.MethodPost, "/auth/password-reset", in, &out, ""); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) ConfirmReset(ctx context.Context, token, newPassword string) (string, error) {
	in := map[string]string{"token": token, "new_password": newPassword}
	var out struct {
		Message string `json:"message"`
	}
	if err := c.send(ctx, http.MethodPost, "/auth/password-reset/confirm", in, &out, ""); err != nil {
		return "", err
	}
	return out.Message, nil
}

func (c *HTTPClient) Me(ctx context.Context) (*models.User, error) {
	var out models.User
	if err := c.authorized(ctx, http.MethodGet, "/auth/me", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Status reports whether the stored token is accepted. Without a stored
// token it asks anonymously.
func (c *HTTPClient) Status(ctx context.Context) (*models.AuthStatus, error) {
	var out models.AuthStatus
	err := c.authorized(ctx, http.MethodGet, "/auth/status", nil, &out)
	if errors.Is(err, ErrNotLoggedIn) {
		err = c.send(ctx, http.MethodGet, "/auth/status", nil, &out, "")
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	var out struct {
		Status string `json:"status"`
	}
	if err := c.send(ctx, http.MethodGet, "/health", nil, &out, ""); err != nil {
		return err
	}
	if out.Status != "healthy" {
		return ErrUnavailable
	}
	return nil
}

// authorized sends with the stored access token and, on TOKEN_EXPIRED,
// refreshes the pair once and retries.
func (c *HTTPClient) authorized(ctx context.Context, method, path string, in, out any) error {
	if c.tokens == nil {
		return ErrNotLoggedIn
	}
	access, _, err := c.tokens.Tokens(ctx)
	if err != nil {
		return err
	}
	if access == "" {
		return ErrNotLoggedIn
	}

	err = c.send(ctx, method, path, in, out, access)
	if !errors.Is(err, ErrTokenExpired) {
		return err
	}

	access, err = c.refreshTokens(ctx, access)
	if err != nil {
		return err
	}
	return c.send(ctx, method, path, in, out, access)
}

func (c *HTTPClient) refreshTokens(ctx context.Context, expired string) (string, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	access, refresh, err := c.tokens.Tokens(ctx)
	if err != nil {
		return "", err
	}
	// another call already refreshed
	if access != "" && access != expired {
		return access, nil
	}
	if refresh == "" {
		return "", ErrUnauthorized
	}

	pair, err := c.Refresh(ctx, refresh)
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			return "", err
		}
		return "", fmt.Errorf("%w: session expired, please log in again", ErrUnauthorized)
	}
	if err := c.tokens.SaveTokens(ctx, pair.AccessToken, pair.RefreshToken); err != nil {
		return "", fmt.Errorf("failed to save refreshed tokens: %w", err)
	}
	return pair.AccessToken, nil
}

func (c *HTTPClient) send(ctx context.Context, method, path string, in, out any, token string) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))

	var env struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	apiErr := &APIError{Status: resp.StatusCode}
	if err := json.Unmarshal(b, &env); err == nil && env.Error.Code != "" {
		apiErr.Code = env.Error.Code
		apiErr.Message = env.Error.Message
		return apiErr
	}
	apiErr.Message = strings.TrimSpace(string(b))
	return apiErr
}
