package jwks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
)

// Fetcher retrieves the current key set.
type Fetcher interface {
	Fetch(ctx context.Context) (*KeySet, error)
}

// FetchFunc adapts a function to Fetcher.
type FetchFunc func(ctx context.Context) (*KeySet, error)

func (f FetchFunc) Fetch(ctx context.Context) (*KeySet, error) { return f(ctx) }

// HTTPFetcher downloads the key set over HTTP, retrying transport errors
// and 5xx responses with exponential backoff.
type HTTPFetcher struct {
	URL       string
	Client    *http.Client
	Attempts  uint64
	BaseDelay time.Duration
}

func NewHTTPFetcher(url string) *HTTPFetcher {
	return &HTTPFetcher{
		URL:       url,
		Client:    &http.Client{Timeout: 10 * time.Second},
		Attempts:  3,
		BaseDelay: 200 * time.Millisecond,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context) (*KeySet, error) {
	attempts := f.Attempts
	if attempts == 0 {
		attempts = 1
	}
	base := f.BaseDelay
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	backoff := retry.WithMaxRetries(attempts-1, retry.NewExponential(base))

	var ks *KeySet
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= http.StatusInternalServerError {
			return retry.RetryableError(fmt.Errorf("jwks endpoint returned %d", resp.StatusCode))
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("jwks endpoint returned %d", resp.StatusCode)
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return retry.RetryableError(err)
		}
		var out KeySet
		if err := json.Unmarshal(body, &out); err != nil {
			return fmt.Errorf("decode jwks: %w", err)
		}
		ks = &out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ks, nil
}
