package jwks

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/foliokeeper/internal/common"
	"golang.org/x/sync/singleflight"
)

var (
	ErrUnknownKeyID     = fmt.Errorf("%w: unknown key id", common.ErrInvalidToken)
	ErrInvalidSignature = fmt.Errorf("%w: invalid signature", common.ErrInvalidToken)
	ErrAudienceMismatch = fmt.Errorf("%w: audience mismatch", common.ErrInvalidToken)
	ErrIssuerMismatch   = fmt.Errorf("%w: issuer mismatch", common.ErrInvalidToken)

	// ErrKeySetUnavailable means the key set could not be fetched.
	ErrKeySetUnavailable = errors.New("jwks unavailable")
)

const (
	DefaultTTL                = time.Hour
	DefaultMinRefreshInterval = time.Minute
)

// Cache holds the provider's public keys. It refreshes when the set is older
// than its TTL or on a kid miss, and never more often than the minimum
// refresh interval. While a refresh is throttled or failing, a stale key is
// still served.
type Cache struct {
	fetcher    Fetcher
	ttl        time.Duration
	minRefresh time.Duration
	now        func() time.Time

	singleFlight bool
	group        singleflight.Group

	mu          sync.RWMutex
	keys        map[string]*rsa.PublicKey
	fetchedAt   time.Time
	lastAttempt time.Time
	lastErr     error
}

type CacheOption func(*Cache)

// WithTTL sets how long a fetched set stays fresh. Zero keeps it forever.
func WithTTL(d time.Duration) CacheOption {
	return func(c *Cache) {
		if d >= 0 {
			c.ttl = d
		}
	}
}

func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

func WithMinRefreshInterval(d time.Duration) CacheOption {
	return func(c *Cache) {
		if d >= 0 {
			c.minRefresh = d
		}
	}
}

// WithSingleFlight collapses concurrent refreshes into one fetch.
func WithSingleFlight(on bool) CacheOption {
	return func(c *Cache) { c.singleFlight = on }
}

func NewCache(f Fetcher, opts ...CacheOption) *Cache {
	c := &Cache{
		fetcher:      f,
		ttl:          DefaultTTL,
		minRefresh:   DefaultMinRefreshInterval,
		now:          time.Now,
		singleFlight: true,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Key returns the public key for kid.
func (c *Cache) Key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	if kid == "" {
		return nil, ErrUnknownKeyID
	}

	c.mu.RLock()
	key, ok := c.keys[kid]
	loaded := c.keys != nil
	stale := loaded && c.ttl > 0 && c.now().Sub(c.fetchedAt) >= c.ttl
	throttled := !c.lastAttempt.IsZero() && c.now().Sub(c.lastAttempt) < c.minRefresh
	lastErr := c.lastErr
	c.mu.RUnlock()

	if ok && !stale {
		return key, nil
	}
	if throttled && (loaded || lastErr != nil) {
		switch {
		case ok:
			return key, nil
		case lastErr != nil:
			return nil, lastErr
		}
		return nil, ErrUnknownKeyID
	}

	if err := c.refresh(ctx); err != nil {
		// a stale key is better than none while the provider is unreachable
		if ok {
			return key, nil
		}
		return nil, err
	}

	c.mu.RLock()
	key, ok = c.keys[kid]
	c.mu.RUnlock()
	if !ok {
		return nil, ErrUnknownKeyID
	}
	return key, nil
}

// Invalidate drops the cached set; the next lookup fetches it again.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys = nil
	c.fetchedAt = time.Time{}
	c.lastAttempt = time.Time{}
	c.lastErr = nil
}

func (c *Cache) refresh(ctx context.Context) error {
	if !c.singleFlight {
		return c.load(ctx)
	}
	_, err, _ := c.group.Do("jwks", func() (any, error) {
		return nil, c.load(ctx)
	})
	return err
}

func (c *Cache) load(ctx context.Context) error {
	c.mu.Lock()
	c.lastAttempt = c.now()
	c.mu.Unlock()

	ks, err := c.fetcher.Fetch(ctx)
	if err == nil && ks == nil {
		err = errors.New("empty response")
	}
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrKeySetUnavailable, err)
		c.mu.Lock()
		c.lastErr = err
		c.mu.Unlock()
		return err
	}

	keys := ks.rsaKeys()

	c.mu.Lock()
	c.keys = keys
	c.fetchedAt = c.now()
	c.lastErr = nil
	c.mu.Unlock()
	return nil
}
