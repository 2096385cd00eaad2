package keyring

import (
	"context"
	"crypto/rsa"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Config holds the parameters for a CachingResolver. The zero value of
// every field has a sensible default.
type Config struct {
	// Fetcher retrieves remote actor documents. Required.
	Fetcher ActorFetcher

	// PositiveTTL is how long a successfully resolved key is served
	// from cache. Defaults to 30 minutes.
	PositiveTTL time.Duration

	// NegativeTTL is how long a failed resolution suppresses refetches.
	// Kept short so a transient remote outage does not lock a key out
	// for long, but long enough to bound retry storms from broken or
	// hostile servers. Defaults to 2 minutes.
	NegativeTTL time.Duration

	// FetchTimeout bounds each actor fetch. Defaults to 10 seconds.
	FetchTimeout time.Duration

	// Logger receives cache events. If nil, a no-op logger is used.
	Logger *slog.Logger

	// NowFunc supplies the clock. Defaults to time.Now; override in
	// tests to control expiry.
	NowFunc func() time.Time
}

// cacheEntry is one cached resolution, positive or negative. Expired
// entries are treated as absent, never served stale.
type cacheEntry struct {
	key       *rsa.PublicKey // nil for negative entries
	fetchErr  error
	expiresAt time.Time
}

// CachingResolver resolves signing keys by fetching the owning actor's
// profile document, with a TTL cache and negative-result suppression.
//
// Safe for concurrent use by many simultaneous inbound verifications.
// Concurrent misses for the same key ID are collapsed into a single
// fetch; writes are last-writer-wins per key ID.
type CachingResolver struct {
	fetcher      ActorFetcher
	positiveTTL  time.Duration
	negativeTTL  time.Duration
	fetchTimeout time.Duration
	logger       *slog.Logger
	now          func() time.Time

	mu      sync.RWMutex
	entries map[string]cacheEntry
	group   singleflight.Group
}

// NewCachingResolver creates a resolver from the given configuration.
func NewCachingResolver(cfg Config) (*CachingResolver, error) {
	if cfg.Fetcher == nil {
		return nil, fmt.Errorf("keyring: Fetcher is required")
	}
	if cfg.PositiveTTL <= 0 {
		cfg.PositiveTTL = 30 * time.Minute
	}
	if cfg.NegativeTTL <= 0 {
		cfg.NegativeTTL = 2 * time.Minute
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.NowFunc == nil {
		cfg.NowFunc = time.Now
	}
	return &CachingResolver{
		fetcher:      cfg.Fetcher,
		positiveTTL:  cfg.PositiveTTL,
		negativeTTL:  cfg.NegativeTTL,
		fetchTimeout: cfg.FetchTimeout,
		logger:       cfg.Logger,
		now:          cfg.NowFunc,
		entries:      make(map[string]cacheEntry),
	}, nil
}

// ResolveKey resolves keyID to the owning actor's RSA public key.
func (r *CachingResolver) ResolveKey(ctx context.Context, keyID string) (*rsa.PublicKey, error) {
	if keyID == "" {
		return nil, fmt.Errorf("%w: empty key ID", ErrKeyUnavailable)
	}

	if key, err, ok := r.lookup(keyID); ok {
		return key, err
	}

	// Collapse concurrent misses for one key ID into a single fetch.
	// Other key IDs proceed independently. The fetch runs detached from
	// the caller's context, bounded by FetchTimeout alone: a caller that
	// disconnects mid-fetch must not fail the other waiters, and its
	// cancellation must never be recorded as a negative entry.
	ch := r.group.DoChan(keyID, func() (interface{}, error) {
		if key, err, ok := r.lookup(keyID); ok {
			return key, err
		}
		return r.fetch(context.WithoutCancel(ctx), keyID)
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("key resolution aborted: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*rsa.PublicKey), nil
	}
}

// lookup returns the cached result for keyID if a live entry exists.
func (r *CachingResolver) lookup(keyID string) (*rsa.PublicKey, error, bool) {
	r.mu.RLock()
	entry, found := r.entries[keyID]
	r.mu.RUnlock()

	if !found || r.now().After(entry.expiresAt) {
		return nil, nil, false
	}
	if entry.key == nil {
		return nil, fmt.Errorf("%w: %v (cached failure)", ErrKeyUnavailable, entry.fetchErr), true
	}
	return entry.key, nil, true
}

// fetch performs the actor-profile fetch and populates the cache with
// either a positive or a negative entry.
func (r *CachingResolver) fetch(ctx context.Context, keyID string) (*rsa.PublicKey, error) {
	actorURI := actorURIFromKeyID(keyID)

	fetchCtx, cancel := context.WithTimeout(ctx, r.fetchTimeout)
	defer cancel()

	key, err := r.fetchKey(fetchCtx, actorURI, keyID)
	if err != nil {
		r.store(keyID, cacheEntry{
			fetchErr:  err,
			expiresAt: r.now().Add(r.negativeTTL),
		})
		r.logger.Warn("key resolution failed",
			"key_id", keyID,
			"actor", actorURI,
			"error", err,
		)
		return nil, fmt.Errorf("%w: %v", ErrKeyUnavailable, err)
	}

	r.store(keyID, cacheEntry{
		key:       key,
		expiresAt: r.now().Add(r.positiveTTL),
	})
	r.logger.Debug("key resolved", "key_id", keyID, "actor", actorURI)
	return key, nil
}

func (r *CachingResolver) fetchKey(ctx context.Context, actorURI, keyID string) (*rsa.PublicKey, error) {
	actor, err := r.fetcher.FetchActor(ctx, actorURI)
	if err != nil {
		return nil, fmt.Errorf("fetching actor %s: %w", actorURI, err)
	}

	// The document must declare the exact key we were asked for. A
	// mismatch is a verification failure, not a reason to try another
	// key.
	if actor.PublicKey.ID != keyID {
		return nil, fmt.Errorf("actor %s declares key %q, want %q", actorURI, actor.PublicKey.ID, keyID)
	}

	key, err := parsePublicKeyPem(actor.PublicKey.PublicKeyPem)
	if err != nil {
		return nil, fmt.Errorf("actor %s key %s: %w", actorURI, keyID, err)
	}
	return key, nil
}

func (r *CachingResolver) store(keyID string, entry cacheEntry) {
	r.mu.Lock()
	r.entries[keyID] = entry
	r.mu.Unlock()
}

// Invalidate drops the cached entry for keyID, forcing the next
// resolution to refetch. Used when a remote actor rotates keys.
func (r *CachingResolver) Invalidate(keyID string) {
	r.mu.Lock()
	delete(r.entries, keyID)
	r.mu.Unlock()
}
