// Package identity resolves a user's IANA timezone with a bounded TTL cache
// in front of the user store.
package identity

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kalambet/cadence/internal/schedule"
	"github.com/kalambet/cadence/internal/timewindow"
)

// DefaultTimezone is used for users who never set one.
const DefaultTimezone = "UTC"

const (
	defaultCacheSize = 1024
	defaultCacheTTL  = 10 * time.Minute
)

// TimezoneStore is the persistence the Resolver reads through.
// Implemented by storage.Store.
type TimezoneStore interface {
	GetTimezone(ctx context.Context, userID string) (string, error)
	SetTimezone(ctx context.Context, userID, timezone string) error
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type entry struct {
	timezone string
	storedAt time.Time
}

// Resolver caches timezone lookups. Safe for concurrent use.
type Resolver struct {
	store TimezoneStore
	cache *lru.Cache[string, entry]
	ttl   time.Duration
	clock Clock
}

// NewResolver creates a Resolver. Zero size or ttl use the defaults.
func NewResolver(store TimezoneStore, size int, ttl time.Duration) (*Resolver, error) {
	return NewResolverWithClock(store, size, ttl, realClock{})
}

// NewResolverWithClock creates a Resolver with a custom clock (for testing).
func NewResolverWithClock(store TimezoneStore, size int, ttl time.Duration, clock Clock) (*Resolver, error) {
	if size <= 0 {
		size = defaultCacheSize
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	cache, err := lru.New[string, entry](size)
	if err != nil {
		return nil, fmt.Errorf("creating timezone cache: %w", err)
	}
	return &Resolver{store: store, cache: cache, ttl: ttl, clock: clock}, nil
}

// Get returns the user's timezone, falling back to DefaultTimezone when none
// is stored.
func (r *Resolver) Get(ctx context.Context, userID string) (string, error) {
	if e, ok := r.cache.Get(userID); ok && r.clock.Now().Sub(e.storedAt) < r.ttl {
		return e.timezone, nil
	}

	tz, err := r.store.GetTimezone(ctx, userID)
	switch {
	case schedule.IsKind(err, schedule.KindNotFound):
		tz = DefaultTimezone
	case err != nil:
		return "", schedule.E(schedule.KindTransient, "resolve timezone", err)
	}
	r.cache.Add(userID, entry{timezone: tz, storedAt: r.clock.Now()})
	return tz, nil
}

// Resolve prefers an explicit override (validated) and otherwise uses Get.
func (r *Resolver) Resolve(ctx context.Context, userID, override string) (string, error) {
	if override != "" {
		if _, err := timewindow.LoadLocation(override); err != nil {
			return "", err
		}
		return override, nil
	}
	return r.Get(ctx, userID)
}

// Set persists the user's timezone and refreshes the cached value.
func (r *Resolver) Set(ctx context.Context, userID, timezone string) error {
	if err := r.store.SetTimezone(ctx, userID, timezone); err != nil {
		if schedule.KindOf(err) != schedule.KindUnknown {
			return err
		}
		return schedule.E(schedule.KindTransient, "set timezone", err)
	}
	r.cache.Add(userID, entry{timezone: timezone, storedAt: r.clock.Now()})
	slog.Debug("timezone updated", "user_id", userID, "timezone", timezone)
	return nil
}

// Invalidate drops any cached value for userID.
func (r *Resolver) Invalidate(userID string) {
	r.cache.Remove(userID)
}
