// Package cache stores encoded query results keyed by statement.
//
// Caching is opt-in per call: a query is only cached when its context
// carries a TTL set with WithTTL.
package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
)

// NoExpiration keeps an entry until it is evicted or the cache is closed.
const NoExpiration time.Duration = -1

const keyPrefix = "simplemysql:cache:"

// Cache is a byte-oriented result store.
type Cache interface {
	// Get returns the stored bytes and whether the key was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores data under key. A negative ttl means NoExpiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Close() error
}

type ttlKey struct{}

// WithTTL returns a context asking the facade to cache the results of
// queries run with it for ttl. A zero ttl disables caching.
func WithTTL(ctx context.Context, ttl time.Duration) context.Context {
	return context.WithValue(ctx, ttlKey{}, ttl)
}

// TTLFrom reports the TTL carried by ctx, if caching was requested.
func TTLFrom(ctx context.Context) (time.Duration, bool) {
	ttl, ok := ctx.Value(ttlKey{}).(time.Duration)
	if !ok || ttl == 0 {
		return 0, false
	}
	return ttl, true
}

// Key derives a cache key from its parts.
func Key(parts ...string) string {
	d := xxhash.New()
	for i, p := range parts {
		if i > 0 {
			d.Write([]byte{0})
		}
		d.WriteString(p)
	}
	return keyPrefix + strconv.FormatUint(d.Sum64(), 16)
}
