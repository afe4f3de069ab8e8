package core

import (
	"context"
	"fmt"
	"time"

	"github.com/shrek82/simplemysql/cache"
	"github.com/shrek82/simplemysql/pool"
)

// cacheKey decides whether a call is served through the cache. Only
// row-returning statements with a TTL on the context qualify; the key is
// the statement as the server would see it. Native placeholders ("$1") are
// left alone by Format, so their args go into the key as well.
func (db *DB) cacheKey(ctx context.Context, query string, args []any) (time.Duration, string, bool) {
	if db.cache == nil {
		return 0, "", false
	}
	ttl, ok := cache.TTLFrom(ctx)
	if !ok || !pool.ReturnsRows(query) {
		return 0, "", false
	}
	rendered, err := db.pool.Format(query, args...)
	if err != nil {
		return 0, "", false
	}
	if rendered == query && len(args) > 0 {
		return ttl, cache.Key(db.dialect.Name(), rendered, fmt.Sprintf("%#v", args)), true
	}
	return ttl, cache.Key(db.dialect.Name(), rendered), true
}

func (db *DB) cached(ctx context.Context, key string) (*Result, bool) {
	data, ok, err := db.cache.Get(ctx, key)
	if err != nil {
		db.logger.WithFields(map[string]any{"key": key}).Warn("%s:cache get: %s", db.label(), err.Error())
		return nil, false
	}
	if !ok {
		return nil, false
	}
	res, err := pool.DecodeResult(data)
	if err != nil {
		db.logger.WithFields(map[string]any{"key": key}).Warn("%s:cache decode: %s", db.label(), err.Error())
		return nil, false
	}
	db.logger.WithFields(map[string]any{"key": key}).Debug("%s:cache hit", db.label())
	return res, true
}

func (db *DB) store(ctx context.Context, key string, res *Result, ttl time.Duration) {
	data, err := pool.EncodeResult(res)
	if err != nil {
		db.logger.WithFields(map[string]any{"key": key}).Warn("%s:cache encode: %s", db.label(), err.Error())
		return
	}
	if err := db.cache.Set(ctx, key, data, ttl); err != nil {
		db.logger.WithFields(map[string]any{"key": key}).Warn("%s:cache set: %s", db.label(), err.Error())
	}
}
