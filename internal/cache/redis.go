// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Genos Contributors

// Package cache provides a Redis read-through cache in front of brand
// lookups. Ownership checks never go through it.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/genos-dev/genos/internal/store"
	genoserr "github.com/genos-dev/genos/pkg/errors"
)

// DefaultTTL is the brand entry lifetime when none is configured.
const DefaultTTL = 5 * time.Minute

const keyPrefix = "genos:brand:"

// Compile-time interface check.
var _ store.BrandStore = (*BrandCache)(nil)

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// Connect opens a Redis client and verifies it with PING.
func Connect(ctx context.Context, opts Options) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, genoserr.Wrap(err, genoserr.CodeCacheFailure, "connecting to redis",
			genoserr.Field("addr", opts.Addr))
	}
	return client, nil
}

// BrandCache wraps a BrandStore with a Redis read-through cache. Redis
// errors are logged and fall through to the wrapped store.
type BrandCache struct {
	next   store.BrandStore
	client *redis.Client
	ttl    time.Duration
}

// NewBrandCache wraps next. A non-positive ttl selects DefaultTTL.
func NewBrandCache(next store.BrandStore, client *redis.Client, ttl time.Duration) *BrandCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &BrandCache{next: next, client: client, ttl: ttl}
}

// Key returns the cache key of a brand.
func Key(orgID, brandID string) string {
	return keyPrefix + orgID + ":" + brandID
}

func (c *BrandCache) GetBrand(ctx context.Context, orgID, brandID string) (*store.Brand, error) {
	key := Key(orgID, brandID)

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var b store.Brand
		jerr := json.Unmarshal(raw, &b)
		if jerr == nil {
			return &b, nil
		}
		slog.Warn("discarding undecodable brand cache entry", "key", key, "error", jerr)
	case !errors.Is(err, redis.Nil):
		slog.Warn("brand cache read failed", "key", key, "error", err)
	}

	b, err := c.next.GetBrand(ctx, orgID, brandID)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(b); err == nil {
		if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
			slog.Warn("brand cache write failed", "key", key, "error", err)
		}
	}
	return b, nil
}

// Invalidate drops a cached brand.
func (c *BrandCache) Invalidate(ctx context.Context, orgID, brandID string) error {
	if err := c.client.Del(ctx, Key(orgID, brandID)).Err(); err != nil {
		return genoserr.Wrap(err, genoserr.CodeCacheFailure, "invalidating brand cache")
	}
	return nil
}

// Ping checks the Redis connection.
func (c *BrandCache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return genoserr.Wrap(err, genoserr.CodeCacheFailure, "redis ping failed")
	}
	return nil
}
