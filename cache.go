// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gmebridge

import (
	"context"
	"sync"
)

// Cache keys used by the facades.
const (
	KeyCoreConstants    = "core.constants"
	KeyProjectConstants = "project.constants"
	KeyGMEConfig        = "util.gmeConfig"
)

// FetchFunc produces the value for a cache key.
type FetchFunc func(ctx context.Context) (Value, error)

// Cache memoizes values the engine keeps fixed for the lifetime of a
// connection. An entry is fetched at most once and never refreshed; if the
// engine ever changed such a value mid-session the cache would serve the
// stale one. Failed fetches are not stored.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
}

type cacheEntry struct {
	mu    sync.Mutex
	val   Value
	ready bool
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]*cacheEntry)}
}

func (c *Cache) entry(key string) *cacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		e = &cacheEntry{}
		c.entries[key] = e
	}
	return e
}

// GetOrFetch returns the stored value for key, calling fetch the first
// time. Concurrent callers for the same key wait for the one fetch.
func (c *Cache) GetOrFetch(ctx context.Context, key string, fetch FetchFunc) (Value, error) {
	e := c.entry(key)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ready {
		return e.val, nil
	}
	v, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	e.val, e.ready = v, true
	return v, nil
}

// Peek returns the stored value for key without fetching.
func (c *Cache) Peek(key string) (Value, bool) {
	c.mu.Lock()
	e, ok := c.entries[key]
	c.mu.Unlock()
	if !ok {
		return nil, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.val, e.ready
}
