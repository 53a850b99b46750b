// Package memory provides an in-process ezdb.Cache backed by an LRU with
// per-entry expiry.
package memory

import (
	"context"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/syssam/ezdb"
)

// DefaultSize is the number of entries kept when no size is given.
const DefaultSize = 1024

type entry struct {
	data    []byte
	expires time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expires.IsZero() && now.After(e.expires)
}

// Cache is an ezdb.Cache that keeps at most Size entries, evicting the
// least recently used one first.
type Cache struct {
	lru *expirable.LRU[string, entry]
	now func() time.Time
}

// Option configures a Cache.
type Option func(*options)

type options struct {
	maxAge time.Duration
	now    func() time.Time
}

// WithMaxAge bounds the lifetime of every entry, including those stored
// with no TTL.
func WithMaxAge(d time.Duration) Option {
	return func(o *options) { o.maxAge = d }
}

// WithClock sets the clock used for per-entry expiry.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New returns a cache holding at most size entries. A size of 0 or less
// means DefaultSize.
func New(size int, opts ...Option) *Cache {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if size <= 0 {
		size = DefaultSize
	}
	return &Cache{
		lru: expirable.NewLRU[string, entry](size, nil, o.maxAge),
		now: o.now,
	}
}

// Get implements ezdb.Cache.
func (c *Cache) Get(_ context.Context, key string) ([]byte, error) {
	e, ok := c.lru.Get(key)
	if !ok {
		return nil, nil
	}
	if e.expired(c.now()) {
		c.lru.Remove(key)
		return nil, nil
	}
	return e.data, nil
}

// Set implements ezdb.Cache.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := entry{data: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expires = c.now().Add(ttl)
	}
	c.lru.Add(key, e)
	return nil
}

// Delete implements ezdb.Cache.
func (c *Cache) Delete(_ context.Context, key string) error {
	c.lru.Remove(key)
	return nil
}

// DeletePrefix implements ezdb.Cache.
func (c *Cache) DeletePrefix(_ context.Context, prefix string) error {
	for _, k := range c.lru.Keys() {
		if strings.HasPrefix(k, prefix) {
			c.lru.Remove(k)
		}
	}
	return nil
}

// Clear implements ezdb.Cache.
func (c *Cache) Clear(context.Context) error {
	c.lru.Purge()
	return nil
}

// Len returns the number of entries, including expired ones not yet evicted.
func (c *Cache) Len() int {
	return c.lru.Len()
}

var _ ezdb.Cache = (*Cache)(nil)
