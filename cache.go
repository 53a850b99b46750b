package ezdb

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/syssam/ezdb/dialect"
)

// Cache is the interface for caching selected rows.
// Users should implement this interface with their preferred caching solution
// (e.g., Redis, Memcached, in-memory). The cache/memory package provides an
// in-process implementation.
//
// A registry assumes its cache is only filled from one backend.
type Cache interface {
	// Get retrieves a value from the cache.
	// Returns nil, nil if the key doesn't exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in the cache with an optional TTL.
	// If ttl is 0, the value should not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from the cache.
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes all values with the given prefix.
	DeletePrefix(ctx context.Context, prefix string) error

	// Clear removes all values from the cache.
	Clear(ctx context.Context) error
}

// CacheKey identifies the rows of one select.
type CacheKey struct {
	Table      string
	Operation  string
	Predicates string
	OrderBy    string
	Limit      int
	Offset     int
}

// String returns the string representation of the cache key. Keys start
// with the table name and a colon, so that all keys of a table share the
// prefix Table+":".
func (k CacheKey) String() string {
	return k.Table + ":" + k.Operation + ":" + k.Predicates + ":" + k.OrderBy +
		":" + strconv.Itoa(k.Limit) + ":" + strconv.Itoa(k.Offset)
}

// Cache operations.
const (
	cacheSelect = "select"
	cacheJoin   = "join"
)

func newCacheKey(table, op string, fields []string, conds []dialect.Condition, order []dialect.Order, offset, count int) CacheKey {
	preds := make([]string, 0, len(conds))
	for _, c := range conds {
		preds = append(preds, fmt.Sprintf("%s.%s %s %T(%v)", c.Table, c.Field, c.Op, c.Value, c.Value))
	}
	orders := make([]string, 0, len(order))
	for _, o := range order {
		orders = append(orders, o.String())
	}
	if len(fields) > 0 {
		op += "(" + strings.Join(fields, ",") + ")"
	}
	return CacheKey{
		Table:      table,
		Operation:  op,
		Predicates: strings.Join(preds, " AND "),
		OrderBy:    strings.Join(orders, ","),
		Limit:      count,
		Offset:     offset,
	}
}

// cached returns the rows stored under key, or calls load and stores its
// result. Cache failures are logged and fall through to load.
func (t *EntityType) cached(ctx context.Context, key CacheKey, load func() ([]dialect.Row, error)) ([]dialect.Row, error) {
	r := t.reg
	if r.cache == nil {
		return load()
	}
	k := key.String()
	data, err := r.cache.Get(ctx, k)
	switch {
	case err != nil:
		r.log.WarnContext(ctx, "cache get failed", "key", k, "error", err)
	case data != nil:
		rows, err := decodeRows(data)
		if err == nil {
			r.log.DebugContext(ctx, "cache hit", "key", k, "rows", len(rows))
			return rows, nil
		}
		r.log.WarnContext(ctx, "decoding cached rows", "key", k, "error", err)
	default:
		r.log.DebugContext(ctx, "cache miss", "key", k)
	}
	rows, err := load()
	if err != nil {
		return nil, err
	}
	data, err = encodeRows(rows)
	if err != nil {
		r.log.WarnContext(ctx, "encoding rows for cache", "key", k, "error", err)
		return rows, nil
	}
	if err := r.cache.Set(ctx, k, data, r.cacheTTL); err != nil {
		r.log.WarnContext(ctx, "cache set failed", "key", k, "error", err)
	}
	return rows, nil
}

// invalidate drops the cached rows of every type whose selects read t's table.
func (t *EntityType) invalidate(ctx context.Context) {
	r := t.reg
	if r.cache == nil {
		return
	}
	for _, table := range r.dependents(t.table) {
		if err := r.cache.DeletePrefix(ctx, table+":"); err != nil {
			r.log.WarnContext(ctx, "cache invalidation failed", "table", table, "error", err)
		}
	}
}

func encodeRows(rows []dialect.Row) ([]byte, error) {
	plain := make([]map[string]any, len(rows))
	for i, row := range rows {
		plain[i] = row
	}
	return msgpack.Marshal(plain)
}

func decodeRows(data []byte) ([]dialect.Row, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.UseLooseInterfaceDecoding(true)
	var plain []map[string]any
	if err := dec.Decode(&plain); err != nil {
		return nil, err
	}
	rows := make([]dialect.Row, len(plain))
	for i, row := range plain {
		rows[i] = row
	}
	return rows, nil
}
