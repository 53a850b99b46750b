package ezdb

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/syssam/ezdb/dialect"
)

// Registry maps entity type names to their types. It owns the per-type
// identity caches and callback lists, and the registry-wide callbacks.
// Types are only ever added.
type Registry struct {
	mu    sync.RWMutex
	types map[string]*EntityType
	order []*EntityType

	hookMu sync.Mutex
	hooks  hooks

	log      *slog.Logger
	cache    Cache
	cacheTTL time.Duration
	ddlLimit int
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used by the registry and its types.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.log = l
		}
	}
}

// WithCache enables caching of selected rows. Cached rows live for ttl, or
// until a write through this registry touches one of their tables. A ttl of
// 0 means no expiry.
func WithCache(c Cache, ttl time.Duration) Option {
	return func(r *Registry) {
		r.cache = c
		r.cacheTTL = ttl
	}
}

// WithDDLConcurrency limits how many CreateTable or DropTable statements
// CreateTables and DropTables run at once. The default is 1. Only backends
// that run statements in parallel benefit: the dialect/sql Backend runs
// every statement on its single open transaction, one at a time.
func WithDDLConcurrency(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.ddlLimit = n
		}
	}
}

// NewRegistry returns an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		types:    make(map[string]*EntityType),
		log:      slog.Default(),
		ddlLimit: 1,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DefaultRegistry is the process-wide registry used by Define and Lookup.
var DefaultRegistry = NewRegistry()

// Define defines and registers an entity type in the DefaultRegistry.
func Define(s Schema) (*EntityType, error) {
	return DefaultRegistry.Define(s)
}

// Lookup returns the entity type registered under name in the DefaultRegistry.
func Lookup(name string) (*EntityType, error) {
	return DefaultRegistry.Lookup(name)
}

// Define builds the entity type described by s and registers it. Every type
// s references must already be defined. A type is defined exactly once.
func (r *Registry) Define(s Schema) (*EntityType, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.types[s.Name]; ok {
		return nil, schemaErrorf(s.Name, "type is already defined")
	}
	t, err := r.build(s)
	if err != nil {
		return nil, err
	}
	r.types[t.name] = t
	r.order = append(r.order, t)
	r.log.Debug("entity type defined", "type", t.name, "table", t.table, "fields", len(t.fields), "references", len(t.refs))
	return t, nil
}

// MustDefine is like Define but panics if the type cannot be defined.
func (r *Registry) MustDefine(s Schema) *EntityType {
	t, err := r.Define(s)
	if err != nil {
		panic(err)
	}
	return t
}

// Lookup returns the entity type registered under name.
func (r *Registry) Lookup(name string) (*EntityType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[name]
	if !ok {
		return nil, NewNotFoundErrorWithKey("entity type", name)
	}
	return t, nil
}

// Types returns the registered types in definition order.
func (r *Registry) Types() []*EntityType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]*EntityType, len(r.order))
	copy(types, r.order)
	return types
}

// CreateTables creates the table of every registered type.
func (r *Registry) CreateTables(ctx context.Context, b dialect.Backend) error {
	return r.eachType(ctx, func(ctx context.Context, t *EntityType) error {
		return t.CreateTable(ctx, b)
	})
}

// DropTables drops the table of every registered type.
func (r *Registry) DropTables(ctx context.Context, b dialect.Backend) error {
	return r.eachType(ctx, func(ctx context.Context, t *EntityType) error {
		return t.DropTable(ctx, b)
	})
}

func (r *Registry) eachType(ctx context.Context, fn func(context.Context, *EntityType) error) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.ddlLimit)
	for _, t := range r.Types() {
		g.Go(func() error {
			return fn(ctx, t)
		})
	}
	return g.Wait()
}

// dependents returns the tables whose joined selects read from table.
func (r *Registry) dependents(table string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var tables []string
	for _, t := range r.order {
		if t.readsTable(table) {
			tables = append(tables, t.table)
		}
	}
	return tables
}
