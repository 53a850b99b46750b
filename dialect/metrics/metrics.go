// Package metrics provides a dialect.Backend decorator that exports
// Prometheus metrics for every backend call.
//
//	b, err := metrics.New(sqlBackend, metrics.WithNamespace("shop"))
//	if err != nil {
//		return err
//	}
//	u, err := userType.New(b, ezdb.Values{"email": "a@x.com"})
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/syssam/ezdb/dialect"
	"github.com/syssam/ezdb/schema/field"
)

// Backend operation labels.
const (
	OpCreateTable = "create_table"
	OpDropTable   = "drop_table"
	OpInsert      = "insert"
	OpSelect      = "select"
	OpSelectJoin  = "select_join"
	OpUpdate      = "update"
	OpDelete      = "delete"
	OpCommit      = "commit"
	OpClose       = "close"
)

// Result labels.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Backend wraps a dialect.Backend and records the number, outcome and
// latency of its calls, plus the number of rows selected.
type Backend struct {
	dialect.Backend
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	rows     *prometheus.CounterVec
}

var _ dialect.Backend = (*Backend)(nil)

type options struct {
	registerer prometheus.Registerer
	namespace  string
	buckets    []float64
	labels     prometheus.Labels
}

// Option configures a metrics Backend.
type Option func(*options)

// WithRegisterer sets the registerer the collectors are registered with.
// The default is prometheus.DefaultRegisterer.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = r
	}
}

// WithNamespace sets the metric namespace. The default is "ezdb".
func WithNamespace(ns string) Option {
	return func(o *options) {
		o.namespace = ns
	}
}

// WithBuckets sets the histogram buckets of the call latency, in seconds.
func WithBuckets(buckets ...float64) Option {
	return func(o *options) {
		o.buckets = buckets
	}
}

// WithConstLabels adds constant labels to every collector, for example the
// database name when several backends are instrumented in one process.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(o *options) {
		o.labels = labels
	}
}

// New wraps b. Collectors that are already registered with the same
// descriptors are reused, so New can be called once per backend instance.
func New(b dialect.Backend, opts ...Option) (*Backend, error) {
	o := &options{
		registerer: prometheus.DefaultRegisterer,
		namespace:  "ezdb",
		buckets:    prometheus.DefBuckets,
	}
	for _, opt := range opts {
		opt(o)
	}
	calls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   o.namespace,
		Subsystem:   "backend",
		Name:        "calls_total",
		Help:        "Number of backend calls by operation, table and result.",
		ConstLabels: o.labels,
	}, []string{"op", "table", "result"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   o.namespace,
		Subsystem:   "backend",
		Name:        "call_duration_seconds",
		Help:        "Latency of backend calls by operation.",
		Buckets:     o.buckets,
		ConstLabels: o.labels,
	}, []string{"op"})
	rows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   o.namespace,
		Subsystem:   "backend",
		Name:        "rows_selected_total",
		Help:        "Number of rows returned by selects by table.",
		ConstLabels: o.labels,
	}, []string{"table"})

	var err error
	if calls, err = register(o.registerer, calls); err != nil {
		return nil, err
	}
	if duration, err = register(o.registerer, duration); err != nil {
		return nil, err
	}
	if rows, err = register(o.registerer, rows); err != nil {
		return nil, err
	}
	return &Backend{Backend: b, calls: calls, duration: duration, rows: rows}, nil
}

func register[C prometheus.Collector](r prometheus.Registerer, c C) (C, error) {
	if r == nil {
		return c, nil
	}
	if err := r.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// Unwrap returns the decorated backend.
func (b *Backend) Unwrap() dialect.Backend {
	return b.Backend
}

func (b *Backend) observe(op, table string, start time.Time, err error) {
	b.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	b.calls.WithLabelValues(op, table, result).Inc()
}

// CreateTable implements dialect.Backend.
func (b *Backend) CreateTable(ctx context.Context, table string, fields []field.Descriptor, primary, unique []string) error {
	start := time.Now()
	err := b.Backend.CreateTable(ctx, table, fields, primary, unique)
	b.observe(OpCreateTable, table, start, err)
	return err
}

// DropTable implements dialect.Backend.
func (b *Backend) DropTable(ctx context.Context, table string) error {
	start := time.Now()
	err := b.Backend.DropTable(ctx, table)
	b.observe(OpDropTable, table, start, err)
	return err
}

// Insert implements dialect.Backend.
func (b *Backend) Insert(ctx context.Context, table string, values dialect.Values) (int64, error) {
	start := time.Now()
	id, err := b.Backend.Insert(ctx, table, values)
	b.observe(OpInsert, table, start, err)
	return id, err
}

// Select implements dialect.Backend.
func (b *Backend) Select(ctx context.Context, table string, fields []string, conds []dialect.Condition, order []dialect.Order, offset, count int) ([]dialect.Row, error) {
	start := time.Now()
	rows, err := b.Backend.Select(ctx, table, fields, conds, order, offset, count)
	b.observe(OpSelect, table, start, err)
	b.rows.WithLabelValues(table).Add(float64(len(rows)))
	return rows, err
}

// SelectJoin implements dialect.Backend.
func (b *Backend) SelectJoin(ctx context.Context, base string, joins []dialect.Join, columns []dialect.Column, conds []dialect.Condition, order []dialect.Order, offset, count int) ([]dialect.Row, error) {
	start := time.Now()
	rows, err := b.Backend.SelectJoin(ctx, base, joins, columns, conds, order, offset, count)
	b.observe(OpSelectJoin, base, start, err)
	b.rows.WithLabelValues(base).Add(float64(len(rows)))
	return rows, err
}

// Update implements dialect.Backend.
func (b *Backend) Update(ctx context.Context, table string, values dialect.Values, conds []dialect.Condition) error {
	start := time.Now()
	err := b.Backend.Update(ctx, table, values, conds)
	b.observe(OpUpdate, table, start, err)
	return err
}

// Delete implements dialect.Backend.
func (b *Backend) Delete(ctx context.Context, table string, conds []dialect.Condition) error {
	start := time.Now()
	err := b.Backend.Delete(ctx, table, conds)
	b.observe(OpDelete, table, start, err)
	return err
}

// Commit implements dialect.Backend.
func (b *Backend) Commit(ctx context.Context) error {
	start := time.Now()
	err := b.Backend.Commit(ctx)
	b.observe(OpCommit, "", start, err)
	return err
}

// Close implements dialect.Backend.
func (b *Backend) Close() error {
	start := time.Now()
	err := b.Backend.Close()
	b.observe(OpClose, "", start, err)
	return err
}
