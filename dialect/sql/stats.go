package sql

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// QueryStats counts the statements that passed through a StatsDriver.
type QueryStats struct {
	queries  atomic.Int64
	execs    atomic.Int64
	duration atomic.Int64
	slow     atomic.Int64
	errors   atomic.Int64
}

// Stats returns a snapshot of the counters.
func (s *QueryStats) Stats() StatsSnapshot {
	return StatsSnapshot{
		Queries:  s.queries.Load(),
		Execs:    s.execs.Load(),
		Duration: time.Duration(s.duration.Load()),
		Slow:     s.slow.Load(),
		Errors:   s.errors.Load(),
	}
}

// StatsSnapshot is a point-in-time copy of QueryStats.
type StatsSnapshot struct {
	Queries  int64
	Execs    int64
	Duration time.Duration
	Slow     int64
	Errors   int64
}

func (s StatsSnapshot) String() string {
	return fmt.Sprintf("queries=%d execs=%d duration=%s slow=%d errors=%d",
		s.Queries, s.Execs, s.Duration, s.Slow, s.Errors)
}

// StatsDriver wraps a TxDriver and counts the statements run on it and on
// its transactions.
type StatsDriver struct {
	TxDriver
	stats     QueryStats
	threshold time.Duration
	log       *slog.Logger
}

// StatsOption configures a StatsDriver.
type StatsOption func(*StatsDriver)

// WithSlowThreshold sets the duration above which a statement counts as
// slow. The default is 100ms.
func WithSlowThreshold(d time.Duration) StatsOption {
	return func(s *StatsDriver) {
		s.threshold = d
	}
}

// WithSlowQueryLogger logs slow statements to l at warn level.
func WithSlowQueryLogger(l *slog.Logger) StatsOption {
	return func(s *StatsDriver) {
		s.log = l
	}
}

// NewStatsDriver wraps drv.
//
//	drv, _ := sql.Open("postgres", dsn)
//	stats := sql.NewStatsDriver(drv, sql.WithSlowThreshold(200*time.Millisecond))
//	b := sql.NewBackend(stats)
//	...
//	fmt.Println(stats.QueryStats().Stats())
func NewStatsDriver(drv TxDriver, opts ...StatsOption) *StatsDriver {
	s := &StatsDriver{TxDriver: drv, threshold: 100 * time.Millisecond}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// QueryStats returns the counters of the driver.
func (d *StatsDriver) QueryStats() *QueryStats {
	return &d.stats
}

// Query implements Querier.
func (d *StatsDriver) Query(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := d.TxDriver.Query(ctx, query, args, v)
	d.record(ctx, &d.stats.queries, query, args, start, err)
	return err
}

// Exec implements Querier.
func (d *StatsDriver) Exec(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := d.TxDriver.Exec(ctx, query, args, v)
	d.record(ctx, &d.stats.execs, query, args, start, err)
	return err
}

func (d *StatsDriver) record(ctx context.Context, counter *atomic.Int64, query string, args any, start time.Time, err error) {
	took := time.Since(start)
	counter.Add(1)
	d.stats.duration.Add(int64(took))
	if err != nil {
		d.stats.errors.Add(1)
	}
	if took <= d.threshold {
		return
	}
	d.stats.slow.Add(1)
	if d.log != nil {
		d.log.WarnContext(ctx, "slow query detected", "duration", took, "query", query, "args", args)
	}
}

// Tx starts a transaction whose statements are counted too.
func (d *StatsDriver) Tx(ctx context.Context) (TxQuerier, error) {
	tx, err := d.TxDriver.Tx(ctx)
	if err != nil {
		return nil, err
	}
	return &statsTx{TxQuerier: tx, drv: d}, nil
}

type statsTx struct {
	TxQuerier
	drv *StatsDriver
}

func (tx *statsTx) Query(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := tx.TxQuerier.Query(ctx, query, args, v)
	tx.drv.record(ctx, &tx.drv.stats.queries, query, args, start, err)
	return err
}

func (tx *statsTx) Exec(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := tx.TxQuerier.Exec(ctx, query, args, v)
	tx.drv.record(ctx, &tx.drv.stats.execs, query, args, start, err)
	return err
}

// DebugDriver wraps a TxDriver and logs every statement and transaction
// boundary at debug level.
type DebugDriver struct {
	TxDriver
	log *slog.Logger
}

// DebugOption configures a DebugDriver.
type DebugOption func(*DebugDriver)

// DebugWithLogger sets the logger. The default is slog.Default().
func DebugWithLogger(l *slog.Logger) DebugOption {
	return func(d *DebugDriver) {
		d.log = l
	}
}

// NewDebugDriver wraps drv.
func NewDebugDriver(drv TxDriver, opts ...DebugOption) *DebugDriver {
	d := &DebugDriver{TxDriver: drv, log: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Query implements Querier.
func (d *DebugDriver) Query(ctx context.Context, query string, args, v any) error {
	d.log.DebugContext(ctx, "query", "query", query, "args", args)
	return d.TxDriver.Query(ctx, query, args, v)
}

// Exec implements Querier.
func (d *DebugDriver) Exec(ctx context.Context, query string, args, v any) error {
	d.log.DebugContext(ctx, "exec", "query", query, "args", args)
	return d.TxDriver.Exec(ctx, query, args, v)
}

// Tx starts a transaction whose statements are logged too.
func (d *DebugDriver) Tx(ctx context.Context) (TxQuerier, error) {
	d.log.DebugContext(ctx, "begin transaction")
	tx, err := d.TxDriver.Tx(ctx)
	if err != nil {
		return nil, err
	}
	return &debugTx{TxQuerier: tx, log: d.log}, nil
}

type debugTx struct {
	TxQuerier
	log *slog.Logger
}

func (tx *debugTx) Query(ctx context.Context, query string, args, v any) error {
	tx.log.DebugContext(ctx, "tx query", "query", query, "args", args)
	return tx.TxQuerier.Query(ctx, query, args, v)
}

func (tx *debugTx) Exec(ctx context.Context, query string, args, v any) error {
	tx.log.DebugContext(ctx, "tx exec", "query", query, "args", args)
	return tx.TxQuerier.Exec(ctx, query, args, v)
}

func (tx *debugTx) Commit() error {
	tx.log.Debug("commit transaction")
	return tx.TxQuerier.Commit()
}

func (tx *debugTx) Rollback() error {
	tx.log.Debug("rollback transaction")
	return tx.TxQuerier.Rollback()
}

var (
	_ TxDriver  = (*StatsDriver)(nil)
	_ TxQuerier = (*statsTx)(nil)
	_ TxDriver  = (*DebugDriver)(nil)
	_ TxQuerier = (*debugTx)(nil)
)
