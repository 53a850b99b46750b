package sql

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/syssam/ezdb/dialect"
	"github.com/syssam/ezdb/schema/field"
)

// savepoint guards single Postgres statements inside the open transaction,
// since a failed statement otherwise aborts the whole transaction.
const savepoint = "ezdb_stmt"

// Backend implements dialect.Backend on top of a TxDriver.
//
// Writes and reads run in a transaction that is opened by the first
// statement and ended by Commit. Statements are serialised; a Backend is
// safe for concurrent use.
type Backend struct {
	drv     TxDriver
	dialect string
	log     *slog.Logger

	mu   sync.Mutex
	tx   TxQuerier
	auto map[string]string
}

// BackendOption configures a Backend.
type BackendOption func(*Backend)

// WithLogger sets the logger used for transaction events.
func WithLogger(l *slog.Logger) BackendOption {
	return func(b *Backend) {
		if l != nil {
			b.log = l
		}
	}
}

// WithAutoIncrement declares the auto-increment column of a table that was
// not created through this backend. Postgres inserts use it to return the
// generated id.
func WithAutoIncrement(table, column string) BackendOption {
	return func(b *Backend) {
		b.auto[table] = column
	}
}

// NewBackend returns a Backend that runs its statements on drv.
func NewBackend(drv TxDriver, opts ...BackendOption) *Backend {
	b := &Backend{
		drv:     drv,
		dialect: drv.Dialect(),
		log:     slog.Default(),
		auto:    make(map[string]string),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// OpenBackend opens a database with Open and returns a Backend for it.
func OpenBackend(driverName, source string, opts ...BackendOption) (*Backend, error) {
	drv, err := Open(driverName, source)
	if err != nil {
		return nil, err
	}
	return NewBackend(drv, opts...), nil
}

// Dialect returns the dialect name of the backend.
func (b *Backend) Dialect() string { return b.dialect }

// Driver returns the driver the backend runs its statements on.
func (b *Backend) Driver() TxDriver { return b.drv }

// querier returns the open transaction, or begins one. b.mu must be held.
func (b *Backend) querier(ctx context.Context) (Querier, error) {
	if b.tx != nil {
		return b.tx, nil
	}
	// The transaction outlives the statement that opens it and ends only
	// with Commit or Rollback.
	tx, err := b.drv.Tx(context.WithoutCancel(ctx))
	if err != nil {
		return nil, fmt.Errorf("dialect/sql: begin transaction: %w", err)
	}
	b.log.DebugContext(ctx, "transaction started", "dialect", b.dialect)
	b.tx = tx
	return tx, nil
}

// exec runs a write statement. On Postgres the statement is wrapped in a
// savepoint, so that a failure leaves the transaction usable.
func (b *Backend) exec(ctx context.Context, builder *Builder, res *Result) error {
	query, args, err := builder.Query()
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	q, err := b.querier(ctx)
	if err != nil {
		return err
	}
	return b.guard(ctx, q, func() error {
		if res != nil {
			return q.Exec(ctx, query, args, res)
		}
		return q.Exec(ctx, query, args, nil)
	})
}

func (b *Backend) guard(ctx context.Context, q Querier, fn func() error) error {
	if b.dialect != dialect.Postgres {
		return fn()
	}
	if err := q.Exec(ctx, "SAVEPOINT "+savepoint, []any{}, nil); err != nil {
		return err
	}
	if err := fn(); err != nil {
		if rerr := q.Exec(ctx, "ROLLBACK TO SAVEPOINT "+savepoint, []any{}, nil); rerr != nil {
			return errors.Join(err, rerr)
		}
		return err
	}
	return q.Exec(ctx, "RELEASE SAVEPOINT "+savepoint, []any{}, nil)
}

// query runs a query and returns its rows.
func (b *Backend) query(ctx context.Context, builder *Builder) ([]dialect.Row, error) {
	query, args, err := builder.Query()
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	q, err := b.querier(ctx)
	if err != nil {
		return nil, err
	}
	var result []dialect.Row
	err = b.guard(ctx, q, func() error {
		rows := &Rows{}
		if err := q.Query(ctx, query, args, rows); err != nil {
			return err
		}
		defer rows.Close()
		result, err = ScanRows(rows)
		return err
	})
	return result, err
}

// CreateTable implements dialect.Backend. The statements are planned by
// atlas and run only if the table does not exist yet.
func (b *Backend) CreateTable(ctx context.Context, table string, fields []field.Descriptor, primary, unique []string) error {
	t, err := Table(table, b.dialect, fields, primary, unique)
	if err != nil {
		return err
	}
	changes, err := PlanCreateTable(ctx, b.dialect, t)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, fd := range fields {
		if fd.Has(field.AutoIncrement) {
			b.auto[table] = fd.Name
		}
	}
	q, err := b.querier(ctx)
	if err != nil {
		return err
	}
	var exists bool
	err = b.guard(ctx, q, func() error {
		rows := &Rows{}
		if err := q.Query(ctx, tableExists(b.dialect), []any{table}, rows); err != nil {
			return err
		}
		defer rows.Close()
		res, err := ScanRows(rows)
		if err != nil {
			return err
		}
		if len(res) == 1 {
			for _, v := range res[0] {
				n, _ := toInt64(v)
				exists = n > 0
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("dialect/sql: check table %q: %w", table, err)
	}
	if exists {
		return nil
	}
	for _, c := range changes {
		args := c.Args
		if args == nil {
			args = []any{}
		}
		if err := b.guard(ctx, q, func() error { return q.Exec(ctx, c.Cmd, args, nil) }); err != nil {
			return fmt.Errorf("dialect/sql: %s: %w", c.Comment, err)
		}
	}
	b.log.DebugContext(ctx, "table created", "table", table, "statements", len(changes))
	return nil
}

// DropTable implements dialect.Backend.
func (b *Backend) DropTable(ctx context.Context, table string) error {
	return b.exec(ctx, Dialect(b.dialect).DropTable(table), nil)
}

// Insert implements dialect.Backend. The returned id is 0 when the driver
// cannot report the id, or on Postgres when the table's auto-increment
// column is unknown.
func (b *Backend) Insert(ctx context.Context, table string, values dialect.Values) (int64, error) {
	if b.dialect == dialect.Postgres {
		b.mu.Lock()
		col := b.auto[table]
		b.mu.Unlock()
		if col == "" {
			return 0, b.exec(ctx, Dialect(b.dialect).Insert(table, values, ""), nil)
		}
		rows, err := b.query(ctx, Dialect(b.dialect).Insert(table, values, col))
		if err != nil {
			return 0, err
		}
		if len(rows) == 0 {
			return 0, nil
		}
		id, _ := toInt64(rows[0][col])
		return id, nil
	}
	var res Result
	if err := b.exec(ctx, Dialect(b.dialect).Insert(table, values, ""), &res); err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, nil
	}
	return id, nil
}

// Select implements dialect.Backend.
func (b *Backend) Select(ctx context.Context, table string, fields []string, conds []dialect.Condition, order []dialect.Order, offset, count int) ([]dialect.Row, error) {
	return b.query(ctx, Dialect(b.dialect).Select(table, fields, conds, order, offset, count))
}

// SelectJoin implements dialect.Backend.
func (b *Backend) SelectJoin(ctx context.Context, base string, joins []dialect.Join, columns []dialect.Column, conds []dialect.Condition, order []dialect.Order, offset, count int) ([]dialect.Row, error) {
	return b.query(ctx, Dialect(b.dialect).SelectJoin(base, joins, columns, conds, order, offset, count))
}

// Update implements dialect.Backend. Updating no columns is a no-op.
func (b *Backend) Update(ctx context.Context, table string, values dialect.Values, conds []dialect.Condition) error {
	if len(values) == 0 {
		return nil
	}
	return b.exec(ctx, Dialect(b.dialect).Update(table, values, conds), nil)
}

// Delete implements dialect.Backend.
func (b *Backend) Delete(ctx context.Context, table string, conds []dialect.Condition) error {
	return b.exec(ctx, Dialect(b.dialect).Delete(table, conds), nil)
}

// Commit implements dialect.Backend. It is a no-op if no statement ran
// since the last commit.
func (b *Backend) Commit(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.tx == nil {
		return nil
	}
	tx := b.tx
	b.tx = nil
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("dialect/sql: commit: %w", err)
	}
	b.log.DebugContext(ctx, "transaction committed", "dialect", b.dialect)
	return nil
}

// Rollback discards the writes since the last commit.
func (b *Backend) Rollback(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.tx == nil {
		return nil
	}
	tx := b.tx
	b.tx = nil
	if err := tx.Rollback(); err != nil {
		return fmt.Errorf("dialect/sql: rollback: %w", err)
	}
	b.log.DebugContext(ctx, "transaction rolled back", "dialect", b.dialect)
	return nil
}

// Close implements dialect.Backend. It commits and closes the driver.
func (b *Backend) Close() error {
	err := b.Commit(context.Background())
	return errors.Join(err, b.drv.Close())
}

var _ dialect.Backend = (*Backend)(nil)

// ScanRows reads all rows into maps keyed by column name. Driver values are
// normalised: textual []byte values become strings, or numbers for numeric
// columns; binary columns keep their []byte.
func ScanRows(rows ColumnScanner) ([]dialect.Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("dialect/sql: scan: columns: %w", err)
	}
	types := make([]string, len(columns))
	if cts, err := rows.ColumnTypes(); err == nil {
		for i, ct := range cts {
			types[i] = strings.ToUpper(ct.DatabaseTypeName())
		}
	}
	var result []dialect.Row
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("dialect/sql: scan: %w", err)
		}
		row := make(dialect.Row, len(columns))
		for i, c := range columns {
			row[c] = normalize(values[i], types[i])
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dialect/sql: scan: %w", err)
	}
	return result, nil
}

func normalize(v any, dbType string) any {
	raw, ok := v.([]byte)
	if !ok {
		return v
	}
	switch {
	case strings.Contains(dbType, "BLOB"), strings.Contains(dbType, "BINARY"), dbType == "BYTEA":
		return raw
	case strings.Contains(dbType, "INT"):
		if n, err := strconv.ParseInt(string(raw), 10, 64); err == nil {
			return n
		}
	case strings.Contains(dbType, "FLOAT"), strings.Contains(dbType, "DOUBLE"),
		strings.Contains(dbType, "DECIMAL"), strings.Contains(dbType, "REAL"):
		if f, err := strconv.ParseFloat(string(raw), 64); err == nil {
			return f
		}
	}
	return string(raw)
}

func toInt64(v any) (int64, bool) {
	switch v := v.(type) {
	case int64:
		return v, true
	case int32:
		return int64(v), true
	case int:
		return int64(v), true
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}
