package sql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"

	// Registers the "pgx" database/sql driver.
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/syssam/ezdb/dialect"
)

// Querier runs statements. Driver, Tx and the statistics and debug
// wrappers implement it; a Backend is built on one.
type Querier interface {
	// Exec executes a statement. v is nil or a *Result.
	Exec(ctx context.Context, query string, args, v any) error
	// Query executes a query and stores the rows in v, a *Rows.
	Query(ctx context.Context, query string, args, v any) error
}

// TxQuerier is a Querier bound to a transaction.
type TxQuerier interface {
	Querier
	Commit() error
	Rollback() error
}

// TxDriver is a Querier that can start transactions.
type TxDriver interface {
	Querier
	// Tx starts a transaction.
	Tx(context.Context) (TxQuerier, error)
	// Dialect returns the dialect name, e.g. dialect.SQLite.
	Dialect() string
	// Close releases the underlying connection pool.
	Close() error
}

// Driver is a TxDriver implementation for SQL based databases.
type Driver struct {
	Conn
	dialect string
}

// NewDriver creates a new Driver with the given Conn and dialect.
func NewDriver(dialect string, c Conn) *Driver {
	return &Driver{dialect: dialect, Conn: c}
}

// Open wraps the database/sql.Open method. driverName is the registered
// database/sql driver ("mysql", "sqlite", "postgres" or "pgx"); the dialect
// is derived from it.
func Open(driverName, source string) (*Driver, error) {
	name, err := DialectOf(driverName)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driverName, source)
	if err != nil {
		return nil, err
	}
	if name == dialect.SQLite {
		// In-memory databases live and die with their connection.
		db.SetMaxOpenConns(1)
	}
	return NewDriver(name, Conn{db, name}), nil
}

// DialectOf returns the dialect of a registered database/sql driver name.
func DialectOf(driverName string) (string, error) {
	switch driverName {
	case dialect.MySQL:
		return dialect.MySQL, nil
	case dialect.SQLite, "sqlite3":
		return dialect.SQLite, nil
	case dialect.Postgres, "pgx":
		return dialect.Postgres, nil
	default:
		return "", fmt.Errorf("dialect/sql: unsupported driver %q", driverName)
	}
}

// OpenDB wraps the given database/sql.DB method with a Driver.
func OpenDB(dialect string, db *sql.DB) *Driver {
	return NewDriver(dialect, Conn{db, dialect})
}

// DB returns the underlying *sql.DB instance.
func (d Driver) DB() *sql.DB {
	return d.ExecQuerier.(*sql.DB)
}

// Dialect returns the dialect name.
func (d Driver) Dialect() string {
	// If the underlying driver is wrapped with a telemetry driver.
	for _, name := range []string{dialect.MySQL, dialect.SQLite, dialect.Postgres} {
		if strings.HasPrefix(d.dialect, name) {
			return name
		}
	}
	return d.dialect
}

// Tx starts and returns a transaction. The transaction is bound to ctx
// the way database/sql binds it: it is rolled back when ctx is done.
func (d *Driver) Tx(ctx context.Context) (TxQuerier, error) {
	tx, err := d.DB().BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &Tx{
		Conn: Conn{tx, d.dialect},
		Tx:   tx,
	}, nil
}

// Close closes the underlying connection.
func (d *Driver) Close() error { return d.DB().Close() }

// Tx implements the TxQuerier interface.
type Tx struct {
	Conn
	driver.Tx
}

// ExecQuerier wraps the standard Exec and Query methods.
type ExecQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Conn implements Querier given ExecQuerier.
type Conn struct {
	ExecQuerier
	dialect string
}

// Exec implements the Querier.Exec method.
func (c Conn) Exec(ctx context.Context, query string, args, v any) error {
	argv, ok := args.([]any)
	if !ok {
		return fmt.Errorf("dialect/sql: invalid type %T. expect []any for args", args)
	}
	switch v := v.(type) {
	case nil:
		if _, err := c.ExecContext(ctx, query, argv...); err != nil {
			return fmt.Errorf("dialect/sql: exec: %w", err)
		}
	case *sql.Result:
		res, err := c.ExecContext(ctx, query, argv...)
		if err != nil {
			return fmt.Errorf("dialect/sql: exec: %w", err)
		}
		*v = res
	default:
		return fmt.Errorf("dialect/sql: invalid type %T. expect *sql.Result", v)
	}
	return nil
}

// Query implements the Querier.Query method.
func (c Conn) Query(ctx context.Context, query string, args, v any) error {
	vr, ok := v.(*Rows)
	if !ok {
		return fmt.Errorf("dialect/sql: invalid type %T. expect *sql.Rows", v)
	}
	argv, ok := args.([]any)
	if !ok {
		return fmt.Errorf("dialect/sql: invalid type %T. expect []any for args", args)
	}
	rows, err := c.QueryContext(ctx, query, argv...)
	if err != nil {
		return fmt.Errorf("dialect/sql: query: %w", err)
	}
	*vr = Rows{rows}
	return nil
}

var (
	_ TxDriver  = (*Driver)(nil)
	_ TxQuerier = (*Tx)(nil)
)

type (
	// Rows wraps the sql.Rows to avoid locks copy.
	Rows struct{ ColumnScanner }
	// Result is an alias to sql.Result.
	Result = sql.Result
)

// ColumnScanner is the interface that wraps the standard
// sql.Rows methods used for scanning database rows.
type ColumnScanner interface {
	Close() error
	ColumnTypes() ([]*sql.ColumnType, error)
	Columns() ([]string, error)
	Err() error
	Next() bool
	NextResultSet() bool
	Scan(dest ...any) error
}
