package dialect

import (
	"context"

	"github.com/syssam/ezdb/schema/field"
)

// Dialect names for external usage.
const (
	MySQL    = "mysql"
	SQLite   = "sqlite"
	Postgres = "postgres"
)

type (
	// Row is a single result row keyed by column name or alias.
	Row map[string]any

	// Values maps column names to the values written by insert and update.
	Values map[string]any
)

// Backend is the storage contract the entity core is written against. It
// must be implemented once per storage engine. Identifiers are passed
// unquoted; quoting is the backend's concern.
type Backend interface {
	// CreateTable creates the table if it does not exist yet.
	CreateTable(ctx context.Context, table string, fields []field.Descriptor, primary, unique []string) error

	// DropTable drops the table if it exists.
	DropTable(ctx context.Context, table string) error

	// Insert inserts a single row. The returned id is the value assigned to
	// an auto-increment column, or 0 if the backend cannot report one.
	// Failures surface the backend's native error.
	Insert(ctx context.Context, table string, values Values) (int64, error)

	// Select returns the rows of table matching all conds. A nil fields
	// slice selects every column.
	Select(ctx context.Context, table string, fields []string, conds []Condition, order []Order, offset, count int) ([]Row, error)

	// SelectJoin is like Select, but joins the base table with the given
	// joins and selects the given qualified columns under their aliases.
	SelectJoin(ctx context.Context, base string, joins []Join, columns []Column, conds []Condition, order []Order, offset, count int) ([]Row, error)

	// Update sets values on the rows matching all conds.
	Update(ctx context.Context, table string, values Values, conds []Condition) error

	// Delete deletes the rows matching all conds.
	Delete(ctx context.Context, table string, conds []Condition) error

	// Commit makes prior writes durable.
	Commit(ctx context.Context) error

	// Close commits and releases the connection.
	Close() error
}
