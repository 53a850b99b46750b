// Package dialect defines the storage contract of ezdb and the value-carrying
// descriptors used to talk to it.
//
// The entity core never writes SQL. It names tables and fields, describes
// what it wants with Condition, Order, Join and Column values, and hands
// those to a Backend. Each backend quotes identifiers and renders statements
// in its own dialect.
//
// # Supported Dialects
//
//	dialect.MySQL    = "mysql"
//	dialect.SQLite   = "sqlite"
//	dialect.Postgres = "postgres"
//
// # Backend Interface
//
//	type Backend interface {
//	    CreateTable(ctx, table, fields, primary, unique) error
//	    DropTable(ctx, table) error
//	    Insert(ctx, table, values) (int64, error)
//	    Select(ctx, table, fields, conds, order, offset, count) ([]Row, error)
//	    SelectJoin(ctx, base, joins, columns, conds, order, offset, count) ([]Row, error)
//	    Update(ctx, table, values, conds) error
//	    Delete(ctx, table, conds) error
//	    Commit(ctx) error
//	    Close() error
//	}
//
// An offset and count of zero both mean "no limit": a backend must omit the
// LIMIT clause entirely in that case.
//
// # Descriptors
//
//	dialect.Where("id", 5)                         // id = 5
//	dialect.WhereOp("name", dialect.Like, "%ann%") // name LIKE '%ann%'
//	dialect.OrderDesc("created_at")                // ORDER BY created_at DESC
//
// Conditions are combined with AND.
//
// # Sub-packages
//
//   - dialect/sql: database/sql backend for MySQL, SQLite and Postgres
//   - dialect/metrics: Prometheus instrumentation for any Backend
package dialect
