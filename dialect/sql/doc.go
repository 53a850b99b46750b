// Package sql implements dialect.Backend for SQL databases reached through
// database/sql.
//
// # Drivers
//
// Open wraps database/sql.Open and returns a Driver for MySQL
// (github.com/go-sql-driver/mysql), SQLite (modernc.org/sqlite) or Postgres
// (github.com/lib/pq, or github.com/jackc/pgx/v5/stdlib registered as "pgx").
// A Driver can be wrapped with NewStatsDriver for query statistics and slow
// query detection, or with NewDebugDriver to log every statement.
//
// # Backend
//
// A Backend runs the statements of the entity core:
//
//	b, err := sql.OpenBackend("sqlite", "file:app.db")
//	if err != nil {
//		return err
//	}
//	defer b.Close()
//
// Writes happen in a transaction that the first statement opens and Commit
// ends. Close commits and releases the connection pool.
//
// # Builder
//
// Statements are written by a Builder, which quotes identifiers and writes
// placeholders per dialect:
//
//	query, args, err := sql.Dialect(dialect.Postgres).
//		Select("user", []string{"id", "name"}, []dialect.Condition{dialect.Where("name", "Ann")}, nil, 0, 10).
//		Query()
//	// SELECT "id", "name" FROM "user" WHERE "name" = $1 LIMIT 10
//
// An offset and count of 0 writes no LIMIT clause at all.
//
// # Errors
//
// IsUniqueConstraintError, IsForeignKeyConstraintError and
// IsCheckConstraintError classify driver errors by their native codes.
package sql
