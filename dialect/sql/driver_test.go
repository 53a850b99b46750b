package sql

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/ezdb/dialect"
)

func TestDialectOf(t *testing.T) {
	for name, want := range map[string]string{
		"mysql":    dialect.MySQL,
		"sqlite":   dialect.SQLite,
		"sqlite3":  dialect.SQLite,
		"postgres": dialect.Postgres,
		"pgx":      dialect.Postgres,
	} {
		got, err := DialectOf(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
	_, err := DialectOf("oracle")
	require.Error(t, err)
}

func TestOpenSQLite(t *testing.T) {
	drv, err := Open("sqlite", ":memory:")
	require.NoError(t, err)
	defer drv.Close()
	assert.Equal(t, dialect.SQLite, drv.Dialect())
	assert.Equal(t, 1, drv.DB().Stats().MaxOpenConnections)
}

func TestOpenDB(t *testing.T) {
	for _, name := range []string{dialect.Postgres, dialect.MySQL, dialect.SQLite} {
		t.Run(name, func(t *testing.T) {
			db, _, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()
			assert.Equal(t, name, OpenDB(name, db).Dialect())
		})
	}
}

func TestConnExec(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()
	drv := OpenDB(dialect.SQLite, db)
	ctx := context.Background()

	mock.ExpectExec(`INSERT INTO "tag" ("name") VALUES (?)`).
		WithArgs("go").
		WillReturnResult(sqlmock.NewResult(7, 1))
	var res Result
	require.NoError(t, drv.Exec(ctx, `INSERT INTO "tag" ("name") VALUES (?)`, []any{"go"}, &res))
	id, err := res.LastInsertId()
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)

	mock.ExpectExec(`DELETE FROM "tag"`).WillReturnError(errors.New("locked"))
	err = drv.Exec(ctx, `DELETE FROM "tag"`, []any{}, nil)
	require.EqualError(t, err, "dialect/sql: exec: locked")

	require.Error(t, drv.Exec(ctx, `DELETE FROM "tag"`, "go", nil))
	require.Error(t, drv.Exec(ctx, `DELETE FROM "tag"`, []any{}, new(int)))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConnQuery(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()
	drv := OpenDB(dialect.Postgres, db)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT "name" FROM "tag" WHERE "id" = $1`).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("go").AddRow("sql"))
	rows := &Rows{}
	require.NoError(t, drv.Query(ctx, `SELECT "name" FROM "tag" WHERE "id" = $1`, []any{1}, rows))
	scanned, err := ScanRows(rows)
	require.NoError(t, err)
	require.NoError(t, rows.Close())
	assert.Equal(t, []dialect.Row{{"name": "go"}, {"name": "sql"}}, scanned)

	mock.ExpectQuery(`SELECT 1`).WillReturnError(errors.New("gone"))
	require.EqualError(t, drv.Query(ctx, `SELECT 1`, []any{}, &Rows{}), "dialect/sql: query: gone")
	require.Error(t, drv.Query(ctx, `SELECT 1`, []any{}, nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDriverTx(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()
	drv := OpenDB(dialect.MySQL, db)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `tag` SET `name` = ?").WithArgs("go").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()
	tx, err := drv.Tx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Exec(ctx, "UPDATE `tag` SET `name` = ?", []any{"go"}, nil))
	require.NoError(t, tx.Commit())

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `tag`").WillReturnError(errors.New("locked"))
	mock.ExpectRollback()
	tx, err = drv.Tx(ctx)
	require.NoError(t, err)
	require.Error(t, tx.Exec(ctx, "DELETE FROM `tag`", []any{}, nil))
	require.NoError(t, tx.Rollback())
	require.NoError(t, mock.ExpectationsWereMet())
}
