package sql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/ezdb/dialect"
)

func TestBuilderQuote(t *testing.T) {
	assert.Equal(t, "`order`", Dialect(dialect.MySQL).Quote("order"))
	assert.Equal(t, `"order"`, Dialect(dialect.SQLite).Quote("order"))
	assert.Equal(t, `"a""b"`, Dialect(dialect.Postgres).Quote(`a"b`))
	assert.Equal(t, "`a``b`", Dialect(dialect.MySQL).Quote("a`b"))
}

func TestBuilderInsert(t *testing.T) {
	values := dialect.Values{"name": "Ann", "email": "a@x.com"}

	query, args, err := Dialect(dialect.MySQL).Insert("user", values, "").Query()
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO `user` (`email`, `name`) VALUES (?, ?)", query)
	assert.Equal(t, []any{"a@x.com", "Ann"}, args)

	query, args, err = Dialect(dialect.Postgres).Insert("user", values, "id").Query()
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "user" ("email", "name") VALUES ($1, $2) RETURNING "id"`, query)
	assert.Equal(t, []any{"a@x.com", "Ann"}, args)

	query, _, err = Dialect(dialect.SQLite).Insert("user", nil, "").Query()
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "user" DEFAULT VALUES`, query)
}

func TestBuilderSelect(t *testing.T) {
	conds := []dialect.Condition{
		dialect.Where("name", "Ann"),
		dialect.WhereOp("age", dialect.GTE, 18),
		dialect.Where("deleted_at", nil),
	}
	order := []dialect.Order{dialect.OrderDesc("age"), dialect.OrderAsc("name")}

	query, args, err := Dialect(dialect.Postgres).Select("user", []string{"id", "name"}, conds, order, 0, 0).Query()
	require.NoError(t, err)
	assert.Equal(t, `SELECT "id", "name" FROM "user" WHERE "name" = $1 AND "age" >= $2 AND "deleted_at" IS NULL ORDER BY "age" DESC, "name" ASC`, query)
	assert.Equal(t, []any{"Ann", 18}, args)

	query, _, err = Dialect(dialect.SQLite).Select("user", nil, []dialect.Condition{dialect.WhereOp("email", dialect.NEQ, nil)}, nil, 0, 0).Query()
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "user" WHERE "email" IS NOT NULL`, query)

	_, _, err = Dialect(dialect.SQLite).Select("user", nil, []dialect.Condition{dialect.WhereOp("email", "~", "x")}, nil, 0, 0).Query()
	require.Error(t, err)
}

func TestBuilderLimit(t *testing.T) {
	tests := []struct {
		dialect       string
		offset, count int
		want          string
	}{
		{dialect.SQLite, 0, 0, ""},
		{dialect.SQLite, 0, 1, " LIMIT 1"},
		{dialect.SQLite, 5, 10, " LIMIT 10 OFFSET 5"},
		{dialect.SQLite, 5, 0, " LIMIT -1 OFFSET 5"},
		{dialect.MySQL, 5, 0, " LIMIT 18446744073709551615 OFFSET 5"},
		{dialect.MySQL, 0, 0, ""},
		{dialect.Postgres, 5, 0, " OFFSET 5"},
		{dialect.Postgres, 0, 3, " LIMIT 3"},
	}
	for _, tt := range tests {
		b := Dialect(tt.dialect).Select("t", []string{"a"}, nil, nil, tt.offset, tt.count)
		query, _, err := b.Query()
		require.NoError(t, err)
		prefix := "SELECT " + b.Quote("a") + " FROM " + b.Quote("t")
		assert.Equal(t, prefix+tt.want, query, "%s offset=%d count=%d", tt.dialect, tt.offset, tt.count)
	}

	_, _, err := Dialect(dialect.SQLite).Select("t", nil, nil, nil, -1, 0).Query()
	require.Error(t, err)
}

func TestBuilderSelectJoin(t *testing.T) {
	joins := []dialect.Join{{
		Kind:  dialect.LeftJoin,
		Left:  "order",
		Right: "user",
		On:    []dialect.FieldPair{{Left: "customer_id", Op: dialect.EQ, Right: "id"}},
	}}
	columns := []dialect.Column{
		{Table: "order", Field: "id", Alias: "order__id"},
		{Table: "order", Field: "customer_id", Alias: "order__customer_id"},
		{Table: "user", Field: "id", Alias: "user__id"},
	}
	conds := []dialect.Condition{dialect.Where("id", 5).Qualify("order")}
	query, args, err := Dialect(dialect.MySQL).SelectJoin("order", joins, columns, conds, nil, 0, 1).Query()
	require.NoError(t, err)
	assert.Equal(t, "SELECT `order`.`id` AS `order__id`, `order`.`customer_id` AS `order__customer_id`, `user`.`id` AS `user__id` "+
		"FROM `order` LEFT JOIN `user` ON `order`.`customer_id` = `user`.`id` WHERE `order`.`id` = ? LIMIT 1", query)
	assert.Equal(t, []any{5}, args)
}

func TestBuilderUpdateDelete(t *testing.T) {
	query, args, err := Dialect(dialect.Postgres).Update("user", dialect.Values{"name": "Bo", "age": 3}, []dialect.Condition{dialect.Where("id", 1)}).Query()
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "user" SET "age" = $1, "name" = $2 WHERE "id" = $3`, query)
	assert.Equal(t, []any{3, "Bo", 1}, args)

	query, args, err = Dialect(dialect.MySQL).Delete("user", []dialect.Condition{dialect.Where("id", 1)}).Query()
	require.NoError(t, err)
	assert.Equal(t, "DELETE FROM `user` WHERE `id` = ?", query)
	assert.Equal(t, []any{1}, args)

	query, _, err = Dialect(dialect.SQLite).DropTable("user").Query()
	require.NoError(t, err)
	assert.Equal(t, `DROP TABLE IF EXISTS "user"`, query)
}
