package sql

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/ezdb/dialect"
	"github.com/syssam/ezdb/schema/field"
)

func TestPlanCreateTable(t *testing.T) {
	fields := []field.Descriptor{
		field.Int("id").Unsigned().AutoIncrement().Descriptor(),
		field.Varchar("name", 64).Default("anon").Descriptor(),
		field.Varchar("email", 255).NotNull().Descriptor(),
		field.Text("bio").Descriptor(),
	}
	tests := []struct {
		dialect string
		want    [][]string
	}{
		{
			dialect: dialect.MySQL,
			want: [][]string{{
				"CREATE TABLE `user`",
				"AUTO_INCREMENT",
				"`email` varchar(255) NOT NULL",
				"PRIMARY KEY (`id`)",
				"UNIQUE INDEX `user_unique` (`email`)",
			}},
		},
		{
			dialect: dialect.Postgres,
			want: [][]string{{
				`CREATE TABLE "user"`,
				`"id" serial NOT NULL`,
				`"bio" text NULL`,
				`PRIMARY KEY ("id")`,
				`CONSTRAINT "user_unique" UNIQUE ("email")`,
			}},
		},
		{
			dialect: dialect.SQLite,
			want: [][]string{
				{"CREATE TABLE `user`", "`id` integer NOT NULL PRIMARY KEY AUTOINCREMENT", "`bio` text NULL"},
				{"CREATE UNIQUE INDEX `user_unique` ON `user` (`email`)"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.dialect, func(t *testing.T) {
			tbl, err := Table("user", tt.dialect, fields, []string{"id"}, []string{"email"})
			require.NoError(t, err)
			changes, err := PlanCreateTable(context.Background(), tt.dialect, tbl)
			require.NoError(t, err)
			require.Len(t, changes, len(tt.want))
			for i, atoms := range tt.want {
				for _, a := range atoms {
					assert.Contains(t, changes[i].Cmd, a)
				}
			}
		})
	}
}

func TestTableCompositeKey(t *testing.T) {
	fields := []field.Descriptor{
		field.Int("order_id").NotNull().Descriptor(),
		field.Int("line").NotNull().Descriptor(),
		field.Float("price").Default(0).Descriptor(),
	}
	tbl, err := Table("line", dialect.SQLite, fields, []string{"order_id", "line"}, nil)
	require.NoError(t, err)
	require.NotNil(t, tbl.PrimaryKey)
	require.Len(t, tbl.PrimaryKey.Parts, 2)
	assert.Empty(t, tbl.Indexes)
	changes, err := PlanCreateTable(context.Background(), dialect.SQLite, tbl)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Contains(t, changes[0].Cmd, "PRIMARY KEY (`order_id`, `line`)")

	fields[0] = field.Int("order_id").AutoIncrement().Descriptor()
	_, err = Table("line", dialect.SQLite, fields, []string{"order_id", "line"}, nil)
	require.Error(t, err)
}

func TestTableErrors(t *testing.T) {
	fields := []field.Descriptor{field.Int("id").Descriptor()}
	_, err := Table("user", dialect.SQLite, fields, []string{"uid"}, nil)
	require.ErrorContains(t, err, `unknown key column "uid"`)
	_, err = Table("user", "oracle", fields, nil, nil)
	require.Error(t, err)
	_, err = planner("oracle")
	require.Error(t, err)
}

func TestLiteral(t *testing.T) {
	for v, want := range map[any]string{"anon": "anon", true: "1", false: "0", 42: "42", 1.5: "1.5"} {
		got, err := literal(v)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := literal(struct{}{})
	require.Error(t, err)
}
