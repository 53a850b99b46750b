package sql

import (
	"context"
	"fmt"
	"slices"

	"ariga.io/atlas/sql/migrate"
	"ariga.io/atlas/sql/mysql"
	"ariga.io/atlas/sql/postgres"
	"ariga.io/atlas/sql/schema"
	"ariga.io/atlas/sql/sqlite"

	"github.com/syssam/ezdb/dialect"
	"github.com/syssam/ezdb/schema/field"
)

// mysqlVarcharSize is the length of a MySQL VARCHAR declared without one.
const mysqlVarcharSize = 255

// Table returns the atlas definition of a table in the given dialect. The
// unique keys become one unique index named <table>_unique.
func Table(name, dialectName string, fields []field.Descriptor, primary, unique []string) (*schema.Table, error) {
	t := schema.NewTable(name)
	for _, fd := range fields {
		c, err := column(dialectName, fd, slices.Contains(primary, fd.Name))
		if err != nil {
			return nil, fmt.Errorf("dialect/sql: table %q: %w", name, err)
		}
		if dialectName == dialect.SQLite && fd.Has(field.AutoIncrement) && !slices.Equal(primary, []string{fd.Name}) {
			return nil, fmt.Errorf("dialect/sql: table %q: sqlite: auto-increment column %q must be the only primary key", name, fd.Name)
		}
		t.AddColumns(c)
	}
	pk, err := columns(t, primary)
	if err != nil {
		return nil, err
	}
	if len(pk) > 0 {
		t.SetPrimaryKey(schema.NewPrimaryKey(pk...))
	}
	if len(unique) > 0 {
		cols, err := columns(t, unique)
		if err != nil {
			return nil, err
		}
		idx := schema.NewUniqueIndex(name + "_unique").AddColumns(cols...)
		if dialectName == dialect.Postgres {
			idx.AddAttrs(postgres.UniqueConstraint(idx.Name))
		}
		t.AddIndexes(idx)
	}
	return t, nil
}

func columns(t *schema.Table, names []string) ([]*schema.Column, error) {
	cols := make([]*schema.Column, len(names))
	for i, n := range names {
		c, ok := t.Column(n)
		if !ok {
			return nil, fmt.Errorf("dialect/sql: table %q: unknown key column %q", t.Name, n)
		}
		cols[i] = c
	}
	return cols, nil
}

// column converts a field descriptor. Key and auto-increment columns are
// NOT NULL; other columns are nullable unless declared NOT NULL.
func column(dialectName string, fd field.Descriptor, key bool) (*schema.Column, error) {
	auto := fd.Has(field.AutoIncrement)
	typ, err := columnType(dialectName, fd)
	if err != nil {
		return nil, err
	}
	c := schema.NewColumn(fd.Name).
		SetType(typ).
		SetNull(!key && !auto && !fd.Has(field.NotNull))
	if auto {
		switch dialectName {
		case dialect.SQLite:
			c.SetType(&schema.IntegerType{T: "integer"}).AddAttrs(&sqlite.AutoIncrement{})
		case dialect.MySQL:
			c.AddAttrs(&mysql.AutoIncrement{})
		case dialect.Postgres:
			c.SetType(&postgres.SerialType{T: postgres.TypeSerial})
		}
	}
	if fd.Default != nil {
		v, err := literal(fd.Default)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", fd.Name, err)
		}
		c.SetDefault(&schema.Literal{V: v})
	}
	return c, nil
}

func columnType(dialectName string, fd field.Descriptor) (schema.Type, error) {
	unsigned := fd.Has(field.Unsigned)
	switch dialectName {
	case dialect.MySQL:
		switch fd.Type {
		case field.TypeInt:
			return &schema.IntegerType{T: mysql.TypeInt, Unsigned: unsigned}, nil
		case field.TypeFloat:
			return &schema.FloatType{T: mysql.TypeFloat, Unsigned: unsigned}, nil
		case field.TypeVarchar:
			size := fd.Length
			if size == 0 {
				size = mysqlVarcharSize
			}
			return &schema.StringType{T: mysql.TypeVarchar, Size: size}, nil
		case field.TypeText:
			return &schema.StringType{T: mysql.TypeText}, nil
		case field.TypeBlob:
			return &schema.BinaryType{T: mysql.TypeBlob}, nil
		}
	case dialect.Postgres:
		switch fd.Type {
		case field.TypeInt:
			return &schema.IntegerType{T: postgres.TypeInteger}, nil
		case field.TypeFloat:
			return &schema.FloatType{T: postgres.TypeDouble}, nil
		case field.TypeVarchar:
			return &schema.StringType{T: postgres.TypeVarChar, Size: fd.Length}, nil
		case field.TypeText:
			return &schema.StringType{T: postgres.TypeText}, nil
		case field.TypeBlob:
			return &schema.BinaryType{T: postgres.TypeBytea}, nil
		}
	case dialect.SQLite:
		switch fd.Type {
		case field.TypeInt:
			return &schema.IntegerType{T: "integer"}, nil
		case field.TypeFloat:
			return &schema.FloatType{T: "real"}, nil
		case field.TypeVarchar:
			return &schema.StringType{T: "varchar", Size: fd.Length}, nil
		case field.TypeText:
			return &schema.StringType{T: "text"}, nil
		case field.TypeBlob:
			return &schema.BinaryType{T: "blob"}, nil
		}
	default:
		return nil, fmt.Errorf("unsupported dialect %q", dialectName)
	}
	return nil, fmt.Errorf("column %q: unsupported type %s", fd.Name, fd.Type)
}

// literal renders a column default. Atlas quotes it for non-numeric columns.
func literal(v any) (string, error) {
	switch v := v.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case bool:
		if v {
			return "1", nil
		}
		return "0", nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return fmt.Sprint(v), nil
	default:
		return "", fmt.Errorf("unsupported default value %T", v)
	}
}

// planner returns the atlas planner of a dialect.
func planner(dialectName string) (migrate.PlanApplier, error) {
	switch dialectName {
	case dialect.MySQL:
		return mysql.DefaultPlan, nil
	case dialect.Postgres:
		return postgres.DefaultPlan, nil
	case dialect.SQLite:
		return sqlite.DefaultPlan, nil
	default:
		return nil, fmt.Errorf("dialect/sql: unsupported dialect %q", dialectName)
	}
}

// PlanCreateTable returns the statements that create t: the CREATE TABLE
// statement, followed on SQLite by its CREATE UNIQUE INDEX statement.
func PlanCreateTable(ctx context.Context, dialectName string, t *schema.Table) ([]*migrate.Change, error) {
	p, err := planner(dialectName)
	if err != nil {
		return nil, err
	}
	plan, err := p.PlanChanges(ctx, "create_"+t.Name, []schema.Change{&schema.AddTable{T: t}})
	if err != nil {
		return nil, fmt.Errorf("dialect/sql: plan table %q: %w", t.Name, err)
	}
	return plan.Changes, nil
}

// tableExists returns the statement that counts the tables named by its
// single argument in the current database.
func tableExists(dialectName string) string {
	switch dialectName {
	case dialect.MySQL:
		return "SELECT COUNT(*) FROM `INFORMATION_SCHEMA`.`TABLES` WHERE `TABLE_SCHEMA` = (SELECT DATABASE()) AND `TABLE_NAME` = ?"
	case dialect.Postgres:
		return `SELECT COUNT(*) FROM "information_schema"."tables" WHERE "table_schema" = CURRENT_SCHEMA() AND "table_name" = $1`
	default:
		return `SELECT COUNT(*) FROM "sqlite_master" WHERE "type" = 'table' AND "name" = ?`
	}
}
