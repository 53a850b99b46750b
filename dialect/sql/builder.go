package sql

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/syssam/ezdb/dialect"
)

// mysqlNoLimit is the row count MySQL documents for "LIMIT with offset only".
const mysqlNoLimit = "18446744073709551615"

// Builder is the low-level SQL string builder. It quotes identifiers and
// writes placeholders the way its dialect expects.
type Builder struct {
	dialect string
	sb      strings.Builder
	args    []any
	errs    []error
}

// Dialect returns a new Builder for the given dialect.
func Dialect(name string) *Builder {
	return &Builder{dialect: name}
}

// Quote quotes an identifier.
func (b *Builder) Quote(ident string) string {
	if b.dialect == dialect.MySQL {
		return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// WriteString writes s unchanged.
func (b *Builder) WriteString(s string) *Builder {
	b.sb.WriteString(s)
	return b
}

// Ident writes a quoted identifier.
func (b *Builder) Ident(s string) *Builder {
	return b.WriteString(b.Quote(s))
}

// Column writes a column, qualified with table if table is not empty.
func (b *Builder) Column(table, column string) *Builder {
	if table != "" {
		b.Ident(table).WriteString(".")
	}
	return b.Ident(column)
}

// Arg writes a placeholder and records its argument.
func (b *Builder) Arg(v any) *Builder {
	b.args = append(b.args, v)
	if b.dialect == dialect.Postgres {
		return b.WriteString("$" + strconv.Itoa(len(b.args)))
	}
	return b.WriteString("?")
}

// Comma writes a list separator.
func (b *Builder) Comma() *Builder {
	return b.WriteString(", ")
}

// AddError records an error that is returned by Query.
func (b *Builder) AddError(err error) *Builder {
	b.errs = append(b.errs, err)
	return b
}

// Query returns the statement and its arguments.
func (b *Builder) Query() (string, []any, error) {
	return b.sb.String(), b.args, errors.Join(b.errs...)
}

// String returns the statement written so far.
func (b *Builder) String() string {
	return b.sb.String()
}

// DropTable writes a DROP TABLE IF EXISTS statement.
func (b *Builder) DropTable(table string) *Builder {
	return b.WriteString("DROP TABLE IF EXISTS ").Ident(table)
}

// Insert writes an INSERT statement. Columns are written in sorted order.
// A non-empty returning column is appended as a RETURNING clause.
func (b *Builder) Insert(table string, values dialect.Values, returning string) *Builder {
	b.WriteString("INSERT INTO ").Ident(table)
	cols := sortedKeys(values)
	if len(cols) == 0 {
		if b.dialect == dialect.MySQL {
			b.WriteString(" () VALUES ()")
		} else {
			b.WriteString(" DEFAULT VALUES")
		}
	} else {
		b.WriteString(" (").identList(cols).WriteString(") VALUES (")
		for i, c := range cols {
			if i > 0 {
				b.Comma()
			}
			b.Arg(values[c])
		}
		b.WriteString(")")
	}
	if returning != "" {
		b.WriteString(" RETURNING ").Ident(returning)
	}
	return b
}

// Select writes a SELECT statement over a single table. A nil fields slice
// selects every column.
func (b *Builder) Select(table string, fields []string, conds []dialect.Condition, order []dialect.Order, offset, count int) *Builder {
	b.WriteString("SELECT ")
	if len(fields) == 0 {
		b.WriteString("*")
	} else {
		b.identList(fields)
	}
	b.WriteString(" FROM ").Ident(table)
	return b.where(conds).orderBy(order).limit(offset, count)
}

// SelectJoin writes a SELECT statement over base and the joined tables.
func (b *Builder) SelectJoin(base string, joins []dialect.Join, columns []dialect.Column, conds []dialect.Condition, order []dialect.Order, offset, count int) *Builder {
	b.WriteString("SELECT ")
	if len(columns) == 0 {
		b.WriteString("*")
	}
	for i, c := range columns {
		if i > 0 {
			b.Comma()
		}
		b.Column(c.Table, c.Field)
		if c.Alias != "" {
			b.WriteString(" AS ").Ident(c.Alias)
		}
	}
	b.WriteString(" FROM ").Ident(base)
	for _, j := range joins {
		kind := j.Kind
		if kind == "" {
			kind = dialect.InnerJoin
		}
		b.WriteString(" ").WriteString(string(kind)).WriteString(" ").Ident(j.Right).WriteString(" ON ")
		for i, p := range j.On {
			if i > 0 {
				b.WriteString(" AND ")
			}
			b.Column(j.Left, p.Left).WriteString(" ").WriteString(b.op(p.Op)).WriteString(" ").Column(j.Right, p.Right)
		}
	}
	return b.where(conds).orderBy(order).limit(offset, count)
}

// Update writes an UPDATE statement. Columns are written in sorted order.
func (b *Builder) Update(table string, values dialect.Values, conds []dialect.Condition) *Builder {
	b.WriteString("UPDATE ").Ident(table).WriteString(" SET ")
	for i, c := range sortedKeys(values) {
		if i > 0 {
			b.Comma()
		}
		b.Ident(c).WriteString(" = ").Arg(values[c])
	}
	return b.where(conds)
}

// Delete writes a DELETE statement.
func (b *Builder) Delete(table string, conds []dialect.Condition) *Builder {
	b.WriteString("DELETE FROM ").Ident(table)
	return b.where(conds)
}

func (b *Builder) where(conds []dialect.Condition) *Builder {
	for i, c := range conds {
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteString(" AND ")
		}
		b.Column(c.Table, c.Field)
		switch op := b.op(c.Op); {
		case c.Value == nil && op == string(dialect.EQ):
			b.WriteString(" IS NULL")
		case c.Value == nil && op == string(dialect.NEQ):
			b.WriteString(" IS NOT NULL")
		default:
			b.WriteString(" ").WriteString(op).WriteString(" ").Arg(c.Value)
		}
	}
	return b
}

func (b *Builder) op(op dialect.Op) string {
	if op == "" {
		return string(dialect.EQ)
	}
	if !op.Valid() {
		b.AddError(fmt.Errorf("dialect/sql: invalid operator %q", op))
	}
	return string(op)
}

func (b *Builder) orderBy(order []dialect.Order) *Builder {
	for i, o := range order {
		if i == 0 {
			b.WriteString(" ORDER BY ")
		} else {
			b.Comma()
		}
		dir := o.Direction
		if dir == "" {
			dir = dialect.Asc
		}
		if dir != dialect.Asc && dir != dialect.Desc {
			b.AddError(fmt.Errorf("dialect/sql: invalid order direction %q", dir))
		}
		b.Column(o.Table, o.Field).WriteString(" ").WriteString(string(dir))
	}
	return b
}

// limit writes the LIMIT and OFFSET clauses. An offset and count of 0 means
// no limit at all.
func (b *Builder) limit(offset, count int) *Builder {
	switch {
	case offset < 0 || count < 0:
		return b.AddError(fmt.Errorf("dialect/sql: negative offset (%d) or count (%d)", offset, count))
	case count > 0:
		b.WriteString(" LIMIT ").WriteString(strconv.Itoa(count))
	case offset > 0 && b.dialect == dialect.MySQL:
		b.WriteString(" LIMIT ").WriteString(mysqlNoLimit)
	case offset > 0 && b.dialect == dialect.SQLite:
		b.WriteString(" LIMIT -1")
	}
	if offset > 0 {
		b.WriteString(" OFFSET ").WriteString(strconv.Itoa(offset))
	}
	return b
}

func (b *Builder) identList(idents []string) *Builder {
	for i, s := range idents {
		if i > 0 {
			b.Comma()
		}
		b.Ident(s)
	}
	return b
}

func sortedKeys(values dialect.Values) []string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
