package dialect

import (
	"fmt"
	"strings"
)

// Op is a comparison operator of a Condition.
type Op string

// Comparison operators.
const (
	EQ   Op = "="
	NEQ  Op = "<>"
	LT   Op = "<"
	GT   Op = ">"
	LTE  Op = "<="
	GTE  Op = ">="
	Like Op = "LIKE"
)

// Valid reports if op is one of the known operators.
func (op Op) Valid() bool {
	switch op {
	case EQ, NEQ, LT, GT, LTE, GTE, Like:
		return true
	}
	return false
}

// Condition compares a field with a value. Table optionally qualifies the
// field and is required when the field name is ambiguous in a joined query.
type Condition struct {
	Table string
	Field string
	Op    Op
	Value any
}

// Where returns an equality condition.
func Where(field string, value any) Condition {
	return Condition{Field: field, Op: EQ, Value: value}
}

// WhereOp returns a condition with the given operator.
func WhereOp(field string, op Op, value any) Condition {
	return Condition{Field: field, Op: op, Value: value}
}

// Qualify returns a copy of c qualified with table, unless it already is.
func (c Condition) Qualify(table string) Condition {
	if c.Table == "" {
		c.Table = table
	}
	return c
}

// String implements the fmt.Stringer interface.
func (c Condition) String() string {
	op := c.Op
	if op == "" {
		op = EQ
	}
	return fmt.Sprintf("%s %s %v", qualified(c.Table, c.Field), op, c.Value)
}

// Direction is the sort direction of an Order.
type Direction string

// Sort directions.
const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

// Order is a single ORDER BY term.
type Order struct {
	Table     string
	Field     string
	Direction Direction
}

// OrderAsc returns an ascending order term.
func OrderAsc(field string) Order { return Order{Field: field, Direction: Asc} }

// OrderDesc returns a descending order term.
func OrderDesc(field string) Order { return Order{Field: field, Direction: Desc} }

// Qualify returns a copy of o qualified with table, unless it already is.
func (o Order) Qualify(table string) Order {
	if o.Table == "" {
		o.Table = table
	}
	return o
}

// String implements the fmt.Stringer interface.
func (o Order) String() string {
	dir := o.Direction
	if dir == "" {
		dir = Asc
	}
	return qualified(o.Table, o.Field) + " " + string(dir)
}

// JoinKind is the kind of a table join.
type JoinKind string

// Join kinds.
const (
	InnerJoin JoinKind = "INNER JOIN"
	LeftJoin  JoinKind = "LEFT JOIN"
)

// FieldPair is a single join predicate: Left.LeftField Op Right.RightField.
type FieldPair struct {
	Left  string
	Op    Op
	Right string
}

// Join joins the Right table to the Left table on all field pairings.
type Join struct {
	Kind  JoinKind
	Left  string
	Right string
	On    []FieldPair
}

// String implements the fmt.Stringer interface.
func (j Join) String() string {
	var b strings.Builder
	b.WriteString(string(j.Kind))
	b.WriteString(" ")
	b.WriteString(j.Right)
	b.WriteString(" ON ")
	for i, p := range j.On {
		if i > 0 {
			b.WriteString(" AND ")
		}
		op := p.Op
		if op == "" {
			op = EQ
		}
		fmt.Fprintf(&b, "%s %s %s", qualified(j.Left, p.Left), op, qualified(j.Right, p.Right))
	}
	return b.String()
}

// Column is a qualified column selected under an alias.
type Column struct {
	Table string
	Field string
	Alias string
}

func qualified(table, field string) string {
	if table == "" {
		return field
	}
	return table + "." + field
}
