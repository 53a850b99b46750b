package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/syssam/ezdb"
	"github.com/syssam/ezdb/dialect"
	"github.com/syssam/ezdb/schema/field"
)

func (e *env) types() error {
	reg, err := e.registry()
	if err != nil {
		return err
	}
	for _, t := range reg.Types() {
		fmt.Fprintf(e.out, "%s (table %s, primary %s)\n", t.Name(), t.Table(), strings.Join(t.PrimaryKeys(), ", "))
		for _, fd := range t.Fields() {
			fmt.Fprintf(e.out, "\t%s %s", fd.Name, fd.Type)
			if fd.Length > 0 {
				fmt.Fprintf(e.out, "(%d)", fd.Length)
			}
			for _, a := range fd.Attributes {
				fmt.Fprintf(e.out, " %s", a)
			}
			fmt.Fprintln(e.out)
		}
		for _, ref := range t.References() {
			fmt.Fprintf(e.out, "\t%s -> %s\n", ref.Name, ref.Type)
		}
	}
	return nil
}

// insert inserts one instance from field=value arguments and prints it.
func (e *env) insert(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("insert: missing type")
	}
	reg, err := e.registry()
	if err != nil {
		return err
	}
	t, err := reg.Lookup(args[0])
	if err != nil {
		return err
	}
	values := make(ezdb.Values, len(args)-1)
	for _, arg := range args[1:] {
		name, raw, ok := strings.Cut(arg, "=")
		if !ok {
			return fmt.Errorf("insert: expected field=value, got %q", arg)
		}
		v, err := parseValue(t, name, raw)
		if err != nil {
			return err
		}
		values[name] = v
	}
	ent, err := t.New(e.backend, values)
	if err != nil {
		return err
	}
	res := ent.Insert(ctx)
	switch {
	case res.Status == ezdb.Skipped:
		return fmt.Errorf("insert: %s is not new; its primary key was given", t.Name())
	case !res.OK():
		return fmt.Errorf("insert: %s: %w", res.Status, res.Err)
	case res.Err != nil:
		e.log.Warn("merged with stored row", "type", t.Name(), "error", res.Err)
	}
	if err := e.backend.Commit(ctx); err != nil {
		return err
	}
	return json.NewEncoder(e.out).Encode(document(ent))
}

// conditions is a repeatable -where flag.
type conditions []string

func (c *conditions) String() string { return strings.Join(*c, " AND ") }

func (c *conditions) Set(s string) error {
	*c = append(*c, s)
	return nil
}

var operators = []dialect.Op{dialect.NEQ, dialect.LTE, dialect.GTE, dialect.EQ, dialect.LT, dialect.GT}

// parseCondition parses "field<op>value", for example "qty>=2" or
// "name~A%" for LIKE.
func parseCondition(t *ezdb.EntityType, s string) (dialect.Condition, error) {
	if name, raw, ok := strings.Cut(s, "~"); ok {
		return dialect.WhereOp(name, dialect.Like, raw), nil
	}
	for _, op := range operators {
		if name, raw, ok := strings.Cut(s, string(op)); ok {
			v, err := parseValue(t, name, raw)
			if err != nil {
				return dialect.Condition{}, err
			}
			return dialect.WhereOp(name, op, v), nil
		}
	}
	return dialect.Condition{}, fmt.Errorf("invalid condition %q", s)
}

// selectRows prints the matching instances of a type, one JSON document per
// line. References are nested under their names.
func (e *env) selectRows(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("select", flag.ContinueOnError)
	fs.SetOutput(e.out)
	var where conditions
	fs.Var(&where, "where", "condition field<op>value; op is one of = <> < > <= >= ~ (LIKE); repeatable")
	orderArg := fs.String("order", "", "order by field; prefix with - for descending")
	limit := fs.Int("limit", 0, "maximum number of instances, 0 for all")
	offset := fs.Int("offset", 0, "number of instances to skip")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("select: expected one type, got %d arguments", fs.NArg())
	}
	reg, err := e.registry()
	if err != nil {
		return err
	}
	t, err := reg.Lookup(fs.Arg(0))
	if err != nil {
		return err
	}
	conds := make([]dialect.Condition, 0, len(where))
	for _, w := range where {
		c, err := parseCondition(t, w)
		if err != nil {
			return err
		}
		conds = append(conds, c)
	}
	var order []dialect.Order
	switch o := *orderArg; {
	case strings.HasPrefix(o, "-"):
		order = append(order, dialect.OrderDesc(o[1:]))
	case o != "":
		order = append(order, dialect.OrderAsc(o))
	}
	entities, err := t.Select(ctx, e.backend, conds, order, *offset, *limit)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(e.out)
	for _, ent := range entities {
		if err := enc.Encode(document(ent)); err != nil {
			return err
		}
	}
	e.log.Debug("selected", "type", t.Name(), "count", len(entities))
	return nil
}

// parseValue converts a command-line value to the Go type of the field.
func parseValue(t *ezdb.EntityType, name, raw string) (any, error) {
	fd, ok := t.Field(name)
	if !ok {
		return nil, fmt.Errorf("%s has no field %q", t.Name(), name)
	}
	switch fd.Type {
	case field.TypeInt:
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		return v, nil
	case field.TypeFloat:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		return v, nil
	case field.TypeBlob:
		return []byte(raw), nil
	default:
		return raw, nil
	}
}

// document returns the fields of ent with its references nested.
func document(ent *ezdb.Entity) map[string]any {
	doc := make(map[string]any)
	for k, v := range ent.Values() {
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		doc[k] = v
	}
	for _, ref := range ent.Type().References() {
		if child, ok := ent.Ref(ref.Name); ok {
			doc[ref.Name] = document(child)
		}
	}
	return doc
}
