package ezdb

import (
	"context"
	"strings"

	"github.com/syssam/ezdb/dialect"
)

// Select returns the instances matching all conds, in the order the backend
// returns them. offset and count limit the result; count 0 means no limit.
//
// Types without references are read with a plain select. Types with
// references are read with a single joined select over their whole
// reference graph, and each row is rebuilt into a nested instance graph.
// Unqualified conditions and orders then refer to the root table.
func (t *EntityType) Select(ctx context.Context, b dialect.Backend, conds []dialect.Condition, order []dialect.Order, offset, count int) ([]*Entity, error) {
	if len(t.refs) == 0 {
		rows, err := t.SelectRows(ctx, b, t.FieldNames(), conds, order, offset, count)
		if err != nil {
			return nil, err
		}
		entities := make([]*Entity, 0, len(rows))
		for _, row := range rows {
			e, err := t.New(b, Values(row))
			if err != nil {
				return nil, err
			}
			entities = append(entities, e)
		}
		return entities, nil
	}

	rows, err := t.selectJoin(ctx, b, conds, order, offset, count)
	if err != nil {
		return nil, err
	}
	entities := make([]*Entity, 0, len(rows))
	for _, row := range rows {
		e, err := t.Rebuild(b, row)
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	return entities, nil
}

// SelectOne returns the first instance matching all conds. It fails with a
// NotFoundError if there is none.
func (t *EntityType) SelectOne(ctx context.Context, b dialect.Backend, conds ...dialect.Condition) (*Entity, error) {
	entities, err := t.Select(ctx, b, conds, nil, 0, 1)
	if err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return nil, NewNotFoundErrorWithKey(t.name, conds)
	}
	return entities[0], nil
}

// SelectRows returns the raw rows of t's table without building instances.
// A nil fields slice selects every column.
func (t *EntityType) SelectRows(ctx context.Context, b dialect.Backend, fields []string, conds []dialect.Condition, order []dialect.Order, offset, count int) ([]dialect.Row, error) {
	key := newCacheKey(t.table, cacheSelect, fields, conds, order, offset, count)
	return t.cached(ctx, key, func() ([]dialect.Row, error) {
		rows, err := b.Select(ctx, t.table, fields, conds, order, offset, count)
		if err != nil {
			return nil, NewBackendError(t.name, "select", err)
		}
		return rows, nil
	})
}

func (t *EntityType) selectJoin(ctx context.Context, b dialect.Backend, conds []dialect.Condition, order []dialect.Order, offset, count int) ([]dialect.Row, error) {
	qconds := make([]dialect.Condition, len(conds))
	for i, c := range conds {
		qconds[i] = c.Qualify(t.table)
	}
	qorder := make([]dialect.Order, len(order))
	for i, o := range order {
		qorder[i] = o.Qualify(t.table)
	}
	key := newCacheKey(t.table, cacheJoin, nil, qconds, qorder, offset, count)
	return t.cached(ctx, key, func() ([]dialect.Row, error) {
		rows, err := b.SelectJoin(ctx, t.table, t.joins, t.columns, qconds, qorder, offset, count)
		if err != nil {
			return nil, NewBackendError(t.name, "select join", err)
		}
		return rows, nil
	})
}

// Rebuild builds the nested instance graph of a row returned by a joined
// select of t. Aliases are split at the first AliasSeparator into table and
// field. Referenced instances are built first and assigned to the reference
// of their parent; a referenced instance whose columns are all NULL
// (an unmatched LEFT JOIN) is left unset.
func (t *EntityType) Rebuild(b dialect.Backend, row dialect.Row) (*Entity, error) {
	groups := make(map[string]Values)
	for alias, v := range row {
		table, name, ok := strings.Cut(alias, AliasSeparator)
		if !ok {
			return nil, &AliasError{Alias: alias}
		}
		g, ok := groups[table]
		if !ok {
			g = make(Values)
			groups[table] = g
		}
		g[name] = v
	}
	var build func(n *EntityType) (*Entity, error)
	build = func(n *EntityType) (*Entity, error) {
		values := make(Values, len(n.fields)+len(n.refs))
		empty := true
		for name, v := range groups[n.table] {
			values[name] = v
			if v != nil {
				empty = false
			}
		}
		if empty && n != t {
			return nil, nil
		}
		for _, ref := range n.refs {
			child, err := build(ref.target)
			if err != nil {
				return nil, err
			}
			if child != nil {
				values[ref.Name] = child
			}
		}
		return n.New(b, values)
	}
	return build(t)
}

// Flatten returns e and the instances it references as a single row, keyed
// the way a joined select of e's type returns it. Unset references yield
// NULL columns.
func Flatten(e *Entity) dialect.Row {
	row := make(dialect.Row)
	var walk func(n *EntityType, e *Entity)
	walk = func(n *EntityType, e *Entity) {
		children := make([]*Entity, len(n.refs))
		if e != nil {
			e.mu.RLock()
			for _, fd := range n.fields {
				row[Alias(n.table, fd.Name)] = e.values[fd.Name]
			}
			for i, ref := range n.refs {
				children[i] = e.refs[ref.Name]
			}
			e.mu.RUnlock()
		} else {
			for _, fd := range n.fields {
				row[Alias(n.table, fd.Name)] = nil
			}
		}
		for i, ref := range n.refs {
			walk(ref.target, children[i])
		}
	}
	walk(e.typ, e)
	return row
}
