package ezdb_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/syssam/ezdb"
	"github.com/syssam/ezdb/dialect"
	"github.com/syssam/ezdb/schema/field"
)

// call is a backend call seen by recorder.
type call struct {
	Op     string
	Table  string
	Values dialect.Values
	Conds  []dialect.Condition
	Offset int
	Count  int
}

// recorder is a dialect.Backend that records its calls and answers them
// with the configured functions.
type recorder struct {
	mu    sync.Mutex
	calls []call

	insert func(table string, values dialect.Values) (int64, error)
	sel    func(table string, conds []dialect.Condition) ([]dialect.Row, error)
	join   func(base string, conds []dialect.Condition) ([]dialect.Row, error)
	update func(table string, values dialect.Values) error
	del    func(table string) error
}

func (r *recorder) record(c call) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
}

func (r *recorder) Calls(op string) []call {
	r.mu.Lock()
	defer r.mu.Unlock()
	var calls []call
	for _, c := range r.calls {
		if op == "" || c.Op == op {
			calls = append(calls, c)
		}
	}
	return calls
}

func (r *recorder) CreateTable(_ context.Context, table string, _ []field.Descriptor, _, _ []string) error {
	r.record(call{Op: "create", Table: table})
	return nil
}

func (r *recorder) DropTable(_ context.Context, table string) error {
	r.record(call{Op: "drop", Table: table})
	return nil
}

func (r *recorder) Insert(_ context.Context, table string, values dialect.Values) (int64, error) {
	r.record(call{Op: "insert", Table: table, Values: values})
	if r.insert != nil {
		return r.insert(table, values)
	}
	return 0, nil
}

func (r *recorder) Select(_ context.Context, table string, _ []string, conds []dialect.Condition, _ []dialect.Order, offset, count int) ([]dialect.Row, error) {
	r.record(call{Op: "select", Table: table, Conds: conds, Offset: offset, Count: count})
	if r.sel != nil {
		return r.sel(table, conds)
	}
	return nil, nil
}

func (r *recorder) SelectJoin(_ context.Context, base string, _ []dialect.Join, _ []dialect.Column, conds []dialect.Condition, _ []dialect.Order, offset, count int) ([]dialect.Row, error) {
	r.record(call{Op: "join", Table: base, Conds: conds, Offset: offset, Count: count})
	if r.join != nil {
		return r.join(base, conds)
	}
	return nil, nil
}

func (r *recorder) Update(_ context.Context, table string, values dialect.Values, conds []dialect.Condition) error {
	r.record(call{Op: "update", Table: table, Values: values, Conds: conds})
	if r.update != nil {
		return r.update(table, values)
	}
	return nil
}

func (r *recorder) Delete(_ context.Context, table string, conds []dialect.Condition) error {
	r.record(call{Op: "delete", Table: table, Conds: conds})
	if r.del != nil {
		return r.del(table)
	}
	return nil
}

func (r *recorder) Commit(context.Context) error {
	r.record(call{Op: "commit"})
	return nil
}

func (r *recorder) Close() error {
	r.record(call{Op: "close"})
	return nil
}

var _ dialect.Backend = (*recorder)(nil)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// shop defines User, Order and Item in a fresh registry:
//
//	User{id PK auto-increment, name, email UNIQUE}
//	Order{id PK, customer -> User, note}
//	Item{sku PK, order -> Order, qty}
type shop struct {
	reg   *ezdb.Registry
	user  *ezdb.EntityType
	order *ezdb.EntityType
	item  *ezdb.EntityType
}

func newShop(t *testing.T, opts ...ezdb.Option) shop {
	t.Helper()
	reg := ezdb.NewRegistry(append([]ezdb.Option{ezdb.WithLogger(quietLogger())}, opts...)...)
	user, err := reg.Define(ezdb.Schema{
		Name:    "User",
		Primary: []string{"id"},
		Unique:  []string{"email"},
		Fields: []field.Descriptor{
			field.Int("id").Unsigned().AutoIncrement().Descriptor(),
			field.Varchar("name", 64).Descriptor(),
			field.Varchar("email", 255).NotNull().Descriptor(),
		},
	})
	require.NoError(t, err)
	order, err := reg.Define(ezdb.Schema{
		Name:    "Order",
		Primary: []string{"id"},
		Fields: []field.Descriptor{
			field.Int("id").NotNull().Descriptor(),
			field.Text("note").Descriptor(),
		},
		References: []field.Reference{field.Ref("customer", "User")},
	})
	require.NoError(t, err)
	item, err := reg.Define(ezdb.Schema{
		Name:    "Item",
		Primary: []string{"sku"},
		Fields: []field.Descriptor{
			field.Varchar("sku", 32).NotNull().Descriptor(),
			field.Int("qty").Default(1).Descriptor(),
		},
		References: []field.Reference{field.Ref("order", "Order")},
	})
	require.NoError(t, err)
	return shop{reg: reg, user: user, order: order, item: item}
}
