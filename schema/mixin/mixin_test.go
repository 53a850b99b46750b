package mixin_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/ezdb"
	"github.com/syssam/ezdb/schema/field"
	"github.com/syssam/ezdb/schema/mixin"
)

type tenant struct {
	mixin.Schema
}

func (tenant) Fields() []field.Descriptor {
	return []field.Descriptor{field.Varchar("tenant", 64).Descriptor()}
}

func (tenant) Unique() []string { return []string{"tenant"} }

func TestSchemaBaseMixin(t *testing.T) {
	m := mixin.Schema{}
	assert.Nil(t, m.Fields())
	assert.Nil(t, m.Primary())
	assert.Nil(t, m.Unique())
}

func TestApply(t *testing.T) {
	s := mixin.Apply(ezdb.Schema{
		Name:   "User",
		Unique: []string{"email"},
		Fields: []field.Descriptor{field.Varchar("email", 255).Descriptor()},
	}, mixin.ID{}, tenant{})

	names := make([]string, len(s.Fields))
	for i, fd := range s.Fields {
		names[i] = fd.Name
	}
	assert.Equal(t, []string{"id", "tenant", "email"}, names)
	assert.Equal(t, []string{"id"}, s.Primary)
	assert.Equal(t, []string{"email", "tenant"}, s.Unique)

	own := mixin.Apply(ezdb.Schema{Name: "T", Primary: []string{"code"}}, mixin.IntID{})
	assert.Equal(t, []string{"code"}, own.Primary, "declared primary keys win")
}

func TestIDMixin(t *testing.T) {
	reg := ezdb.NewRegistry()
	typ, err := reg.Define(mixin.Apply(ezdb.Schema{
		Name:   "Doc",
		Fields: []field.Descriptor{field.Text("body").Descriptor()},
	}, mixin.ID{}, mixin.CreateTime{Now: func() time.Time { return time.Unix(1700000000, 0) }}))
	require.NoError(t, err)

	fields := typ.Fields()
	require.Len(t, fields, 3)
	assert.Equal(t, []string{"id"}, typ.PrimaryKeys())
	assert.Equal(t, "id", fields[0].Name)
	assert.True(t, fields[0].Has(field.NotNull))

	a, b := fields[0].DefaultFunc(), fields[0].DefaultFunc()
	assert.NotEqual(t, a, b)
	_, err = uuid.Parse(a.(string))
	require.NoError(t, err)

	assert.Equal(t, "created_at", fields[1].Name)
	assert.Equal(t, int64(1700000000), fields[1].DefaultFunc())
}

func TestIntIDMixin(t *testing.T) {
	fields := mixin.IntID{}.Fields()
	require.Len(t, fields, 1)
	assert.True(t, fields[0].Has(field.AutoIncrement))
	assert.True(t, fields[0].Has(field.Unsigned))
	assert.Equal(t, []string{"id"}, mixin.IntID{}.Primary())
}

func TestWithAttributes(t *testing.T) {
	m := mixin.WithAttributes(tenant{}, field.NotNull, field.NotNull)
	fields := m.Fields()
	require.Len(t, fields, 1)
	assert.Equal(t, []field.Attribute{field.NotNull}, fields[0].Attributes)
	assert.Equal(t, []string{"tenant"}, m.Unique())
	assert.Empty(t, tenant{}.Fields()[0].Attributes, "the wrapped mixin is not modified")
}
