package field_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/ezdb/schema/field"
)

func TestBuilders(t *testing.T) {
	fd := field.Int("id").
		Unsigned().
		AutoIncrement().
		Descriptor()
	assert.Equal(t, "id", fd.Name)
	assert.Equal(t, field.TypeInt, fd.Type)
	assert.True(t, fd.Has(field.Unsigned))
	assert.True(t, fd.Has(field.AutoIncrement))
	assert.False(t, fd.Has(field.NotNull))
	assert.NoError(t, fd.Err())

	fd = field.Varchar("email", 255).NotNull().NotNull().Descriptor()
	assert.Equal(t, 255, fd.Length)
	assert.Equal(t, []field.Attribute{field.NotNull}, fd.Attributes)

	fd = field.Float("price").Default(1.5).Descriptor()
	assert.Equal(t, 1.5, fd.Default)
	assert.Nil(t, fd.DefaultFunc)

	assert.Equal(t, field.TypeText, field.Text("bio").Descriptor().Type)
	assert.Equal(t, field.TypeBlob, field.Blob("avatar").Descriptor().Type)
	assert.Equal(t, field.TypeVarchar, field.New("code", field.TypeVarchar).Descriptor().Type)

	fd = field.Varchar("key", 36).DefaultFunc(func() any { return "generated" }).Descriptor()
	require.NotNil(t, fd.DefaultFunc)
	assert.Equal(t, "generated", fd.DefaultFunc())
}

func TestDescriptorImmutable(t *testing.T) {
	b := field.Int("id").AutoIncrement()
	fd := b.Descriptor()
	b.NotNull()
	assert.False(t, fd.Has(field.NotNull), "descriptor must not observe later builder calls")

	stripped := fd.Without(field.AutoIncrement)
	assert.False(t, stripped.Has(field.AutoIncrement))
	assert.True(t, fd.Has(field.AutoIncrement), "Without returns a copy")

	renamed := fd.Rename("user_id")
	assert.Equal(t, "user_id", renamed.Name)
	assert.Equal(t, "id", fd.Name)
}

func TestDescriptorErr(t *testing.T) {
	tests := []struct {
		name string
		desc field.Descriptor
		ok   bool
	}{
		{"valid", field.Int("id").Descriptor(), true},
		{"missing name", field.Int("").Descriptor(), false},
		{"invalid type", field.Descriptor{Name: "x"}, false},
		{"negative length", field.Varchar("x", -1).Descriptor(), false},
		{"autoincrement text", field.Text("x").AutoIncrement().Descriptor(), false},
		{"unsigned varchar", field.Varchar("x", 3).Unsigned().Descriptor(), false},
		{"unsigned float", field.Float("x").Unsigned().Descriptor(), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.ok {
				assert.NoError(t, tt.desc.Err())
			} else {
				assert.Error(t, tt.desc.Err())
			}
		})
	}
}

func TestTypeString(t *testing.T) {
	assert.Equal(t, "INT", field.TypeInt.String())
	assert.Equal(t, "FLOAT", field.TypeFloat.String())
	assert.Equal(t, "VARCHAR", field.TypeVarchar.String())
	assert.Equal(t, "TEXT", field.TypeText.String())
	assert.Equal(t, "BLOB", field.TypeBlob.String())
	assert.Equal(t, "invalid", field.Type(200).String())
	assert.False(t, field.TypeInvalid.Valid())

	typ, err := field.ParseType("varchar")
	require.NoError(t, err)
	assert.Equal(t, field.TypeVarchar, typ)
	_, err = field.ParseType("jsonb")
	assert.Error(t, err)
}

func TestParseAttribute(t *testing.T) {
	for in, want := range map[string]field.Attribute{
		"unsigned":       field.Unsigned,
		"AUTO_INCREMENT": field.AutoIncrement,
		"autoincrement":  field.AutoIncrement,
		"NOT NULL":       field.NotNull,
		"not_null":       field.NotNull,
	} {
		got, err := field.ParseAttribute(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := field.ParseAttribute("primary")
	assert.Error(t, err)
	assert.Equal(t, "NOT NULL", field.NotNull.String())
}

func TestReferenceForeignKeys(t *testing.T) {
	ref := field.Ref("customer", "User")
	assert.Equal(t, "customer_id", ref.ForeignKey("id"))

	keys := []field.Descriptor{
		field.Int("id").Unsigned().AutoIncrement().NotNull().Descriptor(),
		field.Varchar("region", 8).DefaultFunc(func() any { return "eu" }).Descriptor(),
	}
	fks := ref.ForeignKeys(keys)
	require.Len(t, fks, 2)
	assert.Equal(t, "customer_id", fks[0].Name)
	assert.False(t, fks[0].Has(field.AutoIncrement))
	assert.True(t, fks[0].Has(field.Unsigned))
	assert.True(t, fks[0].Has(field.NotNull))
	assert.Equal(t, "customer_region", fks[1].Name)
	assert.Nil(t, fks[1].DefaultFunc)
	assert.True(t, keys[0].Has(field.AutoIncrement), "referenced descriptors are left untouched")
}
