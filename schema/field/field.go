package field

import (
	"fmt"
	"slices"
	"strings"
)

// A Type represents a column type.
type Type uint8

// List of column types.
const (
	TypeInvalid Type = iota
	TypeInt
	TypeFloat
	TypeVarchar
	TypeText
	TypeBlob
	endTypes
)

var typeNames = [...]string{
	TypeInvalid: "invalid",
	TypeInt:     "INT",
	TypeFloat:   "FLOAT",
	TypeVarchar: "VARCHAR",
	TypeText:    "TEXT",
	TypeBlob:    "BLOB",
}

// String returns the SQL name of the type.
func (t Type) String() string {
	if t < endTypes {
		return typeNames[t]
	}
	return typeNames[TypeInvalid]
}

// Valid reports if the given type is a known column type.
func (t Type) Valid() bool {
	return t > TypeInvalid && t < endTypes
}

// Numeric reports if the given type is a numeric type.
func (t Type) Numeric() bool {
	return t == TypeInt || t == TypeFloat
}

// ParseType returns the Type for its SQL name. The lookup is case-insensitive.
func ParseType(s string) (Type, error) {
	for t := TypeInt; t < endTypes; t++ {
		if strings.EqualFold(typeNames[t], s) {
			return t, nil
		}
	}
	return TypeInvalid, fmt.Errorf("field: unknown type %q", s)
}

// An Attribute is a column attribute.
type Attribute uint8

// List of column attributes.
const (
	Unsigned Attribute = iota + 1
	AutoIncrement
	NotNull
)

// String returns the SQL spelling of the attribute.
func (a Attribute) String() string {
	switch a {
	case Unsigned:
		return "UNSIGNED"
	case AutoIncrement:
		return "AUTO_INCREMENT"
	case NotNull:
		return "NOT NULL"
	default:
		return fmt.Sprintf("Attribute(%d)", uint8(a))
	}
}

// ParseAttribute returns the Attribute for the given name. Both the SQL
// spelling ("NOT NULL") and the identifier spelling ("not_null") are accepted.
func ParseAttribute(s string) (Attribute, error) {
	switch strings.ToUpper(strings.NewReplacer("_", " ", "-", " ").Replace(strings.TrimSpace(s))) {
	case "UNSIGNED":
		return Unsigned, nil
	case "AUTO INCREMENT", "AUTOINCREMENT":
		return AutoIncrement, nil
	case "NOT NULL", "NOTNULL":
		return NotNull, nil
	default:
		return 0, fmt.Errorf("field: unknown attribute %q", s)
	}
}

// Descriptor describes a single column.
type Descriptor struct {
	Name        string
	Type        Type
	Length      int        // 0 means no explicit length.
	Default     any        // Literal column default, nil for none.
	DefaultFunc func() any // Evaluated on insert when the value is absent.
	Attributes  []Attribute
}

// Has reports if the descriptor carries the given attribute.
func (d Descriptor) Has(a Attribute) bool {
	return slices.Contains(d.Attributes, a)
}

// Without returns a copy of the descriptor with the given attribute removed.
func (d Descriptor) Without(a Attribute) Descriptor {
	d.Attributes = slices.DeleteFunc(slices.Clone(d.Attributes), func(x Attribute) bool { return x == a })
	return d
}

// Rename returns a copy of the descriptor under a different column name.
func (d Descriptor) Rename(name string) Descriptor {
	d.Attributes = slices.Clone(d.Attributes)
	d.Name = name
	return d
}

// Err returns an error if the descriptor is not usable as a column.
func (d Descriptor) Err() error {
	switch {
	case d.Name == "":
		return fmt.Errorf("field: missing name")
	case !d.Type.Valid():
		return fmt.Errorf("field %q: invalid type", d.Name)
	case d.Length < 0:
		return fmt.Errorf("field %q: negative length %d", d.Name, d.Length)
	case d.Has(AutoIncrement) && d.Type != TypeInt:
		return fmt.Errorf("field %q: AUTO_INCREMENT requires an INT column", d.Name)
	case d.Has(Unsigned) && !d.Type.Numeric():
		return fmt.Errorf("field %q: UNSIGNED requires a numeric column", d.Name)
	}
	return nil
}

// Builder is the fluent builder for a Descriptor.
type Builder struct {
	desc Descriptor
}

func newBuilder(name string, t Type) *Builder {
	return &Builder{desc: Descriptor{Name: name, Type: t}}
}

// Int returns a new builder for an INT column.
func Int(name string) *Builder { return newBuilder(name, TypeInt) }

// Float returns a new builder for a FLOAT column.
func Float(name string) *Builder { return newBuilder(name, TypeFloat) }

// Varchar returns a new builder for a VARCHAR column of the given length.
func Varchar(name string, length int) *Builder {
	return newBuilder(name, TypeVarchar).Length(length)
}

// Text returns a new builder for a TEXT column.
func Text(name string) *Builder { return newBuilder(name, TypeText) }

// Blob returns a new builder for a BLOB column.
func Blob(name string) *Builder { return newBuilder(name, TypeBlob) }

// New returns a builder for a column of the given type.
func New(name string, t Type) *Builder { return newBuilder(name, t) }

// Length sets the column length.
func (b *Builder) Length(n int) *Builder {
	b.desc.Length = n
	return b
}

// Unsigned marks the column as UNSIGNED.
func (b *Builder) Unsigned() *Builder { return b.attr(Unsigned) }

// AutoIncrement marks the column as assigned by the database on insert.
func (b *Builder) AutoIncrement() *Builder { return b.attr(AutoIncrement) }

// NotNull marks the column as NOT NULL.
func (b *Builder) NotNull() *Builder { return b.attr(NotNull) }

// Default sets the literal column default.
func (b *Builder) Default(v any) *Builder {
	b.desc.Default = v
	return b
}

// DefaultFunc sets a function that provides the value of the field for new
// records that do not set it.
func (b *Builder) DefaultFunc(fn func() any) *Builder {
	b.desc.DefaultFunc = fn
	return b
}

func (b *Builder) attr(a Attribute) *Builder {
	if !b.desc.Has(a) {
		b.desc.Attributes = append(b.desc.Attributes, a)
	}
	return b
}

// Descriptor returns a copy of the built descriptor.
func (b *Builder) Descriptor() Descriptor {
	d := b.desc
	d.Attributes = slices.Clone(b.desc.Attributes)
	return d
}
