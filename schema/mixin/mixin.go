// Package mixin provides reusable field sets for ezdb schemas.
//
// A mixin contributes fields, primary keys and unique keys. Apply merges
// mixins into a schema:
//
//	user := reg.MustDefine(mixin.Apply(ezdb.Schema{
//		Name:   "User",
//		Unique: []string{"email"},
//		Fields: []field.Descriptor{
//			field.Varchar("email", 255).NotNull().Descriptor(),
//		},
//	}, mixin.ID{}, mixin.CreateTime{}))
//
// To create a custom mixin, embed Schema and override the methods you need:
//
//	type Tenant struct {
//		mixin.Schema
//	}
//
//	func (Tenant) Fields() []field.Descriptor {
//		return []field.Descriptor{field.Varchar("tenant", 64).NotNull().Descriptor()}
//	}
package mixin

import (
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/syssam/ezdb"
	"github.com/syssam/ezdb/schema/field"
)

// Mixin is a reusable part of a schema.
type Mixin interface {
	// Fields returns the fields the mixin adds.
	Fields() []field.Descriptor
	// Primary returns the primary keys the mixin declares.
	Primary() []string
	// Unique returns the unique keys the mixin declares.
	Unique() []string
}

// Schema is the default implementation of Mixin. It should be embedded in
// all custom mixins.
type Schema struct{}

// Fields returns no fields.
func (Schema) Fields() []field.Descriptor { return nil }

// Primary returns no primary keys.
func (Schema) Primary() []string { return nil }

// Unique returns no unique keys.
func (Schema) Unique() []string { return nil }

var _ Mixin = (*Schema)(nil)

// Apply returns a copy of s with the mixins merged in. Mixin fields come
// before the schema's own fields, in mixin order. Mixin primary keys are
// used only when s declares none; unique keys are added.
func Apply(s ezdb.Schema, mixins ...Mixin) ezdb.Schema {
	var (
		fields  []field.Descriptor
		primary []string
		unique  []string
	)
	for _, m := range mixins {
		fields = append(fields, m.Fields()...)
		primary = append(primary, m.Primary()...)
		unique = append(unique, m.Unique()...)
	}
	out := s
	out.Fields = append(fields, s.Fields...)
	if len(s.Primary) > 0 {
		out.Primary = slices.Clone(s.Primary)
	} else {
		out.Primary = primary
	}
	out.Unique = append(slices.Clone(s.Unique), unique...)
	out.References = slices.Clone(s.References)
	return out
}

// ID adds a VARCHAR(36) "id" primary key filled with a random UUID when a
// new instance is inserted without one.
type ID struct {
	Schema
}

// Fields returns the id field.
func (ID) Fields() []field.Descriptor {
	return []field.Descriptor{
		field.Varchar("id", 36).
			NotNull().
			DefaultFunc(func() any { return uuid.NewString() }).
			Descriptor(),
	}
}

// Primary returns the id key.
func (ID) Primary() []string { return []string{"id"} }

// IntID adds an unsigned auto-increment "id" primary key.
type IntID struct {
	Schema
}

// Fields returns the id field.
func (IntID) Fields() []field.Descriptor {
	return []field.Descriptor{field.Int("id").Unsigned().AutoIncrement().Descriptor()}
}

// Primary returns the id key.
func (IntID) Primary() []string { return []string{"id"} }

// CreateTime adds a "created_at" column holding the Unix time, in seconds,
// at which an instance was inserted.
type CreateTime struct {
	Schema
	// Now overrides the clock. Defaults to time.Now.
	Now func() time.Time
}

// Fields returns the created_at field.
func (m CreateTime) Fields() []field.Descriptor {
	now := m.Now
	if now == nil {
		now = time.Now
	}
	return []field.Descriptor{
		field.Int("created_at").
			NotNull().
			DefaultFunc(func() any { return now().Unix() }).
			Descriptor(),
	}
}

// WithAttributes wraps a mixin and adds attributes to all its fields.
//
//	mixin.WithAttributes(Tenant{}, field.NotNull)
func WithAttributes(m Mixin, attrs ...field.Attribute) Mixin {
	return attributer{Mixin: m, attrs: attrs}
}

type attributer struct {
	Mixin
	attrs []field.Attribute
}

func (a attributer) Fields() []field.Descriptor {
	fields := a.Mixin.Fields()
	for i := range fields {
		for _, attr := range a.attrs {
			if !fields[i].Has(attr) {
				fields[i].Attributes = append(slices.Clone(fields[i].Attributes), attr)
			}
		}
	}
	return fields
}
