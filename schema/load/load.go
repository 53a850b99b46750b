// Package load reads entity schemas from YAML documents and defines them
// in a registry.
//
//	types:
//	  - name: User
//	    mixins: [int_id]
//	    unique: [email]
//	    fields:
//	      - {name: name, type: VARCHAR, length: 64}
//	      - {name: email, type: VARCHAR, length: 255, attributes: [not_null]}
//	  - name: Order
//	    primary: [id]
//	    fields:
//	      - {name: id, type: INT, attributes: [not_null]}
//	      - {name: note, type: TEXT}
//	    references:
//	      - {name: customer, type: User}
//
// Types are defined in document order, so referenced types must come first.
package load

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/syssam/ezdb"
	"github.com/syssam/ezdb/schema/field"
	"github.com/syssam/ezdb/schema/mixin"
)

// Document is the root of a schema document.
type Document struct {
	Types []Type `yaml:"types"`
}

// Type declares one entity type.
type Type struct {
	Name       string      `yaml:"name"`
	Table      string      `yaml:"table,omitempty"`
	Mixins     []string    `yaml:"mixins,omitempty"`
	Primary    []string    `yaml:"primary,omitempty"`
	Unique     []string    `yaml:"unique,omitempty"`
	Fields     []Field     `yaml:"fields,omitempty"`
	References []Reference `yaml:"references,omitempty"`
}

// Field declares one column.
type Field struct {
	Name       string   `yaml:"name"`
	Type       string   `yaml:"type"`
	Length     int      `yaml:"length,omitempty"`
	Default    any      `yaml:"default,omitempty"`
	Attributes []string `yaml:"attributes,omitempty"`
}

// Reference declares a reference to another type.
type Reference struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// Mixins maps the mixin names usable in documents to their mixins.
var Mixins = map[string]mixin.Mixin{
	"id":          mixin.ID{},
	"int_id":      mixin.IntID{},
	"create_time": mixin.CreateTime{},
}

// Parse decodes a schema document. Unknown keys are rejected.
func Parse(r io.Reader) (*Document, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	doc := &Document{}
	if err := dec.Decode(doc); err != nil {
		if errors.Is(err, io.EOF) {
			return doc, nil
		}
		return nil, fmt.Errorf("load: decoding schema: %w", err)
	}
	return doc, nil
}

// Schemas converts the document into ezdb schemas.
func (d *Document) Schemas() ([]ezdb.Schema, error) {
	schemas := make([]ezdb.Schema, 0, len(d.Types))
	for _, t := range d.Types {
		s, err := t.Schema()
		if err != nil {
			return nil, err
		}
		schemas = append(schemas, s)
	}
	return schemas, nil
}

// Schema converts the type declaration into an ezdb schema.
func (t Type) Schema() (ezdb.Schema, error) {
	s := ezdb.Schema{
		Name:    t.Name,
		Table:   t.Table,
		Primary: t.Primary,
		Unique:  t.Unique,
	}
	for _, f := range t.Fields {
		fd, err := f.Descriptor()
		if err != nil {
			return ezdb.Schema{}, fmt.Errorf("load: type %q: %w", t.Name, err)
		}
		s.Fields = append(s.Fields, fd)
	}
	for _, r := range t.References {
		s.References = append(s.References, field.Ref(r.Name, r.Type))
	}
	mixins := make([]mixin.Mixin, 0, len(t.Mixins))
	for _, name := range t.Mixins {
		m, ok := Mixins[name]
		if !ok {
			return ezdb.Schema{}, fmt.Errorf("load: type %q: unknown mixin %q", t.Name, name)
		}
		mixins = append(mixins, m)
	}
	return mixin.Apply(s, mixins...), nil
}

// Descriptor converts the field declaration into a column descriptor.
func (f Field) Descriptor() (field.Descriptor, error) {
	typ, err := field.ParseType(f.Type)
	if err != nil {
		return field.Descriptor{}, err
	}
	b := field.New(f.Name, typ).Length(f.Length).Default(f.Default)
	fd := b.Descriptor()
	for _, name := range f.Attributes {
		a, err := field.ParseAttribute(name)
		if err != nil {
			return field.Descriptor{}, err
		}
		if !fd.Has(a) {
			fd.Attributes = append(fd.Attributes, a)
		}
	}
	return fd, fd.Err()
}

// Define parses a schema document and defines its types in reg, in
// document order. It stops at the first type that fails to define.
func Define(reg *ezdb.Registry, r io.Reader) ([]*ezdb.EntityType, error) {
	doc, err := Parse(r)
	if err != nil {
		return nil, err
	}
	schemas, err := doc.Schemas()
	if err != nil {
		return nil, err
	}
	types := make([]*ezdb.EntityType, 0, len(schemas))
	for _, s := range schemas {
		t, err := reg.Define(s)
		if err != nil {
			return types, err
		}
		types = append(types, t)
	}
	return types, nil
}

// DefineBytes is like Define, but reads the document from data.
func DefineBytes(reg *ezdb.Registry, data []byte) ([]*ezdb.EntityType, error) {
	return Define(reg, bytes.NewReader(data))
}

// DefineFile is like Define, but reads the document from the named file.
func DefineFile(reg *ezdb.Registry, path string) ([]*ezdb.EntityType, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	defer f.Close()
	return Define(reg, f)
}
