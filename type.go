package ezdb

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/go-openapi/inflect"

	"github.com/syssam/ezdb/dialect"
	"github.com/syssam/ezdb/schema/field"
)

// AliasSeparator joins a table and a field name into the alias of a column
// in a joined select. Table and field names may not contain it.
const AliasSeparator = "__"

// Alias returns the alias under which a joined select returns table.field.
func Alias(table, field string) string {
	return table + AliasSeparator + field
}

// Values maps field names to values.
type Values = dialect.Values

// Schema declares an entity type.
type Schema struct {
	// Name identifies the type in the registry, e.g. "User".
	Name string
	// Table is the backing table. Defaults to the snake_case form of Name.
	Table string
	// Primary lists the primary-key fields in order.
	Primary []string
	// Unique lists the fields with unique values.
	Unique []string
	// Fields declares the columns of the table.
	Fields []field.Descriptor
	// References declares the entity types this type points to. Each adds
	// the referenced primary key as foreign-key columns.
	References []field.Reference
}

// keyPair maps a local foreign-key column to a referenced primary-key field.
type keyPair struct {
	local  string
	remote string
}

// reference is a resolved field.Reference.
type reference struct {
	field.Reference
	target *EntityType
	keys   []keyPair
}

// EntityType is a defined entity schema. It is created by Registry.Define
// and is immutable afterwards, except for its identity cache and callbacks.
type EntityType struct {
	name    string
	table   string
	primary []string
	unique  []string
	fields  []field.Descriptor
	index   map[string]int
	refs    []*reference
	refIdx  map[string]*reference
	reg     *Registry

	// localUnique lists the fields that form the local unique id: the
	// primary keys that are not auto-incremented, then the unique keys.
	localUnique []string
	autoKey     string

	joins   []dialect.Join
	columns []dialect.Column
	tables  []string

	mu    sync.Mutex
	cache map[string]*Entity
	hooks hooks
}

func (r *Registry) build(s Schema) (*EntityType, error) {
	if s.Name == "" {
		return nil, schemaErrorf("<unnamed>", "missing type name")
	}
	t := &EntityType{
		name:    s.Name,
		table:   s.Table,
		primary: slices.Clone(s.Primary),
		unique:  slices.Clone(s.Unique),
		index:   make(map[string]int),
		refIdx:  make(map[string]*reference),
		reg:     r,
		cache:   make(map[string]*Entity),
	}
	if t.table == "" {
		t.table = inflect.Underscore(s.Name)
	}
	if strings.Contains(t.table, AliasSeparator) {
		return nil, schemaErrorf(t.name, "table name %q contains %q", t.table, AliasSeparator)
	}
	for _, fd := range s.Fields {
		if err := t.addField(fd); err != nil {
			return nil, err
		}
	}
	for _, ref := range s.References {
		if err := r.addReference(t, ref); err != nil {
			return nil, err
		}
	}
	if len(t.primary) == 0 {
		return nil, schemaErrorf(t.name, "at least one primary key is required")
	}
	for _, keys := range [][]string{t.primary, t.unique} {
		for _, k := range keys {
			if _, ok := t.index[k]; !ok {
				return nil, schemaErrorf(t.name, "key %q is not a declared field", k)
			}
		}
	}
	for _, k := range t.primary {
		if t.fields[t.index[k]].Has(field.AutoIncrement) {
			if t.autoKey != "" {
				return nil, schemaErrorf(t.name, "more than one auto-increment primary key")
			}
			t.autoKey = k
			continue
		}
		t.localUnique = append(t.localUnique, k)
	}
	for _, k := range t.unique {
		if !slices.Contains(t.localUnique, k) {
			t.localUnique = append(t.localUnique, k)
		}
	}
	if err := t.checkCycles(); err != nil {
		return nil, err
	}
	return t, t.plan()
}

func (t *EntityType) addField(fd field.Descriptor) error {
	if err := fd.Err(); err != nil {
		return schemaErrorf(t.name, "%v", err)
	}
	if strings.Contains(fd.Name, AliasSeparator) {
		return schemaErrorf(t.name, "field name %q contains %q", fd.Name, AliasSeparator)
	}
	if _, ok := t.index[fd.Name]; ok {
		return schemaErrorf(t.name, "field %q is declared twice", fd.Name)
	}
	if _, ok := t.refIdx[fd.Name]; ok {
		return schemaErrorf(t.name, "field %q is also a reference name", fd.Name)
	}
	t.index[fd.Name] = len(t.fields)
	t.fields = append(t.fields, fd)
	return nil
}

func (r *Registry) addReference(t *EntityType, ref field.Reference) error {
	switch {
	case ref.Name == "":
		return schemaErrorf(t.name, "reference to %q has no name", ref.Type)
	case ref.Type == t.name:
		return schemaErrorf(t.name, "reference %q is a cycle: the type references itself", ref.Name)
	}
	if _, ok := t.index[ref.Name]; ok {
		return schemaErrorf(t.name, "reference %q is also a field name", ref.Name)
	}
	if _, ok := t.refIdx[ref.Name]; ok {
		return schemaErrorf(t.name, "reference %q is declared twice", ref.Name)
	}
	target, ok := r.types[ref.Type]
	if !ok {
		return schemaErrorf(t.name, "reference %q: type %q is not defined", ref.Name, ref.Type)
	}
	rr := &reference{Reference: ref, target: target}
	for _, fk := range ref.ForeignKeys(target.PrimaryFields()) {
		if err := t.addField(fk); err != nil {
			return err
		}
	}
	for _, pk := range target.primary {
		rr.keys = append(rr.keys, keyPair{local: ref.ForeignKey(pk), remote: pk})
	}
	t.refs = append(t.refs, rr)
	t.refIdx[ref.Name] = rr
	return nil
}

// checkCycles rejects reference graphs that lead back to t.
func (t *EntityType) checkCycles() error {
	var (
		path  []string
		visit func(*EntityType) error
	)
	visit = func(n *EntityType) error {
		path = append(path, n.name)
		defer func() { path = path[:len(path)-1] }()
		for _, ref := range n.refs {
			if ref.target == t || slices.Contains(path, ref.target.name) {
				return schemaErrorf(t.name, "reference cycle %s -> %s", strings.Join(path, " -> "), ref.target.name)
			}
			if err := visit(ref.target); err != nil {
				return err
			}
		}
		return nil
	}
	return visit(t)
}

// plan computes the joins and aliased columns of a joined select rooted at t.
func (t *EntityType) plan() error {
	seen := make(map[string]string)
	var walk func(*EntityType) error
	walk = func(n *EntityType) error {
		if owner, ok := seen[n.table]; ok {
			return schemaErrorf(t.name, "table %q is reached twice in the reference graph (%s, %s)", n.table, owner, n.name)
		}
		seen[n.table] = n.name
		t.tables = append(t.tables, n.table)
		for _, fd := range n.fields {
			t.columns = append(t.columns, dialect.Column{Table: n.table, Field: fd.Name, Alias: Alias(n.table, fd.Name)})
		}
		for _, ref := range n.refs {
			j := dialect.Join{Kind: dialect.LeftJoin, Left: n.table, Right: ref.target.table}
			for _, k := range ref.keys {
				j.On = append(j.On, dialect.FieldPair{Left: k.local, Op: dialect.EQ, Right: k.remote})
			}
			t.joins = append(t.joins, j)
			if err := walk(ref.target); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(t)
}

// Name returns the type name.
func (t *EntityType) Name() string { return t.name }

// Table returns the backing table.
func (t *EntityType) Table() string { return t.table }

// Registry returns the registry the type is defined in.
func (t *EntityType) Registry() *Registry { return t.reg }

// PrimaryKeys returns the primary-key field names in order.
func (t *EntityType) PrimaryKeys() []string { return slices.Clone(t.primary) }

// UniqueKeys returns the unique field names.
func (t *EntityType) UniqueKeys() []string { return slices.Clone(t.unique) }

// Fields returns all column descriptors, including generated foreign keys.
func (t *EntityType) Fields() []field.Descriptor { return slices.Clone(t.fields) }

// FieldNames returns the names of all columns in declaration order.
func (t *EntityType) FieldNames() []string {
	names := make([]string, len(t.fields))
	for i, fd := range t.fields {
		names[i] = fd.Name
	}
	return names
}

// Field returns the descriptor of the named column.
func (t *EntityType) Field(name string) (field.Descriptor, bool) {
	i, ok := t.index[name]
	if !ok {
		return field.Descriptor{}, false
	}
	return t.fields[i], true
}

// PrimaryFields returns the descriptors of the primary-key fields.
func (t *EntityType) PrimaryFields() []field.Descriptor {
	fds := make([]field.Descriptor, len(t.primary))
	for i, k := range t.primary {
		fds[i] = t.fields[t.index[k]]
	}
	return fds
}

// References returns the declared references.
func (t *EntityType) References() []field.Reference {
	refs := make([]field.Reference, len(t.refs))
	for i, r := range t.refs {
		refs[i] = r.Reference
	}
	return refs
}

// Referenced returns the entity type behind the named reference.
func (t *EntityType) Referenced(name string) (*EntityType, bool) {
	r, ok := t.refIdx[name]
	if !ok {
		return nil, false
	}
	return r.target, true
}

// JoinPlan returns the joins and aliased columns of a joined select rooted
// at t. Both are empty for types without references.
func (t *EntityType) JoinPlan() ([]dialect.Join, []dialect.Column) {
	if len(t.refs) == 0 {
		return nil, nil
	}
	return slices.Clone(t.joins), slices.Clone(t.columns)
}

// isKey reports if name is a primary or unique key.
func (t *EntityType) isKey(name string) bool {
	return slices.Contains(t.primary, name) || slices.Contains(t.unique, name)
}

// readsTable reports if a select of t reads from table.
func (t *EntityType) readsTable(table string) bool {
	return slices.Contains(t.tables, table)
}

// CreateTable creates the table of t if it does not exist.
func (t *EntityType) CreateTable(ctx context.Context, b dialect.Backend) error {
	if err := b.CreateTable(ctx, t.table, t.Fields(), t.PrimaryKeys(), t.UniqueKeys()); err != nil {
		return NewBackendError(t.name, "create table", err)
	}
	return nil
}

// DropTable drops the table of t if it exists.
func (t *EntityType) DropTable(ctx context.Context, b dialect.Backend) error {
	if err := b.DropTable(ctx, t.table); err != nil {
		return NewBackendError(t.name, "drop table", err)
	}
	return nil
}

// Cached returns the number of instances in the identity cache.
func (t *EntityType) Cached() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.cache)
}
