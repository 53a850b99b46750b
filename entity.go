package ezdb

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"sync"

	"github.com/syssam/ezdb/dialect"
	"github.com/syssam/ezdb/dialect/sql"
)

// Entity is one record of an EntityType. Instances with the same local
// unique id are shared through the type's identity cache, so an *Entity
// may be observed by several callers at once; all methods are safe for
// concurrent use.
type Entity struct {
	typ *EntityType
	db  dialect.Backend

	// op serialises Insert, Update, Delete and Close.
	op sync.Mutex

	mu      sync.RWMutex
	values  Values
	refs    map[string]*Entity
	data    map[string]any
	flags   Flags
	version uint64
	hooks   hooks

	// cacheKey is the identity-cache key of the instance, guarded by typ.mu.
	cacheKey string
}

// New constructs an instance of t bound to backend b. values may hold
// field values, reference values (*Entity) and ad hoc data. Supplying every
// primary key marks the instance as an existing record; otherwise it is new.
//
// If the type's identity cache already holds an instance with the same local
// unique id, that instance is returned and the one built here is discarded.
func (t *EntityType) New(b dialect.Backend, values Values) (*Entity, error) {
	e := &Entity{
		typ:    t,
		db:     b,
		values: make(Values, len(t.fields)),
		refs:   make(map[string]*Entity, len(t.refs)),
		data:   make(map[string]any),
		flags:  FlagNew,
	}
	for name, v := range values {
		if err := e.assign(name, v); err != nil {
			return nil, err
		}
	}
	if t.hasPrimary(e.values) {
		e.flags &^= FlagNew
	}
	return t.resolve(e), nil
}

// MustNew is like New but panics on error.
func (t *EntityType) MustNew(b dialect.Backend, values Values) *Entity {
	e, err := t.New(b, values)
	if err != nil {
		panic(err)
	}
	return e
}

func (t *EntityType) hasPrimary(values Values) bool {
	for _, k := range t.primary {
		if values[k] == nil {
			return false
		}
	}
	return true
}

// resolve returns the cached instance sharing e's identity, or caches e.
func (t *EntityType) resolve(e *Entity) *Entity {
	id := t.localUniqueID(e.values)
	if id == "" {
		return e
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if cached, ok := t.cache[id]; ok {
		return cached
	}
	t.cache[id] = e
	e.cacheKey = id
	return e
}

// adopt caches e after its identity became known, unless the slot is taken.
func (t *EntityType) adopt(e *Entity) {
	e.mu.RLock()
	id := t.localUniqueID(e.values)
	closed := e.flags.Has(FlagClosed)
	e.mu.RUnlock()
	if id == "" || closed {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if e.cacheKey != "" {
		return
	}
	if _, ok := t.cache[id]; !ok {
		t.cache[id] = e
		e.cacheKey = id
	}
}

// forget removes e from the identity cache.
func (t *EntityType) forget(e *Entity) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e.cacheKey == "" {
		return
	}
	if t.cache[e.cacheKey] == e {
		delete(t.cache, e.cacheKey)
	}
	e.cacheKey = ""
}

// localUniqueID joins the non-auto-increment primary keys and the unique
// keys of values. It is empty if any of them is missing.
func (t *EntityType) localUniqueID(values Values) string {
	if len(t.localUnique) == 0 {
		return ""
	}
	parts := make([]string, len(t.localUnique))
	for i, k := range t.localUnique {
		v := values[k]
		if v == nil {
			return ""
		}
		parts[i] = keyString(v)
	}
	return strings.Join(parts, AliasSeparator)
}

func keyString(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// Type returns the entity type of the instance.
func (e *Entity) Type() *EntityType { return e.typ }

// Backend returns the backend the instance is bound to.
func (e *Entity) Backend() dialect.Backend { return e.db }

// Flags returns the lifecycle flags.
func (e *Entity) Flags() Flags {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.flags
}

// IsNew reports if the instance has not been inserted.
func (e *Entity) IsNew() bool { return e.Flags().Has(FlagNew) }

// IsDirty reports if the instance has local changes.
func (e *Entity) IsDirty() bool { return e.Flags().Has(FlagDirty) }

// IsDeleted reports if the instance has been deleted.
func (e *Entity) IsDeleted() bool { return e.Flags().Has(FlagDeleted) }

// IsClosed reports if the instance has been closed.
func (e *Entity) IsClosed() bool { return e.Flags().Has(FlagClosed) }

// UniqueID returns the local unique id, or "" if the instance has none.
func (e *Entity) UniqueID() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.typ.localUniqueID(e.values)
}

// Get returns the named field value, reference or ad hoc value. Declared
// fields and references that are not set yet return nil.
func (e *Entity) Get(name string) (any, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if _, ok := e.typ.index[name]; ok {
		return e.values[name], nil
	}
	if _, ok := e.typ.refIdx[name]; ok {
		if ref, ok := e.refs[name]; ok {
			return ref, nil
		}
		return nil, nil
	}
	if v, ok := e.data[name]; ok {
		return v, nil
	}
	return nil, &AttributeError{Entity: e.typ.name, Name: name, Reason: "no such attribute"}
}

// Value returns a declared field value.
func (e *Entity) Value(name string) (any, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.values[name]
	return v, ok
}

// Ref returns the entity assigned to the named reference.
func (e *Entity) Ref(name string) (*Entity, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.refs[name]
	return v, ok
}

// Extra returns an ad hoc value that is not part of the schema.
func (e *Entity) Extra(name string) (any, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.data[name]
	return v, ok
}

// Values returns a copy of the declared field values.
func (e *Entity) Values() Values {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return maps.Clone(e.values)
}

// Set writes a field, a reference or an ad hoc value. Primary and unique
// keys cannot be written, and deleted or closed instances cannot be
// modified. Writing to a persisted instance marks it dirty and fires the
// change callbacks.
func (e *Entity) Set(name string, value any) error {
	if e.typ.isKey(name) {
		return &AttributeError{Entity: e.typ.name, Name: name, Reason: "primary and unique keys cannot be changed"}
	}
	e.mu.Lock()
	if e.flags.Terminal() {
		flags := e.flags
		e.mu.Unlock()
		return &StateError{Entity: e.typ.name, Op: "set " + name + " on", State: flags}
	}
	if err := e.assign(name, value); err != nil {
		e.mu.Unlock()
		return err
	}
	changed := e.changed()
	e.mu.Unlock()
	if changed {
		e.notify(EventChange, Values{name: value})
	}
	return nil
}

// Unset always fails: attributes cannot be deleted.
func (e *Entity) Unset(name string) error {
	return &AttributeError{Entity: e.typ.name, Name: name, Reason: "attributes cannot be deleted"}
}

// assign stores value under name without the key guard. e.mu must be held
// or e must not be shared yet.
func (e *Entity) assign(name string, value any) error {
	t := e.typ
	if _, ok := t.index[name]; ok {
		e.values[name] = value
		return nil
	}
	if ref, ok := t.refIdx[name]; ok {
		target, ok := value.(*Entity)
		if !ok || target == nil {
			return &TypeError{Entity: t.name, Name: name, Expected: ref.target.name, Actual: fmt.Sprintf("%T", value)}
		}
		if target.typ != ref.target {
			return &TypeError{Entity: t.name, Name: name, Expected: ref.target.name, Actual: target.typ.name}
		}
		e.refs[name] = target
		return nil
	}
	e.data[name] = value
	return nil
}

// changed records a local modification. It reports if change callbacks are
// due, which is the case for instances that are not new. e.mu must be held.
func (e *Entity) changed() bool {
	e.version++
	if e.flags.Has(FlagNew) {
		return false
	}
	e.flags |= FlagDirty
	return true
}

// dereference copies the primary keys of the referenced entities into the
// foreign-key fields. e.mu must be held.
func (e *Entity) dereference() error {
	for _, ref := range e.typ.refs {
		target, ok := e.refs[ref.Name]
		if !ok {
			continue
		}
		target.mu.RLock()
		for _, k := range ref.keys {
			v := target.values[k.remote]
			if v == nil {
				target.mu.RUnlock()
				return &DereferenceError{Entity: e.typ.name, Reference: ref.Name, Key: k.remote}
			}
			e.values[k.local] = v
		}
		target.mu.RUnlock()
	}
	return nil
}

// applyDefaults fills absent fields that declare a default function.
// e.mu must be held.
func (e *Entity) applyDefaults() {
	for _, fd := range e.typ.fields {
		if fd.DefaultFunc != nil && e.values[fd.Name] == nil {
			e.values[fd.Name] = fd.DefaultFunc()
		}
	}
}

// primaryConditions returns the conditions selecting the row of values.
func (t *EntityType) primaryConditions(values Values) []dialect.Condition {
	conds := make([]dialect.Condition, 0, len(t.primary))
	for _, k := range t.primary {
		conds = append(conds, dialect.Where(k, values[k]))
	}
	return conds
}

// localConditions returns the conditions selecting a row by its local
// unique fields, plus the auto-increment key when it is known.
func (t *EntityType) localConditions(values Values, id int64) []dialect.Condition {
	var conds []dialect.Condition
	for _, k := range t.localUnique {
		if v := values[k]; v != nil {
			conds = append(conds, dialect.Where(k, v))
		}
	}
	if t.autoKey != "" {
		switch v := values[t.autoKey]; {
		case v != nil:
			conds = append(conds, dialect.Where(t.autoKey, v))
		case id != 0:
			conds = append(conds, dialect.Where(t.autoKey, id))
		}
	}
	return conds
}

// Insert inserts a new instance. Deleted, closed and already persisted
// instances are skipped. If the backend rejects the statement, the row is
// assumed to exist already and the instance takes its stored values; the
// result then reports Merged with the backend error.
func (e *Entity) Insert(ctx context.Context) Result {
	e.op.Lock()
	defer e.op.Unlock()
	return e.insert(ctx)
}

func (e *Entity) insert(ctx context.Context) Result {
	t := e.typ
	res := Result{Op: OpInsert}
	e.mu.Lock()
	if e.flags.Terminal() || !e.flags.Has(FlagNew) {
		e.mu.Unlock()
		res.Status = Skipped
		return res
	}
	e.applyDefaults()
	if err := e.dereference(); err != nil {
		e.mu.Unlock()
		res.Status, res.Err = DereferenceFailed, err
		return res
	}
	sent := maps.Clone(e.values)
	e.mu.Unlock()

	id, err := e.db.Insert(ctx, t.table, sent)
	if err != nil {
		res.Status, res.Err = Merged, NewBackendError(t.name, "insert", err)
		if sql.IsUniqueConstraintError(err) {
			t.reg.log.DebugContext(ctx, "insert hit a unique key, merging with stored row", "type", t.name, "error", err)
		} else {
			t.reg.log.WarnContext(ctx, "insert failed, merging with stored row", "type", t.name, "constraint", sql.IsConstraintError(err), "error", err)
		}
		if row, perr := t.pull(ctx, e.db, sent, 0); perr == nil {
			e.replace(row)
		} else {
			t.reg.log.DebugContext(ctx, "no stored row to merge with", "type", t.name, "error", perr)
		}
	} else {
		res.Status = Applied
		t.invalidate(ctx)
		if row, perr := t.pull(ctx, e.db, sent, id); perr == nil {
			if differs(row, sent) {
				e.replace(row)
			}
		} else {
			t.reg.log.WarnContext(ctx, "re-reading inserted row", "type", t.name, "error", perr)
		}
	}

	e.mu.Lock()
	e.flags &^= FlagNew | FlagDirty
	e.mu.Unlock()
	t.adopt(e)
	e.notify(EventInsert, nil)
	e.notify(EventUpdate, nil)
	return res
}

// pull reads the stored row identified by the local unique fields of values.
func (t *EntityType) pull(ctx context.Context, b dialect.Backend, values Values, id int64) (dialect.Row, error) {
	conds := t.localConditions(values, id)
	if len(conds) == 0 {
		return nil, fmt.Errorf("ezdb: %s has no identifying values", t.name)
	}
	rows, err := b.Select(ctx, t.table, t.FieldNames(), conds, nil, 0, 1)
	if err != nil {
		return nil, NewBackendError(t.name, "select", err)
	}
	if len(rows) == 0 {
		return nil, NewNotFoundErrorWithKey(t.name, conds)
	}
	return rows[0], nil
}

// replace takes the declared fields of row as the instance values.
func (e *Entity) replace(row dialect.Row) {
	values := make(Values, len(row))
	for k, v := range row {
		if _, ok := e.typ.index[k]; ok {
			values[k] = v
		}
	}
	e.mu.Lock()
	e.values = values
	e.mu.Unlock()
}

// differs reports if row holds a value that was not sent.
func differs(row dialect.Row, sent Values) bool {
	for k, v := range row {
		s := sent[k]
		if (v == nil) != (s == nil) {
			return true
		}
		if v != nil && keyString(v) != keyString(s) {
			return true
		}
	}
	return false
}

// Update writes local changes. A new instance is inserted instead; a clean
// one is left alone. Backend failures are returned as errors.
func (e *Entity) Update(ctx context.Context) (Result, error) {
	e.op.Lock()
	defer e.op.Unlock()

	t := e.typ
	res := Result{Op: OpUpdate}
	e.mu.Lock()
	switch {
	case e.flags.Terminal():
		e.mu.Unlock()
		res.Status = Skipped
		return res, nil
	case e.flags.Has(FlagNew):
		e.mu.Unlock()
		return e.insert(ctx), nil
	case !e.flags.Has(FlagDirty):
		e.mu.Unlock()
		res.Status = Unchanged
		return res, nil
	}
	if err := e.dereference(); err != nil {
		e.mu.Unlock()
		res.Status, res.Err = DereferenceFailed, err
		return res, nil
	}
	sent := maps.Clone(e.values)
	version := e.version
	e.mu.Unlock()

	if err := e.db.Update(ctx, t.table, sent, t.primaryConditions(sent)); err != nil {
		res.Status, res.Err = BackendFailed, NewBackendError(t.name, "update", err)
		return res, res.Err
	}
	t.invalidate(ctx)
	e.mu.Lock()
	if e.version == version {
		e.flags &^= FlagDirty
	}
	e.mu.Unlock()
	res.Status = Applied
	e.notify(EventUpdate, nil)
	return res, nil
}

// Delete deletes the stored row and closes the instance. A new instance
// has no stored row; it is only marked deleted and closed.
func (e *Entity) Delete(ctx context.Context) (Result, error) {
	e.op.Lock()
	defer e.op.Unlock()

	t := e.typ
	res := Result{Op: OpDelete}
	e.mu.Lock()
	if e.flags.Terminal() {
		e.mu.Unlock()
		res.Status = Skipped
		return res, nil
	}
	persisted := !e.flags.Has(FlagNew)
	conds := t.primaryConditions(e.values)
	e.mu.Unlock()

	if persisted {
		if err := e.db.Delete(ctx, t.table, conds); err != nil {
			res.Status, res.Err = BackendFailed, NewBackendError(t.name, "delete", err)
			return res, res.Err
		}
		t.invalidate(ctx)
	}
	e.mu.Lock()
	e.flags |= FlagDeleted
	e.mu.Unlock()
	e.notify(EventDelete, nil)
	if !e.close() {
		res.Status = Skipped
		return res, nil
	}
	res.Status = Applied
	return res, nil
}

// Close removes the instance from the identity cache and rejects any
// further modification. It reports false if the instance was already closed.
func (e *Entity) Close() bool {
	e.op.Lock()
	defer e.op.Unlock()
	return e.close()
}

func (e *Entity) close() bool {
	e.mu.Lock()
	if e.flags.Has(FlagClosed) {
		e.mu.Unlock()
		return false
	}
	e.flags |= FlagClosed
	e.mu.Unlock()
	e.typ.forget(e)
	return true
}

// String implements the fmt.Stringer interface.
func (e *Entity) String() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var b strings.Builder
	b.WriteString(e.typ.name)
	b.WriteByte('{')
	n := 0
	for _, fd := range e.typ.fields {
		v, ok := e.values[fd.Name]
		if !ok {
			continue
		}
		if n > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s=%v", fd.Name, v)
		n++
	}
	b.WriteByte('}')
	return b.String()
}
