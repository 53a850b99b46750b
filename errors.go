package ezdb

import (
	"errors"
	"fmt"
)

// Standard sentinel errors for common operations.
var (
	// ErrNotFound is returned when a registry lookup, a subscription removal
	// or a single-row select finds nothing.
	ErrNotFound = errors.New("ezdb: not found")

	// ErrAttribute is returned for unknown attribute names and for writes
	// the attribute does not allow.
	ErrAttribute = errors.New("ezdb: attribute error")

	// ErrState is returned when an entity is mutated after it was deleted or closed.
	ErrState = errors.New("ezdb: invalid entity state")

	// ErrType is returned when a reference is assigned a value of the wrong entity type.
	ErrType = errors.New("ezdb: type mismatch")

	// ErrSchema is returned when an entity type definition is rejected.
	ErrSchema = errors.New("ezdb: invalid schema")

	// ErrAlias is returned when a joined result column cannot be split.
	ErrAlias = errors.New("ezdb: invalid column alias")

	// ErrDereference is returned when a referenced entity lacks its key.
	ErrDereference = errors.New("ezdb: dereference failed")
)

// NotFoundError represents an error when something looked up by name or key does not exist.
type NotFoundError struct {
	label string
	key   any // Optional: the name or key that was searched for
}

// Error returns the error string.
func (e *NotFoundError) Error() string {
	if e.key != nil {
		return fmt.Sprintf("ezdb: %s not found (%v)", e.label, e.key)
	}
	return fmt.Sprintf("ezdb: %s not found", e.label)
}

// Is reports whether the target error matches NotFoundError.
// This allows errors.Is(notFoundErr, ErrNotFound) to return true.
func (e *NotFoundError) Is(err error) bool {
	return err == ErrNotFound
}

// Label returns what was looked up.
func (e *NotFoundError) Label() string {
	return e.label
}

// Key returns the name or key that was searched for, if available.
func (e *NotFoundError) Key() any {
	return e.key
}

// NewNotFoundError returns a new NotFoundError for the given label.
func NewNotFoundError(label string) *NotFoundError {
	return &NotFoundError{label: label}
}

// NewNotFoundErrorWithKey returns a new NotFoundError with the key that was searched for.
func NewNotFoundErrorWithKey(label string, key any) *NotFoundError {
	return &NotFoundError{label: label, key: key}
}

// IsNotFound returns true if the error is a NotFoundError.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var e *NotFoundError
	return errors.As(err, &e) || errors.Is(err, ErrNotFound)
}

// AttributeError is returned when an attribute is unknown or may not be
// written or deleted.
type AttributeError struct {
	Entity string // Entity type name
	Name   string // Attribute name
	Reason string
}

// Error returns the error string.
func (e *AttributeError) Error() string {
	return fmt.Sprintf("ezdb: %s.%s: %s", e.Entity, e.Name, e.Reason)
}

// Is reports whether the target error matches AttributeError.
func (e *AttributeError) Is(err error) bool {
	return err == ErrAttribute
}

// IsAttributeError returns true if the error is an AttributeError.
func IsAttributeError(err error) bool {
	var e *AttributeError
	return errors.As(err, &e)
}

// StateError is returned when an entity in a terminal state is mutated.
type StateError struct {
	Entity string
	Op     string
	State  Flags
}

// Error returns the error string.
func (e *StateError) Error() string {
	return fmt.Sprintf("ezdb: cannot %s %s: entity is %s", e.Op, e.Entity, e.State)
}

// Is reports whether the target error matches StateError.
func (e *StateError) Is(err error) bool {
	return err == ErrState
}

// IsStateError returns true if the error is a StateError.
func IsStateError(err error) bool {
	var e *StateError
	return errors.As(err, &e)
}

// TypeError is returned when a reference is assigned a value that is not an
// instance of the declared entity type.
type TypeError struct {
	Entity   string // Entity type name
	Name     string // Reference name
	Expected string
	Actual   string
}

// Error returns the error string.
func (e *TypeError) Error() string {
	return fmt.Sprintf("ezdb: %s.%s: expecting an entity of type %q, got %s", e.Entity, e.Name, e.Expected, e.Actual)
}

// Is reports whether the target error matches TypeError.
func (e *TypeError) Is(err error) bool {
	return err == ErrType
}

// IsTypeError returns true if the error is a TypeError.
func IsTypeError(err error) bool {
	var e *TypeError
	return errors.As(err, &e)
}

// BackendError wraps a failure reported by the storage backend. The
// backend's native error is kept unchanged and is reachable with errors.As.
type BackendError struct {
	Entity string // Entity type being operated on
	Op     string // Operation (e.g., "insert", "select", "update", "delete")
	Err    error  // Underlying error
}

// Error returns the error string.
func (e *BackendError) Error() string {
	return fmt.Sprintf("ezdb: %s %s: %v", e.Op, e.Entity, e.Err)
}

// Unwrap returns the underlying error.
func (e *BackendError) Unwrap() error {
	return e.Err
}

// NewBackendError returns a new BackendError.
func NewBackendError(entity, op string, err error) *BackendError {
	return &BackendError{Entity: entity, Op: op, Err: err}
}

// IsBackendError returns true if the error is a BackendError.
func IsBackendError(err error) bool {
	var e *BackendError
	return errors.As(err, &e)
}

// SchemaError is returned when an entity type definition is rejected.
type SchemaError struct {
	Entity string
	Msg    string
}

// Error returns the error string.
func (e *SchemaError) Error() string {
	return fmt.Sprintf("ezdb: schema %s: %s", e.Entity, e.Msg)
}

// Is reports whether the target error matches SchemaError.
func (e *SchemaError) Is(err error) bool {
	return err == ErrSchema
}

func schemaErrorf(entity, format string, args ...any) *SchemaError {
	return &SchemaError{Entity: entity, Msg: fmt.Sprintf(format, args...)}
}

// IsSchemaError returns true if the error is a SchemaError.
func IsSchemaError(err error) bool {
	var e *SchemaError
	return errors.As(err, &e)
}

// AliasError is returned when a joined result column cannot be split into
// its table and field.
type AliasError struct {
	Alias string
}

// Error returns the error string.
func (e *AliasError) Error() string {
	return fmt.Sprintf("ezdb: column %q is not of the form <table>%s<field>", e.Alias, AliasSeparator)
}

// Is reports whether the target error matches AliasError.
func (e *AliasError) Is(err error) bool {
	return err == ErrAlias
}

// IsAliasError returns true if the error is an AliasError.
func IsAliasError(err error) bool {
	var e *AliasError
	return errors.As(err, &e)
}

// DereferenceError is returned when a referenced entity does not carry the
// primary-key values its referencing entity needs.
type DereferenceError struct {
	Entity    string // Referencing entity type
	Reference string // Reference name
	Key       string // Missing primary-key field of the referenced entity
}

// Error returns the error string.
func (e *DereferenceError) Error() string {
	return fmt.Sprintf("ezdb: %s.%s: referenced entity has no value for primary key %q", e.Entity, e.Reference, e.Key)
}

// Is reports whether the target error matches DereferenceError.
func (e *DereferenceError) Is(err error) bool {
	return err == ErrDereference
}

// IsDereferenceError returns true if the error is a DereferenceError.
func IsDereferenceError(err error) bool {
	var e *DereferenceError
	return errors.As(err, &e)
}
