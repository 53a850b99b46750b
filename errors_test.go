package ezdb_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/ezdb"
)

func TestNotFoundError(t *testing.T) {
	t.Run("Error", func(t *testing.T) {
		err := ezdb.NewNotFoundError("User")
		assert.Equal(t, "ezdb: User not found", err.Error())

		err = ezdb.NewNotFoundErrorWithKey("entity type", "Order")
		assert.Equal(t, "ezdb: entity type not found (Order)", err.Error())
		assert.Equal(t, "entity type", err.Label())
		assert.Equal(t, "Order", err.Key())
	})

	t.Run("Is", func(t *testing.T) {
		err := ezdb.NewNotFoundError("Post")
		assert.True(t, errors.Is(err, ezdb.ErrNotFound))
		assert.False(t, errors.Is(err, ezdb.ErrAttribute))
	})

	t.Run("IsNotFound", func(t *testing.T) {
		err := ezdb.NewNotFoundError("Comment")
		assert.True(t, ezdb.IsNotFound(err))

		// Wrapped error
		wrapped := fmt.Errorf("wrapper: %w", err)
		assert.True(t, ezdb.IsNotFound(wrapped))

		// Sentinel error
		assert.True(t, ezdb.IsNotFound(ezdb.ErrNotFound))

		// Non-matching error
		assert.False(t, ezdb.IsNotFound(errors.New("other error")))
		assert.False(t, ezdb.IsNotFound(nil))
	})
}

func TestAttributeError(t *testing.T) {
	err := &ezdb.AttributeError{Entity: "User", Name: "email", Reason: "read only"}
	assert.Equal(t, "ezdb: User.email: read only", err.Error())
	assert.True(t, errors.Is(err, ezdb.ErrAttribute))
	assert.True(t, ezdb.IsAttributeError(fmt.Errorf("set: %w", err)))
	assert.False(t, ezdb.IsAttributeError(errors.New("other")))
}

func TestStateError(t *testing.T) {
	err := &ezdb.StateError{Entity: "User", Op: "set name on", State: ezdb.FlagDeleted | ezdb.FlagClosed}
	assert.Equal(t, "ezdb: cannot set name on User: entity is deleted|closed", err.Error())
	assert.True(t, errors.Is(err, ezdb.ErrState))
	assert.True(t, ezdb.IsStateError(err))
}

func TestTypeError(t *testing.T) {
	err := &ezdb.TypeError{Entity: "Order", Name: "customer", Expected: "User", Actual: "string"}
	assert.Contains(t, err.Error(), `expecting an entity of type "User", got string`)
	assert.True(t, errors.Is(err, ezdb.ErrType))
	assert.True(t, ezdb.IsTypeError(err))
}

func TestBackendError(t *testing.T) {
	cause := errors.New("UNIQUE constraint failed: user.email")
	err := ezdb.NewBackendError("User", "insert", cause)
	assert.Equal(t, "ezdb: insert User: UNIQUE constraint failed: user.email", err.Error())
	assert.True(t, errors.Is(err, cause))
	assert.True(t, ezdb.IsBackendError(fmt.Errorf("wrapped: %w", err)))

	var be *ezdb.BackendError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, "insert", be.Op)
}

func TestSchemaError(t *testing.T) {
	reg := ezdb.NewRegistry()
	_, err := reg.Define(ezdb.Schema{Name: "Empty"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ezdb.ErrSchema))
	assert.True(t, ezdb.IsSchemaError(err))
	assert.Contains(t, err.Error(), "ezdb: schema Empty:")
}

func TestAliasError(t *testing.T) {
	err := &ezdb.AliasError{Alias: "userid"}
	assert.Equal(t, `ezdb: column "userid" is not of the form <table>__<field>`, err.Error())
	assert.True(t, errors.Is(err, ezdb.ErrAlias))
	assert.False(t, errors.Is(err, ezdb.ErrDereference))
	assert.True(t, ezdb.IsAliasError(fmt.Errorf("select: %w", err)))
	assert.False(t, ezdb.IsAliasError(errors.New("other")))
}

func TestDereferenceError(t *testing.T) {
	err := &ezdb.DereferenceError{Entity: "Order", Reference: "customer", Key: "id"}
	assert.Equal(t, `ezdb: Order.customer: referenced entity has no value for primary key "id"`, err.Error())
	assert.True(t, ezdb.IsDereferenceError(err))
	assert.True(t, errors.Is(fmt.Errorf("insert: %w", err), ezdb.ErrDereference))
	assert.False(t, errors.Is(err, ezdb.ErrAlias))
}
