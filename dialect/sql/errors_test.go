package sql

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

type stateErr string

func (e stateErr) Error() string    { return "state error " + string(e) }
func (e stateErr) SQLState() string { return string(e) }

func TestConstraintErrors(t *testing.T) {
	tests := []struct {
		name                      string
		err                       error
		unique, foreignKey, check bool
	}{
		{name: "nil"},
		{name: "other", err: errors.New("connection refused")},
		{name: "mysql duplicate", err: &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}, unique: true},
		{name: "mysql parent row", err: &mysql.MySQLError{Number: 1451}, foreignKey: true},
		{name: "mysql child row", err: fmt.Errorf("insert: %w", &mysql.MySQLError{Number: 1452}), foreignKey: true},
		{name: "mysql check", err: &mysql.MySQLError{Number: 3819}, check: true},
		{name: "pq unique", err: &pq.Error{Code: "23505"}, unique: true},
		{name: "pq foreign key", err: fmt.Errorf("wrapped: %w", &pq.Error{Code: "23503"}), foreignKey: true},
		{name: "pq check", err: &pq.Error{Code: "23514"}, check: true},
		{name: "sqlstate unique", err: stateErr("23505"), unique: true},
		{name: "sqlite text", err: errors.New("UNIQUE constraint failed: user.email"), unique: true},
		{name: "sqlite foreign key text", err: errors.New("FOREIGN KEY constraint failed"), foreignKey: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.unique, IsUniqueConstraintError(tt.err))
			assert.Equal(t, tt.foreignKey, IsForeignKeyConstraintError(tt.err))
			assert.Equal(t, tt.check, IsCheckConstraintError(tt.err))
			assert.Equal(t, tt.unique || tt.foreignKey || tt.check, IsConstraintError(tt.err))
		})
	}
}
