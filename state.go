package ezdb

import "strings"

// Flags is the lifecycle state of an entity instance.
type Flags uint8

// Lifecycle flags. A new instance starts as FlagNew. FlagDeleted and
// FlagClosed are never cleared.
const (
	FlagNew Flags = 1 << iota
	FlagDirty
	FlagDeleted
	FlagClosed
)

// Has reports if all bits of x are set.
func (f Flags) Has(x Flags) bool {
	return f&x == x
}

// Terminal reports if the instance no longer accepts mutations.
func (f Flags) Terminal() bool {
	return f&(FlagDeleted|FlagClosed) != 0
}

// String returns the set flags joined by "|", or "clean".
func (f Flags) String() string {
	var names []string
	for _, x := range []struct {
		flag Flags
		name string
	}{
		{FlagNew, "new"},
		{FlagDirty, "dirty"},
		{FlagDeleted, "deleted"},
		{FlagClosed, "closed"},
	} {
		if f.Has(x.flag) {
			names = append(names, x.name)
		}
	}
	if len(names) == 0 {
		return "clean"
	}
	return strings.Join(names, "|")
}

// Operation names a lifecycle mutation.
type Operation string

// Lifecycle mutations.
const (
	OpInsert Operation = "insert"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Status is the outcome of a lifecycle mutation.
type Status uint8

// Mutation outcomes.
const (
	// Applied means the statement was executed by the backend.
	Applied Status = iota + 1
	// Merged means the backend rejected an insert and the instance took the
	// values of the row that already matches its identity.
	Merged
	// Unchanged means there was nothing to write.
	Unchanged
	// Skipped means the instance state does not allow the operation.
	Skipped
	// DereferenceFailed means a referenced entity lacks its primary key.
	DereferenceFailed
	// BackendFailed means the backend returned an error.
	BackendFailed
)

var statusNames = [...]string{
	Applied:           "applied",
	Merged:            "merged",
	Unchanged:         "unchanged",
	Skipped:           "skipped",
	DereferenceFailed: "dereference failed",
	BackendFailed:     "backend failed",
}

// String implements the fmt.Stringer interface.
func (s Status) String() string {
	if int(s) < len(statusNames) && statusNames[s] != "" {
		return statusNames[s]
	}
	return "unknown"
}

// Result reports how a lifecycle mutation ended. OK gives the plain
// success/failure answer; Status and Err tell the failure paths apart.
type Result struct {
	Op     Operation
	Status Status
	Err    error
}

// OK reports if the mutation counts as successful.
func (r Result) OK() bool {
	switch r.Status {
	case Applied, Merged, Unchanged:
		return true
	default:
		return false
	}
}
