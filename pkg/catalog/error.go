package catalog

import "fmt"

// NotFoundError is returned when a record doesn't exist in the store.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e NotFoundError) Error() string {
	if e.ID == "" {
		return e.Kind + " not found"
	}
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// ConstraintError is returned when a write violates a relational constraint,
// e.g. a shop item referencing an unknown ingredient.
type ConstraintError struct {
	Msg string
}

func (e ConstraintError) Error() string {
	return "constraint violation: " + e.Msg
}

// WriteError wraps a backend failure during a write. The wrapped error is
// preserved for inspection.
type WriteError struct {
	Op  string
	Err error
}

func (e WriteError) Error() string {
	return fmt.Sprintf("write failed (%s): %v", e.Op, e.Err)
}

func (e WriteError) Unwrap() error {
	return e.Err
}
