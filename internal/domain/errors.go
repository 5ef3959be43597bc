package domain

import "fmt"

// ErrNotFound is returned by repositories when a row with the given id
// does not exist, following the teacher's per-entity not-found error
// shape (ErrContactListNotFound, ErrBroadcastNotFound) generalized to one
// type parameterized by entity name so every repository doesn't need its
// own copy.
type ErrNotFound struct {
	Entity string
	ID     string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

// NewErrNotFound builds an ErrNotFound for the given entity/id pair.
func NewErrNotFound(entity, id string) error {
	return &ErrNotFound{Entity: entity, ID: id}
}

// ErrValidation wraps a validation failure with the offending field.
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}
