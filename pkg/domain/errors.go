package domain

import "fmt"

// ErrNotFound is returned when an entity lookup fails.
type ErrNotFound struct {
	Entity EntityType
	ID     int64
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

// ErrAlreadyExists is returned when a create collides with an existing id.
type ErrAlreadyExists struct {
	Entity EntityType
	ID     int64
}

func (e ErrAlreadyExists) Error() string {
	return fmt.Sprintf("%s %d already exists", e.Entity, e.ID)
}
