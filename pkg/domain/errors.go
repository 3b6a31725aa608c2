package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound matches any NotFoundError.
	ErrNotFound = errors.New("not found")
	// ErrNoStationsAvailable is returned when a perturbation runs against an empty store.
	ErrNoStationsAvailable = errors.New("no stations available")
	// ErrInvalidPayload marks a seed upload without any recognized keys.
	ErrInvalidPayload = errors.New("invalid payload")
	// ErrInternal hides unexpected faults from callers.
	ErrInternal = errors.New("internal error")
)

// NotFoundError is returned when a record lookup fails.
type NotFoundError struct {
	Entity EntityType
	ID     string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// Unwrap lets errors.Is match ErrNotFound.
func (e NotFoundError) Unwrap() error { return ErrNotFound }

// StationNotFound builds a NotFoundError for a station id.
func StationNotFound(id int) NotFoundError {
	return NotFoundError{Entity: EntityStation, ID: fmt.Sprintf("%d", id)}
}
