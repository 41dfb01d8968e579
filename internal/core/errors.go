package core

import "errors"

var (
	// ErrInvalidArgument is returned when a configuration value is rejected.
	// Rejected values never modify existing state.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrObjectNotFound is returned when an object-scoped weird references an
	// object that cannot be resolved.
	ErrObjectNotFound = errors.New("object not found")
)
