package shared

import "errors"

var (
	// ErrNotFound indicates the referenced entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAccessDenied indicates an authorization predicate evaluated false.
	// Messages wrapping it name the attempted operation only.
	ErrAccessDenied = errors.New("access denied")
	// ErrInvalidState indicates an operation against an entity in the wrong
	// lifecycle state.
	ErrInvalidState = errors.New("invalid state")
	// ErrConstraintViolation indicates a uniqueness or referential-integrity
	// failure at the storage layer.
	ErrConstraintViolation = errors.New("constraint violation")
)
