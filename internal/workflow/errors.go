package workflow

import "errors"

var (
	// ErrUnknownEntityType is a configuration error: a caller referenced an
	// entity type with no registered definition.
	ErrUnknownEntityType = errors.New("workflow: unknown entity type")

	// Expected denial outcomes. Returned as values, never panics; the HTTP
	// layer maps them to structured responses.
	ErrNotFoundOrForbidden = errors.New("workflow: not found")
	ErrTerminalState       = errors.New("workflow: state is terminal")
	ErrInvalidTransition   = errors.New("workflow: invalid transition")
	ErrAuthorization       = errors.New("workflow: not authorized")
	ErrConflict            = errors.New("workflow: instance already exists")

	// Transient infrastructure errors, safe to retry from the initial read.
	ErrStorageTimeout         = errors.New("workflow: storage timeout")
	ErrConcurrentModification = errors.New("workflow: concurrent modification")
)
