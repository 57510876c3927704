package rbac

import "errors"

var (
	// Configuration errors. These indicate a deployment defect (a caller
	// referencing a permission or role that was never seeded) and are
	// surfaced loudly instead of being silently denied.
	ErrUnknownPermission = errors.New("rbac: unknown permission")
	ErrUnknownRole       = errors.New("rbac: unknown role")

	ErrInvalidInput = errors.New("rbac: invalid input")
	ErrNotFound     = errors.New("rbac: not found")
	ErrConflict     = errors.New("rbac: resource conflict")
)
