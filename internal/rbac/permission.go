package rbac

import (
	"fmt"
	"strings"
)

// Scope narrows a permission to the actor's own records, the actor's
// company, or all tenants.
type Scope string

const (
	ScopeOwn     Scope = "own"
	ScopeCompany Scope = "company"
	ScopeAll     Scope = "all"
)

// Permission is a structured (resource, action, scope) triple. Immutable
// reference data; the catalogue is the only place permissions live.
type Permission struct {
	Resource string
	Action   string
	Scope    Scope
}

// Name returns the canonical permission name, resource:action:scope.
func (p Permission) Name() string {
	return fmt.Sprintf("%s:%s:%s", p.Resource, p.Action, p.Scope)
}

// ParsePermission decodes a canonical permission name back into its triple.
func ParsePermission(name string) (Permission, error) {
	parts := strings.Split(strings.TrimSpace(name), ":")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
		return Permission{}, fmt.Errorf("%w: malformed name %q", ErrUnknownPermission, name)
	}
	scope := Scope(parts[2])
	switch scope {
	case ScopeOwn, ScopeCompany, ScopeAll:
	default:
		return Permission{}, fmt.Errorf("%w: unsupported scope in %q", ErrUnknownPermission, name)
	}
	return Permission{Resource: parts[0], Action: parts[1], Scope: scope}, nil
}
