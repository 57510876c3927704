package rbac

import "fmt"

// Grant binds a permission to roles. Exactly one of Roles or MinRole is set:
// Roles enumerates the allowed roles explicitly, MinRole allows every role at
// least as privileged as the named one (monotone in hierarchy level).
type Grant struct {
	Permission Permission
	Roles      []Role
	MinRole    Role
}

type grantRule struct {
	permission Permission
	explicit   map[Role]struct{}
	minRole    Role
	hasMin     bool
}

// Catalogue is the static permission registry. It is built once at startup
// from seed grants and never mutated afterwards, so concurrent reads need no
// synchronization.
type Catalogue struct {
	rules map[string]*grantRule
}

// NewCatalogue builds a catalogue from grants. Re-asserting a grant for the
// same (permission, role) pair is a no-op, never a duplicate; seeding the
// same data twice must produce an identical catalogue.
func NewCatalogue(grants []Grant) (*Catalogue, error) {
	c := &Catalogue{rules: make(map[string]*grantRule, len(grants))}
	for _, g := range grants {
		name := g.Permission.Name()
		if _, err := ParsePermission(name); err != nil {
			return nil, err
		}
		rule, ok := c.rules[name]
		if !ok {
			rule = &grantRule{permission: g.Permission, explicit: make(map[Role]struct{})}
			c.rules[name] = rule
		}
		for _, role := range g.Roles {
			if !role.IsValid() {
				return nil, fmt.Errorf("%w: grant for %s names role %q", ErrUnknownRole, name, role)
			}
			rule.explicit[role] = struct{}{}
		}
		if g.MinRole != "" {
			if !g.MinRole.IsValid() {
				return nil, fmt.Errorf("%w: grant for %s names role %q", ErrUnknownRole, name, g.MinRole)
			}
			// Lowest minimum wins when a grant is re-asserted.
			if !rule.hasMin || Level(g.MinRole) < Level(rule.minRole) {
				rule.minRole = g.MinRole
			}
			rule.hasMin = true
		}
	}
	return c, nil
}

// IsDefined reports whether the permission name exists in the catalogue.
func (c *Catalogue) IsDefined(name string) bool {
	_, ok := c.rules[name]
	return ok
}

// ResolveAllowedRoles returns the set of roles granted the named permission.
// Unknown names are a configuration error, surfaced loudly rather than
// silently denied.
func (c *Catalogue) ResolveAllowedRoles(name string) (map[Role]struct{}, error) {
	rule, ok := c.rules[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPermission, name)
	}
	allowed := make(map[Role]struct{}, len(rule.explicit))
	for role := range rule.explicit {
		allowed[role] = struct{}{}
	}
	if rule.hasMin {
		for _, role := range Roles() {
			if AtLeast(role, rule.minRole) {
				allowed[role] = struct{}{}
			}
		}
	}
	return allowed, nil
}

// Allows reports whether the role holds the named permission.
func (c *Catalogue) Allows(role Role, name string) (bool, error) {
	rule, ok := c.rules[name]
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownPermission, name)
	}
	if _, ok := rule.explicit[role]; ok {
		return true, nil
	}
	if rule.hasMin && AtLeast(role, rule.minRole) {
		return true, nil
	}
	return false, nil
}

// PermissionFor returns the stored permission triple for a canonical name.
func (c *Catalogue) PermissionFor(name string) (Permission, error) {
	rule, ok := c.rules[name]
	if !ok {
		return Permission{}, fmt.Errorf("%w: %q", ErrUnknownPermission, name)
	}
	return rule.permission, nil
}
