package rbac

import (
	"fmt"
	"strings"
)

// Role is a closed enum. Hierarchy levels and categories are reference data
// created by seeding; they are never mutated at runtime.
type Role string

const (
	RoleClient     Role = "client"
	RolePromoter   Role = "promoter"
	RoleStaff      Role = "staff"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// roleLevels orders roles by privilege; higher level wins "at least" checks.
var roleLevels = map[Role]int{
	RoleClient:     10,
	RolePromoter:   20,
	RoleStaff:      40,
	RoleAdmin:      60,
	RoleSuperAdmin: 80,
}

var roleCategories = map[Role]string{
	RoleClient:     "client",
	RolePromoter:   "provider",
	RoleStaff:      "admin",
	RoleAdmin:      "admin",
	RoleSuperAdmin: "admin",
}

// Roles lists every known role ordered by ascending privilege.
func Roles() []Role {
	return []Role{RoleClient, RolePromoter, RoleStaff, RoleAdmin, RoleSuperAdmin}
}

// ParseRole validates an externally supplied role string. Unknown values are
// rejected here, at the boundary, so internal call sites never see them.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.TrimSpace(strings.ToLower(raw)))
	if _, ok := roleLevels[role]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, raw)
	}
	return role, nil
}

// IsValid reports whether the role belongs to the closed enum.
func (r Role) IsValid() bool {
	_, ok := roleLevels[r]
	return ok
}

// Level returns the hierarchy level of the role. Roles are a closed enum, so
// an unknown role is a construction-time error; Level panics to keep that
// defect from propagating as a silent zero.
func Level(role Role) int {
	level, ok := roleLevels[role]
	if !ok {
		panic(fmt.Sprintf("rbac: level requested for unknown role %q", role))
	}
	return level
}

// Category returns the coarse grouping tag of the role.
func Category(role Role) string {
	cat, ok := roleCategories[role]
	if !ok {
		panic(fmt.Sprintf("rbac: category requested for unknown role %q", role))
	}
	return cat
}

// AtLeast reports whether actor is at least as privileged as required.
func AtLeast(actor, required Role) bool {
	return Level(actor) >= Level(required)
}
