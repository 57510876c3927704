package rbac

// DefaultGrants is the platform's static permission seed. Loaded once at
// process start; re-applying it is idempotent by construction.
func DefaultGrants() []Grant {
	return []Grant{
		// Contracts.
		{Permission: Permission{Resource: "contract", Action: "create", Scope: ScopeOwn}, MinRole: RoleClient},
		{Permission: Permission{Resource: "contract", Action: "create", Scope: ScopeAll}, Roles: []Role{RoleAdmin, RoleSuperAdmin}},
		{Permission: Permission{Resource: "contract", Action: "read", Scope: ScopeCompany}, MinRole: RoleClient},
		{Permission: Permission{Resource: "contract", Action: "submit", Scope: ScopeCompany}, MinRole: RoleClient},
		{Permission: Permission{Resource: "contract", Action: "approve", Scope: ScopeCompany}, MinRole: RoleStaff},
		{Permission: Permission{Resource: "contract", Action: "reject", Scope: ScopeCompany}, MinRole: RoleStaff},
		{Permission: Permission{Resource: "contract", Action: "activate", Scope: ScopeCompany}, MinRole: RoleStaff},
		{Permission: Permission{Resource: "contract", Action: "complete", Scope: ScopeCompany}, MinRole: RoleStaff},
		{Permission: Permission{Resource: "contract", Action: "archive", Scope: ScopeCompany}, MinRole: RoleAdmin},

		// Bookings.
		{Permission: Permission{Resource: "booking", Action: "read", Scope: ScopeCompany}, MinRole: RoleClient},
		{Permission: Permission{Resource: "booking", Action: "confirm", Scope: ScopeCompany}, MinRole: RolePromoter},
		{Permission: Permission{Resource: "booking", Action: "decline", Scope: ScopeCompany}, MinRole: RolePromoter},
		{Permission: Permission{Resource: "booking", Action: "complete", Scope: ScopeCompany}, MinRole: RolePromoter},
		{Permission: Permission{Resource: "booking", Action: "cancel", Scope: ScopeCompany}, MinRole: RoleClient},

		// Documents.
		{Permission: Permission{Resource: "document", Action: "read", Scope: ScopeCompany}, MinRole: RoleClient},
		{Permission: Permission{Resource: "document", Action: "submit", Scope: ScopeCompany}, MinRole: RoleClient},
		{Permission: Permission{Resource: "document", Action: "approve", Scope: ScopeCompany}, MinRole: RoleStaff},
		{Permission: Permission{Resource: "document", Action: "reject", Scope: ScopeCompany}, MinRole: RoleStaff},
		{Permission: Permission{Resource: "document", Action: "archive", Scope: ScopeCompany}, MinRole: RoleAdmin},

		// Platform administration.
		{Permission: Permission{Resource: "principal", Action: "read", Scope: ScopeCompany}, MinRole: RoleStaff},
		{Permission: Permission{Resource: "principal", Action: "create", Scope: ScopeCompany}, MinRole: RoleAdmin},
		{Permission: Permission{Resource: "principal", Action: "reassign_role", Scope: ScopeCompany}, MinRole: RoleAdmin},
		{Permission: Permission{Resource: "audit", Action: "read", Scope: ScopeCompany}, MinRole: RoleAdmin},
		{Permission: Permission{Resource: "audit", Action: "read", Scope: ScopeAll}, Roles: []Role{RoleSuperAdmin}},
	}
}

// DefaultCatalogue builds the catalogue from DefaultGrants. The seed is
// static data, so a failure here is a programming error.
func DefaultCatalogue() *Catalogue {
	c, err := NewCatalogue(DefaultGrants())
	if err != nil {
		panic(err)
	}
	return c
}
