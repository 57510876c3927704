package rbac

import (
	"context"
	"errors"
	"strings"

	"crewplan.org/internal/obs"
)

// Actor is the authenticated principal an operation runs as: one user, one
// effective role for the session, one tenant.
type Actor struct {
	UserID   string
	Role     Role
	TenantID string
}

// DenyReason explains why authorization failed. The reason is kept for audit
// purposes; the HTTP layer must not leak CrossTenantAccess to callers.
type DenyReason string

const (
	DenyRoleLacksPermission DenyReason = "role_lacks_permission"
	DenyCrossTenantAccess   DenyReason = "cross_tenant_access"
	DenyUnknownPermission   DenyReason = "unknown_permission"
)

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed bool
	Reason  DenyReason
}

// Allow returns a permitting decision.
func Allow() Decision { return Decision{Allowed: true} }

// Deny returns a rejecting decision with the given reason.
func Deny(reason DenyReason) Decision { return Decision{Allowed: false, Reason: reason} }

// DecisionRecorder receives denied authorization decisions. Implemented by
// the audit trail writer; recording must never fail the caller.
type DecisionRecorder interface {
	RecordDenied(ctx context.Context, actor Actor, permission, resourceTenantID string, reason DenyReason)
}

// Resolver answers permission and tenant questions for protected operations.
// It is the single call site every protected operation must use; calling
// code never consults the catalogue directly.
type Resolver struct {
	catalogue *Catalogue
	recorder  DecisionRecorder
}

// NewResolver constructs a Resolver. recorder may be nil for tests.
func NewResolver(catalogue *Catalogue, recorder DecisionRecorder) (*Resolver, error) {
	if catalogue == nil {
		return nil, errors.New("rbac: catalogue is required")
	}
	return &Resolver{catalogue: catalogue, recorder: recorder}, nil
}

// HasPermission reports whether the role holds the named permission. Unknown
// names return ErrUnknownPermission: that is a configuration defect, not a
// user denial.
func (r *Resolver) HasPermission(role Role, name string) (bool, error) {
	return r.catalogue.Allows(role, name)
}

// HasAnyPermission is a short-circuit OR over HasPermission.
func (r *Resolver) HasAnyPermission(role Role, names []string) (bool, error) {
	for _, name := range names {
		ok, err := r.catalogue.Allows(role, name)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// HasAllPermissions is a short-circuit AND over HasPermission.
func (r *Resolver) HasAllPermissions(role Role, names []string) (bool, error) {
	for _, name := range names {
		ok, err := r.catalogue.Allows(role, name)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// Authorize is the composite check used by every protected operation. The
// permission predicate and the tenant predicate are evaluated independently:
// role changes and isolation changes stay separately testable. Every deny is
// forwarded to the audit trail; allows are not separately audited here
// (workflow transitions audit themselves).
func (r *Resolver) Authorize(ctx context.Context, actor Actor, permissionName, resourceTenantID string) Decision {
	permissionName = strings.TrimSpace(permissionName)

	if !r.catalogue.IsDefined(permissionName) {
		obs.Warn("authorization check referenced unknown permission", map[string]any{
			"permission": permissionName,
			"user_id":    actor.UserID,
		})
		return r.deny(ctx, actor, permissionName, resourceTenantID, DenyUnknownPermission)
	}

	allowed, err := r.catalogue.Allows(actor.Role, permissionName)
	if err != nil {
		return r.deny(ctx, actor, permissionName, resourceTenantID, DenyUnknownPermission)
	}
	if !allowed {
		return r.deny(ctx, actor, permissionName, resourceTenantID, DenyRoleLacksPermission)
	}

	perm, err := r.catalogue.PermissionFor(permissionName)
	if err != nil {
		return r.deny(ctx, actor, permissionName, resourceTenantID, DenyUnknownPermission)
	}
	// Scope "all" reaches across tenants; own/company never do.
	if perm.Scope != ScopeAll && actor.TenantID != resourceTenantID {
		return r.deny(ctx, actor, permissionName, resourceTenantID, DenyCrossTenantAccess)
	}

	obs.ObserveAuthzDecision(true, "")
	return Allow()
}

func (r *Resolver) deny(ctx context.Context, actor Actor, permission, resourceTenantID string, reason DenyReason) Decision {
	obs.ObserveAuthzDecision(false, string(reason))
	if r.recorder != nil {
		r.recorder.RecordDenied(ctx, actor, permission, resourceTenantID, reason)
	}
	return Deny(reason)
}
