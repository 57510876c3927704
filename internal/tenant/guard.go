// Package tenant implements the cross-cutting isolation guard. Every
// read/write must resolve against the caller's own tenant id. The guard runs
// in addition to the store's row filtering; both layers stay in place.
package tenant

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCrossTenant indicates a caller touching a resource outside its tenant.
var ErrCrossTenant = errors.New("tenant: cross-tenant access")

// AssertSameTenant fails when the caller and resource tenants differ.
// Empty tenant ids are rejected: an unscoped check is a programming error,
// not an allow.
func AssertSameTenant(callerTenantID, resourceTenantID string) error {
	callerTenantID = strings.TrimSpace(callerTenantID)
	resourceTenantID = strings.TrimSpace(resourceTenantID)
	if callerTenantID == "" || resourceTenantID == "" {
		return fmt.Errorf("%w: tenant id missing", ErrCrossTenant)
	}
	if callerTenantID != resourceTenantID {
		return fmt.Errorf("%w: caller %s, resource %s", ErrCrossTenant, callerTenantID, resourceTenantID)
	}
	return nil
}
