package httpapi

import (
	"net/http"
	"strings"
)

type authzCheckRequest struct {
	Permission       string `json:"permission"`
	ResourceTenantID string `json:"resource_tenant_id"`
}

type authzCheckResponse struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// handleAuthzCheck exposes the resolver as an introspection endpoint. It
// evaluates the composite check for the authenticated actor without touching
// any resource; denials here are audited like any other.
func (a *API) handleAuthzCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var req authzCheckRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Permission) == "" {
		writeError(w, r, http.StatusBadRequest, "permission is required")
		return
	}
	target := strings.TrimSpace(req.ResourceTenantID)
	if target == "" {
		target = actor.TenantID
	}

	decision := a.resolver.Authorize(r.Context(), actor, req.Permission, target)
	writeJSON(w, http.StatusOK, authzCheckResponse{
		Allowed: decision.Allowed,
		Reason:  string(decision.Reason),
	})
}
