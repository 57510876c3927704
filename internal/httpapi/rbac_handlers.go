package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"crewplan.org/internal/rbac"
)

type createPrincipalRequest struct {
	TenantID string `json:"tenant_id"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type reassignRoleRequest struct {
	Role string `json:"role"`
}

type listPrincipalsResponse struct {
	Items []rbac.Principal `json:"items"`
}

func (a *API) handlePrincipalsCollection(w http.ResponseWriter, r *http.Request) {
	if a.directory == nil {
		writeError(w, r, http.StatusServiceUnavailable, "principal directory unavailable")
		return
	}
	switch r.Method {
	case http.MethodPost:
		a.createPrincipal(w, r)
	case http.MethodGet:
		a.listPrincipals(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handlePrincipalResource(w http.ResponseWriter, r *http.Request) {
	if a.directory == nil {
		writeError(w, r, http.StatusServiceUnavailable, "principal directory unavailable")
		return
	}
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/principals/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	switch {
	case len(parts) == 1:
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.getPrincipal(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "role":
		if r.Method != http.MethodPut {
			methodNotAllowed(w, r, http.MethodPut)
			return
		}
		a.reassignRole(w, r, parts[0])
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) createPrincipal(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req createPrincipalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	tenantID := strings.TrimSpace(req.TenantID)
	if tenantID == "" {
		tenantID = actor.TenantID
	}
	if !a.authorize(w, r, actor, "principal:create:company", tenantID) {
		return
	}

	p, err := a.directory.Provision(r.Context(), tenantID, req.Email, req.Password, req.Role)
	if err != nil {
		handlePrincipalError(w, r, err)
		return
	}
	a.trail.RecordChange(r.Context(), actor, "principal.create", "principal", p.ID, map[string]string{
		"email": p.Email,
		"role":  string(p.Role),
	})
	w.Header().Set("Location", fmt.Sprintf("/v1/principals/%s", p.ID))
	writeJSON(w, http.StatusCreated, p)
}

func (a *API) getPrincipal(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	if !a.authorize(w, r, actor, "principal:read:company", actor.TenantID) {
		return
	}
	p, err := a.directory.Get(r.Context(), actor.TenantID, id)
	if err != nil {
		handlePrincipalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) listPrincipals(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	if !a.authorize(w, r, actor, "principal:read:company", actor.TenantID) {
		return
	}
	items, err := a.directory.List(r.Context(), actor.TenantID)
	if err != nil {
		handlePrincipalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listPrincipalsResponse{Items: items})
}

// reassignRole is the only path that changes a principal's role; the change
// always lands in the audit trail with old and new values.
func (a *API) reassignRole(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	if !a.authorize(w, r, actor, "principal:reassign_role:company", actor.TenantID) {
		return
	}
	var req reassignRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	before, err := a.directory.Get(r.Context(), actor.TenantID, id)
	if err != nil {
		handlePrincipalError(w, r, err)
		return
	}
	p, err := a.directory.ReassignRole(r.Context(), actor.TenantID, id, req.Role)
	if err != nil {
		handlePrincipalError(w, r, err)
		return
	}
	a.trail.RecordChange(r.Context(), actor, "principal.reassign_role", "principal", p.ID, map[string]string{
		"previous_role": string(before.Role),
		"new_role":      string(p.Role),
	})
	writeJSON(w, http.StatusOK, p)
}

func handlePrincipalError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, rbac.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, rbac.ErrConflict):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, rbac.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "resource not found")
	default:
		writeError(w, r, http.StatusInternalServerError, "principal operation failed")
	}
}
