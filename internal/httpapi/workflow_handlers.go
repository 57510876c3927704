package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"crewplan.org/internal/rbac"
	"crewplan.org/internal/workflow"
)

type createInstanceRequest struct {
	TenantID string `json:"tenant_id"`
}

type transitionRequest struct {
	Action   string            `json:"action"`
	Metadata map[string]string `json:"metadata"`
}

type eventsResponse struct {
	Items []workflow.Event `json:"items"`
}

func (a *API) handleWorkflowResource(w http.ResponseWriter, r *http.Request) {
	if a.engine == nil {
		writeError(w, r, http.StatusServiceUnavailable, "workflow service unavailable")
		return
	}
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/workflows/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	switch len(parts) {
	case 2:
		entityType, entityID := parts[0], parts[1]
		switch r.Method {
		case http.MethodPost:
			a.createInstance(w, r, entityType, entityID)
		case http.MethodGet:
			a.getInstance(w, r, entityType, entityID)
		default:
			methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
		}
	case 3:
		entityType, entityID := parts[0], parts[1]
		switch parts[2] {
		case "transitions":
			if r.Method != http.MethodPost {
				methodNotAllowed(w, r, http.MethodPost)
				return
			}
			a.transition(w, r, entityType, entityID)
		case "events":
			if r.Method != http.MethodGet {
				methodNotAllowed(w, r, http.MethodGet)
				return
			}
			a.listEvents(w, r, entityType, entityID)
		default:
			writeError(w, r, http.StatusNotFound, "resource not found")
		}
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) createInstance(w http.ResponseWriter, r *http.Request, entityType, entityID string) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	req := createInstanceRequest{}
	if r.ContentLength > 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
	}

	// Creating inside the actor's own tenant needs the "own" scope; landing
	// an instance in another tenant needs the "all" scope.
	targetTenant := strings.TrimSpace(req.TenantID)
	if targetTenant == "" {
		targetTenant = actor.TenantID
	}
	perm := entityType + ":create:own"
	if targetTenant != actor.TenantID {
		perm = entityType + ":create:all"
	}
	if !a.authorize(w, r, actor, perm, targetTenant) {
		return
	}

	inst, err := a.engine.CreateInstance(r.Context(), targetTenant, entityType, entityID)
	if err != nil {
		handleWorkflowError(w, r, err)
		return
	}

	a.trail.RecordChange(r.Context(), actor, "workflow.instance.create", entityType, entityID, map[string]string{
		"tenant_id":     targetTenant,
		"initial_state": string(inst.CurrentState),
	})
	w.Header().Set("Location", fmt.Sprintf("/v1/workflows/%s/%s", entityType, entityID))
	writeJSON(w, http.StatusCreated, inst)
}

func (a *API) getInstance(w http.ResponseWriter, r *http.Request, entityType, entityID string) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	if !a.authorize(w, r, actor, entityType+":read:company", actor.TenantID) {
		return
	}
	inst, err := a.engine.Instance(r.Context(), actor.TenantID, entityType, entityID)
	if err != nil {
		handleWorkflowError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inst)
}

func (a *API) transition(w http.ResponseWriter, r *http.Request, entityType, entityID string) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req transitionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	action := strings.TrimSpace(req.Action)
	if action == "" {
		writeError(w, r, http.StatusBadRequest, "action is required")
		return
	}

	res, err := a.engine.Transition(r.Context(), actor.TenantID, entityType, entityID,
		workflow.Action(action), actor, req.Metadata)
	if err != nil {
		handleWorkflowError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) listEvents(w http.ResponseWriter, r *http.Request, entityType, entityID string) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	if !a.authorize(w, r, actor, entityType+":read:company", actor.TenantID) {
		return
	}
	events, err := a.engine.Events(r.Context(), actor.TenantID, entityType, entityID)
	if err != nil {
		handleWorkflowError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, eventsResponse{Items: events})
}

// authorize runs the composite check and writes the failure response. A
// cross-tenant denial renders exactly like a missing resource.
func (a *API) authorize(w http.ResponseWriter, r *http.Request, actor rbac.Actor, permission, resourceTenantID string) bool {
	decision := a.resolver.Authorize(r.Context(), actor, permission, resourceTenantID)
	if decision.Allowed {
		return true
	}
	switch decision.Reason {
	case rbac.DenyCrossTenantAccess:
		writeError(w, r, http.StatusNotFound, "resource not found")
	default:
		writeError(w, r, http.StatusForbidden, "permission denied")
	}
	return false
}

func handleWorkflowError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, workflow.ErrUnknownEntityType):
		writeError(w, r, http.StatusNotFound, "unknown entity type")
	case errors.Is(err, workflow.ErrNotFoundOrForbidden):
		writeError(w, r, http.StatusNotFound, "resource not found")
	case errors.Is(err, workflow.ErrTerminalState):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, workflow.ErrInvalidTransition):
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, workflow.ErrAuthorization):
		writeError(w, r, http.StatusForbidden, "permission denied")
	case errors.Is(err, workflow.ErrConflict),
		errors.Is(err, workflow.ErrConcurrentModification):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, workflow.ErrStorageTimeout):
		writeError(w, r, http.StatusGatewayTimeout, "storage timeout")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
