package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"crewplan.org/internal/audit"
)

type auditQueryResponse struct {
	Items []audit.Entry `json:"items"`
	AsOf  time.Time     `json:"as_of"`
}

// handleAuditQuery reads the trail back. Company scope covers the actor's own
// tenant; reading another tenant's trail needs the "all" scope.
func (a *API) handleAuditQuery(w http.ResponseWriter, r *http.Request) {
	if a.auditLog == nil {
		writeError(w, r, http.StatusServiceUnavailable, "audit trail unavailable")
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	target := strings.TrimSpace(q.Get("tenant_id"))
	perm := "audit:read:company"
	if target == "" {
		target = actor.TenantID
	} else if target != actor.TenantID {
		perm = "audit:read:all"
	}
	if !a.authorize(w, r, actor, perm, target) {
		return
	}

	f := audit.Filter{
		TenantID:   target,
		ActorID:    strings.TrimSpace(q.Get("actor_id")),
		EntityType: strings.TrimSpace(q.Get("entity_type")),
		EntityID:   strings.TrimSpace(q.Get("entity_id")),
	}
	var err error
	if f.From, err = parseTimeParam(q.Get("from")); err != nil {
		writeError(w, r, http.StatusBadRequest, "from must be RFC3339")
		return
	}
	if f.To, err = parseTimeParam(q.Get("to")); err != nil {
		writeError(w, r, http.StatusBadRequest, "to must be RFC3339")
		return
	}
	if f.Limit, err = parsePositiveInt(q.Get("limit"), 100, 1, 1000); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	items, err := a.auditLog.Query(r.Context(), f)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "audit query failed")
		return
	}
	writeJSON(w, http.StatusOK, auditQueryResponse{Items: items, AsOf: time.Now().UTC()})
}

func parseTimeParam(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, raw)
}

func parsePositiveInt(raw string, def, min, max int) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return def, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("limit must be an integer")
	}
	if val < min || val > max {
		return 0, errors.New("limit must be between 1 and 1000")
	}
	return val, nil
}
