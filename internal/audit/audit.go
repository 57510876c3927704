// Package audit implements the append-only trail of authorization decisions
// and workflow transitions. Writes are fire-and-forget: a failing sink is
// logged as a degraded-mode warning and never rolls back or masks the
// business operation that triggered it.
package audit

import (
	"context"
	"strings"
	"time"

	"crewplan.org/internal/ids"
	"crewplan.org/internal/obs"
	"crewplan.org/internal/rbac"
	"crewplan.org/internal/workflow"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context for audit
// correlation.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// Entry is one immutable audit record.
type Entry struct {
	ID            string            `json:"id"`
	TenantID      string            `json:"tenant_id"`
	ActorID       string            `json:"actor_id"`
	EntityType    string            `json:"entity_type"`
	EntityID      string            `json:"entity_id"`
	Action        string            `json:"action"`
	PreviousState string            `json:"previous_state,omitempty"`
	NewState      string            `json:"new_state,omitempty"`
	Decision      string            `json:"decision"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	RequestID     string            `json:"request_id,omitempty"`
	OccurredAt    time.Time         `json:"occurred_at"`
}

// Sink appends entries to durable or log-based storage.
type Sink interface {
	Append(ctx context.Context, entry Entry) error
}

// Querier reads back entries filtered by tenant, actor, entity and time.
type Querier interface {
	Query(ctx context.Context, f Filter) ([]Entry, error)
}

// Filter narrows an audit query. TenantID is mandatory: the trail is read
// within the caller's tenant only.
type Filter struct {
	TenantID   string
	ActorID    string
	EntityType string
	EntityID   string
	From       time.Time
	To         time.Time
	Limit      int
}

// Writer is the audit trail writer used across the service.
type Writer struct {
	sink Sink
	now  func() time.Time
}

// NewWriter constructs a Writer over a sink.
func NewWriter(sink Sink) *Writer {
	return &Writer{
		sink: sink,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Record appends an entry. It never blocks the caller's success path: sink
// failures are logged and swallowed.
func (w *Writer) Record(ctx context.Context, entry Entry) {
	if w == nil || w.sink == nil {
		return
	}
	if entry.ID == "" {
		entry.ID = ids.New()
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = w.now()
	}
	if entry.RequestID == "" {
		entry.RequestID = requestIDFromContext(ctx)
	}
	if err := w.sink.Append(ctx, entry); err != nil {
		obs.Warn("audit append failed, continuing degraded", map[string]any{
			"error":     err.Error(),
			"tenant_id": entry.TenantID,
			"action":    entry.Action,
		})
	}
}

// RecordDenied implements rbac.DecisionRecorder: every denied authorization
// decision lands in the trail with the permission name and resource tenant.
func (w *Writer) RecordDenied(ctx context.Context, actor rbac.Actor, permission, resourceTenantID string, reason rbac.DenyReason) {
	w.Record(ctx, Entry{
		TenantID: actor.TenantID,
		ActorID:  actor.UserID,
		Action:   permission,
		Decision: "deny:" + string(reason),
		Metadata: map[string]string{"resource_tenant_id": resourceTenantID},
	})
}

// RecordTransition implements workflow.TransitionRecorder.
func (w *Writer) RecordTransition(ctx context.Context, event workflow.Event) {
	w.Record(ctx, Entry{
		TenantID:      event.TenantID,
		ActorID:       event.ActorID,
		EntityType:    event.EntityType,
		EntityID:      event.EntityID,
		Action:        string(event.Action),
		PreviousState: string(event.PreviousState),
		NewState:      string(event.NewState),
		Decision:      "allow",
		Metadata:      event.Metadata,
		OccurredAt:    event.OccurredAt,
	})
}

// RecordChange captures audited administrative changes (principal
// provisioning, role reassignment).
func (w *Writer) RecordChange(ctx context.Context, actor rbac.Actor, action, entityType, entityID string, metadata map[string]string) {
	w.Record(ctx, Entry{
		TenantID:   actor.TenantID,
		ActorID:    actor.UserID,
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		Decision:   "allow",
		Metadata:   metadata,
	})
}
