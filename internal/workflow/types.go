package workflow

import (
	"context"
	"time"
)

// State is a named workflow state, defined per entity type.
type State string

// Action is a named operation that moves an instance between states.
type Action string

// Instance tracks one entity's position in its workflow. Exactly one
// instance exists per (entity type, entity id); it belongs to exactly one
// tenant and is mutated only through validated transitions.
type Instance struct {
	TenantID     string    `json:"tenant_id"`
	EntityType   string    `json:"entity_type"`
	EntityID     string    `json:"entity_id"`
	CurrentState State     `json:"current_state"`
	Version      int64     `json:"version"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Event is the immutable record of one executed transition. The full event
// sequence of an instance always replays to its current state.
type Event struct {
	ID            string            `json:"id"`
	TenantID      string            `json:"tenant_id"`
	EntityType    string            `json:"entity_type"`
	EntityID      string            `json:"entity_id"`
	PreviousState State             `json:"previous_state"`
	NewState      State             `json:"new_state"`
	Action        Action            `json:"action"`
	ActorID       string            `json:"actor_id"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	OccurredAt    time.Time         `json:"occurred_at"`
}

// Result reports a successful transition.
type Result struct {
	NewState State  `json:"new_state"`
	EventID  string `json:"event_id"`
}

// Store persists instances and their event log. Reads are tenant-filtered: a
// row owned by another tenant is indistinguishable from a missing one, so
// existence never leaks across tenants.
type Store interface {
	// CreateInstance inserts a new instance at its initial state.
	CreateInstance(ctx context.Context, inst Instance) (Instance, error)

	// GetInstance returns the instance for (entityType, entityID) visible to
	// tenantID, or ErrNotFoundOrForbidden.
	GetInstance(ctx context.Context, tenantID, entityType, entityID string) (Instance, error)

	// ApplyTransition updates current_state and appends the event as one
	// atomic unit, conditioned on the version read earlier still being
	// current. A lost race returns ErrConcurrentModification.
	ApplyTransition(ctx context.Context, inst Instance, newState State, event Event) (Event, error)

	// Events returns the instance's event log in append order.
	Events(ctx context.Context, tenantID, entityType, entityID string) ([]Event, error)
}
