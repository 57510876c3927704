package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore implements Store with in-process concurrency safety. Used by
// tests and the smoke tooling; production runs on the Postgres store.
type MemoryStore struct {
	mu        sync.RWMutex
	instances map[instanceKey]*Instance
	events    map[instanceKey][]Event
}

// instanceKey includes the tenant so identical entity ids in different
// tenants are distinct rows, not conflicts.
type instanceKey struct {
	tenantID   string
	entityType string
	entityID   string
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		instances: make(map[instanceKey]*Instance),
		events:    make(map[instanceKey][]Event),
	}
}

func (s *MemoryStore) CreateInstance(ctx context.Context, inst Instance) (Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := instanceKey{tenantID: inst.TenantID, entityType: inst.EntityType, entityID: inst.EntityID}
	if _, exists := s.instances[key]; exists {
		return Instance{}, fmt.Errorf("%w: %s/%s", ErrConflict, inst.EntityType, inst.EntityID)
	}
	copied := inst
	s.instances[key] = &copied
	return inst, nil
}

func (s *MemoryStore) GetInstance(ctx context.Context, tenantID, entityType, entityID string) (Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// A row owned by another tenant reads the same as a missing one.
	inst, ok := s.instances[instanceKey{tenantID: tenantID, entityType: entityType, entityID: entityID}]
	if !ok {
		return Instance{}, fmt.Errorf("%w: %s/%s", ErrNotFoundOrForbidden, entityType, entityID)
	}
	return *inst, nil
}

func (s *MemoryStore) ApplyTransition(ctx context.Context, read Instance, newState State, event Event) (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := instanceKey{tenantID: read.TenantID, entityType: read.EntityType, entityID: read.EntityID}
	inst, ok := s.instances[key]
	if !ok {
		return Event{}, fmt.Errorf("%w: %s/%s", ErrNotFoundOrForbidden, read.EntityType, read.EntityID)
	}
	// Optimistic check: the state read by the caller must still be current.
	if inst.Version != read.Version || inst.CurrentState != read.CurrentState {
		return Event{}, fmt.Errorf("%w: %s/%s", ErrConcurrentModification, read.EntityType, read.EntityID)
	}

	inst.CurrentState = newState
	inst.Version++
	inst.UpdatedAt = event.OccurredAt
	s.events[key] = append(s.events[key], event)
	return event, nil
}

func (s *MemoryStore) Events(ctx context.Context, tenantID, entityType, entityID string) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := instanceKey{tenantID: tenantID, entityType: entityType, entityID: entityID}
	_, ok := s.instances[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFoundOrForbidden, entityType, entityID)
	}
	out := make([]Event, len(s.events[key]))
	copy(out, s.events[key])
	return out, nil
}

// ForceState pins an instance to a state directly, bypassing validation.
// Test helper for setting up terminal-state scenarios.
func (s *MemoryStore) ForceState(tenantID, entityType, entityID string, state State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inst, ok := s.instances[instanceKey{tenantID: tenantID, entityType: entityType, entityID: entityID}]
	if !ok {
		return fmt.Errorf("%w: %s/%s", ErrNotFoundOrForbidden, entityType, entityID)
	}
	inst.CurrentState = state
	inst.Version++
	inst.UpdatedAt = time.Now().UTC()
	return nil
}
