package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"crewplan.org/internal/ids"
	"crewplan.org/internal/obs"
	"crewplan.org/internal/rbac"
	"crewplan.org/internal/tenant"
)

const defaultStorageTimeout = 5 * time.Second

// Authorizer answers the composite permission + tenant question. Implemented
// by rbac.Resolver; request handlers must never substitute ad-hoc role
// checks for it.
type Authorizer interface {
	Authorize(ctx context.Context, actor rbac.Actor, permission, resourceTenantID string) rbac.Decision
}

// TransitionRecorder receives executed transitions for the audit trail.
// Recording never fails the transition.
type TransitionRecorder interface {
	RecordTransition(ctx context.Context, event Event)
}

// Engine drives entities through their workflow definitions via guarded,
// audited transitions.
type Engine struct {
	registry *Registry
	store    Store
	authz    Authorizer
	recorder TransitionRecorder

	storageTimeout time.Duration
	now            func() time.Time
}

// EngineOption configures Engine behavior.
type EngineOption func(*Engine)

// WithRecorder attaches the audit trail writer.
func WithRecorder(r TransitionRecorder) EngineOption {
	return func(e *Engine) { e.recorder = r }
}

// WithStorageTimeout bounds each persistence call. Expired deadlines surface
// as ErrStorageTimeout instead of hanging.
func WithStorageTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.storageTimeout = d
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) EngineOption {
	return func(e *Engine) {
		if fn != nil {
			e.now = fn
		}
	}
}

// NewEngine constructs an Engine over immutable definitions, a store and an
// authorizer.
func NewEngine(registry *Registry, store Store, authz Authorizer, opts ...EngineOption) (*Engine, error) {
	if registry == nil {
		return nil, errors.New("workflow: registry is required")
	}
	if store == nil {
		return nil, errors.New("workflow: store is required")
	}
	if authz == nil {
		return nil, errors.New("workflow: authorizer is required")
	}
	e := &Engine{
		registry:       registry,
		store:          store,
		authz:          authz,
		storageTimeout: defaultStorageTimeout,
		now:            func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// CreateInstance enters an entity into its workflow at the definition's
// initial state. Called alongside entity creation by the owning layer.
func (e *Engine) CreateInstance(ctx context.Context, tenantID, entityType, entityID string) (Instance, error) {
	def, err := e.registry.Definition(entityType)
	if err != nil {
		return Instance{}, err
	}
	if tenantID == "" || entityID == "" {
		return Instance{}, fmt.Errorf("%w: tenant and entity ids are required", ErrNotFoundOrForbidden)
	}
	now := e.now()
	inst := Instance{
		TenantID:     tenantID,
		EntityType:   entityType,
		EntityID:     entityID,
		CurrentState: def.Initial,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	created, err := e.storeCreate(ctx, inst)
	if err != nil {
		return Instance{}, err
	}
	return created, nil
}

// Transition validates and executes one state transition.
//
// Order of checks: tenant-filtered load, terminal check, transition table,
// authorization, then the atomic update+append. Any failure aborts without
// side effects; steps before the final one are read-only, so cancellation is
// safe until the commit begins.
func (e *Engine) Transition(ctx context.Context, tenantID, entityType, entityID string, action Action, actor rbac.Actor, metadata map[string]string) (Result, error) {
	def, err := e.registry.Definition(entityType)
	if err != nil {
		return Result{}, err
	}

	// The caller's claimed tenant must be the actor's own. A mismatch is
	// reported exactly like a missing row so existence never leaks.
	if err := tenant.AssertSameTenant(actor.TenantID, tenantID); err != nil {
		obs.ObserveTransition(entityType, string(action), "not_found")
		return Result{}, fmt.Errorf("%w: %s/%s", ErrNotFoundOrForbidden, entityType, entityID)
	}

	inst, err := e.storeGet(ctx, tenantID, entityType, entityID)
	if err != nil {
		if errors.Is(err, ErrNotFoundOrForbidden) {
			obs.ObserveTransition(entityType, string(action), "not_found")
		}
		return Result{}, err
	}

	// Storage row filtering and this guard must both agree.
	if err := tenant.AssertSameTenant(actor.TenantID, inst.TenantID); err != nil {
		obs.ObserveTransition(entityType, string(action), "not_found")
		return Result{}, fmt.Errorf("%w: %s/%s", ErrNotFoundOrForbidden, entityType, entityID)
	}

	if def.IsTerminal(inst.CurrentState) {
		obs.ObserveTransition(entityType, string(action), "terminal")
		return Result{}, fmt.Errorf("%w: %s is %s", ErrTerminalState, entityID, inst.CurrentState)
	}

	rule, ok := def.Next(inst.CurrentState, action)
	if !ok {
		obs.ObserveTransition(entityType, string(action), "invalid")
		return Result{}, fmt.Errorf("%w: action %q from state %q", ErrInvalidTransition, action, inst.CurrentState)
	}

	decision := e.authz.Authorize(ctx, actor, rule.Permission, inst.TenantID)
	if !decision.Allowed {
		obs.ObserveTransition(entityType, string(action), "denied")
		return Result{}, fmt.Errorf("%w: %s denied (%s)", ErrAuthorization, rule.Permission, decision.Reason)
	}

	event := Event{
		ID:            ids.New(),
		TenantID:      inst.TenantID,
		EntityType:    entityType,
		EntityID:      entityID,
		PreviousState: inst.CurrentState,
		NewState:      rule.To,
		Action:        action,
		ActorID:       actor.UserID,
		Metadata:      metadata,
		OccurredAt:    e.now(),
	}

	applied, err := e.storeApply(ctx, inst, rule.To, event)
	if err != nil {
		if errors.Is(err, ErrConcurrentModification) {
			obs.ObserveTransition(entityType, string(action), "conflict")
		}
		return Result{}, err
	}

	obs.ObserveTransition(entityType, string(action), "success")
	if e.recorder != nil {
		e.recorder.RecordTransition(ctx, applied)
	}
	return Result{NewState: rule.To, EventID: applied.ID}, nil
}

// Instance returns the tenant-filtered instance, for callers that need to
// inspect current state (e.g. before an idempotent retry).
func (e *Engine) Instance(ctx context.Context, tenantID, entityType, entityID string) (Instance, error) {
	if _, err := e.registry.Definition(entityType); err != nil {
		return Instance{}, err
	}
	return e.storeGet(ctx, tenantID, entityType, entityID)
}

// Events returns the instance's event log in append order.
func (e *Engine) Events(ctx context.Context, tenantID, entityType, entityID string) ([]Event, error) {
	if _, err := e.registry.Definition(entityType); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, e.storageTimeout)
	defer cancel()
	events, err := e.store.Events(ctx, tenantID, entityType, entityID)
	return events, mapStorageErr(ctx, err)
}

func (e *Engine) storeCreate(ctx context.Context, inst Instance) (Instance, error) {
	ctx, cancel := context.WithTimeout(ctx, e.storageTimeout)
	defer cancel()
	created, err := e.store.CreateInstance(ctx, inst)
	return created, mapStorageErr(ctx, err)
}

func (e *Engine) storeGet(ctx context.Context, tenantID, entityType, entityID string) (Instance, error) {
	ctx, cancel := context.WithTimeout(ctx, e.storageTimeout)
	defer cancel()
	inst, err := e.store.GetInstance(ctx, tenantID, entityType, entityID)
	return inst, mapStorageErr(ctx, err)
}

func (e *Engine) storeApply(ctx context.Context, inst Instance, newState State, event Event) (Event, error) {
	ctx, cancel := context.WithTimeout(ctx, e.storageTimeout)
	defer cancel()
	applied, err := e.store.ApplyTransition(ctx, inst, newState, event)
	return applied, mapStorageErr(ctx, err)
}

func mapStorageErr(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrStorageTimeout, err)
	}
	return err
}
