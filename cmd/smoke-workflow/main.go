package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"crewplan.org/internal/audit"
	"crewplan.org/internal/rbac"
	"crewplan.org/internal/workflow"
)

// Drives one contract through its full lifecycle against the in-memory store
// and checks that guards, auditing and terminal absorption behave end to end.
func main() {
	trail := audit.NewWriter(audit.LogSink{})

	resolver, err := rbac.NewResolver(rbac.DefaultCatalogue(), trail)
	if err != nil {
		log.Fatalf("resolver: %v", err)
	}
	engine, err := workflow.NewEngine(workflow.DefaultRegistry(), workflow.NewMemoryStore(), resolver,
		workflow.WithRecorder(trail))
	if err != nil {
		log.Fatalf("engine: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	const (
		tenantID = "smoke-tenant"
		entityID = "contract-smoke-1"
	)
	client := rbac.Actor{UserID: "user-client", Role: rbac.RoleClient, TenantID: tenantID}
	staff := rbac.Actor{UserID: "user-staff", Role: rbac.RoleStaff, TenantID: tenantID}
	admin := rbac.Actor{UserID: "user-admin", Role: rbac.RoleAdmin, TenantID: tenantID}

	inst, err := engine.CreateInstance(ctx, tenantID, "contract", entityID)
	if err != nil {
		log.Fatalf("create instance: %v", err)
	}
	if inst.CurrentState != workflow.ContractDraft {
		log.Fatalf("unexpected initial state %q", inst.CurrentState)
	}

	steps := []struct {
		actor  rbac.Actor
		action workflow.Action
		want   workflow.State
	}{
		{client, "submit", workflow.ContractSubmitted},
		{staff, "approve", workflow.ContractApproved},
		{staff, "activate", workflow.ContractActive},
		{staff, "complete", workflow.ContractCompleted},
		{admin, "archive", workflow.ContractArchived},
	}
	for _, step := range steps {
		res, err := engine.Transition(ctx, tenantID, "contract", entityID, step.action, step.actor, nil)
		if err != nil {
			log.Fatalf("%s: %v", step.action, err)
		}
		if res.NewState != step.want {
			log.Fatalf("%s: got state %q, want %q", step.action, res.NewState, step.want)
		}
	}

	// Archived is terminal; nothing moves it.
	if _, err := engine.Transition(ctx, tenantID, "contract", entityID, "submit", admin, nil); !errors.Is(err, workflow.ErrTerminalState) {
		log.Fatalf("expected terminal-state rejection, got %v", err)
	}

	// A foreign tenant must see nothing at all.
	outsider := rbac.Actor{UserID: "user-x", Role: rbac.RoleAdmin, TenantID: "other-tenant"}
	if _, err := engine.Instance(ctx, outsider.TenantID, "contract", entityID); !errors.Is(err, workflow.ErrNotFoundOrForbidden) {
		log.Fatalf("expected not-found for foreign tenant, got %v", err)
	}

	events, err := engine.Events(ctx, tenantID, "contract", entityID)
	if err != nil {
		log.Fatalf("events: %v", err)
	}
	if len(events) != len(steps) {
		log.Fatalf("expected %d events, got %d", len(steps), len(events))
	}

	fmt.Printf("✅ workflow smoke test passed: %s reached %s in %d transitions\n",
		entityID, workflow.ContractArchived, len(events))
}
