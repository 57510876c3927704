package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"crewplan.org/internal/audit"
	"crewplan.org/internal/workflow"
)

func TestWorkflowLifecycleOverHTTP(t *testing.T) {
	setAuthSecret(t)
	api, trail := newTestAPI(t)
	h := api.Handler()

	client := bearerFor(t, "u-client", "t1", "client")
	staff := bearerFor(t, "u-staff", "t1", "staff")

	rr := doRequest(t, h, http.MethodPost, "/v1/workflows/contract/c1", client, "")
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if loc := rr.Header().Get("Location"); loc != "/v1/workflows/contract/c1" {
		t.Fatalf("unexpected Location %q", loc)
	}
	var inst workflow.Instance
	if err := json.Unmarshal(rr.Body.Bytes(), &inst); err != nil {
		t.Fatal(err)
	}
	if inst.CurrentState != workflow.ContractDraft || inst.Version != 1 {
		t.Fatalf("unexpected instance %+v", inst)
	}

	rr = doRequest(t, h, http.MethodPost, "/v1/workflows/contract/c1/transitions", client,
		`{"action":"submit","metadata":{"note":"ready"}}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("submit: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var res workflow.Result
	if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.NewState != workflow.ContractSubmitted || res.EventID == "" {
		t.Fatalf("unexpected result %+v", res)
	}

	rr = doRequest(t, h, http.MethodPost, "/v1/workflows/contract/c1/transitions", staff,
		`{"action":"approve"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("approve: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = doRequest(t, h, http.MethodGet, "/v1/workflows/contract/c1", client, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", rr.Code)
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &inst); err != nil {
		t.Fatal(err)
	}
	if inst.CurrentState != workflow.ContractApproved || inst.Version != 3 {
		t.Fatalf("unexpected instance %+v", inst)
	}

	rr = doRequest(t, h, http.MethodGet, "/v1/workflows/contract/c1/events", client, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("events: expected 200, got %d", rr.Code)
	}
	var events eventsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &events); err != nil {
		t.Fatal(err)
	}
	if len(events.Items) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events.Items))
	}
	if events.Items[0].Metadata["note"] != "ready" {
		t.Fatalf("metadata lost: %+v", events.Items[0])
	}

	// Both transitions were recorded in the trail.
	entries, err := trail.Query(context.Background(), audit.Filter{TenantID: "t1"})
	if err != nil {
		t.Fatal(err)
	}
	var transitions int
	for _, e := range entries {
		if e.Decision == "allow" && e.EntityType == "contract" && e.EntityID == "c1" &&
			(e.Action == "submit" || e.Action == "approve") {
			transitions++
		}
	}
	if transitions != 2 {
		t.Fatalf("expected 2 transition entries, got %d (%+v)", transitions, entries)
	}
}

func TestTransitionDeniedByRole(t *testing.T) {
	setAuthSecret(t)
	api, trail := newTestAPI(t)
	h := api.Handler()

	client := bearerFor(t, "u-client", "t1", "client")

	doRequest(t, h, http.MethodPost, "/v1/workflows/contract/c1", client, "")
	doRequest(t, h, http.MethodPost, "/v1/workflows/contract/c1/transitions", client, `{"action":"submit"}`)

	rr := doRequest(t, h, http.MethodPost, "/v1/workflows/contract/c1/transitions", client, `{"action":"approve"}`)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rr.Code, rr.Body.String())
	}

	// The denial is in the trail.
	entries, _ := trail.Query(context.Background(), audit.Filter{TenantID: "t1"})
	var denied bool
	for _, e := range entries {
		if e.Decision == "deny:role_lacks_permission" && e.Action == "contract:approve:company" {
			denied = true
		}
	}
	if !denied {
		t.Fatalf("denial not recorded: %+v", entries)
	}

	// State unchanged.
	rr = doRequest(t, h, http.MethodGet, "/v1/workflows/contract/c1", client, "")
	var inst workflow.Instance
	if err := json.Unmarshal(rr.Body.Bytes(), &inst); err != nil {
		t.Fatal(err)
	}
	if inst.CurrentState != workflow.ContractSubmitted {
		t.Fatalf("denied transition mutated state: %+v", inst)
	}
}

func TestForeignTenantSeesNotFound(t *testing.T) {
	setAuthSecret(t)
	api, _ := newTestAPI(t)
	h := api.Handler()

	owner := bearerFor(t, "u1", "t1", "client")
	outsider := bearerFor(t, "u2", "t2", "admin")

	doRequest(t, h, http.MethodPost, "/v1/workflows/contract/c1", owner, "")

	// Existing-but-foreign and plain missing must be indistinguishable.
	rrForeign := doRequest(t, h, http.MethodGet, "/v1/workflows/contract/c1", outsider, "")
	rrMissing := doRequest(t, h, http.MethodGet, "/v1/workflows/contract/ghost", outsider, "")
	if rrForeign.Code != http.StatusNotFound || rrMissing.Code != http.StatusNotFound {
		t.Fatalf("expected 404/404, got %d/%d", rrForeign.Code, rrMissing.Code)
	}

	rr := doRequest(t, h, http.MethodPost, "/v1/workflows/contract/c1/transitions", outsider, `{"action":"submit"}`)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on foreign transition, got %d", rr.Code)
	}
}

func TestTerminalAndInvalidTransitionsOverHTTP(t *testing.T) {
	setAuthSecret(t)
	api, _ := newTestAPI(t)
	h := api.Handler()

	client := bearerFor(t, "u-client", "t1", "client")
	staff := bearerFor(t, "u-staff", "t1", "staff")

	doRequest(t, h, http.MethodPost, "/v1/workflows/contract/c1", client, "")

	// approve is not valid from draft.
	rr := doRequest(t, h, http.MethodPost, "/v1/workflows/contract/c1/transitions", staff, `{"action":"approve"}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rr.Code, rr.Body.String())
	}

	doRequest(t, h, http.MethodPost, "/v1/workflows/contract/c1/transitions", client, `{"action":"submit"}`)
	rr = doRequest(t, h, http.MethodPost, "/v1/workflows/contract/c1/transitions", staff, `{"action":"reject"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("reject: expected 200, got %d", rr.Code)
	}

	// rejected is terminal.
	rr = doRequest(t, h, http.MethodPost, "/v1/workflows/contract/c1/transitions", client, `{"action":"submit"}`)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 from terminal state, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestCreateDuplicateInstanceConflicts(t *testing.T) {
	setAuthSecret(t)
	api, _ := newTestAPI(t)
	h := api.Handler()

	client := bearerFor(t, "u1", "t1", "client")
	doRequest(t, h, http.MethodPost, "/v1/workflows/contract/c1", client, "")
	rr := doRequest(t, h, http.MethodPost, "/v1/workflows/contract/c1", client, "")
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
}

func TestCreateSameEntityIDInAnotherTenant(t *testing.T) {
	setAuthSecret(t)
	api, _ := newTestAPI(t)
	h := api.Handler()

	ownerA := bearerFor(t, "u1", "t1", "client")
	ownerB := bearerFor(t, "u2", "t2", "client")

	rr := doRequest(t, h, http.MethodPost, "/v1/workflows/contract/c1", ownerA, "")
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	doRequest(t, h, http.MethodPost, "/v1/workflows/contract/c1/transitions", ownerA, `{"action":"submit"}`)

	// The same entity id in another tenant is a fresh instance. A 409 here
	// would tell tenant B the id is taken elsewhere.
	rr = doRequest(t, h, http.MethodPost, "/v1/workflows/contract/c1", ownerB, "")
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 for second tenant, got %d: %s", rr.Code, rr.Body.String())
	}

	var inst workflow.Instance
	if err := json.Unmarshal(rr.Body.Bytes(), &inst); err != nil {
		t.Fatal(err)
	}
	if inst.TenantID != "t2" || inst.CurrentState != workflow.ContractDraft || inst.Version != 1 {
		t.Fatalf("unexpected instance %+v", inst)
	}

	// Each tenant still sees only its own copy.
	rr = doRequest(t, h, http.MethodGet, "/v1/workflows/contract/c1", ownerA, "")
	if err := json.Unmarshal(rr.Body.Bytes(), &inst); err != nil {
		t.Fatal(err)
	}
	if inst.CurrentState != workflow.ContractSubmitted {
		t.Fatalf("tenant A instance clobbered: %+v", inst)
	}
}

func TestCreateUnknownEntityType(t *testing.T) {
	setAuthSecret(t)
	api, _ := newTestAPI(t)

	client := bearerFor(t, "u1", "t1", "admin")
	rr := doRequest(t, api.Handler(), http.MethodPost, "/v1/workflows/invoice/i1", client, "")
	// The permission invoice:create:own is not in the catalogue either, so
	// the resolver denies before the registry is consulted.
	if rr.Code != http.StatusForbidden && rr.Code != http.StatusNotFound {
		t.Fatalf("expected 403 or 404, got %d", rr.Code)
	}
}

func TestCrossTenantCreateRequiresAllScope(t *testing.T) {
	setAuthSecret(t)
	api, _ := newTestAPI(t)
	h := api.Handler()

	// A staff member cannot create into another tenant: the permission
	// contract:create:all is granted to admin and super_admin only, and the
	// denial renders as 403 (scope miss, not tenant probe).
	staff := bearerFor(t, "u-staff", "t1", "staff")
	rr := doRequest(t, h, http.MethodPost, "/v1/workflows/contract/c9", staff, `{"tenant_id":"t2"}`)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rr.Code, rr.Body.String())
	}

	admin := bearerFor(t, "u-admin", "t1", "admin")
	rr = doRequest(t, h, http.MethodPost, "/v1/workflows/contract/c9", admin, `{"tenant_id":"t2"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 for admin cross-tenant create, got %d: %s", rr.Code, rr.Body.String())
	}
}
