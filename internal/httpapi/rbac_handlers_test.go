package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"crewplan.org/internal/audit"
	"crewplan.org/internal/rbac"
	"crewplan.org/internal/workflow"
)

// stubPrincipals keeps principals in a map keyed by id.
type stubPrincipals struct {
	seq    int
	byID   map[string]rbac.Principal
	hashes map[string]string
}

func newStubPrincipals() *stubPrincipals {
	return &stubPrincipals{byID: make(map[string]rbac.Principal), hashes: make(map[string]string)}
}

func (s *stubPrincipals) CreatePrincipal(ctx context.Context, p rbac.Principal, passwordHash string) (rbac.Principal, error) {
	for _, existing := range s.byID {
		if existing.Email == p.Email {
			return rbac.Principal{}, rbac.ErrConflict
		}
	}
	s.seq++
	p.ID = "p-" + string(rune('0'+s.seq))
	s.byID[p.ID] = p
	s.hashes[p.ID] = passwordHash
	return p, nil
}

func (s *stubPrincipals) GetPrincipal(ctx context.Context, tenantID, id string) (rbac.Principal, error) {
	p, ok := s.byID[id]
	if !ok || p.TenantID != tenantID {
		return rbac.Principal{}, rbac.ErrNotFound
	}
	return p, nil
}

func (s *stubPrincipals) ListPrincipals(ctx context.Context, tenantID string) ([]rbac.Principal, error) {
	var out []rbac.Principal
	for _, p := range s.byID {
		if p.TenantID == tenantID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *stubPrincipals) UpdatePrincipalRole(ctx context.Context, tenantID, id string, role rbac.Role) (rbac.Principal, error) {
	p, ok := s.byID[id]
	if !ok || p.TenantID != tenantID {
		return rbac.Principal{}, rbac.ErrNotFound
	}
	p.Role = role
	s.byID[id] = p
	return p, nil
}

func newTestAPIWithDirectory(t *testing.T) (*API, *memoryTrail) {
	t.Helper()
	trail := &memoryTrail{}
	writer := audit.NewWriter(trail)

	resolver, err := rbac.NewResolver(rbac.DefaultCatalogue(), writer)
	if err != nil {
		t.Fatal(err)
	}
	engine, err := workflow.NewEngine(workflow.DefaultRegistry(), workflow.NewMemoryStore(), resolver,
		workflow.WithRecorder(writer))
	if err != nil {
		t.Fatal(err)
	}
	directory, err := rbac.NewDirectory(newStubPrincipals())
	if err != nil {
		t.Fatal(err)
	}
	return New(ReadyProbe{}, "test", Deps{
		Engine:    engine,
		Resolver:  resolver,
		Directory: directory,
		Trail:     writer,
		AuditLog:  trail,
	}), trail
}

func TestCreatePrincipalRequiresAdmin(t *testing.T) {
	setAuthSecret(t)
	api, _ := newTestAPIWithDirectory(t)

	staff := bearerFor(t, "u1", "t1", "staff")
	rr := doRequest(t, api.Handler(), http.MethodPost, "/v1/principals", staff,
		`{"email":"new@example.com","password":"pw","role":"client"}`)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}

func TestCreateAndReassignPrincipal(t *testing.T) {
	setAuthSecret(t)
	api, trail := newTestAPIWithDirectory(t)
	h := api.Handler()

	admin := bearerFor(t, "u-admin", "t1", "admin")

	rr := doRequest(t, h, http.MethodPost, "/v1/principals", admin,
		`{"email":"new@example.com","password":"pw","role":"client"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var p rbac.Principal
	if err := json.Unmarshal(rr.Body.Bytes(), &p); err != nil {
		t.Fatal(err)
	}
	if p.TenantID != "t1" || p.Role != rbac.RoleClient {
		t.Fatalf("unexpected principal %+v", p)
	}

	rr = doRequest(t, h, http.MethodPut, "/v1/principals/"+p.ID+"/role", admin, `{"role":"staff"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var updated rbac.Principal
	if err := json.Unmarshal(rr.Body.Bytes(), &updated); err != nil {
		t.Fatal(err)
	}
	if updated.Role != rbac.RoleStaff {
		t.Fatalf("role not reassigned: %+v", updated)
	}

	// Both admin actions landed in the trail with old/new role metadata.
	entries, _ := trail.Query(context.Background(), audit.Filter{TenantID: "t1"})
	var created, reassigned bool
	for _, e := range entries {
		switch e.Action {
		case "principal.create":
			created = true
		case "principal.reassign_role":
			reassigned = e.Metadata["previous_role"] == "client" && e.Metadata["new_role"] == "staff"
		}
	}
	if !created || !reassigned {
		t.Fatalf("admin changes not audited: %+v", entries)
	}
}

func TestReadPrincipalsRequiresStaff(t *testing.T) {
	setAuthSecret(t)
	api, _ := newTestAPIWithDirectory(t)
	h := api.Handler()

	admin := bearerFor(t, "u-admin", "t1", "admin")
	rr := doRequest(t, h, http.MethodPost, "/v1/principals", admin,
		`{"email":"worker@example.com","password":"pw","role":"client"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("setup create failed: %d: %s", rr.Code, rr.Body.String())
	}
	var p rbac.Principal
	if err := json.Unmarshal(rr.Body.Bytes(), &p); err != nil {
		t.Fatal(err)
	}

	// Clients hold no principal:read grant: neither the listing nor the
	// single resource may leak emails or roles to them.
	client := bearerFor(t, "u-client", "t1", "client")
	rr = doRequest(t, h, http.MethodGet, "/v1/principals", client, "")
	if rr.Code != http.StatusForbidden {
		t.Fatalf("list: expected 403 for client, got %d", rr.Code)
	}
	rr = doRequest(t, h, http.MethodGet, "/v1/principals/"+p.ID, client, "")
	if rr.Code != http.StatusForbidden {
		t.Fatalf("get: expected 403 for client, got %d", rr.Code)
	}

	staff := bearerFor(t, "u-staff", "t1", "staff")
	rr = doRequest(t, h, http.MethodGet, "/v1/principals", staff, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("list: expected 200 for staff, got %d: %s", rr.Code, rr.Body.String())
	}
	var listed listPrincipalsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &listed); err != nil {
		t.Fatal(err)
	}
	if len(listed.Items) != 1 || listed.Items[0].ID != p.ID {
		t.Fatalf("unexpected listing %+v", listed.Items)
	}
	rr = doRequest(t, h, http.MethodGet, "/v1/principals/"+p.ID, staff, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("get: expected 200 for staff, got %d", rr.Code)
	}
}

func TestCreatePrincipalDuplicateEmail(t *testing.T) {
	setAuthSecret(t)
	api, _ := newTestAPIWithDirectory(t)
	h := api.Handler()

	admin := bearerFor(t, "u-admin", "t1", "admin")
	body := `{"email":"dup@example.com","password":"pw","role":"client"}`
	doRequest(t, h, http.MethodPost, "/v1/principals", admin, body)
	rr := doRequest(t, h, http.MethodPost, "/v1/principals", admin, body)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
}

func TestReassignRoleUnknownPrincipal(t *testing.T) {
	setAuthSecret(t)
	api, _ := newTestAPIWithDirectory(t)

	admin := bearerFor(t, "u-admin", "t1", "admin")
	rr := doRequest(t, api.Handler(), http.MethodPut, "/v1/principals/ghost/role", admin, `{"role":"staff"}`)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestPrincipalsUnavailableWithoutDirectory(t *testing.T) {
	setAuthSecret(t)
	api, _ := newTestAPI(t)

	admin := bearerFor(t, "u-admin", "t1", "admin")
	rr := doRequest(t, api.Handler(), http.MethodPost, "/v1/principals", admin,
		`{"email":"a@b.c","password":"pw","role":"client"}`)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}
