package pg

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"crewplan.org/internal/audit"
)

func TestAppendInsertsEntry(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectExec("insert into audit_entries").
		WithArgs("a1", "t1", "u1", "contract", "c1", "submit",
			"draft", "submitted", "allow", []byte(`{"k":"v"}`), "req-1", now).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.Append(context.Background(), audit.Entry{
		ID: "a1", TenantID: "t1", ActorID: "u1",
		EntityType: "contract", EntityID: "c1", Action: "submit",
		PreviousState: "draft", NewState: "submitted", Decision: "allow",
		Metadata: map[string]string{"k": "v"}, RequestID: "req-1", OccurredAt: now,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestQueryRequiresTenant(t *testing.T) {
	store, _ := newMockStore(t)
	if _, err := store.Query(context.Background(), audit.Filter{}); err == nil {
		t.Fatal("expected error for missing tenant filter")
	}
}

func TestQueryBuildsFilteredStatement(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{"id", "tenant_id", "actor_id", "entity_type", "entity_id",
		"action", "previous_state", "new_state", "decision", "metadata", "request_id", "occurred_at"}).
		AddRow("a1", "t1", "u1", "contract", "c1", "submit", "draft", "submitted", "allow", []byte("{}"), "", now)

	mock.ExpectQuery("select id, tenant_id, actor_id.*from audit_entries.*where tenant_id = \\$1 and actor_id = \\$2 and entity_type = \\$3.*order by occurred_at desc limit \\$4").
		WithArgs("t1", "u1", "contract", 50).
		WillReturnRows(rows)

	entries, err := store.Query(context.Background(), audit.Filter{
		TenantID: "t1", ActorID: "u1", EntityType: "contract", Limit: 50,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].ID != "a1" {
		t.Fatalf("unexpected entries %+v", entries)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestQueryDefaultsLimit(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("select id, tenant_id, actor_id.*limit \\$2").
		WithArgs("t1", 100).
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "actor_id", "entity_type", "entity_id",
			"action", "previous_state", "new_state", "decision", "metadata", "request_id", "occurred_at"}))

	entries, err := store.Query(context.Background(), audit.Filter{TenantID: "t1"})
	if err != nil {
		t.Fatal(err)
	}
	if entries != nil {
		t.Fatalf("expected no entries, got %+v", entries)
	}
}
