package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"crewplan.org/internal/rbac"
)

func principalRows(now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "tenant_id", "email", "role", "status", "created_at", "updated_at"}).
		AddRow("p1", "t1", "jo@example.com", "client", "active", now, now)
}

func TestCreatePrincipalUniqueViolation(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("insert into principals").
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})

	_, err := store.CreatePrincipal(context.Background(), rbac.Principal{
		TenantID: "t1", Email: "jo@example.com", Role: rbac.RoleClient, Status: "active",
	}, "hash")
	if !errors.Is(err, rbac.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestGetPrincipalTenantFiltered(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery("select id, tenant_id, email, role, status.*from principals.*where tenant_id = \\$1 and id = \\$2").
		WithArgs("t1", "p1").
		WillReturnRows(principalRows(now))

	p, err := store.GetPrincipal(context.Background(), "t1", "p1")
	if err != nil {
		t.Fatal(err)
	}
	if p.Role != rbac.RoleClient || p.Email != "jo@example.com" {
		t.Fatalf("unexpected principal %+v", p)
	}
}

func TestUpdatePrincipalRoleMissingRow(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("update principals.*set role = \\$1").
		WithArgs("staff", "t1", "p-missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	if _, err := store.UpdatePrincipalRole(context.Background(), "t1", "p-missing", rbac.RoleStaff); !errors.Is(err, rbac.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEnsureRolesUpserts(t *testing.T) {
	store, mock := newMockStore(t)

	for range rbac.Roles() {
		mock.ExpectExec("insert into roles .*on conflict \\(name\\) do update").
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	if err := store.EnsureRoles(context.Background(), rbac.Roles()); err != nil {
		t.Fatal(err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestEnsureRolesRejectsUnknown(t *testing.T) {
	store, _ := newMockStore(t)
	if err := store.EnsureRoles(context.Background(), []rbac.Role{"ghost"}); !errors.Is(err, rbac.ErrUnknownRole) {
		t.Fatalf("expected ErrUnknownRole, got %v", err)
	}
}

func TestEnsureGrantsIsInsertIfAbsent(t *testing.T) {
	store, mock := newMockStore(t)

	grants := []rbac.Grant{
		{Permission: rbac.Permission{Resource: "contract", Action: "archive", Scope: rbac.ScopeCompany}, MinRole: rbac.RoleAdmin},
	}

	mock.ExpectBegin()
	mock.ExpectExec("insert into permissions .*on conflict \\(name\\) do nothing").
		WithArgs("contract:archive:company", "contract", "archive", "company").
		WillReturnResult(sqlmock.NewResult(0, 1))
	// admin and super_admin satisfy the minimum role.
	for i := 0; i < 2; i++ {
		mock.ExpectExec("insert into role_permissions .*on conflict \\(role_name, permission_name\\) do nothing").
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	if err := store.EnsureGrants(context.Background(), grants); err != nil {
		t.Fatal(err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
