package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"crewplan.org/internal/ids"
	"crewplan.org/internal/rbac"
)

var _ rbac.PrincipalStore = (*Store)(nil)

func (s *Store) CreatePrincipal(ctx context.Context, p rbac.Principal, passwordHash string) (rbac.Principal, error) {
	if s.db == nil {
		return rbac.Principal{}, errors.New("database connection unavailable")
	}
	row := s.db.QueryRowContext(ctx, `
		insert into principals (id, tenant_id, email, password_hash, role, status)
		values ($1, $2, $3, $4, $5, $6)
		returning id, tenant_id, email, role, status, created_at, updated_at
	`, ids.New(), p.TenantID, p.Email, passwordHash, p.Role, p.Status)
	created, err := scanPrincipal(row)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return rbac.Principal{}, rbac.ErrConflict
			case pgErrForeignKeyViolation:
				return rbac.Principal{}, rbac.ErrNotFound
			}
		}
		return rbac.Principal{}, err
	}
	return created, nil
}

func (s *Store) GetPrincipal(ctx context.Context, tenantID, id string) (rbac.Principal, error) {
	if s.db == nil {
		return rbac.Principal{}, errors.New("database connection unavailable")
	}
	row := s.db.QueryRowContext(ctx, `
		select id, tenant_id, email, role, status, created_at, updated_at
		from principals
		where tenant_id = $1 and id = $2
	`, tenantID, id)
	p, err := scanPrincipal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return rbac.Principal{}, rbac.ErrNotFound
	}
	if err != nil {
		return rbac.Principal{}, err
	}
	return p, nil
}

func (s *Store) ListPrincipals(ctx context.Context, tenantID string) ([]rbac.Principal, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, tenant_id, email, role, status, created_at, updated_at
		from principals
		where tenant_id = $1
		order by email
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var principals []rbac.Principal
	for rows.Next() {
		p, err := scanPrincipal(rows)
		if err != nil {
			return nil, err
		}
		principals = append(principals, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return principals, nil
}

func (s *Store) UpdatePrincipalRole(ctx context.Context, tenantID, id string, role rbac.Role) (rbac.Principal, error) {
	if s.db == nil {
		return rbac.Principal{}, errors.New("database connection unavailable")
	}
	row := s.db.QueryRowContext(ctx, `
		update principals
		set role = $1, updated_at = now()
		where tenant_id = $2 and id = $3
		returning id, tenant_id, email, role, status, created_at, updated_at
	`, role, tenantID, id)
	p, err := scanPrincipal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return rbac.Principal{}, rbac.ErrNotFound
	}
	if err != nil {
		return rbac.Principal{}, err
	}
	return p, nil
}

func scanPrincipal(row rowScanner) (rbac.Principal, error) {
	var p rbac.Principal
	err := row.Scan(&p.ID, &p.TenantID, &p.Email, &p.Role, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// EnsureRoles upserts the role reference rows. Natural key is the role name;
// re-seeding updates level/category only, so applying the seed twice leaves
// exactly one row per role with the latest description.
func (s *Store) EnsureRoles(ctx context.Context, roles []rbac.Role) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	for _, role := range roles {
		if !role.IsValid() {
			return fmt.Errorf("%w: %q", rbac.ErrUnknownRole, role)
		}
		if _, err := s.db.ExecContext(ctx, `
			insert into roles (name, level, category)
			values ($1, $2, $3)
			on conflict (name) do update
			set level = excluded.level, category = excluded.category
		`, role, rbac.Level(role), rbac.Category(role)); err != nil {
			return fmt.Errorf("ensure role %s: %w", role, err)
		}
	}
	return nil
}

// EnsureGrants upserts the permission catalogue and role-permission edges.
// Permissions key on their canonical name; grant edges are insert-if-absent,
// so re-asserting a grant is a no-op, never a duplicate row.
func (s *Store) EnsureGrants(ctx context.Context, grants []rbac.Grant) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	catalogue, err := rbac.NewCatalogue(grants)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, g := range grants {
		name := g.Permission.Name()
		if _, err := tx.ExecContext(ctx, `
			insert into permissions (name, resource, action, scope)
			values ($1, $2, $3, $4)
			on conflict (name) do nothing
		`, name, g.Permission.Resource, g.Permission.Action, g.Permission.Scope); err != nil {
			return fmt.Errorf("ensure permission %s: %w", name, err)
		}

		allowed, err := catalogue.ResolveAllowedRoles(name)
		if err != nil {
			return err
		}
		for role := range allowed {
			if _, err := tx.ExecContext(ctx, `
				insert into role_permissions (role_name, permission_name)
				values ($1, $2)
				on conflict (role_name, permission_name) do nothing
			`, role, name); err != nil {
				return fmt.Errorf("ensure grant %s -> %s: %w", role, name, err)
			}
		}
	}
	return tx.Commit()
}
