package rbac

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/argon2"
)

const (
	PrincipalStatusActive   = "active"
	PrincipalStatusDisabled = "disabled"
)

// Principal is a provisioned account: one user, one assigned role, one
// tenant. Created at account provisioning; the role is only ever changed
// through ReassignRole, which callers audit.
type Principal struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PrincipalStore persists principals. Reads are tenant-filtered; a principal
// from another tenant is indistinguishable from a missing one.
type PrincipalStore interface {
	CreatePrincipal(ctx context.Context, p Principal, passwordHash string) (Principal, error)
	GetPrincipal(ctx context.Context, tenantID, id string) (Principal, error)
	ListPrincipals(ctx context.Context, tenantID string) ([]Principal, error)
	UpdatePrincipalRole(ctx context.Context, tenantID, id string, role Role) (Principal, error)
}

// Directory wraps PrincipalStore with input validation and password hashing.
type Directory struct {
	store PrincipalStore
}

// NewDirectory constructs a Directory.
func NewDirectory(store PrincipalStore) (*Directory, error) {
	if store == nil {
		return nil, errors.New("rbac: principal store is required")
	}
	return &Directory{store: store}, nil
}

// Provision creates a principal with a hashed password.
func (d *Directory) Provision(ctx context.Context, tenantID, email, password, roleName string) (Principal, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return Principal{}, fmt.Errorf("%w: tenant_id is required", ErrInvalidInput)
	}
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return Principal{}, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	password = strings.TrimSpace(password)
	if password == "" {
		return Principal{}, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	role, err := ParseRole(roleName)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: unsupported role %q", ErrInvalidInput, roleName)
	}
	hash, err := hashPassword(password)
	if err != nil {
		return Principal{}, err
	}
	return d.store.CreatePrincipal(ctx, Principal{
		TenantID: tenantID,
		Email:    email,
		Role:     role,
		Status:   PrincipalStatusActive,
	}, hash)
}

// Get returns a principal within the caller's tenant.
func (d *Directory) Get(ctx context.Context, tenantID, id string) (Principal, error) {
	tenantID = strings.TrimSpace(tenantID)
	id = strings.TrimSpace(id)
	if tenantID == "" || id == "" {
		return Principal{}, fmt.Errorf("%w: tenant_id and principal id are required", ErrInvalidInput)
	}
	return d.store.GetPrincipal(ctx, tenantID, id)
}

// List returns the principals of one tenant.
func (d *Directory) List(ctx context.Context, tenantID string) ([]Principal, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenant_id is required", ErrInvalidInput)
	}
	return d.store.ListPrincipals(ctx, tenantID)
}

// ReassignRole changes a principal's effective role. The caller is
// responsible for auditing the change; roles are never silently escalated.
func (d *Directory) ReassignRole(ctx context.Context, tenantID, id, roleName string) (Principal, error) {
	tenantID = strings.TrimSpace(tenantID)
	id = strings.TrimSpace(id)
	if tenantID == "" || id == "" {
		return Principal{}, fmt.Errorf("%w: tenant_id and principal id are required", ErrInvalidInput)
	}
	role, err := ParseRole(roleName)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: unsupported role %q", ErrInvalidInput, roleName)
	}
	return d.store.UpdatePrincipalRole(ctx, tenantID, id, role)
}

func hashPassword(password string) (string, error) {
	const (
		memory      = 64 * 1024
		iterations  = 2
		parallelism = 1
		keyLength   = 32
		saltLength  = 16
	)

	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	hash := argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, keyLength)

	return fmt.Sprintf(
		"$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		memory,
		iterations,
		parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}
