package tenant

import (
	"errors"
	"testing"
)

func TestAssertSameTenant(t *testing.T) {
	if err := AssertSameTenant("t1", "t1"); err != nil {
		t.Fatal(err)
	}
	if err := AssertSameTenant("t1", "t2"); !errors.Is(err, ErrCrossTenant) {
		t.Fatalf("expected ErrCrossTenant, got %v", err)
	}
}

func TestAssertSameTenantRejectsEmpty(t *testing.T) {
	if err := AssertSameTenant("", "t1"); !errors.Is(err, ErrCrossTenant) {
		t.Fatalf("expected ErrCrossTenant for empty caller, got %v", err)
	}
	if err := AssertSameTenant("t1", "  "); !errors.Is(err, ErrCrossTenant) {
		t.Fatalf("expected ErrCrossTenant for empty resource, got %v", err)
	}
	if err := AssertSameTenant("", ""); !errors.Is(err, ErrCrossTenant) {
		t.Fatalf("expected ErrCrossTenant for both empty, got %v", err)
	}
}
