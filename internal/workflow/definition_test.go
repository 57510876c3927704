package workflow

import (
	"errors"
	"testing"
)

func TestNewDefinitionValidation(t *testing.T) {
	states := []State{"a", "b"}

	if _, err := NewDefinition("x", "c", states, nil, nil); err == nil {
		t.Fatal("expected error for undeclared initial state")
	}
	if _, err := NewDefinition("x", "a", states, []State{"c"}, nil); err == nil {
		t.Fatal("expected error for undeclared terminal state")
	}
	if _, err := NewDefinition("x", "a", states, []State{"b"}, []Rule{
		{From: "b", Action: "go", To: "a"},
	}); err == nil {
		t.Fatal("expected error for rule starting from terminal state")
	}
	if _, err := NewDefinition("x", "a", states, nil, []Rule{
		{From: "a", Action: "go", To: "b"},
		{From: "a", Action: "go", To: "a"},
	}); err == nil {
		t.Fatal("expected error for duplicate (state, action) rule")
	}
}

func TestDefinitionDefaultsPermissionName(t *testing.T) {
	d, err := NewDefinition("contract", "a", []State{"a", "b"}, nil, []Rule{
		{From: "a", Action: "submit", To: "b"},
	})
	if err != nil {
		t.Fatal(err)
	}
	rule, ok := d.Next("a", "submit")
	if !ok {
		t.Fatal("rule not found")
	}
	if rule.Permission != "contract:submit:company" {
		t.Fatalf("unexpected default permission %q", rule.Permission)
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	d, err := NewDefinition("x", "a", []State{"a"}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewRegistry(d, d); err == nil {
		t.Fatal("expected duplicate registration error")
	}
}

func TestRegistryUnknownEntityType(t *testing.T) {
	r := DefaultRegistry()
	if _, err := r.Definition("invoice"); !errors.Is(err, ErrUnknownEntityType) {
		t.Fatalf("expected ErrUnknownEntityType, got %v", err)
	}
	if _, _, err := r.NextState("invoice", "draft", "submit"); !errors.Is(err, ErrUnknownEntityType) {
		t.Fatalf("expected ErrUnknownEntityType, got %v", err)
	}
}

func TestDefaultRegistryContractTable(t *testing.T) {
	r := DefaultRegistry()

	cases := []struct {
		from   State
		action Action
		to     State
		valid  bool
	}{
		{ContractDraft, "submit", ContractSubmitted, true},
		{ContractDraft, "archive", ContractArchived, true},
		{ContractSubmitted, "approve", ContractApproved, true},
		{ContractSubmitted, "reject", ContractRejected, true},
		{ContractApproved, "activate", ContractActive, true},
		{ContractApproved, "reject", ContractRejected, true},
		{ContractActive, "complete", ContractCompleted, true},
		{ContractCompleted, "archive", ContractArchived, true},
		{ContractDraft, "approve", "", false},
		{ContractActive, "submit", "", false},
	}
	for _, tc := range cases {
		next, ok, err := r.NextState("contract", tc.from, tc.action)
		if err != nil {
			t.Fatal(err)
		}
		if ok != tc.valid {
			t.Fatalf("%s/%s: valid=%v, want %v", tc.from, tc.action, ok, tc.valid)
		}
		if ok && next != tc.to {
			t.Fatalf("%s/%s: next=%q, want %q", tc.from, tc.action, next, tc.to)
		}
	}
}

func TestDefaultRegistryTerminalStates(t *testing.T) {
	r := DefaultRegistry()

	terminals := []struct {
		entityType string
		state      State
	}{
		{"contract", ContractRejected},
		{"contract", ContractArchived},
		{"booking", BookingDeclined},
		{"booking", BookingCancelled},
		{"booking", BookingCompleted},
		{"document", DocumentRejected},
		{"document", DocumentArchived},
	}
	for _, tc := range terminals {
		term, err := r.IsTerminal(tc.entityType, tc.state)
		if err != nil {
			t.Fatal(err)
		}
		if !term {
			t.Fatalf("%s/%s should be terminal", tc.entityType, tc.state)
		}
	}
	if term, _ := r.IsTerminal("contract", ContractActive); term {
		t.Fatal("active is not terminal")
	}
}
