package workflow

import (
	"fmt"

	"crewplan.org/internal/rbac"
)

// Rule is one row of a definition's transition table: performing Action while
// in From moves the instance to To. Permission names the rbac permission the
// actor must hold; when empty it defaults to entityType:action:company.
type Rule struct {
	From       State
	Action     Action
	To         State
	Permission string
}

// Definition describes the workflow of one entity type: its states, the
// subset that is terminal, the initial state of new instances, and the
// transition table. The table is a partial function; (state, action) pairs
// not present mean the action is invalid in that state.
type Definition struct {
	EntityType string
	Initial    State
	States     []State
	Terminal   map[State]bool
	rules      map[ruleKey]Rule
}

type ruleKey struct {
	from   State
	action Action
}

// NewDefinition validates and indexes a definition.
func NewDefinition(entityType string, initial State, states []State, terminal []State, rules []Rule) (*Definition, error) {
	if entityType == "" {
		return nil, fmt.Errorf("workflow: entity type is required")
	}
	known := make(map[State]bool, len(states))
	for _, s := range states {
		known[s] = true
	}
	if !known[initial] {
		return nil, fmt.Errorf("workflow: initial state %q not declared for %s", initial, entityType)
	}
	term := make(map[State]bool, len(terminal))
	for _, s := range terminal {
		if !known[s] {
			return nil, fmt.Errorf("workflow: terminal state %q not declared for %s", s, entityType)
		}
		term[s] = true
	}
	indexed := make(map[ruleKey]Rule, len(rules))
	for _, r := range rules {
		if !known[r.From] || !known[r.To] {
			return nil, fmt.Errorf("workflow: rule %s/%s references undeclared state for %s", r.From, r.Action, entityType)
		}
		if term[r.From] {
			return nil, fmt.Errorf("workflow: rule %s/%s starts from terminal state for %s", r.From, r.Action, entityType)
		}
		if r.Permission == "" {
			r.Permission = fmt.Sprintf("%s:%s:%s", entityType, r.Action, rbac.ScopeCompany)
		}
		key := ruleKey{from: r.From, action: r.Action}
		if _, dup := indexed[key]; dup {
			return nil, fmt.Errorf("workflow: duplicate rule %s/%s for %s", r.From, r.Action, entityType)
		}
		indexed[key] = r
	}
	return &Definition{
		EntityType: entityType,
		Initial:    initial,
		States:     states,
		Terminal:   term,
		rules:      indexed,
	}, nil
}

// Next returns the rule applicable for (state, action). Absence is a normal
// outcome, not an error.
func (d *Definition) Next(state State, action Action) (Rule, bool) {
	rule, ok := d.rules[ruleKey{from: state, action: action}]
	return rule, ok
}

// IsTerminal reports whether the state absorbs: no action is valid from it.
func (d *Definition) IsTerminal(state State) bool {
	return d.Terminal[state]
}

// Registry holds the workflow definitions of all entity types. Built once at
// startup, immutable afterwards, safe for unsynchronized concurrent reads.
type Registry struct {
	defs map[string]*Definition
}

// NewRegistry indexes definitions by entity type. Registering the same
// entity type twice is a configuration error.
func NewRegistry(defs ...*Definition) (*Registry, error) {
	r := &Registry{defs: make(map[string]*Definition, len(defs))}
	for _, d := range defs {
		if _, dup := r.defs[d.EntityType]; dup {
			return nil, fmt.Errorf("workflow: duplicate definition for %s", d.EntityType)
		}
		r.defs[d.EntityType] = d
	}
	return r, nil
}

// Definition returns the definition for an entity type, or
// ErrUnknownEntityType for unregistered types.
func (r *Registry) Definition(entityType string) (*Definition, error) {
	d, ok := r.defs[entityType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEntityType, entityType)
	}
	return d, nil
}

// IsTerminal reports terminality for (entityType, state).
func (r *Registry) IsTerminal(entityType string, state State) (bool, error) {
	d, err := r.Definition(entityType)
	if err != nil {
		return false, err
	}
	return d.IsTerminal(state), nil
}

// NextState resolves the transition table. The boolean is false when the
// action is not valid from the state; the engine treats that as an expected
// outcome.
func (r *Registry) NextState(entityType string, state State, action Action) (State, bool, error) {
	d, err := r.Definition(entityType)
	if err != nil {
		return "", false, err
	}
	rule, ok := d.Next(state, action)
	if !ok {
		return "", false, nil
	}
	return rule.To, true, nil
}

// Contract workflow states.
const (
	ContractDraft     State = "draft"
	ContractSubmitted State = "submitted"
	ContractApproved  State = "approved"
	ContractActive    State = "active"
	ContractCompleted State = "completed"
	ContractRejected  State = "rejected"
	ContractArchived  State = "archived"
)

// Booking workflow states.
const (
	BookingRequested State = "requested"
	BookingConfirmed State = "confirmed"
	BookingCompleted State = "completed"
	BookingDeclined  State = "declined"
	BookingCancelled State = "cancelled"
)

// Document workflow states.
const (
	DocumentDraft         State = "draft"
	DocumentPendingReview State = "pending_review"
	DocumentApproved      State = "approved"
	DocumentRejected      State = "rejected"
	DocumentArchived      State = "archived"
)

// DefaultRegistry builds the built-in definitions for the platform's
// entity types. Static configuration; a failure is a programming error.
func DefaultRegistry() *Registry {
	contract, err := NewDefinition("contract", ContractDraft,
		[]State{ContractDraft, ContractSubmitted, ContractApproved, ContractActive, ContractCompleted, ContractRejected, ContractArchived},
		[]State{ContractRejected, ContractArchived},
		[]Rule{
			{From: ContractDraft, Action: "submit", To: ContractSubmitted},
			{From: ContractDraft, Action: "archive", To: ContractArchived},
			{From: ContractSubmitted, Action: "approve", To: ContractApproved},
			{From: ContractSubmitted, Action: "reject", To: ContractRejected},
			{From: ContractApproved, Action: "activate", To: ContractActive},
			{From: ContractApproved, Action: "reject", To: ContractRejected},
			{From: ContractActive, Action: "complete", To: ContractCompleted},
			{From: ContractCompleted, Action: "archive", To: ContractArchived},
		})
	if err != nil {
		panic(err)
	}
	booking, err := NewDefinition("booking", BookingRequested,
		[]State{BookingRequested, BookingConfirmed, BookingCompleted, BookingDeclined, BookingCancelled},
		[]State{BookingCompleted, BookingDeclined, BookingCancelled},
		[]Rule{
			{From: BookingRequested, Action: "confirm", To: BookingConfirmed},
			{From: BookingRequested, Action: "decline", To: BookingDeclined},
			{From: BookingConfirmed, Action: "complete", To: BookingCompleted},
			{From: BookingConfirmed, Action: "cancel", To: BookingCancelled},
		})
	if err != nil {
		panic(err)
	}
	document, err := NewDefinition("document", DocumentDraft,
		[]State{DocumentDraft, DocumentPendingReview, DocumentApproved, DocumentRejected, DocumentArchived},
		[]State{DocumentRejected, DocumentArchived},
		[]Rule{
			{From: DocumentDraft, Action: "submit", To: DocumentPendingReview},
			{From: DocumentPendingReview, Action: "approve", To: DocumentApproved},
			{From: DocumentPendingReview, Action: "reject", To: DocumentRejected},
			{From: DocumentApproved, Action: "archive", To: DocumentArchived},
		})
	if err != nil {
		panic(err)
	}
	registry, err := NewRegistry(contract, booking, document)
	if err != nil {
		panic(err)
	}
	return registry
}
