package validation

import "fmt"

// TransitionRule defines an allowed lifecycle transition.
type TransitionRule struct {
	From Status
	To   Status
}

// DefaultTransitions is the fixed directed graph of request lifecycle
// transitions. StatusRevision never appears as a target here: it is
// reachable only through an approver send-back, not the generic
// transition operation.
var DefaultTransitions = []TransitionRule{
	{From: StatusIntake, To: StatusPlanning},
	{From: StatusIntake, To: StatusOnHold},
	{From: StatusIntake, To: StatusCancelled},

	{From: StatusPlanning, To: StatusInProgress},
	{From: StatusPlanning, To: StatusIntake},
	{From: StatusPlanning, To: StatusOnHold},
	{From: StatusPlanning, To: StatusCancelled},

	{From: StatusInProgress, To: StatusReview},
	{From: StatusInProgress, To: StatusPlanning},
	{From: StatusInProgress, To: StatusOnHold},
	{From: StatusInProgress, To: StatusCancelled},

	{From: StatusReview, To: StatusPendingApproval},
	{From: StatusReview, To: StatusInProgress},
	{From: StatusReview, To: StatusOnHold},
	{From: StatusReview, To: StatusCancelled},

	{From: StatusPendingApproval, To: StatusApproved},
	{From: StatusPendingApproval, To: StatusOnHold},
	{From: StatusPendingApproval, To: StatusCancelled},

	{From: StatusRevision, To: StatusPendingApproval},
	{From: StatusRevision, To: StatusInProgress},
	{From: StatusRevision, To: StatusOnHold},
	{From: StatusRevision, To: StatusCancelled},

	// on_hold exits are validated against the derived pre-hold status by
	// the engine; the table admits every resume target.
	{From: StatusOnHold, To: StatusIntake},
	{From: StatusOnHold, To: StatusPlanning},
	{From: StatusOnHold, To: StatusInProgress},
	{From: StatusOnHold, To: StatusReview},
	{From: StatusOnHold, To: StatusPendingApproval},
	{From: StatusOnHold, To: StatusRevision},
	{From: StatusOnHold, To: StatusCancelled},
}

// Machine validates request lifecycle transitions.
type Machine struct {
	transitions []TransitionRule
}

// NewMachine creates a machine with the default transition table.
func NewMachine() *Machine {
	return &Machine{transitions: DefaultTransitions}
}

// ValidateTransition checks if a transition from->to is allowed by the
// table. Returns nil if allowed, a *ValidationError with a
// machine-readable code if not. Guard evaluation happens separately in
// the engine.
func (m *Machine) ValidateTransition(from, to Status) error {
	if !to.Valid() {
		return newValidationError("WORKFLOW_UNKNOWN_STATUS",
			"unknown status %q", to)
	}
	if from == to {
		return newValidationError("WORKFLOW_INVALID_TRANSITION",
			"request is already in status %s", from)
	}
	if from.Terminal() {
		return newValidationError("WORKFLOW_TERMINAL_STATUS",
			"no transition out of terminal status %s", from)
	}
	if to == StatusRevision && from != StatusOnHold {
		return newValidationError("WORKFLOW_REVISION_VIA_SEND_BACK",
			"revision is reachable only through an approver send-back")
	}

	for _, t := range m.transitions {
		if t.From == from && t.To == to {
			return nil
		}
	}

	return &ValidationError{
		Code:    "WORKFLOW_INVALID_TRANSITION",
		Message: fmt.Sprintf("no transition defined from %s to %s", from, to),
		Details: map[string]any{"from": string(from), "to": string(to)},
	}
}

// AllowedTransitions returns all valid target states from the given state.
func (m *Machine) AllowedTransitions(from Status) []Status {
	var allowed []Status
	for _, t := range m.transitions {
		if t.From == from {
			allowed = append(allowed, t.To)
		}
	}
	return allowed
}
