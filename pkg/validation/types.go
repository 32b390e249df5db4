// Package validation implements the model-validation workflow core: the
// request lifecycle state machine, the approval-requirement resolver, the
// versioned validation-plan compliance engine, and the revalidation
// scheduler.
package validation

// Status represents validation request lifecycle states.
type Status string

const (
	StatusIntake          Status = "intake"
	StatusPlanning        Status = "planning"
	StatusInProgress      Status = "in_progress"
	StatusReview          Status = "review"
	StatusPendingApproval Status = "pending_approval"
	StatusRevision        Status = "revision"
	StatusApproved        Status = "approved"
	StatusOnHold          Status = "on_hold"
	StatusCancelled       Status = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusCancelled
}

// knownStatuses is the closed set of lifecycle states.
var knownStatuses = map[Status]bool{
	StatusIntake:          true,
	StatusPlanning:        true,
	StatusInProgress:      true,
	StatusReview:          true,
	StatusPendingApproval: true,
	StatusRevision:        true,
	StatusApproved:        true,
	StatusOnHold:          true,
	StatusCancelled:       true,
}

// Valid reports whether s is a recognized lifecycle state.
func (s Status) Valid() bool { return knownStatuses[s] }

// ValidationType classifies the validation work a request asks for.
type ValidationType string

const (
	TypeFullValidation     ValidationType = "full_validation"
	TypeInterimValidation  ValidationType = "interim_validation"
	TypeTargetedValidation ValidationType = "targeted_validation"
	// TypeComplianceReview is scope-only: no component-level plan, just a
	// textual scope summary.
	TypeComplianceReview ValidationType = "compliance_review"
)

var knownTypes = map[ValidationType]bool{
	TypeFullValidation:     true,
	TypeInterimValidation:  true,
	TypeTargetedValidation: true,
	TypeComplianceReview:   true,
}

// Valid reports whether t is a recognized validation type.
func (t ValidationType) Valid() bool { return knownTypes[t] }

// ScopeOnly reports whether the type carries no component-level plan.
func (t ValidationType) ScopeOnly() bool { return t == TypeComplianceReview }

// Priority represents request urgency.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

var knownPriorities = map[Priority]bool{
	PriorityLow:      true,
	PriorityMedium:   true,
	PriorityHigh:     true,
	PriorityCritical: true,
}

// Valid reports whether p is a recognized priority.
func (p Priority) Valid() bool { return knownPriorities[p] }

// AssignmentRole classifies a request assignment.
type AssignmentRole string

const (
	RolePrimaryValidator AssignmentRole = "primary_validator"
	RoleSupportValidator AssignmentRole = "validator"
	RoleReviewer         AssignmentRole = "reviewer"
)

// ApprovalType classifies how an approval requirement arose.
type ApprovalType string

const (
	ApprovalGlobal      ApprovalType = "global"
	ApprovalRegional    ApprovalType = "regional"
	ApprovalConditional ApprovalType = "conditional"
	ApprovalManualRole  ApprovalType = "manual_role"
	ApprovalManualUser  ApprovalType = "manual_user"
)

// Manual reports whether the approval was operator-added out-of-band.
func (t ApprovalType) Manual() bool {
	return t == ApprovalManualRole || t == ApprovalManualUser
}

// ApprovalStatus represents the state of a single approval record.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
	ApprovalSentBack ApprovalStatus = "sent_back"
	// ApprovalVoided is a terminal marker; voided records are never deleted.
	ApprovalVoided  ApprovalStatus = "voided"
	ApprovalRemoved ApprovalStatus = "removed"
)

// Active reports whether the approval still participates in the required
// set (it has not been voided or removed).
func (s ApprovalStatus) Active() bool {
	return s != ApprovalVoided && s != ApprovalRemoved
}

// Resolved reports whether an approver has issued a terminal decision.
func (s ApprovalStatus) Resolved() bool {
	return s == ApprovalApproved || s == ApprovalRejected
}

// Expectation is the per-tier requirement for a plan component.
type Expectation string

const (
	ExpectationRequired     Expectation = "required"
	ExpectationIfApplicable Expectation = "if_applicable"
	ExpectationNotExpected  Expectation = "not_expected"
)

var knownExpectations = map[Expectation]bool{
	ExpectationRequired:     true,
	ExpectationIfApplicable: true,
	ExpectationNotExpected:  true,
}

// Valid reports whether e is a recognized expectation.
func (e Expectation) Valid() bool { return knownExpectations[e] }

// Treatment is the operator's planned handling of a plan component.
type Treatment string

const (
	TreatmentPlanned       Treatment = "planned"
	TreatmentNotPlanned    Treatment = "not_planned"
	TreatmentNotApplicable Treatment = "not_applicable"
)

var knownTreatments = map[Treatment]bool{
	TreatmentPlanned:       true,
	TreatmentNotPlanned:    true,
	TreatmentNotApplicable: true,
}

// Valid reports whether t is a recognized treatment.
func (t Treatment) Valid() bool { return knownTreatments[t] }

// IsDeviation is the deviation rule: a pure, total function over the
// (expectation, treatment) space.
//
//	required      + anything but planned  => deviation
//	not_expected  + planned               => deviation
//	if_applicable never auto-flags.
func IsDeviation(e Expectation, t Treatment) bool {
	switch e {
	case ExpectationRequired:
		return t != TreatmentPlanned
	case ExpectationNotExpected:
		return t == TreatmentPlanned
	default:
		return false
	}
}

// ResolveOverride implements most-restrictive-wins resolution for tri-state
// boolean overrides: any explicit true wins; if every override is explicitly
// false, the result is false; otherwise the base value stands.
func ResolveOverride(base bool, overrides []*bool) bool {
	allFalse := len(overrides) > 0
	for _, o := range overrides {
		if o == nil {
			allFalse = false
			continue
		}
		if *o {
			return true
		}
	}
	if allFalse {
		return false
	}
	return base
}
