package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTransition(t *testing.T) {
	m := NewMachine()

	tests := []struct {
		name string
		from Status
		to   Status
		code string
	}{
		{"intake to planning", StatusIntake, StatusPlanning, ""},
		{"planning back to intake", StatusPlanning, StatusIntake, ""},
		{"review to pending_approval", StatusReview, StatusPendingApproval, ""},
		{"pending_approval to approved", StatusPendingApproval, StatusApproved, ""},
		{"any active to cancelled", StatusInProgress, StatusCancelled, ""},
		{"skip ahead", StatusIntake, StatusReview, "WORKFLOW_INVALID_TRANSITION"},
		{"same status", StatusPlanning, StatusPlanning, "WORKFLOW_INVALID_TRANSITION"},
		{"out of approved", StatusApproved, StatusPlanning, "WORKFLOW_TERMINAL_STATUS"},
		{"out of cancelled", StatusCancelled, StatusIntake, "WORKFLOW_TERMINAL_STATUS"},
		{"revision only via send-back", StatusPendingApproval, StatusRevision, "WORKFLOW_REVISION_VIA_SEND_BACK"},
		{"unknown target", StatusIntake, Status("archived"), "WORKFLOW_UNKNOWN_STATUS"},
		{"unknown source", Status("archived"), StatusIntake, "WORKFLOW_INVALID_TRANSITION"},
		{"resume to revision allowed", StatusOnHold, StatusRevision, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := m.ValidateTransition(tt.from, tt.to)
			if tt.code == "" {
				assert.NoError(t, err)
				return
			}
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.code, ve.Code)
		})
	}
}

func TestAllowedTransitions(t *testing.T) {
	m := NewMachine()

	assert.ElementsMatch(t,
		[]Status{StatusPlanning, StatusOnHold, StatusCancelled},
		m.AllowedTransitions(StatusIntake))
	assert.Empty(t, m.AllowedTransitions(StatusApproved))
	assert.Empty(t, m.AllowedTransitions(Status("archived")))

	// A held request may resume anywhere non-terminal or be cancelled; the
	// resume target is narrowed further at transition time.
	fromHold := m.AllowedTransitions(StatusOnHold)
	assert.Contains(t, fromHold, StatusCancelled)
	assert.NotContains(t, fromHold, StatusApproved)
	assert.NotContains(t, fromHold, StatusOnHold)
}

func TestStatusTerminal(t *testing.T) {
	assert.True(t, StatusApproved.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	for _, s := range []Status{StatusIntake, StatusPlanning, StatusInProgress,
		StatusReview, StatusPendingApproval, StatusRevision, StatusOnHold} {
		assert.False(t, s.Terminal(), "status %s", s)
	}
}

func TestIsDeviation(t *testing.T) {
	tests := []struct {
		expectation Expectation
		treatment   Treatment
		want        bool
	}{
		{ExpectationRequired, TreatmentPlanned, false},
		{ExpectationRequired, TreatmentNotPlanned, true},
		{ExpectationRequired, TreatmentNotApplicable, true},
		{ExpectationIfApplicable, TreatmentPlanned, false},
		{ExpectationIfApplicable, TreatmentNotPlanned, false},
		{ExpectationIfApplicable, TreatmentNotApplicable, false},
		{ExpectationNotExpected, TreatmentPlanned, true},
		{ExpectationNotExpected, TreatmentNotPlanned, false},
		{ExpectationNotExpected, TreatmentNotApplicable, false},
	}
	for _, tt := range tests {
		got := IsDeviation(tt.expectation, tt.treatment)
		assert.Equal(t, tt.want, got, "%s/%s", tt.expectation, tt.treatment)
	}
}

func TestResolveOverride(t *testing.T) {
	yes, no := true, false

	assert.True(t, ResolveOverride(false, []*bool{&yes, &no}))
	assert.True(t, ResolveOverride(true, []*bool{nil, &yes}))
	assert.False(t, ResolveOverride(true, []*bool{&no, &no}))
	assert.True(t, ResolveOverride(true, []*bool{&no, nil}))
	assert.False(t, ResolveOverride(false, []*bool{nil}))
	assert.True(t, ResolveOverride(true, nil))
	assert.False(t, ResolveOverride(false, nil))
}
