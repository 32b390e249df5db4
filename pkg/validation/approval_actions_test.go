package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelrisk/validation-workflow/pkg/authz"
	"github.com/modelrisk/validation-workflow/pkg/registry"
)

var (
	globalApprover = authz.Identity{User: "ga@bank.example", Roles: []authz.Role{authz.RoleGlobalApprover}}
	emeaApprover   = authz.Identity{User: "ra@bank.example", Roles: []authz.Role{authz.RoleRegionalApprover}, Regions: []string{"emea"}}
	adminIdentity  = authz.Identity{User: "admin@bank.example", Roles: []authz.Role{authz.RoleAdmin}}
)

// pendingWithRegion drives a request to pending_approval with a global and
// one regional (emea) approval outstanding.
func pendingWithRegion(t *testing.T, env *testEnv) (*ValidationRequestRecord, map[ApprovalType]ApprovalRecord) {
	t.Helper()
	env.seedModel(t, "m-1", "owner@bank.example", registry.Tier2)
	env.seedAssessment(t, "m-1")
	env.seedRegion(t, "r-emea", "emea", registry.RegionDeployment, true, false)
	env.seedActiveConfig(t)
	req := env.createRequest(t, TypeFullValidation, "m-1")
	env.advanceToPending(t, req.ID)

	records, err := env.approvals.ListByRequest(req.ID)
	require.NoError(t, err)
	require.Len(t, records, 2)
	byType := make(map[ApprovalType]ApprovalRecord, len(records))
	for _, rec := range records {
		byType[rec.Type] = rec
	}
	return req, byType
}

func TestSubmitApproval_Authorization(t *testing.T) {
	env := newTestEnv(t)
	_, byType := pendingWithRegion(t, env)
	global := byType[ApprovalGlobal]
	regional := byType[ApprovalRegional]

	approve := SubmitApprovalInput{Decision: DecisionApprove}

	// Wrong role entirely.
	validator := authz.Identity{User: "v@bank.example", Roles: []authz.Role{authz.RoleValidator}}
	_, err := env.engine.SubmitApproval(global.ID, validator, approve)
	var ae *AuthorizationError
	require.ErrorAs(t, err, &ae)

	// Regional approver outside the region.
	apacApprover := authz.Identity{User: "ap@bank.example", Roles: []authz.Role{authz.RoleRegionalApprover}, Regions: []string{"apac"}}
	_, err = env.engine.SubmitApproval(regional.ID, apacApprover, approve)
	require.ErrorAs(t, err, &ae)

	// Admin proxy needs an evidence note.
	_, err = env.engine.SubmitApproval(global.ID, adminIdentity, approve)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "APPROVAL_PROXY_NO_EVIDENCE", ve.Code)

	rec, err := env.engine.SubmitApproval(global.ID, adminIdentity, SubmitApprovalInput{
		Decision:     DecisionApprove,
		EvidenceNote: "approved per email from ga@bank.example on 2026-08-20",
	})
	require.NoError(t, err)
	assert.Equal(t, ApprovalApproved, rec.Status)
	assert.Equal(t, "admin@bank.example", rec.DecidedBy)

	// Region membership works by code as well as ID.
	rec, err = env.engine.SubmitApproval(regional.ID, emeaApprover, approve)
	require.NoError(t, err)
	assert.Equal(t, ApprovalApproved, rec.Status)
}

func TestSubmitApproval_Validation(t *testing.T) {
	env := newTestEnv(t)
	req, byType := pendingWithRegion(t, env)
	global := byType[ApprovalGlobal]

	_, err := env.engine.SubmitApproval(global.ID, globalApprover, SubmitApprovalInput{Decision: "abstain"})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "APPROVAL_BAD_DECISION", ve.Code)

	_, err = env.engine.SubmitApproval(global.ID, globalApprover, SubmitApprovalInput{Decision: DecisionApprove})
	require.NoError(t, err)

	// Deciding again conflicts.
	var ce *ConflictError
	_, err = env.engine.SubmitApproval(global.ID, globalApprover, SubmitApprovalInput{Decision: DecisionReject})
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "APPROVAL_ALREADY_RESOLVED", ce.Code)

	// One of two approved: the request has not moved.
	current, err := env.store.GetRequest(req.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPendingApproval, current.Status)
}

func TestSubmitApproval_RejectDoesNotComplete(t *testing.T) {
	env := newTestEnv(t)
	req, byType := pendingWithRegion(t, env)

	_, err := env.engine.SubmitApproval(byType[ApprovalGlobal].ID, globalApprover,
		SubmitApprovalInput{Decision: DecisionReject, Comment: "benchmarking evidence is missing"})
	require.NoError(t, err)
	_, err = env.engine.SubmitApproval(byType[ApprovalRegional].ID, emeaApprover,
		SubmitApprovalInput{Decision: DecisionApprove})
	require.NoError(t, err)

	current, err := env.store.GetRequest(req.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPendingApproval, current.Status)
	assert.Nil(t, current.CompletedAt)
}

func TestWithdrawApproval(t *testing.T) {
	env := newTestEnv(t)
	req, byType := pendingWithRegion(t, env)
	global := byType[ApprovalGlobal]

	// Nothing decided yet.
	_, err := env.engine.WithdrawApproval(global.ID, globalApprover)
	var ce *ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "APPROVAL_NOT_RESOLVED", ce.Code)

	_, err = env.engine.SubmitApproval(global.ID, globalApprover, SubmitApprovalInput{Decision: DecisionApprove})
	require.NoError(t, err)

	// Only the decider or an admin may take it back.
	_, err = env.engine.WithdrawApproval(global.ID, emeaApprover)
	var ae *AuthorizationError
	require.ErrorAs(t, err, &ae)

	rec, err := env.engine.WithdrawApproval(global.ID, globalApprover)
	require.NoError(t, err)
	assert.Equal(t, ApprovalPending, rec.Status)
	assert.Empty(t, rec.DecidedBy)
	assert.Nil(t, rec.DecidedAt)

	// Once the request completes, withdrawal is off the table.
	_, err = env.engine.SubmitApproval(global.ID, globalApprover, SubmitApprovalInput{Decision: DecisionApprove})
	require.NoError(t, err)
	_, err = env.engine.SubmitApproval(byType[ApprovalRegional].ID, emeaApprover, SubmitApprovalInput{Decision: DecisionApprove})
	require.NoError(t, err)

	current, err := env.store.GetRequest(req.ID)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, current.Status)

	_, err = env.engine.WithdrawApproval(global.ID, globalApprover)
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "APPROVAL_REQUEST_MOVED", ce.Code)
}

func TestVoidApproval(t *testing.T) {
	env := newTestEnv(t)
	_, byType := pendingWithRegion(t, env)
	regional := byType[ApprovalRegional]

	err := env.engine.VoidApproval(regional.ID, globalApprover, "duplicate requirement")
	var ae *AuthorizationError
	require.ErrorAs(t, err, &ae)

	err = env.engine.VoidApproval(regional.ID, adminIdentity, "  ")
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "APPROVAL_VOID_NO_REASON", ve.Code)

	require.NoError(t, env.engine.VoidApproval(regional.ID, adminIdentity, "region exited the market"))

	err = env.engine.VoidApproval(regional.ID, adminIdentity, "again")
	var ce *ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "APPROVAL_ALREADY_VOIDED", ce.Code)
}

func TestAddManualApproval_GatesCompletion(t *testing.T) {
	env := newTestEnv(t)
	env.seedModel(t, "m-1", "owner@bank.example", registry.Tier2)
	env.seedAssessment(t, "m-1")
	env.seedActiveConfig(t)
	req := env.createRequest(t, TypeFullValidation, "m-1")

	_, err := env.engine.AddManualApproval(req.ID, globalApprover, ManualApprovalInput{
		Type: ApprovalManualRole, Role: "cro_delegate",
	})
	var ae *AuthorizationError
	require.ErrorAs(t, err, &ae)

	_, err = env.engine.AddManualApproval(req.ID, adminIdentity, ManualApprovalInput{Type: ApprovalGlobal})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "APPROVAL_NOT_MANUAL", ve.Code)

	_, err = env.engine.AddManualApproval(req.ID, adminIdentity, ManualApprovalInput{Type: ApprovalManualRole})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "APPROVAL_NO_ROLE", ve.Code)

	manual, err := env.engine.AddManualApproval(req.ID, adminIdentity, ManualApprovalInput{
		Type: ApprovalManualRole, Role: "cro_delegate",
	})
	require.NoError(t, err)

	env.advanceToPending(t, req.ID)

	records, err := env.approvals.ListByRequest(req.ID)
	require.NoError(t, err)
	require.Len(t, records, 2) // manual + global

	var global ApprovalRecord
	for _, rec := range records {
		if rec.Type == ApprovalGlobal {
			global = rec
		}
	}
	_, err = env.engine.SubmitApproval(global.ID, globalApprover, SubmitApprovalInput{Decision: DecisionApprove})
	require.NoError(t, err)

	current, err := env.store.GetRequest(req.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPendingApproval, current.Status)

	delegate := authz.Identity{User: "cd@bank.example", Roles: []authz.Role{"cro_delegate"}}
	_, err = env.engine.SubmitApproval(manual.ID, delegate, SubmitApprovalInput{Decision: DecisionApprove})
	require.NoError(t, err)

	current, err = env.store.GetRequest(req.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, current.Status)
}

func TestSendBackAndResubmit_Unchanged(t *testing.T) {
	env := newTestEnv(t)
	req, byType := pendingWithRegion(t, env)

	_, err := env.engine.SendBack(byType[ApprovalGlobal].ID, globalApprover, "")
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "APPROVAL_SENDBACK_NO_REASON", ve.Code)

	// Global approves, then the regional approver sends the request back.
	_, err = env.engine.SubmitApproval(byType[ApprovalGlobal].ID, globalApprover, SubmitApprovalInput{Decision: DecisionApprove})
	require.NoError(t, err)

	updated, err := env.engine.SendBack(byType[ApprovalRegional].ID, emeaApprover, "back-testing window too short")
	require.NoError(t, err)
	assert.Equal(t, StatusRevision, updated.Status)

	regional, err := env.approvals.Get(byType[ApprovalRegional].ID)
	require.NoError(t, err)
	assert.Equal(t, ApprovalSentBack, regional.Status)
	assert.Equal(t, "back-testing window too short", regional.Comment)

	// Nothing material changed: the standing global approval survives.
	resubmitted, err := env.engine.Resubmit(req.ID, "validator@bank.example", "")
	require.NoError(t, err)
	assert.Equal(t, StatusPendingApproval, resubmitted.Status)

	global, err := env.approvals.Get(byType[ApprovalGlobal].ID)
	require.NoError(t, err)
	assert.Equal(t, ApprovalApproved, global.Status)

	regional, err = env.approvals.Get(byType[ApprovalRegional].ID)
	require.NoError(t, err)
	assert.Equal(t, ApprovalPending, regional.Status)

	history, err := env.store.History(req.ID)
	require.NoError(t, err)
	last := history[len(history)-1]
	assert.Equal(t, StatusRevision, last.OldStatus)
	assert.Equal(t, "resubmitted after revision", last.Reason)
}

func TestSendBackAndResubmit_MaterialChange(t *testing.T) {
	env := newTestEnv(t)
	req, byType := pendingWithRegion(t, env)

	_, err := env.engine.SubmitApproval(byType[ApprovalGlobal].ID, globalApprover, SubmitApprovalInput{Decision: DecisionApprove})
	require.NoError(t, err)
	_, err = env.engine.SendBack(byType[ApprovalRegional].ID, emeaApprover, "limitations understate the tail risk")
	require.NoError(t, err)

	// The validator reworks the outcome during revision.
	_, err = env.engine.RecordOutcome(req.ID, OutcomeInput{
		Rating:        "satisfactory_with_findings",
		LimitationIDs: []string{"lim-9"},
	}, "validator@bank.example")
	require.NoError(t, err)

	resubmitted, err := env.engine.Resubmit(req.ID, "validator@bank.example", "")
	require.NoError(t, err)
	assert.Equal(t, StatusPendingApproval, resubmitted.Status)

	// Everything must be re-earned, including the earlier global approval.
	global, err := env.approvals.Get(byType[ApprovalGlobal].ID)
	require.NoError(t, err)
	assert.Equal(t, ApprovalPending, global.Status)
	assert.Empty(t, global.DecidedBy)

	history, err := env.store.History(req.ID)
	require.NoError(t, err)
	last := history[len(history)-1]
	assert.Equal(t, "resubmitted after revision with material changes", last.Reason)
}

func TestResubmit_NotInRevision(t *testing.T) {
	env := newTestEnv(t)
	env.seedModel(t, "m-1", "owner@bank.example", registry.Tier2)
	req := env.createRequest(t, TypeFullValidation, "m-1")

	_, err := env.engine.Resubmit(req.ID, "validator@bank.example", "")
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "WORKFLOW_NOT_REVISION", ve.Code)
}

func TestSendBack_RequestNotPending(t *testing.T) {
	env := newTestEnv(t)
	req, byType := pendingWithRegion(t, env)
	env.transition(t, req.ID, StatusOnHold)

	_, err := env.engine.SendBack(byType[ApprovalGlobal].ID, globalApprover, "hold first")
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "APPROVAL_NOT_PENDING_APPROVAL", ve.Code)
}
