package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelrisk/validation-workflow/pkg/authz"
	"github.com/modelrisk/validation-workflow/pkg/registry"
)

func approvalsByType(records []ApprovalRecord) map[ApprovalType][]ApprovalRecord {
	grouped := make(map[ApprovalType][]ApprovalRecord)
	for _, rec := range records {
		grouped[rec.Type] = append(grouped[rec.Type], rec)
	}
	return grouped
}

func TestSync_GlobalAndRegional(t *testing.T) {
	env := newTestEnv(t)
	env.seedModel(t, "m-1", "owner@bank.example", registry.Tier2)
	env.seedRegion(t, "r-emea", "emea", registry.RegionDeployment, true, false)
	env.seedRegion(t, "r-apac", "apac", registry.RegionDeployment, false, false)
	req := env.createRequest(t, TypeFullValidation, "m-1")

	added, voided, err := env.resolver.Sync(env.db, req)
	require.NoError(t, err)
	assert.Equal(t, 2, added)
	assert.Equal(t, 0, voided)

	records, err := env.approvals.ListByRequest(req.ID)
	require.NoError(t, err)
	grouped := approvalsByType(records)
	require.Len(t, grouped[ApprovalGlobal], 1)
	require.Len(t, grouped[ApprovalRegional], 1)
	assert.Equal(t, "r-emea", grouped[ApprovalRegional][0].RegionID)

	// Re-running with unchanged scope is a no-op.
	added, voided, err = env.resolver.Sync(env.db, req)
	require.NoError(t, err)
	assert.Zero(t, added)
	assert.Zero(t, voided)
}

func TestSync_ExplicitScopeNarrowing(t *testing.T) {
	env := newTestEnv(t)
	env.seedModel(t, "m-1", "owner@bank.example", registry.Tier2)
	env.seedRegion(t, "r-emea", "emea", registry.RegionDeployment, true, false)
	env.seedRegion(t, "r-apac", "apac", registry.RegionDeployment, true, false)

	req, _, err := env.engine.CreateRequest(CreateRequestInput{
		Type:      TypeFullValidation,
		Models:    []ModelLinkInput{{ModelID: "m-1"}},
		RegionIDs: []string{"r-apac"},
		Requester: "r@x",
	})
	require.NoError(t, err)

	_, _, err = env.resolver.Sync(env.db, req)
	require.NoError(t, err)

	records, err := env.approvals.ListByRequest(req.ID)
	require.NoError(t, err)
	grouped := approvalsByType(records)
	require.Len(t, grouped[ApprovalRegional], 1)
	assert.Equal(t, "r-apac", grouped[ApprovalRegional][0].RegionID)
}

func TestSync_WhollyOwnedGovernanceAlwaysInScope(t *testing.T) {
	env := newTestEnv(t)
	env.seedModel(t, "m-1", "owner@bank.example", registry.Tier2)
	env.seedRegion(t, "r-apac", "apac", registry.RegionDeployment, false, false)
	env.seedRegion(t, "r-sub", "us-sub", registry.RegionGovernance, true, true)
	env.seedRegion(t, "r-gov", "eu-gov", registry.RegionGovernance, true, false)

	req, _, err := env.engine.CreateRequest(CreateRequestInput{
		Type:      TypeFullValidation,
		Models:    []ModelLinkInput{{ModelID: "m-1"}},
		RegionIDs: []string{"r-apac"},
		Requester: "r@x",
	})
	require.NoError(t, err)

	_, _, err = env.resolver.Sync(env.db, req)
	require.NoError(t, err)

	// The wholly owned entity joins the scope despite explicit narrowing;
	// the ordinary governance region does not.
	records, err := env.approvals.ListByRequest(req.ID)
	require.NoError(t, err)
	grouped := approvalsByType(records)
	require.Len(t, grouped[ApprovalRegional], 1)
	assert.Equal(t, "r-sub", grouped[ApprovalRegional][0].RegionID)
}

func TestSync_GlobalVersionScopePullsGovernance(t *testing.T) {
	env := newTestEnv(t)
	env.seedModel(t, "m-1", "owner@bank.example", registry.Tier2)
	env.seedRegion(t, "r-emea", "emea", registry.RegionDeployment, true, false)
	env.seedRegion(t, "r-gov", "eu-gov", registry.RegionGovernance, true, false)
	require.NoError(t, env.registry.UpsertVersion(&registry.ModelVersionRecord{
		ID: "v-1", ModelID: "m-1", Label: "1.0", Status: registry.VersionDraft, GlobalScope: true,
	}))

	req, _, err := env.engine.CreateRequest(CreateRequestInput{
		Type:      TypeFullValidation,
		Models:    []ModelLinkInput{{ModelID: "m-1", VersionID: "v-1"}},
		Requester: "r@x",
	})
	require.NoError(t, err)

	_, _, err = env.resolver.Sync(env.db, req)
	require.NoError(t, err)

	records, err := env.approvals.ListByRequest(req.ID)
	require.NoError(t, err)
	grouped := approvalsByType(records)
	assert.Len(t, grouped[ApprovalRegional], 2)
}

func TestSync_ConditionalRules(t *testing.T) {
	env := newTestEnv(t)
	env.seedModel(t, "m-1", "owner@bank.example", registry.Tier1)
	req := env.createRequest(t, TypeFullValidation, "m-1")

	require.NoError(t, env.approvals.CreateRule(&ConditionalApprovalRuleRecord{
		Name: "tier one sign-off", Enabled: true,
		RiskTiers:     []string{"tier_1"},
		RequiredRoles: []string{"cro_delegate"},
	}))
	require.NoError(t, env.approvals.CreateRule(&ConditionalApprovalRuleRecord{
		Name: "interim only", Enabled: true,
		ValidationTypes: []string{string(TypeInterimValidation)},
		RequiredRoles:   []string{"audit_liaison"},
	}))
	require.NoError(t, env.approvals.CreateRule(&ConditionalApprovalRuleRecord{
		Name: "switched off", Enabled: false,
		RequiredRoles: []string{"compliance_officer"},
	}))

	_, _, err := env.resolver.Sync(env.db, req)
	require.NoError(t, err)

	records, err := env.approvals.ListByRequest(req.ID)
	require.NoError(t, err)
	grouped := approvalsByType(records)
	require.Len(t, grouped[ApprovalConditional], 1)
	assert.Equal(t, "cro_delegate", grouped[ApprovalConditional][0].Role)
}

func TestSync_ScopeChangeVoidsStaleApprovals(t *testing.T) {
	env := newTestEnv(t)
	env.seedModel(t, "m-1", "owner@bank.example", registry.Tier2)
	env.seedRegion(t, "r-emea", "emea", registry.RegionDeployment, true, false)
	req := env.createRequest(t, TypeFullValidation, "m-1")

	added, _, err := env.resolver.Sync(env.db, req)
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	// Policy change: the region no longer needs its own approval.
	env.seedRegion(t, "r-emea", "emea", registry.RegionDeployment, false, false)

	added, voided, err := env.resolver.Sync(env.db, req)
	require.NoError(t, err)
	assert.Zero(t, added)
	assert.Equal(t, 1, voided)

	records, err := env.approvals.ListByRequest(req.ID)
	require.NoError(t, err)
	grouped := approvalsByType(records)
	assert.Equal(t, ApprovalVoided, grouped[ApprovalRegional][0].Status)
	assert.Equal(t, ApprovalPending, grouped[ApprovalGlobal][0].Status)
}

func TestSync_ManualApprovalsUntouched(t *testing.T) {
	env := newTestEnv(t)
	env.seedModel(t, "m-1", "owner@bank.example", registry.Tier2)
	req := env.createRequest(t, TypeFullValidation, "m-1")

	admin := authz.Identity{User: "admin@bank.example", Roles: []authz.Role{authz.RoleAdmin}}
	manual, err := env.engine.AddManualApproval(req.ID, admin, ManualApprovalInput{
		Type: ApprovalManualUser, User: "cfo@bank.example",
	})
	require.NoError(t, err)

	_, voided, err := env.resolver.Sync(env.db, req)
	require.NoError(t, err)
	assert.Zero(t, voided)

	refreshed, err := env.approvals.Get(manual.ID)
	require.NoError(t, err)
	assert.Equal(t, ApprovalPending, refreshed.Status)
}
