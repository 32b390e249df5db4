package registry

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	store := NewStore(db)
	require.NoError(t, store.AutoMigrate())
	return store
}

func TestMostConservative(t *testing.T) {
	tests := []struct {
		name  string
		tiers []RiskTier
		want  RiskTier
	}{
		{"single tier", []RiskTier{Tier2}, Tier2},
		{"tier one wins", []RiskTier{Tier3, Tier1, Tier4}, Tier1},
		{"unset ignored", []RiskTier{"", Tier3, ""}, Tier3},
		{"all unset", []RiskTier{"", ""}, ""},
		{"empty input", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MostConservative(tt.tiers...); got != tt.want {
				t.Errorf("MostConservative(%v) = %q, want %q", tt.tiers, got, tt.want)
			}
		})
	}
}

func TestStore_ModelsAndVersions(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.UpsertModel(&ModelRecord{
		ID: "m-1", Name: "credit-scoring", OwnerPrincipal: "owner@bank.example", RiskTier: Tier1,
	}))
	require.NoError(t, store.UpsertVersion(&ModelVersionRecord{
		ID: "v-1", ModelID: "m-1", Label: "2.0", Status: VersionDraft,
	}))

	model, err := store.GetModel("m-1")
	require.NoError(t, err)
	require.NotNil(t, model)
	assert.Equal(t, Tier1, model.RiskTier)

	missing, err := store.GetModel("m-404")
	require.NoError(t, err)
	assert.Nil(t, missing)

	version, err := store.GetVersion("v-1")
	require.NoError(t, err)
	require.NotNil(t, version)
	assert.Equal(t, VersionDraft, version.Status)

	batch, err := store.GetModels([]string{"m-1", "m-404"})
	require.NoError(t, err)
	assert.Len(t, batch, 1)
}

func TestStore_RegionScoping(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.UpsertRegion(&RegionRecord{
		ID: "r-emea", Code: "emea", Name: "EMEA", Kind: RegionDeployment, RequiresRegionalApproval: true,
	}))
	require.NoError(t, store.UpsertRegion(&RegionRecord{
		ID: "r-apac", Code: "apac", Name: "APAC", Kind: RegionDeployment,
	}))
	require.NoError(t, store.UpsertRegion(&RegionRecord{
		ID: "r-gov", Code: "gov-sub", Name: "Wholly Owned Subsidiary", Kind: RegionGovernance, WhollyOwned: true,
	}))
	require.NoError(t, store.UpsertVersion(&ModelVersionRecord{ID: "v-1", ModelID: "m-1", Label: "1.0"}))
	require.NoError(t, store.LinkVersionRegion("v-1", "r-emea"))

	scoped, err := store.RegionsForVersion("v-1")
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, "emea", scoped[0].Code)

	deployment, err := store.ListRegions(RegionDeployment)
	require.NoError(t, err)
	assert.Len(t, deployment, 2)

	all, err := store.ListRegions("")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestStore_AssessmentCurrent(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()

	// No assessment row: incomplete.
	current, err := store.AssessmentCurrent("m-1", now, 12)
	require.NoError(t, err)
	assert.False(t, current)

	// Incomplete assessment.
	require.NoError(t, store.UpsertAssessment(&RiskAssessmentRecord{
		ID: "ra-1", ModelID: "m-1", Complete: false, AssessedAt: now,
	}))
	current, err = store.AssessmentCurrent("m-1", now, 12)
	require.NoError(t, err)
	assert.False(t, current)

	// Complete and fresh.
	stale := now.Add(24 * time.Hour)
	require.NoError(t, store.UpsertAssessment(&RiskAssessmentRecord{
		ID: "ra-1", ModelID: "m-1", Complete: true, AssessedAt: now, StaleAfter: &stale,
	}))
	current, err = store.AssessmentCurrent("m-1", now, 12)
	require.NoError(t, err)
	assert.True(t, current)

	// Past its stale boundary.
	current, err = store.AssessmentCurrent("m-1", now.Add(48*time.Hour), 12)
	require.NoError(t, err)
	assert.False(t, current)

	// No explicit expiry: the age bound governs.
	require.NoError(t, store.UpsertAssessment(&RiskAssessmentRecord{
		ID: "ra-1", ModelID: "m-1", Complete: true, AssessedAt: now,
	}))
	current, err = store.AssessmentCurrent("m-1", now.AddDate(0, 11, 0), 12)
	require.NoError(t, err)
	assert.True(t, current)

	current, err = store.AssessmentCurrent("m-1", now.AddDate(0, 13, 0), 12)
	require.NoError(t, err)
	assert.False(t, current)

	// maxAgeMonths <= 0 disables the age bound.
	current, err = store.AssessmentCurrent("m-1", now.AddDate(0, 13, 0), 0)
	require.NoError(t, err)
	assert.True(t, current)
}

func TestStore_SyncVersionStatus(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.UpsertVersion(&ModelVersionRecord{
		ID: "v-1", ModelID: "m-1", Label: "1.0", Status: VersionUnderValidation,
	}))

	err := store.db.Transaction(func(tx *gorm.DB) error {
		return store.SyncVersionStatus(tx, "v-1", VersionUnderValidation, VersionActive)
	})
	require.NoError(t, err)

	version, err := store.GetVersion("v-1")
	require.NoError(t, err)
	assert.Equal(t, VersionActive, version.Status)

	// Status guard: no-op when the from status does not match.
	err = store.db.Transaction(func(tx *gorm.DB) error {
		return store.SyncVersionStatus(tx, "v-1", VersionDraft, VersionRetired)
	})
	require.NoError(t, err)
	version, err = store.GetVersion("v-1")
	require.NoError(t, err)
	assert.Equal(t, VersionActive, version.Status)
}
