// Package registry exposes the model/version registry facts the workflow
// core consumes: canonical risk tiers, usage frequency, deployment and
// governance regions, and the risk-assessment boundary query. The core
// never mutates these records except for the documented version status
// sync on request transitions.
package registry

import "time"

// RiskTier is the canonical model risk classification.
// Tier 1 is the most conservative.
type RiskTier string

const (
	Tier1 RiskTier = "tier_1"
	Tier2 RiskTier = "tier_2"
	Tier3 RiskTier = "tier_3"
	Tier4 RiskTier = "tier_4"
)

// tierRank orders tiers from most to least conservative.
var tierRank = map[RiskTier]int{
	Tier1: 1,
	Tier2: 2,
	Tier3: 3,
	Tier4: 4,
}

// IsValidTier reports whether t is a recognized risk tier.
func IsValidTier(t RiskTier) bool {
	_, ok := tierRank[t]
	return ok
}

// MostConservative returns the most conservative of the given tiers.
// Empty (unset) tiers are ignored; returns "" when none are set.
func MostConservative(tiers ...RiskTier) RiskTier {
	var best RiskTier
	for _, t := range tiers {
		if t == "" {
			continue
		}
		if best == "" || tierRank[t] < tierRank[best] {
			best = t
		}
	}
	return best
}

// VersionStatus is the lifecycle status of a model version.
type VersionStatus string

const (
	VersionDraft           VersionStatus = "draft"
	VersionUnderValidation VersionStatus = "under_validation"
	VersionActive          VersionStatus = "active"
	VersionRetired         VersionStatus = "retired"
)

// RegionKind distinguishes deployment regions from governance regions.
type RegionKind string

const (
	RegionDeployment RegionKind = "deployment"
	RegionGovernance RegionKind = "governance"
)

// ModelRecord is a registered model. RiskTier may be empty when the model
// has not yet been rated.
type ModelRecord struct {
	ID             string    `gorm:"primaryKey;column:id;type:varchar(36)"`
	Name           string    `gorm:"column:name;uniqueIndex;not null"`
	OwnerPrincipal string    `gorm:"column:owner_principal;not null"`
	RiskTier       RiskTier  `gorm:"column:risk_tier"`
	UsageFrequency string    `gorm:"column:usage_frequency"`
	Active         bool      `gorm:"column:active;default:true;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName returns the GORM table name.
func (ModelRecord) TableName() string { return "models" }

// ModelVersionRecord is a version of a registered model. GlobalScope marks
// versions deployed in every region.
type ModelVersionRecord struct {
	ID          string        `gorm:"primaryKey;column:id;type:varchar(36)"`
	ModelID     string        `gorm:"column:model_id;index:idx_version_model;not null"`
	Label       string        `gorm:"column:label;not null"`
	Status      VersionStatus `gorm:"column:status;default:draft;not null"`
	GlobalScope bool          `gorm:"column:global_scope;default:false;not null"`
	CreatedAt   time.Time     `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time     `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName returns the GORM table name.
func (ModelVersionRecord) TableName() string { return "model_versions" }

// RegionRecord describes a deployment or governance region.
type RegionRecord struct {
	ID                       string     `gorm:"primaryKey;column:id;type:varchar(36)"`
	Code                     string     `gorm:"column:code;uniqueIndex;not null"`
	Name                     string     `gorm:"column:name;not null"`
	Kind                     RegionKind `gorm:"column:kind;not null"`
	RequiresRegionalApproval bool       `gorm:"column:requires_regional_approval;default:false;not null"`
	WhollyOwned              bool       `gorm:"column:wholly_owned;default:false;not null"`
	CreatedAt                time.Time  `gorm:"column:created_at;autoCreateTime"`
}

// TableName returns the GORM table name.
func (RegionRecord) TableName() string { return "regions" }

// VersionRegionLink scopes a model version to a region.
type VersionRegionLink struct {
	VersionID string `gorm:"primaryKey;column:version_id;type:varchar(36)"`
	RegionID  string `gorm:"primaryKey;column:region_id;type:varchar(36)"`
}

// TableName returns the GORM table name.
func (VersionRegionLink) TableName() string { return "version_regions" }

// RiskAssessmentRecord backs the boundary query "is the risk assessment
// for model X current and complete". The workflow core only reads it.
type RiskAssessmentRecord struct {
	ID         string     `gorm:"primaryKey;column:id;type:varchar(36)"`
	ModelID    string     `gorm:"column:model_id;uniqueIndex;not null"`
	Complete   bool       `gorm:"column:complete;default:false;not null"`
	AssessedAt time.Time  `gorm:"column:assessed_at"`
	StaleAfter *time.Time `gorm:"column:stale_after"`
	UpdatedAt  time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName returns the GORM table name.
func (RiskAssessmentRecord) TableName() string { return "risk_assessments" }
