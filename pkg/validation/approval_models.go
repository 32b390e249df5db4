package validation

import (
	"time"

	"github.com/modelrisk/validation-workflow/pkg/audit"
)

// ApprovalRecord is a single approval requirement on a request. Voided
// records are terminal markers with a reason; they are never deleted, so
// the approval history of a request stays intact.
type ApprovalRecord struct {
	ID           string         `gorm:"primaryKey;column:id;type:varchar(36)"`
	RequestID    string         `gorm:"column:request_id;index:idx_approval_request;not null"`
	Type         ApprovalType   `gorm:"column:approval_type;not null"`
	Status       ApprovalStatus `gorm:"column:status;index:idx_approval_status;default:pending;not null"`
	RegionID     string         `gorm:"column:region_id"`
	Role         string         `gorm:"column:role"`
	User         string         `gorm:"column:user_principal"`
	DecidedBy    string         `gorm:"column:decided_by"`
	DecidedAt    *time.Time     `gorm:"column:decided_at"`
	Comment      string         `gorm:"column:comment;type:text"`
	EvidenceNote string         `gorm:"column:evidence_note;type:text"`
	VoidReason   string         `gorm:"column:void_reason"`
	CreatedAt    time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName returns the GORM table name.
func (ApprovalRecord) TableName() string { return "validation_approvals" }

// key identifies the requirement an approval satisfies. Exactly one active
// (non-voided) approval exists per (request, key).
func (a *ApprovalRecord) key() approvalKey {
	return approvalKey{Type: a.Type, RegionID: a.RegionID, Role: a.Role}
}

// approvalKey is the identity of an automatically resolved requirement.
type approvalKey struct {
	Type     ApprovalType
	RegionID string
	Role     string
}

// ConditionalApprovalRuleRecord maps a filter predicate onto a set of
// required approver roles. Empty filter slices act as wildcards; a rule
// applies when every populated filter matches at least one linked model.
type ConditionalApprovalRuleRecord struct {
	ID                string                `gorm:"primaryKey;column:id;type:varchar(36)" json:"id"`
	Name              string                `gorm:"column:name;not null" json:"name"`
	Enabled           bool                  `gorm:"column:enabled;default:true;not null" json:"enabled"`
	ValidationTypes   audit.JSONStringSlice `gorm:"column:validation_types;type:text" json:"validationTypes,omitempty"`
	RiskTiers         audit.JSONStringSlice `gorm:"column:risk_tiers;type:text" json:"riskTiers,omitempty"`
	GovernanceRegions audit.JSONStringSlice `gorm:"column:governance_regions;type:text" json:"governanceRegions,omitempty"`
	DeploymentRegions audit.JSONStringSlice `gorm:"column:deployment_regions;type:text" json:"deploymentRegions,omitempty"`
	RequiredRoles     audit.JSONStringSlice `gorm:"column:required_roles;type:text;not null" json:"requiredRoles"`
	CreatedAt         time.Time             `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt         time.Time             `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

// TableName returns the GORM table name.
func (ConditionalApprovalRuleRecord) TableName() string { return "conditional_approval_rules" }
