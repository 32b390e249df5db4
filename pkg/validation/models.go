package validation

import (
	"time"

	"github.com/modelrisk/validation-workflow/pkg/audit"
	"github.com/modelrisk/validation-workflow/pkg/registry"
)

// ValidationRequestRecord is the workflow-owned request row. It is created
// at intake and mutated only through guarded transitions.
type ValidationRequestRecord struct {
	ID                 string                `gorm:"primaryKey;column:id;type:varchar(36)"`
	Status             Status                `gorm:"column:status;index:idx_request_status;default:intake;not null"`
	Type               ValidationType        `gorm:"column:validation_type;not null"`
	Priority           Priority              `gorm:"column:priority;default:medium;not null"`
	TargetDate         *time.Time            `gorm:"column:target_date"`
	SubmissionDate     *time.Time            `gorm:"column:submission_date"`
	SubmissionReceived bool                  `gorm:"column:submission_received;default:false;not null"`
	ValidatedRiskTier  registry.RiskTier     `gorm:"column:validated_risk_tier"`
	ScopeSummary       string                `gorm:"column:scope_summary;type:text"`
	OutcomeRating      string                `gorm:"column:outcome_rating"`
	RecommendationIDs  audit.JSONStringSlice `gorm:"column:recommendation_ids;type:text"`
	LimitationIDs      audit.JSONStringSlice `gorm:"column:limitation_ids;type:text"`
	MonitoringPlanRef  string                `gorm:"column:monitoring_plan_ref"`
	CompletedAt        *time.Time            `gorm:"column:completed_at"`
	Requester          string                `gorm:"column:requester;not null"`
	CreatedAt          time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName returns the GORM table name.
func (ValidationRequestRecord) TableName() string { return "validation_requests" }

// RequestModelLink ties a request to a model and optionally a specific
// version, with an optional prior-request reference.
type RequestModelLink struct {
	ID             string `gorm:"primaryKey;column:id;type:varchar(36)"`
	RequestID      string `gorm:"column:request_id;index:idx_link_request;uniqueIndex:idx_link_req_model,priority:1;not null"`
	ModelID        string `gorm:"column:model_id;index:idx_link_model;uniqueIndex:idx_link_req_model,priority:2;not null"`
	VersionID      string `gorm:"column:version_id"`
	PriorRequestID string `gorm:"column:prior_request_id"`
}

// TableName returns the GORM table name.
func (RequestModelLink) TableName() string { return "request_model_links" }

// RequestRegionScope is an explicit region-scope override on a request.
type RequestRegionScope struct {
	RequestID string `gorm:"primaryKey;column:request_id;type:varchar(36)"`
	RegionID  string `gorm:"primaryKey;column:region_id;type:varchar(36)"`
}

// TableName returns the GORM table name.
func (RequestRegionScope) TableName() string { return "request_region_scopes" }

// AssignmentRecord assigns a user to a request in a given role.
type AssignmentRecord struct {
	ID              string         `gorm:"primaryKey;column:id;type:varchar(36)"`
	RequestID       string         `gorm:"column:request_id;index:idx_assignment_request;not null"`
	User            string         `gorm:"column:user_principal;not null"`
	Role            AssignmentRole `gorm:"column:role;not null"`
	ReviewerSignoff bool           `gorm:"column:reviewer_signoff;default:false;not null"`
	CreatedAt       time.Time      `gorm:"column:created_at;autoCreateTime"`
}

// TableName returns the GORM table name.
func (AssignmentRecord) TableName() string { return "validation_assignments" }

// StatusHistoryRecord is the append-only transition log: one row per
// transition, never updated. The snapshot columns hold the typed outcome
// snapshot captured on send-back, used for material-change comparison when
// a revision is resubmitted.
type StatusHistoryRecord struct {
	ID                    string                `gorm:"primaryKey;column:id;type:varchar(36)"`
	RequestID             string                `gorm:"column:request_id;index:idx_history_request,priority:1;not null"`
	OldStatus             Status                `gorm:"column:old_status"`
	NewStatus             Status                `gorm:"column:new_status;not null"`
	Actor                 string                `gorm:"column:actor;not null"`
	Reason                string                `gorm:"column:reason"`
	SnapRating            string                `gorm:"column:snap_rating"`
	SnapRecommendationIDs audit.JSONStringSlice `gorm:"column:snap_recommendation_ids;type:text"`
	SnapLimitationIDs     audit.JSONStringSlice `gorm:"column:snap_limitation_ids;type:text"`
	SnapContextTag        string                `gorm:"column:snap_context_tag"`
	CreatedAt             time.Time             `gorm:"column:created_at;index:idx_history_request,priority:2;autoCreateTime"`
}

// TableName returns the GORM table name.
func (StatusHistoryRecord) TableName() string { return "validation_status_history" }

// OutcomeSnapshot is the typed value object captured alongside a send-back
// history row.
type OutcomeSnapshot struct {
	Rating            string   `json:"rating"`
	RecommendationIDs []string `json:"recommendationIds"`
	LimitationIDs     []string `json:"limitationIds"`
	ContextTag        string   `json:"contextTag,omitempty"`
}

// Equal reports whether two snapshots describe the same outcome. ID slices
// compare as sets would in practice: same length, same order, which holds
// because both sides are recorded from the same sorted source.
func (s OutcomeSnapshot) Equal(other OutcomeSnapshot) bool {
	if s.Rating != other.Rating {
		return false
	}
	if len(s.RecommendationIDs) != len(other.RecommendationIDs) {
		return false
	}
	for i := range s.RecommendationIDs {
		if s.RecommendationIDs[i] != other.RecommendationIDs[i] {
			return false
		}
	}
	if len(s.LimitationIDs) != len(other.LimitationIDs) {
		return false
	}
	for i := range s.LimitationIDs {
		if s.LimitationIDs[i] != other.LimitationIDs[i] {
			return false
		}
	}
	return true
}

// snapshotOf captures the request's current outcome.
func snapshotOf(req *ValidationRequestRecord) OutcomeSnapshot {
	return OutcomeSnapshot{
		Rating:            req.OutcomeRating,
		RecommendationIDs: []string(req.RecommendationIDs),
		LimitationIDs:     []string(req.LimitationIDs),
	}
}

// snapshotFromHistory reconstructs the snapshot stored on a history row.
func snapshotFromHistory(h *StatusHistoryRecord) OutcomeSnapshot {
	return OutcomeSnapshot{
		Rating:            h.SnapRating,
		RecommendationIDs: []string(h.SnapRecommendationIDs),
		LimitationIDs:     []string(h.SnapLimitationIDs),
		ContextTag:        h.SnapContextTag,
	}
}
