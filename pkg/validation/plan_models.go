package validation

import "time"

// PlanRecord is the validation plan attached to a request. A plan pins the
// configuration it was generated from once locked; unlocked plans follow
// the active configuration.
type PlanRecord struct {
	ID                string     `gorm:"primaryKey;column:id;type:varchar(36)"`
	RequestID         string     `gorm:"column:request_id;uniqueIndex:idx_plan_request;not null"`
	ConfigID          string     `gorm:"column:config_id;not null"`
	LockedAt          *time.Time `gorm:"column:locked_at"`
	MaterialDeviation bool       `gorm:"column:material_deviation;default:false;not null"`
	OverallRationale  string     `gorm:"column:overall_rationale;type:text"`
	CreatedAt         time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName returns the GORM table name.
func (PlanRecord) TableName() string { return "validation_plans" }

// Locked reports whether the plan is pinned to its configuration.
func (p *PlanRecord) Locked() bool { return p.LockedAt != nil }

// PlanComponentRecord is one component row of a plan: the expectation the
// configuration sets for it and the treatment the validator chose.
type PlanComponentRecord struct {
	ID          string      `gorm:"primaryKey;column:id;type:varchar(36)"`
	PlanID      string      `gorm:"column:plan_id;index:idx_component_plan;uniqueIndex:idx_plan_component,priority:1;not null"`
	Component   string      `gorm:"column:component;uniqueIndex:idx_plan_component,priority:2;not null"`
	Expectation Expectation `gorm:"column:expectation;not null"`
	Treatment   Treatment   `gorm:"column:treatment;not null"`
	Rationale   string      `gorm:"column:rationale;type:text"`
	CreatedAt   time.Time   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time   `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName returns the GORM table name.
func (PlanComponentRecord) TableName() string { return "validation_plan_components" }

// Deviation reports whether the component's treatment deviates from its
// configured expectation.
func (c *PlanComponentRecord) Deviation() bool {
	return IsDeviation(c.Expectation, c.Treatment)
}

// ConfigurationRecord is a published, immutable version of the plan
// configuration. Publishing a new version never mutates prior ones.
type ConfigurationRecord struct {
	ID          string    `gorm:"primaryKey;column:id;type:varchar(36)" json:"id"`
	Version     int       `gorm:"column:version;uniqueIndex:idx_config_version;not null" json:"version"`
	Description string    `gorm:"column:description;type:text" json:"description,omitempty"`
	PublishedBy string    `gorm:"column:published_by" json:"publishedBy,omitempty"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

// TableName returns the GORM table name.
func (ConfigurationRecord) TableName() string { return "plan_configurations" }

// ConfigItemRecord is one (component, risk tier) expectation cell of a
// configuration version.
type ConfigItemRecord struct {
	ID          string      `gorm:"primaryKey;column:id;type:varchar(36)" json:"id"`
	ConfigID    string      `gorm:"column:config_id;uniqueIndex:idx_config_item,priority:1;not null" json:"configId"`
	Component   string      `gorm:"column:component;uniqueIndex:idx_config_item,priority:2;not null" json:"component"`
	RiskTier    string      `gorm:"column:risk_tier;uniqueIndex:idx_config_item,priority:3;not null" json:"riskTier"`
	Expectation Expectation `gorm:"column:expectation;not null" json:"expectation"`
}

// TableName returns the GORM table name.
func (ConfigItemRecord) TableName() string { return "plan_config_items" }

// ActiveConfigPointer is a single-row table holding the currently active
// configuration. Activation swaps the pointer atomically.
type ActiveConfigPointer struct {
	ID        int       `gorm:"primaryKey;column:id"`
	ConfigID  string    `gorm:"column:config_id;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName returns the GORM table name.
func (ActiveConfigPointer) TableName() string { return "plan_active_config" }
