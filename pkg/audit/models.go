// Package audit provides the append-only audit trail for the validation
// workflow. Every mutating operation in the core emits one structured
// event (entity, action, actor, before/after); rows are never updated or
// deleted by this layer.
package audit

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// JSONStringSlice is a custom GORM type for []string stored as JSON.
type JSONStringSlice []string

// Scan implements the sql.Scanner interface for JSONStringSlice.
func (s *JSONStringSlice) Scan(value any) error {
	if value == nil {
		*s = nil
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case string:
		bytes = []byte(v)
	case []byte:
		bytes = v
	default:
		return fmt.Errorf("unsupported type for JSONStringSlice: %T", value)
	}
	return json.Unmarshal(bytes, s)
}

// Value implements the driver.Valuer interface for JSONStringSlice.
func (s JSONStringSlice) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// JSONAny is a custom GORM type for map[string]any stored as JSON.
type JSONAny map[string]any

// Scan implements the sql.Scanner interface for JSONAny.
func (m *JSONAny) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case string:
		bytes = []byte(v)
	case []byte:
		bytes = v
	default:
		return fmt.Errorf("unsupported type for JSONAny: %T", value)
	}
	return json.Unmarshal(bytes, m)
}

// Value implements the driver.Valuer interface for JSONAny.
func (m JSONAny) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// EventRecord is an immutable audit log entry.
type EventRecord struct {
	ID         string    `gorm:"primaryKey;column:id;type:varchar(36)"`
	EntityType string    `gorm:"column:entity_type;index:idx_audit_entity,priority:1;not null"`
	EntityID   string    `gorm:"column:entity_id;index:idx_audit_entity,priority:2;not null"`
	Action     string    `gorm:"column:action;index:idx_audit_action_time,priority:1;not null"`
	Actor      string    `gorm:"column:actor;index:idx_audit_actor_time,priority:1;not null"`
	Outcome    string    `gorm:"column:outcome;not null"` // success, failure, denied
	Reason     string    `gorm:"column:reason"`
	Before     JSONAny   `gorm:"column:before_value;type:text"`
	After      JSONAny   `gorm:"column:after_value;type:text"`
	RequestID  string    `gorm:"column:request_id;index"`
	StatusCode int       `gorm:"column:status_code"`
	CreatedAt  time.Time `gorm:"column:created_at;index:idx_audit_entity,priority:3;index:idx_audit_action_time,priority:2;index:idx_audit_actor_time,priority:2;autoCreateTime"`
}

// TableName returns the GORM table name.
func (EventRecord) TableName() string { return "audit_events" }
