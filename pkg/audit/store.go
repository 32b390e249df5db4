package audit

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Store provides append-only operations for audit event records.
type Store struct {
	db *gorm.DB
}

// NewStore creates a new audit Store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates or updates the audit table.
func (s *Store) AutoMigrate() error {
	if err := s.db.AutoMigrate(&EventRecord{}); err != nil {
		return fmt.Errorf("auto-migrate audit_events: %w", err)
	}
	return nil
}

// Append creates a new immutable audit event record.
func (s *Store) Append(event *EventRecord) error {
	return s.AppendIn(s.db, event)
}

// AppendIn creates an audit event inside the caller's transaction so the
// event commits (or rolls back) atomically with the mutation it records.
func (s *Store) AppendIn(tx *gorm.DB, event *EventRecord) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Outcome == "" {
		event.Outcome = "success"
	}
	if err := tx.Create(event).Error; err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

// GetByID retrieves a single audit event. Returns nil, nil when absent.
func (s *Store) GetByID(id string) (*EventRecord, error) {
	var record EventRecord
	err := s.db.Where("id = ?", id).First(&record).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get audit event: %w", err)
	}
	return &record, nil
}

// ListByEntity returns paginated audit events for a specific entity,
// ordered by created_at DESC (newest first).
// pageToken is an RFC3339Nano timestamp; events older than it are returned.
func (s *Store) ListByEntity(entityType, entityID string, pageSize int, pageToken string) ([]EventRecord, string, int, error) {
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	var totalSize int64
	if err := s.db.Model(&EventRecord{}).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Count(&totalSize).Error; err != nil {
		return nil, "", 0, fmt.Errorf("count audit events: %w", err)
	}

	query := s.db.Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("created_at DESC").Limit(pageSize + 1)
	if pageToken != "" {
		t, err := time.Parse(time.RFC3339Nano, pageToken)
		if err != nil {
			return nil, "", 0, fmt.Errorf("invalid page token: %w", err)
		}
		query = query.Where("created_at < ?", t)
	}

	var records []EventRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, "", 0, fmt.Errorf("list audit events by entity: %w", err)
	}

	var nextToken string
	if len(records) > pageSize {
		nextToken = records[pageSize-1].CreatedAt.Format(time.RFC3339Nano)
		records = records[:pageSize]
	}

	return records, nextToken, int(totalSize), nil
}

// ListAll returns paginated audit events across all entities, ordered by
// created_at DESC. Optionally filters by action and/or actor.
func (s *Store) ListAll(pageSize int, pageToken, filterAction, filterActor string) ([]EventRecord, string, int, error) {
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	baseQuery := s.db.Model(&EventRecord{})
	if filterAction != "" {
		baseQuery = baseQuery.Where("action = ?", filterAction)
	}
	if filterActor != "" {
		baseQuery = baseQuery.Where("actor = ?", filterActor)
	}

	var totalSize int64
	if err := baseQuery.Count(&totalSize).Error; err != nil {
		return nil, "", 0, fmt.Errorf("count audit events: %w", err)
	}

	query := s.db.Order("created_at DESC").Limit(pageSize + 1)
	if filterAction != "" {
		query = query.Where("action = ?", filterAction)
	}
	if filterActor != "" {
		query = query.Where("actor = ?", filterActor)
	}
	if pageToken != "" {
		t, err := time.Parse(time.RFC3339Nano, pageToken)
		if err != nil {
			return nil, "", 0, fmt.Errorf("invalid page token: %w", err)
		}
		query = query.Where("created_at < ?", t)
	}

	var records []EventRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, "", 0, fmt.Errorf("list all audit events: %w", err)
	}

	var nextToken string
	if len(records) > pageSize {
		nextToken = records[pageSize-1].CreatedAt.Format(time.RFC3339Nano)
		records = records[:pageSize]
	}

	return records, nextToken, int(totalSize), nil
}
