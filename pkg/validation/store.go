package validation

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Store provides persistence for validation requests, their links,
// assignments, and status history.
type Store struct {
	db *gorm.DB
}

// NewStore creates a validation store backed by the given database.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates or updates all workflow tables.
func (s *Store) AutoMigrate() error {
	if err := s.db.AutoMigrate(
		&ValidationRequestRecord{},
		&RequestModelLink{},
		&RequestRegionScope{},
		&AssignmentRecord{},
		&StatusHistoryRecord{},
		&ApprovalRecord{},
		&ConditionalApprovalRuleRecord{},
		&PlanRecord{},
		&PlanComponentRecord{},
		&ConfigurationRecord{},
		&ConfigItemRecord{},
		&ActiveConfigPointer{},
	); err != nil {
		return fmt.Errorf("migrate validation schema: %w", err)
	}
	return nil
}

// DB exposes the underlying handle for transactional composition.
func (s *Store) DB() *gorm.DB { return s.db }

// GetRequest returns a request by ID, or nil if not found.
func (s *Store) GetRequest(id string) (*ValidationRequestRecord, error) {
	return getRequest(s.db, id)
}

func getRequest(tx *gorm.DB, id string) (*ValidationRequestRecord, error) {
	var req ValidationRequestRecord
	if err := tx.Where("id = ?", id).First(&req).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get validation request: %w", err)
	}
	return &req, nil
}

// getRequestForUpdate loads a request under a row lock so that concurrent
// transitions on the same request serialize. Uses FOR UPDATE where supported
// (PostgreSQL); falls back to a plain read elsewhere.
func getRequestForUpdate(tx *gorm.DB, id string) (*ValidationRequestRecord, error) {
	var req ValidationRequestRecord
	result := tx.Raw(`
		SELECT * FROM validation_requests
		WHERE id = ?
		FOR UPDATE
	`, id).Scan(&req)
	if result.Error != nil || req.ID == "" {
		// Fall back to a plain read if FOR UPDATE is not supported.
		if err := tx.Where("id = ?", id).First(&req).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil
			}
			return nil, fmt.Errorf("lock validation request: %w", err)
		}
	}
	return &req, nil
}

// ListRequestsParams filters and paginates request listings.
type ListRequestsParams struct {
	Status    Status
	Type      ValidationType
	Priority  Priority
	ModelID   string
	Assignee  string
	PageSize  int
	PageToken string
}

const defaultPageSize = 20

// ListRequests returns a page of requests ordered by creation time. The
// returned token is empty when no further pages exist.
func (s *Store) ListRequests(params ListRequestsParams) ([]ValidationRequestRecord, string, error) {
	pageSize := params.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	query := s.db.Model(&ValidationRequestRecord{})
	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	}
	if params.Type != "" {
		query = query.Where("validation_type = ?", params.Type)
	}
	if params.Priority != "" {
		query = query.Where("priority = ?", params.Priority)
	}
	if params.ModelID != "" {
		query = query.Where("id IN (?)",
			s.db.Model(&RequestModelLink{}).Select("request_id").Where("model_id = ?", params.ModelID))
	}
	if params.Assignee != "" {
		query = query.Where("id IN (?)",
			s.db.Model(&AssignmentRecord{}).Select("request_id").Where("user_principal = ?", params.Assignee))
	}
	if params.PageToken != "" {
		ts, err := time.Parse(time.RFC3339Nano, params.PageToken)
		if err != nil {
			return nil, "", fmt.Errorf("invalid page token: %w", err)
		}
		query = query.Where("created_at > ?", ts)
	}

	var records []ValidationRequestRecord
	if err := query.Order("created_at ASC").Limit(pageSize + 1).Find(&records).Error; err != nil {
		return nil, "", fmt.Errorf("list validation requests: %w", err)
	}

	nextToken := ""
	if len(records) > pageSize {
		records = records[:pageSize]
		nextToken = records[len(records)-1].CreatedAt.Format(time.RFC3339Nano)
	}
	return records, nextToken, nil
}

// ModelLinks returns the model links of a request.
func (s *Store) ModelLinks(requestID string) ([]RequestModelLink, error) {
	return modelLinks(s.db, requestID)
}

func modelLinks(tx *gorm.DB, requestID string) ([]RequestModelLink, error) {
	var links []RequestModelLink
	if err := tx.Where("request_id = ?", requestID).Find(&links).Error; err != nil {
		return nil, fmt.Errorf("list request model links: %w", err)
	}
	return links, nil
}

// RegionScopes returns the explicit region scope rows of a request.
func (s *Store) RegionScopes(requestID string) ([]RequestRegionScope, error) {
	return regionScopes(s.db, requestID)
}

func regionScopes(tx *gorm.DB, requestID string) ([]RequestRegionScope, error) {
	var scopes []RequestRegionScope
	if err := tx.Where("request_id = ?", requestID).Find(&scopes).Error; err != nil {
		return nil, fmt.Errorf("list request region scopes: %w", err)
	}
	return scopes, nil
}

// Assignments returns the validator assignments of a request.
func (s *Store) Assignments(requestID string) ([]AssignmentRecord, error) {
	var assignments []AssignmentRecord
	if err := s.db.Where("request_id = ?", requestID).Order("created_at ASC").Find(&assignments).Error; err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return assignments, nil
}

// History returns the status history of a request, oldest first.
func (s *Store) History(requestID string) ([]StatusHistoryRecord, error) {
	var history []StatusHistoryRecord
	if err := s.db.Where("request_id = ?", requestID).Order("created_at ASC").Find(&history).Error; err != nil {
		return nil, fmt.Errorf("list status history: %w", err)
	}
	return history, nil
}

// latestNonHoldStatus returns the status a held request should resume to:
// the most recent status before the hold began.
func latestNonHoldStatus(tx *gorm.DB, requestID string) (Status, error) {
	var h StatusHistoryRecord
	err := tx.Where("request_id = ? AND new_status = ?", requestID, StatusOnHold).
		Order("created_at DESC").First(&h).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("no hold entry in history for request %s", requestID)
		}
		return "", fmt.Errorf("find hold entry: %w", err)
	}
	return h.OldStatus, nil
}

// openRequestsForModel returns non-terminal requests of the given type
// linked to the model.
func openRequestsForModel(tx *gorm.DB, modelID string, vtype ValidationType) ([]ValidationRequestRecord, error) {
	var records []ValidationRequestRecord
	err := tx.Model(&ValidationRequestRecord{}).
		Where("validation_type = ?", vtype).
		Where("status NOT IN ?", []Status{StatusApproved, StatusCancelled}).
		Where("id IN (?)", tx.Session(&gorm.Session{NewDB: true}).
			Model(&RequestModelLink{}).Select("request_id").Where("model_id = ?", modelID)).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list open requests for model: %w", err)
	}
	return records, nil
}

// ApprovedRequestsForModel returns approved requests linked to the model,
// most recently completed first. Scope-only types never count toward a
// model's validation standing and are excluded.
func (s *Store) ApprovedRequestsForModel(modelID string) ([]ValidationRequestRecord, error) {
	var records []ValidationRequestRecord
	err := s.db.Model(&ValidationRequestRecord{}).
		Where("status = ?", StatusApproved).
		Where("validation_type IN ?", []ValidationType{TypeFullValidation, TypeInterimValidation, TypeTargetedValidation}).
		Where("id IN (?)", s.db.Model(&RequestModelLink{}).Select("request_id").Where("model_id = ?", modelID)).
		Order("completed_at DESC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list approved requests for model: %w", err)
	}
	return records, nil
}

// OpenRequestsForModel is the read-path variant of the creation conflict
// check, used by handlers to report conflicts before attempting a create.
func (s *Store) OpenRequestsForModel(modelID string, vtype ValidationType) ([]ValidationRequestRecord, error) {
	return openRequestsForModel(s.db, modelID, vtype)
}

func appendHistory(tx *gorm.DB, h *StatusHistoryRecord) error {
	if h.ID == "" {
		h.ID = newID()
	}
	if err := tx.Create(h).Error; err != nil {
		return fmt.Errorf("append status history: %w", err)
	}
	return nil
}
