package validation

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// ApprovalStore persists approval records and conditional approval rules.
type ApprovalStore struct {
	db *gorm.DB
}

// NewApprovalStore creates an approval store backed by the given database.
func NewApprovalStore(db *gorm.DB) *ApprovalStore {
	return &ApprovalStore{db: db}
}

// Get returns an approval by ID, or nil if not found.
func (s *ApprovalStore) Get(id string) (*ApprovalRecord, error) {
	var rec ApprovalRecord
	if err := s.db.Where("id = ?", id).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get approval: %w", err)
	}
	return &rec, nil
}

// ListByRequest returns all approvals of a request, voided ones included,
// oldest first.
func (s *ApprovalStore) ListByRequest(requestID string) ([]ApprovalRecord, error) {
	return approvalsByRequest(s.db, requestID)
}

func approvalsByRequest(tx *gorm.DB, requestID string) ([]ApprovalRecord, error) {
	var records []ApprovalRecord
	if err := tx.Where("request_id = ?", requestID).Order("created_at ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list approvals: %w", err)
	}
	return records, nil
}

func getApprovalForUpdate(tx *gorm.DB, id string) (*ApprovalRecord, error) {
	var rec ApprovalRecord
	result := tx.Raw(`
		SELECT * FROM validation_approvals
		WHERE id = ?
		FOR UPDATE
	`, id).Scan(&rec)
	if result.Error != nil || rec.ID == "" {
		// Fall back to a plain read if FOR UPDATE is not supported.
		if err := tx.Where("id = ?", id).First(&rec).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil
			}
			return nil, fmt.Errorf("lock approval: %w", err)
		}
	}
	return &rec, nil
}

func createApproval(tx *gorm.DB, rec *ApprovalRecord) error {
	if rec.ID == "" {
		rec.ID = newID()
	}
	if rec.Status == "" {
		rec.Status = ApprovalPending
	}
	if err := tx.Create(rec).Error; err != nil {
		return fmt.Errorf("create approval: %w", err)
	}
	return nil
}

// voidApproval marks one approval voided with a reason. Voided approvals
// stay in place as history.
func voidApproval(tx *gorm.DB, id, reason string) error {
	result := tx.Model(&ApprovalRecord{}).
		Where("id = ? AND status <> ?", id, ApprovalVoided).
		Updates(map[string]any{"status": ApprovalVoided, "void_reason": reason})
	if result.Error != nil {
		return fmt.Errorf("void approval: %w", result.Error)
	}
	return nil
}

// voidPendingApprovals voids every unresolved approval on a request, e.g.
// on cancellation or a forced plan reset.
func voidPendingApprovals(tx *gorm.DB, requestID, reason string) error {
	result := tx.Model(&ApprovalRecord{}).
		Where("request_id = ? AND status IN ?", requestID, []ApprovalStatus{ApprovalPending, ApprovalSentBack}).
		Updates(map[string]any{"status": ApprovalVoided, "void_reason": reason})
	if result.Error != nil {
		return fmt.Errorf("void pending approvals: %w", result.Error)
	}
	return nil
}

// allRequiredApproved reports whether every non-voided approval on the
// request is approved, and when so, the latest decision time. Requests
// with no active approvals report false: at least one approval gate must
// exist before a request can complete.
func allRequiredApproved(tx *gorm.DB, requestID string) (bool, *time.Time, error) {
	records, err := approvalsByRequest(tx, requestID)
	if err != nil {
		return false, nil, err
	}

	var latest *time.Time
	active := 0
	for i := range records {
		rec := &records[i]
		if !rec.Status.Active() && rec.Status != ApprovalApproved {
			continue
		}
		active++
		if rec.Status != ApprovalApproved {
			return false, nil, nil
		}
		if rec.DecidedAt != nil && (latest == nil || rec.DecidedAt.After(*latest)) {
			latest = rec.DecidedAt
		}
	}
	if active == 0 {
		return false, nil, nil
	}
	return true, latest, nil
}

// CreateRule stores a conditional approval rule.
func (s *ApprovalStore) CreateRule(rule *ConditionalApprovalRuleRecord) error {
	if rule.ID == "" {
		rule.ID = newID()
	}
	if len(rule.RequiredRoles) == 0 {
		return newValidationError("RULE_NO_ROLES", "conditional approval rule must require at least one role")
	}
	if err := s.db.Create(rule).Error; err != nil {
		return fmt.Errorf("create conditional approval rule: %w", err)
	}
	return nil
}

// UpdateRule replaces a rule's fields.
func (s *ApprovalStore) UpdateRule(rule *ConditionalApprovalRuleRecord) error {
	if len(rule.RequiredRoles) == 0 {
		return newValidationError("RULE_NO_ROLES", "conditional approval rule must require at least one role")
	}
	result := s.db.Model(&ConditionalApprovalRuleRecord{}).Where("id = ?", rule.ID).
		Updates(map[string]any{
			"name":               rule.Name,
			"enabled":            rule.Enabled,
			"validation_types":   rule.ValidationTypes,
			"risk_tiers":         rule.RiskTiers,
			"governance_regions": rule.GovernanceRegions,
			"deployment_regions": rule.DeploymentRegions,
			"required_roles":     rule.RequiredRoles,
		})
	if result.Error != nil {
		return fmt.Errorf("update conditional approval rule: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return &NotFoundError{Entity: "conditional approval rule", ID: rule.ID}
	}
	return nil
}

// GetRule returns a rule by ID, or nil if not found.
func (s *ApprovalStore) GetRule(id string) (*ConditionalApprovalRuleRecord, error) {
	var rule ConditionalApprovalRuleRecord
	if err := s.db.Where("id = ?", id).First(&rule).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get conditional approval rule: %w", err)
	}
	return &rule, nil
}

// ListRules returns all conditional approval rules.
func (s *ApprovalStore) ListRules() ([]ConditionalApprovalRuleRecord, error) {
	var rules []ConditionalApprovalRuleRecord
	if err := s.db.Order("created_at ASC").Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("list conditional approval rules: %w", err)
	}
	return rules, nil
}

func enabledRules(tx *gorm.DB) ([]ConditionalApprovalRuleRecord, error) {
	var rules []ConditionalApprovalRuleRecord
	if err := tx.Where("enabled = ?", true).Order("created_at ASC").Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("list enabled conditional approval rules: %w", err)
	}
	return rules, nil
}

// DeleteRule removes a rule. Approvals already materialized from it stay.
func (s *ApprovalStore) DeleteRule(id string) error {
	result := s.db.Where("id = ?", id).Delete(&ConditionalApprovalRuleRecord{})
	if result.Error != nil {
		return fmt.Errorf("delete conditional approval rule: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return &NotFoundError{Entity: "conditional approval rule", ID: id}
	}
	return nil
}
