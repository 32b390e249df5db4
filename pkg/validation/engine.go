package validation

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/modelrisk/validation-workflow/pkg/audit"
	"github.com/modelrisk/validation-workflow/pkg/registry"
)

// Engine applies guarded lifecycle transitions and the side effects that
// ride along with them. Every mutating operation runs as one transaction:
// a failed guard leaves nothing behind.
type Engine struct {
	db       *gorm.DB
	store    *Store
	registry *registry.Store
	resolver *Resolver
	plans    *PlanEngine
	audit    *audit.Store
	machine  *Machine
	logger   *slog.Logger
	cfg      *Config

	now func() time.Time
}

// NewEngine wires the workflow engine.
func NewEngine(db *gorm.DB, store *Store, reg *registry.Store, resolver *Resolver,
	plans *PlanEngine, auditStore *audit.Store, cfg *Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Engine{
		db:       db,
		store:    store,
		registry: reg,
		resolver: resolver,
		plans:    plans,
		audit:    auditStore,
		machine:  NewMachine(),
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
	}
}

// ModelLinkInput ties a request to a model at creation time.
type ModelLinkInput struct {
	ModelID        string `json:"modelId"`
	VersionID      string `json:"versionId,omitempty"`
	PriorRequestID string `json:"priorRequestId,omitempty"`
}

// CreateRequestInput is the intake payload.
type CreateRequestInput struct {
	Type         ValidationType   `json:"validationType"`
	Priority     Priority         `json:"priority"`
	TargetDate   *time.Time       `json:"targetDate,omitempty"`
	ScopeSummary string           `json:"scopeSummary,omitempty"`
	Models       []ModelLinkInput `json:"models"`
	RegionIDs    []string         `json:"regionIds,omitempty"`
	Requester    string           `json:"requester"`
}

// CreateRequest validates the intake payload, serializes against concurrent
// creates for the same models, snapshots the effective risk tier, and
// writes the request with its first history row. Models without a risk
// tier do not block creation; they surface as warnings and timeframe
// defaults are skipped.
func (e *Engine) CreateRequest(input CreateRequestInput) (*ValidationRequestRecord, []string, error) {
	if !input.Type.Valid() {
		return nil, nil, newValidationError("REQUEST_BAD_TYPE", "unknown validation type %q", input.Type)
	}
	if input.Priority == "" {
		input.Priority = PriorityMedium
	}
	if !input.Priority.Valid() {
		return nil, nil, newValidationError("REQUEST_BAD_PRIORITY", "unknown priority %q", input.Priority)
	}
	if len(input.Models) == 0 {
		return nil, nil, newValidationError("REQUEST_NO_MODELS", "request must link at least one model")
	}
	if input.Requester == "" {
		return nil, nil, newValidationError("REQUEST_NO_REQUESTER", "request must carry a requester")
	}
	if input.Type.ScopeOnly() && strings.TrimSpace(input.ScopeSummary) == "" {
		return nil, nil, newValidationError("REQUEST_NO_SCOPE_SUMMARY",
			"scope-only validation types require a scope summary")
	}

	var (
		created  *ValidationRequestRecord
		warnings []string
	)
	err := e.db.Transaction(func(tx *gorm.DB) error {
		modelIDs := make([]string, 0, len(input.Models))
		for _, m := range input.Models {
			modelIDs = append(modelIDs, m.ModelID)
		}
		if err := acquireModelCreationLocks(tx, modelIDs); err != nil {
			return err
		}

		var tiers []registry.RiskTier
		for _, m := range input.Models {
			var model registry.ModelRecord
			if err := tx.Where("id = ?", m.ModelID).First(&model).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return &NotFoundError{Entity: "model", ID: m.ModelID}
				}
				return fmt.Errorf("get model: %w", err)
			}
			if m.VersionID != "" {
				var version registry.ModelVersionRecord
				if err := tx.Where("id = ? AND model_id = ?", m.VersionID, m.ModelID).First(&version).Error; err != nil {
					if errors.Is(err, gorm.ErrRecordNotFound) {
						return &NotFoundError{Entity: "model version", ID: m.VersionID}
					}
					return fmt.Errorf("get model version: %w", err)
				}
			}
			open, err := openRequestsForModel(tx, m.ModelID, input.Type)
			if err != nil {
				return err
			}
			if len(open) > 0 {
				return newConflictError("REQUEST_DUPLICATE",
					"model %s already has an open %s request (%s)", m.ModelID, input.Type, open[0].ID)
			}
			if model.RiskTier == "" {
				warnings = append(warnings,
					fmt.Sprintf("model %s has no risk tier; timeframe enforcement skipped", m.ModelID))
			}
			tiers = append(tiers, model.RiskTier)
		}

		tier := registry.MostConservative(tiers...)
		targetDate := input.TargetDate
		if targetDate == nil && tier != "" {
			if policy, ok := e.cfg.PolicyFor(tier); ok {
				t := e.now().AddDate(0, policy.SubmissionLeadMonths, 0)
				targetDate = &t
			}
		}

		req := &ValidationRequestRecord{
			ID:                newID(),
			Status:            StatusIntake,
			Type:              input.Type,
			Priority:          input.Priority,
			TargetDate:        targetDate,
			ValidatedRiskTier: tier,
			ScopeSummary:      input.ScopeSummary,
			Requester:         input.Requester,
		}
		if err := tx.Create(req).Error; err != nil {
			return fmt.Errorf("create validation request: %w", err)
		}
		for _, m := range input.Models {
			link := RequestModelLink{
				ID:             newID(),
				RequestID:      req.ID,
				ModelID:        m.ModelID,
				VersionID:      m.VersionID,
				PriorRequestID: m.PriorRequestID,
			}
			if err := tx.Create(&link).Error; err != nil {
				return fmt.Errorf("create request model link: %w", err)
			}
		}
		for _, regionID := range input.RegionIDs {
			scope := RequestRegionScope{RequestID: req.ID, RegionID: regionID}
			if err := tx.Create(&scope).Error; err != nil {
				return fmt.Errorf("create request region scope: %w", err)
			}
		}

		if err := appendHistory(tx, &StatusHistoryRecord{
			RequestID: req.ID,
			NewStatus: StatusIntake,
			Actor:     input.Requester,
			Reason:    "request created",
		}); err != nil {
			return err
		}
		if err := e.auditEvent(tx, req.ID, "request.create", input.Requester, nil,
			audit.JSONAny{"status": string(StatusIntake), "validation_type": string(input.Type)}); err != nil {
			return err
		}

		created = req
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	e.logger.Info("created validation request",
		"request_id", created.ID, "validation_type", string(created.Type),
		"risk_tier", string(created.ValidatedRiskTier), "requester", created.Requester)
	return created, warnings, nil
}

// Transition moves a request to a new status through the full guard and
// side-effect pipeline. Moving to revision is rejected here; only an
// approver send-back reaches it.
func (e *Engine) Transition(requestID string, to Status, actor, reason string) (*ValidationRequestRecord, error) {
	var result *ValidationRequestRecord
	err := e.db.Transaction(func(tx *gorm.DB) error {
		req, err := getRequestForUpdate(tx, requestID)
		if err != nil {
			return err
		}
		if req == nil {
			return &NotFoundError{Entity: "validation request", ID: requestID}
		}
		if err := e.applyTransition(tx, req, to, actor, reason, nil); err != nil {
			return err
		}
		result = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Resume returns a held request to the status it was in before the hold,
// derived from the most recent history entry that entered on_hold.
func (e *Engine) Resume(requestID, actor, reason string) (*ValidationRequestRecord, error) {
	var result *ValidationRequestRecord
	err := e.db.Transaction(func(tx *gorm.DB) error {
		req, err := getRequestForUpdate(tx, requestID)
		if err != nil {
			return err
		}
		if req == nil {
			return &NotFoundError{Entity: "validation request", ID: requestID}
		}
		if req.Status != StatusOnHold {
			return newValidationError("WORKFLOW_NOT_ON_HOLD", "request is %s, not on hold", req.Status)
		}
		target, err := latestNonHoldStatus(tx, requestID)
		if err != nil {
			return err
		}
		if reason == "" {
			reason = "resumed from hold"
		}
		if err := e.applyTransition(tx, req, target, actor, reason, nil); err != nil {
			return err
		}
		result = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// applyTransition validates the move, runs guards for the target, applies
// side effects, and writes exactly one history row. Callers hold the row
// lock and the transaction.
func (e *Engine) applyTransition(tx *gorm.DB, req *ValidationRequestRecord, to Status,
	actor, reason string, snapshot *OutcomeSnapshot) error {
	from := req.Status
	if err := e.machine.ValidateTransition(from, to); err != nil {
		return err
	}
	if from == StatusOnHold && to != StatusCancelled {
		preHold, err := latestNonHoldStatus(tx, req.ID)
		if err != nil {
			return err
		}
		if to != preHold {
			return newValidationError("WORKFLOW_BAD_RESUME",
				"held request must resume to %s, not %s", preHold, to)
		}
	}

	if err := e.checkGuards(tx, req, to); err != nil {
		return err
	}
	if err := e.applySideEffects(tx, req, from, to, actor); err != nil {
		return err
	}

	updates := map[string]any{"status": to}
	if to == StatusApproved && req.CompletedAt != nil {
		updates["completed_at"] = req.CompletedAt
	}
	if err := tx.Model(&ValidationRequestRecord{}).Where("id = ?", req.ID).Updates(updates).Error; err != nil {
		return fmt.Errorf("update request status: %w", err)
	}
	req.Status = to

	history := &StatusHistoryRecord{
		RequestID: req.ID,
		OldStatus: from,
		NewStatus: to,
		Actor:     actor,
		Reason:    reason,
	}
	if snapshot != nil {
		history.SnapRating = snapshot.Rating
		history.SnapRecommendationIDs = audit.JSONStringSlice(snapshot.RecommendationIDs)
		history.SnapLimitationIDs = audit.JSONStringSlice(snapshot.LimitationIDs)
		history.SnapContextTag = snapshot.ContextTag
	}
	if err := appendHistory(tx, history); err != nil {
		return err
	}
	if err := e.auditEvent(tx, req.ID, "request.transition", actor,
		audit.JSONAny{"status": string(from)}, audit.JSONAny{"status": string(to)}); err != nil {
		return err
	}

	e.logger.Info("transitioned validation request",
		"request_id", req.ID, "from", string(from), "to", string(to), "actor", actor)
	return nil
}

// checkGuards enforces the entry conditions of the target status. Failures
// collect into one error so the caller sees everything at once.
func (e *Engine) checkGuards(tx *gorm.DB, req *ValidationRequestRecord, to Status) error {
	var failures []string

	requiresPrimary := to == StatusInProgress || to == StatusReview || to == StatusPendingApproval
	if requiresPrimary {
		ok, err := hasAssignment(tx, req.ID, RolePrimaryValidator)
		if err != nil {
			return err
		}
		if !ok {
			failures = append(failures, "a primary validator must be assigned")
		}
	}

	if to == StatusReview || to == StatusPendingApproval {
		count, err := assignmentCount(tx, req.ID)
		if err != nil {
			return err
		}
		if count == 0 {
			failures = append(failures, "at least one assignment is required")
		}
		links, err := modelLinks(tx, req.ID)
		if err != nil {
			return err
		}
		for _, link := range links {
			current, err := assessmentCurrent(tx, link.ModelID, e.now(), e.cfg.AssessmentMaxAgeMonths)
			if err != nil {
				return err
			}
			if !current {
				failures = append(failures,
					fmt.Sprintf("model %s lacks a current, complete risk assessment", link.ModelID))
			}
		}
		if err := e.plans.complianceCheck(tx, req); err != nil {
			var ve *ValidationError
			if errors.As(err, &ve) {
				failures = append(failures, ve.Message)
				if fs, ok := ve.Details["failures"].([]string); ok {
					failures = append(failures, fs...)
				}
			} else {
				return err
			}
		}
	}

	if to == StatusPendingApproval {
		if strings.TrimSpace(req.OutcomeRating) == "" {
			failures = append(failures, "an outcome rating must be recorded before approval submission")
		}
		reviewerAssigned, signedOff, err := reviewerState(tx, req.ID)
		if err != nil {
			return err
		}
		if reviewerAssigned && !signedOff {
			failures = append(failures, "the assigned reviewer has not signed off")
		}
	}

	if to == StatusApproved {
		done, _, err := allRequiredApproved(tx, req.ID)
		if err != nil {
			return err
		}
		if !done {
			failures = append(failures, "not every required approval is approved")
		}
	}

	if len(failures) > 0 {
		return &ValidationError{
			Code:    "WORKFLOW_GUARD_FAILED",
			Message: fmt.Sprintf("transition to %s blocked", to),
			Details: map[string]any{"failures": failures},
		}
	}
	return nil
}

// applySideEffects runs the mutations that accompany a transition. They
// share the caller's transaction and roll back with it.
func (e *Engine) applySideEffects(tx *gorm.DB, req *ValidationRequestRecord, from, to Status, actor string) error {
	switch to {
	case StatusPlanning:
		if _, err := e.plans.ensurePlan(tx, req); err != nil {
			return err
		}
		if from != StatusIntake && from != StatusOnHold {
			if err := unlockPlan(tx, req.ID); err != nil {
				return err
			}
		}
	case StatusInProgress:
		if from == StatusPlanning {
			if err := e.syncVersionStatuses(tx, req.ID, registry.VersionDraft, registry.VersionUnderValidation); err != nil {
				return err
			}
		}
	case StatusReview:
		if err := lockPlan(tx, req.ID, e.now()); err != nil {
			return err
		}
	case StatusPendingApproval:
		if _, _, err := e.resolver.Sync(tx, req); err != nil {
			return err
		}
	case StatusApproved:
		_, latest, err := allRequiredApproved(tx, req.ID)
		if err != nil {
			return err
		}
		completed := e.now()
		if latest != nil {
			completed = *latest
		}
		req.CompletedAt = &completed
		if err := e.syncVersionStatuses(tx, req.ID, registry.VersionUnderValidation, registry.VersionActive); err != nil {
			return err
		}
	case StatusCancelled:
		if err := voidPendingApprovals(tx, req.ID, "request cancelled"); err != nil {
			return err
		}
		if err := e.syncVersionStatuses(tx, req.ID, registry.VersionUnderValidation, registry.VersionDraft); err != nil {
			return err
		}
	}
	return nil
}

// syncVersionStatuses applies the documented version status sync to every
// linked version. The guarded update is a no-op for versions not in the
// expected prior status.
func (e *Engine) syncVersionStatuses(tx *gorm.DB, requestID string, from, to registry.VersionStatus) error {
	links, err := modelLinks(tx, requestID)
	if err != nil {
		return err
	}
	for _, link := range links {
		if link.VersionID == "" {
			continue
		}
		if err := e.registry.SyncVersionStatus(tx, link.VersionID, from, to); err != nil {
			return err
		}
	}
	return nil
}

// Assign adds a user to a request in an assignment role. Validator
// independence: a model owner can never validate their own model.
func (e *Engine) Assign(requestID, user string, role AssignmentRole, actor string) (*AssignmentRecord, error) {
	if role != RolePrimaryValidator && role != RoleSupportValidator && role != RoleReviewer {
		return nil, newValidationError("ASSIGNMENT_BAD_ROLE", "unknown assignment role %q", role)
	}

	var created *AssignmentRecord
	err := e.db.Transaction(func(tx *gorm.DB) error {
		req, err := getRequestForUpdate(tx, requestID)
		if err != nil {
			return err
		}
		if req == nil {
			return &NotFoundError{Entity: "validation request", ID: requestID}
		}
		if req.Status.Terminal() {
			return newValidationError("WORKFLOW_TERMINAL_STATUS", "cannot assign on a completed request")
		}

		links, err := modelLinks(tx, requestID)
		if err != nil {
			return err
		}
		for _, link := range links {
			var model registry.ModelRecord
			if err := tx.Where("id = ?", link.ModelID).First(&model).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					continue
				}
				return fmt.Errorf("get model: %w", err)
			}
			if model.OwnerPrincipal == user {
				return newConflictError("ASSIGNMENT_INDEPENDENCE",
					"%s owns model %s and cannot validate it", user, link.ModelID)
			}
		}

		if role == RolePrimaryValidator {
			var existing AssignmentRecord
			err := tx.Where("request_id = ? AND role = ?", requestID, RolePrimaryValidator).First(&existing).Error
			if err == nil {
				return newConflictError("ASSIGNMENT_PRIMARY_EXISTS",
					"request already has primary validator %s", existing.User)
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("check primary validator: %w", err)
			}
		}

		rec := &AssignmentRecord{
			ID:        newID(),
			RequestID: requestID,
			User:      user,
			Role:      role,
		}
		if err := tx.Create(rec).Error; err != nil {
			return fmt.Errorf("create assignment: %w", err)
		}
		if err := e.auditEvent(tx, requestID, "request.assign", actor, nil,
			audit.JSONAny{"user": user, "role": string(role)}); err != nil {
			return err
		}
		created = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// ReviewerSignoff records the assigned reviewer's sign-off.
func (e *Engine) ReviewerSignoff(requestID, user string) error {
	return e.db.Transaction(func(tx *gorm.DB) error {
		var rec AssignmentRecord
		err := tx.Where("request_id = ? AND user_principal = ? AND role = ?",
			requestID, user, RoleReviewer).First(&rec).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return newAuthorizationError("%s is not the assigned reviewer", user)
			}
			return fmt.Errorf("get reviewer assignment: %w", err)
		}
		if err := tx.Model(&AssignmentRecord{}).Where("id = ?", rec.ID).
			Update("reviewer_signoff", true).Error; err != nil {
			return fmt.Errorf("record reviewer signoff: %w", err)
		}
		return e.auditEvent(tx, requestID, "request.reviewer_signoff", user, nil, nil)
	})
}

// OutcomeInput carries the validation outcome recorded before approval
// submission.
type OutcomeInput struct {
	Rating            string   `json:"rating"`
	RecommendationIDs []string `json:"recommendationIds,omitempty"`
	LimitationIDs     []string `json:"limitationIds,omitempty"`
	MonitoringPlanRef string   `json:"monitoringPlanRef,omitempty"`
}

// RecordOutcome stores the outcome fields on the request. Allowed while
// the request is in active work or revision; terminal requests reject it.
func (e *Engine) RecordOutcome(requestID string, input OutcomeInput, actor string) (*ValidationRequestRecord, error) {
	if strings.TrimSpace(input.Rating) == "" {
		return nil, newValidationError("OUTCOME_NO_RATING", "outcome rating must not be empty")
	}

	var result *ValidationRequestRecord
	err := e.db.Transaction(func(tx *gorm.DB) error {
		req, err := getRequestForUpdate(tx, requestID)
		if err != nil {
			return err
		}
		if req == nil {
			return &NotFoundError{Entity: "validation request", ID: requestID}
		}
		if req.Status.Terminal() {
			return newValidationError("WORKFLOW_TERMINAL_STATUS", "cannot record an outcome on a completed request")
		}

		before := snapshotOf(req)
		updates := map[string]any{
			"outcome_rating":     input.Rating,
			"recommendation_ids": audit.JSONStringSlice(input.RecommendationIDs),
			"limitation_ids":     audit.JSONStringSlice(input.LimitationIDs),
		}
		if input.MonitoringPlanRef != "" {
			updates["monitoring_plan_ref"] = input.MonitoringPlanRef
		}
		if err := tx.Model(&ValidationRequestRecord{}).Where("id = ?", req.ID).Updates(updates).Error; err != nil {
			return fmt.Errorf("record outcome: %w", err)
		}
		req.OutcomeRating = input.Rating
		req.RecommendationIDs = audit.JSONStringSlice(input.RecommendationIDs)
		req.LimitationIDs = audit.JSONStringSlice(input.LimitationIDs)
		if input.MonitoringPlanRef != "" {
			req.MonitoringPlanRef = input.MonitoringPlanRef
		}

		after := snapshotOf(req)
		if err := e.auditEvent(tx, req.ID, "request.record_outcome", actor,
			audit.JSONAny{"rating": before.Rating}, audit.JSONAny{"rating": after.Rating}); err != nil {
			return err
		}
		result = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// MarkSubmissionReceived records that the model owner's submission package
// arrived, which feeds the revalidation decision table.
func (e *Engine) MarkSubmissionReceived(requestID, actor string) (*ValidationRequestRecord, error) {
	var result *ValidationRequestRecord
	err := e.db.Transaction(func(tx *gorm.DB) error {
		req, err := getRequestForUpdate(tx, requestID)
		if err != nil {
			return err
		}
		if req == nil {
			return &NotFoundError{Entity: "validation request", ID: requestID}
		}
		if req.Status.Terminal() {
			return newValidationError("WORKFLOW_TERMINAL_STATUS", "cannot record a submission on a completed request")
		}
		now := e.now()
		if err := tx.Model(&ValidationRequestRecord{}).Where("id = ?", req.ID).
			Updates(map[string]any{"submission_received": true, "submission_date": now}).Error; err != nil {
			return fmt.Errorf("record submission: %w", err)
		}
		req.SubmissionReceived = true
		req.SubmissionDate = &now
		if err := e.auditEvent(tx, req.ID, "request.submission_received", actor, nil, nil); err != nil {
			return err
		}
		result = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func hasAssignment(tx *gorm.DB, requestID string, role AssignmentRole) (bool, error) {
	var count int64
	if err := tx.Model(&AssignmentRecord{}).
		Where("request_id = ? AND role = ?", requestID, role).Count(&count).Error; err != nil {
		return false, fmt.Errorf("count assignments: %w", err)
	}
	return count > 0, nil
}

func assignmentCount(tx *gorm.DB, requestID string) (int64, error) {
	var count int64
	if err := tx.Model(&AssignmentRecord{}).Where("request_id = ?", requestID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count assignments: %w", err)
	}
	return count, nil
}

func reviewerState(tx *gorm.DB, requestID string) (assigned, signedOff bool, err error) {
	var reviewers []AssignmentRecord
	if err := tx.Where("request_id = ? AND role = ?", requestID, RoleReviewer).Find(&reviewers).Error; err != nil {
		return false, false, fmt.Errorf("list reviewers: %w", err)
	}
	if len(reviewers) == 0 {
		return false, false, nil
	}
	for _, r := range reviewers {
		if !r.ReviewerSignoff {
			return true, false, nil
		}
	}
	return true, true, nil
}

// assessmentCurrent is the transactional form of the risk-assessment
// boundary query: complete and not past its stale marker. Assessments
// without an explicit expiry go stale maxAgeMonths after assessment.
func assessmentCurrent(tx *gorm.DB, modelID string, now time.Time, maxAgeMonths int) (bool, error) {
	var rec registry.RiskAssessmentRecord
	if err := tx.Where("model_id = ?", modelID).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("get risk assessment: %w", err)
	}
	if !rec.Complete {
		return false, nil
	}
	if rec.StaleAfter != nil {
		return !now.After(*rec.StaleAfter), nil
	}
	if maxAgeMonths > 0 && !rec.AssessedAt.IsZero() &&
		now.After(rec.AssessedAt.AddDate(0, maxAgeMonths, 0)) {
		return false, nil
	}
	return true, nil
}

func (e *Engine) auditEvent(tx *gorm.DB, requestID, action, actor string, before, after audit.JSONAny) error {
	if e.audit == nil {
		return nil
	}
	return e.audit.AppendIn(tx, &audit.EventRecord{
		EntityType: "validation_request",
		EntityID:   requestID,
		Action:     action,
		Actor:      actor,
		Before:     before,
		After:      after,
	})
}

func (e *Engine) auditApprovalEvent(tx *gorm.DB, approvalID, action, actor, reason string, after audit.JSONAny) error {
	if e.audit == nil {
		return nil
	}
	return e.audit.AppendIn(tx, &audit.EventRecord{
		EntityType: "validation_approval",
		EntityID:   approvalID,
		Action:     action,
		Actor:      actor,
		Reason:     reason,
		After:      after,
	})
}
