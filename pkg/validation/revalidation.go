package validation

import (
	"fmt"
	"time"

	"github.com/modelrisk/validation-workflow/pkg/registry"
)

// RevalidationStatus is the derived standing of a model against its
// revalidation cadence. Nothing here is persisted: every read recomputes
// from policy and history, so a policy edit takes effect immediately.
type RevalidationStatus string

const (
	// RevalNotRated: the model has no risk tier, so no cadence applies.
	RevalNotRated RevalidationStatus = "not_rated"
	// RevalNeverValidated: no approved validation anchors the cycle yet.
	RevalNeverValidated RevalidationStatus = "never_validated"
	// RevalUnderRevalidation: a successor request exists and its
	// submission package has been received.
	RevalUnderRevalidation RevalidationStatus = "under_revalidation"
	// RevalCurrent: inside the cycle, before the submission due date.
	RevalCurrent RevalidationStatus = "current"
	// RevalSubmissionOverdue: past the submission due date without a
	// received submission, inside the grace window.
	RevalSubmissionOverdue RevalidationStatus = "submission_overdue"
	// RevalGraceExpired: the grace window after the submission due date has
	// elapsed, but the validation due date has not yet passed.
	RevalGraceExpired RevalidationStatus = "grace_expired"
	// RevalOverdue: past the validation due date.
	RevalOverdue RevalidationStatus = "overdue"
)

// RevalidationComputation is the full derived picture for one model.
type RevalidationComputation struct {
	ModelID            string             `json:"modelId"`
	RiskTier           registry.RiskTier  `json:"riskTier,omitempty"`
	Status             RevalidationStatus `json:"status"`
	LastValidatedAt    *time.Time         `json:"lastValidatedAt,omitempty"`
	SubmissionDueDate  *time.Time         `json:"submissionDueDate,omitempty"`
	ValidationDueDate  *time.Time         `json:"validationDueDate,omitempty"`
	GracePeriodEnd     *time.Time         `json:"gracePeriodEnd,omitempty"`
	SuccessorRequestID string             `json:"successorRequestId,omitempty"`
}

// Scheduler computes revalidation standing on demand.
type Scheduler struct {
	store    *Store
	registry *registry.Store
	cfg      *Config

	now func() time.Time
}

// NewScheduler creates a revalidation scheduler.
func NewScheduler(store *Store, reg *registry.Store, cfg *Config) *Scheduler {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Scheduler{store: store, registry: reg, cfg: cfg, now: time.Now}
}

// ComputeForModel derives the revalidation standing of one model from its
// tier policy and approved validation history. The decision table runs in
// order; the first row that applies wins.
func (s *Scheduler) ComputeForModel(modelID string) (*RevalidationComputation, error) {
	model, err := s.registry.GetModel(modelID)
	if err != nil {
		return nil, err
	}
	if model == nil {
		return nil, &NotFoundError{Entity: "model", ID: modelID}
	}

	result := &RevalidationComputation{ModelID: modelID, RiskTier: model.RiskTier}
	if model.RiskTier == "" {
		result.Status = RevalNotRated
		return result, nil
	}

	policy, ok := s.cfg.PolicyFor(model.RiskTier)
	if !ok {
		return nil, newConfigurationError("no revalidation policy configured for tier %s", model.RiskTier)
	}

	anchor, err := s.latestAnchor(modelID)
	if err != nil {
		return nil, err
	}
	if anchor == nil {
		result.Status = RevalNeverValidated
		return result, nil
	}
	result.LastValidatedAt = anchor

	validationDue := anchor.AddDate(0, policy.CycleMonths, 0)
	submissionDue := validationDue.AddDate(0, -policy.SubmissionLeadMonths, 0)
	graceEnd := submissionDue.AddDate(0, policy.GraceMonths, 0)
	result.SubmissionDueDate = &submissionDue
	result.ValidationDueDate = &validationDue
	result.GracePeriodEnd = &graceEnd

	successor, err := s.successorRequest(modelID, *anchor)
	if err != nil {
		return nil, err
	}
	if successor != nil {
		result.SuccessorRequestID = successor.ID
		if successor.SubmissionReceived {
			result.Status = RevalUnderRevalidation
			return result, nil
		}
	}

	today := s.now()
	switch {
	case today.Before(submissionDue):
		result.Status = RevalCurrent
	case !today.After(graceEnd):
		result.Status = RevalSubmissionOverdue
	case !today.After(validationDue):
		result.Status = RevalGraceExpired
	default:
		result.Status = RevalOverdue
	}
	return result, nil
}

// latestAnchor finds the completion time of the most recent approved
// validation that counts toward the cycle. Interim validations anchor the
// cycle only while unexpired; full and targeted validations always do.
func (s *Scheduler) latestAnchor(modelID string) (*time.Time, error) {
	approved, err := s.store.ApprovedRequestsForModel(modelID)
	if err != nil {
		return nil, err
	}
	for i := range approved {
		req := &approved[i]
		if req.CompletedAt == nil {
			continue
		}
		if req.Type == TypeInterimValidation {
			policy, ok := s.cfg.PolicyFor(req.ValidatedRiskTier)
			if ok && s.now().After(req.CompletedAt.AddDate(0, policy.CycleMonths, 0)) {
				continue
			}
		}
		return req.CompletedAt, nil
	}
	return nil, nil
}

// successorRequest finds the open full validation created after the anchor,
// if one exists.
func (s *Scheduler) successorRequest(modelID string, anchor time.Time) (*ValidationRequestRecord, error) {
	open, err := s.store.OpenRequestsForModel(modelID, TypeFullValidation)
	if err != nil {
		return nil, err
	}
	var latest *ValidationRequestRecord
	for i := range open {
		req := &open[i]
		if req.CreatedAt.Before(anchor) {
			continue
		}
		if latest == nil || req.CreatedAt.After(latest.CreatedAt) {
			latest = req
		}
	}
	if latest == nil {
		return nil, nil
	}
	return latest, nil
}

// ComputeAll derives revalidation standing for every active model. Used by
// the reporting endpoint; heavy filtering belongs to the caller.
func (s *Scheduler) ComputeAll() ([]RevalidationComputation, error) {
	var models []registry.ModelRecord
	if err := s.store.DB().Where("active = ?", true).Find(&models).Error; err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	results := make([]RevalidationComputation, 0, len(models))
	for _, model := range models {
		computation, err := s.ComputeForModel(model.ID)
		if err != nil {
			return nil, err
		}
		results = append(results, *computation)
	}
	return results, nil
}
