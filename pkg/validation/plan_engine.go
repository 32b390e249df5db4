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

// MonitoringComponent is the plan component that, when planned, requires a
// monitoring plan reference on the request before approval submission.
const MonitoringComponent = "ongoing_monitoring"

// PlanEngine generates, maintains, and gates validation plans against the
// published configuration.
type PlanEngine struct {
	db       *gorm.DB
	configs  *ConfigStore
	registry *registry.Store
	audit    *audit.Store
	logger   *slog.Logger
}

// NewPlanEngine creates the plan engine.
func NewPlanEngine(db *gorm.DB, configs *ConfigStore, reg *registry.Store, auditStore *audit.Store, logger *slog.Logger) *PlanEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &PlanEngine{db: db, configs: configs, registry: reg, audit: auditStore, logger: logger}
}

// GetPlanByRequest returns the plan of a request with its components, or
// nil when the request has no plan.
func (e *PlanEngine) GetPlanByRequest(requestID string) (*PlanRecord, []PlanComponentRecord, error) {
	plan, err := getPlanByRequest(e.db, requestID)
	if err != nil || plan == nil {
		return nil, nil, err
	}
	components, err := planComponents(e.db, plan.ID)
	if err != nil {
		return nil, nil, err
	}
	return plan, components, nil
}

func getPlanByRequest(tx *gorm.DB, requestID string) (*PlanRecord, error) {
	var plan PlanRecord
	if err := tx.Where("request_id = ?", requestID).First(&plan).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get plan: %w", err)
	}
	return &plan, nil
}

func planComponents(tx *gorm.DB, planID string) ([]PlanComponentRecord, error) {
	var components []PlanComponentRecord
	if err := tx.Where("plan_id = ?", planID).Order("component ASC").Find(&components).Error; err != nil {
		return nil, fmt.Errorf("list plan components: %w", err)
	}
	return components, nil
}

// ensurePlan creates the request's plan from the active configuration if it
// does not exist yet. Scope-only validation types carry no plan. Treatments
// default to planned for required components and not_planned otherwise, so
// a fresh plan never starts with deviations.
func (e *PlanEngine) ensurePlan(tx *gorm.DB, req *ValidationRequestRecord) (*PlanRecord, error) {
	if req.Type.ScopeOnly() {
		return nil, nil
	}

	plan, err := getPlanByRequest(tx, req.ID)
	if err != nil {
		return nil, err
	}
	if plan != nil {
		return plan, nil
	}

	config, err := activeConfig(tx)
	if err != nil {
		return nil, err
	}
	items, err := configItems(tx, config.ID)
	if err != nil {
		return nil, err
	}

	plan = &PlanRecord{
		ID:        newID(),
		RequestID: req.ID,
		ConfigID:  config.ID,
	}
	if err := tx.Create(plan).Error; err != nil {
		return nil, fmt.Errorf("create plan: %w", err)
	}
	for _, component := range componentsFor(items) {
		expectation := expectationFor(items, component, req.ValidatedRiskTier)
		treatment := TreatmentNotPlanned
		if expectation == ExpectationRequired {
			treatment = TreatmentPlanned
		}
		rec := PlanComponentRecord{
			ID:          newID(),
			PlanID:      plan.ID,
			Component:   component,
			Expectation: expectation,
			Treatment:   treatment,
		}
		if err := tx.Create(&rec).Error; err != nil {
			return nil, fmt.Errorf("create plan component: %w", err)
		}
	}
	e.logger.Info("generated validation plan",
		"request_id", req.ID, "plan_id", plan.ID, "config_id", config.ID,
		"risk_tier", string(req.ValidatedRiskTier))
	return plan, nil
}

// lockPlan pins the plan to its configuration. Locking an already locked
// plan is a no-op so repeated review entries stay idempotent.
func lockPlan(tx *gorm.DB, requestID string, now time.Time) error {
	result := tx.Model(&PlanRecord{}).
		Where("request_id = ? AND locked_at IS NULL", requestID).
		Update("locked_at", now)
	if result.Error != nil {
		return fmt.Errorf("lock plan: %w", result.Error)
	}
	return nil
}

// unlockPlan releases the configuration pin so that planning-stage edits
// and configuration changes apply again.
func unlockPlan(tx *gorm.DB, requestID string) error {
	result := tx.Model(&PlanRecord{}).
		Where("request_id = ?", requestID).
		Update("locked_at", nil)
	if result.Error != nil {
		return fmt.Errorf("unlock plan: %w", result.Error)
	}
	return nil
}

// complianceFailure is one reason a plan fails the compliance gate.
type complianceFailure struct {
	Component string `json:"component,omitempty"`
	Reason    string `json:"reason"`
}

// complianceCheck verifies a request's plan is fit to enter approval. All
// failures are collected and reported together rather than one at a time.
func (e *PlanEngine) complianceCheck(tx *gorm.DB, req *ValidationRequestRecord) error {
	if req.Type.ScopeOnly() {
		return nil
	}

	plan, err := getPlanByRequest(tx, req.ID)
	if err != nil {
		return err
	}
	if plan == nil {
		return newValidationError("PLAN_MISSING", "request has no validation plan")
	}
	components, err := planComponents(tx, plan.ID)
	if err != nil {
		return err
	}

	var failures []complianceFailure
	for _, c := range components {
		if !c.Treatment.Valid() {
			failures = append(failures, complianceFailure{
				Component: c.Component,
				Reason:    fmt.Sprintf("treatment %q is not valid", c.Treatment),
			})
			continue
		}
		if c.Deviation() {
			if strings.TrimSpace(c.Rationale) == "" {
				failures = append(failures, complianceFailure{
					Component: c.Component,
					Reason:    "deviation from expectation requires a rationale",
				})
			}
		}
		if c.Component == MonitoringComponent && c.Treatment == TreatmentPlanned &&
			strings.TrimSpace(req.MonitoringPlanRef) == "" {
			failures = append(failures, complianceFailure{
				Component: c.Component,
				Reason:    "planned ongoing monitoring requires a monitoring plan reference",
			})
		}
	}
	if plan.MaterialDeviation && strings.TrimSpace(plan.OverallRationale) == "" {
		failures = append(failures, complianceFailure{
			Reason: "material deviation requires an overall rationale",
		})
	}
	if len(failures) > 0 {
		details := make([]string, 0, len(failures))
		for _, f := range failures {
			if f.Component != "" {
				details = append(details, f.Component+": "+f.Reason)
			} else {
				details = append(details, f.Reason)
			}
		}
		return &ValidationError{
			Code:    "PLAN_NOT_COMPLIANT",
			Message: "validation plan fails compliance checks",
			Details: map[string]any{"failures": details},
		}
	}
	return nil
}

// ComponentUpdate carries the editable fields of a plan component.
type ComponentUpdate struct {
	Treatment Treatment `json:"treatment"`
	Rationale *string   `json:"rationale,omitempty"`
}

// UpdateComponent edits a component's treatment and rationale. Locked
// plans reject edits until the request returns to planning.
func (e *PlanEngine) UpdateComponent(requestID, component string, update ComponentUpdate) (*PlanComponentRecord, error) {
	var updated *PlanComponentRecord
	err := e.db.Transaction(func(tx *gorm.DB) error {
		plan, err := getPlanByRequest(tx, requestID)
		if err != nil {
			return err
		}
		if plan == nil {
			return &NotFoundError{Entity: "validation plan", ID: requestID}
		}
		if plan.Locked() {
			return newConflictError("PLAN_LOCKED", "plan is locked while the request is in review or beyond")
		}

		var rec PlanComponentRecord
		if err := tx.Where("plan_id = ? AND component = ?", plan.ID, component).First(&rec).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Entity: "plan component", ID: component}
			}
			return fmt.Errorf("get plan component: %w", err)
		}

		if update.Treatment != "" {
			if !update.Treatment.Valid() {
				return newValidationError("PLAN_BAD_TREATMENT", "unknown treatment %q", update.Treatment)
			}
			rec.Treatment = update.Treatment
		}
		if update.Rationale != nil {
			rec.Rationale = *update.Rationale
		}
		if err := tx.Save(&rec).Error; err != nil {
			return fmt.Errorf("update plan component: %w", err)
		}
		updated = &rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// PlanUpdate carries the editable plan-level fields.
type PlanUpdate struct {
	MaterialDeviation *bool   `json:"materialDeviation,omitempty"`
	OverallRationale  *string `json:"overallRationale,omitempty"`
}

// UpdatePlan edits plan-level deviation fields. Locked plans reject edits.
func (e *PlanEngine) UpdatePlan(requestID string, update PlanUpdate) (*PlanRecord, error) {
	var updated *PlanRecord
	err := e.db.Transaction(func(tx *gorm.DB) error {
		plan, err := getPlanByRequest(tx, requestID)
		if err != nil {
			return err
		}
		if plan == nil {
			return &NotFoundError{Entity: "validation plan", ID: requestID}
		}
		if plan.Locked() {
			return newConflictError("PLAN_LOCKED", "plan is locked while the request is in review or beyond")
		}

		if update.MaterialDeviation != nil {
			plan.MaterialDeviation = *update.MaterialDeviation
		}
		if update.OverallRationale != nil {
			plan.OverallRationale = *update.OverallRationale
		}
		if err := tx.Save(plan).Error; err != nil {
			return fmt.Errorf("update plan: %w", err)
		}
		updated = plan
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// CascadeModelTierChange re-derives the validated risk tier of every open
// request linked to the model and refreshes expectations on unlocked plans
// in place. Locked plans keep the expectations they pinned.
func (e *PlanEngine) CascadeModelTierChange(modelID string, actor string) error {
	return e.db.Transaction(func(tx *gorm.DB) error {
		var links []RequestModelLink
		if err := tx.Where("model_id = ?", modelID).Find(&links).Error; err != nil {
			return fmt.Errorf("list model links: %w", err)
		}

		for _, link := range links {
			req, err := getRequestForUpdate(tx, link.RequestID)
			if err != nil {
				return err
			}
			if req == nil || req.Status.Terminal() {
				continue
			}

			tier, err := e.effectiveTier(tx, req.ID)
			if err != nil {
				return err
			}
			if tier != req.ValidatedRiskTier {
				if err := tx.Model(&ValidationRequestRecord{}).Where("id = ?", req.ID).
					Update("validated_risk_tier", tier).Error; err != nil {
					return fmt.Errorf("update validated risk tier: %w", err)
				}
				req.ValidatedRiskTier = tier
			}

			plan, err := getPlanByRequest(tx, req.ID)
			if err != nil {
				return err
			}
			if plan == nil || plan.Locked() {
				continue
			}
			if err := e.refreshExpectations(tx, plan, tier); err != nil {
				return err
			}
			e.logger.Info("cascaded risk tier change onto plan",
				"model_id", modelID, "request_id", req.ID, "risk_tier", string(tier), "actor", actor)
		}
		return nil
	})
}

// effectiveTier is the most conservative current tier across a request's
// linked models.
func (e *PlanEngine) effectiveTier(tx *gorm.DB, requestID string) (registry.RiskTier, error) {
	links, err := modelLinks(tx, requestID)
	if err != nil {
		return "", err
	}
	var tiers []registry.RiskTier
	for _, link := range links {
		var model registry.ModelRecord
		if err := tx.Where("id = ?", link.ModelID).First(&model).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return "", fmt.Errorf("get model: %w", err)
		}
		tiers = append(tiers, model.RiskTier)
	}
	return registry.MostConservative(tiers...), nil
}

// refreshExpectations re-reads the plan's configuration at the given tier
// and updates each component's expectation, adding components the
// configuration defines that the plan lacks. Treatments and rationales are
// preserved.
func (e *PlanEngine) refreshExpectations(tx *gorm.DB, plan *PlanRecord, tier registry.RiskTier) error {
	items, err := configItems(tx, plan.ConfigID)
	if err != nil {
		return err
	}
	components, err := planComponents(tx, plan.ID)
	if err != nil {
		return err
	}
	existing := make(map[string]*PlanComponentRecord, len(components))
	for i := range components {
		existing[components[i].Component] = &components[i]
	}

	for _, name := range componentsFor(items) {
		expectation := expectationFor(items, name, tier)
		if rec, ok := existing[name]; ok {
			if rec.Expectation != expectation {
				if err := tx.Model(&PlanComponentRecord{}).Where("id = ?", rec.ID).
					Update("expectation", expectation).Error; err != nil {
					return fmt.Errorf("refresh plan component: %w", err)
				}
			}
			continue
		}
		treatment := TreatmentNotPlanned
		if expectation == ExpectationRequired {
			treatment = TreatmentPlanned
		}
		rec := PlanComponentRecord{
			ID:          newID(),
			PlanID:      plan.ID,
			Component:   name,
			Expectation: expectation,
			Treatment:   treatment,
		}
		if err := tx.Create(&rec).Error; err != nil {
			return fmt.Errorf("add plan component: %w", err)
		}
	}
	return nil
}

// ForceReset regenerates a request's plan from the active configuration,
// discarding treatments and rationales, and voids pending approvals so the
// request re-earns them against the new plan. Requires explicit
// confirmation because the reset loses validator input.
func (e *PlanEngine) ForceReset(requestID, actor string, confirmed bool) (*PlanRecord, error) {
	if !confirmed {
		return nil, newValidationError("PLAN_RESET_UNCONFIRMED", "plan reset must be explicitly confirmed")
	}

	var reset *PlanRecord
	err := e.db.Transaction(func(tx *gorm.DB) error {
		req, err := getRequestForUpdate(tx, requestID)
		if err != nil {
			return err
		}
		if req == nil {
			return &NotFoundError{Entity: "validation request", ID: requestID}
		}
		if req.Status.Terminal() {
			return newConflictError("PLAN_RESET_TERMINAL", "cannot reset the plan of a completed request")
		}

		plan, err := getPlanByRequest(tx, requestID)
		if err != nil {
			return err
		}
		if plan == nil {
			return &NotFoundError{Entity: "validation plan", ID: requestID}
		}

		reset, err = e.resetPlanInTx(tx, req, plan, actor)
		return err
	})
	if err != nil {
		return nil, err
	}
	return reset, nil
}

// ForceResetModel applies the force reset to every open request linked to
// the model. Requests without a plan (scope-only types) are skipped. Returns
// the ids of the requests that were reset.
func (e *PlanEngine) ForceResetModel(modelID, actor string, confirmed bool) ([]string, error) {
	if !confirmed {
		return nil, newValidationError("PLAN_RESET_UNCONFIRMED", "plan reset must be explicitly confirmed")
	}

	var resetIDs []string
	err := e.db.Transaction(func(tx *gorm.DB) error {
		var model registry.ModelRecord
		if err := tx.Where("id = ?", modelID).First(&model).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Entity: "model", ID: modelID}
			}
			return fmt.Errorf("get model: %w", err)
		}

		var links []RequestModelLink
		if err := tx.Where("model_id = ?", modelID).Find(&links).Error; err != nil {
			return fmt.Errorf("list model links: %w", err)
		}
		for _, link := range links {
			req, err := getRequestForUpdate(tx, link.RequestID)
			if err != nil {
				return err
			}
			if req == nil || req.Status.Terminal() {
				continue
			}
			plan, err := getPlanByRequest(tx, req.ID)
			if err != nil {
				return err
			}
			if plan == nil {
				continue
			}
			if _, err := e.resetPlanInTx(tx, req, plan, actor); err != nil {
				return err
			}
			resetIDs = append(resetIDs, req.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resetIDs, nil
}

// resetPlanInTx deletes and regenerates all plan components from the active
// configuration, unlocks the plan, and voids the request's pending approvals.
func (e *PlanEngine) resetPlanInTx(tx *gorm.DB, req *ValidationRequestRecord, plan *PlanRecord, actor string) (*PlanRecord, error) {
	config, err := activeConfig(tx)
	if err != nil {
		return nil, err
	}
	items, err := configItems(tx, config.ID)
	if err != nil {
		return nil, err
	}

	if err := tx.Where("plan_id = ?", plan.ID).Delete(&PlanComponentRecord{}).Error; err != nil {
		return nil, fmt.Errorf("clear plan components: %w", err)
	}
	plan.ConfigID = config.ID
	plan.LockedAt = nil
	plan.MaterialDeviation = false
	plan.OverallRationale = ""
	if err := tx.Save(plan).Error; err != nil {
		return nil, fmt.Errorf("reset plan: %w", err)
	}
	for _, name := range componentsFor(items) {
		expectation := expectationFor(items, name, req.ValidatedRiskTier)
		treatment := TreatmentNotPlanned
		if expectation == ExpectationRequired {
			treatment = TreatmentPlanned
		}
		rec := PlanComponentRecord{
			ID:          newID(),
			PlanID:      plan.ID,
			Component:   name,
			Expectation: expectation,
			Treatment:   treatment,
		}
		if err := tx.Create(&rec).Error; err != nil {
			return nil, fmt.Errorf("recreate plan component: %w", err)
		}
	}

	if err := voidPendingApprovals(tx, req.ID, "plan force reset"); err != nil {
		return nil, err
	}

	if e.audit != nil {
		if err := e.audit.AppendIn(tx, &audit.EventRecord{
			EntityType: "validation_request",
			EntityID:   req.ID,
			Action:     "plan.force_reset",
			Actor:      actor,
			Reason:     "plan force reset to configuration version " + fmt.Sprint(config.Version),
		}); err != nil {
			return nil, err
		}
	}
	return plan, nil
}
