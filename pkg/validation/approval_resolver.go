package validation

import (
	"fmt"
	"log/slog"

	mapset "github.com/deckarep/golang-set/v2"
	"gorm.io/gorm"

	"github.com/modelrisk/validation-workflow/pkg/registry"
)

// Resolver computes the set of approvals a request must earn and reconciles
// the stored approval records against it.
type Resolver struct {
	logger *slog.Logger
}

// NewResolver creates an approval resolver.
func NewResolver(logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{logger: logger}
}

// scopeRegions resolves the request's region scope in priority order:
// explicit request scope unioned with version-level scoping; else all
// deployment and governance regions when any linked version is globally
// scoped; else all deployment regions. Wholly owned governance regions are
// always in scope.
func (r *Resolver) scopeRegions(tx *gorm.DB, req *ValidationRequestRecord) ([]registry.RegionRecord, error) {
	scoped := mapset.NewSet[string]()

	explicit, err := regionScopes(tx, req.ID)
	if err != nil {
		return nil, err
	}
	for _, s := range explicit {
		scoped.Add(s.RegionID)
	}

	links, err := modelLinks(tx, req.ID)
	if err != nil {
		return nil, err
	}
	globalScope := false
	for _, link := range links {
		if link.VersionID == "" {
			continue
		}
		var version registry.ModelVersionRecord
		if err := tx.Where("id = ?", link.VersionID).First(&version).Error; err == nil {
			if version.GlobalScope {
				globalScope = true
			}
		}
		var versionRegions []registry.VersionRegionLink
		if err := tx.Where("version_id = ?", link.VersionID).Find(&versionRegions).Error; err != nil {
			return nil, fmt.Errorf("list version regions: %w", err)
		}
		for _, vr := range versionRegions {
			scoped.Add(vr.RegionID)
		}
	}

	var allRegions []registry.RegionRecord
	if err := tx.Find(&allRegions).Error; err != nil {
		return nil, fmt.Errorf("list regions: %w", err)
	}

	if scoped.Cardinality() == 0 {
		for _, region := range allRegions {
			if region.Kind == registry.RegionDeployment || (globalScope && region.Kind == registry.RegionGovernance) {
				scoped.Add(region.ID)
			}
		}
	}
	for _, region := range allRegions {
		if region.Kind == registry.RegionGovernance && region.WhollyOwned {
			scoped.Add(region.ID)
		}
	}

	var inScope []registry.RegionRecord
	for _, region := range allRegions {
		if scoped.Contains(region.ID) {
			inScope = append(inScope, region)
		}
	}
	return inScope, nil
}

// requiredSet computes the full required approval set for a request:
// exactly one global approval, one regional approval per in-scope region
// that requires it, and one conditional approval per role contributed by a
// matching rule.
func (r *Resolver) requiredSet(tx *gorm.DB, req *ValidationRequestRecord) (mapset.Set[approvalKey], error) {
	required := mapset.NewSet[approvalKey]()
	required.Add(approvalKey{Type: ApprovalGlobal})

	regions, err := r.scopeRegions(tx, req)
	if err != nil {
		return nil, err
	}
	for _, region := range regions {
		if region.RequiresRegionalApproval {
			required.Add(approvalKey{Type: ApprovalRegional, RegionID: region.ID})
		}
	}

	rules, err := enabledRules(tx)
	if err != nil {
		return nil, err
	}
	if len(rules) > 0 {
		links, err := modelLinks(tx, req.ID)
		if err != nil {
			return nil, err
		}
		tiers := mapset.NewSet[string]()
		for _, link := range links {
			var model registry.ModelRecord
			if err := tx.Where("id = ?", link.ModelID).First(&model).Error; err == nil && model.RiskTier != "" {
				tiers.Add(string(model.RiskTier))
			}
		}
		govRegions := mapset.NewSet[string]()
		depRegions := mapset.NewSet[string]()
		for _, region := range regions {
			switch region.Kind {
			case registry.RegionGovernance:
				govRegions.Add(region.Code)
			case registry.RegionDeployment:
				depRegions.Add(region.Code)
			}
		}

		for _, rule := range rules {
			if !ruleMatches(&rule, req, tiers, govRegions, depRegions) {
				continue
			}
			for _, role := range rule.RequiredRoles {
				required.Add(approvalKey{Type: ApprovalConditional, Role: role})
			}
		}
	}
	return required, nil
}

// ruleMatches applies a rule's filter predicate: every populated filter
// must match at least one fact about the request; empty filters match all.
func ruleMatches(rule *ConditionalApprovalRuleRecord, req *ValidationRequestRecord,
	tiers, govRegions, depRegions mapset.Set[string]) bool {
	if len(rule.ValidationTypes) > 0 && !containsString(rule.ValidationTypes, string(req.Type)) {
		return false
	}
	if len(rule.RiskTiers) > 0 && !intersects(rule.RiskTiers, tiers) {
		return false
	}
	if len(rule.GovernanceRegions) > 0 && !intersects(rule.GovernanceRegions, govRegions) {
		return false
	}
	if len(rule.DeploymentRegions) > 0 && !intersects(rule.DeploymentRegions, depRegions) {
		return false
	}
	return true
}

func containsString(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}

func intersects(values []string, set mapset.Set[string]) bool {
	for _, s := range values {
		if set.Contains(s) {
			return true
		}
	}
	return false
}

// Sync reconciles the stored approvals of a request against the required
// set: missing requirements get a pending approval, requirements that
// disappeared are voided, resolved approvals whose requirement still holds
// are left alone, and manual approvals are never touched. Running Sync
// twice with unchanged scope changes nothing.
func (r *Resolver) Sync(tx *gorm.DB, req *ValidationRequestRecord) (added, voided int, err error) {
	required, err := r.requiredSet(tx, req)
	if err != nil {
		return 0, 0, err
	}

	existing, err := approvalsByRequest(tx, req.ID)
	if err != nil {
		return 0, 0, err
	}

	covered := mapset.NewSet[approvalKey]()
	for i := range existing {
		rec := &existing[i]
		if rec.Type.Manual() || !rec.Status.Active() {
			continue
		}
		key := rec.key()
		if required.Contains(key) {
			covered.Add(key)
			continue
		}
		if err := voidApproval(tx, rec.ID, "no longer required by approval scope"); err != nil {
			return added, voided, err
		}
		voided++
	}

	for key := range required.Iter() {
		if covered.Contains(key) {
			continue
		}
		rec := &ApprovalRecord{
			RequestID: req.ID,
			Type:      key.Type,
			Status:    ApprovalPending,
			RegionID:  key.RegionID,
			Role:      key.Role,
		}
		if err := createApproval(tx, rec); err != nil {
			return added, voided, err
		}
		added++
	}

	if added > 0 || voided > 0 {
		r.logger.Info("synchronized approval requirements",
			"request_id", req.ID, "added", added, "voided", voided)
	}
	return added, voided, nil
}
