package validation

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/modelrisk/validation-workflow/pkg/registry"
)

// TierPolicy sets the revalidation cadence for one risk tier. All fields
// are in months.
type TierPolicy struct {
	CycleMonths          int `yaml:"cycleMonths" json:"cycleMonths"`
	SubmissionLeadMonths int `yaml:"submissionLeadMonths" json:"submissionLeadMonths"`
	GraceMonths          int `yaml:"graceMonths" json:"graceMonths"`
}

// Config holds the tunable policy of the workflow service.
type Config struct {
	// Revalidation maps risk tiers to their revalidation cadence.
	Revalidation map[registry.RiskTier]TierPolicy `yaml:"revalidation" json:"revalidation"`
	// AssessmentMaxAgeMonths bounds how old a risk assessment may be and
	// still count as current when the assessment itself has no expiry.
	AssessmentMaxAgeMonths int `yaml:"assessmentMaxAgeMonths" json:"assessmentMaxAgeMonths"`
}

// DefaultConfig returns the built-in policy used when no config file is
// provided.
func DefaultConfig() *Config {
	return &Config{
		Revalidation: map[registry.RiskTier]TierPolicy{
			registry.Tier1: {CycleMonths: 12, SubmissionLeadMonths: 3, GraceMonths: 1},
			registry.Tier2: {CycleMonths: 24, SubmissionLeadMonths: 3, GraceMonths: 1},
			registry.Tier3: {CycleMonths: 36, SubmissionLeadMonths: 6, GraceMonths: 2},
			registry.Tier4: {CycleMonths: 60, SubmissionLeadMonths: 6, GraceMonths: 2},
		},
		AssessmentMaxAgeMonths: 12,
	}
}

// LoadConfig reads the YAML config at path, filling unset sections with
// defaults. A missing file yields the defaults without error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	for tier, policy := range fileCfg.Revalidation {
		if !registry.IsValidTier(tier) {
			return nil, fmt.Errorf("config %s: unknown risk tier %q", path, tier)
		}
		if policy.CycleMonths <= 0 {
			return nil, fmt.Errorf("config %s: tier %s cycleMonths must be positive", path, tier)
		}
		cfg.Revalidation[tier] = policy
	}
	if fileCfg.AssessmentMaxAgeMonths > 0 {
		cfg.AssessmentMaxAgeMonths = fileCfg.AssessmentMaxAgeMonths
	}
	return cfg, nil
}

// PolicyFor returns the revalidation policy for a tier and whether one is
// configured.
func (c *Config) PolicyFor(tier registry.RiskTier) (TierPolicy, bool) {
	p, ok := c.Revalidation[tier]
	return p, ok
}
