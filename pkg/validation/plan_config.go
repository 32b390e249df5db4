package validation

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/modelrisk/validation-workflow/pkg/registry"
)

// ConfigStore manages published plan configurations and the active pointer.
type ConfigStore struct {
	db *gorm.DB
}

// NewConfigStore creates a configuration store backed by the given database.
func NewConfigStore(db *gorm.DB) *ConfigStore {
	return &ConfigStore{db: db}
}

// ConfigItemInput is one expectation cell of a configuration to publish.
type ConfigItemInput struct {
	Component   string
	RiskTier    registry.RiskTier
	Expectation Expectation
}

// Publish stores a new immutable configuration version containing the given
// items and returns it. The version number is one past the latest published
// version. Publishing does not activate.
func (s *ConfigStore) Publish(description, publishedBy string, items []ConfigItemInput) (*ConfigurationRecord, error) {
	if len(items) == 0 {
		return nil, newValidationError("PLAN_CONFIG_EMPTY", "configuration must contain at least one item")
	}
	for _, item := range items {
		if item.Component == "" {
			return nil, newValidationError("PLAN_CONFIG_EMPTY", "configuration item component must not be empty")
		}
		if !registry.IsValidTier(item.RiskTier) {
			return nil, newValidationError("PLAN_CONFIG_BAD_TIER", "unknown risk tier %q", item.RiskTier)
		}
		if !item.Expectation.Valid() {
			return nil, newValidationError("PLAN_CONFIG_BAD_EXPECTATION", "unknown expectation %q", item.Expectation)
		}
	}

	var config *ConfigurationRecord
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var latest ConfigurationRecord
		version := 1
		err := tx.Order("version DESC").First(&latest).Error
		if err == nil {
			version = latest.Version + 1
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("find latest configuration: %w", err)
		}

		config = &ConfigurationRecord{
			ID:          newID(),
			Version:     version,
			Description: description,
			PublishedBy: publishedBy,
			CreatedAt:   time.Now(),
		}
		if err := tx.Create(config).Error; err != nil {
			return fmt.Errorf("create configuration: %w", err)
		}
		for _, item := range items {
			rec := ConfigItemRecord{
				ID:          newID(),
				ConfigID:    config.ID,
				Component:   item.Component,
				RiskTier:    string(item.RiskTier),
				Expectation: item.Expectation,
			}
			if err := tx.Create(&rec).Error; err != nil {
				return fmt.Errorf("create configuration item: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return config, nil
}

// Activate swaps the active configuration pointer to the given config.
// In-flight requests with locked plans keep the configuration they pinned.
func (s *ConfigStore) Activate(configID string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var config ConfigurationRecord
		if err := tx.Where("id = ?", configID).First(&config).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Entity: "plan configuration", ID: configID}
			}
			return fmt.Errorf("get configuration: %w", err)
		}

		pointer := ActiveConfigPointer{ID: 1, ConfigID: configID, UpdatedAt: time.Now()}
		result := tx.Model(&ActiveConfigPointer{}).Where("id = ?", 1).
			Updates(map[string]any{"config_id": configID, "updated_at": pointer.UpdatedAt})
		if result.Error != nil {
			return fmt.Errorf("update active configuration: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			if err := tx.Create(&pointer).Error; err != nil {
				return fmt.Errorf("set active configuration: %w", err)
			}
		}
		return nil
	})
}

// ActiveConfig returns the currently active configuration. A missing
// pointer is a deployment problem and surfaces as a ConfigurationError.
func (s *ConfigStore) ActiveConfig() (*ConfigurationRecord, error) {
	return activeConfig(s.db)
}

func activeConfig(tx *gorm.DB) (*ConfigurationRecord, error) {
	var pointer ActiveConfigPointer
	if err := tx.Where("id = ?", 1).First(&pointer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newConfigurationError("no active plan configuration is set")
		}
		return nil, fmt.Errorf("get active configuration pointer: %w", err)
	}
	var config ConfigurationRecord
	if err := tx.Where("id = ?", pointer.ConfigID).First(&config).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newConfigurationError("active configuration %s does not exist", pointer.ConfigID)
		}
		return nil, fmt.Errorf("get active configuration: %w", err)
	}
	return &config, nil
}

// GetConfig returns a configuration by ID, or nil if not found.
func (s *ConfigStore) GetConfig(id string) (*ConfigurationRecord, error) {
	var config ConfigurationRecord
	if err := s.db.Where("id = ?", id).First(&config).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get configuration: %w", err)
	}
	return &config, nil
}

// ListConfigs returns all published configurations, newest first.
func (s *ConfigStore) ListConfigs() ([]ConfigurationRecord, error) {
	var configs []ConfigurationRecord
	if err := s.db.Order("version DESC").Find(&configs).Error; err != nil {
		return nil, fmt.Errorf("list configurations: %w", err)
	}
	return configs, nil
}

// ItemsFor returns the expectation cells of a configuration version.
func (s *ConfigStore) ItemsFor(configID string) ([]ConfigItemRecord, error) {
	return configItems(s.db, configID)
}

func configItems(tx *gorm.DB, configID string) ([]ConfigItemRecord, error) {
	var items []ConfigItemRecord
	if err := tx.Where("config_id = ?", configID).Order("component ASC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list configuration items: %w", err)
	}
	return items, nil
}

// expectationFor returns the configured expectation for a component at a
// tier. Components the configuration does not mention default to
// if_applicable so they never force a deviation.
func expectationFor(items []ConfigItemRecord, component string, tier registry.RiskTier) Expectation {
	for _, item := range items {
		if item.Component == component && item.RiskTier == string(tier) {
			return item.Expectation
		}
	}
	return ExpectationIfApplicable
}

// componentsFor returns the distinct component names of a configuration,
// preserving item order.
func componentsFor(items []ConfigItemRecord) []string {
	seen := make(map[string]bool)
	var components []string
	for _, item := range items {
		if !seen[item.Component] {
			seen[item.Component] = true
			components = append(components, item.Component)
		}
	}
	return components
}
