package registry

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Store provides read access to registry facts and the documented version
// status sync mutation.
type Store struct {
	db *gorm.DB
}

// NewStore creates a new registry Store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates or updates the registry tables.
func (s *Store) AutoMigrate() error {
	for _, model := range []any{
		&ModelRecord{},
		&ModelVersionRecord{},
		&RegionRecord{},
		&VersionRegionLink{},
		&RiskAssessmentRecord{},
	} {
		if err := s.db.AutoMigrate(model); err != nil {
			return fmt.Errorf("auto-migrate registry tables: %w", err)
		}
	}
	return nil
}

// GetModel retrieves a model by ID. Returns nil, nil when absent.
func (s *Store) GetModel(id string) (*ModelRecord, error) {
	var record ModelRecord
	err := s.db.Where("id = ?", id).First(&record).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get model: %w", err)
	}
	return &record, nil
}

// GetModels retrieves several models at once, keyed by ID.
func (s *Store) GetModels(ids []string) (map[string]*ModelRecord, error) {
	var records []ModelRecord
	if err := s.db.Where("id IN ?", ids).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("get models: %w", err)
	}
	out := make(map[string]*ModelRecord, len(records))
	for i := range records {
		out[records[i].ID] = &records[i]
	}
	return out, nil
}

// GetVersion retrieves a model version by ID. Returns nil, nil when absent.
func (s *Store) GetVersion(id string) (*ModelVersionRecord, error) {
	var record ModelVersionRecord
	err := s.db.Where("id = ?", id).First(&record).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get model version: %w", err)
	}
	return &record, nil
}

// RegionsForVersion returns the regions a version is explicitly scoped to.
func (s *Store) RegionsForVersion(versionID string) ([]RegionRecord, error) {
	var records []RegionRecord
	err := s.db.
		Joins("JOIN version_regions ON version_regions.region_id = regions.id").
		Where("version_regions.version_id = ?", versionID).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("regions for version: %w", err)
	}
	return records, nil
}

// ListRegions returns all regions, optionally filtered by kind.
func (s *Store) ListRegions(kind RegionKind) ([]RegionRecord, error) {
	query := s.db.Order("code ASC")
	if kind != "" {
		query = query.Where("kind = ?", kind)
	}
	var records []RegionRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list regions: %w", err)
	}
	return records, nil
}

// AssessmentCurrent reports whether the risk assessment for a model is
// complete and not stale. A missing assessment row counts as incomplete.
// When the assessment carries no explicit expiry, it goes stale
// maxAgeMonths after its assessed_at date; maxAgeMonths <= 0 disables the
// age bound.
func (s *Store) AssessmentCurrent(modelID string, now time.Time, maxAgeMonths int) (bool, error) {
	var record RiskAssessmentRecord
	err := s.db.Where("model_id = ?", modelID).First(&record).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return false, nil
		}
		return false, fmt.Errorf("get risk assessment: %w", err)
	}
	if !record.Complete {
		return false, nil
	}
	if record.StaleAfter != nil {
		return !now.After(*record.StaleAfter), nil
	}
	if maxAgeMonths > 0 && !record.AssessedAt.IsZero() &&
		now.After(record.AssessedAt.AddDate(0, maxAgeMonths, 0)) {
		return false, nil
	}
	return true, nil
}

// SyncVersionStatus updates a version's status inside the caller's
// transaction. This is the only registry mutation the workflow core
// performs, as a documented side effect of request transitions.
func (s *Store) SyncVersionStatus(tx *gorm.DB, versionID string, from, to VersionStatus) error {
	result := tx.Model(&ModelVersionRecord{}).
		Where("id = ? AND status = ?", versionID, string(from)).
		Update("status", string(to))
	if result.Error != nil {
		return fmt.Errorf("sync version status: %w", result.Error)
	}
	return nil
}

// UpsertModel creates or replaces a model record. Used by registry
// ingestion and test fixtures, not by the workflow core.
func (s *Store) UpsertModel(record *ModelRecord) error {
	if err := s.db.Save(record).Error; err != nil {
		return fmt.Errorf("upsert model: %w", err)
	}
	return nil
}

// UpsertVersion creates or replaces a model version record.
func (s *Store) UpsertVersion(record *ModelVersionRecord) error {
	if err := s.db.Save(record).Error; err != nil {
		return fmt.Errorf("upsert model version: %w", err)
	}
	return nil
}

// UpsertRegion creates or replaces a region record.
func (s *Store) UpsertRegion(record *RegionRecord) error {
	if err := s.db.Save(record).Error; err != nil {
		return fmt.Errorf("upsert region: %w", err)
	}
	return nil
}

// LinkVersionRegion scopes a version to a region.
func (s *Store) LinkVersionRegion(versionID, regionID string) error {
	link := &VersionRegionLink{VersionID: versionID, RegionID: regionID}
	if err := s.db.Save(link).Error; err != nil {
		return fmt.Errorf("link version region: %w", err)
	}
	return nil
}

// UpsertAssessment creates or replaces a risk assessment record.
func (s *Store) UpsertAssessment(record *RiskAssessmentRecord) error {
	if err := s.db.Save(record).Error; err != nil {
		return fmt.Errorf("upsert risk assessment: %w", err)
	}
	return nil
}
