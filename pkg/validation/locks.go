package validation

import (
	"fmt"
	"hash/crc32"
	"sort"

	"gorm.io/gorm"
)

// acquireModelCreationLocks takes a transaction-scoped advisory lock per
// model so that concurrent creates against the same model serialize and the
// duplicate-request check stays race-free. Locks are taken in sorted order
// to avoid deadlocks between creates that share models. PostgreSQL only;
// other databases rely on the unique link index as a backstop.
func acquireModelCreationLocks(tx *gorm.DB, modelIDs []string) error {
	if tx.Dialector.Name() != "postgres" {
		return nil
	}

	sorted := make([]string, len(modelIDs))
	copy(sorted, modelIDs)
	sort.Strings(sorted)

	for _, id := range sorted {
		lockID := int64(crc32.ChecksumIEEE([]byte("validation-request-create:" + id)))
		if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", lockID).Error; err != nil {
			return fmt.Errorf("acquire creation lock for model %s: %w", id, err)
		}
	}
	return nil
}
