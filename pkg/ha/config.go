// Package ha provides the multi-replica primitives the validation server
// needs: a migration lock so concurrent AutoMigrate calls from several
// replicas serialize.
package ha

import (
	"os"
	"strings"
)

// HAConfig holds configuration for high-availability features.
type HAConfig struct {
	// MigrationLockEnabled controls whether database migration locking
	// is used to prevent concurrent schema changes.
	MigrationLockEnabled bool

	// Identity is the unique identity of this instance. Defaults to the
	// pod name (from POD_NAME env var or hostname).
	Identity string
}

// DefaultHAConfig returns an HAConfig with sensible defaults.
func DefaultHAConfig() *HAConfig {
	return &HAConfig{
		MigrationLockEnabled: true,
		Identity:             defaultIdentity(),
	}
}

// HAConfigFromEnv reads HA configuration from environment variables,
// falling back to defaults for any unset variable.
//
// Environment variables:
//   - VALIDATION_MIGRATION_LOCK_ENABLED: "true" or "false" (default: "true")
//   - POD_NAME: instance identity
func HAConfigFromEnv() *HAConfig {
	cfg := DefaultHAConfig()

	if v := os.Getenv("VALIDATION_MIGRATION_LOCK_ENABLED"); v != "" {
		cfg.MigrationLockEnabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("POD_NAME"); v != "" {
		cfg.Identity = v
	}

	return cfg
}

func defaultIdentity() string {
	if v := os.Getenv("POD_NAME"); v != "" {
		return v
	}
	hostname, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return hostname
}
