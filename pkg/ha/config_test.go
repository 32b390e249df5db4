package ha

import (
	"os"
	"testing"
)

func TestDefaultHAConfig(t *testing.T) {
	cfg := DefaultHAConfig()

	if !cfg.MigrationLockEnabled {
		t.Error("MigrationLockEnabled should be true by default")
	}
	if cfg.Identity == "" {
		t.Error("Identity should default to a non-empty value")
	}
}

func TestDefaultHAConfig_IdentityFromPodName(t *testing.T) {
	t.Setenv("POD_NAME", "validation-server-abc-123")

	cfg := DefaultHAConfig()
	if cfg.Identity != "validation-server-abc-123" {
		t.Errorf("Identity = %q, want %q", cfg.Identity, "validation-server-abc-123")
	}
}

func TestHAConfigFromEnv(t *testing.T) {
	tests := []struct {
		name  string
		envs  map[string]string
		check func(t *testing.T, cfg *HAConfig)
	}{
		{
			name: "defaults when no env vars set",
			envs: map[string]string{},
			check: func(t *testing.T, cfg *HAConfig) {
				if !cfg.MigrationLockEnabled {
					t.Error("expected MigrationLockEnabled=true")
				}
			},
		},
		{
			name: "migration lock disabled",
			envs: map[string]string{
				"VALIDATION_MIGRATION_LOCK_ENABLED": "false",
			},
			check: func(t *testing.T, cfg *HAConfig) {
				if cfg.MigrationLockEnabled {
					t.Error("expected MigrationLockEnabled=false")
				}
			},
		},
		{
			name: "migration lock enabled via 1",
			envs: map[string]string{
				"VALIDATION_MIGRATION_LOCK_ENABLED": "1",
			},
			check: func(t *testing.T, cfg *HAConfig) {
				if !cfg.MigrationLockEnabled {
					t.Error("expected MigrationLockEnabled=true")
				}
			},
		},
		{
			name: "pod name as identity",
			envs: map[string]string{
				"POD_NAME": "pod-xyz",
			},
			check: func(t *testing.T, cfg *HAConfig) {
				if cfg.Identity != "pod-xyz" {
					t.Errorf("Identity = %q, want %q", cfg.Identity, "pod-xyz")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Clear all relevant env vars.
			for _, key := range []string{
				"VALIDATION_MIGRATION_LOCK_ENABLED",
				"POD_NAME",
			} {
				t.Setenv(key, "")
				os.Unsetenv(key)
			}
			// Set test env vars.
			for k, v := range tt.envs {
				t.Setenv(k, v)
			}

			cfg := HAConfigFromEnv()
			tt.check(t, cfg)
		})
	}
}
