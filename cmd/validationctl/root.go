package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// apiBase is the path prefix the validation server mounts its API under.
const apiBase = "/api/validation/v1alpha1"

var (
	cfgFile   string
	serverURL string
	outputFmt string
	asUser    string
	asRoles   []string
	asRegions []string
)

var rootCmd = &cobra.Command{
	Use:   "validationctl",
	Short: "CLI for the model validation workflow server",
	Long: `validationctl drives the model validation workflow server: it creates and
moves validation requests through their lifecycle, records approval
decisions, edits validation plans, and reports revalidation due dates.

The caller identity sent with each request comes from the --as-user,
--as-role, and --as-region flags, falling back to the identity section of
the config file ($HOME/.validationctl.yaml by default) or the
VALIDATIONCTL_IDENTITY_* environment variables.`,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: $HOME/.validationctl.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "Validation server URL (default: http://localhost:8080)")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table", "Output format: table, json, yaml")
	rootCmd.PersistentFlags().StringVar(&asUser, "as-user", "", "User principal sent as X-Remote-User")
	rootCmd.PersistentFlags().StringSliceVar(&asRoles, "as-role", nil, "Roles sent as X-Remote-Role (comma-separated)")
	rootCmd.PersistentFlags().StringSliceVar(&asRegions, "as-region", nil, "Regions sent as X-Remote-Region (comma-separated)")

	rootCmd.AddCommand(healthCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(home)
		viper.SetConfigName(".validationctl")
		viper.SetConfigType("yaml")
	}

	viper.SetDefault("server", "http://localhost:8080")

	viper.SetEnvPrefix("VALIDATIONCTL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// A missing config file is fine; flags and env cover everything.
	_ = viper.ReadInConfig()
}

// resolvedServer returns the effective server URL.
// Priority: --server flag > VALIDATIONCTL_SERVER env / config file > default.
func resolvedServer() string {
	if serverURL != "" {
		return serverURL
	}
	return viper.GetString("server")
}

func resolvedUser() string {
	if asUser != "" {
		return asUser
	}
	return viper.GetString("identity.user")
}

func resolvedRoles() []string {
	if len(asRoles) > 0 {
		return asRoles
	}
	return viper.GetStringSlice("identity.roles")
}

func resolvedRegions() []string {
	if len(asRegions) > 0 {
		return asRegions
	}
	return viper.GetStringSlice("identity.regions")
}
