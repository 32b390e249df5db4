package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// planView mirrors the server's plan response shape.
type planView struct {
	ID                string     `json:"id"`
	RequestID         string     `json:"requestId"`
	ConfigID          string     `json:"configId"`
	Locked            bool       `json:"locked"`
	LockedAt          *time.Time `json:"lockedAt,omitempty"`
	MaterialDeviation bool       `json:"materialDeviation"`
	OverallRationale  string     `json:"overallRationale,omitempty"`
	Components        []struct {
		Component   string `json:"component"`
		Expectation string `json:"expectation"`
		Treatment   string `json:"treatment"`
		IsDeviation bool   `json:"isDeviation"`
		Rationale   string `json:"rationale,omitempty"`
	} `json:"components"`
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Manage validation plans",
}

var planGetCmd = &cobra.Command{
	Use:   "get <request-id>",
	Short: "Show the validation plan of a request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		var plan planView
		if err := client.getJSON(apiBase+"/requests/"+args[0]+"/plan", &plan); err != nil {
			return fmt.Errorf("failed to get plan: %w", err)
		}

		if outputFmt == "json" || outputFmt == "yaml" {
			return printOutput(plan)
		}

		state := "unlocked"
		if plan.Locked {
			state = "locked"
		}
		fmt.Printf("Plan %s (%s, config %s)\n", plan.ID, state, truncate(plan.ConfigID, 12))
		if plan.MaterialDeviation {
			fmt.Printf("Material deviation: %s\n", orDash(plan.OverallRationale))
		}

		headers := []string{"Component", "Expectation", "Treatment", "Deviation", "Rationale"}
		rows := make([][]string, 0, len(plan.Components))
		for _, c := range plan.Components {
			rows = append(rows, []string{
				c.Component,
				c.Expectation,
				c.Treatment,
				fmt.Sprintf("%t", c.IsDeviation),
				truncate(orDash(c.Rationale), 40),
			})
		}
		printTable(headers, rows)
		return nil
	},
}

var (
	planMaterial  bool
	planRationale string
)

var planUpdateCmd = &cobra.Command{
	Use:   "update <request-id>",
	Short: "Update plan-level deviation fields",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		body := map[string]any{}
		if cmd.Flags().Changed("material-deviation") {
			body["materialDeviation"] = planMaterial
		}
		if cmd.Flags().Changed("rationale") {
			body["overallRationale"] = planRationale
		}
		if len(body) == 0 {
			return fmt.Errorf("nothing to update: pass --material-deviation and/or --rationale")
		}

		var plan planView
		if err := client.patchJSON(apiBase+"/requests/"+args[0]+"/plan", body, &plan); err != nil {
			return fmt.Errorf("failed to update plan: %w", err)
		}

		if outputFmt == "json" || outputFmt == "yaml" {
			return printOutput(plan)
		}
		fmt.Printf("Updated plan %s\n", plan.ID)
		return nil
	},
}

var (
	componentTreatment string
	componentRationale string
)

var planSetComponentCmd = &cobra.Command{
	Use:   "set-component <request-id> <component>",
	Short: "Set the treatment of a plan component",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if componentTreatment == "" {
			return fmt.Errorf("--treatment is required")
		}
		client := newClient()

		body := map[string]any{"treatment": componentTreatment}
		if cmd.Flags().Changed("rationale") {
			body["rationale"] = componentRationale
		}

		var result map[string]any
		path := fmt.Sprintf("%s/requests/%s/plan/components/%s", apiBase, args[0], args[1])
		if err := client.patchJSON(path, body, &result); err != nil {
			return fmt.Errorf("failed to update component: %w", err)
		}

		if outputFmt == "json" || outputFmt == "yaml" {
			return printOutput(result)
		}
		fmt.Printf("Component %s set to %s\n", args[1], componentTreatment)
		return nil
	},
}

var forceResetConfirm bool

var planForceResetCmd = &cobra.Command{
	Use:   "force-reset <request-id>",
	Short: "Regenerate a plan from the active configuration (admin only)",
	Long: `Force-reset discards all component treatments, rebuilds the plan from the
active configuration, and voids pending approvals. It requires --confirm.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !forceResetConfirm {
			return fmt.Errorf("force-reset is destructive: pass --confirm to proceed")
		}
		client := newClient()

		body := map[string]any{"confirm": true}
		var plan planView
		if err := client.postJSON(apiBase+"/requests/"+args[0]+"/plan/force-reset", body, &plan); err != nil {
			return fmt.Errorf("failed to force-reset plan: %w", err)
		}

		if outputFmt == "json" || outputFmt == "yaml" {
			return printOutput(plan)
		}
		fmt.Printf("Plan %s reset to config %s\n", plan.ID, truncate(plan.ConfigID, 12))
		return nil
	},
}

var modelResetConfirm bool

var planForceResetModelCmd = &cobra.Command{
	Use:   "force-reset-model <model-id>",
	Short: "Regenerate the plans of all open requests for a model (admin only)",
	Long: `Force-reset-model rebuilds the plan of every open request linked to the
model from the active configuration and voids their pending approvals. It
requires --confirm.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !modelResetConfirm {
			return fmt.Errorf("force-reset-model is destructive: pass --confirm to proceed")
		}
		client := newClient()

		body := map[string]any{"confirm": true}
		var result struct {
			ResetRequestIDs []string `json:"resetRequestIds"`
		}
		if err := client.postJSON(apiBase+"/models/"+args[0]+"/force-reset", body, &result); err != nil {
			return fmt.Errorf("failed to force-reset plans: %w", err)
		}

		if outputFmt == "json" || outputFmt == "yaml" {
			return printOutput(result)
		}
		fmt.Printf("Reset %d plan(s) for model %s\n", len(result.ResetRequestIDs), args[0])
		for _, id := range result.ResetRequestIDs {
			fmt.Printf("  %s\n", id)
		}
		return nil
	},
}

// configView mirrors the server's plan configuration response shape.
type configView struct {
	ID          string `json:"id"`
	Version     int    `json:"version"`
	Description string `json:"description,omitempty"`
	PublishedBy string `json:"publishedBy,omitempty"`
	CreatedAt   string `json:"createdAt"`
}

var planConfigsCmd = &cobra.Command{
	Use:   "plan-configs",
	Short: "Manage plan configuration versions",
}

var publishFile string

var planConfigsPublishCmd = &cobra.Command{
	Use:   "publish -f <file>",
	Short: "Publish a new plan configuration version (admin only)",
	Long: `Publish reads a YAML file describing the expectation matrix:

  description: tightened tier-1 expectations
  items:
    - component: conceptual_soundness
      riskTier: tier_1
      expectation: required
    - component: ongoing_monitoring
      riskTier: tier_3
      expectation: if_applicable

Publishing never touches existing plans; activate the version to apply it
to new requests.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if publishFile == "" {
			return fmt.Errorf("-f is required")
		}
		data, err := os.ReadFile(publishFile)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", publishFile, err)
		}

		var body struct {
			Description string `yaml:"description" json:"description,omitempty"`
			Items       []struct {
				Component   string `yaml:"component" json:"component"`
				RiskTier    string `yaml:"riskTier" json:"riskTier"`
				Expectation string `yaml:"expectation" json:"expectation"`
			} `yaml:"items" json:"items"`
		}
		if err := yaml.Unmarshal(data, &body); err != nil {
			return fmt.Errorf("failed to parse %s: %w", publishFile, err)
		}

		client := newClient()
		var result configView
		if err := client.postJSON(apiBase+"/plan-configurations", body, &result); err != nil {
			return fmt.Errorf("failed to publish configuration: %w", err)
		}

		if outputFmt == "json" || outputFmt == "yaml" {
			return printOutput(result)
		}
		fmt.Printf("Published configuration %s (version %d)\n", result.ID, result.Version)
		return nil
	},
}

var planConfigsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List plan configuration versions",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		var result struct {
			Configurations []configView `json:"configurations"`
		}
		if err := client.getJSON(apiBase+"/plan-configurations", &result); err != nil {
			return fmt.Errorf("failed to list configurations: %w", err)
		}

		if outputFmt == "json" || outputFmt == "yaml" {
			return printOutput(result)
		}

		headers := []string{"ID", "Version", "Published By", "Description"}
		rows := make([][]string, 0, len(result.Configurations))
		for _, c := range result.Configurations {
			rows = append(rows, []string{
				truncate(c.ID, 12),
				fmt.Sprintf("%d", c.Version),
				orDash(c.PublishedBy),
				truncate(orDash(c.Description), 50),
			})
		}
		printTable(headers, rows)
		return nil
	},
}

var planConfigsGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Get a plan configuration with its items",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		result, err := client.getRaw(apiBase + "/plan-configurations/" + args[0])
		if err != nil {
			return fmt.Errorf("failed to get configuration: %w", err)
		}
		return printOutput(result)
	},
}

var planConfigsActiveCmd = &cobra.Command{
	Use:   "active",
	Short: "Show the active plan configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		result, err := client.getRaw(apiBase + "/plan-configurations/active")
		if err != nil {
			return fmt.Errorf("failed to get active configuration: %w", err)
		}
		return printOutput(result)
	},
}

var planConfigsActivateCmd = &cobra.Command{
	Use:   "activate <id>",
	Short: "Make a configuration version the active one (admin only)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		if err := client.postJSON(apiBase+"/plan-configurations/"+args[0]+"/activate", map[string]any{}, nil); err != nil {
			return fmt.Errorf("failed to activate configuration: %w", err)
		}
		fmt.Printf("Configuration %s is now active\n", args[0])
		return nil
	},
}

func init() {
	planUpdateCmd.Flags().BoolVar(&planMaterial, "material-deviation", false, "Mark the plan as materially deviating")
	planUpdateCmd.Flags().StringVar(&planRationale, "rationale", "", "Overall deviation rationale")
	planSetComponentCmd.Flags().StringVar(&componentTreatment, "treatment", "", "Treatment: planned, not_planned, not_applicable")
	planSetComponentCmd.Flags().StringVar(&componentRationale, "rationale", "", "Deviation rationale")
	planForceResetCmd.Flags().BoolVar(&forceResetConfirm, "confirm", false, "Confirm the destructive reset")
	planForceResetModelCmd.Flags().BoolVar(&modelResetConfirm, "confirm", false, "Confirm the destructive reset")
	planConfigsPublishCmd.Flags().StringVarP(&publishFile, "file", "f", "", "YAML file with the expectation matrix")

	planCmd.AddCommand(planGetCmd)
	planCmd.AddCommand(planUpdateCmd)
	planCmd.AddCommand(planSetComponentCmd)
	planCmd.AddCommand(planForceResetCmd)
	planCmd.AddCommand(planForceResetModelCmd)

	planConfigsCmd.AddCommand(planConfigsPublishCmd)
	planConfigsCmd.AddCommand(planConfigsListCmd)
	planConfigsCmd.AddCommand(planConfigsGetCmd)
	planConfigsCmd.AddCommand(planConfigsActiveCmd)
	planConfigsCmd.AddCommand(planConfigsActivateCmd)

	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(planConfigsCmd)
}
