package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// ruleView mirrors the server's conditional rule response shape.
type ruleView struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Enabled           bool     `json:"enabled"`
	ValidationTypes   []string `json:"validationTypes,omitempty"`
	RiskTiers         []string `json:"riskTiers,omitempty"`
	GovernanceRegions []string `json:"governanceRegions,omitempty"`
	DeploymentRegions []string `json:"deploymentRegions,omitempty"`
	RequiredRoles     []string `json:"requiredRoles"`
}

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage conditional approval rules",
}

var (
	ruleName     string
	ruleDisabled bool
	ruleTypes    []string
	ruleTiers    []string
	ruleGovRegs  []string
	ruleDepRegs  []string
	ruleRoles    []string
)

func ruleBody() map[string]any {
	enabled := !ruleDisabled
	return map[string]any{
		"name":              ruleName,
		"enabled":           &enabled,
		"validationTypes":   ruleTypes,
		"riskTiers":         ruleTiers,
		"governanceRegions": ruleGovRegs,
		"deploymentRegions": ruleDepRegs,
		"requiredRoles":     ruleRoles,
	}
}

var rulesCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a conditional approval rule (admin only)",
	Long: `Create a rule that adds role-holder approvals to matching requests.

Empty filters match everything; a populated filter must match the request.
At least one --role is required.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(ruleRoles) == 0 {
			return fmt.Errorf("at least one --role is required")
		}
		client := newClient()

		var result ruleView
		if err := client.postJSON(apiBase+"/approval-rules", ruleBody(), &result); err != nil {
			return fmt.Errorf("failed to create rule: %w", err)
		}

		if outputFmt == "json" || outputFmt == "yaml" {
			return printOutput(result)
		}
		fmt.Printf("Created rule %s (%s)\n", result.ID, result.Name)
		return nil
	},
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List conditional approval rules",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		var result struct {
			Rules []ruleView `json:"rules"`
		}
		if err := client.getJSON(apiBase+"/approval-rules", &result); err != nil {
			return fmt.Errorf("failed to list rules: %w", err)
		}

		if outputFmt == "json" || outputFmt == "yaml" {
			return printOutput(result)
		}

		headers := []string{"ID", "Name", "Enabled", "Tiers", "Roles"}
		rows := make([][]string, 0, len(result.Rules))
		for _, r := range result.Rules {
			rows = append(rows, []string{
				truncate(r.ID, 12),
				r.Name,
				fmt.Sprintf("%t", r.Enabled),
				orDash(strings.Join(r.RiskTiers, ",")),
				strings.Join(r.RequiredRoles, ","),
			})
		}
		printTable(headers, rows)
		return nil
	},
}

var rulesGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Get a conditional approval rule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		result, err := client.getRaw(apiBase + "/approval-rules/" + args[0])
		if err != nil {
			return fmt.Errorf("failed to get rule: %w", err)
		}
		return printOutput(result)
	},
}

var rulesUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Replace a conditional approval rule (admin only)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(ruleRoles) == 0 {
			return fmt.Errorf("at least one --role is required")
		}
		client := newClient()

		var result ruleView
		if err := client.putJSON(apiBase+"/approval-rules/"+args[0], ruleBody(), &result); err != nil {
			return fmt.Errorf("failed to update rule: %w", err)
		}

		if outputFmt == "json" || outputFmt == "yaml" {
			return printOutput(result)
		}
		fmt.Printf("Updated rule %s\n", result.ID)
		return nil
	},
}

var rulesDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a conditional approval rule (admin only)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		if err := client.deleteJSON(apiBase + "/approval-rules/" + args[0]); err != nil {
			return fmt.Errorf("failed to delete rule: %w", err)
		}
		fmt.Printf("Deleted rule %s\n", args[0])
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{rulesCreateCmd, rulesUpdateCmd} {
		cmd.Flags().StringVar(&ruleName, "name", "", "Rule name")
		cmd.Flags().BoolVar(&ruleDisabled, "disabled", false, "Create the rule disabled")
		cmd.Flags().StringSliceVar(&ruleTypes, "validation-type", nil, "Validation type filter (repeatable)")
		cmd.Flags().StringSliceVar(&ruleTiers, "risk-tier", nil, "Risk tier filter (repeatable)")
		cmd.Flags().StringSliceVar(&ruleGovRegs, "governance-region", nil, "Governance region code filter (repeatable)")
		cmd.Flags().StringSliceVar(&ruleDepRegs, "deployment-region", nil, "Deployment region code filter (repeatable)")
		cmd.Flags().StringSliceVar(&ruleRoles, "role", nil, "Role whose approval the rule requires (repeatable)")
	}

	rulesCmd.AddCommand(rulesCreateCmd)
	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.AddCommand(rulesGetCmd)
	rulesCmd.AddCommand(rulesUpdateCmd)
	rulesCmd.AddCommand(rulesDeleteCmd)

	rootCmd.AddCommand(rulesCmd)
}
