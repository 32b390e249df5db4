package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// revalidationView mirrors the server's revalidation computation shape.
type revalidationView struct {
	ModelID            string     `json:"modelId"`
	RiskTier           string     `json:"riskTier,omitempty"`
	Status             string     `json:"status"`
	LastValidatedAt    *time.Time `json:"lastValidatedAt,omitempty"`
	SubmissionDueDate  *time.Time `json:"submissionDueDate,omitempty"`
	ValidationDueDate  *time.Time `json:"validationDueDate,omitempty"`
	GracePeriodEnd     *time.Time `json:"gracePeriodEnd,omitempty"`
	SuccessorRequestID string     `json:"successorRequestId,omitempty"`
}

var revalidationCmd = &cobra.Command{
	Use:   "revalidation",
	Short: "Report revalidation schedules",
}

var revalidationModelCmd = &cobra.Command{
	Use:   "model <model-id>",
	Short: "Show the revalidation schedule of one model",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		var result revalidationView
		if err := client.getJSON(apiBase+"/models/"+args[0]+"/revalidation", &result); err != nil {
			return fmt.Errorf("failed to compute revalidation: %w", err)
		}

		if outputFmt == "json" || outputFmt == "yaml" {
			return printOutput(result)
		}

		headers := []string{"Field", "Value"}
		rows := [][]string{
			{"Model", result.ModelID},
			{"Risk tier", orDash(result.RiskTier)},
			{"Status", result.Status},
			{"Last validated", formatDate(result.LastValidatedAt)},
			{"Submission due", formatDate(result.SubmissionDueDate)},
			{"Validation due", formatDate(result.ValidationDueDate)},
			{"Grace ends", formatDate(result.GracePeriodEnd)},
			{"Successor", orDash(result.SuccessorRequestID)},
		}
		printTable(headers, rows)
		return nil
	},
}

var reportStatus string

var revalidationReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show revalidation schedules for all active models",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		path := apiBase + "/revalidation"
		if reportStatus != "" {
			path += "?status=" + reportStatus
		}

		var result struct {
			Models []revalidationView `json:"models"`
		}
		if err := client.getJSON(path, &result); err != nil {
			return fmt.Errorf("failed to compute revalidation report: %w", err)
		}

		if outputFmt == "json" || outputFmt == "yaml" {
			return printOutput(result)
		}

		headers := []string{"Model", "Tier", "Status", "Submission Due", "Validation Due", "Grace Ends"}
		rows := make([][]string, 0, len(result.Models))
		for _, m := range result.Models {
			rows = append(rows, []string{
				m.ModelID,
				orDash(m.RiskTier),
				m.Status,
				formatDate(m.SubmissionDueDate),
				formatDate(m.ValidationDueDate),
				formatDate(m.GracePeriodEnd),
			})
		}
		printTable(headers, rows)
		return nil
	},
}

var revalidationCascadeCmd = &cobra.Command{
	Use:   "tier-cascade <model-id>",
	Short: "Recompute the validated tier of open requests after a tier change",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		if err := client.postJSON(apiBase+"/models/"+args[0]+"/tier-cascade", map[string]any{}, nil); err != nil {
			return fmt.Errorf("failed to cascade tier change: %w", err)
		}
		fmt.Printf("Tier change cascaded for model %s\n", args[0])
		return nil
	},
}

func init() {
	revalidationReportCmd.Flags().StringVar(&reportStatus, "status", "", "Filter by revalidation status")

	revalidationCmd.AddCommand(revalidationModelCmd)
	revalidationCmd.AddCommand(revalidationReportCmd)
	revalidationCmd.AddCommand(revalidationCascadeCmd)

	rootCmd.AddCommand(revalidationCmd)
}
