package main

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// requestView mirrors the server's request response shape.
type requestView struct {
	ID                 string     `json:"id"`
	Status             string     `json:"status"`
	Type               string     `json:"validationType"`
	Priority           string     `json:"priority"`
	TargetDate         *time.Time `json:"targetDate,omitempty"`
	SubmissionDate     *time.Time `json:"submissionDate,omitempty"`
	SubmissionReceived bool       `json:"submissionReceived"`
	ValidatedRiskTier  string     `json:"validatedRiskTier,omitempty"`
	ScopeSummary       string     `json:"scopeSummary,omitempty"`
	OutcomeRating      string     `json:"outcomeRating,omitempty"`
	RecommendationIDs  []string   `json:"recommendationIds,omitempty"`
	LimitationIDs      []string   `json:"limitationIds,omitempty"`
	MonitoringPlanRef  string     `json:"monitoringPlanRef,omitempty"`
	CompletedAt        *time.Time `json:"completedAt,omitempty"`
	Requester          string     `json:"requester"`
	CreatedAt          string     `json:"createdAt"`
	AllowedTransitions []string   `json:"allowedTransitions,omitempty"`
}

var requestsCmd = &cobra.Command{
	Use:   "requests",
	Short: "Manage validation requests",
}

var (
	listStatus   string
	listType     string
	listPriority string
	listModel    string
	listAssignee string
	listPageSize int
	listToken    string
)

var requestsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List validation requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		q := url.Values{}
		if listStatus != "" {
			q.Set("status", listStatus)
		}
		if listType != "" {
			q.Set("validationType", listType)
		}
		if listPriority != "" {
			q.Set("priority", listPriority)
		}
		if listModel != "" {
			q.Set("modelId", listModel)
		}
		if listAssignee != "" {
			q.Set("assignee", listAssignee)
		}
		if listPageSize > 0 {
			q.Set("pageSize", fmt.Sprintf("%d", listPageSize))
		}
		if listToken != "" {
			q.Set("pageToken", listToken)
		}
		path := apiBase + "/requests"
		if len(q) > 0 {
			path += "?" + q.Encode()
		}

		var result struct {
			Requests      []requestView `json:"requests"`
			NextPageToken string        `json:"nextPageToken"`
		}
		if err := client.getJSON(path, &result); err != nil {
			return fmt.Errorf("failed to list requests: %w", err)
		}

		if outputFmt == "json" || outputFmt == "yaml" {
			return printOutput(result)
		}

		headers := []string{"ID", "Type", "Status", "Priority", "Tier", "Target", "Requester"}
		rows := make([][]string, 0, len(result.Requests))
		for _, r := range result.Requests {
			rows = append(rows, []string{
				truncate(r.ID, 12),
				r.Type,
				r.Status,
				r.Priority,
				orDash(r.ValidatedRiskTier),
				formatDate(r.TargetDate),
				r.Requester,
			})
		}
		printTable(headers, rows)
		if result.NextPageToken != "" {
			fmt.Printf("Next page token: %s\n", result.NextPageToken)
		}
		return nil
	},
}

var requestsGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Get a validation request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		var req requestView
		if err := client.getJSON(apiBase+"/requests/"+args[0], &req); err != nil {
			return fmt.Errorf("failed to get request: %w", err)
		}

		if outputFmt == "json" || outputFmt == "yaml" {
			return printOutput(req)
		}

		headers := []string{"Field", "Value"}
		rows := [][]string{
			{"ID", req.ID},
			{"Type", req.Type},
			{"Status", req.Status},
			{"Priority", req.Priority},
			{"Risk tier", orDash(req.ValidatedRiskTier)},
			{"Target date", formatDate(req.TargetDate)},
			{"Submission", formatDate(req.SubmissionDate)},
			{"Outcome", orDash(req.OutcomeRating)},
			{"Completed", formatDate(req.CompletedAt)},
			{"Requester", req.Requester},
			{"Next", strings.Join(req.AllowedTransitions, ", ")},
		}
		printTable(headers, rows)
		return nil
	},
}

var (
	createType         string
	createPriority     string
	createModels       []string
	createRegions      []string
	createScopeSummary string
	createTargetDate   string
	createPriorRequest string
)

var requestsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a validation request",
	Long: `Create a validation request covering one or more model versions.

Each --model takes "modelId" or "modelId:versionId". Regions given with
--region pin the approval scope; without them the scope is derived from
the linked versions' deployments.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if createType == "" {
			return fmt.Errorf("--type is required")
		}
		if len(createModels) == 0 {
			return fmt.Errorf("at least one --model is required")
		}

		models := make([]map[string]string, 0, len(createModels))
		for _, m := range createModels {
			link := map[string]string{}
			if id, version, ok := strings.Cut(m, ":"); ok {
				link["modelId"] = id
				link["versionId"] = version
			} else {
				link["modelId"] = m
			}
			if createPriorRequest != "" {
				link["priorRequestId"] = createPriorRequest
			}
			models = append(models, link)
		}

		body := map[string]any{
			"validationType": createType,
			"priority":       createPriority,
			"models":         models,
		}
		if createScopeSummary != "" {
			body["scopeSummary"] = createScopeSummary
		}
		if len(createRegions) > 0 {
			body["regionIds"] = createRegions
		}
		if createTargetDate != "" {
			t, err := time.Parse("2006-01-02", createTargetDate)
			if err != nil {
				return fmt.Errorf("invalid --target-date (want YYYY-MM-DD): %w", err)
			}
			body["targetDate"] = t
		}

		client := newClient()
		var result struct {
			Request  requestView `json:"request"`
			Warnings []string    `json:"warnings"`
		}
		if err := client.postJSON(apiBase+"/requests", body, &result); err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}

		for _, w := range result.Warnings {
			fmt.Printf("Warning: %s\n", w)
		}
		if outputFmt == "json" || outputFmt == "yaml" {
			return printOutput(result.Request)
		}
		fmt.Printf("Created request %s (%s, %s)\n", result.Request.ID, result.Request.Type, result.Request.Status)
		return nil
	},
}

var transitionReason string

var requestsTransitionCmd = &cobra.Command{
	Use:   "transition <id> <status>",
	Short: "Move a request to another status",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		body := map[string]any{
			"to":     args[1],
			"reason": transitionReason,
		}
		var req requestView
		if err := client.postJSON(apiBase+"/requests/"+args[0]+"/transition", body, &req); err != nil {
			return fmt.Errorf("failed to transition: %w", err)
		}

		if outputFmt == "json" || outputFmt == "yaml" {
			return printOutput(req)
		}
		fmt.Printf("Request %s is now %s\n", req.ID, req.Status)
		return nil
	},
}

var resumeReason string

var requestsResumeCmd = &cobra.Command{
	Use:   "resume <id>",
	Short: "Resume a request from on_hold",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		body := map[string]any{"reason": resumeReason}
		var req requestView
		if err := client.postJSON(apiBase+"/requests/"+args[0]+"/resume", body, &req); err != nil {
			return fmt.Errorf("failed to resume: %w", err)
		}

		if outputFmt == "json" || outputFmt == "yaml" {
			return printOutput(req)
		}
		fmt.Printf("Request %s resumed to %s\n", req.ID, req.Status)
		return nil
	},
}

var resubmitReason string

var requestsResubmitCmd = &cobra.Command{
	Use:   "resubmit <id>",
	Short: "Resubmit a request that was sent back for revision",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		body := map[string]any{"reason": resubmitReason}
		var req requestView
		if err := client.postJSON(apiBase+"/requests/"+args[0]+"/resubmit", body, &req); err != nil {
			return fmt.Errorf("failed to resubmit: %w", err)
		}

		if outputFmt == "json" || outputFmt == "yaml" {
			return printOutput(req)
		}
		fmt.Printf("Request %s resubmitted (%s)\n", req.ID, req.Status)
		return nil
	},
}

var assignRole string

var requestsAssignCmd = &cobra.Command{
	Use:   "assign <id> <user>",
	Short: "Assign a validator or reviewer to a request",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		body := map[string]any{
			"user": args[1],
			"role": assignRole,
		}
		var result map[string]any
		if err := client.postJSON(apiBase+"/requests/"+args[0]+"/assignments", body, &result); err != nil {
			return fmt.Errorf("failed to assign: %w", err)
		}

		if outputFmt == "json" || outputFmt == "yaml" {
			return printOutput(result)
		}
		fmt.Printf("Assigned %s as %s on request %s\n", args[1], assignRole, args[0])
		return nil
	},
}

var requestsSignoffCmd = &cobra.Command{
	Use:   "signoff <id>",
	Short: "Record reviewer sign-off on a request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		var result map[string]any
		if err := client.postJSON(apiBase+"/requests/"+args[0]+"/signoff", map[string]any{}, &result); err != nil {
			return fmt.Errorf("failed to sign off: %w", err)
		}
		fmt.Printf("Sign-off recorded on request %s\n", args[0])
		return nil
	},
}

var (
	outcomeRating          string
	outcomeRecommendations []string
	outcomeLimitations     []string
	outcomeMonitoringRef   string
)

var requestsOutcomeCmd = &cobra.Command{
	Use:   "outcome <id>",
	Short: "Record the validation outcome for a request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if outcomeRating == "" {
			return fmt.Errorf("--rating is required")
		}
		client := newClient()

		body := map[string]any{
			"rating":            outcomeRating,
			"recommendationIds": outcomeRecommendations,
			"limitationIds":     outcomeLimitations,
		}
		if outcomeMonitoringRef != "" {
			body["monitoringPlanRef"] = outcomeMonitoringRef
		}
		var req requestView
		if err := client.postJSON(apiBase+"/requests/"+args[0]+"/outcome", body, &req); err != nil {
			return fmt.Errorf("failed to record outcome: %w", err)
		}

		if outputFmt == "json" || outputFmt == "yaml" {
			return printOutput(req)
		}
		fmt.Printf("Outcome %q recorded on request %s\n", req.OutcomeRating, req.ID)
		return nil
	},
}

var requestsSubmissionCmd = &cobra.Command{
	Use:   "submission <id>",
	Short: "Mark the model submission package as received",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		var req requestView
		if err := client.postJSON(apiBase+"/requests/"+args[0]+"/submission", map[string]any{}, &req); err != nil {
			return fmt.Errorf("failed to mark submission: %w", err)
		}
		fmt.Printf("Submission recorded on request %s (%s)\n", req.ID, formatDate(req.SubmissionDate))
		return nil
	},
}

var requestsHistoryCmd = &cobra.Command{
	Use:   "history <id>",
	Short: "Show the status history of a request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		var result struct {
			History []struct {
				OldStatus string `json:"oldStatus"`
				NewStatus string `json:"newStatus"`
				Actor     string `json:"actor"`
				Reason    string `json:"reason"`
				CreatedAt string `json:"createdAt"`
			} `json:"history"`
		}
		if err := client.getJSON(apiBase+"/requests/"+args[0]+"/history", &result); err != nil {
			return fmt.Errorf("failed to get history: %w", err)
		}

		if outputFmt == "json" || outputFmt == "yaml" {
			return printOutput(result)
		}

		headers := []string{"From", "To", "Actor", "Reason", "At"}
		rows := make([][]string, 0, len(result.History))
		for _, h := range result.History {
			rows = append(rows, []string{
				orDash(h.OldStatus),
				h.NewStatus,
				h.Actor,
				truncate(orDash(h.Reason), 40),
				h.CreatedAt,
			})
		}
		printTable(headers, rows)
		return nil
	},
}

func init() {
	requestsListCmd.Flags().StringVar(&listStatus, "status", "", "Filter by status")
	requestsListCmd.Flags().StringVar(&listType, "type", "", "Filter by validation type")
	requestsListCmd.Flags().StringVar(&listPriority, "priority", "", "Filter by priority")
	requestsListCmd.Flags().StringVar(&listModel, "model", "", "Filter by linked model ID")
	requestsListCmd.Flags().StringVar(&listAssignee, "assignee", "", "Filter by assigned user")
	requestsListCmd.Flags().IntVar(&listPageSize, "page-size", 0, "Page size")
	requestsListCmd.Flags().StringVar(&listToken, "page-token", "", "Page token from a previous list call")

	requestsCreateCmd.Flags().StringVar(&createType, "type", "", "Validation type: full_validation, interim_validation, targeted_validation, compliance_review")
	requestsCreateCmd.Flags().StringVar(&createPriority, "priority", "medium", "Priority: low, medium, high, critical")
	requestsCreateCmd.Flags().StringSliceVar(&createModels, "model", nil, "Model to cover, as modelId or modelId:versionId (repeatable)")
	requestsCreateCmd.Flags().StringSliceVar(&createRegions, "region", nil, "Region IDs pinning the approval scope (repeatable)")
	requestsCreateCmd.Flags().StringVar(&createScopeSummary, "scope-summary", "", "Free-text scope summary")
	requestsCreateCmd.Flags().StringVar(&createTargetDate, "target-date", "", "Target completion date (YYYY-MM-DD)")
	requestsCreateCmd.Flags().StringVar(&createPriorRequest, "prior-request", "", "Prior request this one supersedes")

	requestsTransitionCmd.Flags().StringVar(&transitionReason, "reason", "", "Reason recorded in the status history")
	requestsResumeCmd.Flags().StringVar(&resumeReason, "reason", "", "Reason recorded in the status history")
	requestsResubmitCmd.Flags().StringVar(&resubmitReason, "reason", "", "Reason recorded in the status history")
	requestsAssignCmd.Flags().StringVar(&assignRole, "role", "validator", "Assignment role: primary_validator, validator, reviewer")

	requestsOutcomeCmd.Flags().StringVar(&outcomeRating, "rating", "", "Outcome rating")
	requestsOutcomeCmd.Flags().StringSliceVar(&outcomeRecommendations, "recommendation", nil, "Recommendation IDs (repeatable)")
	requestsOutcomeCmd.Flags().StringSliceVar(&outcomeLimitations, "limitation", nil, "Limitation IDs (repeatable)")
	requestsOutcomeCmd.Flags().StringVar(&outcomeMonitoringRef, "monitoring-plan-ref", "", "Ongoing monitoring plan reference")

	requestsCmd.AddCommand(requestsListCmd)
	requestsCmd.AddCommand(requestsGetCmd)
	requestsCmd.AddCommand(requestsCreateCmd)
	requestsCmd.AddCommand(requestsTransitionCmd)
	requestsCmd.AddCommand(requestsResumeCmd)
	requestsCmd.AddCommand(requestsResubmitCmd)
	requestsCmd.AddCommand(requestsAssignCmd)
	requestsCmd.AddCommand(requestsSignoffCmd)
	requestsCmd.AddCommand(requestsOutcomeCmd)
	requestsCmd.AddCommand(requestsSubmissionCmd)
	requestsCmd.AddCommand(requestsHistoryCmd)

	rootCmd.AddCommand(requestsCmd)
}
