package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// approvalView mirrors the server's approval response shape.
type approvalView struct {
	ID           string     `json:"id"`
	RequestID    string     `json:"requestId"`
	Type         string     `json:"approvalType"`
	Status       string     `json:"status"`
	RegionID     string     `json:"regionId,omitempty"`
	Role         string     `json:"role,omitempty"`
	User         string     `json:"user,omitempty"`
	DecidedBy    string     `json:"decidedBy,omitempty"`
	DecidedAt    *time.Time `json:"decidedAt,omitempty"`
	Comment      string     `json:"comment,omitempty"`
	EvidenceNote string     `json:"evidenceNote,omitempty"`
	VoidReason   string     `json:"voidReason,omitempty"`
	CreatedAt    string     `json:"createdAt"`
}

var approvalsCmd = &cobra.Command{
	Use:   "approvals",
	Short: "Manage approvals on validation requests",
}

var approvalsListCmd = &cobra.Command{
	Use:   "list <request-id>",
	Short: "List approvals attached to a request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		var result struct {
			Approvals []approvalView `json:"approvals"`
		}
		if err := client.getJSON(apiBase+"/requests/"+args[0]+"/approvals", &result); err != nil {
			return fmt.Errorf("failed to list approvals: %w", err)
		}

		if outputFmt == "json" || outputFmt == "yaml" {
			return printOutput(result)
		}

		headers := []string{"ID", "Type", "Status", "Region", "Role", "Decided By", "Decided At"}
		rows := make([][]string, 0, len(result.Approvals))
		for _, a := range result.Approvals {
			rows = append(rows, []string{
				truncate(a.ID, 12),
				a.Type,
				a.Status,
				orDash(a.RegionID),
				orDash(a.Role),
				orDash(a.DecidedBy),
				formatDate(a.DecidedAt),
			})
		}
		printTable(headers, rows)
		return nil
	},
}

var (
	decisionComment  string
	decisionEvidence string
)

func decideApproval(approvalID, decision string) error {
	client := newClient()

	body := map[string]any{
		"decision": decision,
		"comment":  decisionComment,
	}
	if decisionEvidence != "" {
		body["evidenceNote"] = decisionEvidence
	}

	var result approvalView
	if err := client.postJSON(apiBase+"/approvals/"+approvalID+"/decision", body, &result); err != nil {
		return fmt.Errorf("failed to record decision: %w", err)
	}

	if outputFmt == "json" || outputFmt == "yaml" {
		return printOutput(result)
	}
	fmt.Printf("Approval %s is now %s\n", result.ID, result.Status)
	return nil
}

var approvalsApproveCmd = &cobra.Command{
	Use:   "approve <id>",
	Short: "Approve a pending approval",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return decideApproval(args[0], "approve")
	},
}

var approvalsRejectCmd = &cobra.Command{
	Use:   "reject <id>",
	Short: "Reject a pending approval",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return decideApproval(args[0], "reject")
	},
}

var approvalsWithdrawCmd = &cobra.Command{
	Use:   "withdraw <id>",
	Short: "Withdraw a decision, returning the approval to pending",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		var result approvalView
		if err := client.postJSON(apiBase+"/approvals/"+args[0]+"/withdraw", map[string]any{}, &result); err != nil {
			return fmt.Errorf("failed to withdraw: %w", err)
		}

		if outputFmt == "json" || outputFmt == "yaml" {
			return printOutput(result)
		}
		fmt.Printf("Approval %s returned to %s\n", result.ID, result.Status)
		return nil
	},
}

var voidReason string

var approvalsVoidCmd = &cobra.Command{
	Use:   "void <id>",
	Short: "Void an approval (admin only)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		body := map[string]any{"reason": voidReason}
		var result approvalView
		if err := client.postJSON(apiBase+"/approvals/"+args[0]+"/void", body, &result); err != nil {
			return fmt.Errorf("failed to void: %w", err)
		}

		if outputFmt == "json" || outputFmt == "yaml" {
			return printOutput(result)
		}
		fmt.Printf("Approval %s voided\n", result.ID)
		return nil
	},
}

var sendBackReason string

var approvalsSendBackCmd = &cobra.Command{
	Use:   "send-back <id>",
	Short: "Send the request back to revision instead of deciding",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if sendBackReason == "" {
			return fmt.Errorf("--reason is required")
		}
		client := newClient()

		body := map[string]any{"reason": sendBackReason}
		var req requestView
		if err := client.postJSON(apiBase+"/approvals/"+args[0]+"/send-back", body, &req); err != nil {
			return fmt.Errorf("failed to send back: %w", err)
		}

		if outputFmt == "json" || outputFmt == "yaml" {
			return printOutput(req)
		}
		fmt.Printf("Request %s sent back to %s\n", req.ID, req.Status)
		return nil
	},
}

var (
	manualType string
	manualRole string
	manualUser string
)

var approvalsAddManualCmd = &cobra.Command{
	Use:   "add-manual <request-id>",
	Short: "Attach a manual approval requirement to a request (admin only)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		body := map[string]any{
			"approvalType": manualType,
			"role":         manualRole,
			"user":         manualUser,
		}
		var result approvalView
		if err := client.postJSON(apiBase+"/requests/"+args[0]+"/approvals", body, &result); err != nil {
			return fmt.Errorf("failed to add manual approval: %w", err)
		}

		if outputFmt == "json" || outputFmt == "yaml" {
			return printOutput(result)
		}
		fmt.Printf("Added %s approval %s on request %s\n", result.Type, result.ID, result.RequestID)
		return nil
	},
}

func init() {
	approvalsApproveCmd.Flags().StringVar(&decisionComment, "comment", "", "Decision comment")
	approvalsApproveCmd.Flags().StringVar(&decisionEvidence, "evidence", "", "Evidence note when deciding on someone's behalf")
	approvalsRejectCmd.Flags().StringVar(&decisionComment, "comment", "", "Decision comment")
	approvalsRejectCmd.Flags().StringVar(&decisionEvidence, "evidence", "", "Evidence note when deciding on someone's behalf")
	approvalsVoidCmd.Flags().StringVar(&voidReason, "reason", "", "Void reason")
	approvalsSendBackCmd.Flags().StringVar(&sendBackReason, "reason", "", "What needs to change before resubmission")
	approvalsAddManualCmd.Flags().StringVar(&manualType, "type", "manual_role", "Approval type: manual_role or manual_user")
	approvalsAddManualCmd.Flags().StringVar(&manualRole, "role", "", "Role that must approve (manual_role)")
	approvalsAddManualCmd.Flags().StringVar(&manualUser, "user", "", "User that must approve (manual_user)")

	approvalsCmd.AddCommand(approvalsListCmd)
	approvalsCmd.AddCommand(approvalsApproveCmd)
	approvalsCmd.AddCommand(approvalsRejectCmd)
	approvalsCmd.AddCommand(approvalsWithdrawCmd)
	approvalsCmd.AddCommand(approvalsVoidCmd)
	approvalsCmd.AddCommand(approvalsSendBackCmd)
	approvalsCmd.AddCommand(approvalsAddManualCmd)

	rootCmd.AddCommand(approvalsCmd)
}
