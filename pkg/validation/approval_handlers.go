package validation

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/modelrisk/validation-workflow/pkg/audit"
)

// approvalResponse is the API-facing shape of an approval.
type approvalResponse struct {
	ID           string         `json:"id"`
	RequestID    string         `json:"requestId"`
	Type         ApprovalType   `json:"approvalType"`
	Status       ApprovalStatus `json:"status"`
	RegionID     string         `json:"regionId,omitempty"`
	Role         string         `json:"role,omitempty"`
	User         string         `json:"user,omitempty"`
	DecidedBy    string         `json:"decidedBy,omitempty"`
	DecidedAt    *time.Time     `json:"decidedAt,omitempty"`
	Comment      string         `json:"comment,omitempty"`
	EvidenceNote string         `json:"evidenceNote,omitempty"`
	VoidReason   string         `json:"voidReason,omitempty"`
	CreatedAt    string         `json:"createdAt"`
}

func approvalToResponse(rec *ApprovalRecord) approvalResponse {
	return approvalResponse{
		ID:           rec.ID,
		RequestID:    rec.RequestID,
		Type:         rec.Type,
		Status:       rec.Status,
		RegionID:     rec.RegionID,
		Role:         rec.Role,
		User:         rec.User,
		DecidedBy:    rec.DecidedBy,
		DecidedAt:    rec.DecidedAt,
		Comment:      rec.Comment,
		EvidenceNote: rec.EvidenceNote,
		VoidReason:   rec.VoidReason,
		CreatedAt:    rec.CreatedAt.Format(time.RFC3339),
	}
}

// ListApprovalsHandler handles GET /requests/{requestId}/approvals.
func ListApprovalsHandler(approvals *ApprovalStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := chi.URLParam(r, "requestId")
		records, err := approvals.ListByRequest(requestID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list approvals: %v", err))
			return
		}
		out := make([]approvalResponse, len(records))
		for i := range records {
			out[i] = approvalToResponse(&records[i])
		}
		writeJSON(w, http.StatusOK, map[string]any{"approvals": out})
	}
}

// DecideApprovalHandler handles POST /approvals/{approvalId}/decision.
func DecideApprovalHandler(engine *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		approvalID := chi.URLParam(r, "approvalId")
		var input SubmitApprovalInput
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}

		rec, err := engine.SubmitApproval(approvalID, callerIdentity(r), input)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, approvalToResponse(rec))
	}
}

// WithdrawApprovalHandler handles POST /approvals/{approvalId}/withdraw.
func WithdrawApprovalHandler(engine *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		approvalID := chi.URLParam(r, "approvalId")
		rec, err := engine.WithdrawApproval(approvalID, callerIdentity(r))
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, approvalToResponse(rec))
	}
}

// VoidApprovalHandler handles POST /approvals/{approvalId}/void.
func VoidApprovalHandler(engine *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		approvalID := chi.URLParam(r, "approvalId")
		var body struct {
			Reason string `json:"reason"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
		if err := engine.VoidApproval(approvalID, callerIdentity(r), body.Reason); err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "voided"})
	}
}

// SendBackHandler handles POST /approvals/{approvalId}/send-back.
func SendBackHandler(engine *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		approvalID := chi.URLParam(r, "approvalId")
		var body struct {
			Reason string `json:"reason"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}

		req, err := engine.SendBack(approvalID, callerIdentity(r), body.Reason)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, requestToResponse(req, engine.machine))
	}
}

// AddManualApprovalHandler handles POST /requests/{requestId}/approvals.
func AddManualApprovalHandler(engine *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := chi.URLParam(r, "requestId")
		var input ManualApprovalInput
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}

		rec, err := engine.AddManualApproval(requestID, callerIdentity(r), input)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, approvalToResponse(rec))
	}
}

// ruleRequest is the create/update payload for a conditional approval rule.
type ruleRequest struct {
	Name              string   `json:"name"`
	Enabled           *bool    `json:"enabled,omitempty"`
	ValidationTypes   []string `json:"validationTypes,omitempty"`
	RiskTiers         []string `json:"riskTiers,omitempty"`
	GovernanceRegions []string `json:"governanceRegions,omitempty"`
	DeploymentRegions []string `json:"deploymentRegions,omitempty"`
	RequiredRoles     []string `json:"requiredRoles"`
}

func (in *ruleRequest) toRecord(id string) *ConditionalApprovalRuleRecord {
	enabled := true
	if in.Enabled != nil {
		enabled = *in.Enabled
	}
	return &ConditionalApprovalRuleRecord{
		ID:                id,
		Name:              in.Name,
		Enabled:           enabled,
		ValidationTypes:   audit.JSONStringSlice(in.ValidationTypes),
		RiskTiers:         audit.JSONStringSlice(in.RiskTiers),
		GovernanceRegions: audit.JSONStringSlice(in.GovernanceRegions),
		DeploymentRegions: audit.JSONStringSlice(in.DeploymentRegions),
		RequiredRoles:     audit.JSONStringSlice(in.RequiredRoles),
	}
}

// CreateRuleHandler handles POST /approval-rules. Admin only.
func CreateRuleHandler(approvals *ApprovalStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !callerIdentity(r).IsAdmin() {
			writeError(w, http.StatusForbidden, "only an admin can manage approval rules")
			return
		}
		var input ruleRequest
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
		rule := input.toRecord("")
		if err := approvals.CreateRule(rule); err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, rule)
	}
}

// ListRulesHandler handles GET /approval-rules.
func ListRulesHandler(approvals *ApprovalStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rules, err := approvals.ListRules()
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list rules: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"rules": rules})
	}
}

// GetRuleHandler handles GET /approval-rules/{ruleId}.
func GetRuleHandler(approvals *ApprovalStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ruleID := chi.URLParam(r, "ruleId")
		rule, err := approvals.GetRule(ruleID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get rule: %v", err))
			return
		}
		if rule == nil {
			writeError(w, http.StatusNotFound, fmt.Sprintf("approval rule %q not found", ruleID))
			return
		}
		writeJSON(w, http.StatusOK, rule)
	}
}

// UpdateRuleHandler handles PUT /approval-rules/{ruleId}. Admin only.
func UpdateRuleHandler(approvals *ApprovalStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !callerIdentity(r).IsAdmin() {
			writeError(w, http.StatusForbidden, "only an admin can manage approval rules")
			return
		}
		ruleID := chi.URLParam(r, "ruleId")
		var input ruleRequest
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
		rule := input.toRecord(ruleID)
		if err := approvals.UpdateRule(rule); err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rule)
	}
}

// DeleteRuleHandler handles DELETE /approval-rules/{ruleId}. Admin only.
func DeleteRuleHandler(approvals *ApprovalStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !callerIdentity(r).IsAdmin() {
			writeError(w, http.StatusForbidden, "only an admin can manage approval rules")
			return
		}
		ruleID := chi.URLParam(r, "ruleId")
		if err := approvals.DeleteRule(ruleID); err != nil {
			writeEngineError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
