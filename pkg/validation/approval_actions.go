package validation

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/modelrisk/validation-workflow/pkg/audit"
	"github.com/modelrisk/validation-workflow/pkg/authz"
	"github.com/modelrisk/validation-workflow/pkg/registry"
)

// ApprovalDecision is the approver's verdict on a single approval.
type ApprovalDecision string

const (
	DecisionApprove ApprovalDecision = "approve"
	DecisionReject  ApprovalDecision = "reject"
)

// SubmitApprovalInput carries an approval decision.
type SubmitApprovalInput struct {
	Decision ApprovalDecision `json:"decision"`
	Comment  string           `json:"comment,omitempty"`
	// EvidenceNote is mandatory when an admin decides on behalf of the
	// assigned approver.
	EvidenceNote string `json:"evidenceNote,omitempty"`
}

// SubmitApproval records an approve or reject decision on a pending
// approval. The caller must hold the role or region the approval names; an
// admin may decide on behalf of anyone provided a non-empty evidence note
// explains why. When the decision completes the required set, the request
// auto-transitions to approved using the latest decision timestamp.
func (e *Engine) SubmitApproval(approvalID string, caller authz.Identity, input SubmitApprovalInput) (*ApprovalRecord, error) {
	if input.Decision != DecisionApprove && input.Decision != DecisionReject {
		return nil, newValidationError("APPROVAL_BAD_DECISION", "unknown decision %q", input.Decision)
	}

	var result *ApprovalRecord
	err := e.db.Transaction(func(tx *gorm.DB) error {
		rec, err := getApprovalForUpdate(tx, approvalID)
		if err != nil {
			return err
		}
		if rec == nil {
			return &NotFoundError{Entity: "approval", ID: approvalID}
		}

		req, err := getRequestForUpdate(tx, rec.RequestID)
		if err != nil {
			return err
		}
		if req == nil {
			return &NotFoundError{Entity: "validation request", ID: rec.RequestID}
		}
		if req.Status != StatusPendingApproval {
			return newValidationError("APPROVAL_NOT_PENDING_APPROVAL",
				"request is %s; approvals are decided in pending_approval", req.Status)
		}
		if rec.Status.Resolved() || !rec.Status.Active() {
			return newConflictError("APPROVAL_ALREADY_RESOLVED",
				"approval is already %s", rec.Status)
		}

		if err := e.authorizeApprover(tx, rec, caller, input.EvidenceNote); err != nil {
			return err
		}

		status := ApprovalApproved
		if input.Decision == DecisionReject {
			status = ApprovalRejected
		}
		now := e.now()
		updates := map[string]any{
			"status":     status,
			"decided_by": caller.User,
			"decided_at": now,
			"comment":    input.Comment,
		}
		if input.EvidenceNote != "" {
			updates["evidence_note"] = input.EvidenceNote
		}
		if err := tx.Model(&ApprovalRecord{}).Where("id = ?", rec.ID).Updates(updates).Error; err != nil {
			return fmt.Errorf("record approval decision: %w", err)
		}
		rec.Status = status
		rec.DecidedBy = caller.User
		rec.DecidedAt = &now

		if err := e.auditApprovalEvent(tx, rec.ID, "approval."+string(input.Decision), caller.User, "",
			audit.JSONAny{"status": string(status), "request_id": req.ID}); err != nil {
			return err
		}

		if status == ApprovalApproved {
			// The decision above is flushed; re-query so the completeness
			// check sees it.
			done, _, err := allRequiredApproved(tx, req.ID)
			if err != nil {
				return err
			}
			if done {
				if err := e.applyTransition(tx, req, StatusApproved, caller.User,
					"all required approvals approved", nil); err != nil {
					return err
				}
			}
		}

		result = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// authorizeApprover enforces per-type approver authorization, with the
// admin proxy escape hatch gated on an evidence note.
func (e *Engine) authorizeApprover(tx *gorm.DB, rec *ApprovalRecord, caller authz.Identity, evidenceNote string) error {
	if e.approverAllowed(tx, rec, caller) {
		return nil
	}
	if caller.IsAdmin() {
		if strings.TrimSpace(evidenceNote) == "" {
			return newValidationError("APPROVAL_PROXY_NO_EVIDENCE",
				"admin decisions on behalf of an approver require an evidence note")
		}
		return nil
	}
	return newAuthorizationError("%s is not authorized to decide this %s approval", caller.User, rec.Type)
}

func (e *Engine) approverAllowed(tx *gorm.DB, rec *ApprovalRecord, caller authz.Identity) bool {
	switch rec.Type {
	case ApprovalGlobal:
		return caller.HasRole(authz.RoleGlobalApprover)
	case ApprovalRegional:
		if !caller.HasRole(authz.RoleRegionalApprover) {
			return false
		}
		if caller.MemberOfRegion(rec.RegionID) {
			return true
		}
		var region registry.RegionRecord
		if err := tx.Where("id = ?", rec.RegionID).First(&region).Error; err == nil {
			return caller.MemberOfRegion(region.Code)
		}
		return false
	case ApprovalConditional, ApprovalManualRole:
		return caller.HasRole(authz.Role(rec.Role))
	case ApprovalManualUser:
		return caller.User == rec.User
	default:
		return false
	}
}

// WithdrawApproval returns the caller's own decision to pending while the
// request is still in pending_approval.
func (e *Engine) WithdrawApproval(approvalID string, caller authz.Identity) (*ApprovalRecord, error) {
	var result *ApprovalRecord
	err := e.db.Transaction(func(tx *gorm.DB) error {
		rec, err := getApprovalForUpdate(tx, approvalID)
		if err != nil {
			return err
		}
		if rec == nil {
			return &NotFoundError{Entity: "approval", ID: approvalID}
		}
		req, err := getRequestForUpdate(tx, rec.RequestID)
		if err != nil {
			return err
		}
		if req == nil {
			return &NotFoundError{Entity: "validation request", ID: rec.RequestID}
		}
		if req.Status != StatusPendingApproval {
			return newConflictError("APPROVAL_REQUEST_MOVED",
				"request is %s; the decision can no longer be withdrawn", req.Status)
		}
		if !rec.Status.Resolved() {
			return newConflictError("APPROVAL_NOT_RESOLVED", "approval is %s, nothing to withdraw", rec.Status)
		}
		if rec.DecidedBy != caller.User && !caller.IsAdmin() {
			return newAuthorizationError("only %s or an admin can withdraw this decision", rec.DecidedBy)
		}

		if err := tx.Model(&ApprovalRecord{}).Where("id = ?", rec.ID).Updates(map[string]any{
			"status":     ApprovalPending,
			"decided_by": "",
			"decided_at": nil,
			"comment":    "",
		}).Error; err != nil {
			return fmt.Errorf("withdraw approval: %w", err)
		}
		rec.Status = ApprovalPending
		rec.DecidedBy = ""
		rec.DecidedAt = nil

		if err := e.auditApprovalEvent(tx, rec.ID, "approval.withdraw", caller.User, "",
			audit.JSONAny{"request_id": req.ID}); err != nil {
			return err
		}
		result = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// VoidApproval marks an approval voided with a reason. Admin only; the
// record stays as history.
func (e *Engine) VoidApproval(approvalID string, caller authz.Identity, reason string) error {
	if !caller.IsAdmin() {
		return newAuthorizationError("only an admin can void an approval")
	}
	if strings.TrimSpace(reason) == "" {
		return newValidationError("APPROVAL_VOID_NO_REASON", "voiding requires a reason")
	}
	return e.db.Transaction(func(tx *gorm.DB) error {
		rec, err := getApprovalForUpdate(tx, approvalID)
		if err != nil {
			return err
		}
		if rec == nil {
			return &NotFoundError{Entity: "approval", ID: approvalID}
		}
		if !rec.Status.Active() {
			return newConflictError("APPROVAL_ALREADY_VOIDED", "approval is already %s", rec.Status)
		}
		if err := voidApproval(tx, rec.ID, reason); err != nil {
			return err
		}
		return e.auditApprovalEvent(tx, rec.ID, "approval.void", caller.User, reason, nil)
	})
}

// ManualApprovalInput adds an out-of-band approval requirement.
type ManualApprovalInput struct {
	Type ApprovalType `json:"approvalType"`
	Role string       `json:"role,omitempty"`
	User string       `json:"user,omitempty"`
}

// AddManualApproval attaches an operator-added approval requirement to a
// request. Manual approvals are outside the resolver's reach: sync never
// creates or voids them.
func (e *Engine) AddManualApproval(requestID string, caller authz.Identity, input ManualApprovalInput) (*ApprovalRecord, error) {
	if !caller.IsAdmin() {
		return nil, newAuthorizationError("only an admin can add a manual approval")
	}
	if !input.Type.Manual() {
		return nil, newValidationError("APPROVAL_NOT_MANUAL", "approval type %q is resolver-managed", input.Type)
	}
	if input.Type == ApprovalManualRole && input.Role == "" {
		return nil, newValidationError("APPROVAL_NO_ROLE", "manual role approvals require a role")
	}
	if input.Type == ApprovalManualUser && input.User == "" {
		return nil, newValidationError("APPROVAL_NO_USER", "manual user approvals require a user")
	}

	var result *ApprovalRecord
	err := e.db.Transaction(func(tx *gorm.DB) error {
		req, err := getRequestForUpdate(tx, requestID)
		if err != nil {
			return err
		}
		if req == nil {
			return &NotFoundError{Entity: "validation request", ID: requestID}
		}
		if req.Status.Terminal() {
			return newValidationError("WORKFLOW_TERMINAL_STATUS", "cannot add approvals to a completed request")
		}

		rec := &ApprovalRecord{
			RequestID: requestID,
			Type:      input.Type,
			Status:    ApprovalPending,
			Role:      input.Role,
			User:      input.User,
		}
		if err := createApproval(tx, rec); err != nil {
			return err
		}
		if err := e.auditApprovalEvent(tx, rec.ID, "approval.add_manual", caller.User, "",
			audit.JSONAny{"request_id": requestID, "approval_type": string(input.Type)}); err != nil {
			return err
		}
		result = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SendBack is the approver action that returns a pending_approval request
// to revision. The sender's approval is marked sent_back and the request's
// current outcome is snapshotted on the history row so resubmission can
// tell whether anything material changed.
func (e *Engine) SendBack(approvalID string, caller authz.Identity, reason string) (*ValidationRequestRecord, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, newValidationError("APPROVAL_SENDBACK_NO_REASON", "send back requires a reason")
	}

	var result *ValidationRequestRecord
	err := e.db.Transaction(func(tx *gorm.DB) error {
		rec, err := getApprovalForUpdate(tx, approvalID)
		if err != nil {
			return err
		}
		if rec == nil {
			return &NotFoundError{Entity: "approval", ID: approvalID}
		}
		req, err := getRequestForUpdate(tx, rec.RequestID)
		if err != nil {
			return err
		}
		if req == nil {
			return &NotFoundError{Entity: "validation request", ID: rec.RequestID}
		}
		if req.Status != StatusPendingApproval {
			return newValidationError("APPROVAL_NOT_PENDING_APPROVAL",
				"request is %s; send back applies in pending_approval", req.Status)
		}
		if !rec.Status.Active() || rec.Status == ApprovalSentBack {
			return newConflictError("APPROVAL_ALREADY_RESOLVED", "approval is already %s", rec.Status)
		}
		if err := e.authorizeApprover(tx, rec, caller, reason); err != nil {
			return err
		}

		now := e.now()
		if err := tx.Model(&ApprovalRecord{}).Where("id = ?", rec.ID).Updates(map[string]any{
			"status":     ApprovalSentBack,
			"decided_by": caller.User,
			"decided_at": now,
			"comment":    reason,
		}).Error; err != nil {
			return fmt.Errorf("record send back: %w", err)
		}

		snapshot := snapshotOf(req)
		if err := e.sendBackTransition(tx, req, caller.User, reason, &snapshot); err != nil {
			return err
		}
		result = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// sendBackTransition moves the request to revision outside the generic
// transition table check, which reserves revision for this path.
func (e *Engine) sendBackTransition(tx *gorm.DB, req *ValidationRequestRecord,
	actor, reason string, snapshot *OutcomeSnapshot) error {
	from := req.Status
	if err := tx.Model(&ValidationRequestRecord{}).Where("id = ?", req.ID).
		Update("status", StatusRevision).Error; err != nil {
		return fmt.Errorf("update request status: %w", err)
	}
	req.Status = StatusRevision

	history := &StatusHistoryRecord{
		RequestID:             req.ID,
		OldStatus:             from,
		NewStatus:             StatusRevision,
		Actor:                 actor,
		Reason:                reason,
		SnapRating:            snapshot.Rating,
		SnapRecommendationIDs: audit.JSONStringSlice(snapshot.RecommendationIDs),
		SnapLimitationIDs:     audit.JSONStringSlice(snapshot.LimitationIDs),
		SnapContextTag:        snapshot.ContextTag,
	}
	if err := appendHistory(tx, history); err != nil {
		return err
	}
	if err := e.auditEvent(tx, req.ID, "request.send_back", actor,
		audit.JSONAny{"status": string(from)}, audit.JSONAny{"status": string(StatusRevision)}); err != nil {
		return err
	}
	e.logger.Info("sent validation request back for revision",
		"request_id", req.ID, "actor", actor)
	return nil
}

// Resubmit returns a revision request to pending_approval. If nothing
// material changed since the send-back snapshot, only sent_back approvals
// reset to pending and earlier approvals stand; otherwise every non-voided
// approval resets and must be re-earned.
func (e *Engine) Resubmit(requestID, actor, reason string) (*ValidationRequestRecord, error) {
	var result *ValidationRequestRecord
	err := e.db.Transaction(func(tx *gorm.DB) error {
		req, err := getRequestForUpdate(tx, requestID)
		if err != nil {
			return err
		}
		if req == nil {
			return &NotFoundError{Entity: "validation request", ID: requestID}
		}
		if req.Status != StatusRevision {
			return newValidationError("WORKFLOW_NOT_REVISION", "request is %s, not in revision", req.Status)
		}

		var sendBack StatusHistoryRecord
		err = tx.Where("request_id = ? AND new_status = ?", requestID, StatusRevision).
			Order("created_at DESC").First(&sendBack).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("find send back entry: %w", err)
		}

		materialChange := true
		if err == nil {
			materialChange = !snapshotOf(req).Equal(snapshotFromHistory(&sendBack))
		}

		resetStatuses := []ApprovalStatus{ApprovalSentBack}
		if materialChange {
			resetStatuses = []ApprovalStatus{ApprovalSentBack, ApprovalApproved, ApprovalRejected}
		}
		if err := tx.Model(&ApprovalRecord{}).
			Where("request_id = ? AND status IN ?", requestID, resetStatuses).
			Updates(map[string]any{
				"status":     ApprovalPending,
				"decided_by": "",
				"decided_at": nil,
				"comment":    "",
			}).Error; err != nil {
			return fmt.Errorf("reset approvals: %w", err)
		}

		if reason == "" {
			reason = "resubmitted after revision"
			if materialChange {
				reason = "resubmitted after revision with material changes"
			}
		}
		if err := e.applyTransition(tx, req, StatusPendingApproval, actor, reason, nil); err != nil {
			return err
		}
		result = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
