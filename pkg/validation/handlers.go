package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/modelrisk/validation-workflow/pkg/authz"
)

// requestResponse is the API-facing shape of a validation request.
type requestResponse struct {
	ID                 string         `json:"id"`
	Status             Status         `json:"status"`
	Type               ValidationType `json:"validationType"`
	Priority           Priority       `json:"priority"`
	TargetDate         *time.Time     `json:"targetDate,omitempty"`
	SubmissionDate     *time.Time     `json:"submissionDate,omitempty"`
	SubmissionReceived bool           `json:"submissionReceived"`
	ValidatedRiskTier  string         `json:"validatedRiskTier,omitempty"`
	ScopeSummary       string         `json:"scopeSummary,omitempty"`
	OutcomeRating      string         `json:"outcomeRating,omitempty"`
	RecommendationIDs  []string       `json:"recommendationIds,omitempty"`
	LimitationIDs      []string       `json:"limitationIds,omitempty"`
	MonitoringPlanRef  string         `json:"monitoringPlanRef,omitempty"`
	CompletedAt        *time.Time     `json:"completedAt,omitempty"`
	Requester          string         `json:"requester"`
	CreatedAt          string         `json:"createdAt"`
	AllowedTransitions []Status       `json:"allowedTransitions,omitempty"`
}

func requestToResponse(req *ValidationRequestRecord, machine *Machine) requestResponse {
	resp := requestResponse{
		ID:                 req.ID,
		Status:             req.Status,
		Type:               req.Type,
		Priority:           req.Priority,
		TargetDate:         req.TargetDate,
		SubmissionDate:     req.SubmissionDate,
		SubmissionReceived: req.SubmissionReceived,
		ValidatedRiskTier:  string(req.ValidatedRiskTier),
		ScopeSummary:       req.ScopeSummary,
		OutcomeRating:      req.OutcomeRating,
		RecommendationIDs:  []string(req.RecommendationIDs),
		LimitationIDs:      []string(req.LimitationIDs),
		MonitoringPlanRef:  req.MonitoringPlanRef,
		CompletedAt:        req.CompletedAt,
		Requester:          req.Requester,
		CreatedAt:          req.CreatedAt.Format(time.RFC3339),
	}
	if machine != nil {
		resp.AllowedTransitions = machine.AllowedTransitions(req.Status)
	}
	return resp
}

// CreateRequestHandler handles POST /requests.
func CreateRequestHandler(engine *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input CreateRequestInput
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
		if input.Requester == "" {
			input.Requester = callerUser(r)
		}

		req, warnings, err := engine.CreateRequest(input)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"request":  requestToResponse(req, engine.machine),
			"warnings": warnings,
		})
	}
}

// ListRequestsHandler handles GET /requests.
// Query params: status, validationType, priority, modelId, assignee,
// pageSize, pageToken.
func ListRequestsHandler(store *Store, machine *Machine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params := ListRequestsParams{
			Status:    Status(r.URL.Query().Get("status")),
			Type:      ValidationType(r.URL.Query().Get("validationType")),
			Priority:  Priority(r.URL.Query().Get("priority")),
			ModelID:   r.URL.Query().Get("modelId"),
			Assignee:  r.URL.Query().Get("assignee"),
			PageToken: r.URL.Query().Get("pageToken"),
		}
		if ps := r.URL.Query().Get("pageSize"); ps != "" {
			if v, err := strconv.Atoi(ps); err == nil && v > 0 {
				params.PageSize = v
			}
		}

		records, nextToken, err := store.ListRequests(params)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list requests: %v", err))
			return
		}
		requests := make([]requestResponse, len(records))
		for i := range records {
			requests[i] = requestToResponse(&records[i], machine)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"requests":      requests,
			"nextPageToken": nextToken,
		})
	}
}

// GetRequestHandler handles GET /requests/{requestId}.
func GetRequestHandler(store *Store, machine *Machine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := chi.URLParam(r, "requestId")
		req, err := store.GetRequest(requestID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get request: %v", err))
			return
		}
		if req == nil {
			writeError(w, http.StatusNotFound, fmt.Sprintf("validation request %q not found", requestID))
			return
		}
		writeJSON(w, http.StatusOK, requestToResponse(req, machine))
	}
}

// TransitionHandler handles POST /requests/{requestId}/transition.
func TransitionHandler(engine *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := chi.URLParam(r, "requestId")
		var body struct {
			To     Status `json:"to"`
			Reason string `json:"reason,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}

		req, err := engine.Transition(requestID, body.To, callerUser(r), body.Reason)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, requestToResponse(req, engine.machine))
	}
}

// ResumeHandler handles POST /requests/{requestId}/resume.
func ResumeHandler(engine *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := chi.URLParam(r, "requestId")
		var body struct {
			Reason string `json:"reason,omitempty"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)

		req, err := engine.Resume(requestID, callerUser(r), body.Reason)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, requestToResponse(req, engine.machine))
	}
}

// ResubmitHandler handles POST /requests/{requestId}/resubmit.
func ResubmitHandler(engine *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := chi.URLParam(r, "requestId")
		var body struct {
			Reason string `json:"reason,omitempty"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)

		req, err := engine.Resubmit(requestID, callerUser(r), body.Reason)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, requestToResponse(req, engine.machine))
	}
}

// AssignHandler handles POST /requests/{requestId}/assignments.
func AssignHandler(engine *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := chi.URLParam(r, "requestId")
		var body struct {
			User string         `json:"user"`
			Role AssignmentRole `json:"role"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}

		rec, err := engine.Assign(requestID, body.User, body.Role, callerUser(r))
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"id":        rec.ID,
			"requestId": rec.RequestID,
			"user":      rec.User,
			"role":      rec.Role,
		})
	}
}

// SignoffHandler handles POST /requests/{requestId}/signoff.
func SignoffHandler(engine *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := chi.URLParam(r, "requestId")
		if err := engine.ReviewerSignoff(requestID, callerUser(r)); err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "signed_off"})
	}
}

// OutcomeHandler handles POST /requests/{requestId}/outcome.
func OutcomeHandler(engine *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := chi.URLParam(r, "requestId")
		var input OutcomeInput
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}

		req, err := engine.RecordOutcome(requestID, input, callerUser(r))
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, requestToResponse(req, engine.machine))
	}
}

// SubmissionHandler handles POST /requests/{requestId}/submission.
func SubmissionHandler(engine *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := chi.URLParam(r, "requestId")
		req, err := engine.MarkSubmissionReceived(requestID, callerUser(r))
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, requestToResponse(req, engine.machine))
	}
}

// HistoryHandler handles GET /requests/{requestId}/history.
func HistoryHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := chi.URLParam(r, "requestId")
		history, err := store.History(requestID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list history: %v", err))
			return
		}

		entries := make([]map[string]any, len(history))
		for i, h := range history {
			entry := map[string]any{
				"id":        h.ID,
				"oldStatus": h.OldStatus,
				"newStatus": h.NewStatus,
				"actor":     h.Actor,
				"reason":    h.Reason,
				"createdAt": h.CreatedAt.Format(time.RFC3339),
			}
			if h.SnapRating != "" || len(h.SnapRecommendationIDs) > 0 || len(h.SnapLimitationIDs) > 0 {
				entry["snapshot"] = snapshotFromHistory(&history[i])
			}
			entries[i] = entry
		}
		writeJSON(w, http.StatusOK, map[string]any{"history": entries})
	}
}

// RevalidationHandler handles GET /models/{modelId}/revalidation.
func RevalidationHandler(scheduler *Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		modelID := chi.URLParam(r, "modelId")
		result, err := scheduler.ComputeForModel(modelID)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

// RevalidationReportHandler handles GET /revalidation.
func RevalidationReportHandler(scheduler *Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		results, err := scheduler.ComputeAll()
		if err != nil {
			writeEngineError(w, err)
			return
		}
		filter := RevalidationStatus(r.URL.Query().Get("status"))
		if filter != "" {
			filtered := results[:0]
			for _, result := range results {
				if result.Status == filter {
					filtered = append(filtered, result)
				}
			}
			results = filtered
		}
		writeJSON(w, http.StatusOK, map[string]any{"models": results})
	}
}

// TierCascadeHandler handles POST /models/{modelId}/tier-cascade.
func TierCascadeHandler(plans *PlanEngine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		modelID := chi.URLParam(r, "modelId")
		if err := plans.CascadeModelTierChange(modelID, callerUser(r)); err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "cascaded"})
	}
}

func callerUser(r *http.Request) string {
	if id, ok := authz.IdentityFromContext(r.Context()); ok {
		return id.User
	}
	return "anonymous"
}

func callerIdentity(r *http.Request) authz.Identity {
	if id, ok := authz.IdentityFromContext(r.Context()); ok {
		return id
	}
	return authz.Identity{User: "anonymous"}
}

// writeEngineError maps the error taxonomy onto an HTTP response with the
// structured code and details when present.
func writeEngineError(w http.ResponseWriter, err error) {
	status := statusForError(err)
	body := map[string]any{"error": err.Error()}

	var ve *ValidationError
	var ce *ConflictError
	switch {
	case errors.As(err, &ve):
		body["code"] = ve.Code
		if len(ve.Details) > 0 {
			body["details"] = ve.Details
		}
	case errors.As(err, &ce):
		body["code"] = ce.Code
	}
	writeJSON(w, status, body)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
