package audit

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

// eventResponse is the API-facing shape of an audit event.
type eventResponse struct {
	ID         string         `json:"id"`
	EntityType string         `json:"entityType"`
	EntityID   string         `json:"entityId"`
	Action     string         `json:"action"`
	Actor      string         `json:"actor"`
	Outcome    string         `json:"outcome"`
	Reason     string         `json:"reason,omitempty"`
	Before     map[string]any `json:"before,omitempty"`
	After      map[string]any `json:"after,omitempty"`
	RequestID  string         `json:"requestId,omitempty"`
	StatusCode int            `json:"statusCode,omitempty"`
	CreatedAt  string         `json:"createdAt"`
}

func recordToResponse(rec EventRecord) eventResponse {
	return eventResponse{
		ID:         rec.ID,
		EntityType: rec.EntityType,
		EntityID:   rec.EntityID,
		Action:     rec.Action,
		Actor:      rec.Actor,
		Outcome:    rec.Outcome,
		Reason:     rec.Reason,
		Before:     map[string]any(rec.Before),
		After:      map[string]any(rec.After),
		RequestID:  rec.RequestID,
		StatusCode: rec.StatusCode,
		CreatedAt:  rec.CreatedAt.Format(time.RFC3339),
	}
}

// ListEventsHandler handles GET /events.
// Query params: entityType, entityId, action, actor, pageSize, pageToken.
func ListEventsHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entityType := r.URL.Query().Get("entityType")
		entityID := r.URL.Query().Get("entityId")

		pageSize := 20
		if ps := r.URL.Query().Get("pageSize"); ps != "" {
			if v, err := strconv.Atoi(ps); err == nil && v > 0 {
				pageSize = v
			}
		}
		pageToken := r.URL.Query().Get("pageToken")

		var (
			records   []EventRecord
			nextToken string
			total     int
			err       error
		)
		if entityType != "" && entityID != "" {
			records, nextToken, total, err = store.ListByEntity(entityType, entityID, pageSize, pageToken)
		} else {
			records, nextToken, total, err = store.ListAll(pageSize, pageToken,
				r.URL.Query().Get("action"), r.URL.Query().Get("actor"))
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list audit events: %v", err))
			return
		}

		events := make([]eventResponse, len(records))
		for i, rec := range records {
			events[i] = recordToResponse(rec)
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"events":        events,
			"nextPageToken": nextToken,
			"totalSize":     total,
		})
	}
}

// GetEventHandler handles GET /events/{eventId}.
func GetEventHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eventID := chi.URLParam(r, "eventId")
		if eventID == "" {
			writeError(w, http.StatusBadRequest, "missing event ID")
			return
		}

		record, err := store.GetByID(eventID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get audit event: %v", err))
			return
		}
		if record == nil {
			writeError(w, http.StatusNotFound, fmt.Sprintf("audit event %q not found", eventID))
			return
		}

		writeJSON(w, http.StatusOK, recordToResponse(*record))
	}
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
