package audit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListEventsHandler(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Append(&EventRecord{
		EntityType: "validation_request",
		EntityID:   "req-1",
		Action:     "request.create",
		Actor:      "alice",
	}))
	require.NoError(t, store.Append(&EventRecord{
		EntityType: "approval",
		EntityID:   "a-1",
		Action:     "approval.submit",
		Actor:      "bob",
	}))

	router := Router(store)

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Events    []eventResponse `json:"events"`
		TotalSize int             `json:"totalSize"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, 2, body.TotalSize)
	assert.Len(t, body.Events, 2)

	// Entity-scoped listing.
	req = httptest.NewRequest(http.MethodGet, "/events?entityType=approval&entityId=a-1", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, 1, body.TotalSize)
	require.Len(t, body.Events, 1)
	assert.Equal(t, "approval.submit", body.Events[0].Action)
}

func TestGetEventHandler(t *testing.T) {
	store := newTestStore(t)
	event := &EventRecord{
		EntityType: "plan",
		EntityID:   "p-1",
		Action:     "plan.update",
		Actor:      "carol",
	}
	require.NoError(t, store.Append(event))

	router := Router(store)

	req := httptest.NewRequest(http.MethodGet, "/events/"+event.ID, nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var got eventResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, event.ID, got.ID)
	assert.Equal(t, "plan.update", got.Action)

	req = httptest.NewRequest(http.MethodGet, "/events/missing", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestMiddlewareRecordsMutations(t *testing.T) {
	store := newTestStore(t)

	handler := Middleware(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	// GET requests pass through unrecorded.
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/validation/v1alpha1/requests", nil))
	_, _, total, err := store.ListAll(10, "", "", "")
	require.NoError(t, err)
	assert.Zero(t, total)

	// POST requests are recorded with the captured status.
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/validation/v1alpha1/requests", nil))
	records, _, total, err := store.ListAll(10, "", "", "")
	require.NoError(t, err)
	require.Equal(t, 1, total)
	assert.Equal(t, "success", records[0].Outcome)
	assert.Equal(t, http.StatusCreated, records[0].StatusCode)
	assert.Equal(t, "anonymous", records[0].Actor)
}

func TestOutcomeFromStatus(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{http.StatusOK, "success"},
		{http.StatusCreated, "success"},
		{http.StatusUnprocessableEntity, "failure"},
		{http.StatusInternalServerError, "failure"},
		{http.StatusForbidden, "denied"},
		{http.StatusUnauthorized, "denied"},
	}
	for _, tt := range tests {
		if got := outcomeFromStatus(tt.status); got != tt.want {
			t.Errorf("outcomeFromStatus(%d) = %q, want %q", tt.status, got, tt.want)
		}
	}
}
