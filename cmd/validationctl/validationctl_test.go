package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

// --- output helper tests ---

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly-ten", 11, "exactly-ten"},
		{"this string is too long", 10, "this st..."},
		{"abc", 3, "abc"},
		{"abcdef", 3, "abc"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestOrDash(t *testing.T) {
	if got := orDash(""); got != "-" {
		t.Errorf("orDash(\"\") = %q, want %q", got, "-")
	}
	if got := orDash("value"); got != "value" {
		t.Errorf("orDash(\"value\") = %q, want %q", got, "value")
	}
}

func TestFormatDate(t *testing.T) {
	if got := formatDate(nil); got != "-" {
		t.Errorf("formatDate(nil) = %q, want %q", got, "-")
	}
	ts := time.Date(2026, 3, 15, 9, 30, 0, 0, time.UTC)
	if got := formatDate(&ts); got != "2026-03-15" {
		t.Errorf("formatDate = %q, want %q", got, "2026-03-15")
	}
}

// --- identity resolution tests ---

func TestResolvedServerPrecedence(t *testing.T) {
	defer func() {
		serverURL = ""
		viper.Reset()
	}()

	viper.Set("server", "http://from-config:8080")
	serverURL = ""
	if got := resolvedServer(); got != "http://from-config:8080" {
		t.Errorf("resolvedServer() = %q, want config value", got)
	}

	serverURL = "http://from-flag:9090"
	if got := resolvedServer(); got != "http://from-flag:9090" {
		t.Errorf("resolvedServer() = %q, want flag value", got)
	}
}

func TestResolvedIdentityPrecedence(t *testing.T) {
	defer func() {
		asUser = ""
		asRoles = nil
		asRegions = nil
		viper.Reset()
	}()

	viper.Set("identity.user", "config-user")
	viper.Set("identity.roles", []string{"mrm_admin"})
	viper.Set("identity.regions", []string{"emea"})

	asUser, asRoles, asRegions = "", nil, nil
	if got := resolvedUser(); got != "config-user" {
		t.Errorf("resolvedUser() = %q, want %q", got, "config-user")
	}
	if got := resolvedRoles(); len(got) != 1 || got[0] != "mrm_admin" {
		t.Errorf("resolvedRoles() = %v, want [mrm_admin]", got)
	}

	asUser = "flag-user"
	asRoles = []string{"validator", "reviewer"}
	asRegions = []string{"apac"}
	if got := resolvedUser(); got != "flag-user" {
		t.Errorf("resolvedUser() = %q, want flag value", got)
	}
	if got := resolvedRoles(); len(got) != 2 {
		t.Errorf("resolvedRoles() = %v, want two flag roles", got)
	}
	if got := resolvedRegions(); len(got) != 1 || got[0] != "apac" {
		t.Errorf("resolvedRegions() = %v, want [apac]", got)
	}
}

// --- HTTP integration tests with httptest ---

func TestClientSendsIdentityHeaders(t *testing.T) {
	var gotUser, gotRole, gotRegion string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = r.Header.Get("X-Remote-User")
		gotRole = r.Header.Get("X-Remote-Role")
		gotRegion = r.Header.Get("X-Remote-Region")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"requests": []any{}})
	}))
	defer srv.Close()

	asUser = "alice"
	asRoles = []string{"global_approver", "mrm_admin"}
	asRegions = []string{"emea", "apac"}
	defer func() {
		asUser = ""
		asRoles = nil
		asRegions = nil
	}()

	client := &workflowClient{baseURL: srv.URL, http: srv.Client()}
	var resp map[string]any
	if err := client.getJSON(apiBase+"/requests", &resp); err != nil {
		t.Fatalf("getJSON failed: %v", err)
	}

	if gotUser != "alice" {
		t.Errorf("X-Remote-User = %q, want %q", gotUser, "alice")
	}
	if gotRole != "global_approver,mrm_admin" {
		t.Errorf("X-Remote-Role = %q, want joined roles", gotRole)
	}
	if gotRegion != "emea,apac" {
		t.Errorf("X-Remote-Region = %q, want joined regions", gotRegion)
	}
}

func TestRequestsListHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != apiBase+"/requests" {
			t.Errorf("unexpected path: %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if got := r.URL.Query().Get("status"); got != "pending_approval" {
			t.Errorf("status query = %q, want %q", got, "pending_approval")
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"requests": []map[string]any{
				{"id": "req-1", "status": "pending_approval", "validationType": "full_validation", "priority": "high", "requester": "bob"},
			},
			"nextPageToken": "",
		})
	}))
	defer srv.Close()

	client := &workflowClient{baseURL: srv.URL, http: srv.Client()}

	var resp struct {
		Requests []requestView `json:"requests"`
	}
	if err := client.getJSON(apiBase+"/requests?status=pending_approval", &resp); err != nil {
		t.Fatalf("getJSON failed: %v", err)
	}
	if len(resp.Requests) != 1 {
		t.Fatalf("got %d requests, want 1", len(resp.Requests))
	}
	if resp.Requests[0].Status != "pending_approval" {
		t.Errorf("status = %q, want %q", resp.Requests[0].Status, "pending_approval")
	}
}

func TestDecisionPostHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["decision"] != "approve" {
			t.Errorf("decision = %v, want approve", body["decision"])
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"id": "app-1", "status": "approved"})
	}))
	defer srv.Close()

	client := &workflowClient{baseURL: srv.URL, http: srv.Client()}

	var resp approvalView
	body := map[string]any{"decision": "approve", "comment": "looks good"}
	if err := client.postJSON(apiBase+"/approvals/app-1/decision", body, &resp); err != nil {
		t.Fatalf("postJSON failed: %v", err)
	}
	if resp.Status != "approved" {
		t.Errorf("status = %q, want %q", resp.Status, "approved")
	}
}

func TestClientErrorHandling(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]any{
			"error": "transition blocked",
			"code":  "WORKFLOW_GUARD_FAILED",
		})
	}))
	defer srv.Close()

	client := &workflowClient{baseURL: srv.URL, http: srv.Client()}

	err := client.postJSON(apiBase+"/requests/req-1/transition", map[string]any{"to": "approved"}, nil)
	if err == nil {
		t.Fatal("expected error for 422 response")
	}
	if !strings.Contains(err.Error(), "422") {
		t.Errorf("error should mention status code: %v", err)
	}
	if !strings.Contains(err.Error(), "WORKFLOW_GUARD_FAILED") {
		t.Errorf("error should carry the server body: %v", err)
	}
}

func TestClientDeleteHTTP(t *testing.T) {
	deleted := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete && r.URL.Path == apiBase+"/approval-rules/rule-1" {
			deleted = true
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := &workflowClient{baseURL: srv.URL, http: srv.Client()}
	if err := client.deleteJSON(apiBase + "/approval-rules/rule-1"); err != nil {
		t.Fatalf("deleteJSON failed: %v", err)
	}
	if !deleted {
		t.Error("server never saw the DELETE")
	}
}
