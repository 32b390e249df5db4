package authz

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestIdentityContextRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		identity Identity
	}{
		{
			name:     "basic user",
			identity: Identity{User: "alice", Roles: []Role{RoleValidator}},
		},
		{
			name:     "user with multiple roles and regions",
			identity: Identity{User: "bob", Roles: []Role{RoleValidator, RoleRegionalApprover}, Regions: []string{"emea", "apac"}},
		},
		{
			name:     "user with no roles",
			identity: Identity{User: "carol"},
		},
		{
			name:     "empty user",
			identity: Identity{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := WithIdentity(context.Background(), tt.identity)
			got, ok := IdentityFromContext(ctx)
			if !ok {
				t.Fatal("expected identity in context, got none")
			}
			if got.User != tt.identity.User {
				t.Errorf("User = %q, want %q", got.User, tt.identity.User)
			}
			if len(got.Roles) != len(tt.identity.Roles) {
				t.Fatalf("Roles length = %d, want %d", len(got.Roles), len(tt.identity.Roles))
			}
			for i, r := range got.Roles {
				if r != tt.identity.Roles[i] {
					t.Errorf("Roles[%d] = %q, want %q", i, r, tt.identity.Roles[i])
				}
			}
			if len(got.Regions) != len(tt.identity.Regions) {
				t.Fatalf("Regions length = %d, want %d", len(got.Regions), len(tt.identity.Regions))
			}
		})
	}
}

func TestIdentityFromContextMissing(t *testing.T) {
	_, ok := IdentityFromContext(context.Background())
	if ok {
		t.Error("expected no identity in empty context")
	}
}

func TestIdentityHelpers(t *testing.T) {
	id := Identity{
		User:    "alice",
		Roles:   []Role{RoleRegionalApprover},
		Regions: []string{"emea"},
	}

	if !id.HasRole(RoleRegionalApprover) {
		t.Error("expected HasRole(regional_approver) to be true")
	}
	if id.HasRole(RoleAdmin) {
		t.Error("expected HasRole(admin) to be false")
	}
	if id.IsAdmin() {
		t.Error("expected IsAdmin to be false")
	}
	if !id.MemberOfRegion("emea") {
		t.Error("expected MemberOfRegion(emea) to be true")
	}
	if id.MemberOfRegion("apac") {
		t.Error("expected MemberOfRegion(apac) to be false")
	}

	admin := Identity{User: "root", Roles: []Role{RoleAdmin}}
	if !admin.IsAdmin() {
		t.Error("expected IsAdmin to be true")
	}
}

func TestIsKnownRole(t *testing.T) {
	for _, r := range KnownRoles {
		if !IsKnownRole(string(r)) {
			t.Errorf("expected %q to be known", r)
		}
	}
	if IsKnownRole("superuser") {
		t.Error("expected superuser to be unknown")
	}
}

func TestIdentityMiddleware(t *testing.T) {
	tests := []struct {
		name            string
		userHeader      string
		roleHeader      string
		regionHeader    string
		expectedUser    string
		expectedRoles   []Role
		expectedRegions []string
	}{
		{
			name:          "all headers present",
			userHeader:    "alice",
			roleHeader:    "validator,regional_approver",
			regionHeader:  "emea",
			expectedUser:  "alice",
			expectedRoles: []Role{RoleValidator, RoleRegionalApprover},
			expectedRegions: []string{
				"emea",
			},
		},
		{
			name:          "missing user header defaults to anonymous",
			userHeader:    "",
			roleHeader:    "user",
			expectedUser:  "anonymous",
			expectedRoles: []Role{RoleUser},
		},
		{
			name:         "missing role header",
			userHeader:   "bob",
			expectedUser: "bob",
		},
		{
			name:         "all headers missing",
			expectedUser: "anonymous",
		},
		{
			name:          "roles with spaces and empty segments",
			userHeader:    "carol",
			roleHeader:    " validator ,, admin , ",
			expectedUser:  "carol",
			expectedRoles: []Role{RoleValidator, RoleAdmin},
		},
		{
			name:         "whitespace-only user defaults to anonymous",
			userHeader:   "   ",
			expectedUser: "anonymous",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var capturedID Identity
			var capturedOK bool

			handler := IdentityMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				capturedID, capturedOK = IdentityFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.userHeader != "" {
				req.Header.Set("X-Remote-User", tt.userHeader)
			}
			if tt.roleHeader != "" {
				req.Header.Set("X-Remote-Role", tt.roleHeader)
			}
			if tt.regionHeader != "" {
				req.Header.Set("X-Remote-Region", tt.regionHeader)
			}

			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if !capturedOK {
				t.Fatal("expected identity in context after middleware")
			}
			if capturedID.User != tt.expectedUser {
				t.Errorf("User = %q, want %q", capturedID.User, tt.expectedUser)
			}
			if len(capturedID.Roles) != len(tt.expectedRoles) {
				t.Fatalf("Roles length = %d, want %d", len(capturedID.Roles), len(tt.expectedRoles))
			}
			for i, r := range capturedID.Roles {
				if r != tt.expectedRoles[i] {
					t.Errorf("Roles[%d] = %q, want %q", i, r, tt.expectedRoles[i])
				}
			}
			if len(capturedID.Regions) != len(tt.expectedRegions) {
				t.Fatalf("Regions length = %d, want %d", len(capturedID.Regions), len(tt.expectedRegions))
			}
		})
	}
}
