package authz

import (
	"context"
	"net/http"
	"strings"
)

// identityCtxKey is an unexported type used as the context key for Identity.
type identityCtxKey struct{}

// Identity represents the authenticated caller making a request.
// Roles and region memberships are supplied by the identity provider
// and consumed here as opaque facts.
type Identity struct {
	User    string
	Roles   []Role
	Regions []string
}

// WithIdentity returns a new context with the given Identity attached.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityCtxKey{}, id)
}

// IdentityFromContext retrieves the Identity from the context.
// Returns the zero value and false if no identity is set.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityCtxKey{}).(Identity)
	return id, ok
}

// HasRole reports whether the identity carries the given role.
func (id Identity) HasRole(role Role) bool {
	for _, r := range id.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the identity carries the admin role.
func (id Identity) IsAdmin() bool { return id.HasRole(RoleAdmin) }

// MemberOfRegion reports whether the identity belongs to the region.
func (id Identity) MemberOfRegion(regionID string) bool {
	for _, r := range id.Regions {
		if r == regionID {
			return true
		}
	}
	return false
}

// IdentityMiddleware returns HTTP middleware that extracts identity from
// X-Remote-User, X-Remote-Role, and X-Remote-Region headers and stores it
// in the request context. If X-Remote-User is missing, the user defaults
// to "anonymous". Role and region headers are comma-separated.
func IdentityMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := strings.TrimSpace(r.Header.Get("X-Remote-User"))
			if user == "" {
				user = "anonymous"
			}

			var roles []Role
			roleHeader := strings.TrimSpace(r.Header.Get("X-Remote-Role"))
			if roleHeader != "" {
				for _, raw := range strings.Split(roleHeader, ",") {
					raw = strings.TrimSpace(raw)
					if raw != "" {
						roles = append(roles, Role(raw))
					}
				}
			}

			var regions []string
			regionHeader := strings.TrimSpace(r.Header.Get("X-Remote-Region"))
			if regionHeader != "" {
				for _, raw := range strings.Split(regionHeader, ",") {
					raw = strings.TrimSpace(raw)
					if raw != "" {
						regions = append(regions, raw)
					}
				}
			}

			id := Identity{User: user, Roles: roles, Regions: regions}
			ctx := WithIdentity(r.Context(), id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
