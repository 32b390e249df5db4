// Package authz provides identity primitives for the validation workflow
// server. Identity is supplied by the fronting proxy as opaque headers;
// this package only consumes roles and region memberships as facts.
package authz

// Role names recognized by the workflow core.
type Role string

const (
	RoleAdmin            Role = "admin"
	RoleValidator        Role = "validator"
	RoleGlobalApprover   Role = "global_approver"
	RoleRegionalApprover Role = "regional_approver"
	RoleUser             Role = "user"
)

// KnownRoles lists every role the core dispatches on.
var KnownRoles = []Role{
	RoleAdmin,
	RoleValidator,
	RoleGlobalApprover,
	RoleRegionalApprover,
	RoleUser,
}

// IsKnownRole reports whether name is one of the recognized roles.
func IsKnownRole(name string) bool {
	for _, r := range KnownRoles {
		if string(r) == name {
			return true
		}
	}
	return false
}
