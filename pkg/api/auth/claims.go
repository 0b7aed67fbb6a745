// Package auth validates the bearer tokens accepted by the admin API.
package auth

import "github.com/golang-jwt/jwt/v5"

// Role is the Supabase-style role claim.
type Role string

const (
	// RoleAnon is carried by the public anonymous key.
	RoleAnon Role = "anon"
	// RoleAuthenticated is carried by signed-in users.
	RoleAuthenticated Role = "authenticated"
	// RoleServiceRole bypasses row-level security and is required for
	// administrative endpoints.
	RoleServiceRole Role = "service_role"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAnon, RoleAuthenticated, RoleServiceRole:
		return true
	}
	return false
}

// Claims are the JWT claims issued by Supabase Auth.
type Claims struct {
	jwt.RegisteredClaims

	Role  Role   `json:"role"`
	Email string `json:"email,omitempty"`
}

// IsServiceRole returns true for service_role tokens.
func (c *Claims) IsServiceRole() bool {
	return c.Role == RoleServiceRole
}

// HasRole returns true if the token carries any of roles.
func (c *Claims) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if c.Role == r {
			return true
		}
	}
	return false
}
