// Package identity holds the token payload shared by the registry service and its clients,
// together with the single role/subject resolution used on both sides.
package identity

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Role is an authorization role carried in tokens.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// String implements fmt.Stringer.
func (r Role) String() string {
	return string(r)
}

// NestedUser is the legacy payload shape where identity fields live under "user".
type NestedUser struct {
	ID    string `json:"_id,omitempty"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

// Claims is the signed token payload: {sub, name, email, role, iat, exp}.
// Older tokens may carry the id as _id/userId/id, the role under user.role or an
// isAdmin flag; all shapes decode into this one struct.
type Claims struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`

	LegacyID string      `json:"_id,omitempty"`
	UserID   string      `json:"userId,omitempty"`
	AltID    string      `json:"id,omitempty"`
	User     *NestedUser `json:"user,omitempty"`
	IsAdmin  *bool       `json:"isAdmin,omitempty"`

	jwt.RegisteredClaims
}

// Principal is the resolved identity attached to a request or shown by a client.
type Principal struct {
	Subject string `json:"_id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Role    Role   `json:"role"`
}

// PrincipalFrom resolves claims into a Principal.
func PrincipalFrom(c Claims) Principal {
	return Principal{
		Subject: ResolveSubject(c),
		Name:    c.Name,
		Email:   c.Email,
		Role:    ResolveRole(c),
	}
}

// ResolveRole derives the role from claims. First match wins:
// explicit role, nested user.role, isAdmin flag, then RoleUser.
// Unknown role strings are ignored, so the result is always a valid Role.
func ResolveRole(c Claims) Role {
	if role := normalizeRole(c.Role); role != "" {
		return role
	}
	if c.User != nil {
		if role := normalizeRole(c.User.Role); role != "" {
			return role
		}
	}
	if c.IsAdmin != nil && *c.IsAdmin {
		return RoleAdmin
	}
	return RoleUser
}

// ResolveSubject returns the first non-empty of sub, _id, userId and id.
func ResolveSubject(c Claims) string {
	for _, candidate := range []string{c.Subject, c.LegacyID, c.UserID, c.AltID} {
		if s := strings.TrimSpace(candidate); s != "" {
			return s
		}
	}
	return ""
}

func normalizeRole(raw string) Role {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	if !role.Valid() {
		return ""
	}
	return role
}
