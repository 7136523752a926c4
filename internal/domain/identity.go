package domain

import "time"

// Role is the platform role carried by an authenticated identity.
type Role string

const (
	RoleOrganizer Role = "organizer"
	RoleAttendee  Role = "attendee"
)

// Identity is a user resolved by the external identity provider.
type Identity struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
}

// IsOrganizer reports whether the identity may run organizer-only operations.
func (i Identity) IsOrganizer() bool {
	return i.Role == RoleOrganizer
}

// TokenVerifier verifies a bearer token and returns the identity it was issued for.
type TokenVerifier interface {
	Verify(token string) (*Identity, error)
}

// TokenIssuer issues tokens for an identity. The platform's auth service owns issuance;
// this port exists for tooling and tests.
type TokenIssuer interface {
	Issue(identity Identity, expiry time.Duration) (string, error)
}
