package domain

import "time"

// User is the relational side of an identity. The directory entry keyed by
// the same email holds the credential; this record never carries a password.
type User struct {
	ID        string
	Email     string
	FirstName string
	LastName  string
	RoleID    int
	AvatarRef string

	// Password-reset state lives inline on the row. At most one live token
	// per user; redeeming clears both fields.
	ResetToken        string
	ResetTokenExpires *time.Time

	CreatedAt time.Time
}

// Role resolves the user's role name from its role id.
func (u User) Role() string {
	return RoleFromID(u.RoleID)
}
