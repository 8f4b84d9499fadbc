package postgres

import "time"

type userRow struct {
	ID                string
	Email             string
	FirstName         string
	LastName          string
	RoleID            int
	AvatarRef         *string
	ResetToken        *string
	ResetTokenExpires *time.Time
	CreatedAt         time.Time
}
