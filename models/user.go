package models

import "time"

// Role controls what a user may see and change.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleMaintainer Role = "maintainer"
	RoleReporter   Role = "reporter"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleMaintainer, RoleReporter:
		return true
	}
	return false
}

// User represents a registered account.
// It maps to the `users` table.
type User struct {
	ID             int64     `gorm:"primaryKey" json:"id"`
	Email          string    `gorm:"uniqueIndex;not null" json:"email"`
	HashedPassword string    `gorm:"not null" json:"-"`
	FullName       *string   `json:"full_name"`
	Role           Role      `gorm:"type:varchar(20);not null;default:reporter" json:"role"`
	CreatedAt      time.Time `json:"created_at"`
}
