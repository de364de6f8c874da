// Package models defines the database model types for the MailNow admin backend.
// Each type corresponds to a database table and uses struct tags for both JSON serialization and sqlx row scanning.
// Models are pure data types: business rules live in the services layer, query logic in the repositories layer.
package models

import "time"

// User is a platform account. Every user owns exactly one Company and may be a team member of others.
type User struct {
	ID            int64     `json:"id" db:"id"`
	Email         string    `json:"email" db:"email"`
	PasswordHash  string    `json:"-" db:"password_hash"` // bcrypt; never serialized
	Firstname     *string   `json:"firstname,omitempty" db:"firstname"`
	Lastname      *string   `json:"lastname,omitempty" db:"lastname"`
	IsActive      bool      `json:"is_active" db:"is_active"`
	IsStaff       bool      `json:"is_staff" db:"is_staff"`
	IsSuperuser   bool      `json:"is_superuser" db:"is_superuser"`
	EmailVerified bool      `json:"email_verified" db:"email_verified"`
	MFAEnabled    bool      `json:"mfa_enabled" db:"mfa_enabled"`
	DateJoined    time.Time `json:"date_joined" db:"date_joined"`
}

// FullName joins first and last name, skipping missing parts.
func (u *User) FullName() string {
	var first, last string
	if u.Firstname != nil {
		first = *u.Firstname
	}
	if u.Lastname != nil {
		last = *u.Lastname
	}
	switch {
	case first == "":
		return last
	case last == "":
		return first
	}
	return first + " " + last
}
