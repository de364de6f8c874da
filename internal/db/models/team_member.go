// Package models - team_member.go defines user-to-company membership with a role.
package models

import (
	"time"

	"github.com/mailnow/mailnow-admin/internal/enums"
)

// TeamMember associates a user with a company they do not own.
// (user_id, company_id) is unique.
type TeamMember struct {
	ID        int64      `json:"id" db:"id"`
	UserID    int64      `json:"user_id" db:"user_id"`
	CompanyID int64      `json:"company_id" db:"company_id"`
	Role      enums.Role `json:"role" db:"role"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

// TeamMemberWithUser includes user details for display
type TeamMemberWithUser struct {
	TeamMember
	Email     string  `json:"email" db:"email"`
	Firstname *string `json:"firstname,omitempty" db:"firstname"`
	Lastname  *string `json:"lastname,omitempty" db:"lastname"`
}
