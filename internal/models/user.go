package models

import (
	"time"
)

// User is an email-identified account.
type User struct {
	ID              string     `json:"id"`
	Email           string     `json:"email"`
	PasswordHash    string     `json:"-"` // Never expose password hash
	FirstName       string     `json:"first_name"`
	LastName        string     `json:"last_name"`
	EmailVerifiedAt *time.Time `json:"email_verified_at,omitempty"`
	MFAEnabled      bool       `json:"mfa_enabled"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	DeletedAt       *time.Time `json:"-"`
}

// EmailVerified reports whether the account's email has been confirmed.
func (u *User) EmailVerified() bool {
	return u.EmailVerifiedAt != nil
}

// DisplayName returns the first name, or a fallback for accounts that never set one.
func (u *User) DisplayName() string {
	if u.FirstName != "" {
		return u.FirstName
	}
	return "Stranger"
}
