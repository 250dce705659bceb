package models

import (
	"fmt"
	"net/url"
	"time"
)

// SecretType is the purpose a Secret was issued for.
type SecretType string

const (
	SecretTypePasswordReset     SecretType = "password_reset"
	SecretTypeEmailVerification SecretType = "email_verification"
	SecretTypeTwoFactor         SecretType = "two_factor"
)

// Valid reports whether t is a known secret type.
func (t SecretType) Valid() bool {
	switch t {
	case SecretTypePasswordReset, SecretTypeEmailVerification, SecretTypeTwoFactor:
		return true
	}
	return false
}

// Secret is a single-use bearer token scoped to one account and one purpose.
// It drives magic-link style authentication: password reset, email
// verification, and two-factor step-up challenges.
type Secret struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	Code       string     `json:"-"` // Never expose the code
	SecretType SecretType `json:"secret_type"`
	ExpiresAt  time.Time  `json:"expires_at"`
	UsedAt     *time.Time `json:"used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	DeletedAt  *time.Time `json:"-"`
}

// IsExpired checks if the secret has expired.
func (s *Secret) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// IsUsed checks if the secret has already been redeemed.
func (s *Secret) IsUsed() bool {
	return s.UsedAt != nil
}

// IsInvalidated checks if the secret was tombstoned before use, e.g. by a
// newer password-reset secret superseding it.
func (s *Secret) IsInvalidated() bool {
	return s.DeletedAt != nil
}

// MagicLink builds the redemption URL delivered by email.
func (s *Secret) MagicLink(baseURL string) string {
	params := url.Values{"secret": {s.Code}}
	return fmt.Sprintf("%s/magic_link/?%s", baseURL, params.Encode())
}
