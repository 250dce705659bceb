package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSecretType_Valid(t *testing.T) {
	assert.True(t, SecretTypePasswordReset.Valid())
	assert.True(t, SecretTypeEmailVerification.Valid())
	assert.True(t, SecretTypeTwoFactor.Valid())
	assert.False(t, SecretType("session").Valid())
	assert.False(t, SecretType("").Valid())
}

func TestSecret_Lifecycle(t *testing.T) {
	now := time.Now()
	secret := &Secret{ExpiresAt: now.Add(time.Hour)}

	assert.False(t, secret.IsExpired())
	assert.False(t, secret.IsUsed())
	assert.False(t, secret.IsInvalidated())

	secret.ExpiresAt = now.Add(-time.Minute)
	assert.True(t, secret.IsExpired())

	secret.UsedAt = &now
	assert.True(t, secret.IsUsed())

	secret.DeletedAt = &now
	assert.True(t, secret.IsInvalidated())
}

func TestSecret_MagicLink(t *testing.T) {
	secret := &Secret{Code: "abc123"}

	assert.Equal(t, "https://floret.app/magic_link/?secret=abc123", secret.MagicLink("https://floret.app"))
}

func TestSecret_MagicLinkEscapesCode(t *testing.T) {
	secret := &Secret{Code: "a+b/c"}

	assert.Equal(t, "https://floret.app/magic_link/?secret=a%2Bb%2Fc", secret.MagicLink("https://floret.app"))
}
