package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDevice_DisplayName(t *testing.T) {
	device := &Device{OSFamily: "macOS", DeviceClass: "desktop"}
	assert.Equal(t, "macOS desktop", device.DisplayName())

	device.DeviceName = "Work Laptop"
	assert.Equal(t, "Work Laptop", device.DisplayName())
}

func TestDevice_CredentialsNeverSerialized(t *testing.T) {
	device := &Device{
		ID:                "device123",
		DeviceToken:       "secret-token",
		DeviceFingerprint: "fingerprint",
	}

	data, err := json.Marshal(device)
	require.NoError(t, err)

	assert.NotContains(t, string(data), "secret-token")
	assert.NotContains(t, string(data), "fingerprint")
}
