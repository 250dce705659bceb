package integration

import (
	"fmt"
	"net/url"
	"time"
)

// TestUser generates unique test user credentials using timestamp
func TestUser(suffix string) (email, password string) {
	ts := time.Now().UnixNano()
	email = fmt.Sprintf("test-%d-%s@example.com", ts, suffix)
	password = "TestPassword123!"
	return
}

// SignalForm builds the browser signal fields a login or signup form submits
func SignalForm(email, password string) url.Values {
	return url.Values{
		"email":               {email},
		"password":            {password},
		"platform":            {"MacIntel"},
		"webgl":               {"ANGLE (Apple, Apple M1, OpenGL 4.1)"},
		"hardwareConcurrency": {"8"},
		"deviceMemory":        {"8"},
		"screenResolution":    {"2560x1440"},
		"browserTimezone":     {"America/Denver"},
		"language":            {"en-US"},
	}
}

// ExtractSecretFromLink pulls the secret code out of a magic link URL
func ExtractSecretFromLink(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	return u.Query().Get("secret")
}
