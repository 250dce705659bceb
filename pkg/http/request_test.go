package http_test

import (
	"net/http/httptest"
	"testing"

	pkghttp "github.com/floretapp/floret/pkg/http"
	"github.com/stretchr/testify/assert"
)

func TestExtractClientIP_DirectConnection(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "203.0.113.10:54321"

	assert.Equal(t, "203.0.113.10", pkghttp.ExtractClientIP(req))
}

func TestExtractClientIP_ForwardedChain(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.5:54321"
	req.Header.Set("X-Forwarded-For", "203.0.113.42, 10.0.0.5")

	assert.Equal(t, "203.0.113.42", pkghttp.ExtractClientIP(req),
		"the first forwarded entry is the original client")
}

func TestExtractClientIP_InvalidForwardedEntriesSkipped(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.5:54321"
	req.Header.Set("X-Forwarded-For", "garbage, 203.0.113.42")

	assert.Equal(t, "203.0.113.42", pkghttp.ExtractClientIP(req))
}

func TestExtractClientIP_AllForwardedInvalid(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.5:54321"
	req.Header.Set("X-Forwarded-For", "garbage, also-garbage")

	assert.Equal(t, "10.0.0.5", pkghttp.ExtractClientIP(req))
}

func TestExtractClientIP_IPv6(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "[2001:db8::1]:54321"

	assert.Equal(t, "2001:db8::1", pkghttp.ExtractClientIP(req))
}
