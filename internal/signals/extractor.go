package signals

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/netip"
	"strings"

	pkghttp "github.com/floretapp/floret/pkg/http"
	"github.com/mileusna/useragent"
)

// ServerSignals are observed by the server itself: the privacy-normalized
// network origin and the decomposed User-Agent header.
type ServerSignals struct {
	Origin        string // /24 (IPv4) or /48 (IPv6) network address
	UserAgent     string // raw header value
	BrowserFamily string
	OSFamily      string
	DeviceClass   string // desktop, mobile, tablet
}

// ClientSignals are reported by client-side script in the POST payload.
// Every field defaults to empty string when absent; extraction never fails.
type ClientSignals struct {
	// Stable fields (fingerprint inputs)
	Platform            string
	HardwareConcurrency string
	DeviceMemory        string
	WebGL               string

	// Volatile display fields
	ScreenResolution string
	ScreenColorDepth string
	BrowserTimezone  string
	Language         string
}

// Bundle carries everything the resolver needs from one request.
type Bundle struct {
	Server      ServerSignals
	Client      ClientSignals
	DeviceToken string // continuity cookie value, empty when absent
}

// HasClientSignals reports whether enough stable client fields are present to
// identify the device. All-empty stable fields means client scripting was
// unavailable and the request is unidentifiable.
func (c ClientSignals) HasClientSignals() bool {
	return c.Platform != "" || c.WebGL != ""
}

// FromRequest extracts server-observed and client-reported signals from a raw
// request. Best effort on malformed or missing input; never returns an error.
func FromRequest(r *http.Request) Bundle {
	_ = r.ParseForm()

	return Bundle{
		Server: extractServerSignals(r),
		Client: ClientSignals{
			Platform:            r.PostFormValue("platform"),
			HardwareConcurrency: r.PostFormValue("hardwareConcurrency"),
			DeviceMemory:        r.PostFormValue("deviceMemory"),
			WebGL:               r.PostFormValue("webgl"),
			ScreenResolution:    r.PostFormValue("screenResolution"),
			ScreenColorDepth:    r.PostFormValue("screenColorDepth"),
			BrowserTimezone:     r.PostFormValue("browserTimezone"),
			Language:            r.PostFormValue("language"),
		},
	}
}

func extractServerSignals(r *http.Request) ServerSignals {
	uaString := r.Header.Get("User-Agent")

	sig := ServerSignals{
		Origin:    NormalizeOrigin(pkghttp.ExtractClientIP(r)),
		UserAgent: uaString,
	}

	if uaString != "" {
		ua := useragent.Parse(uaString)
		sig.BrowserFamily = ua.Name
		sig.OSFamily = ua.OS
		sig.DeviceClass = classifyDevice(ua)
	}

	return sig
}

func classifyDevice(ua useragent.UserAgent) string {
	switch {
	case ua.Tablet:
		return "tablet"
	case ua.Mobile:
		return "mobile"
	case ua.Desktop:
		return "desktop"
	default:
		return "other"
	}
}

// NormalizeOrigin truncates an address to its /24 (IPv4) or /48 (IPv6) network
// before persistence or comparison. Unparseable input is returned unchanged.
func NormalizeOrigin(addr string) string {
	ip, err := netip.ParseAddr(addr)
	if err != nil {
		return addr
	}

	bits := 48
	if ip.Is4() || ip.Is4In6() {
		ip = ip.Unmap()
		bits = 24
	}

	prefix, err := ip.Prefix(bits)
	if err != nil {
		return addr
	}
	return prefix.Addr().String()
}

// Fingerprint derives the device fingerprint: a one-way digest over the
// account identifier and the stable hardware signals. Volatile display fields
// never contribute. Empty components are skipped, matching how partially
// absent signals are tolerated elsewhere.
func Fingerprint(userID string, server ServerSignals, client ClientSignals) string {
	components := []string{
		userID,
		server.OSFamily,
		server.DeviceClass,
		client.Platform,
		client.WebGL,
	}

	parts := make([]string, 0, len(components))
	for _, c := range components {
		if c != "" {
			parts = append(parts, c)
		}
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}
