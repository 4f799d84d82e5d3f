package target

import (
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
	"golang.org/x/net/publicsuffix"

	"github.com/CodeMonkeyCybersecurity/hera/pkg/types"
)

// Target holds the URL under analysis plus facts derived from it once at parse
// time. Construction performs no network I/O; the IP field is only set when
// the host itself is an IP literal. Targets are never mutated after Parse.
type Target struct {
	Raw    string
	URL    string
	Scheme string
	Host   string
	Port   string
	Path   string
	Query  string

	// HasUserinfo is set when the URL carried a user[:password]@ section,
	// a common trick for burying the real host.
	HasUserinfo bool

	// IP is non-nil when Host is an IPv4 or IPv6 literal.
	IP net.IP

	// UnicodeHost is the IDNA-decoded form of Host when it carries punycode
	// labels, otherwise it equals Host.
	UnicodeHost string

	// RegistrableDomain is the eTLD+1 of Host (empty for IP literals and
	// hosts without a public suffix).
	RegistrableDomain string
}

// IsIPLiteral reports whether the host is a raw IP address.
func (t *Target) IsIPLiteral() bool {
	return t.IP != nil
}

// Parse validates a raw URL and derives an immutable Target from it.
// The only failure mode is *types.InvalidInputError.
func Parse(raw string) (*Target, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, &types.InvalidInputError{Input: raw, Reason: "empty URL"}
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, &types.InvalidInputError{Input: raw, Reason: err.Error()}
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, &types.InvalidInputError{Input: raw, Reason: "scheme must be http or https"}
	}

	host := strings.ToLower(parsed.Hostname())
	host = strings.TrimSuffix(host, ".")
	if host == "" {
		return nil, &types.InvalidInputError{Input: raw, Reason: "missing host"}
	}

	t := &Target{
		Raw:         trimmed,
		Scheme:      scheme,
		Host:        host,
		Port:        parsed.Port(),
		Path:        parsed.EscapedPath(),
		Query:       parsed.RawQuery,
		HasUserinfo: parsed.User != nil,
		IP:          net.ParseIP(host),
		UnicodeHost: host,
	}

	if strings.Contains(host, "xn--") {
		if decoded, err := idna.ToUnicode(host); err == nil {
			t.UnicodeHost = decoded
		}
	}

	if t.IP == nil {
		if base, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
			t.RegistrableDomain = base
		}
	}

	t.URL = rebuild(t)
	return t, nil
}

// rebuild produces the normalized URL form: lowercase scheme and host, default
// ports stripped, fragment discarded.
func rebuild(t *Target) string {
	var sb strings.Builder
	sb.WriteString(t.Scheme)
	sb.WriteString("://")
	if t.IP != nil && strings.Contains(t.Host, ":") {
		sb.WriteString("[" + t.Host + "]")
	} else {
		sb.WriteString(t.Host)
	}
	if t.Port != "" && !isDefaultPort(t.Scheme, t.Port) {
		sb.WriteString(":" + t.Port)
	}
	sb.WriteString(t.Path)
	if t.Query != "" {
		sb.WriteString("?" + t.Query)
	}
	return sb.String()
}

func isDefaultPort(scheme, port string) bool {
	return (scheme == "http" && port == "80") || (scheme == "https" && port == "443")
}
