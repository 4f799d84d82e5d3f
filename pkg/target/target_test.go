package target

import (
	"testing"

	"github.com/CodeMonkeyCybersecurity/hera/pkg/types"
)

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"whitespace only", "   "},
		{"no scheme", "not a url"},
		{"bare domain", "example.com"},
		{"unsupported scheme", "ftp://example.com/file"},
		{"scheme only", "http://"},
		{"javascript scheme", "javascript:alert(1)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.raw)
			if err == nil {
				t.Fatalf("Parse(%q) should fail", tt.raw)
			}
			if !types.IsInvalidInput(err) {
				t.Errorf("Parse(%q) error = %v, want InvalidInputError", tt.raw, err)
			}
		})
	}
}

func TestParse_Normalization(t *testing.T) {
	tests := []struct {
		raw      string
		wantHost string
		wantURL  string
	}{
		{"https://Example.COM/Path?q=1#frag", "example.com", "https://example.com/Path?q=1"},
		{"http://example.com:80/", "example.com", "http://example.com/"},
		{"https://example.com:443/a", "example.com", "https://example.com/a"},
		{"https://example.com:8443/a", "example.com", "https://example.com:8443/a"},
		{"http://example.com./x", "example.com", "http://example.com/x"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			tgt, err := Parse(tt.raw)
			if err != nil {
				t.Fatalf("Parse(%q) failed: %v", tt.raw, err)
			}
			if tgt.Host != tt.wantHost {
				t.Errorf("Parse(%q) host = %q, want %q", tt.raw, tgt.Host, tt.wantHost)
			}
			if tgt.URL != tt.wantURL {
				t.Errorf("Parse(%q) url = %q, want %q", tt.raw, tgt.URL, tt.wantURL)
			}
		})
	}
}

func TestParse_IPLiteral(t *testing.T) {
	tgt, err := Parse("http://192.168.1.1/login.php?bank=secure")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if !tgt.IsIPLiteral() {
		t.Error("192.168.1.1 should be detected as an IP literal")
	}
	if tgt.RegistrableDomain != "" {
		t.Errorf("IP literal should have no registrable domain, got %q", tgt.RegistrableDomain)
	}
	if tgt.Path != "/login.php" {
		t.Errorf("path = %q, want /login.php", tgt.Path)
	}
	if tgt.Query != "bank=secure" {
		t.Errorf("query = %q, want bank=secure", tgt.Query)
	}
}

func TestParse_PunycodeHost(t *testing.T) {
	tgt, err := Parse("https://xn--bcher-kva.example/login")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if tgt.UnicodeHost == tgt.Host {
		t.Errorf("punycode host should decode, got %q", tgt.UnicodeHost)
	}
}

func TestParse_RegistrableDomain(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"https://www.example.com/", "example.com"},
		{"https://a.b.example.co.uk/", "example.co.uk"},
		{"https://example.org/", "example.org"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			tgt, err := Parse(tt.raw)
			if err != nil {
				t.Fatalf("Parse(%q) failed: %v", tt.raw, err)
			}
			if tgt.RegistrableDomain != tt.want {
				t.Errorf("registrable domain = %q, want %q", tgt.RegistrableDomain, tt.want)
			}
		})
	}
}
