package whitelist

import (
	"testing"
)

func TestGate_ExactMatch(t *testing.T) {
	gate := New([]string{"login.bank.example", "paypal.com"})

	tests := []struct {
		host string
		want bool
	}{
		{"login.bank.example", true},
		{"paypal.com", true},
		{"PayPal.com", true},
		{"evil-paypal.com", false},
		{"sub.paypal.com", false},
		{"bank.example", false},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			if got := gate.Match(tt.host); got != tt.want {
				t.Errorf("Match(%q) = %v, want %v", tt.host, got, tt.want)
			}
		})
	}
}

func TestGate_WildcardMatch(t *testing.T) {
	gate := New([]string{"*.bank.example"})

	tests := []struct {
		host string
		want bool
	}{
		{"bank.example", true},
		{"login.bank.example", true},
		{"a.b.bank.example", true},
		{"notbank.example", false},
		{"bank.example.evil.com", false},
		{"example", false},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			if got := gate.Match(tt.host); got != tt.want {
				t.Errorf("Match(%q) = %v, want %v", tt.host, got, tt.want)
			}
		})
	}
}

func TestGate_EntryNormalization(t *testing.T) {
	gate := New([]string{" https://Example.COM/login ", "trusted.org."})

	if !gate.Match("example.com") {
		t.Error("entry with scheme and path should normalize to its host")
	}
	if !gate.Match("trusted.org") {
		t.Error("entry with trailing dot should normalize")
	}
}

func TestGate_EmptyAndMalformed(t *testing.T) {
	gate := New([]string{"", "   ", "*."})

	if gate.Size() != 0 {
		t.Errorf("empty entries should be skipped, size = %d", gate.Size())
	}
	if gate.Match("example.com") {
		t.Error("empty gate should match nothing")
	}
	if gate.Match("") {
		t.Error("empty host should never match")
	}
}
