package whitelist

import (
	"strings"
)

// Gate holds the trusted-domain patterns loaded from configuration.
// Entries are normalized once at construction and never mutated afterwards,
// so Match is safe for concurrent use without locking.
//
// Two entry forms are supported:
//   - "login.bank.example"  exact host match
//   - "*.bank.example"      matches the apex and every subdomain
type Gate struct {
	exact     map[string]struct{}
	wildcards []string
}

// New builds a gate from raw configuration entries. Malformed or empty
// entries are skipped rather than rejected; the whitelist is an operator
// convenience, not a validation surface.
func New(entries []string) *Gate {
	g := &Gate{
		exact: make(map[string]struct{}),
	}

	for _, entry := range entries {
		normalized := normalizeEntry(entry)
		if normalized == "" {
			continue
		}
		if base, ok := strings.CutPrefix(normalized, "*."); ok {
			if base != "" {
				g.wildcards = append(g.wildcards, base)
			}
			continue
		}
		g.exact[normalized] = struct{}{}
	}

	return g
}

// Match reports whether host is covered by a trusted entry.
func (g *Gate) Match(host string) bool {
	host = normalizeEntry(host)
	if host == "" {
		return false
	}

	if _, ok := g.exact[host]; ok {
		return true
	}

	for _, base := range g.wildcards {
		if host == base || strings.HasSuffix(host, "."+base) {
			return true
		}
	}

	return false
}

// Size returns the number of loaded patterns.
func (g *Gate) Size() int {
	return len(g.exact) + len(g.wildcards)
}

// normalizeEntry lowercases and strips the noise people paste into domain
// lists: schemes, paths, trailing dots.
func normalizeEntry(entry string) string {
	entry = strings.TrimSpace(strings.ToLower(entry))
	entry = strings.TrimPrefix(entry, "http://")
	entry = strings.TrimPrefix(entry, "https://")
	if idx := strings.IndexByte(entry, '/'); idx >= 0 {
		entry = entry[:idx]
	}
	return strings.TrimSuffix(entry, ".")
}
