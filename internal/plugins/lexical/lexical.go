// Package lexical scores a URL on its shape alone, without touching the
// network. It is the only extractor guaranteed to produce a result for
// every parseable target.
package lexical

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/CodeMonkeyCybersecurity/hera/internal/config"
	"github.com/CodeMonkeyCybersecurity/hera/pkg/target"
	"github.com/CodeMonkeyCybersecurity/hera/pkg/types"
)

const Source = "lexical"

type Extractor struct {
	cfg *config.DetectionConfig
}

func New(cfg *config.DetectionConfig) *Extractor {
	return &Extractor{cfg: cfg}
}

func (e *Extractor) Name() string {
	return Source
}

func (e *Extractor) Extract(ctx context.Context, tgt *target.Target) types.ExtractorResult {
	findings := []types.Finding{}

	checks := []func(*target.Target) (types.Finding, bool){
		e.checkIPLiteral,
		e.checkSuspiciousTLD,
		e.checkSubdomainDepth,
		e.checkDeceptiveChars,
		e.checkKeywords,
	}

	for _, check := range checks {
		if finding, hit := check(tgt); hit {
			findings = append(findings, finding)
		}
	}

	return types.ExtractorResult{
		Source:   Source,
		Status:   types.StatusOK,
		Findings: findings,
	}
}

func (e *Extractor) checkIPLiteral(tgt *target.Target) (types.Finding, bool) {
	if !tgt.IsIPLiteral() {
		return types.Finding{}, false
	}
	return types.Finding{
		Kind:     types.KindIPLiteralHost,
		Weight:   e.cfg.Weight(types.KindIPLiteralHost),
		Evidence: fmt.Sprintf("host is the raw IP address %s", tgt.Host),
	}, true
}

func (e *Extractor) checkSuspiciousTLD(tgt *target.Target) (types.Finding, bool) {
	if tgt.IsIPLiteral() {
		return types.Finding{}, false
	}

	idx := strings.LastIndex(tgt.Host, ".")
	if idx < 0 {
		return types.Finding{}, false
	}
	tld := tgt.Host[idx+1:]

	for _, entry := range e.cfg.SuspiciousTLDs {
		if strings.EqualFold(tld, strings.TrimPrefix(entry, ".")) {
			return types.Finding{
				Kind:     types.KindSuspiciousTLD,
				Weight:   e.cfg.Weight(types.KindSuspiciousTLD),
				Evidence: fmt.Sprintf("top-level domain .%s is on the high-abuse list", tld),
			}, true
		}
	}
	return types.Finding{}, false
}

func (e *Extractor) checkSubdomainDepth(tgt *target.Target) (types.Finding, bool) {
	if tgt.IsIPLiteral() {
		return types.Finding{}, false
	}

	var reasons []string
	if depth := strings.Count(tgt.Host, "."); depth > e.cfg.MaxSubdomains {
		reasons = append(reasons, fmt.Sprintf("%s nests %d levels deep", tgt.Host, depth))
	}
	if max := e.cfg.MaxHostnameLength; max > 0 && len(tgt.Host) > max {
		reasons = append(reasons, fmt.Sprintf("hostname is %d characters long", len(tgt.Host)))
	}

	if len(reasons) == 0 {
		return types.Finding{}, false
	}
	return types.Finding{
		Kind:     types.KindExcessiveSubdomains,
		Weight:   e.cfg.Weight(types.KindExcessiveSubdomains),
		Evidence: strings.Join(reasons, "; "),
	}, true
}

// checkDeceptiveChars covers the tricks that make a hostname read as
// something it is not: userinfo sections, percent-escapes in the authority,
// punycode labels and mixed-script lookalikes.
func (e *Extractor) checkDeceptiveChars(tgt *target.Target) (types.Finding, bool) {
	var reasons []string

	if tgt.HasUserinfo {
		reasons = append(reasons, "userinfo section hides the real host")
	}

	if authorityWasEncoded(tgt.Raw) {
		reasons = append(reasons, "percent-encoded characters mask the hostname")
	}

	for _, label := range strings.Split(tgt.Host, ".") {
		if strings.HasPrefix(label, "xn--") {
			reasons = append(reasons, fmt.Sprintf("punycode label %q decodes to %q", label, tgt.UnicodeHost))
			break
		}
	}

	if mixesScripts(tgt.UnicodeHost) {
		reasons = append(reasons, "hostname mixes Latin with Cyrillic or Greek lookalikes")
	}

	if len(reasons) == 0 {
		return types.Finding{}, false
	}
	return types.Finding{
		Kind:     types.KindDeceptiveChars,
		Weight:   e.cfg.Weight(types.KindDeceptiveChars),
		Evidence: strings.Join(reasons, "; "),
	}, true
}

// checkKeywords scans path and query only; hostname shape is covered by the
// other checks.
func (e *Extractor) checkKeywords(tgt *target.Target) (types.Finding, bool) {
	haystack := strings.ToLower(tgt.Path + "?" + tgt.Query)

	var matched []string
	for _, keyword := range e.cfg.SuspiciousKeywords {
		kw := strings.ToLower(strings.TrimSpace(keyword))
		if kw != "" && strings.Contains(haystack, kw) {
			matched = append(matched, kw)
		}
	}

	if len(matched) == 0 {
		return types.Finding{}, false
	}
	return types.Finding{
		Kind:     types.KindSuspiciousKeywords,
		Weight:   e.cfg.Weight(types.KindSuspiciousKeywords),
		Evidence: fmt.Sprintf("matched %s", strings.Join(matched, ", ")),
	}, true
}

// authorityWasEncoded reports whether the authority section of the raw
// input used percent-escapes. url.Parse decodes them silently, so the
// normalized host looks clean even when the address bar did not.
func authorityWasEncoded(raw string) bool {
	rest := raw
	if i := strings.Index(rest, "//"); i >= 0 {
		rest = rest[i+2:]
	}
	if i := strings.IndexAny(rest, "/?#"); i >= 0 {
		rest = rest[:i]
	}
	return strings.Contains(rest, "%")
}

// mixesScripts reports whether a hostname combines Latin letters with
// Cyrillic or Greek ones, the classic homoglyph setup ("аpple.com" with a
// Cyrillic а).
func mixesScripts(host string) bool {
	var latin, confusable bool
	for _, r := range host {
		switch {
		case unicode.Is(unicode.Latin, r):
			latin = true
		case unicode.Is(unicode.Cyrillic, r), unicode.Is(unicode.Greek, r):
			confusable = true
		}
		if latin && confusable {
			return true
		}
	}
	return false
}
