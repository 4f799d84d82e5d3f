// Package advice turns a RiskReport into operator-facing recommendations.
// One line per distinct finding kind, preceded by tier-level guidance.
package advice

import (
	"github.com/CodeMonkeyCybersecurity/hera/pkg/types"
)

var byKind = map[string]string{
	types.KindIPLiteralHost:       "Site uses a raw IP address instead of a domain name",
	types.KindSuspiciousTLD:       "The top-level domain is heavily abused by phishing campaigns",
	types.KindExcessiveSubdomains: "Deep subdomain nesting is often used to fake a trusted domain",
	types.KindDeceptiveChars:      "The hostname contains characters crafted to look like another domain",
	types.KindSuspiciousKeywords:  "The URL contains credential-harvesting keywords",

	types.KindCertAbsent:           "Connection is plain HTTP; anything you type travels unencrypted",
	types.KindCertUnverifiable:     "The TLS certificate could not be verified",
	types.KindCertExpired:          "The TLS certificate has expired",
	types.KindCertNotYetValid:      "The TLS certificate is not yet valid",
	types.KindCertHostnameMismatch: "The TLS certificate was issued for a different hostname",
	types.KindCertSelfSigned:       "The TLS certificate is self-signed",
	types.KindCertUntrustedIssuer:  "The TLS certificate was not issued by a trusted authority",
	types.KindCertRevoked:          "The TLS certificate has been revoked by its issuer",

	types.KindLoginFormPresent:    "The page asks for credentials; confirm the domain before entering any",
	types.KindCrossDomainForm:     "The login form submits your input to a different domain",
	types.KindExternalLinkDensity: "Most links on the page lead away from this domain",
	types.KindBrandImpersonation:  "The page presents a known brand it does not belong to",
	types.KindObfuscatedScripts:   "The page runs obfuscated scripts that hide their behavior",

	types.KindYoungDomain:      "The domain was registered very recently; exercise extra caution",
	types.KindPrivacyProtected: "The domain owner is hidden behind a privacy service",
	types.KindUnresolvableHost: "The hostname does not resolve in public DNS",

	types.KindAIClassifier: "A trained classifier rates this URL as likely phishing",
}

// Recommendations builds the guidance list for a report. The slice is
// never nil so API responses serialize as [] rather than null.
func Recommendations(report *types.RiskReport) []string {
	recs := []string{}

	switch report.Tier {
	case types.TierMalicious:
		recs = append(recs,
			"HIGH RISK: do not enter personal information on this site",
			"Avoid clicking links or downloading files from this page",
			"Contact the organization through a channel you already trust")
	case types.TierSuspicious:
		recs = append(recs,
			"Verify the domain spelling carefully before trusting this site")
	}

	if report.Whitelisted {
		recs = append(recs, "Domain is on the trusted list; the verdict was overridden to safe")
	}

	seen := make(map[string]bool)
	for _, finding := range report.Findings {
		if seen[finding.Kind] {
			continue
		}
		seen[finding.Kind] = true
		if line, ok := byKind[finding.Kind]; ok {
			recs = append(recs, line)
		}
	}

	if report.Degraded() {
		recs = append(recs, "Some checks could not complete; this verdict rests on partial evidence")
	}

	if report.Tier == types.TierSafe && len(report.Findings) == 0 {
		recs = append(recs, "No risk signals found, but always verify URLs before entering credentials")
	}

	return recs
}
