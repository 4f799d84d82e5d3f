package types

import (
	"time"
)

type Tier string

const (
	TierSafe       Tier = "safe"
	TierSuspicious Tier = "suspicious"
	TierMalicious  Tier = "malicious"
)

type ExtractorStatus string

const (
	StatusOK          ExtractorStatus = "ok"
	StatusPartial     ExtractorStatus = "partial"
	StatusUnavailable ExtractorStatus = "unavailable"
)

// Finding kinds emitted by the built-in extractors. Weights for each kind come
// from configuration; the values here are only the category names.
const (
	KindIPLiteralHost       = "ip_literal_host"
	KindSuspiciousTLD       = "suspicious_tld"
	KindExcessiveSubdomains = "excessive_subdomains"
	KindDeceptiveChars      = "deceptive_chars"
	KindSuspiciousKeywords  = "suspicious_keywords"

	KindCertAbsent           = "cert_absent"
	KindCertUnverifiable     = "cert_unverifiable"
	KindCertExpired          = "cert_expired"
	KindCertNotYetValid      = "cert_not_yet_valid"
	KindCertHostnameMismatch = "cert_hostname_mismatch"
	KindCertSelfSigned       = "cert_self_signed"
	KindCertUntrustedIssuer  = "cert_untrusted_issuer"
	KindCertRevoked          = "cert_revoked"

	KindLoginFormPresent    = "login_form_present"
	KindCrossDomainForm     = "cross_domain_form"
	KindExternalLinkDensity = "external_link_density"
	KindBrandImpersonation  = "brand_impersonation"
	KindObfuscatedScripts   = "obfuscated_scripts"

	KindYoungDomain      = "young_domain"
	KindPrivacyProtected = "privacy_protected_registrant"
	KindUnresolvableHost = "unresolvable_host"

	KindAIClassifier = "ai_classifier"
)

type Finding struct {
	Kind     string  `json:"kind" db:"kind"`
	Weight   float64 `json:"weight" db:"weight"`
	Evidence string  `json:"evidence,omitempty" db:"evidence"`
}

type ExtractorResult struct {
	Source   string          `json:"source"`
	Status   ExtractorStatus `json:"status"`
	Findings []Finding       `json:"findings,omitempty"`
}

type RiskReport struct {
	URL         string                     `json:"url"`
	Score       float64                    `json:"score"`
	Tier        Tier                       `json:"tier"`
	Whitelisted bool                       `json:"whitelisted"`
	Findings    []Finding                  `json:"findings"`
	Extractors  map[string]ExtractorStatus `json:"extractor_status,omitempty"`
	AnalyzedAt  time.Time                  `json:"analyzed_at"`
	DurationMS  int64                      `json:"duration_ms"`
	Cached      bool                       `json:"cached,omitempty"`
}

// Degraded reports true when at least one extractor could not complete, so the
// score was computed from partial evidence.
func (r *RiskReport) Degraded() bool {
	for _, status := range r.Extractors {
		if status == StatusUnavailable {
			return true
		}
	}
	return false
}

type DomainReputation struct {
	Host            string    `json:"host" db:"host"`
	Analyses        int       `json:"analyses" db:"analyses"`
	SafeCount       int       `json:"safe_count" db:"safe_count"`
	SuspiciousCount int       `json:"suspicious_count" db:"suspicious_count"`
	MaliciousCount  int       `json:"malicious_count" db:"malicious_count"`
	LastScore       float64   `json:"last_score" db:"last_score"`
	LastTier        Tier      `json:"last_tier" db:"last_tier"`
	FirstSeen       time.Time `json:"first_seen" db:"first_seen"`
	LastSeen        time.Time `json:"last_seen" db:"last_seen"`
}

type Feedback struct {
	ID           string    `json:"id" db:"id"`
	URL          string    `json:"url" db:"url"`
	ReportedTier Tier      `json:"reported_tier" db:"reported_tier"`
	Comment      string    `json:"comment,omitempty" db:"comment"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
