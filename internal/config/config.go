package config

import (
	"time"

	"github.com/CodeMonkeyCybersecurity/hera/pkg/types"
)

type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Detection DetectionConfig `mapstructure:"detection"`
	AI        AIConfig        `mapstructure:"ai"`
}

type LoggerConfig struct {
	Level       string   `mapstructure:"level"`
	Format      string   `mapstructure:"format"`
	OutputPaths []string `mapstructure:"output_paths"`
}

type HTTPConfig struct {
	AuthToken       string          `mapstructure:"auth_token"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit"`
	CORSOrigins     []string        `mapstructure:"cors_origins"`
	ReadTimeout     time.Duration   `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration   `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration   `mapstructure:"shutdown_timeout"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `mapstructure:"requests_per_second"`
	BurstSize         int `mapstructure:"burst_size"`
}

type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxConnections  int           `mapstructure:"max_connections"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	VerdictTTL   time.Duration `mapstructure:"verdict_ttl"`
}

type TelemetryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	ServiceName string  `mapstructure:"service_name"`
	Endpoint    string  `mapstructure:"endpoint"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

// DetectionConfig carries the scoring surface: the per-kind weight table, tier
// cutoffs, whitelist, per-extractor timeouts and the heuristic word lists.
// Loaded once at startup and treated as read-only afterwards.
type DetectionConfig struct {
	Weights            map[string]float64 `mapstructure:"weights"`
	TierLowCutoff      float64            `mapstructure:"tier_low_cutoff"`
	TierHighCutoff     float64            `mapstructure:"tier_high_cutoff"`
	Whitelist          []string           `mapstructure:"whitelist"`
	RulesFile          string             `mapstructure:"rules_file"`
	Timeouts           TimeoutsConfig     `mapstructure:"timeouts_ms"`
	SuspiciousTLDs     []string           `mapstructure:"suspicious_tlds"`
	SuspiciousKeywords []string           `mapstructure:"suspicious_keywords"`
	BrandKeywords      []string           `mapstructure:"brand_keywords"`
	MinDomainAgeDays   int                `mapstructure:"min_domain_age_days"`
	MaxSubdomains      int                `mapstructure:"max_subdomains"`
	MaxHostnameLength  int                `mapstructure:"max_hostname_length"`
	MaxRedirects       int                `mapstructure:"max_redirects"`
	MaxBodyBytes       int64              `mapstructure:"max_body_bytes"`
	ExternalLinkRatio  float64            `mapstructure:"external_link_ratio"`
	AllowPrivateHosts  bool               `mapstructure:"allow_private_hosts"`
	UseBrowser         bool               `mapstructure:"use_browser"`
	Resolver           string             `mapstructure:"resolver"`
}

// TimeoutsConfig values are milliseconds on the wire; use the accessor methods
// for durations.
type TimeoutsConfig struct {
	SSL     int `mapstructure:"ssl"`
	Content int `mapstructure:"content"`
	Domain  int `mapstructure:"domain"`
	AI      int `mapstructure:"ai"`
}

func (t TimeoutsConfig) SSLTimeout() time.Duration {
	return time.Duration(t.SSL) * time.Millisecond
}

func (t TimeoutsConfig) ContentTimeout() time.Duration {
	return time.Duration(t.Content) * time.Millisecond
}

func (t TimeoutsConfig) DomainTimeout() time.Duration {
	return time.Duration(t.Domain) * time.Millisecond
}

func (t TimeoutsConfig) AITimeout() time.Duration {
	return time.Duration(t.AI) * time.Millisecond
}

type AIConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

// defaultWeights is the built-in weight table. Values configured under
// detection.weights override these per kind; kinds absent from both score 0.
var defaultWeights = map[string]float64{
	types.KindIPLiteralHost:       30,
	types.KindSuspiciousTLD:       20,
	types.KindExcessiveSubdomains: 20,
	types.KindDeceptiveChars:      25,
	types.KindSuspiciousKeywords:  15,

	types.KindCertAbsent:           10,
	types.KindCertUnverifiable:     10,
	types.KindCertExpired:          30,
	types.KindCertNotYetValid:      25,
	types.KindCertHostnameMismatch: 30,
	types.KindCertSelfSigned:       25,
	types.KindCertUntrustedIssuer:  20,
	types.KindCertRevoked:          40,

	types.KindLoginFormPresent:    10,
	types.KindCrossDomainForm:     25,
	types.KindExternalLinkDensity: 10,
	types.KindBrandImpersonation:  15,
	types.KindObfuscatedScripts:   15,

	types.KindYoungDomain:      20,
	types.KindPrivacyProtected: 5,
	types.KindUnresolvableHost: 25,

	types.KindAIClassifier: 40,
}

// Weight resolves the effective weight for a finding kind.
func (d *DetectionConfig) Weight(kind string) float64 {
	if w, ok := d.Weights[kind]; ok {
		return w
	}
	return defaultWeights[kind]
}

func DefaultConfig() *Config {
	return &Config{
		Logger: LoggerConfig{
			Level:       "info",
			Format:      "console",
			OutputPaths: []string{"stdout"},
		},
		HTTP: HTTPConfig{
			RateLimit: RateLimitConfig{
				RequestsPerSecond: 10,
				BurstSize:         20,
			},
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			MaxConnections:  25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 1 * time.Hour,
		},
		Redis: RedisConfig{
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			VerdictTTL:   10 * time.Minute,
		},
		Telemetry: TelemetryConfig{
			Enabled:     false,
			ServiceName: "hera",
			Endpoint:    "localhost:4318",
			SampleRate:  1.0,
		},
		Detection: DetectionConfig{
			TierLowCutoff:  20,
			TierHighCutoff: 60,
			Timeouts: TimeoutsConfig{
				SSL:     5000,
				Content: 10000,
				Domain:  8000,
				AI:      10000,
			},
			SuspiciousTLDs: []string{
				"tk", "ml", "ga", "cf", "gq", "top", "zip",
			},
			SuspiciousKeywords: []string{
				"login", "signin", "verify", "secure", "account",
				"update", "bank", "confirm", "password", "webscr",
			},
			BrandKeywords: []string{
				"paypal", "apple", "microsoft", "google", "amazon",
				"netflix", "facebook", "instagram", "chase",
				"wellsfargo", "bankofamerica", "coinbase",
			},
			MinDomainAgeDays:  30,
			MaxSubdomains:     3,
			MaxHostnameLength: 30,
			MaxRedirects:      5,
			MaxBodyBytes:      2 * 1024 * 1024,
			ExternalLinkRatio: 0.5,
			Resolver:          "", // empty means the system resolver
		},
		AI: AIConfig{
			Enabled:     false,
			Model:       "gpt-4o-mini",
			MaxTokens:   500,
			Temperature: 0.1,
		},
	}
}

// Validate rejects configurations the engine cannot score with. A broken
// weight table or inverted cutoffs must stop the process at startup rather
// than silently misclassify.
func (c *Config) Validate() error {
	d := &c.Detection

	for kind, w := range d.Weights {
		if w < 0 {
			return &types.ConfigurationError{
				Field:  "detection.weights." + kind,
				Reason: "weight must not be negative",
			}
		}
	}
	if d.TierLowCutoff < 0 {
		return &types.ConfigurationError{
			Field:  "detection.tier_low_cutoff",
			Reason: "cutoff must not be negative",
		}
	}
	if d.TierHighCutoff <= d.TierLowCutoff {
		return &types.ConfigurationError{
			Field:  "detection.tier_high_cutoff",
			Reason: "high cutoff must be greater than low cutoff",
		}
	}
	if d.Timeouts.SSL <= 0 || d.Timeouts.Content <= 0 || d.Timeouts.Domain <= 0 {
		return &types.ConfigurationError{
			Field:  "detection.timeouts_ms",
			Reason: "extractor timeouts must be positive",
		}
	}
	if d.MaxBodyBytes <= 0 {
		return &types.ConfigurationError{
			Field:  "detection.max_body_bytes",
			Reason: "body size limit must be positive",
		}
	}
	if d.MaxRedirects < 0 {
		return &types.ConfigurationError{
			Field:  "detection.max_redirects",
			Reason: "redirect limit must not be negative",
		}
	}
	if c.AI.Enabled && c.AI.APIKey == "" {
		return &types.ConfigurationError{
			Field:  "ai.api_key",
			Reason: "AI extractor enabled without an API key",
		}
	}
	return nil
}
