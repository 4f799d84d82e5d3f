package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CodeMonkeyCybersecurity/hera/pkg/types"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, float64(20), cfg.Detection.TierLowCutoff)
	assert.Equal(t, float64(60), cfg.Detection.TierHighCutoff)
	assert.Contains(t, cfg.Detection.SuspiciousTLDs, "tk")
	assert.Contains(t, cfg.Detection.SuspiciousKeywords, "login")
	assert.Contains(t, cfg.Detection.BrandKeywords, "verify account")
	assert.False(t, cfg.AI.Enabled)

	assert.NoError(t, cfg.Validate())
}

func TestTimeoutsConfig_Durations(t *testing.T) {
	timeouts := TimeoutsConfig{SSL: 5000, Content: 10000, Domain: 8000, AI: 2500}

	assert.Equal(t, 5*time.Second, timeouts.SSLTimeout())
	assert.Equal(t, 10*time.Second, timeouts.ContentTimeout())
	assert.Equal(t, 8*time.Second, timeouts.DomainTimeout())
	assert.Equal(t, 2500*time.Millisecond, timeouts.AITimeout())
}

func TestDetectionConfig_Weight(t *testing.T) {
	d := DetectionConfig{
		Weights: map[string]float64{
			types.KindIPLiteralHost: 50,
			"custom_signal":         12,
		},
	}

	assert.Equal(t, float64(50), d.Weight(types.KindIPLiteralHost), "configured weight overrides default")
	assert.Equal(t, float64(20), d.Weight(types.KindSuspiciousTLD), "unconfigured kind falls back to default")
	assert.Equal(t, float64(12), d.Weight("custom_signal"))
	assert.Equal(t, float64(0), d.Weight("unknown_kind"))
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{
			name:   "negative weight",
			mutate: func(c *Config) { c.Detection.Weights = map[string]float64{"x": -1} },
			field:  "detection.weights.x",
		},
		{
			name:   "negative low cutoff",
			mutate: func(c *Config) { c.Detection.TierLowCutoff = -5 },
			field:  "detection.tier_low_cutoff",
		},
		{
			name:   "inverted cutoffs",
			mutate: func(c *Config) { c.Detection.TierHighCutoff = c.Detection.TierLowCutoff },
			field:  "detection.tier_high_cutoff",
		},
		{
			name:   "zero timeout",
			mutate: func(c *Config) { c.Detection.Timeouts.Content = 0 },
			field:  "detection.timeouts_ms",
		},
		{
			name:   "zero body limit",
			mutate: func(c *Config) { c.Detection.MaxBodyBytes = 0 },
			field:  "detection.max_body_bytes",
		},
		{
			name:   "AI enabled without key",
			mutate: func(c *Config) { c.AI.Enabled = true },
			field:  "ai.api_key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)

			var cfgErr *types.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestLoadRules(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	content := []byte(`
weights:
  ip_literal_host: 45
suspicious_tlds: [xyz, click]
whitelist:
  - "*.bank.example"
`)
	require.NoError(t, os.WriteFile(path, content, 0644))

	rules, err := LoadRules(path)
	require.NoError(t, err)
	assert.Equal(t, float64(45), rules.Weights["ip_literal_host"])
	assert.Equal(t, []string{"xyz", "click"}, rules.SuspiciousTLDs)
}

func TestApplyRules(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Detection.Whitelist = []string{"trusted.org"}

	cfg.Detection.ApplyRules(&RulesFile{
		Weights:        map[string]float64{types.KindYoungDomain: 35},
		SuspiciousTLDs: []string{"click"},
		Whitelist:      []string{"*.bank.example"},
	})

	assert.Equal(t, float64(35), cfg.Detection.Weight(types.KindYoungDomain))
	assert.Equal(t, []string{"click"}, cfg.Detection.SuspiciousTLDs)
	assert.Equal(t, []string{"trusted.org", "*.bank.example"}, cfg.Detection.Whitelist)

	original := cfg.Detection.SuspiciousKeywords
	cfg.Detection.ApplyRules(nil)
	assert.Equal(t, original, cfg.Detection.SuspiciousKeywords)
}

func TestLoadRules_MissingFile(t *testing.T) {
	_, err := LoadRules("/nonexistent/rules.yaml")
	assert.Error(t, err)
}
