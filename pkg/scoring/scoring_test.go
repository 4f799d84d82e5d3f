package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/CodeMonkeyCybersecurity/hera/internal/config"
	"github.com/CodeMonkeyCybersecurity/hera/pkg/types"
)

func newTestAggregator() *Aggregator {
	cfg := config.DefaultConfig().Detection
	return NewAggregator(&cfg)
}

func TestAggregate_NoResults(t *testing.T) {
	agg := newTestAggregator()

	report := agg.Aggregate("https://example.com", false, nil)

	assert.Equal(t, 0.0, report.Score)
	assert.Equal(t, types.TierSafe, report.Tier)
	assert.False(t, report.Whitelisted)
	assert.Empty(t, report.Findings)
	assert.Empty(t, report.Extractors)
	assert.False(t, report.AnalyzedAt.IsZero())
}

func TestAggregate_SumsFullWeightForHealthyExtractors(t *testing.T) {
	agg := newTestAggregator()

	results := []types.ExtractorResult{
		{
			Source: "lexical",
			Status: types.StatusOK,
			Findings: []types.Finding{
				{Kind: types.KindIPLiteralHost, Weight: 30},
				{Kind: types.KindSuspiciousKeywords, Weight: 15},
			},
		},
		{
			Source: "ssl_cert",
			Status: types.StatusPartial,
			Findings: []types.Finding{
				{Kind: types.KindCertExpired, Weight: 30},
			},
		},
	}

	report := agg.Aggregate("http://bad.example", false, results)

	assert.Equal(t, 75.0, report.Score)
	assert.Equal(t, types.TierMalicious, report.Tier)
	assert.Len(t, report.Findings, 3)
	assert.Equal(t, types.StatusOK, report.Extractors["lexical"])
	assert.Equal(t, types.StatusPartial, report.Extractors["ssl_cert"])
}

func TestAggregate_DampensUnavailableExtractorFindings(t *testing.T) {
	agg := newTestAggregator()

	results := []types.ExtractorResult{
		{
			Source: "domain_intel",
			Status: types.StatusUnavailable,
			Findings: []types.Finding{
				{Kind: types.KindYoungDomain, Weight: 20},
			},
		},
	}

	report := agg.Aggregate("http://young.example", false, results)

	assert.Equal(t, 10.0, report.Score)
	// The report carries the dampened weight so findings sum to the score.
	assert.Equal(t, 10.0, report.Findings[0].Weight)
	assert.Equal(t, types.TierSafe, report.Tier)
}

func TestAggregate_ClampsAtMaxScore(t *testing.T) {
	agg := newTestAggregator()

	results := []types.ExtractorResult{
		{
			Source: "lexical",
			Status: types.StatusOK,
			Findings: []types.Finding{
				{Kind: types.KindIPLiteralHost, Weight: 30},
				{Kind: types.KindDeceptiveChars, Weight: 25},
				{Kind: types.KindSuspiciousTLD, Weight: 20},
			},
		},
		{
			Source: "ssl_cert",
			Status: types.StatusOK,
			Findings: []types.Finding{
				{Kind: types.KindCertRevoked, Weight: 40},
			},
		},
	}

	report := agg.Aggregate("http://very.bad.example", false, results)

	assert.Equal(t, 100.0, report.Score)
	assert.Equal(t, types.TierMalicious, report.Tier)
}

func TestAggregate_WhitelistForcesSafeVerdictKeepsFindings(t *testing.T) {
	agg := newTestAggregator()

	results := []types.ExtractorResult{
		{
			Source: "lexical",
			Status: types.StatusOK,
			Findings: []types.Finding{
				{Kind: types.KindSuspiciousKeywords, Weight: 15},
			},
		},
	}

	report := agg.Aggregate("https://login.corp.example.com", true, results)

	assert.True(t, report.Whitelisted)
	assert.Equal(t, 0.0, report.Score)
	assert.Equal(t, types.TierSafe, report.Tier)
	// Findings survive the override for audit trails.
	assert.Len(t, report.Findings, 1)
	assert.Equal(t, types.KindSuspiciousKeywords, report.Findings[0].Kind)
}

func TestAggregate_InternalHostScenario(t *testing.T) {
	agg := newTestAggregator()

	// http://192.168.1.1/login.php?bank=secure with content fetch blocked:
	// lexical flags the literal host and keywords, ssl_cert reports the
	// absent certificate as fact, the blocked content fetch contributes
	// nothing.
	results := []types.ExtractorResult{
		{
			Source: "lexical",
			Status: types.StatusOK,
			Findings: []types.Finding{
				{Kind: types.KindIPLiteralHost, Weight: 30},
				{Kind: types.KindSuspiciousKeywords, Weight: 15},
			},
		},
		{
			Source: "ssl_cert",
			Status: types.StatusOK,
			Findings: []types.Finding{
				{Kind: types.KindCertAbsent, Weight: 10},
			},
		},
		{
			Source:   "content",
			Status:   types.StatusUnavailable,
			Findings: []types.Finding{},
		},
		{
			Source:   "domain_intel",
			Status:   types.StatusOK,
			Findings: []types.Finding{},
		},
	}

	report := agg.Aggregate("http://192.168.1.1/login.php?bank=secure", false, results)

	assert.Equal(t, 55.0, report.Score)
	assert.Equal(t, types.TierSuspicious, report.Tier)
	assert.Len(t, report.Findings, 3)
	assert.Len(t, report.Extractors, 4)
	assert.Equal(t, types.StatusUnavailable, report.Extractors["content"])
}

func TestTierFor_BoundariesResolveUp(t *testing.T) {
	agg := newTestAggregator()

	tests := []struct {
		score float64
		want  types.Tier
	}{
		{0, types.TierSafe},
		{19.9, types.TierSafe},
		{20, types.TierSuspicious},
		{59.9, types.TierSuspicious},
		{60, types.TierMalicious},
		{100, types.TierMalicious},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, agg.TierFor(tt.score), "score %v", tt.score)
	}
}

func TestTierFor_CustomCutoffs(t *testing.T) {
	cfg := config.DefaultConfig().Detection
	cfg.TierLowCutoff = 40
	cfg.TierHighCutoff = 80
	agg := NewAggregator(&cfg)

	assert.Equal(t, types.TierSafe, agg.TierFor(39))
	assert.Equal(t, types.TierSuspicious, agg.TierFor(40))
	assert.Equal(t, types.TierSuspicious, agg.TierFor(79))
	assert.Equal(t, types.TierMalicious, agg.TierFor(80))
}

func TestAggregate_Idempotent(t *testing.T) {
	agg := newTestAggregator()

	results := []types.ExtractorResult{
		{
			Source: "lexical",
			Status: types.StatusOK,
			Findings: []types.Finding{
				{Kind: types.KindSuspiciousTLD, Weight: 20},
			},
		},
	}

	first := agg.Aggregate("http://copy.example.tk", false, results)
	second := agg.Aggregate("http://copy.example.tk", false, results)

	assert.Equal(t, first.Score, second.Score)
	assert.Equal(t, first.Tier, second.Tier)
	assert.Equal(t, first.Findings, second.Findings)
}
