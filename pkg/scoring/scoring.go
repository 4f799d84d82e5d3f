// Package scoring combines extractor results into a single risk verdict.
package scoring

import (
	"math"
	"time"

	"github.com/CodeMonkeyCybersecurity/hera/internal/config"
	"github.com/CodeMonkeyCybersecurity/hera/pkg/types"
)

const (
	// MinScore and MaxScore bound the aggregate risk score.
	MinScore = 0.0
	MaxScore = 100.0

	// unavailableDamping discounts findings reported by an extractor that
	// could not complete its probe. Half weight keeps the signal without
	// letting a degraded source dominate the verdict.
	unavailableDamping = 0.5
)

// Aggregator turns per-extractor findings into a scored, tiered report.
type Aggregator struct {
	lowCutoff  float64
	highCutoff float64
}

func NewAggregator(cfg *config.DetectionConfig) *Aggregator {
	return &Aggregator{
		lowCutoff:  cfg.TierLowCutoff,
		highCutoff: cfg.TierHighCutoff,
	}
}

// Aggregate sums finding weights across extractor results, clamps the total
// into [MinScore, MaxScore] and maps it onto a tier. Findings emitted by an
// unavailable extractor contribute at half weight; the halved weight is what
// the report carries, so the listed findings always sum to the raw score.
//
// A whitelisted target keeps its findings for audit but is forced to a safe,
// zero-score verdict.
func (a *Aggregator) Aggregate(url string, whitelisted bool, results []types.ExtractorResult) *types.RiskReport {
	report := &types.RiskReport{
		URL:         url,
		Whitelisted: whitelisted,
		Findings:    []types.Finding{},
		Extractors:  make(map[string]types.ExtractorStatus, len(results)),
		AnalyzedAt:  time.Now().UTC(),
	}

	var total float64
	for _, result := range results {
		report.Extractors[result.Source] = result.Status

		damping := 1.0
		if result.Status == types.StatusUnavailable {
			damping = unavailableDamping
		}

		for _, finding := range result.Findings {
			finding.Weight *= damping
			report.Findings = append(report.Findings, finding)
			total += finding.Weight
		}
	}

	report.Score = clamp(total)
	report.Tier = a.TierFor(report.Score)

	if whitelisted {
		report.Score = 0
		report.Tier = types.TierSafe
	}

	return report
}

// TierFor maps a score onto a verdict tier. Scores landing exactly on a
// cutoff resolve to the riskier tier.
func (a *Aggregator) TierFor(score float64) types.Tier {
	switch {
	case score >= a.highCutoff:
		return types.TierMalicious
	case score >= a.lowCutoff:
		return types.TierSuspicious
	default:
		return types.TierSafe
	}
}

func clamp(score float64) float64 {
	return math.Max(MinScore, math.Min(MaxScore, score))
}
