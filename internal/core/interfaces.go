package core

import (
	"context"
	"time"

	"github.com/CodeMonkeyCybersecurity/hera/pkg/target"
	"github.com/CodeMonkeyCybersecurity/hera/pkg/types"
)

// Extractor is a single risk-evidence source. Extract never returns an
// error: probe failures are reported through ExtractorResult.Status so
// one broken source cannot abort an analysis.
type Extractor interface {
	Name() string
	Extract(ctx context.Context, tgt *target.Target) types.ExtractorResult
}

type ResultStore interface {
	SaveReport(ctx context.Context, report *types.RiskReport) error
	GetReport(ctx context.Context, id string) (*types.RiskReport, error)
	ListReports(ctx context.Context, filter ReportFilter) ([]*types.RiskReport, error)

	GetReputation(ctx context.Context, domain string) (*types.DomainReputation, error)
	SaveFeedback(ctx context.Context, feedback *types.Feedback) error
	GetStats(ctx context.Context) (*AnalysisStats, error)

	Ping(ctx context.Context) error
	Close() error
}

type ReportFilter struct {
	URL      string
	Domain   string
	Tier     types.Tier
	FromDate *time.Time
	ToDate   *time.Time
	Limit    int
	Offset   int
}

type AnalysisStats struct {
	Total         int
	ByTier        map[types.Tier]int
	ByKind        map[string]int
	Whitelisted   int
	Degraded      int
	AverageScore  float64
	FeedbackCount int
}

// VerdictCache short-circuits repeat analyses of the same normalized URL.
type VerdictCache interface {
	Get(ctx context.Context, url string) (*types.RiskReport, error)
	Set(ctx context.Context, url string, report *types.RiskReport) error
	Close() error
}

type Telemetry interface {
	RecordAnalysis(tier types.Tier, duration float64, degraded bool)
	RecordFinding(kind string)
	RecordExtractor(source string, status types.ExtractorStatus, duration float64)
	Close() error
}
