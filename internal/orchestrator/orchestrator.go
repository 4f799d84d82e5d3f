// Package orchestrator drives one analysis end to end: parse the URL,
// consult the whitelist gate, run every extractor concurrently under its
// own deadline, then hand the results to the scoring aggregator.
//
// Only a malformed URL surfaces as an error. Every extractor failure mode
// (timeout, network refusal, panic) degrades to a status on the report so
// a verdict is always produced.
package orchestrator

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/CodeMonkeyCybersecurity/hera/internal/config"
	"github.com/CodeMonkeyCybersecurity/hera/internal/core"
	"github.com/CodeMonkeyCybersecurity/hera/internal/logger"
	"github.com/CodeMonkeyCybersecurity/hera/pkg/scoring"
	"github.com/CodeMonkeyCybersecurity/hera/pkg/target"
	"github.com/CodeMonkeyCybersecurity/hera/pkg/types"
	"github.com/CodeMonkeyCybersecurity/hera/pkg/whitelist"
)

// defaultExtractorTimeout bounds extractors with no configured budget,
// which in practice is only the synchronous lexical pass.
const defaultExtractorTimeout = 5 * time.Second

type Orchestrator struct {
	cfg        *config.Config
	log        *logger.Logger
	gate       *whitelist.Gate
	extractors []core.Extractor
	aggregator *scoring.Aggregator

	cache     core.VerdictCache
	store     core.ResultStore
	telemetry core.Telemetry
}

func New(cfg *config.Config, extractors []core.Extractor, log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		log:        log.WithComponent("orchestrator"),
		gate:       whitelist.New(cfg.Detection.Whitelist),
		extractors: extractors,
		aggregator: scoring.NewAggregator(&cfg.Detection),
	}
}

// SetCache wires an optional verdict cache consulted before extraction.
func (o *Orchestrator) SetCache(cache core.VerdictCache) { o.cache = cache }

// SetStore wires an optional persistence layer; save failures are logged,
// never surfaced.
func (o *Orchestrator) SetStore(store core.ResultStore) { o.store = store }

// SetTelemetry wires optional metrics recording.
func (o *Orchestrator) SetTelemetry(tel core.Telemetry) { o.telemetry = tel }

// Analyze produces a RiskReport for rawURL. The only error it returns is
// types.InvalidInputError; a report is produced in every other case, however
// degraded the evidence.
func (o *Orchestrator) Analyze(ctx context.Context, rawURL string) (*types.RiskReport, error) {
	start := time.Now()

	tgt, err := target.Parse(rawURL)
	if err != nil {
		return nil, err
	}

	log := o.log.WithURL(tgt.URL)

	if o.cache != nil {
		if cached, err := o.cache.Get(ctx, tgt.URL); err == nil && cached != nil {
			cached.Cached = true
			log.Debugw("Verdict served from cache", "tier", cached.Tier, "score", cached.Score)
			return cached, nil
		}
	}

	ctx, span := log.StartOperation(ctx, "analyze", "host", tgt.Host)
	defer span.End()

	whitelisted := o.gate.Match(tgt.Host)
	if whitelisted {
		log.Debugw("Host is whitelisted, extractors still run for audit", "host", tgt.Host)
	}

	results := o.runExtractors(ctx, tgt)

	report := o.aggregator.Aggregate(tgt.URL, whitelisted, results)
	report.DurationMS = time.Since(start).Milliseconds()

	log.LogVerdict(ctx, report)

	if o.telemetry != nil {
		o.telemetry.RecordAnalysis(report.Tier, time.Since(start).Seconds(), report.Degraded())
		for _, finding := range report.Findings {
			o.telemetry.RecordFinding(finding.Kind)
		}
	}
	if o.cache != nil {
		if err := o.cache.Set(ctx, tgt.URL, report); err != nil {
			log.Debugw("Verdict cache write failed", "error", err)
		}
	}
	if o.store != nil {
		if err := o.store.SaveReport(ctx, report); err != nil {
			log.LogError(ctx, err, "orchestrator.save_report")
		}
	}

	return report, nil
}

// runExtractors fans out one goroutine per extractor. Each writes only its
// own slot, so no locking is needed around the results slice.
func (o *Orchestrator) runExtractors(ctx context.Context, tgt *target.Target) []types.ExtractorResult {
	results := make([]types.ExtractorResult, len(o.extractors))

	g := new(errgroup.Group)
	for i, extractor := range o.extractors {
		i, extractor := i, extractor
		g.Go(func() error {
			results[i] = o.runOne(ctx, extractor, tgt)
			return nil
		})
	}
	// Goroutines always return nil; Wait is purely a completion barrier.
	_ = g.Wait()

	return results
}

// runOne executes a single extractor under its configured deadline. A
// deadline overrun or a panic yields a synthetic unavailable result; the
// straggler goroutine finishes into a buffered channel and is dropped.
func (o *Orchestrator) runOne(ctx context.Context, extractor core.Extractor, tgt *target.Target) types.ExtractorResult {
	name := extractor.Name()
	timeout := o.timeoutFor(name)

	exCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	done := make(chan types.ExtractorResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				o.log.LogPanic(exCtx, r, "extractor."+name, "host", tgt.Host)
				done <- types.ExtractorResult{Source: name, Status: types.StatusUnavailable, Findings: []types.Finding{}}
			}
		}()
		done <- extractor.Extract(exCtx, tgt)
	}()

	var result types.ExtractorResult
	select {
	case result = <-done:
	case <-exCtx.Done():
		o.log.Warnw("Extractor deadline exceeded",
			"extractor", name,
			"host", tgt.Host,
			"timeout", timeout)
		result = types.ExtractorResult{Source: name, Status: types.StatusUnavailable, Findings: []types.Finding{}}
	}

	if o.telemetry != nil {
		o.telemetry.RecordExtractor(name, result.Status, time.Since(start).Seconds())
	}

	return result
}

func (o *Orchestrator) timeoutFor(source string) time.Duration {
	t := o.cfg.Detection.Timeouts

	var timeout time.Duration
	switch source {
	case "ssl_cert":
		timeout = t.SSLTimeout()
	case "content":
		timeout = t.ContentTimeout()
	case "domain_intel":
		timeout = t.DomainTimeout()
	case "ai":
		timeout = t.AITimeout()
	}

	if timeout <= 0 {
		timeout = defaultExtractorTimeout
	}
	return timeout
}
