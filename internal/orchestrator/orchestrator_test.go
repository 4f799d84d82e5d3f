package orchestrator

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/CodeMonkeyCybersecurity/hera/internal/config"
	"github.com/CodeMonkeyCybersecurity/hera/internal/core"
	"github.com/CodeMonkeyCybersecurity/hera/internal/logger"
	"github.com/CodeMonkeyCybersecurity/hera/internal/plugins/content"
	"github.com/CodeMonkeyCybersecurity/hera/internal/plugins/domainintel"
	"github.com/CodeMonkeyCybersecurity/hera/internal/plugins/lexical"
	"github.com/CodeMonkeyCybersecurity/hera/internal/plugins/sslcert"
	"github.com/CodeMonkeyCybersecurity/hera/pkg/target"
	"github.com/CodeMonkeyCybersecurity/hera/pkg/types"
)

type stubExtractor struct {
	name      string
	result    types.ExtractorResult
	delay     time.Duration
	ignoreCtx bool
	panicMsg  string
	calls     atomic.Int32
}

func (s *stubExtractor) Name() string { return s.name }

func (s *stubExtractor) Extract(ctx context.Context, tgt *target.Target) types.ExtractorResult {
	s.calls.Add(1)
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	if s.delay > 0 {
		if s.ignoreCtx {
			time.Sleep(s.delay)
		} else {
			select {
			case <-time.After(s.delay):
			case <-ctx.Done():
			}
		}
	}
	return s.result
}

type fakeCache struct {
	mu      sync.Mutex
	entries map[string]*types.RiskReport
	sets    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]*types.RiskReport)}
}

func (c *fakeCache) Get(ctx context.Context, url string) (*types.RiskReport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[url], nil
}

func (c *fakeCache) Set(ctx context.Context, url string, report *types.RiskReport) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[url] = report
	c.sets++
	return nil
}

func (c *fakeCache) Close() error { return nil }

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(config.LoggerConfig{Level: "error", Format: "json"})
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

func okResult(source string, findings ...types.Finding) types.ExtractorResult {
	return types.ExtractorResult{Source: source, Status: types.StatusOK, Findings: findings}
}

func TestAnalyze_InvalidURL(t *testing.T) {
	cfg := config.DefaultConfig()
	o := New(cfg, nil, testLogger(t))

	cases := []string{
		"",
		"://missing-scheme",
		"ftp://example.com/file",
		"http://",
	}
	for _, raw := range cases {
		report, err := o.Analyze(context.Background(), raw)
		if err == nil {
			t.Errorf("Analyze(%q): expected error, got report %+v", raw, report)
			continue
		}
		if !types.IsInvalidInput(err) {
			t.Errorf("Analyze(%q): error %v is not InvalidInputError", raw, err)
		}
		if report != nil {
			t.Errorf("Analyze(%q): report must be nil on invalid input", raw)
		}
	}
}

// The canonical degraded-analysis scenario: an internal IP serving a login
// page over plain http. Lexical and certificate facts are deterministic,
// the content fetch is refused by the SSRF guard, and the IP literal means
// there is no registration to look up. No network I/O happens at all.
func TestAnalyze_InternalHostEndToEnd(t *testing.T) {
	cfg := config.DefaultConfig()
	log := testLogger(t)

	extractors := []core.Extractor{
		lexical.New(&cfg.Detection),
		sslcert.New(&cfg.Detection, log),
		content.New(&cfg.Detection, log),
		domainintel.New(&cfg.Detection, log),
	}
	o := New(cfg, extractors, log)

	report, err := o.Analyze(context.Background(), "http://192.168.1.1/login.php?bank=secure")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if report.Score != 55 {
		t.Errorf("score = %v, want 55", report.Score)
	}
	if report.Tier != types.TierSuspicious {
		t.Errorf("tier = %s, want suspicious", report.Tier)
	}
	if report.Whitelisted {
		t.Error("internal IP must not be whitelisted")
	}
	if !report.Degraded() {
		t.Error("report should be degraded: content extractor was blocked")
	}

	wantStatus := map[string]types.ExtractorStatus{
		"lexical":      types.StatusOK,
		"ssl_cert":     types.StatusOK,
		"content":      types.StatusUnavailable,
		"domain_intel": types.StatusOK,
	}
	for source, want := range wantStatus {
		if got := report.Extractors[source]; got != want {
			t.Errorf("extractor %s status = %s, want %s", source, got, want)
		}
	}

	wantWeights := map[string]float64{
		types.KindIPLiteralHost:      30,
		types.KindSuspiciousKeywords: 15,
		types.KindCertAbsent:         10,
	}
	if len(report.Findings) != len(wantWeights) {
		t.Fatalf("got %d findings %+v, want %d", len(report.Findings), report.Findings, len(wantWeights))
	}
	for _, f := range report.Findings {
		if want, ok := wantWeights[f.Kind]; !ok {
			t.Errorf("unexpected finding kind %s", f.Kind)
		} else if f.Weight != want {
			t.Errorf("finding %s weight = %v, want %v", f.Kind, f.Weight, want)
		}
	}
}

func TestAnalyze_WhitelistedHostKeepsFindings(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Detection.Whitelist = []string{"*.trusted.example"}

	stub := &stubExtractor{
		name: "lexical",
		result: okResult("lexical", types.Finding{
			Kind:   types.KindSuspiciousKeywords,
			Weight: 15,
		}),
	}
	o := New(cfg, []core.Extractor{stub}, testLogger(t))

	report, err := o.Analyze(context.Background(), "https://login.trusted.example/verify")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if !report.Whitelisted {
		t.Error("whitelisted = false, want true")
	}
	if report.Score != 0 {
		t.Errorf("score = %v, want 0", report.Score)
	}
	if report.Tier != types.TierSafe {
		t.Errorf("tier = %s, want safe", report.Tier)
	}
	if len(report.Findings) != 1 {
		t.Errorf("findings must be retained for audit, got %d", len(report.Findings))
	}
}

func TestAnalyze_PanickingExtractorIsIsolated(t *testing.T) {
	cfg := config.DefaultConfig()

	healthy := &stubExtractor{
		name: "lexical",
		result: okResult("lexical", types.Finding{
			Kind:   types.KindIPLiteralHost,
			Weight: 30,
		}),
	}
	broken := &stubExtractor{name: "content", panicMsg: "nil dereference in parser"}

	o := New(cfg, []core.Extractor{healthy, broken}, testLogger(t))

	report, err := o.Analyze(context.Background(), "https://example.com/")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if report.Extractors["content"] != types.StatusUnavailable {
		t.Errorf("panicking extractor status = %s, want unavailable", report.Extractors["content"])
	}
	if report.Extractors["lexical"] != types.StatusOK {
		t.Errorf("healthy extractor status = %s, want ok", report.Extractors["lexical"])
	}
	if report.Score != 30 {
		t.Errorf("score = %v, want 30 from the healthy extractor", report.Score)
	}
}

func TestAnalyze_SlowExtractorHitsDeadline(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Detection.Timeouts.Content = 50

	slow := &stubExtractor{
		name:      "content",
		delay:     3 * time.Second,
		ignoreCtx: true,
		result:    okResult("content"),
	}
	o := New(cfg, []core.Extractor{slow}, testLogger(t))

	start := time.Now()
	report, err := o.Analyze(context.Background(), "https://example.com/")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("analysis took %v; a stuck extractor must not block aggregation", elapsed)
	}
	if report.Extractors["content"] != types.StatusUnavailable {
		t.Errorf("status = %s, want unavailable after deadline", report.Extractors["content"])
	}
}

func TestAnalyze_ExtractorsRunConcurrently(t *testing.T) {
	cfg := config.DefaultConfig()

	a := &stubExtractor{name: "ssl_cert", delay: 150 * time.Millisecond, result: okResult("ssl_cert")}
	b := &stubExtractor{name: "domain_intel", delay: 150 * time.Millisecond, result: okResult("domain_intel")}
	o := New(cfg, []core.Extractor{a, b}, testLogger(t))

	start := time.Now()
	if _, err := o.Analyze(context.Background(), "https://example.com/"); err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	// Sequential execution would need at least 300ms.
	if elapsed := time.Since(start); elapsed > 280*time.Millisecond {
		t.Errorf("analysis took %v; extractors appear to run sequentially", elapsed)
	}
}

func TestAnalyze_CacheShortCircuits(t *testing.T) {
	cfg := config.DefaultConfig()

	stub := &stubExtractor{name: "lexical", result: okResult("lexical")}
	o := New(cfg, []core.Extractor{stub}, testLogger(t))

	cache := newFakeCache()
	o.SetCache(cache)

	first, err := o.Analyze(context.Background(), "https://example.com/")
	if err != nil {
		t.Fatalf("first Analyze: %v", err)
	}
	second, err := o.Analyze(context.Background(), "https://example.com/")
	if err != nil {
		t.Fatalf("second Analyze: %v", err)
	}

	if stub.calls.Load() != 1 {
		t.Errorf("extractor ran %d times, want 1 (second hit served from cache)", stub.calls.Load())
	}
	if cache.sets != 1 {
		t.Errorf("cache.Set called %d times, want 1", cache.sets)
	}
	if first.Score != second.Score || first.Tier != second.Tier {
		t.Errorf("cached verdict diverged: %+v vs %+v", first, second)
	}
}

func TestAnalyze_Idempotent(t *testing.T) {
	cfg := config.DefaultConfig()

	stub := &stubExtractor{
		name: "lexical",
		result: okResult("lexical",
			types.Finding{Kind: types.KindSuspiciousTLD, Weight: 20},
			types.Finding{Kind: types.KindDeceptiveChars, Weight: 25},
		),
	}
	o := New(cfg, []core.Extractor{stub}, testLogger(t))

	var scores []float64
	for i := 0; i < 3; i++ {
		report, err := o.Analyze(context.Background(), "https://paypal-login.tk/")
		if err != nil {
			t.Fatalf("Analyze run %d: %v", i, err)
		}
		scores = append(scores, report.Score)
		if report.Tier != types.TierSuspicious {
			t.Errorf("run %d: tier = %s, want suspicious", i, report.Tier)
		}
	}
	if scores[0] != scores[1] || scores[1] != scores[2] {
		t.Errorf("scores diverged across identical runs: %v", scores)
	}
}
