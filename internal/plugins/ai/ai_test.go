package ai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/CodeMonkeyCybersecurity/hera/internal/config"
	"github.com/CodeMonkeyCybersecurity/hera/internal/logger"
	aiclient "github.com/CodeMonkeyCybersecurity/hera/pkg/ai"
	"github.com/CodeMonkeyCybersecurity/hera/pkg/target"
	"github.com/CodeMonkeyCybersecurity/hera/pkg/types"
)

type stubModel struct {
	verdict  *aiclient.Classification
	err      error
	lastSeen string
}

func (s *stubModel) IsEnabled() bool { return true }

func (s *stubModel) Classify(ctx context.Context, description string) (*aiclient.Classification, error) {
	s.lastSeen = description
	return s.verdict, s.err
}

func newExtractor(t *testing.T, model classifier) *Extractor {
	t.Helper()
	log, err := logger.New(config.LoggerConfig{Level: "error", Format: "json"})
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	cfg := config.DefaultConfig().Detection
	return New(&cfg, model, log)
}

func mustParse(t *testing.T, raw string) *target.Target {
	t.Helper()
	tgt, err := target.Parse(raw)
	if err != nil {
		t.Fatalf("target.Parse(%q): %v", raw, err)
	}
	return tgt
}

func TestExtract_ScalesWeightByProbability(t *testing.T) {
	model := &stubModel{verdict: &aiclient.Classification{
		Probability: 0.8,
		Reasons:     []string{"IP literal host", "credential keywords in path"},
	}}
	e := newExtractor(t, model)

	result := e.Extract(context.Background(), mustParse(t, "http://192.168.1.1/login.php?bank=secure"))

	if result.Status != types.StatusOK {
		t.Fatalf("status = %s, want ok", result.Status)
	}
	if len(result.Findings) != 1 {
		t.Fatalf("got %d findings, want 1", len(result.Findings))
	}
	f := result.Findings[0]
	if f.Kind != types.KindAIClassifier {
		t.Errorf("kind = %s, want %s", f.Kind, types.KindAIClassifier)
	}
	// 0.8 of the configured base weight 40.
	if f.Weight != 32.0 {
		t.Errorf("weight = %v, want 32.0", f.Weight)
	}
	if !strings.Contains(f.Evidence, "0.80") || !strings.Contains(f.Evidence, "IP literal host") {
		t.Errorf("evidence missing probability or reasons: %q", f.Evidence)
	}
}

func TestExtract_ZeroProbabilityEmitsNoFinding(t *testing.T) {
	model := &stubModel{verdict: &aiclient.Classification{Probability: 0}}
	e := newExtractor(t, model)

	result := e.Extract(context.Background(), mustParse(t, "https://example.com/"))

	if result.Status != types.StatusOK {
		t.Fatalf("status = %s, want ok", result.Status)
	}
	if len(result.Findings) != 0 {
		t.Errorf("got %d findings, want none", len(result.Findings))
	}
}

func TestExtract_EndpointFailureIsUnavailable(t *testing.T) {
	model := &stubModel{err: errors.New("connection refused")}
	e := newExtractor(t, model)

	result := e.Extract(context.Background(), mustParse(t, "https://example.com/"))

	if result.Status != types.StatusUnavailable {
		t.Fatalf("status = %s, want unavailable", result.Status)
	}
	if len(result.Findings) != 0 {
		t.Errorf("unavailable result must carry no findings, got %d", len(result.Findings))
	}
}

func TestDescribe_CarriesTargetFacts(t *testing.T) {
	model := &stubModel{verdict: &aiclient.Classification{Probability: 0.1}}
	e := newExtractor(t, model)

	e.Extract(context.Background(), mustParse(t, "http://accounts.google.com@xn--pple-43d.com/verify?session=1"))

	for _, want := range []string{
		"Host: xn--pple-43d.com",
		"Host decodes to:",
		"user@ section",
		"Path: /verify",
		"Query: session=1",
	} {
		if !strings.Contains(model.lastSeen, want) {
			t.Errorf("description missing %q:\n%s", want, model.lastSeen)
		}
	}
}
