// Package ai adapts the chat-completion classifier to the extractor
// contract. It is the only extractor that is optional: the registry skips
// it entirely when no model endpoint is configured.
package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/CodeMonkeyCybersecurity/hera/internal/config"
	"github.com/CodeMonkeyCybersecurity/hera/internal/logger"
	aiclient "github.com/CodeMonkeyCybersecurity/hera/pkg/ai"
	"github.com/CodeMonkeyCybersecurity/hera/pkg/target"
	"github.com/CodeMonkeyCybersecurity/hera/pkg/types"
)

const Source = "ai"

// classifier is the slice of pkg/ai this extractor needs.
type classifier interface {
	IsEnabled() bool
	Classify(ctx context.Context, description string) (*aiclient.Classification, error)
}

type Extractor struct {
	cfg   *config.DetectionConfig
	log   *logger.Logger
	model classifier
}

func New(cfg *config.DetectionConfig, model classifier, log *logger.Logger) *Extractor {
	return &Extractor{
		cfg:   cfg,
		log:   log.WithComponent("ai"),
		model: model,
	}
}

func (e *Extractor) Name() string {
	return Source
}

func (e *Extractor) Extract(ctx context.Context, tgt *target.Target) types.ExtractorResult {
	verdict, err := e.model.Classify(ctx, describe(tgt))
	if err != nil {
		uerr := &types.ExtractorUnavailableError{Source: Source, Err: err}
		e.log.LogError(ctx, uerr, "ai.classify", "host", tgt.Host)
		return types.ExtractorResult{Source: Source, Status: types.StatusUnavailable, Findings: []types.Finding{}}
	}

	findings := []types.Finding{}
	if verdict.Probability > 0 {
		findings = append(findings, types.Finding{
			Kind:     types.KindAIClassifier,
			Weight:   verdict.Probability * e.cfg.Weight(types.KindAIClassifier),
			Evidence: evidence(verdict),
		})
	}

	return types.ExtractorResult{Source: Source, Status: types.StatusOK, Findings: findings}
}

// describe flattens Target facts into the prompt body. Only URL structure
// goes in; page content never reaches the model from here.
func describe(tgt *target.Target) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "URL: %s\n", tgt.URL)
	fmt.Fprintf(&sb, "Scheme: %s\n", tgt.Scheme)
	fmt.Fprintf(&sb, "Host: %s\n", tgt.Host)
	if tgt.UnicodeHost != "" && tgt.UnicodeHost != tgt.Host {
		fmt.Fprintf(&sb, "Host decodes to: %s\n", tgt.UnicodeHost)
	}
	if tgt.RegistrableDomain != "" {
		fmt.Fprintf(&sb, "Registrable domain: %s\n", tgt.RegistrableDomain)
	}
	if tgt.IsIPLiteral() {
		sb.WriteString("Host is a raw IP address\n")
	}
	if tgt.HasUserinfo {
		sb.WriteString("URL carries a user@ section before the host\n")
	}
	if tgt.Path != "" && tgt.Path != "/" {
		fmt.Fprintf(&sb, "Path: %s\n", tgt.Path)
	}
	if tgt.Query != "" {
		fmt.Fprintf(&sb, "Query: %s\n", tgt.Query)
	}
	return sb.String()
}

func evidence(verdict *aiclient.Classification) string {
	if len(verdict.Reasons) == 0 {
		return fmt.Sprintf("model probability %.2f", verdict.Probability)
	}
	return fmt.Sprintf("model probability %.2f: %s", verdict.Probability, strings.Join(verdict.Reasons, "; "))
}
