// Package plugins assembles the extractor set the orchestrator runs.
package plugins

import (
	"github.com/CodeMonkeyCybersecurity/hera/internal/config"
	"github.com/CodeMonkeyCybersecurity/hera/internal/core"
	"github.com/CodeMonkeyCybersecurity/hera/internal/logger"
	"github.com/CodeMonkeyCybersecurity/hera/internal/plugins/ai"
	"github.com/CodeMonkeyCybersecurity/hera/internal/plugins/content"
	"github.com/CodeMonkeyCybersecurity/hera/internal/plugins/domainintel"
	"github.com/CodeMonkeyCybersecurity/hera/internal/plugins/lexical"
	"github.com/CodeMonkeyCybersecurity/hera/internal/plugins/sslcert"
	aiclient "github.com/CodeMonkeyCybersecurity/hera/pkg/ai"
)

// DefaultExtractors builds the four built-in extractors, plus the AI
// classifier when a model endpoint is configured. Order matters only for
// report readability; the orchestrator runs them concurrently.
func DefaultExtractors(cfg *config.Config, model *aiclient.Client, log *logger.Logger) []core.Extractor {
	extractors := []core.Extractor{
		lexical.New(&cfg.Detection),
		sslcert.New(&cfg.Detection, log),
		content.New(&cfg.Detection, log),
		domainintel.New(&cfg.Detection, log),
	}

	if model != nil && model.IsEnabled() {
		extractors = append(extractors, ai.New(&cfg.Detection, model, log))
	}

	return extractors
}
