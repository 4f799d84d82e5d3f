package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/CodeMonkeyCybersecurity/hera/internal/cache"
	"github.com/CodeMonkeyCybersecurity/hera/internal/orchestrator"
	"github.com/CodeMonkeyCybersecurity/hera/internal/plugins"
	"github.com/CodeMonkeyCybersecurity/hera/internal/store"
	"github.com/CodeMonkeyCybersecurity/hera/pkg/ai"
	"github.com/CodeMonkeyCybersecurity/hera/pkg/types"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <url> [url...]",
	Short: "Analyze URLs for phishing risk",
	Long: `Analyze one or more URLs and print a risk verdict for each.

Every URL is scored by the full extractor set (lexical, TLS certificate,
page content, domain intelligence, plus the AI classifier when enabled).
Extractors that cannot complete degrade the verdict rather than failing it.

Example:
  hera analyze https://example.com/login
  hera analyze --output json --concurrency 8 url1 url2 url3
  hera analyze --save https://suspicious.example   # also persist the report`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnalyze,
}

var (
	analyzeOutput      string
	analyzeConcurrency int
	analyzeTimeout     time.Duration
	analyzeSave        bool
)

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringVarP(&analyzeOutput, "output", "o", "text", "Output format (text, json)")
	analyzeCmd.Flags().IntVar(&analyzeConcurrency, "concurrency", 4, "Number of URLs analyzed in parallel")
	analyzeCmd.Flags().DurationVar(&analyzeTimeout, "timeout", 30*time.Second, "Per-URL analysis budget")
	analyzeCmd.Flags().BoolVar(&analyzeSave, "save", false, "Persist reports to the configured database")
}

// analysisOutcome pairs a requested URL with its result for JSON output.
type analysisOutcome struct {
	URL    string            `json:"url"`
	Report *types.RiskReport `json:"report,omitempty"`
	Error  string            `json:"error,omitempty"`
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	model := ai.NewClient(cfg.AI, log)
	defer model.Close()

	engine := orchestrator.New(cfg, plugins.DefaultExtractors(cfg, model, log), log)

	if analyzeSave {
		if cfg.Database.DSN == "" {
			return fmt.Errorf("--save requires a database DSN (set --db-dsn or HERA_DATABASE_DSN)")
		}
		st, err := store.New(cfg.Database, log)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer st.Close()
		engine.SetStore(st)
	}

	if cfg.Redis.Addr != "" {
		verdicts, err := cache.New(cfg.Redis, log)
		if err != nil {
			return fmt.Errorf("failed to initialize verdict cache: %w", err)
		}
		defer verdicts.Close()
		engine.SetCache(verdicts)
	}

	if analyzeConcurrency < 1 {
		analyzeConcurrency = 1
	}

	reports := make([]*types.RiskReport, len(args))
	failures := make([]error, len(args))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(analyzeConcurrency)

	for i, rawURL := range args {
		i, rawURL := i, rawURL
		g.Go(func() error {
			// One bad URL must not cancel the rest of the batch, so
			// failures are collected per slot instead of returned.
			aCtx, cancel := context.WithTimeout(gctx, analyzeTimeout)
			defer cancel()

			reports[i], failures[i] = engine.Analyze(aCtx, rawURL)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	if analyzeOutput == "json" {
		outcomes := make([]analysisOutcome, len(args))
		for i, rawURL := range args {
			outcomes[i] = analysisOutcome{URL: rawURL, Report: reports[i]}
			if failures[i] != nil {
				outcomes[i].Error = failures[i].Error()
				failed++
			}
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(outcomes); err != nil {
			return err
		}
	} else {
		for i, rawURL := range args {
			if failures[i] != nil {
				color.Red("✗ %s: %v", rawURL, failures[i])
				failed++
				continue
			}
			printReport(reports[i])
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d analyses failed", failed, len(args))
	}
	return nil
}
