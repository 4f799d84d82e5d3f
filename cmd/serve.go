package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/CodeMonkeyCybersecurity/hera/internal/api"
	"github.com/CodeMonkeyCybersecurity/hera/internal/cache"
	"github.com/CodeMonkeyCybersecurity/hera/internal/core"
	"github.com/CodeMonkeyCybersecurity/hera/internal/orchestrator"
	"github.com/CodeMonkeyCybersecurity/hera/internal/plugins"
	"github.com/CodeMonkeyCybersecurity/hera/internal/store"
	"github.com/CodeMonkeyCybersecurity/hera/internal/telemetry"
	"github.com/CodeMonkeyCybersecurity/hera/pkg/ai"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Hera HTTP API server",
	Long: `Start the HTTP API server for Hera.

This server provides:
- Browser extension endpoints (/api/v1/analyze, /api/v1/reputation/:domain)
- Operator feedback and statistics (/api/v1/feedback, /api/v1/stats)
- Real-time verdict events over websocket (/api/v1/events)
- A minimal analyzer page at /
- Health checks

Example:
  hera serve --port 8080
  hera serve --tls-cert cert.pem --tls-key key.pem
`,
	RunE: runServe,
}

var (
	serverPort int
	serverHost string
	enableCORS bool
	tlsCert    string
	tlsKey     string
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntVar(&serverPort, "port", 8080, "Port to listen on")
	serveCmd.Flags().StringVar(&serverHost, "host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().BoolVar(&enableCORS, "cors", true, "Enable CORS for browser extensions")
	serveCmd.Flags().StringVar(&tlsCert, "tls-cert", "", "Path to TLS certificate (optional)")
	serveCmd.Flags().StringVar(&tlsKey, "tls-key", "", "Path to TLS private key (optional)")
}

func runServe(cmd *cobra.Command, args []string) error {
	// Validate TLS configuration
	if tlsCert != "" || tlsKey != "" {
		if tlsCert == "" || tlsKey == "" {
			return fmt.Errorf("both --tls-cert and --tls-key must be provided for TLS")
		}
		if _, err := os.Stat(tlsCert); err != nil {
			return fmt.Errorf("TLS cert file not found or not readable: %w", err)
		}
		if _, err := os.Stat(tlsKey); err != nil {
			return fmt.Errorf("TLS key file not found or not readable: %w", err)
		}
	}

	serveLog := log.WithComponent("api-server")

	serveLog.Infow("Starting Hera API server",
		"host", serverHost,
		"port", serverPort,
		"cors_enabled", enableCORS,
		"tls_enabled", tlsCert != "",
	)

	// Validate API token is configured
	authToken := cfg.HTTP.AuthToken
	if authToken == "" {
		return fmt.Errorf("API token not configured: set HERA_API_TOKEN environment variable")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// Telemetry (noop unless enabled)
	tel, err := telemetry.New(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer tel.Close()

	// AI classifier (disabled without a key)
	model := ai.NewClient(cfg.AI, log)
	defer model.Close()

	// Analysis engine
	engine := orchestrator.New(cfg, plugins.DefaultExtractors(cfg, model, log), log)
	engine.SetTelemetry(tel)

	// Persistence is optional: without a DSN the server still analyzes but
	// keeps no history.
	var resultStore core.ResultStore
	if cfg.Database.DSN != "" {
		st, err := store.New(cfg.Database, log)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer st.Close()
		resultStore = st
		engine.SetStore(st)
	} else {
		serveLog.Warnw("No database configured",
			"impact", "reports, reputation and feedback endpoints disabled",
			"hint", "set HERA_DATABASE_DSN to enable persistence",
		)
	}

	// Verdict cache is optional as well.
	if cfg.Redis.Addr != "" {
		verdicts, err := cache.New(cfg.Redis, log)
		if err != nil {
			return fmt.Errorf("failed to initialize verdict cache: %w", err)
		}
		defer verdicts.Close()
		engine.SetCache(verdicts)
	}

	// Set Gin mode
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(api.LoggingMiddleware(serveLog))

	if enableCORS {
		router.Use(api.CORSMiddleware(cfg.HTTP.CORSOrigins))
	}

	handlers := api.NewHandlers(engine, resultStore, cfg.HTTP.CORSOrigins, log)
	defer handlers.Shutdown()

	handlers.RegisterHealth(router)
	handlers.RegisterDashboard(router)

	v1 := router.Group("/api/v1")
	{
		v1.Use(api.AuthMiddleware(authToken, serveLog))
		v1.Use(api.RateLimitMiddleware(cfg.HTTP.RateLimit))
		handlers.Register(v1)
	}

	addr := fmt.Sprintf("%s:%d", serverHost, serverPort)
	server := &http.Server{
		Addr:           addr,
		Handler:        router,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	serverErrors := make(chan error, 1)
	go func() {
		serveLog.Infow("HTTP server listening",
			"address", addr,
			"tls", tlsCert != "",
		)

		if tlsCert != "" && tlsKey != "" {
			serverErrors <- server.ListenAndServeTLS(tlsCert, tlsKey)
		} else {
			serverErrors <- server.ListenAndServe()
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		serveLog.Infow("Received shutdown signal",
			"signal", sig.String(),
		)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			serveLog.Errorw("Failed to shutdown gracefully",
				"error", err,
			)
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		serveLog.Infow("Server shutdown complete")
	}

	return nil
}
