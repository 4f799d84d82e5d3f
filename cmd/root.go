package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/CodeMonkeyCybersecurity/hera/internal/config"
	"github.com/CodeMonkeyCybersecurity/hera/internal/logger"
)

var (
	cfg *config.Config
	log *logger.Logger
)

var rootCmd = &cobra.Command{
	Use:   "hera [url]",
	Short: "URL phishing risk analysis engine",
	Long: `Hera - URL Phishing Risk Analysis

Scores URLs for phishing risk by combining independent evidence sources:
lexical URL heuristics, TLS certificate inspection, page content analysis
and domain registration intelligence. Each source contributes weighted
findings; the aggregate maps to a safe / suspicious / malicious verdict.

USAGE:
  hera https://example.com/login      # Analyze a single URL
  hera analyze url1 url2 url3         # Analyze a batch of URLs
  hera serve                          # Start the HTTP API for the browser extension

CONFIGURATION:
  Flags and HERA_* environment variables configure the engine; no config
  file is required. Run 'hera analyze --help' or 'hera serve --help' for
  command-specific options.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return nil
		}
		for _, subcmd := range cmd.Commands() {
			if subcmd.Name() == args[0] || subcmd.HasAlias(args[0]) {
				return nil
			}
		}
		if len(args) > 1 {
			return fmt.Errorf("accepts at most 1 arg(s), received %d", len(args))
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return cmd.Help()
		}
		// Bare "hera <url>" behaves like "hera analyze <url>".
		return runAnalyze(cmd, args)
	},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initConfig(); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		var err error
		log, err = logger.New(cfg.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			// Sync errors on stdout/stderr are expected on Linux and can be
			// safely ignored.
			if err := log.Sync(); err != nil {
				if err.Error() != "sync /dev/stdout: invalid argument" && err.Error() != "sync /dev/stderr: invalid argument" {
					fmt.Fprintf(os.Stderr, "Warning: failed to sync logger: %v\n", err)
				}
			}
		}
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Logging configuration
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "console", "log format (json, console)")
	viper.BindPFlag("logger.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("logger.format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindEnv("logger.level", "HERA_LOG_LEVEL")
	viper.BindEnv("logger.format", "HERA_LOG_FORMAT")

	// Database configuration
	rootCmd.PersistentFlags().String("db-dsn", "", "PostgreSQL connection string (empty disables persistence)")
	viper.BindPFlag("database.dsn", rootCmd.PersistentFlags().Lookup("db-dsn"))
	viper.BindEnv("database.dsn", "HERA_DATABASE_DSN", "DATABASE_URL")
	viper.BindEnv("database.max_connections", "HERA_DB_MAX_CONNECTIONS")

	// Redis configuration
	rootCmd.PersistentFlags().String("redis-addr", "", "Redis server address (empty disables the verdict cache)")
	viper.BindPFlag("redis.addr", rootCmd.PersistentFlags().Lookup("redis-addr"))
	viper.BindEnv("redis.addr", "HERA_REDIS_ADDR", "REDIS_URL")
	viper.BindEnv("redis.password", "HERA_REDIS_PASSWORD")

	// Detection tuning
	rootCmd.PersistentFlags().StringSlice("whitelist", nil, "Trusted domains that always score safe (supports *.example.com)")
	rootCmd.PersistentFlags().String("resolver", "", "DNS resolver address (host:port, empty uses the system resolver)")
	rootCmd.PersistentFlags().String("rules", "", "Heuristics YAML file overriding word lists and weights")
	viper.BindPFlag("detection.whitelist", rootCmd.PersistentFlags().Lookup("whitelist"))
	viper.BindPFlag("detection.resolver", rootCmd.PersistentFlags().Lookup("resolver"))
	viper.BindPFlag("detection.rules_file", rootCmd.PersistentFlags().Lookup("rules"))
	viper.BindEnv("detection.resolver", "HERA_RESOLVER")
	viper.BindEnv("detection.rules_file", "HERA_RULES_FILE")

	// AI classifier (API key through environment only, never a flag)
	rootCmd.PersistentFlags().Bool("ai", false, "Enable the AI classifier extractor")
	viper.BindPFlag("ai.enabled", rootCmd.PersistentFlags().Lookup("ai"))
	viper.BindEnv("ai.api_key", "HERA_OPENAI_API_KEY", "OPENAI_API_KEY")
	viper.BindEnv("ai.base_url", "HERA_OPENAI_BASE_URL")
	viper.BindEnv("ai.model", "HERA_AI_MODEL")

	// Server security
	viper.BindEnv("http.auth_token", "HERA_API_TOKEN")

	// Telemetry
	viper.BindEnv("telemetry.enabled", "HERA_TELEMETRY_ENABLED")
	viper.BindEnv("telemetry.endpoint", "HERA_TELEMETRY_ENDPOINT")
}

func initConfig() error {
	// Service settings come from flags + env vars only; the optional rules
	// file overlays heuristics on top of whatever those produced.
	viper.AutomaticEnv()
	viper.SetEnvPrefix("HERA")

	cfg = config.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Detection.RulesFile != "" {
		rules, err := config.LoadRules(cfg.Detection.RulesFile)
		if err != nil {
			return fmt.Errorf("failed to load rules file: %w", err)
		}
		cfg.Detection.ApplyRules(rules)
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	return nil
}

func GetConfig() *config.Config {
	return cfg
}

func GetLogger() *logger.Logger {
	return log
}
