package cmd

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/CodeMonkeyCybersecurity/hera/internal/config"
	"github.com/CodeMonkeyCybersecurity/hera/internal/core"
	"github.com/CodeMonkeyCybersecurity/hera/internal/logger"
	"github.com/CodeMonkeyCybersecurity/hera/internal/store"
	"github.com/CodeMonkeyCybersecurity/hera/pkg/target"
	"github.com/CodeMonkeyCybersecurity/hera/pkg/types"
)

// setupTestDatabase creates a PostgreSQL testcontainer and returns the configured store
func setupTestDatabase(t *testing.T) (core.ResultStore, func()) {
	ctx := context.Background()

	// Create PostgreSQL container
	postgresContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("hera_test"),
		postgres.WithUsername("hera_test"),
		postgres.WithPassword("hera_test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}

	// Get connection string
	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		postgresContainer.Terminate(ctx)
		t.Fatalf("Failed to get connection string: %v", err)
	}

	// Create result store against the container
	dbConfig := config.DefaultConfig().Database
	dbConfig.DSN = connStr

	resultStore, err := store.New(dbConfig, setupTestLogger(t))
	if err != nil {
		postgresContainer.Terminate(ctx)
		t.Fatalf("Failed to create store: %v", err)
	}

	// Cleanup function
	cleanup := func() {
		if resultStore != nil {
			resultStore.Close()
		}
		if err := postgresContainer.Terminate(ctx); err != nil {
			t.Logf("Warning: failed to terminate container: %v", err)
		}
	}

	t.Logf("✓ PostgreSQL testcontainer ready at: %s", connStr)
	return resultStore, cleanup
}

// setupTestLogger creates a test logger with error level (quiet)
func setupTestLogger(t *testing.T) *logger.Logger {
	log, err := logger.New(config.LoggerConfig{
		Level:  "error",
		Format: "console",
	})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	return log
}

// verifyDatabaseSchema checks that required tables exist
func verifyDatabaseSchema(t *testing.T, resultStore core.ResultStore) {
	sqlStore, ok := resultStore.(interface{ DB() *sqlx.DB })
	if !ok {
		t.Fatal("Store does not expose a database handle")
	}

	// Check for required tables
	tables := []string{"hera_analyses", "hera_domain_reputation", "hera_feedback"}
	for _, table := range tables {
		var exists bool
		query := fmt.Sprintf("SELECT EXISTS (SELECT FROM information_schema.tables WHERE table_name = '%s')", table)
		err := sqlStore.DB().QueryRow(query).Scan(&exists)
		if err != nil {
			t.Errorf("Failed to check table %s: %v", table, err)
		}
		if !exists {
			t.Errorf("Required table %s does not exist", table)
		}
	}
}

// fixedExtractor returns a canned result so pipeline tests stay deterministic.
type fixedExtractor struct {
	source   string
	findings []types.Finding
}

func (f *fixedExtractor) Name() string { return f.source }

func (f *fixedExtractor) Extract(ctx context.Context, tgt *target.Target) types.ExtractorResult {
	return types.ExtractorResult{
		Source:   f.source,
		Status:   types.StatusOK,
		Findings: f.findings,
	}
}
