// Package store persists analyses, per-domain reputation counters and
// operator feedback in Postgres.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/CodeMonkeyCybersecurity/hera/internal/config"
	"github.com/CodeMonkeyCybersecurity/hera/internal/core"
	"github.com/CodeMonkeyCybersecurity/hera/internal/logger"
	"github.com/CodeMonkeyCybersecurity/hera/pkg/types"
)

type sqlStore struct {
	db  *sqlx.DB
	cfg config.DatabaseConfig
	log *logger.Logger
}

func New(cfg config.DatabaseConfig, log *logger.Logger) (core.ResultStore, error) {
	log = log.WithComponent("store")

	start := time.Now()
	db, err := sqlx.Connect("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	s := &sqlStore{db: db, cfg: cfg, log: log}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	log.Infow("Store initialized",
		"dsn", maskDSN(cfg.DSN),
		"max_connections", cfg.MaxConnections,
		"init_ms", time.Since(start).Milliseconds())

	return s, nil
}

// maskDSN hides credentials in connection strings before they hit a log line.
func maskDSN(dsn string) string {
	if u, err := url.Parse(dsn); err == nil && u.User != nil {
		u.User = url.User(u.User.Username())
		return u.Redacted()
	}
	if len(dsn) > 10 {
		return dsn[:5] + "***" + dsn[len(dsn)-5:]
	}
	return "***"
}

func (s *sqlStore) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS hera_analyses (
		id UUID PRIMARY KEY,
		url TEXT NOT NULL,
		host TEXT NOT NULL,
		score DOUBLE PRECISION NOT NULL,
		tier TEXT NOT NULL,
		whitelisted BOOLEAN NOT NULL DEFAULT FALSE,
		degraded BOOLEAN NOT NULL DEFAULT FALSE,
		findings JSONB NOT NULL DEFAULT '[]',
		extractors JSONB NOT NULL DEFAULT '{}',
		analyzed_at TIMESTAMPTZ NOT NULL,
		duration_ms BIGINT NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS hera_domain_reputation (
		host TEXT PRIMARY KEY,
		analyses INTEGER NOT NULL DEFAULT 0,
		safe_count INTEGER NOT NULL DEFAULT 0,
		suspicious_count INTEGER NOT NULL DEFAULT 0,
		malicious_count INTEGER NOT NULL DEFAULT 0,
		last_score DOUBLE PRECISION NOT NULL DEFAULT 0,
		last_tier TEXT NOT NULL DEFAULT 'safe',
		first_seen TIMESTAMPTZ NOT NULL,
		last_seen TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS hera_feedback (
		id UUID PRIMARY KEY,
		url TEXT NOT NULL,
		reported_tier TEXT NOT NULL,
		comment TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_hera_analyses_host ON hera_analyses(host);
	CREATE INDEX IF NOT EXISTS idx_hera_analyses_tier ON hera_analyses(tier);
	CREATE INDEX IF NOT EXISTS idx_hera_analyses_analyzed_at ON hera_analyses(analyzed_at);
	CREATE INDEX IF NOT EXISTS idx_hera_feedback_url ON hera_feedback(url);
	`

	start := time.Now()
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return err
	}

	s.log.Debugw("Migration completed",
		"tables", []string{"hera_analyses", "hera_domain_reputation", "hera_feedback"},
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}

// analysisRow is the flat table shape; findings and extractors travel as
// JSONB columns.
type analysisRow struct {
	ID          string    `db:"id"`
	URL         string    `db:"url"`
	Host        string    `db:"host"`
	Score       float64   `db:"score"`
	Tier        string    `db:"tier"`
	Whitelisted bool      `db:"whitelisted"`
	Degraded    bool      `db:"degraded"`
	Findings    string    `db:"findings"`
	Extractors  string    `db:"extractors"`
	AnalyzedAt  time.Time `db:"analyzed_at"`
	DurationMS  int64     `db:"duration_ms"`
}

func (r *analysisRow) toReport() (*types.RiskReport, error) {
	report := &types.RiskReport{
		URL:         r.URL,
		Score:       r.Score,
		Tier:        types.Tier(r.Tier),
		Whitelisted: r.Whitelisted,
		AnalyzedAt:  r.AnalyzedAt,
		DurationMS:  r.DurationMS,
	}
	if err := json.Unmarshal([]byte(r.Findings), &report.Findings); err != nil {
		return nil, fmt.Errorf("unmarshal findings: %w", err)
	}
	if err := json.Unmarshal([]byte(r.Extractors), &report.Extractors); err != nil {
		return nil, fmt.Errorf("unmarshal extractor statuses: %w", err)
	}
	return report, nil
}

func (s *sqlStore) SaveReport(ctx context.Context, report *types.RiskReport) error {
	start := time.Now()

	findingsJSON, err := json.Marshal(report.Findings)
	if err != nil {
		return fmt.Errorf("marshal findings: %w", err)
	}
	extractorsJSON, err := json.Marshal(report.Extractors)
	if err != nil {
		return fmt.Errorf("marshal extractor statuses: %w", err)
	}

	host := hostFor(report.URL)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO hera_analyses (
			id, url, host, score, tier, whitelisted, degraded,
			findings, extractors, analyzed_at, duration_ms
		) VALUES (
			:id, :url, :host, :score, :tier, :whitelisted, :degraded,
			:findings, :extractors, :analyzed_at, :duration_ms
		)`

	args := map[string]interface{}{
		"id":          uuid.NewString(),
		"url":         report.URL,
		"host":        host,
		"score":       report.Score,
		"tier":        string(report.Tier),
		"whitelisted": report.Whitelisted,
		"degraded":    report.Degraded(),
		"findings":    string(findingsJSON),
		"extractors":  string(extractorsJSON),
		"analyzed_at": report.AnalyzedAt,
		"duration_ms": report.DurationMS,
	}

	if _, err := tx.NamedExecContext(ctx, query, args); err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}
	if err := s.upsertReputation(ctx, tx, report, host); err != nil {
		return fmt.Errorf("update reputation: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	s.log.LogDatabaseOperation(ctx, "INSERT", "hera_analyses", 1, time.Since(start),
		"host", host,
		"tier", string(report.Tier))
	return nil
}

func (s *sqlStore) upsertReputation(ctx context.Context, tx *sqlx.Tx, report *types.RiskReport, host string) error {
	var safe, suspicious, malicious int
	switch report.Tier {
	case types.TierSafe:
		safe = 1
	case types.TierSuspicious:
		suspicious = 1
	case types.TierMalicious:
		malicious = 1
	}

	query := `
		INSERT INTO hera_domain_reputation (
			host, analyses, safe_count, suspicious_count, malicious_count,
			last_score, last_tier, first_seen, last_seen
		) VALUES ($1, 1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (host) DO UPDATE SET
			analyses         = hera_domain_reputation.analyses + 1,
			safe_count       = hera_domain_reputation.safe_count + EXCLUDED.safe_count,
			suspicious_count = hera_domain_reputation.suspicious_count + EXCLUDED.suspicious_count,
			malicious_count  = hera_domain_reputation.malicious_count + EXCLUDED.malicious_count,
			last_score       = EXCLUDED.last_score,
			last_tier        = EXCLUDED.last_tier,
			last_seen        = EXCLUDED.last_seen`

	_, err := tx.ExecContext(ctx, query,
		host, safe, suspicious, malicious,
		report.Score, string(report.Tier), report.AnalyzedAt)
	return err
}

func (s *sqlStore) GetReport(ctx context.Context, id string) (*types.RiskReport, error) {
	var row analysisRow
	query := `
		SELECT id, url, host, score, tier, whitelisted, degraded,
			   findings, extractors, analyzed_at, duration_ms
		FROM hera_analyses
		WHERE id = $1`

	if err := s.db.GetContext(ctx, &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("report %s not found", id)
		}
		return nil, err
	}
	return row.toReport()
}

func (s *sqlStore) ListReports(ctx context.Context, filter core.ReportFilter) ([]*types.RiskReport, error) {
	query := `
		SELECT id, url, host, score, tier, whitelisted, degraded,
			   findings, extractors, analyzed_at, duration_ms
		FROM hera_analyses WHERE 1=1`
	args := map[string]interface{}{}

	if filter.URL != "" {
		query += " AND url = :url"
		args["url"] = filter.URL
	}
	if filter.Domain != "" {
		query += " AND host = :host"
		args["host"] = strings.ToLower(filter.Domain)
	}
	if filter.Tier != "" {
		query += " AND tier = :tier"
		args["tier"] = string(filter.Tier)
	}
	if filter.FromDate != nil {
		query += " AND analyzed_at >= :from_date"
		args["from_date"] = *filter.FromDate
	}
	if filter.ToDate != nil {
		query += " AND analyzed_at <= :to_date"
		args["to_date"] = *filter.ToDate
	}

	query += " ORDER BY analyzed_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.NamedQueryContext(ctx, query, args)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reports := []*types.RiskReport{}
	for rows.Next() {
		var row analysisRow
		if err := rows.StructScan(&row); err != nil {
			return nil, err
		}
		report, err := row.toReport()
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	return reports, rows.Err()
}

// GetReputation returns nil without error for hosts never analyzed; an
// unknown domain is an expected outcome, not a failure.
func (s *sqlStore) GetReputation(ctx context.Context, domain string) (*types.DomainReputation, error) {
	var rep types.DomainReputation
	query := `
		SELECT host, analyses, safe_count, suspicious_count, malicious_count,
			   last_score, last_tier, first_seen, last_seen
		FROM hera_domain_reputation
		WHERE host = $1`

	err := s.db.GetContext(ctx, &rep, query, strings.ToLower(domain))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rep, nil
}

func (s *sqlStore) SaveFeedback(ctx context.Context, feedback *types.Feedback) error {
	if feedback.ID == "" {
		feedback.ID = uuid.NewString()
	}
	if feedback.CreatedAt.IsZero() {
		feedback.CreatedAt = time.Now().UTC()
	}

	start := time.Now()
	query := `
		INSERT INTO hera_feedback (id, url, reported_tier, comment, created_at)
		VALUES (:id, :url, :reported_tier, :comment, :created_at)`

	if _, err := s.db.NamedExecContext(ctx, query, feedback); err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}

	s.log.LogDatabaseOperation(ctx, "INSERT", "hera_feedback", 1, time.Since(start),
		"reported_tier", string(feedback.ReportedTier))
	return nil
}

func (s *sqlStore) GetStats(ctx context.Context) (*core.AnalysisStats, error) {
	stats := &core.AnalysisStats{
		ByTier: make(map[types.Tier]int),
		ByKind: make(map[string]int),
	}

	summary := `
		SELECT COUNT(*),
			   COALESCE(SUM(CASE WHEN whitelisted THEN 1 ELSE 0 END), 0),
			   COALESCE(SUM(CASE WHEN degraded THEN 1 ELSE 0 END), 0),
			   COALESCE(AVG(score), 0)
		FROM hera_analyses`
	if err := s.db.QueryRowContext(ctx, summary).Scan(
		&stats.Total, &stats.Whitelisted, &stats.Degraded, &stats.AverageScore); err != nil {
		return nil, err
	}

	tierRows, err := s.db.QueryContext(ctx, `SELECT tier, COUNT(*) FROM hera_analyses GROUP BY tier`)
	if err != nil {
		return nil, err
	}
	defer tierRows.Close()
	for tierRows.Next() {
		var tier string
		var count int
		if err := tierRows.Scan(&tier, &count); err != nil {
			return nil, err
		}
		stats.ByTier[types.Tier(tier)] = count
	}
	if err := tierRows.Err(); err != nil {
		return nil, err
	}

	kindQuery := `
		SELECT f->>'kind' AS kind, COUNT(*) AS count
		FROM hera_analyses, jsonb_array_elements(findings) f
		GROUP BY kind
		ORDER BY count DESC
		LIMIT 25`
	kindRows, err := s.db.QueryContext(ctx, kindQuery)
	if err != nil {
		return nil, err
	}
	defer kindRows.Close()
	for kindRows.Next() {
		var kind string
		var count int
		if err := kindRows.Scan(&kind, &count); err != nil {
			return nil, err
		}
		stats.ByKind[kind] = count
	}
	if err := kindRows.Err(); err != nil {
		return nil, err
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM hera_feedback`).Scan(&stats.FeedbackCount); err != nil {
		return nil, err
	}

	return stats, nil
}

func (s *sqlStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for schema checks in tests.
func (s *sqlStore) DB() *sqlx.DB {
	return s.db
}

// hostFor extracts the lowercased hostname for reputation bucketing.
func hostFor(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil && u.Hostname() != "" {
		return strings.ToLower(u.Hostname())
	}
	return strings.ToLower(rawURL)
}
