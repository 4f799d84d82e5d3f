package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CodeMonkeyCybersecurity/hera/internal/config"
	"github.com/CodeMonkeyCybersecurity/hera/internal/core"
	"github.com/CodeMonkeyCybersecurity/hera/internal/logger"
	"github.com/CodeMonkeyCybersecurity/hera/internal/orchestrator"
	"github.com/CodeMonkeyCybersecurity/hera/pkg/target"
	"github.com/CodeMonkeyCybersecurity/hera/pkg/types"
)

const testToken = "test-token"

type stubExtractor struct {
	result types.ExtractorResult
}

func (s *stubExtractor) Name() string { return s.result.Source }

func (s *stubExtractor) Extract(ctx context.Context, tgt *target.Target) types.ExtractorResult {
	return s.result
}

// fakeStore keeps everything in memory so handler behavior can be tested
// without Postgres.
type fakeStore struct {
	reports     []*types.RiskReport
	reputations map[string]*types.DomainReputation
	feedback    []*types.Feedback
}

func newFakeStore() *fakeStore {
	return &fakeStore{reputations: make(map[string]*types.DomainReputation)}
}

func (f *fakeStore) SaveReport(ctx context.Context, report *types.RiskReport) error {
	f.reports = append(f.reports, report)
	return nil
}

func (f *fakeStore) GetReport(ctx context.Context, id string) (*types.RiskReport, error) {
	return nil, nil
}

func (f *fakeStore) ListReports(ctx context.Context, filter core.ReportFilter) ([]*types.RiskReport, error) {
	out := []*types.RiskReport{}
	for _, r := range f.reports {
		if filter.Tier != "" && r.Tier != filter.Tier {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeStore) GetReputation(ctx context.Context, domain string) (*types.DomainReputation, error) {
	return f.reputations[domain], nil
}

func (f *fakeStore) SaveFeedback(ctx context.Context, feedback *types.Feedback) error {
	feedback.ID = "fb-1"
	feedback.CreatedAt = time.Now()
	f.feedback = append(f.feedback, feedback)
	return nil
}

func (f *fakeStore) GetStats(ctx context.Context) (*core.AnalysisStats, error) {
	return &core.AnalysisStats{
		Total:         len(f.reports),
		ByTier:        map[types.Tier]int{types.TierSuspicious: len(f.reports)},
		ByKind:        map[string]int{},
		FeedbackCount: len(f.feedback),
	}, nil
}

func (f *fakeStore) Ping(ctx context.Context) error { return nil }
func (f *fakeStore) Close() error                   { return nil }

func setupRouter(t *testing.T, store core.ResultStore) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log, err := logger.New(config.LoggerConfig{Level: "error", Format: "json"})
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	stub := &stubExtractor{result: types.ExtractorResult{
		Source: "lexical",
		Status: types.StatusOK,
		Findings: []types.Finding{
			{Kind: types.KindSuspiciousKeywords, Weight: 30, Evidence: "path contains \"login\""},
		},
	}}
	engine := orchestrator.New(cfg, []core.Extractor{stub}, log)

	handlers := NewHandlers(engine, store, nil, log)

	router := gin.New()
	handlers.RegisterHealth(router)
	handlers.RegisterDashboard(router)

	v1 := router.Group("/api/v1")
	v1.Use(AuthMiddleware(testToken, log))
	handlers.Register(v1)

	return router
}

func doJSON(router *gin.Engine, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAnalyzeEndpoint(t *testing.T) {
	router := setupRouter(t, newFakeStore())

	w := doJSON(router, http.MethodPost, "/api/v1/analyze",
		gin.H{"url": "https://example.com/login"}, testToken)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		URL             string          `json:"url"`
		Score           float64         `json:"score"`
		Tier            string          `json:"tier"`
		Findings        []types.Finding `json:"findings"`
		Recommendations []string        `json:"recommendations"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.Equal(t, "https://example.com/login", resp.URL)
	assert.Equal(t, 30.0, resp.Score)
	assert.Equal(t, "suspicious", resp.Tier)
	require.Len(t, resp.Findings, 1)
	assert.NotEmpty(t, resp.Recommendations)
}

func TestAnalyzeEndpoint_InvalidURL(t *testing.T) {
	router := setupRouter(t, newFakeStore())

	w := doJSON(router, http.MethodPost, "/api/v1/analyze",
		gin.H{"url": "ftp://example.com/file"}, testToken)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid input")
}

func TestAnalyzeEndpoint_MissingURL(t *testing.T) {
	router := setupRouter(t, newFakeStore())

	w := doJSON(router, http.MethodPost, "/api/v1/analyze", gin.H{}, testToken)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthMiddleware_RejectsBadCredentials(t *testing.T) {
	router := setupRouter(t, newFakeStore())

	// No token at all.
	w := doJSON(router, http.MethodGet, "/api/v1/stats", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Wrong token.
	w = doJSON(router, http.MethodGet, "/api/v1/stats", nil, "wrong")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Wrong scheme.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	req.Header.Set("Authorization", "Basic "+testToken)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHealthEndpoint_NoAuthRequired(t *testing.T) {
	router := setupRouter(t, newFakeStore())

	w := doJSON(router, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"healthy":true`)
}

func TestDashboardPage(t *testing.T) {
	router := setupRouter(t, nil)

	w := doJSON(router, http.MethodGet, "/", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "/api/v1/analyze")
}

func TestReputationEndpoint(t *testing.T) {
	store := newFakeStore()
	store.reputations["phish.example"] = &types.DomainReputation{
		Host:           "phish.example",
		Analyses:       3,
		MaliciousCount: 2,
		LastTier:       types.TierMalicious,
	}
	router := setupRouter(t, store)

	w := doJSON(router, http.MethodGet, "/api/v1/reputation/phish.example", nil, testToken)
	require.Equal(t, http.StatusOK, w.Code)

	var rep types.DomainReputation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rep))
	assert.Equal(t, 3, rep.Analyses)
	assert.Equal(t, types.TierMalicious, rep.LastTier)

	w = doJSON(router, http.MethodGet, "/api/v1/reputation/unknown.example", nil, testToken)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFeedbackEndpoint(t *testing.T) {
	store := newFakeStore()
	router := setupRouter(t, store)

	w := doJSON(router, http.MethodPost, "/api/v1/feedback",
		gin.H{"url": "https://example.com/", "reported_tier": "safe", "comment": "false positive"}, testToken)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), "fb-1")
	require.Len(t, store.feedback, 1)
	assert.Equal(t, types.TierSafe, store.feedback[0].ReportedTier)

	w = doJSON(router, http.MethodPost, "/api/v1/feedback",
		gin.H{"url": "https://example.com/", "reported_tier": "bogus"}, testToken)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListReportsEndpoint(t *testing.T) {
	store := newFakeStore()
	store.reports = []*types.RiskReport{
		{URL: "https://a.example/", Tier: types.TierSafe},
		{URL: "https://b.example/", Tier: types.TierMalicious},
	}
	router := setupRouter(t, store)

	w := doJSON(router, http.MethodGet, "/api/v1/reports?tier=malicious", nil, testToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":1`)

	w = doJSON(router, http.MethodGet, "/api/v1/reports?tier=bogus", nil, testToken)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatsEndpoint(t *testing.T) {
	store := newFakeStore()
	store.reports = []*types.RiskReport{{URL: "https://a.example/", Tier: types.TierSuspicious}}
	router := setupRouter(t, store)

	w := doJSON(router, http.MethodGet, "/api/v1/stats", nil, testToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":1`)
}

func TestStoreEndpointsWithoutStore(t *testing.T) {
	router := setupRouter(t, nil)

	for _, path := range []string{"/api/v1/stats", "/api/v1/reports", "/api/v1/reputation/x.example"} {
		w := doJSON(router, http.MethodGet, path, nil, testToken)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, path)
	}
}

func TestCORSPreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(CORSMiddleware(nil))
	router.POST("/api/v1/analyze", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/analyze", nil)
	req.Header.Set("Origin", "chrome-extension://abcdef")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "chrome-extension://abcdef", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSUnknownOriginGetsNoHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(CORSMiddleware([]string{"https://dashboard.example"}))
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://evil.example")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "https://dashboard.example")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "https://dashboard.example", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RateLimitMiddleware(config.RateLimitConfig{RequestsPerSecond: 1, BurstSize: 2}))
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := []int{}
	for i := 0; i < 4; i++ {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = "10.1.2.3:55555"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}

	assert.Equal(t, http.StatusOK, codes[0])
	assert.Equal(t, http.StatusOK, codes[1])
	assert.Equal(t, http.StatusTooManyRequests, codes[2])
	assert.Equal(t, http.StatusTooManyRequests, codes[3])
}
