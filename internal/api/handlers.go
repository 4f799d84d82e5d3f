// Package api exposes the analysis engine over HTTP for the browser
// extension and operator tooling.
package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/CodeMonkeyCybersecurity/hera/internal/core"
	"github.com/CodeMonkeyCybersecurity/hera/internal/logger"
	"github.com/CodeMonkeyCybersecurity/hera/internal/orchestrator"
	"github.com/CodeMonkeyCybersecurity/hera/pkg/advice"
	"github.com/CodeMonkeyCybersecurity/hera/pkg/types"
)

const (
	maxListLimit    = 500
	defaultListSize = 50
	maxCommentLen   = 2000
)

type Handlers struct {
	engine *orchestrator.Orchestrator
	store  core.ResultStore
	hub    *Hub
	log    *logger.Logger
}

// NewHandlers wires the HTTP surface. store may be nil when persistence is
// not configured; the history and feedback endpoints then answer 503.
func NewHandlers(engine *orchestrator.Orchestrator, store core.ResultStore, corsOrigins []string, log *logger.Logger) *Handlers {
	log = log.WithComponent("api")
	return &Handlers{
		engine: engine,
		store:  store,
		hub:    NewHub(corsOrigins, log),
		log:    log,
	}
}

// Register mounts the authenticated v1 routes.
func (h *Handlers) Register(r *gin.RouterGroup) {
	r.POST("/analyze", h.analyze)
	r.GET("/reports", h.listReports)
	r.GET("/reputation/:domain", h.reputation)
	r.POST("/feedback", h.submitFeedback)
	r.GET("/stats", h.stats)
	r.GET("/events", h.events)
}

// RegisterHealth mounts the unauthenticated liveness endpoint.
func (h *Handlers) RegisterHealth(r *gin.Engine) {
	r.GET("/health", h.health)
}

// Shutdown disconnects event subscribers.
func (h *Handlers) Shutdown() {
	h.hub.Close()
}

type analyzeRequest struct {
	URL string `json:"url" binding:"required"`
}

type analyzeResponse struct {
	*types.RiskReport
	Recommendations []string `json:"recommendations"`
}

func (h *Handlers) analyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
		return
	}

	report, err := h.engine.Analyze(c.Request.Context(), req.URL)
	if err != nil {
		if types.IsInvalidInput(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.log.Errorw("Analysis failed",
			"url", req.URL,
			"error", err,
			"ip", c.ClientIP(),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "analysis failed"})
		return
	}

	h.hub.Broadcast(report)

	c.JSON(http.StatusOK, analyzeResponse{
		RiskReport:      report,
		Recommendations: advice.Recommendations(report),
	})
}

func (h *Handlers) listReports(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "result store not configured"})
		return
	}

	filter := core.ReportFilter{
		URL:    c.Query("url"),
		Domain: strings.ToLower(c.Query("domain")),
		Limit:  intQuery(c, "limit", defaultListSize),
		Offset: intQuery(c, "offset", 0),
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}

	if tier := c.Query("tier"); tier != "" {
		parsed, ok := parseTier(tier)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "tier must be one of: safe, suspicious, malicious"})
			return
		}
		filter.Tier = parsed
	}

	reports, err := h.store.ListReports(c.Request.Context(), filter)
	if err != nil {
		h.log.Errorw("Failed to list reports", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list reports"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"reports": reports,
		"count":   len(reports),
	})
}

func (h *Handlers) reputation(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "result store not configured"})
		return
	}

	domain := strings.ToLower(strings.TrimSpace(c.Param("domain")))
	if domain == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "domain is required"})
		return
	}

	rep, err := h.store.GetReputation(c.Request.Context(), domain)
	if err != nil {
		h.log.Errorw("Reputation lookup failed", "domain", domain, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reputation lookup failed"})
		return
	}
	if rep == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no analyses recorded for domain"})
		return
	}

	c.JSON(http.StatusOK, rep)
}

type feedbackRequest struct {
	URL          string `json:"url" binding:"required"`
	ReportedTier string `json:"reported_tier" binding:"required"`
	Comment      string `json:"comment"`
}

func (h *Handlers) submitFeedback(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "result store not configured"})
		return
	}

	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url and reported_tier are required"})
		return
	}

	tier, ok := parseTier(req.ReportedTier)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reported_tier must be one of: safe, suspicious, malicious"})
		return
	}
	if len(req.Comment) > maxCommentLen {
		c.JSON(http.StatusBadRequest, gin.H{"error": "comment too long"})
		return
	}

	feedback := &types.Feedback{
		URL:          req.URL,
		ReportedTier: tier,
		Comment:      req.Comment,
	}
	if err := h.store.SaveFeedback(c.Request.Context(), feedback); err != nil {
		h.log.Errorw("Failed to store feedback", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store feedback"})
		return
	}

	h.log.Infow("User feedback received",
		"url", req.URL,
		"reported_tier", string(tier),
		"ip", c.ClientIP(),
	)

	c.JSON(http.StatusCreated, gin.H{"id": feedback.ID})
}

func (h *Handlers) stats(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "result store not configured"})
		return
	}

	stats, err := h.store.GetStats(c.Request.Context())
	if err != nil {
		h.log.Errorw("Failed to compute stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute stats"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total":          stats.Total,
		"by_tier":        stats.ByTier,
		"by_kind":        stats.ByKind,
		"whitelisted":    stats.Whitelisted,
		"degraded":       stats.Degraded,
		"average_score":  stats.AverageScore,
		"feedback_count": stats.FeedbackCount,
	})
}

func (h *Handlers) events(c *gin.Context) {
	h.hub.ServeWS(c)
}

func (h *Handlers) health(c *gin.Context) {
	healthy := true
	checks := make(map[string]interface{})

	if h.store != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := h.store.Ping(ctx); err != nil {
			healthy = false
			checks["database"] = map[string]interface{}{
				"status": "unhealthy",
				"error":  err.Error(),
			}
		} else {
			checks["database"] = map[string]interface{}{
				"status": "healthy",
			}
		}
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"healthy":   healthy,
		"checks":    checks,
		"timestamp": time.Now().Unix(),
	})
}

func parseTier(s string) (types.Tier, bool) {
	switch types.Tier(strings.ToLower(strings.TrimSpace(s))) {
	case types.TierSafe:
		return types.TierSafe, true
	case types.TierSuspicious:
		return types.TierSuspicious, true
	case types.TierMalicious:
		return types.TierMalicious, true
	}
	return "", false
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
