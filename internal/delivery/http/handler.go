package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pricelens/backend/internal/domain"
	"github.com/pricelens/backend/internal/metrics"
	"github.com/pricelens/backend/internal/usecase"
)

// Handler holds dependencies for HTTP handlers
type Handler struct {
	matching   *usecase.MatchingService
	adjuster   *usecase.PriceAdjuster
	sync       *usecase.SyncService
	benchmarks *usecase.BenchmarkService
	store      domain.EnrichmentRepository
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	matching *usecase.MatchingService,
	adjuster *usecase.PriceAdjuster,
	sync *usecase.SyncService,
	benchmarks *usecase.BenchmarkService,
	store domain.EnrichmentRepository,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		matching:   matching,
		adjuster:   adjuster,
		sync:       sync,
		benchmarks: benchmarks,
		store:      store,
		metrics:    m,
		logger:     logger,
	}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "pricelens-backend",
		"version": "1.0.0",
	})
}

// matchRunRequest is the body of POST /match/run. Products and PullLive are
// mutually exclusive inputs; PullLive wins when both are present.
type matchRunRequest struct {
	Products []domain.InputProduct `json:"products"`
	PullLive bool                  `json:"pullLive"`
}

// RunMatch handles a matching run over an explicit product list or the live
// platform catalog.
func (h *Handler) RunMatch(c *gin.Context) {
	var req matchRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	summary, err := h.matching.Run(c.Request.Context(), req.Products, req.PullLive)
	if err != nil {
		h.respondError(c, err)
		return
	}

	for _, r := range summary.Results {
		if r.Match != nil {
			h.metrics.MatchesTotal.WithLabelValues(string(r.Match.Confidence)).Inc()
		}
	}

	c.JSON(http.StatusOK, summary)
}

// ListEnrichments returns enrichment records filtered by confidence and
// status query parameters.
func (h *Handler) ListEnrichments(c *gin.Context) {
	filter := domain.EnrichmentFilter{
		Confidence: domain.Confidence(c.Query("confidence")),
		Status:     domain.Status(c.Query("status")),
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		filter.Limit = limit
	}
	if filter.Status != "" && !filter.Status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status: " + string(filter.Status)})
		return
	}

	records, err := h.store.List(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":   len(records),
		"records": records,
	})
}

// EnrichmentStats returns aggregate counts over the enrichment store.
func (h *Handler) EnrichmentStats(c *gin.Context) {
	stats, err := h.store.Stats(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

type statusRequest struct {
	Status domain.Status `json:"status"`
}

// UpdateStatus applies a lifecycle transition to a single enrichment record.
func (h *Handler) UpdateStatus(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid record id"})
		return
	}

	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if !req.Status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status: " + string(req.Status)})
		return
	}

	if err := h.store.UpdateStatus(c.Request.Context(), id, req.Status); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id, "status": req.Status})
}

type bulkStatusRequest struct {
	IDs    []int64       `json:"ids"`
	Status domain.Status `json:"status"`
}

// BulkUpdateStatus applies the same transition to a set of records. Records
// whose current status does not allow the transition are left untouched; the
// response reports how many rows changed.
func (h *Handler) BulkUpdateStatus(c *gin.Context) {
	var req bulkStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if len(req.IDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ids must not be empty"})
		return
	}
	if !req.Status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status: " + string(req.Status)})
		return
	}

	updated, err := h.store.BulkUpdateStatus(c.Request.Context(), req.IDs, req.Status)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"requested": len(req.IDs),
		"updated":   updated,
		"status":    req.Status,
	})
}

type adjustRequest struct {
	IDs      []int64               `json:"ids"`
	Strategy usecase.PriceStrategy `json:"strategy"`
}

// AdjustPrices runs a bulk price adjustment against the platform.
func (h *Handler) AdjustPrices(c *gin.Context) {
	var req adjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if req.Strategy == "" {
		req.Strategy = usecase.StrategyMatchAvg
	}

	summary, err := h.adjuster.AdjustPrices(c.Request.Context(), req.IDs, req.Strategy)
	if err != nil {
		h.respondError(c, err)
		return
	}

	for _, row := range summary.Results {
		h.metrics.AdjustmentsTotal.WithLabelValues(row.Status).Inc()
	}

	c.JSON(http.StatusOK, summary)
}

// PushEnrichments writes every approved record's metafields and tags to the
// platform.
func (h *Handler) PushEnrichments(c *gin.Context) {
	summary, err := h.sync.PushApproved(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.metrics.PushesTotal.WithLabelValues("pushed").Add(float64(summary.Pushed))
	h.metrics.PushesTotal.WithLabelValues("failed").Add(float64(summary.Failed))

	c.JSON(http.StatusOK, summary)
}

// RecomputeBenchmarks rebuilds every market benchmark segment.
func (h *Handler) RecomputeBenchmarks(c *gin.Context) {
	rows, err := h.benchmarks.Recompute(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":      len(rows),
		"benchmarks": rows,
	})
}

// ListBenchmarks serves the current benchmark rows, cached.
func (h *Handler) ListBenchmarks(c *gin.Context) {
	rows, err := h.benchmarks.List(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":      len(rows),
		"benchmarks": rows,
	})
}

// respondError maps domain errors to HTTP statuses.
func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrPlatformNotConfigured):
		c.JSON(http.StatusPreconditionFailed, gin.H{"error": "platform credentials not configured"})
	case errors.Is(err, domain.ErrPlatformUnavailable):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
