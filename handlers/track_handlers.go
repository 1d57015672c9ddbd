// api/handlers/track_handlers.go
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"shopdemo/api/metrics"
	"shopdemo/api/models"
	"shopdemo/api/store"
	"shopdemo/api/utils"
)

const (
	insertTimeout  = 15 * time.Second
	queryTimeout   = 10 * time.Second
	maxSummaryDays = 365
)

// EventStore is the columnar store behind the ingestion endpoints.
type EventStore interface {
	InsertPageView(ctx context.Context, row models.PageViewRow) error
	InsertClick(ctx context.Context, row models.ClickRow) error
	InsertSession(ctx context.Context, row models.SessionRow) error
	PageViewSummary(ctx context.Context, days int) ([]models.DailySummary, error)
	TopPages(ctx context.Context, start, end time.Time, limit uint64) ([]models.TopPathResult, error)
	UniqueSessionsOverTime(ctx context.Context, interval string, start, end time.Time) ([]models.TimeBucketCount, error)
}

type AnalyticsHandlers struct {
	store  EventStore
	logger *zap.Logger
	now    func() time.Time
}

func NewAnalyticsHandlers(s EventStore, logger *zap.Logger) *AnalyticsHandlers {
	return &AnalyticsHandlers{
		store:  s,
		logger: logger,
		now:    time.Now,
	}
}

// Register mounts the analytics routes on r.
func (h *AnalyticsHandlers) Register(r gin.IRouter) {
	g := r.Group("/analytics")
	g.POST("/pageview", h.TrackPageView)
	g.POST("/click", h.TrackClick)
	g.POST("/session", h.TrackSession)
	g.GET("/summary", h.GetSummary)
	g.GET("/top-pages", h.GetTopPages)
	g.GET("/unique-sessions", h.GetUniqueSessions)
}

func (h *AnalyticsHandlers) TrackPageView(c *gin.Context) {
	var req models.PageViewRequest
	if !h.bind(c, models.KindPageView, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), insertTimeout)
	defer cancel()

	if err := h.store.InsertPageView(ctx, req.Row(h.now())); err != nil {
		h.storeFailed(c, models.KindPageView, err)
		return
	}
	h.created(c, models.KindPageView)
}

func (h *AnalyticsHandlers) TrackClick(c *gin.Context) {
	var req models.ClickRequest
	if !h.bind(c, models.KindClick, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), insertTimeout)
	defer cancel()

	if err := h.store.InsertClick(ctx, req.Row(h.now())); err != nil {
		h.storeFailed(c, models.KindClick, err)
		return
	}
	h.created(c, models.KindClick)
}

func (h *AnalyticsHandlers) TrackSession(c *gin.Context) {
	var req models.SessionRequest
	if !h.bind(c, models.KindSession, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		h.reject(c, models.KindSession, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), insertTimeout)
	defer cancel()

	if err := h.store.InsertSession(ctx, req.Row()); err != nil {
		h.storeFailed(c, models.KindSession, err)
		return
	}
	h.created(c, models.KindSession)
}

func (h *AnalyticsHandlers) GetSummary(c *gin.Context) {
	days := store.SummaryDays
	if limitParam := c.Query("limit"); limitParam != "" {
		parsed, err := strconv.Atoi(limitParam)
		if err != nil || parsed <= 0 || parsed > maxSummaryDays {
			respondError(c, http.StatusBadRequest, fmt.Sprintf("Invalid 'limit' parameter. Must be an integer between 1 and %d.", maxSummaryDays))
			return
		}
		days = parsed
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()

	summary, err := h.store.PageViewSummary(ctx, days)
	if err != nil {
		h.logger.Error("Error getting page view summary", zap.Error(err))
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *AnalyticsHandlers) GetTopPages(c *gin.Context) {
	start, end, ok := h.timeRange(c)
	if !ok {
		return
	}

	var limit uint64 = 10
	if limitParam := c.Query("limit"); limitParam != "" {
		parsed, err := strconv.ParseUint(limitParam, 10, 64)
		if err != nil || parsed == 0 {
			respondError(c, http.StatusBadRequest, "Invalid 'limit' parameter. Must be a positive integer.")
			return
		}
		limit = parsed
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()

	results, err := h.store.TopPages(ctx, start, end, limit)
	if err != nil {
		h.logger.Error("Error getting top pages", zap.Error(err))
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, results)
}

func (h *AnalyticsHandlers) GetUniqueSessions(c *gin.Context) {
	interval := c.DefaultQuery("interval", "Day")
	if !utils.IsValidInterval(interval) {
		respondError(c, http.StatusBadRequest, "interval must be one of Minute, Hour, Day, Week, Month, Quarter, Year")
		return
	}

	start, end, ok := h.timeRange(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()

	results, err := h.store.UniqueSessionsOverTime(ctx, interval, start, end)
	if err != nil {
		h.logger.Error("Error getting unique sessions over time", zap.Error(err))
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, results)
}

// timeRange reads the optional RFC 3339 start and end query parameters,
// defaulting to the last seven days.
func (h *AnalyticsHandlers) timeRange(c *gin.Context) (start, end time.Time, ok bool) {
	now := h.now().UTC()
	start = now.Add(-7 * 24 * time.Hour)
	end = now

	if startParam := c.Query("start"); startParam != "" {
		parsed, err := time.Parse(time.RFC3339, startParam)
		if err != nil {
			respondError(c, http.StatusBadRequest, "Invalid 'start' timestamp format. Use RFC3339 (e.g., 2006-01-02T15:04:05Z)")
			return time.Time{}, time.Time{}, false
		}
		start = parsed
	}
	if endParam := c.Query("end"); endParam != "" {
		parsed, err := time.Parse(time.RFC3339, endParam)
		if err != nil {
			respondError(c, http.StatusBadRequest, "Invalid 'end' timestamp format. Use RFC3339 (e.g., 2006-01-02T15:04:05Z)")
			return time.Time{}, time.Time{}, false
		}
		end = parsed
	}
	if end.Before(start) {
		respondError(c, http.StatusBadRequest, "'end' must not be before 'start'")
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

func (h *AnalyticsHandlers) bind(c *gin.Context, kind models.EventKind, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		h.reject(c, kind, err)
		return false
	}
	return true
}

func (h *AnalyticsHandlers) reject(c *gin.Context, kind models.EventKind, err error) {
	metrics.EventsRejected.WithLabelValues(string(kind), metrics.ReasonInvalid).Inc()
	h.logger.Warn("Rejected analytics event", zap.String("type", string(kind)), zap.Error(err))
	respondError(c, http.StatusBadRequest, err.Error())
}

func (h *AnalyticsHandlers) storeFailed(c *gin.Context, kind models.EventKind, err error) {
	metrics.EventsRejected.WithLabelValues(string(kind), metrics.ReasonStore).Inc()
	h.logger.Error("Error inserting analytics event into ClickHouse", zap.String("type", string(kind)), zap.Error(err))
	respondError(c, http.StatusInternalServerError, err.Error())
}

func (h *AnalyticsHandlers) created(c *gin.Context, kind models.EventKind) {
	metrics.EventsIngested.WithLabelValues(string(kind)).Inc()
	c.JSON(http.StatusCreated, gin.H{"status": "ok"})
}
