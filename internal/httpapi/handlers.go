// Package httpapi exposes the intake and operational HTTP surface: two
// public event endpoints, a liveness/readiness rollup, and an authenticated
// stats summary.
package httpapi

import (
	"context"
	"net/http"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/cflagle/unified-events/internal/metrics"
	"github.com/cflagle/unified-events/internal/models"
	"github.com/cflagle/unified-events/internal/processor"
	"github.com/cflagle/unified-events/internal/queue"
	"github.com/cflagle/unified-events/internal/router"
	"github.com/cflagle/unified-events/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// maxBacklogPending and maxFailureRate gate the /health "degraded" verdict.
const (
	maxBacklogPending = 10000
	maxFailureRate    = 0.10
	maxDiskUsedFrac   = 0.90
	failureRateWindow = 5 * time.Minute
)

// pinger is the narrow slice of store.Store the health check needs.
type pinger interface {
	Ping(ctx context.Context) error
	RecentFailureRate(ctx context.Context, since time.Time) (float64, error)
}

// statsReader is the narrow slice of store.Store the /stats endpoint needs.
type statsReader interface {
	EventCounts(ctx context.Context, since time.Time) (leads, purchases, blocked int64, err error)
	PlatformAttemptStats(ctx context.Context, since time.Time) ([]store.PlatformStats, error)
	TotalRevenue(ctx context.Context, since time.Time) (float64, error)
}

// Handlers wires the processor, queue, router, and Store into gin
// endpoints. The lead endpoint answers browser navigations with a redirect
// to RedirectBaseURL; it redirects whether or not that URL is set.
type Handlers struct {
	proc            *processor.Processor
	queue           *queue.Queue
	router          *router.Router
	store           pinger
	stats           statsReader
	metrics         *metrics.Metrics
	diskPath        string
	redirectBaseURL string
	logger          *logrus.Entry
}

func New(proc *processor.Processor, q *queue.Queue, r *router.Router, st store.Store, m *metrics.Metrics, diskPath, redirectBaseURL string, logger *logrus.Logger) *Handlers {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if diskPath == "" {
		diskPath = "/"
	}
	return &Handlers{
		proc: proc, queue: q, router: r, store: st, stats: st, metrics: m,
		diskPath: diskPath, redirectBaseURL: redirectBaseURL,
		logger: logger.WithField("component", "httpapi"),
	}
}

// Register mounts every route onto an existing gin.Engine.
func (h *Handlers) Register(engine *gin.Engine, validAPIKeys map[string]bool) {
	engine.POST("/events/lead", h.Lead)
	engine.POST("/events/purchase", h.Purchase)
	engine.GET("/health", h.Health)
	engine.GET("/stats", APIKeyAuth(validAPIKeys), h.Stats)
}

// Lead accepts a lead submission. Browser navigations (Accept: text/html,
// no explicit JSON request) are redirected to the configured confirmation
// URL even on internal failure, to preserve the user journey; JSON clients
// always get a structured body.
func (h *Handlers) Lead(c *gin.Context) {
	h.intake(c, models.EventTypeLead)
}

// Purchase accepts a purchase event. Always returns structured JSON.
func (h *Handlers) Purchase(c *gin.Context) {
	h.intake(c, models.EventTypePurchase)
}

func (h *Handlers) intake(c *gin.Context, eventType models.EventType) {
	start := time.Now()
	correlationID := c.GetString("correlation_id")

	var raw map[string]interface{}
	if err := c.ShouldBindJSON(&raw); err != nil {
		h.respondIntakeError(c, eventType, http.StatusBadRequest, "invalid request body", correlationID)
		return
	}

	result, err := h.proc.Intake(c.Request.Context(), eventType, raw)
	if err != nil {
		h.logger.WithError(err).WithField("correlation_id", correlationID).Error("intake failed")
		h.respondIntakeError(c, eventType, http.StatusInternalServerError, "internal error", correlationID)
		return
	}

	processingMs := time.Since(start).Milliseconds()

	if h.metrics != nil {
		if result.Blocked {
			h.metrics.IntakeBlocked.WithLabelValues(string(eventType)).Inc()
		} else {
			h.metrics.IntakeAccepted.WithLabelValues(string(eventType)).Inc()
		}
	}

	if eventType == models.EventTypeLead && wantsRedirect(c) {
		c.Redirect(http.StatusFound, h.redirectURL(result))
		return
	}

	status := "accepted"
	if result.Blocked {
		status = "blocked"
	}
	c.JSON(http.StatusOK, gin.H{
		"success":         result.Success,
		"event_id":        result.EventID,
		"status":          status,
		"redirect_url":    h.redirectURL(result),
		"processing_time": processingMs,
	})
}

// respondIntakeError still redirects browser navigations on the lead
// endpoint, even on internal failure; every other caller gets a
// structured error.
func (h *Handlers) respondIntakeError(c *gin.Context, eventType models.EventType, code int, msg, correlationID string) {
	if eventType == models.EventTypeLead && wantsRedirect(c) {
		c.Redirect(http.StatusFound, h.redirectBaseURL)
		return
	}
	c.JSON(code, gin.H{"success": false, "error": msg, "correlation_id": correlationID})
}

func (h *Handlers) redirectURL(result processor.IntakeResult) string {
	if h.redirectBaseURL == "" {
		return ""
	}
	if result.Blocked {
		return h.redirectBaseURL
	}
	return h.redirectBaseURL + "?event_id=" + result.EventID.String()
}

// wantsRedirect treats a request as a browser navigation when it sends no
// Accept header, or accepts text/html without accepting application/json.
func wantsRedirect(c *gin.Context) bool {
	accept := c.GetHeader("Accept")
	if accept == "" {
		return true
	}
	return strings.Contains(accept, "text/html") && !strings.Contains(accept, "application/json")
}

// Health reports liveness and component status.
func (h *Handlers) Health(c *gin.Context) {
	ctx := c.Request.Context()
	checks := gin.H{}
	status := "healthy"
	httpStatus := http.StatusOK

	if err := h.store.Ping(ctx); err != nil {
		checks["database"] = "unreachable"
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	backlog, err := h.queue.CountPending(ctx)
	if err != nil {
		checks["queue"] = "error"
	} else {
		checks["queue"] = backlog
		if backlog > maxBacklogPending && status == "healthy" {
			status = "degraded"
		}
	}

	platformCount := h.router.PlatformCount()
	checks["platforms"] = platformCount
	if platformCount == 0 && status == "healthy" {
		status = "degraded"
	}

	diskUsed, diskErr := diskUsageFraction(h.diskPath)
	if diskErr != nil {
		checks["disk"] = "unknown"
	} else {
		checks["disk"] = diskUsed
		if diskUsed > maxDiskUsedFrac && status == "healthy" {
			status = "degraded"
		}
	}

	errorRate, rateErr := h.store.RecentFailureRate(ctx, time.Now().Add(-failureRateWindow))
	if rateErr != nil {
		checks["error_rate"] = "unknown"
	} else {
		checks["error_rate"] = errorRate
		if errorRate >= maxFailureRate && status == "healthy" {
			status = "degraded"
		}
	}

	c.JSON(httpStatus, gin.H{
		"status": status,
		"checks": checks,
		"metrics": gin.H{
			"goroutines": runtime.NumGoroutine(),
		},
	})
}

// diskUsageFraction reports the used fraction of the filesystem backing
// path, via syscall.Statfs — no library in the surrounding ecosystem
// surface wraps this more conveniently than the standard library does.
func diskUsageFraction(path string) (float64, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return 0, err
	}
	total := stat.Blocks * uint64(stat.Bsize)
	free := stat.Bfree * uint64(stat.Bsize)
	if total == 0 {
		return 0, nil
	}
	used := total - free
	return float64(used) / float64(total), nil
}

// periodWindows maps the documented ?period= values to a lookback window.
var periodWindows = map[string]time.Duration{
	"1h":  time.Hour,
	"24h": 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
}

// Stats reports summary counters for the requested window.
func (h *Handlers) Stats(c *gin.Context) {
	period := c.DefaultQuery("period", "24h")
	window, ok := periodWindows[period]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid period, expected one of 1h, 24h, 7d, 30d"})
		return
	}

	ctx := c.Request.Context()
	since := time.Now().Add(-window)

	leads, purchases, blocked, err := h.stats.EventCounts(ctx, since)
	if err != nil {
		h.logger.WithError(err).Error("event counts query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	platformStats, err := h.stats.PlatformAttemptStats(ctx, since)
	if err != nil {
		h.logger.WithError(err).Error("platform stats query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	revenue, err := h.stats.TotalRevenue(ctx, since)
	if err != nil {
		h.logger.WithError(err).Error("revenue query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"period":    period,
		"leads":     leads,
		"purchases": purchases,
		"blocked":   blocked,
		"revenue":   revenue,
		"platforms": platformStats,
	})
}
