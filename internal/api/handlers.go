package api

import (
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/amanuel-c/telepharm/internal/config"
	"github.com/amanuel-c/telepharm/internal/database"
)

const (
	defaultTopLimit    = 10
	maxTopLimit        = 50
	defaultSearchLimit = 20
	maxSearchLimit     = 100
)

// Handler serves the analytics endpoints. Errors returned to clients are
// generic; details stay in the logs.
type Handler struct {
	store       database.Store
	termPattern *regexp.Regexp
	windowDays  int
	logger      *slog.Logger
}

func NewHandler(store database.Store, cfg config.AnalyticsConfig, logger *slog.Logger) (*Handler, error) {
	pattern, err := regexp.Compile(cfg.TermPattern)
	if err != nil {
		return nil, err
	}
	return &Handler{
		store:       store,
		termPattern: pattern,
		windowDays:  cfg.ActivityWindowDays,
		logger:      logger.With("component", "api"),
	}, nil
}

// GetTopProducts returns the most frequently mentioned terms.
// GET /api/reports/top-products?limit=10
func (h *Handler) GetTopProducts(c *gin.Context) {
	limit, ok := parseLimit(c, "limit", defaultTopLimit, maxTopLimit)
	if !ok {
		return
	}

	products, err := h.store.TopProducts(c.Request.Context(), limit, h.termPattern)
	if err != nil {
		h.logger.Error("Failed to compute top products", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"products": products,
		"count":    len(products),
	})
}

// GetChannelActivity returns one channel's posting activity.
// GET /api/channels/:channel/activity
func (h *Handler) GetChannelActivity(c *gin.Context) {
	channel := c.Param("channel")

	activity, err := h.store.ChannelActivity(c.Request.Context(), channel, h.windowDays)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "channel not found"})
			return
		}
		h.logger.Error("Failed to fetch channel activity", "channel", channel, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, activity)
}

// SearchMessages searches message text and channel names.
// GET /api/search/messages?query=paracetamol&limit=20
func (h *Handler) SearchMessages(c *gin.Context) {
	query := c.Query("query")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter is required"})
		return
	}

	limit, ok := parseLimit(c, "limit", defaultSearchLimit, maxSearchLimit)
	if !ok {
		return
	}

	results, err := h.store.SearchMessages(c.Request.Context(), query, limit)
	if err != nil {
		h.logger.Error("Failed to search messages", "query", query, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"messages": results,
		"count":    len(results),
	})
}

// GetSummary reports raw table row counts.
// GET /api/summary
func (h *Handler) GetSummary(c *gin.Context) {
	summary, err := h.store.Summary(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to compute data summary", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, summary)
}

// HealthCheck verifies database connectivity.
// GET /health
func (h *Handler) HealthCheck(c *gin.Context) {
	if err := h.store.Ping(c.Request.Context()); err != nil {
		h.logger.Error("Health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func parseLimit(c *gin.Context, name string, def, max int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 || limit > max {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name + " parameter"})
		return 0, false
	}
	return limit, true
}
