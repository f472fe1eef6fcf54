package handler

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"chart-signal-bot/internal/domain"
	"chart-signal-bot/internal/queue"
)

type BotController interface {
	Start() error
	Stop()
	Running() bool
}

type JobReader interface {
	Get(ctx context.Context, id string) (*domain.Job, error)
	Stats(ctx context.Context) (queue.Stats, error)
}

type SignalHistory interface {
	ListHistory(ctx context.Context, filter domain.SignalFilter) ([]domain.SignalRecord, error)
}

type Handler struct {
	tracer    trace.Tracer
	bot       BotController
	jobs      JobReader
	signals   SignalHistory
	adminCode string
}

func New(tracer trace.Tracer, bot BotController, jobs JobReader, signals SignalHistory, adminCode string) *Handler {
	return &Handler{
		tracer:    tracer,
		bot:       bot,
		jobs:      jobs,
		signals:   signals,
		adminCode: adminCode,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)
	r.GET("/start-bot", h.requireAdmin, h.StartBot)
	r.GET("/stop-bot", h.requireAdmin, h.StopBot)

	api := r.Group("/api", h.requireAdmin)
	api.GET("/jobs/:id", h.GetJob)
	api.GET("/queue/stats", h.GetQueueStats)
	api.GET("/signals", h.GetSignals)
}

// requireAdmin accepts the admin code as ?code= or an X-Admin-Code header.
// An unset code rejects every request.
func (h *Handler) requireAdmin(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		code = c.GetHeader("X-Admin-Code")
	}
	if h.adminCode == "" || subtle.ConstantTimeCompare([]byte(code), []byte(h.adminCode)) != 1 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Next()
}

// Root godoc
// @Summary      Service banner
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       / [get]
func (h *Handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service":     "chart-signal-bot",
		"bot_running": h.botRunning(),
	})
}

// Health godoc
// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      503  {object}  map[string]interface{}
// @Router       /health [get]
func (h *Handler) Health(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.health")
	defer span.End()

	status := http.StatusOK
	body := gin.H{"status": "ok", "bot_running": h.botRunning()}
	if h.jobs != nil {
		if _, err := h.jobs.Stats(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body["queue"] = "unreachable"
		}
	}
	c.JSON(status, body)
}

// StartBot godoc
// @Summary      Start the Telegram bot
// @Tags         admin
// @Produce      json
// @Param        code  query  string  true  "Admin code"
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /start-bot [get]
func (h *Handler) StartBot(c *gin.Context) {
	if h.bot == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "bot unavailable"})
		return
	}
	if err := h.bot.Start(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"bot_running": h.bot.Running()})
}

// StopBot godoc
// @Summary      Stop the Telegram bot
// @Tags         admin
// @Produce      json
// @Param        code  query  string  true  "Admin code"
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /stop-bot [get]
func (h *Handler) StopBot(c *gin.Context) {
	if h.bot == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "bot unavailable"})
		return
	}
	h.bot.Stop()
	c.JSON(http.StatusOK, gin.H{"bot_running": h.bot.Running()})
}

func (h *Handler) botRunning() bool {
	return h.bot != nil && h.bot.Running()
}
