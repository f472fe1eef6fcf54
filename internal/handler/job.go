package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"

	"chart-signal-bot/internal/queue"
)

// GetJob godoc
// @Summary      Get job status
// @Description  Returns the stored record of a queued, running or finished job
// @Tags         jobs
// @Produce      json
// @Param        id    path   string  true  "Job ID"
// @Param        code  query  string  true  "Admin code"
// @Success      200  {object}  domain.Job
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/jobs/{id} [get]
func (h *Handler) GetJob(c *gin.Context) {
	if h.jobs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "queue unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-job")
	defer span.End()

	id := strings.TrimSpace(c.Param("id"))
	span.SetAttributes(attribute.String("job_id", id))

	job, err := h.jobs.Get(ctx, id)
	if errors.Is(err, queue.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, job)
}

// GetQueueStats godoc
// @Summary      Queue statistics
// @Tags         jobs
// @Produce      json
// @Param        code  query  string  true  "Admin code"
// @Success      200  {object}  queue.Stats
// @Failure      401  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/queue/stats [get]
func (h *Handler) GetQueueStats(c *gin.Context) {
	if h.jobs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "queue unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-queue-stats")
	defer span.End()

	stats, err := h.jobs.Stats(ctx)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}
