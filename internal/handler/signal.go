package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"

	"chart-signal-bot/internal/domain"
	"chart-signal-bot/internal/service"
)

// GetSignals godoc
// @Summary      Get accepted trading signals
// @Description  Returns recent accepted signals, optionally filtered by symbol, timeframe and action
// @Tags         signals
// @Produce      json
// @Param        code       query  string  true   "Admin code"
// @Param        symbol     query  string  false  "Pair (e.g., EUR/USD, BTCUSDT)"
// @Param        timeframe  query  string  false  "Timeframe (e.g., 1h, 15m)"
// @Param        action     query  string  false  "BUY, SELL or NO TRADE"
// @Param        limit      query  int     false  "Number of signals (default 50, max 200)"  default(50)
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/signals [get]
func (h *Handler) GetSignals(c *gin.Context) {
	if h.signals == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "signal history unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-signals")
	defer span.End()

	filter := domain.SignalFilter{
		Symbol:    strings.TrimSpace(c.Query("symbol")),
		Timeframe: strings.TrimSpace(c.Query("timeframe")),
		Action:    domain.Action(strings.TrimSpace(c.Query("action"))),
	}
	if filter.Symbol != "" {
		span.SetAttributes(attribute.String("symbol", filter.Symbol))
	}
	if filter.Timeframe != "" && !domain.ValidTimeframe(filter.Timeframe) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid timeframe: " + filter.Timeframe})
		return
	}

	limit := 50
	if rawLimit := strings.TrimSpace(c.Query("limit")); rawLimit != "" {
		n, err := strconv.Atoi(rawLimit)
		if err != nil || n <= 0 || n > 200 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 200"})
			return
		}
		limit = n
	}
	filter.Limit = limit

	signals, err := h.signals.ListHistory(ctx, filter)
	switch {
	case errors.Is(err, service.ErrHistoryDisabled):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	case errors.Is(err, domain.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"signals": signals})
}
