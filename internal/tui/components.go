package tui

import (
	"fmt"
	"strings"
	"time"

	"chart-signal-bot/internal/domain"

	"github.com/charmbracelet/lipgloss"
)

// FormatRecord renders a stored signal as a single line.
func FormatRecord(r domain.SignalRecord) string {
	return fmt.Sprintf("#%-4d %-9s %-4s %s %s  entry %-10s tp %-10s sl %-10s %s",
		r.ID,
		r.Symbol,
		r.Timeframe,
		ActionStyle(r.Signal.Action).Render(fmt.Sprintf("%-8s", r.Signal.Action)),
		ConfidenceStyle(r.Signal.Confidence).Render(fmt.Sprintf("%3d%%", r.Signal.Confidence)),
		truncate(r.Signal.Entry, 10),
		truncate(r.Signal.TakeProfit, 10),
		truncate(r.Signal.StopLoss, 10),
		r.CreatedAt.Format(time.RFC822),
	)
}

// ActionStyle picks the color for a trade action.
func ActionStyle(a domain.Action) lipgloss.Style {
	switch a {
	case domain.ActionBuy:
		return ActionBuyStyle
	case domain.ActionSell:
		return ActionSellStyle
	default:
		return ActionNoTradeStyle
	}
}

// ConfidenceStyle picks the color for a confidence percentage.
func ConfidenceStyle(confidence int) lipgloss.Style {
	switch {
	case confidence >= 70:
		return ConfidenceHighStyle
	case confidence >= 50:
		return ConfidenceMedStyle
	default:
		return ConfidenceLowStyle
	}
}

// RenderDepthBar renders an ASCII bar for a queue counter relative to scale.
func RenderDepthBar(label string, value, scale int64, barWidth int, style lipgloss.Style) string {
	if barWidth <= 0 {
		barWidth = 20
	}
	filled := 0
	if scale > 0 {
		filled = int(value * int64(barWidth) / scale)
	}
	if value > 0 && filled == 0 {
		filled = 1
	}
	if filled > barWidth {
		filled = barWidth
	}
	empty := barWidth - filled

	bar := style.Render(strings.Repeat("█", filled)) + SubtextStyle.Render(strings.Repeat("░", empty))
	return fmt.Sprintf("%-12s %s %d", label, bar, value)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
