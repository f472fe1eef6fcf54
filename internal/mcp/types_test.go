package mcp

import (
	"testing"

	"chart-signal-bot/internal/domain"
)

func TestNormalizeSymbol(t *testing.T) {
	s, err := normalizeSymbol(" eur-usd ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s != "EUR/USD" {
		t.Fatalf("expected EUR/USD, got %s", s)
	}

	if _, err := normalizeSymbol("  "); err == nil {
		t.Fatal("expected missing symbol error")
	}
}

func TestNormalizeTimeframe(t *testing.T) {
	tf, err := normalizeTimeframe(" 4H ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tf != "4h" {
		t.Fatalf("expected 4h, got %s", tf)
	}

	if _, err := normalizeTimeframe("hourly"); err == nil {
		t.Fatal("expected unsupported timeframe error")
	}
}

func TestNormalizeSignalFilter(t *testing.T) {
	filter, err := normalizeSignalFilter(signalsListInput{
		Symbol:    "btcusdt",
		Timeframe: "15M",
		Action:    "no trade",
		Limit:     999,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filter.Symbol != "BTC/USDT" || filter.Timeframe != "15m" {
		t.Fatalf("unexpected filter %+v", filter)
	}
	if filter.Action != domain.ActionNoTrade {
		t.Fatalf("expected NO TRADE, got %s", filter.Action)
	}
	if filter.Limit != maxSignalLimit {
		t.Fatalf("expected capped signal limit %d, got %d", maxSignalLimit, filter.Limit)
	}

	if filter, _ := normalizeSignalFilter(signalsListInput{}); filter.Limit != defaultSignalLimit {
		t.Fatalf("expected default limit, got %d", filter.Limit)
	}
}

func TestNewJobViewFlattensPayload(t *testing.T) {
	view, err := newJobView(&domain.Job{
		ID:      "j1",
		Type:    domain.JobAdminBroadcast,
		Status:  domain.JobQueued,
		Payload: domain.BroadcastPayload{ChatIDs: []int64{1, 2}, Service: "market-hours"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.Type != string(domain.JobAdminBroadcast) || view.Payload["service"] != "market-hours" {
		t.Fatalf("unexpected view %+v", view)
	}
	ids, ok := view.Payload["chatIds"].([]any)
	if !ok || len(ids) != 2 {
		t.Fatalf("unexpected chat ids %v", view.Payload["chatIds"])
	}
}
