package signal

import (
	"math"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"chart-signal-bot/internal/domain"
)

func series(closes ...float64) domain.CandleSeries {
	out := make(domain.CandleSeries, len(closes))
	for i, c := range closes {
		d := decimal.NewFromFloat(c)
		out[i] = domain.Candle{Open: d, High: d, Low: d, Close: d}
	}
	return out
}

func rising(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100 + float64(i)
	}
	return out
}

func TestIndicatorsOnRisingSeries(t *testing.T) {
	snap := Indicators(series(rising(40)...))
	if !snap.HasRSI || snap.RSI != 100 {
		t.Fatalf("monotonic rise should give RSI 100, got %+v", snap)
	}
	if !snap.HasMACD || snap.MACD <= 0 {
		t.Fatalf("expected positive MACD, got %+v", snap)
	}
	if !snap.HasBollinger || snap.BollingerUpper <= snap.BollingerLower {
		t.Fatalf("unexpected bands %+v", snap)
	}
}

func TestIndicatorsShortSeries(t *testing.T) {
	snap := Indicators(series(rising(10)...))
	if snap.HasRSI || snap.HasMACD || snap.HasBollinger {
		t.Fatalf("expected nothing computable, got %+v", snap)
	}
	if snap.PromptLines() != "" {
		t.Fatal("expected empty prompt lines")
	}
}

func TestIndicatorsMinimumSeries(t *testing.T) {
	snap := Indicators(series(rising(domain.MinCandles)...))
	if !snap.HasRSI || !snap.HasBollinger {
		t.Fatalf("expected rsi and bands at %d candles, got %+v", domain.MinCandles, snap)
	}
	if snap.HasMACD {
		t.Fatal("macd needs the slow period")
	}
	lines := snap.PromptLines()
	if !strings.HasPrefix(lines, "RSI(14): 100.00") || strings.Contains(lines, "MACD") {
		t.Fatalf("unexpected prompt lines %q", lines)
	}
}

func TestRSIFromAvg(t *testing.T) {
	if rsiFromAvg(1, 1) != 50 {
		t.Fatal("equal gains and losses should give 50")
	}
	if got := rsiFromAvg(0, 1); math.Abs(got) > 1e-9 {
		t.Fatalf("expected 0, got %f", got)
	}
}
