package signal

import (
	"fmt"
	"math"
	"strings"

	"chart-signal-bot/internal/domain"
)

const (
	rsiPeriod        = 14
	macdFastPeriod   = 12
	macdSlowPeriod   = 26
	macdSignalPeriod = 9
	bollingerPeriod  = 20
	bollingerStdDevs = 2.0
)

// Snapshot is the latest-candle indicator state fed to the generator prompt.
// Fields whose Has flag is false could not be computed from the series.
type Snapshot struct {
	RSI    float64
	HasRSI bool

	MACD       float64
	MACDSignal float64
	MACDHist   float64
	HasMACD    bool

	BollingerUpper float64
	BollingerMid   float64
	BollingerLower float64
	HasBollinger   bool
}

// Indicators computes a snapshot from candles ordered oldest to newest.
func Indicators(candles domain.CandleSeries) Snapshot {
	closes := candles.Closes()
	var snap Snapshot

	if series := rsiSeries(closes, rsiPeriod); len(series) > 0 {
		if curr := series[len(series)-1]; !math.IsNaN(curr) {
			snap.RSI, snap.HasRSI = curr, true
		}
	}

	if len(closes) >= macdSlowPeriod {
		macdLine, signalLine := macdSeries(closes, macdFastPeriod, macdSlowPeriod, macdSignalPeriod)
		last := len(macdLine) - 1
		snap.MACD = macdLine[last]
		snap.MACDSignal = signalLine[last]
		snap.MACDHist = macdLine[last] - signalLine[last]
		snap.HasMACD = true
	}

	if len(closes) >= bollingerPeriod {
		mean, std := meanStd(closes[len(closes)-bollingerPeriod:])
		snap.BollingerMid = mean
		snap.BollingerUpper = mean + bollingerStdDevs*std
		snap.BollingerLower = mean - bollingerStdDevs*std
		snap.HasBollinger = mean != 0
	}

	return snap
}

// PromptLines renders the computable indicators, one per line.
func (s Snapshot) PromptLines() string {
	var b strings.Builder
	if s.HasRSI {
		fmt.Fprintf(&b, "RSI(%d): %.2f\n", rsiPeriod, s.RSI)
	}
	if s.HasMACD {
		fmt.Fprintf(&b, "MACD(%d,%d,%d): line %.5f signal %.5f hist %.5f\n",
			macdFastPeriod, macdSlowPeriod, macdSignalPeriod, s.MACD, s.MACDSignal, s.MACDHist)
	}
	if s.HasBollinger {
		fmt.Fprintf(&b, "Bollinger(%d,%.0f): upper %.5f mid %.5f lower %.5f\n",
			bollingerPeriod, bollingerStdDevs, s.BollingerUpper, s.BollingerMid, s.BollingerLower)
	}
	return strings.TrimRight(b.String(), "\n")
}

func rsiSeries(closes []float64, period int) []float64 {
	if len(closes) <= period {
		return nil
	}
	series := make([]float64, len(closes))
	for i := range series {
		series[i] = math.NaN()
	}

	var gainSum float64
	var lossSum float64
	for i := 1; i <= period; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gainSum += delta
		} else {
			lossSum -= delta
		}
	}
	avgGain := gainSum / float64(period)
	avgLoss := lossSum / float64(period)
	series[period] = rsiFromAvg(avgGain, avgLoss)

	for i := period + 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		avgGain = (avgGain*float64(period-1) + math.Max(delta, 0)) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + math.Max(-delta, 0)) / float64(period)
		series[i] = rsiFromAvg(avgGain, avgLoss)
	}

	return series
}

func rsiFromAvg(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

func macdSeries(values []float64, fast, slow, signal int) ([]float64, []float64) {
	fastEMA := emaSeries(values, fast)
	slowEMA := emaSeries(values, slow)
	macdLine := make([]float64, len(values))
	for i := range values {
		macdLine[i] = fastEMA[i] - slowEMA[i]
	}
	return macdLine, emaSeries(macdLine, signal)
}

func emaSeries(values []float64, period int) []float64 {
	if len(values) == 0 {
		return nil
	}
	alpha := 2.0 / (float64(period) + 1.0)
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

func meanStd(values []float64) (mean, std float64) {
	if len(values) == 0 {
		return 0, 0
	}
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	if len(values) == 1 {
		return mean, 0
	}
	for _, v := range values {
		d := v - mean
		std += d * d
	}
	return mean, math.Sqrt(std / float64(len(values)))
}
