package domain

import "github.com/shopspring/decimal"

// MinCandles is the smallest series a signal may be generated from.
const MinCandles = 20

type Candle struct {
	Datetime string          `json:"datetime"`
	Open     decimal.Decimal `json:"open"`
	High     decimal.Decimal `json:"high"`
	Low      decimal.Decimal `json:"low"`
	Close    decimal.Decimal `json:"close"`
}

// CandleSeries is ordered oldest to newest unless stated otherwise.
type CandleSeries []Candle

func (s CandleSeries) Reversed() CandleSeries {
	out := make(CandleSeries, len(s))
	for i := range s {
		out[len(s)-1-i] = s[i]
	}
	return out
}

func (s CandleSeries) Closes() []float64 {
	out := make([]float64, len(s))
	for i := range s {
		out[i] = s[i].Close.InexactFloat64()
	}
	return out
}
