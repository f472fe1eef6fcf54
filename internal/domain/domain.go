package domain

import (
	"strings"
	"time"
)

type Action string

const (
	ActionBuy     Action = "BUY"
	ActionSell    Action = "SELL"
	ActionNoTrade Action = "NO TRADE"
)

func ParseAction(s string) (Action, bool) {
	switch Action(strings.ToUpper(strings.Join(strings.Fields(s), " "))) {
	case ActionBuy:
		return ActionBuy, true
	case ActionSell:
		return ActionSell, true
	case ActionNoTrade:
		return ActionNoTrade, true
	}
	return "", false
}

// Signal is the structured view of an accepted advisory block.
type Signal struct {
	Action     Action   `json:"action"`
	Entry      string   `json:"entry"`
	TakeProfit string   `json:"take_profit"`
	StopLoss   string   `json:"stop_loss"`
	Confidence int      `json:"confidence"`
	Notes      []string `json:"notes"`
}

const (
	SourceText    = "text"
	SourcePhoto   = "photo"
	SourceMCP     = "mcp"
	SourceConsole = "console"
)

type SignalRecord struct {
	ID        int64     `json:"id"`
	ChatID    int64     `json:"chat_id"`
	Symbol    string    `json:"symbol"`
	Timeframe string    `json:"timeframe"`
	Source    string    `json:"source"`
	Signal    Signal    `json:"signal"`
	Block     string    `json:"block"`
	CreatedAt time.Time `json:"created_at"`
}

type SignalFilter struct {
	Symbol    string
	Timeframe string
	Action    Action
	Limit     int
}

const (
	DefaultSymbol    = "EUR/USD"
	DefaultTimeframe = "1h"
)

// TradeInput is what could be recovered from a chart screenshot.
type TradeInput struct {
	Symbol    string   `json:"symbol"`
	Timeframe string   `json:"timeframe"`
	RSI       *float64 `json:"rsi,omitempty"`
	MACD      *float64 `json:"macd,omitempty"`

	SymbolDefaulted    bool `json:"symbol_defaulted,omitempty"`
	TimeframeDefaulted bool `json:"timeframe_defaulted,omitempty"`
}

func DefaultTradeInput() *TradeInput {
	return &TradeInput{
		Symbol:             DefaultSymbol,
		Timeframe:          DefaultTimeframe,
		SymbolDefaulted:    true,
		TimeframeDefaulted: true,
	}
}

// Subscribers mirrors the persisted storage file shape.
type Subscribers struct {
	Subscribers []int64 `json:"subscribers"`
}
