package mcp

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"chart-signal-bot/internal/domain"
	"chart-signal-bot/internal/job"
	"chart-signal-bot/internal/ocr"
	"chart-signal-bot/internal/queue"
)

const (
	defaultSignalLimit = 50
	maxSignalLimit     = 200
)

type signalAnalyzeInput struct {
	Symbol    string `json:"symbol" jsonschema:"pair symbol (e.g. EUR/USD, BTCUSDT)"`
	Timeframe string `json:"timeframe" jsonschema:"timeframe such as 15m, 1h, 4h, 1d"`
}

type signalAnalyzeOutput struct {
	Symbol    string        `json:"symbol"`
	Timeframe string        `json:"timeframe"`
	Candles   int           `json:"candles"`
	Signal    domain.Signal `json:"signal"`
	Message   string        `json:"message"`
	RawBlock  string        `json:"raw_block"`
}

type tradeInputExtractInput struct {
	Text string `json:"text" jsonschema:"text recognized from a chart screenshot"`
}

type tradeInputExtractOutput struct {
	Input      *domain.TradeInput `json:"input"`
	Recognized bool               `json:"recognized"`
}

type jobsEnqueueTradeInput struct {
	ChatID int64  `json:"chat_id" jsonschema:"telegram chat that receives the result"`
	Text   string `json:"text" jsonschema:"trade command: SYMBOL TIMEFRAME"`
}

type jobsEnqueueTradeOutput struct {
	JobID     string `json:"job_id"`
	Symbol    string `json:"symbol"`
	Timeframe string `json:"timeframe"`
}

type jobsGetInput struct {
	ID string `json:"id" jsonschema:"job id returned by jobs_enqueue_trade"`
}

type jobsGetOutput struct {
	Job *jobView `json:"job"`
}

type queueStatsInput struct{}

type queueStatsOutput struct {
	Stats queue.Stats `json:"stats"`
}

type signalsListInput struct {
	Symbol    string `json:"symbol,omitempty" jsonschema:"optional pair symbol"`
	Timeframe string `json:"timeframe,omitempty" jsonschema:"optional timeframe"`
	Action    string `json:"action,omitempty" jsonschema:"optional action: BUY, SELL, NO TRADE"`
	Limit     int    `json:"limit,omitempty" jsonschema:"number of signals to return, max 200"`
}

type signalsListOutput struct {
	Signals []domain.SignalRecord `json:"signals"`
}

func normalizeSymbol(symbol string) (string, error) {
	if strings.TrimSpace(symbol) == "" {
		return "", fmt.Errorf("symbol is required")
	}
	normalized := ocr.NormalizeSymbol(symbol)
	if normalized == "" {
		return "", fmt.Errorf("unsupported symbol: %s", symbol)
	}
	return normalized, nil
}

func normalizeTimeframe(timeframe string) (string, error) {
	timeframe = domain.NormalizeTimeframe(timeframe)
	if timeframe == "" {
		return "", fmt.Errorf("timeframe is required")
	}
	if !domain.ValidTimeframe(timeframe) {
		return "", fmt.Errorf("unsupported timeframe: %s", timeframe)
	}
	return timeframe, nil
}

func normalizeSignalLimit(limit int) int {
	if limit <= 0 {
		return defaultSignalLimit
	}
	if limit > maxSignalLimit {
		return maxSignalLimit
	}
	return limit
}

func normalizeSignalFilter(in signalsListInput) (domain.SignalFilter, error) {
	filter := domain.SignalFilter{Limit: normalizeSignalLimit(in.Limit)}

	if strings.TrimSpace(in.Symbol) != "" {
		symbol, err := normalizeSymbol(in.Symbol)
		if err != nil {
			return domain.SignalFilter{}, err
		}
		filter.Symbol = symbol
	}

	if strings.TrimSpace(in.Timeframe) != "" {
		timeframe, err := normalizeTimeframe(in.Timeframe)
		if err != nil {
			return domain.SignalFilter{}, err
		}
		filter.Timeframe = timeframe
	}

	if strings.TrimSpace(in.Action) != "" {
		action, ok := domain.ParseAction(in.Action)
		if !ok {
			return domain.SignalFilter{}, fmt.Errorf("unsupported action: %s", in.Action)
		}
		filter.Action = action
	}

	return filter, nil
}

func normalizeTradeCommand(in jobsEnqueueTradeInput) (domain.TradePayload, string, string, error) {
	if in.ChatID == 0 {
		return domain.TradePayload{}, "", "", fmt.Errorf("chat_id is required")
	}
	symbol, timeframe, err := job.ParseTradeCommand(in.Text)
	if err != nil {
		return domain.TradePayload{}, "", "", err
	}
	return domain.TradePayload{ChatID: in.ChatID, Text: symbol + " " + timeframe}, symbol, timeframe, nil
}

type jobView struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	Status      string         `json:"status"`
	Attempts    int            `json:"attempts"`
	MaxAttempts int            `json:"max_attempts"`
	EnqueuedAt  time.Time      `json:"enqueued_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	LastError   string         `json:"last_error,omitempty"`
	Payload     map[string]any `json:"payload,omitempty"`
}

func newJobView(j *domain.Job) (*jobView, error) {
	view := &jobView{
		ID:          j.ID,
		Type:        string(j.Type),
		Status:      string(j.Status),
		Attempts:    j.Attempts,
		MaxAttempts: j.MaxAttempts,
		EnqueuedAt:  j.EnqueuedAt,
		UpdatedAt:   j.UpdatedAt,
		LastError:   j.LastError,
	}
	if j.Payload == nil {
		return view, nil
	}
	raw, err := json.Marshal(j.Payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload of job %s: %w", j.ID, err)
	}
	if err := json.Unmarshal(raw, &view.Payload); err != nil {
		return nil, fmt.Errorf("decode payload of job %s: %w", j.ID, err)
	}
	return view, nil
}
