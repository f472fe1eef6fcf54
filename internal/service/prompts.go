package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"chart-signal-bot/internal/domain"
	"chart-signal-bot/internal/signal"
)

const DefaultSystemPrompt = `You are a probabilistic institutional technical trader.

You analyze ONLY the provided OHLC candle data, symbol, and timeframe.

You must determine:
- Market structure (trend or range)
- Break of structure (if any)
- Momentum strength
- Volatility behavior

If directional probability ≥ 55%, provide a trade idea.
If < 55%, return NO TRADE.

Confidence must reflect structural clarity.
Confidence must never be 0 unless data is invalid.

OUTPUT FORMAT (NO DEVIATION):

Action: BUY | SELL | NO TRADE
Entry: <clear structural condition>
Take Profit: <structure-based target>
Stop Loss: <clear invalidation level>
Confidence: <0–100>
Notes:
- <short reasoning line 1>
- <short reasoning line 2>
- <short reasoning line 3>

Rules:
- Notes must be maximum 3 short lines
- No greetings
- No markdown
- No extra text outside format`

const DefaultUserTemplate = `SYMBOL: {{.Symbol}}
TIMEFRAME: {{.Timeframe}}
TOTAL CANDLES: {{.Count}}
{{- if .Indicators}}

INDICATORS (latest candle):
{{.Indicators}}
{{- end}}

CANDLE DATA (oldest to newest):
{{.Candles}}

Perform full structural technical analysis.`

// PromptData is the data available to the user prompt template.
type PromptData struct {
	Symbol     string
	Timeframe  string
	Count      int
	Candles    string
	Indicators string
}

type PromptBuilder struct {
	system string
	user   *template.Template
}

// NewPromptBuilder parses the user template. Empty arguments select the
// built-in prompts.
func NewPromptBuilder(system, userTemplate string) (*PromptBuilder, error) {
	if strings.TrimSpace(system) == "" {
		system = DefaultSystemPrompt
	}
	if strings.TrimSpace(userTemplate) == "" {
		userTemplate = DefaultUserTemplate
	}
	tmpl, err := template.New("user").Option("missingkey=error").Parse(userTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse user prompt template: %w", err)
	}
	return &PromptBuilder{system: strings.TrimSpace(system), user: tmpl}, nil
}

func DefaultPromptBuilder() *PromptBuilder {
	b, err := NewPromptBuilder("", "")
	if err != nil {
		panic(err)
	}
	return b
}

type promptCandle struct {
	Datetime string  `json:"datetime"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
}

// Build renders both prompts for candles ordered oldest to newest.
func (b *PromptBuilder) Build(symbol, timeframe string, candles domain.CandleSeries) (string, string, error) {
	rows := make([]promptCandle, len(candles))
	for i, c := range candles {
		rows[i] = promptCandle{
			Datetime: c.Datetime,
			Open:     c.Open.InexactFloat64(),
			High:     c.High.InexactFloat64(),
			Low:      c.Low.InexactFloat64(),
			Close:    c.Close.InexactFloat64(),
		}
	}
	raw, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("encode candles: %w", err)
	}

	var buf bytes.Buffer
	err = b.user.Execute(&buf, PromptData{
		Symbol:     symbol,
		Timeframe:  timeframe,
		Count:      len(candles),
		Candles:    string(raw),
		Indicators: signal.Indicators(candles).PromptLines(),
	})
	if err != nil {
		return "", "", fmt.Errorf("render user prompt: %w", err)
	}
	return b.system, strings.TrimSpace(buf.String()), nil
}
