// Package ocr recovers a trade request from a chart screenshot.
package ocr

import (
	"regexp"
	"strconv"
	"strings"

	"chart-signal-bot/internal/domain"
)

// KnownQuotes is checked in order against a symbol's suffix; USDT must precede USD.
var KnownQuotes = []string{"USDT", "USDC", "USD", "BTC", "ETH", "EUR", "JPY", "GBP", "AUD", "CAD", "CHF", "NZD"}

const minBaseLen = 3

var (
	rsiConfusion  = regexp.MustCompile(`(?i)R5I|RS1|RSl`)
	macdConfusion = regexp.MustCompile(`(?i)M4CD`)
	noisePattern  = regexp.MustCompile(`[^a-zA-Z0-9.:\-\s]`)

	rsiPattern   = regexp.MustCompile(`(?i)RSI[\s:\-]*([0-9]{1,3}\.?[0-9]*)`)
	macdPattern  = regexp.MustCompile(`(?i)MACD[\s:\-]*?(-?[0-9]{1,3}\.?[0-9]*)`)
	tokenPattern = regexp.MustCompile(`(?i)\b[A-Z]{5,8}\b`)
	pairPattern  = regexp.MustCompile(`(?i)\b([A-Z]{2,5})\s?[/\-]\s?(` + strings.Join(KnownQuotes, "|") + `)\b`)

	misreadOnePattern = regexp.MustCompile(`(?i)\b[I|l]([mhdw])`)
	timeframePattern  = regexp.MustCompile(`(?i)\b(\d{1,3})(mn|[mhdw])\b`)
	// MetaTrader style: H1, M15, D1.
	platformTFPattern = regexp.MustCompile(`\b([MHDW])(\d{1,3})\b`)
)

// ExtractTradeInput parses noisy recognized text. Symbol and timeframe fall
// back to defaults and are flagged as such; blank text is invalid input.
func ExtractTradeInput(text string) (*domain.TradeInput, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domain.InvalidInput("no text recognized")
	}

	input := domain.DefaultTradeInput()

	// Separated pairs such as "BTC/USDT" lose their slash in the noise pass.
	if m := pairPattern.FindStringSubmatch(text); m != nil {
		input.Symbol = strings.ToUpper(m[1]) + "/" + strings.ToUpper(m[2])
		input.SymbolDefaulted = false
	}

	normalized := fixConfusions(text)

	if m := rsiPattern.FindStringSubmatch(normalized); m != nil {
		if v, err := strconv.ParseFloat(strings.TrimSuffix(m[1], "."), 64); err == nil && v >= 0 && v <= 100 {
			input.RSI = &v
		}
	}
	if m := macdPattern.FindStringSubmatch(normalized); m != nil {
		if v, err := strconv.ParseFloat(strings.TrimSuffix(m[1], "."), 64); err == nil {
			input.MACD = &v
		}
	}

	if input.SymbolDefaulted {
		if sym, ok := symbolCandidate(normalized); ok {
			input.Symbol = sym
			input.SymbolDefaulted = false
		}
	}

	repaired := misreadOnePattern.ReplaceAllString(normalized, "1$1")
	if m := timeframePattern.FindStringSubmatch(repaired); m != nil {
		input.Timeframe = strings.ToLower(m[1] + m[2])
		input.TimeframeDefaulted = false
	} else if m := platformTFPattern.FindStringSubmatch(normalized); m != nil {
		input.Timeframe = m[2] + strings.ToLower(m[1])
		input.TimeframeDefaulted = false
	}

	return input, nil
}

func fixConfusions(text string) string {
	text = rsiConfusion.ReplaceAllString(text, "RSI")
	text = macdConfusion.ReplaceAllString(text, "MACD")
	return noisePattern.ReplaceAllString(text, " ")
}

// symbolCandidate looks for a six-letter pair such as EURUSD first, then any
// token ending in a known quote (BTCUSDT), then the first six-letter token.
// Quote matches need a base of at least three letters so words like FRAUD or
// TEETH are not read as FR/AUD or TE/ETH.
func symbolCandidate(text string) (string, bool) {
	tokens := tokenPattern.FindAllString(text, -1)
	for _, tok := range tokens {
		if len(tok) != 6 {
			continue
		}
		if sym, ok := quotedSymbol(tok); ok {
			return sym, true
		}
	}
	for _, tok := range tokens {
		if sym, ok := quotedSymbol(tok); ok {
			return sym, true
		}
	}
	for _, tok := range tokens {
		if len(tok) == 6 {
			return strings.ToUpper(tok), true
		}
	}
	return "", false
}

func quotedSymbol(tok string) (string, bool) {
	sym := NormalizeSymbol(tok)
	base, _, ok := strings.Cut(sym, "/")
	if !ok || len(base) < minBaseLen {
		return "", false
	}
	return sym, true
}

// NormalizeSymbol converts "EURUSD", "eur-usd" or "EUR USD" into BASE/QUOTE.
// Symbols without a known quote suffix are returned uppercased and unsplit.
func NormalizeSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	s = strings.NewReplacer("/", "", "-", "", " ", "", "_", "").Replace(s)
	for _, quote := range KnownQuotes {
		if strings.HasSuffix(s, quote) && len(s) > len(quote) {
			return s[:len(s)-len(quote)] + "/" + quote
		}
	}
	return s
}

// Recognized reports whether anything beyond defaults came out of the text.
func Recognized(in *domain.TradeInput) bool {
	if in == nil {
		return false
	}
	return !in.SymbolDefaulted || !in.TimeframeDefaulted || in.RSI != nil || in.MACD != nil
}
