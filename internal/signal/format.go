package signal

import (
	"fmt"
	"regexp"
	"strings"
)

var labelLinePattern = regexp.MustCompile(`(?im)^([ \t]*)` + em + `(Action|Entry|Take\s+Profit|Stop\s+Loss|Confidence|Notes)` + em + `:` + em)

// Format renders an accepted block for Telegram Markdown: a pair and timeframe
// header followed by the block with each field label in bold.
func Format(block, symbol, timeframe string) string {
	body := labelLinePattern.ReplaceAllStringFunc(strings.TrimSpace(block), func(m string) string {
		sub := labelLinePattern.FindStringSubmatch(m)
		label := strings.Join(strings.Fields(sub[2]), " ")
		return sub[1] + "*" + canonicalLabel(label) + ":*"
	})
	return Header(symbol, timeframe) + "\n\n" + body
}

// Header is the first line of every delivered signal.
func Header(symbol, timeframe string) string {
	return fmt.Sprintf("📊 *%s* | *%s*", symbol, timeframe)
}

func canonicalLabel(label string) string {
	switch strings.ToLower(label) {
	case "action":
		return "Action"
	case "entry":
		return "Entry"
	case "take profit":
		return "Take Profit"
	case "stop loss":
		return "Stop Loss"
	case "confidence":
		return "Confidence"
	case "notes":
		return "Notes"
	}
	return label
}

// Accept runs both stages on raw generator output and returns the formatted
// message. The boolean is false when either stage rejects the text.
func Accept(raw, symbol, timeframe string) (string, bool) {
	block, ok := Extract(raw)
	if !ok || !Validate(block) {
		return "", false
	}
	return Format(block, symbol, timeframe), true
}
