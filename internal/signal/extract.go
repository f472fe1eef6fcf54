// Package signal turns free-form generator output into a verified advisory block.
//
// Extraction and validation are deliberately independent: a block that matched
// the extraction pattern is re-checked field by field before it may reach a user.
package signal

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"chart-signal-bot/internal/domain"
)

const maxNoteLines = 3

// em tolerates markdown emphasis around a label, e.g. **Entry:** or __Entry__:.
const em = `[*_]{0,2}`

var (
	blockPattern = regexp.MustCompile(
		`(?i)` + em + `Action` + em + `:` + em + `\s*` + em + `(BUY|SELL|NO TRADE)` +
			`[\s\S]*?Confidence` + em + `:` + em + `\s*([0-9]{1,3})` +
			`[\s\S]*?Notes` + em + `:[\s\S]*`,
	)

	actionPattern     = regexp.MustCompile(`(?i)` + em + `Action` + em + `:` + em + `\s*` + em + `(BUY|SELL|NO TRADE)\b`)
	entryPattern      = labelPattern(`Entry`)
	takeProfitPattern = labelPattern(`Take\s+Profit`)
	stopLossPattern   = labelPattern(`Stop\s+Loss`)
	confidencePattern = regexp.MustCompile(`(?i)` + em + `Confidence` + em + `:` + em + `\s*([0-9]{1,3})\b`)
	notesPattern      = regexp.MustCompile(`(?i)` + em + `Notes` + em + `:` + em + `\s*[-•]\s*\S`)

	fieldLinePattern = regexp.MustCompile(`(?i)^\s*` + em + `(Action|Entry|Take\s+Profit|Stop\s+Loss|Confidence|Notes)` + em + `:` + em + `\s*(.*)$`)
)

func labelPattern(label string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)` + em + label + em + `:`)
}

// Extract finds the canonical block inside raw generator text. The boolean is
// false when no block is present; that is an expected outcome, not an error.
func Extract(raw string) (string, bool) {
	if strings.TrimSpace(raw) == "" {
		return "", false
	}
	block := blockPattern.FindString(raw)
	if block == "" {
		return "", false
	}
	return strings.TrimSpace(block), true
}

// Validate re-checks an extracted block: all six labels present and an integer
// confidence within [0,100].
func Validate(block string) bool {
	if strings.TrimSpace(block) == "" {
		return false
	}
	if !actionPattern.MatchString(block) ||
		!entryPattern.MatchString(block) ||
		!takeProfitPattern.MatchString(block) ||
		!stopLossPattern.MatchString(block) ||
		!notesPattern.MatchString(block) {
		return false
	}
	_, ok := confidence(block)
	return ok
}

func confidence(block string) (int, bool) {
	m := confidencePattern.FindStringSubmatch(block)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 0 || n > 100 {
		return 0, false
	}
	return n, true
}

// Parse returns the structured view of a validated block.
func Parse(block string) (domain.Signal, error) {
	if !Validate(block) {
		return domain.Signal{}, fmt.Errorf("%w: block failed validation", domain.ErrSignalRejected)
	}

	var sig domain.Signal
	inNotes := false
	for _, line := range strings.Split(block, "\n") {
		if m := fieldLinePattern.FindStringSubmatch(line); m != nil {
			inNotes = false
			label := strings.ToLower(strings.Join(strings.Fields(m[1]), " "))
			value := strings.TrimSpace(strings.Trim(m[2], "*_ "))
			switch label {
			case "action":
				action, _ := domain.ParseAction(value)
				sig.Action = action
			case "entry":
				sig.Entry = value
			case "take profit":
				sig.TakeProfit = value
			case "stop loss":
				sig.StopLoss = value
			case "notes":
				inNotes = true
				if note := noteText(value); note != "" {
					sig.Notes = append(sig.Notes, note)
				}
			}
			continue
		}
		if inNotes && len(sig.Notes) < maxNoteLines {
			if note := noteText(line); note != "" {
				sig.Notes = append(sig.Notes, note)
			}
		}
	}
	if len(sig.Notes) > maxNoteLines {
		sig.Notes = sig.Notes[:maxNoteLines]
	}

	sig.Confidence, _ = confidence(block)
	if sig.Action == "" {
		return domain.Signal{}, fmt.Errorf("%w: unknown action", domain.ErrSignalRejected)
	}
	return sig, nil
}

func noteText(line string) string {
	line = strings.TrimSpace(line)
	line = strings.TrimLeft(line, "-•")
	return strings.TrimSpace(line)
}
