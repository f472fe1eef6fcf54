package tui

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"chart-signal-bot/internal/domain"
	"chart-signal-bot/internal/service"

	tea "github.com/charmbracelet/bubbletea"
)

func typeInto(m AnalyzeModel, text string) AnalyzeModel {
	for _, r := range text {
		m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return m
}

func TestAnalyzeModelInitialState(t *testing.T) {
	m := NewAnalyzeModel(testServices())
	if m.IsWaiting() || m.EntryCount() != 0 {
		t.Fatal("expected idle console with no entries")
	}
}

func TestAnalyzeModelSubmitsNormalizedRequest(t *testing.T) {
	analyzer := &stubAnalyzer{result: &service.AnalysisResult{
		Symbol:    "EUR/USD",
		Timeframe: "1h",
		Signal:    domain.Signal{Action: domain.ActionSell, Entry: "1.0850", Confidence: 64, Notes: []string{"RSI overbought"}},
	}}
	svc := testServices()
	svc.Analyzer = analyzer
	m := NewAnalyzeModel(svc)
	m.SetSize(120, 40)
	m.Focus()

	m = typeInto(m, "eurusd 1H")
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if !m.IsWaiting() || m.EntryCount() != 1 {
		t.Fatalf("expected pending request, waiting=%v entries=%d", m.IsWaiting(), m.EntryCount())
	}
	if cmd == nil {
		t.Fatal("expected analyze command")
	}

	msg := m.analyzeCmd("EUR/USD", "1h")()
	if analyzer.lastReq.Symbol != "EUR/USD" || analyzer.lastReq.Timeframe != "1h" {
		t.Fatalf("unexpected request %+v", analyzer.lastReq)
	}
	if analyzer.lastReq.Source != domain.SourceConsole || analyzer.lastReq.ChatID != svc.ChatID() {
		t.Fatalf("expected console source and synthetic chat id, got %+v", analyzer.lastReq)
	}

	m, _ = m.Update(msg)
	if m.IsWaiting() || m.EntryCount() != 2 {
		t.Fatalf("expected result entry, waiting=%v entries=%d", m.IsWaiting(), m.EntryCount())
	}
	if rendered := m.renderEntries(); !strings.Contains(rendered, "RSI overbought") {
		t.Fatalf("expected notes in console:\n%s", rendered)
	}
}

func TestAnalyzeModelRejectsInvalidCommand(t *testing.T) {
	m := NewAnalyzeModel(testServices())
	m.SetSize(120, 40)
	m.Focus()

	m = typeInto(m, "bitcoin")
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil || m.IsWaiting() {
		t.Fatal("invalid input must not start an analysis")
	}
	if m.Err() == nil || m.Err().Error() != domain.MsgInvalidTrade {
		t.Fatalf("expected invalid trade notice, got %v", m.Err())
	}
}

func TestAnalyzeModelEmptyInputIgnored(t *testing.T) {
	m := NewAnalyzeModel(testServices())
	m.SetSize(120, 40)
	m.Focus()

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if m.IsWaiting() || m.EntryCount() != 0 || m.Err() != nil {
		t.Fatal("empty input should be ignored")
	}
}

func TestAnalyzeModelMapsErrorsToNotices(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("fetch: %w", domain.ErrInsufficientData), domain.MsgInsufficientData},
		{domain.Transient(errors.New("dial tcp 10.0.0.1:443")), domain.MsgServiceUnavailable},
	}
	for _, tc := range cases {
		svc := testServices()
		svc.Analyzer = &stubAnalyzer{err: tc.err}
		m := NewAnalyzeModel(svc)

		m, _ = m.Update(m.analyzeCmd("EUR/USD", "1h")())
		if m.Err() == nil || m.Err().Error() != tc.want {
			t.Fatalf("expected %q, got %v", tc.want, m.Err())
		}
	}
}

func TestAnalyzeModelAnalyzerDisabled(t *testing.T) {
	m := NewAnalyzeModel(Services{})
	m.SetSize(120, 40)
	if !strings.Contains(m.View(), "not available") {
		t.Fatal("expected disabled notice")
	}
}
