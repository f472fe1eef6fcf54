package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"chart-signal-bot/internal/domain"
	"chart-signal-bot/internal/job"
	"chart-signal-bot/internal/service"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const analyzeTimeout = 90 * time.Second

// Analyze console message types.
type analysisResultMsg struct{ result *service.AnalysisResult }
type analysisErrMsg struct{ err error }

type consoleEntry struct {
	Role    string
	Content string
	Time    time.Time
}

// AnalyzeModel runs the signal pipeline for an operator-typed "SYMBOL TIMEFRAME" request.
type AnalyzeModel struct {
	services Services
	entries  []consoleEntry
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	waiting  bool
	err      error
	width    int
	height   int
	ready    bool
}

// NewAnalyzeModel creates a new analyze console.
func NewAnalyzeModel(svc Services) AnalyzeModel {
	ti := textinput.New()
	ti.Placeholder = "EUR/USD 1h"
	ti.CharLimit = 64
	ti.Width = 40

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(SpinnerColor)

	return AnalyzeModel{
		services: svc,
		input:    ti,
		spinner:  sp,
	}
}

// Init initializes the analyze console.
func (m AnalyzeModel) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles incoming messages.
func (m AnalyzeModel) Update(msg tea.Msg) (AnalyzeModel, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case analysisResultMsg:
		m.entries = append(m.entries, consoleEntry{
			Role:    "result",
			Content: renderResult(msg.result),
			Time:    time.Now(),
		})
		m.waiting = false
		m.err = nil
		m.viewport.SetContent(m.renderEntries())
		m.viewport.GotoBottom()
		return m, nil

	case analysisErrMsg:
		m.waiting = false
		m.err = msg.err
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyEnter && !m.waiting {
			text := strings.TrimSpace(m.input.Value())
			if text == "" {
				break
			}
			symbol, timeframe, err := job.ParseTradeCommand(text)
			if err != nil {
				m.err = errors.New(domain.MsgInvalidTrade)
				return m, nil
			}
			m.entries = append(m.entries, consoleEntry{
				Role:    "request",
				Content: symbol + " " + timeframe,
				Time:    time.Now(),
			})
			m.input.SetValue("")
			m.waiting = true
			m.err = nil
			m.viewport.SetContent(m.renderEntries())
			m.viewport.GotoBottom()
			return m, tea.Batch(
				m.analyzeCmd(symbol, timeframe),
				m.spinner.Tick,
			)
		}

	case spinner.TickMsg:
		if m.waiting {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	if !m.waiting {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// View renders the analyze console.
func (m AnalyzeModel) View() string {
	if m.services.Analyzer == nil {
		return lipgloss.JoinVertical(lipgloss.Left,
			"",
			HeaderStyle.Render("  Analyze"),
			"",
			SubtextStyle.Render("  Signal generation not available. Set OPENAI_API_KEY and TWELVE_DATA_API_KEY to enable."),
		)
	}

	rule := SubtextStyle.Render(strings.Repeat("─", max(m.width-2, 0)))
	sections := []string{HeaderStyle.Render("  Analyze"), rule}

	if !m.ready {
		m.initViewport()
	}
	sections = append(sections, m.viewport.View(), rule)

	if m.waiting {
		sections = append(sections, fmt.Sprintf("  %s Generating signal...", m.spinner.View()))
	} else {
		if m.err != nil {
			sections = append(sections, ErrorStyle.Render("  "+m.err.Error()))
		}
		sections = append(sections, "  "+m.input.View())
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// SetSize updates the model dimensions.
func (m *AnalyzeModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.input.Width = max(w-6, 10)
	m.ready = false
}

// Focus gives focus to the text input.
func (m *AnalyzeModel) Focus() {
	m.input.Focus()
}

// Blur removes focus from the text input.
func (m *AnalyzeModel) Blur() {
	m.input.Blur()
}

// IsWaiting returns whether a request is in flight (for testing).
func (m AnalyzeModel) IsWaiting() bool { return m.waiting }

// EntryCount returns the number of console entries (for testing).
func (m AnalyzeModel) EntryCount() int { return len(m.entries) }

// Err returns the last error shown under the input (for testing).
func (m AnalyzeModel) Err() error { return m.err }

func (m *AnalyzeModel) initViewport() {
	m.viewport = viewport.New(max(m.width-2, 10), max(m.height-6, 3))
	m.viewport.SetContent(m.renderEntries())
	m.ready = true
}

func (m AnalyzeModel) renderEntries() string {
	if len(m.entries) == 0 {
		return SubtextStyle.Render("  Type a pair and timeframe, e.g. EUR/USD 1h, and press enter.")
	}

	var lines []string
	for _, e := range m.entries {
		timestamp := SubtextStyle.Render(e.Time.Format("15:04"))
		switch e.Role {
		case "request":
			lines = append(lines, fmt.Sprintf("  %s  %s %s", timestamp, UserMsgStyle.Render(">"), e.Content))
		case "result":
			lines = append(lines, fmt.Sprintf("  %s  %s", timestamp, ResultMsgStyle.Render("Signal:")))
			for _, line := range strings.Split(e.Content, "\n") {
				lines = append(lines, "         "+line)
			}
		}
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

func renderResult(res *service.AnalysisResult) string {
	if res == nil {
		return ""
	}
	sig := res.Signal
	head := fmt.Sprintf("%s %s  %s  confidence %s",
		res.Symbol,
		res.Timeframe,
		ActionStyle(sig.Action).Render(string(sig.Action)),
		ConfidenceStyle(sig.Confidence).Render(fmt.Sprintf("%d%%", sig.Confidence)),
	)
	lines := []string{
		head,
		fmt.Sprintf("entry %s  take profit %s  stop loss %s", sig.Entry, sig.TakeProfit, sig.StopLoss),
	}
	for _, note := range sig.Notes {
		lines = append(lines, "- "+note)
	}
	return strings.Join(lines, "\n")
}

func (m AnalyzeModel) analyzeCmd(symbol, timeframe string) tea.Cmd {
	req := service.AnalysisRequest{
		ChatID:    m.services.ChatID(),
		Symbol:    symbol,
		Timeframe: timeframe,
		Source:    domain.SourceConsole,
	}
	return func() tea.Msg {
		if m.services.Analyzer == nil {
			return analysisErrMsg{err: fmt.Errorf("analyzer not available")}
		}
		ctx, cancel := context.WithTimeout(context.Background(), analyzeTimeout)
		defer cancel()
		res, err := m.services.Analyzer.Analyze(ctx, req)
		if err != nil {
			if notice, ok := domain.NoticeFor(domain.JobTrade, err); ok {
				return analysisErrMsg{err: errors.New(notice)}
			}
			return analysisErrMsg{err: err}
		}
		return analysisResultMsg{result: res}
	}
}
