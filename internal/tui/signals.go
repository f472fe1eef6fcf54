package tui

import (
	"context"
	"fmt"
	"strings"

	"chart-signal-bot/internal/domain"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const historyLimit = 100

// Signal explorer message types.
type filteredSignalsMsg []domain.SignalRecord
type filteredSignalsErrMsg struct{ err error }

var (
	symbolOptions = []string{
		"ALL", "EUR/USD", "GBP/USD", "USD/JPY", "GBP/JPY", "XAU/USD", "BTC/USDT", "ETH/USDT",
	}
	timeframeOptions = append([]string{"ALL"}, domain.SupportedTimeframes...)
	actionOptions    = []string{
		"ALL", string(domain.ActionBuy), string(domain.ActionSell), string(domain.ActionNoTrade),
	}
)

// SignalExplorerModel is the Bubble Tea model for the signal history screen.
type SignalExplorerModel struct {
	services     Services
	signals      []domain.SignalRecord
	symbolIdx    int
	timeframeIdx int
	actionIdx    int
	scrollOffset int
	loading      bool
	err          error
	width        int
	height       int
}

// NewSignalExplorerModel creates a new signal explorer model.
func NewSignalExplorerModel(svc Services) SignalExplorerModel {
	return SignalExplorerModel{
		services: svc,
		loading:  true,
	}
}

// Init fires initial signal fetch.
func (m SignalExplorerModel) Init() tea.Cmd {
	return m.fetchSignalsCmd()
}

// Update handles incoming messages.
func (m SignalExplorerModel) Update(msg tea.Msg) (SignalExplorerModel, tea.Cmd) {
	switch msg := msg.(type) {
	case filteredSignalsMsg:
		m.signals = []domain.SignalRecord(msg)
		m.loading = false
		m.scrollOffset = 0
		m.err = nil
		return m, nil

	case filteredSignalsErrMsg:
		m.err = msg.err
		m.loading = false
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, DefaultKeyMap.FilterSymbol):
			m.symbolIdx = (m.symbolIdx + 1) % len(symbolOptions)
			m.loading = true
			return m, m.fetchSignalsCmd()

		case key.Matches(msg, DefaultKeyMap.FilterTimeframe):
			m.timeframeIdx = (m.timeframeIdx + 1) % len(timeframeOptions)
			m.loading = true
			return m, m.fetchSignalsCmd()

		case key.Matches(msg, DefaultKeyMap.FilterAction):
			m.actionIdx = (m.actionIdx + 1) % len(actionOptions)
			m.loading = true
			return m, m.fetchSignalsCmd()

		case key.Matches(msg, DefaultKeyMap.Refresh):
			m.loading = true
			return m, m.fetchSignalsCmd()

		case msg.String() == "j" || msg.String() == "down":
			if m.scrollOffset < len(m.signals)-m.visibleRows() {
				m.scrollOffset++
			}
			return m, nil

		case msg.String() == "k" || msg.String() == "up":
			if m.scrollOffset > 0 {
				m.scrollOffset--
			}
			return m, nil
		}
	}

	return m, nil
}

// View renders the signal explorer.
func (m SignalExplorerModel) View() string {
	sections := []string{
		HeaderStyle.Render("  Signal History"),
		"",
		m.renderFilters(),
		SubtextStyle.Render(strings.Repeat("─", max(m.width-2, 0))),
	}

	if m.loading {
		sections = append(sections, SubtextStyle.Render("  Loading..."))
		return strings.Join(sections, "\n")
	}

	if m.err != nil {
		sections = append(sections, ErrorStyle.Render(fmt.Sprintf("  Error: %v", m.err)))
		return strings.Join(sections, "\n")
	}

	if len(m.signals) == 0 {
		sections = append(sections, SubtextStyle.Render("  No signals match the current filters"))
		return strings.Join(sections, "\n")
	}

	sections = append(sections, SubtextStyle.Render(
		fmt.Sprintf("  %-5s %-9s %-4s %-8s %-4s  %s",
			"ID", "Symbol", "TF", "Action", "Conf", "Levels"),
	))

	maxVisible := m.visibleRows()
	end := min(m.scrollOffset+maxVisible, len(m.signals))
	for i := m.scrollOffset; i < end; i++ {
		sections = append(sections, "  "+FormatRecord(m.signals[i]))
	}

	if len(m.signals) > maxVisible {
		sections = append(sections, SubtextStyle.Render(
			fmt.Sprintf("  Showing %d-%d of %d (j/k to scroll)", m.scrollOffset+1, end, len(m.signals)),
		))
	}

	sections = append(sections, "")
	sections = append(sections, SubtextStyle.Render("  [s] symbol  [t] timeframe  [a] action  [R] refresh  [j/k] scroll"))

	return strings.Join(sections, "\n")
}

// SetSize updates the model dimensions.
func (m *SignalExplorerModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// FilterState returns current filter indices (for testing).
func (m SignalExplorerModel) FilterState() (symbolIdx, timeframeIdx, actionIdx int) {
	return m.symbolIdx, m.timeframeIdx, m.actionIdx
}

// SignalCount returns the number of loaded signals (for testing).
func (m SignalExplorerModel) SignalCount() int { return len(m.signals) }

func (m SignalExplorerModel) renderFilters() string {
	symbolChip := m.renderChip("Symbol", symbolOptions, m.symbolIdx)
	tfChip := m.renderChip("TF", timeframeOptions, m.timeframeIdx)
	actionChip := m.renderChip("Action", actionOptions, m.actionIdx)
	return "  " + lipgloss.JoinVertical(lipgloss.Left, symbolChip, lipgloss.JoinHorizontal(lipgloss.Top, tfChip, "  ", actionChip))
}

func (m SignalExplorerModel) renderChip(label string, options []string, active int) string {
	parts := []string{SubtextStyle.Render(label + ": ")}
	for i, opt := range options {
		if i == active {
			parts = append(parts, ActiveTabStyle.Render(opt))
		} else {
			parts = append(parts, SubtextStyle.Render(opt))
		}
		parts = append(parts, " ")
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m SignalExplorerModel) buildFilter() domain.SignalFilter {
	filter := domain.SignalFilter{Limit: historyLimit}
	if m.symbolIdx > 0 && m.symbolIdx < len(symbolOptions) {
		filter.Symbol = symbolOptions[m.symbolIdx]
	}
	if m.timeframeIdx > 0 && m.timeframeIdx < len(timeframeOptions) {
		filter.Timeframe = timeframeOptions[m.timeframeIdx]
	}
	if m.actionIdx > 0 && m.actionIdx < len(actionOptions) {
		filter.Action = domain.Action(actionOptions[m.actionIdx])
	}
	return filter
}

func (m SignalExplorerModel) fetchSignalsCmd() tea.Cmd {
	filter := m.buildFilter()
	return func() tea.Msg {
		if m.services.Signals == nil {
			return filteredSignalsErrMsg{err: fmt.Errorf("signal history not available")}
		}
		records, err := m.services.Signals.ListHistory(context.Background(), filter)
		if err != nil {
			return filteredSignalsErrMsg{err: err}
		}
		return filteredSignalsMsg(records)
	}
}

func (m SignalExplorerModel) visibleRows() int {
	// header, filters, table header, help footer
	available := m.height - 11
	if available < 5 {
		return 5
	}
	return available
}
