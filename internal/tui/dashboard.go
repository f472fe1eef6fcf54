package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"chart-signal-bot/internal/domain"
	"chart-signal-bot/internal/queue"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const recentSignalLimit = 10

// Dashboard message types.
type queueStatsMsg queue.Stats
type queueStatsErrMsg struct{ err error }
type recentSignalsMsg []domain.SignalRecord
type recentSignalsErrMsg struct{ err error }
type subscribersMsg int
type dashTickMsg time.Time

// DashboardModel is the Bubble Tea model for the live operations screen.
type DashboardModel struct {
	services    Services
	stats       *queue.Stats
	signals     []domain.SignalRecord
	subscribers int
	loading     bool
	err         error
	width       int
	height      int
}

// NewDashboardModel creates a new dashboard model.
func NewDashboardModel(svc Services) DashboardModel {
	return DashboardModel{
		services:    svc,
		loading:     true,
		subscribers: -1,
	}
}

// Init fires initial data fetch commands.
func (m DashboardModel) Init() tea.Cmd {
	return tea.Batch(
		m.fetchStatsCmd(),
		m.fetchSignalsCmd(),
		m.fetchSubscribersCmd(),
		m.tickCmd(),
	)
}

// Update handles incoming messages.
func (m DashboardModel) Update(msg tea.Msg) (DashboardModel, tea.Cmd) {
	switch msg := msg.(type) {
	case queueStatsMsg:
		stats := queue.Stats(msg)
		m.stats = &stats
		m.loading = false
		m.err = nil
		return m, nil

	case queueStatsErrMsg:
		m.err = msg.err
		m.loading = false
		return m, nil

	case recentSignalsMsg:
		m.signals = []domain.SignalRecord(msg)
		return m, nil

	case recentSignalsErrMsg:
		// History is optional; queue health matters more.
		return m, nil

	case subscribersMsg:
		m.subscribers = int(msg)
		return m, nil

	case dashTickMsg:
		return m, tea.Batch(
			m.fetchStatsCmd(),
			m.fetchSignalsCmd(),
			m.fetchSubscribersCmd(),
			m.tickCmd(),
		)

	case tea.KeyMsg:
		if msg.String() == "R" {
			return m, tea.Batch(m.fetchStatsCmd(), m.fetchSignalsCmd(), m.fetchSubscribersCmd())
		}
	}

	return m, nil
}

// View renders the dashboard.
func (m DashboardModel) View() string {
	if m.loading && m.stats == nil {
		return SubtextStyle.Render("Loading queue stats...")
	}
	if m.err != nil && m.stats == nil {
		return ErrorStyle.Render(fmt.Sprintf("Error: %v", m.err))
	}

	queueWidth := m.width*2/3 - 2
	if queueWidth < 40 {
		queueWidth = 40
	}
	statusWidth := m.width - queueWidth - 4
	if statusWidth < 20 {
		statusWidth = 20
	}

	queueBox := BorderStyle.Width(queueWidth).Render(m.renderQueue(queueWidth - 20))
	statusBox := BorderStyle.Width(statusWidth).Render(m.renderStatus())
	topRow := lipgloss.JoinHorizontal(lipgloss.Top, queueBox, statusBox)

	signalBox := BorderStyle.Width(max(m.width-2, 40)).Render(m.renderSignals())

	return lipgloss.JoinVertical(lipgloss.Left, topRow, signalBox)
}

// SetSize updates the model dimensions.
func (m *DashboardModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// Stats returns the last queue snapshot (for testing).
func (m DashboardModel) Stats() *queue.Stats { return m.stats }

// Signals returns the recent signals (for testing).
func (m DashboardModel) Signals() []domain.SignalRecord { return m.signals }

func (m DashboardModel) renderQueue(barWidth int) string {
	s := m.stats
	lines := []string{
		HeaderStyle.Render("  Queue " + s.Name),
		"  " + RenderDepthBar("ready", s.Ready, depthScale(s), barWidth, QueueReadyStyle),
		"  " + RenderDepthBar("processing", s.Processing, depthScale(s), barWidth, QueueProcessingStyle),
		"  " + RenderDepthBar("delayed", s.Delayed, depthScale(s), barWidth, QueueDelayedStyle),
		SubtextStyle.Render(fmt.Sprintf("  enqueued %d  completed %d  failed %d  retried %d",
			s.Enqueued, s.Completed, s.Failed, s.Retried)),
	}
	if m.err != nil {
		lines = append(lines, ErrorStyle.Render(fmt.Sprintf("  stale: %v", m.err)))
	}
	return strings.Join(lines, "\n")
}

func depthScale(s *queue.Stats) int64 {
	return max(s.Ready, s.Processing, s.Delayed, 10)
}

func (m DashboardModel) renderStatus() string {
	bot := SubtextStyle.Render("n/a")
	if m.services.Bot != nil {
		if m.services.Bot.Running() {
			bot = StatusOnStyle.Render("polling")
		} else {
			bot = StatusOffStyle.Render("stopped")
		}
	}
	subs := "n/a"
	if m.subscribers >= 0 {
		subs = fmt.Sprintf("%d", m.subscribers)
	}
	return strings.Join([]string{
		HeaderStyle.Render("  Bot"),
		"  telegram    " + bot,
		"  subscribers " + subs,
		SubtextStyle.Render("  operator    " + m.services.Username),
	}, "\n")
}

func (m DashboardModel) renderSignals() string {
	lines := []string{HeaderStyle.Render("  Recent Signals")}

	count := min(len(m.signals), recentSignalLimit)
	for i := 0; i < count; i++ {
		lines = append(lines, "  "+FormatRecord(m.signals[i]))
	}
	if len(m.signals) == 0 {
		lines = append(lines, SubtextStyle.Render("  No signals recorded"))
	}

	return strings.Join(lines, "\n")
}

func (m DashboardModel) fetchStatsCmd() tea.Cmd {
	return func() tea.Msg {
		if m.services.Queue == nil {
			return queueStatsErrMsg{err: fmt.Errorf("queue not available")}
		}
		stats, err := m.services.Queue.Stats(context.Background())
		if err != nil {
			return queueStatsErrMsg{err: err}
		}
		return queueStatsMsg(stats)
	}
}

func (m DashboardModel) fetchSignalsCmd() tea.Cmd {
	return func() tea.Msg {
		if m.services.Signals == nil {
			return recentSignalsErrMsg{err: fmt.Errorf("signal history not available")}
		}
		records, err := m.services.Signals.ListHistory(context.Background(), domain.SignalFilter{Limit: recentSignalLimit})
		if err != nil {
			return recentSignalsErrMsg{err: err}
		}
		return recentSignalsMsg(records)
	}
}

func (m DashboardModel) fetchSubscribersCmd() tea.Cmd {
	return func() tea.Msg {
		if m.services.Subscribers == nil {
			return subscribersMsg(-1)
		}
		n, err := m.services.Subscribers.Count()
		if err != nil {
			return subscribersMsg(-1)
		}
		return subscribersMsg(n)
	}
}

func (m DashboardModel) tickCmd() tea.Cmd {
	return tea.Tick(5*time.Second, func(t time.Time) tea.Msg {
		return dashTickMsg(t)
	})
}
