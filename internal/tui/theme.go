package tui

import "github.com/charmbracelet/lipgloss"

var (
	// Tab bar styles
	TabStyle       = lipgloss.NewStyle().Padding(0, 2)
	ActiveTabStyle = TabStyle.Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))
	InactiveTabStyle = TabStyle.
				Foreground(lipgloss.Color("#888888"))

	// Signal action colors
	ActionBuyStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00")).Bold(true)
	ActionSellStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")).Bold(true)
	ActionNoTradeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFF00"))

	// Confidence colors
	ConfidenceHighStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00"))
	ConfidenceMedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFF00"))
	ConfidenceLowStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))

	// Queue depth colors
	QueueReadyStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#00AFFF"))
	QueueProcessingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFF00"))
	QueueDelayedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF8700"))

	// Bot status
	StatusOnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00")).Bold(true)
	StatusOffStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")).Bold(true)

	// General styles
	HeaderStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FAFAFA"))
	SubtextStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	BorderStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#555555"))
	ErrorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))
	SpinnerColor = lipgloss.Color("#7D56F4")

	// Analyze console styles
	UserMsgStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4")).Bold(true)
	ResultMsgStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FAFAFA"))
)
