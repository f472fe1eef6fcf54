package tui

import (
	"context"

	"chart-signal-bot/internal/domain"
	"chart-signal-bot/internal/queue"
	"chart-signal-bot/internal/service"
)

// QueueStatsReader exposes job queue counters to the console.
type QueueStatsReader interface {
	Stats(ctx context.Context) (queue.Stats, error)
}

// SignalHistory lists stored signals.
type SignalHistory interface {
	ListHistory(ctx context.Context, filter domain.SignalFilter) ([]domain.SignalRecord, error)
}

// Analyzer runs the signal pipeline on demand.
type Analyzer interface {
	Analyze(ctx context.Context, req service.AnalysisRequest) (*service.AnalysisResult, error)
}

// SubscriberCounter reports how many chats receive broadcasts.
type SubscriberCounter interface {
	Count() (int, error)
}

// BotStatus reports whether Telegram polling is active.
type BotStatus interface {
	Running() bool
}

// SSHChatIDOffset is the base offset for generating synthetic chat IDs
// for SSH users. The final chat ID is SSHChatIDOffset - user.ID.
// This avoids collisions with Telegram chat IDs.
const SSHChatIDOffset int64 = -1_000_000

// Services bundles all service dependencies injected into the console.
type Services struct {
	Queue       QueueStatsReader
	Signals     SignalHistory
	Analyzer    Analyzer
	Subscribers SubscriberCounter
	Bot         BotStatus
	UserID      int64
	Username    string
}

// ChatID returns the synthetic chat ID for this SSH session.
func (s Services) ChatID() int64 {
	return SSHChatIDOffset - s.UserID
}
