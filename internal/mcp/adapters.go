package mcp

import (
	"context"

	"chart-signal-bot/internal/domain"
	"chart-signal-bot/internal/queue"
	"chart-signal-bot/internal/service"
)

// SignalAnalyzer runs synchronous analyses and reads accepted signal history.
type SignalAnalyzer interface {
	Analyze(ctx context.Context, req service.AnalysisRequest) (*service.AnalysisResult, error)
	ListHistory(ctx context.Context, filter domain.SignalFilter) ([]domain.SignalRecord, error)
}

// JobQueue exposes the durable queue operations reachable over MCP.
type JobQueue interface {
	Enqueue(ctx context.Context, payload domain.JobPayload) (string, error)
	Get(ctx context.Context, id string) (*domain.Job, error)
	Stats(ctx context.Context) (queue.Stats, error)
}
