package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"chart-signal-bot/internal/domain"
	"chart-signal-bot/internal/queue"
	"chart-signal-bot/internal/service"
)

type stubSignalService struct {
	mu         sync.Mutex
	result     *service.AnalysisResult
	analyzeErr error
	listed     []domain.SignalRecord

	lastRequest service.AnalysisRequest
	lastFilter  domain.SignalFilter
}

func (s *stubSignalService) Analyze(ctx context.Context, req service.AnalysisRequest) (*service.AnalysisResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRequest = req
	if s.analyzeErr != nil {
		return nil, s.analyzeErr
	}
	res := *s.result
	return &res, nil
}

func (s *stubSignalService) ListHistory(ctx context.Context, filter domain.SignalFilter) ([]domain.SignalRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastFilter = filter
	return append([]domain.SignalRecord(nil), s.listed...), nil
}

type stubJobQueue struct {
	mu       sync.Mutex
	enqueued []domain.JobPayload
	jobs     map[string]*domain.Job
	stats    queue.Stats
}

func (q *stubJobQueue) Enqueue(ctx context.Context, payload domain.JobPayload) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.enqueued = append(q.enqueued, payload)
	return fmt.Sprintf("job-%d", len(q.enqueued)), nil
}

func (q *stubJobQueue) Get(ctx context.Context, id string) (*domain.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if j, ok := q.jobs[id]; ok {
		copy := *j
		return &copy, nil
	}
	return nil, fmt.Errorf("%w: %s", queue.ErrNotFound, id)
}

func (q *stubJobQueue) Stats(ctx context.Context) (queue.Stats, error) {
	return q.stats, nil
}

func testServer() (*sdkmcp.Server, *stubSignalService, *stubJobQueue) {
	signals := &stubSignalService{
		result: &service.AnalysisResult{
			Symbol:    "EUR/USD",
			Timeframe: "1h",
			Block:     "Action: BUY\nEntry: 1.0850\nTake Profit: 1.0900\nStop Loss: 1.0820\nConfidence: 72\nNotes:\n- trend up",
			Message:   "📊 *EUR/USD* | *1h*",
			Signal:    domain.Signal{Action: domain.ActionBuy, Entry: "1.0850", Confidence: 72, Notes: []string{"trend up"}},
			Candles:   100,
		},
		listed: []domain.SignalRecord{{
			ID: 1, ChatID: 7, Symbol: "EUR/USD", Timeframe: "1h", Source: domain.SourceText,
			Signal: domain.Signal{Action: domain.ActionSell, Confidence: 64}, CreatedAt: time.Unix(0, 0).UTC(),
		}},
	}
	jobs := &stubJobQueue{
		jobs: map[string]*domain.Job{
			"abc": {
				ID: "abc", Type: domain.JobTrade, Status: domain.JobCompleted, Attempts: 1, MaxAttempts: 3,
				Payload: domain.TradePayload{ChatID: 7, Text: "EUR/USD 1h"}, EnqueuedAt: time.Unix(0, 0).UTC(),
			},
		},
		stats: queue.Stats{Name: "analyze", Ready: 2, Completed: 5},
	}

	srv := NewServer(nil, signals, jobs, ServerConfig{RequestTimeout: time.Second})
	return srv, signals, jobs
}

func connectInMemory(ctx context.Context, srv *sdkmcp.Server) (*sdkmcp.ClientSession, context.CancelFunc, error) {
	clientTransport, serverTransport := sdkmcp.NewInMemoryTransports()
	runCtx, cancel := context.WithCancel(ctx)
	go func() { _ = srv.Run(runCtx, serverTransport) }()

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "mcp-test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	return session, cancel, nil
}

func decodeResourceJSON(result *sdkmcp.ReadResourceResult, out any) error {
	if len(result.Contents) == 0 {
		return nil
	}
	return json.Unmarshal([]byte(result.Contents[0].Text), out)
}

func decodeStructured(result *sdkmcp.CallToolResult, out any) error {
	raw, err := json.Marshal(result.StructuredContent)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
