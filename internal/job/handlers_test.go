package job

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"chart-signal-bot/internal/domain"
	"chart-signal-bot/internal/service"
)

type stubAnalyzer struct {
	req service.AnalysisRequest
	err error
}

func (a *stubAnalyzer) Analyze(_ context.Context, req service.AnalysisRequest) (*service.AnalysisResult, error) {
	a.req = req
	if a.err != nil {
		return nil, a.err
	}
	return &service.AnalysisResult{Symbol: req.Symbol, Timeframe: req.Timeframe, Message: "signal for " + req.Symbol}, nil
}

type stubPhotos struct {
	input *domain.TradeInput
	err   error
}

func (p *stubPhotos) Analyze(context.Context, domain.PhotoPayload) (*domain.TradeInput, error) {
	return p.input, p.err
}

type stubServices struct {
	admin map[string]string
	user  map[string]string
}

func (s stubServices) RunAdmin(_ context.Context, name string) (string, error) {
	text, ok := s.admin[name]
	if !ok {
		return "", domain.InvalidInput("unknown admin service %q", name)
	}
	return text, nil
}

func (s stubServices) RunUser(_ context.Context, name string) (string, error) {
	text, ok := s.user[name]
	if !ok {
		return "", domain.InvalidInput("unknown user service %q", name)
	}
	return text, nil
}

func TestParseTradeCommand(t *testing.T) {
	symbol, tf, err := ParseTradeCommand("  eurusd   4H ")
	if err != nil || symbol != "EUR/USD" || tf != "4h" {
		t.Fatalf("unexpected parse %q %q %v", symbol, tf, err)
	}
	for _, in := range []string{"", "EUR/USD", "EUR/USD soon"} {
		if _, _, err := ParseTradeCommand(in); !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("%q: expected invalid input, got %v", in, err)
		}
	}
}

func TestTradeHandlerNotifiesMarkdown(t *testing.T) {
	analyzer := &stubAnalyzer{}
	notifier := &recordingNotifier{}
	h := NewHandlers(HandlerDeps{Signals: analyzer, Notifier: notifier})

	err := h[domain.JobTrade](context.Background(), &domain.Job{Type: domain.JobTrade, Payload: domain.TradePayload{ChatID: 5, Text: "GBP/JPY 15m"}})
	if err != nil {
		t.Fatalf("trade: %v", err)
	}
	if analyzer.req.Symbol != "GBP/JPY" || analyzer.req.Timeframe != "15m" || analyzer.req.Source != domain.SourceText {
		t.Fatalf("unexpected request %+v", analyzer.req)
	}
	sent := notifier.messages()
	if len(sent) != 1 || sent[0].chatID != 5 || sent[0].format != domain.FormatMarkdown {
		t.Fatalf("unexpected deliveries %+v", sent)
	}
}

func TestTradeHandlerReturnsAnalyzerErrorWithoutNotifying(t *testing.T) {
	analyzer := &stubAnalyzer{err: domain.ErrInsufficientData}
	notifier := &recordingNotifier{}
	h := NewHandlers(HandlerDeps{Signals: analyzer, Notifier: notifier})

	err := h[domain.JobTrade](context.Background(), &domain.Job{Type: domain.JobTrade, Payload: domain.TradePayload{ChatID: 5, Text: "EUR/USD 1h"}})
	if !errors.Is(err, domain.ErrInsufficientData) {
		t.Fatalf("expected insufficient data, got %v", err)
	}
	if len(notifier.messages()) != 0 {
		t.Fatal("failure notices belong to the worker pool")
	}
}

func TestPhotoHandlerPassesRecognizedInput(t *testing.T) {
	input := &domain.TradeInput{Symbol: "BTC/USDT", Timeframe: "4h"}
	analyzer := &stubAnalyzer{}
	notifier := &recordingNotifier{}
	h := NewHandlers(HandlerDeps{Signals: analyzer, Photos: &stubPhotos{input: input}, Notifier: notifier})

	err := h[domain.JobAnalyzePhoto](context.Background(), &domain.Job{Type: domain.JobAnalyzePhoto, Payload: domain.PhotoPayload{ChatID: 8, FileURL: "https://example.test/c.jpg"}})
	if err != nil {
		t.Fatalf("photo: %v", err)
	}
	if analyzer.req.Input != input || analyzer.req.Source != domain.SourcePhoto || analyzer.req.Symbol != "BTC/USDT" {
		t.Fatalf("unexpected request %+v", analyzer.req)
	}
	if sent := notifier.messages(); len(sent) != 1 || sent[0].chatID != 8 {
		t.Fatalf("unexpected deliveries %+v", sent)
	}
}

func TestPhotoHandlerStopsOnUnreadableChart(t *testing.T) {
	analyzer := &stubAnalyzer{}
	h := NewHandlers(HandlerDeps{Signals: analyzer, Photos: &stubPhotos{err: domain.InvalidInput("unreadable chart")}})

	err := h[domain.JobAnalyzePhoto](context.Background(), &domain.Job{Type: domain.JobAnalyzePhoto, Payload: domain.PhotoPayload{ChatID: 8}})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if analyzer.req.Symbol != "" {
		t.Fatal("analyzer must not run without trade input")
	}
}

func TestServiceHandlers(t *testing.T) {
	notifier := &recordingNotifier{}
	services := stubServices{
		admin: map[string]string{"stats": "Queue test", "quiet": ""},
		user:  map[string]string{"help": "usage"},
	}
	h := NewHandlers(HandlerDeps{Services: services, Notifier: notifier})
	ctx := context.Background()

	if err := h[domain.JobAdminService](ctx, &domain.Job{Type: domain.JobAdminService, Payload: domain.AdminServicePayload{ChatID: 1, Service: "stats"}}); err != nil {
		t.Fatalf("admin service: %v", err)
	}
	if err := h[domain.JobAdminService](ctx, &domain.Job{Type: domain.JobAdminService, Payload: domain.AdminServicePayload{ChatID: 1, Service: "quiet"}}); err != nil {
		t.Fatalf("quiet admin service: %v", err)
	}
	if err := h[domain.JobUserService](ctx, &domain.Job{Type: domain.JobUserService, Payload: domain.UserServicePayload{ChatID: 2, Service: "help"}}); err != nil {
		t.Fatalf("user service: %v", err)
	}
	err := h[domain.JobUserService](ctx, &domain.Job{Type: domain.JobUserService, Payload: domain.UserServicePayload{ChatID: 2, Service: "nope"}})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for unknown service, got %v", err)
	}

	sent := notifier.messages()
	if len(sent) != 2 || sent[0].text != "Queue test" || sent[1].text != "usage" || sent[1].format != domain.FormatPlain {
		t.Fatalf("unexpected deliveries %+v", sent)
	}
}

func TestBroadcastFansOutDespiteSendFailures(t *testing.T) {
	notifier := &recordingNotifier{err: errors.New("blocked by user")}
	services := stubServices{admin: map[string]string{"market-hours": "London open"}}
	h := NewHandlers(HandlerDeps{Services: services, Notifier: notifier, BroadcastInterval: time.Millisecond})

	err := h[domain.JobAdminBroadcast](context.Background(), &domain.Job{
		Type:    domain.JobAdminBroadcast,
		Payload: domain.BroadcastPayload{ChatIDs: []int64{1, 2, 3}, Service: "market-hours"},
	})
	if err != nil {
		t.Fatalf("broadcast: %v", err)
	}
	sent := notifier.messages()
	if len(sent) != 3 {
		t.Fatalf("expected 3 sends, got %d", len(sent))
	}
	for i, msg := range sent {
		if msg.chatID != int64(i+1) || msg.text != "London open" {
			t.Fatalf("unexpected send %d: %+v", i, msg)
		}
	}
}

func TestBroadcastPrefersExplicitText(t *testing.T) {
	notifier := &recordingNotifier{}
	h := NewHandlers(HandlerDeps{Services: stubServices{}, Notifier: notifier})

	err := h[domain.JobAdminBroadcast](context.Background(), &domain.Job{
		Type:    domain.JobAdminBroadcast,
		Payload: domain.BroadcastPayload{ChatIDs: []int64{4}, Text: "  Maintenance at 22:00 UTC "},
	})
	if err != nil {
		t.Fatalf("broadcast: %v", err)
	}
	if sent := notifier.messages(); len(sent) != 1 || sent[0].text != "Maintenance at 22:00 UTC" {
		t.Fatalf("unexpected deliveries %+v", sent)
	}
}

func TestHandlerRejectsMismatchedPayload(t *testing.T) {
	h := NewHandlers(HandlerDeps{})
	err := h[domain.JobTrade](context.Background(), &domain.Job{Type: domain.JobTrade, Payload: domain.UserServicePayload{ChatID: 1}})
	if !errors.Is(err, domain.ErrUnsupportedJob) || !strings.Contains(err.Error(), "UserServicePayload") {
		t.Fatalf("expected payload mismatch, got %v", err)
	}
}

func TestBroadcastReportsInterruptedFanOut(t *testing.T) {
	notifier := &recordingNotifier{}
	h := NewHandlers(HandlerDeps{Services: stubServices{}, Notifier: notifier, BroadcastInterval: 20 * time.Millisecond})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := h[domain.JobAdminBroadcast](ctx, &domain.Job{
		ID:      "b1",
		Type:    domain.JobAdminBroadcast,
		Payload: domain.BroadcastPayload{ChatIDs: []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, Text: "London open"},
	})
	if !errors.Is(err, context.DeadlineExceeded) || !strings.Contains(err.Error(), "of 10 chats") {
		t.Fatalf("expected interruption error, got %v", err)
	}
	if domain.Retryable(err) {
		t.Fatalf("interrupted broadcast must not be retried: %v", err)
	}
	if sent := notifier.messages(); len(sent) == 0 || len(sent) == 10 {
		t.Fatalf("expected a partial fan-out, got %d sends", len(sent))
	}
}
