package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"chart-signal-bot/internal/domain"
	"chart-signal-bot/internal/queue"
	"chart-signal-bot/internal/service"
)

const testCode = "s3cret"

type stubBot struct {
	running  bool
	startErr error
}

func (b *stubBot) Start() error {
	if b.startErr != nil {
		return b.startErr
	}
	b.running = true
	return nil
}

func (b *stubBot) Stop() { b.running = false }

func (b *stubBot) Running() bool { return b.running }

type stubJobs struct {
	jobs     map[string]*domain.Job
	stats    queue.Stats
	statsErr error
}

func (s *stubJobs) Get(_ context.Context, id string) (*domain.Job, error) {
	if job, ok := s.jobs[id]; ok {
		return job, nil
	}
	return nil, fmt.Errorf("%w: %s", queue.ErrNotFound, id)
}

func (s *stubJobs) Stats(context.Context) (queue.Stats, error) { return s.stats, s.statsErr }

type stubHistory struct {
	lastFilter domain.SignalFilter
	resp       []domain.SignalRecord
	err        error
}

func (s *stubHistory) ListHistory(_ context.Context, filter domain.SignalFilter) ([]domain.SignalRecord, error) {
	s.lastFilter = filter
	return s.resp, s.err
}

func newTestRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h.RegisterRoutes(r)
	return r
}

func do(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func testTracer() trace.Tracer {
	return trace.NewNoopTracerProvider().Tracer("handler-test")
}

func TestHealthAndRoot(t *testing.T) {
	bot := &stubBot{running: true}
	r := newTestRouter(New(testTracer(), bot, &stubJobs{}, nil, testCode))

	if w := do(r, "/health"); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	w := do(r, "/")
	var body map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if w.Code != http.StatusOK || body["bot_running"] != true {
		t.Fatalf("unexpected root response %d %s", w.Code, w.Body.String())
	}
}

func TestHealthDegradedWhenQueueDown(t *testing.T) {
	r := newTestRouter(New(testTracer(), nil, &stubJobs{statsErr: errors.New("dial tcp")}, nil, testCode))
	if w := do(r, "/health"); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestBotControlRequiresCode(t *testing.T) {
	bot := &stubBot{}
	r := newTestRouter(New(testTracer(), bot, nil, nil, testCode))

	if w := do(r, "/start-bot"); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without code, got %d", w.Code)
	}
	if w := do(r, "/start-bot?code=wrong"); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad code, got %d", w.Code)
	}
	if w := do(r, "/start-bot?code="+testCode); w.Code != http.StatusOK || !bot.running {
		t.Fatalf("expected bot started, got %d running=%v", w.Code, bot.running)
	}
	if w := do(r, "/stop-bot?code="+testCode); w.Code != http.StatusOK || bot.running {
		t.Fatalf("expected bot stopped, got %d running=%v", w.Code, bot.running)
	}
}

func TestUnsetAdminCodeRejectsEverything(t *testing.T) {
	r := newTestRouter(New(testTracer(), &stubBot{}, nil, nil, ""))
	if w := do(r, "/start-bot?code="); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestStartBotFailure(t *testing.T) {
	r := newTestRouter(New(testTracer(), &stubBot{startErr: errors.New("TELEGRAM_BOT_TOKEN not set")}, nil, nil, testCode))
	if w := do(r, "/start-bot?code="+testCode); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestGetJob(t *testing.T) {
	jobs := &stubJobs{jobs: map[string]*domain.Job{
		"abc": {ID: "abc", Type: domain.JobTrade, Status: domain.JobCompleted, Payload: domain.TradePayload{ChatID: 1, Text: "EUR/USD 1h"}},
	}}
	r := newTestRouter(New(testTracer(), nil, jobs, nil, testCode))

	w := do(r, "/api/jobs/abc?code="+testCode)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body struct {
		ID      string         `json:"id"`
		Status  string         `json:"status"`
		Payload map[string]any `json:"payload"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if body.ID != "abc" || body.Status != "completed" || body.Payload["text"] != "EUR/USD 1h" {
		t.Fatalf("unexpected job body %s", w.Body.String())
	}

	if w := do(r, "/api/jobs/missing?code="+testCode); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if w := do(r, "/api/jobs/abc"); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestGetQueueStats(t *testing.T) {
	jobs := &stubJobs{stats: queue.Stats{Name: "analyze", Ready: 3}}
	r := newTestRouter(New(testTracer(), nil, jobs, nil, testCode))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/queue/stats", nil)
	req.Header.Set("X-Admin-Code", testCode)
	r.ServeHTTP(w, req)

	var stats queue.Stats
	_ = json.Unmarshal(w.Body.Bytes(), &stats)
	if w.Code != http.StatusOK || stats.Name != "analyze" || stats.Ready != 3 {
		t.Fatalf("unexpected stats %d %s", w.Code, w.Body.String())
	}
}

func TestGetSignals(t *testing.T) {
	history := &stubHistory{resp: []domain.SignalRecord{{ID: 1, Symbol: "EUR/USD", Timeframe: "1h", Signal: domain.Signal{Action: domain.ActionBuy}}}}
	r := newTestRouter(New(testTracer(), nil, nil, history, testCode))

	w := do(r, "/api/signals?code="+testCode+"&symbol=EUR/USD&timeframe=1h&action=BUY&limit=5")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if f := history.lastFilter; f.Symbol != "EUR/USD" || f.Timeframe != "1h" || f.Action != "BUY" || f.Limit != 5 {
		t.Fatalf("unexpected filter %+v", f)
	}
	var resp struct {
		Signals []domain.SignalRecord `json:"signals"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || len(resp.Signals) != 1 {
		t.Fatalf("unexpected response %s", w.Body.String())
	}
}

func TestGetSignalsValidation(t *testing.T) {
	history := &stubHistory{}
	r := newTestRouter(New(testTracer(), nil, nil, history, testCode))

	if w := do(r, "/api/signals?code="+testCode+"&limit=500"); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for limit, got %d", w.Code)
	}
	if w := do(r, "/api/signals?code="+testCode+"&timeframe=later"); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for timeframe, got %d", w.Code)
	}

	history.err = domain.InvalidInput("action %q", "HOLD")
	if w := do(r, "/api/signals?code="+testCode+"&action=HOLD"); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for action, got %d", w.Code)
	}

	history.err = service.ErrHistoryDisabled
	if w := do(r, "/api/signals?code="+testCode); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when history disabled, got %d", w.Code)
	}
}
