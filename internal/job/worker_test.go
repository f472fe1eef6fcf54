package job

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"

	"chart-signal-bot/internal/domain"
	"chart-signal-bot/internal/queue"
	"chart-signal-bot/internal/service"
)

const validBlock = `Action: BUY
Entry: 1.0850
Take Profit: 1.0900
Stop Loss: 1.0820
Confidence: 72
Notes:
- Higher lows on the last three candles`

type sentMessage struct {
	chatID int64
	text   string
	format domain.MessageFormat
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, chatID int64, text string, format domain.MessageFormat) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMessage{chatID: chatID, text: text, format: format})
	return n.err
}

func (n *recordingNotifier) messages() []sentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentMessage(nil), n.sent...)
}

type stubCandles struct {
	series domain.CandleSeries
	err    error
	calls  int
}

func (s *stubCandles) GetCandles(context.Context, string, string) (domain.CandleSeries, error) {
	s.calls++
	return s.series, s.err
}

type stubGenerator struct {
	mu    sync.Mutex
	out   string
	err   error
	calls int
}

func (g *stubGenerator) Generate(context.Context, string, string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	return g.out, g.err
}

func testTracer() trace.Tracer {
	return trace.NewNoopTracerProvider().Tracer("test")
}

func testSeries(n int) domain.CandleSeries {
	out := make(domain.CandleSeries, n)
	for i := range out {
		c := decimal.NewFromFloat(1.08 + float64(i)*0.0005)
		out[i] = domain.Candle{
			Datetime: time.Date(2026, 3, 1, i%24, 0, 0, 0, time.UTC).Format("2006-01-02 15:04:05"),
			Open:     c,
			High:     c.Add(decimal.NewFromFloat(0.001)),
			Low:      c.Sub(decimal.NewFromFloat(0.001)),
			Close:    c,
		}
	}
	return out
}

func newTestQueue(t *testing.T) *queue.Queue {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return queue.New(client, "test", queue.Options{RetryBase: 10 * time.Millisecond, RetryMax: 10 * time.Millisecond})
}

// runUntil starts the pool and stops it once cond holds or the deadline passes.
func runUntil(t *testing.T, pool *WorkerPool, cond func() bool) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		pool.Start(ctx)
		close(done)
	}()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	// Let any extra delivery surface before stopping.
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done
}

func newTradePool(t *testing.T, q *queue.Queue, gen *stubGenerator, notifier Notifier) *WorkerPool {
	t.Helper()
	signals := service.NewSignalService(testTracer(), &stubCandles{series: testSeries(25)}, gen, nil, nil, nil)
	handlers := NewHandlers(HandlerDeps{Signals: signals, Notifier: notifier})
	return NewWorkerPool(testTracer(), q, notifier, handlers, WorkerOptions{Workers: 2, ClaimWait: 20 * time.Millisecond})
}

func TestWorkerTradeJobSendsOneSignal(t *testing.T) {
	q := newTestQueue(t)
	notifier := &recordingNotifier{}
	gen := &stubGenerator{out: "Here you go:\n" + validBlock}
	pool := newTradePool(t, q, gen, notifier)

	id, err := q.Enqueue(context.Background(), domain.TradePayload{ChatID: 1, Text: "EUR/USD 1h"})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	runUntil(t, pool, func() bool { return len(notifier.messages()) > 0 })

	sent := notifier.messages()
	if len(sent) != 1 {
		t.Fatalf("expected exactly one notify, got %d: %+v", len(sent), sent)
	}
	msg := sent[0]
	if msg.chatID != 1 || msg.format != domain.FormatMarkdown {
		t.Fatalf("unexpected delivery %+v", msg)
	}
	if !strings.Contains(msg.text, "Action:") || !strings.Contains(msg.text, "📊 *EUR/USD* | *1h*") {
		t.Fatalf("unexpected message %q", msg.text)
	}

	job, err := q.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if job.Status != domain.JobCompleted {
		t.Fatalf("expected completed, got %s", job.Status)
	}
}

func TestWorkerRejectedSignalSendsOneFailureNotice(t *testing.T) {
	q := newTestQueue(t)
	notifier := &recordingNotifier{}
	noConfidence := strings.Replace(validBlock, "Confidence: 72\n", "", 1)
	gen := &stubGenerator{out: noConfidence}
	pool := newTradePool(t, q, gen, notifier)

	id, _ := q.Enqueue(context.Background(), domain.TradePayload{ChatID: 1, Text: "EUR/USD 1h"})
	runUntil(t, pool, func() bool { return len(notifier.messages()) > 0 })

	sent := notifier.messages()
	if len(sent) != 1 {
		t.Fatalf("expected exactly one notify, got %d: %+v", len(sent), sent)
	}
	if sent[0].chatID != 1 || !strings.Contains(sent[0].text, "Signal generation failed") {
		t.Fatalf("unexpected notice %+v", sent[0])
	}
	if gen.calls != 1 {
		t.Fatalf("semantic rejection must not be retried, generator called %d times", gen.calls)
	}
	job, _ := q.Get(context.Background(), id)
	if job.Status != domain.JobFailed {
		t.Fatalf("expected failed, got %s", job.Status)
	}
}

func TestWorkerRetriesTransientFailureThenNotifiesOnce(t *testing.T) {
	q := newTestQueue(t)
	notifier := &recordingNotifier{}
	gen := &stubGenerator{err: domain.Transient(errors.New("upstream 503"))}
	pool := newTradePool(t, q, gen, notifier)

	maint := NewQueueMaintenance(testTracer(), q, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go maint.Start(ctx)

	id, _ := q.Enqueue(context.Background(), domain.TradePayload{ChatID: 7, Text: "EUR/USD 1h"})
	runUntil(t, pool, func() bool { return len(notifier.messages()) > 0 })

	sent := notifier.messages()
	if len(sent) != 1 || sent[0].text != domain.MsgServiceUnavailable {
		t.Fatalf("expected one unavailable notice, got %+v", sent)
	}
	job, _ := q.Get(context.Background(), id)
	if job.Status != domain.JobFailed || job.Attempts != job.MaxAttempts {
		t.Fatalf("expected failure after %d attempts, got %+v", job.MaxAttempts, job)
	}
	if gen.calls != job.MaxAttempts {
		t.Fatalf("expected %d generator calls, got %d", job.MaxAttempts, gen.calls)
	}
}

type fakeQueue struct {
	mu        sync.Mutex
	completed []string
	failed    []string
	retried   []string
	canRetry  bool
}

func (q *fakeQueue) Claim(ctx context.Context, _ time.Duration) (*domain.Job, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (q *fakeQueue) Complete(_ context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.completed = append(q.completed, id)
	return nil
}

func (q *fakeQueue) Fail(_ context.Context, id, _ string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.failed = append(q.failed, id)
	return nil
}

func (q *fakeQueue) Retry(_ context.Context, job *domain.Job, _ string) (time.Duration, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.retried = append(q.retried, job.ID)
	return time.Second, nil
}

func (q *fakeQueue) CanRetry(*domain.Job) bool { return q.canRetry }

func TestProcessRecoversHandlerPanic(t *testing.T) {
	q := &fakeQueue{}
	notifier := &recordingNotifier{}
	handlers := map[domain.JobType]HandlerFunc{
		domain.JobUserService: func(context.Context, *domain.Job) error { panic("boom") },
	}
	pool := NewWorkerPool(testTracer(), q, notifier, handlers, WorkerOptions{})

	pool.process(context.Background(), &domain.Job{ID: "j1", Type: domain.JobUserService, Payload: domain.UserServicePayload{ChatID: 3}})

	if len(q.failed) != 1 || q.failed[0] != "j1" {
		t.Fatalf("expected panicking job to fail, got %+v", q.failed)
	}
	if sent := notifier.messages(); len(sent) != 1 || sent[0].text != domain.MsgServiceUnavailable {
		t.Fatalf("expected unavailable notice, got %+v", sent)
	}
}

func TestProcessUnsupportedJobFailsSilently(t *testing.T) {
	q := &fakeQueue{canRetry: true}
	notifier := &recordingNotifier{}
	pool := NewWorkerPool(testTracer(), q, notifier, map[domain.JobType]HandlerFunc{}, WorkerOptions{})

	pool.process(context.Background(), &domain.Job{ID: "j2", Type: domain.JobTrade, Payload: domain.TradePayload{ChatID: 1}})

	if len(q.failed) != 1 || len(q.retried) != 0 {
		t.Fatalf("expected terminal failure, got failed=%v retried=%v", q.failed, q.retried)
	}
	if sent := notifier.messages(); len(sent) != 0 {
		t.Fatalf("unsupported jobs must not notify, got %+v", sent)
	}
}

func TestProcessLeavesJobClaimedOnShutdown(t *testing.T) {
	q := &fakeQueue{canRetry: true}
	ctx, cancel := context.WithCancel(context.Background())
	handlers := map[domain.JobType]HandlerFunc{
		domain.JobTrade: func(ctx context.Context, _ *domain.Job) error {
			cancel()
			<-ctx.Done()
			return domain.Transient(ctx.Err())
		},
	}
	pool := NewWorkerPool(testTracer(), q, nil, handlers, WorkerOptions{})

	pool.process(ctx, &domain.Job{ID: "j3", Type: domain.JobTrade, Payload: domain.TradePayload{ChatID: 1}})

	if len(q.completed)+len(q.failed)+len(q.retried) != 0 {
		t.Fatalf("interrupted job must stay claimed, got %+v", q)
	}
}

func TestStartWithoutWorkReturnsOnCancel(t *testing.T) {
	pool := NewWorkerPool(testTracer(), &fakeQueue{}, nil, nil, WorkerOptions{Workers: 3})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		pool.Start(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pool did not stop")
	}
}

func TestWorkerBroadcastOutlivesBaseJobTimeout(t *testing.T) {
	q := newTestQueue(t)
	notifier := &recordingNotifier{}
	const pacing = 10 * time.Millisecond
	handlers := NewHandlers(HandlerDeps{Services: stubServices{}, Notifier: notifier, BroadcastInterval: pacing})
	pool := NewWorkerPool(testTracer(), q, notifier, handlers, WorkerOptions{
		Workers:    1,
		JobTimeout: 100 * time.Millisecond,
		ExtraTime:  BroadcastAllowance(pacing),
		ClaimWait:  20 * time.Millisecond,
	})

	chatIDs := make([]int64, 40)
	for i := range chatIDs {
		chatIDs[i] = int64(i + 1)
	}
	id, err := q.Enqueue(context.Background(), domain.BroadcastPayload{ChatIDs: chatIDs, Text: "London open"})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	runUntil(t, pool, func() bool {
		job, err := q.Get(context.Background(), id)
		return err == nil && job.Status == domain.JobCompleted
	})

	if sent := notifier.messages(); len(sent) != len(chatIDs) {
		t.Fatalf("expected %d deliveries, got %d", len(chatIDs), len(sent))
	}
	job, _ := q.Get(context.Background(), id)
	if job.Status != domain.JobCompleted {
		t.Fatalf("expected completed, got %s", job.Status)
	}
}

func TestTimeoutForAddsBroadcastAllowance(t *testing.T) {
	pool := NewWorkerPool(testTracer(), &fakeQueue{}, nil, nil, WorkerOptions{
		JobTimeout: time.Second,
		ExtraTime:  BroadcastAllowance(50 * time.Millisecond),
	})
	broadcast := &domain.Job{Type: domain.JobAdminBroadcast, Payload: domain.BroadcastPayload{ChatIDs: []int64{1, 2}}}
	if got, want := pool.timeoutFor(broadcast), time.Second+2*(50*time.Millisecond+broadcastSendAllowance); got != want {
		t.Fatalf("broadcast timeout = %v, want %v", got, want)
	}
	trade := &domain.Job{Type: domain.JobTrade, Payload: domain.TradePayload{ChatID: 1}}
	if got := pool.timeoutFor(trade); got != time.Second {
		t.Fatalf("trade timeout = %v, want 1s", got)
	}
}
