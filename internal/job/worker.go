package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"chart-signal-bot/internal/domain"
	"chart-signal-bot/internal/queue"
)

const (
	defaultWorkers    = 4
	defaultJobTimeout = 30 * time.Second
	defaultClaimWait  = 2 * time.Second
	claimErrorBackoff = time.Second
)

type JobQueue interface {
	Claim(ctx context.Context, wait time.Duration) (*domain.Job, error)
	Complete(ctx context.Context, id string) error
	Fail(ctx context.Context, id, reason string) error
	Retry(ctx context.Context, job *domain.Job, reason string) (time.Duration, error)
	CanRetry(job *domain.Job) bool
}

type Notifier interface {
	Notify(ctx context.Context, chatID int64, text string, format domain.MessageFormat) error
}

// HandlerFunc runs one job. Returned errors are classified by the pool.
type HandlerFunc func(ctx context.Context, job *domain.Job) error

type WorkerOptions struct {
	Workers    int
	JobTimeout time.Duration
	// ExtraTime extends JobTimeout for jobs whose run time grows with their
	// payload, such as a paced broadcast.
	ExtraTime func(job *domain.Job) time.Duration
	ClaimWait time.Duration
	Logger    *slog.Logger
}

// WorkerPool claims jobs from the queue and dispatches them by type.
type WorkerPool struct {
	tracer   trace.Tracer
	queue    JobQueue
	notifier Notifier
	handlers map[domain.JobType]HandlerFunc
	opts     WorkerOptions
	logger   *slog.Logger
}

func NewWorkerPool(tracer trace.Tracer, q JobQueue, notifier Notifier, handlers map[domain.JobType]HandlerFunc, opts WorkerOptions) *WorkerPool {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = defaultJobTimeout
	}
	if opts.ClaimWait <= 0 {
		opts.ClaimWait = defaultClaimWait
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkerPool{
		tracer:   tracer,
		queue:    q,
		notifier: notifier,
		handlers: handlers,
		opts:     opts,
		logger:   logger.With("component", "worker"),
	}
}

// Start runs the workers and blocks until ctx is cancelled and all have exited.
// A job interrupted by shutdown stays claimed and is redelivered after restart.
func (p *WorkerPool) Start(ctx context.Context) {
	p.logger.Info("worker pool starting", "workers", p.opts.Workers)
	var wg sync.WaitGroup
	for i := 0; i < p.opts.Workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			p.work(ctx, n)
		}(i)
	}
	wg.Wait()
	p.logger.Info("worker pool stopped")
}

func (p *WorkerPool) work(ctx context.Context, n int) {
	for ctx.Err() == nil {
		job, err := p.queue.Claim(ctx, p.opts.ClaimWait)
		switch {
		case err == nil:
			p.process(ctx, job)
		case errors.Is(err, queue.ErrEmpty):
		case ctx.Err() != nil:
			return
		case job != nil:
			// Unknown type or corrupt payload: drop without notifying anyone.
			p.logger.Warn("dropping undecodable job", "job_id", job.ID, "job_type", job.Type, "error", err)
			if ferr := p.queue.Fail(ctx, job.ID, err.Error()); ferr != nil {
				p.logger.Error("mark dropped job failed", "job_id", job.ID, "error", ferr)
			}
		case errors.Is(err, queue.ErrNotFound):
			p.logger.Warn("claimed job has no record", "error", err)
		default:
			p.logger.Error("claim failed", "worker", n, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(claimErrorBackoff):
			}
		}
	}
}

// process runs a claimed job and applies the failure policy: success
// completes, a retryable error with attempts left is rescheduled, anything
// else fails the job and sends the fixed notice for its type.
func (p *WorkerPool) process(ctx context.Context, job *domain.Job) {
	ctx, span := p.tracer.Start(ctx, "worker.process")
	defer span.End()
	span.SetAttributes(
		attribute.String("job_id", job.ID),
		attribute.String("job_type", string(job.Type)),
		attribute.Int("attempt", job.Attempts),
	)
	logger := p.logger.With("job_id", job.ID, "job_type", job.Type, "attempt", job.Attempts)

	jobCtx, cancel := context.WithTimeout(ctx, p.timeoutFor(job))
	err := p.dispatch(jobCtx, job)
	cancel()

	if err == nil {
		if cerr := p.queue.Complete(ctx, job.ID); cerr != nil {
			logger.Error("complete job", "error", cerr)
		}
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	if ctx.Err() != nil {
		logger.Warn("job interrupted by shutdown, left for redelivery", "error", err)
		return
	}

	if domain.Retryable(err) && p.queue.CanRetry(job) {
		delay, rerr := p.queue.Retry(ctx, job, err.Error())
		if rerr == nil {
			logger.Warn("job failed, retry scheduled", "error", err, "delay", delay)
			return
		}
		logger.Error("schedule retry", "error", rerr)
	}

	logger.Error("job failed", "error", err)
	if ferr := p.queue.Fail(ctx, job.ID, err.Error()); ferr != nil {
		logger.Error("mark job failed", "error", ferr)
	}
	p.notifyFailure(ctx, job, err)
}

func (p *WorkerPool) timeoutFor(job *domain.Job) time.Duration {
	timeout := p.opts.JobTimeout
	if p.opts.ExtraTime != nil {
		timeout += p.opts.ExtraTime(job)
	}
	return timeout
}

func (p *WorkerPool) dispatch(ctx context.Context, job *domain.Job) (err error) {
	handler, ok := p.handlers[job.Type]
	if !ok {
		return fmt.Errorf("%w: no handler for %q", domain.ErrUnsupportedJob, job.Type)
	}
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("job handler panic", "job_id", job.ID, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(ctx, job)
}

func (p *WorkerPool) notifyFailure(ctx context.Context, job *domain.Job, err error) {
	msg, ok := domain.NoticeFor(job.Type, err)
	if !ok || p.notifier == nil {
		return
	}
	chatID, ok := job.ChatID()
	if !ok {
		return
	}
	_ = p.notifier.Notify(ctx, chatID, msg, domain.FormatPlain)
}
