package job

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel/trace"

	"chart-signal-bot/internal/domain"
)

type Enqueuer interface {
	Enqueue(ctx context.Context, payload domain.JobPayload) (string, error)
}

type SubscriberLister interface {
	List() ([]int64, error)
}

// BroadcastScheduler enqueues an admin-broadcast of one service to all
// subscribers on a cron schedule (UTC).
type BroadcastScheduler struct {
	tracer      trace.Tracer
	enqueuer    Enqueuer
	subscribers SubscriberLister
	schedule    string
	service     string
}

// NewBroadcastScheduler validates the schedule. An empty schedule disables it.
func NewBroadcastScheduler(tracer trace.Tracer, enqueuer Enqueuer, subscribers SubscriberLister, schedule, service string) (*BroadcastScheduler, error) {
	if schedule != "" {
		if _, err := cron.ParseStandard(schedule); err != nil {
			return nil, fmt.Errorf("parse broadcast schedule %q: %w", schedule, err)
		}
	}
	return &BroadcastScheduler{
		tracer:      tracer,
		enqueuer:    enqueuer,
		subscribers: subscribers,
		schedule:    schedule,
		service:     service,
	}, nil
}

// Start blocks until ctx is cancelled.
func (s *BroadcastScheduler) Start(ctx context.Context) {
	if s.schedule == "" || s.enqueuer == nil || s.subscribers == nil {
		log.Println("Broadcast scheduler disabled: no schedule")
		<-ctx.Done()
		return
	}

	c := cron.New(cron.WithLocation(time.UTC))
	if _, err := c.AddFunc(s.schedule, func() {
		if _, err := s.runOnce(ctx); err != nil {
			log.Printf("scheduled broadcast error: %v", err)
		}
	}); err != nil {
		log.Printf("Broadcast scheduler disabled: %v", err)
		<-ctx.Done()
		return
	}

	log.Printf("Broadcast scheduler starting (%s, service %s)", s.schedule, s.service)
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	log.Println("Broadcast scheduler stopped")
}

// runOnce enqueues a broadcast for the current subscribers. It returns the
// job id, or "" when there is nobody to send to.
func (s *BroadcastScheduler) runOnce(ctx context.Context) (string, error) {
	if s.tracer != nil {
		var span trace.Span
		ctx, span = s.tracer.Start(ctx, "broadcast-job.run")
		defer span.End()
	}
	ids, err := s.subscribers.List()
	if err != nil {
		return "", fmt.Errorf("list subscribers: %w", err)
	}
	if len(ids) == 0 {
		return "", nil
	}
	id, err := s.enqueuer.Enqueue(ctx, domain.BroadcastPayload{ChatIDs: ids, Service: s.service})
	if err != nil {
		return "", err
	}
	log.Printf("scheduled broadcast %s queued for %d subscriber(s)", id, len(ids))
	return id, nil
}
