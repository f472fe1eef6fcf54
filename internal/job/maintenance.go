package job

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel/trace"
)

const defaultPromoteTick = time.Second

type QueueMaintainer interface {
	PromoteDue(ctx context.Context, now time.Time) (int, error)
	RequeueProcessing(ctx context.Context) (int, error)
}

// QueueMaintenance moves due retries back to ready and, at startup, returns
// jobs orphaned by a previous process to the queue.
type QueueMaintenance struct {
	tracer   trace.Tracer
	maintain QueueMaintainer
	tick     time.Duration
	now      func() time.Time
}

func NewQueueMaintenance(tracer trace.Tracer, maintain QueueMaintainer, tick time.Duration) *QueueMaintenance {
	if tick <= 0 {
		tick = defaultPromoteTick
	}
	return &QueueMaintenance{
		tracer:   tracer,
		maintain: maintain,
		tick:     tick,
		now:      time.Now,
	}
}

// Recover must run before any worker starts claiming.
func (j *QueueMaintenance) Recover(ctx context.Context) {
	if j == nil || j.maintain == nil {
		return
	}
	if j.tracer != nil {
		_, span := j.tracer.Start(ctx, "queue-job.recover")
		defer span.End()
	}
	n, err := j.maintain.RequeueProcessing(ctx)
	if err != nil {
		log.Printf("queue recovery error: %v", err)
		return
	}
	if n > 0 {
		log.Printf("queue recovery requeued %d job(s)", n)
	}
}

func (j *QueueMaintenance) Start(ctx context.Context) {
	if j == nil || j.maintain == nil {
		<-ctx.Done()
		return
	}

	log.Println("Queue maintenance starting...")
	ticker := time.NewTicker(j.tick)
	defer ticker.Stop()

	j.runPromote(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Println("Queue maintenance stopped")
			return
		case <-ticker.C:
			j.runPromote(ctx)
		}
	}
}

func (j *QueueMaintenance) runPromote(ctx context.Context) {
	if j.tracer != nil {
		_, span := j.tracer.Start(ctx, "queue-job.promote")
		defer span.End()
	}
	n, err := j.maintain.PromoteDue(ctx, j.now())
	if err != nil {
		log.Printf("queue promote error: %v", err)
		return
	}
	if n > 0 {
		log.Printf("queue promoted %d delayed job(s)", n)
	}
}
