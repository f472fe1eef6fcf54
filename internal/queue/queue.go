// Package queue is a durable Redis-backed job queue with at-least-once delivery.
//
// Layout for a queue named q:
//
//	q:ready       list of job ids waiting to run (LPUSH in, pop from the right)
//	q:processing  list of job ids claimed by a worker
//	q:delayed     sorted set of job ids waiting for a retry, scored by due time (ms)
//	q:job:<id>    hash holding the job record
//	q:stats       hash of lifetime counters
package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"chart-signal-bot/internal/domain"
)

const (
	DefaultName        = "analyze"
	defaultMaxAttempts = 3
	defaultRetryBase   = 2 * time.Second
	defaultRetryMax    = time.Minute
	defaultRetention   = 24 * time.Hour
	promoteBatch       = 100
)

var (
	// ErrEmpty is returned by Claim when no job became ready within the wait.
	ErrEmpty    = errors.New("queue empty")
	ErrNotFound = errors.New("job not found")
)

type Options struct {
	MaxAttempts int
	RetryBase   time.Duration
	RetryMax    time.Duration
	// Retention is how long finished job records stay readable.
	Retention time.Duration
	Now       func() time.Time
}

type EnqueueOptions struct {
	MaxAttempts int
	Delay       time.Duration
}

type Stats struct {
	Name       string `json:"name"`
	Ready      int64  `json:"ready"`
	Processing int64  `json:"processing"`
	Delayed    int64  `json:"delayed"`
	Enqueued   int64  `json:"enqueued"`
	Completed  int64  `json:"completed"`
	Failed     int64  `json:"failed"`
	Retried    int64  `json:"retried"`
}

type Queue struct {
	client redis.UniversalClient
	name   string
	opts   Options
}

func New(client redis.UniversalClient, name string, opts Options) *Queue {
	if name == "" {
		name = DefaultName
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = defaultRetryBase
	}
	if opts.RetryMax < opts.RetryBase {
		opts.RetryMax = defaultRetryMax
		if opts.RetryMax < opts.RetryBase {
			opts.RetryMax = opts.RetryBase
		}
	}
	if opts.Retention <= 0 {
		opts.Retention = defaultRetention
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Queue{client: client, name: name, opts: opts}
}

func (q *Queue) Name() string { return q.name }

func (q *Queue) readyKey() string      { return q.name + ":ready" }
func (q *Queue) processingKey() string { return q.name + ":processing" }
func (q *Queue) delayedKey() string    { return q.name + ":delayed" }
func (q *Queue) statsKey() string      { return q.name + ":stats" }
func (q *Queue) jobPrefix() string     { return q.name + ":job:" }
func (q *Queue) jobKey(id string) string {
	return q.jobPrefix() + id
}

// Enqueue durably records a job and makes it ready. It never waits for work.
func (q *Queue) Enqueue(ctx context.Context, payload domain.JobPayload) (string, error) {
	return q.EnqueueWith(ctx, payload, EnqueueOptions{})
}

func (q *Queue) EnqueueWith(ctx context.Context, payload domain.JobPayload, opts EnqueueOptions) (string, error) {
	jobType, raw, err := domain.EncodePayload(payload)
	if err != nil {
		return "", err
	}
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = q.opts.MaxAttempts
	}

	id := uuid.NewString()
	now := q.opts.Now().UTC()
	status := domain.JobQueued
	if opts.Delay > 0 {
		status = domain.JobRetrying
	}

	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, q.jobKey(id), map[string]any{
			"id":           id,
			"type":         string(jobType),
			"payload":      string(raw),
			"status":       string(status),
			"attempts":     0,
			"max_attempts": maxAttempts,
			"enqueued_at":  now.Format(time.RFC3339Nano),
			"updated_at":   now.Format(time.RFC3339Nano),
		})
		if opts.Delay > 0 {
			pipe.ZAdd(ctx, q.delayedKey(), redis.Z{Score: float64(now.Add(opts.Delay).UnixMilli()), Member: id})
		} else {
			pipe.LPush(ctx, q.readyKey(), id)
		}
		pipe.HIncrBy(ctx, q.statsKey(), "enqueued", 1)
		return nil
	})
	if err != nil {
		return "", domain.Transient(fmt.Errorf("enqueue %s job: %w", jobType, err))
	}
	return id, nil
}

// Claim atomically moves the oldest ready job to processing and returns it,
// waiting up to wait. A job of unknown type is returned with ErrUnsupportedJob
// so the caller can drop it.
func (q *Queue) Claim(ctx context.Context, wait time.Duration) (*domain.Job, error) {
	id, err := q.client.BLMove(ctx, q.readyKey(), q.processingKey(), "RIGHT", "LEFT", wait).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, err
	}

	now := q.opts.Now().UTC()
	pipe := q.client.TxPipeline()
	attempts := pipe.HIncrBy(ctx, q.jobKey(id), "attempts", 1)
	pipe.HSet(ctx, q.jobKey(id), "status", string(domain.JobClaimed), "updated_at", now.Format(time.RFC3339Nano))
	fields := pipe.HGetAll(ctx, q.jobKey(id))
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("claim job %s: %w", id, err)
	}

	record := fields.Val()
	if _, ok := record["type"]; !ok {
		// Record expired or was never written; nothing can be done with the id.
		q.client.Del(ctx, q.jobKey(id))
		q.client.LRem(ctx, q.processingKey(), 1, id)
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	record["attempts"] = strconv.FormatInt(attempts.Val(), 10)
	return decodeJob(record)
}

// Complete removes a job from processing and records success.
func (q *Queue) Complete(ctx context.Context, id string) error {
	return q.finish(ctx, id, domain.JobCompleted, "", "completed")
}

// Fail removes a job from processing and records a terminal failure.
func (q *Queue) Fail(ctx context.Context, id, reason string) error {
	return q.finish(ctx, id, domain.JobFailed, reason, "failed")
}

func (q *Queue) finish(ctx context.Context, id string, status domain.JobStatus, reason, counter string) error {
	now := q.opts.Now().UTC()
	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, q.processingKey(), 1, id)
		fields := []any{"status", string(status), "updated_at", now.Format(time.RFC3339Nano)}
		if reason != "" {
			fields = append(fields, "last_error", reason)
		}
		pipe.HSet(ctx, q.jobKey(id), fields...)
		pipe.Expire(ctx, q.jobKey(id), q.opts.Retention)
		pipe.HIncrBy(ctx, q.statsKey(), counter, 1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("mark job %s %s: %w", id, status, err)
	}
	return nil
}

// Retry schedules another attempt after an exponential delay and returns it.
func (q *Queue) Retry(ctx context.Context, job *domain.Job, reason string) (time.Duration, error) {
	delay := q.RetryDelay(job.Attempts)
	now := q.opts.Now().UTC()
	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, q.processingKey(), 1, job.ID)
		pipe.HSet(ctx, q.jobKey(job.ID),
			"status", string(domain.JobRetrying),
			"last_error", reason,
			"updated_at", now.Format(time.RFC3339Nano),
		)
		pipe.ZAdd(ctx, q.delayedKey(), redis.Z{Score: float64(now.Add(delay).UnixMilli()), Member: job.ID})
		pipe.HIncrBy(ctx, q.statsKey(), "retried", 1)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("retry job %s: %w", job.ID, err)
	}
	return delay, nil
}

// RetryDelay is the wait before attempt+1, growing from RetryBase up to RetryMax.
func (q *Queue) RetryDelay(attempt int) time.Duration {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     q.opts.RetryBase,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         q.opts.RetryMax,
	}
	b.Reset()
	delay := b.NextBackOff()
	for i := 1; i < attempt; i++ {
		delay = b.NextBackOff()
	}
	return delay
}

func (q *Queue) CanRetry(job *domain.Job) bool {
	return job != nil && job.Attempts < job.MaxAttempts
}

var promoteScript = redis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
for _, id in ipairs(ids) do
  redis.call('ZREM', KEYS[1], id)
  redis.call('LPUSH', KEYS[2], id)
  redis.call('HSET', ARGV[3] .. id, 'status', 'queued')
end
return #ids
`)

// PromoteDue moves delayed jobs whose time has come back to ready.
func (q *Queue) PromoteDue(ctx context.Context, now time.Time) (int, error) {
	total := 0
	for {
		n, err := promoteScript.Run(ctx, q.client,
			[]string{q.delayedKey(), q.readyKey()},
			now.UnixMilli(), promoteBatch, q.jobPrefix(),
		).Int()
		if err != nil {
			return total, fmt.Errorf("promote delayed jobs: %w", err)
		}
		total += n
		if n < promoteBatch {
			return total, nil
		}
	}
}

// RequeueProcessing returns every claimed job to ready. It must only run
// while no worker holds a claim, i.e. at startup.
func (q *Queue) RequeueProcessing(ctx context.Context) (int, error) {
	n := 0
	for {
		id, err := q.client.LMove(ctx, q.processingKey(), q.readyKey(), "RIGHT", "RIGHT").Result()
		if errors.Is(err, redis.Nil) {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("requeue processing jobs: %w", err)
		}
		q.client.HSet(ctx, q.jobKey(id), "status", string(domain.JobQueued))
		n++
	}
}

func (q *Queue) Get(ctx context.Context, id string) (*domain.Job, error) {
	record, err := q.client.HGetAll(ctx, q.jobKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	if len(record) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	job, err := decodeJob(record)
	if err != nil && job == nil {
		return nil, err
	}
	return job, nil
}

func (q *Queue) Stats(ctx context.Context) (Stats, error) {
	pipe := q.client.Pipeline()
	ready := pipe.LLen(ctx, q.readyKey())
	processing := pipe.LLen(ctx, q.processingKey())
	delayed := pipe.ZCard(ctx, q.delayedKey())
	counters := pipe.HGetAll(ctx, q.statsKey())
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return Stats{}, fmt.Errorf("queue stats: %w", err)
	}

	c := counters.Val()
	return Stats{
		Name:       q.name,
		Ready:      ready.Val(),
		Processing: processing.Val(),
		Delayed:    delayed.Val(),
		Enqueued:   atoi64(c["enqueued"]),
		Completed:  atoi64(c["completed"]),
		Failed:     atoi64(c["failed"]),
		Retried:    atoi64(c["retried"]),
	}, nil
}

// decodeJob builds a job from its hash. On an unknown type or a corrupt
// payload it returns the partial job together with the error.
func decodeJob(record map[string]string) (*domain.Job, error) {
	job := &domain.Job{
		ID:          record["id"],
		Type:        domain.JobType(record["type"]),
		Status:      domain.JobStatus(record["status"]),
		Attempts:    int(atoi64(record["attempts"])),
		MaxAttempts: int(atoi64(record["max_attempts"])),
		EnqueuedAt:  parseTime(record["enqueued_at"]),
		UpdatedAt:   parseTime(record["updated_at"]),
		LastError:   record["last_error"],
	}
	jobType, err := domain.ParseJobType(record["type"])
	if err != nil {
		return job, err
	}
	payload, err := domain.DecodePayload(jobType, []byte(record["payload"]))
	if err != nil {
		return job, err
	}
	job.Type = jobType
	job.Payload = payload
	return job, nil
}

func atoi64(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
