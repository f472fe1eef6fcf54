package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/trace"

	"chart-signal-bot/internal/domain"
)

type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const signalSchema = `CREATE TABLE IF NOT EXISTS signal_history (
    id          BIGSERIAL PRIMARY KEY,
    chat_id     BIGINT NOT NULL DEFAULT 0,
    symbol      TEXT NOT NULL,
    timeframe   TEXT NOT NULL,
    source      TEXT NOT NULL,
    action      TEXT NOT NULL,
    entry       TEXT NOT NULL,
    take_profit TEXT NOT NULL,
    stop_loss   TEXT NOT NULL,
    confidence  SMALLINT NOT NULL,
    notes       JSONB NOT NULL DEFAULT '[]',
    block       TEXT NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS signal_history_symbol_created_idx ON signal_history (symbol, created_at DESC);`

// SignalRepository stores accepted signals in Postgres.
type SignalRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewSignalRepository(pool PgxPool, tracer trace.Tracer) *SignalRepository {
	return &SignalRepository{pool: pool, tracer: tracer}
}

func (r *SignalRepository) RunMigrations(ctx context.Context) error {
	_, span := r.tracer.Start(ctx, "signal-repo.run-migrations")
	defer span.End()

	if _, err := r.pool.Exec(ctx, signalSchema); err != nil {
		return fmt.Errorf("migrate signal_history: %w", err)
	}
	return nil
}

func (r *SignalRepository) InsertSignal(ctx context.Context, rec domain.SignalRecord) (*domain.SignalRecord, error) {
	_, span := r.tracer.Start(ctx, "signal-repo.insert-signal")
	defer span.End()

	notes := rec.Signal.Notes
	if notes == nil {
		notes = []string{}
	}
	rawNotes, err := json.Marshal(notes)
	if err != nil {
		return nil, fmt.Errorf("encode notes: %w", err)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	rec.CreatedAt = rec.CreatedAt.UTC()

	err = r.pool.QueryRow(ctx,
		`INSERT INTO signal_history
		     (chat_id, symbol, timeframe, source, action, entry, take_profit, stop_loss, confidence, notes, block, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING id`,
		rec.ChatID,
		rec.Symbol,
		rec.Timeframe,
		rec.Source,
		string(rec.Signal.Action),
		rec.Signal.Entry,
		rec.Signal.TakeProfit,
		rec.Signal.StopLoss,
		int16(rec.Signal.Confidence),
		string(rawNotes),
		rec.Block,
		rec.CreatedAt,
	).Scan(&rec.ID)
	if err != nil {
		return nil, fmt.Errorf("insert signal: %w", err)
	}
	return &rec, nil
}

// ListSignals returns newest first. The caller bounds filter.Limit.
func (r *SignalRepository) ListSignals(ctx context.Context, filter domain.SignalFilter) ([]domain.SignalRecord, error) {
	_, span := r.tracer.Start(ctx, "signal-repo.list-signals")
	defer span.End()

	args := make([]any, 0, 4)
	var sb strings.Builder
	sb.WriteString(`SELECT id, chat_id, symbol, timeframe, source, action, entry, take_profit, stop_loss,
               confidence, notes, block, created_at
		FROM signal_history
		WHERE 1=1`)

	if filter.Symbol != "" {
		args = append(args, filter.Symbol)
		sb.WriteString(fmt.Sprintf(" AND symbol = $%d", len(args)))
	}
	if filter.Timeframe != "" {
		args = append(args, filter.Timeframe)
		sb.WriteString(fmt.Sprintf(" AND timeframe = $%d", len(args)))
	}
	if filter.Action != "" {
		args = append(args, string(filter.Action))
		sb.WriteString(fmt.Sprintf(" AND action = $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	sb.WriteString(fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args)))

	rows, err := r.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.SignalRecord, 0, limit)
	for rows.Next() {
		var rec domain.SignalRecord
		var action string
		var confidence int16
		var notes string
		var createdAt time.Time
		if err := rows.Scan(
			&rec.ID,
			&rec.ChatID,
			&rec.Symbol,
			&rec.Timeframe,
			&rec.Source,
			&action,
			&rec.Signal.Entry,
			&rec.Signal.TakeProfit,
			&rec.Signal.StopLoss,
			&confidence,
			&notes,
			&rec.Block,
			&createdAt,
		); err != nil {
			return nil, err
		}
		rec.Signal.Action = domain.Action(action)
		rec.Signal.Confidence = int(confidence)
		if notes != "" {
			if err := json.Unmarshal([]byte(notes), &rec.Signal.Notes); err != nil {
				return nil, fmt.Errorf("decode notes for signal %d: %w", rec.ID, err)
			}
		}
		rec.CreatedAt = createdAt.UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}
