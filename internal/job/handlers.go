package job

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"chart-signal-bot/internal/domain"
	"chart-signal-bot/internal/ocr"
	"chart-signal-bot/internal/service"
)

type Analyzer interface {
	Analyze(ctx context.Context, req service.AnalysisRequest) (*service.AnalysisResult, error)
}

type PhotoReader interface {
	Analyze(ctx context.Context, photo domain.PhotoPayload) (*domain.TradeInput, error)
}

type ServiceRunner interface {
	RunAdmin(ctx context.Context, name string) (string, error)
	RunUser(ctx context.Context, name string) (string, error)
}

type HandlerDeps struct {
	Signals  Analyzer
	Photos   PhotoReader
	Services ServiceRunner
	Notifier Notifier
	// BroadcastInterval paces fan-out sends to stay under chat rate limits.
	BroadcastInterval time.Duration
}

// NewHandlers returns the dispatch table covering every job type.
func NewHandlers(deps HandlerDeps) map[domain.JobType]HandlerFunc {
	h := &handlers{deps: deps}
	return map[domain.JobType]HandlerFunc{
		domain.JobTrade:          h.trade,
		domain.JobAnalyzePhoto:   h.photo,
		domain.JobAdminService:   h.adminService,
		domain.JobUserService:    h.userService,
		domain.JobAdminBroadcast: h.broadcast,
	}
}

type handlers struct {
	deps HandlerDeps
}

// ParseTradeCommand splits "SYMBOL TIMEFRAME" and normalizes both parts.
func ParseTradeCommand(text string) (string, string, error) {
	parts := strings.Fields(text)
	if len(parts) < 2 {
		return "", "", domain.InvalidInput("trade command %q needs a symbol and a timeframe", text)
	}
	symbol := ocr.NormalizeSymbol(parts[0])
	timeframe := domain.NormalizeTimeframe(parts[1])
	if symbol == "" || !domain.ValidTimeframe(timeframe) {
		return "", "", domain.InvalidInput("trade command %q", text)
	}
	return symbol, timeframe, nil
}

func (h *handlers) trade(ctx context.Context, job *domain.Job) error {
	p, ok := job.Payload.(domain.TradePayload)
	if !ok {
		return payloadMismatch(job)
	}
	symbol, timeframe, err := ParseTradeCommand(p.Text)
	if err != nil {
		return err
	}
	res, err := h.deps.Signals.Analyze(ctx, service.AnalysisRequest{
		ChatID:    p.ChatID,
		Symbol:    symbol,
		Timeframe: timeframe,
		Source:    domain.SourceText,
	})
	if err != nil {
		return err
	}
	h.notify(ctx, p.ChatID, res.Message, domain.FormatMarkdown)
	return nil
}

func (h *handlers) photo(ctx context.Context, job *domain.Job) error {
	p, ok := job.Payload.(domain.PhotoPayload)
	if !ok {
		return payloadMismatch(job)
	}
	input, err := h.deps.Photos.Analyze(ctx, p)
	if err != nil {
		return err
	}
	res, err := h.deps.Signals.Analyze(ctx, service.AnalysisRequest{
		ChatID:    p.ChatID,
		Symbol:    input.Symbol,
		Timeframe: input.Timeframe,
		Source:    domain.SourcePhoto,
		Input:     input,
	})
	if err != nil {
		return err
	}
	h.notify(ctx, p.ChatID, res.Message, domain.FormatMarkdown)
	return nil
}

func (h *handlers) adminService(ctx context.Context, job *domain.Job) error {
	p, ok := job.Payload.(domain.AdminServicePayload)
	if !ok {
		return payloadMismatch(job)
	}
	text, err := h.deps.Services.RunAdmin(ctx, p.Service)
	if err != nil {
		return err
	}
	if text != "" {
		h.notify(ctx, p.ChatID, text, domain.FormatPlain)
	}
	return nil
}

func (h *handlers) userService(ctx context.Context, job *domain.Job) error {
	p, ok := job.Payload.(domain.UserServicePayload)
	if !ok {
		return payloadMismatch(job)
	}
	text, err := h.deps.Services.RunUser(ctx, p.Service)
	if err != nil {
		return err
	}
	if text != "" {
		h.notify(ctx, p.ChatID, text, domain.FormatPlain)
	}
	return nil
}

// broadcast sends one message to every chat. A failed send is logged by the
// notifier and does not stop the fan-out.
func (h *handlers) broadcast(ctx context.Context, job *domain.Job) error {
	p, ok := job.Payload.(domain.BroadcastPayload)
	if !ok {
		return payloadMismatch(job)
	}
	text := strings.TrimSpace(p.Text)
	if text == "" {
		var err error
		if text, err = h.deps.Services.RunAdmin(ctx, p.Service); err != nil {
			return err
		}
	}
	if text == "" || len(p.ChatIDs) == 0 {
		return nil
	}

	var pace <-chan time.Time
	if h.deps.BroadcastInterval > 0 {
		ticker := time.NewTicker(h.deps.BroadcastInterval)
		defer ticker.Stop()
		pace = ticker.C
	}
	for i, chatID := range p.ChatIDs {
		if i > 0 && pace != nil {
			select {
			case <-ctx.Done():
				log.Printf("broadcast %s interrupted after %d of %d chats", job.ID, i, len(p.ChatIDs))
				return fmt.Errorf("broadcast interrupted after %d of %d chats: %w", i, len(p.ChatIDs), ctx.Err())
			case <-pace:
			}
		}
		h.notify(ctx, chatID, text, domain.FormatPlain)
	}
	return nil
}

// broadcastSendAllowance bounds a single Telegram send inside a fan-out.
const broadcastSendAllowance = time.Second

// BroadcastAllowance returns the extra run time a broadcast job needs on top
// of the base job timeout: one pacing interval plus one send per chat.
func BroadcastAllowance(interval time.Duration) func(*domain.Job) time.Duration {
	return func(job *domain.Job) time.Duration {
		p, ok := job.Payload.(domain.BroadcastPayload)
		if !ok {
			return 0
		}
		return time.Duration(len(p.ChatIDs)) * (interval + broadcastSendAllowance)
	}
}

func (h *handlers) notify(ctx context.Context, chatID int64, text string, format domain.MessageFormat) {
	if h.deps.Notifier == nil {
		return
	}
	_ = h.deps.Notifier.Notify(ctx, chatID, text, format)
}

func payloadMismatch(job *domain.Job) error {
	return fmt.Errorf("%w: payload %T does not match job type %s", domain.ErrUnsupportedJob, job.Payload, job.Type)
}
