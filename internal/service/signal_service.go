package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"chart-signal-bot/internal/cache"
	"chart-signal-bot/internal/domain"
	"chart-signal-bot/internal/ocr"
	"chart-signal-bot/internal/signal"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

var ErrHistoryDisabled = errors.New("signal history is not configured")

type CandleSource interface {
	GetCandles(ctx context.Context, symbol, timeframe string) (domain.CandleSeries, error)
}

type TextGenerator interface {
	Generate(ctx context.Context, system, user string) (string, error)
}

type SignalRepository interface {
	InsertSignal(ctx context.Context, rec domain.SignalRecord) (*domain.SignalRecord, error)
	ListSignals(ctx context.Context, filter domain.SignalFilter) ([]domain.SignalRecord, error)
}

type AnalysisRequest struct {
	ChatID    int64
	Symbol    string
	Timeframe string
	Source    string
	// Input is set for screenshot analyses.
	Input *domain.TradeInput
}

type AnalysisResult struct {
	Symbol    string
	Timeframe string
	Block     string
	Message   string
	Signal    domain.Signal
	Candles   int
}

type SignalService struct {
	tracer    trace.Tracer
	candles   CandleSource
	generator TextGenerator
	cache     cache.Store
	prompts   *PromptBuilder
	history   SignalRepository
	now       func() time.Time
}

func NewSignalService(
	tracer trace.Tracer,
	candles CandleSource,
	generator TextGenerator,
	store cache.Store,
	prompts *PromptBuilder,
	history SignalRepository,
) *SignalService {
	if prompts == nil {
		prompts = DefaultPromptBuilder()
	}
	return &SignalService{
		tracer:    tracer,
		candles:   candles,
		generator: generator,
		cache:     store,
		prompts:   prompts,
		history:   history,
		now:       time.Now,
	}
}

// Generate returns raw generator text for candles ordered oldest to newest.
// Fewer than domain.MinCandles fails before any external call. Only output
// that contains an acceptable block is cached.
func (s *SignalService) Generate(ctx context.Context, symbol, timeframe string, candles domain.CandleSeries) (string, error) {
	ctx, span := s.tracer.Start(ctx, "signal-service.generate")
	defer span.End()
	span.SetAttributes(attribute.String("symbol", symbol), attribute.String("timeframe", timeframe), attribute.Int("candles", len(candles)))

	if len(candles) < domain.MinCandles {
		return "", fmt.Errorf("%w: got %d candles for %s %s, need %d", domain.ErrInsufficientData, len(candles), symbol, timeframe, domain.MinCandles)
	}

	key := cache.SignalKey(symbol, timeframe)
	if s.cache != nil {
		raw, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			log.Printf("signal cache read error for %s: %v", key, err)
		} else if ok {
			span.SetAttributes(attribute.Bool("cache_hit", true))
			return raw, nil
		}
	}

	system, user, err := s.prompts.Build(symbol, timeframe, candles)
	if err != nil {
		return "", err
	}
	raw, err := s.generator.Generate(ctx, system, user)
	if err != nil {
		return "", fmt.Errorf("generate signal for %s %s: %w", symbol, timeframe, err)
	}

	if s.cache != nil {
		if block, ok := signal.Extract(raw); ok && signal.Validate(block) {
			if err := s.cache.Set(ctx, key, raw, domain.TimeframeTTL(timeframe)); err != nil {
				log.Printf("signal cache write error for %s: %v", key, err)
			}
		}
	}
	return raw, nil
}

// Analyze runs fetch, generate, extract, validate and format for one request.
func (s *SignalService) Analyze(ctx context.Context, req AnalysisRequest) (*AnalysisResult, error) {
	ctx, span := s.tracer.Start(ctx, "signal-service.analyze")
	defer span.End()

	symbol := ocr.NormalizeSymbol(req.Symbol)
	timeframe := domain.NormalizeTimeframe(req.Timeframe)
	if symbol == "" || !domain.ValidTimeframe(timeframe) {
		return nil, domain.InvalidInput("symbol %q timeframe %q", req.Symbol, req.Timeframe)
	}
	span.SetAttributes(attribute.String("symbol", symbol), attribute.String("timeframe", timeframe))

	candles, err := s.candles.GetCandles(ctx, symbol, timeframe)
	if err != nil {
		return nil, err
	}
	raw, err := s.Generate(ctx, symbol, timeframe, candles)
	if err != nil {
		return nil, err
	}

	block, ok := signal.Extract(raw)
	if !ok {
		return nil, fmt.Errorf("%w: no signal block in generator output for %s %s", domain.ErrSignalRejected, symbol, timeframe)
	}
	if !signal.Validate(block) {
		return nil, fmt.Errorf("%w: block failed validation for %s %s", domain.ErrSignalRejected, symbol, timeframe)
	}
	parsed, err := signal.Parse(block)
	if err != nil {
		return nil, err
	}

	result := &AnalysisResult{
		Symbol:    symbol,
		Timeframe: timeframe,
		Block:     block,
		Message:   signal.Format(block, symbol, timeframe) + chartFooter(req.Input),
		Signal:    parsed,
		Candles:   len(candles),
	}
	s.record(ctx, req, result)
	return result, nil
}

func (s *SignalService) record(ctx context.Context, req AnalysisRequest, res *AnalysisResult) {
	if s.history == nil {
		return
	}
	source := req.Source
	if source == "" {
		source = domain.SourceText
	}
	_, err := s.history.InsertSignal(ctx, domain.SignalRecord{
		ChatID:    req.ChatID,
		Symbol:    res.Symbol,
		Timeframe: res.Timeframe,
		Source:    source,
		Signal:    res.Signal,
		Block:     res.Block,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		log.Printf("signal history insert error for %s %s: %v", res.Symbol, res.Timeframe, err)
	}
}

// chartFooter reports what was read from a screenshot and what was assumed.
func chartFooter(in *domain.TradeInput) string {
	if in == nil {
		return ""
	}
	var readings []string
	if in.RSI != nil {
		readings = append(readings, fmt.Sprintf("RSI %.2f", *in.RSI))
	}
	if in.MACD != nil {
		readings = append(readings, fmt.Sprintf("MACD %g", *in.MACD))
	}
	var b strings.Builder
	if len(readings) > 0 {
		b.WriteString("\n\nChart readings: " + strings.Join(readings, ", "))
	}
	switch {
	case in.SymbolDefaulted && in.TimeframeDefaulted:
		b.WriteString("\n\nPair and timeframe not found on the chart, using " + in.Symbol + " " + in.Timeframe + ".")
	case in.SymbolDefaulted:
		b.WriteString("\n\nPair not found on the chart, using " + in.Symbol + ".")
	case in.TimeframeDefaulted:
		b.WriteString("\n\nTimeframe not found on the chart, using " + in.Timeframe + ".")
	}
	return b.String()
}

func (s *SignalService) ListHistory(ctx context.Context, filter domain.SignalFilter) ([]domain.SignalRecord, error) {
	ctx, span := s.tracer.Start(ctx, "signal-service.list-history")
	defer span.End()

	if s.history == nil {
		return nil, ErrHistoryDisabled
	}

	if filter.Symbol != "" {
		filter.Symbol = ocr.NormalizeSymbol(filter.Symbol)
	}
	filter.Timeframe = domain.NormalizeTimeframe(filter.Timeframe)
	if filter.Action != "" {
		action, ok := domain.ParseAction(string(filter.Action))
		if !ok {
			return nil, domain.InvalidInput("action %q", filter.Action)
		}
		filter.Action = action
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultHistoryLimit
	}
	if filter.Limit > maxHistoryLimit {
		filter.Limit = maxHistoryLimit
	}

	return s.history.ListSignals(ctx, filter)
}
