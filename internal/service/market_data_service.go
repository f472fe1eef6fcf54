package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"chart-signal-bot/internal/cache"
	"chart-signal-bot/internal/domain"
	"chart-signal-bot/internal/provider"
)

const (
	defaultMarketDataTTLPeriods = 1
	defaultLookbackDays         = 5
)

// CandleProvider returns candles newest-first.
type CandleProvider interface {
	FetchCandles(ctx context.Context, symbol, interval string, start, end time.Time) (domain.CandleSeries, error)
}

type MarketDataOptions struct {
	// TTLPeriods multiplies the timeframe duration to get the cache TTL.
	TTLPeriods   int
	LookbackDays int
	Now          func() time.Time
}

type MarketDataService struct {
	tracer     trace.Tracer
	provider   CandleProvider
	cache      cache.Store
	ttlPeriods int
	lookback   time.Duration
	now        func() time.Time
}

func NewMarketDataService(tracer trace.Tracer, p CandleProvider, store cache.Store, opts MarketDataOptions) *MarketDataService {
	if opts.TTLPeriods <= 0 {
		opts.TTLPeriods = defaultMarketDataTTLPeriods
	}
	if opts.LookbackDays <= 0 {
		opts.LookbackDays = defaultLookbackDays
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &MarketDataService{
		tracer:     tracer,
		provider:   p,
		cache:      store,
		ttlPeriods: opts.TTLPeriods,
		lookback:   time.Duration(opts.LookbackDays) * 24 * time.Hour,
		now:        opts.Now,
	}
}

// GetCandles resolves a pair and timeframe to candles ordered oldest to newest.
// The cache holds the provider's newest-first order. Cache failures are logged
// and bypassed.
func (s *MarketDataService) GetCandles(ctx context.Context, symbol, timeframe string) (domain.CandleSeries, error) {
	ctx, span := s.tracer.Start(ctx, "market-data-service.get-candles")
	defer span.End()

	interval := provider.Interval(timeframe)
	key := cache.MarketDataKey(symbol, interval)
	span.SetAttributes(attribute.String("cache_key", key))

	if s.cache != nil {
		raw, ok, err := s.cache.Get(ctx, key)
		switch {
		case err != nil:
			log.Printf("market data cache read error for %s: %v", key, err)
		case ok:
			var cached domain.CandleSeries
			if err := json.Unmarshal([]byte(raw), &cached); err != nil {
				log.Printf("market data cache decode error for %s: %v", key, err)
				break
			}
			span.SetAttributes(attribute.Bool("cache_hit", true))
			return cached.Reversed(), nil
		}
	}

	end := s.now().UTC()
	series, err := s.provider.FetchCandles(ctx, symbol, interval, end.Add(-s.lookback), end)
	if err != nil {
		return nil, fmt.Errorf("fetch candles for %s %s: %w", symbol, interval, err)
	}

	if s.cache != nil && len(series) > 0 {
		if payload, err := json.Marshal(series); err != nil {
			log.Printf("market data cache encode error for %s: %v", key, err)
		} else if err := s.cache.Set(ctx, key, string(payload), s.ttl(timeframe)); err != nil {
			log.Printf("market data cache write error for %s: %v", key, err)
		}
	}

	return series.Reversed(), nil
}

func (s *MarketDataService) ttl(timeframe string) time.Duration {
	return time.Duration(s.ttlPeriods) * domain.TimeframeTTL(timeframe)
}
