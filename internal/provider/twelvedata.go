package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"chart-signal-bot/internal/domain"
)

const (
	twelveDataBaseURL = "https://api.twelvedata.com"
	twelveDataTimeFmt = "2006-01-02 15:04:05"
)

type TwelveDataProvider struct {
	tracer     trace.Tracer
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewTwelveDataProvider(tracer trace.Tracer, apiKey string) *TwelveDataProvider {
	return NewTwelveDataProviderWithClient(tracer, apiKey, twelveDataBaseURL, &http.Client{Timeout: 15 * time.Second})
}

func NewTwelveDataProviderWithClient(tracer trace.Tracer, apiKey, baseURL string, client *http.Client) *TwelveDataProvider {
	if client == nil {
		client = http.DefaultClient
	}
	return &TwelveDataProvider{
		tracer:     tracer,
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
	}
}

type twelveDataValue struct {
	Datetime string          `json:"datetime"`
	Open     decimal.Decimal `json:"open"`
	High     decimal.Decimal `json:"high"`
	Low      decimal.Decimal `json:"low"`
	Close    decimal.Decimal `json:"close"`
}

type twelveDataResponse struct {
	Status  string            `json:"status"`
	Code    int               `json:"code"`
	Message string            `json:"message"`
	Values  []twelveDataValue `json:"values"`
}

// Interval maps a bot timeframe (15m, 1h, 1d, 1w) to the provider's interval name.
func Interval(timeframe string) string {
	tf := domain.NormalizeTimeframe(timeframe)
	switch {
	case strings.HasSuffix(tf, "mn"):
		return strings.TrimSuffix(tf, "mn") + "month"
	case strings.HasSuffix(tf, "m"):
		return strings.TrimSuffix(tf, "m") + "min"
	case strings.HasSuffix(tf, "d"):
		return strings.TrimSuffix(tf, "d") + "day"
	case strings.HasSuffix(tf, "w"):
		return strings.TrimSuffix(tf, "w") + "week"
	}
	return tf
}

// FetchCandles returns candles newest-first, as the API orders them.
func (p *TwelveDataProvider) FetchCandles(ctx context.Context, symbol, interval string, start, end time.Time) (domain.CandleSeries, error) {
	ctx, span := p.tracer.Start(ctx, "twelve-data.fetch-candles")
	defer span.End()
	span.SetAttributes(attribute.String("symbol", symbol), attribute.String("interval", interval))

	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	q.Set("start_date", start.UTC().Format(twelveDataTimeFmt))
	q.Set("end_date", end.UTC().Format(twelveDataTimeFmt))
	q.Set("timezone", "UTC")
	q.Set("apikey", p.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/time_series?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build twelve data request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, domain.Transient(fmt.Errorf("twelve data request: %w", err))
	}
	defer resp.Body.Close()

	if err := classifyStatus("twelve data", resp.StatusCode, ""); err != nil {
		return nil, err
	}

	var body twelveDataResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, domain.Transient(fmt.Errorf("decode twelve data response: %w", err))
	}
	if strings.EqualFold(body.Status, "error") {
		return nil, classifyStatus("twelve data", body.Code, body.Message)
	}

	series := make(domain.CandleSeries, 0, len(body.Values))
	for _, v := range body.Values {
		series = append(series, domain.Candle{
			Datetime: v.Datetime,
			Open:     v.Open,
			High:     v.High,
			Low:      v.Low,
			Close:    v.Close,
		})
	}
	span.SetAttributes(attribute.Int("candles", len(series)))
	return series, nil
}

// classifyStatus maps an HTTP-style status to the error taxonomy. It returns
// nil for 2xx codes. Auth and plan failures are terminal but not the user's fault.
func classifyStatus(source string, code int, message string) error {
	if code >= 200 && code < 300 {
		return nil
	}
	detail := fmt.Sprintf("%s status %d", source, code)
	if message != "" {
		detail += ": " + message
	}
	switch {
	case code == http.StatusTooManyRequests || code >= 500 || code == 0:
		return domain.Transient(errors.New(detail))
	case code == http.StatusBadRequest || code == http.StatusNotFound:
		return domain.InvalidInput("%s", detail)
	default:
		return errors.New(detail)
	}
}
