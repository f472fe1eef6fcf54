package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"chart-signal-bot/internal/domain"
	"chart-signal-bot/internal/queue"
)

// ServiceFunc produces a chat message. An empty string means nothing to send.
type ServiceFunc func(ctx context.Context) (string, error)

type QueueStatsReader interface {
	Stats(ctx context.Context) (queue.Stats, error)
}

type SubscriberLister interface {
	List() ([]int64, error)
}

// Registry holds the named services reachable through admin-service,
// user-service and admin-broadcast jobs.
type Registry struct {
	tracer trace.Tracer
	admin  map[string]ServiceFunc
	user   map[string]ServiceFunc
	now    func() time.Time
}

func NewRegistry(tracer trace.Tracer, stats QueueStatsReader, subscribers SubscriberLister) *Registry {
	r := &Registry{
		tracer: tracer,
		admin:  map[string]ServiceFunc{},
		user:   map[string]ServiceFunc{},
		now:    time.Now,
	}

	r.RegisterUser("help", r.help)
	r.RegisterUser("pairs", func(context.Context) (string, error) { return pairsText, nil })
	r.RegisterUser("timeframes", func(context.Context) (string, error) {
		return "Supported timeframes: " + strings.Join(domain.SupportedTimeframes, ", "), nil
	})
	r.RegisterUser("market-hours", r.marketHours)

	r.RegisterAdmin("market-hours", r.marketHours)
	if subscribers != nil {
		r.RegisterAdmin("subscribers", func(context.Context) (string, error) {
			ids, err := subscribers.List()
			if err != nil {
				return "", fmt.Errorf("list subscribers: %w", err)
			}
			return fmt.Sprintf("Subscribers: %d", len(ids)), nil
		})
	}
	if stats != nil {
		r.RegisterAdmin("stats", func(ctx context.Context) (string, error) {
			st, err := stats.Stats(ctx)
			if err != nil {
				return "", domain.Transient(fmt.Errorf("queue stats: %w", err))
			}
			return fmt.Sprintf(
				"Queue %s\nReady: %d\nProcessing: %d\nDelayed: %d\nCompleted: %d\nFailed: %d\nRetried: %d",
				st.Name, st.Ready, st.Processing, st.Delayed, st.Completed, st.Failed, st.Retried,
			), nil
		})
	}
	return r
}

func (r *Registry) RegisterAdmin(name string, fn ServiceFunc) { r.admin[normalizeName(name)] = fn }

func (r *Registry) RegisterUser(name string, fn ServiceFunc) { r.user[normalizeName(name)] = fn }

func (r *Registry) RunAdmin(ctx context.Context, name string) (string, error) {
	return r.run(ctx, "admin", r.admin, name)
}

func (r *Registry) RunUser(ctx context.Context, name string) (string, error) {
	return r.run(ctx, "user", r.user, name)
}

func (r *Registry) AdminNames() []string { return names(r.admin) }

func (r *Registry) UserNames() []string { return names(r.user) }

func (r *Registry) run(ctx context.Context, kind string, table map[string]ServiceFunc, name string) (string, error) {
	ctx, span := r.tracer.Start(ctx, "registry.run-"+kind)
	defer span.End()
	span.SetAttributes(attribute.String("service", name))

	fn, ok := table[normalizeName(name)]
	if !ok {
		return "", domain.InvalidInput("unknown %s service %q", kind, name)
	}
	return fn(ctx)
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func names(table map[string]ServiceFunc) []string {
	out := make([]string, 0, len(table))
	for name := range table {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

const pairsText = `Popular pairs:
Forex: EUR/USD, GBP/USD, USD/JPY, AUD/USD, USD/CAD, USD/CHF, NZD/USD, EUR/JPY, GBP/JPY
Metals: XAU/USD, XAG/USD
Crypto: BTC/USD, ETH/USD, BTC/USDT, ETH/USDT`

func (r *Registry) help(context.Context) (string, error) {
	var b strings.Builder
	b.WriteString("📈 Send a pair and timeframe, e.g. EUR/USD 1h, or a chart screenshot.\n\n")
	b.WriteString("Services (/service <name>): ")
	b.WriteString(strings.Join(r.UserNames(), ", "))
	return b.String(), nil
}

type session struct {
	name       string
	open, shut int // UTC hours; shut may be smaller than open for sessions crossing midnight
}

var fxSessions = []session{
	{"Sydney", 21, 6},
	{"Tokyo", 23, 8},
	{"London", 7, 16},
	{"New York", 12, 21},
}

// marketHours reports forex session status in UTC. The market is closed from
// Friday 21:00 to Sunday 21:00 UTC.
func (r *Registry) marketHours(context.Context) (string, error) {
	now := r.now().UTC()
	var b strings.Builder
	fmt.Fprintf(&b, "🕒 Forex sessions at %s UTC\n", now.Format("Mon 15:04"))

	if fxWeekendClosed(now) {
		b.WriteString("Market closed for the weekend. Reopens Sunday 21:00 UTC.")
		return b.String(), nil
	}
	for _, s := range fxSessions {
		status := "closed"
		if s.isOpen(now.Hour()) {
			status = "open"
		}
		fmt.Fprintf(&b, "%s: %s (%02d:00-%02d:00)\n", s.name, status, s.open, s.shut)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (s session) isOpen(hour int) bool {
	if s.open < s.shut {
		return hour >= s.open && hour < s.shut
	}
	return hour >= s.open || hour < s.shut
}

func fxWeekendClosed(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday:
		return true
	case time.Friday:
		return t.Hour() >= 21
	case time.Sunday:
		return t.Hour() < 21
	}
	return false
}
