package mcp

import (
	"crypto/subtle"
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultMCPMaxBodyBytes int64 = 1 << 20
	defaultCallsPerMinute        = 60
)

type HTTPHandlerConfig struct {
	AuthToken       string
	RateLimitPerMin int
	MaxBodyBytes    int64
}

// httpGuard fronts the streamable transport. Checks run in order: bearer
// token, per-caller call budget, then the request body cap.
type httpGuard struct {
	token   []byte
	budget  *callBudget
	maxBody int64
	next    http.Handler
}

func wrapHTTPHandler(next http.Handler, cfg HTTPHandlerConfig) http.Handler {
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMCPMaxBodyBytes
	}
	return &httpGuard{
		token:   []byte(cfg.AuthToken),
		budget:  newCallBudget(cfg.RateLimitPerMin),
		maxBody: maxBody,
		next:    next,
	}
}

func (g *httpGuard) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	bearer, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}
	if len(g.token) == 0 || subtle.ConstantTimeCompare([]byte(bearer), g.token) != 1 {
		writeJSONError(w, http.StatusForbidden, "invalid bearer token")
		return
	}
	if wait, ok := g.budget.take(callerHost(r.RemoteAddr)); !ok {
		w.Header().Set("Retry-After", strconv.Itoa(wait))
		writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}
	if r.Body != nil {
		r.Body = http.MaxBytesReader(w, r.Body, g.maxBody)
	}
	g.next.ServeHTTP(w, r)
}

// bearerToken reports false only when the scheme is missing; an empty token
// after the scheme is returned as "" and fails the comparison.
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	return strings.TrimSpace(token), true
}

func callerHost(remoteAddr string) string {
	remoteAddr = strings.TrimSpace(remoteAddr)
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		remoteAddr = host
	}
	if remoteAddr == "" {
		return "unknown"
	}
	return remoteAddr
}

// callBudget keeps one token bucket per caller: perMin calls of burst,
// refilled continuously.
type callBudget struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	callers map[string]*rate.Limiter
	now     func() time.Time
}

func newCallBudget(perMin int) *callBudget {
	if perMin <= 0 {
		perMin = defaultCallsPerMinute
	}
	return &callBudget{
		limit:   rate.Limit(float64(perMin) / 60),
		burst:   perMin,
		callers: make(map[string]*rate.Limiter),
		now:     time.Now,
	}
}

// take spends one call for key. When none is left it returns the whole
// seconds until the next call fits.
func (b *callBudget) take(key string) (int, bool) {
	now := b.now()
	b.mu.Lock()
	lim, ok := b.callers[key]
	if !ok {
		lim = rate.NewLimiter(b.limit, b.burst)
		b.callers[key] = lim
	}
	b.mu.Unlock()

	if lim.AllowN(now, 1) {
		return 0, true
	}
	missing := 1 - lim.TokensAt(now)
	return max(1, int(math.Ceil(missing/float64(b.limit)))), false
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
