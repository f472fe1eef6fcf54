package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	ossignal "os/signal"
	"strings"
	"syscall"
	"time"

	"chart-signal-bot/internal/cache"
	"chart-signal-bot/internal/config"
	"chart-signal-bot/internal/db"
	mcpserver "chart-signal-bot/internal/mcp"
	"chart-signal-bot/internal/provider"
	"chart-signal-bot/internal/queue"
	"chart-signal-bot/internal/repository"
	"chart-signal-bot/internal/service"
	"chart-signal-bot/pkg/tracing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/trace"
)

const defaultMCPHTTPMaxBodyBytes int64 = 1 << 20 // 1MiB

var (
	loadEnvFunc           = godotenv.Load
	loadConfigFunc        = config.Load
	loadPromptsFunc       = config.LoadPrompts
	initPostgresFunc      = db.InitPostgres
	initRedisFunc         = cache.InitRedis
	initTracerFunc        = tracing.InitTracer
	newSignalRepoFunc     = repository.NewSignalRepository
	newMCPServerFunc      = mcpserver.NewServer
	newMCPHandlerFunc     = mcpserver.NewHTTPTransportHandler
	newCandleProviderFunc = func(tracer trace.Tracer, cfg *config.Config) service.CandleProvider {
		return provider.NewTwelveDataProvider(tracer, cfg.TwelveDataAPIKey)
	}
	newGeneratorFunc = func(tracer trace.Tracer, cfg *config.Config) service.TextGenerator {
		return provider.NewOpenAIClient(tracer, cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.SignalModel)
	}
	runStdioFunc = func(ctx context.Context, server *sdkmcp.Server) error {
		return server.Run(ctx, &sdkmcp.StdioTransport{})
	}
	startHTTPServerFunc  = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFn = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
	setupSignalNotify    = ossignal.Notify
	waitForSignalFunc    = func(quit <-chan os.Signal) { <-quit }
)

func main() {
	_ = loadEnvFunc()
	cfg := loadConfigFunc()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, tracer, err := initTracerFunc(ctx)
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			log.Printf("error shutting down tracer provider: %v", err)
		}
	}()

	redisClient, err := initRedisFunc(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	pool, err := initPostgresFunc(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	if pool != nil {
		defer pool.Close()
	}

	prompts, err := loadPromptsFunc(cfg.PromptsFile)
	if err != nil {
		log.Fatalf("failed to load prompts: %v", err)
	}
	promptBuilder, err := service.NewPromptBuilder(prompts.Signal.System, prompts.Signal.User)
	if err != nil {
		log.Fatalf("invalid signal prompt: %v", err)
	}

	store := cache.NewRedisStore(redisClient)
	marketData := service.NewMarketDataService(tracer, newCandleProviderFunc(tracer, cfg), store, service.MarketDataOptions{
		TTLPeriods:   cfg.MarketDataTTLPeriods,
		LookbackDays: cfg.MarketDataLookbackDays,
	})
	signalService := service.NewSignalService(tracer, marketData, newGeneratorFunc(tracer, cfg), store, promptBuilder, signalHistory(pool, tracer))
	jobQueue := queue.New(redisClient, cfg.QueueName, queue.Options{MaxAttempts: cfg.JobMaxAttempts})

	mcpSrv := newMCPServerFunc(tracer, signalService, jobQueue, mcpserver.ServerConfig{
		RequestTimeout: time.Duration(cfg.MCPRequestTimeoutSecs) * time.Second,
	})

	transport := strings.ToLower(strings.TrimSpace(cfg.MCPTransport))
	switch transport {
	case "", "stdio":
		if err := runStdioFunc(ctx, mcpSrv); err != nil {
			log.Fatalf("mcp stdio server failed: %v", err)
		}
	case "http":
		if err := runHTTPMode(ctx, cancel, cfg, mcpSrv); err != nil {
			log.Fatalf("mcp http server failed: %v", err)
		}
	default:
		log.Fatalf("unsupported MCP_TRANSPORT: %s", cfg.MCPTransport)
	}
}

// signalHistory reuses the table the bot server migrates; this process only reads and appends.
func signalHistory(pool *pgxpool.Pool, tracer trace.Tracer) service.SignalRepository {
	if pool == nil {
		return nil
	}
	return newSignalRepoFunc(pool, tracer)
}

func runHTTPMode(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, mcpSrv *sdkmcp.Server) error {
	if !cfg.MCPHTTPEnabled {
		return fmt.Errorf("MCP_HTTP_ENABLED must be true when MCP_TRANSPORT=http")
	}
	if strings.TrimSpace(cfg.MCPAuthToken) == "" {
		return fmt.Errorf("MCP_AUTH_TOKEN is required when MCP_TRANSPORT=http")
	}

	handler := newMCPHandlerFunc(mcpSrv, mcpserver.HTTPHandlerConfig{
		AuthToken:       cfg.MCPAuthToken,
		RateLimitPerMin: cfg.MCPRateLimitPerMin,
		MaxBodyBytes:    defaultMCPHTTPMaxBodyBytes,
	})

	addr := net.JoinHostPort(cfg.MCPHTTPBind, fmt.Sprintf("%d", cfg.MCPHTTPPort))
	srv := &http.Server{Addr: addr, Handler: handler}

	go func() {
		if err := startHTTPServerFunc(srv); err != nil && err != http.ErrServerClosed {
			log.Printf("mcp http server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFn(srv, shutdownCtx); err != nil {
		return fmt.Errorf("mcp server forced to shutdown: %w", err)
	}
	return nil
}
