package main

import (
	"context"
	"log"
	"net/http"
	"os"
	ossignal "os/signal"
	"sync"
	"syscall"
	"time"

	"chart-signal-bot/internal/bot"
	"chart-signal-bot/internal/cache"
	"chart-signal-bot/internal/config"
	"chart-signal-bot/internal/db"
	"chart-signal-bot/internal/handler"
	"chart-signal-bot/internal/job"
	"chart-signal-bot/internal/ocr"
	"chart-signal-bot/internal/provider"
	"chart-signal-bot/internal/queue"
	"chart-signal-bot/internal/repository"
	"chart-signal-bot/internal/service"
	"chart-signal-bot/internal/tui"
	"chart-signal-bot/pkg/tracing"

	"github.com/charmbracelet/ssh"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"

	_ "chart-signal-bot/docs"
)

const broadcastPacing = 50 * time.Millisecond

var (
	loadEnvFunc            = godotenv.Load
	loadConfigFunc         = config.Load
	loadPromptsFunc        = config.LoadPrompts
	initPostgresFunc       = db.InitPostgres
	initRedisFunc          = cache.InitRedis
	initTracerFunc         = tracing.InitTracer
	newSignalRepoFunc      = repository.NewSignalRepository
	newSubscriberStoreFunc = repository.NewSubscriberStore
	newCandleProviderFunc  = func(tracer trace.Tracer, cfg *config.Config) service.CandleProvider {
		return provider.NewTwelveDataProvider(tracer, cfg.TwelveDataAPIKey)
	}
	newGeneratorFunc = func(tracer trace.Tracer, cfg *config.Config) service.TextGenerator {
		return provider.NewOpenAIClient(tracer, cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.SignalModel)
	}
	newRecognizerFunc = func(tracer trace.Tracer, cfg *config.Config, instruction string) ocr.Recognizer {
		return provider.NewVisionRecognizer(tracer, cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OCRModel, instruction)
	}
	newBotFunc             = bot.New
	startBotFunc           = func(b *bot.Bot) error { return b.Start() }
	startWorkersFunc       = func(p *job.WorkerPool, ctx context.Context) { p.Start(ctx) }
	startMaintenanceFunc   = func(m *job.QueueMaintenance, ctx context.Context) { m.Start(ctx) }
	startSchedulerFunc     = func(s *job.BroadcastScheduler, ctx context.Context) { s.Start(ctx) }
	newHandlerFunc         = handler.New
	newRouterFunc          = gin.Default
	setupSignalNotify      = ossignal.Notify
	waitForSignalFunc      = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
	newSSHServerFunc       = tui.NewSSHServer
	startSSHServerFunc     = func(srv *ssh.Server) error { return srv.ListenAndServe() }
	shutdownSSHServerFunc  = func(srv *ssh.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
)

// @title           Chart Signal Bot API
// @version         1.0
// @description     Admin and status endpoints of the Telegram chart signal bot.

// @host      localhost:8080
// @BasePath  /
func main() {
	_ = loadEnvFunc()

	cfg := loadConfigFunc()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init tracing
	tp, tracer, err := initTracerFunc(ctx)
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			log.Printf("error shutting down tracer provider: %v", err)
		}
	}()

	// Redis backs both the queue and the caches; Postgres is optional history.
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
	history := signalHistory(ctx, pool, tracer)

	prompts, err := loadPromptsFunc(cfg.PromptsFile)
	if err != nil {
		log.Fatalf("failed to load prompts: %v", err)
	}
	promptBuilder, err := service.NewPromptBuilder(prompts.Signal.System, prompts.Signal.User)
	if err != nil {
		log.Fatalf("invalid signal prompt: %v", err)
	}

	subscribers := newSubscriberStoreFunc(cfg.StorageFile)
	if err := subscribers.Load(); err != nil {
		log.Printf("subscriber store load error: %v", err)
	}

	jobQueue := queue.New(redisClient, cfg.QueueName, queue.Options{MaxAttempts: cfg.JobMaxAttempts})

	// Services
	store := cache.NewRedisStore(redisClient)
	marketData := service.NewMarketDataService(tracer, newCandleProviderFunc(tracer, cfg), store, service.MarketDataOptions{
		TTLPeriods:   cfg.MarketDataTTLPeriods,
		LookbackDays: cfg.MarketDataLookbackDays,
	})
	signalService := service.NewSignalService(tracer, marketData, newGeneratorFunc(tracer, cfg), store, promptBuilder, history)
	registry := service.NewRegistry(tracer, jobQueue, subscribers)
	photos := ocr.NewPipeline(tracer, newRecognizerFunc(tracer, cfg, prompts.OCR.Instruction), cfg.DownloadDir, nil)

	// Telegram bot
	notifier := bot.NewNotifier(nil)
	telegram := newBotFunc(bot.Config{
		Token:       cfg.TelegramBotToken,
		AdminChatID: cfg.AdminChatID,
	}, bot.Deps{
		Queue:       jobQueue,
		Subscribers: subscribers,
		Notifier:    notifier,
	})
	photos.SetFileResolver(telegram)
	if cfg.TelegramBotToken != "" {
		if err := startBotFunc(telegram); err != nil {
			log.Printf("failed to start telegram bot: %v", err)
		}
	}

	// Background work (stopped by ctx cancel)
	handlers := job.NewHandlers(job.HandlerDeps{
		Signals:           signalService,
		Photos:            photos,
		Services:          registry,
		Notifier:          notifier,
		BroadcastInterval: broadcastPacing,
	})
	workers := job.NewWorkerPool(tracer, jobQueue, notifier, handlers, job.WorkerOptions{
		Workers:    cfg.QueueWorkers,
		JobTimeout: time.Duration(cfg.JobTimeoutSecs) * time.Second,
		ExtraTime:  job.BroadcastAllowance(broadcastPacing),
	})
	maintenance := job.NewQueueMaintenance(tracer, jobQueue, 0)
	maintenance.Recover(ctx)

	var background sync.WaitGroup
	runBackground := func(fn func()) {
		background.Add(1)
		go func() {
			defer background.Done()
			fn()
		}()
	}
	runBackground(func() { startWorkersFunc(workers, ctx) })
	runBackground(func() { startMaintenanceFunc(maintenance, ctx) })

	scheduler, err := job.NewBroadcastScheduler(tracer, jobQueue, subscribers, cfg.BroadcastCron, cfg.BroadcastService)
	if err != nil {
		log.Printf("broadcast scheduler disabled: %v", err)
	} else {
		runBackground(func() { startSchedulerFunc(scheduler, ctx) })
	}

	// Create handlers and routes
	h := newHandlerFunc(tracer, telegram, jobQueue, signalService, cfg.AdminCode)

	r := newRouterFunc()
	r.Use(otelgin.Middleware("chart-signal-bot"))
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodGet},
		AllowHeaders:    []string{"Origin", "Content-Type", "X-Admin-Code"},
		MaxAge:          12 * time.Hour,
	}))

	h.RegisterRoutes(r)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	go func() {
		if err := startHTTPServerFunc(srv); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// Operator console over SSH
	var console *ssh.Server
	if cfg.SSHAddr != "" {
		console, err = newSSHServerFunc(tui.ServerConfig{
			Addr:               cfg.SSHAddr,
			HostKeyPath:        cfg.SSHHostKeyPath,
			AuthorizedKeysFile: cfg.SSHAuthorizedKeysFile,
			Password:           cfg.AdminCode,
		}, tui.Services{
			Queue:       jobQueue,
			Signals:     signalService,
			Analyzer:    signalService,
			Subscribers: subscribers,
			Bot:         telegram,
		})
		if err != nil {
			log.Printf("ssh console disabled: %v", err)
			console = nil
		} else {
			go func() {
				log.Printf("ssh console listening on %s", cfg.SSHAddr)
				if err := startSSHServerFunc(console); err != nil && err != ssh.ErrServerClosed {
					log.Printf("ssh console stopped: %v", err)
				}
			}()
		}
	}

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Println("Shutting down server...")

	telegram.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	if console != nil {
		if err := shutdownSSHServerFunc(console, shutdownCtx); err != nil {
			log.Printf("ssh console forced to shutdown: %v", err)
		}
	}
	background.Wait()

	log.Println("Server exiting")
}

// signalHistory returns a nil interface when Postgres is not configured.
func signalHistory(ctx context.Context, pool *pgxpool.Pool, tracer trace.Tracer) service.SignalRepository {
	if pool == nil {
		return nil
	}
	repo := newSignalRepoFunc(pool, tracer)
	if err := repo.RunMigrations(ctx); err != nil {
		log.Fatalf("failed to run signal migrations: %v", err)
	}
	return repo
}
