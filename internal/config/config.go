package config

import (
	"log"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	TelegramBotToken string
	AdminChatID      int64
	AdminCode        string
	RedisURL         string
	DatabaseURL      string
	HTTPAddr         string

	OpenAIAPIKey     string
	OpenAIBaseURL    string
	SignalModel      string
	OCRModel         string
	TwelveDataAPIKey string

	QueueName      string
	QueueWorkers   int
	JobMaxAttempts int
	JobTimeoutSecs int

	MarketDataTTLPeriods   int
	MarketDataLookbackDays int

	StorageFile      string
	DownloadDir      string
	PromptsFile      string
	BroadcastCron    string
	BroadcastService string

	MCPTransport          string
	MCPHTTPEnabled        bool
	MCPHTTPBind           string
	MCPHTTPPort           int
	MCPAuthToken          string
	MCPRequestTimeoutSecs int
	MCPRateLimitPerMin    int

	SSHAddr               string
	SSHHostKeyPath        string
	SSHAuthorizedKeysFile string
}

func Load() *Config {
	cfg := &Config{
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		AdminCode:        strings.TrimSpace(os.Getenv("ADMIN_CODE")),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
		MCPAuthToken:     os.Getenv("MCP_AUTH_TOKEN"),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:    strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")),
		TwelveDataAPIKey: os.Getenv("TWELVE_DATA_API_KEY"),
		PromptsFile:      strings.TrimSpace(os.Getenv("PROMPTS_FILE")),
		BroadcastCron:    strings.TrimSpace(os.Getenv("BROADCAST_CRON")),
	}

	if cfg.TelegramBotToken == "" {
		log.Println("Warning: TELEGRAM_BOT_TOKEN not set, bot will be disabled")
	}
	if cfg.DatabaseURL == "" {
		log.Println("Warning: DATABASE_URL not set, signal history will be disabled")
	}
	if cfg.RedisURL == "" {
		log.Println("Warning: REDIS_URL not set, defaulting to localhost:6379")
		cfg.RedisURL = "localhost:6379"
	}
	if cfg.OpenAIAPIKey == "" {
		log.Println("Warning: OPENAI_API_KEY not set, signal generation will fail")
	}
	if cfg.TwelveDataAPIKey == "" {
		log.Println("Warning: TWELVE_DATA_API_KEY not set, market data requests will fail")
	}
	if cfg.AdminCode == "" {
		log.Println("Warning: ADMIN_CODE not set, admin HTTP endpoints will reject every request")
	}

	if v := strings.TrimSpace(os.Getenv("ADMIN_CHAT_ID")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.AdminChatID = n
		} else {
			log.Printf("Warning: invalid ADMIN_CHAT_ID=%q, admin commands disabled", v)
		}
	}

	cfg.HTTPAddr = ":8080"
	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		if strings.HasPrefix(v, ":") {
			cfg.HTTPAddr = v
		} else {
			cfg.HTTPAddr = ":" + v
		}
	}

	cfg.SignalModel = stringEnv("SIGNAL_MODEL", "deepseek/deepseek-v3.2")
	cfg.OCRModel = stringEnv("OCR_MODEL", "gpt-4o-mini")
	cfg.QueueName = stringEnv("QUEUE_NAME", "analyze")
	cfg.StorageFile = stringEnv("STORAGE_FILE", "./storage.json")
	cfg.DownloadDir = stringEnv("DOWNLOAD_DIR", os.TempDir())
	cfg.BroadcastService = stringEnv("BROADCAST_SERVICE", "market-hours")

	cfg.QueueWorkers = positiveIntEnv("QUEUE_WORKERS", 4)
	cfg.JobMaxAttempts = positiveIntEnv("JOB_MAX_ATTEMPTS", 3)
	cfg.JobTimeoutSecs = positiveIntEnv("JOB_TIMEOUT_SECS", 30)
	cfg.MarketDataTTLPeriods = positiveIntEnv("MARKET_DATA_TTL_PERIODS", 1)
	cfg.MarketDataLookbackDays = positiveIntEnv("MARKET_DATA_LOOKBACK_DAYS", 5)

	cfg.MCPTransport = strings.ToLower(strings.TrimSpace(os.Getenv("MCP_TRANSPORT")))
	if cfg.MCPTransport == "" {
		cfg.MCPTransport = "stdio"
	}
	if cfg.MCPTransport != "stdio" && cfg.MCPTransport != "http" {
		log.Printf("Warning: unsupported MCP_TRANSPORT=%q, defaulting to stdio", cfg.MCPTransport)
		cfg.MCPTransport = "stdio"
	}
	cfg.MCPHTTPEnabled = strings.EqualFold(strings.TrimSpace(os.Getenv("MCP_HTTP_ENABLED")), "true")
	cfg.MCPHTTPBind = stringEnv("MCP_HTTP_BIND", "127.0.0.1")
	cfg.MCPHTTPPort = positiveIntEnv("MCP_HTTP_PORT", 8090)
	cfg.MCPRequestTimeoutSecs = positiveIntEnv("MCP_REQUEST_TIMEOUT_SECS", 60)
	cfg.MCPRateLimitPerMin = positiveIntEnv("MCP_RATE_LIMIT_PER_MIN", 60)

	cfg.SSHAddr = strings.TrimSpace(os.Getenv("SSH_ADDR"))
	cfg.SSHHostKeyPath = stringEnv("SSH_HOST_KEY_PATH", ".ssh/console_ed25519")
	cfg.SSHAuthorizedKeysFile = strings.TrimSpace(os.Getenv("SSH_AUTHORIZED_KEYS"))

	return cfg
}

func stringEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func positiveIntEnv(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Printf("Warning: invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}
