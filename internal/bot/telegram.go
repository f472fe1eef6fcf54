package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	tele "gopkg.in/telebot.v3"

	"chart-signal-bot/internal/domain"
	"chart-signal-bot/internal/job"
)

const (
	defaultPollTimeout = 10 * time.Second
	enqueueTimeout     = 5 * time.Second
)

const (
	msgWelcome        = "👋 Welcome! Send a pair and timeframe like EUR/USD 1h, or a chart screenshot."
	msgAnalyzingTrade = "⏳ Analyzing %s %s..."
	msgAnalyzingChart = "📥 Chart received. Analyzing..."
	msgServiceQueued  = "⏳ Running %s..."
	msgBroadcastQueue = "📣 Broadcast queued for %d subscriber(s)."
	msgNoSubscribers  = "No subscribers to broadcast to."
	msgAdminOnly      = "⛔ This command is for the admin only."
	msgServiceUsage   = "Usage: /service <name>. Try /service help"
	msgAdminUsage     = "Usage: /admin <service>"
	msgBroadcastUsage = "Usage: /broadcast <service>"
	msgAnnounceUsage  = "Usage: /announce <text>"
)

var ErrNoToken = errors.New("TELEGRAM_BOT_TOKEN not set")

type Enqueuer interface {
	Enqueue(ctx context.Context, payload domain.JobPayload) (string, error)
}

type SubscriberRegistry interface {
	Add(chatID int64) (bool, error)
	List() ([]int64, error)
}

type Config struct {
	Token       string
	AdminChatID int64
	PollTimeout time.Duration
}

type Deps struct {
	Queue       Enqueuer
	Subscribers SubscriberRegistry
	Notifier    *Notifier
}

// Bot owns the Telegram connection. It can be started and stopped repeatedly;
// incoming messages only enqueue jobs and acknowledge.
type Bot struct {
	cfg  Config
	deps Deps

	mu      sync.Mutex
	tb      *tele.Bot
	running bool

	newTeleBot func(tele.Settings) (*tele.Bot, error)
}

func New(cfg Config, deps Deps) *Bot {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = defaultPollTimeout
	}
	if deps.Notifier == nil {
		deps.Notifier = NewNotifier(nil)
	}
	return &Bot{cfg: cfg, deps: deps, newTeleBot: tele.NewBot}
}

func (b *Bot) Notifier() *Notifier { return b.deps.Notifier }

func (b *Bot) Running() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

// Start connects and begins long polling in the background. Starting a
// running bot is a no-op.
func (b *Bot) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		return nil
	}
	if b.cfg.Token == "" {
		return ErrNoToken
	}

	tb, err := b.build()
	if err != nil {
		return fmt.Errorf("create telegram bot: %w", err)
	}
	b.tb = tb
	b.running = true
	b.deps.Notifier.SetSender(tb)
	go tb.Start()
	log.Println("Telegram bot started")
	return nil
}

// Stop halts polling and detaches the notifier. Stopping a stopped bot is a no-op.
func (b *Bot) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.running {
		return
	}
	b.deps.Notifier.SetSender(nil)
	b.tb.Stop()
	b.tb = nil
	b.running = false
	log.Println("Telegram bot stopped")
}

func (b *Bot) build() (*tele.Bot, error) {
	tb, err := b.newTeleBot(tele.Settings{
		Token:  b.cfg.Token,
		Poller: &tele.LongPoller{Timeout: b.cfg.PollTimeout},
		OnError: func(err error, c tele.Context) {
			log.Printf("telegram handler error: %v", err)
		},
	})
	if err != nil {
		return nil, err
	}

	tb.Use(b.registerSender)
	tb.Handle("/start", func(c tele.Context) error {
		if err := c.Send(msgWelcome); err != nil {
			return err
		}
		return b.enqueueService(c, domain.UserServicePayload{ChatID: c.Chat().ID, Service: "help"}, "")
	})
	tb.Handle("/help", func(c tele.Context) error {
		return b.enqueueService(c, domain.UserServicePayload{ChatID: c.Chat().ID, Service: "help"}, "")
	})
	tb.Handle("/service", func(c tele.Context) error {
		name := strings.TrimSpace(c.Message().Payload)
		if name == "" {
			return c.Send(msgServiceUsage)
		}
		return b.enqueueService(c, domain.UserServicePayload{ChatID: c.Chat().ID, Service: name}, name)
	})
	tb.Handle("/admin", b.adminOnly(func(c tele.Context) error {
		name := strings.TrimSpace(c.Message().Payload)
		if name == "" {
			return c.Send(msgAdminUsage)
		}
		return b.enqueueService(c, domain.AdminServicePayload{ChatID: c.Chat().ID, Service: name}, name)
	}))
	tb.Handle("/broadcast", b.adminOnly(func(c tele.Context) error {
		name := strings.TrimSpace(c.Message().Payload)
		if name == "" {
			return c.Send(msgBroadcastUsage)
		}
		return b.enqueueBroadcast(c, domain.BroadcastPayload{Service: name})
	}))
	tb.Handle("/announce", b.adminOnly(func(c tele.Context) error {
		text := strings.TrimSpace(c.Message().Payload)
		if text == "" {
			return c.Send(msgAnnounceUsage)
		}
		return b.enqueueBroadcast(c, domain.BroadcastPayload{Text: text})
	}))
	tb.Handle(tele.OnPhoto, b.handlePhoto)
	tb.Handle(tele.OnText, b.handleText)
	return tb, nil
}

func (b *Bot) registerSender(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		if chat := c.Chat(); chat != nil && b.deps.Subscribers != nil {
			if _, err := b.deps.Subscribers.Add(chat.ID); err != nil {
				log.Printf("register subscriber %d: %v", chat.ID, err)
			}
		}
		return next(c)
	}
}

func (b *Bot) adminOnly(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		if b.cfg.AdminChatID == 0 || c.Chat() == nil || c.Chat().ID != b.cfg.AdminChatID {
			return c.Send(msgAdminOnly)
		}
		return next(c)
	}
}

func (b *Bot) handleText(c tele.Context) error {
	text := strings.TrimSpace(c.Text())
	if text == "" || strings.HasPrefix(text, "/") {
		return nil
	}
	symbol, timeframe, err := job.ParseTradeCommand(text)
	if err != nil {
		return c.Send(domain.MsgInvalidTrade)
	}
	if !b.enqueue(c, domain.TradePayload{ChatID: c.Chat().ID, Text: text}) {
		return c.Send(domain.MsgServiceUnavailable)
	}
	return c.Send(fmt.Sprintf(msgAnalyzingTrade, symbol, timeframe))
}

// handlePhoto queues the photo by file id. The download URL is
// resolved by the worker so the bot token never reaches the queue.
func (b *Bot) handlePhoto(c tele.Context) error {
	photo := c.Message().Photo
	if photo == nil || photo.FileID == "" {
		return nil
	}
	if !b.enqueue(c, domain.PhotoPayload{ChatID: c.Chat().ID, FileID: photo.FileID}) {
		return c.Send(domain.MsgServiceUnavailable)
	}
	return c.Send(msgAnalyzingChart)
}

// FileURL resolves a Telegram file id to its download URL. The URL embeds the
// bot token; it is only handed to the downloader and never returned in errors.
func (b *Bot) FileURL(_ context.Context, fileID string) (string, error) {
	b.mu.Lock()
	tb := b.tb
	b.mu.Unlock()
	if tb == nil {
		return "", domain.Transient(errors.New("telegram bot is not running"))
	}
	file, err := tb.FileByID(fileID)
	if err != nil {
		return "", domain.Transient(fmt.Errorf("resolve telegram file: %s", b.redact(err.Error())))
	}
	return tb.URL + "/file/bot" + tb.Token + "/" + file.FilePath, nil
}

func (b *Bot) redact(s string) string {
	if b.cfg.Token == "" {
		return s
	}
	return strings.ReplaceAll(s, b.cfg.Token, "<redacted>")
}

func (b *Bot) enqueueService(c tele.Context, payload domain.JobPayload, name string) error {
	if !b.enqueue(c, payload) {
		return c.Send(domain.MsgServiceUnavailable)
	}
	if name == "" {
		return nil
	}
	return c.Send(fmt.Sprintf(msgServiceQueued, name))
}

func (b *Bot) enqueueBroadcast(c tele.Context, payload domain.BroadcastPayload) error {
	if b.deps.Subscribers == nil {
		return c.Send(msgNoSubscribers)
	}
	ids, err := b.deps.Subscribers.List()
	if err != nil {
		log.Printf("list subscribers: %v", err)
		return c.Send(domain.MsgServiceUnavailable)
	}
	if len(ids) == 0 {
		return c.Send(msgNoSubscribers)
	}
	payload.ChatIDs = ids
	if !b.enqueue(c, payload) {
		return c.Send(domain.MsgServiceUnavailable)
	}
	return c.Send(fmt.Sprintf(msgBroadcastQueue, len(ids)))
}

func (b *Bot) enqueue(c tele.Context, payload domain.JobPayload) bool {
	if b.deps.Queue == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), enqueueTimeout)
	defer cancel()
	id, err := b.deps.Queue.Enqueue(ctx, payload)
	if err != nil {
		log.Printf("enqueue %s for chat %d: %v", payload.JobType(), c.Chat().ID, err)
		return false
	}
	log.Printf("enqueued %s job %s for chat %d", payload.JobType(), id, c.Chat().ID)
	return true
}
