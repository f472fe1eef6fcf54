package bot

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"unicode/utf8"

	tele "gopkg.in/telebot.v3"

	"chart-signal-bot/internal/domain"
)

const maxMessageRunes = 4096

var ErrBotStopped = errors.New("telegram bot is not running")

type messageSender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Notifier delivers job results to chats. Delivery is best effort: failures
// are logged and returned, never retried.
type Notifier struct {
	mu     sync.RWMutex
	sender messageSender
}

func NewNotifier(sender messageSender) *Notifier {
	return &Notifier{sender: sender}
}

// SetSender swaps the underlying transport. nil detaches it while the bot is stopped.
func (n *Notifier) SetSender(sender messageSender) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sender = sender
}

func (n *Notifier) current() messageSender {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.sender
}

// Notify sends text to chatID. Markdown that Telegram refuses to parse is
// resent as plain text.
func (n *Notifier) Notify(ctx context.Context, chatID int64, text string, format domain.MessageFormat) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sender := n.current()
	if sender == nil {
		log.Printf("notify chat %d skipped: %v", chatID, ErrBotStopped)
		return ErrBotStopped
	}

	text = truncate(text)
	to := &tele.Chat{ID: chatID}

	if format == domain.FormatMarkdown {
		_, err := sender.Send(to, text, tele.ModeMarkdown, tele.NoPreview)
		if err == nil {
			return nil
		}
		if !isEntityParseError(err) {
			log.Printf("notify chat %d failed: %v", chatID, err)
			return err
		}
		log.Printf("notify chat %d: markdown rejected, resending as plain text", chatID)
		text = strings.NewReplacer("*", "", "_", "").Replace(text)
	}

	if _, err := sender.Send(to, text, tele.NoPreview); err != nil {
		log.Printf("notify chat %d failed: %v", chatID, err)
		return err
	}
	return nil
}

func isEntityParseError(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "parse entities")
}

func truncate(text string) string {
	if utf8.RuneCountInString(text) <= maxMessageRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:maxMessageRunes-1]) + "…"
}
