package notifiers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/Fullex26/uptimegram/internal/config"
)

const sendTimeout = 15 * time.Second

// Telegram sends notifications via the Telegram Bot API
type Telegram struct {
	bot    *tele.Bot
	chatID string
}

// NewTelegram builds the bot client without touching the network
func NewTelegram(cfg config.TelegramConfig) (*Telegram, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	bot, err := tele.NewBot(tele.Settings{
		Token:   cfg.APIKey,
		URL:     strings.TrimRight(cfg.APIURL, "/"),
		Client:  &http.Client{Timeout: sendTimeout},
		Offline: true, // skip getMe; this bot only sends
	})
	if err != nil {
		return nil, fmt.Errorf("creating telegram bot: %w", err)
	}

	return &Telegram{bot: bot, chatID: cfg.ChatID}, nil
}

func (t *Telegram) Name() string { return "telegram" }

// Send posts text as a plain message to the recipient chat
func (t *Telegram) Send(recipient, text string) error {
	_, err := t.bot.Send(chat(recipient), text, &tele.SendOptions{
		DisableWebPagePreview: true,
	})
	if err != nil {
		return fmt.Errorf("telegram send failed: %w", err)
	}
	return nil
}

// Test sends a test notification to the configured chat
func (t *Telegram) Test() error {
	return t.Send(t.chatID, "🔔 uptimegram test notification\n\nIf you see this, check events will be delivered to this chat.")
}

// chat is a recipient given as a numeric chat ID or an @channel username
type chat string

func (c chat) Recipient() string { return string(c) }
