package notify

import (
	"fmt"
	"strconv"
	"time"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"

	"udf_feed/internal/models"
	"udf_feed/internal/modules/config"
	"udf_feed/pkg/logger"
)

type Notifier interface {
	Send(msg string)
	Sendf(format string, args ...any)
}

// New returns a Telegram notifier when a token and chat id are configured,
// otherwise one that writes to the log.
func New(cfg *config.Config) (Notifier, error) {
	if cfg.Telegram.Token == "" || cfg.Telegram.ChatID == 0 {
		logger.Info("notify: telegram not configured, using log output")
		return NewStdout(), nil
	}
	t, err := NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID)
	if err != nil {
		return nil, errors.Wrap(err, "notify: telegram")
	}
	return t, nil
}

// Telegram posts plain text messages to one chat.
type Telegram struct {
	bot    *tgbot.BotAPI
	chatID int64
}

func NewTelegram(token string, chatID int64) (*Telegram, error) {
	b, err := tgbot.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &Telegram{bot: b, chatID: chatID}, nil
}

func (t *Telegram) Send(msg string) {
	if t == nil || t.bot == nil || t.chatID == 0 {
		return
	}
	if _, err := t.bot.Send(tgbot.NewMessage(t.chatID, msg)); err != nil {
		logger.Warn("notify: telegram send: %v", err)
	}
}

func (t *Telegram) Sendf(format string, args ...any) { t.Send(fmt.Sprintf(format, args...)) }

// Stdout writes every message to the log.
type Stdout struct{}

func NewStdout() *Stdout                           { return &Stdout{} }
func (s *Stdout) Send(msg string)                  { logger.Info("%s", msg) }
func (s *Stdout) Sendf(format string, args ...any) { logger.Info(format, args...) }

// FormatBar renders a live bar as a one-line message.
func FormatBar(symbol, resolution string, b models.Bar) string {
	return fmt.Sprintf("%s %s %s O=%s H=%s L=%s C=%s V=%s",
		symbol, resolution,
		time.UnixMilli(b.Time).UTC().Format("2006-01-02 15:04"),
		num(b.Open), num(b.High), num(b.Low), num(b.Close), num(b.Volume))
}

func num(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
