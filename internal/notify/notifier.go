package notify

import (
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"
)

// Sender delivers one message to one Telegram chat. The jobs depend on
// this rather than the bot itself.
type Sender interface {
	Send(chatID string, text string) error
}

// Notifier sends lifecycle alerts through the bot. It holds its own bot
// instance configured without a poller; it only ever sends.
type Notifier struct {
	bot *tele.Bot
	log *zap.Logger
}

func New(token string, log *zap.Logger) (*Notifier, error) {
	bot, err := tele.NewBot(tele.Settings{
		Token: token,
		OnError: func(err error, c tele.Context) {
			log.Warn("telebot error", zap.Error(err))
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	return &Notifier{bot: bot, log: log}, nil
}

// Send delivers a plain text message to the chat.
func (n *Notifier) Send(chatID string, text string) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return fmt.Errorf("malformed chat id %q: %w", chatID, err)
	}
	_, err = n.bot.Send(tele.ChatID(id), text, tele.ModeHTML)
	return err
}

// ExpiryWarning is the message for a subscription expiring soon.
func ExpiryWarning(shortID, serverLabel string, expiry time.Time) string {
	days := int(time.Until(expiry).Hours() / 24)
	if days < 0 {
		days = 0
	}
	return fmt.Sprintf(
		"⏳ Subscription <code>%s</code> on %s expires in %d day(s).\nRenew it to keep your access.",
		shortID, serverLabel, days)
}

// ExpiredNotice is the message for a subscription that just lapsed.
func ExpiredNotice(shortID, serverLabel string) string {
	return fmt.Sprintf(
		"❌ Subscription <code>%s</code> on %s has expired.\nIt will be removed soon unless renewed.",
		shortID, serverLabel)
}

// TrafficWarning is the 80%% tier message.
func TrafficWarning(shortID string, usedPercent int) string {
	return fmt.Sprintf(
		"⚠️ Subscription <code>%s</code> has used %d%% of its traffic.",
		shortID, usedPercent)
}

// TrafficCritical is the 95%% tier message.
func TrafficCritical(shortID string, usedPercent int) string {
	return fmt.Sprintf(
		"🔴 Subscription <code>%s</code> has used %d%% of its traffic.\nTop up or reset before it runs out.",
		shortID, usedPercent)
}
