// Package telegram delivers DSL escalations through the Telegram Bot API and
// runs the small bot staff use to find their chat id.
package telegram

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"safeguard/backend/internal/localization"
	"safeguard/backend/internal/logger"
	"safeguard/backend/internal/models"
)

var ErrNoChatLinked = errors.New("staff member has no linked Telegram chat")

// Sender is the part of *tgbotapi.BotAPI used for delivery.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Deliverer sends stored DSL notifications to the staff member's linked chat.
type Deliverer struct {
	bot       Sender
	localizer *localization.Localizer
	logger    *zap.Logger
}

func NewDeliverer(bot Sender, l *localization.Localizer, log *zap.Logger) *Deliverer {
	return &Deliverer{bot: bot, localizer: l, logger: logger.OrNop(log)}
}

// Deliver sends the notification title, message and a button to the alert.
// The Bot API call is not cancellable, so ctx only bounds how long we wait.
func (d *Deliverer) Deliver(ctx context.Context, recipient models.StaffMember, n *models.Notification) error {
	if recipient.TelegramChatID == nil {
		return ErrNoChatLinked
	}

	msg := d.buildMessage(*recipient.TelegramChatID, n)

	done := make(chan error, 1)
	go func() {
		_, err := d.bot.Send(msg)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("telegram send to %s: %w", recipient.ID, err)
		}
		d.logger.Debug("notification delivered",
			zap.String("notification_id", n.ID),
			zap.String("recipient_id", recipient.ID),
		)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Deliverer) buildMessage(chatID int64, n *models.Notification) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(chatID, n.Title+"\n\n"+n.Message)
	if n.ActionURL != "" {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonURL(d.localizer.GetString(localization.DefaultLanguage, "delivery_action"), n.ActionURL),
			),
		)
	}
	return msg
}
