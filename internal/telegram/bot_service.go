package telegram

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"safeguard/backend/internal/localization"
	"safeguard/backend/internal/logger"
)

// BotService answers staff commands. Staff send /start to learn the chat id an
// administrator links to their directory entry; the bot never reads or stores
// anything else.
type BotService struct {
	BotAPI    *tgbotapi.BotAPI
	Localizer *localization.Localizer
	Logger    *zap.Logger
}

// NewBotService authorises against the Bot API.
func NewBotService(token string, l *localization.Localizer, log *zap.Logger) (*BotService, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	bot.Debug = false
	log = logger.OrNop(log)
	log.Info("authorized on telegram", zap.String("account", bot.Self.UserName))

	return &BotService{BotAPI: bot, Localizer: l, Logger: log}, nil
}

// Run processes updates until ctx is cancelled.
func (s *BotService) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := s.BotAPI.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			s.BotAPI.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			reply, ok := s.replyFor(update.Message)
			if !ok {
				continue
			}
			if _, err := s.BotAPI.Send(reply); err != nil {
				s.Logger.Warn("failed to answer bot command", zap.Error(err))
			}
		}
	}
}

func (s *BotService) replyFor(msg *tgbotapi.Message) (tgbotapi.MessageConfig, bool) {
	if msg == nil || !msg.IsCommand() {
		return tgbotapi.MessageConfig{}, false
	}
	switch msg.Command() {
	case "start", "chatid":
		return tgbotapi.NewMessage(msg.Chat.ID, s.Localizer.Format(localization.DefaultLanguage, "bot_chat_id", msg.Chat.ID)), true
	case "help":
		return tgbotapi.NewMessage(msg.Chat.ID, s.Localizer.GetString(localization.DefaultLanguage, "bot_help")), true
	default:
		return tgbotapi.MessageConfig{}, false
	}
}
