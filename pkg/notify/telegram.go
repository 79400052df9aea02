package notify

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
)

// TelegramSender delivers plain text messages through the Bot API.
type TelegramSender struct {
	bot *bot.Bot
}

// NewTelegramSender builds a sender that never polls for updates. Extra
// options are passed to the bot client.
func NewTelegramSender(token string, opts ...bot.Option) (*TelegramSender, error) {
	opts = append([]bot.Option{bot.WithSkipGetMe()}, opts...)
	b, err := bot.New(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &TelegramSender{bot: b}, nil
}

func (s *TelegramSender) SendMessage(ctx context.Context, chatID int64, text string) error {
	_, err := s.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	return err
}
