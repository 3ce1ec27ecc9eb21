package app

import (
	"context"
	"errors"
	"strings"

	"github.com/Ainur20/weather-currency-bot/internal/telegram"
)

// Send posts a one-off message through the bot account. Useful for checking
// token and chat wiring without starting the update loop.
func (a *App) Send(ctx context.Context, opts SendOptions) error {
	if a.Config.Telegram.Token == "" {
		return errors.New("telegram.token is not configured")
	}
	if opts.ChatID == 0 {
		return errors.New("--chat must be provided")
	}
	if strings.TrimSpace(opts.Text) == "" {
		return errors.New("--text must not be empty")
	}

	client := a.newTelegramClient()
	msg, err := client.SendMessage(ctx, telegram.SendMessageRequest{
		ChatID: opts.ChatID,
		Text:   opts.Text,
	})
	if err != nil {
		return err
	}

	a.Logger.Info().Int64("chat_id", opts.ChatID).Int64("message_id", msg.MessageID).Msg("message sent")
	return nil
}
