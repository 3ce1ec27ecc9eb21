package cli

import (
	"github.com/spf13/cobra"

	"github.com/Ainur20/weather-currency-bot/internal/app"
)

var (
	sendChatID int64
	sendText   string
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send a one-off message through the bot account",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.SendOptions{
			ChatID: sendChatID,
			Text:   sendText,
		}

		return getApp().Send(cmd.Context(), opts)
	},
}

func init() {
	sendCmd.Flags().Int64Var(&sendChatID, "chat", 0, "Target chat ID")
	sendCmd.Flags().StringVar(&sendText, "text", "", "Message text")
}
