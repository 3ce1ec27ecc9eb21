package cli

import (
	"github.com/spf13/cobra"

	"github.com/Ainur20/weather-currency-bot/internal/app"
)

var (
	statsUser int64
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Display request statistics for a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.StatsOptions{
			UserID: statsUser,
		}

		return getApp().Stats(cmd.Context(), opts)
	},
}

func init() {
	statsCmd.Flags().Int64Var(&statsUser, "user", 0, "Telegram user ID")
}
