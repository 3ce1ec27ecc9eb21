package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
)

// Stats prints aggregated request statistics for one user.
func (a *App) Stats(ctx context.Context, opts StatsOptions) error {
	if opts.UserID <= 0 {
		return errors.New("--user must be greater than zero")
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	stats := store.UserStats(ctx, opts.UserID)

	avg := "-"
	if stats.AvgTemperature != nil {
		avg = fmt.Sprintf("%.1f", *stats.AvgTemperature)
	}
	currencies := "-"
	if len(stats.Currencies) > 0 {
		currencies = strings.Join(stats.Currencies, ", ")
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "User\tWeather requests\tCurrency requests\tAvg temp (C)\tCurrencies")
	fmt.Fprintf(writer, "%d\t%d\t%d\t%s\t%s\n", opts.UserID, stats.WeatherRequests, stats.CurrencyRequests, avg, currencies)
	writer.Flush()
	return nil
}
