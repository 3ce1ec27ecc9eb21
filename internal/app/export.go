package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"github.com/Ainur20/weather-currency-bot/internal/storage"
)

// Export windows default to the most recent month of history.
const defaultExportWindow = 30 * 24 * time.Hour

// Upper bound on rows fetched per export; downsampling trims the rest.
const exportFetchCap = 100000

// Export renders a user's weather-request history as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.UserID <= 0 {
		return errors.New("--user must be greater than zero")
	}
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}

	from := to.Add(-defaultExportWindow)
	if opts.From != nil {
		from = opts.From.UTC()
	}

	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	records, err := store.ListWeatherRecords(ctx, opts.UserID, from, to, exportFetchCap)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		a.Logger.Info().Int64("user_id", opts.UserID).Msg("no weather requests found for export window")
		return nil
	}

	downsampled := downsampleRecords(records, opts.MaxPoints)
	a.Logger.Info().Int("total", len(records)).Int("exported", len(downsampled)).Msg("exporting weather requests")

	if opts.CSVPath != "" {
		if err := writeRecordsCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeRecordsPNG(opts.PNGPath, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func downsampleRecords(records []storage.WeatherRequestRecord, max int) []storage.WeatherRequestRecord {
	if max <= 0 || len(records) <= max {
		return records
	}
	// A single slot keeps the newest reading; the stride below needs max >= 2.
	if max == 1 {
		return records[len(records)-1:]
	}

	result := make([]storage.WeatherRequestRecord, 0, max)
	step := float64(len(records)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(records) {
			idx = len(records) - 1
		}
		result = append(result, records[idx])
	}
	return result
}

func writeRecordsCSV(path string, records []storage.WeatherRequestRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"request_time", "city", "temperature_c", "description", "username"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, rec := range records {
		temp := ""
		if rec.Temperature != nil {
			temp = fmt.Sprintf("%.1f", *rec.Temperature)
		}
		username := ""
		if rec.Username != nil {
			username = *rec.Username
		}
		row := []string{
			rec.RequestTime.UTC().Format(time.RFC3339),
			rec.City,
			temp,
			rec.Description,
			username,
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeRecordsPNG(path string, records []storage.WeatherRequestRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, 0, len(records))
	temps := make([]float64, 0, len(records))
	for _, rec := range records {
		if rec.Temperature == nil {
			continue
		}
		x = append(x, rec.RequestTime)
		temps = append(temps, *rec.Temperature)
	}
	if len(x) == 0 {
		return errors.New("no temperature readings to plot")
	}

	tempFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.1f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Temperature (C)",
			ValueFormatter: tempFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Temperature",
				XValues: x,
				YValues: temps,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
