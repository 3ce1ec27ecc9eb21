package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/Ainur20/weather-currency-bot/internal/config"
	"github.com/Ainur20/weather-currency-bot/internal/fetcher"
	"github.com/Ainur20/weather-currency-bot/internal/observability"
	"github.com/Ainur20/weather-currency-bot/internal/service"
	"github.com/Ainur20/weather-currency-bot/internal/storage"
	"github.com/Ainur20/weather-currency-bot/internal/telegram"
	"github.com/Ainur20/weather-currency-bot/internal/version"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newFetchers() (fetcher.CurrencyRateFetcher, fetcher.WeatherFetcher) {
	currency := fetcher.NewCurrency(fetcher.CurrencyOptions{
		BaseURL:   a.Config.Currency.BaseURL,
		Timeout:   a.Config.Currency.RequestTimeout,
		UserAgent: userAgent(),
	}, a.Logger)

	weather := fetcher.NewWeather(fetcher.WeatherOptions{
		BaseURL:   a.Config.Weather.BaseURL,
		APIKey:    a.Config.Weather.APIKey,
		Units:     a.Config.Weather.Units,
		Lang:      a.Config.Weather.Lang,
		Timeout:   a.Config.Weather.RequestTimeout,
		UserAgent: userAgent(),
	}, a.Logger)

	return currency, weather
}

func (a *App) newTelegramClient() *telegram.Client {
	return telegram.NewClient(telegram.ClientOptions{
		Token:       a.Config.Telegram.Token,
		BaseURL:     a.Config.Telegram.APIBase,
		PollTimeout: a.Config.Telegram.PollTimeout,
		UpdateLimit: a.Config.Telegram.UpdateLimit,
	}, a.Logger)
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	pool, err := storage.Connect(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool, a.Logger)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// Run executes the long-running bot loop.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if a.Config.Telegram.Token == "" {
		return errors.New("telegram.token is not configured")
	}
	if a.Config.Weather.APIKey == "" {
		return errors.New("weather.api_key is not configured")
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := store.InitSchema(ctx); err != nil {
		return err
	}

	client := a.newTelegramClient()

	me, err := client.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("telegram connectivity check: %w", err)
	}
	a.Logger.Info().Int64("bot_id", me.ID).Str("username", me.Username).Msg("connected to telegram")

	metrics := observability.NewMetrics()
	if a.Config.Metrics.Enabled {
		srv := observability.NewServer(a.Config.Metrics.Addr, store, a.Logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.Logger.Error().Err(err).Msg("metrics server failed")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.Logger.Warn().Err(err).Msg("metrics server shutdown failed")
			}
		}()
	}

	currency, weather := a.newFetchers()
	svc := service.New(client, currency, weather, store, metrics, a.Logger)
	poller := telegram.NewPoller(client, a.Logger)

	a.Logger.Info().Msg("starting update loop")
	err = poller.Run(ctx, svc.HandleUpdate)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("bot terminated with error")
		return err
	}

	a.Logger.Info().Msg("bot stopped")
	return nil
}

// InitDB creates the request-log tables if they do not exist.
func (a *App) InitDB(ctx context.Context) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := store.InitSchema(ctx); err != nil {
		return err
	}

	a.Logger.Info().Msg("schema initialized")
	return nil
}

func userAgent() string {
	return fmt.Sprintf("wcbot/%s", version.Version)
}

// StatsOptions configure the stats command.
type StatsOptions struct {
	UserID int64
}

// ExportOptions hold parameters for exporting a user's weather history.
type ExportOptions struct {
	UserID    int64
	From      *time.Time
	To        *time.Time
	CSVPath   string
	PNGPath   string
	MaxPoints int
}

// SendOptions configure the one-off send command.
type SendOptions struct {
	ChatID int64
	Text   string
}
