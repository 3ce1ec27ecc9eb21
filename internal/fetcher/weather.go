package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// unknownDescription stands in when the provider omits a textual summary.
const unknownDescription = "неизвестно"

// WeatherOptions parameterise the OpenWeatherMap fetcher.
type WeatherOptions struct {
	BaseURL   string
	APIKey    string
	Units     string
	Lang      string
	Timeout   time.Duration
	UserAgent string
}

// Weather fetches current conditions from OpenWeatherMap.
type Weather struct {
	opts    WeatherOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewWeather constructs a weather fetcher.
func NewWeather(opts WeatherOptions, logger zerolog.Logger) *Weather {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openweathermap.org/data/2.5/weather"
	}

	return &Weather{
		opts:    opts,
		logger:  logger.With().Str("component", "weather_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

type owmResponse struct {
	Name string `json:"name"`
	Main *struct {
		Temp      *float64 `json:"temp"`
		FeelsLike *float64 `json:"feels_like"`
		Humidity  int      `json:"humidity"`
		Pressure  int      `json:"pressure"`
	} `json:"main"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
}

// FetchWeather retrieves current conditions for a city.
func (w *Weather) FetchWeather(ctx context.Context, city string) (WeatherSnapshot, error) {
	if strings.TrimSpace(w.opts.APIKey) == "" {
		return WeatherSnapshot{}, fmt.Errorf("%w: weather api_key is empty", ErrNotConfigured)
	}

	city = strings.TrimSpace(city)
	if city == "" {
		return WeatherSnapshot{}, fmt.Errorf("%w: empty city", ErrCityNotFound)
	}

	params := url.Values{}
	params.Set("q", city)
	params.Set("appid", w.opts.APIKey)
	if w.opts.Units != "" {
		params.Set("units", w.opts.Units)
	}
	if w.opts.Lang != "" {
		params.Set("lang", w.opts.Lang)
	}

	endpoint := w.baseURL + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return WeatherSnapshot{}, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(w.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return WeatherSnapshot{}, fmt.Errorf("%w: %v", ErrProviderUnreachable, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return WeatherSnapshot{}, fmt.Errorf("%w: %v", ErrProviderUnreachable, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return WeatherSnapshot{}, fmt.Errorf("%w: %s", ErrCityNotFound, city)
	case resp.StatusCode != http.StatusOK:
		return WeatherSnapshot{}, fmt.Errorf("%w: openweathermap responded %d", ErrProviderStatus, resp.StatusCode)
	}

	var body owmResponse
	if err := json.Unmarshal(payload, &body); err != nil {
		return WeatherSnapshot{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if body.Main == nil || len(body.Weather) == 0 {
		return WeatherSnapshot{}, fmt.Errorf("%w: missing main or weather block", ErrMalformedResponse)
	}
	if body.Main.Temp == nil || body.Main.FeelsLike == nil {
		return WeatherSnapshot{}, fmt.Errorf("%w: missing temperature readings", ErrMalformedResponse)
	}

	name := strings.TrimSpace(body.Name)
	if name == "" {
		name = city
	}

	description := strings.TrimSpace(body.Weather[0].Description)
	if description == "" {
		description = unknownDescription
	}

	snapshot := WeatherSnapshot{
		City:        name,
		Temperature: *body.Main.Temp,
		FeelsLike:   *body.Main.FeelsLike,
		Description: description,
		Humidity:    body.Main.Humidity,
		WindSpeed:   body.Wind.Speed,
		Pressure:    body.Main.Pressure,
	}

	w.logger.Debug().
		Str("city", snapshot.City).
		Float64("temp", snapshot.Temperature).
		Msg("fetched weather snapshot")

	return snapshot, nil
}

var _ WeatherFetcher = (*Weather)(nil)
