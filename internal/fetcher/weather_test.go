package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const owmSample = `{
  "name": "Москва",
  "main": {"temp": -3.4, "feels_like": -8.1, "humidity": 84, "pressure": 1012},
  "weather": [{"description": "небольшой снег"}],
  "wind": {"speed": 4.7}
}`

func newTestWeather(baseURL string) *Weather {
	return NewWeather(WeatherOptions{
		BaseURL: baseURL,
		APIKey:  "test-key",
		Units:   "metric",
		Lang:    "ru",
		Timeout: time.Second,
	}, noopLogger())
}

func TestWeatherFetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Москва", r.URL.Query().Get("q"))
		assert.Equal(t, "test-key", r.URL.Query().Get("appid"))
		assert.Equal(t, "metric", r.URL.Query().Get("units"))
		assert.Equal(t, "ru", r.URL.Query().Get("lang"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(owmSample))
	}))
	defer srv.Close()

	snap, err := newTestWeather(srv.URL).FetchWeather(context.Background(), "Москва")
	require.NoError(t, err)

	assert.Equal(t, "Москва", snap.City)
	assert.Equal(t, -3.4, snap.Temperature)
	assert.Equal(t, -8.1, snap.FeelsLike)
	assert.Equal(t, "небольшой снег", snap.Description)
	assert.Equal(t, 84, snap.Humidity)
	assert.Equal(t, 4.7, snap.WindSpeed)
	assert.Equal(t, 1012, snap.Pressure)
}

func TestWeatherFetchCityNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"cod": "404", "message": "city not found"}`))
	}))
	defer srv.Close()

	_, err := newTestWeather(srv.URL).FetchWeather(context.Background(), "Нетакогогорода")
	require.ErrorIs(t, err, ErrCityNotFound)
}

func TestWeatherFetchEmptyCity(t *testing.T) {
	_, err := newTestWeather("http://localhost:1").FetchWeather(context.Background(), "  ")
	require.ErrorIs(t, err, ErrCityNotFound)
}

func TestWeatherFetchProviderStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"cod": 401, "message": "Invalid API key"}`))
	}))
	defer srv.Close()

	_, err := newTestWeather(srv.URL).FetchWeather(context.Background(), "Москва")
	require.ErrorIs(t, err, ErrProviderStatus)
}

func TestWeatherFetchUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, err := newTestWeather(srv.URL).FetchWeather(context.Background(), "Москва")
	require.ErrorIs(t, err, ErrProviderUnreachable)
}

func TestWeatherFetchTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	f := NewWeather(WeatherOptions{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		Timeout: 50 * time.Millisecond,
	}, noopLogger())

	_, err := f.FetchWeather(context.Background(), "Москва")
	require.ErrorIs(t, err, ErrProviderUnreachable)
}

func TestWeatherFetchMissingAPIKey(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = w.Write([]byte(owmSample))
	}))
	defer srv.Close()

	f := NewWeather(WeatherOptions{BaseURL: srv.URL}, noopLogger())

	_, err := f.FetchWeather(context.Background(), "Москва")
	require.ErrorIs(t, err, ErrNotConfigured)
	assert.Zero(t, hits)
}

func TestWeatherFetchMissingBlocks(t *testing.T) {
	cases := map[string]string{
		"no main":    `{"name": "Москва", "weather": [{"description": "ясно"}]}`,
		"no weather": `{"name": "Москва", "main": {"temp": 1.0, "feels_like": -1.0}}`,
		"no temp":    `{"name": "Москва", "main": {"feels_like": -1.0}, "weather": [{"description": "ясно"}]}`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			}))
			defer srv.Close()

			_, err := newTestWeather(srv.URL).FetchWeather(context.Background(), "Москва")
			require.ErrorIs(t, err, ErrMalformedResponse)
		})
	}
}

func TestWeatherFetchDefaults(t *testing.T) {
	// Zero temperature is a valid reading; optional fields fall back to zero
	// values and the description placeholder.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"name": "", "main": {"temp": 0, "feels_like": -1.2}, "weather": [{"description": ""}]}`))
	}))
	defer srv.Close()

	snap, err := newTestWeather(srv.URL).FetchWeather(context.Background(), "Мурманск")
	require.NoError(t, err)

	assert.Equal(t, "Мурманск", snap.City)
	assert.Equal(t, 0.0, snap.Temperature)
	assert.Equal(t, -1.2, snap.FeelsLike)
	assert.Equal(t, unknownDescription, snap.Description)
	assert.Equal(t, 0, snap.Humidity)
	assert.Equal(t, 0.0, snap.WindSpeed)
	assert.Equal(t, 0, snap.Pressure)
}
