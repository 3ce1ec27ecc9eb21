package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ainur20/weather-currency-bot/internal/fetcher"
	"github.com/Ainur20/weather-currency-bot/internal/observability"
	"github.com/Ainur20/weather-currency-bot/internal/storage"
	"github.com/Ainur20/weather-currency-bot/internal/telegram"
)

type fakeSender struct {
	sent     []telegram.SendMessageRequest
	edited   []telegram.EditMessageTextRequest
	answered []string
	actions  []string
	sendErr  error
}

func (f *fakeSender) SendMessage(_ context.Context, req telegram.SendMessageRequest) (telegram.Message, error) {
	f.sent = append(f.sent, req)
	if f.sendErr != nil {
		return telegram.Message{}, f.sendErr
	}
	return telegram.Message{MessageID: int64(len(f.sent))}, nil
}

func (f *fakeSender) EditMessageText(_ context.Context, req telegram.EditMessageTextRequest) error {
	f.edited = append(f.edited, req)
	return nil
}

func (f *fakeSender) AnswerCallbackQuery(_ context.Context, callbackQueryID, _ string) error {
	f.answered = append(f.answered, callbackQueryID)
	return nil
}

func (f *fakeSender) SendChatAction(_ context.Context, _ int64, action string) error {
	f.actions = append(f.actions, action)
	return nil
}

type fakeCurrencyFetcher struct {
	quote fetcher.CurrencyQuote
	err   error
	calls int
}

func (f *fakeCurrencyFetcher) FetchCurrency(_ context.Context, _ string) (fetcher.CurrencyQuote, error) {
	f.calls++
	if f.err != nil {
		return fetcher.CurrencyQuote{}, f.err
	}
	return f.quote, nil
}

type fakeWeatherFetcher struct {
	snapshot fetcher.WeatherSnapshot
	err      error
	calls    int
}

func (f *fakeWeatherFetcher) FetchWeather(_ context.Context, _ string) (fetcher.WeatherSnapshot, error) {
	f.calls++
	if f.err != nil {
		return fetcher.WeatherSnapshot{}, f.err
	}
	return f.snapshot, nil
}

type fakeStore struct {
	weather   []storage.WeatherRequestRecord
	currency  []storage.CurrencyRequestRecord
	stats     storage.UserStats
	appendErr error
}

func (f *fakeStore) InitSchema(context.Context) error { return nil }

func (f *fakeStore) AppendWeatherRecord(_ context.Context, rec storage.WeatherRequestRecord) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.weather = append(f.weather, rec)
	return nil
}

func (f *fakeStore) AppendCurrencyRecord(_ context.Context, rec storage.CurrencyRequestRecord) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.currency = append(f.currency, rec)
	return nil
}

func (f *fakeStore) UserStats(context.Context, int64) storage.UserStats {
	return f.stats
}

func (f *fakeStore) ListWeatherRecords(context.Context, int64, time.Time, time.Time, int) ([]storage.WeatherRequestRecord, error) {
	return nil, nil
}

var (
	_ telegram.Sender             = (*fakeSender)(nil)
	_ fetcher.CurrencyRateFetcher = (*fakeCurrencyFetcher)(nil)
	_ fetcher.WeatherFetcher      = (*fakeWeatherFetcher)(nil)
	_ storage.RequestLogStore     = (*fakeStore)(nil)
)

type fixture struct {
	sender   *fakeSender
	currency *fakeCurrencyFetcher
	weather  *fakeWeatherFetcher
	store    *fakeStore
	svc      *Service
}

func newFixture() *fixture {
	f := &fixture{
		sender:   &fakeSender{},
		currency: &fakeCurrencyFetcher{},
		weather:  &fakeWeatherFetcher{},
		store:    &fakeStore{},
	}
	f.svc = New(f.sender, f.currency, f.weather, f.store, observability.NewMetricsForTesting(), zerolog.Nop())
	return f
}

func messageUpdate(text string) telegram.Update {
	return telegram.Update{
		UpdateID: 1,
		Message: &telegram.Message{
			MessageID: 10,
			From:      &telegram.User{ID: 42, Username: "ainur"},
			Chat:      telegram.Chat{ID: 100},
			Text:      text,
		},
	}
}

func callbackUpdate(data string) telegram.Update {
	return telegram.Update{
		UpdateID: 2,
		CallbackQuery: &telegram.CallbackQuery{
			ID:   "cb-1",
			From: &telegram.User{ID: 42, Username: "ainur"},
			Message: &telegram.Message{
				MessageID: 11,
				Chat:      telegram.Chat{ID: 100},
			},
			Data: data,
		},
	}
}

func TestStartCommand(t *testing.T) {
	f := newFixture()

	f.svc.HandleUpdate(context.Background(), messageUpdate("/start"))

	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, welcomeText, f.sender.sent[0].Text)
	assert.Equal(t, int64(100), f.sender.sent[0].ChatID)
	assert.Equal(t, int64(10), f.sender.sent[0].ReplyToMessageID)
}

func TestHelpCommand(t *testing.T) {
	f := newFixture()

	f.svc.HandleUpdate(context.Background(), messageUpdate("/help"))

	require.Len(t, f.sender.sent, 1)
	assert.Contains(t, f.sender.sent[0].Text, "/weather <город>")
	assert.Contains(t, f.sender.sent[0].Text, "/stats")
}

func TestCourseCommandKeyboard(t *testing.T) {
	f := newFixture()

	f.svc.HandleUpdate(context.Background(), messageUpdate("/course"))

	require.Len(t, f.sender.sent, 1)
	req := f.sender.sent[0]
	assert.Equal(t, chooseCurrencyText, req.Text)

	require.NotNil(t, req.ReplyMarkup)
	rows := req.ReplyMarkup.InlineKeyboard
	require.Len(t, rows, 3)

	var data []string
	for _, row := range rows {
		require.Len(t, row, 2)
		for _, btn := range row {
			data = append(data, btn.CallbackData)
		}
	}
	assert.Equal(t, []string{"course_USD", "course_EUR", "course_GBP", "course_JPY", "course_CNY", "course_CHF"}, data)
	assert.Equal(t, "🇺🇸 Доллар", rows[0][0].Text)
	assert.Equal(t, "🇨🇭 Франк", rows[2][1].Text)
}

func TestWeatherCommand(t *testing.T) {
	f := newFixture()
	f.weather.snapshot = fetcher.WeatherSnapshot{
		City:        "Москва",
		Temperature: -3.4,
		FeelsLike:   -8.1,
		Description: "небольшой снег",
		Humidity:    84,
		WindSpeed:   4.7,
		Pressure:    1012,
	}

	f.svc.HandleUpdate(context.Background(), messageUpdate("/weather Moscow"))

	assert.Equal(t, []string{"typing"}, f.sender.actions)
	require.Len(t, f.sender.sent, 1)

	text := f.sender.sent[0].Text
	assert.Contains(t, text, "🌍 *Погода в Москва*")
	assert.Contains(t, text, "🌡 Температура: -3.4°C")
	assert.Contains(t, text, "🤔 Ощущается как: -8.1°C")
	assert.Contains(t, text, "☁️ Небольшой снег")
	assert.Contains(t, text, "💧 Влажность: 84%")
	assert.Contains(t, text, "💨 Ветер: 4.7 м/с")
	assert.Contains(t, text, "🎚 Давление: 1012 гПа")
	assert.Equal(t, "Markdown", f.sender.sent[0].ParseMode)

	require.Len(t, f.store.weather, 1)
	rec := f.store.weather[0]
	assert.Equal(t, int64(42), rec.UserID)
	require.NotNil(t, rec.Username)
	assert.Equal(t, "ainur", *rec.Username)
	assert.Equal(t, "Москва", rec.City)
	require.NotNil(t, rec.Temperature)
	assert.InDelta(t, -3.4, *rec.Temperature, 0.0001)
	assert.Equal(t, "небольшой снег", rec.Description)
}

func TestWeatherCommandMissingCity(t *testing.T) {
	f := newFixture()

	f.svc.HandleUpdate(context.Background(), messageUpdate("/weather"))

	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, cityPromptText, f.sender.sent[0].Text)
	assert.Zero(t, f.weather.calls)
	assert.Empty(t, f.store.weather)
}

func TestWeatherCommandCityNotFound(t *testing.T) {
	f := newFixture()
	f.weather.err = fetcher.ErrCityNotFound

	f.svc.HandleUpdate(context.Background(), messageUpdate("/weather Nowhere"))

	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, "😔 Не удалось найти город 'Nowhere' или получить данные о погоде.\nПроверь название и попробуй снова.", f.sender.sent[0].Text)
	assert.Empty(t, f.store.weather)
}

func TestWeatherCommandProviderError(t *testing.T) {
	f := newFixture()
	f.weather.err = fetcher.ErrProviderUnreachable

	f.svc.HandleUpdate(context.Background(), messageUpdate("/weather Moscow"))

	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, weatherFailedText, f.sender.sent[0].Text)
	assert.Empty(t, f.store.weather)
}

func TestWeatherCommandAppendFailureStillReplies(t *testing.T) {
	f := newFixture()
	f.weather.snapshot = fetcher.WeatherSnapshot{City: "Казань", Description: "ясно"}
	f.store.appendErr = errors.New("connection refused")

	f.svc.HandleUpdate(context.Background(), messageUpdate("/weather Казань"))

	require.Len(t, f.sender.sent, 1)
	assert.Contains(t, f.sender.sent[0].Text, "Погода в Казань")
	assert.Empty(t, f.store.weather)
}

func TestCourseCallback(t *testing.T) {
	f := newFixture()
	f.currency.quote = fetcher.CurrencyQuote{
		Code:     "USD",
		Name:     "Доллар США",
		Value:    decimal.RequireFromString("90.9345"),
		Previous: decimal.RequireFromString("91.2641"),
		AsOf:     "2024-05-17",
	}

	f.svc.HandleUpdate(context.Background(), callbackUpdate("course_USD"))

	assert.Equal(t, []string{"cb-1"}, f.sender.answered)
	assert.Equal(t, []string{"typing"}, f.sender.actions)

	require.Len(t, f.sender.edited, 1)
	edit := f.sender.edited[0]
	assert.Equal(t, int64(100), edit.ChatID)
	assert.Equal(t, int64(11), edit.MessageID)
	assert.Equal(t, "Markdown", edit.ParseMode)
	assert.Contains(t, edit.Text, "💰 *Курс Доллар США на 2024-05-17*")
	assert.Contains(t, edit.Text, "90.93 ₽")
	assert.Contains(t, edit.Text, "Изменение: -0.33 ₽")

	require.Len(t, f.store.currency, 1)
	rec := f.store.currency[0]
	assert.Equal(t, int64(42), rec.UserID)
	require.NotNil(t, rec.Username)
	assert.Equal(t, "ainur", *rec.Username)
	assert.Equal(t, "USD", rec.Code)
	require.NotNil(t, rec.Rate)
	assert.True(t, rec.Rate.Equal(decimal.RequireFromString("90.9345")))
}

func TestCourseCallbackCurrencyNotFound(t *testing.T) {
	f := newFixture()
	f.currency.err = fetcher.ErrCurrencyNotFound

	f.svc.HandleUpdate(context.Background(), callbackUpdate("course_XAU"))

	assert.Equal(t, []string{"cb-1"}, f.sender.answered)
	require.Len(t, f.sender.edited, 1)
	assert.Equal(t, "😔 Валюта XAU не найдена.", f.sender.edited[0].Text)
	assert.Empty(t, f.store.currency)
}

func TestCourseCallbackFetchError(t *testing.T) {
	f := newFixture()
	f.currency.err = fetcher.ErrProviderStatus

	f.svc.HandleUpdate(context.Background(), callbackUpdate("course_EUR"))

	require.Len(t, f.sender.edited, 1)
	assert.Equal(t, courseFailedText, f.sender.edited[0].Text)
	assert.Empty(t, f.store.currency)
}

func TestCallbackUnknownDataIgnored(t *testing.T) {
	f := newFixture()

	f.svc.HandleUpdate(context.Background(), callbackUpdate("refresh"))

	assert.Equal(t, []string{"cb-1"}, f.sender.answered)
	assert.Empty(t, f.sender.edited)
	assert.Zero(t, f.currency.calls)
}

func TestStatsCommand(t *testing.T) {
	f := newFixture()
	avg := 15.0
	f.store.stats = storage.UserStats{
		WeatherRequests:  2,
		CurrencyRequests: 3,
		AvgTemperature:   &avg,
		Currencies:       []string{"EUR", "USD"},
	}

	f.svc.HandleUpdate(context.Background(), messageUpdate("/stats"))

	require.Len(t, f.sender.sent, 1)
	text := f.sender.sent[0].Text
	assert.Contains(t, text, "📊 *Ваша статистика:*")
	assert.Contains(t, text, "🌤 Запросов погоды: 2")
	assert.Contains(t, text, "💰 Запросов курсов: 3")
	assert.Contains(t, text, "🌡 Средняя температура: 15.0°C")
	assert.Contains(t, text, "💱 Валюты: EUR, USD")
}

func TestStatsCommandNoActivity(t *testing.T) {
	f := newFixture()
	f.store.stats = storage.UserStats{Currencies: []string{}}

	f.svc.HandleUpdate(context.Background(), messageUpdate("/stats"))

	require.Len(t, f.sender.sent, 1)
	text := f.sender.sent[0].Text
	assert.Contains(t, text, "🌤 Запросов погоды: 0")
	assert.Contains(t, text, "💰 Запросов курсов: 0")
	assert.NotContains(t, text, "Средняя температура")
	assert.NotContains(t, text, "Валюты:")
}

func TestUnknownCommandIgnored(t *testing.T) {
	f := newFixture()

	f.svc.HandleUpdate(context.Background(), messageUpdate("/frobnicate"))

	assert.Empty(t, f.sender.sent)
}

func TestPlainTextIgnored(t *testing.T) {
	f := newFixture()

	f.svc.HandleUpdate(context.Background(), messageUpdate("привет"))

	assert.Empty(t, f.sender.sent)
	assert.Empty(t, f.sender.actions)
}

func TestMessageWithoutSenderIgnored(t *testing.T) {
	f := newFixture()
	update := messageUpdate("/start")
	update.Message.From = nil

	f.svc.HandleUpdate(context.Background(), update)

	assert.Empty(t, f.sender.sent)
}

func TestParseCommand(t *testing.T) {
	cases := []struct {
		name     string
		text     string
		wantCmd  string
		wantArgs string
	}{
		{"bare command", "/start", "start", ""},
		{"with argument", "/weather Moscow", "weather", "Moscow"},
		{"bot mention", "/weather@wcbot Moscow", "weather", "Moscow"},
		{"multiword argument", "/weather Нижний Новгород", "weather", "Нижний Новгород"},
		{"padded", "  /help  ", "help", ""},
		{"uppercase", "/START", "start", ""},
		{"newline separator", "/weather\nMoscow", "weather", "Moscow"},
		{"not a command", "hello", "", ""},
		{"empty", "", "", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cmd, args := parseCommand(tc.text)
			assert.Equal(t, tc.wantCmd, cmd)
			assert.Equal(t, tc.wantArgs, args)
		})
	}
}

func TestFormatSigned(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"0.5", "+0.50"},
		{"-0.3296", "-0.33"},
		{"0", "+0.00"},
		{"12.345", "+12.35"},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, formatSigned(decimal.RequireFromString(tc.in)), "input %s", tc.in)
	}
}

func TestCapitalizeFirst(t *testing.T) {
	assert.Equal(t, "Небольшой снег", capitalizeFirst("небольшой снег"))
	assert.Equal(t, "Ясно", capitalizeFirst("ЯСНО"))
	assert.Equal(t, "Clear sky", capitalizeFirst("clear sky"))
	assert.Equal(t, "", capitalizeFirst(""))
}

func TestRenderWeatherWholeWindSpeed(t *testing.T) {
	text := renderWeather(fetcher.WeatherSnapshot{City: "Сочи", WindSpeed: 4})
	assert.Contains(t, text, "💨 Ветер: 4 м/с")
}
