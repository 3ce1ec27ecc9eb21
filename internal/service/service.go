package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Ainur20/weather-currency-bot/internal/fetcher"
	"github.com/Ainur20/weather-currency-bot/internal/observability"
	"github.com/Ainur20/weather-currency-bot/internal/storage"
	"github.com/Ainur20/weather-currency-bot/internal/telegram"
)

const (
	providerCBR = "cbr"
	providerOWM = "openweathermap"

	callbackPrefix = "course_"
)

// User-facing texts. The bot speaks Russian.
const (
	welcomeText = "👋 Привет! Я бот-помощник.\nЯ умею показывать курс валют и погоду."

	helpText = "Доступные команды:\n" +
		"/course — курс валют\n" +
		"/weather <город> — погода в указанном городе\n" +
		"/stats — ваша статистика\n" +
		"/help — эта подсказка\n\n" +
		"Например: /weather Moscow"

	chooseCurrencyText = "Выбери валюту:"
	cityPromptText     = "🌍 Укажи город после команды.\nНапример: /weather Moscow"
	courseFailedText   = "😔 Не удалось получить курс."
	weatherFailedText  = "😔 Не удалось получить данные о погоде. Попробуй позже."
)

// Service turns inbound updates into provider fetches, replies, and
// request-log records.
type Service struct {
	sender   telegram.Sender
	currency fetcher.CurrencyRateFetcher
	weather  fetcher.WeatherFetcher
	store    storage.RequestLogStore
	metrics  *observability.Metrics
	logger   zerolog.Logger
}

// New constructs the bot service.
func New(sender telegram.Sender, currency fetcher.CurrencyRateFetcher, weather fetcher.WeatherFetcher, store storage.RequestLogStore, metrics *observability.Metrics, logger zerolog.Logger) *Service {
	return &Service{
		sender:   sender,
		currency: currency,
		weather:  weather,
		store:    store,
		metrics:  metrics,
		logger:   logger.With().Str("component", "service").Logger(),
	}
}

// HandleUpdate routes one update. It never returns an error: every failure
// is turned into a user-facing reply or a log line here.
func (s *Service) HandleUpdate(ctx context.Context, update telegram.Update) {
	s.metrics.UpdatesReceived.Inc()

	switch {
	case update.CallbackQuery != nil:
		s.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		s.handleMessage(ctx, update.Message)
	}
}

func (s *Service) handleMessage(ctx context.Context, msg *telegram.Message) {
	if msg.From == nil {
		return
	}

	command, args := parseCommand(msg.Text)
	if command == "" {
		return
	}

	switch command {
	case "start":
		s.metrics.CommandsHandled.WithLabelValues("start").Inc()
		s.reply(ctx, msg, welcomeText, "", nil)
	case "help":
		s.metrics.CommandsHandled.WithLabelValues("help").Inc()
		s.reply(ctx, msg, helpText, "", nil)
	case "course":
		s.metrics.CommandsHandled.WithLabelValues("course").Inc()
		s.reply(ctx, msg, chooseCurrencyText, "", courseKeyboard())
	case "weather":
		s.metrics.CommandsHandled.WithLabelValues("weather").Inc()
		s.handleWeather(ctx, msg, args)
	case "stats":
		s.metrics.CommandsHandled.WithLabelValues("stats").Inc()
		s.handleStats(ctx, msg)
	default:
		s.metrics.CommandsHandled.WithLabelValues("unknown").Inc()
		s.logger.Debug().Str("command", command).Msg("unknown command ignored")
	}
}

func (s *Service) handleWeather(ctx context.Context, msg *telegram.Message, city string) {
	if err := s.sender.SendChatAction(ctx, msg.Chat.ID, "typing"); err != nil {
		s.logger.Warn().Err(err).Msg("send chat action failed")
	}

	if city == "" {
		s.reply(ctx, msg, cityPromptText, "", nil)
		return
	}

	start := time.Now()
	snapshot, err := s.weather.FetchWeather(ctx, city)
	s.metrics.FetchDuration.WithLabelValues(providerOWM).Observe(time.Since(start).Seconds())

	if err != nil {
		s.metrics.FetchErrors.WithLabelValues(providerOWM, observability.ErrorKind(err)).Inc()
		s.logger.Error().Err(err).Str("city", city).Msg("weather fetch failed")

		if errors.Is(err, fetcher.ErrCityNotFound) {
			text := fmt.Sprintf("😔 Не удалось найти город '%s' или получить данные о погоде.\nПроверь название и попробуй снова.", city)
			s.reply(ctx, msg, text, "", nil)
			return
		}
		s.reply(ctx, msg, weatherFailedText, "", nil)
		return
	}

	s.reply(ctx, msg, renderWeather(snapshot), "Markdown", nil)

	temperature := snapshot.Temperature
	s.appendWeather(ctx, storage.WeatherRequestRecord{
		UserID:      msg.From.ID,
		Username:    optionalString(msg.From.Username),
		City:        snapshot.City,
		Temperature: &temperature,
		Description: snapshot.Description,
	})
}

func (s *Service) handleCallback(ctx context.Context, cb *telegram.CallbackQuery) {
	if err := s.sender.AnswerCallbackQuery(ctx, cb.ID, ""); err != nil {
		s.logger.Warn().Err(err).Str("callback_id", cb.ID).Msg("answer callback failed")
	}

	if cb.From == nil || cb.Message == nil || !strings.HasPrefix(cb.Data, callbackPrefix) {
		s.logger.Debug().Str("data", cb.Data).Msg("callback ignored")
		return
	}
	s.metrics.CommandsHandled.WithLabelValues("course_callback").Inc()

	code := strings.TrimPrefix(cb.Data, callbackPrefix)
	chatID := cb.Message.Chat.ID
	messageID := cb.Message.MessageID

	if err := s.sender.SendChatAction(ctx, chatID, "typing"); err != nil {
		s.logger.Warn().Err(err).Msg("send chat action failed")
	}

	start := time.Now()
	quote, err := s.currency.FetchCurrency(ctx, code)
	s.metrics.FetchDuration.WithLabelValues(providerCBR).Observe(time.Since(start).Seconds())

	if err != nil {
		s.metrics.FetchErrors.WithLabelValues(providerCBR, observability.ErrorKind(err)).Inc()
		s.logger.Error().Err(err).Str("code", code).Msg("currency fetch failed")

		text := courseFailedText
		if errors.Is(err, fetcher.ErrCurrencyNotFound) {
			text = fmt.Sprintf("😔 Валюта %s не найдена.", code)
		}
		s.edit(ctx, chatID, messageID, text, "")
		return
	}

	s.edit(ctx, chatID, messageID, renderQuote(quote), "Markdown")

	rate := quote.Value
	s.appendCurrency(ctx, storage.CurrencyRequestRecord{
		UserID:   cb.From.ID,
		Username: optionalString(cb.From.Username),
		Code:     quote.Code,
		Rate:     &rate,
	})
}

func (s *Service) handleStats(ctx context.Context, msg *telegram.Message) {
	stats := s.store.UserStats(ctx, msg.From.ID)
	s.reply(ctx, msg, renderStats(stats), "Markdown", nil)
}

func (s *Service) appendWeather(ctx context.Context, rec storage.WeatherRequestRecord) {
	err := s.store.AppendWeatherRecord(ctx, rec)
	switch {
	case err == nil:
		s.metrics.RecordsAppended.WithLabelValues("weather", "ok").Inc()
	case errors.Is(err, storage.ErrInvalidRecord):
		s.metrics.RecordsAppended.WithLabelValues("weather", "invalid").Inc()
		s.logger.Warn().Err(err).Int64("user_id", rec.UserID).Msg("weather record rejected")
	default:
		s.metrics.RecordsAppended.WithLabelValues("weather", "error").Inc()
		s.logger.Error().Err(err).Int64("user_id", rec.UserID).Msg("append weather record failed")
	}
}

func (s *Service) appendCurrency(ctx context.Context, rec storage.CurrencyRequestRecord) {
	err := s.store.AppendCurrencyRecord(ctx, rec)
	switch {
	case err == nil:
		s.metrics.RecordsAppended.WithLabelValues("currency", "ok").Inc()
	case errors.Is(err, storage.ErrInvalidRecord):
		s.metrics.RecordsAppended.WithLabelValues("currency", "invalid").Inc()
		s.logger.Warn().Err(err).Int64("user_id", rec.UserID).Msg("currency record rejected")
	default:
		s.metrics.RecordsAppended.WithLabelValues("currency", "error").Inc()
		s.logger.Error().Err(err).Int64("user_id", rec.UserID).Msg("append currency record failed")
	}
}

func (s *Service) reply(ctx context.Context, msg *telegram.Message, text, parseMode string, markup *telegram.InlineKeyboardMarkup) {
	req := telegram.SendMessageRequest{
		ChatID:           msg.Chat.ID,
		Text:             text,
		ParseMode:        parseMode,
		ReplyToMessageID: msg.MessageID,
		ReplyMarkup:      markup,
	}
	if _, err := s.sender.SendMessage(ctx, req); err != nil {
		s.logger.Error().Err(err).Int64("chat_id", msg.Chat.ID).Msg("send message failed")
	}
}

func (s *Service) edit(ctx context.Context, chatID, messageID int64, text, parseMode string) {
	req := telegram.EditMessageTextRequest{
		ChatID:    chatID,
		MessageID: messageID,
		Text:      text,
		ParseMode: parseMode,
	}
	if err := s.sender.EditMessageText(ctx, req); err != nil {
		s.logger.Error().Err(err).Int64("chat_id", chatID).Msg("edit message failed")
	}
}

func courseKeyboard() *telegram.InlineKeyboardMarkup {
	return &telegram.InlineKeyboardMarkup{
		InlineKeyboard: [][]telegram.InlineKeyboardButton{
			{
				{Text: "🇺🇸 Доллар", CallbackData: "course_USD"},
				{Text: "🇪🇺 Евро", CallbackData: "course_EUR"},
			},
			{
				{Text: "🇬🇧 Фунт", CallbackData: "course_GBP"},
				{Text: "🇯🇵 Иена", CallbackData: "course_JPY"},
			},
			{
				{Text: "🇨🇳 Юань", CallbackData: "course_CNY"},
				{Text: "🇨🇭 Франк", CallbackData: "course_CHF"},
			},
		},
	}
}

func renderQuote(q fetcher.CurrencyQuote) string {
	b := strings.Builder{}
	b.WriteString(fmt.Sprintf("💰 *Курс %s на %s*\n\n", q.Name, q.AsOf))
	b.WriteString(fmt.Sprintf("%s ₽\n", q.Value.StringFixed(2)))
	b.WriteString(fmt.Sprintf("Изменение: %s ₽", formatSigned(q.Delta())))
	return b.String()
}

func renderWeather(w fetcher.WeatherSnapshot) string {
	b := strings.Builder{}
	b.WriteString(fmt.Sprintf("🌍 *Погода в %s*\n\n", w.City))
	b.WriteString(fmt.Sprintf("🌡 Температура: %.1f°C\n", w.Temperature))
	b.WriteString(fmt.Sprintf("🤔 Ощущается как: %.1f°C\n", w.FeelsLike))
	b.WriteString(fmt.Sprintf("☁️ %s\n", capitalizeFirst(w.Description)))
	b.WriteString(fmt.Sprintf("💧 Влажность: %d%%\n", w.Humidity))
	b.WriteString(fmt.Sprintf("💨 Ветер: %s м/с\n", strconv.FormatFloat(w.WindSpeed, 'f', -1, 64)))
	b.WriteString(fmt.Sprintf("🎚 Давление: %d гПа", w.Pressure))
	return b.String()
}

func renderStats(stats storage.UserStats) string {
	b := strings.Builder{}
	b.WriteString("📊 *Ваша статистика:*\n\n")
	b.WriteString(fmt.Sprintf("🌤 Запросов погоды: %d\n", stats.WeatherRequests))
	b.WriteString(fmt.Sprintf("💰 Запросов курсов: %d\n", stats.CurrencyRequests))
	if stats.AvgTemperature != nil {
		b.WriteString(fmt.Sprintf("🌡 Средняя температура: %.1f°C\n", *stats.AvgTemperature))
	}
	if len(stats.Currencies) > 0 {
		b.WriteString(fmt.Sprintf("💱 Валюты: %s", strings.Join(stats.Currencies, ", ")))
	}
	return strings.TrimRight(b.String(), "\n")
}

// parseCommand splits "/weather@botname Moscow" into ("weather", "Moscow").
// Non-command text yields an empty command.
func parseCommand(text string) (string, string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", ""
	}

	head := text
	args := ""
	if idx := strings.IndexFunc(text, unicode.IsSpace); idx >= 0 {
		head = text[:idx]
		args = strings.TrimSpace(text[idx:])
	}

	command := strings.TrimPrefix(head, "/")
	if at := strings.Index(command, "@"); at >= 0 {
		command = command[:at]
	}
	return strings.ToLower(command), args
}

func formatSigned(d decimal.Decimal) string {
	s := d.StringFixed(2)
	if d.Sign() >= 0 {
		return "+" + s
	}
	return s
}

func capitalizeFirst(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	return string(unicode.ToUpper(runes[0])) + strings.ToLower(string(runes[1:]))
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
