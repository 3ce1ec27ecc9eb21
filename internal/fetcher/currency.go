package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// CurrencyOptions parameterise the Bank of Russia daily-rates fetcher.
type CurrencyOptions struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// Currency fetches official daily exchange rates published by the Bank of Russia.
type Currency struct {
	opts    CurrencyOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewCurrency constructs a currency fetcher.
func NewCurrency(opts CurrencyOptions, logger zerolog.Logger) *Currency {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimSpace(opts.BaseURL)
	if baseURL == "" {
		baseURL = "https://www.cbr-xml-daily.ru/daily_json.js"
	}

	return &Currency{
		opts:    opts,
		logger:  logger.With().Str("component", "currency_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

type cbrValute struct {
	Name     string           `json:"Name"`
	Value    *decimal.Decimal `json:"Value"`
	Previous *decimal.Decimal `json:"Previous"`
}

type cbrDaily struct {
	Date   string               `json:"Date"`
	Valute map[string]cbrValute `json:"Valute"`
}

// FetchCurrency retrieves the daily quote for a single currency code.
// The code is matched case-insensitively against the Valute table.
func (c *Currency) FetchCurrency(ctx context.Context, code string) (CurrencyQuote, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return CurrencyQuote{}, fmt.Errorf("%w: empty currency code", ErrCurrencyNotFound)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return CurrencyQuote{}, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return CurrencyQuote{}, fmt.Errorf("%w: %v", ErrProviderUnreachable, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return CurrencyQuote{}, fmt.Errorf("%w: %v", ErrProviderUnreachable, err)
	}

	if resp.StatusCode != http.StatusOK {
		return CurrencyQuote{}, fmt.Errorf("%w: cbr responded %d", ErrProviderStatus, resp.StatusCode)
	}

	var daily cbrDaily
	if err := json.Unmarshal(payload, &daily); err != nil {
		return CurrencyQuote{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(daily.Valute) == 0 {
		return CurrencyQuote{}, fmt.Errorf("%w: valute table missing", ErrCurrencyNotFound)
	}

	entry, ok := daily.Valute[code]
	if !ok {
		return CurrencyQuote{}, fmt.Errorf("%w: %s", ErrCurrencyNotFound, code)
	}
	if entry.Value == nil || entry.Previous == nil {
		return CurrencyQuote{}, fmt.Errorf("%w: incomplete quote for %s", ErrMalformedResponse, code)
	}

	quote := CurrencyQuote{
		Code:     code,
		Name:     entry.Name,
		Value:    *entry.Value,
		Previous: *entry.Previous,
		AsOf:     dateOnly(daily.Date),
	}

	c.logger.Debug().
		Str("code", quote.Code).
		Str("value", quote.Value.String()).
		Str("as_of", quote.AsOf).
		Msg("fetched currency quote")

	return quote, nil
}

// dateOnly trims an ISO-8601 timestamp down to its date part.
func dateOnly(ts string) string {
	if len(ts) >= 10 {
		return ts[:10]
	}
	return ts
}

var _ CurrencyRateFetcher = (*Currency)(nil)
