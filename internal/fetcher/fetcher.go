package fetcher

import (
	"context"

	"github.com/shopspring/decimal"
)

// CurrencyQuote is a normalized daily exchange-rate reading for one currency.
type CurrencyQuote struct {
	Code     string
	Name     string
	Value    decimal.Decimal
	Previous decimal.Decimal
	AsOf     string
}

// Delta returns the change against the previous trading day.
func (q CurrencyQuote) Delta() decimal.Decimal {
	return q.Value.Sub(q.Previous)
}

// WeatherSnapshot is a normalized current-conditions reading for one city.
type WeatherSnapshot struct {
	City        string
	Temperature float64
	FeelsLike   float64
	Description string
	Humidity    int
	WindSpeed   float64
	Pressure    int
}

// CurrencyRateFetcher retrieves the official daily rate for a currency code.
type CurrencyRateFetcher interface {
	FetchCurrency(ctx context.Context, code string) (CurrencyQuote, error)
}

// WeatherFetcher retrieves current conditions for a city.
type WeatherFetcher interface {
	FetchWeather(ctx context.Context, city string) (WeatherSnapshot, error)
}
