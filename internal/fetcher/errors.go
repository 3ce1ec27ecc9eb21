package fetcher

import "errors"

// Classified fetch failures. Callers branch on these with errors.Is to
// choose the user-facing reply.
var (
	// ErrProviderUnreachable marks transport-level failures: DNS, refused
	// connections, timeouts, truncated bodies.
	ErrProviderUnreachable = errors.New("provider unreachable")

	// ErrProviderStatus marks a non-success HTTP status that does not map
	// to a more specific condition.
	ErrProviderStatus = errors.New("provider returned unexpected status")

	// ErrCurrencyNotFound marks a currency code absent from the daily table.
	ErrCurrencyNotFound = errors.New("currency not found")

	// ErrCityNotFound marks a city the weather provider does not know.
	ErrCityNotFound = errors.New("city not found")

	// ErrMalformedResponse marks a payload that parsed but is missing
	// fields required to build a normalized reading.
	ErrMalformedResponse = errors.New("malformed provider response")

	// ErrNotConfigured marks a fetcher missing credentials it needs; raised
	// before any request is sent.
	ErrNotConfigured = errors.New("fetcher is not configured")
)
