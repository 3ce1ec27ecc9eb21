package storage

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// ErrInvalidRecord indicates a record failed validation; nothing was written.
var ErrInvalidRecord = errors.New("storage: invalid record")

var validate = validator.New()

// WeatherRequestRecord is one append-only log entry for a weather lookup.
// Temperature is a pointer so a legitimate 0.0 reading is distinguishable
// from an absent one.
type WeatherRequestRecord struct {
	ID          int64
	UserID      int64 `validate:"required"`
	Username    *string
	City        string   `validate:"required"`
	Temperature *float64 `validate:"required"`
	Description string
	RequestTime time.Time
}

// CurrencyRequestRecord is one append-only log entry for a rate lookup.
type CurrencyRequestRecord struct {
	ID          int64
	UserID      int64 `validate:"required"`
	Username    *string
	Code        string           `validate:"required"`
	Rate        *decimal.Decimal `validate:"required"`
	RequestTime time.Time
}

// UserStats aggregates one user's recorded activity. Derived on demand,
// never stored.
type UserStats struct {
	WeatherRequests  int64
	CurrencyRequests int64
	AvgTemperature   *float64
	Currencies       []string
}

func validateRecord(rec interface{}) error {
	if err := validate.Struct(rec); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	return nil
}
