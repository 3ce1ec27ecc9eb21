package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	createWeatherRequestsSQL = `CREATE TABLE IF NOT EXISTS weather_requests (
        id           BIGSERIAL PRIMARY KEY,
        user_id      BIGINT NOT NULL,
        username     TEXT,
        city         TEXT NOT NULL,
        temperature  DOUBLE PRECISION,
        description  TEXT,
        request_time TIMESTAMPTZ NOT NULL DEFAULT now()
    );`

	createCurrencyRequestsSQL = `CREATE TABLE IF NOT EXISTS currency_requests (
        id            BIGSERIAL PRIMARY KEY,
        user_id       BIGINT NOT NULL,
        username      TEXT,
        currency_code TEXT NOT NULL,
        rate          NUMERIC(20,6),
        request_time  TIMESTAMPTZ NOT NULL DEFAULT now()
    );`

	insertWeatherRequestSQL = `INSERT INTO weather_requests (
        user_id,
        username,
        city,
        temperature,
        description
    ) VALUES (
        $1,$2,$3,$4,$5
    );`

	insertCurrencyRequestSQL = `INSERT INTO currency_requests (
        user_id,
        username,
        currency_code,
        rate
    ) VALUES (
        $1,$2,$3,$4
    );`

	weatherStatsSQL = `SELECT COUNT(*), AVG(temperature)
    FROM weather_requests
    WHERE user_id = $1;`

	currencyStatsSQL = `SELECT COUNT(*), ARRAY_AGG(DISTINCT currency_code)
    FROM currency_requests
    WHERE user_id = $1;`

	listWeatherRequestsSQL = `SELECT
        id,
        user_id,
        username,
        city,
        temperature,
        description,
        request_time
    FROM weather_requests
    WHERE user_id = $1
      AND request_time >= $2
      AND request_time < $3
    ORDER BY request_time
    LIMIT $4;`
)

// RequestLogStore defines persistence operations for request records.
type RequestLogStore interface {
	InitSchema(ctx context.Context) error
	AppendWeatherRecord(ctx context.Context, rec WeatherRequestRecord) error
	AppendCurrencyRecord(ctx context.Context, rec CurrencyRequestRecord) error
	UserStats(ctx context.Context, userID int64) UserStats
	ListWeatherRecords(ctx context.Context, userID int64, from, to time.Time, limit int) ([]WeatherRequestRecord, error)
}

// Store provides append-only request logging backed by PostgreSQL.
type Store struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool, logger zerolog.Logger) *Store {
	return &Store{
		pool:   pool,
		logger: logger.With().Str("component", "storage").Logger(),
	}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// Ping verifies database connectivity, used by readiness probes.
func (s *Store) Ping(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	return pool.Ping(ctx)
}

// InitSchema ensures both request tables exist. Idempotent and never
// destructive, so it is safe on every process start.
func (s *Store) InitSchema(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	if _, execErr := pool.Exec(ctx, createWeatherRequestsSQL); execErr != nil {
		return fmt.Errorf("create weather_requests: %w", execErr)
	}
	if _, execErr := pool.Exec(ctx, createCurrencyRequestsSQL); execErr != nil {
		return fmt.Errorf("create currency_requests: %w", execErr)
	}
	return nil
}

// AppendWeatherRecord validates and persists one weather lookup. Invalid
// records are rejected before any SQL runs.
func (s *Store) AppendWeatherRecord(ctx context.Context, rec WeatherRequestRecord) error {
	if err := validateRecord(rec); err != nil {
		return err
	}

	pool, err := s.getPool()
	if err != nil {
		return err
	}

	var username interface{}
	if rec.Username != nil {
		username = *rec.Username
	}

	_, execErr := pool.Exec(ctx, insertWeatherRequestSQL,
		rec.UserID,
		username,
		rec.City,
		*rec.Temperature,
		rec.Description,
	)
	if execErr != nil {
		return fmt.Errorf("append weather record: %w", execErr)
	}
	return nil
}

// AppendCurrencyRecord validates and persists one exchange-rate lookup.
func (s *Store) AppendCurrencyRecord(ctx context.Context, rec CurrencyRequestRecord) error {
	if err := validateRecord(rec); err != nil {
		return err
	}

	pool, err := s.getPool()
	if err != nil {
		return err
	}

	var username interface{}
	if rec.Username != nil {
		username = *rec.Username
	}

	_, execErr := pool.Exec(ctx, insertCurrencyRequestSQL,
		rec.UserID,
		username,
		rec.Code,
		rec.Rate.String(),
	)
	if execErr != nil {
		return fmt.Errorf("append currency record: %w", execErr)
	}
	return nil
}

// UserStats computes a user's aggregate activity, fresh on every call.
// Storage failures yield the zero result so callers see "no data" and
// "store error" identically; the cause is logged here.
func (s *Store) UserStats(ctx context.Context, userID int64) UserStats {
	empty := UserStats{Currencies: []string{}}

	pool, err := s.getPool()
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("user stats unavailable")
		return empty
	}

	stats := UserStats{Currencies: []string{}}

	var avg sql.NullFloat64
	if scanErr := pool.QueryRow(ctx, weatherStatsSQL, userID).Scan(&stats.WeatherRequests, &avg); scanErr != nil {
		s.logger.Error().Err(scanErr).Int64("user_id", userID).Msg("weather stats query failed")
		return empty
	}
	if avg.Valid {
		rounded := math.Round(avg.Float64*10) / 10
		stats.AvgTemperature = &rounded
	}

	var codes []string
	if scanErr := pool.QueryRow(ctx, currencyStatsSQL, userID).Scan(&stats.CurrencyRequests, &codes); scanErr != nil {
		s.logger.Error().Err(scanErr).Int64("user_id", userID).Msg("currency stats query failed")
		return empty
	}
	if codes != nil {
		stats.Currencies = codes
	}

	return stats
}

// ListWeatherRecords lists a user's weather lookups within a time window,
// oldest first.
func (s *Store) ListWeatherRecords(ctx context.Context, userID int64, from, to time.Time, limit int) ([]WeatherRequestRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listWeatherRequestsSQL, userID, from, to, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list weather records: %w", queryErr)
	}
	defer rows.Close()

	records := make([]WeatherRequestRecord, 0, limit)
	for rows.Next() {
		rec, scanErr := scanWeatherRecord(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		records = append(records, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

func scanWeatherRecord(rows pgx.Rows) (WeatherRequestRecord, error) {
	var (
		id          int64
		userID      int64
		username    sql.NullString
		city        string
		temperature sql.NullFloat64
		description sql.NullString
		requestTime time.Time
	)

	if err := rows.Scan(
		&id,
		&userID,
		&username,
		&city,
		&temperature,
		&description,
		&requestTime,
	); err != nil {
		return WeatherRequestRecord{}, err
	}

	rec := WeatherRequestRecord{
		ID:          id,
		UserID:      userID,
		City:        city,
		Description: description.String,
		RequestTime: requestTime,
	}

	if username.Valid {
		name := username.String
		rec.Username = &name
	}
	if temperature.Valid {
		value := temperature.Float64
		rec.Temperature = &value
	}

	return rec, nil
}

var _ RequestLogStore = (*Store)(nil)
