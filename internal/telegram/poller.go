package telegram

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// HandlerFunc consumes one update.
type HandlerFunc func(ctx context.Context, update Update)

// Poller drives the long-poll loop and dispatches updates in arrival order.
type Poller struct {
	client     *Client
	logger     zerolog.Logger
	retryDelay time.Duration
}

// NewPoller constructs a Poller around a Bot API client.
func NewPoller(client *Client, logger zerolog.Logger) *Poller {
	return &Poller{
		client:     client,
		logger:     logger.With().Str("component", "poller").Logger(),
		retryDelay: 5 * time.Second,
	}
}

// Run blocks, fetching updates until ctx is cancelled. Transport failures
// are logged and polling resumes after a pause; the offset advances only
// past updates that were handed to the handler, so none are skipped.
func (p *Poller) Run(ctx context.Context, handle HandlerFunc) error {
	var offset int64

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		updates, err := p.client.GetUpdates(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.logger.Error().Err(err).Msg("get updates failed")

			timer := time.NewTimer(p.retryDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
			continue
		}

		for _, update := range updates {
			offset = update.UpdateID + 1
			p.dispatch(ctx, handle, update)
		}
	}
}

// dispatch isolates handler panics so one bad update cannot stop the loop.
func (p *Poller) dispatch(ctx context.Context, handle HandlerFunc, update Update) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().
				Interface("panic", r).
				Int64("update_id", update.UpdateID).
				Msg("update handler panicked")
		}
	}()
	handle(ctx, update)
}
