package database

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

const (
	connectAttempts = 5
	initialBackoff  = 500 * time.Millisecond
	maxBackoff      = 8 * time.Second
)

// withRetry calls connect with exponential backoff, at most connectAttempts
// times, and gives up early once ctx is done.
func withRetry(ctx context.Context, log zerolog.Logger, target string, connect func(context.Context) error) error {
	backoff := initialBackoff
	var err error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		if err = connect(ctx); err == nil {
			return nil
		}
		if attempt == connectAttempts {
			break
		}
		log.Warn().
			Err(err).
			Str("target", target).
			Int("attempt", attempt).
			Dur("backoff", backoff).
			Msg("Connection attempt failed, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
	return err
}
