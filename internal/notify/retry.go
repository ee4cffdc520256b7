package notify

import (
	"context"
	"errors"
	"time"

	"github.com/avast/retry-go"
	"github.com/rs/zerolog"
)

// Retrying retries a Notifier a bounded number of times with a fixed delay.
type Retrying struct {
	next     Notifier
	attempts uint
	delay    time.Duration
	log      zerolog.Logger
}

// NewRetrying wraps next. attempts below 1 are treated as 1.
func NewRetrying(next Notifier, attempts int, delay time.Duration, log zerolog.Logger) *Retrying {
	if attempts < 1 {
		attempts = 1
	}
	return &Retrying{next: next, attempts: uint(attempts), delay: delay, log: log}
}

// Notify implements Notifier.
func (r *Retrying) Notify(ctx context.Context, subject, body string) error {
	return retry.Do(
		func() error {
			return r.next.Notify(ctx, subject, body)
		},
		retry.Context(ctx),
		retry.Attempts(r.attempts),
		retry.Delay(r.delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		}),
		retry.OnRetry(func(n uint, err error) {
			r.log.Warn().
				Err(err).
				Uint("attempt", n+1).
				Str("subject", subject).
				Msg("Notification attempt failed")
		}),
	)
}
