// Package notify delivers analysis reports and alerts to a fixed destination.
package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// Notifier sends one message with a subject to the configured destination.
type Notifier interface {
	Notify(ctx context.Context, subject, body string) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, subject, body string) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, subject, body string) error {
	return f(ctx, subject, body)
}

// LogNotifier writes messages to a structured logger. It is the destination
// for local runs where no broker is configured.
type LogNotifier struct {
	log zerolog.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(ctx context.Context, subject, body string) error {
	n.log.Info().
		Str("subject", subject).
		Str("body", body).
		Msg("Notification")
	return nil
}
