// Package app assembles the pipeline and its collaborators from Config.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dvloznov/billwatch/internal/config"
	"github.com/dvloznov/billwatch/internal/gcs"
	infra "github.com/dvloznov/billwatch/internal/infra/bigquery"
	"github.com/dvloznov/billwatch/internal/notify"
	"github.com/dvloznov/billwatch/internal/pipeline"
	"github.com/dvloznov/billwatch/internal/report"
	"github.com/dvloznov/billwatch/internal/source"
	"github.com/rs/zerolog"
)

// App holds the long-lived clients shared by every run.
type App struct {
	Pipeline *pipeline.Pipeline
	Router   *source.Router
	// Storage is nil when no Cloud Storage client could be created.
	Storage *gcs.Service

	closers []io.Closer
}

// New connects the configured fetchers and notifier and builds the pipeline.
// Cloud Storage is optional: without credentials only local files and bq://
// locations are served.
func New(ctx context.Context, cfg config.Config, log zerolog.Logger) (*App, error) {
	a := &App{Router: source.NewRouter()}

	storage, err := gcs.NewService(ctx, cfg.StorageClientOptions()...)
	if err != nil {
		log.Warn().Err(err).Msg("Cloud Storage client unavailable, gs:// locations disabled")
	} else {
		a.Storage = storage
		a.Router.Register("gs", storage)
		a.closers = append(a.closers, storage)
	}

	if cfg.BillingProject != "" {
		billing, err := infra.NewBillingExportFetcher(ctx, cfg.BillingProject, cfg.BillingLookbackDays, cfg.GoogleClientOptions()...)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("New: billing export: %w", err)
		}
		a.Router.Register("bq", billing)
		a.closers = append(a.closers, billing)
	}

	notifier, closer, err := NewNotifier(cfg, log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("New: %w", err)
	}
	if closer != nil {
		a.closers = append(a.closers, closer)
	}

	p, err := NewPipeline(cfg, a.Router, notifier, log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("New: %w", err)
	}
	a.Pipeline = p

	log.Info().
		Strs("schemes", a.Router.Schemes()).
		Str("notifier", cfg.Notifier).
		Msg("Pipeline ready")

	return a, nil
}

// NewNotifier builds the configured notifier wrapped with retries. The
// returned closer is nil when the notifier holds no connection.
func NewNotifier(cfg config.Config, log zerolog.Logger) (notify.Notifier, io.Closer, error) {
	var (
		base   notify.Notifier
		closer io.Closer
	)

	switch cfg.Notifier {
	case config.NotifierAMQP:
		n, err := notify.NewAMQPNotifier(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey)
		if err != nil {
			return nil, nil, fmt.Errorf("NewNotifier: %w", err)
		}
		base, closer = n, n
	case config.NotifierLog, "":
		base = notify.NewLogNotifier(log)
	default:
		return nil, nil, fmt.Errorf("NewNotifier: unknown notifier %q", cfg.Notifier)
	}

	return notify.NewRetrying(base, cfg.NotifyAttempts, cfg.NotifyRetryDelay, log), closer, nil
}

// NewPipeline builds a pipeline over fetcher and notifier using the
// configured report title and subject.
func NewPipeline(cfg config.Config, fetcher source.Fetcher, notifier notify.Notifier, log zerolog.Logger) (*pipeline.Pipeline, error) {
	return pipeline.New(pipeline.Config{
		Fetcher:   fetcher,
		Notifier:  notifier,
		Formatter: report.NewFormatter(cfg.ReportTitle),
		Subject:   cfg.NotifySubject,
		Logger:    log,
	})
}

// Close releases every client held by the App.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
