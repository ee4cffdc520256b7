package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/billwatch/internal/analysis"
	"github.com/dvloznov/billwatch/internal/domain"
	"github.com/dvloznov/billwatch/internal/extract"
	"github.com/dvloznov/billwatch/internal/logger"
	"github.com/dvloznov/billwatch/internal/notify"
	"github.com/dvloznov/billwatch/internal/report"
	"github.com/dvloznov/billwatch/internal/source"
)

// PipelineStep represents a single step of an analysis run.
type PipelineStep interface {
	Name() string
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	Location     string
	Raw          []byte
	Text         string
	Transactions []domain.Transaction
	Rejected     []*extract.RowError
	Weekly       analysis.WeeklyAnalysis
	Report       string
}

// FetchStep reads the raw file content for the location.
type FetchStep struct {
	Fetcher source.Fetcher
}

func (s *FetchStep) Name() string { return "fetch" }

func (s *FetchStep) Execute(ctx context.Context, state *PipelineState) error {
	raw, err := s.Fetcher.Fetch(ctx, state.Location)
	if err != nil {
		return &FetchError{Location: state.Location, Err: err}
	}
	state.Raw = raw
	return nil
}

// DecodeStep turns the raw bytes into text, dropping invalid sequences.
type DecodeStep struct{}

func (s *DecodeStep) Name() string { return "decode" }

func (s *DecodeStep) Execute(ctx context.Context, state *PipelineState) error {
	state.Text = source.DecodeText(state.Raw)
	return nil
}

// ExtractStep parses transactions out of the text.
type ExtractStep struct{}

func (s *ExtractStep) Name() string { return "extract" }

func (s *ExtractStep) Execute(ctx context.Context, state *PipelineState) error {
	state.Transactions, state.Rejected = extract.Scan(state.Text)

	log := logger.FromContext(ctx)
	for _, rej := range state.Rejected {
		log.Debug().
			Int("line", rej.Line).
			Str("reason", string(rej.Reason)).
			Str("token", rej.Token).
			Msg("Skipped billing line")
	}
	log.Info().
		Int("transactions", len(state.Transactions)).
		Int("rejected", len(state.Rejected)).
		Msg("Extracted transactions")

	if len(state.Transactions) == 0 {
		return ErrEmptyResult
	}
	return nil
}

// AggregateStep buckets the transactions into weeks.
type AggregateStep struct{}

func (s *AggregateStep) Name() string { return "aggregate" }

func (s *AggregateStep) Execute(ctx context.Context, state *PipelineState) error {
	state.Weekly = analysis.Aggregate(state.Transactions)
	return nil
}

// FormatStep renders the weekly analysis.
type FormatStep struct {
	Formatter *report.Formatter
}

func (s *FormatStep) Name() string { return "format" }

func (s *FormatStep) Execute(ctx context.Context, state *PipelineState) error {
	state.Report = s.Formatter.Format(state.Weekly)
	return nil
}

// DeliverStep sends the report. Delivery is best effort: failures are logged
// and never fail the run.
type DeliverStep struct {
	Notifier notify.Notifier
	Subject  string
}

func (s *DeliverStep) Name() string { return "deliver" }

func (s *DeliverStep) Execute(ctx context.Context, state *PipelineState) error {
	deliver(ctx, s.Notifier, s.Subject, state.Report)
	return nil
}

// deliverTimeout bounds one delivery, retries included.
const deliverTimeout = 30 * time.Second

// deliver ignores the cancellation of ctx so a run that hit its deadline
// still reports. Notifier errors and panics are logged.
func deliver(ctx context.Context, n notify.Notifier, subject, body string) {
	log := logger.FromContext(ctx)
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Str("subject", subject).
				Msg("Notifier panicked")
		}
	}()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deliverTimeout)
	defer cancel()

	if err := n.Notify(ctx, subject, body); err != nil {
		log.Error().
			Err(err).
			Str("subject", subject).
			Msg("Failed to send notification")
	}
}

// Steps executes a sequence of steps in order.
type Steps []PipelineStep

// Execute runs all steps sequentially, stopping at the first error.
func (s Steps) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range s {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d (%s) failed: %w", i+1, step.Name(), err)
		}
	}
	return nil
}
