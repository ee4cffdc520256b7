// Package pipeline drives a single bill analysis: fetch the billing file,
// extract transactions, aggregate them into weeks, render the report and
// deliver it.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dvloznov/billwatch/internal/analysis"
	"github.com/dvloznov/billwatch/internal/domain"
	"github.com/dvloznov/billwatch/internal/logger"
	"github.com/dvloznov/billwatch/internal/notify"
	"github.com/dvloznov/billwatch/internal/report"
	"github.com/dvloznov/billwatch/internal/source"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Config holds the collaborators of a Pipeline.
type Config struct {
	Fetcher  source.Fetcher
	Notifier notify.Notifier
	// Formatter defaults to a formatter with the default title.
	Formatter *report.Formatter
	// Subject defaults to DefaultSubject.
	Subject string
	Logger  zerolog.Logger
}

// Analysis is the output of the analytical core.
type Analysis struct {
	Transactions []domain.Transaction
	Weekly       analysis.WeeklyAnalysis
	Report       string
}

// Pipeline runs bill analyses. It is safe for concurrent use; every run has
// its own state.
type Pipeline struct {
	fetcher   source.Fetcher
	notifier  notify.Notifier
	formatter *report.Formatter
	subject   string
	log       zerolog.Logger
}

// New creates a Pipeline from cfg.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Fetcher == nil {
		return nil, errors.New("New: fetcher is required")
	}
	if cfg.Notifier == nil {
		return nil, errors.New("New: notifier is required")
	}
	if cfg.Formatter == nil {
		cfg.Formatter = report.NewFormatter(report.DefaultTitle)
	}
	if strings.TrimSpace(cfg.Subject) == "" {
		cfg.Subject = DefaultSubject
	}
	return &Pipeline{
		fetcher:   cfg.Fetcher,
		notifier:  cfg.Notifier,
		formatter: cfg.Formatter,
		subject:   cfg.Subject,
		log:       cfg.Logger,
	}, nil
}

func (p *Pipeline) coreSteps() Steps {
	return Steps{
		&ExtractStep{},
		&AggregateStep{},
		&FormatStep{Formatter: p.formatter},
	}
}

func (p *Pipeline) runSteps() Steps {
	steps := Steps{
		&FetchStep{Fetcher: p.fetcher},
		&DecodeStep{},
	}
	steps = append(steps, p.coreSteps()...)
	return append(steps, &DeliverStep{Notifier: p.notifier, Subject: p.subject})
}

// Analyze runs the analytical core on already decoded text. It returns
// ErrEmptyResult when no transaction could be extracted.
func (p *Pipeline) Analyze(text string) (Analysis, error) {
	ctx := logger.WithContext(context.Background(), p.log)
	state := &PipelineState{Text: text}
	if err := p.coreSteps().Execute(ctx, state); err != nil {
		return Analysis{}, err
	}
	return Analysis{
		Transactions: state.Transactions,
		Weekly:       state.Weekly,
		Report:       state.Report,
	}, nil
}

// Run analyzes the billing file at location and delivers the result. A
// notification is attempted for every outcome; the error of a failed run is
// returned in Result.Err.
func (p *Pipeline) Run(ctx context.Context, location string) (res Result) {
	runID := uuid.NewString()
	log := p.log.With().
		Str("run_id", runID).
		Str("location", location).
		Logger()
	ctx = logger.WithContext(ctx, log)

	defer func() {
		if r := recover(); r != nil {
			res = p.fail(ctx, runID, location, fmt.Errorf("Run: panic: %v", r))
		}
	}()

	log.Info().Msg("Starting bill analysis")

	state := &PipelineState{Location: location}
	err := p.runSteps().Execute(ctx, state)
	switch {
	case err == nil:
		res = newResult(runID, location, OutcomeSuccess, SuccessBody)
		res.Report = state.Report
		log.Info().
			Int("weeks", state.Weekly.WeekCount).
			Int("overspending_weeks", len(state.Weekly.Overspending)).
			Msg("Bill analyzed and alert sent")
	case errors.Is(err, ErrEmptyResult):
		deliver(ctx, p.notifier, p.subject, EmptyAlert)
		res = newResult(runID, location, OutcomeEmpty, EmptyBody)
		res.Err = err
		log.Warn().Msg("No billing data found")
	default:
		res = p.fail(ctx, runID, location, err)
	}
	return res
}

func (p *Pipeline) fail(ctx context.Context, runID, location string, err error) Result {
	log := logger.FromContext(ctx)
	log.Error().Err(err).Msg("Bill analysis failed")
	deliver(ctx, p.notifier, p.subject, FailureAlert(err))
	res := newResult(runID, location, OutcomeFailure, err.Error())
	res.Err = err
	return res
}
