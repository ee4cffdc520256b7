package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/dvloznov/billwatch/internal/app"
	"github.com/dvloznov/billwatch/internal/config"
	"github.com/dvloznov/billwatch/internal/logger"
	"github.com/dvloznov/billwatch/internal/pipeline"
)

// Exit codes per outcome.
const (
	exitSuccess = 0
	exitFailure = 1
	exitEmpty   = 2
)

func main() {
	location := flag.String("location", "", "Billing file location (gs://bucket/object, bq://project.dataset.table, or a local path)")
	flag.Parse()

	if *location == "" && flag.NArg() > 0 {
		*location = flag.Arg(0)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(exitFailure)
	}

	log := logger.NewWithLevel(cfg.LogLevel)

	if *location == "" {
		log.Fatal().Msg("Error: --location is required")
	}

	// Create context with timeout so a run doesn't hang
	ctx, cancel := context.WithTimeout(context.Background(), cfg.RunTimeout)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize")
	}

	res := a.Pipeline.Run(ctx, *location)

	if err := a.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close clients")
	}

	fmt.Printf("%s (%d): %s\n", res.Outcome, res.StatusCode, res.Body)

	os.Exit(exitCode(res.Outcome))
}

func exitCode(o pipeline.Outcome) int {
	switch o {
	case pipeline.OutcomeSuccess:
		return exitSuccess
	case pipeline.OutcomeEmpty:
		return exitEmpty
	default:
		return exitFailure
	}
}
