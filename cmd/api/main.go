package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/billwatch/internal/api/handlers"
	"github.com/dvloznov/billwatch/internal/api/middleware"
	"github.com/dvloznov/billwatch/internal/app"
	"github.com/dvloznov/billwatch/internal/config"
	"github.com/dvloznov/billwatch/internal/jobs"
	"github.com/dvloznov/billwatch/internal/jobs/inmemory"
	"github.com/dvloznov/billwatch/internal/logger"
	"github.com/dvloznov/billwatch/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewWithLevel(cfg.LogLevel)
	ctx := logger.WithContext(context.Background(), log)

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize pipeline")
	}
	defer a.Close()

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(inmemory.Options{
		BufferSize: cfg.JobQueueSize,
		Workers:    cfg.JobWorkers,
		MaxRetries: cfg.JobMaxRetries,
	}, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	jobHandler := func(ctx context.Context, job *jobs.AnalyzeJob) error {
		log.Info().
			Str("job_id", job.JobID).
			Str("uri", job.URI).
			Msg("Processing analysis job")

		runCtx, cancel := context.WithTimeout(ctx, cfg.RunTimeout)
		defer cancel()

		res := a.Pipeline.Run(runCtx, job.URI)
		job.RunID = res.RunID
		job.Outcome = string(res.Outcome)
		job.Body = res.Body

		if res.Outcome == pipeline.OutcomeFailure {
			return res.Err
		}
		return nil
	}

	if err := jobQueue.Start(workerCtx, jobHandler); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job workers")
	}
	log.Info().Int("workers", cfg.JobWorkers).Msg("Job workers started")

	mux := handlers.NewMux(
		handlers.NewEventsHandler(a.Pipeline, cfg.RunTimeout, log),
		handlers.NewAnalysesHandler(jobQueue, log),
		handlers.NewJobsHandler(jobStore, log),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      middleware.Chain(mux, log),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RunTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	log.Info().Msg("Server exited")
}
