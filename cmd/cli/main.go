package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dvloznov/billwatch/internal/app"
	"github.com/dvloznov/billwatch/internal/config"
	"github.com/dvloznov/billwatch/internal/domain"
	"github.com/dvloznov/billwatch/internal/extract"
	"github.com/dvloznov/billwatch/internal/gcs"
	"github.com/dvloznov/billwatch/internal/logger"
	"github.com/dvloznov/billwatch/internal/notify"
	"github.com/dvloznov/billwatch/internal/pipeline"
	"github.com/dvloznov/billwatch/internal/source"
	"github.com/rs/zerolog"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.NewWithLevel(cfg.LogLevel)

	switch os.Args[1] {
	case "analyze":
		runAnalyze(cfg, log)
	case "inspect":
		runInspect(cfg, log)
	case "upload":
		runUpload(cfg, log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("billwatch CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  analyze   Analyze a billing file and send the report")
	fmt.Println("  inspect   Show extracted transactions and the report without notifying")
	fmt.Println("  upload    Upload a billing file to Cloud Storage")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

func runAnalyze(cfg config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	location := fs.String("location", "", "Billing file location (gs://, bq:// or a local path)")
	fs.Parse(os.Args[2:])

	if *location == "" {
		log.Fatal().Msg("Error: --location is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.RunTimeout)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize")
	}
	defer a.Close()

	res := a.Pipeline.Run(ctx, *location)
	if res.Outcome == pipeline.OutcomeSuccess {
		fmt.Println(res.Report)
	}
	fmt.Printf("%s (%d): %s\n", res.Outcome, res.StatusCode, res.Body)
}

func runInspect(cfg config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	filePath := fs.String("file", "", "Path to local billing file")
	fs.Parse(os.Args[2:])

	if *filePath == "" {
		log.Fatal().Msg("Error: --file is required")
	}

	ctx := logger.WithContext(context.Background(), log)

	raw, err := source.FileFetcher{}.Fetch(ctx, *filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read file")
	}
	text := source.DecodeText(raw)

	txs, rejected := extract.Scan(text)

	fmt.Println("\n=== Transactions ===")
	for _, tx := range txs {
		fmt.Printf("  %s\n", tx)
	}
	fmt.Printf("Total: %d transactions, $%s\n", len(txs), domain.SumAmounts(txs).StringFixed(2))

	if len(rejected) > 0 {
		fmt.Println("\n=== Skipped lines ===")
		for _, rej := range rejected {
			fmt.Printf("  %s\n", rej)
		}
	}

	discard := notify.NotifierFunc(func(ctx context.Context, subject, body string) error { return nil })
	p, err := app.NewPipeline(cfg, source.FileFetcher{}, discard, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build pipeline")
	}

	result, err := p.Analyze(text)
	if errors.Is(err, pipeline.ErrEmptyResult) {
		fmt.Println("\n" + pipeline.EmptyAlert)
		return
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Analysis failed")
	}

	fmt.Println()
	fmt.Println(result.Report)
}

func runUpload(cfg config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	bucketName := fs.String("bucket", cfg.GCSBucket, "GCS bucket name (defaults to BILLWATCH_GCS_BUCKET)")
	objectName := fs.String("object", "", "GCS object name (defaults to filename)")
	filePath := fs.String("file", "", "Path to local billing file")
	fs.Parse(os.Args[2:])

	if *bucketName == "" || *filePath == "" {
		log.Fatal().Msg("Usage: cli upload -bucket NAME -file PATH")
	}

	if *objectName == "" {
		*objectName = filepath.Base(*filePath)
	}

	ctx := logger.WithContext(context.Background(), log)

	svc, err := gcs.NewService(ctx, cfg.StorageClientOptions()...)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create storage client")
	}
	defer svc.Close()

	log.Info().
		Str("bucket", *bucketName).
		Str("object", *objectName).
		Str("file", *filePath).
		Msg("Uploading file to GCS")

	uri, err := svc.UploadFile(ctx, *bucketName, *objectName, *filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Upload failed")
	}

	fmt.Printf("Uploaded %s to %s\n", *filePath, uri)
}
