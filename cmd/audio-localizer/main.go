// main package for the audio-localizer.
//
// One invocation per CI run: ingest the queued audio files, drive each one
// through transcription, translation, and synthesis, and publish every
// artifact under the environment prefix selected by the CI trigger. The
// process exits non-zero if any file or language branch failed, after all
// successful artifacts were published.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awstranscribe "github.com/aws/aws-sdk-go-v2/service/transcribe"
	awstranslate "github.com/aws/aws-sdk-go-v2/service/translate"
	"github.com/book-expert/logger"

	"github.com/book-expert/audio-localizer/internal/config"
	"github.com/book-expert/audio-localizer/internal/ingest"
	"github.com/book-expert/audio-localizer/internal/objectstore"
	"github.com/book-expert/audio-localizer/internal/pipeline"
	"github.com/book-expert/audio-localizer/internal/publish"
	"github.com/book-expert/audio-localizer/internal/synthesize"
	"github.com/book-expert/audio-localizer/internal/transcribe"
	"github.com/book-expert/audio-localizer/internal/translate"
)

const logFileName = "audio-localizer.log"

// ErrRunFailed indicates the run collected at least one failure.
var ErrRunFailed = errors.New("run finished with failures")

func setupLogger(logPath string) (*logger.Logger, error) {
	log, err := logger.New(logPath, logFileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}

func run() error {
	// The CI runner cancelling or timing out delivers a signal; in-flight
	// remote jobs are abandoned best effort.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bootstrapLog, err := setupLogger(os.TempDir())
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return err
	}

	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return fmt.Errorf("failed to load configuration: %w", err)
	}

	finalLog, err := setupLogger(cfg.LogDir)
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return fmt.Errorf("failed to create final logger: %w", err)
	}

	defer func() {
		closeErr := finalLog.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing final logger: %v\n", closeErr)
		}
	}()

	finalLog.System("Audio-localizer starting: environment=%s bucket=%s languages=%v",
		cfg.Environment, cfg.Bucket, cfg.TargetLanguages)

	return runPipeline(ctx, cfg, finalLog)
}

// runPipeline wires the AWS clients and adapters, then executes the run.
// Credential resolution is verified up front so a misconfigured run fails
// before any file is touched.
func runPipeline(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	_, err = awsCfg.Credentials.Retrieve(ctx)
	if err != nil {
		return fmt.Errorf("failed to resolve AWS credentials: %w", err)
	}

	store := objectstore.New(s3.NewFromConfig(awsCfg), cfg.Bucket)

	transcriber := transcribe.New(
		awstranscribe.NewFromConfig(awsCfg),
		store,
		cfg.Bucket,
		cfg.Environment,
		cfg.PollInterval,
		cfg.TranscribeTimeout,
		log,
	)
	translator := translate.New(
		awstranslate.NewFromConfig(awsCfg),
		cfg.TranslateSourceLanguage,
		cfg.MaxRetries,
		cfg.RequestTimeout,
		log,
	)
	synthesizer := synthesize.New(
		polly.NewFromConfig(awsCfg),
		cfg.Voices,
		cfg.PollyEngine,
		cfg.MaxRetries,
		cfg.RequestTimeout,
		log,
	)
	publisher := publish.New(store, cfg.Environment, cfg.MaxRetries, cfg.RequestTimeout, log)

	ingestor := ingest.New(cfg.InputDir, cfg.AudioExtension, cfg.TranscribeLanguage, log)

	files, skipped, err := ingestor.List()
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	log.Info("Ingested %d file(s), skipped %d", len(files), len(skipped))

	runner := pipeline.New(
		transcriber,
		translator,
		synthesizer,
		publisher,
		cfg.TargetLanguages,
		cfg.Workers,
		log,
	)

	summary := runner.Run(ctx, files)

	for _, skip := range skipped {
		summary.Failures = append(summary.Failures, pipeline.Failure{
			File:     skip.Name,
			Language: "",
			Stage:    pipeline.StageIngest,
			Err:      skip.Err,
		})
	}

	log.System("Run complete: %d file(s) processed, %d artifact(s) published, %d failure(s)",
		summary.Processed, summary.Published, len(summary.Failures))

	if summary.Failed() {
		log.Error("Failures:\n%s", summary.Report())
		fmt.Fprintf(os.Stderr, "failures:\n%s\n", summary.Report())

		return ErrRunFailed
	}

	return nil
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Run exited with error: %v\n", err)
		os.Exit(1)
	}
}
