package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"

	"github.com/fourTheorem/podwhisperer/internal/callback"
	"github.com/fourTheorem/podwhisperer/internal/config"
	"github.com/fourTheorem/podwhisperer/internal/health"
	"github.com/fourTheorem/podwhisperer/internal/inference"
	"github.com/fourTheorem/podwhisperer/internal/pipeline"
	"github.com/fourTheorem/podwhisperer/internal/worker"
	"github.com/fourTheorem/podwhisperer/shared/logger"
	"github.com/fourTheorem/podwhisperer/shared/sqsclient"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	defaultConfigPath := os.Getenv("TRANSCRIBE_WORKER_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/transcribe-worker/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Configuration errors are fatal; there is no partial startup.
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger := logger.New(&logger.Config{
		Level:        cfg.Logging.Level,
		Format:       cfg.Logging.Format,
		Output:       cfg.Logging.Output,
		EnableSource: cfg.Logging.EnableCaller,
	})

	appLogger.Info("Starting transcribe worker",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	ctx := context.Background()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	queue := sqsclient.NewClient(sqs.NewFromConfig(awsCfg), &sqsclient.Config{
		QueueURL:          cfg.Queue.URL,
		MaxMessages:       cfg.Queue.MaxMessages,
		WaitTime:          cfg.Queue.WaitTime,
		VisibilityTimeout: cfg.Worker.JobTimeout,
	}, appLogger)

	store := pipeline.NewS3Store(s3.NewFromConfig(awsCfg), cfg.Storage.Bucket, appLogger)
	reporter := callback.NewReporter(lambda.NewFromConfig(awsCfg), cfg.Callback.FunctionName, appLogger)
	engine := inference.NewClient(cfg.Inference.Endpoint)

	jobPipeline := pipeline.NewPipeline(store, engine, reporter, &pipeline.Config{
		ModelName:   cfg.Inference.ModelName,
		Device:      cfg.Inference.Device,
		Language:    cfg.Inference.Language,
		MinSpeakers: cfg.Inference.MinSpeakers,
		MaxSpeakers: cfg.Inference.MaxSpeakers,
	}, appLogger)

	state := worker.NewState()
	workerInstance := worker.NewWorker(&worker.Config{
		Logger:        appLogger,
		Queue:         queue,
		Pipeline:      jobPipeline,
		Reporter:      reporter,
		State:         state,
		JobTimeout:    cfg.Worker.JobTimeout,
		GracePeriod:   cfg.Worker.GracePeriod,
		MaxEmptyPolls: cfg.Worker.MaxEmptyPolls,
	})

	var healthServer *health.Server
	if cfg.Health.Enabled {
		healthServer = health.NewServer(cfg.Health.Port, state, appLogger)
		go func() {
			if err := healthServer.Start(); err != nil {
				appLogger.Error("Health server error", slog.Any("error", err))
			}
		}()
	}

	// The termination handler only flags the worker; the loop finishes its
	// current batch iteration and drains within the grace period.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-quit
		appLogger.Info("Received signal, initiating graceful shutdown",
			slog.String("signal", sig.String()),
		)
		workerInstance.RequestShutdown()
	}()

	runErr := workerInstance.Run(ctx)

	if healthServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := healthServer.Shutdown(shutdownCtx); err != nil {
			appLogger.Warn("Health server shutdown error", slog.Any("error", err))
		}
	}

	if runErr != nil {
		appLogger.Error("Worker loop failed", slog.Any("error", runErr))
		return runErr
	}

	appLogger.Info("Worker shutdown complete")
	return nil
}
