package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/therealutkarshpriyadarshi/jifmaker/internal/cache"
	"github.com/therealutkarshpriyadarshi/jifmaker/internal/config"
	"github.com/therealutkarshpriyadarshi/jifmaker/internal/logging"
	"github.com/therealutkarshpriyadarshi/jifmaker/internal/metrics"
	"github.com/therealutkarshpriyadarshi/jifmaker/internal/queue"
	"github.com/therealutkarshpriyadarshi/jifmaker/internal/storage"
	"github.com/therealutkarshpriyadarshi/jifmaker/internal/tracing"
	"github.com/therealutkarshpriyadarshi/jifmaker/internal/transcoder"
	"github.com/therealutkarshpriyadarshi/jifmaker/internal/workspace"
	"github.com/therealutkarshpriyadarshi/jifmaker/pkg/models"
)

func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	if !cfg.Queue.Enabled {
		logger.Fatal("queue.enabled must be true to run the worker")
	}

	_, tracerCloser, err := tracing.InitTracer(cfg.Tracing.ServiceName+"-worker", cfg.Tracing.Endpoint, cfg.Tracing.SampleRate)
	if err != nil {
		logger.Fatalf("Failed to initialize tracing: %v", err)
	}
	defer tracerCloser.Close()

	// Initialize FFmpeg
	ffmpeg := transcoder.NewFFmpeg(cfg.Tools.FFmpegPath, cfg.Tools.FFprobePath, cfg.Tools.GIFsiclePath)
	if cfg.Tools.CheckOnStartup {
		if err := ffmpeg.CheckTools(true); err != nil {
			logger.Fatalf("Tool check failed: %v", err)
		}
	}

	ws, err := workspace.New(cfg.Workspace.Root)
	if err != nil {
		logger.Fatalf("Failed to create workspace: %v", err)
	}
	defer ws.Close()

	opts := transcoder.Options{
		ProbeTTL: cfg.Redis.ProbeTTL,
		JobTTL:   cfg.Redis.JobTTL,
	}

	// Initialize cache
	if cfg.Redis.Enabled {
		c, err := cache.NewCache(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Fatalf("Failed to connect to redis: %v", err)
		}
		defer c.Close()
		opts.Cache = c
		opts.Jobs = c
	}

	// Initialize storage
	if cfg.Storage.Enabled {
		stor, err := storage.New(cfg.Storage, logger)
		if err != nil {
			logger.Fatalf("Failed to initialize storage: %v", err)
		}
		opts.Publisher = stor
	}

	// Initialize queue
	q, err := queue.New(cfg.Queue, logger)
	if err != nil {
		logger.Fatalf("Failed to connect to queue: %v", err)
	}
	defer q.Close()
	opts.Queue = q

	svc := transcoder.NewService(ffmpeg, ws, logger, opts)

	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(cfg.Metrics.Port, logger)
		go func() {
			if err := metricsServer.Start(); err != nil {
				logger.ErrorWithErr("metrics server stopped", err)
			}
		}()
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown gracefully
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutting down worker gracefully...")
		cancel()
	}()

	go reportQueueDepth(ctx, q, logger)

	// Job handler
	jobHandler := func(ctx context.Context, job *models.ConversionJob) error {
		logger.WithJobID(job.ID).WithFields(map[string]interface{}{
			"input":  job.Request.InputPath,
			"output": job.Request.OutputPath,
		}).Info("Processing job")
		return svc.ProcessJob(ctx, job)
	}

	// Start consuming jobs
	logger.Infof("Worker started in %s, waiting for jobs...", ws.Dir())
	consumerDone, err := q.ConsumeJobs(ctx, jobHandler)
	if err != nil {
		logger.Fatalf("Failed to consume jobs: %v", err)
	}

	// Wait for shutdown, then for the job in flight to be recorded and acked
	<-ctx.Done()
	<-consumerDone

	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		metricsServer.Shutdown(shutdownCtx)
	}

	logger.Info("Worker stopped")
}

// reportQueueDepth refreshes the queue depth gauges until ctx is done
func reportQueueDepth(ctx context.Context, q *queue.Queue, logger *logging.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			depth, err := q.GetQueueDepth()
			if err != nil {
				logger.WithError(err).Warn("failed to read queue depth")
				continue
			}
			metrics.SetQueueDepth(queue.ConversionQueueName, depth)

			dlq, err := q.GetDLQDepth()
			if err != nil {
				logger.WithError(err).Warn("failed to read dead letter queue depth")
				continue
			}
			metrics.SetQueueDepth(queue.DeadLetterQueueName, dlq)
		}
	}
}

func loadConfig(configPath string) (*config.Config, error) {
	if _, err := os.Stat(configPath); errors.Is(err, fs.ErrNotExist) {
		return config.Default()
	}
	return config.Load(configPath)
}
