package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/therealutkarshpriyadarshi/jifmaker/internal/cache"
	"github.com/therealutkarshpriyadarshi/jifmaker/internal/config"
	"github.com/therealutkarshpriyadarshi/jifmaker/internal/logging"
	"github.com/therealutkarshpriyadarshi/jifmaker/internal/metrics"
	"github.com/therealutkarshpriyadarshi/jifmaker/internal/middleware"
	"github.com/therealutkarshpriyadarshi/jifmaker/internal/queue"
	"github.com/therealutkarshpriyadarshi/jifmaker/internal/settings"
	"github.com/therealutkarshpriyadarshi/jifmaker/internal/storage"
	"github.com/therealutkarshpriyadarshi/jifmaker/internal/tracing"
	"github.com/therealutkarshpriyadarshi/jifmaker/internal/transcoder"
	"github.com/therealutkarshpriyadarshi/jifmaker/internal/workspace"
)

func main() {
	issueToken := flag.String("issue-token", "", "print a bearer token for the given client name and exit")
	flag.Parse()

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

	if *issueToken != "" {
		if cfg.Auth.JWTSecret == "" {
			fmt.Fprintln(os.Stderr, "auth.jwtSecret is not set")
			os.Exit(1)
		}
		token, err := middleware.GenerateToken(cfg.Auth.JWTSecret, *issueToken, cfg.Auth.TokenTTL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to issue token: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(token)
		return
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

	_, tracerCloser, err := tracing.InitTracer(cfg.Tracing.ServiceName+"-api", cfg.Tracing.Endpoint, cfg.Tracing.SampleRate)
	if err != nil {
		logger.Fatalf("Failed to initialize tracing: %v", err)
	}
	defer tracerCloser.Close()

	// Initialize FFmpeg
	ffmpeg := transcoder.NewFFmpeg(cfg.Tools.FFmpegPath, cfg.Tools.FFprobePath, cfg.Tools.GIFsiclePath)
	if cfg.Tools.CheckOnStartup {
		if err := ffmpeg.CheckTools(false); err != nil {
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
	var checks []healthCheck
	checks = append(checks, healthCheck{name: "tools", check: func(ctx context.Context) error {
		return ffmpeg.CheckTools(false)
	}})

	// Initialize cache
	if cfg.Redis.Enabled {
		c, err := cache.NewCache(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Fatalf("Failed to connect to redis: %v", err)
		}
		defer c.Close()
		opts.Cache = c
		opts.Jobs = c
		checks = append(checks, healthCheck{name: "redis", check: c.Ping})
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
	if cfg.Queue.Enabled {
		q, err := queue.New(cfg.Queue, logger)
		if err != nil {
			logger.Fatalf("Failed to connect to queue: %v", err)
		}
		defer q.Close()
		opts.Queue = q
	}

	api := &API{
		service:  transcoder.NewService(ffmpeg, ws, logger, opts),
		settings: settings.Open(cfg.Settings.Path, cfg.Defaults),
		checks:   checks,
		logger:   logger,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	routeOpts := routerOptions{jwtSecret: cfg.Auth.JWTSecret}
	if cfg.RateLimit.Enabled {
		routeOpts.limiter = middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
		go routeOpts.limiter.Cleanup(ctx, 10*time.Minute)
	}

	gin.SetMode(gin.ReleaseMode)
	router := setupRouter(api, logger, routeOpts)

	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(cfg.Metrics.Port, logger)
		go func() {
			if err := metricsServer.Start(); err != nil {
				logger.ErrorWithErr("metrics server stopped", err)
			}
		}()
	}

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Infof("Starting API server on %s (workspace %s)", addr, ws.Dir())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.ErrorWithErr("Server forced to shutdown", err)
	}
	if metricsServer != nil {
		metricsServer.Shutdown(shutdownCtx)
	}

	logger.Info("Server stopped")
}

// loadConfig reads configPath, falling back to defaults and environment when
// the file does not exist
func loadConfig(configPath string) (*config.Config, error) {
	if _, err := os.Stat(configPath); errors.Is(err, fs.ErrNotExist) {
		return config.Default()
	}
	return config.Load(configPath)
}
