package config

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"github.com/therealutkarshpriyadarshi/jifmaker/pkg/models"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
	Tools     ToolsConfig
	Workspace WorkspaceConfig
	Defaults  models.EncodeParameters
	Settings  SettingsConfig
	Redis     RedisConfig
	Storage   StorageConfig
	Queue     QueueConfig
	Metrics   MetricsConfig
	Tracing   TracingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// AuthConfig enables bearer-token auth on the API when JWTSecret is set
type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// RateLimitConfig limits conversion requests per client
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerSecond float64
	Burst             int
}

// LoggingConfig mirrors logging.Config
type LoggingConfig struct {
	Level  string
	Format string
	Output string
}

// ToolsConfig holds paths to the external binaries
type ToolsConfig struct {
	FFmpegPath   string
	FFprobePath  string
	GIFsiclePath string
	// CheckOnStartup fails fast when ffmpeg or ffprobe is missing
	CheckOnStartup bool
}

// WorkspaceConfig controls where transient artifacts live
type WorkspaceConfig struct {
	Root string
}

// SettingsConfig points at the saved encode parameters
type SettingsConfig struct {
	Path string
}

// RedisConfig holds Redis configuration for the probe cache and job status
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	ProbeTTL time.Duration
	JobTTL   time.Duration
}

// StorageConfig holds object storage configuration for publishing outputs
type StorageConfig struct {
	Enabled         bool
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	Region          string
	UseSSL          bool
	Prefix          string
}

// QueueConfig holds message queue configuration
type QueueConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	Vhost    string
}

// MetricsConfig holds the prometheus endpoint configuration
type MetricsConfig struct {
	Enabled bool
	Port    int
}

// TracingConfig holds Jaeger configuration; an empty endpoint disables tracing
type TracingConfig struct {
	ServiceName string
	Endpoint    string
	SampleRate  float64
}

// Load reads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("JIFMAKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return unmarshal(v)
}

// Default returns the configuration built from defaults and environment only
func Default() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("JIFMAKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config, viper.DecodeHook(DecodeHook())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &config, nil
}

// DecodeHook extends viper's default hooks so heights may be written as "auto"
func DecodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		heightHook,
	)
}

var heightType = reflect.TypeOf(models.Height(0))

func heightHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if to != heightType || from.Kind() != reflect.String {
		return data, nil
	}
	s := strings.TrimSpace(data.(string))
	if s == "" || strings.EqualFold(s, "auto") {
		return models.AutoHeight, nil
	}
	var h models.Height
	if err := h.UnmarshalJSON([]byte(s)); err != nil {
		return nil, err
	}
	return h, nil
}

// SetParameterDefaults registers every EncodeParameters key under prefix.
// An empty prefix registers them at the top level.
func SetParameterDefaults(v *viper.Viper, prefix string, d models.EncodeParameters) {
	key := func(k string) string {
		if prefix == "" {
			return k
		}
		return prefix + "." + k
	}

	v.SetDefault(key("output_width"), d.OutputWidth)
	v.SetDefault(key("output_height"), int(d.OutputHeight))
	v.SetDefault(key("maintain_aspect_ratio"), d.MaintainAspectRatio)
	v.SetDefault(key("crop_top"), d.CropTop)
	v.SetDefault(key("crop_bottom"), d.CropBottom)
	v.SetDefault(key("crop_left"), d.CropLeft)
	v.SetDefault(key("crop_right"), d.CropRight)
	v.SetDefault(key("frame_rate"), d.FrameRate)
	v.SetDefault(key("max_colors"), d.MaxColors)
	v.SetDefault(key("dither_mode"), string(d.DitherMode))
	v.SetDefault(key("loop_infinitely"), d.LoopInfinitely)
	v.SetDefault(key("trim_start"), d.TrimStart)
	v.SetDefault(key("trim_end"), d.TrimEnd)
	v.SetDefault(key("frame_skip"), d.FrameSkip)
	v.SetDefault(key("frame_diff_threshold_percent"), d.FrameDiffThresholdPercent)
	v.SetDefault(key("compression_tier"), string(d.CompressionTier))
	v.SetDefault(key("optimize_transparency"), d.OptimizeTransparency)
	v.SetDefault(key("disable_gif_extensions"), d.DisableGIFExtensions)
	v.SetDefault(key("use_external_optimizer"), d.UseExternalOptimizer)
	v.SetDefault(key("optimizer_level"), string(d.OptimizerLevel))
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.readTimeout", "30s")
	v.SetDefault("server.writeTimeout", "10m")
	v.SetDefault("server.shutdownTimeout", "10s")

	v.SetDefault("auth.jwtSecret", "")
	v.SetDefault("auth.tokenTTL", "720h")

	v.SetDefault("rateLimit.enabled", true)
	v.SetDefault("rateLimit.requestsPerSecond", 2)
	v.SetDefault("rateLimit.burst", 4)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	// Tool defaults
	v.SetDefault("tools.ffmpegPath", "ffmpeg")
	v.SetDefault("tools.ffprobePath", "ffprobe")
	v.SetDefault("tools.gifsiclePath", "gifsicle")
	v.SetDefault("tools.checkOnStartup", true)

	v.SetDefault("workspace.root", "")
	v.SetDefault("settings.path", "jifmaker-settings.yaml")

	// Encode parameter defaults
	SetParameterDefaults(v, "defaults", models.DefaultEncodeParameters())

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.probeTTL", "1h")
	v.SetDefault("redis.jobTTL", "24h")

	// Storage defaults
	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.endpoint", "localhost:9000")
	v.SetDefault("storage.accessKeyID", "minioadmin")
	v.SetDefault("storage.secretAccessKey", "minioadmin")
	v.SetDefault("storage.bucketName", "gifs")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.useSSL", false)
	v.SetDefault("storage.prefix", "outputs")

	// Queue defaults
	v.SetDefault("queue.enabled", false)
	v.SetDefault("queue.host", "localhost")
	v.SetDefault("queue.port", 5672)
	v.SetDefault("queue.user", "guest")
	v.SetDefault("queue.password", "guest")
	v.SetDefault("queue.vhost", "/")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)

	v.SetDefault("tracing.serviceName", "jifmaker")
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.sampleRate", 1.0)
}
