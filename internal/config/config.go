package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config struct for environment variables.
type Config struct {
	TasksFile         string        `envconfig:"TASKS_FILE" default:"tasks.yml"`
	LogLevel          string        `envconfig:"LOG_LEVEL" default:"INFO"`
	DBPath            string        `envconfig:"DB_PATH" default:"torrent_feeder.db"`
	TempDir           string        `envconfig:"TEMP_DIR"`
	BatchTimeout      time.Duration `envconfig:"BATCH_TIMEOUT" default:"30s"`
	MaxParallel       int           `envconfig:"MAX_PARALLEL" default:"5"`
	RunInterval       time.Duration `envconfig:"RUN_INTERVAL" default:"15m"`
	CleanupInterval   time.Duration `envconfig:"CLEANUP_INTERVAL" default:"1h"`
	HistoryRetention  time.Duration `envconfig:"HISTORY_RETENTION" default:"720h"`
	DiscordWebhookURL string        `envconfig:"DISCORD_WEBHOOK_URL"`

	// Connection defaults for the deluge plugins. Task config wins.
	Deluge struct {
		Host     string `default:"localhost"`
		Port     int    `default:"8112"`
		User     string
		Password string
		APIPath  string `split_words:"true" default:"/json"`
		Insecure bool
	}

	Telemetry struct {
		Enabled        bool   `default:"true"`
		ServiceName    string `split_words:"true" default:"torrent_feeder"`
		ServiceVersion string `split_words:"true" default:"dev"`
		OTLPEndpoint   string `envconfig:"OTLP_ENDPOINT"`
		OTLPInsecure   bool   `envconfig:"OTLP_INSECURE"`
	}

	Web struct {
		BindAddress     string `split_words:"true" default:"0.0.0.0:9092"`
		Username        string
		Password        string
		ReadTimeout     time.Duration `split_words:"true" default:"30s"`
		WriteTimeout    time.Duration `split_words:"true" default:"30s"`
		IdleTimeout     time.Duration `split_words:"true" default:"5s"`
		ShutdownTimeout time.Duration `split_words:"true" default:"30s"`
	}
}

// LoadConfig reads environment variables and populates the Config struct.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("error processing env: %w", err)
	}

	if cfg.MaxParallel < 1 {
		return nil, fmt.Errorf("MAX_PARALLEL must be at least 1, got %d", cfg.MaxParallel)
	}

	if cfg.BatchTimeout <= 0 {
		return nil, fmt.Errorf("BATCH_TIMEOUT must be positive, got %s", cfg.BatchTimeout)
	}

	return &cfg, nil
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
