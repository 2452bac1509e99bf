package config

import (
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration for both services.
type Config struct {
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Validation limits.
	MaxTextLength int `env:"MAX_TEXT_LENGTH" envDefault:"5000"`

	// Delivery retry contract.
	MaxDeliveryAttempts int           `env:"MAX_DELIVERY_ATTEMPTS" envDefault:"5"`
	AckDeadline         time.Duration `env:"ACK_DEADLINE" envDefault:"600s"`

	// Cost simulation for load scenarios; zero disables the hook.
	SleepPerChar time.Duration `env:"SLEEP_PER_CHAR" envDefault:"0"`

	// Delivery channel.
	RedisAddr     string `env:"REDIS_ADDR,required"`
	LogStream     string `env:"LOG_STREAM" envDefault:"log_envelopes"`
	DLQStream     string `env:"DLQ_STREAM" envDefault:"log_envelopes_dlq"`
	ConsumerGroup string `env:"CONSUMER_GROUP" envDefault:"log-processors"`

	// Processed log store.
	PostgresURL string `env:"POSTGRES_URL,required"`

	// Dead-letter archive.
	ArchiveDir         string `env:"ARCHIVE_DIR" envDefault:"deadletter"`
	ArchiveSegmentSize int64  `env:"ARCHIVE_SEGMENT_SIZE_BYTES" envDefault:"104857600"` // 100MB
	ArchiveMaxDiskSize int64  `env:"ARCHIVE_MAX_DISK_SIZE_BYTES" envDefault:"1073741824"` // 1GB

	// Servers.
	IngestServerAddr string `env:"INGEST_SERVER_ADDR" envDefault:":8080"`
	WorkerServerAddr string `env:"WORKER_SERVER_ADDR" envDefault:":8081"`
	AdminServerAddr  string `env:"ADMIN_SERVER_ADDR" envDefault:":9091"`

	// Ingest rate limiting.
	IngestRateLimit float64 `env:"INGEST_RATE_LIMIT" envDefault:"1000"` // requests per second
	IngestBurst     int     `env:"INGEST_BURST" envDefault:"200"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Attempt to load .env file for local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
