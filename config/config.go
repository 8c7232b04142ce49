package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Pipeline PipelineConfig
	Feeds    FeedConfig
	Notifier NotifierConfig
	Logging  LoggingConfig
	Metrics  MetricsConfig
	Redis    RedisConfig
}

type ServerConfig struct {
	Host                    string
	Port                    int
	ReadTimeout             time.Duration
	WriteTimeout            time.Duration
	IdleTimeout             time.Duration
	GracefulShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	URL             string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

type PipelineConfig struct {
	Interval               time.Duration
	RateLimit              float64
	WorkerCount            int
	RetryAttempts          int
	RetryDelay             time.Duration
	JamDeactivateBatchSize int
	DuplicateRadiusMeters  float64
}

type FeedConfig struct {
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
	UserAgent      string
	// InsecureSkipVerify disables TLS certificate checks on feed requests.
	// Some partner endpoints serve broken certificate chains; enabling this
	// is a known security gap and must be an explicit operator decision.
	InsecureSkipVerify bool
}

type NotifierConfig struct {
	BuilderInterval time.Duration
	WorkerInterval  time.Duration
	BatchSize       int
	SMTP            SMTPConfig
	Twilio          TwilioConfig
	WhatsApp        WhatsAppConfig
}

type SMTPConfig struct {
	Server   string
	Port     int
	Username string
	Password string
	From     string
	Subject  string
}

type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

type WhatsAppConfig struct {
	BaseURL     string
	DeviceToken string
	AuthToken   string
}

type LoggingConfig struct {
	Level  string
	Format string // json or text
}

type MetricsConfig struct {
	Enabled bool
	Port    int
	Path    string
}

type RedisConfig struct {
	URL          string
	RunLockTTL   time.Duration
	APIRateLimit int // requests per minute per client, 0 disables
}

// Load loads configuration from environment variables with sensible defaults
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:                    getEnv("SERVER_HOST", "0.0.0.0"),
			Port:                    getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:             getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:            getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:             getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			GracefulShutdownTimeout: getEnvDuration("SERVER_GRACEFUL_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvDuration("DB_MAX_CONN_LIFETIME", 1*time.Hour),
			MaxConnIdleTime: getEnvDuration("DB_MAX_CONN_IDLE_TIME", 30*time.Minute),
		},
		Pipeline: PipelineConfig{
			Interval:               getEnvDuration("PIPELINE_INTERVAL", 2*time.Minute),
			RateLimit:              getEnvFloat("PIPELINE_RATE_LIMIT", 5.0),
			WorkerCount:            getEnvInt("PIPELINE_WORKER_COUNT", 4),
			RetryAttempts:          getEnvInt("PIPELINE_RETRY_ATTEMPTS", 2),
			RetryDelay:             getEnvDuration("PIPELINE_RETRY_DELAY", 5*time.Second),
			JamDeactivateBatchSize: getEnvInt("PIPELINE_JAM_DEACTIVATE_BATCH", 1000),
			DuplicateRadiusMeters:  getEnvFloat("PIPELINE_DUPLICATE_RADIUS_M", 1500),
		},
		Feeds: FeedConfig{
			ConnectTimeout:     getEnvDuration("FEED_CONNECT_TIMEOUT", 5*time.Second),
			RequestTimeout:     getEnvDuration("FEED_REQUEST_TIMEOUT", 20*time.Second),
			UserAgent:          getEnv("FEED_USER_AGENT", "WazePortal-Ingest/1.0"),
			InsecureSkipVerify: getEnvBool("FEED_INSECURE_SKIP_VERIFY", false),
		},
		Notifier: NotifierConfig{
			BuilderInterval: getEnvDuration("NOTIFIER_BUILDER_INTERVAL", 1*time.Minute),
			WorkerInterval:  getEnvDuration("NOTIFIER_WORKER_INTERVAL", 30*time.Second),
			BatchSize:       getEnvInt("NOTIFIER_BATCH_SIZE", 5),
			SMTP: SMTPConfig{
				Server:   getEnv("SMTP_SERVER", ""),
				Port:     getEnvInt("SMTP_PORT", 587),
				Username: getEnv("SMTP_USERNAME", ""),
				Password: getEnv("SMTP_PASSWORD", ""),
				From:     getEnv("SMTP_FROM", ""),
				Subject:  getEnv("SMTP_SUBJECT", "Novo alerta de transito"),
			},
			Twilio: TwilioConfig{
				AccountSID: getEnv("TWILIO_ACCOUNT_SID", ""),
				AuthToken:  getEnv("TWILIO_AUTH_TOKEN", ""),
				FromNumber: getEnv("TWILIO_FROM_NUMBER", ""),
			},
			WhatsApp: WhatsAppConfig{
				BaseURL:     getEnv("WHATSAPP_BASE_URL", ""),
				DeviceToken: getEnv("WHATSAPP_DEVICE_TOKEN", ""),
				AuthToken:   getEnv("WHATSAPP_AUTH_TOKEN", ""),
			},
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Port:    getEnvInt("METRICS_PORT", 9090),
			Path:    getEnv("METRICS_PATH", "/metrics"),
		},
		Redis: RedisConfig{
			URL:          getEnv("REDIS_URL", ""),
			RunLockTTL:   getEnvDuration("REDIS_RUN_LOCK_TTL", 2*time.Minute),
			APIRateLimit: getEnvInt("API_RATE_LIMIT_RPM", 120),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("database max connections must be at least 1")
	}
	if c.Pipeline.WorkerCount < 1 {
		return fmt.Errorf("pipeline worker count must be at least 1")
	}
	if c.Pipeline.DuplicateRadiusMeters <= 0 {
		return fmt.Errorf("duplicate radius must be positive")
	}
	if c.Notifier.BatchSize < 1 {
		return fmt.Errorf("notifier batch size must be at least 1")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
