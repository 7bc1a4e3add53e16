package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/kamra34/agentic-fin-tracker/pkg/errors"
)

type Config struct {
	App           AppConfig
	Server        ServerConfig
	Postgres      PostgresConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	AI            AIConfig
	Chat          ChatConfig
	Quotes        QuotesConfig
	ErrorTracking ErrorTrackingConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"fin-assistant"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Version  string `envconfig:"APP_VERSION" default:"dev"`
}

type ServerConfig struct {
	Port         int           `envconfig:"HTTP_PORT" default:"8080"`
	ReadTimeout  time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"10s"`
	// Zero disables the write timeout; chat turns can take minutes
	WriteTimeout time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"0s"`
}

type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST" required:"true"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" required:"true"`
	Password string `envconfig:"POSTGRES_PASSWORD" required:"true"`
	Database string `envconfig:"POSTGRES_DB" required:"true"`
	SSLMode  string `envconfig:"POSTGRES_SSL_MODE" default:"disable"`
	MaxConns int    `envconfig:"POSTGRES_MAX_CONNS" default:"25"`
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" required:"true"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type KafkaConfig struct {
	Enabled bool     `envconfig:"KAFKA_ENABLED" default:"false"`
	Brokers []string `envconfig:"KAFKA_BROKERS"`
}

type AIConfig struct {
	OpenAIKey     string        `envconfig:"OPENAI_API_KEY" required:"true"`
	Model         string        `envconfig:"OPENAI_MODEL" default:"gpt-4o"`
	Timeout       time.Duration `envconfig:"AI_TIMEOUT" default:"45s"`
	RatePerMinute int           `envconfig:"AI_RATE_PER_MINUTE" default:"300"`
}

// ChatConfig bounds the reasoning loop and the context window handed to agents
type ChatConfig struct {
	MaxIterations  int           `envconfig:"CHAT_MAX_ITERATIONS" default:"5"`
	HistoryWindow  int           `envconfig:"CHAT_HISTORY_WINDOW" default:"10"`
	AgentTimeout   time.Duration `envconfig:"CHAT_AGENT_TIMEOUT" default:"30s"`
	PlannerTimeout time.Duration `envconfig:"CHAT_PLANNER_TIMEOUT" default:"20s"`
	StreamBuffer   int           `envconfig:"CHAT_STREAM_BUFFER" default:"32"`
}

type QuotesConfig struct {
	BaseURL string        `envconfig:"QUOTES_BASE_URL" default:"https://stooq.com"`
	Timeout time.Duration `envconfig:"QUOTES_TIMEOUT" default:"10s"`
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"false"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

// Load reads configuration from environment variables, preferring a local .env file
func Load() (*Config, error) {
	// .env is optional; real environments set variables directly
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "process env config")
	}

	if cfg.Chat.MaxIterations <= 0 {
		return nil, errors.Wrap(errors.ErrInvalidInput, "CHAT_MAX_ITERATIONS must be positive")
	}
	if cfg.Kafka.Enabled && len(cfg.Kafka.Brokers) == 0 {
		return nil, errors.Wrap(errors.ErrInvalidInput, "KAFKA_BROKERS required when kafka is enabled")
	}

	return &cfg, nil
}
