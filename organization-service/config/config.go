package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/draftea/organization-system/shared/logging"
	"github.com/spf13/viper"
)

type Config struct {
	ServiceName string         `mapstructure:"service_name"`
	Env         string         `mapstructure:"env"`
	Port        string         `mapstructure:"port"`
	Log         logging.Config `mapstructure:"log"`
	Database    Database       `mapstructure:"database"`
	AWS         AWS            `mapstructure:"aws"`
	Redis       Redis          `mapstructure:"redis"`
	Lock        Lock           `mapstructure:"lock"`
	Saga        Saga           `mapstructure:"saga"`
	Telemetry   Telemetry      `mapstructure:"telemetry"`

	databaseURL string
}

type Database struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

type AWS struct {
	Region      string `mapstructure:"region"`
	EndpointSNS string `mapstructure:"endpoint_sns"`
	EndpointSQS string `mapstructure:"endpoint_sqs"`
	SNSTopicArn string `mapstructure:"sns_topic_arn"`
	SQSQueueURL string `mapstructure:"sqs_queue_url"`
}

type Redis struct {
	URL     string        `mapstructure:"url"`
	LockTTL time.Duration `mapstructure:"lock_ttl"`
}

// Lock selects the lock backend shared by participant handlers and the
// per-saga guard of the orchestrator
type Lock struct {
	Backend       string        `mapstructure:"backend"`
	Policy        string        `mapstructure:"policy"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
}

type Saga struct {
	StallTimeout       time.Duration `mapstructure:"stall_timeout"`
	SupervisorSchedule string        `mapstructure:"supervisor_schedule"`
	DedupCacheSize     int           `mapstructure:"dedup_cache_size"`
}

type Telemetry struct {
	Enabled      bool   `mapstructure:"enabled"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

const (
	LockBackendMemory = "memory"
	LockBackendRedis  = "redis"
)

func ReadConfig() (*Config, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return nil, fmt.Errorf("unable to get current file")
	}

	v := viper.New()
	v.SetConfigName(getConfigName())
	v.SetConfigType("json")
	v.AddConfigPath(filepath.Dir(filename))

	// ORGANIZATION_DATABASE_HOST overrides database.host
	v.SetEnvPrefix("ORGANIZATION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if url := os.Getenv("DATABASE_URL"); url != "" {
		config.databaseURL = url
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate rejects settings the service cannot start with
func (c *Config) Validate() error {
	switch c.Lock.Backend {
	case LockBackendMemory, LockBackendRedis:
	default:
		return fmt.Errorf("unknown lock backend %q", c.Lock.Backend)
	}
	if c.Lock.Backend == LockBackendRedis && c.Redis.URL == "" {
		return fmt.Errorf("redis url is required for the redis lock backend")
	}
	if c.Saga.StallTimeout <= 0 {
		return fmt.Errorf("saga stall timeout must be positive")
	}
	return nil
}

func getConfigName() string {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		return "local"
	}
	return env
}

func setDefaults(v *viper.Viper) {
	// Service defaults
	v.SetDefault("service_name", "organization-service")
	v.SetDefault("env", getEnv("ENV", "local"))
	v.SetDefault("port", getEnv("PORT", "8080"))
	v.SetDefault("log.level", getEnv("LOG_LEVEL", "info"))
	v.SetDefault("log.format", "json")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "password")
	v.SetDefault("database.database", "organization_system")
	v.SetDefault("database.ssl_mode", "disable")

	// AWS defaults
	v.SetDefault("aws.region", getEnv("AWS_DEFAULT_REGION", "us-east-1"))
	v.SetDefault("aws.endpoint_sns", getEnv("AWS_ENDPOINT_URL_SNS", ""))
	v.SetDefault("aws.endpoint_sqs", getEnv("AWS_ENDPOINT_URL_SQS", ""))
	v.SetDefault("aws.sns_topic_arn", getEnv("SNS_TOPIC_ARN", "arn:aws:sns:us-east-1:000000000000:organization-messages"))
	v.SetDefault("aws.sqs_queue_url", getEnv("SQS_QUEUE_URL", "http://localhost:4566/000000000000/organization-service"))

	v.SetDefault("redis.url", getEnv("REDIS_URL", ""))
	v.SetDefault("redis.lock_ttl", 30*time.Second)

	v.SetDefault("lock.backend", LockBackendMemory)
	v.SetDefault("lock.policy", "block")
	v.SetDefault("lock.retry_interval", 50*time.Millisecond)

	v.SetDefault("saga.stall_timeout", 5*time.Minute)
	v.SetDefault("saga.supervisor_schedule", "@every 30s")
	v.SetDefault("saga.dedup_cache_size", 4096)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.otlp_endpoint", getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""))
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetDatabaseURL constructs database URL from config
func (c *Config) GetDatabaseURL() string {
	if c.databaseURL != "" {
		return c.databaseURL
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.SSLMode,
	)
}
