package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// The values are read by Viper from a config file or environment variables.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	S3       S3Config       `mapstructure:"s3"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Worker   WorkerConfig   `mapstructure:"worker"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

type DatabaseConfig struct {
	URI  string `mapstructure:"uri"`
	Name string `mapstructure:"name"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	BucketName      string `mapstructure:"bucket_name"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

// JWTConfig defines JWT specific configuration.
type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	Expiration time.Duration `mapstructure:"expiration"`
}

// QueueConfig tunes the durable sync job queue. Durations use Go duration
// strings in the config file ("2m", "24h").
type QueueConfig struct {
	VisibilityTimeout time.Duration `mapstructure:"visibility_timeout"`
	MaxAttempts       int           `mapstructure:"max_attempts"`
	RetryBaseDelay    time.Duration `mapstructure:"retry_base_delay"`
	MaxRetryDelay     time.Duration `mapstructure:"max_retry_delay"`
	CompletedTTL      time.Duration `mapstructure:"completed_ttl"`
	DeadTTL           time.Duration `mapstructure:"dead_ttl"`
}

// WorkerConfig tunes the background job worker process.
type WorkerConfig struct {
	Concurrency          int           `mapstructure:"concurrency"`
	PollInterval         time.Duration `mapstructure:"poll_interval"`
	MaxBackoff           time.Duration `mapstructure:"max_backoff"`
	DependencyRetryDelay time.Duration `mapstructure:"dependency_retry_delay"`
	MetricsAddress       string        `mapstructure:"metrics_address"`
	ArchivePrefix        string        `mapstructure:"archive_prefix"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	// Nested keys map to underscored environment variables,
	// e.g. queue.max_attempts -> QUEUE_MAX_ATTEMPTS.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))

	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("database.uri", "mongodb://localhost:27017")
	viper.SetDefault("database.name", "plansync")
	viper.SetDefault("s3.use_ssl", true)
	viper.SetDefault("jwt.expiration", "1h")

	viper.SetDefault("queue.visibility_timeout", "2m")
	viper.SetDefault("queue.max_attempts", 5)
	viper.SetDefault("queue.retry_base_delay", "5s")
	viper.SetDefault("queue.max_retry_delay", "5m")
	viper.SetDefault("queue.completed_ttl", "24h")
	viper.SetDefault("queue.dead_ttl", "168h")

	viper.SetDefault("worker.concurrency", 4)
	viper.SetDefault("worker.poll_interval", "1s")
	viper.SetDefault("worker.max_backoff", "30s")
	viper.SetDefault("worker.dependency_retry_delay", "2s")
	viper.SetDefault("worker.metrics_address", ":9091")
	viper.SetDefault("worker.archive_prefix", "dead-letters")

	// A missing config file is fine; env vars and defaults cover everything.
	err = viper.ReadInConfig()
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		err = nil
	} else if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	return config, nil
}
