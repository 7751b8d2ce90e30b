// Package config provides SDK configuration loading from environment
// variables and an optional .env file, with sensible on-device defaults.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds everything the client needs to evaluate decisions and ship
// events. Priority: environment variables > .env file > defaults.
type Config struct {
	SDKKey         string        // Workspace SDK key, sent with every event batch
	EventBaseURL   string        // Event collection base URL
	RequestTimeout time.Duration // Per-request HTTP timeout
	FlushInterval  time.Duration // Periodic event flush cadence
	BatchSize      int           // Buffered-event count that triggers an early flush
	QueueCapacity  int           // In-memory event queue bound
	DedupInterval  time.Duration // Exposure dedup window; <= 0 disables dedup
	EventRetention int64         // Max durable event rows kept on disk
	EventStorePath string        // SQLite event database path; empty disables durability
	MetricsAddr    string        // Prometheus scrape address; empty disables the endpoint
	Platform       string        // Platform reported on in-app message requests
}

// Load reads configuration from the environment and a .env file if one is
// present. Environment variables take precedence.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	_ = v.ReadInConfig() // .env is optional
	v.AutomaticEnv()

	setDefaults(v)

	return &Config{
		SDKKey:         v.GetString("FLAGSHIP_SDK_KEY"),
		EventBaseURL:   v.GetString("FLAGSHIP_EVENT_BASE_URL"),
		RequestTimeout: v.GetDuration("FLAGSHIP_REQUEST_TIMEOUT"),
		FlushInterval:  v.GetDuration("FLAGSHIP_FLUSH_INTERVAL"),
		BatchSize:      v.GetInt("FLAGSHIP_BATCH_SIZE"),
		QueueCapacity:  v.GetInt("FLAGSHIP_QUEUE_CAPACITY"),
		DedupInterval:  v.GetDuration("FLAGSHIP_DEDUP_INTERVAL"),
		EventRetention: v.GetInt64("FLAGSHIP_EVENT_RETENTION"),
		EventStorePath: v.GetString("FLAGSHIP_EVENT_STORE_PATH"),
		MetricsAddr:    v.GetString("FLAGSHIP_METRICS_ADDR"),
		Platform:       v.GetString("FLAGSHIP_PLATFORM"),
	}, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("FLAGSHIP_EVENT_BASE_URL", "https://event.flagship.io")
	v.SetDefault("FLAGSHIP_REQUEST_TIMEOUT", "10s")
	v.SetDefault("FLAGSHIP_FLUSH_INTERVAL", "10s")
	v.SetDefault("FLAGSHIP_BATCH_SIZE", 100)
	v.SetDefault("FLAGSHIP_QUEUE_CAPACITY", 1000)
	v.SetDefault("FLAGSHIP_DEDUP_INTERVAL", "1m")
	v.SetDefault("FLAGSHIP_EVENT_RETENTION", 10000)
	v.SetDefault("FLAGSHIP_EVENT_STORE_PATH", "")
	v.SetDefault("FLAGSHIP_METRICS_ADDR", "")
	v.SetDefault("FLAGSHIP_PLATFORM", "ANDROID")
}

// ValidationError describes one configuration constraint violation.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation failed [%s]: %s", e.Field, e.Message)
}

// Validate checks the configuration for fail-fast startup errors.
func (c *Config) Validate() error {
	if c.SDKKey == "" {
		return ValidationError{
			Field:   "FLAGSHIP_SDK_KEY",
			Message: "SDK key is required",
		}
	}
	if c.EventBaseURL == "" {
		return ValidationError{
			Field:   "FLAGSHIP_EVENT_BASE_URL",
			Message: "event base URL cannot be empty",
		}
	}
	if c.BatchSize <= 0 {
		return ValidationError{
			Field:   "FLAGSHIP_BATCH_SIZE",
			Message: fmt.Sprintf("batch size must be positive, got %d", c.BatchSize),
		}
	}
	if c.QueueCapacity < c.BatchSize {
		return ValidationError{
			Field:   "FLAGSHIP_QUEUE_CAPACITY",
			Message: fmt.Sprintf("queue capacity %d must be at least the batch size %d", c.QueueCapacity, c.BatchSize),
		}
	}
	if c.FlushInterval <= 0 {
		return ValidationError{
			Field:   "FLAGSHIP_FLUSH_INTERVAL",
			Message: "flush interval must be positive",
		}
	}
	if c.EventRetention <= 0 {
		return ValidationError{
			Field:   "FLAGSHIP_EVENT_RETENTION",
			Message: fmt.Sprintf("event retention must be positive, got %d", c.EventRetention),
		}
	}
	return nil
}
