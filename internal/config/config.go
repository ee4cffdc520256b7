// Package config loads billwatch settings from the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"google.golang.org/api/option"
)

// EnvPrefix is the prefix shared by every billwatch environment variable.
const EnvPrefix = "BILLWATCH_"

// Notifier kinds.
const (
	NotifierLog  = "log"
	NotifierAMQP = "amqp"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	// Port the API server listens on.
	// Environment variable: BILLWATCH_PORT
	Port string `koanf:"BILLWATCH_PORT"`

	// LogLevel is a zerolog level name.
	// Environment variable: BILLWATCH_LOG_LEVEL
	LogLevel string `koanf:"BILLWATCH_LOG_LEVEL"`

	ReportTitle   string `koanf:"BILLWATCH_REPORT_TITLE"`
	NotifySubject string `koanf:"BILLWATCH_NOTIFY_SUBJECT"`

	// Notifier selects the delivery channel: "log" or "amqp".
	// Environment variable: BILLWATCH_NOTIFIER
	Notifier         string        `koanf:"BILLWATCH_NOTIFIER"`
	AMQPURL          string        `koanf:"BILLWATCH_AMQP_URL"`
	AMQPExchange     string        `koanf:"BILLWATCH_AMQP_EXCHANGE"`
	AMQPRoutingKey   string        `koanf:"BILLWATCH_AMQP_ROUTING_KEY"`
	NotifyAttempts   int           `koanf:"BILLWATCH_NOTIFY_ATTEMPTS"`
	NotifyRetryDelay time.Duration `koanf:"BILLWATCH_NOTIFY_RETRY_DELAY"`

	// Cloud Storage. GCSEndpoint points the client at an emulator.
	GCSBucket             string `koanf:"BILLWATCH_GCS_BUCKET"`
	GCSEndpoint           string `koanf:"BILLWATCH_GCS_ENDPOINT"`
	GoogleCredentialsFile string `koanf:"BILLWATCH_GOOGLE_CREDENTIALS_FILE"`

	// BillingProject enables bq:// locations; queries are billed to it.
	// Environment variable: BILLWATCH_BILLING_PROJECT
	BillingProject      string `koanf:"BILLWATCH_BILLING_PROJECT"`
	BillingLookbackDays int    `koanf:"BILLWATCH_BILLING_LOOKBACK_DAYS"`

	JobWorkers    int `koanf:"BILLWATCH_JOB_WORKERS"`
	JobQueueSize  int `koanf:"BILLWATCH_JOB_QUEUE_SIZE"`
	JobMaxRetries int `koanf:"BILLWATCH_JOB_MAX_RETRIES"`

	// RunTimeout bounds a single analysis run.
	// Environment variable: BILLWATCH_RUN_TIMEOUT
	RunTimeout time.Duration `koanf:"BILLWATCH_RUN_TIMEOUT"`
}

// Defaults.
const (
	DefaultPort                = "8080"
	DefaultLogLevel            = "info"
	DefaultAMQPExchange        = "billwatch"
	DefaultAMQPRoutingKey      = "bill.analysis"
	DefaultNotifyAttempts      = 3
	DefaultNotifyRetryDelay    = 2 * time.Second
	DefaultBillingLookbackDays = 90
	DefaultJobWorkers          = 1
	DefaultJobQueueSize        = 100
	DefaultRunTimeout          = 5 * time.Minute
)

// Load reads .env (when present) and the environment into a Config, applies
// defaults and validates the result.
func Load() (Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider(EnvPrefix, ".", nil), nil); err != nil {
		return Config{}, fmt.Errorf("Load: env: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf", FlatPaths: true}); err != nil {
		return Config{}, fmt.Errorf("Load: unmarshal: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Port == "" {
		c.Port = DefaultPort
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	c.Notifier = strings.ToLower(strings.TrimSpace(c.Notifier))
	if c.Notifier == "" {
		c.Notifier = NotifierLog
	}
	if c.AMQPExchange == "" {
		c.AMQPExchange = DefaultAMQPExchange
	}
	if c.AMQPRoutingKey == "" {
		c.AMQPRoutingKey = DefaultAMQPRoutingKey
	}
	if c.NotifyAttempts <= 0 {
		c.NotifyAttempts = DefaultNotifyAttempts
	}
	if c.NotifyRetryDelay <= 0 {
		c.NotifyRetryDelay = DefaultNotifyRetryDelay
	}
	if c.BillingLookbackDays <= 0 {
		c.BillingLookbackDays = DefaultBillingLookbackDays
	}
	if c.JobWorkers <= 0 {
		c.JobWorkers = DefaultJobWorkers
	}
	if c.JobQueueSize <= 0 {
		c.JobQueueSize = DefaultJobQueueSize
	}
	if c.JobMaxRetries < 0 {
		c.JobMaxRetries = 0
	}
	if c.RunTimeout <= 0 {
		c.RunTimeout = DefaultRunTimeout
	}
}

// Validate checks settings that have no sensible default.
func (c Config) Validate() error {
	var errs []error
	switch c.Notifier {
	case NotifierLog:
	case NotifierAMQP:
		if c.AMQPURL == "" {
			errs = append(errs, errors.New("BILLWATCH_AMQP_URL is required when BILLWATCH_NOTIFIER=amqp"))
		}
	default:
		errs = append(errs, fmt.Errorf("BILLWATCH_NOTIFIER must be %q or %q, got %q", NotifierLog, NotifierAMQP, c.Notifier))
	}
	if len(errs) > 0 {
		return fmt.Errorf("Validate: %w", errors.Join(errs...))
	}
	return nil
}

// GoogleClientOptions returns the client options shared by the Cloud Storage
// and BigQuery clients.
func (c Config) GoogleClientOptions() []option.ClientOption {
	var opts []option.ClientOption
	if c.GoogleCredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(c.GoogleCredentialsFile))
	}
	return opts
}

// StorageClientOptions adds the emulator endpoint, if any, to
// GoogleClientOptions.
func (c Config) StorageClientOptions() []option.ClientOption {
	opts := c.GoogleClientOptions()
	if c.GCSEndpoint != "" {
		opts = append(opts, option.WithEndpoint(c.GCSEndpoint), option.WithoutAuthentication())
	}
	return opts
}
