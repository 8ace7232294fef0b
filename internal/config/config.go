// Package config provides configuration structures and validation for the
// marketplace payment services. Both binaries (api_gateway and reconciler)
// share the same structure and load their own env file on top of defaults.
package config

import (
	"errors"
	"strings"
	"time"
)

// Config holds the complete application configuration.
type Config struct {
	Application ApplicationConfig
	Logging     LoggingConfig
	Server      ServerConfig
	Auth        AuthConfig
	Fees        FeesConfig
	Stripe      StripeConfig
	Kafka       KafkaConfig
	Postgres    PostgresConfig
	MongoDB     MongoDBConfig
	Reconciler  ReconcilerConfig
	WorkerPool  WorkerPoolConfig
}

// ApplicationConfig contains general application configuration
type ApplicationConfig struct {
	Env  string
	Name string
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level string
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port            int           // Port to listen on
	ShutdownTimeout time.Duration // Grace period for server shutdown
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
}

// AuthConfig configures bearer token verification for the HTTP API
type AuthConfig struct {
	JWTSecret string
	JWTIssuer string // Optional; when set the iss claim must match
}

// FeesConfig holds the platform pricing rates. The platform rate is
// snapshotted onto each purchase at creation time.
type FeesConfig struct {
	PlatformFeePercent      string // Decimal string, e.g. "0.06"
	ProcessingFeePercent    string
	ProcessingFeeFixedCents int64
	Currency                string
	RefundWindow            time.Duration
}

// StripeConfig contains payment processor settings
type StripeConfig struct {
	SecretKey         string
	ConnectReturnURL  string
	ConnectRefreshURL string
	Timeout           time.Duration // Upper bound for a single processor call
}

// KafkaConfig contains Kafka configuration
type KafkaConfig struct {
	Brokers             string
	PurchaseEventsTopic string
	NumPartitions       int
	ReplicationFactor   int
	ConsumerGroup       string
	MinBytes            int
	MaxBytes            int
	MaxWait             time.Duration
	StartOffset         int64
	DLQTopic            string
}

// PostgresConfig contains PostgreSQL configuration
type PostgresConfig struct {
	URL             string
	MaxConns        int32
	MinConns        int32
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	MigrationsPath  string
}

// MongoDBConfig contains MongoDB configuration
type MongoDBConfig struct {
	URI             string
	Database        string
	Timeout         time.Duration
	MaxPoolSize     uint64
	MinPoolSize     uint64
	MaxConnIdleTime time.Duration
}

// ReconcilerConfig drives the reconciliation outbox poller and the stale purchase sweeper
type ReconcilerConfig struct {
	PollingInterval  time.Duration
	BatchSize        int
	MaxRetryAttempts int
	StaleAfter       time.Duration // Age after which a non-terminal purchase is swept
}

// WorkerPoolConfig contains worker pool configuration
type WorkerPoolConfig struct {
	Size int
}

// validate checks every value the services rely on at startup and reports
// all problems at once.
func (c *Config) validate() error {
	var validationErrors []string

	if c.Server.Port <= 0 {
		validationErrors = append(validationErrors, "SERVER_PORT must be greater than 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_SHUTDOWN_TIMEOUT must be greater than 0")
	}
	if c.Server.ReadTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_READ_TIMEOUT must be greater than 0")
	}
	if c.Server.WriteTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_WRITE_TIMEOUT must be greater than 0")
	}
	if c.Server.IdleTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_IDLE_TIMEOUT must be greater than 0")
	}

	if c.Auth.JWTSecret == "" {
		validationErrors = append(validationErrors, "JWT_SECRET is required")
	}

	if !isPositiveDecimal(c.Fees.PlatformFeePercent) {
		validationErrors = append(validationErrors, "PLATFORM_FEE_PERCENT must be a decimal greater than 0")
	}
	if !isPositiveDecimal(c.Fees.ProcessingFeePercent) {
		validationErrors = append(validationErrors, "PROCESSING_FEE_PERCENT must be a decimal greater than 0")
	}
	if c.Fees.ProcessingFeeFixedCents < 0 {
		validationErrors = append(validationErrors, "PROCESSING_FEE_FIXED_CENTS must not be negative")
	}
	if len(c.Fees.Currency) != 3 {
		validationErrors = append(validationErrors, "CURRENCY must be a 3-letter code")
	}
	if c.Fees.RefundWindow <= 0 {
		validationErrors = append(validationErrors, "REFUND_WINDOW must be greater than 0")
	}

	if c.Stripe.SecretKey == "" {
		validationErrors = append(validationErrors, "STRIPE_SECRET_KEY is required")
	}
	if c.Stripe.Timeout <= 0 {
		validationErrors = append(validationErrors, "STRIPE_TIMEOUT must be greater than 0")
	}

	if len(c.Kafka.Brokers) == 0 {
		validationErrors = append(validationErrors, "KAFKA_BROKERS is required")
	}
	if c.Kafka.PurchaseEventsTopic == "" {
		validationErrors = append(validationErrors, "KAFKA_PURCHASE_EVENTS_TOPIC is required")
	}
	if c.Kafka.ConsumerGroup == "" {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_GROUP is required")
	}
	if c.Kafka.MinBytes <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MIN_BYTES must be greater than 0")
	}
	if c.Kafka.MaxBytes <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MAX_BYTES must be greater than 0")
	}
	if c.Kafka.MaxWait <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MAX_WAIT must be greater than 0")
	}

	if c.Postgres.URL == "" {
		validationErrors = append(validationErrors, "POSTGRES_URL is required")
	}
	if c.Postgres.MaxConns <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONNS must be greater than 0")
	}
	if c.Postgres.MinConns <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MIN_CONNS must be greater than 0")
	}
	if c.Postgres.ConnMaxLifetime <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONN_LIFETIME must be greater than 0")
	}
	if c.Postgres.ConnMaxIdleTime <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONN_IDLE_TIME must be greater than 0")
	}

	if c.MongoDB.URI == "" {
		validationErrors = append(validationErrors, "MONGO_URI is required")
	}
	if c.MongoDB.Database == "" {
		validationErrors = append(validationErrors, "MONGO_DATABASE is required")
	}
	if c.MongoDB.Timeout <= 0 {
		validationErrors = append(validationErrors, "MONGO_TIMEOUT must be greater than 0")
	}
	if c.MongoDB.MaxPoolSize <= 0 {
		validationErrors = append(validationErrors, "MONGO_MAX_POOL_SIZE must be greater than 0")
	}
	if c.MongoDB.MinPoolSize <= 0 {
		validationErrors = append(validationErrors, "MONGO_MIN_POOL_SIZE must be greater than 0")
	}

	if c.Reconciler.PollingInterval <= 0 {
		validationErrors = append(validationErrors, "RECONCILER_POLLING_INTERVAL must be greater than 0")
	}
	if c.Reconciler.BatchSize <= 0 {
		validationErrors = append(validationErrors, "RECONCILER_BATCH_SIZE must be greater than 0")
	}
	if c.Reconciler.MaxRetryAttempts <= 0 {
		validationErrors = append(validationErrors, "RECONCILER_MAX_RETRY_ATTEMPTS must be greater than 0")
	}
	if c.Reconciler.StaleAfter <= 0 {
		validationErrors = append(validationErrors, "RECONCILER_STALE_AFTER must be greater than 0")
	}

	if c.WorkerPool.Size <= 0 {
		validationErrors = append(validationErrors, "WORKER_POOL_SIZE must be greater than 0")
	}

	if len(validationErrors) > 0 {
		return errors.New(strings.Join(validationErrors, ", "))
	}

	return nil
}
