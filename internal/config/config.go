package config

import (
	"time"
)

type Config struct {
	Server         ServerConfig
	Database       DatabaseConfig
	Broker         BrokerConfig
	Logging        LoggingConfig
	CaseManagement CaseManagementConfig
	Credentials    CredentialsConfig
	DeadLetter     DeadLetterConfig
	CircuitBreaker CircuitBreakerConfig
}

type ServerConfig struct {
	Port                int           `mapstructure:"port"`
	ReadTimeoutSeconds  time.Duration `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds time.Duration `mapstructure:"write_timeout_seconds"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig
	Redis         RedisConfig
	MongoDB       MongoDBConfig
	RunMigrations bool `mapstructure:"run_migrations"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db"`
	TTLSeconds int    `mapstructure:"ttl_seconds"`
}

type MongoDBConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type BrokerConfig struct {
	Kafka KafkaConfig `mapstructure:"kafka"`
}

type KafkaConfig struct {
	Brokers                 []string    `mapstructure:"brokers"`
	GroupID                 string      `mapstructure:"group_id"`
	EnvelopesTopic          string      `mapstructure:"envelopes_topic"`
	ProcessedEnvelopesTopic string      `mapstructure:"processed_envelopes_topic"`
	PaymentsTopic           string      `mapstructure:"payments_topic"`
	TelemetryTopic          string      `mapstructure:"telemetry_topic"`
	Retry                   RetryConfig `mapstructure:"retry"`
}

// RetryConfig bounds redelivery of a single message. MaxAttempts is the
// maximum delivery count before a recoverable failure is dead-lettered.
type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
	MaxElapsedTime  time.Duration `mapstructure:"max_elapsed_time"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type CaseManagementConfig struct {
	BaseURL        string             `mapstructure:"base_url"`
	TimeoutSeconds int                `mapstructure:"timeout_seconds"`
	RateLimit      RateLimitConfig    `mapstructure:"rate_limit"`
	DocumentHash   DocumentHashConfig `mapstructure:"document_hash"`
}

type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	RPS     float64 `mapstructure:"rps"`
	Burst   int     `mapstructure:"burst"`
}

// DocumentHashConfig gates the optional hash token enrichment of case
// update payloads. Failures when enabled degrade to omitting the hash.
type DocumentHashConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// CredentialsConfig maps jurisdictions to service users. Keys are
// matched case-insensitively.
type CredentialsConfig struct {
	IdentityURL string                      `mapstructure:"identity_url"`
	TokenTTL    time.Duration               `mapstructure:"token_ttl"`
	Users       map[string]CredentialConfig `mapstructure:"users"`
}

type CredentialConfig struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type DeadLetterConfig struct {
	Retention     time.Duration `mapstructure:"retention"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	Collection    string        `mapstructure:"collection"`
}

type CircuitBreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
	MinRequests  uint32        `mapstructure:"min_requests"`
}
