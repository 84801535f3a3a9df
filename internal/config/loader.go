package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

func Load(configFile string) (*Config, error) {
	viper.Reset()

	viper.SetConfigType("yaml")
	viper.SetConfigFile(configFile)

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func bindEnvVariables() {
	viper.BindEnv("broker.kafka.brokers", "BROKER_KAFKA_BROKERS")
	viper.BindEnv("broker.kafka.group_id", "BROKER_KAFKA_GROUP_ID")
	viper.BindEnv("broker.kafka.envelopes_topic", "BROKER_KAFKA_ENVELOPES_TOPIC")
	viper.BindEnv("broker.kafka.processed_envelopes_topic", "BROKER_KAFKA_PROCESSED_ENVELOPES_TOPIC")
	viper.BindEnv("broker.kafka.payments_topic", "BROKER_KAFKA_PAYMENTS_TOPIC")
	viper.BindEnv("broker.kafka.telemetry_topic", "BROKER_KAFKA_TELEMETRY_TOPIC")

	viper.BindEnv("database.postgres.host", "DATABASE_POSTGRES_HOST")
	viper.BindEnv("database.postgres.port", "DATABASE_POSTGRES_PORT")
	viper.BindEnv("database.postgres.user", "DATABASE_POSTGRES_USER")
	viper.BindEnv("database.postgres.password", "DATABASE_POSTGRES_PASSWORD")
	viper.BindEnv("database.postgres.dbname", "DATABASE_POSTGRES_DBNAME")
	viper.BindEnv("database.postgres.sslmode", "DATABASE_POSTGRES_SSLMODE")

	viper.BindEnv("database.redis.host", "DATABASE_REDIS_HOST")
	viper.BindEnv("database.redis.port", "DATABASE_REDIS_PORT")
	viper.BindEnv("database.redis.password", "DATABASE_REDIS_PASSWORD")
	viper.BindEnv("database.redis.db", "DATABASE_REDIS_DB")

	viper.BindEnv("database.mongodb.uri", "DATABASE_MONGODB_URI")
	viper.BindEnv("database.mongodb.database", "DATABASE_MONGODB_DATABASE")

	viper.BindEnv("case_management.base_url", "CASE_MANAGEMENT_BASE_URL")
	viper.BindEnv("case_management.document_hash.base_url", "CASE_MANAGEMENT_DOCUMENT_HASH_BASE_URL")

	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("logging.level", "LOGGING_LEVEL")
}

func applyDefaults(cfg *Config) {
	if brokersEnv := viper.GetString("BROKER_KAFKA_BROKERS"); brokersEnv != "" {
		brokers := strings.Split(brokersEnv, ",")
		for i := range brokers {
			brokers[i] = strings.TrimSpace(brokers[i])
		}
		cfg.Broker.Kafka.Brokers = brokers
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaultServerPort
	}
	if cfg.Server.ReadTimeoutSeconds <= 0 {
		cfg.Server.ReadTimeoutSeconds = defaultServerTimeoutSeconds
	}
	if cfg.Server.WriteTimeoutSeconds <= 0 {
		cfg.Server.WriteTimeoutSeconds = defaultServerTimeoutSeconds
	}
	if cfg.Broker.Kafka.Retry.MaxAttempts <= 0 {
		cfg.Broker.Kafka.Retry.MaxAttempts = defaultMaxDeliveryCount
	}
	if cfg.DeadLetter.Retention <= 0 {
		cfg.DeadLetter.Retention = defaultDeadLetterRetention
	}
	if cfg.DeadLetter.SweepInterval <= 0 {
		cfg.DeadLetter.SweepInterval = defaultSweepInterval
	}
	if cfg.DeadLetter.Collection == "" {
		cfg.DeadLetter.Collection = defaultDeadLetterCollection
	}
	if cfg.CaseManagement.TimeoutSeconds <= 0 {
		cfg.CaseManagement.TimeoutSeconds = defaultCaseClientTimeoutSeconds
	}
	if cfg.Credentials.TokenTTL <= 0 {
		cfg.Credentials.TokenTTL = defaultTokenTTL
	}
}
