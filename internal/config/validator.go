package config

import (
	"fmt"
	"time"
)

const (
	defaultServerPort               = 8080
	defaultServerTimeoutSeconds     = 15
	defaultMaxDeliveryCount         = 5
	defaultDeadLetterRetention      = 72 * time.Hour
	defaultSweepInterval            = 1 * time.Hour
	defaultDeadLetterCollection     = "dead_letters"
	defaultCaseClientTimeoutSeconds = 30
	defaultTokenTTL                 = 30 * time.Minute
)

func Validate(cfg *Config) error {
	if len(cfg.Broker.Kafka.Brokers) == 0 {
		return fmt.Errorf("broker.kafka.brokers must not be empty")
	}
	if cfg.Broker.Kafka.EnvelopesTopic == "" {
		return fmt.Errorf("broker.kafka.envelopes_topic must not be empty")
	}
	if cfg.Broker.Kafka.GroupID == "" {
		return fmt.Errorf("broker.kafka.group_id must not be empty")
	}
	if cfg.CaseManagement.BaseURL == "" {
		return fmt.Errorf("case_management.base_url must not be empty")
	}
	if cfg.CaseManagement.DocumentHash.Enabled && cfg.CaseManagement.DocumentHash.BaseURL == "" {
		return fmt.Errorf("case_management.document_hash.base_url required when document hash is enabled")
	}
	if cfg.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host must not be empty")
	}
	if cfg.Database.MongoDB.URI == "" {
		return fmt.Errorf("database.mongodb.uri must not be empty")
	}
	if len(cfg.Credentials.Users) == 0 {
		return fmt.Errorf("credentials.users must contain at least one jurisdiction")
	}
	for jurisdiction, cred := range cfg.Credentials.Users {
		if cred.Username == "" || cred.Password == "" {
			return fmt.Errorf("credentials.users.%s is missing username or password", jurisdiction)
		}
	}
	return nil
}
