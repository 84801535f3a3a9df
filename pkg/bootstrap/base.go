package bootstrap

import (
	"context"
	"fmt"

	"caseflow/internal/broker"
	"caseflow/internal/config"
	"caseflow/internal/logger"
)

// Base holds the pieces every service start needs: configuration, the
// logger and the broker endpoints.
type Base struct {
	Config   *config.Config
	Logger   logger.Logger
	Producer broker.Producer
	Consumer broker.Consumer
}

func NewBase(cfg *config.Config, log logger.Logger) *Base {
	return &Base{
		Config: cfg,
		Logger: log,
	}
}

// InitProducer wires the Kafka producer. It is created before the
// consumer because the dead letter path publishes telemetry through it.
func (b *Base) InitProducer() {
	b.Producer = broker.NewKafkaProducer(b.Config.Broker.Kafka, b.Logger)
}

// InitConsumer wires the envelope consumer. The consumer hands
// permanently failed deliveries to deadLetters before committing offsets.
func (b *Base) InitConsumer(serviceName string, deadLetters broker.DeadLetterer) {
	consumer := broker.NewKafkaConsumer(b.Config.Broker.Kafka, deadLetters, b.Logger)
	if serviceName != "" {
		consumer.SetServiceName(serviceName)
	}
	b.Consumer = consumer
}

func (b *Base) ShutdownBroker() []error {
	var errs []error

	if b.Consumer != nil {
		if err := b.Consumer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("consumer close error: %w", err))
		}
	}

	if b.Producer != nil {
		if err := b.Producer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("producer close error: %w", err))
		}
	}

	return errs
}

func (b *Base) Shutdown(ctx context.Context, additionalShutdown func(ctx context.Context) []error) error {
	b.Logger.Info("Shutting down application...")

	var errs []error

	errs = append(errs, b.ShutdownBroker()...)

	if additionalShutdown != nil {
		errs = append(errs, additionalShutdown(ctx)...)
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	b.Logger.Info("Application exited successfully")
	return nil
}
