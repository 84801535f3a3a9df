package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"caseflow/internal/config"
	"caseflow/internal/logger"
	pkgerrors "caseflow/pkg/errors"
	"caseflow/pkg/logging"
	"caseflow/pkg/metrics"
	"caseflow/pkg/retry"
)

const (
	kafkaBatchTimeout = 10 * time.Millisecond
	kafkaWriteTimeout = 10 * time.Second

	// heartbeatHeader marks messages that ack without processing.
	heartbeatHeader = "heartbeat"
)

type KafkaProducer struct {
	writer *kafka.Writer
	logger logger.Logger
}

func NewKafkaProducer(cfg config.KafkaConfig, log logger.Logger) *KafkaProducer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: kafkaBatchTimeout,
		WriteTimeout: kafkaWriteTimeout,
		Async:        false,
	}
	return &KafkaProducer{writer: w, logger: log}
}

func (p *KafkaProducer) Publish(ctx context.Context, topic, key string, value interface{}) error {
	body, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	err = p.writer.WriteMessages(ctx,
		kafka.Message{
			Topic: topic,
			Key:   []byte(key),
			Value: body,
			Time:  time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to write kafka message: %w", err)
	}

	return nil
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}

// KafkaConsumer fetches envelope messages and drives each through the
// handler with a bounded redelivery budget. Exhausted or permanently
// failed deliveries go to the dead letterer before the offset commits,
// so a poison message can never block the partition.
type KafkaConsumer struct {
	cfg         config.KafkaConfig
	wg          sync.WaitGroup
	reader      *kafka.Reader
	logger      logger.Logger
	deadLetters DeadLetterer
	serviceName string
}

func NewKafkaConsumer(cfg config.KafkaConfig, deadLetters DeadLetterer, log logger.Logger) *KafkaConsumer {
	return &KafkaConsumer{
		cfg:         cfg,
		logger:      log,
		deadLetters: deadLetters,
		serviceName: "orchestrator",
	}
}

func (c *KafkaConsumer) SetServiceName(name string) {
	c.serviceName = name
}

func (c *KafkaConsumer) Consume(ctx context.Context, topic string, handler HandlerFunc) error {
	c.logger.Infow("Creating Kafka reader",
		"topic", topic,
		"brokers", c.cfg.Brokers,
		"group_id", c.cfg.GroupID,
		"service_name", c.serviceName,
	)

	c.reader = kafka.NewReader(kafka.ReaderConfig{
		Brokers:  c.cfg.Brokers,
		GroupID:  c.cfg.GroupID,
		Topic:    topic,
		MinBytes: 10e3,
		MaxBytes: 10e6,
	})

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		consumeCtx := logging.WithServiceName(ctx, c.serviceName)
		c.logger.InfowCtx(consumeCtx, "Started consuming", "topic", topic)

		for {
			m, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					c.logger.InfowCtx(consumeCtx, "Stopped consuming",
						"topic", topic,
						"reason", "context canceled",
					)
					return
				}
				c.logger.ErrorwCtx(consumeCtx, "Error fetching kafka message",
					"error", err,
					"topic", topic,
				)
				time.Sleep(time.Second)
				continue
			}

			delivery := Delivery{
				MessageID: messageID(m),
				Topic:     topic,
				Body:      m.Value,
				Heartbeat: isHeartbeat(m),
			}

			msgCtx := logging.WithMessageID(ctx, delivery.MessageID)
			msgCtx = logging.WithServiceName(msgCtx, c.serviceName)

			if !c.processAndFinalise(msgCtx, delivery, handler) {
				// The message failed permanently and the dead letter store
				// would not take it. Leaving the offset uncommitted keeps
				// the message fetchable after a restart or rebalance.
				c.logger.ErrorwCtx(msgCtx, "Holding offset for uncommitted message",
					"topic", topic,
				)
				continue
			}

			if err := c.reader.CommitMessages(ctx, m); err != nil {
				c.logger.ErrorwCtx(msgCtx, "Failed to commit message",
					"error", err,
					"topic", topic,
				)
			}
		}
	}()

	<-ctx.Done()
	return ctx.Err()
}

// processAndFinalise drives one message through the retry budget and, on
// permanent failure, hands it to the dead letterer. It reports whether the
// message was finalised: processed, dead-lettered, or deliberately
// discarded. The offset must not be committed for an unfinalised message;
// the dead letter store is the only place failed messages survive.
func (c *KafkaConsumer) processAndFinalise(ctx context.Context, delivery Delivery, handler HandlerFunc) bool {
	if delivery.Heartbeat {
		c.logger.InfowCtx(ctx, "Heartbeat message received", "topic", delivery.Topic)
		return true
	}

	policy := c.retryPolicy()
	attempt := 0

	err := retry.RetryWithCallback(ctx, policy, func() (err error) {
		attempt++
		delivery.Attempt = attempt
		defer func() {
			if r := recover(); r != nil {
				err = pkgerrors.RecoverPanic(r)
				c.logger.ErrorwCtx(ctx, "Panic recovered during message processing",
					"error", err,
					"topic", delivery.Topic,
				)
				err = retry.NewFatalError(err)
			}
		}()
		return handler(ctx, delivery)
	}, func(n int, err error, nextDelay time.Duration) {
		metrics.RetryAttemptsTotal.WithLabelValues(c.serviceName, delivery.Topic).Inc()
		c.logger.WarnwCtx(ctx, "Releasing message for redelivery",
			"attempt", n,
			"max_attempts", policy.MaxAttempts,
			"next_delay", nextDelay,
			"error", err,
			"topic", delivery.Topic,
		)
	})

	if err == nil {
		return true
	}

	delivery.Attempt = attempt
	reason, description := deadLetterContext(err, attempt)
	c.logger.ErrorwCtx(ctx, "Message processing failed permanently",
		"error", err,
		"topic", delivery.Topic,
		"delivery_count", attempt,
		"reason", reason,
	)

	if c.deadLetters == nil {
		c.logger.WarnwCtx(ctx, "No dead letter store configured, discarding message",
			"topic", delivery.Topic,
		)
		return true
	}

	// The dead letter store is the last place a failed message survives,
	// so the insert gets its own retry budget before the offset is held.
	dlErr := retry.Retry(ctx, policy, func() error {
		return c.deadLetters.DeadLetter(ctx, delivery, reason, description)
	})
	if dlErr != nil {
		c.logger.ErrorwCtx(ctx, "Failed to dead-letter message",
			"error", dlErr,
			"topic", delivery.Topic,
		)
		return false
	}
	return true
}

func (c *KafkaConsumer) retryPolicy() retry.Policy {
	policy := retry.DefaultPolicy()

	if c.cfg.Retry.MaxAttempts > 0 {
		policy.MaxAttempts = c.cfg.Retry.MaxAttempts
	}
	if c.cfg.Retry.InitialInterval > 0 {
		policy.InitialInterval = c.cfg.Retry.InitialInterval
	}
	if c.cfg.Retry.MaxInterval > 0 {
		policy.MaxInterval = c.cfg.Retry.MaxInterval
	}
	if c.cfg.Retry.Multiplier > 0 {
		policy.Multiplier = c.cfg.Retry.Multiplier
	}
	if c.cfg.Retry.MaxElapsedTime > 0 {
		policy.MaxElapsedTime = c.cfg.Retry.MaxElapsedTime
	}

	return policy
}

func (c *KafkaConsumer) Close() error {
	var err error
	if c.reader != nil {
		err = c.reader.Close()
	}
	c.wg.Wait()
	return err
}

func deadLetterContext(err error, deliveryCount int) (reason, description string) {
	var fatalErr retry.FatalError
	if errors.As(err, &fatalErr) && fatalErr.IsFatal() {
		return "Message processing error", err.Error()
	}
	return "Too many deliveries", fmt.Sprintf("Reached limit of message delivery count of %d", deliveryCount)
}

func messageID(m kafka.Message) string {
	if len(m.Key) > 0 {
		return string(m.Key)
	}
	return fmt.Sprintf("%s-%d-%d", m.Topic, m.Partition, m.Offset)
}

func isHeartbeat(m kafka.Message) bool {
	for _, h := range m.Headers {
		if h.Key == heartbeatHeader {
			return true
		}
	}
	return false
}
