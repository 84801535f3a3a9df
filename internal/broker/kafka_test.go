package broker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caseflow/internal/config"
	"caseflow/internal/logger"
	"caseflow/pkg/retry"
)

type fakeDeadLetterer struct {
	calls       int
	failures    int
	err         error
	delivery    Delivery
	reason      string
	description string
}

func (f *fakeDeadLetterer) DeadLetter(ctx context.Context, delivery Delivery, reason, description string) error {
	f.calls++
	if f.failures > 0 {
		f.failures--
		return assert.AnError
	}
	if f.err != nil {
		return f.err
	}
	f.delivery = delivery
	f.reason = reason
	f.description = description
	return nil
}

func fastRetryConfig() config.KafkaConfig {
	return config.KafkaConfig{
		Retry: config.RetryConfig{
			MaxAttempts:     3,
			InitialInterval: time.Millisecond,
			MaxInterval:     time.Millisecond,
			Multiplier:      1.0,
			MaxElapsedTime:  time.Second,
		},
	}
}

func testDelivery() Delivery {
	return Delivery{
		MessageID: "msg-1",
		Topic:     "envelopes",
		Body:      []byte(`{"id":"env-1"}`),
	}
}

func TestProcessAndFinaliseSuccess(t *testing.T) {
	dl := &fakeDeadLetterer{}
	c := NewKafkaConsumer(fastRetryConfig(), dl, logger.NopLogger())

	attempts := 0
	finalised := c.processAndFinalise(context.Background(), testDelivery(), func(ctx context.Context, d Delivery) error {
		attempts++
		return nil
	})

	assert.True(t, finalised)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 0, dl.calls)
}

func TestProcessAndFinaliseTransientThenSuccess(t *testing.T) {
	dl := &fakeDeadLetterer{}
	c := NewKafkaConsumer(fastRetryConfig(), dl, logger.NopLogger())

	attempts := 0
	finalised := c.processAndFinalise(context.Background(), testDelivery(), func(ctx context.Context, d Delivery) error {
		attempts++
		if attempts < 3 {
			return assert.AnError
		}
		return nil
	})

	assert.True(t, finalised)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 0, dl.calls, "a recovered message is not dead-lettered")
}

func TestProcessAndFinaliseExhaustedBudgetDeadLetters(t *testing.T) {
	dl := &fakeDeadLetterer{}
	c := NewKafkaConsumer(fastRetryConfig(), dl, logger.NopLogger())

	attempts := 0
	finalised := c.processAndFinalise(context.Background(), testDelivery(), func(ctx context.Context, d Delivery) error {
		attempts++
		assert.Equal(t, attempts, d.Attempt)
		return assert.AnError
	})

	assert.True(t, finalised)
	assert.Equal(t, 3, attempts)

	require.Equal(t, 1, dl.calls)
	assert.Equal(t, "Too many deliveries", dl.reason)
	assert.Equal(t, "Reached limit of message delivery count of 3", dl.description)
	assert.Equal(t, 3, dl.delivery.Attempt)
}

func TestProcessAndFinaliseFatalSkipsRemainingAttempts(t *testing.T) {
	dl := &fakeDeadLetterer{}
	c := NewKafkaConsumer(fastRetryConfig(), dl, logger.NopLogger())

	attempts := 0
	finalised := c.processAndFinalise(context.Background(), testDelivery(), func(ctx context.Context, d Delivery) error {
		attempts++
		return retry.NewFatalError(errors.New("malformed envelope"))
	})

	assert.True(t, finalised)
	assert.Equal(t, 1, attempts, "a fatal error must not be redelivered")

	require.Equal(t, 1, dl.calls)
	assert.Equal(t, "Message processing error", dl.reason)
	assert.Equal(t, "malformed envelope", dl.description)
}

func TestProcessAndFinalisePanicDeadLettersImmediately(t *testing.T) {
	dl := &fakeDeadLetterer{}
	c := NewKafkaConsumer(fastRetryConfig(), dl, logger.NopLogger())

	attempts := 0
	finalised := c.processAndFinalise(context.Background(), testDelivery(), func(ctx context.Context, d Delivery) error {
		attempts++
		panic("boom")
	})

	assert.True(t, finalised)
	assert.Equal(t, 1, attempts)
	require.Equal(t, 1, dl.calls)
	assert.Equal(t, "Message processing error", dl.reason)
}

func TestProcessAndFinaliseHeartbeatSkipsHandler(t *testing.T) {
	dl := &fakeDeadLetterer{}
	c := NewKafkaConsumer(fastRetryConfig(), dl, logger.NopLogger())

	delivery := testDelivery()
	delivery.Heartbeat = true

	finalised := c.processAndFinalise(context.Background(), delivery, func(ctx context.Context, d Delivery) error {
		t.Fatal("handler must not run for a heartbeat message")
		return nil
	})

	assert.True(t, finalised)
	assert.Equal(t, 0, dl.calls)
}

func TestProcessAndFinaliseDeadLetterFailureHoldsOffset(t *testing.T) {
	dl := &fakeDeadLetterer{err: assert.AnError}
	c := NewKafkaConsumer(fastRetryConfig(), dl, logger.NopLogger())

	finalised := c.processAndFinalise(context.Background(), testDelivery(), func(ctx context.Context, d Delivery) error {
		return assert.AnError
	})

	assert.False(t, finalised, "a message the dead letter store would not take is not finalised")
	assert.Equal(t, 3, dl.calls, "the dead letter insert gets its own retry budget")
}

func TestProcessAndFinaliseDeadLetterInsertRetried(t *testing.T) {
	dl := &fakeDeadLetterer{failures: 1}
	c := NewKafkaConsumer(fastRetryConfig(), dl, logger.NopLogger())

	finalised := c.processAndFinalise(context.Background(), testDelivery(), func(ctx context.Context, d Delivery) error {
		return retry.NewFatalError(errors.New("bad message"))
	})

	assert.True(t, finalised)
	assert.Equal(t, 2, dl.calls)
	assert.Equal(t, "Message processing error", dl.reason)
}

func TestProcessAndFinaliseWithoutStoreDiscards(t *testing.T) {
	c := NewKafkaConsumer(fastRetryConfig(), nil, logger.NopLogger())

	finalised := c.processAndFinalise(context.Background(), testDelivery(), func(ctx context.Context, d Delivery) error {
		return retry.NewFatalError(errors.New("bad message"))
	})

	assert.True(t, finalised, "with no store configured the message is deliberately discarded")
}

func kafkaMessage(topic string, partition int, offset int64, key []byte) kafka.Message {
	return kafka.Message{Topic: topic, Partition: partition, Offset: offset, Key: key}
}

func TestMessageID(t *testing.T) {
	t.Run("key wins", func(t *testing.T) {
		id := messageID(kafkaMessage("envelopes", 2, 17, []byte("env-1")))
		assert.Equal(t, "env-1", id)
	})

	t.Run("falls back to coordinates", func(t *testing.T) {
		id := messageID(kafkaMessage("envelopes", 2, 17, nil))
		assert.Equal(t, "envelopes-2-17", id)
	})
}
