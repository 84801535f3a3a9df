package deadletter

import (
	"context"
	"time"

	"github.com/google/uuid"

	"caseflow/internal/broker"
	"caseflow/internal/logger"
	"caseflow/pkg/metrics"
)

// Manager moves permanently failed deliveries into the holding store and
// emits a telemetry event for each one.
type Manager struct {
	store          Store
	producer       broker.Producer
	telemetryTopic string
	logger         logger.Logger
	now            func() time.Time
}

func NewManager(store Store, producer broker.Producer, telemetryTopic string, log logger.Logger) *Manager {
	return &Manager{
		store:          store,
		producer:       producer,
		telemetryTopic: telemetryTopic,
		logger:         log,
		now:            time.Now,
	}
}

func (m *Manager) DeadLetter(ctx context.Context, delivery broker.Delivery, reason, description string) error {
	record := Record{
		ID:             uuid.New().String(),
		MessageID:      delivery.MessageID,
		Queue:          delivery.Topic,
		Reason:         reason,
		Description:    description,
		DeliveryCount:  delivery.Attempt,
		Body:           delivery.Body,
		DeadLetteredAt: m.now().UTC(),
	}

	if err := m.store.Insert(ctx, record); err != nil {
		return err
	}

	metrics.DeadLetteredTotal.WithLabelValues(delivery.Topic, reason).Inc()

	m.logger.ErrorwCtx(ctx, "Message dead-lettered",
		"message_id", delivery.MessageID,
		"queue", delivery.Topic,
		"reason", reason,
		"description", description,
		"delivery_count", delivery.Attempt,
	)

	m.publishTelemetry(ctx, record)

	return nil
}

// publishTelemetry is best effort. The record is already persisted, so a
// failed event only costs visibility, not data.
func (m *Manager) publishTelemetry(ctx context.Context, record Record) {
	event := TelemetryEvent{
		Event:         "DeadLetteredMessage",
		Reason:        record.Reason,
		Description:   record.Description,
		MessageID:     record.MessageID,
		Queue:         record.Queue,
		DeliveryCount: record.DeliveryCount,
		Timestamp:     record.DeadLetteredAt,
	}

	if err := m.producer.Publish(ctx, m.telemetryTopic, record.MessageID, event); err != nil {
		m.logger.WarnwCtx(ctx, "Failed to publish dead letter telemetry event",
			"message_id", record.MessageID,
			"error", err,
		)
	}
}
