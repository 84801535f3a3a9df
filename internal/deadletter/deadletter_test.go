package deadletter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"caseflow/internal/broker"
	"caseflow/internal/logger"
)

type fakeStore struct {
	records   []Record
	insertErr error
	findErr   error
	deleteErr error
}

func (f *fakeStore) Insert(ctx context.Context, record Record) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.records = append(f.records, record)
	return nil
}

func (f *fakeStore) FindOlderThan(ctx context.Context, cutoff time.Time, limit int64) ([]Record, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	var expired []Record
	for _, r := range f.records {
		if r.DeadLetteredAt.Before(cutoff) && int64(len(expired)) < limit {
			expired = append(expired, r)
		}
	}
	return expired, nil
}

func (f *fakeStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	var kept []Record
	var deleted int64
	for _, r := range f.records {
		if r.DeadLetteredAt.Before(cutoff) {
			deleted++
		} else {
			kept = append(kept, r)
		}
	}
	f.records = kept
	return deleted, nil
}

func (f *fakeStore) Count(ctx context.Context) (int64, error) {
	return int64(len(f.records)), nil
}

type capturedPublish struct {
	topic string
	key   string
	value interface{}
}

type fakeProducer struct {
	published []capturedPublish
	err       error
}

func (f *fakeProducer) Publish(ctx context.Context, topic, key string, value interface{}) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, capturedPublish{topic: topic, key: key, value: value})
	return nil
}

func (f *fakeProducer) Close() error { return nil }

func TestDeadLetterPersistsRecordAndEmitsTelemetry(t *testing.T) {
	store := &fakeStore{}
	producer := &fakeProducer{}
	manager := NewManager(store, producer, "telemetry", logger.NopLogger())

	delivery := broker.Delivery{
		MessageID: "msg-1",
		Topic:     "envelopes",
		Body:      []byte(`{"id":"env-1"}`),
		Attempt:   5,
	}

	err := manager.DeadLetter(context.Background(), delivery, "Too many deliveries", "Reached limit of message delivery count of 5")
	require.NoError(t, err)

	require.Len(t, store.records, 1)
	record := store.records[0]
	assert.NotEmpty(t, record.ID)
	assert.Equal(t, "msg-1", record.MessageID)
	assert.Equal(t, "envelopes", record.Queue)
	assert.Equal(t, "Too many deliveries", record.Reason)
	assert.Equal(t, 5, record.DeliveryCount)
	assert.Equal(t, delivery.Body, record.Body)
	assert.False(t, record.DeadLetteredAt.IsZero())

	require.Len(t, producer.published, 1)
	assert.Equal(t, "telemetry", producer.published[0].topic)
	event, ok := producer.published[0].value.(TelemetryEvent)
	require.True(t, ok)
	assert.Equal(t, "DeadLetteredMessage", event.Event)
	assert.Equal(t, "msg-1", event.MessageID)
	assert.Equal(t, 5, event.DeliveryCount)
}

func TestDeadLetterStoreFailurePropagates(t *testing.T) {
	store := &fakeStore{insertErr: assert.AnError}
	producer := &fakeProducer{}
	manager := NewManager(store, producer, "telemetry", logger.NopLogger())

	err := manager.DeadLetter(context.Background(), broker.Delivery{MessageID: "msg-1"}, "r", "d")
	require.Error(t, err)
	assert.Empty(t, producer.published, "no telemetry for a record that was not persisted")
}

func TestDeadLetterTelemetryFailureIsSwallowed(t *testing.T) {
	store := &fakeStore{}
	producer := &fakeProducer{err: assert.AnError}
	manager := NewManager(store, producer, "telemetry", logger.NopLogger())

	err := manager.DeadLetter(context.Background(), broker.Delivery{MessageID: "msg-1"}, "r", "d")
	require.NoError(t, err)
	assert.Len(t, store.records, 1)
}

func TestSweepDeletesOnlyExpiredRecords(t *testing.T) {
	now := time.Date(2026, 1, 20, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{
		records: []Record{
			{ID: "old", DeadLetteredAt: now.Add(-80 * time.Hour)},
			{ID: "borderline", DeadLetteredAt: now.Add(-71 * time.Hour)},
			{ID: "fresh", DeadLetteredAt: now.Add(-1 * time.Hour)},
		},
	}

	sweeper := NewSweeper(store, 72*time.Hour, time.Hour, logger.NopLogger())
	sweeper.now = func() time.Time { return now }

	sweeper.Sweep(context.Background())

	require.Len(t, store.records, 2)
	assert.Equal(t, "borderline", store.records[0].ID)
	assert.Equal(t, "fresh", store.records[1].ID)
}

func TestSweepCutoffCapturedAtStart(t *testing.T) {
	// a record inserted "during" the sweep, newer than the cutoff, must
	// survive even if the sweep takes long
	now := time.Date(2026, 1, 20, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{
		records: []Record{
			{ID: "inserted-after-start", DeadLetteredAt: now.Add(time.Minute)},
		},
	}

	sweeper := NewSweeper(store, time.Hour, time.Hour, logger.NopLogger())
	sweeper.now = func() time.Time { return now }

	sweeper.Sweep(context.Background())
	assert.Len(t, store.records, 1)
}

func TestSweepLogsExpiringEnvelopeSummaries(t *testing.T) {
	now := time.Date(2026, 1, 20, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{
		records: []Record{
			{
				ID:             "decodable",
				MessageID:      "msg-1",
				Reason:         "Too many deliveries",
				Body:           []byte(`{"id":"env-1","jurisdiction":"divorce","zip_file_name":"batch.zip"}`),
				DeadLetteredAt: now.Add(-80 * time.Hour),
			},
			{
				ID:             "garbage",
				MessageID:      "msg-2",
				Reason:         "Message processing error",
				Body:           []byte(`not json at all`),
				DeadLetteredAt: now.Add(-80 * time.Hour),
			},
		},
	}

	core, logs := observer.New(zapcore.InfoLevel)
	log := &logger.SugaredLogger{SugaredLogger: zap.New(core).Sugar()}

	sweeper := NewSweeper(store, 72*time.Hour, time.Hour, log)
	sweeper.now = func() time.Time { return now }

	sweeper.Sweep(context.Background())

	entries := logs.FilterMessage("Discarding expired dead letter record").All()
	require.Len(t, entries, 2)

	decoded := entries[0].ContextMap()
	assert.Equal(t, "msg-1", decoded["message_id"])
	assert.Equal(t, "env-1", decoded["envelope_id"])
	assert.Equal(t, "divorce", decoded["jurisdiction"])
	assert.Equal(t, "batch.zip", decoded["zip_file_name"])

	// a body that does not decode as an envelope is summarised by message
	// id alone
	garbage := entries[1].ContextMap()
	assert.Equal(t, "msg-2", garbage["message_id"])
	assert.NotContains(t, garbage, "envelope_id")
}

func TestSweepListFailureStillDeletes(t *testing.T) {
	now := time.Date(2026, 1, 20, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{
		findErr: assert.AnError,
		records: []Record{
			{ID: "old", DeadLetteredAt: now.Add(-80 * time.Hour)},
		},
	}

	sweeper := NewSweeper(store, 72*time.Hour, time.Hour, logger.NopLogger())
	sweeper.now = func() time.Time { return now }

	sweeper.Sweep(context.Background())
	assert.Empty(t, store.records, "retention wins over summary logging")
}

func TestSweepStoreFailureDoesNotPanic(t *testing.T) {
	store := &fakeStore{deleteErr: assert.AnError}
	sweeper := NewSweeper(store, time.Hour, time.Hour, logger.NopLogger())

	assert.NotPanics(t, func() {
		sweeper.Sweep(context.Background())
	})
}

func TestRunStopsOnContextCancel(t *testing.T) {
	sweeper := NewSweeper(&fakeStore{}, time.Hour, time.Hour, logger.NopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := sweeper.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
