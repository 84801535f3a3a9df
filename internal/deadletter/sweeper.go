package deadletter

import (
	"context"
	"encoding/json"
	"time"

	"caseflow/internal/logger"
	"caseflow/pkg/metrics"
)

// Sweeper periodically discards dead-lettered records older than the
// configured retention.
type Sweeper struct {
	store     Store
	retention time.Duration
	interval  time.Duration
	logger    logger.Logger
	now       func() time.Time
}

func NewSweeper(store Store, retention, interval time.Duration, log logger.Logger) *Sweeper {
	return &Sweeper{
		store:     store,
		retention: retention,
		interval:  interval,
		logger:    log,
		now:       time.Now,
	}
}

// Run sweeps on a fixed interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Infow("Dead letter sweeper started",
		"retention", s.retention.String(),
		"interval", s.interval.String(),
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Dead letter sweeper stopped")
			return ctx.Err()
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// sweepLogLimit caps how many expiring records are summarised per sweep.
const sweepLogLimit = 100

// envelopeSummary is the lenient shape peeked out of a dead-lettered body
// for sweep logging. A body that fails to decode is logged by message id
// alone.
type envelopeSummary struct {
	ID           string `json:"id"`
	Jurisdiction string `json:"jurisdiction"`
	ZipFileName  string `json:"zip_file_name"`
}

// Sweep deletes records whose age exceeds the retention. The cutoff is
// captured once at the start, so records arriving while the sweep runs
// are untouched regardless of how long the deletion takes. Expiring
// records are summarised in the log before they disappear.
func (s *Sweeper) Sweep(ctx context.Context) {
	cutoff := s.now().UTC().Add(-s.retention)

	expiring, err := s.store.FindOlderThan(ctx, cutoff, sweepLogLimit)
	if err != nil {
		s.logger.Errorw("Failed to list expiring dead letter records", "error", err)
	}
	for _, record := range expiring {
		s.logExpiring(record)
	}

	deleted, err := s.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		s.logger.Errorw("Dead letter sweep failed", "error", err)
		return
	}

	if deleted > 0 {
		metrics.DeadLetterSweepDeletions.Add(float64(deleted))
		s.logger.Infow("Dead letter sweep completed",
			"deleted", deleted,
			"cutoff", cutoff.Format(time.RFC3339),
		)
	}

	if count, err := s.store.Count(ctx); err == nil {
		metrics.DeadLetterStoreSize.Set(float64(count))
	}
}

// logExpiring writes one summary line per record about to be discarded.
// The body may hold anything a failed delivery carried, so envelope
// fields are logged only when it decodes as an envelope.
func (s *Sweeper) logExpiring(record Record) {
	var summary envelopeSummary
	if err := json.Unmarshal(record.Body, &summary); err != nil || summary.ID == "" {
		s.logger.Infow("Discarding expired dead letter record",
			"message_id", record.MessageID,
			"reason", record.Reason,
		)
		return
	}

	s.logger.Infow("Discarding expired dead letter record",
		"message_id", record.MessageID,
		"envelope_id", summary.ID,
		"jurisdiction", summary.Jurisdiction,
		"zip_file_name", summary.ZipFileName,
		"reason", record.Reason,
	)
}
