package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"caseflow/internal/logger"
	"caseflow/pkg/metrics"
)

const cacheKeyPrefix = "outcome:"

// Service is the pipeline's view of the outcome ledger. The Postgres
// repository is the source of truth; Redis is a fast-path marker cache
// consulted first on idempotency lookups. Redis failures always degrade
// to the Postgres read.
type Service struct {
	repo     Repository
	cache    *redis.Client
	cacheTTL time.Duration
	logger   logger.Logger
}

func NewService(repo Repository, cache *redis.Client, cacheTTL time.Duration, log logger.Logger) *Service {
	return &Service{
		repo:     repo,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   log,
	}
}

// Record appends one completed action to the ledger and marks the
// fast-path cache. It never deduplicates; callers must have run
// FindCompleted first.
func (s *Service) Record(ctx context.Context, requestType RequestType, exceptionRecordID, caseID string) (string, error) {
	id, err := s.repo.Insert(ctx, NewCallbackResult{
		RequestType:       requestType,
		ExceptionRecordID: exceptionRecordID,
		CaseID:            caseID,
	})
	if err != nil {
		return "", err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey(requestType, exceptionRecordID), caseID, s.cacheTTL).Err(); err != nil {
			s.logger.WarnwCtx(ctx, "Failed to write outcome cache marker",
				"error", err,
				"exception_record_id", exceptionRecordID,
			)
		}
	}

	return id, nil
}

// FindCompleted reports whether a matching (requestType, exceptionRecordID)
// action already completed, and against which case. This is the
// check-then-act half of the pipeline's idempotency guarantee under
// at-least-once, out-of-order redelivery.
func (s *Service) FindCompleted(ctx context.Context, requestType RequestType, exceptionRecordID string) (string, bool, error) {
	if s.cache != nil {
		caseID, err := s.cache.Get(ctx, cacheKey(requestType, exceptionRecordID)).Result()
		switch {
		case err == nil && caseID != "":
			metrics.LedgerLookupsTotal.WithLabelValues("cache", "hit").Inc()
			return caseID, true, nil
		case err != nil && err != redis.Nil:
			s.logger.WarnwCtx(ctx, "Outcome cache lookup failed, falling back to ledger",
				"error", err,
			)
		}
	}

	results, err := s.repo.FindByExceptionRecordID(ctx, exceptionRecordID)
	if err != nil {
		return "", false, err
	}

	for _, result := range results {
		if result.RequestType == requestType && result.CaseID != "" {
			metrics.LedgerLookupsTotal.WithLabelValues("ledger", "hit").Inc()
			return result.CaseID, true, nil
		}
	}

	metrics.LedgerLookupsTotal.WithLabelValues("ledger", "miss").Inc()
	return "", false, nil
}

func (s *Service) FindByExceptionRecordID(ctx context.Context, exceptionRecordID string) ([]CallbackResult, error) {
	s.logger.InfowCtx(ctx, "Fetching callback results", "exception_record_id", exceptionRecordID)
	return s.repo.FindByExceptionRecordID(ctx, exceptionRecordID)
}

func (s *Service) FindByCaseID(ctx context.Context, caseID string) ([]CallbackResult, error) {
	s.logger.InfowCtx(ctx, "Fetching callback results", "case_id", caseID)
	return s.repo.FindByCaseID(ctx, caseID)
}

func cacheKey(requestType RequestType, exceptionRecordID string) string {
	return fmt.Sprintf("%s%s:%s", cacheKeyPrefix, requestType, exceptionRecordID)
}
