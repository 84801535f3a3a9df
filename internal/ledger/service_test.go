package ledger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caseflow/internal/logger"
)

type fakeRepository struct {
	rows      []CallbackResult
	insertErr error
	findErr   error
}

func (f *fakeRepository) Insert(ctx context.Context, result NewCallbackResult) (string, error) {
	if f.insertErr != nil {
		return "", f.insertErr
	}
	id := fmt.Sprintf("row-%d", len(f.rows)+1)
	f.rows = append(f.rows, CallbackResult{
		ID:                id,
		CreatedAt:         time.Now(),
		RequestType:       result.RequestType,
		ExceptionRecordID: result.ExceptionRecordID,
		CaseID:            result.CaseID,
	})
	return id, nil
}

func (f *fakeRepository) FindByExceptionRecordID(ctx context.Context, exceptionRecordID string) ([]CallbackResult, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	var out []CallbackResult
	for _, row := range f.rows {
		if row.ExceptionRecordID == exceptionRecordID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (f *fakeRepository) FindByCaseID(ctx context.Context, caseID string) ([]CallbackResult, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	var out []CallbackResult
	for _, row := range f.rows {
		if row.CaseID == caseID {
			out = append(out, row)
		}
	}
	return out, nil
}

func newTestService(repo Repository) *Service {
	return NewService(repo, nil, time.Hour, logger.NopLogger())
}

func TestRecordAndFindCompleted(t *testing.T) {
	repo := &fakeRepository{}
	svc := newTestService(repo)

	id, err := svc.Record(context.Background(), RequestTypeAttachToCase, "env-1", "case-9")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	caseID, done, err := svc.FindCompleted(context.Background(), RequestTypeAttachToCase, "env-1")
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, "case-9", caseID)
}

func TestFindCompletedMiss(t *testing.T) {
	svc := newTestService(&fakeRepository{})

	_, done, err := svc.FindCompleted(context.Background(), RequestTypeAttachToCase, "env-1")
	require.NoError(t, err)
	assert.False(t, done)
}

func TestFindCompletedMatchesRequestType(t *testing.T) {
	repo := &fakeRepository{}
	svc := newTestService(repo)

	_, err := svc.Record(context.Background(), RequestTypeCreateCase, "env-1", "case-9")
	require.NoError(t, err)

	_, done, err := svc.FindCompleted(context.Background(), RequestTypeAttachToCase, "env-1")
	require.NoError(t, err)
	assert.False(t, done, "a completed create must not satisfy an attach lookup")
}

func TestRecordIsAppendOnly(t *testing.T) {
	repo := &fakeRepository{}
	svc := newTestService(repo)

	_, err := svc.Record(context.Background(), RequestTypeCreateCase, "env-1", "case-1")
	require.NoError(t, err)
	_, err = svc.Record(context.Background(), RequestTypeAttachToCase, "env-1", "case-1")
	require.NoError(t, err)

	results, err := svc.FindByExceptionRecordID(context.Background(), "env-1")
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestFindCompletedRepoError(t *testing.T) {
	svc := newTestService(&fakeRepository{findErr: assert.AnError})

	_, _, err := svc.FindCompleted(context.Background(), RequestTypeAttachToCase, "env-1")
	assert.Error(t, err)
}

func TestFindByCaseID(t *testing.T) {
	repo := &fakeRepository{}
	svc := newTestService(repo)

	_, err := svc.Record(context.Background(), RequestTypeAttachToCase, "env-1", "case-9")
	require.NoError(t, err)
	_, err = svc.Record(context.Background(), RequestTypeAttachToCase, "env-2", "case-9")
	require.NoError(t, err)

	results, err := svc.FindByCaseID(context.Background(), "case-9")
	require.NoError(t, err)
	assert.Len(t, results, 2)
}
