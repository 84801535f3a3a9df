package ledger

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

type Repository interface {
	Insert(ctx context.Context, result NewCallbackResult) (string, error)
	FindByExceptionRecordID(ctx context.Context, exceptionRecordID string) ([]CallbackResult, error)
	FindByCaseID(ctx context.Context, caseID string) ([]CallbackResult, error)
}

type PostgresRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &PostgresRepository{db: db}
}

// Insert appends one outcome row. The timestamp is assigned server-side
// so ordering between concurrently recorded outcomes reflects insertion
// order, not origination order.
func (r *PostgresRepository) Insert(ctx context.Context, result NewCallbackResult) (string, error) {
	id := uuid.New().String()

	query := `
		INSERT INTO callback_result (id, request_type, exception_record_id, case_id, created_at)
		VALUES ($1, $2, $3, $4, CURRENT_TIMESTAMP)
	`

	if _, err := r.db.ExecContext(ctx, query,
		id, string(result.RequestType), result.ExceptionRecordID, result.CaseID,
	); err != nil {
		return "", fmt.Errorf("failed to insert callback result: %w", err)
	}

	return id, nil
}

func (r *PostgresRepository) FindByExceptionRecordID(ctx context.Context, exceptionRecordID string) ([]CallbackResult, error) {
	return r.find(ctx, "exception_record_id", exceptionRecordID)
}

func (r *PostgresRepository) FindByCaseID(ctx context.Context, caseID string) ([]CallbackResult, error) {
	return r.find(ctx, "case_id", caseID)
}

func (r *PostgresRepository) find(ctx context.Context, column, value string) ([]CallbackResult, error) {
	query := fmt.Sprintf(`
		SELECT id, created_at, request_type, exception_record_id, case_id
		FROM callback_result
		WHERE %s = $1
		ORDER BY created_at
	`, column)

	rows, err := r.db.QueryContext(ctx, query, value)
	if err != nil {
		return nil, fmt.Errorf("failed to query callback results by %s: %w", column, err)
	}
	defer rows.Close()

	var results []CallbackResult
	for rows.Next() {
		var result CallbackResult
		var requestType string
		if err := rows.Scan(
			&result.ID, &result.CreatedAt, &requestType,
			&result.ExceptionRecordID, &result.CaseID,
		); err != nil {
			return nil, fmt.Errorf("failed to scan callback result: %w", err)
		}
		result.RequestType = RequestType(requestType)
		results = append(results, result)
	}

	return results, rows.Err()
}
