package ledger

import "time"

// RequestType identifies which case action an outcome records.
type RequestType string

const (
	RequestTypeCreateCase   RequestType = "CREATE_CASE"
	RequestTypeAttachToCase RequestType = "ATTACH_TO_CASE"
)

// CallbackResult is one append-only ledger row: the fact that a specific
// action completed for a specific envelope against a specific case. Rows
// are never mutated or deleted by this service.
type CallbackResult struct {
	ID                string      `json:"id"`
	CreatedAt         time.Time   `json:"created_at"`
	RequestType       RequestType `json:"request_type"`
	ExceptionRecordID string      `json:"exception_record_id"`
	CaseID            string      `json:"case_id"`
}

// NewCallbackResult is the insert payload; id and created_at are assigned
// by the repository at insert time.
type NewCallbackResult struct {
	RequestType       RequestType
	ExceptionRecordID string
	CaseID            string
}
