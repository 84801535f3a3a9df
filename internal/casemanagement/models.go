package casemanagement

import "time"

// CaseDetails is the case-management system's view of an existing case,
// reduced to the fields this service routes on.
type CaseDetails struct {
	ID               string            `json:"id"`
	Jurisdiction     string            `json:"jurisdiction"`
	State            string            `json:"state"`
	ScannedDocuments []ScannedDocument `json:"scanned_documents"`
}

// ScannedDocument is a document reference inside a case's scanned-document
// collection. DocumentUUID is the identity used for duplicate detection.
type ScannedDocument struct {
	FileName           string    `json:"file_name"`
	ControlNumber      string    `json:"control_number"`
	Type               string    `json:"type"`
	Subtype            string    `json:"subtype,omitempty"`
	ScannedAt          time.Time `json:"scanned_at"`
	DeliveryDate       time.Time `json:"delivery_date,omitempty"`
	DocumentUUID       string    `json:"document_uuid"`
	ExceptionRecordRef string    `json:"exception_record_reference,omitempty"`
	HashToken          string    `json:"hash_token,omitempty"`
}

type OcrField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// CreateCaseRequest creates a new exception record holding the envelope's
// material. OCR fields retain the envelope's wire order.
type CreateCaseRequest struct {
	Jurisdiction     string            `json:"jurisdiction"`
	PoBox            string            `json:"po_box"`
	EnvelopeID       string            `json:"envelope_id"`
	EnvelopeCaseRef  string            `json:"envelope_case_ref,omitempty"`
	FormType         string            `json:"form_type,omitempty"`
	ZipFileName      string            `json:"zip_file_name"`
	DeliveryDate     time.Time         `json:"delivery_date"`
	OpeningDate      time.Time         `json:"opening_date"`
	ScannedDocuments []ScannedDocument `json:"scanned_documents"`
	OcrData          []OcrField        `json:"ocr_data,omitempty"`
	OcrWarnings      []string          `json:"ocr_data_validation_warnings,omitempty"`
	ContainsPayments bool              `json:"contains_payments"`
}

// UpdateCaseRequest is the event-based update attaching new material to
// an existing case. Documents carries only the documents not already
// present on the case.
type UpdateCaseRequest struct {
	EventID     string            `json:"event_id"`
	EnvelopeID  string            `json:"envelope_id"`
	Documents   []ScannedDocument `json:"scanned_documents"`
	OcrData     []OcrField        `json:"ocr_data,omitempty"`
	OcrWarnings []string          `json:"ocr_data_validation_warnings,omitempty"`
}

// UpdateResult is the case-management system's response to an update.
// CaseID may differ from the target when the update triggered a case
// supersession downstream.
type UpdateResult struct {
	CaseID   string   `json:"case_id"`
	Warnings []string `json:"warnings"`
}

type createCaseResponse struct {
	CaseID string `json:"case_id"`
}

type searchResponse struct {
	CaseIDs []string `json:"case_ids"`
}

type errorResponse struct {
	Errors []string `json:"errors"`
}
