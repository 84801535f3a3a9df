package envelope

import (
	"strings"
	"time"
)

// Classification is the upstream scanning pipeline's categorisation of an
// envelope. Values outside the known set are retained as-is so the router
// fallback can apply.
type Classification string

const (
	ClassificationNewApplication        Classification = "NEW_APPLICATION"
	ClassificationException             Classification = "EXCEPTION"
	ClassificationSupplementaryEvidence Classification = "SUPPLEMENTARY_EVIDENCE"
)

// Normalise upper-cases a classification for case-insensitive matching.
func (c Classification) Normalise() Classification {
	return Classification(strings.ToUpper(string(c)))
}

// Known reports whether the classification is one of the recognised values.
func (c Classification) Known() bool {
	switch c.Normalise() {
	case ClassificationNewApplication, ClassificationException, ClassificationSupplementaryEvidence:
		return true
	}
	return false
}

// Envelope is a single scan-batch notification. It is immutable once
// decoded; Documents is never nil, and OcrData retains wire order.
type Envelope struct {
	ID            string
	CaseRef       string
	LegacyCaseRef string
	PoBox         string
	Jurisdiction  string
	Container     string
	ZipFileName   string
	FormType      string
	DeliveryDate  time.Time
	OpeningDate   time.Time

	Classification Classification
	Documents      []Document
	Payments       []Payment
	OcrData        []OcrDataField
	OcrWarnings    []string
}

// HasPayments reports whether the envelope carries payment data that needs
// forwarding to the payment processor after a successful orchestration.
func (e *Envelope) HasPayments() bool {
	return len(e.Payments) > 0
}

type Document struct {
	FileName      string
	ControlNumber string
	Type          string
	Subtype       string
	ScannedAt     time.Time
	DeliveryDate  time.Time
	UUID          string
}

type Payment struct {
	DocumentControlNumber string
}

// OcrDataField is a single recognised form field. Slice order within an
// envelope is significant and must survive every transformation.
type OcrDataField struct {
	Name  string
	Value string
}
