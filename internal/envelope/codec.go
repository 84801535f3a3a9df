package envelope

import (
	"encoding/json"
	"time"

	pkgerrors "caseflow/pkg/errors"
)

// Wire representation of an envelope message body. Pointer fields
// distinguish "absent" from zero values so required-field validation can
// name the missing field.
type envelopeJSON struct {
	ID             *string         `json:"id"`
	CaseRef        string          `json:"case_ref"`
	LegacyCaseRef  string          `json:"previous_service_case_ref"`
	PoBox          *string         `json:"po_box"`
	Jurisdiction   *string         `json:"jurisdiction"`
	Container      *string         `json:"container"`
	ZipFileName    *string         `json:"zip_file_name"`
	FormType       string          `json:"form_type"`
	DeliveryDate   *time.Time      `json:"delivery_date"`
	OpeningDate    *time.Time      `json:"opening_date"`
	Classification *string         `json:"classification"`
	Documents      *[]documentJSON `json:"documents"`
	Payments       []paymentJSON   `json:"payments"`
	OcrData        []ocrFieldJSON  `json:"ocr_data"`
	OcrWarnings    []string        `json:"ocr_data_validation_warnings"`
}

type documentJSON struct {
	FileName      *string    `json:"file_name"`
	ControlNumber *string    `json:"control_number"`
	Type          *string    `json:"type"`
	Subtype       string     `json:"subtype"`
	ScannedAt     *time.Time `json:"scanned_at"`
	DeliveryDate  *time.Time `json:"delivery_date"`
	UUID          *string    `json:"uuid"`
}

type paymentJSON struct {
	DocumentControlNumber string `json:"document_control_number"`
}

type ocrFieldJSON struct {
	Name  string `json:"metadata_field_name"`
	Value string `json:"metadata_field_value"`
}

// Decode parses and validates a raw envelope message body. It performs no
// I/O; a failure here is permanent, since a malformed body will never
// succeed on redelivery.
func Decode(raw []byte) (*Envelope, error) {
	var wire envelopeJSON
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, pkgerrors.ErrDecode.WithCause(err)
	}

	if err := wire.validate(); err != nil {
		return nil, err
	}

	env := &Envelope{
		ID:             *wire.ID,
		CaseRef:        wire.CaseRef,
		LegacyCaseRef:  wire.LegacyCaseRef,
		PoBox:          *wire.PoBox,
		Jurisdiction:   *wire.Jurisdiction,
		Container:      *wire.Container,
		ZipFileName:    *wire.ZipFileName,
		FormType:       wire.FormType,
		DeliveryDate:   *wire.DeliveryDate,
		OpeningDate:    *wire.OpeningDate,
		Classification: Classification(*wire.Classification).Normalise(),
		Documents:      make([]Document, 0, len(*wire.Documents)),
		OcrWarnings:    wire.OcrWarnings,
	}

	for _, d := range *wire.Documents {
		doc := Document{
			FileName:      *d.FileName,
			ControlNumber: *d.ControlNumber,
			Type:          *d.Type,
			Subtype:       d.Subtype,
			ScannedAt:     *d.ScannedAt,
			UUID:          *d.UUID,
		}
		if d.DeliveryDate != nil {
			doc.DeliveryDate = *d.DeliveryDate
		}
		env.Documents = append(env.Documents, doc)
	}

	for _, p := range wire.Payments {
		env.Payments = append(env.Payments, Payment{DocumentControlNumber: p.DocumentControlNumber})
	}

	// wire order of OCR fields is an invariant consumed downstream
	for _, f := range wire.OcrData {
		env.OcrData = append(env.OcrData, OcrDataField{Name: f.Name, Value: f.Value})
	}

	return env, nil
}

func (w *envelopeJSON) validate() error {
	switch {
	case w.ID == nil || *w.ID == "":
		return missingField("id")
	case w.PoBox == nil:
		return missingField("po_box")
	case w.Jurisdiction == nil || *w.Jurisdiction == "":
		return missingField("jurisdiction")
	case w.Container == nil:
		return missingField("container")
	case w.ZipFileName == nil:
		return missingField("zip_file_name")
	case w.DeliveryDate == nil:
		return missingField("delivery_date")
	case w.OpeningDate == nil:
		return missingField("opening_date")
	case w.Classification == nil || *w.Classification == "":
		return missingField("classification")
	case w.Documents == nil:
		return missingField("documents")
	}

	for _, d := range *w.Documents {
		switch {
		case d.FileName == nil:
			return missingField("documents.file_name")
		case d.ControlNumber == nil:
			return missingField("documents.control_number")
		case d.Type == nil:
			return missingField("documents.type")
		case d.ScannedAt == nil:
			return missingField("documents.scanned_at")
		case d.UUID == nil || *d.UUID == "":
			return missingField("documents.uuid")
		}
	}

	return nil
}

func missingField(name string) error {
	return pkgerrors.ErrDecode.
		WithDetail("message", "required field missing: "+name).
		WithDetail("field", name)
}
