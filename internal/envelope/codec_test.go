package envelope

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "caseflow/pkg/errors"
)

func validEnvelopeJSON() map[string]interface{} {
	return map[string]interface{}{
		"id":             "env-1",
		"case_ref":       "1234567890123456",
		"po_box":         "PO 123",
		"jurisdiction":   "divorce",
		"container":      "divorce",
		"zip_file_name":  "batch_2026.zip",
		"form_type":      "D8",
		"delivery_date":  "2026-01-10T09:00:00Z",
		"opening_date":   "2026-01-10T10:00:00Z",
		"classification": "SUPPLEMENTARY_EVIDENCE",
		"documents": []map[string]interface{}{
			{
				"file_name":      "form.pdf",
				"control_number": "1001",
				"type":           "form",
				"scanned_at":     "2026-01-10T08:00:00Z",
				"uuid":           "doc-uuid-1",
			},
		},
	}
}

func marshal(t *testing.T, v interface{}) []byte {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func TestDecodeValidEnvelope(t *testing.T) {
	env, err := Decode(marshal(t, validEnvelopeJSON()))
	require.NoError(t, err)

	assert.Equal(t, "env-1", env.ID)
	assert.Equal(t, "1234567890123456", env.CaseRef)
	assert.Equal(t, "divorce", env.Jurisdiction)
	assert.Equal(t, ClassificationSupplementaryEvidence, env.Classification)
	require.Len(t, env.Documents, 1)
	assert.Equal(t, "doc-uuid-1", env.Documents[0].UUID)
	assert.Equal(t, time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC), env.DeliveryDate)
}

func TestDecodeMissingRequiredFields(t *testing.T) {
	tests := []struct {
		name  string
		field string
	}{
		{name: "missing id", field: "id"},
		{name: "missing po_box", field: "po_box"},
		{name: "missing jurisdiction", field: "jurisdiction"},
		{name: "missing container", field: "container"},
		{name: "missing zip_file_name", field: "zip_file_name"},
		{name: "missing delivery_date", field: "delivery_date"},
		{name: "missing opening_date", field: "opening_date"},
		{name: "missing classification", field: "classification"},
		{name: "missing documents", field: "documents"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := validEnvelopeJSON()
			delete(body, tt.field)

			env, err := Decode(marshal(t, body))
			require.Error(t, err)
			assert.Nil(t, env)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestDecodeMissingDocumentFields(t *testing.T) {
	body := validEnvelopeJSON()
	body["documents"] = []map[string]interface{}{
		{
			"file_name":  "form.pdf",
			"type":       "form",
			"scanned_at": "2026-01-10T08:00:00Z",
			"uuid":       "doc-uuid-1",
		},
	}

	_, err := Decode(marshal(t, body))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "documents.control_number")
}

func TestDecodeFailureIsPermanent(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
	}{
		{name: "malformed json", raw: []byte(`{not json`)},
		{name: "missing field", raw: []byte(`{"id":"env-1"}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.raw)
			require.Error(t, err)
			assert.True(t, pkgerrors.IsUnrecoverable(err))
		})
	}
}

func TestDecodePreservesOcrDataOrder(t *testing.T) {
	body := validEnvelopeJSON()
	var fields []map[string]string
	for i := 0; i < 20; i++ {
		fields = append(fields, map[string]string{
			"metadata_field_name":  fmt.Sprintf("field_%02d", i),
			"metadata_field_value": fmt.Sprintf("value_%02d", i),
		})
	}
	body["ocr_data"] = fields

	env, err := Decode(marshal(t, body))
	require.NoError(t, err)
	require.Len(t, env.OcrData, 20)
	for i, f := range env.OcrData {
		assert.Equal(t, fmt.Sprintf("field_%02d", i), f.Name)
		assert.Equal(t, fmt.Sprintf("value_%02d", i), f.Value)
	}
}

func TestDecodeDocumentsNeverNil(t *testing.T) {
	body := validEnvelopeJSON()
	body["documents"] = []map[string]interface{}{}

	env, err := Decode(marshal(t, body))
	require.NoError(t, err)
	assert.NotNil(t, env.Documents)
	assert.Empty(t, env.Documents)
}

func TestDecodeNormalisesClassification(t *testing.T) {
	body := validEnvelopeJSON()
	body["classification"] = "supplementary_evidence"

	env, err := Decode(marshal(t, body))
	require.NoError(t, err)
	assert.Equal(t, ClassificationSupplementaryEvidence, env.Classification)
	assert.True(t, env.Classification.Known())
}

func TestDecodeUnknownClassificationRetained(t *testing.T) {
	body := validEnvelopeJSON()
	body["classification"] = "SOMETHING_NEW"

	env, err := Decode(marshal(t, body))
	require.NoError(t, err)
	assert.Equal(t, Classification("SOMETHING_NEW"), env.Classification)
	assert.False(t, env.Classification.Known())
}
