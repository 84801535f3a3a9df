package casemanagement

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caseflow/internal/config"
	"caseflow/internal/credentials"
	"caseflow/internal/logger"
	pkgerrors "caseflow/pkg/errors"
)

func newTestClient(serverURL string) *Client {
	return NewClient(
		config.CaseManagementConfig{BaseURL: serverURL, TimeoutSeconds: 5},
		config.CircuitBreakerConfig{},
		logger.NopLogger(),
	)
}

func testCreds() credentials.Credentials {
	return credentials.Credentials{AccessToken: "at", ServiceToken: "st"}
}

func TestCreateCase(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/cases", r.URL.Path)
		assert.Equal(t, "Bearer at", r.Header.Get("Authorization"))
		assert.Equal(t, "st", r.Header.Get("ServiceAuthorization"))

		var req CreateCaseRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "env-1", req.EnvelopeID)

		w.Write([]byte(`{"case_id":"case-9"}`))
	}))
	defer server.Close()

	caseID, err := newTestClient(server.URL).CreateCase(context.Background(), testCreds(), CreateCaseRequest{EnvelopeID: "env-1"})
	require.NoError(t, err)
	assert.Equal(t, "case-9", caseID)
}

func TestGetCase(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/cases/1234567890123456", r.URL.Path)
		w.Write([]byte(`{
			"id": "1234567890123456",
			"jurisdiction": "divorce",
			"scanned_documents": [{"document_uuid": "d1"}]
		}`))
	}))
	defer server.Close()

	details, err := newTestClient(server.URL).GetCase(context.Background(), testCreds(), "1234567890123456")
	require.NoError(t, err)
	assert.Equal(t, "1234567890123456", details.ID)
	require.Len(t, details.ScannedDocuments, 1)
	assert.Equal(t, "d1", details.ScannedDocuments[0].DocumentUUID)
}

func TestSearchByLegacyRef(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/cases/search", r.URL.Path)
		assert.Equal(t, "legacy-7", r.URL.Query().Get("legacy_ref"))
		assert.Equal(t, "divorce", r.URL.Query().Get("container"))
		w.Write([]byte(`{"case_ids":["a","b"]}`))
	}))
	defer server.Close()

	ids, err := newTestClient(server.URL).SearchByLegacyRef(context.Background(), testCreds(), "legacy-7", "divorce")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)
}

func TestSearchByEnvelopeID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/cases/search", r.URL.Path)
		assert.Equal(t, "env-1", r.URL.Query().Get("envelope_id"))
		assert.Equal(t, "divorce", r.URL.Query().Get("container"))
		w.Write([]byte(`{"case_ids":["case-7"]}`))
	}))
	defer server.Close()

	ids, err := newTestClient(server.URL).SearchByEnvelopeID(context.Background(), testCreds(), "env-1", "divorce")
	require.NoError(t, err)
	assert.Equal(t, []string{"case-7"}, ids)
}

func TestUpdateCaseDefaultsCaseID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/cases/case-9/events", r.URL.Path)
		w.Write([]byte(`{"warnings":["w1"]}`))
	}))
	defer server.Close()

	result, err := newTestClient(server.URL).UpdateCase(context.Background(), testCreds(), "case-9", UpdateCaseRequest{EventID: "attachScannedDocs"})
	require.NoError(t, err)
	assert.Equal(t, "case-9", result.CaseID)
	assert.Equal(t, []string{"w1"}, result.Warnings)
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		recoverable bool
	}{
		{name: "404 is permanent", status: http.StatusNotFound, recoverable: false},
		{name: "400 is permanent", status: http.StatusBadRequest, body: `{"errors":["bad payload"]}`, recoverable: false},
		{name: "422 is permanent", status: http.StatusUnprocessableEntity, recoverable: false},
		{name: "500 is transient", status: http.StatusInternalServerError, recoverable: true},
		{name: "503 is transient", status: http.StatusServiceUnavailable, recoverable: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				if tt.body != "" {
					w.Write([]byte(tt.body))
				}
			}))
			defer server.Close()

			_, err := newTestClient(server.URL).GetCase(context.Background(), testCreds(), "case-9")
			require.Error(t, err)
			assert.Equal(t, !tt.recoverable, pkgerrors.IsUnrecoverable(err))
		})
	}
}

func TestConnectionFailureIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	_, err := newTestClient(server.URL).GetCase(context.Background(), testCreds(), "case-9")
	require.Error(t, err)
	assert.False(t, pkgerrors.IsUnrecoverable(err))
}
