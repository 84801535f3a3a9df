package credentials

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	pkgerrors "caseflow/pkg/errors"
)

// HTTPTokenSource acquires bearer tokens from the identity provider's
// lease endpoint.
type HTTPTokenSource struct {
	baseURL string
	client  *http.Client
}

func NewHTTPTokenSource(baseURL string) *HTTPTokenSource {
	return &HTTPTokenSource{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type tokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	ServiceToken string `json:"service_token"`
}

func (s *HTTPTokenSource) Tokens(ctx context.Context, username, password string) (Credentials, error) {
	body, err := json.Marshal(tokenRequest{Username: username, Password: password})
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to marshal token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/lease", bytes.NewReader(body))
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return Credentials{}, pkgerrors.ErrServiceUnavailable.WithCause(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Credentials{}, pkgerrors.ErrNoCredentials.
			WithDetail("message", fmt.Sprintf("identity provider rejected service user (status %d)", resp.StatusCode))
	case resp.StatusCode >= 400:
		return Credentials{}, pkgerrors.ErrServiceUnavailable.
			WithDetail("message", fmt.Sprintf("identity provider returned status %d", resp.StatusCode))
	}

	var tokens tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return Credentials{}, fmt.Errorf("failed to decode token response: %w", err)
	}

	return Credentials{
		AccessToken:  tokens.AccessToken,
		ServiceToken: tokens.ServiceToken,
	}, nil
}
