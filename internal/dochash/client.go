package dochash

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"caseflow/internal/config"
)

// Client fetches hash tokens from the document store. The hash enriches
// case update payloads; all failures degrade to an omitted hash, they are
// never a pipeline failure.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(cfg config.DocumentHashConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type hashResponse struct {
	HashToken string `json:"hash_token"`
}

func (c *Client) GetDocumentHash(ctx context.Context, documentUUID string) (string, error) {
	path := c.baseURL + "/documents/" + url.PathEscape(documentUUID) + "/hash"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create document hash request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("document hash request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("document hash returned status %d", resp.StatusCode)
	}

	var out hashResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode document hash response: %w", err)
	}
	return out.HashToken, nil
}
