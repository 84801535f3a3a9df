package casemanagement

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"caseflow/internal/config"
	"caseflow/internal/credentials"
	"caseflow/internal/logger"
	"caseflow/pkg/circuitbreaker"
	pkgerrors "caseflow/pkg/errors"
	"caseflow/pkg/metrics"
)

// Client talks to the external case-management system. Every method makes
// exactly one network call; retries are the ingestion layer's concern.
type Client struct {
	baseURL string
	http    *http.Client
	cb      *circuitbreaker.Wrapper
	limiter *rate.Limiter
	logger  logger.Logger
}

func NewClient(cfg config.CaseManagementConfig, cbCfg config.CircuitBreakerConfig, log logger.Logger) *Client {
	c := &Client{
		baseURL: cfg.BaseURL,
		http: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		logger: log,
	}

	if cfg.RateLimit.Enabled {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit.RPS), cfg.RateLimit.Burst)
	}

	if cbCfg.Enabled {
		cbConfig := circuitbreaker.DefaultConfig("case-management")
		if cbCfg.MaxRequests > 0 {
			cbConfig.MaxRequests = cbCfg.MaxRequests
		}
		if cbCfg.Interval > 0 {
			cbConfig.Interval = cbCfg.Interval
		}
		if cbCfg.Timeout > 0 {
			cbConfig.Timeout = cbCfg.Timeout
		}
		if cbCfg.FailureRatio > 0 && cbCfg.MinRequests > 0 {
			cbConfig.ReadyToTrip = func(counts gobreaker.Counts) bool {
				if counts.Requests < cbCfg.MinRequests {
					return false
				}
				return float64(counts.TotalFailures)/float64(counts.Requests) >= cbCfg.FailureRatio
			}
		}
		c.cb = circuitbreaker.NewWrapper(cbConfig)
	}

	return c
}

// CreateCase requests creation of a new case and returns its identifier.
func (c *Client) CreateCase(ctx context.Context, creds credentials.Credentials, req CreateCaseRequest) (string, error) {
	var out createCaseResponse
	err := c.call(ctx, "create_case", http.MethodPost, "/cases", creds, req, &out)
	if err != nil {
		return "", err
	}
	return out.CaseID, nil
}

// GetCase fetches an existing case by its reference. A missing case maps
// to a not-found error, which the pipeline treats as permanent.
func (c *Client) GetCase(ctx context.Context, creds credentials.Credentials, caseRef string) (*CaseDetails, error) {
	var out CaseDetails
	path := "/cases/" + url.PathEscape(caseRef)
	if err := c.call(ctx, "get_case", http.MethodGet, path, creds, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SearchByLegacyRef returns the case ids matching a legacy reference
// within a container. Zero or multiple matches mean the target case
// cannot be resolved.
func (c *Client) SearchByLegacyRef(ctx context.Context, creds credentials.Credentials, legacyRef, container string) ([]string, error) {
	var out searchResponse
	path := fmt.Sprintf("/cases/search?legacy_ref=%s&container=%s", url.QueryEscape(legacyRef), url.QueryEscape(container))
	if err := c.call(ctx, "search_cases", http.MethodGet, path, creds, nil, &out); err != nil {
		return nil, err
	}
	return out.CaseIDs, nil
}

// SearchByEnvelopeID returns the ids of exception records already created
// from an envelope. Consulted before every create so a redelivery of an
// envelope whose create completed reuses the existing record.
func (c *Client) SearchByEnvelopeID(ctx context.Context, creds credentials.Credentials, envelopeID, container string) ([]string, error) {
	var out searchResponse
	path := fmt.Sprintf("/cases/search?envelope_id=%s&container=%s", url.QueryEscape(envelopeID), url.QueryEscape(container))
	if err := c.call(ctx, "search_by_envelope", http.MethodGet, path, creds, nil, &out); err != nil {
		return nil, err
	}
	return out.CaseIDs, nil
}

// UpdateCase submits an event-based update against an existing case.
func (c *Client) UpdateCase(ctx context.Context, creds credentials.Credentials, caseID string, req UpdateCaseRequest) (*UpdateResult, error) {
	var out UpdateResult
	path := "/cases/" + url.PathEscape(caseID) + "/events"
	if err := c.call(ctx, "update_case", http.MethodPost, path, creds, req, &out); err != nil {
		return nil, err
	}
	if out.CaseID == "" {
		out.CaseID = caseID
	}
	return &out, nil
}

func (c *Client) call(ctx context.Context, operation, method, path string, creds credentials.Credentials, body, out interface{}) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return pkgerrors.ErrTimeout.WithCause(err)
		}
	}

	do := func() (interface{}, error) {
		return nil, c.doRequest(ctx, operation, method, path, creds, body, out)
	}

	var err error
	if c.cb != nil {
		_, err = c.cb.ExecuteWithContext(ctx, do)
		c.cb.RecordRequest(err == nil)
		if err != nil && c.cb.IsOpen() {
			return pkgerrors.ErrServiceUnavailable.
				WithCause(err).
				WithDetail("message", "case management circuit breaker is open")
		}
	} else {
		_, err = do()
	}
	return err
}

func (c *Client) doRequest(ctx context.Context, operation, method, path string, creds credentials.Credentials, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal %s request: %w", operation, err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", operation, err)
	}
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	req.Header.Set("ServiceAuthorization", creds.ServiceToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.ObserveCaseClientDuration(time.Since(start), operation)

	if err != nil {
		metrics.CaseClientRequests.WithLabelValues(operation, "transport_error").Inc()
		return pkgerrors.ErrServiceUnavailable.WithCause(err)
	}
	defer resp.Body.Close()

	metrics.CaseClientRequests.WithLabelValues(operation, fmt.Sprintf("%d", resp.StatusCode)).Inc()

	if err := mapStatus(operation, resp); err != nil {
		return err
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode %s response: %w", operation, err)
		}
	}
	return nil
}

// mapStatus applies the failure taxonomy: not-found and other 4xx are
// permanent, 5xx and connectivity problems are eligible for redelivery.
func mapStatus(operation string, resp *http.Response) error {
	switch {
	case resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return pkgerrors.ErrNotFound.
			WithDetail("message", fmt.Sprintf("case management %s: target not found", operation))
	case resp.StatusCode < 500:
		appErr := pkgerrors.ErrValidation.
			WithDetail("message", fmt.Sprintf("case management %s rejected with status %d", operation, resp.StatusCode))

		var details errorResponse
		if err := json.NewDecoder(resp.Body).Decode(&details); err == nil && len(details.Errors) > 0 {
			appErr = appErr.WithDetail("errors", details.Errors)
		}
		return appErr
	default:
		return pkgerrors.ErrServiceUnavailable.
			WithDetail("message", fmt.Sprintf("case management %s failed with status %d", operation, resp.StatusCode))
	}
}
