package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/sirupsen/logrus"

	"github.com/crypto-pulse/pkg/config"
)

// Authentication header expected by the provider.
const apiKeyHeader = "X-CMC_PRO_API_KEY"

// Client is a thin HTTP client for the upstream market-data provider.
// It attaches the credential and returns response bodies verbatim;
// interpretation of payloads belongs to callers.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     *logrus.Entry
}

// NewClient creates a new provider client
func NewClient(cfg *config.ProviderConfig, logger *logrus.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		logger:  logger.WithField("component", "provider"),
	}
}

// Get issues one authenticated GET to the provider and returns the raw body
// and HTTP status. On a non-2xx response the body is still returned inside
// an *HTTPError so callers can relay the provider's own error payload.
func (c *Client) Get(ctx context.Context, path string, params url.Values) ([]byte, int, error) {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, &TransportError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.WithFields(logrus.Fields{
			"path":   path,
			"status": resp.StatusCode,
		}).Warn("Provider returned error status")
		return nil, resp.StatusCode, &HTTPError{StatusCode: resp.StatusCode, Body: body}
	}

	return body, resp.StatusCode, nil
}
