package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/crypto-pulse/internal/provider"
	"github.com/crypto-pulse/pkg/models"
)

// Defaults applied when callers omit listing parameters.
const (
	DefaultStart   = 1
	DefaultLimit   = 50
	DefaultConvert = "USD"
)

// Source is the slice of the gateway surface the aggregator depends on.
type Source interface {
	ListLatest(ctx context.Context, start, limit int, convert string) (*models.ListingsResponse, error)
	GlobalMetrics(ctx context.Context, convert string) (*models.GlobalMetricsResponse, error)
}

// Client talks to the gateway from the aggregation side and parses provider
// envelopes into typed payloads.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *logrus.Entry
}

// NewClient creates a new gateway client
func NewClient(baseURL string, timeout time.Duration, logger *logrus.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger.WithField("component", "market-client"),
	}
}

// ListLatest fetches the latest listings. Zero values select the defaults
// start=1, limit=50, convert=USD.
func (c *Client) ListLatest(ctx context.Context, start, limit int, convert string) (*models.ListingsResponse, error) {
	if start < 1 {
		start = DefaultStart
	}
	if limit < 1 {
		limit = DefaultLimit
	}

	params := url.Values{}
	params.Set("start", strconv.Itoa(start))
	params.Set("limit", strconv.Itoa(limit))
	params.Set("convert", convertOrDefault(convert))

	var resp models.ListingsResponse
	if err := c.get(ctx, "/cryptocurrency/listings/latest", params, &resp); err != nil {
		return nil, err
	}

	if !resp.Status.OK() {
		return nil, &provider.ApplicationError{Code: resp.Status.ErrorCode, Message: resp.Status.Message()}
	}

	return &resp, nil
}

// QuotesFor fetches current quotes for specific assets, addressed by symbols
// or by provider ids.
func (c *Client) QuotesFor(ctx context.Context, symbols []string, ids []int64, convert string) (*models.QuotesResponse, error) {
	params := url.Values{}
	params.Set("convert", convertOrDefault(convert))
	if err := setSelectors(params, symbols, ids); err != nil {
		return nil, err
	}

	var resp models.QuotesResponse
	if err := c.get(ctx, "/cryptocurrency/quotes/latest", params, &resp); err != nil {
		return nil, err
	}

	if !resp.Status.OK() {
		return nil, &provider.ApplicationError{Code: resp.Status.ErrorCode, Message: resp.Status.Message()}
	}

	return &resp, nil
}

// InfoFor fetches static metadata for specific assets.
func (c *Client) InfoFor(ctx context.Context, symbols []string, ids []int64) (*models.InfoResponse, error) {
	params := url.Values{}
	if err := setSelectors(params, symbols, ids); err != nil {
		return nil, err
	}

	var resp models.InfoResponse
	if err := c.get(ctx, "/cryptocurrency/info", params, &resp); err != nil {
		return nil, err
	}

	if !resp.Status.OK() {
		return nil, &provider.ApplicationError{Code: resp.Status.ErrorCode, Message: resp.Status.Message()}
	}

	return &resp, nil
}

// GlobalMetrics fetches the market-wide aggregate record.
func (c *Client) GlobalMetrics(ctx context.Context, convert string) (*models.GlobalMetricsResponse, error) {
	params := url.Values{}
	params.Set("convert", convertOrDefault(convert))

	var resp models.GlobalMetricsResponse
	if err := c.get(ctx, "/global-metrics/quotes/latest", params, &resp); err != nil {
		return nil, err
	}

	if !resp.Status.OK() {
		return nil, &provider.ApplicationError{Code: resp.Status.ErrorCode, Message: resp.Status.Message()}
	}

	return &resp, nil
}

// get performs one gateway GET and decodes the JSON body into out
func (c *Client) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &provider.ParseError{Err: err}
	}

	return nil
}

// setSelectors fills exactly one of the symbol/id selector parameters
func setSelectors(params url.Values, symbols []string, ids []int64) error {
	switch {
	case len(symbols) > 0:
		params.Set("symbol", strings.Join(symbols, ","))
	case len(ids) > 0:
		strs := make([]string, len(ids))
		for i, id := range ids {
			strs[i] = strconv.FormatInt(id, 10)
		}
		params.Set("id", strings.Join(strs, ","))
	default:
		return fmt.Errorf("either symbols or ids must be provided")
	}
	return nil
}

func convertOrDefault(convert string) string {
	if convert == "" {
		return DefaultConvert
	}
	return convert
}
