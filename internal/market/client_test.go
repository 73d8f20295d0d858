package market

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/crypto-pulse/internal/provider"
)

const listingsBody = `{
	"status": {"timestamp": "2024-01-15T10:00:00.000Z", "error_code": 0, "error_message": null},
	"data": [
		{"id": 1, "name": "Bitcoin", "symbol": "BTC", "slug": "bitcoin", "cmc_rank": 1,
		 "quote": {"USD": {"price": 43250.5, "percent_change_24h": 1.2, "percent_change_7d": -3.4,
		           "market_cap": 847000000000, "volume_24h": 18000000000,
		           "circulating_supply": 19600000, "total_supply": 19600000, "max_supply": 21000000,
		           "last_updated": "2024-01-15T10:00:00.000Z"}}}
	]
}`

const metricsBody = `{
	"status": {"error_code": 0, "error_message": null},
	"data": {
		"active_cryptocurrencies": 8900, "total_cryptocurrencies": 26000,
		"active_market_pairs": 92000, "active_exchanges": 750,
		"btc_dominance": 52.4, "eth_dominance": 17.1,
		"quote": {"USD": {"total_market_cap": 1710000000000, "total_volume_24h": 98500000000}}
	}
}`

func gatewayStub(t *testing.T, captured *url.Values, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if captured != nil {
			*captured = r.URL.Query()
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
}

func TestListLatestDefaults(t *testing.T) {
	var query url.Values
	srv := gatewayStub(t, &query, listingsBody)
	defer srv.Close()

	client := NewClient(srv.URL, time.Second, testLogger())

	resp, err := client.ListLatest(context.Background(), 0, 0, "")
	if err != nil {
		t.Fatalf("ListLatest: %v", err)
	}

	if got := query.Get("start"); got != "1" {
		t.Errorf("start = %q, want 1", got)
	}
	if got := query.Get("limit"); got != "50" {
		t.Errorf("limit = %q, want 50", got)
	}
	if got := query.Get("convert"); got != "USD" {
		t.Errorf("convert = %q, want USD", got)
	}

	if len(resp.Data) != 1 || resp.Data[0].Symbol != "BTC" {
		t.Fatalf("unexpected payload: %+v", resp.Data)
	}
	q := resp.Data[0].Quote["USD"]
	if q.Price != 43250.5 {
		t.Errorf("price = %f", q.Price)
	}
	if q.MaxSupply == nil || *q.MaxSupply != 21000000 {
		t.Errorf("max supply = %v, want 21000000", q.MaxSupply)
	}
}

func TestListLatestExplicitParams(t *testing.T) {
	var query url.Values
	srv := gatewayStub(t, &query, listingsBody)
	defer srv.Close()

	client := NewClient(srv.URL, time.Second, testLogger())

	if _, err := client.ListLatest(context.Background(), 51, 100, "EUR"); err != nil {
		t.Fatalf("ListLatest: %v", err)
	}

	if query.Get("start") != "51" || query.Get("limit") != "100" || query.Get("convert") != "EUR" {
		t.Errorf("params = %v", query)
	}
}

func TestListLatestEmbeddedError(t *testing.T) {
	srv := gatewayStub(t, nil, `{"status": {"error_code": 1002, "error_message": "API key missing"}, "data": []}`)
	defer srv.Close()

	client := NewClient(srv.URL, time.Second, testLogger())

	_, err := client.ListLatest(context.Background(), 0, 0, "")
	if err == nil {
		t.Fatal("expected error for embedded non-zero error code")
	}

	var appErr *provider.ApplicationError
	if !errors.As(err, &appErr) {
		t.Fatalf("error type = %T, want *provider.ApplicationError", err)
	}
	if appErr.Code != 1002 {
		t.Errorf("code = %d, want 1002", appErr.Code)
	}
}

func TestListLatestGatewayDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := NewClient(srv.URL, time.Second, testLogger())

	if _, err := client.ListLatest(context.Background(), 0, 0, ""); err == nil {
		t.Fatal("expected error when gateway is unreachable")
	}
}

func TestListLatestMalformedBody(t *testing.T) {
	srv := gatewayStub(t, nil, `{"status": {"error_code": 0}, "data": [{`)
	defer srv.Close()

	client := NewClient(srv.URL, time.Second, testLogger())

	_, err := client.ListLatest(context.Background(), 0, 0, "")
	var parseErr *provider.ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("error = %v, want *provider.ParseError", err)
	}
}

func TestGlobalMetrics(t *testing.T) {
	var query url.Values
	srv := gatewayStub(t, &query, metricsBody)
	defer srv.Close()

	client := NewClient(srv.URL, time.Second, testLogger())

	resp, err := client.GlobalMetrics(context.Background(), "")
	if err != nil {
		t.Fatalf("GlobalMetrics: %v", err)
	}

	if got := query.Get("convert"); got != "USD" {
		t.Errorf("convert = %q, want USD", got)
	}

	gm := resp.Data.Flatten("USD")
	if gm.ActiveCryptocurrencies != 8900 {
		t.Errorf("active cryptocurrencies = %d", gm.ActiveCryptocurrencies)
	}
	if gm.TotalMarketCap != 1.71e12 {
		t.Errorf("total market cap = %f", gm.TotalMarketCap)
	}
	if gm.BTCDominance != 52.4 || gm.ETHDominance != 17.1 {
		t.Errorf("dominance = %f/%f", gm.BTCDominance, gm.ETHDominance)
	}
}

func TestQuotesForSelectors(t *testing.T) {
	var query url.Values
	srv := gatewayStub(t, &query, `{"status": {"error_code": 0}, "data": {"BTC": {"id": 1, "symbol": "BTC"}}}`)
	defer srv.Close()

	client := NewClient(srv.URL, time.Second, testLogger())

	if _, err := client.QuotesFor(context.Background(), []string{"BTC", "ETH"}, nil, ""); err != nil {
		t.Fatalf("QuotesFor: %v", err)
	}
	if got := query.Get("symbol"); got != "BTC,ETH" {
		t.Errorf("symbol = %q, want BTC,ETH", got)
	}

	if _, err := client.QuotesFor(context.Background(), nil, []int64{1, 1027}, ""); err != nil {
		t.Fatalf("QuotesFor by id: %v", err)
	}
	if got := query.Get("id"); got != "1,1027" {
		t.Errorf("id = %q, want 1,1027", got)
	}

	if _, err := client.QuotesFor(context.Background(), nil, nil, ""); err == nil {
		t.Error("expected error with no selectors")
	}
}
