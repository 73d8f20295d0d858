package provider

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/crypto-pulse/pkg/config"
)

func newTestClient(baseURL, apiKey string) *Client {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewClient(&config.ProviderConfig{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Timeout: time.Second,
	}, log)
}

func TestGetAttachesCredential(t *testing.T) {
	var gotKey, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-CMC_PRO_API_KEY")
		gotAccept = r.Header.Get("Accept")
		w.Write([]byte(`{"status": {"error_code": 0}}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, "secret-key")

	body, status, err := client.Get(context.Background(), "/cryptocurrency/listings/latest", nil)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if status != http.StatusOK {
		t.Errorf("status = %d", status)
	}
	if len(body) == 0 {
		t.Error("empty body")
	}
	if gotKey != "secret-key" {
		t.Errorf("credential header = %q", gotKey)
	}
	if gotAccept != "application/json" {
		t.Errorf("accept header = %q", gotAccept)
	}
}

func TestGetForwardsParams(t *testing.T) {
	var query url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, "")

	params := url.Values{}
	params.Set("start", "1")
	params.Set("convert", "USD")

	if _, _, err := client.Get(context.Background(), "/cryptocurrency/listings/latest", params); err != nil {
		t.Fatalf("Get: %v", err)
	}

	if query.Get("start") != "1" || query.Get("convert") != "USD" {
		t.Errorf("params = %v", query)
	}
}

func TestGetHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"status": {"error_code": 1008, "error_message": "rate limited"}}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, "")

	_, status, err := client.Get(context.Background(), "/cryptocurrency/listings/latest", nil)
	if status != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", status)
	}

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("error type = %T, want *HTTPError", err)
	}
	if httpErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("error status = %d", httpErr.StatusCode)
	}
	if len(httpErr.Body) == 0 {
		t.Error("provider error body not preserved")
	}
}

func TestGetTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := newTestClient(srv.URL, "")

	_, _, err := client.Get(context.Background(), "/health", nil)

	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("error type = %T, want *TransportError", err)
	}
}
