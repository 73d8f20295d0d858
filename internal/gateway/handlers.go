package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/crypto-pulse/internal/provider"
)

// Upper bound accepted by the provider's listings endpoint.
const maxListingLimit = 5000

// errorResponse is the normalized failure shape returned by every relay
// route: a stable summary plus the provider's own payload when one exists.
type errorResponse struct {
	Error   string      `json:"error"`
	Details interface{} `json:"details"`
}

// handleListings relays GET /api/cryptocurrency/listings/latest
func (s *Server) handleListings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	start, err := intParam(q, "start", 1)
	if err != nil || start < 1 {
		s.writeBadRequest(w, "Invalid start parameter")
		return
	}

	limit, err := intParam(q, "limit", 50)
	if err != nil || limit < 1 || limit > maxListingLimit {
		s.writeBadRequest(w, "Invalid limit parameter")
		return
	}

	params := url.Values{}
	params.Set("start", strconv.Itoa(start))
	params.Set("limit", strconv.Itoa(limit))
	params.Set("convert", convertParam(q))

	s.relay(w, r, "/cryptocurrency/listings/latest", params, "Failed to fetch cryptocurrency data")
}

// handleQuotes relays GET /api/cryptocurrency/quotes/latest
func (s *Server) handleQuotes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	params := url.Values{}
	params.Set("convert", convertParam(q))
	if symbol := q.Get("symbol"); symbol != "" {
		params.Set("symbol", symbol)
	}
	if id := q.Get("id"); id != "" {
		params.Set("id", id)
	}

	s.relay(w, r, "/cryptocurrency/quotes/latest", params, "Failed to fetch cryptocurrency quotes")
}

// handleInfo relays GET /api/cryptocurrency/info
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	params := url.Values{}
	if symbol := q.Get("symbol"); symbol != "" {
		params.Set("symbol", symbol)
	}
	if id := q.Get("id"); id != "" {
		params.Set("id", id)
	}

	s.relay(w, r, "/cryptocurrency/info", params, "Failed to fetch cryptocurrency info")
}

// handleGlobalMetrics relays GET /api/global-metrics/quotes/latest
func (s *Server) handleGlobalMetrics(w http.ResponseWriter, r *http.Request) {
	params := url.Values{}
	params.Set("convert", convertParam(r.URL.Query()))

	s.relay(w, r, "/global-metrics/quotes/latest", params, "Failed to fetch global metrics")
}

// handleHealth responds to the health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "OK",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// relay forwards one request to the provider and writes the provider body
// verbatim on success, or the normalized error object on failure. The
// provider's HTTP status is propagated when known.
func (s *Server) relay(w http.ResponseWriter, r *http.Request, path string, params url.Values, summary string) {
	body, _, err := s.provider.Get(r.Context(), path, params)
	if err != nil {
		s.logger.WithError(err).WithField("path", path).Error(summary)

		var httpErr *provider.HTTPError
		if errors.As(err, &httpErr) {
			s.writeError(w, httpErr.StatusCode, summary, rawDetails(httpErr.Body))
			return
		}

		s.writeError(w, http.StatusInternalServerError, summary, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

// writeError writes the normalized gateway error object
func (s *Server) writeError(w http.ResponseWriter, status int, summary string, details interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{
		Error:   summary,
		Details: details,
	})
}

func (s *Server) writeBadRequest(w http.ResponseWriter, details string) {
	s.writeError(w, http.StatusBadRequest, "Invalid request parameters", details)
}

// rawDetails embeds the provider body as-is when it is valid JSON,
// otherwise as a plain string.
func rawDetails(body []byte) interface{} {
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	return string(body)
}

// intParam parses an optional integer query parameter
func intParam(q url.Values, name string, def int) (int, error) {
	v := q.Get(name)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

// convertParam returns the convert currency, defaulting to USD
func convertParam(q url.Values) string {
	if convert := q.Get("convert"); convert != "" {
		return convert
	}
	return "USD"
}
