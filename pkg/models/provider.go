package models

import (
	"time"
)

// Status is the envelope status block present on every provider response.
type Status struct {
	Timestamp    time.Time `json:"timestamp"`
	ErrorCode    int       `json:"error_code"`
	ErrorMessage *string   `json:"error_message"`
	Elapsed      int       `json:"elapsed"`
	CreditCount  int       `json:"credit_count"`
}

// OK reports whether the provider considered the request successful.
func (s *Status) OK() bool {
	return s.ErrorCode == 0
}

// Message returns the embedded error message, or empty when none was set.
func (s *Status) Message() string {
	if s.ErrorMessage == nil {
		return ""
	}
	return *s.ErrorMessage
}

// ListingsResponse is the provider payload for listings/latest.
// Data preserves provider order.
type ListingsResponse struct {
	Status Status  `json:"status"`
	Data   []Asset `json:"data"`
}

// QuotesResponse is the provider payload for quotes/latest, keyed by symbol.
type QuotesResponse struct {
	Status Status           `json:"status"`
	Data   map[string]Asset `json:"data"`
}

// InfoResponse is the provider payload for the info endpoint, keyed by symbol.
type InfoResponse struct {
	Status Status               `json:"status"`
	Data   map[string]AssetInfo `json:"data"`
}

// GlobalMetricsResponse is the provider payload for global-metrics/quotes/latest.
type GlobalMetricsResponse struct {
	Status Status            `json:"status"`
	Data   GlobalMetricsData `json:"data"`
}

// GlobalMetricsData is the raw global metrics record with currency-keyed totals.
type GlobalMetricsData struct {
	ActiveCryptocurrencies int                    `json:"active_cryptocurrencies"`
	TotalCryptocurrencies  int                    `json:"total_cryptocurrencies"`
	ActiveMarketPairs      int                    `json:"active_market_pairs"`
	ActiveExchanges        int                    `json:"active_exchanges"`
	BtcDominance           float64                `json:"btc_dominance"`
	EthDominance           float64                `json:"eth_dominance"`
	Quote                  map[string]GlobalQuote `json:"quote"`
}

// GlobalQuote holds the market-wide totals denominated in one currency.
type GlobalQuote struct {
	TotalMarketCap float64 `json:"total_market_cap"`
	TotalVolume24h float64 `json:"total_volume_24h"`
}

// Flatten collapses the currency-keyed totals into a GlobalMetrics record
// for the given convert currency.
func (d *GlobalMetricsData) Flatten(currency string) *GlobalMetrics {
	gm := &GlobalMetrics{
		ActiveCryptocurrencies: d.ActiveCryptocurrencies,
		TotalCryptocurrencies:  d.TotalCryptocurrencies,
		ActiveMarketPairs:      d.ActiveMarketPairs,
		ActiveExchanges:        d.ActiveExchanges,
		BTCDominance:           d.BtcDominance,
		ETHDominance:           d.EthDominance,
	}
	if q, ok := d.Quote[currency]; ok {
		gm.TotalMarketCap = q.TotalMarketCap
		gm.TotalVolume24h = q.TotalVolume24h
	}
	return gm
}

// GlobalMetrics is the flattened market-wide aggregate consumed by clients.
type GlobalMetrics struct {
	ActiveCryptocurrencies int     `json:"active_cryptocurrencies"`
	TotalCryptocurrencies  int     `json:"total_cryptocurrencies"`
	ActiveMarketPairs      int     `json:"active_market_pairs"`
	ActiveExchanges        int     `json:"active_exchanges"`
	TotalMarketCap         float64 `json:"total_market_cap"`
	TotalVolume24h         float64 `json:"total_volume_24h"`
	BTCDominance           float64 `json:"btc_dominance"`
	ETHDominance           float64 `json:"eth_dominance"`
}
