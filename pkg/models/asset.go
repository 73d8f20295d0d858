package models

import (
	"time"
)

// Asset represents one tradable instrument's latest known state as returned
// by the provider listings/quotes endpoints.
type Asset struct {
	ID      int64            `json:"id"`
	Name    string           `json:"name"`
	Symbol  string           `json:"symbol"`
	Slug    string           `json:"slug"`
	CmcRank int              `json:"cmc_rank"`
	Quote   map[string]Quote `json:"quote"`
}

// Quote is a single-currency view of an asset's market data.
type Quote struct {
	Price             float64   `json:"price"`
	PercentChange24h  float64   `json:"percent_change_24h"`
	PercentChange7d   float64   `json:"percent_change_7d"`
	MarketCap         float64   `json:"market_cap"`
	Volume24h         float64   `json:"volume_24h"`
	CirculatingSupply float64   `json:"circulating_supply"`
	TotalSupply       float64   `json:"total_supply"`
	MaxSupply         *float64  `json:"max_supply"`
	LastUpdated       time.Time `json:"last_updated"`
}

// Rank returns the provider rank, falling back to the asset ID when the
// provider did not supply one.
func (a *Asset) Rank() int {
	if a.CmcRank > 0 {
		return a.CmcRank
	}
	return int(a.ID)
}

// QuoteIn returns the quote denominated in the given currency.
func (a *Asset) QuoteIn(currency string) (Quote, bool) {
	q, ok := a.Quote[currency]
	return q, ok
}

// AssetInfo contains static metadata about an asset from the provider
// info endpoint.
type AssetInfo struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Slug        string `json:"slug"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Logo        string `json:"logo"`
}
