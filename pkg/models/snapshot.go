package models

import (
	"time"
)

// SourceMode identifies where a snapshot's asset data came from.
type SourceMode string

const (
	// SourceLive means every asset in the snapshot came from the provider.
	SourceLive SourceMode = "live"
	// SourceFallback means every asset was synthesized locally.
	SourceFallback SourceMode = "fallback"
)

// Snapshot is one immutable, fully-formed market-data state. A new snapshot
// entirely replaces the previous one; consumers must not mutate it.
type Snapshot struct {
	Assets        []Asset        `json:"assets"`
	GlobalMetrics *GlobalMetrics `json:"global_metrics,omitempty"`
	SourceMode    SourceMode     `json:"source_mode"`
	FetchedAt     time.Time      `json:"fetched_at"`
	ErrorMessage  string         `json:"error_message,omitempty"`
	Generation    uint64         `json:"generation"`
}

// AssetBySymbol returns the asset with the given symbol, or nil.
func (s *Snapshot) AssetBySymbol(symbol string) *Asset {
	for i := range s.Assets {
		if s.Assets[i].Symbol == symbol {
			return &s.Assets[i]
		}
	}
	return nil
}

// TopRanked returns the best-ranked asset in the snapshot, or nil when empty.
func (s *Snapshot) TopRanked() *Asset {
	if len(s.Assets) == 0 {
		return nil
	}
	best := &s.Assets[0]
	for i := 1; i < len(s.Assets); i++ {
		if s.Assets[i].Rank() < best.Rank() {
			best = &s.Assets[i]
		}
	}
	return best
}
