package market

import (
	"sync"

	"github.com/crypto-pulse/pkg/models"
)

// SelectionStore tracks the asset the user is currently viewing. The
// reference is weak: it is held by symbol, survives snapshot replacement as
// long as the symbol still exists, and is mutated only by explicit user
// action, never by refresh cycles.
type SelectionStore struct {
	mu       sync.RWMutex
	selected *models.Asset
}

// NewSelectionStore creates an empty selection store
func NewSelectionStore() *SelectionStore {
	return &SelectionStore{}
}

// Select replaces the current selection. Passing nil clears it.
func (s *SelectionStore) Select(asset *models.Asset) {
	s.mu.Lock()
	s.selected = asset
	s.mu.Unlock()
}

// Selected returns the current raw selection, which may be nil.
func (s *SelectionStore) Selected() *models.Asset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected
}

// ResolveDefault returns the effective selection against the given snapshot:
// the snapshot's asset matching the selected symbol when it still exists,
// otherwise the best-ranked asset, or nil for an empty snapshot. Consumers
// that require a selection (a detail view, for instance) use this instead of
// showing an empty state.
func (s *SelectionStore) ResolveDefault(snap *models.Snapshot) *models.Asset {
	if snap == nil || len(snap.Assets) == 0 {
		return nil
	}

	s.mu.RLock()
	selected := s.selected
	s.mu.RUnlock()

	if selected != nil {
		if asset := snap.AssetBySymbol(selected.Symbol); asset != nil {
			return asset
		}
	}

	return snap.TopRanked()
}
