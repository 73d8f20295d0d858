package market

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/crypto-pulse/pkg/config"
	"github.com/crypto-pulse/pkg/models"
)

// FallbackNotice is the user-facing message attached to fallback snapshots.
const FallbackNotice = "Using demo data - backend server may not be running"

// SnapshotHandler is invoked once per published snapshot. Handlers run on
// their own goroutines and must treat the snapshot as read-only.
type SnapshotHandler func(*models.Snapshot)

// Aggregator owns the authoritative market-data snapshot. It orchestrates
// gateway calls, decides live-vs-fallback, runs the periodic refresh loop
// and fans published snapshots out to subscribers. It is the only writer.
type Aggregator struct {
	source Source
	synth  *Synthesizer
	cfg    *config.MarketConfig
	logger *logrus.Entry

	// Snapshot cell. publishedGen is the start generation of the snapshot
	// currently in effect; completions with a lower start generation are
	// discarded rather than allowed to overwrite newer data.
	mu           sync.RWMutex
	snapshot     *models.Snapshot
	publishedGen uint64

	nextGen  atomic.Uint64
	inflight atomic.Int64

	subsMu    sync.RWMutex
	subs      map[int]SnapshotHandler
	nextSubID int

	running atomic.Bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewAggregator creates a new aggregator
func NewAggregator(source Source, synth *Synthesizer, cfg *config.MarketConfig, logger *logrus.Logger) *Aggregator {
	return &Aggregator{
		source: source,
		synth:  synth,
		cfg:    cfg,
		logger: logger.WithField("component", "aggregator"),
		subs:   make(map[int]SnapshotHandler),
		done:   make(chan struct{}),
	}
}

// Snapshot returns the snapshot currently in effect, or nil before the
// first refresh completes.
func (a *Aggregator) Snapshot() *models.Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.snapshot
}

// Busy reports whether any refresh is in flight.
func (a *Aggregator) Busy() bool {
	return a.inflight.Load() > 0
}

// Subscribe registers a handler for published snapshots and returns its
// unsubscribe function.
func (a *Aggregator) Subscribe(fn SnapshotHandler) func() {
	a.subsMu.Lock()
	id := a.nextSubID
	a.nextSubID++
	a.subs[id] = fn
	a.subsMu.Unlock()

	return func() {
		a.subsMu.Lock()
		delete(a.subs, id)
		a.subsMu.Unlock()
	}
}

// Refresh runs one aggregation pass and returns the snapshot in effect
// afterwards. It never fails: any provider or local failure degrades to a
// fallback snapshot instead of an error.
func (a *Aggregator) Refresh(ctx context.Context) *models.Snapshot {
	gen := a.nextGen.Add(1)

	a.inflight.Add(1)
	defer a.inflight.Add(-1)

	snap := a.buildSnapshot(ctx, gen)
	a.publish(snap)

	return a.Snapshot()
}

// buildSnapshot performs the two independent gateway calls and assembles a
// fully-formed snapshot. A panic anywhere below degrades to fallback.
func (a *Aggregator) buildSnapshot(ctx context.Context, gen uint64) (snap *models.Snapshot) {
	defer func() {
		if rec := recover(); rec != nil {
			a.logger.WithField("panic", fmt.Sprintf("%v", rec)).Error("Refresh panicked, degrading to fallback data")
			snap = a.fallbackSnapshot(gen)
		}
	}()

	snap = &models.Snapshot{
		FetchedAt:  time.Now().UTC(),
		Generation: gen,
	}

	listings, err := a.source.ListLatest(ctx, DefaultStart, a.cfg.ListingLimit, a.cfg.ConvertCurrency)
	switch {
	case err != nil:
		a.logger.WithError(err).Warn("Live data unavailable, using fallback data")
		snap.SourceMode = models.SourceFallback
		snap.Assets = a.synth.Synthesize(a.cfg.FallbackAssets)
		snap.ErrorMessage = FallbackNotice
	case !listings.Status.OK():
		a.logger.WithFields(logrus.Fields{
			"error_code":    listings.Status.ErrorCode,
			"error_message": listings.Status.Message(),
		}).Warn("Provider reported an error, using fallback data")
		snap.SourceMode = models.SourceFallback
		snap.Assets = a.synth.Synthesize(a.cfg.FallbackAssets)
		snap.ErrorMessage = FallbackNotice
	default:
		snap.SourceMode = models.SourceLive
		snap.Assets = listings.Data
	}

	// Metrics are best effort and independent of the asset list: a failure
	// here is silent and never invalidates the snapshot.
	metrics, err := a.source.GlobalMetrics(ctx, a.cfg.ConvertCurrency)
	if err != nil {
		a.logger.WithError(err).Debug("Global metrics unavailable")
	} else {
		snap.GlobalMetrics = metrics.Data.Flatten(a.cfg.ConvertCurrency)
	}

	return snap
}

// fallbackSnapshot builds a pure synthesized snapshot
func (a *Aggregator) fallbackSnapshot(gen uint64) *models.Snapshot {
	return &models.Snapshot{
		Assets:       a.synth.Synthesize(a.cfg.FallbackAssets),
		SourceMode:   models.SourceFallback,
		FetchedAt:    time.Now().UTC(),
		ErrorMessage: FallbackNotice,
		Generation:   gen,
	}
}

// publish atomically replaces the snapshot and notifies subscribers. A
// completion whose start generation is below the published one lost the
// race to a refresh that started later and is discarded.
func (a *Aggregator) publish(snap *models.Snapshot) {
	a.mu.Lock()
	if a.snapshot != nil && snap.Generation <= a.publishedGen {
		a.mu.Unlock()
		a.logger.WithFields(logrus.Fields{
			"generation": snap.Generation,
			"published":  a.publishedGen,
		}).Debug("Discarding stale refresh completion")
		return
	}
	a.snapshot = snap
	a.publishedGen = snap.Generation
	a.mu.Unlock()

	a.logger.WithFields(logrus.Fields{
		"source_mode": snap.SourceMode,
		"assets":      len(snap.Assets),
		"generation":  snap.Generation,
	}).Info("Published snapshot")

	a.subsMu.RLock()
	handlers := make([]SnapshotHandler, 0, len(a.subs))
	for _, fn := range a.subs {
		handlers = append(handlers, fn)
	}
	a.subsMu.RUnlock()

	// Subscribers must never block publication
	for _, fn := range handlers {
		go fn(snap)
	}
}

// Start runs an immediate refresh and then the periodic refresh loop.
func (a *Aggregator) Start(ctx context.Context) error {
	if !a.running.CompareAndSwap(false, true) {
		return fmt.Errorf("aggregator already running")
	}

	a.logger.WithField("interval", a.cfg.RefreshInterval).Info("Starting aggregator")

	a.wg.Add(1)
	go a.refreshLoop(ctx)

	return nil
}

// Stop cancels the periodic refresh loop and waits for it to exit.
func (a *Aggregator) Stop() error {
	if !a.running.CompareAndSwap(true, false) {
		return nil
	}

	close(a.done)
	a.wg.Wait()

	a.logger.Info("Aggregator stopped")
	return nil
}

// refreshLoop is the periodic timer: its ticks are equivalent to manual
// Refresh calls.
func (a *Aggregator) refreshLoop(ctx context.Context) {
	defer a.wg.Done()

	a.Refresh(ctx)

	ticker := time.NewTicker(a.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-a.done:
			return
		case <-ticker.C:
			a.Refresh(ctx)
		}
	}
}
