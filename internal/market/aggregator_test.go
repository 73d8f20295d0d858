package market

import (
	"context"
	"fmt"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/crypto-pulse/pkg/config"
	"github.com/crypto-pulse/pkg/models"
)

type fakeSource struct {
	listings func(ctx context.Context, start, limit int, convert string) (*models.ListingsResponse, error)
	metrics  func(ctx context.Context, convert string) (*models.GlobalMetricsResponse, error)
}

func (f *fakeSource) ListLatest(ctx context.Context, start, limit int, convert string) (*models.ListingsResponse, error) {
	if f.listings == nil {
		return nil, fmt.Errorf("no listings configured")
	}
	return f.listings(ctx, start, limit, convert)
}

func (f *fakeSource) GlobalMetrics(ctx context.Context, convert string) (*models.GlobalMetricsResponse, error) {
	if f.metrics == nil {
		return nil, fmt.Errorf("no metrics configured")
	}
	return f.metrics(ctx, convert)
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func testMarketConfig() *config.MarketConfig {
	return &config.MarketConfig{
		GatewayURL:      "http://localhost:0/api",
		RefreshInterval: time.Hour,
		RequestTimeout:  time.Second,
		ListingLimit:    50,
		ConvertCurrency: "USD",
		FallbackAssets:  10,
	}
}

func liveAssets(n int) []models.Asset {
	assets := make([]models.Asset, n)
	for i := range assets {
		assets[i] = models.Asset{
			ID:      int64(i + 1),
			Name:    fmt.Sprintf("Coin %d", i+1),
			Symbol:  fmt.Sprintf("C%d", i+1),
			CmcRank: i + 1,
			Quote:   map[string]models.Quote{"USD": {Price: float64(i + 1)}},
		}
	}
	return assets
}

func okListings(assets []models.Asset) *models.ListingsResponse {
	return &models.ListingsResponse{
		Status: models.Status{ErrorCode: 0},
		Data:   assets,
	}
}

func okMetrics() *models.GlobalMetricsResponse {
	return &models.GlobalMetricsResponse{
		Status: models.Status{ErrorCode: 0},
		Data: models.GlobalMetricsData{
			ActiveCryptocurrencies: 9000,
			BtcDominance:           52.1,
			EthDominance:           17.3,
			Quote: map[string]models.GlobalQuote{
				"USD": {TotalMarketCap: 1.7e12, TotalVolume24h: 9.8e10},
			},
		},
	}
}

func newTestAggregator(src Source) *Aggregator {
	return NewAggregator(src, NewSynthesizer("USD"), testMarketConfig(), testLogger())
}

func TestRefreshLive(t *testing.T) {
	src := &fakeSource{
		listings: func(ctx context.Context, start, limit int, convert string) (*models.ListingsResponse, error) {
			return okListings(liveAssets(50)), nil
		},
		metrics: func(ctx context.Context, convert string) (*models.GlobalMetricsResponse, error) {
			return okMetrics(), nil
		},
	}

	agg := newTestAggregator(src)
	snap := agg.Refresh(context.Background())

	if snap.SourceMode != models.SourceLive {
		t.Fatalf("source mode = %s, want live", snap.SourceMode)
	}
	if len(snap.Assets) != 50 {
		t.Fatalf("assets = %d, want 50", len(snap.Assets))
	}
	if snap.ErrorMessage != "" {
		t.Errorf("error message = %q, want empty", snap.ErrorMessage)
	}
	if snap.GlobalMetrics == nil {
		t.Fatal("global metrics missing")
	}
	if snap.GlobalMetrics.TotalMarketCap != 1.7e12 {
		t.Errorf("total market cap = %f", snap.GlobalMetrics.TotalMarketCap)
	}
	if snap.GlobalMetrics.BTCDominance != 52.1 {
		t.Errorf("btc dominance = %f", snap.GlobalMetrics.BTCDominance)
	}
}

func TestRefreshFallbackOnTotalFailure(t *testing.T) {
	src := &fakeSource{
		listings: func(ctx context.Context, start, limit int, convert string) (*models.ListingsResponse, error) {
			return nil, fmt.Errorf("connection refused")
		},
		metrics: func(ctx context.Context, convert string) (*models.GlobalMetricsResponse, error) {
			return nil, fmt.Errorf("connection refused")
		},
	}

	agg := newTestAggregator(src)
	snap := agg.Refresh(context.Background())

	if snap.SourceMode != models.SourceFallback {
		t.Fatalf("source mode = %s, want fallback", snap.SourceMode)
	}
	if len(snap.Assets) != 10 {
		t.Fatalf("assets = %d, want 10", len(snap.Assets))
	}
	if snap.ErrorMessage != FallbackNotice {
		t.Errorf("error message = %q, want %q", snap.ErrorMessage, FallbackNotice)
	}
	if snap.GlobalMetrics != nil {
		t.Error("global metrics should be absent when its call fails")
	}
}

func TestRefreshFallbackOnEmbeddedError(t *testing.T) {
	msg := "API key invalid"
	src := &fakeSource{
		listings: func(ctx context.Context, start, limit int, convert string) (*models.ListingsResponse, error) {
			return &models.ListingsResponse{
				Status: models.Status{ErrorCode: 1001, ErrorMessage: &msg},
			}, nil
		},
	}

	agg := newTestAggregator(src)
	snap := agg.Refresh(context.Background())

	if snap.SourceMode != models.SourceFallback {
		t.Fatalf("source mode = %s, want fallback", snap.SourceMode)
	}
	if len(snap.Assets) != 10 {
		t.Fatalf("assets = %d, want 10", len(snap.Assets))
	}
}

func TestMetricsIndependentOfListings(t *testing.T) {
	src := &fakeSource{
		listings: func(ctx context.Context, start, limit int, convert string) (*models.ListingsResponse, error) {
			return nil, fmt.Errorf("listings down")
		},
		metrics: func(ctx context.Context, convert string) (*models.GlobalMetricsResponse, error) {
			return okMetrics(), nil
		},
	}

	agg := newTestAggregator(src)
	snap := agg.Refresh(context.Background())

	if snap.SourceMode != models.SourceFallback {
		t.Fatalf("source mode = %s, want fallback", snap.SourceMode)
	}
	if snap.GlobalMetrics == nil {
		t.Fatal("metrics success must attach even on a fallback snapshot")
	}
}

func TestRefreshNeverPanics(t *testing.T) {
	src := &fakeSource{
		listings: func(ctx context.Context, start, limit int, convert string) (*models.ListingsResponse, error) {
			panic("provider client bug")
		},
	}

	agg := newTestAggregator(src)
	snap := agg.Refresh(context.Background())

	if snap == nil {
		t.Fatal("Refresh returned nil after panic")
	}
	if snap.SourceMode != models.SourceFallback {
		t.Fatalf("source mode = %s, want fallback", snap.SourceMode)
	}
	if len(snap.Assets) != 10 {
		t.Fatalf("assets = %d, want 10", len(snap.Assets))
	}
}

func TestRefreshIdempotentAssets(t *testing.T) {
	assets := liveAssets(5)
	src := &fakeSource{
		listings: func(ctx context.Context, start, limit int, convert string) (*models.ListingsResponse, error) {
			return okListings(assets), nil
		},
	}

	agg := newTestAggregator(src)
	first := agg.Refresh(context.Background())
	second := agg.Refresh(context.Background())

	if !reflect.DeepEqual(first.Assets, second.Assets) {
		t.Error("asset content differs across refreshes with unchanged provider data")
	}
	if second.Generation <= first.Generation {
		t.Errorf("generations not monotonic: %d then %d", first.Generation, second.Generation)
	}
}

func TestStaleCompletionDiscarded(t *testing.T) {
	firstStarted := make(chan struct{})
	releaseFirst := make(chan struct{})
	var calls int32

	src := &fakeSource{
		listings: func(ctx context.Context, start, limit int, convert string) (*models.ListingsResponse, error) {
			if atomic.AddInt32(&calls, 1) == 1 {
				close(firstStarted)
				<-releaseFirst
				return okListings([]models.Asset{{ID: 1, Symbol: "SLOW", Name: "Slow"}}), nil
			}
			return okListings([]models.Asset{{ID: 2, Symbol: "FAST", Name: "Fast"}}), nil
		},
	}

	agg := newTestAggregator(src)

	firstDone := make(chan struct{})
	go func() {
		agg.Refresh(context.Background())
		close(firstDone)
	}()

	<-firstStarted

	// Second refresh starts later but completes first
	agg.Refresh(context.Background())

	// Let the slow first refresh complete out of order
	close(releaseFirst)
	select {
	case <-firstDone:
	case <-time.After(2 * time.Second):
		t.Fatal("slow refresh never completed")
	}

	snap := agg.Snapshot()
	if snap.Assets[0].Symbol != "FAST" {
		t.Fatalf("published asset = %s: a stale completion overwrote a newer snapshot", snap.Assets[0].Symbol)
	}
	if snap.Generation != 2 {
		t.Errorf("published generation = %d, want 2", snap.Generation)
	}
}

func TestSubscribeAndUnsubscribe(t *testing.T) {
	src := &fakeSource{
		listings: func(ctx context.Context, start, limit int, convert string) (*models.ListingsResponse, error) {
			return okListings(liveAssets(3)), nil
		},
	}

	agg := newTestAggregator(src)

	received := make(chan *models.Snapshot, 4)
	unsubscribe := agg.Subscribe(func(snap *models.Snapshot) {
		received <- snap
	})

	agg.Refresh(context.Background())

	select {
	case snap := <-received:
		if snap.SourceMode != models.SourceLive {
			t.Errorf("delivered snapshot mode = %s, want live", snap.SourceMode)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber never notified")
	}

	unsubscribe()
	agg.Refresh(context.Background())

	select {
	case <-received:
		t.Fatal("subscriber notified after unsubscribe")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestBusyFlagCleared(t *testing.T) {
	src := &fakeSource{
		listings: func(ctx context.Context, start, limit int, convert string) (*models.ListingsResponse, error) {
			return okListings(liveAssets(1)), nil
		},
	}

	agg := newTestAggregator(src)
	agg.Refresh(context.Background())

	if agg.Busy() {
		t.Error("Busy() = true after refresh completed")
	}
}

func TestStartStop(t *testing.T) {
	src := &fakeSource{
		listings: func(ctx context.Context, start, limit int, convert string) (*models.ListingsResponse, error) {
			return okListings(liveAssets(2)), nil
		},
	}

	agg := newTestAggregator(src)

	if err := agg.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := agg.Start(context.Background()); err == nil {
		t.Error("second Start should fail while running")
	}

	// The initial refresh runs asynchronously
	deadline := time.After(2 * time.Second)
	for agg.Snapshot() == nil {
		select {
		case <-deadline:
			t.Fatal("initial refresh never published")
		case <-time.After(10 * time.Millisecond):
		}
	}

	if err := agg.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := agg.Stop(); err != nil {
		t.Fatalf("second Stop should be a no-op, got %v", err)
	}
}
