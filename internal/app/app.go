package app

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/crypto-pulse/internal/cache"
	"github.com/crypto-pulse/internal/gateway"
	"github.com/crypto-pulse/internal/market"
	"github.com/crypto-pulse/internal/messaging"
	"github.com/crypto-pulse/internal/provider"
	"github.com/crypto-pulse/internal/websocket"
	"github.com/crypto-pulse/pkg/config"
	"github.com/crypto-pulse/pkg/models"
)

// App represents the main application
type App struct {
	cfg    *config.Config
	logger *logrus.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Core components
	providerClient *provider.Client
	gatewayServer  *gateway.Server
	marketClient   *market.Client
	aggregator     *market.Aggregator
	selection      *market.SelectionStore

	// Optional infrastructure
	redisCache *cache.RedisClient
	natsClient *messaging.NATSClient
	wsManager  *websocket.Manager

	unsubscribers []func()
}

// New creates a new application instance
func New(cfg *config.Config, logger *logrus.Logger) *App {
	ctx, cancel := context.WithCancel(context.Background())

	return &App{
		cfg:    cfg,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Initialize initializes all application components
func (a *App) Initialize() error {
	a.initializeCache()
	a.initializeMessaging()

	a.providerClient = provider.NewClient(&a.cfg.Provider, a.logger)

	if a.cfg.WebSocket.Enabled {
		a.wsManager = websocket.NewManager(&a.cfg.WebSocket, a.logger)
	}

	a.gatewayServer = gateway.NewServer(a.cfg, a.logger, a.providerClient, a.wsManager)

	a.marketClient = market.NewClient(a.cfg.Market.GatewayURL, a.cfg.Market.RequestTimeout, a.logger)
	synth := market.NewSynthesizer(a.cfg.Market.ConvertCurrency)
	a.aggregator = market.NewAggregator(a.marketClient, synth, &a.cfg.Market, a.logger)
	a.selection = market.NewSelectionStore()

	a.wireSubscribers()

	return nil
}

// initializeCache connects the optional Redis mirror. Failure is degraded
// to a warning: the mirror is best effort, never required.
func (a *App) initializeCache() {
	if !a.cfg.Redis.Enabled {
		return
	}

	redisCache, err := cache.NewRedisClient(&a.cfg.Redis, a.cfg.GetRedisAddr(), a.logger)
	if err != nil {
		a.logger.WithError(err).Warn("Redis unavailable, snapshot mirror disabled")
		return
	}
	a.redisCache = redisCache
}

// initializeMessaging connects the optional NATS distribution. Best effort.
func (a *App) initializeMessaging() {
	if !a.cfg.NATS.Enabled {
		return
	}

	natsClient, err := messaging.NewNATSClient(&a.cfg.NATS, a.logger)
	if err != nil {
		a.logger.WithError(err).Warn("NATS unavailable, snapshot distribution disabled")
		return
	}
	a.natsClient = natsClient
}

// wireSubscribers attaches the fan-out consumers to the aggregator
func (a *App) wireSubscribers() {
	if a.wsManager != nil {
		a.unsubscribers = append(a.unsubscribers, a.aggregator.Subscribe(a.wsManager.PublishSnapshot))
	}

	if a.redisCache != nil {
		a.unsubscribers = append(a.unsubscribers, a.aggregator.Subscribe(func(snap *models.Snapshot) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := a.redisCache.SetSnapshot(ctx, snap); err != nil {
				a.logger.WithError(err).Warn("Failed to mirror snapshot to Redis")
			}
		}))
	}

	if a.natsClient != nil {
		a.unsubscribers = append(a.unsubscribers, a.aggregator.Subscribe(func(snap *models.Snapshot) {
			if err := a.natsClient.PublishSnapshot(snap); err != nil {
				a.logger.WithError(err).Warn("Failed to publish snapshot to NATS")
			}
		}))
	}
}

// Start starts the application
func (a *App) Start() error {
	// Gateway server first so the aggregator's initial refresh can reach it
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.gatewayServer.Start(); err != nil {
			if err != http.ErrServerClosed {
				a.logger.WithError(err).Error("Gateway server error")
			}
		}
	}()

	if a.wsManager != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.wsManager.Run(a.ctx)
		}()
	}

	if err := a.aggregator.Start(a.ctx); err != nil {
		return fmt.Errorf("failed to start aggregator: %w", err)
	}

	return nil
}

// Aggregator exposes the aggregator to commands
func (a *App) Aggregator() *market.Aggregator {
	return a.aggregator
}

// Selection exposes the selection store to commands
func (a *App) Selection() *market.SelectionStore {
	return a.selection
}

// Stop gracefully stops the application
func (a *App) Stop() error {
	a.logger.Info("Stopping application...")

	// Stop the refresh timer before anything it publishes to
	if a.aggregator != nil {
		if err := a.aggregator.Stop(); err != nil {
			a.logger.WithError(err).Error("Error stopping aggregator")
		}
	}

	for _, unsubscribe := range a.unsubscribers {
		unsubscribe()
	}
	a.unsubscribers = nil

	a.cancel()

	if a.gatewayServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := a.gatewayServer.Stop(ctx); err != nil {
			a.logger.WithError(err).Error("Error stopping gateway server")
		}
		cancel()
	}

	// Wait for goroutines with timeout
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		a.logger.Info("All goroutines stopped")
	case <-time.After(3 * time.Second):
		a.logger.Warn("Timeout waiting for goroutines to finish")
	}

	if err := a.closeConnections(); err != nil {
		a.logger.WithError(err).Error("Error closing connections")
	}

	a.logger.Info("Application stopped successfully")
	return nil
}

// closeConnections closes optional infrastructure connections
func (a *App) closeConnections() error {
	var firstErr error

	if a.redisCache != nil {
		if err := a.redisCache.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if a.natsClient != nil {
		if err := a.natsClient.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
