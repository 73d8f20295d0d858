package messaging

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/crypto-pulse/pkg/config"
	"github.com/crypto-pulse/pkg/models"
)

// NATSClient publishes snapshots for out-of-process consumers. Best effort:
// a publish failure is logged, never surfaced to the aggregator.
type NATSClient struct {
	conn   *nats.Conn
	js     nats.JetStreamContext
	logger *logrus.Entry
	cfg    *config.NATSConfig
}

// NewNATSClient creates a new NATS client
func NewNATSClient(cfg *config.NATSConfig, logger *logrus.Logger) (*NATSClient, error) {
	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnect),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.WithError(err).Warn("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected")
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info("NATS connection closed")
		}),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	nc := &NATSClient{
		conn:   conn,
		js:     js,
		logger: logger.WithField("component", "nats"),
		cfg:    cfg,
	}

	if err := nc.initializeStreams(); err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to initialize streams: %w", err)
	}

	return nc, nil
}

// Close closes the NATS connection
func (nc *NATSClient) Close() error {
	nc.conn.Close()
	return nil
}

// IsConnected checks if NATS is connected
func (nc *NATSClient) IsConnected() bool {
	return nc.conn.IsConnected()
}

// initializeStreams creates the snapshot stream
func (nc *NATSClient) initializeStreams() error {
	_, err := nc.js.AddStream(&nats.StreamConfig{
		Name:     "MARKET",
		Subjects: []string{"market.>"},
		Storage:  nats.MemoryStorage,
		MaxAge:   time.Hour,
		MaxMsgs:  1000,
		Replicas: 1,
	})
	if err != nil && err != nats.ErrStreamNameAlreadyInUse {
		return fmt.Errorf("failed to create MARKET stream: %w", err)
	}

	return nil
}

// PublishSnapshot publishes a snapshot on market.snapshot.<mode>
func (nc *NATSClient) PublishSnapshot(snap *models.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	subject := fmt.Sprintf("market.snapshot.%s", snap.SourceMode)
	if _, err := nc.js.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish snapshot: %w", err)
	}

	return nil
}

// SubscribeSnapshots delivers every published snapshot to the handler.
func (nc *NATSClient) SubscribeSnapshots(fn func(*models.Snapshot)) (*nats.Subscription, error) {
	return nc.conn.Subscribe("market.snapshot.*", func(msg *nats.Msg) {
		var snap models.Snapshot
		if err := json.Unmarshal(msg.Data, &snap); err != nil {
			nc.logger.WithError(err).Warn("Failed to unmarshal snapshot message")
			return
		}
		fn(&snap)
	})
}
