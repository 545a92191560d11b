package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"odinboard/internal/config"
	"time"

	"github.com/nats-io/nats.go"
	"gitlab.com/nevasik7/alerting/logger"
)

var ErrNotConnected = errors.New("nats connection not ready")

// Fan-out of committed merge results (new-token announces) to websocket
// gateways and other subscribers.
type Client struct {
	nc     *nats.Conn
	log    logger.Logger
	prefix string
}

func New(log logger.Logger, cfg *config.NATSConfig) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("nats config is required")
	}

	url := cfg.URL
	if url == "" {
		return nil, errors.New("nats url is required")
	}

	prefix := cfg.BroadcastPrefix
	if prefix == "" {
		prefix = "odinboard"
	}

	opts := []nats.Option{
		nats.Name("odinboard"),
		nats.Timeout(5 * time.Second),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1), // endless reconnected
		nats.ReconnectWait(2 * time.Second),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &Client{
		nc:     nc,
		log:    log,
		prefix: prefix,
	}, nil
}

// Publish marshals data as JSON and publishes under "<prefix>.<subject>"
func (c *Client) Publish(ctx context.Context, subject string, data interface{}) error {
	if !c.Ready() {
		return ErrNotConnected
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal broadcast payload: %w", err)
	}

	full := c.prefix + "." + subject
	if err = c.nc.Publish(full, payload); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", full, err)
	}

	c.log.Debugf("Published %d bytes to %s", len(payload), full)
	return nil
}

func (c *Client) Health(_ context.Context) error {
	if !c.Ready() {
		return ErrNotConnected
	}
	return nil
}

func (c *Client) Ready() bool {
	if c.nc == nil {
		return false
	}
	return c.nc.Status() == nats.CONNECTED
}

func (c *Client) Close() error {
	if c.nc == nil {
		return nil
	}

	// check not close this conn
	if c.nc.Status() == nats.CLOSED {
		return nil
	}

	if err := c.nc.Drain(); err != nil {
		c.log.Errorf("Failed to drain connection to NATS, error=%v", err)
		c.nc.Close()
		return fmt.Errorf("failed to drain connection to NATS: %w", err)
	}

	c.nc.Close()
	c.log.Infof("NATS connection closed gracefully")
	return nil
}
