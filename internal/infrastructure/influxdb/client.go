package influxdb

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/steamcity/iot-platform/internal/infrastructure/config"
)

const (
	pingTimeout = 10 * time.Second

	defaultBatchSize     = 100
	defaultFlushInterval = 10 * time.Second
)

// Client mirrors measurements into an InfluxDB v2 bucket.
//
// Points are batched by the write API and sent in the background; write
// failures reach the SetOnError callback. Close may be called any number
// of times, and Publish after Close returns ErrNotConnected.
type Client struct {
	client influxdb2.Client
	points api.WriteAPI

	// mu guards closed. Publish and Flush hold the read lock while using
	// the write API so Close never shuts it under them.
	mu     sync.RWMutex
	closed bool

	onError atomic.Pointer[func(error)]

	closeOnce sync.Once
}

// Connect pings the server and opens the write API for cfg.Bucket.
// Returns ErrDisabled when the mirror is switched off.
func Connect(ctx context.Context, cfg config.InfluxDBConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, clientOptions(cfg))

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := ping(pingCtx, client); err != nil {
		client.Close()
		return nil, err
	}

	c := &Client{
		client: client,
		points: client.WriteAPI(cfg.Org, cfg.Bucket),
	}
	go c.reportErrors(c.points.Errors())
	return c, nil
}

// clientOptions maps the mirror's batching settings onto the client options.
func clientOptions(cfg config.InfluxDBConfig) *influxdb2.Options {
	batch := uint(defaultBatchSize)
	if cfg.BatchSize > 0 {
		batch = uint(cfg.BatchSize) // #nosec G115 -- positive
	}
	flush := defaultFlushInterval
	if cfg.FlushInterval > 0 {
		flush = time.Duration(cfg.FlushInterval) * time.Second
	}
	return influxdb2.DefaultOptions().
		SetBatchSize(batch).
		SetFlushInterval(uint(flush.Milliseconds())) // #nosec G115 -- positive
}

func ping(ctx context.Context, client influxdb2.Client) error {
	healthy, err := client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("%w: ping failed: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		return fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}
	return nil
}

// reportErrors forwards asynchronous write failures until the write API
// closes its error channel.
func (c *Client) reportErrors(errs <-chan error) {
	for err := range errs {
		if callback := c.onError.Load(); callback != nil {
			(*callback)(err)
		}
	}
}

// SetOnError sets the callback for asynchronous write failures.
func (c *Client) SetOnError(callback func(err error)) {
	c.onError.Store(&callback)
}

// Closed reports whether Close has been called.
func (c *Client) Closed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// Flush blocks until queued points are sent. No-op after Close.
func (c *Client) Flush() {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed || c.points == nil {
		return
	}
	c.points.Flush()
}

// Close sends queued points and releases the client. Later calls are no-ops.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		// Outside the lock: closing waits for the error reporter to drain.
		c.points.Flush()
		c.client.Close()
	})
	return nil
}
