// Package metrics is an optional InfluxDB sink for device telemetry:
// brightness/temperature readings, online transitions, and command
// round-trip latency. It is ambient observability, never a dependency
// of core protocol logic (spec §9).
package metrics

import (
	"context"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/cyncbridge/cyncbridge/internal/config"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultPingTimeout    = 5 * time.Second
	millisecondsPerSecond = 1000

	defaultBatchSize          = 100
	defaultFlushIntervalSecs  = 10
	maxBatchSize              = 100000
	maxFlushIntervalSecondsCap = 3600
)

// Client wraps the InfluxDB v2 client with non-blocking, batched writes.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	cfg      config.InfluxDBConfig

	mu        sync.RWMutex
	connected bool
	onError   func(err error)
	done      chan struct{}
}

// Connect establishes a connection to InfluxDB. Returns ErrDisabled if
// cfg.Enabled is false.
func Connect(ctx context.Context, cfg config.InfluxDBConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	flushIntervalSecs := cfg.FlushInterval / 1000
	if flushIntervalSecs <= 0 {
		flushIntervalSecs = defaultFlushIntervalSecs
	} else if flushIntervalSecs > maxFlushIntervalSecondsCap {
		return nil, fmt.Errorf("flush_interval_ms %d exceeds maximum", cfg.FlushInterval)
	}

	client := influxdb2.NewClientWithOptions(
		cfg.URL,
		cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(uint(defaultBatchSize)).
			SetFlushInterval(uint(flushIntervalSecs)*millisecondsPerSecond),
	)

	pingCtx := ctx
	if pingCtx == nil {
		pingCtx = context.Background()
	}
	pingCtx, cancel := context.WithTimeout(pingCtx, defaultConnectTimeout)
	defer cancel()

	healthy, err := client.Ping(pingCtx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping failed: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}

	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)
	c := &Client{
		client:    client,
		writeAPI:  writeAPI,
		cfg:       cfg,
		connected: true,
		done:      make(chan struct{}),
	}

	go c.handleWriteErrors(writeAPI.Errors())
	return c, nil
}

func (c *Client) handleWriteErrors(errorsCh <-chan error) {
	for {
		select {
		case <-c.done:
			return
		case err, ok := <-errorsCh:
			if !ok {
				return
			}
			c.mu.RLock()
			callback := c.onError
			c.mu.RUnlock()
			if callback != nil {
				callback(err)
			}
		}
	}
}

// Close flushes pending writes and shuts the client down.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()

	c.writeAPI.Flush()
	if c.done != nil {
		close(c.done)
	}
	c.client.Close()
	return nil
}

// HealthCheck actively pings InfluxDB.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	checkCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	healthy, err := c.client.Ping(checkCtx)
	if err != nil {
		return fmt.Errorf("metrics health check failed: %w", err)
	}
	if !healthy {
		return fmt.Errorf("metrics health check failed: server not healthy")
	}
	return nil
}

// IsConnected reports the last-known connection state.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// SetOnError registers a callback for async write errors.
func (c *Client) SetOnError(callback func(err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = callback
}

// Flush blocks until all buffered points are written.
func (c *Client) Flush() {
	if c.writeAPI == nil {
		return
	}
	if !c.IsConnected() {
		return
	}
	c.writeAPI.Flush()
}

// WriteDeviceState records a device's brightness/temperature/online
// reading as a single point.
func (c *Client) WriteDeviceState(deviceID int, brightness, temperature uint8, online bool) {
	if !c.IsConnected() {
		return
	}
	point := write.NewPoint(
		"device_state",
		map[string]string{"device_id": fmt.Sprintf("%d", deviceID)},
		map[string]any{
			"brightness":  float64(brightness),
			"temperature": float64(temperature),
			"online":      online,
		},
		time.Now(),
	)
	c.writeAPI.WritePoint(point)
}

// WriteCommandLatency records the round-trip time between a command
// send and its ack (or timeout).
func (c *Client) WriteCommandLatency(deviceID int, command string, latency time.Duration, acked bool) {
	if !c.IsConnected() {
		return
	}
	point := write.NewPoint(
		"command_latency",
		map[string]string{"device_id": fmt.Sprintf("%d", deviceID), "command": command},
		map[string]any{
			"latency_ms": float64(latency.Milliseconds()),
			"acked":      acked,
		},
		time.Now(),
	)
	c.writeAPI.WritePoint(point)
}
