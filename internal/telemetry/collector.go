package telemetry

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultPollInterval is the pause between two passes over the devices.
const DefaultPollInterval = 100 * time.Millisecond

// Link is the part of a serial link the collector drives. *serial.Link
// implements it.
type Link interface {
	Name() string
	Open() error
	Close() error
	IsOpen() bool
	PollAvailable() ([]byte, error)
}

// CollectorConfig tunes the poll loop. The hooks run on the poll goroutine
// and must not call Start or Stop.
type CollectorConfig struct {
	PollInterval time.Duration
	// OnLines receives the lines completed during one pass.
	OnLines func(lines []string)
	// OnDeviceError is told about every failed open or read.
	OnDeviceError func(device string, err error)
}

// Collector runs the single background poller. Start and Stop are
// serialized, so at most one poll goroutine exists at any time.
type Collector struct {
	state  *State
	agg    *Aggregator
	links  []Link
	cfg    CollectorConfig
	logger *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewCollector wires a collector over links.
func NewCollector(state *State, agg *Aggregator, links []Link, cfg CollectorConfig, logger *zap.Logger) *Collector {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{
		state:  state,
		agg:    agg,
		links:  links,
		cfg:    cfg,
		logger: logger,
	}
}

// Running reports whether the poller is active.
func (c *Collector) Running() bool { return c.state.Running() }

// Start opens every link and launches the poller. It reports false when the
// collector was already running. Links that fail to open are retried on
// every pass.
func (c *Collector) Start() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return false
	}

	c.state.Reset()
	c.agg.Reset()
	for _, l := range c.links {
		if err := l.Open(); err != nil {
			c.deviceError(l.Name(), err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.cancel = cancel
	c.done = done
	c.state.setRunning(true)
	go c.run(ctx, done)

	c.logger.Info("Collector started", zap.Int("devices", len(c.links)))
	return true
}

// Stop cancels the poller, waits for it to exit and closes every link.
// Once Stop returns the collector makes no further changes to State. It
// reports false when the collector was not running.
func (c *Collector) Stop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel == nil {
		return false
	}

	c.cancel()
	<-c.done
	c.cancel = nil
	c.done = nil
	c.state.setRunning(false)

	for _, l := range c.links {
		if err := l.Close(); err != nil {
			c.logger.Warn("Failed to close serial link", zap.String("device", l.Name()), zap.Error(err))
		}
	}
	c.logger.Info("Collector stopped")
	return true
}

func (c *Collector) run(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	timer := time.NewTimer(c.cfg.PollInterval)
	defer timer.Stop()

	failing := make(map[string]bool, len(c.links))
	for {
		var fresh []string
		for _, l := range c.links {
			if ctx.Err() != nil {
				return
			}
			lines, err := c.poll(l)
			fresh = append(fresh, lines...)
			if err != nil {
				// Log on the first failure only; a missing mote would
				// otherwise log every pass.
				if !failing[l.Name()] {
					c.logger.Warn("Serial device unavailable", zap.String("device", l.Name()), zap.Error(err))
				}
				failing[l.Name()] = true
				if c.cfg.OnDeviceError != nil {
					c.cfg.OnDeviceError(l.Name(), err)
				}
				continue
			}
			if failing[l.Name()] {
				c.logger.Info("Serial device recovered", zap.String("device", l.Name()))
				delete(failing, l.Name())
			}
		}
		if len(fresh) > 0 && c.cfg.OnLines != nil {
			c.cfg.OnLines(fresh)
		}

		timer.Reset(c.cfg.PollInterval)
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
	}
}

// poll reads one device. A link that failed earlier is reopened first; a
// read error closes it so the next pass starts clean.
func (c *Collector) poll(l Link) ([]string, error) {
	if !l.IsOpen() {
		if err := l.Open(); err != nil {
			return nil, err
		}
	}
	b, err := l.PollAvailable()
	var lines []string
	if len(b) > 0 {
		lines = c.agg.Feed(l.Name(), b)
	}
	if err != nil {
		_ = l.Close()
		return lines, err
	}
	return lines, nil
}

func (c *Collector) deviceError(device string, err error) {
	// The first poll pass retries the open and logs at warn level.
	c.logger.Debug("Initial open failed", zap.String("device", device), zap.Error(err))
	if c.cfg.OnDeviceError != nil {
		c.cfg.OnDeviceError(device, err)
	}
}
