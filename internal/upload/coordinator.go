// Package upload flashes motes. It takes the serial links away from the
// collector, writes to each selected device in turn and folds the
// per-device codes into one result.
package upload

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/CK6170/motebridge/serial"
)

// ErrUnknownDevice is reported for a selected device that is not attached.
var ErrUnknownDevice = errors.New("unknown device")

// Stopper stops the collector and waits until it no longer touches the links.
type Stopper interface {
	Stop() bool
}

// ImageWriter is the write side of a serial link. *serial.Link implements it.
type ImageWriter interface {
	Name() string
	WriteImage(ctx context.Context, image []byte) (serial.ResultCode, error)
}

// DeviceResult is the outcome for one device.
type DeviceResult struct {
	Device string
	Code   serial.ResultCode
	Err    error
}

// Overall folds per-device results: zero only when every device succeeded,
// otherwise the first nonzero code in device order.
func Overall(results []DeviceResult) serial.ResultCode {
	for _, r := range results {
		if r.Code != serial.CodeOK {
			return r.Code
		}
	}
	return serial.CodeOK
}

// Coordinator serializes uploads against the collector. It never restarts
// the collector; resuming collection is a separate client action.
type Coordinator struct {
	collector Stopper
	links     map[string]ImageWriter
	order     []string
	builder   Builder
	workRoot  string
	mosRoot   string
	logger    *zap.Logger

	mu sync.Mutex
}

// Config holds the optional pieces used for source uploads.
type Config struct {
	Builder  Builder
	WorkRoot string
	MosRoot  string
}

// NewCoordinator builds a coordinator over links; their order is the order
// devices are flashed in.
func NewCoordinator(collector Stopper, links []ImageWriter, cfg Config, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Coordinator{
		collector: collector,
		links:     make(map[string]ImageWriter, len(links)),
		order:     make([]string, 0, len(links)),
		builder:   cfg.Builder,
		workRoot:  cfg.WorkRoot,
		mosRoot:   cfg.MosRoot,
		logger:    logger,
	}
	for _, l := range links {
		c.links[l.Name()] = l
		c.order = append(c.order, l.Name())
	}
	return c
}

// ordered returns the selected devices in configured order, followed by any
// selected names that are not attached.
func (c *Coordinator) ordered(devices []string) []string {
	want := make(map[string]bool, len(devices))
	for _, d := range devices {
		want[d] = true
	}
	out := make([]string, 0, len(devices))
	for _, name := range c.order {
		if want[name] {
			out = append(out, name)
			delete(want, name)
		}
	}
	for _, d := range devices {
		if want[d] {
			out = append(out, d)
			delete(want, d)
		}
	}
	return out
}

// Upload stops the collector and writes image to every selected device.
// A failing device does not stop the remaining ones.
func (c *Coordinator) Upload(ctx context.Context, image []byte, devices []string) (serial.ResultCode, []DeviceResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.collector.Stop()
	return c.each(devices, func(name string, l ImageWriter) (serial.ResultCode, error) {
		return l.WriteImage(ctx, image)
	})
}

func (c *Coordinator) each(devices []string, fn func(name string, l ImageWriter) (serial.ResultCode, error)) (serial.ResultCode, []DeviceResult) {
	results := make([]DeviceResult, 0, len(devices))
	for _, name := range c.ordered(devices) {
		l, ok := c.links[name]
		if !ok {
			results = append(results, DeviceResult{
				Device: name,
				Code:   serial.CodeIOError,
				Err:    fmt.Errorf("%s: %w", name, ErrUnknownDevice),
			})
			continue
		}
		code, err := fn(name, l)
		if err != nil && code == serial.CodeOK {
			code = serial.CodeIOError
		}
		if code != serial.CodeOK {
			c.logger.Warn("Upload failed",
				zap.String("device", name),
				zap.Int("code", int(code)),
				zap.Error(err))
		} else {
			c.logger.Info("Upload succeeded", zap.String("device", name))
		}
		results = append(results, DeviceResult{Device: name, Code: code, Err: err})
	}
	return Overall(results), results
}
