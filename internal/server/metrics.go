package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/CK6170/motebridge/internal/telemetry"
	"github.com/CK6170/motebridge/serial"
)

// Metrics holds the bridge's collectors on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	lines        prometheus.Counter
	samples      prometheus.Counter
	deviceErrors *prometheus.CounterVec
	uploads      *prometheus.CounterVec
}

// NewMetrics registers every collector. running backs the collector gauge.
func NewMetrics(running func() bool) *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		lines: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "motebridge_lines_total",
			Help: "Lines received from all motes",
		}),
		samples: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "motebridge_samples_total",
			Help: "Lines that parsed as numeric samples",
		}),
		deviceErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "motebridge_device_errors_total",
				Help: "Failed opens and reads per serial device",
			},
			[]string{"device"},
		),
		uploads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "motebridge_uploads_total",
				Help: "Upload requests by outcome",
			},
			[]string{"result"},
		),
	}
	runningGauge := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "motebridge_collector_running",
		Help: "1 while the serial collector is running",
	}, func() float64 {
		if running != nil && running() {
			return 1
		}
		return 0
	})
	m.Registry.MustRegister(m.lines, m.samples, m.deviceErrors, m.uploads, runningGauge)
	return m
}

// ObserveLines counts completed lines and the samples among them.
func (m *Metrics) ObserveLines(lines []string) {
	m.lines.Add(float64(len(lines)))
	n := 0
	for _, l := range lines {
		if _, err := telemetry.ParseSample(l, time.Time{}); err == nil {
			n++
		}
	}
	m.samples.Add(float64(n))
}

func (m *Metrics) DeviceError(device string) {
	m.deviceErrors.WithLabelValues(device).Inc()
}

func (m *Metrics) Upload(code serial.ResultCode) {
	result := "ok"
	if code != serial.CodeOK {
		result = "failed"
	}
	m.uploads.WithLabelValues(result).Inc()
}
