package server

import (
	"time"

	"github.com/CK6170/motebridge/internal/telemetry"
)

// APIError is the canonical error envelope returned by JSON endpoints.
type APIError struct {
	Error string `json:"error"`
}

// HealthResponse is returned by /healthz to confirm the server is running.
type HealthResponse struct {
	OK        bool      `json:"ok"`
	Timestamp time.Time `json:"timestamp"`
	Running   bool      `json:"running"`
	Devices   []string  `json:"devices"`
}

// StatsResponse summarizes the rolling series for /graphs-stats.
type StatsResponse struct {
	telemetry.Summary
	Running bool `json:"running"`
}

// DeviceResultDTO is the JSON view of one device's upload outcome.
type DeviceResultDTO struct {
	Device string `json:"device"`
	Code   int    `json:"code"`
	Error  string `json:"error,omitempty"`
}
