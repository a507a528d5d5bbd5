// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Genos Contributors

// Package health defines the JSON shapes served by the health endpoint and
// consumed by the CLI. All values are point-in-time snapshots.
package health

import "time"

// Status values reported by a Snapshot.
const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
)

// CircuitState is the externally visible state of one provider breaker.
type CircuitState struct {
	State    string `json:"state"`
	Failures int    `json:"failures"`
}

// ProviderStats is the per-provider slice of the AI aggregate.
type ProviderStats struct {
	Count      int     `json:"count"`
	AvgLatency float64 `json:"avgLatency"`
	Errors     int     `json:"errors"`
}

// AIStats aggregates AI latency, error and token events.
type AIStats struct {
	TotalRequests int                      `json:"totalRequests"`
	AvgLatencyMs  float64                  `json:"avgLatencyMs"`
	P95LatencyMs  float64                  `json:"p95LatencyMs"`
	ErrorRate     float64                  `json:"errorRate"`
	TotalTokens   float64                  `json:"totalTokens"`
	ByProvider    map[string]ProviderStats `json:"byProvider"`
}

// HTTPStats aggregates request events.
type HTTPStats struct {
	TotalRequests int     `json:"totalRequests"`
	AvgLatencyMs  float64 `json:"avgLatencyMs"`
	ErrorRate     float64 `json:"errorRate"`
}

// Aggregate is the windowed view over the metrics buffer.
type Aggregate struct {
	AI   AIStats   `json:"ai"`
	HTTP HTTPStats `json:"http"`
}

// Snapshot is the health verdict derived from the last minute of metrics.
type Snapshot struct {
	Status  string    `json:"status"`
	Uptime  float64   `json:"uptime"`
	Metrics Aggregate `json:"metrics"`
}

// Report is the full body of GET /health.
type Report struct {
	Snapshot
	Circuits  map[string]CircuitState `json:"circuits"`
	Timestamp time.Time               `json:"timestamp"`
	Version   string                  `json:"version"`
}
