// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Genos Contributors

// Package metrics keeps a bounded in-process buffer of telemetry events and
// derives the aggregate and health views served by the gateway. Events can
// additionally be mirrored to Prometheus through an Exporter.
package metrics

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/genos-dev/genos/pkg/health"
)

// DefaultCapacity is the ring buffer size used when none is configured.
const DefaultCapacity = 1000

// Default aggregation windows.
const (
	DefaultWindow = 5 * time.Minute
	HealthWindow  = time.Minute
)

// Unit of a metric value.
type Unit string

const (
	UnitMs     Unit = "ms"
	UnitCount  Unit = "count"
	UnitTokens Unit = "tokens"
	UnitBytes  Unit = "bytes"
)

// Event names.
const (
	namePrefix      = "genos."
	NameTokens      = "genos.ai.tokens"
	NameHTTPRequest = "genos.http.request"
)

// degradedErrorRate is the AI error rate at which health turns degraded.
const degradedErrorRate = 0.5

// Event is one telemetry sample.
type Event struct {
	Name      string
	Value     float64
	Unit      Unit
	Tags      map[string]string
	Timestamp time.Time
}

// Aggregator is a fixed-capacity ring buffer of events. Once full, each new
// event overwrites the oldest one. It is safe for concurrent use.
type Aggregator struct {
	mu       sync.Mutex
	capacity int
	buf      []Event
	next     int

	exporter  *Exporter
	startedAt time.Time
	nowFunc   func() time.Time
}

// NewAggregator creates an empty aggregator. A non-positive capacity selects
// DefaultCapacity.
func NewAggregator(capacity int) *Aggregator {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Aggregator{
		capacity:  capacity,
		buf:       make([]Event, 0, capacity),
		startedAt: time.Now(),
		nowFunc:   time.Now,
	}
}

// SetNowFunc overrides the time source (for testing). It also resets the
// uptime origin.
func (a *Aggregator) SetNowFunc(fn func() time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nowFunc = fn
	a.startedAt = fn()
}

// SetExporter mirrors every subsequent event to e.
func (a *Aggregator) SetExporter(e *Exporter) {
	a.mu.Lock()
	a.exporter = e
	a.mu.Unlock()
}

// Len returns the number of buffered events.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.buf)
}

func (a *Aggregator) push(name string, value float64, unit Unit, tags map[string]string) {
	a.mu.Lock()
	ev := Event{Name: name, Value: value, Unit: unit, Tags: tags, Timestamp: a.nowFunc()}
	if len(a.buf) < a.capacity {
		a.buf = append(a.buf, ev)
	} else {
		a.buf[a.next%a.capacity] = ev
	}
	a.next++
	exp := a.exporter
	a.mu.Unlock()

	if exp != nil {
		exp.Observe(ev)
	}
}

func copyTags(tags map[string]string, extra ...string) map[string]string {
	out := make(map[string]string, len(tags)+len(extra)/2)
	for i := 0; i+1 < len(extra); i += 2 {
		out[extra[i]] = extra[i+1]
	}
	for k, v := range tags {
		out[k] = v
	}
	return out
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// TrackLatency records the duration of an operation as genos.<op>.latency.
func (a *Aggregator) TrackLatency(operation string, d time.Duration, tags map[string]string) {
	a.push(namePrefix+operation+".latency", millis(d), UnitMs, copyTags(tags))
}

// TrackTokenUsage records tokens consumed by a provider call.
func (a *Aggregator) TrackTokenUsage(provider string, tokens int, tags map[string]string) {
	a.push(NameTokens, float64(tokens), UnitTokens, copyTags(tags, "provider", provider))
}

// TrackError records one failure of an operation as genos.<op>.error.
func (a *Aggregator) TrackError(operation string, tags map[string]string) {
	a.push(namePrefix+operation+".error", 1, UnitCount, copyTags(tags))
}

// TrackRequest records one served HTTP request.
func (a *Aggregator) TrackRequest(route, method string, status int, d time.Duration) {
	a.push(NameHTTPRequest, millis(d), UnitMs, map[string]string{
		"route":  route,
		"method": method,
		"status": strconv.Itoa(status),
	})
}

// recent returns a copy of the events within window of now.
func (a *Aggregator) recent(window time.Duration) []Event {
	a.mu.Lock()
	defer a.mu.Unlock()

	cutoff := a.nowFunc().Add(-window)
	out := make([]Event, 0, len(a.buf))
	for _, ev := range a.buf {
		if !ev.Timestamp.Before(cutoff) {
			out = append(out, ev)
		}
	}
	return out
}

func isAILatency(ev Event) bool {
	return strings.Contains(ev.Name, "ai") && ev.Unit == UnitMs
}

func isAIError(ev Event) bool {
	return strings.Contains(ev.Name, "ai") && strings.Contains(ev.Name, "error")
}

func providerOf(ev Event) string {
	if p, ok := ev.Tags["provider"]; ok {
		return p
	}
	return "unknown"
}

type providerAccum struct {
	count        int
	totalLatency float64
	errors       int
}

// Aggregate summarises the events recorded within the trailing window.
func (a *Aggregator) Aggregate(window time.Duration) health.Aggregate {
	events := a.recent(window)

	var (
		latencies  []float64
		latencySum float64
		aiErrors   int
		tokens     float64
		httpCount  int
		httpSum    float64
		httpErrors int
	)
	byProvider := make(map[string]*providerAccum)
	accum := func(p string) *providerAccum {
		acc, ok := byProvider[p]
		if !ok {
			acc = &providerAccum{}
			byProvider[p] = acc
		}
		return acc
	}

	for _, ev := range events {
		if isAILatency(ev) {
			latencies = append(latencies, ev.Value)
			latencySum += ev.Value
			acc := accum(providerOf(ev))
			acc.count++
			acc.totalLatency += ev.Value
		}
		if isAIError(ev) {
			aiErrors++
			accum(providerOf(ev)).errors++
		}
		if ev.Name == NameTokens {
			tokens += ev.Value
		}
		if ev.Name == NameHTTPRequest {
			httpCount++
			httpSum += ev.Value
			if status, err := strconv.Atoi(ev.Tags["status"]); err == nil && status >= 500 {
				httpErrors++
			}
		}
	}

	out := health.Aggregate{
		AI: health.AIStats{
			TotalRequests: len(latencies),
			TotalTokens:   tokens,
			ByProvider:    make(map[string]health.ProviderStats, len(byProvider)),
		},
		HTTP: health.HTTPStats{TotalRequests: httpCount},
	}

	if n := len(latencies); n > 0 {
		sort.Float64s(latencies)
		out.AI.AvgLatencyMs = math.Round(latencySum / float64(n))
		out.AI.P95LatencyMs = latencies[int(math.Floor(float64(n)*0.95))]
		out.AI.ErrorRate = float64(aiErrors) / float64(n)
	}
	for name, acc := range byProvider {
		ps := health.ProviderStats{Count: acc.count, Errors: acc.errors}
		if acc.count > 0 {
			ps.AvgLatency = math.Round(acc.totalLatency / float64(acc.count))
		}
		out.AI.ByProvider[name] = ps
	}
	if httpCount > 0 {
		out.HTTP.AvgLatencyMs = math.Round(httpSum / float64(httpCount))
		out.HTTP.ErrorRate = float64(httpErrors) / float64(httpCount)
	}
	return out
}

// HealthSnapshot aggregates the last minute and derives the status.
func (a *Aggregator) HealthSnapshot() health.Snapshot {
	agg := a.Aggregate(HealthWindow)

	a.mu.Lock()
	uptime := a.nowFunc().Sub(a.startedAt).Seconds()
	a.mu.Unlock()

	status := health.StatusHealthy
	if agg.AI.ErrorRate >= degradedErrorRate {
		status = health.StatusDegraded
	}
	return health.Snapshot{Status: status, Uptime: uptime, Metrics: agg}
}
