// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Genos Contributors

package server

import (
	"context"
	"net/http"
	"time"

	"github.com/genos-dev/genos/internal/events"
	"github.com/genos-dev/genos/internal/orchestrator"
	"github.com/genos-dev/genos/internal/schedule"
	"github.com/genos-dev/genos/internal/store"
	"github.com/genos-dev/genos/internal/tenant"
	genoserr "github.com/genos-dev/genos/pkg/errors"
	"github.com/genos-dev/genos/pkg/health"
)

// Generator produces verified content for one request.
type Generator interface {
	Generate(ctx context.Context, req orchestrator.Request, orgID, userID string) (*orchestrator.Result, error)
}

// Scheduler recommends posting slots for a brand.
type Scheduler interface {
	Optimize(ctx context.Context, brandID, orgID string, dr *schedule.DateRange) (*schedule.Result, error)
}

// Indexer refreshes the retrieval index of a brand.
type Indexer interface {
	IndexBrand(ctx context.Context, orgID, brandID string) error
}

// TenantGate checks that a record belongs to the caller.
type TenantGate interface {
	Validate(ctx context.Context, entityID, table string) (tenant.Outcome, error)
}

// CircuitReporter exposes the breaker states for the health report.
type CircuitReporter interface {
	Snapshot() map[string]health.CircuitState
}

// HealthReporter derives the health verdict from recent metrics.
type HealthReporter interface {
	HealthSnapshot() health.Snapshot
}

// RequestRecorder receives one event per served request.
type RequestRecorder interface {
	TrackRequest(route, method string, status int, d time.Duration)
}

// Services holds dependencies injected into route handlers. Indexer,
// Events, Requests and Metrics are optional.
type Services struct {
	Generator Generator
	Scheduler Scheduler
	Indexer   Indexer
	Tenants   TenantGate
	Audit     store.AuditStore
	Events    events.Emitter
	Circuits  CircuitReporter
	Health    HealthReporter
	Requests  RequestRecorder
	// Metrics serves the Prometheus exposition on /metrics.
	Metrics http.Handler
}

func (s *Services) validate() error {
	if s == nil {
		return genoserr.New(genoserr.CodeServerConfigInvalid, "services are required")
	}
	required := []struct {
		name string
		ok   bool
	}{
		{"generator", s.Generator != nil},
		{"scheduler", s.Scheduler != nil},
		{"tenant validator", s.Tenants != nil},
		{"audit store", s.Audit != nil},
		{"circuit reporter", s.Circuits != nil},
		{"health reporter", s.Health != nil},
	}
	for _, r := range required {
		if !r.ok {
			return genoserr.Errorf(genoserr.CodeServerConfigInvalid, "%s service is required", r.name)
		}
	}
	if s.Events == nil {
		s.Events = events.Nop{}
	}
	return nil
}
