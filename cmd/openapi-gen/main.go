// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Genos Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/genos-dev/genos/internal/orchestrator"
	"github.com/genos-dev/genos/internal/schedule"
	"github.com/genos-dev/genos/internal/server"
	"github.com/genos-dev/genos/internal/store"
	"github.com/genos-dev/genos/internal/tenant"
	genoserr "github.com/genos-dev/genos/pkg/errors"
	"github.com/genos-dev/genos/pkg/health"
)

func main() {
	spec, err := generateSpec()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	outPath := "api/openapi/spec.json"
	if len(os.Args) > 1 {
		outPath = os.Args[1]
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "error creating output dir: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(outPath, spec, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "error writing spec: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("OpenAPI spec written to %s\n", outPath)
}

// generateSpec creates a server with all routes registered and extracts the
// OpenAPI spec that huma generates from the Go type annotations.
func generateSpec() ([]byte, error) {
	// Handlers are never invoked during spec generation.
	srv, err := server.New(server.Config{ListenAddr: "127.0.0.1:0"}, &server.Services{
		Generator: stubGenerator{},
		Scheduler: stubScheduler{},
		Tenants:   stubTenants{},
		Audit:     stubAudit{},
		Circuits:  stubHealth{},
		Health:    stubHealth{},
	})
	if err != nil {
		return nil, genoserr.Errorf(genoserr.CodeCLISetupFailure, "creating server: %w", err)
	}

	return json.MarshalIndent(srv.API().OpenAPI(), "", "  ")
}

// No-op service stubs for spec generation.

type stubGenerator struct{}

func (stubGenerator) Generate(context.Context, orchestrator.Request, string, string) (*orchestrator.Result, error) {
	return nil, nil
}

type stubScheduler struct{}

func (stubScheduler) Optimize(context.Context, string, string, *schedule.DateRange) (*schedule.Result, error) {
	return nil, nil
}

type stubTenants struct{}

func (stubTenants) Validate(context.Context, string, string) (tenant.Outcome, error) {
	return tenant.Outcome{}, nil
}

type stubAudit struct{}

func (stubAudit) Append(context.Context, *store.AuditEntry) error { return nil }
func (stubAudit) Query(context.Context, store.AuditFilter) ([]*store.AuditEntry, error) {
	return nil, nil
}

type stubHealth struct{}

func (stubHealth) Snapshot() map[string]health.CircuitState { return nil }
func (stubHealth) HealthSnapshot() health.Snapshot          { return health.Snapshot{} }
