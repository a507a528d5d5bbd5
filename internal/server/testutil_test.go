// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Genos Contributors

package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/genos-dev/genos/internal/events"
	"github.com/genos-dev/genos/internal/metrics"
	"github.com/genos-dev/genos/internal/orchestrator"
	"github.com/genos-dev/genos/internal/provider"
	"github.com/genos-dev/genos/internal/schedule"
	"github.com/genos-dev/genos/internal/server"
	"github.com/genos-dev/genos/internal/store"
	"github.com/genos-dev/genos/internal/tenant"
	genoserr "github.com/genos-dev/genos/pkg/errors"
)

const (
	orgA   = "org-a"
	orgB   = "org-b"
	userA  = "user-1"
	brandA = "6f1c1f7e-3b8a-4d57-9a44-2f0a3c9c1b11"
	brandB = "9d0e2a44-7c61-4c1e-8f7e-5a4b3c2d1e0f"
)

type fakeGenerator struct {
	mu      sync.Mutex
	res     *orchestrator.Result
	err     error
	calls   int
	gotReq  orchestrator.Request
	gotOrg  string
	gotUser string
}

func (f *fakeGenerator) Generate(_ context.Context, req orchestrator.Request, orgID, userID string) (*orchestrator.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.gotReq, f.gotOrg, f.gotUser = req, orgID, userID
	if f.err != nil {
		return nil, f.err
	}
	return f.res, nil
}

type fakeScheduler struct {
	mu       sync.Mutex
	res      *schedule.Result
	err      error
	calls    int
	gotBrand string
	gotOrg   string
	gotRange *schedule.DateRange
}

func (f *fakeScheduler) Optimize(_ context.Context, brandID, orgID string, dr *schedule.DateRange) (*schedule.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.gotBrand, f.gotOrg, f.gotRange = brandID, orgID, dr
	if f.err != nil {
		return nil, f.err
	}
	return f.res, nil
}

type fakeIndexer struct {
	mu       sync.Mutex
	err      error
	gotOrg   string
	gotBrand string
	calls    int
}

func (f *fakeIndexer) IndexBrand(_ context.Context, orgID, brandID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.gotOrg, f.gotBrand = orgID, brandID
	return f.err
}

// fakeOwnership maps entity id to owning organization.
type fakeOwnership map[string]string

func (f fakeOwnership) OwnerOrg(_ context.Context, table, entityID string) (string, error) {
	org, ok := f[entityID]
	if !ok {
		return "", genoserr.New(genoserr.CodeStoreEntityNotFound, "entity not found", genoserr.FieldTable(table))
	}
	return org, nil
}

type fakeAudit struct {
	mu        sync.Mutex
	entries   []*store.AuditEntry
	rows      []*store.AuditEntry
	gotFilter store.AuditFilter
	appendErr error
	queryErr  error
}

func (f *fakeAudit) Append(_ context.Context, entry *store.AuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeAudit) Query(_ context.Context, filter store.AuditFilter) ([]*store.AuditEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotFilter = filter
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.rows, nil
}

func (f *fakeAudit) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e.Action)
	}
	return out
}

type recordingEmitter struct {
	mu  sync.Mutex
	got []events.Event
}

func (r *recordingEmitter) Emit(_ context.Context, e events.Event) {
	r.mu.Lock()
	r.got = append(r.got, e)
	r.mu.Unlock()
}

func (r *recordingEmitter) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.got))
	for _, e := range r.got {
		out = append(out, e.Type)
	}
	return out
}

type harness struct {
	srv      *server.Server
	gen      *fakeGenerator
	sched    *fakeScheduler
	indexer  *fakeIndexer
	audit    *fakeAudit
	emitter  *recordingEmitter
	breakers *provider.Breakers
	agg      *metrics.Aggregator
}

func newHarness(t *testing.T, mutate ...func(*server.Config)) *harness {
	t.Helper()

	h := &harness{
		gen:     &fakeGenerator{},
		sched:   &fakeScheduler{},
		indexer: &fakeIndexer{},
		audit:   &fakeAudit{},
		emitter: &recordingEmitter{},
		agg:     metrics.NewAggregator(100),
	}

	breakers, err := provider.NewBreakers(provider.DefaultBreakerConfig())
	require.NoError(t, err)
	h.breakers = breakers

	exporter := metrics.NewExporter()
	h.agg.SetExporter(exporter)

	cfg := server.Config{ListenAddr: "127.0.0.1:0", Version: "test"}
	for _, fn := range mutate {
		fn(&cfg)
	}

	srv, err := server.New(cfg, &server.Services{
		Generator: h.gen,
		Scheduler: h.sched,
		Indexer:   h.indexer,
		Tenants:   tenant.NewValidator(nil, fakeOwnership{brandA: orgA, brandB: orgB}, h.audit, h.emitter),
		Audit:     h.audit,
		Events:    h.emitter,
		Circuits:  h.breakers,
		Health:    h.agg,
		Requests:  h.agg,
		Metrics:   exporter.Handler(),
	})
	require.NoError(t, err)
	h.srv = srv
	return h
}

// do serves one request. A nil headers map sends the orgA/userA identity.
func (h *harness) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader = http.NoBody
	if body != nil {
		reader = jsonBody(t, body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if headers == nil {
		headers = map[string]string{"X-Org-Id": orgA, "X-User-Id": userA}
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(w, req)
	return w
}

func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(v))
	return &buf
}

// validServices returns a complete set of inert dependencies.
func validServices() *server.Services {
	agg := metrics.NewAggregator(10)
	breakers, _ := provider.NewBreakers(provider.DefaultBreakerConfig())
	audit := &fakeAudit{}
	return &server.Services{
		Generator: &fakeGenerator{},
		Scheduler: &fakeScheduler{},
		Tenants:   tenant.NewValidator(nil, fakeOwnership{}, audit, nil),
		Audit:     audit,
		Circuits:  breakers,
		Health:    agg,
	}
}

// noIdentity sends a request without identity headers.
var noIdentity = map[string]string{}

// problem is the error body huma writes.
type problem struct {
	Status int    `json:"status"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), "body: %s", w.Body.String())
	return v
}

func generateBody(overrides map[string]any) map[string]any {
	body := map[string]any{
		"prompt":       "Write a launch post for our new espresso blend",
		"content_type": "post",
		"platform":     "instagram",
		"brand_id":     brandA,
	}
	for k, v := range overrides {
		if v == nil {
			delete(body, k)
			continue
		}
		body[k] = v
	}
	return body
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	require.Equal(t, want, w.Code, "body: %s", w.Body.String())
}
