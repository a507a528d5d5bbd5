// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Genos Contributors

package orchestrator_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/genos-dev/genos/internal/guardrail"
	"github.com/genos-dev/genos/internal/orchestrator"
	"github.com/genos-dev/genos/internal/provider"
	"github.com/genos-dev/genos/internal/rag"
	"github.com/genos-dev/genos/internal/store"
	genoserr "github.com/genos-dev/genos/pkg/errors"
	"github.com/genos-dev/genos/pkg/types"
)

const (
	testOrg   = "org-a"
	testUser  = "user-1"
	testBrand = "5b1f3f5e-6c1d-4c4f-9a51-0d6f0f3f3a10"
)

// fakeGenerator returns a fixed response or error and counts calls.
type fakeGenerator struct {
	name string
	text string
	err  error
	// block makes Generate wait for its context.
	block bool

	mu    sync.Mutex
	calls []provider.Request
}

func (g *fakeGenerator) Name() string { return g.name }

func (g *fakeGenerator) Generate(ctx context.Context, req provider.Request) (*provider.Response, error) {
	g.mu.Lock()
	g.calls = append(g.calls, req)
	g.mu.Unlock()

	if g.block {
		<-ctx.Done()
		return nil, provider.UpstreamError(g.name, ctx.Err())
	}
	if g.err != nil {
		return nil, g.err
	}
	return &provider.Response{Text: g.text, Model: g.name + "-model", InputTokens: 12, OutputTokens: 30}, nil
}

func (g *fakeGenerator) Close() error { return nil }

func (g *fakeGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

type fakeBrands struct {
	brands map[string]*store.Brand // org/id
}

func (f *fakeBrands) GetBrand(_ context.Context, orgID, brandID string) (*store.Brand, error) {
	b, ok := f.brands[orgID+"/"+brandID]
	if !ok {
		return nil, genoserr.New(genoserr.CodeStoreEntityNotFound, "brand not found")
	}
	return b, nil
}

type recorded struct {
	kind      string
	operation string
	provider  string
}

type fakeRecorder struct {
	mu     sync.Mutex
	events []recorded
}

func (r *fakeRecorder) add(e recorded) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *fakeRecorder) TrackLatency(op string, _ time.Duration, tags map[string]string) {
	r.add(recorded{kind: "latency", operation: op, provider: tags["provider"]})
}

func (r *fakeRecorder) TrackTokenUsage(p string, _ int, _ map[string]string) {
	r.add(recorded{kind: "tokens", provider: p})
}

func (r *fakeRecorder) TrackError(op string, tags map[string]string) {
	r.add(recorded{kind: "error", operation: op, provider: tags["provider"]})
}

func (r *fakeRecorder) providers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.provider
	}
	return out
}

type harness struct {
	orch     *orchestrator.Orchestrator
	breakers *provider.Breakers
	recorder *fakeRecorder
	gens     map[string]*fakeGenerator
}

func defaultBrand() *store.Brand {
	return &store.Brand{
		ID:             testBrand,
		OrganizationID: testOrg,
		Name:           "Cafe Aurora",
		BrandVoice:     "warm and direct",
		ForbiddenWords: []string{"cheap"},
		TargetLanguage: "en-US",
	}
}

// newHarness registers the given generators and routes every content type
// through them in order.
func newHarness(t *testing.T, timeout time.Duration, gens ...*fakeGenerator) *harness {
	t.Helper()
	return newHarnessWith(t, func(c *orchestrator.Config) { c.ProviderTimeout = timeout }, gens...)
}

// newHarnessWith is newHarness with a hook to adjust the orchestrator
// config before construction.
func newHarnessWith(t *testing.T, configure func(*orchestrator.Config), gens ...*fakeGenerator) *harness {
	t.Helper()

	reg := provider.NewRegistry()
	chain := make([]string, 0, len(gens))
	byName := make(map[string]*fakeGenerator, len(gens))
	for _, g := range gens {
		reg.Register(g)
		chain = append(chain, g.name)
		byName[g.name] = g
	}
	require.NoError(t, reg.SetDefault(chain[0]))
	for _, ct := range types.ContentTypes() {
		require.NoError(t, reg.SetRoute(ct, chain[0]))
	}
	require.NoError(t, reg.SetFailover(chain))

	breakers, err := provider.NewBreakers(provider.DefaultBreakerConfig())
	require.NoError(t, err)

	verifier, err := guardrail.New()
	require.NoError(t, err)

	rec := &fakeRecorder{}
	cfg := orchestrator.Config{
		Registry: reg,
		Breakers: breakers,
		Brands:   &fakeBrands{brands: map[string]*store.Brand{testOrg + "/" + testBrand: defaultBrand()}},
		Verifier: verifier,
		Metrics:  rec,
	}
	configure(&cfg)
	orch, err := orchestrator.New(cfg)
	require.NoError(t, err)
	orch.SetThreadIDFunc(func() string { return "thread-1" })

	return &harness{orch: orch, breakers: breakers, recorder: rec, gens: byName}
}

// fakeRetriever returns a fixed context or error and records prompts.
type fakeRetriever struct {
	ctx *rag.Context
	err error

	mu      sync.Mutex
	prompts []string
	orgs    []string
}

func (f *fakeRetriever) Retrieve(_ context.Context, orgID, prompt string) (*rag.Context, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.orgs = append(f.orgs, orgID)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.ctx, nil
}

func (f *fakeRetriever) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

func postRequest() orchestrator.Request {
	return orchestrator.Request{
		Prompt:      "Announce our new seasonal blend",
		ContentType: types.ContentTypePost,
		Platform:    types.PlatformInstagram,
		BrandID:     testBrand,
	}
}
