// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Genos Contributors

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genos-dev/genos/internal/config"
	"github.com/genos-dev/genos/internal/provider"
	"github.com/genos-dev/genos/internal/store"
	"github.com/genos-dev/genos/internal/store/sqlite"
	genoserr "github.com/genos-dev/genos/pkg/errors"
)

const (
	testOrg   = "org-1"
	testUser  = "user-1"
	testBrand = "6f1c1f7e-3b8a-4d57-9a44-2f0a3c9c1b11"
)

// testGatewayConfig returns the default configuration with a temporary
// SQLite database and no providers.
func testGatewayConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Networking.Listen = "127.0.0.1:0"
	cfg.Storage.SQLite.Path = filepath.Join(t.TempDir(), "genos.db")
	cfg.Providers = nil
	return cfg
}

func wireTestGateway(t *testing.T, cfg *config.Config) *Gateway {
	t.Helper()
	gw, err := WireGateway(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = gw.Close() })
	return gw
}

func serve(gw *Gateway, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Org-Id", testOrg)
	req.Header.Set("X-User-Id", testUser)
	w := httptest.NewRecorder()
	gw.Handler().ServeHTTP(w, req)
	return w
}

func TestWireGateway(t *testing.T) {
	gw := wireTestGateway(t, testGatewayConfig(t))

	assert.NotNil(t, gw.Server)
	assert.NotNil(t, gw.Store)
	assert.NotNil(t, gw.AdminStore)
	assert.NotNil(t, gw.Breakers)
	assert.NotNil(t, gw.Metrics)
	assert.Empty(t, gw.Registry.Registered())
}

func TestWireGateway_Health(t *testing.T) {
	gw := wireTestGateway(t, testGatewayConfig(t))

	w := serve(gw, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"version":"dev"`)

	w = serve(gw, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWireGateway_GenerateWithoutProviders(t *testing.T) {
	gw := wireTestGateway(t, testGatewayConfig(t))
	db, ok := gw.Store.(*sqlite.Store)
	require.True(t, ok)
	require.NoError(t, db.UpsertBrand(context.Background(), &store.Brand{ID: testBrand, OrganizationID: testOrg, Name: "Roastery"}))

	w := serve(gw, http.MethodPost, "/api/v1/ai/generate", map[string]any{
		"prompt":       "Announce the autumn menu",
		"content_type": "post",
		"brand_id":     testBrand,
	})

	assert.Equal(t, http.StatusServiceUnavailable, w.Code, w.Body.String())
	assert.Equal(t, "30", w.Header().Get("Retry-After"))
}

func TestWireGateway_GenerateUnknownBrand(t *testing.T) {
	gw := wireTestGateway(t, testGatewayConfig(t))

	w := serve(gw, http.MethodPost, "/api/v1/ai/generate", map[string]any{
		"prompt":       "Announce the autumn menu",
		"content_type": "post",
		"brand_id":     testBrand,
	})
	assert.Equal(t, http.StatusForbidden, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "record not found")
}

func TestWireGateway_HistoryStartsEmpty(t *testing.T) {
	gw := wireTestGateway(t, testGatewayConfig(t))

	w := serve(gw, http.MethodGet, "/api/v1/ai/history", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Data    []json.RawMessage `json:"data"`
		HasMore bool              `json:"hasMore"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotNil(t, body.Data)
	assert.Empty(t, body.Data)
	assert.False(t, body.HasMore)
}

func TestWireGateway_RoutingError(t *testing.T) {
	cfg := testGatewayConfig(t)
	cfg.Routing.ContentTypes = map[string]string{"blog": "nonexistent/model"}

	_, err := WireGateway(context.Background(), cfg)
	require.Error(t, err)
	assert.True(t, genoserr.HasCode(err, genoserr.CodeCLISetupFailure))
}

func TestWireGateway_UnsupportedBackend(t *testing.T) {
	cfg := testGatewayConfig(t)
	cfg.Storage.Backend = "mongo"

	_, err := WireGateway(context.Background(), cfg)
	require.Error(t, err)
}

func TestGateway_GracefulShutdown(t *testing.T) {
	gw := wireTestGateway(t, testGatewayConfig(t))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	assert.NoError(t, gw.Start(ctx))
}

func TestRegisterBuiltinProviders(t *testing.T) {
	orig := builtinProviderFactories
	t.Cleanup(func() { builtinProviderFactories = orig })

	var built []string
	builtinProviderFactories = map[string]providerFactory{}
	for _, name := range provider.Names() {
		builtinProviderFactories[name] = func(_ context.Context, _ config.ProviderConfig) (provider.Generator, error) {
			built = append(built, name)
			return stubGenerator{name: name}, nil
		}
	}

	cfg := &config.Config{Providers: map[string]config.ProviderConfig{
		"openai":    {APIKey: "sk-test"},
		"anthropic": {},
		"bedrock":   {Region: "us-east-1"},
		"mystery":   {APIKey: "x"},
	}}
	reg := provider.NewRegistry()
	registerBuiltinProviders(context.Background(), cfg, reg)

	assert.Equal(t, []string{"bedrock", "openai"}, built)
	assert.Equal(t, []string{"bedrock", "openai"}, reg.Registered())
}

type stubGenerator struct{ name string }

func (s stubGenerator) Name() string { return s.name }
func (s stubGenerator) Generate(context.Context, provider.Request) (*provider.Response, error) {
	return &provider.Response{Text: "ok"}, nil
}
func (s stubGenerator) Close() error { return nil }

type embeddingStub struct{ stubGenerator }

func (embeddingStub) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func TestNewRetriever(t *testing.T) {
	s, err := sqlite.New(filepath.Join(t.TempDir(), "genos.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	enabled := config.RAGConfig{Enabled: true, TopK: 5, Threshold: 0.3, SourceTypes: []string{"brand"}}

	tests := []struct {
		name     string
		cfg      config.RAGConfig
		register provider.Generator
		wantNil  bool
	}{
		{name: "disabled", cfg: config.RAGConfig{}, register: embeddingStub{stubGenerator{name: provider.NameWatsonx}}, wantNil: true},
		{name: "no watsonx", cfg: enabled, register: stubGenerator{name: provider.NameAnthropic}, wantNil: true},
		{name: "watsonx cannot embed", cfg: enabled, register: stubGenerator{name: provider.NameWatsonx}, wantNil: true},
		{name: "enabled", cfg: enabled, register: embeddingStub{stubGenerator{name: provider.NameWatsonx}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := provider.NewRegistry()
			reg.Register(tt.register)

			r, err := newRetriever(tt.cfg, reg, s.Vectors())
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, r)
				return
			}
			require.NotNil(t, r)
		})
	}
}

func TestWireGateway_IndexWithoutRetrieval(t *testing.T) {
	gw := wireTestGateway(t, testGatewayConfig(t))

	w := serve(gw, http.MethodPost, "/api/v1/ai/index", map[string]any{"brand_id": testBrand})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code, w.Body.String())
}
