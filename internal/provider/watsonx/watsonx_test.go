// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Genos Contributors

package watsonx_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/genos-dev/genos/internal/provider"
	"github.com/genos-dev/genos/internal/provider/watsonx"
	genoserr "github.com/genos-dev/genos/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ provider.Generator = (*watsonx.Provider)(nil)

type fakeWatsonx struct {
	srv        *httptest.Server
	tokenCalls atomic.Int32
	lastBody   map[string]any
	genStatus  int
	// genDelay stalls the generation endpoint.
	genDelay time.Duration
}

func newFakeWatsonx(t *testing.T) *fakeWatsonx {
	t.Helper()
	f := &fakeWatsonx{genStatus: http.StatusOK}
	mux := http.NewServeMux()
	mux.HandleFunc("/identity/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "urn:ibm:params:oauth:grant-type:apikey", r.PostForm.Get("grant_type"))
		assert.Equal(t, "wx-key", r.PostForm.Get("apikey"))
		f.tokenCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "iam-token", "expires_in": 3600})
	})
	mux.HandleFunc("/ml/v1/text/generation", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2024-05-31", r.URL.Query().Get("version"))
		assert.Equal(t, "Bearer iam-token", r.Header.Get("Authorization"))
		f.lastBody = nil
		_ = json.NewDecoder(r.Body).Decode(&f.lastBody)
		if f.genDelay > 0 {
			select {
			case <-time.After(f.genDelay):
			case <-r.Context().Done():
				return
			}
		}
		if f.genStatus != http.StatusOK {
			w.WriteHeader(f.genStatus)
			_, _ = w.Write([]byte(`{"errors":[{"message":"nope"}]}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[{"generated_text":"  Texto gerado \n","generated_token_count":11,"input_token_count":40,"stop_reason":"eos_token"}]}`))
	})
	mux.HandleFunc("/ml/v1/text/embeddings", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2024-05-31", r.URL.Query().Get("version"))
		assert.Equal(t, "Bearer iam-token", r.Header.Get("Authorization"))
		f.lastBody = nil
		_ = json.NewDecoder(r.Body).Decode(&f.lastBody)
		inputs, _ := f.lastBody["inputs"].([]any)
		results := make([]map[string]any, len(inputs))
		for i := range inputs {
			results[i] = map[string]any{"embedding": []float32{float32(i), 0.5}}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"results": results})
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeWatsonx) provider(t *testing.T, model string) *watsonx.Provider {
	t.Helper()
	p, err := watsonx.New(watsonx.Config{
		APIKey:     "wx-key",
		ProjectID:  "proj-1",
		Model:      model,
		Endpoint:   f.srv.URL,
		IAMURL:     f.srv.URL + "/identity/token",
		HTTPClient: f.srv.Client(),
	})
	require.NoError(t, err)
	return p
}

func TestNew_RequiresCredentials(t *testing.T) {
	tests := []struct {
		name string
		cfg  watsonx.Config
	}{
		{"missing key", watsonx.Config{ProjectID: "p"}},
		{"missing project", watsonx.Config{APIKey: "k"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := watsonx.New(tt.cfg)
			require.Error(t, err)
			assert.True(t, genoserr.HasCode(err, genoserr.CodeProviderRequestInvalid))
		})
	}
}

func TestGenerate_SendsGraniteRequest(t *testing.T) {
	f := newFakeWatsonx(t)
	p := f.provider(t, "")

	resp, err := p.Generate(context.Background(), provider.Request{SystemPrompt: "sys", Prompt: "user"})
	require.NoError(t, err)

	assert.Equal(t, "Texto gerado", resp.Text)
	assert.Equal(t, provider.GraniteInstruct8B, resp.Model)
	assert.Equal(t, 40, resp.InputTokens)
	assert.Equal(t, 11, resp.OutputTokens)

	assert.Equal(t, provider.GraniteInstruct8B, f.lastBody["model_id"])
	assert.Equal(t, "proj-1", f.lastBody["project_id"])
	assert.Equal(t, "<|system|>\nsys\n<|user|>\nuser\n<|assistant|>\n", f.lastBody["input"])

	params := f.lastBody["parameters"].(map[string]any)
	assert.EqualValues(t, 4096, params["max_new_tokens"])
	assert.EqualValues(t, 0.7, params["temperature"])
	assert.EqualValues(t, 0.9, params["top_p"])
	assert.EqualValues(t, 50, params["top_k"])
	assert.EqualValues(t, 1.1, params["repetition_penalty"])
}

func TestGenerate_DenseModelGetsLargerBudget(t *testing.T) {
	f := newFakeWatsonx(t)
	p := f.provider(t, "")

	_, err := p.Generate(context.Background(), provider.Request{Prompt: "blog", Model: provider.GraniteDense128K})
	require.NoError(t, err)

	params := f.lastBody["parameters"].(map[string]any)
	assert.EqualValues(t, 8192, params["max_new_tokens"])
	assert.Equal(t, provider.GraniteDense128K, f.lastBody["model_id"])
}

func TestGenerate_CachesIAMToken(t *testing.T) {
	f := newFakeWatsonx(t)
	p := f.provider(t, "")
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	p.SetNowFunc(func() time.Time { return now })

	for range 3 {
		_, err := p.Generate(context.Background(), provider.Request{Prompt: "x"})
		require.NoError(t, err)
	}
	assert.EqualValues(t, 1, f.tokenCalls.Load())

	// expires_in 3600 minus the 60s skew
	now = now.Add(59 * time.Minute)
	_, err := p.Generate(context.Background(), provider.Request{Prompt: "x"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, f.tokenCalls.Load())
}

func TestGenerate_UpstreamError(t *testing.T) {
	f := newFakeWatsonx(t)
	f.genStatus = http.StatusBadGateway
	p := f.provider(t, "")

	_, err := p.Generate(context.Background(), provider.Request{Prompt: "x"})
	require.Error(t, err)
	assert.True(t, genoserr.HasCode(err, genoserr.CodeProviderUpstreamFailure))
	assert.Contains(t, err.Error(), "502")
}

func TestEmbed(t *testing.T) {
	f := newFakeWatsonx(t)
	p := f.provider(t, "")

	vecs, err := p.Embed(context.Background(), []string{"brand voice", "launch post"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0, 0.5}, {1, 0.5}}, vecs)

	assert.Equal(t, watsonx.DefaultEmbeddingModel, f.lastBody["model_id"])
	assert.Equal(t, "proj-1", f.lastBody["project_id"])
	assert.Equal(t, []any{"brand voice", "launch post"}, f.lastBody["inputs"])
}

func TestEmbed_NoInputs(t *testing.T) {
	f := newFakeWatsonx(t)
	p := f.provider(t, "")

	vecs, err := p.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vecs)
	assert.Zero(t, f.tokenCalls.Load())
}

func TestGenerate_ContextDeadlineIsTimeout(t *testing.T) {
	f := newFakeWatsonx(t)
	f.genDelay = 5 * time.Second
	p := f.provider(t, "")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := p.Generate(ctx, provider.Request{Prompt: "x"})
	require.Error(t, err)
	assert.True(t, genoserr.HasCode(err, genoserr.CodeProviderTimeout))
	assert.Equal(t, 504, genoserr.HTTPStatus(err))
}
