// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Genos Contributors

// Package watsonx generates text with IBM Granite models served by
// watsonx.ai. Authentication uses an IBM Cloud IAM bearer token exchanged
// from the API key and cached until shortly before it expires.
package watsonx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/genos-dev/genos/internal/provider"
	genoserr "github.com/genos-dev/genos/pkg/errors"
)

const (
	DefaultEndpoint = "https://us-south.ml.cloud.ibm.com"
	DefaultIAMURL   = "https://iam.cloud.ibm.com/identity/token"
	DefaultModel    = provider.GraniteInstruct8B

	// DefaultEmbeddingModel produces 768-dimension vectors.
	DefaultEmbeddingModel = "ibm/granite-embedding-125m-english"

	apiVersion = "2024-05-31"

	// tokenSkew is subtracted from the IAM token lifetime.
	tokenSkew = 60 * time.Second

	maxErrorBody = 4 << 10
)

// Config holds watsonx provider configuration.
type Config struct {
	APIKey    string
	ProjectID string
	Model     string
	// EmbeddingModel defaults to DefaultEmbeddingModel.
	EmbeddingModel string
	Endpoint       string
	IAMURL         string
	// HTTPClient defaults to a client without its own timeout; calls are
	// bounded by the context deadline so expiry is reported as a timeout.
	HTTPClient *http.Client
}

// Provider implements provider.Generator against the watsonx.ai text
// generation endpoint.
type Provider struct {
	cfg    Config
	client *http.Client

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
	nowFunc     func() time.Time
}

// New creates a watsonx provider. The API key and project id are required.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, provider.MissingKeyError(provider.NameWatsonx)
	}
	if cfg.ProjectID == "" {
		return nil, genoserr.New(genoserr.CodeProviderRequestInvalid,
			"watsonx: missing project_id in config", genoserr.FieldProvider(provider.NameWatsonx))
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = DefaultEmbeddingModel
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.IAMURL == "" {
		cfg.IAMURL = DefaultIAMURL
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	return &Provider{cfg: cfg, client: client, nowFunc: time.Now}, nil
}

func (p *Provider) Name() string { return provider.NameWatsonx }

func (p *Provider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

type generationParameters struct {
	MaxNewTokens      int      `json:"max_new_tokens"`
	Temperature       float64  `json:"temperature"`
	TopP              float64  `json:"top_p"`
	TopK              int      `json:"top_k"`
	RepetitionPenalty float64  `json:"repetition_penalty"`
	StopSequences     []string `json:"stop_sequences"`
}

type generationRequest struct {
	ModelID    string               `json:"model_id"`
	Input      string               `json:"input"`
	Parameters generationParameters `json:"parameters"`
	ProjectID  string               `json:"project_id"`
}

type generationResponse struct {
	Results []struct {
		GeneratedText       string `json:"generated_text"`
		GeneratedTokenCount int    `json:"generated_token_count"`
		InputTokenCount     int    `json:"input_token_count"`
		StopReason          string `json:"stop_reason"`
	} `json:"results"`
}

func (p *Provider) Generate(ctx context.Context, req provider.Request) (*provider.Response, error) {
	token, err := p.iamToken(ctx)
	if err != nil {
		return nil, err
	}

	model := p.cfg.Model
	if req.Model != "" {
		model = req.Model
	}

	body, err := json.Marshal(generationRequest{
		ModelID:    model,
		Input:      FormatPrompt(req.SystemPrompt, req.Prompt),
		Parameters: parametersFor(model, req.MaxTokens),
		ProjectID:  p.cfg.ProjectID,
	})
	if err != nil {
		return nil, genoserr.Wrapf(err, genoserr.CodeProviderRequestInvalid, "watsonx: encoding request")
	}

	endpoint := strings.TrimRight(p.cfg.Endpoint, "/") + "/ml/v1/text/generation?version=" + apiVersion
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, genoserr.Wrapf(err, genoserr.CodeProviderRequestInvalid, "watsonx: building request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, provider.UpstreamError(provider.NameWatsonx, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("generation", resp)
	}

	var out generationResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, genoserr.Wrap(err, genoserr.CodeProviderResponseInvalid,
			"watsonx: decoding generation response", genoserr.FieldProvider(provider.NameWatsonx))
	}
	if len(out.Results) == 0 {
		return nil, genoserr.New(genoserr.CodeProviderResponseInvalid,
			"watsonx: response has no results", genoserr.FieldProvider(provider.NameWatsonx))
	}

	result := out.Results[0]
	return &provider.Response{
		Text:         strings.TrimSpace(result.GeneratedText),
		Model:        model,
		InputTokens:  result.InputTokenCount,
		OutputTokens: result.GeneratedTokenCount,
	}, nil
}

type embeddingRequest struct {
	ModelID   string   `json:"model_id"`
	Inputs    []string `json:"inputs"`
	ProjectID string   `json:"project_id"`
}

type embeddingResponse struct {
	Results []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"results"`
}

// Embed returns one vector per text, in input order.
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	token, err := p.iamToken(ctx)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(embeddingRequest{
		ModelID:   p.cfg.EmbeddingModel,
		Inputs:    texts,
		ProjectID: p.cfg.ProjectID,
	})
	if err != nil {
		return nil, genoserr.Wrapf(err, genoserr.CodeProviderRequestInvalid, "watsonx: encoding embedding request")
	}

	endpoint := strings.TrimRight(p.cfg.Endpoint, "/") + "/ml/v1/text/embeddings?version=" + apiVersion
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, genoserr.Wrapf(err, genoserr.CodeProviderRequestInvalid, "watsonx: building embedding request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, provider.UpstreamError(provider.NameWatsonx, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("embeddings", resp)
	}

	var out embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, genoserr.Wrap(err, genoserr.CodeProviderResponseInvalid,
			"watsonx: decoding embedding response", genoserr.FieldProvider(provider.NameWatsonx))
	}
	if len(out.Results) != len(texts) {
		return nil, genoserr.New(genoserr.CodeProviderResponseInvalid,
			fmt.Sprintf("watsonx: got %d embeddings for %d inputs", len(out.Results), len(texts)),
			genoserr.FieldProvider(provider.NameWatsonx))
	}

	vectors := make([][]float32, len(out.Results))
	for i, r := range out.Results {
		vectors[i] = r.Embedding
	}
	return vectors, nil
}

// FormatPrompt renders the Granite chat template.
func FormatPrompt(system, user string) string {
	return "<|system|>\n" + system + "\n<|user|>\n" + user + "\n<|assistant|>\n"
}

func parametersFor(model string, maxTokens int) generationParameters {
	if maxTokens <= 0 {
		maxTokens = 4096
		if model == provider.GraniteDense128K {
			maxTokens = 8192
		}
	}
	return generationParameters{
		MaxNewTokens:      maxTokens,
		Temperature:       0.7,
		TopP:              0.9,
		TopK:              50,
		RepetitionPenalty: 1.1,
		StopSequences:     []string{"<|endoftext|>", "<|user|>"},
	}
}

type iamResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// iamToken returns the cached bearer token or exchanges the API key for a
// new one.
func (p *Provider) iamToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token != "" && p.nowFunc().Before(p.tokenExpiry) {
		return p.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "urn:ibm:params:oauth:grant-type:apikey")
	form.Set("apikey", p.cfg.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.IAMURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", genoserr.Wrapf(err, genoserr.CodeProviderRequestInvalid, "watsonx: building IAM request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", provider.UpstreamError(provider.NameWatsonx, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", statusError("IAM token exchange", resp)
	}

	var tok iamResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil || tok.AccessToken == "" {
		return "", genoserr.New(genoserr.CodeProviderResponseInvalid,
			"watsonx: invalid IAM token response", genoserr.FieldProvider(provider.NameWatsonx))
	}

	p.token = tok.AccessToken
	p.tokenExpiry = p.nowFunc().Add(time.Duration(tok.ExpiresIn)*time.Second - tokenSkew)
	return p.token, nil
}

func statusError(op string, resp *http.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	code := genoserr.CodeProviderUpstreamFailure
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		code = genoserr.CodeProviderKeyInvalid
	}
	return genoserr.New(code,
		fmt.Sprintf("watsonx: %s failed: %d %s", op, resp.StatusCode, strings.TrimSpace(string(msg))),
		genoserr.FieldProvider(provider.NameWatsonx),
		genoserr.Field("status", resp.StatusCode),
	)
}
