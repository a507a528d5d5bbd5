// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Genos Contributors

package google

import (
	"context"
	"strings"

	"google.golang.org/genai"

	"github.com/genos-dev/genos/internal/provider"
	genoserr "github.com/genos-dev/genos/pkg/errors"
)

// DefaultModel is used when neither the config nor the request names one.
const DefaultModel = "gemini-2.0-flash"

// Config holds Google provider configuration.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string // optional, useful for testing against a mock server
}

// Provider implements provider.Generator using the Google Gemini API.
type Provider struct {
	client *genai.Client
	model  string
}

// New creates a new Google provider. Returns an error if the API key is missing.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, provider.MissingKeyError(provider.NameGoogle)
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, genoserr.Wrapf(err, genoserr.CodeProviderUpstreamFailure, "google: creating client")
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	return &Provider{client: client, model: model}, nil
}

func (p *Provider) Name() string { return provider.NameGoogle }

func (p *Provider) Close() error { return nil }

func (p *Provider) Generate(ctx context.Context, req provider.Request) (*provider.Response, error) {
	model := p.model
	if req.Model != "" {
		model = req.Model
	}

	config := &genai.GenerateContentConfig{}
	if req.SystemPrompt != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.SystemPrompt}},
		}
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}

	resp, err := p.client.Models.GenerateContent(ctx, model, genai.Text(req.Prompt), config)
	if err != nil {
		return nil, provider.UpstreamError(provider.NameGoogle, err)
	}

	text := candidateText(resp)
	if text == "" {
		return nil, genoserr.New(genoserr.CodeProviderResponseInvalid,
			"google: response has no text content", genoserr.FieldProvider(provider.NameGoogle))
	}

	out := &provider.Response{Text: text, Model: model}
	if resp.ModelVersion != "" {
		out.Model = resp.ModelVersion
	}
	if um := resp.UsageMetadata; um != nil {
		out.InputTokens = int(um.PromptTokenCount)
		out.OutputTokens = int(um.CandidatesTokenCount)
	}
	return out, nil
}

// candidateText concatenates the non-thought text parts of the first candidate.
func candidateText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		b.WriteString(part.Text)
	}
	return b.String()
}
