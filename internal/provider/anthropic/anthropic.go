// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Genos Contributors

package anthropic

import (
	"context"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/genos-dev/genos/internal/provider"
	genoserr "github.com/genos-dev/genos/pkg/errors"
)

// DefaultModel is used when neither the config nor the request names one.
const DefaultModel = "claude-sonnet-4-6"

const defaultMaxTokens = 4096

// Config holds Anthropic provider configuration.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string // optional, useful for testing against a mock server
}

// Provider implements provider.Generator using the Anthropic Messages API.
type Provider struct {
	client anthropicsdk.Client
	model  string
}

// New creates a new Anthropic provider. Returns an error if the API key is missing.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, provider.MissingKeyError(provider.NameAnthropic)
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		// Retries belong to the orchestrator's fallback chain.
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	return &Provider{
		client: anthropicsdk.NewClient(opts...),
		model:  model,
	}, nil
}

func (p *Provider) Name() string { return provider.NameAnthropic }

func (p *Provider) Close() error { return nil }

func (p *Provider) Generate(ctx context.Context, req provider.Request) (*provider.Response, error) {
	msg, err := p.client.Messages.New(ctx, buildParams(p.model, req))
	if err != nil {
		return nil, provider.UpstreamError(provider.NameAnthropic, err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, genoserr.New(genoserr.CodeProviderResponseInvalid,
			"anthropic: response has no text content", genoserr.FieldProvider(provider.NameAnthropic))
	}

	return &provider.Response{
		Text:         text.String(),
		Model:        string(msg.Model),
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
	}, nil
}

// buildParams converts a provider.Request into Anthropic SDK MessageNewParams.
func buildParams(model string, req provider.Request) anthropicsdk.MessageNewParams {
	if req.Model != "" {
		model = req.Model
	}
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(model),
		MaxTokens: maxTokens,
		Messages: []anthropicsdk.MessageParam{
			anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(req.Prompt)),
		},
	}
	if req.SystemPrompt != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: req.SystemPrompt}}
	}
	return params
}
