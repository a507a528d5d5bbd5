// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Genos Contributors

package openai

import (
	"context"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/genos-dev/genos/internal/provider"
	genoserr "github.com/genos-dev/genos/pkg/errors"
)

// DefaultModel is used when neither the config nor the request names one.
const DefaultModel = "gpt-4.1"

// Config holds OpenAI provider configuration.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string // optional, useful for testing against a mock server
}

// Provider implements provider.Generator using the OpenAI Chat Completions API.
type Provider struct {
	client openaisdk.Client
	model  string
}

// New creates a new OpenAI provider. Returns an error if the API key is missing.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, provider.MissingKeyError(provider.NameOpenAI)
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	return &Provider{client: openaisdk.NewClient(opts...), model: model}, nil
}

func (p *Provider) Name() string { return provider.NameOpenAI }

func (p *Provider) Close() error { return nil }

func (p *Provider) Generate(ctx context.Context, req provider.Request) (*provider.Response, error) {
	completion, err := p.client.Chat.Completions.New(ctx, buildParams(p.model, req))
	if err != nil {
		return nil, provider.UpstreamError(provider.NameOpenAI, err)
	}
	if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
		return nil, genoserr.New(genoserr.CodeProviderResponseInvalid,
			"openai: response has no choices", genoserr.FieldProvider(provider.NameOpenAI))
	}

	return &provider.Response{
		Text:         completion.Choices[0].Message.Content,
		Model:        completion.Model,
		InputTokens:  int(completion.Usage.PromptTokens),
		OutputTokens: int(completion.Usage.CompletionTokens),
	}, nil
}

// buildParams converts a provider.Request into OpenAI SDK ChatCompletionNewParams.
func buildParams(model string, req provider.Request) openaisdk.ChatCompletionNewParams {
	if req.Model != "" {
		model = req.Model
	}

	msgs := make([]openaisdk.ChatCompletionMessageParamUnion, 0, 2)
	if req.SystemPrompt != "" {
		msgs = append(msgs, openaisdk.SystemMessage(req.SystemPrompt))
	}
	msgs = append(msgs, openaisdk.UserMessage(req.Prompt))

	params := openaisdk.ChatCompletionNewParams{
		Model:    shared.ChatModel(model),
		Messages: msgs,
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(req.MaxTokens))
	}
	return params
}
