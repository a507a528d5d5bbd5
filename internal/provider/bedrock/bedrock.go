// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Genos Contributors

package bedrock

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/genos-dev/genos/internal/provider"
	genoserr "github.com/genos-dev/genos/pkg/errors"
)

const (
	DefaultRegion = "us-east-1"
	DefaultModel  = "anthropic.claude-3-5-sonnet-20240620-v1:0"

	anthropicVersion = "bedrock-2023-05-31"
	defaultMaxTokens = 4096
)

// Invoker is the subset of the Bedrock runtime client used by Provider.
type Invoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Config holds Bedrock provider configuration. Credentials come from the
// default AWS chain (environment, shared profile, instance role).
type Config struct {
	Region string
	Model  string
}

// Provider implements provider.Generator with Anthropic models hosted on
// AWS Bedrock.
type Provider struct {
	client Invoker
	model  string
}

// New loads the default AWS configuration for cfg.Region and creates a
// Bedrock runtime client.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	region := cfg.Region
	if region == "" {
		region = DefaultRegion
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, genoserr.Wrap(err, genoserr.CodeProviderRequestInvalid,
			"bedrock: loading AWS config", genoserr.FieldProvider(provider.NameBedrock), genoserr.Field("region", region))
	}

	return NewWithClient(bedrockruntime.NewFromConfig(awsCfg), cfg.Model), nil
}

// NewWithClient wraps an existing Invoker.
func NewWithClient(client Invoker, model string) *Provider {
	if model == "" {
		model = DefaultModel
	}
	return &Provider{client: client, model: model}
}

func (p *Provider) Name() string { return provider.NameBedrock }

func (p *Provider) Close() error { return nil }

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type invokeBody struct {
	AnthropicVersion string    `json:"anthropic_version"`
	MaxTokens        int       `json:"max_tokens"`
	System           string    `json:"system,omitempty"`
	Messages         []message `json:"messages"`
}

type invokeResult struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (p *Provider) Generate(ctx context.Context, req provider.Request) (*provider.Response, error) {
	model := p.model
	if req.Model != "" {
		model = req.Model
	}
	if !strings.Contains(model, "anthropic.") {
		return nil, genoserr.New(genoserr.CodeProviderRequestInvalid,
			"bedrock: only anthropic models are supported: "+model, genoserr.FieldProvider(provider.NameBedrock))
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	body, err := json.Marshal(invokeBody{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        maxTokens,
		System:           req.SystemPrompt,
		Messages:         []message{{Role: "user", Content: req.Prompt}},
	})
	if err != nil {
		return nil, genoserr.Wrapf(err, genoserr.CodeProviderRequestInvalid, "bedrock: encoding request")
	}

	out, err := p.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(model),
		Body:        body,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		return nil, provider.UpstreamError(provider.NameBedrock, err)
	}

	var result invokeResult
	if err := json.Unmarshal(out.Body, &result); err != nil {
		return nil, genoserr.Wrap(err, genoserr.CodeProviderResponseInvalid,
			"bedrock: decoding response", genoserr.FieldProvider(provider.NameBedrock))
	}

	var text strings.Builder
	for _, c := range result.Content {
		if c.Type == "" || c.Type == "text" {
			text.WriteString(c.Text)
		}
	}
	if text.Len() == 0 {
		return nil, genoserr.New(genoserr.CodeProviderResponseInvalid,
			"bedrock: response has no text content", genoserr.FieldProvider(provider.NameBedrock))
	}

	return &provider.Response{
		Text:         text.String(),
		Model:        model,
		InputTokens:  result.Usage.InputTokens,
		OutputTokens: result.Usage.OutputTokens,
	}, nil
}
