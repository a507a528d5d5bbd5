// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Genos Contributors

// Package orchestrator turns a prompt plus tenant context into a verified
// generation: brand lookup, optional retrieval of related content, provider
// routing behind circuit breakers, telemetry and the guardrail scan.
package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/genos-dev/genos/internal/guardrail"
	"github.com/genos-dev/genos/internal/provider"
	"github.com/genos-dev/genos/internal/rag"
	"github.com/genos-dev/genos/internal/store"
	genoserr "github.com/genos-dev/genos/pkg/errors"
)

// OperationGenerate is the metrics operation name of a provider call.
const OperationGenerate = "ai.generate"

// DefaultProviderTimeout bounds a single provider call.
const DefaultProviderTimeout = 45 * time.Second

// Recorder receives generation telemetry. *metrics.Aggregator satisfies it.
type Recorder interface {
	TrackLatency(operation string, d time.Duration, tags map[string]string)
	TrackTokenUsage(provider string, tokens int, tags map[string]string)
	TrackError(operation string, tags map[string]string)
}

// Retriever finds organization content related to a prompt.
// *rag.Retriever satisfies it.
type Retriever interface {
	Retrieve(ctx context.Context, orgID, prompt string) (*rag.Context, error)
}

// Config holds the orchestrator's dependencies.
type Config struct {
	Registry *provider.Registry
	Breakers *provider.Breakers
	Brands   store.BrandStore
	Verifier *guardrail.Verifier
	Metrics  Recorder
	// Retriever augments prompts with retrieved context. Nil disables RAG.
	Retriever Retriever

	// ProviderTimeout bounds each provider call. Zero selects
	// DefaultProviderTimeout.
	ProviderTimeout time.Duration
	// ProviderTimeouts overrides ProviderTimeout per provider name.
	ProviderTimeouts map[string]time.Duration
	// DefaultMaxLength applies when the platform has no character limit.
	DefaultMaxLength int
}

// Orchestrator coordinates one generation request end to end. It holds no
// per-request state and is safe for concurrent use.
type Orchestrator struct {
	registry         *provider.Registry
	breakers         *provider.Breakers
	brands           store.BrandStore
	verifier         *guardrail.Verifier
	metrics          Recorder
	retriever        Retriever
	timeout          time.Duration
	timeouts         map[string]time.Duration
	defaultMaxLength int
	newThreadID      func() string
}

// New validates cfg and returns an Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Registry == nil || cfg.Breakers == nil || cfg.Brands == nil || cfg.Verifier == nil {
		return nil, genoserr.New(genoserr.CodeServerConfigInvalid,
			"orchestrator requires registry, breakers, brands and verifier")
	}
	timeout := cfg.ProviderTimeout
	if timeout <= 0 {
		timeout = DefaultProviderTimeout
	}
	rec := cfg.Metrics
	if rec == nil {
		rec = nopRecorder{}
	}
	return &Orchestrator{
		registry:         cfg.Registry,
		breakers:         cfg.Breakers,
		brands:           cfg.Brands,
		verifier:         cfg.Verifier,
		metrics:          rec,
		retriever:        cfg.Retriever,
		timeout:          timeout,
		timeouts:         cfg.ProviderTimeouts,
		defaultMaxLength: cfg.DefaultMaxLength,
		newThreadID:      uuid.NewString,
	}, nil
}

// Generate runs the pipeline for a request on behalf of orgID/userID.
// The request must already be validated. Persisting the result is the
// caller's job.
func (o *Orchestrator) Generate(ctx context.Context, req Request, orgID, userID string) (*Result, error) {
	brand, err := o.brands.GetBrand(ctx, orgID, req.BrandID)
	if err != nil {
		if genoserr.IsNotFound(err) {
			return nil, genoserr.New(genoserr.CodeOrchestratorBrandNotFound,
				"brand not found or not owned by your organization",
				genoserr.FieldOrgID(orgID), genoserr.Field("brand_id", req.BrandID))
		}
		return nil, err
	}

	threadID := o.newThreadID()
	ragEnabled := o.retriever != nil && req.WantsRAG()
	prompt, ragLen := req.Prompt, 0
	if ragEnabled {
		prompt, ragLen = o.augment(ctx, orgID, threadID, req.Prompt)
	}
	genReq := provider.Request{
		SystemPrompt: BuildSystemPrompt(req, brand),
		Prompt:       prompt,
	}

	chain := o.registry.Chain(req.ContentType, req.PreferredProvider)
	var lastErr error
	for _, route := range chain {
		if !o.breakers.IsAvailable(route.Provider) {
			slog.Debug("skipping provider with open circuit",
				"provider", route.Provider, "thread_id", threadID)
			continue
		}

		resp, latency, err := o.call(ctx, route, genReq)
		if err != nil {
			// A caller that went away says nothing about provider health.
			if ctx.Err() != nil {
				return nil, genoserr.Wrap(ctx.Err(), genoserr.CodeProviderTimeout, "generation cancelled",
					genoserr.FieldProvider(route.Provider))
			}
			o.breakers.RecordFailure(route.Provider)
			o.metrics.TrackError(OperationGenerate, map[string]string{"provider": route.Provider})
			slog.Warn("provider failed, trying next",
				"provider", route.Provider, "model", route.Model, "thread_id", threadID, "error", err)
			lastErr = err
			continue
		}

		o.breakers.RecordSuccess(route.Provider)
		tags := map[string]string{"provider": route.Provider, "content_type": string(req.ContentType)}
		o.metrics.TrackLatency(OperationGenerate, latency, tags)
		o.metrics.TrackTokenUsage(route.Provider, resp.TotalTokens(), tags)

		verdict := o.verifier.Verify(resp.Text, o.guardrailContext(req, brand))
		result := &Result{
			ThreadID:           threadID,
			Text:               resp.Text,
			Provider:           route.Provider,
			Model:              resp.Model,
			InputTokens:        resp.InputTokens,
			OutputTokens:       resp.OutputTokens,
			Latency:            latency,
			Guardrail:          verdict,
			GuardrailViolation: !verdict.Passed,
			RAGEnabled:         ragEnabled,
			RAGContextLength:   ragLen,
		}
		if !verdict.Passed {
			if verdict.SanitizedContent != "" {
				result.Text = verdict.SanitizedContent
			}
			slog.Warn("guardrail flagged generation",
				"provider", route.Provider, "thread_id", threadID,
				"score", verdict.Score, "flags", len(verdict.Flags))
		}
		return result, nil
	}

	return nil, unavailable(chain, lastErr)
}

// augment prepends retrieved context to prompt. Retrieval failures are
// logged and the prompt is used as is.
func (o *Orchestrator) augment(ctx context.Context, orgID, threadID, prompt string) (string, int) {
	rctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	rc, err := o.retriever.Retrieve(rctx, orgID, prompt)
	if err != nil {
		slog.Warn("rag retrieval failed, continuing without context",
			"organization_id", orgID, "thread_id", threadID, "error", err)
		return prompt, 0
	}
	slog.Debug("rag context retrieved",
		"thread_id", threadID, "documents", len(rc.Documents), "tokens_estimate", rc.TokensEstimate)
	return rag.AugmentPrompt(rc.Text, prompt), len(rc.Text)
}

// timeoutFor returns the call timeout of the named provider.
func (o *Orchestrator) timeoutFor(name string) time.Duration {
	if d := o.timeouts[name]; d > 0 {
		return d
	}
	return o.timeout
}

// call invokes one provider under its timeout and measures it.
func (o *Orchestrator) call(ctx context.Context, route provider.Route, req provider.Request) (*provider.Response, time.Duration, error) {
	gen, err := o.registry.Get(route.Provider)
	if err != nil {
		return nil, 0, err
	}
	req.Model = route.Model

	callCtx, cancel := context.WithTimeout(ctx, o.timeoutFor(route.Provider))
	defer cancel()

	start := time.Now()
	resp, err := gen.Generate(callCtx, req)
	latency := time.Since(start)
	if err != nil {
		return nil, latency, err
	}
	if resp == nil || resp.Text == "" {
		return nil, latency, genoserr.New(genoserr.CodeProviderResponseInvalid,
			route.Provider+": empty response", genoserr.FieldProvider(route.Provider))
	}
	return resp, latency, nil
}

func (o *Orchestrator) guardrailContext(req Request, brand *store.Brand) guardrail.Context {
	maxLen := req.Platform.MaxLength()
	if maxLen == 0 {
		maxLen = o.defaultMaxLength
	}
	return guardrail.Context{
		ForbiddenWords:    brand.ForbiddenWords,
		MandatoryElements: brand.MandatoryElements,
		MaxLength:         maxLen,
		BrandVoice:        brand.BrandVoice,
	}
}

func unavailable(chain []provider.Route, lastErr error) error {
	names := make([]string, len(chain))
	for i, r := range chain {
		names[i] = r.Provider
	}
	fields := []genoserr.Attr{genoserr.Field("chain", names)}
	if lastErr != nil {
		fields = append(fields, genoserr.Field("last_error", lastErr.Error()))
	}
	return genoserr.New(genoserr.CodeProviderUnavailable, "all AI providers are unavailable", fields...)
}

type nopRecorder struct{}

func (nopRecorder) TrackLatency(string, time.Duration, map[string]string) {}
func (nopRecorder) TrackTokenUsage(string, int, map[string]string)        {}
func (nopRecorder) TrackError(string, map[string]string)                  {}
