// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Genos Contributors

package orchestrator

import (
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/genos-dev/genos/internal/guardrail"
	"github.com/genos-dev/genos/internal/provider"
	genoserr "github.com/genos-dev/genos/pkg/errors"
	"github.com/genos-dev/genos/pkg/types"
)

// MaxPromptLength is the longest accepted prompt, in characters.
const MaxPromptLength = 5000

// Request is a validated generation request.
type Request struct {
	Prompt            string
	ContentType       types.ContentType
	Platform          types.Platform
	Tone              string
	Language          string
	BrandID           string
	PreferredProvider string
	// UseRAG opts out of retrieval when false. Nil means enabled.
	UseRAG *bool
}

// WantsRAG reports whether the caller allows retrieval.
func (r Request) WantsRAG() bool {
	return r.UseRAG == nil || *r.UseRAG
}

// Validate checks the request once at the boundary.
func (r Request) Validate() error {
	n := utf8.RuneCountInString(r.Prompt)
	if n == 0 {
		return invalid("prompt is required")
	}
	if n > MaxPromptLength {
		return genoserr.Errorf(genoserr.CodeOrchestratorInvalidInput,
			"prompt exceeds %d characters (got %d)", MaxPromptLength, n)
	}
	if !r.ContentType.Valid() {
		return genoserr.Errorf(genoserr.CodeOrchestratorInvalidInput, "unknown content_type %q", r.ContentType)
	}
	if _, err := uuid.Parse(r.BrandID); err != nil {
		return invalid("brand_id must be a UUID")
	}
	if r.PreferredProvider != "" && !provider.KnownName(r.PreferredProvider) {
		return genoserr.Errorf(genoserr.CodeOrchestratorInvalidInput, "unknown preferred_provider %q", r.PreferredProvider)
	}
	return nil
}

func invalid(msg string) error {
	return genoserr.New(genoserr.CodeOrchestratorInvalidInput, msg)
}

// Result is the outcome of one orchestrated generation. When the guardrail
// verdict did not pass, Text holds the sanitized content if redaction
// produced any, and GuardrailViolation is set; the caller decides what to
// show.
type Result struct {
	ThreadID           string
	Text               string
	Provider           string
	Model              string
	InputTokens        int
	OutputTokens       int
	Latency            time.Duration
	Guardrail          guardrail.Result
	GuardrailViolation bool
	// RAGEnabled is set when retrieval was attempted for this request.
	RAGEnabled bool
	// RAGContextLength is the length of the prepended context, 0 when
	// nothing was retrieved.
	RAGContextLength int
}

// TokensUsed is the billable token count.
func (r *Result) TokensUsed() int {
	return r.InputTokens + r.OutputTokens
}
