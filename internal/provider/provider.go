// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Genos Contributors

package provider

import (
	"context"
	"errors"

	genoserr "github.com/genos-dev/genos/pkg/errors"
)

// Provider names. The set is closed: the registry only routes to these.
const (
	NameAnthropic = "anthropic"
	NameGoogle    = "google"
	NameOpenAI    = "openai"
	NameWatsonx   = "watsonx"
	NameBedrock   = "bedrock"
)

// Granite models served through watsonx.
const (
	GraniteInstruct8B = "ibm/granite-3.1-8b-instruct"
	GraniteDense128K  = "ibm/granite-3.1-dense-128k"
)

// Names returns every supported provider name.
func Names() []string {
	return []string{NameAnthropic, NameGoogle, NameOpenAI, NameWatsonx, NameBedrock}
}

// KnownName reports whether name is a supported provider.
func KnownName(name string) bool {
	switch name {
	case NameAnthropic, NameGoogle, NameOpenAI, NameWatsonx, NameBedrock:
		return true
	default:
		return false
	}
}

// Generator is the capability every provider adapter implements: a single
// non-streaming text generation call. Implementations must honour ctx
// cancellation at the transport level.
type Generator interface {
	Name() string
	Generate(ctx context.Context, req Request) (*Response, error)
	Close() error
}

// Request is a single generation call.
type Request struct {
	// Model overrides the adapter's configured model when non-empty.
	Model        string
	SystemPrompt string
	Prompt       string
	MaxTokens    int
}

// Response is the adapter-neutral result of a generation call.
type Response struct {
	Text         string
	Model        string
	InputTokens  int
	OutputTokens int
}

// TotalTokens is input plus output tokens.
func (r *Response) TotalTokens() int {
	return r.InputTokens + r.OutputTokens
}

// UpstreamError wraps a transport or API failure reported by the named
// provider. An expired deadline maps to CodeProviderTimeout.
func UpstreamError(name string, err error) error {
	code := genoserr.CodeProviderUpstreamFailure
	if errors.Is(err, context.DeadlineExceeded) {
		code = genoserr.CodeProviderTimeout
	}
	return genoserr.Wrap(err, code, name+": generation failed", genoserr.FieldProvider(name))
}

// MissingKeyError is returned by adapter constructors when no credential is
// configured.
func MissingKeyError(name string) error {
	return genoserr.New(genoserr.CodeProviderRequestInvalid,
		name+": missing api_key in config", genoserr.FieldProvider(name))
}
