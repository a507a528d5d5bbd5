// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Genos Contributors

// Package rag retrieves organization content similar to a prompt and
// indexes brands and published content for that retrieval.
package rag

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/genos-dev/genos/internal/store"
	genoserr "github.com/genos-dev/genos/pkg/errors"
)

// Retrieval defaults.
const (
	DefaultTopK      = 5
	DefaultThreshold = 0.3

	// MaxContentLength caps indexed text, in characters.
	MaxContentLength = 8000
	// EmbedBatchSize is the number of texts sent per embedding call.
	EmbedBatchSize = 20
)

// DefaultSourceTypes are searched when Config.SourceTypes is empty.
var DefaultSourceTypes = []string{store.SourceTypeBrand, store.SourceTypeContentItem}

// Embedder turns texts into vectors. The watsonx provider satisfies it.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Config tunes retrieval.
type Config struct {
	TopK        int
	Threshold   float64
	SourceTypes []string
}

// Retriever finds and indexes organization content.
type Retriever struct {
	embedder Embedder
	vectors  store.VectorStore
	query    store.MatchQuery
}

// New returns a Retriever. Zero Config fields select the defaults.
func New(embedder Embedder, vectors store.VectorStore, cfg Config) (*Retriever, error) {
	if embedder == nil || vectors == nil {
		return nil, genoserr.New(genoserr.CodeServerConfigInvalid, "rag requires an embedder and a vector store")
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = DefaultThreshold
	}
	if len(cfg.SourceTypes) == 0 {
		cfg.SourceTypes = DefaultSourceTypes
	}
	return &Retriever{
		embedder: embedder,
		vectors:  vectors,
		query:    store.MatchQuery{TopK: cfg.TopK, Threshold: cfg.Threshold, SourceTypes: cfg.SourceTypes},
	}, nil
}

// Context is the retrieved material for one prompt.
type Context struct {
	Documents []*store.ContextDocument
	// Text is the block prepended to the prompt, empty when nothing matched.
	Text string
	// TokensEstimate assumes four characters per token.
	TokensEstimate int
}

// Retrieve embeds prompt and returns the closest documents of orgID.
func (r *Retriever) Retrieve(ctx context.Context, orgID, prompt string) (*Context, error) {
	vecs, err := r.embedder.Embed(ctx, []string{prompt})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, genoserr.Errorf(genoserr.CodeProviderResponseInvalid, "expected one query embedding, got %d", len(vecs))
	}

	docs, err := r.vectors.Match(ctx, orgID, vecs[0], r.query)
	if err != nil {
		return nil, err
	}
	text := FormatContext(docs)
	return &Context{
		Documents:      docs,
		Text:           text,
		TokensEstimate: (len(text) + 3) / 4,
	}, nil
}

// FormatContext renders matched documents as a numbered reference block.
func FormatContext(docs []*store.ContextDocument) string {
	if len(docs) == 0 {
		return ""
	}
	parts := make([]string, len(docs))
	for i, d := range docs {
		parts[i] = fmt.Sprintf("[Reference %d: %s (relevance: %d%%)]\n%s",
			i+1, d.SourceType, int(math.Round(d.Similarity*100)), d.Content)
	}
	return "--- RETRIEVED CONTEXT ---\n" + strings.Join(parts, "\n\n") + "\n--- END OF CONTEXT ---"
}

// AugmentPrompt prepends retrieved context to the user prompt. An empty
// context leaves the prompt unchanged.
func AugmentPrompt(contextText, prompt string) string {
	if contextText == "" {
		return prompt
	}
	return contextText + "\n\n--- USER REQUEST ---\n" + prompt
}
