// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Genos Contributors

package rag

import (
	"context"
	"strings"

	"github.com/genos-dev/genos/internal/store"
	genoserr "github.com/genos-dev/genos/pkg/errors"
)

// Item is one document to index.
type Item struct {
	ID         string
	SourceType string
	Content    string
	Metadata   map[string]any
}

// Index embeds items in batches of EmbedBatchSize and upserts them for
// orgID. Content longer than MaxContentLength is truncated before storage.
func (r *Retriever) Index(ctx context.Context, orgID string, items []Item) error {
	if len(items) == 0 {
		return nil
	}

	docs := make([]*store.Embedding, 0, len(items))
	for start := 0; start < len(items); start += EmbedBatchSize {
		batch := items[start:min(start+EmbedBatchSize, len(items))]
		texts := make([]string, len(batch))
		for i, it := range batch {
			texts[i] = it.Content
		}

		vecs, err := r.embedder.Embed(ctx, texts)
		if err != nil {
			return err
		}
		if len(vecs) != len(batch) {
			return genoserr.Errorf(genoserr.CodeProviderResponseInvalid,
				"expected %d embeddings, got %d", len(batch), len(vecs))
		}

		for i, it := range batch {
			docs = append(docs, &store.Embedding{
				SourceID:   it.ID,
				SourceType: it.SourceType,
				Content:    truncate(it.Content, MaxContentLength),
				Vector:     vecs[i],
				Metadata:   it.Metadata,
			})
		}
	}

	return r.vectors.UpsertEmbeddings(ctx, orgID, docs)
}

// IndexBrand indexes the identity package of b.
func (r *Retriever) IndexBrand(ctx context.Context, orgID string, b *store.Brand) error {
	return r.Index(ctx, orgID, []Item{{
		ID:         b.ID,
		SourceType: store.SourceTypeBrand,
		Content:    BrandDocument(b),
		Metadata:   map[string]any{"brand_name": b.Name},
	}})
}

// BrandDocument renders the indexed text of a brand, one field per line.
func BrandDocument(b *store.Brand) string {
	lines := []string{"Brand: " + b.Name}
	add := func(label, value string) {
		if value != "" {
			lines = append(lines, label+": "+value)
		}
	}
	add("Voice", b.BrandVoice)
	add("Target audience", b.TargetAudience)
	add("Industry", b.Industry)
	add("Pillars", strings.Join(b.ContentPillars, ", "))
	add("Forbidden words", strings.Join(b.ForbiddenWords, ", "))
	add("Mandatory elements", strings.Join(b.MandatoryElements, ", "))
	return strings.Join(lines, "\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// BrandIndexer loads a brand by id and indexes it.
type BrandIndexer struct {
	brands    store.BrandStore
	retriever *Retriever
}

// NewBrandIndexer returns a BrandIndexer reading from brands.
func NewBrandIndexer(brands store.BrandStore, r *Retriever) *BrandIndexer {
	return &BrandIndexer{brands: brands, retriever: r}
}

// IndexBrand indexes brandID when it belongs to orgID.
func (i *BrandIndexer) IndexBrand(ctx context.Context, orgID, brandID string) error {
	b, err := i.brands.GetBrand(ctx, orgID, brandID)
	if err != nil {
		return err
	}
	return i.retriever.IndexBrand(ctx, orgID, b)
}
