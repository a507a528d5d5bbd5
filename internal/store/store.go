// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Genos Contributors

package store

import "context"

// BrandStore reads brand identity packages.
type BrandStore interface {
	// GetBrand returns the brand only when it belongs to orgID.
	GetBrand(ctx context.Context, orgID, brandID string) (*Brand, error)
}

// OwnershipStore answers "which organization owns this row".
type OwnershipStore interface {
	// OwnerOrg returns the organization_id of entityID in table. table must
	// be one of OwnedTables.
	OwnerOrg(ctx context.Context, table, entityID string) (string, error)
}

// AnalyticsStore reads aggregated per-day engagement history.
type AnalyticsStore interface {
	DailyAnalytics(ctx context.Context, orgID string, q AnalyticsQuery) ([]*AnalyticsDaily, error)
}

// AuditStore manages the audit log.
type AuditStore interface {
	Append(ctx context.Context, entry *AuditEntry) error
	Query(ctx context.Context, filter AuditFilter) ([]*AuditEntry, error)
}

// VectorStore holds per-organization content embeddings for retrieval.
type VectorStore interface {
	// UpsertEmbeddings inserts or replaces docs keyed by
	// (orgID, SourceID, SourceType).
	UpsertEmbeddings(ctx context.Context, orgID string, docs []*Embedding) error
	// Match returns the documents of orgID most similar to query, best
	// first, keeping only those above q.Threshold.
	Match(ctx context.Context, orgID string, query []float32, q MatchQuery) ([]*ContextDocument, error)
}

// Store groups the sub-stores of one backend connection.
type Store interface {
	Brands() BrandStore
	Ownership() OwnershipStore
	Analytics() AnalyticsStore
	AuditLog() AuditStore
	Vectors() VectorStore
	Ping(ctx context.Context) error
	Close() error
}
