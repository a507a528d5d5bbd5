// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Genos Contributors

package store

import (
	"slices"
	"strings"
	"time"

	genoserr "github.com/genos-dev/genos/pkg/errors"
)

// Brand is a brand identity package. List-valued columns are stored comma
// separated.
type Brand struct {
	ID                string
	OrganizationID    string
	Name              string
	BrandVoice        string
	TargetAudience    string
	Industry          string
	ContentPillars    []string
	ForbiddenWords    []string
	MandatoryElements []string
	// RegionalExpertise is an arbitrary JSON object.
	RegionalExpertise map[string]any
	TargetLanguage    string
}

// AnalyticsDaily is one day of engagement for one platform.
type AnalyticsDaily struct {
	OrganizationID string
	Date           time.Time
	Platform       string
	EngagementRate float64
	Impressions    int64
	Reach          int64
}

// AnalyticsQuery bounds a history read. Zero dates are unbounded; a
// non-positive Limit selects DefaultAnalyticsLimit.
type AnalyticsQuery struct {
	From  time.Time
	To    time.Time
	Limit int
}

// DefaultAnalyticsLimit caps history reads.
const DefaultAnalyticsLimit = 90

// EffectiveLimit returns Limit or the default.
func (q AnalyticsQuery) EffectiveLimit() int {
	if q.Limit <= 0 {
		return DefaultAnalyticsLimit
	}
	return q.Limit
}

// Audit actions.
const (
	AuditActionTenantViolation  = "tenant_violation_attempt"
	AuditActionAIGenerate       = "ai_generate"
	AuditActionScheduleOptimize = "schedule_optimize"
	AuditActionRAGIndex         = "rag_index"
)

// AuditEntry records a security-relevant or billable action.
type AuditEntry struct {
	ID             string
	OrganizationID string
	Actor          string
	Action         string
	EntityTable    string
	EntityID       string
	Details        map[string]any
	AIModel        string
	TokensUsed     int
	ThreadID       string
	CreatedAt      time.Time
}

// AuditFilter specifies criteria for querying audit entries.
type AuditFilter struct {
	OrganizationID string
	Action         string
	Actor          string
	From           time.Time
	To             time.Time
	Limit          int
	Offset         int
	NewestFirst    bool
}

// Order returns the SQL sort direction for created_at.
func (f AuditFilter) Order() string {
	if f.NewestFirst {
		return "DESC"
	}
	return "ASC"
}

// Embedding source types.
const (
	SourceTypeBrand       = "brand"
	SourceTypeContentItem = "content_item"
)

// Embedding is one indexed document and its vector.
type Embedding struct {
	SourceID   string
	SourceType string
	Content    string
	Vector     []float32
	Metadata   map[string]any
}

// MatchQuery bounds a similarity search. A non-positive TopK selects
// DefaultMatchCount; empty SourceTypes matches every type.
type MatchQuery struct {
	TopK        int
	Threshold   float64
	SourceTypes []string
}

// DefaultMatchCount caps similarity searches.
const DefaultMatchCount = 5

// EffectiveTopK returns TopK or the default.
func (q MatchQuery) EffectiveTopK() int {
	if q.TopK <= 0 {
		return DefaultMatchCount
	}
	return q.TopK
}

// ContextDocument is one similarity hit. Similarity is cosine similarity,
// 1 for identical direction.
type ContextDocument struct {
	SourceID   string
	SourceType string
	Content    string
	Similarity float64
}

// ValidateEmbeddings rejects documents without a key or vector.
func ValidateEmbeddings(docs []*Embedding) error {
	for _, d := range docs {
		if d == nil || d.SourceID == "" || d.SourceType == "" {
			return genoserr.New(genoserr.CodeStoreInvalidInput, "embedding requires source_id and source_type")
		}
		if len(d.Vector) == 0 {
			return genoserr.New(genoserr.CodeStoreInvalidInput,
				"embedding vector is empty", genoserr.Field("source_id", d.SourceID))
		}
	}
	return nil
}

// OwnedTables lists the tenant-scoped tables whose rows carry an
// organization_id. Ownership lookups are restricted to these names because
// the table is interpolated into SQL.
var OwnedTables = []string{"brands", "clients", "projects", "briefings", "documents", "posts"}

// ValidateTable rejects table names outside OwnedTables.
func ValidateTable(table string) error {
	if !slices.Contains(OwnedTables, table) {
		return genoserr.New(genoserr.CodeStoreInvalidInput,
			"table is not tenant scoped: "+table, genoserr.FieldTable(table))
	}
	return nil
}

// SplitList parses a comma separated column into trimmed, non-empty items.
func SplitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// JoinList is the inverse of SplitList.
func JoinList(items []string) string {
	return strings.Join(items, ",")
}
