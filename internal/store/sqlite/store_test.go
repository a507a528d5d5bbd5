// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Genos Contributors

package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genos-dev/genos/internal/store"
	_ "github.com/genos-dev/genos/internal/store/sqlite"
	genoserr "github.com/genos-dev/genos/pkg/errors"
)

func TestBrands_GetBrandScopedToOrg(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	brand := &store.Brand{
		ID:                "b-1",
		OrganizationID:    "org-a",
		Name:              "Cafe Aurora",
		BrandVoice:        "warm and direct",
		TargetAudience:    "commuters",
		Industry:          "food",
		ContentPillars:    []string{"coffee", "community"},
		ForbiddenWords:    []string{"cheap", "free"},
		MandatoryElements: []string{"#aurora"},
		RegionalExpertise: map[string]any{"city": "Recife"},
		TargetLanguage:    "pt-BR",
	}
	require.NoError(t, s.UpsertBrand(ctx, brand))

	got, err := s.Brands().GetBrand(ctx, "org-a", "b-1")
	require.NoError(t, err)
	assert.Equal(t, brand, got)

	_, err = s.Brands().GetBrand(ctx, "org-b", "b-1")
	require.Error(t, err)
	assert.True(t, genoserr.IsNotFound(err))
}

func TestBrands_UpsertReplaces(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.UpsertBrand(ctx, &store.Brand{ID: "b-1", OrganizationID: "org-a", Name: "old"}))
	require.NoError(t, s.UpsertBrand(ctx, &store.Brand{ID: "b-1", OrganizationID: "org-a", Name: "new"}))

	got, err := s.Brands().GetBrand(ctx, "org-a", "b-1")
	require.NoError(t, err)
	assert.Equal(t, "new", got.Name)
	assert.Nil(t, got.ForbiddenWords)
	assert.Empty(t, got.RegionalExpertise)
}

func TestOwnership_OwnerOrg(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.InsertOwned(ctx, "projects", "p-1", "org-a"))
	require.NoError(t, s.InsertOwned(ctx, "brands", "b-1", "org-b"))

	tests := []struct {
		name     string
		table    string
		id       string
		want     string
		notFound bool
		invalid  bool
	}{
		{name: "project", table: "projects", id: "p-1", want: "org-a"},
		{name: "brand", table: "brands", id: "b-1", want: "org-b"},
		{name: "missing row", table: "clients", id: "c-9", notFound: true},
		{name: "table not allowlisted", table: "users; DROP TABLE brands", id: "x", invalid: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Ownership().OwnerOrg(ctx, tt.table, tt.id)
			switch {
			case tt.notFound:
				require.Error(t, err)
				assert.True(t, genoserr.IsNotFound(err))
			case tt.invalid:
				require.Error(t, err)
				assert.True(t, genoserr.IsInvalidInput(err))
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestAnalytics_DailyAnalytics(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	day := func(d int) time.Time { return time.Date(2026, 3, d, 0, 0, 0, 0, time.UTC) }
	for d := 1; d <= 5; d++ {
		require.NoError(t, s.InsertAnalytics(ctx, &store.AnalyticsDaily{
			OrganizationID: "org-a", Date: day(d), Platform: "instagram",
			EngagementRate: float64(d) / 100, Impressions: int64(d * 10), Reach: int64(d * 5),
		}))
	}
	require.NoError(t, s.InsertAnalytics(ctx, &store.AnalyticsDaily{
		OrganizationID: "org-b", Date: day(3), Platform: "linkedin", EngagementRate: 0.9,
	}))

	t.Run("newest first and scoped", func(t *testing.T) {
		rows, err := s.Analytics().DailyAnalytics(ctx, "org-a", store.AnalyticsQuery{})
		require.NoError(t, err)
		require.Len(t, rows, 5)
		assert.Equal(t, day(5), rows[0].Date)
		assert.Equal(t, day(1), rows[4].Date)
		assert.InDelta(t, 0.05, rows[0].EngagementRate, 1e-9)
	})

	t.Run("date range inclusive", func(t *testing.T) {
		rows, err := s.Analytics().DailyAnalytics(ctx, "org-a", store.AnalyticsQuery{From: day(2), To: day(4)})
		require.NoError(t, err)
		require.Len(t, rows, 3)
		assert.Equal(t, day(4), rows[0].Date)
		assert.Equal(t, day(2), rows[2].Date)
	})

	t.Run("limit", func(t *testing.T) {
		rows, err := s.Analytics().DailyAnalytics(ctx, "org-a", store.AnalyticsQuery{Limit: 2})
		require.NoError(t, err)
		assert.Len(t, rows, 2)
	})
}

func TestAudit_AppendAndQuery(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	entries := []*store.AuditEntry{
		{OrganizationID: "org-a", Actor: "u-1", Action: store.AuditActionTenantViolation, EntityTable: "brands", EntityID: "b-9",
			Details: map[string]any{"target_org_id": "org-b"}, CreatedAt: base},
		{OrganizationID: "org-a", Actor: "u-1", Action: store.AuditActionAIGenerate, AIModel: "claude-sonnet-4-6",
			TokensUsed: 120, ThreadID: "t-1", CreatedAt: base.Add(time.Minute)},
		{OrganizationID: "org-b", Actor: "u-2", Action: store.AuditActionAIGenerate, CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, e := range entries {
		require.NoError(t, s.AuditLog().Append(ctx, e))
		assert.NotEmpty(t, e.ID)
	}

	got, err := s.AuditLog().Query(ctx, store.AuditFilter{OrganizationID: "org-a"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, store.AuditActionTenantViolation, got[0].Action)
	assert.Equal(t, "org-b", got[0].Details["target_org_id"])
	assert.Equal(t, base, got[0].CreatedAt)
	assert.Equal(t, 120, got[1].TokensUsed)

	got, err = s.AuditLog().Query(ctx, store.AuditFilter{Action: store.AuditActionAIGenerate})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = s.AuditLog().Query(ctx, store.AuditFilter{OrganizationID: "org-a", NewestFirst: true, Limit: 1})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, store.AuditActionAIGenerate, got[0].Action)

	got, err = s.AuditLog().Query(ctx, store.AuditFilter{From: base.Add(time.Minute), To: base.Add(2 * time.Minute)})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "t-1", got[0].ThreadID)

	err = s.AuditLog().Append(ctx, &store.AuditEntry{OrganizationID: "org-a"})
	require.Error(t, err)
	assert.True(t, genoserr.IsInvalidInput(err))
}

func TestOpen_RegisteredBackend(t *testing.T) {
	path := filepath.Join(testDir(t), "nested", "genos.db")
	s, err := store.Open(&store.StorageConfig{SQLitePath: path})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.Ping(context.Background()))

	priv, err := store.OpenPrivileged(&store.StorageConfig{Backend: "sqlite", SQLitePath: path})
	require.NoError(t, err)
	require.NoError(t, priv.Close())
}

func TestOpen_Errors(t *testing.T) {
	_, err := store.Open(&store.StorageConfig{Backend: "cassandra"})
	require.Error(t, err)
	assert.Equal(t, genoserr.CodeStoreBackendUnsupported, genoserr.CodeOf(err))

	_, err = store.Open(&store.StorageConfig{Backend: "sqlite"})
	require.Error(t, err)
	assert.True(t, genoserr.IsInvalidInput(err))
}
