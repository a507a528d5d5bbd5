// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Genos Contributors

package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/genos-dev/genos/internal/store"
	genoserr "github.com/genos-dev/genos/pkg/errors"
)

type brandStore struct {
	db *sql.DB
}

const getBrandQuery = `SELECT id, organization_id, COALESCE(name, ''), COALESCE(brand_voice, ''),
COALESCE(target_audience, ''), COALESCE(industry, ''), COALESCE(content_pillars, ''),
COALESCE(forbidden_words, ''), COALESCE(mandatory_elements, ''),
COALESCE(regional_expertise::text, '{}'), COALESCE(target_language, '')
FROM brands WHERE id = $1 AND organization_id = $2`

func (s *brandStore) GetBrand(ctx context.Context, orgID, brandID string) (*store.Brand, error) {
	var (
		b                                   store.Brand
		pillars, forbidden, mandatory, expr string
	)
	err := s.db.QueryRowContext(ctx, getBrandQuery, brandID, orgID).Scan(
		&b.ID, &b.OrganizationID, &b.Name, &b.BrandVoice, &b.TargetAudience, &b.Industry,
		&pillars, &forbidden, &mandatory, &expr, &b.TargetLanguage,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, genoserr.New(genoserr.CodeStoreEntityNotFound, "brand not found: "+brandID,
			genoserr.FieldOrgID(orgID), genoserr.FieldTable("brands"))
	}
	if err != nil {
		return nil, genoserr.Wrapf(err, genoserr.CodeStoreDatabaseFailure, "getting brand %s", brandID)
	}

	b.ContentPillars = store.SplitList(pillars)
	b.ForbiddenWords = store.SplitList(forbidden)
	b.MandatoryElements = store.SplitList(mandatory)
	if err := json.Unmarshal([]byte(expr), &b.RegionalExpertise); err != nil {
		return nil, genoserr.Wrapf(err, genoserr.CodeStoreDatabaseFailure, "decoding brand %s regional_expertise", brandID)
	}
	return &b, nil
}

type ownershipStore struct {
	db *sql.DB
}

func (s *ownershipStore) OwnerOrg(ctx context.Context, table, entityID string) (string, error) {
	if err := store.ValidateTable(table); err != nil {
		return "", err
	}

	// table is allowlisted above.
	q := fmt.Sprintf(`SELECT organization_id FROM %s WHERE id = $1`, table)

	var orgID sql.NullString
	err := s.db.QueryRowContext(ctx, q, entityID).Scan(&orgID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", genoserr.New(genoserr.CodeStoreEntityNotFound, "record not found",
			genoserr.FieldTable(table), genoserr.Field("entity_id", entityID))
	}
	if err != nil {
		return "", genoserr.Wrapf(err, genoserr.CodeStoreDatabaseFailure, "reading owner of %s/%s", table, entityID)
	}
	return orgID.String, nil
}

type analyticsStore struct {
	db *sql.DB
}

func (s *analyticsStore) DailyAnalytics(ctx context.Context, orgID string, q store.AnalyticsQuery) ([]*store.AnalyticsDaily, error) {
	var qb strings.Builder
	qb.WriteString(`SELECT organization_id, date, platform, COALESCE(engagement_rate, 0),
COALESCE(impressions, 0), COALESCE(reach, 0) FROM analytics_daily WHERE organization_id = $1`)
	args := []any{orgID}

	if !q.From.IsZero() {
		args = append(args, q.From.UTC().Format(time.DateOnly))
		fmt.Fprintf(&qb, " AND date >= $%d", len(args))
	}
	if !q.To.IsZero() {
		args = append(args, q.To.UTC().Format(time.DateOnly))
		fmt.Fprintf(&qb, " AND date <= $%d", len(args))
	}
	args = append(args, q.EffectiveLimit())
	fmt.Fprintf(&qb, " ORDER BY date DESC LIMIT $%d", len(args))

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, genoserr.Wrap(err, genoserr.CodeStoreDatabaseFailure, "querying analytics_daily", genoserr.FieldOrgID(orgID))
	}
	defer rows.Close() //nolint:errcheck // error on read-path close is not actionable

	var out []*store.AnalyticsDaily
	for rows.Next() {
		var row store.AnalyticsDaily
		if err := rows.Scan(&row.OrganizationID, &row.Date, &row.Platform, &row.EngagementRate, &row.Impressions, &row.Reach); err != nil {
			return nil, genoserr.Wrap(err, genoserr.CodeStoreDatabaseFailure, "scanning analytics row")
		}
		out = append(out, &row)
	}
	if err := rows.Err(); err != nil {
		return nil, genoserr.Wrap(err, genoserr.CodeStoreDatabaseFailure, "iterating analytics rows")
	}
	return out, nil
}

type auditStore struct {
	db *sql.DB
}

func (s *auditStore) Append(ctx context.Context, entry *store.AuditEntry) error {
	if entry.Action == "" {
		return genoserr.New(genoserr.CodeStoreInvalidInput, "audit entry requires an action")
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	details := []byte("{}")
	if entry.Details != nil {
		b, err := json.Marshal(entry.Details)
		if err != nil {
			return genoserr.Wrap(err, genoserr.CodeStoreInvalidInput, "marshalling audit details")
		}
		details = b
	}

	const q = `INSERT INTO audit_log (id, organization_id, actor, action, entity_table, entity_id,
details, ai_model, tokens_used, thread_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := s.db.ExecContext(ctx, q,
		entry.ID, entry.OrganizationID, entry.Actor, entry.Action, entry.EntityTable, entry.EntityID,
		string(details), entry.AIModel, entry.TokensUsed, entry.ThreadID, entry.CreatedAt,
	)
	if err != nil {
		return genoserr.Wrapf(err, genoserr.CodeStoreDatabaseFailure, "appending audit entry %s", entry.ID)
	}
	return nil
}

func (s *auditStore) Query(ctx context.Context, filter store.AuditFilter) ([]*store.AuditEntry, error) {
	var qb strings.Builder
	qb.WriteString(`SELECT id, COALESCE(organization_id, ''), COALESCE(actor, ''), action,
COALESCE(entity_table, ''), COALESCE(entity_id, ''), COALESCE(details::text, '{}'),
COALESCE(ai_model, ''), COALESCE(tokens_used, 0), COALESCE(thread_id, ''), created_at FROM audit_log`)

	var conditions []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if filter.OrganizationID != "" {
		add("organization_id = $%d", filter.OrganizationID)
	}
	if filter.Action != "" {
		add("action = $%d", filter.Action)
	}
	if filter.Actor != "" {
		add("actor = $%d", filter.Actor)
	}
	if !filter.From.IsZero() {
		add("created_at >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		add("created_at < $%d", filter.To)
	}

	if len(conditions) > 0 {
		qb.WriteString(" WHERE ")
		qb.WriteString(strings.Join(conditions, " AND "))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}
	args = append(args, limit, filter.Offset)
	fmt.Fprintf(&qb, " ORDER BY created_at %s LIMIT $%d OFFSET $%d", filter.Order(), len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, genoserr.Wrap(err, genoserr.CodeStoreDatabaseFailure, "querying audit log")
	}
	defer rows.Close() //nolint:errcheck // error on read-path close is not actionable

	var entries []*store.AuditEntry
	for rows.Next() {
		var (
			e       store.AuditEntry
			details string
		)
		if err := rows.Scan(&e.ID, &e.OrganizationID, &e.Actor, &e.Action, &e.EntityTable, &e.EntityID,
			&details, &e.AIModel, &e.TokensUsed, &e.ThreadID, &e.CreatedAt); err != nil {
			return nil, genoserr.Wrap(err, genoserr.CodeStoreDatabaseFailure, "scanning audit row")
		}
		if err := json.Unmarshal([]byte(details), &e.Details); err != nil {
			return nil, genoserr.Wrapf(err, genoserr.CodeStoreDatabaseFailure, "decoding audit %s details", e.ID)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, genoserr.Wrap(err, genoserr.CodeStoreDatabaseFailure, "iterating audit rows")
	}
	return entries, nil
}
