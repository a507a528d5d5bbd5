// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Genos Contributors

package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/genos-dev/genos/internal/store"
	genoserr "github.com/genos-dev/genos/pkg/errors"
)

type analyticsStore struct {
	db *sql.DB
}

func (s *analyticsStore) DailyAnalytics(ctx context.Context, orgID string, q store.AnalyticsQuery) ([]*store.AnalyticsDaily, error) {
	var qb strings.Builder
	qb.WriteString(`SELECT organization_id, date, platform, engagement_rate, impressions, reach
FROM analytics_daily WHERE organization_id = ?`)
	args := []any{orgID}

	if !q.From.IsZero() {
		qb.WriteString(" AND date >= ?")
		args = append(args, q.From.UTC().Format(dateLayout))
	}
	if !q.To.IsZero() {
		qb.WriteString(" AND date <= ?")
		args = append(args, q.To.UTC().Format(dateLayout))
	}
	qb.WriteString(" ORDER BY date DESC LIMIT ?")
	args = append(args, q.EffectiveLimit())

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, genoserr.Wrap(err, genoserr.CodeStoreDatabaseFailure, "querying analytics_daily", genoserr.FieldOrgID(orgID))
	}
	defer rows.Close() //nolint:errcheck // error on read-path close is not actionable

	var out []*store.AnalyticsDaily
	for rows.Next() {
		var (
			row  store.AnalyticsDaily
			date string
		)
		if err := rows.Scan(&row.OrganizationID, &date, &row.Platform, &row.EngagementRate, &row.Impressions, &row.Reach); err != nil {
			return nil, genoserr.Wrap(err, genoserr.CodeStoreDatabaseFailure, "scanning analytics row")
		}
		row.Date, err = time.Parse(dateLayout, date)
		if err != nil {
			return nil, genoserr.Wrapf(err, genoserr.CodeStoreDatabaseFailure, "parsing analytics date %q", date)
		}
		out = append(out, &row)
	}
	if err := rows.Err(); err != nil {
		return nil, genoserr.Wrap(err, genoserr.CodeStoreDatabaseFailure, "iterating analytics rows")
	}
	return out, nil
}

// InsertAnalytics inserts or replaces one day of platform analytics.
func (s *Store) InsertAnalytics(ctx context.Context, row *store.AnalyticsDaily) error {
	const q = `INSERT INTO analytics_daily (organization_id, date, platform, engagement_rate, impressions, reach)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(organization_id, date, platform) DO UPDATE SET
	engagement_rate = excluded.engagement_rate,
	impressions = excluded.impressions,
	reach = excluded.reach`

	_, err := s.db.ExecContext(ctx, q,
		row.OrganizationID, row.Date.UTC().Format(dateLayout), row.Platform,
		row.EngagementRate, row.Impressions, row.Reach,
	)
	if err != nil {
		return genoserr.Wrap(err, genoserr.CodeStoreDatabaseFailure, "inserting analytics row", genoserr.FieldOrgID(row.OrganizationID))
	}
	return nil
}
