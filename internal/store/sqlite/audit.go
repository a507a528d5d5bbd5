// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Genos Contributors

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/genos-dev/genos/internal/store"
	genoserr "github.com/genos-dev/genos/pkg/errors"
)

type auditStore struct {
	db *sql.DB
}

// Append stores an audit entry. A missing ID or CreatedAt is filled in.
func (s *auditStore) Append(ctx context.Context, entry *store.AuditEntry) error {
	if entry.Action == "" {
		return genoserr.New(genoserr.CodeStoreInvalidInput, "audit entry requires an action")
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	details := "{}"
	if entry.Details != nil {
		b, err := json.Marshal(entry.Details)
		if err != nil {
			return genoserr.Wrap(err, genoserr.CodeStoreInvalidInput, "marshalling audit details")
		}
		details = string(b)
	}

	const q = `INSERT INTO audit_log (id, organization_id, actor, action, entity_table, entity_id,
details, ai_model, tokens_used, thread_id, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, q,
		entry.ID, entry.OrganizationID, entry.Actor, entry.Action, entry.EntityTable, entry.EntityID,
		details, entry.AIModel, entry.TokensUsed, entry.ThreadID, formatTime(entry.CreatedAt),
	)
	if err != nil {
		return genoserr.Wrapf(err, genoserr.CodeStoreDatabaseFailure, "appending audit entry %s", entry.ID)
	}
	return nil
}

func (s *auditStore) Query(ctx context.Context, filter store.AuditFilter) ([]*store.AuditEntry, error) {
	var qb strings.Builder
	qb.WriteString(`SELECT id, organization_id, actor, action, entity_table, entity_id, details,
ai_model, tokens_used, thread_id, created_at FROM audit_log`)

	var conditions []string
	var args []any

	if filter.OrganizationID != "" {
		conditions = append(conditions, "organization_id = ?")
		args = append(args, filter.OrganizationID)
	}
	if filter.Action != "" {
		conditions = append(conditions, "action = ?")
		args = append(args, filter.Action)
	}
	if filter.Actor != "" {
		conditions = append(conditions, "actor = ?")
		args = append(args, filter.Actor)
	}
	if !filter.From.IsZero() {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, formatTime(filter.From))
	}
	if !filter.To.IsZero() {
		conditions = append(conditions, "created_at < ?")
		args = append(args, formatTime(filter.To))
	}

	if len(conditions) > 0 {
		qb.WriteString(" WHERE ")
		qb.WriteString(strings.Join(conditions, " AND "))
	}

	qb.WriteString(" ORDER BY created_at " + filter.Order())

	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}
	qb.WriteString(" LIMIT ? OFFSET ?")
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, genoserr.Wrap(err, genoserr.CodeStoreDatabaseFailure, "querying audit log")
	}
	defer rows.Close() //nolint:errcheck // error on read-path close is not actionable

	var entries []*store.AuditEntry
	for rows.Next() {
		var (
			e                  store.AuditEntry
			details, createdAt string
		)
		if err := rows.Scan(&e.ID, &e.OrganizationID, &e.Actor, &e.Action, &e.EntityTable, &e.EntityID,
			&details, &e.AIModel, &e.TokensUsed, &e.ThreadID, &createdAt); err != nil {
			return nil, genoserr.Wrap(err, genoserr.CodeStoreDatabaseFailure, "scanning audit row")
		}
		if err := json.Unmarshal([]byte(details), &e.Details); err != nil {
			return nil, genoserr.Wrapf(err, genoserr.CodeStoreDatabaseFailure, "decoding audit %s details", e.ID)
		}
		e.CreatedAt, err = ParseTime(createdAt)
		if err != nil {
			return nil, genoserr.Wrapf(err, genoserr.CodeStoreDatabaseFailure, "parsing audit %s created_at", e.ID)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, genoserr.Wrap(err, genoserr.CodeStoreDatabaseFailure, "iterating audit rows")
	}
	return entries, nil
}
