// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Genos Contributors

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"

	"github.com/genos-dev/genos/internal/store"
	genoserr "github.com/genos-dev/genos/pkg/errors"
)

func init() {
	sqlite_vec.Auto()
}

// vectorStore keeps embeddings as sqlite-vec float32 blobs in an ordinary
// table and ranks them with vec_distance_cosine. Rows are scoped by
// organization, so a brute-force scan stays small.
type vectorStore struct {
	db *sql.DB
}

const vectorDDL = `
CREATE TABLE IF NOT EXISTS content_embeddings (
	organization_id TEXT NOT NULL,
	source_id       TEXT NOT NULL,
	source_type     TEXT NOT NULL,
	content_text    TEXT NOT NULL DEFAULT '',
	embedding       BLOB NOT NULL,
	dimensions      INTEGER NOT NULL,
	metadata        TEXT NOT NULL DEFAULT '{}',
	updated_at      TEXT NOT NULL,
	PRIMARY KEY (organization_id, source_id, source_type)
);
`

func (v *vectorStore) UpsertEmbeddings(ctx context.Context, orgID string, docs []*store.Embedding) error {
	if len(docs) == 0 {
		return nil
	}
	if err := store.ValidateEmbeddings(docs); err != nil {
		return err
	}

	tx, err := v.db.BeginTx(ctx, nil)
	if err != nil {
		return genoserr.Wrap(err, genoserr.CodeStoreDatabaseFailure, "beginning embedding upsert")
	}
	defer func() { _ = tx.Rollback() }()

	const q = `INSERT INTO content_embeddings
(organization_id, source_id, source_type, content_text, embedding, dimensions, metadata, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(organization_id, source_id, source_type) DO UPDATE SET
	content_text = excluded.content_text,
	embedding = excluded.embedding,
	dimensions = excluded.dimensions,
	metadata = excluded.metadata,
	updated_at = excluded.updated_at`

	now := formatTime(time.Now())
	for _, d := range docs {
		blob, err := sqlite_vec.SerializeFloat32(d.Vector)
		if err != nil {
			return genoserr.Wrapf(err, genoserr.CodeStoreInvalidInput, "serializing embedding %s", d.SourceID)
		}
		meta := []byte("{}")
		if len(d.Metadata) > 0 {
			if meta, err = json.Marshal(d.Metadata); err != nil {
				return genoserr.Wrapf(err, genoserr.CodeStoreInvalidInput, "encoding metadata of %s", d.SourceID)
			}
		}
		if _, err := tx.ExecContext(ctx, q,
			orgID, d.SourceID, d.SourceType, d.Content, blob, len(d.Vector), string(meta), now,
		); err != nil {
			return genoserr.Wrapf(err, genoserr.CodeStoreDatabaseFailure, "upserting embedding %s/%s", d.SourceType, d.SourceID)
		}
	}

	if err := tx.Commit(); err != nil {
		return genoserr.Wrap(err, genoserr.CodeStoreDatabaseFailure, "committing embedding upsert")
	}
	return nil
}

func (v *vectorStore) Match(ctx context.Context, orgID string, query []float32, q store.MatchQuery) ([]*store.ContextDocument, error) {
	if len(query) == 0 {
		return nil, genoserr.New(genoserr.CodeStoreInvalidInput, "query vector is empty")
	}
	blob, err := sqlite_vec.SerializeFloat32(query)
	if err != nil {
		return nil, genoserr.Wrap(err, genoserr.CodeStoreInvalidInput, "serializing query vector")
	}

	// Rows of another dimension cannot be compared and are skipped.
	inner := `SELECT source_id, source_type, content_text,
	1 - vec_distance_cosine(embedding, ?) AS similarity
FROM content_embeddings
WHERE organization_id = ? AND dimensions = ?`
	args := []any{blob, orgID, len(query)}
	if len(q.SourceTypes) > 0 {
		inner += ` AND source_type IN (` + strings.TrimSuffix(strings.Repeat("?,", len(q.SourceTypes)), ",") + `)`
		for _, st := range q.SourceTypes {
			args = append(args, st)
		}
	}
	stmt := `SELECT source_id, source_type, content_text, similarity FROM (` + inner + `)
WHERE similarity > ?
ORDER BY similarity DESC
LIMIT ?`
	args = append(args, q.Threshold, q.EffectiveTopK())

	rows, err := v.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, genoserr.Wrap(err, genoserr.CodeStoreDatabaseFailure, "matching embeddings", genoserr.FieldOrgID(orgID))
	}
	defer func() { _ = rows.Close() }()

	var docs []*store.ContextDocument
	for rows.Next() {
		var d store.ContextDocument
		if err := rows.Scan(&d.SourceID, &d.SourceType, &d.Content, &d.Similarity); err != nil {
			return nil, genoserr.Wrap(err, genoserr.CodeStoreDatabaseFailure, "scanning embedding match")
		}
		docs = append(docs, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, genoserr.Wrap(err, genoserr.CodeStoreDatabaseFailure, "iterating embedding matches")
	}
	return docs, nil
}
