// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Genos Contributors

package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"github.com/genos-dev/genos/internal/store"
	genoserr "github.com/genos-dev/genos/pkg/errors"
)

// vectorStore reads and writes the pgvector content_embeddings table.
type vectorStore struct {
	db *sql.DB
}

const upsertEmbeddingQuery = `INSERT INTO content_embeddings
(org_id, source_id, source_type, content_text, embedding, metadata)
VALUES ($1, $2, $3, $4, $5::vector, $6::jsonb)
ON CONFLICT (org_id, source_id, source_type) DO UPDATE SET
	content_text = EXCLUDED.content_text,
	embedding = EXCLUDED.embedding,
	metadata = EXCLUDED.metadata`

// <=> is pgvector cosine distance.
const matchEmbeddingsQuery = `SELECT source_id, source_type, content_text,
	1 - (embedding <=> $1::vector) AS similarity
FROM content_embeddings
WHERE org_id = $2
	AND ($3::text[] IS NULL OR source_type = ANY($3::text[]))
	AND 1 - (embedding <=> $1::vector) > $4
ORDER BY embedding <=> $1::vector
LIMIT $5`

func (s *vectorStore) UpsertEmbeddings(ctx context.Context, orgID string, docs []*store.Embedding) error {
	if len(docs) == 0 {
		return nil
	}
	if err := store.ValidateEmbeddings(docs); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return genoserr.Wrap(err, genoserr.CodeStoreDatabaseFailure, "beginning embedding upsert")
	}
	defer func() { _ = tx.Rollback() }()

	for _, d := range docs {
		meta := []byte("{}")
		if len(d.Metadata) > 0 {
			if meta, err = json.Marshal(d.Metadata); err != nil {
				return genoserr.Wrapf(err, genoserr.CodeStoreInvalidInput, "encoding metadata of %s", d.SourceID)
			}
		}
		if _, err := tx.ExecContext(ctx, upsertEmbeddingQuery,
			orgID, d.SourceID, d.SourceType, d.Content, VectorLiteral(d.Vector), string(meta),
		); err != nil {
			return genoserr.Wrapf(err, genoserr.CodeStoreDatabaseFailure, "upserting embedding %s/%s", d.SourceType, d.SourceID)
		}
	}

	if err := tx.Commit(); err != nil {
		return genoserr.Wrap(err, genoserr.CodeStoreDatabaseFailure, "committing embedding upsert")
	}
	return nil
}

func (s *vectorStore) Match(ctx context.Context, orgID string, query []float32, q store.MatchQuery) ([]*store.ContextDocument, error) {
	if len(query) == 0 {
		return nil, genoserr.New(genoserr.CodeStoreInvalidInput, "query vector is empty")
	}

	var sourceTypes any
	if len(q.SourceTypes) > 0 {
		sourceTypes = pq.Array(q.SourceTypes)
	}

	rows, err := s.db.QueryContext(ctx, matchEmbeddingsQuery,
		VectorLiteral(query), orgID, sourceTypes, q.Threshold, q.EffectiveTopK())
	if err != nil {
		return nil, genoserr.Wrap(err, genoserr.CodeStoreDatabaseFailure, "matching embeddings", genoserr.FieldOrgID(orgID))
	}
	defer func() { _ = rows.Close() }()

	var docs []*store.ContextDocument
	for rows.Next() {
		var (
			d       store.ContextDocument
			content sql.NullString
		)
		if err := rows.Scan(&d.SourceID, &d.SourceType, &content, &d.Similarity); err != nil {
			return nil, genoserr.Wrap(err, genoserr.CodeStoreDatabaseFailure, "scanning embedding match")
		}
		d.Content = content.String
		docs = append(docs, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, genoserr.Wrap(err, genoserr.CodeStoreDatabaseFailure, "iterating embedding matches")
	}
	return docs, nil
}

// VectorLiteral renders v in pgvector's text form, e.g. [0.5,0.25].
func VectorLiteral(v []float32) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	sb.WriteByte(']')
	return sb.String()
}
