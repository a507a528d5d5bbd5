// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Genos Contributors

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/genos-dev/genos/internal/store"
	genoserr "github.com/genos-dev/genos/pkg/errors"
)

type brandStore struct {
	db *sql.DB
}

func (s *brandStore) GetBrand(ctx context.Context, orgID, brandID string) (*store.Brand, error) {
	const q = `SELECT id, organization_id, name, brand_voice, target_audience, industry,
content_pillars, forbidden_words, mandatory_elements, regional_expertise, target_language
FROM brands WHERE id = ? AND organization_id = ?`

	var (
		b                                   store.Brand
		pillars, forbidden, mandatory, expr string
	)
	err := s.db.QueryRowContext(ctx, q, brandID, orgID).Scan(
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
	if expr != "" {
		if err := json.Unmarshal([]byte(expr), &b.RegionalExpertise); err != nil {
			return nil, genoserr.Wrapf(err, genoserr.CodeStoreDatabaseFailure, "decoding brand %s regional_expertise", brandID)
		}
	}
	return &b, nil
}

// UpsertBrand inserts or replaces a brand row.
func (s *Store) UpsertBrand(ctx context.Context, b *store.Brand) error {
	expr := "{}"
	if b.RegionalExpertise != nil {
		raw, err := json.Marshal(b.RegionalExpertise)
		if err != nil {
			return genoserr.Wrap(err, genoserr.CodeStoreInvalidInput, "encoding regional_expertise")
		}
		expr = string(raw)
	}

	const q = `INSERT INTO brands (id, organization_id, name, brand_voice, target_audience, industry,
content_pillars, forbidden_words, mandatory_elements, regional_expertise, target_language)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	organization_id = excluded.organization_id,
	name = excluded.name,
	brand_voice = excluded.brand_voice,
	target_audience = excluded.target_audience,
	industry = excluded.industry,
	content_pillars = excluded.content_pillars,
	forbidden_words = excluded.forbidden_words,
	mandatory_elements = excluded.mandatory_elements,
	regional_expertise = excluded.regional_expertise,
	target_language = excluded.target_language`

	_, err := s.db.ExecContext(ctx, q,
		b.ID, b.OrganizationID, b.Name, b.BrandVoice, b.TargetAudience, b.Industry,
		store.JoinList(b.ContentPillars), store.JoinList(b.ForbiddenWords),
		store.JoinList(b.MandatoryElements), expr, b.TargetLanguage,
	)
	if err != nil {
		return genoserr.Wrapf(err, genoserr.CodeStoreDatabaseFailure, "upserting brand %s", b.ID)
	}
	return nil
}
