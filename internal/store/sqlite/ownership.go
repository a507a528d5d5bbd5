// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Genos Contributors

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/genos-dev/genos/internal/store"
	genoserr "github.com/genos-dev/genos/pkg/errors"
)

type ownershipStore struct {
	db *sql.DB
}

func (s *ownershipStore) OwnerOrg(ctx context.Context, table, entityID string) (string, error) {
	if err := store.ValidateTable(table); err != nil {
		return "", err
	}

	// table is allowlisted above.
	q := fmt.Sprintf(`SELECT organization_id FROM %s WHERE id = ?`, table)

	var orgID string
	err := s.db.QueryRowContext(ctx, q, entityID).Scan(&orgID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", genoserr.New(genoserr.CodeStoreEntityNotFound, "record not found",
			genoserr.FieldTable(table), genoserr.Field("entity_id", entityID))
	}
	if err != nil {
		return "", genoserr.Wrapf(err, genoserr.CodeStoreDatabaseFailure, "reading owner of %s/%s", table, entityID)
	}
	return orgID, nil
}
