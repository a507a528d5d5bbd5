// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Genos Contributors

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/genos-dev/genos/internal/store"
	genoserr "github.com/genos-dev/genos/pkg/errors"
)

// Compile-time interface checks.
var (
	_ store.Store          = (*Store)(nil)
	_ store.BrandStore     = (*brandStore)(nil)
	_ store.OwnershipStore = (*ownershipStore)(nil)
	_ store.AnalyticsStore = (*analyticsStore)(nil)
	_ store.AuditStore     = (*auditStore)(nil)
	_ store.VectorStore    = (*vectorStore)(nil)
)

const dateLayout = "2006-01-02"

// Store implements store.Store backed by a single SQLite database.
type Store struct {
	db        *sql.DB
	brands    *brandStore
	ownership *ownershipStore
	analytics *analyticsStore
	audit     *auditStore
	vectors   *vectorStore
}

// New opens (or creates) a SQLite database at dbPath and initialises the
// tenant tables, analytics_daily, audit_log and content_embeddings.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, genoserr.Wrap(err, genoserr.CodeStoreDatabaseFailure, "opening sqlite db")
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, genoserr.Wrap(err, genoserr.CodeStoreDatabaseFailure, "pinging sqlite db")
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, genoserr.Wrap(err, genoserr.CodeStoreDatabaseFailure, "migrating sqlite db")
	}

	return &Store{
		db:        db,
		brands:    &brandStore{db: db},
		ownership: &ownershipStore{db: db},
		analytics: &analyticsStore{db: db},
		audit:     &auditStore{db: db},
		vectors:   &vectorStore{db: db},
	}, nil
}

func migrate(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS brands (
	id                 TEXT PRIMARY KEY,
	organization_id    TEXT NOT NULL,
	name               TEXT NOT NULL DEFAULT '',
	brand_voice        TEXT NOT NULL DEFAULT '',
	target_audience    TEXT NOT NULL DEFAULT '',
	industry           TEXT NOT NULL DEFAULT '',
	content_pillars    TEXT NOT NULL DEFAULT '',
	forbidden_words    TEXT NOT NULL DEFAULT '',
	mandatory_elements TEXT NOT NULL DEFAULT '',
	regional_expertise TEXT NOT NULL DEFAULT '{}',
	target_language    TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_brands_org ON brands(organization_id);

CREATE TABLE IF NOT EXISTS clients (
	id              TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL,
	name            TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS projects (
	id              TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL,
	name            TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS briefings (
	id              TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL,
	name            TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS documents (
	id              TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL,
	name            TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS posts (
	id              TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL,
	name            TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS analytics_daily (
	organization_id TEXT NOT NULL,
	date            TEXT NOT NULL,
	platform        TEXT NOT NULL,
	engagement_rate REAL NOT NULL DEFAULT 0,
	impressions     INTEGER NOT NULL DEFAULT 0,
	reach           INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (organization_id, date, platform)
);

CREATE TABLE IF NOT EXISTS audit_log (
	id              TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL DEFAULT '',
	actor           TEXT NOT NULL DEFAULT '',
	action          TEXT NOT NULL DEFAULT '',
	entity_table    TEXT NOT NULL DEFAULT '',
	entity_id       TEXT NOT NULL DEFAULT '',
	details         TEXT NOT NULL DEFAULT '{}',
	ai_model        TEXT NOT NULL DEFAULT '',
	tokens_used     INTEGER NOT NULL DEFAULT 0,
	thread_id       TEXT NOT NULL DEFAULT '',
	created_at      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_log_created_at ON audit_log(created_at);
CREATE INDEX IF NOT EXISTS idx_audit_log_org_action ON audit_log(organization_id, action);
`
	if _, err := db.Exec(ddl); err != nil {
		return err
	}
	_, err := db.Exec(vectorDDL)
	return err
}

// Brands returns the BrandStore sub-store.
func (s *Store) Brands() store.BrandStore { return s.brands }

// Ownership returns the OwnershipStore sub-store.
func (s *Store) Ownership() store.OwnershipStore { return s.ownership }

// Analytics returns the AnalyticsStore sub-store.
func (s *Store) Analytics() store.AnalyticsStore { return s.analytics }

// AuditLog returns the AuditStore sub-store.
func (s *Store) AuditLog() store.AuditStore { return s.audit }

// Vectors returns the VectorStore sub-store.
func (s *Store) Vectors() store.VectorStore { return s.vectors }

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return genoserr.Wrap(err, genoserr.CodeStoreDatabaseFailure, "pinging sqlite db")
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error { return s.db.Close() }

// InsertOwned inserts a minimal row into one of the tenant-scoped tables.
// It backs local fixtures; production rows are written by the product
// backend.
func (s *Store) InsertOwned(ctx context.Context, table, id, orgID string) error {
	if err := store.ValidateTable(table); err != nil {
		return err
	}
	if table == "brands" {
		return s.UpsertBrand(ctx, &store.Brand{ID: id, OrganizationID: orgID})
	}
	q := fmt.Sprintf(`INSERT INTO %s (id, organization_id) VALUES (?, ?)`, table)
	if _, err := s.db.ExecContext(ctx, q, id, orgID); err != nil {
		return genoserr.Wrapf(err, genoserr.CodeStoreDatabaseFailure, "inserting %s row %s", table, id)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseTime parses a timestamp stored by formatTime.
func ParseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
