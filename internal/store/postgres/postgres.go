// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Genos Contributors

// Package postgres implements the store interfaces over the product
// Postgres database. The schema is owned by the product backend; this
// package reads tenant data, appends audit entries and maintains the
// pgvector content_embeddings index.
package postgres

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"

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

// Connection pool limits.
const (
	maxOpenConns    = 20
	maxIdleConns    = 5
	connMaxLifetime = 30 * time.Minute
)

// Store implements store.Store over a Postgres connection pool.
type Store struct {
	db        *sql.DB
	brands    *brandStore
	ownership *ownershipStore
	analytics *analyticsStore
	audit     *auditStore
	vectors   *vectorStore
}

// Open connects to dsn and verifies the connection.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, genoserr.Wrap(err, genoserr.CodeStoreDatabaseFailure, "opening postgres")
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, genoserr.Wrap(err, genoserr.CodeStoreDatabaseFailure, "pinging postgres")
	}
	return New(db), nil
}

// New wraps an existing connection pool.
func New(db *sql.DB) *Store {
	return &Store{
		db:        db,
		brands:    &brandStore{db: db},
		ownership: &ownershipStore{db: db},
		analytics: &analyticsStore{db: db},
		audit:     &auditStore{db: db},
		vectors:   &vectorStore{db: db},
	}
}

func (s *Store) Brands() store.BrandStore        { return s.brands }
func (s *Store) Ownership() store.OwnershipStore { return s.ownership }
func (s *Store) Analytics() store.AnalyticsStore { return s.analytics }
func (s *Store) AuditLog() store.AuditStore      { return s.audit }
func (s *Store) Vectors() store.VectorStore      { return s.vectors }

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return genoserr.Wrap(err, genoserr.CodeStoreDatabaseFailure, "pinging postgres")
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }
