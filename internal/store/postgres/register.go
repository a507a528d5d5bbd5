// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Genos Contributors

package postgres

import (
	"context"
	"time"

	"github.com/genos-dev/genos/internal/store"
	genoserr "github.com/genos-dev/genos/pkg/errors"
)

const connectTimeout = 10 * time.Second

func init() {
	store.RegisterBackend("postgres", open)
}

func open(cfg *store.StorageConfig, privileged bool) (store.Store, error) {
	dsn := cfg.PostgresDSN
	if privileged && cfg.PostgresAdminDSN != "" {
		dsn = cfg.PostgresAdminDSN
	}
	if dsn == "" {
		return nil, genoserr.New(genoserr.CodeConfigValidateInvalidValue, "storage.postgres.dsn is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	return Open(ctx, dsn)
}
