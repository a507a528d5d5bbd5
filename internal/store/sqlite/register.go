// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Genos Contributors

package sqlite

import (
	"os"
	"path/filepath"

	"github.com/genos-dev/genos/internal/store"
	genoserr "github.com/genos-dev/genos/pkg/errors"
)

func init() {
	store.RegisterBackend("sqlite", open)
}

// open ignores privileged: one local database file has no separate
// administrative role.
func open(cfg *store.StorageConfig, _ bool) (store.Store, error) {
	path := cfg.SQLitePath
	if path == "" {
		return nil, genoserr.New(genoserr.CodeConfigValidateInvalidValue, "storage.sqlite.path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, genoserr.Wrapf(err, genoserr.CodeStoreDatabaseFailure, "creating %s", dir)
		}
	}
	return New(path)
}
