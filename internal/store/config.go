// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Genos Contributors

package store

// StorageConfig controls which backend the store factory uses.
type StorageConfig struct {
	Backend string // "sqlite" (default) or "postgres"

	SQLitePath string

	PostgresDSN string
	// PostgresAdminDSN is used for the privileged store. Empty falls back
	// to PostgresDSN.
	PostgresAdminDSN string
}
