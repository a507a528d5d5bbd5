// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Genos Contributors

package store

import (
	"sort"
	"sync"

	genoserr "github.com/genos-dev/genos/pkg/errors"
)

// Factory opens a Store. privileged selects the administrative connection
// used for writes that must bypass tenant scoping, such as violation audits.
type Factory func(cfg *StorageConfig, privileged bool) (Store, error)

var (
	factories   = map[string]Factory{}
	factoriesMu sync.RWMutex
)

// RegisterBackend registers the factory for a named storage backend.
// Backend packages call this from init(). This function is goroutine-safe.
func RegisterBackend(name string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = f
}

// Backends returns the registered backend names, sorted.
func Backends() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// resolveBackend returns the effective backend name, defaulting to "sqlite".
func resolveBackend(cfg *StorageConfig) string {
	if cfg.Backend == "" {
		return "sqlite"
	}
	return cfg.Backend
}

func open(cfg *StorageConfig, privileged bool) (Store, error) {
	backend := resolveBackend(cfg)

	factoriesMu.RLock()
	factory, ok := factories[backend]
	factoriesMu.RUnlock()
	if !ok {
		return nil, genoserr.Errorf(genoserr.CodeStoreBackendUnsupported, "unsupported storage backend: %q", backend)
	}
	return factory(cfg, privileged)
}

// Open returns the tenant-scoped store.
func Open(cfg *StorageConfig) (Store, error) {
	return open(cfg, false)
}

// OpenPrivileged returns the administrative store.
func OpenPrivileged(cfg *StorageConfig) (Store, error) {
	return open(cfg, true)
}
