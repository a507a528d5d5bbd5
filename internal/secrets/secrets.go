// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Genos Contributors

// Package secrets resolves secret references found in configuration values.
// Two schemes are understood: keyring://service/key reads the OS keyring and
// awssm://secret-id[#json-key] reads AWS Secrets Manager.
package secrets

import "context"

// DefaultService is the keyring service the CLI stores provider keys under.
const DefaultService = "genos"

// Store provides secure secret storage operations.
type Store interface {
	// Store saves a secret value under the given service and key.
	Store(service, key, value string) error

	// Retrieve fetches the secret value for the given service and key.
	// Returns CodeSecretNotFound if the key does not exist.
	Retrieve(service, key string) (string, error)

	// Delete removes the secret for the given service and key.
	// Returns CodeSecretNotFound if the key does not exist.
	Delete(service, key string) error

	// List returns all key names stored under the given service.
	List(service string) ([]string, error)
}

// Fetcher reads a remote secret by id. The returned string is the raw
// secret payload.
type Fetcher interface {
	Fetch(ctx context.Context, secretID string) (string, error)
}
