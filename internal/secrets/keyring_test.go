// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Genos Contributors

package secrets_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/genos-dev/genos/internal/secrets"
	genoserr "github.com/genos-dev/genos/pkg/errors"
)

func init() {
	keyring.MockInit()
}

func TestKeyringStore_StoreAndRetrieve(t *testing.T) {
	ks := secrets.NewKeyringStore()

	require.NoError(t, ks.Store("test-store-retrieve", "anthropic-api-key", "sk-ant-123"))

	val, err := ks.Retrieve("test-store-retrieve", "anthropic-api-key")
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-123", val)
}

func TestKeyringStore_NotFound(t *testing.T) {
	ks := secrets.NewKeyringStore()

	_, err := ks.Retrieve("no-such-service", "no-key")
	require.Error(t, err)
	assert.True(t, genoserr.HasCode(err, genoserr.CodeSecretNotFound), "got: %v", err)
	assert.True(t, genoserr.IsNotFound(err))

	err = ks.Delete("no-such-service", "no-key")
	require.Error(t, err)
	assert.True(t, genoserr.HasCode(err, genoserr.CodeSecretNotFound))
}

func TestKeyringStore_DeleteUpdatesIndex(t *testing.T) {
	ks := secrets.NewKeyringStore()
	svc := "test-delete"

	require.NoError(t, ks.Store(svc, "key-x", "val"))
	require.NoError(t, ks.Store(svc, "key-y", "val"))
	require.NoError(t, ks.Delete(svc, "key-x"))

	_, err := ks.Retrieve(svc, "key-x")
	assert.True(t, genoserr.HasCode(err, genoserr.CodeSecretNotFound))

	keys, err := ks.List(svc)
	require.NoError(t, err)
	assert.Equal(t, []string{"key-y"}, keys)
}

func TestKeyringStore_List(t *testing.T) {
	ks := secrets.NewKeyringStore()
	svc := "test-list"

	keys, err := ks.List(svc)
	require.NoError(t, err)
	assert.Empty(t, keys)

	require.NoError(t, ks.Store(svc, "key-a", "val-a"))
	require.NoError(t, ks.Store(svc, "key-b", "val-b"))
	require.NoError(t, ks.Store(svc, "key-a", "val-a2"))

	keys, err = ks.List(svc)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"key-a", "key-b"}, keys)
}

func TestKeyringStore_InvalidNames(t *testing.T) {
	ks := secrets.NewKeyringStore()

	tests := []struct {
		name    string
		service string
		key     string
	}{
		{"empty service", "", "key"},
		{"empty key", "svc", ""},
		{"reserved index key", "svc", "svc::keys-index"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ks.Store(tt.service, tt.key, "val")
			require.Error(t, err)
			assert.True(t, genoserr.HasCode(err, genoserr.CodeSecretInvalidInput))
			assert.True(t, genoserr.IsInvalidInput(err))
		})
	}
}

func TestKeyringStore_EmptyValueAllowed(t *testing.T) {
	ks := secrets.NewKeyringStore()
	require.NoError(t, ks.Store("test-empty", "key", ""))

	val, err := ks.Retrieve("test-empty", "key")
	require.NoError(t, err)
	assert.Empty(t, val)
}
