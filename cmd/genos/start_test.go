// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Genos Contributors

package main

import (
	"context"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genos-dev/genos/internal/config"
	"github.com/genos-dev/genos/internal/secrets"
	genoserr "github.com/genos-dev/genos/pkg/errors"
)

func useKeyringResolver(t *testing.T, mock *mockSecretStore) {
	t.Helper()
	orig := newSecretResolver
	newSecretResolver = func(context.Context, *viper.Viper) (*secrets.Resolver, error) {
		return &secrets.Resolver{Keyring: mock}, nil
	}
	t.Cleanup(func() { newSecretResolver = orig })
}

func newTestViper() *viper.Viper {
	v := viper.New()
	config.SetDefaults(v)
	return v
}

func TestLoadConfig_ResolvesKeyringReferences(t *testing.T) {
	useKeyringResolver(t, newMockSecretStore("anthropic-api-key", "sk-ant-secret"))

	v := newTestViper()
	v.Set("providers.anthropic.api_key", "keyring://genos/anthropic-api-key")
	v.Set("providers.openai.api_key", "sk-inline")

	cfg, err := loadConfig(context.Background(), v)
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-secret", cfg.Providers["anthropic"].APIKey)
	assert.Equal(t, "sk-inline", cfg.Providers["openai"].APIKey)
}

func TestLoadConfig_UnresolvedSecretFails(t *testing.T) {
	useKeyringResolver(t, newMockSecretStore())

	v := newTestViper()
	v.Set("providers.anthropic.api_key", "keyring://genos/missing")

	_, err := loadConfig(context.Background(), v)
	require.Error(t, err)
	assert.True(t, genoserr.HasCode(err, genoserr.CodeSecretResolveFailure))
}

func TestLoadConfig_InvalidConfig(t *testing.T) {
	useKeyringResolver(t, newMockSecretStore())

	v := newTestViper()
	v.Set("routing.default", "nonexistent")

	_, err := loadConfig(context.Background(), v)
	require.Error(t, err)
	assert.True(t, genoserr.IsInvalidInput(err))
}

func TestStartCommand_InvalidListenOverride(t *testing.T) {
	useKeyringResolver(t, newMockSecretStore("anthropic-api-key", "sk-ant-secret"))

	_, err := executeCmd(t, nil, "start", "--listen", "not-an-address")
	require.Error(t, err)
	assert.True(t, genoserr.IsInvalidInput(err))
}
