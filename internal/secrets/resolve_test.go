// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Genos Contributors

package secrets_test

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genos-dev/genos/internal/secrets"
	genoserr "github.com/genos-dev/genos/pkg/errors"
)

func TestParseKeyringURI(t *testing.T) {
	tests := []struct {
		name        string
		uri         string
		wantService string
		wantKey     string
		wantErr     bool
	}{
		{"valid", "keyring://genos/api-key", "genos", "api-key", false},
		{"slashes in key", "keyring://genos/path/to/key", "genos", "path/to/key", false},
		{"other scheme", "awssm://secret", "", "", true},
		{"missing key", "keyring://genos/", "", "", true},
		{"missing service", "keyring:///key", "", "", true},
		{"no path", "keyring://genos", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, key, err := secrets.ParseKeyringURI(tt.uri)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, genoserr.HasCode(err, genoserr.CodeSecretInvalidInput))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantService, svc)
			assert.Equal(t, tt.wantKey, key)
		})
	}
}

func TestParseAWSURI(t *testing.T) {
	tests := []struct {
		name    string
		uri     string
		wantID  string
		wantKey string
		wantErr bool
	}{
		{"whole secret", "awssm://prod/genos/anthropic", "prod/genos/anthropic", "", false},
		{"json key", "awssm://prod/genos/providers#openai", "prod/genos/providers", "openai", false},
		{"arn", "awssm://arn:aws:secretsmanager:us-east-1:1:secret:x#k", "arn:aws:secretsmanager:us-east-1:1:secret:x", "k", false},
		{"empty id", "awssm://#key", "", "", true},
		{"empty key", "awssm://prod/genos#", "", "", true},
		{"other scheme", "keyring://a/b", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, key, err := secrets.ParseAWSURI(tt.uri)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, genoserr.IsInvalidInput(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, id)
			assert.Equal(t, tt.wantKey, key)
		})
	}
}

func newResolver(t *testing.T) *secrets.Resolver {
	t.Helper()
	ks := secrets.NewKeyringStore()
	require.NoError(t, ks.Store("genos", "anthropic-api-key", "sk-ant-secret"))

	fake := &fakeSecretsManager{values: map[string]*string{
		"prod/genos/providers": aws.String(`{"openai":"sk-oai-secret","port":8080}`),
		"prod/genos/watsonx":   aws.String("wx-secret"),
	}}
	return &secrets.Resolver{
		Keyring: ks,
		AWS:     secrets.NewAWSSecretsManagerWithClient(fake, 0),
	}
}

func TestResolver_Resolve(t *testing.T) {
	r := newResolver(t)

	tests := []struct {
		name     string
		value    string
		want     string
		wantCode genoserr.Code
	}{
		{name: "literal", value: "sk-literal", want: "sk-literal"},
		{name: "env style", value: "${ANTHROPIC_API_KEY}", want: "${ANTHROPIC_API_KEY}"},
		{name: "keyring", value: "keyring://genos/anthropic-api-key", want: "sk-ant-secret"},
		{name: "aws whole", value: "awssm://prod/genos/watsonx", want: "wx-secret"},
		{name: "aws json key", value: "awssm://prod/genos/providers#openai", want: "sk-oai-secret"},
		{name: "aws non-string key", value: "awssm://prod/genos/providers#port", wantCode: genoserr.CodeSecretNotFound},
		{name: "aws not json", value: "awssm://prod/genos/watsonx#key", wantCode: genoserr.CodeSecretResolveFailure},
		{name: "keyring missing", value: "keyring://genos/nope", wantCode: genoserr.CodeSecretResolveFailure},
		{name: "malformed", value: "keyring://bad", wantCode: genoserr.CodeSecretInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(context.Background(), tt.value)
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, genoserr.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolver_MissingBackend(t *testing.T) {
	r := &secrets.Resolver{}

	_, err := r.Resolve(context.Background(), "awssm://prod/genos/watsonx")
	require.Error(t, err)
	_, err = r.Resolve(context.Background(), "keyring://genos/key")
	require.Error(t, err)
}

func TestResolveViperSecrets(t *testing.T) {
	r := newResolver(t)

	v := viper.New()
	v.Set("providers.anthropic.api_key", "keyring://genos/anthropic-api-key")
	v.Set("providers.openai.api_key", "awssm://prod/genos/providers#openai")
	v.Set("networking.listen", "127.0.0.1:8420")

	require.NoError(t, secrets.ResolveViperSecrets(context.Background(), v, r))

	assert.Equal(t, "sk-ant-secret", v.GetString("providers.anthropic.api_key"))
	assert.Equal(t, "sk-oai-secret", v.GetString("providers.openai.api_key"))
	assert.Equal(t, "127.0.0.1:8420", v.GetString("networking.listen"))
}

func TestResolveViperSecrets_ReportsUnresolvedKeys(t *testing.T) {
	r := newResolver(t)

	v := viper.New()
	v.Set("providers.anthropic.api_key", "keyring://genos/nonexistent-key")

	err := secrets.ResolveViperSecrets(context.Background(), v, r)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "providers.anthropic.api_key")
	assert.Contains(t, err.Error(), "keyring://genos/nonexistent-key")
	assert.Equal(t, "keyring://genos/nonexistent-key", v.GetString("providers.anthropic.api_key"))
}
