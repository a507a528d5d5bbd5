// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Genos Contributors

package provider_test

import (
	"testing"

	"github.com/genos-dev/genos/internal/provider"
	genoserr "github.com/genos-dev/genos/pkg/errors"
	"github.com/genos-dev/genos/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFullRegistry(t *testing.T) *provider.Registry {
	t.Helper()
	reg := provider.NewRegistry()
	for _, name := range provider.Names() {
		reg.Register(newMockGenerator(name))
	}
	require.NoError(t, reg.SetFailover([]string{"anthropic", "google", "openai"}))
	return reg
}

func TestRegistry_GetUnknown(t *testing.T) {
	reg := provider.NewRegistry()
	_, err := reg.Get("anthropic")
	require.Error(t, err)
	assert.True(t, genoserr.HasCode(err, genoserr.CodeProviderNotFound))
}

func TestRegistry_ChainByContentType(t *testing.T) {
	reg := newFullRegistry(t)

	tests := []struct {
		name string
		ct   types.ContentType
		want []string
	}{
		{"post uses default", types.ContentTypePost, []string{"anthropic", "google", "openai"}},
		{"hashtags go to gemini", types.ContentTypeHashtags, []string{"google", "anthropic", "openai"}},
		{"caption goes to gemini", types.ContentTypeCaption, []string{"google", "anthropic", "openai"}},
		{"blog goes to granite 128k", types.ContentTypeBlog, []string{"watsonx/ibm/granite-3.1-dense-128k", "anthropic", "google", "openai"}},
		{"reel goes to granite 8b", types.ContentTypeReel, []string{"watsonx/ibm/granite-3.1-8b-instruct", "anthropic", "google", "openai"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, r := range reg.Chain(tt.ct, "") {
				got = append(got, r.String())
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRegistry_ChainPreferredProvider(t *testing.T) {
	reg := newFullRegistry(t)

	chain := reg.Chain(types.ContentTypeHashtags, "openai")
	require.NotEmpty(t, chain)
	assert.Equal(t, provider.Route{Provider: "openai"}, chain[0])
	assert.Equal(t, "google", chain[1].Provider)
	assert.Len(t, chain, 3, "openai must not appear twice")
}

func TestRegistry_ChainPreferredKeepsRoutedModel(t *testing.T) {
	reg := newFullRegistry(t)

	chain := reg.Chain(types.ContentTypeEmail, "watsonx")
	require.NotEmpty(t, chain)
	assert.Equal(t, provider.Route{Provider: "watsonx", Model: provider.GraniteDense128K}, chain[0])
}

func TestRegistry_ChainPreferredWatsonxPicksModelByContentType(t *testing.T) {
	reg := newFullRegistry(t)
	require.NoError(t, reg.SetRoute(types.ContentTypeBlog, "anthropic"))

	tests := []struct {
		ct   types.ContentType
		want string
	}{
		{types.ContentTypeBlog, provider.GraniteDense128K},
		{types.ContentTypePost, provider.GraniteInstruct8B},
		{types.ContentTypeHashtags, provider.GraniteInstruct8B},
	}
	for _, tt := range tests {
		t.Run(string(tt.ct), func(t *testing.T) {
			chain := reg.Chain(tt.ct, "watsonx")
			require.NotEmpty(t, chain)
			assert.Equal(t, provider.Route{Provider: "watsonx", Model: tt.want}, chain[0])
		})
	}
}

func TestGraniteModelFor(t *testing.T) {
	assert.Equal(t, provider.GraniteDense128K, provider.GraniteModelFor(types.ContentTypeEmail))
	assert.Equal(t, provider.GraniteInstruct8B, provider.GraniteModelFor(types.ContentTypeCaption))
}

func TestRegistry_ChainSkipsUnregistered(t *testing.T) {
	reg := provider.NewRegistry()
	reg.Register(newMockGenerator("anthropic"))
	require.NoError(t, reg.SetFailover([]string{"bedrock", "anthropic"}))

	chain := reg.Chain(types.ContentTypeStory, "")
	assert.Equal(t, []provider.Route{{Provider: "anthropic"}}, chain)
}

func TestRegistry_SetDefaultAndRoute(t *testing.T) {
	reg := newFullRegistry(t)
	require.NoError(t, reg.SetDefault("openai/gpt-4.1-mini"))
	require.NoError(t, reg.SetRoute(types.ContentTypeHashtags, "anthropic/claude-haiku-4-5"))

	post := reg.Chain(types.ContentTypePost, "")
	assert.Equal(t, provider.Route{Provider: "openai", Model: "gpt-4.1-mini"}, post[0])

	tags := reg.Chain(types.ContentTypeHashtags, "")
	assert.Equal(t, provider.Route{Provider: "anthropic", Model: "claude-haiku-4-5"}, tags[0])
}

func TestRegistry_RejectsUnknownProviderRefs(t *testing.T) {
	reg := provider.NewRegistry()

	assert.Error(t, reg.SetDefault("mistral/large"))
	assert.Error(t, reg.SetFailover([]string{"anthropic", "cohere"}))
	assert.Error(t, reg.SetRoute(types.ContentTypePost, "nope"))
	assert.Error(t, reg.SetRoute(types.ContentType("newsletter"), "anthropic"))
}

func TestRegistry_CloseClosesGenerators(t *testing.T) {
	reg := provider.NewRegistry()
	g := newMockGenerator("google")
	reg.Register(g)

	require.NoError(t, reg.Close())
	assert.True(t, g.closed)
	assert.Equal(t, []string{"google"}, reg.Registered())
}

func TestResponse_TotalTokens(t *testing.T) {
	r := &provider.Response{InputTokens: 12, OutputTokens: 30}
	assert.Equal(t, 42, r.TotalTokens())
}
