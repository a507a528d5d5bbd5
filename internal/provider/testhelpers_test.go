// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Genos Contributors

package provider_test

import (
	"context"

	"github.com/genos-dev/genos/internal/provider"
)

// mockGenerator is a reusable provider.Generator for tests.
type mockGenerator struct {
	name   string
	closed bool
}

func newMockGenerator(name string) *mockGenerator {
	return &mockGenerator{name: name}
}

func (m *mockGenerator) Name() string { return m.name }

func (m *mockGenerator) Generate(_ context.Context, req provider.Request) (*provider.Response, error) {
	return &provider.Response{Text: "hello", Model: req.Model, InputTokens: 10, OutputTokens: 5}, nil
}

func (m *mockGenerator) Close() error {
	m.closed = true
	return nil
}
