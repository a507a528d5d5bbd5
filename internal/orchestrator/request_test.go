// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Genos Contributors

package orchestrator_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genos-dev/genos/internal/orchestrator"
	genoserr "github.com/genos-dev/genos/pkg/errors"
)

func TestRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*orchestrator.Request)
		wantErr bool
	}{
		{name: "valid", mutate: func(*orchestrator.Request) {}},
		{name: "valid preferred provider", mutate: func(r *orchestrator.Request) { r.PreferredProvider = "watsonx" }},
		{name: "max length multibyte", mutate: func(r *orchestrator.Request) { r.Prompt = strings.Repeat("é", orchestrator.MaxPromptLength) }},
		{name: "empty prompt", mutate: func(r *orchestrator.Request) { r.Prompt = "" }, wantErr: true},
		{name: "prompt too long", mutate: func(r *orchestrator.Request) { r.Prompt = strings.Repeat("a", orchestrator.MaxPromptLength+1) }, wantErr: true},
		{name: "unknown content type", mutate: func(r *orchestrator.Request) { r.ContentType = "tweetstorm" }, wantErr: true},
		{name: "brand id not uuid", mutate: func(r *orchestrator.Request) { r.BrandID = "brand-1" }, wantErr: true},
		{name: "unknown provider", mutate: func(r *orchestrator.Request) { r.PreferredProvider = "mistral" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := postRequest()
			tt.mutate(&req)
			err := req.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, genoserr.IsInvalidInput(err))
			assert.Equal(t, 400, genoserr.HTTPStatus(err))
		})
	}
}

func TestRequest_WantsRAG(t *testing.T) {
	on, off := true, false
	req := postRequest()
	assert.True(t, req.WantsRAG())

	req.UseRAG = &on
	assert.True(t, req.WantsRAG())

	req.UseRAG = &off
	assert.False(t, req.WantsRAG())
}
