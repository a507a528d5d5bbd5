// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Genos Contributors

package provider

import (
	"context"
	"io"
	"net/http"
	"strings"

	genoserr "github.com/genos-dev/genos/pkg/errors"
)

// keyCheck describes the lightweight endpoint used to confirm a credential.
type keyCheck struct {
	baseURL string
	path    string
	headers func(key string) map[string]string
	query   func(key string) string
}

var keyChecks = map[string]keyCheck{
	NameAnthropic: {
		baseURL: "https://api.anthropic.com",
		path:    "/v1/models",
		headers: func(key string) map[string]string {
			return map[string]string{"x-api-key": key, "anthropic-version": "2023-06-01"}
		},
	},
	NameOpenAI: {
		baseURL: "https://api.openai.com",
		path:    "/v1/models",
		headers: func(key string) map[string]string {
			return map[string]string{"Authorization": "Bearer " + key}
		},
	},
	NameGoogle: {
		// Google's Generative Language API authenticates via query parameter.
		baseURL: "https://generativelanguage.googleapis.com",
		path:    "/v1/models",
		query:   func(key string) string { return "key=" + key },
	},
}

// ValidateKey makes a lightweight HTTP call to the provider's models endpoint
// to confirm the API key is valid. baseURL overrides the public endpoint when
// non-empty. Providers without a key endpoint (watsonx, bedrock) are rejected.
func ValidateKey(ctx context.Context, client *http.Client, name, key, baseURL string) error {
	check, ok := keyChecks[name]
	if !ok {
		return genoserr.Errorf(genoserr.CodeProviderKeyInvalid, "no key check for provider: %s", name)
	}
	if baseURL == "" {
		baseURL = check.baseURL
	}

	url := strings.TrimRight(baseURL, "/") + check.path
	if check.query != nil {
		url += "?" + check.query(key)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return genoserr.Errorf(genoserr.CodeProviderKeyCheckFailed, "building validation request: %w", err)
	}
	if check.headers != nil {
		for k, v := range check.headers(key) {
			req.Header.Set(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return genoserr.Errorf(genoserr.CodeProviderKeyCheckFailed, "validating %s key: %w", name, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return genoserr.Errorf(genoserr.CodeProviderKeyInvalid, "invalid %s API key (HTTP %d)", name, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return genoserr.Errorf(genoserr.CodeProviderKeyCheckFailed, "%s validation failed (HTTP %d)", name, resp.StatusCode)
	}

	return nil
}
