// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Genos Contributors

package openai

import (
	openaisdk "github.com/openai/openai-go"

	"github.com/genos-dev/genos/internal/provider"
)

// BuildParams exposes buildParams for white-box testing.
var BuildParams = func(model string, req provider.Request) openaisdk.ChatCompletionNewParams {
	return buildParams(model, req)
}
