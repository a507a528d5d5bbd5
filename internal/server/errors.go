// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Genos Contributors

package server

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	genoserr "github.com/genos-dev/genos/pkg/errors"
)

// RetryAfterSeconds is advertised when every provider is unavailable.
const RetryAfterSeconds = "30"

// apiError maps a domain error to a huma status error. Client errors keep
// their message; server errors are logged and reported generically.
func apiError(err error) error {
	status := genoserr.HTTPStatus(err)
	switch {
	case status == http.StatusServiceUnavailable:
		slog.Warn("no provider available", "error", err)
		return huma.ErrorWithHeaders(
			huma.Error503ServiceUnavailable("all AI providers are currently unavailable"),
			http.Header{"Retry-After": {RetryAfterSeconds}},
		)
	case status >= http.StatusInternalServerError:
		slog.Error("request failed", "code", genoserr.CodeOf(err), "error", err)
		return huma.NewError(status, http.StatusText(status))
	default:
		return huma.NewError(status, err.Error())
	}
}
