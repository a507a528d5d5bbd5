// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Genos Contributors

package events

import (
	"context"
	"log/slog"
)

// LogEmitter writes events to a structured logger.
type LogEmitter struct {
	logger *slog.Logger
}

// NewLogEmitter returns a LogEmitter. A nil logger uses slog.Default().
func NewLogEmitter(logger *slog.Logger) *LogEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogEmitter{logger: logger}
}

func (e *LogEmitter) Emit(ctx context.Context, event Event) {
	event = stamp(event)
	e.logger.InfoContext(ctx, "event",
		"type", event.Type,
		"organization_id", event.OrganizationID,
		"user_id", event.UserID,
		"data", event.Data,
		"timestamp", event.Timestamp,
	)
}
