// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Genos Contributors

// Package events publishes domain events (generations, tenant violations,
// schedule optimizations) to log and message-bus sinks. Emission is
// best-effort: emitters never return errors to the caller.
package events

import (
	"context"
	"time"
)

// Event types.
const (
	TypeAIGenerated       = "ai.generated"
	TypeTenantViolation   = "tenant.violation"
	TypeScheduleOptimized = "schedule.optimized"
)

// Event is one domain event.
type Event struct {
	Type           string         `json:"type"`
	OrganizationID string         `json:"organization_id"`
	UserID         string         `json:"user_id,omitempty"`
	Data           map[string]any `json:"data,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
}

// Emitter receives domain events.
type Emitter interface {
	Emit(ctx context.Context, event Event)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Emit(context.Context, Event) {}

func stamp(e Event) Event {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	return e
}
