// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Genos Contributors

package events

import "context"

// MultiEmitter fans one event out to every emitter in order.
type MultiEmitter struct {
	emitters []Emitter
}

func NewMultiEmitter(emitters ...Emitter) *MultiEmitter {
	return &MultiEmitter{emitters: emitters}
}

func (m *MultiEmitter) Emit(ctx context.Context, event Event) {
	event = stamp(event)
	for _, e := range m.emitters {
		e.Emit(ctx, event)
	}
}
