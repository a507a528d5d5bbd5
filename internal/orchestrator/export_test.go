// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Genos Contributors

package orchestrator

// SetThreadIDFunc overrides thread id generation (for testing).
func (o *Orchestrator) SetThreadIDFunc(fn func() string) { o.newThreadID = fn }
