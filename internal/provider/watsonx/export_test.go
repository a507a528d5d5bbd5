// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Genos Contributors

package watsonx

import "time"

// SetNowFunc overrides the token cache clock for testing.
func (p *Provider) SetNowFunc(fn func() time.Time) {
	p.mu.Lock()
	p.nowFunc = fn
	p.mu.Unlock()
}
