// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Genos Contributors

package guardrail

// ParsePatterns exposes parsePatterns for white-box testing.
func ParsePatterns(data []byte) error {
	_, err := parsePatterns(data)
	return err
}
