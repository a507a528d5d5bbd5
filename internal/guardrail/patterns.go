// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Genos Contributors

package guardrail

import (
	_ "embed"
	"log/slog"
	"regexp"
	"sync"

	genoserr "github.com/genos-dev/genos/pkg/errors"
	"gopkg.in/yaml.v3"
)

//go:embed db/patterns.yml
var patternsYAML []byte

type patternFile struct {
	PII      []patternEntry `yaml:"pii"`
	Toxicity []patternEntry `yaml:"toxicity"`
}

type patternEntry struct {
	Name   string `yaml:"name"`
	Redact string `yaml:"redact"`
	Regex  string `yaml:"regex"`
}

// piiPattern is a compiled PII matcher.
type piiPattern struct {
	name        string
	placeholder string
	re          *regexp.Regexp
}

type toxicityPattern struct {
	name string
	re   *regexp.Regexp
}

type patternSet struct {
	pii      []piiPattern
	toxicity []toxicityPattern
}

var (
	patternsOnce sync.Once
	patterns     *patternSet
	patternsErr  error
)

// loadPatterns parses the embedded battery once. Any pattern that fails to
// compile aborts loading: a partial battery would silently miss PII.
func loadPatterns() (*patternSet, error) {
	patternsOnce.Do(func() {
		patterns, patternsErr = parsePatterns(patternsYAML)
	})
	return patterns, patternsErr
}

func parsePatterns(data []byte) (*patternSet, error) {
	var f patternFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, genoserr.Errorf(genoserr.CodeGuardrailRulesFailure, "parsing guardrail patterns: %w", err)
	}

	set := &patternSet{}
	var failed []string

	for _, e := range f.PII {
		re, err := regexp.Compile(e.Regex)
		if err != nil {
			slog.Error("pii pattern failed to compile", "name", e.Name, "error", err)
			failed = append(failed, e.Name)
			continue
		}
		redact := e.Redact
		if redact == "" {
			redact = e.Name
		}
		set.pii = append(set.pii, piiPattern{
			name:        e.Name,
			placeholder: "[" + redact + "_REDACTED]",
			re:          re,
		})
	}

	for _, e := range f.Toxicity {
		re, err := regexp.Compile(e.Regex)
		if err != nil {
			slog.Error("toxicity pattern failed to compile", "name", e.Name, "error", err)
			failed = append(failed, e.Name)
			continue
		}
		set.toxicity = append(set.toxicity, toxicityPattern{name: e.Name, re: re})
	}

	if len(failed) > 0 {
		return nil, genoserr.Errorf(genoserr.CodeGuardrailRulesFailure,
			"%d guardrail pattern(s) failed to compile: %v", len(failed), failed)
	}
	if len(set.pii) == 0 {
		return nil, genoserr.Errorf(genoserr.CodeGuardrailRulesFailure, "zero pii patterns loaded")
	}
	return set, nil
}
