// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Genos Contributors

// Package guardrail scans generated text for PII, abusive language, brand
// policy violations and length overruns, and scores the result.
//
// Verification is a pure function of its inputs. Character positions and
// lengths are measured in Unicode code points.
package guardrail

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// FlagType classifies a finding.
type FlagType string

const (
	FlagPII             FlagType = "pii"
	FlagToxicity        FlagType = "toxicity"
	FlagBrandDrift      FlagType = "brand_drift"
	FlagHallucination   FlagType = "hallucination"
	FlagForbiddenWord   FlagType = "forbidden_word"
	FlagLengthViolation FlagType = "length_violation"
)

// Severity ranks a finding. Each level carries a fixed score penalty.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Penalty returns the points subtracted from the score for one flag.
func (s Severity) Penalty() int {
	switch s {
	case SeverityLow:
		return 5
	case SeverityMedium:
		return 15
	case SeverityHigh:
		return 30
	case SeverityCritical:
		return 50
	default:
		return 0
	}
}

const (
	maxScore  = 100
	passScore = 40
)

// Position is a half-open [Start, End) code point range.
type Position struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Flag is one finding.
type Flag struct {
	Type     FlagType  `json:"type"`
	Severity Severity  `json:"severity"`
	Detail   string    `json:"detail"`
	Position *Position `json:"position,omitempty"`
}

// Result is the verdict for one piece of content.
type Result struct {
	Passed bool   `json:"passed"`
	Flags  []Flag `json:"flags"`
	Score  int    `json:"score"`
	// SanitizedContent is set only when a critical flag caused redaction.
	SanitizedContent string `json:"sanitizedContent,omitempty"`
}

// HasCritical reports whether any flag is critical.
func (r Result) HasCritical() bool {
	for _, f := range r.Flags {
		if f.Severity == SeverityCritical {
			return true
		}
	}
	return false
}

// Context is the brand policy applied to one verification.
type Context struct {
	ForbiddenWords    []string
	MandatoryElements []string
	// MaxLength disables the length check when zero.
	MaxLength int
	// BrandVoice is accepted for callers that carry it but is not scored.
	BrandVoice string
}

// Verifier runs the guardrail battery. It is safe for concurrent use.
type Verifier struct {
	patterns *patternSet
}

// New returns a Verifier using the embedded pattern battery.
func New() (*Verifier, error) {
	set, err := loadPatterns()
	if err != nil {
		return nil, err
	}
	return &Verifier{patterns: set}, nil
}

// Verify scans content in a fixed order: PII, toxicity, forbidden words,
// length, brand drift. The order determines the sanitized copy, which is
// built by successive replacement.
func (v *Verifier) Verify(content string, gc Context) Result {
	flags := make([]Flag, 0)
	sanitized := content

	for _, p := range v.patterns.pii {
		for _, loc := range p.re.FindAllStringIndex(content, -1) {
			match := content[loc[0]:loc[1]]
			flags = append(flags, Flag{
				Type:     FlagPII,
				Severity: SeverityCritical,
				Detail:   p.name + " detected",
				Position: runePosition(content, loc),
			})
			sanitized = strings.Replace(sanitized, match, p.placeholder, 1)
		}
	}

	normalized := norm.NFKC.String(content)

	for _, p := range v.patterns.toxicity {
		if p.re.MatchString(normalized) {
			flags = append(flags, Flag{
				Type:     FlagToxicity,
				Severity: SeverityHigh,
				Detail:   "Potentially toxic/abusive language detected",
			})
		}
	}

	for _, word := range gc.ForbiddenWords {
		word = strings.TrimSpace(word)
		if word == "" {
			continue
		}
		if loc := indexFold(content, word); loc != nil {
			flags = append(flags, Flag{
				Type:     FlagForbiddenWord,
				Severity: SeverityMedium,
				Detail:   fmt.Sprintf("Forbidden word: %q", word),
				Position: runePosition(content, loc),
			})
		}
	}

	if gc.MaxLength > 0 {
		if n := utf8.RuneCountInString(content); n > gc.MaxLength {
			flags = append(flags, Flag{
				Type:     FlagLengthViolation,
				Severity: SeverityLow,
				Detail:   fmt.Sprintf("Content exceeds max length: %d/%d", n, gc.MaxLength),
			})
		}
	}

	if len(gc.MandatoryElements) > 0 {
		lower := strings.ToLower(normalized)
		var missing []string
		for _, el := range gc.MandatoryElements {
			if !strings.Contains(lower, strings.ToLower(norm.NFKC.String(el))) {
				missing = append(missing, el)
			}
		}
		if 2*len(missing) > len(gc.MandatoryElements) {
			flags = append(flags, Flag{
				Type:     FlagBrandDrift,
				Severity: SeverityMedium,
				Detail:   "Missing mandatory brand elements: " + strings.Join(missing, ", "),
			})
		}
	}

	res := Result{Flags: flags, Score: Score(flags)}
	critical := res.HasCritical()
	res.Passed = !critical && res.Score >= passScore
	if critical {
		res.SanitizedContent = sanitized
	}
	return res
}

// Score subtracts each flag's penalty from 100, clamped at 0.
func Score(flags []Flag) int {
	score := maxScore
	for _, f := range flags {
		score -= f.Severity.Penalty()
	}
	return max(score, 0)
}

// indexFold returns the byte span of the first case-insensitive occurrence
// of substr in s, or nil. Case folding is per code point, so a match spans
// the same number of runes as substr.
func indexFold(s, substr string) []int {
	n := utf8.RuneCountInString(substr)
	for i := range s {
		j := i
		for k := 0; k < n; k++ {
			if j >= len(s) {
				return nil
			}
			_, w := utf8.DecodeRuneInString(s[j:])
			j += w
		}
		if strings.EqualFold(s[i:j], substr) {
			return []int{i, j}
		}
	}
	return nil
}

func runePosition(s string, loc []int) *Position {
	start := utf8.RuneCountInString(s[:loc[0]])
	return &Position{
		Start: start,
		End:   start + utf8.RuneCountInString(s[loc[0]:loc[1]]),
	}
}
