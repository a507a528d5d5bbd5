// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Genos Contributors

package orchestrator

import (
	"encoding/json"
	"strings"

	"github.com/genos-dev/genos/internal/store"
	"github.com/genos-dev/genos/pkg/types"
)

// DefaultLanguage is the response language when neither the request nor
// the brand names one.
const DefaultLanguage = "pt-BR"

var platformGuidance = map[types.Platform]string{
	types.PlatformInstagram: "Limit of 2200 characters. Use emojis and hashtags.",
	types.PlatformTwitter:   "Limit of 280 characters. Be concise and punchy.",
	types.PlatformLinkedIn:  "Professional tone. Up to 3000 characters. Use bullet formatting.",
	types.PlatformFacebook:  "Up to 63206 characters. Encourage engagement and sharing.",
	types.PlatformBlog:      "Long form. Use headings, subheadings and SEO keywords.",
	types.PlatformEmail:     "Compelling subject line. Concise body. Clear call to action.",
}

var generalRules = []string{
	"- Produce original, creative content",
	"- Stay consistent with the brand voice",
	"- Adapt the format to the target platform",
	"- Never mention agency names, internal tools or management platforms",
	"- Focus only on the client's brand",
}

// ResponseLanguage picks the request language, then the brand's, then
// DefaultLanguage.
func ResponseLanguage(req Request, brand *store.Brand) string {
	if req.Language != "" {
		return req.Language
	}
	if brand != nil && brand.TargetLanguage != "" {
		return brand.TargetLanguage
	}
	return DefaultLanguage
}

// BuildSystemPrompt renders the system prompt for a request against a
// brand identity package.
func BuildSystemPrompt(req Request, brand *store.Brand) string {
	var sb strings.Builder
	line := func(s string) {
		sb.WriteString(s)
		sb.WriteByte('\n')
	}

	line("You are an assistant specialised in digital marketing content creation.")
	line("Response language: " + ResponseLanguage(req, brand))
	line("")
	line("--- BRAND IDENTITY ---")
	if brand != nil {
		if brand.BrandVoice != "" {
			line("BRAND VOICE: " + brand.BrandVoice)
		}
		if brand.TargetAudience != "" {
			line("TARGET AUDIENCE: " + brand.TargetAudience)
		}
		if brand.Industry != "" {
			line("INDUSTRY: " + brand.Industry)
		}
		if len(brand.ContentPillars) > 0 {
			line("CONTENT PILLARS: " + strings.Join(brand.ContentPillars, ", "))
		}
		if len(brand.RegionalExpertise) > 0 {
			if raw, err := json.Marshal(brand.RegionalExpertise); err == nil {
				line("REGIONAL EXPERTISE: " + string(raw))
			}
		}
	}
	line("")

	if brand != nil && (len(brand.ForbiddenWords) > 0 || len(brand.MandatoryElements) > 0) {
		line("--- CONSTRAINTS ---")
		if len(brand.ForbiddenWords) > 0 {
			line("FORBIDDEN WORDS (never use): " + strings.Join(brand.ForbiddenWords, ", "))
		}
		if len(brand.MandatoryElements) > 0 {
			line("MANDATORY ELEMENTS (always include): " + strings.Join(brand.MandatoryElements, ", "))
		}
		line("")
	}

	line("CONTENT TYPE: " + string(req.ContentType))
	if guidance, ok := platformGuidance[req.Platform]; ok {
		line("PLATFORM: " + string(req.Platform))
		line(guidance)
	}
	if req.Tone != "" {
		line("TONE: " + req.Tone)
	}

	line("")
	line("--- GENERAL RULES ---")
	sb.WriteString(strings.Join(generalRules, "\n"))
	return sb.String()
}
