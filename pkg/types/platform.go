// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Genos Contributors

package types

// Platform is a publishing destination. Unknown platforms are allowed in
// requests; they simply carry no formatting guidance or length limit.
type Platform string

const (
	PlatformInstagram Platform = "instagram"
	PlatformTwitter   Platform = "twitter"
	PlatformLinkedIn  Platform = "linkedin"
	PlatformFacebook  Platform = "facebook"
	PlatformBlog      Platform = "blog"
	PlatformEmail     Platform = "email"
)

// platformLimits holds the character limit of platforms that have one.
var platformLimits = map[Platform]int{
	PlatformInstagram: 2200,
	PlatformTwitter:   280,
	PlatformLinkedIn:  3000,
	PlatformFacebook:  63206,
}

// Known reports whether the platform has formatting guidance.
func (p Platform) Known() bool {
	switch p {
	case PlatformInstagram, PlatformTwitter, PlatformLinkedIn, PlatformFacebook, PlatformBlog, PlatformEmail:
		return true
	default:
		return false
	}
}

// MaxLength returns the platform's character limit, or 0 when unlimited.
func (p Platform) MaxLength() int {
	return platformLimits[p]
}
