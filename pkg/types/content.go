// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Genos Contributors

package types

// ContentType identifies the kind of artifact a generation request produces.
type ContentType string

const (
	ContentTypePost     ContentType = "post"
	ContentTypeCaption  ContentType = "caption"
	ContentTypeBlog     ContentType = "blog"
	ContentTypeEmail    ContentType = "email"
	ContentTypeHashtags ContentType = "hashtags"
	ContentTypeTitle    ContentType = "title"
	ContentTypeStory    ContentType = "story"
	ContentTypeReel     ContentType = "reel"
)

// ContentTypes lists every known content type in declaration order.
func ContentTypes() []ContentType {
	return []ContentType{
		ContentTypePost, ContentTypeCaption, ContentTypeBlog, ContentTypeEmail,
		ContentTypeHashtags, ContentTypeTitle, ContentTypeStory, ContentTypeReel,
	}
}

// Valid reports whether the content type is known.
func (c ContentType) Valid() bool {
	switch c {
	case ContentTypePost, ContentTypeCaption, ContentTypeBlog, ContentTypeEmail,
		ContentTypeHashtags, ContentTypeTitle, ContentTypeStory, ContentTypeReel:
		return true
	default:
		return false
	}
}
