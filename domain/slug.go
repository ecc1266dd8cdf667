package domain

import (
	"strings"
	"unicode"

	"github.com/google/uuid"
)

const maxSlugLength = 60

// Slugify converts a title into a URL-safe slug: lowercase ASCII with
// single hyphens between words, truncated to a bounded length.
func Slugify(title string) string {
	var b strings.Builder
	b.Grow(len(title))

	lastHyphen := true // suppress leading hyphen
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z' || unicode.IsDigit(r):
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}

	slug := strings.Trim(b.String(), "-")
	if len(slug) > maxSlugLength {
		slug = strings.Trim(slug[:maxSlugLength], "-")
	}
	if slug == "" {
		slug = "prompt"
	}
	return slug
}

// NewSlug returns a slug for title with a short random suffix so that
// identically titled prompts stay addressable.
func NewSlug(title string) string {
	return Slugify(title) + "-" + uuid.NewString()[:8]
}
