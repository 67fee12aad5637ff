package images

import (
	"regexp"
	"strings"
)

const (
	keyPrefix    = "images/"
	slugMaxWords = 3
	slugMaxLen   = 30
	defaultSlug  = "image"
	shortIDLen   = 8
)

var (
	nonSlugChars = regexp.MustCompile(`[^a-z0-9-]+`)
	hyphenRuns   = regexp.MustCompile(`-{2,}`)
)

// slugify normalizes a free-text prompt into a short URL-safe token:
// lowercase, first three words joined with hyphens, restricted to
// [a-z0-9-], at most 30 characters, never starting or ending with a hyphen.
func slugify(prompt string) string {
	words := strings.Fields(strings.ToLower(strings.TrimSpace(prompt)))
	if len(words) > slugMaxWords {
		words = words[:slugMaxWords]
	}

	slug := strings.Join(words, "-")
	slug = nonSlugChars.ReplaceAllString(slug, "")
	slug = hyphenRuns.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > slugMaxLen {
		slug = strings.TrimRight(slug[:slugMaxLen], "-")
	}
	if slug == "" {
		slug = defaultSlug
	}
	return slug
}

// deriveKey builds the storage key for a new object: a prompt slug plus a
// fragment of a fresh unique ID, so keys stay readable and collision-free.
// Collisions are not retried; an 8-character fragment keeps the odds
// negligible at realistic object counts.
func (s *Service) deriveKey(prompt, ext string) string {
	return keyPrefix + slugify(prompt) + "-" + s.newID()[:shortIDLen] + "." + ext
}
