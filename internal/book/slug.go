package book

import (
	"regexp"
	"strings"
)

var (
	slugStripRE = regexp.MustCompile(`[^\p{L}\p{N}_\s-]`)
	slugSpaceRE = regexp.MustCompile(`\s+`)
)

// Slugify builds a URL-friendly slug from a title.
func Slugify(title string) string {
	s := strings.ToLower(strings.TrimSpace(title))
	s = slugStripRE.ReplaceAllString(s, "")
	return slugSpaceRE.ReplaceAllString(s, "-")
}
