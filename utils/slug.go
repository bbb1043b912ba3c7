package utils

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases title, collapses everything that is not a letter or
// digit into single hyphens and appends the last 6 hex digits of id.
func Slugify(title string, id uuid.UUID) string {
	base := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(title), "-"), "-")
	if base == "" {
		base = "property"
	}
	hex := strings.ReplaceAll(id.String(), "-", "")
	return base + "-" + hex[len(hex)-6:]
}
