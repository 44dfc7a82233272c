package common

import (
	"errors"
	"regexp"
	"strings"
)

// MaxSlugLen bounds slugs used as directory names.
const MaxSlugLen = 48

var (
	ErrEmptySlug = errors.New("slug cannot be empty")
	nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)
)

// Slugify turns a project name into a lowercase, hyphen-separated name safe
// for file paths. When name yields nothing, fallback is used instead.
func Slugify(name, fallback string) (string, error) {
	if slug := slugify(name); slug != "" {
		return slug, nil
	}
	if slug := slugify(fallback); slug != "" {
		return slug, nil
	}
	return "", ErrEmptySlug
}

func slugify(s string) string {
	slug := nonSlugChars.ReplaceAllString(strings.ToLower(s), "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > MaxSlugLen {
		slug = strings.TrimRight(slug[:MaxSlugLen], "-")
	}
	return slug
}
