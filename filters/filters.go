// Package filters holds the keyword predicates used to decide whether a story is relevant
package filters

import (
	"strings"

	"feedrelay/models"

	"github.com/samber/lo"
)

// Matches reports whether the story matches any of the keywords. A keyword matches when it is a
// substring of the lowercased title or equals one of the lowercased categories. Blank keywords
// are ignored, so an empty set never matches.
func Matches(story models.Story, keywords []string) bool {
	if len(keywords) == 0 {
		return false
	}

	title := strings.ToLower(story.Title)
	categories := lo.Map(story.Categories, func(c string, _ int) string {
		return strings.ToLower(c)
	})

	for _, keyword := range keywords {
		keyword = strings.ToLower(strings.TrimSpace(keyword))
		if keyword == "" {
			continue
		}
		if strings.Contains(title, keyword) || lo.Contains(categories, keyword) {
			return true
		}
	}

	return false
}

// Normalize trims and lowercases keywords, dropping blanks and duplicates while keeping order
func Normalize(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, keyword := range keywords {
		keyword = strings.ToLower(strings.TrimSpace(keyword))
		if keyword == "" {
			continue
		}
		out = append(out, keyword)
	}
	return lo.Uniq(out)
}

// Union merges keyword sets into one normalized set
func Union(sets ...[]string) []string {
	return Normalize(lo.Flatten(sets))
}
