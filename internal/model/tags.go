package model

import (
	"strings"
	"unicode/utf8"
)

const (
	// MaxTagsPerPost caps the number of tags kept on a post.
	MaxTagsPerPost = 10
	// MaxTagLen matches the post_tags.tag column.
	MaxTagLen = 64
)

// TrimTag is the single-tag form NormalizeTags applies before dedup.
func TrimTag(t string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(t)), "#")
}

// NormalizeTags trims, lowercases and deduplicates tags, dropping a leading '#'.
// Tags longer than MaxTagLen are dropped.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = TrimTag(t)
		if t == "" || utf8.RuneCountInString(t) > MaxTagLen {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
		if len(out) == MaxTagsPerPost {
			break
		}
	}
	return out
}
