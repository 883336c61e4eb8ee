package chunker

import (
	"regexp"
	"strings"
)

// MaxKeywords caps the topic keywords attached to a chunk.
const MaxKeywords = 10

const maxKeywordRunes = 60

var (
	listItem   = regexp.MustCompile(`(?m)^[ \t]*(?:\d+(?:\.\d+)*[.)]|[a-zA-Z][.)]|[-*\x{2022}])[ \t]+(.+?)[ \t]*$`)
	emphasized = regexp.MustCompile(`\*\*([^*\n]{2,60})\*\*|__([^_\n]{2,60})__`)
)

// ExtractKeywords collects topic hints from a chunk: headings first, then
// numbered or bulleted list items, then emphasized terms. Matching is
// case-insensitive for dedup; the first spelling wins.
func ExtractKeywords(text string, headings []string) []string {
	seen := make(map[string]bool)
	out := make([]string, 0, MaxKeywords)

	add := func(kw string) bool {
		kw = strings.TrimRight(strings.TrimSpace(kw), ".:;,")
		if kw == "" {
			return true
		}
		kw = truncateRunes(kw, maxKeywordRunes)
		key := strings.ToLower(kw)
		if seen[key] {
			return true
		}
		seen[key] = true
		out = append(out, kw)
		return len(out) < MaxKeywords
	}

	for _, h := range headings {
		if !add(h) {
			return out
		}
	}
	for _, m := range listItem.FindAllStringSubmatch(text, -1) {
		if !add(m[1]) {
			return out
		}
	}
	for _, m := range emphasized.FindAllStringSubmatch(text, -1) {
		term := m[1]
		if term == "" {
			term = m[2]
		}
		if !add(term) {
			return out
		}
	}
	return out
}
