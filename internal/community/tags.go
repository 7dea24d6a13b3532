package community

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const maxTagLen = 30

// foldTransformer strips diacritics so "Crédit" and "credit" land on the
// same tag.
var foldTransformer = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeTags lowercases, folds diacritics, trims and dedupes the given
// tags, preserving first-seen order. Empty and over-long tags are dropped.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	normalized := make([]string, 0, len(tags))

	for _, tag := range tags {
		folded, _, err := transform.String(foldTransformer, tag)
		if err != nil {
			folded = tag
		}
		clean := strings.ToLower(strings.TrimSpace(folded))
		clean = strings.Join(strings.Fields(clean), "-")
		if clean == "" || len(clean) > maxTagLen || seen[clean] {
			continue
		}
		seen[clean] = true
		normalized = append(normalized, clean)
	}
	return normalized
}
