package usecase

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const maxSearchQueryLength = 100

var (
	// Quantities such as "750g", "1.5 l", "33cl", "12 fl oz"
	quantityPattern = regexp.MustCompile(`(?i)\b\d+(?:[.,]\d+)?\s*(?:fl\s*oz|oz|lbs?|kg|mg|g|ml|cl|l|liters?|litres?)\b`)

	// Pack counts such as "6 pack", "pack of 4", "x12", "24 ct"
	packPattern = regexp.MustCompile(`(?i)\b\d+\s*[-\s]?(?:pack|pk|count|ct)\b|\bpack\s+of\s+\d+\b|\bx\s*\d+\b|\b\d+\s*x\b`)

	whitespacePattern = regexp.MustCompile(`\s+`)
)

// CleanSearchQuery strips quantities and pack counts from a free-text query,
// keeping every other word the user typed. A query that would be emptied is
// returned trimmed instead.
func CleanSearchQuery(raw string) string {
	original := strings.TrimSpace(whitespacePattern.ReplaceAllString(raw, " "))

	cleaned := quantityPattern.ReplaceAllString(original, " ")
	cleaned = packPattern.ReplaceAllString(cleaned, " ")
	cleaned = strings.Join(strings.Fields(cleaned), " ")

	if cleaned == "" {
		cleaned = original
	}

	return truncateQuery(cleaned, maxSearchQueryLength)
}

// truncateQuery shortens query to at most limit bytes without splitting a rune
func truncateQuery(query string, limit int) string {
	if len(query) <= limit {
		return query
	}

	cut := limit
	for cut > 0 && !utf8.RuneStart(query[cut]) {
		cut--
	}
	query = query[:cut]

	// Cut at a word boundary when one is reasonably close
	if lastSpace := strings.LastIndex(query, " "); lastSpace > limit/2 {
		query = query[:lastSpace]
	}
	return strings.TrimRight(query, " ")
}
