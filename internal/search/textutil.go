package search

import "strings"

// cleanText collapses runs of whitespace and trims the string.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// appendUnique appends v unless an equal string (case-insensitive) is present.
func appendUnique(list []string, v string) []string {
	clean := strings.TrimSpace(v)
	if clean == "" {
		return list
	}

	lower := strings.ToLower(clean)
	for _, existing := range list {
		if strings.ToLower(existing) == lower {
			return list
		}
	}
	return append(list, clean)
}

// containsAny reports whether text contains at least one of the needles.
// Both sides are expected to be case-folded already.
func containsAny(text string, needles []string) bool {
	for _, needle := range needles {
		if needle != "" && strings.Contains(text, needle) {
			return true
		}
	}
	return false
}

// truncateText cuts a string to max length, appending ellipsis if truncated.
func truncateText(text string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}
	if maxLen > 3 {
		return text[:maxLen-3] + "..."
	}
	return text[:maxLen]
}
