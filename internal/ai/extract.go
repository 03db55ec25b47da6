package ai

import (
	"regexp"
	"strings"
)

var fence = regexp.MustCompile("```(?:json)?\\n?")

// cleanResponse removes markdown code fences and anything before the first
// open token, which models like to prepend.
func cleanResponse(text string, open byte) string {
	cleaned := strings.TrimSpace(fence.ReplaceAllString(text, ""))
	if i := strings.IndexByte(cleaned, open); i > 0 {
		cleaned = cleaned[i:]
	}
	return cleaned
}

func extractObject(text string) string {
	return cleanResponse(text, '{')
}

func extractArray(text string) string {
	return cleanResponse(text, '[')
}
