package agent

import (
	"regexp"
	"strings"
)

// Prompt text from users is data, never instructions. Inputs are scrubbed
// of known injection phrasing and then fenced in <user_input> tags that the
// system prompts declare as data-only.

var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore\s+(all\s+)?(previous|prior|above)\s+(instructions?|prompts?)`),
	regexp.MustCompile(`(?i)disregard\s+(all\s+)?(previous|prior|above)\s+(instructions?|prompts?)`),
	regexp.MustCompile(`(?i)forget\s+(all\s+)?(previous|prior|your)\s+(instructions?|prompts?|rules)`),
	regexp.MustCompile(`(?i)you\s+are\s+now\s+(a|an)\s`),
	regexp.MustCompile(`(?i)act\s+as\s+(if\s+you\s+are\s+)?(a|an)\s+different`),
	regexp.MustCompile(`(?i)system\s*prompt`),
	regexp.MustCompile(`(?i)\bjailbreak\b`),
	regexp.MustCompile(`(?i)</?\s*user_input\s*>`),
}

const maxUserInputLen = 4000

// Sanitize trims, caps and scrubs one piece of user-provided text.
func Sanitize(input string) string {
	s := strings.TrimSpace(input)
	if len(s) > maxUserInputLen {
		s = s[:maxUserInputLen]
	}
	for _, p := range injectionPatterns {
		s = p.ReplaceAllString(s, "[removed]")
	}
	return strings.TrimSpace(s)
}

// WrapUserContent sanitizes and fences user text for inclusion in a prompt.
func WrapUserContent(input string) string {
	return "<user_input>\n" + Sanitize(input) + "\n</user_input>"
}
