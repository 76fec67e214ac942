package agent

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Regex fallbacks for the very first prompt: when the model misses an
// explicit origin/destination, these patterns usually recover it.

var (
	originLineRe      = regexp.MustCompile(`(?im)(?:^|\n)\s*origin\s*:\s*(.+)`)
	destinationLineRe = regexp.MustCompile(`(?im)(?:^|\n)\s*destination\s*:\s*(.+)`)
	fromToRe          = regexp.MustCompile(`(?i)from\s+([^\n]+?)\s+to\s+([^\n]+)`)
	toFromRe          = regexp.MustCompile(`(?i)(?:trip|travel|visit|going|plan)\s+to\s+([^\n,.]+?)\s+from\s+([^\n,.]+?)(?:\s+(?:with|for|budget|on|in|during)\b|$)`)
	bareToRe          = regexp.MustCompile(`(?i)(?:trip|travel|visit|going|plan)\s+to\s+([^\n,.]+?)(?:\s+(?:from|with|for|in|budget|on)\b|$)`)
)

func cleanPlace(s string) string {
	return strings.Trim(strings.TrimSpace(s), ".")
}

// ParseOriginDestination parses explicit origin/destination hints from user
// input. Either return value may be empty.
func ParseOriginDestination(text string) (origin, destination string) {
	if m := originLineRe.FindStringSubmatch(text); m != nil {
		origin = cleanPlace(m[1])
	}
	if m := destinationLineRe.FindStringSubmatch(text); m != nil {
		destination = cleanPlace(m[1])
	}

	if m := fromToRe.FindStringSubmatch(text); m != nil {
		if origin == "" {
			origin = cleanPlace(m[1])
		}
		if destination == "" {
			destination = cleanPlace(m[2])
		}
	}

	// "to X from Y" (reversed order)
	if origin == "" || destination == "" {
		if m := toFromRe.FindStringSubmatch(text); m != nil {
			if destination == "" {
				destination = cleanPlace(m[1])
			}
			if origin == "" {
				origin = cleanPlace(m[2])
			}
		}
	}

	if destination == "" {
		if m := bareToRe.FindStringSubmatch(text); m != nil {
			destination = cleanPlace(m[1])
		}
	}
	return origin, destination
}

// CurrentDateContext renders the date line prepended to every prompt so the
// model anchors prices and seasons to the present.
func CurrentDateContext(now time.Time) string {
	return fmt.Sprintf("Today's date: %s (Year: %d)", now.Format("January 02, 2006"), now.Year())
}

var currencyKeywords = []struct {
	keys []string
	code string
}{
	{[]string{"INR", "₹", "LAKH", "RUPEE"}, "INR"},
	{[]string{"USD", "$", "DOLLAR"}, "USD"},
	{[]string{"EUR", "€", "EURO"}, "EUR"},
	{[]string{"JPY", "¥", "YEN"}, "JPY"},
	{[]string{"GBP", "£", "POUND"}, "GBP"},
	{[]string{"THB", "BAHT"}, "THB"},
	{[]string{"AUD", "A$"}, "AUD"},
	{[]string{"CAD", "C$"}, "CAD"},
	{[]string{"SGD", "S$"}, "SGD"},
}

// DetectBudgetCurrency guesses the user's currency from the budget string.
func DetectBudgetCurrency(budget string) string {
	upper := strings.ToUpper(budget)
	for _, entry := range currencyKeywords {
		for _, k := range entry.keys {
			if strings.Contains(upper, k) {
				return entry.code
			}
		}
	}
	return "USD"
}
