package search

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrToolUnavailable reports that the search provider could not be reached
// or timed out. Phase policy decides whether that is fatal.
var ErrToolUnavailable = errors.New("search: tool unavailable")

// Result is one web search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Client executes web searches for the planning agent.
type Client interface {
	Search(ctx context.Context, query string, maxResults int) ([]Result, error)
}

// Image is one destination image hit.
type Image struct {
	URL       string `json:"url"`
	Thumbnail string `json:"thumbnail,omitempty"`
	Title     string `json:"title,omitempty"`
	Source    string `json:"source,omitempty"`
}

// ImageClient executes image searches.
type ImageClient interface {
	SearchImages(ctx context.Context, query string, maxResults int) ([]Image, error)
}

// QualifyYear appends the current calendar year to a query unless it
// already names one, so price and advisory results stay current.
func QualifyYear(query string, now time.Time) string {
	year := strconv.Itoa(now.Year())
	for _, y := range []string{year, strconv.Itoa(now.Year() + 1)} {
		if strings.Contains(query, y) {
			return query
		}
	}
	return query + " " + year
}

// FormatResults renders hits as the numbered context block fed back to the
// generator.
func FormatResults(results []Result) string {
	if len(results) == 0 {
		return "No results found."
	}
	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s\n   URL: %s\n   %s\n", i+1, r.Title, r.URL, r.Snippet)
	}
	return b.String()
}

// LabelForQuery maps a query's intent to the human-readable progress label
// shown before the tool call.
func LabelForQuery(query string) string {
	q := strings.ToLower(query)
	switch {
	case strings.Contains(q, "flight") || strings.Contains(q, "airline"):
		return "Searching flights..."
	case strings.Contains(q, "hotel") || strings.Contains(q, "hostel") || strings.Contains(q, "accommodation") || strings.Contains(q, "stay"):
		return "Finding stays..."
	case strings.Contains(q, "train") || strings.Contains(q, "bus") || strings.Contains(q, "transport"):
		return "Checking transport options..."
	case strings.Contains(q, "visa") || strings.Contains(q, "advisory") || strings.Contains(q, "safety"):
		return "Checking travel advisories..."
	case strings.Contains(q, "weather") || strings.Contains(q, "season"):
		return "Checking the weather..."
	default:
		return "Researching your trip..."
	}
}
