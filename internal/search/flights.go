package search

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// FlightCostContext runs the pre-planning flight cost search and renders a
// context block for the planning prompt. Failures return an empty string;
// the pre-search is an enrichment, not a dependency.
func FlightCostContext(ctx context.Context, c Client, origin, destination, dateContext string) string {
	if c == nil || origin == "" || destination == "" {
		return ""
	}
	date := strings.TrimSpace(dateContext)
	query := fmt.Sprintf("round trip flight cost from %s to %s %s price", origin, destination, date)
	query = QualifyYear(query, time.Now())

	results, err := c.Search(ctx, query, 4)
	if err != nil || len(results) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Flight Cost Estimates Research (%s -> %s):\n", origin, destination)
	for _, r := range results {
		fmt.Fprintf(&b, "- %s: %s\n", r.Title, r.Snippet)
	}
	return b.String()
}

// DestinationImages searches landmark photos for the destination, capping
// repeats per source domain so the carousel shows variety.
func DestinationImages(ctx context.Context, c ImageClient, destination string, n int) []Image {
	if c == nil || destination == "" {
		return nil
	}
	if n <= 0 {
		n = 6
	}
	hits, err := c.SearchImages(ctx, destination+" famous landmarks tourist places", n*2)
	if err != nil {
		return nil
	}
	perDomain := make(map[string]int)
	out := make([]Image, 0, n)
	for _, img := range hits {
		domain := domainOf(img.URL)
		if perDomain[domain] >= 2 {
			continue
		}
		perDomain[domain]++
		img.Title = trimTitleJunk(img.Title)
		out = append(out, img)
		if len(out) >= n {
			break
		}
	}
	return out
}

func domainOf(rawURL string) string {
	s := rawURL
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimPrefix(s, "www.")
}

func trimTitleJunk(title string) string {
	for _, suffix := range []string{" - Wikipedia", " | Britannica", " - Tripadvisor", " - Holidify"} {
		title = strings.TrimSuffix(title, suffix)
	}
	return strings.TrimSpace(title)
}
