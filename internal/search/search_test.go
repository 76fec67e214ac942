package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestQualifyYear(t *testing.T) {
	now := time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC)
	cases := map[string]string{
		"lisbon hotel prices":      "lisbon hotel prices 2026",
		"lisbon hotel prices 2026": "lisbon hotel prices 2026",
		"festival schedule 2027":   "festival schedule 2027",
		"visa rules 2024":          "visa rules 2024 2026",
	}
	for in, want := range cases {
		if got := QualifyYear(in, now); got != want {
			t.Fatalf("%q: got %q, want %q", in, got, want)
		}
	}
}

func TestFormatResults(t *testing.T) {
	if got := FormatResults(nil); got != "No results found." {
		t.Fatalf("empty results: %q", got)
	}
	out := FormatResults([]Result{
		{Title: "A", URL: "https://a.example.net", Snippet: "alpha"},
		{Title: "B", URL: "https://b.example.net", Snippet: "beta"},
	})
	if !strings.Contains(out, "1. A\n   URL: https://a.example.net\n   alpha\n") {
		t.Fatalf("missing first entry: %q", out)
	}
	if !strings.Contains(out, "2. B\n") {
		t.Fatalf("missing numbering: %q", out)
	}
}

func TestLabelForQuery(t *testing.T) {
	cases := map[string]string{
		"boston lisbon flight prices":   "Searching flights...",
		"lisbon hotel per night":        "Finding stays...",
		"lisbon metro transport cost":   "Checking transport options...",
		"portugal travel advisory":      "Checking travel advisories...",
		"lisbon weather june":           "Checking the weather...",
		"things to do in lisbon":        "Researching your trip...",
		"FLIGHT deals":                  "Searching flights...",
	}
	for q, want := range cases {
		if got := LabelForQuery(q); got != want {
			t.Fatalf("%q: got %q, want %q", q, got, want)
		}
	}
}

type countingClient struct {
	calls int
	err   error
}

func (c *countingClient) Search(_ context.Context, query string, maxResults int) ([]Result, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return []Result{{Title: query, URL: "https://example.org/" + query}}, nil
}

func TestCachedClient_Memoizes(t *testing.T) {
	inner := &countingClient{}
	c := NewCachedClient(inner, 8)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := c.Search(ctx, "lisbon hotels", 8)
		if err != nil {
			t.Fatalf("search: %v", err)
		}
		if len(res) != 1 {
			t.Fatalf("expected 1 result, got %d", len(res))
		}
	}
	if inner.calls != 1 {
		t.Fatalf("expected 1 upstream call, got %d", inner.calls)
	}

	// A different query misses.
	if _, err := c.Search(ctx, "lisbon flights", 8); err != nil {
		t.Fatalf("search: %v", err)
	}
	if inner.calls != 2 {
		t.Fatalf("expected 2 upstream calls, got %d", inner.calls)
	}
}

func TestCachedClient_DoesNotCacheErrors(t *testing.T) {
	inner := &countingClient{err: fmt.Errorf("%w: down", ErrToolUnavailable)}
	c := NewCachedClient(inner, 8)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := c.Search(ctx, "q", 8); !errors.Is(err, ErrToolUnavailable) {
			t.Fatalf("expected ErrToolUnavailable, got %v", err)
		}
	}
	if inner.calls != 2 {
		t.Fatalf("errors must not be cached; upstream calls = %d", inner.calls)
	}

	// Once the provider recovers, the next hit is cached.
	inner.err = nil
	_, _ = c.Search(ctx, "q", 8)
	_, _ = c.Search(ctx, "q", 8)
	if inner.calls != 3 {
		t.Fatalf("expected recovery then cache hit, got %d calls", inner.calls)
	}
}
