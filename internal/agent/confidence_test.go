package agent

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fullPlanFixture() *TravelPlan {
	return &TravelPlan{
		Summary: "Five days in Lisbon",
		Route:   "Boston -> Lisbon",
		Days: []DayPlan{
			{
				Day: 1, Title: "Alfama",
				Activities:    []ActivityCost{{Activity: "Walking tour", CostEstimate: "$25"}},
				Reasoning:     "start slow",
				TravelTime:    "30m",
				Accommodation: "Hotel Avenida",
				DayTotal:      "$140",
				Tips:          []string{"wear good shoes"},
			},
			{
				Day: 2, Title: "Belem",
				Activities:    []ActivityCost{{Activity: "Monastery", CostEstimate: "$12"}},
				Reasoning:     "cluster sights",
				TravelTime:    "20m",
				Accommodation: "Hotel Avenida",
				DayTotal:      "$120",
				Notes:         "book tower tickets ahead",
			},
		},
		Flights:         []FlightOption{{Route: "BOS-LIS", Price: "$700", BookingURL: "https://airline.example.net/deal"}},
		Lodgings:        []LodgingOption{{Name: "Hotel Avenida", PricePerNight: "$100", BookingURL: "not a url"}},
		BudgetBreakdown: &BudgetBreakdown{Flights: "$700", Total: "$1900", Currency: "USD"},
	}
}

func TestBuildPlanConfidence_FullyGroundedPlanIsHigh(t *testing.T) {
	plan := fullPlanFixture()
	conf := BuildPlanConfidence(plan, 6)

	// 6 sources -> min(100, 30+72) = 100; all cost and specificity fields
	// are populated, so every subscore maxes out.
	assert.Equal(t, 100, conf.Breakdown.SourceCoverage)
	assert.Equal(t, 100, conf.Breakdown.CostCompleteness)
	assert.Equal(t, 100, conf.Breakdown.ItinerarySpecificity)
	assert.Equal(t, 100, conf.Score)
	assert.Equal(t, "HIGH", conf.Level)
	assert.Contains(t, conf.Summary, "HIGH confidence (100/100)")
}

func TestBuildPlanConfidence_NoSourcesNoCosts(t *testing.T) {
	plan := &TravelPlan{
		Summary: "Sketch", Route: "A -> B",
		Days: []DayPlan{{Day: 1, Title: "Day", Activities: []ActivityCost{{Activity: "walk"}}, Reasoning: "r"}},
	}
	conf := BuildPlanConfidence(plan, 0)

	// source coverage floors at 25; costs: 0*0.55 + 0*0.25 + 50*0.20 = 10;
	// specificity: booking 40*0.20 = 8.
	assert.Equal(t, 25, conf.Breakdown.SourceCoverage)
	assert.Equal(t, 10, conf.Breakdown.CostCompleteness)
	assert.Equal(t, 8, conf.Breakdown.ItinerarySpecificity)
	assert.Equal(t, "LOW", conf.Level)
	assert.Less(t, conf.Score, 60)
}

func TestExtractSources_DedupesAndClassifies(t *testing.T) {
	blocks := []string{
		"1. Flights\n   URL: https://www.skyscanner.com/route\n   cheap fares",
		"2. Stay\n   URL: https://www.booking.com/hotel/pt/avenida.html\n   see also https://www.skyscanner.com/route",
		"3. Advisory\n   URL: https://travel.state.gov/portugal.",
	}
	sources := ExtractSources(blocks, 8)
	require.Len(t, sources, 3)

	byDomain := map[string]SourceAttribution{}
	for _, s := range sources {
		byDomain[s.Domain] = s
	}
	assert.Equal(t, "flight", byDomain["skyscanner.com"].SourceType)
	assert.Equal(t, "lodging", byDomain["booking.com"].SourceType)
	assert.Equal(t, "advisory", byDomain["travel.state.gov"].SourceType)
	// Trailing punctuation is stripped before parsing.
	assert.Equal(t, "https://travel.state.gov/portugal", byDomain["travel.state.gov"].URL)
}

func TestEnrichPlan_NormalizesBookingLinks(t *testing.T) {
	plan := fullPlanFixture()
	EnrichPlanWithTrustMetadata(plan, []string{"URL: https://www.kayak.com/flights"}, "Lisbon")

	require.Len(t, plan.Flights, 1)
	f := plan.Flights[0]
	assert.True(t, strings.HasPrefix(f.BookingURL, "https://www.google.com/travel/flights?q="), f.BookingURL)
	// The model's own link survives as a note.
	assert.Contains(t, f.Notes, "https://airline.example.net/deal")

	require.Len(t, plan.Lodgings, 1)
	l := plan.Lodgings[0]
	assert.True(t, strings.HasPrefix(l.BookingURL, "https://www.booking.com/searchresults.html?ss="), l.BookingURL)
	// Garbage input is not worth a note.
	assert.Empty(t, l.Notes)

	require.NotNil(t, plan.Confidence)
	assert.Len(t, plan.Sources, 1)
	assert.Equal(t, "kayak.com", plan.Sources[0].Domain)
}

func TestIsHTTPURL_RejectsPlaceholders(t *testing.T) {
	for _, bad := range []string{"", "https://example.com/x", "http://localhost:8080", "https://site.com/<id>", "ftp://files.net", "not a url"} {
		assert.False(t, isHTTPURL(bad), bad)
	}
	assert.True(t, isHTTPURL("https://www.booking.com/hotel"))
}
