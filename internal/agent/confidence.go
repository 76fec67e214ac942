package agent

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Trust metadata: source attribution extraction, booking deeplink
// normalization and the interpretable confidence score attached to every
// generated plan.

var urlPattern = regexp.MustCompile(`https?://[^\s\])"'>,;]+`)

var badURLTokens = []string{
	"example.com", "localhost", "127.0.0.1", "<", ">", "{", "}", "...", "notfound", "n/a",
}

func inferSourceType(domain string) string {
	lowered := strings.ToLower(domain)
	contains := func(keys ...string) bool {
		for _, k := range keys {
			if strings.Contains(lowered, k) {
				return true
			}
		}
		return false
	}
	switch {
	case contains("booking", "agoda", "airbnb", "expedia", "hotel"):
		return "lodging"
	case contains("skyscanner", "kayak", "flight", "airline"):
		return "flight"
	case contains("gov", "travel.state", "cdc", "who.int"):
		return "advisory"
	case contains("weather", "met", "accuweather"):
		return "weather"
	default:
		return "general"
	}
}

func isHTTPURL(raw string) bool {
	if raw == "" {
		return false
	}
	lowered := strings.ToLower(raw)
	for _, token := range badURLTokens {
		if strings.Contains(lowered, token) {
			return false
		}
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func flightSearchDeeplink(route, airline string) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{strings.TrimSpace(route), strings.TrimSpace(airline), "flight"} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return "https://www.google.com/travel/flights?q=" + url.QueryEscape(strings.Join(parts, " "))
}

func staySearchDeeplink(name, location, destination string) string {
	parts := make([]string, 0, 4)
	for _, p := range []string{strings.TrimSpace(name), strings.TrimSpace(location), strings.TrimSpace(destination), "hotel booking"} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return "https://www.booking.com/searchresults.html?ss=" + url.QueryEscape(strings.Join(parts, " "))
}

// normalizeBookingLinks forces robust search deeplinks so users avoid stale
// 404 pages; model-provided links survive only as a note.
func normalizeBookingLinks(plan *TravelPlan, defaultDestination string) {
	for i := range plan.Flights {
		f := &plan.Flights[i]
		deeplink := flightSearchDeeplink(f.Route, f.Airline)
		original := strings.TrimSpace(f.BookingURL)
		if isHTTPURL(original) && original != deeplink && f.Notes == "" {
			f.Notes = "Original link provided: " + original
		}
		f.BookingURL = deeplink
	}
	for i := range plan.Lodgings {
		l := &plan.Lodgings[i]
		deeplink := staySearchDeeplink(l.Name, l.Location, defaultDestination)
		original := strings.TrimSpace(l.BookingURL)
		if isHTTPURL(original) && original != deeplink && l.Notes == "" {
			l.Notes = "Original link provided: " + original
		}
		l.BookingURL = deeplink
	}
}

// ExtractSources pulls unique source attributions out of search/tool output
// blocks, most recent research first.
func ExtractSources(searchResults []string, limit int) []SourceAttribution {
	if limit <= 0 {
		limit = 8
	}
	blocks := searchResults
	if len(blocks) > 10 {
		blocks = blocks[len(blocks)-10:]
	}
	seen := make(map[string]bool)
	sources := make([]SourceAttribution, 0, limit)
	for i := len(blocks) - 1; i >= 0; i-- {
		for _, raw := range urlPattern.FindAllString(blocks[i], -1) {
			normalized := strings.TrimRight(raw, ".,)")
			if seen[normalized] {
				continue
			}
			u, err := url.Parse(normalized)
			if err != nil || u.Host == "" {
				continue
			}
			domain := strings.TrimPrefix(u.Host, "www.")
			sources = append(sources, SourceAttribution{
				URL:        normalized,
				Domain:     domain,
				SourceType: inferSourceType(domain),
			})
			seen[normalized] = true
			if len(sources) >= limit {
				return sources
			}
		}
	}
	return sources
}

func scoreSourceCoverage(sourceCount int) int {
	if sourceCount <= 0 {
		return 25
	}
	return min(100, 30+sourceCount*12)
}

func scoreCostCompleteness(plan *TravelPlan) int {
	totalActivities := 0
	activitiesWithCost := 0
	for _, day := range plan.Days {
		totalActivities += len(day.Activities)
		for _, a := range day.Activities {
			if a.CostEstimate != "" {
				activitiesWithCost++
			}
		}
	}

	activityScore := 40
	if totalActivities > 0 {
		activityScore = activitiesWithCost * 100 / totalActivities
	}

	dayTotalScore := 40
	if len(plan.Days) > 0 {
		daysWithTotals := 0
		for _, day := range plan.Days {
			if day.DayTotal != "" {
				daysWithTotals++
			}
		}
		dayTotalScore = daysWithTotals * 100 / len(plan.Days)
	}

	budgetScore := 50
	if plan.BudgetBreakdown != nil {
		budgetScore = 100
	}

	combined := int(float64(activityScore)*0.55 + float64(dayTotalScore)*0.25 + float64(budgetScore)*0.20)
	return clamp(combined, 0, 100)
}

func scoreItinerarySpecificity(plan *TravelPlan) int {
	if len(plan.Days) == 0 {
		return 30
	}
	withTravel, withStay, withNotesOrTips := 0, 0, 0
	for _, day := range plan.Days {
		if day.TravelTime != "" || day.TravelCost != "" {
			withTravel++
		}
		if day.Accommodation != "" {
			withStay++
		}
		if day.Notes != "" || len(day.Tips) > 0 {
			withNotesOrTips++
		}
	}
	n := len(plan.Days)
	travelScore := withTravel * 100 / n
	stayScore := withStay * 100 / n
	tipsScore := withNotesOrTips * 100 / n
	bookingScore := 40
	if len(plan.Flights) > 0 || len(plan.Lodgings) > 0 {
		bookingScore = 100
	}

	combined := int(float64(travelScore)*0.30 + float64(stayScore)*0.25 + float64(tipsScore)*0.25 + float64(bookingScore)*0.20)
	return clamp(combined, 0, 100)
}

// BuildPlanConfidence computes the interpretable confidence score for a
// plan from the three subscores.
func BuildPlanConfidence(plan *TravelPlan, sourceCount int) PlanConfidence {
	sourceCoverage := scoreSourceCoverage(sourceCount)
	costCompleteness := scoreCostCompleteness(plan)
	itinerarySpecificity := scoreItinerarySpecificity(plan)

	score := clamp(int(float64(sourceCoverage)*0.35+float64(costCompleteness)*0.40+float64(itinerarySpecificity)*0.25), 0, 100)

	level := "LOW"
	switch {
	case score >= 80:
		level = "HIGH"
	case score >= 60:
		level = "MEDIUM"
	}

	return PlanConfidence{
		Score:   score,
		Level:   level,
		Summary: fmt.Sprintf("%s confidence (%d/100) based on source coverage, cost completeness, and itinerary specificity.", level, score),
		Breakdown: ConfidenceBreakdown{
			SourceCoverage:       sourceCoverage,
			CostCompleteness:     costCompleteness,
			ItinerarySpecificity: itinerarySpecificity,
		},
	}
}

// EnrichPlanWithTrustMetadata attaches normalized booking links, source
// attributions and the confidence score to a generated plan.
func EnrichPlanWithTrustMetadata(plan *TravelPlan, searchResults []string, defaultDestination string) {
	normalizeBookingLinks(plan, defaultDestination)
	if len(plan.Sources) == 0 {
		plan.Sources = ExtractSources(searchResults, 8)
	}
	confidence := BuildPlanConfidence(plan, len(plan.Sources))
	plan.Confidence = &confidence
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
