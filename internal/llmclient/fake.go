package llmclient

import (
	"context"
	"encoding/json"
	"strings"
)

// FakeClient returns deterministic, minimal JSON payloads per phase for
// offline use and tests. The streaming mode emits short narrative fragments
// before the payload so stream plumbing can be exercised end to end.
type FakeClient struct {
	// Questions overrides the canned clarification questions when non-nil.
	Questions []string
	// Feasible flips the canned risk assessment when set to false.
	Infeasible bool
}

func NewFakeClient() *FakeClient { return &FakeClient{} }

func (f *FakeClient) Name() string { return "FakeLLM" }
func (f *FakeClient) Close() error { return nil }

func (f *FakeClient) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	obj := f.payload(PhaseFrom(ctx))
	b, _ := json.Marshal(obj)
	return json.RawMessage(b), nil
}

func (f *FakeClient) GenerateJSONStream(ctx context.Context, prompt string, input any, onChunk func(chunk string)) (json.RawMessage, error) {
	if onChunk != nil {
		for _, tok := range strings.SplitAfter(f.narrative(PhaseFrom(ctx)), " ") {
			if tok == "" {
				continue
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
			onChunk(tok)
		}
	}
	return f.GenerateJSON(ctx, prompt, input)
}

func (f *FakeClient) narrative(phase string) string {
	switch phase {
	case "clarification":
		return "Let me make sure I understand the trip you have in mind."
	case "feasibility":
		return "Here is how the route looks for your dates."
	case "assumptions":
		return "Before planning, I am going to assume a few things."
	case "planning":
		return "Putting the itinerary together day by day now."
	case "refinement":
		return "Adjusting the plan per your request."
	default:
		return "Working on it."
	}
}

func (f *FakeClient) payload(phase string) any {
	switch phase {
	case "clarification":
		questions := []string{}
		if f.Questions != nil {
			questions = f.Questions
		}
		return map[string]any{
			"constraints": map[string]any{
				"origin":          "Boston",
				"destination":     "Lisbon",
				"month_or_season": "June",
				"duration_days":   5,
				"budget":          "$2000",
			},
			"questions": questions,
			"message":   "Sounds like a great trip.",
		}
	case "feasibility":
		return map[string]any{
			"season_weather":      "LOW",
			"route_accessibility": "LOW",
			"altitude_health":     "LOW",
			"infrastructure":      "LOW",
			"overall_feasible":    !f.Infeasible,
			"friendly_summary":    "June is a comfortable month for this route.",
			"warnings":            []string{},
			"alternatives":        []string{},
		}
	case "assumptions":
		return map[string]any{
			"assumptions":           []string{"Mid-range lodging", "Public transport within the city"},
			"uncertain_assumptions": []string{"Direct flights preferred"},
		}
	case "planning", "refinement":
		return map[string]any{
			"summary": "Five relaxed days in Lisbon.",
			"route":   "Boston -> Lisbon",
			"days": []any{
				map[string]any{
					"day":   1,
					"title": "Arrival and Alfama",
					"activities": []any{
						map[string]any{"activity": "Alfama walking tour", "cost_estimate": "$25"},
					},
					"reasoning": "Start gently after the overnight flight.",
					"day_total": "$140",
				},
				map[string]any{
					"day":   2,
					"title": "Belem",
					"activities": []any{
						map[string]any{"activity": "Jeronimos Monastery", "cost_estimate": "$12"},
					},
					"reasoning": "Cluster the riverside sights.",
					"day_total": "$120",
				},
			},
			"budget_breakdown": map[string]any{
				"flights":         "$700",
				"accommodation":   "$500",
				"local_transport": "$80",
				"meals":           "$300",
				"activities":      "$200",
				"miscellaneous":   "$120",
				"total":           "$1900",
				"currency":        "USD",
			},
			"general_tips": []string{"Buy a Viva Viagem card on arrival"},
		}
	default:
		return map[string]any{}
	}
}
