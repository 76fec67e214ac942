package agent

import (
	"encoding/json"
	"testing"
)

const validPlanJSON = `{
  "summary": "Two days in Lisbon",
  "route": "Boston -> Lisbon",
  "days": [
    {"day": 1, "title": "Alfama", "activities": [{"activity": "tour", "cost_estimate": "$25"}], "reasoning": "arrive"},
    {"day": 2, "title": "Belem", "activities": [{"activity": "monastery", "cost_estimate": "$12"}], "reasoning": "sights"}
  ],
  "budget_breakdown": {
    "flights": "$700", "accommodation": "$500", "local_transport": "$80",
    "meals": "$300", "activities": "$200", "miscellaneous": "$120",
    "total": "$1900", "currency": "USD"
  }
}`

// All five phases validate against one shared compiler, so a valid
// payload for every phase must pass within a single process.
func TestValidatePhasePayload_AllPhases(t *testing.T) {
	payloads := map[Phase]json.RawMessage{
		PhaseClarification: json.RawMessage(`{"constraints":{"origin":"Boston","destination":"Lisbon"},"questions":[]}`),
		PhaseFeasibility: json.RawMessage(`{
	      "season_weather": "LOW", "route_accessibility": "LOW", "altitude_health": "LOW",
	      "infrastructure": "LOW", "overall_feasible": true, "friendly_summary": "fine"
	    }`),
		PhaseAssumptions: json.RawMessage(`{"assumptions":["Mid-range lodging"]}`),
		PhasePlanning:    json.RawMessage(validPlanJSON),
		PhaseRefinement:  json.RawMessage(validPlanJSON),
	}
	for _, phase := range []Phase{PhaseClarification, PhaseFeasibility, PhaseAssumptions, PhasePlanning, PhaseRefinement} {
		if err := ValidatePhasePayload(phase, payloads[phase]); err != nil {
			t.Fatalf("%s: %v", phase, err)
		}
	}
}

func TestValidatePhasePayload_AcceptsValidPlan(t *testing.T) {
	if err := ValidatePhasePayload(PhasePlanning, json.RawMessage(validPlanJSON)); err != nil {
		t.Fatalf("valid plan rejected: %v", err)
	}
	if err := ValidatePhasePayload(PhaseRefinement, json.RawMessage(validPlanJSON)); err != nil {
		t.Fatalf("refinement shares the plan schema: %v", err)
	}
}

func TestValidatePhasePayload_RejectsNegativeCost(t *testing.T) {
	raw := json.RawMessage(`{
      "summary": "s", "route": "r",
      "days": [{"day": 1, "title": "t", "activities": [{"activity": "a", "cost_estimate": "-$50"}], "reasoning": "x"}]
    }`)
	if err := ValidatePhasePayload(PhasePlanning, raw); err == nil {
		t.Fatalf("negative cost string must be rejected")
	}
}

func TestValidatePhasePayload_RejectsSparseDayNumbering(t *testing.T) {
	raw := json.RawMessage(`{
      "summary": "s", "route": "r",
      "days": [
        {"day": 1, "title": "a", "activities": [], "reasoning": "x"},
        {"day": 3, "title": "b", "activities": [], "reasoning": "y"}
      ]
    }`)
	if err := ValidatePhasePayload(PhasePlanning, raw); err == nil {
		t.Fatalf("day numbering gap must be rejected")
	}
}

func TestValidatePhasePayload_Clarification(t *testing.T) {
	ok := json.RawMessage(`{"constraints":{"origin":"Boston","destination":"Lisbon"},"questions":["How long?"],"message":"hi"}`)
	if err := ValidatePhasePayload(PhaseClarification, ok); err != nil {
		t.Fatalf("valid clarification rejected: %v", err)
	}
	missing := json.RawMessage(`{"constraints":{"origin":"Boston"},"questions":[]}`)
	if err := ValidatePhasePayload(PhaseClarification, missing); err == nil {
		t.Fatalf("missing destination must be rejected")
	}
	tooMany := json.RawMessage(`{"constraints":{"origin":"a","destination":"b"},"questions":["1","2","3","4","5","6"]}`)
	if err := ValidatePhasePayload(PhaseClarification, tooMany); err == nil {
		t.Fatalf("more than five questions must be rejected")
	}
}

func TestValidatePhasePayload_Feasibility(t *testing.T) {
	ok := json.RawMessage(`{
      "season_weather": "LOW", "route_accessibility": "MEDIUM", "altitude_health": "LOW",
      "infrastructure": "LOW", "overall_feasible": true, "friendly_summary": "fine"
    }`)
	if err := ValidatePhasePayload(PhaseFeasibility, ok); err != nil {
		t.Fatalf("valid assessment rejected: %v", err)
	}
	badLevel := json.RawMessage(`{
      "season_weather": "SEVERE", "route_accessibility": "LOW", "altitude_health": "LOW",
      "infrastructure": "LOW", "overall_feasible": true, "friendly_summary": "fine"
    }`)
	if err := ValidatePhasePayload(PhaseFeasibility, badLevel); err == nil {
		t.Fatalf("unknown risk level must be rejected")
	}
}

func TestValidatePhasePayload_MalformedJSON(t *testing.T) {
	if err := ValidatePhasePayload(PhaseAssumptions, json.RawMessage(`{"assumptions": [`)); err == nil {
		t.Fatalf("truncated JSON must be rejected")
	}
}
