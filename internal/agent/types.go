package agent

// Phase is one of the five sequential conversation stages.
type Phase string

const (
	PhaseClarification Phase = "clarification"
	PhaseFeasibility   Phase = "feasibility"
	PhaseAssumptions   Phase = "assumptions"
	PhasePlanning      Phase = "planning"
	PhaseRefinement    Phase = "refinement"
)

func (p Phase) Valid() bool {
	switch p {
	case PhaseClarification, PhaseFeasibility, PhaseAssumptions, PhasePlanning, PhaseRefinement:
		return true
	}
	return false
}

// RiskLevel buckets a feasibility concern.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// TravelConstraints is the clarification phase's accumulating output. Origin
// and destination are the only hard-required fields; everything else narrows
// the plan when present.
type TravelConstraints struct {
	Origin        string   `json:"origin"`
	Destination   string   `json:"destination"`
	MonthOrSeason string   `json:"month_or_season,omitempty"`
	DurationDays  int      `json:"duration_days,omitempty"`
	SoloOrGroup   string   `json:"solo_or_group,omitempty"`
	Budget        string   `json:"budget,omitempty"`
	Interests     []string `json:"interests,omitempty"`
	Vibe          string   `json:"vibe,omitempty"`
}

// ClarificationResult is what the generator returns for the clarification
// phase: the constraints as understood so far plus the questions still open.
// An empty Questions list signals ready to advance.
type ClarificationResult struct {
	Constraints TravelConstraints `json:"constraints"`
	Questions   []string          `json:"questions"`
	Message     string            `json:"message,omitempty"`
}

// RiskAssessment is the feasibility phase output.
type RiskAssessment struct {
	SeasonWeather      RiskLevel `json:"season_weather"`
	RouteAccessibility RiskLevel `json:"route_accessibility"`
	AltitudeHealth     RiskLevel `json:"altitude_health"`
	Infrastructure     RiskLevel `json:"infrastructure"`
	OverallFeasible    bool      `json:"overall_feasible"`
	FriendlySummary    string    `json:"friendly_summary"`
	Warnings           []string  `json:"warnings,omitempty"`
	Alternatives       []string  `json:"alternatives,omitempty"`
}

// HasHighRisk reports whether any dimension is HIGH or the trip is judged
// infeasible overall. Advisory only; transitions never block on it.
func (r RiskAssessment) HasHighRisk() bool {
	if !r.OverallFeasible {
		return true
	}
	for _, lvl := range []RiskLevel{r.SeasonWeather, r.RouteAccessibility, r.AltitudeHealth, r.Infrastructure} {
		if lvl == RiskHigh {
			return true
		}
	}
	return false
}

// Assumptions is the assumptions phase output.
type Assumptions struct {
	Assumptions          []string `json:"assumptions"`
	UncertainAssumptions []string `json:"uncertain_assumptions,omitempty"`
}

// ActivityCost is a single itinerary activity with a currency-tagged cost
// string. Costs are never numeric floats anywhere in the payload.
type ActivityCost struct {
	Activity     string `json:"activity"`
	CostEstimate string `json:"cost_estimate"`
	CostNotes    string `json:"cost_notes,omitempty"`
}

// DayPlan is one itinerary day.
type DayPlan struct {
	Day               int            `json:"day"`
	Title             string         `json:"title"`
	Activities        []ActivityCost `json:"activities"`
	Reasoning         string         `json:"reasoning"`
	TravelTime        string         `json:"travel_time,omitempty"`
	TravelCost        string         `json:"travel_cost,omitempty"`
	Accommodation     string         `json:"accommodation,omitempty"`
	AccommodationCost string         `json:"accommodation_cost,omitempty"`
	MealsCost         string         `json:"meals_cost,omitempty"`
	DayTotal          string         `json:"day_total,omitempty"`
	Notes             string         `json:"notes,omitempty"`
	Tips              []string       `json:"tips,omitempty"`
}

// BudgetBreakdown totals the trip by category, all currency-tagged strings.
type BudgetBreakdown struct {
	Flights        string `json:"flights"`
	Accommodation  string `json:"accommodation"`
	LocalTransport string `json:"local_transport"`
	Meals          string `json:"meals"`
	Activities     string `json:"activities"`
	Miscellaneous  string `json:"miscellaneous"`
	Total          string `json:"total"`
	Currency       string `json:"currency"`
	Notes          string `json:"notes,omitempty"`
}

// SourceAttribution records a search result that grounded the plan.
type SourceAttribution struct {
	URL        string `json:"url"`
	Domain     string `json:"domain"`
	Title      string `json:"title,omitempty"`
	SourceType string `json:"source_type,omitempty"`
}

// ConfidenceBreakdown holds the three subscores behind the overall score.
type ConfidenceBreakdown struct {
	SourceCoverage       int `json:"source_coverage"`
	CostCompleteness     int `json:"cost_completeness"`
	ItinerarySpecificity int `json:"itinerary_specificity"`
}

// PlanConfidence is the scored trust metadata attached to a plan.
type PlanConfidence struct {
	Score     int                 `json:"score"`
	Level     string              `json:"level"`
	Summary   string              `json:"summary"`
	Breakdown ConfidenceBreakdown `json:"breakdown"`
}

// FlightOption is a bookable flight candidate.
type FlightOption struct {
	Route      string `json:"route"`
	Price      string `json:"price"`
	Airline    string `json:"airline,omitempty"`
	DepartTime string `json:"depart_time,omitempty"`
	ArriveTime string `json:"arrive_time,omitempty"`
	Duration   string `json:"duration,omitempty"`
	BookingURL string `json:"booking_url"`
	Notes      string `json:"notes,omitempty"`
}

// LodgingOption is a bookable stay candidate.
type LodgingOption struct {
	Name          string `json:"name"`
	Location      string `json:"location,omitempty"`
	PricePerNight string `json:"price_per_night"`
	Rating        string `json:"rating,omitempty"`
	PropertyType  string `json:"property_type,omitempty"`
	BookingURL    string `json:"booking_url"`
	Notes         string `json:"notes,omitempty"`
}

// TravelPlan is the planning/refinement phase output.
type TravelPlan struct {
	Summary              string              `json:"summary"`
	Route                string              `json:"route"`
	Days                 []DayPlan           `json:"days"`
	BufferDays           int                 `json:"buffer_days,omitempty"`
	AcclimatizationNotes string              `json:"acclimatization_notes,omitempty"`
	Flights              []FlightOption      `json:"flights,omitempty"`
	Lodgings             []LodgingOption     `json:"lodgings,omitempty"`
	BudgetBreakdown      *BudgetBreakdown    `json:"budget_breakdown,omitempty"`
	Confidence           *PlanConfidence     `json:"confidence,omitempty"`
	Sources              []SourceAttribution `json:"sources,omitempty"`
	GeneralTips          []string            `json:"general_tips,omitempty"`
}

// RefinementOptions is the follow-up menu offered once a plan exists.
var RefinementOptions = []string{
	"Make it safer",
	"Make it faster",
	"Reduce travel hours",
	"Increase comfort",
	"Change base location",
}

// DestinationImage is a background image-search hit for the destination.
type DestinationImage struct {
	URL       string `json:"url"`
	Thumbnail string `json:"thumbnail,omitempty"`
	Title     string `json:"title,omitempty"`
	Source    string `json:"source,omitempty"`
}
