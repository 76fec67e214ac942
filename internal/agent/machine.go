package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shreyansh232/planfirst/internal/llmclient"
	"github.com/shreyansh232/planfirst/internal/search"
	"github.com/shreyansh232/planfirst/internal/stream"
	"github.com/shreyansh232/planfirst/internal/tripstore"
	"github.com/shreyansh232/planfirst/internal/util/jsonutil"
)

// Archiver receives finalized planning and refinement versions. Best
// effort; implementations must never fail the turn.
type Archiver interface {
	Snapshot(ctx context.Context, v tripstore.TripVersion)
}

// Machine drives one trip conversation through its five phases. Each entry
// point corresponds to one user action, persists at most two version rows
// (the requested transition plus a cascade) and reports progress through a
// stream.Sink.
type Machine struct {
	llm     llmclient.LLMClient
	store   *tripstore.Store
	search  search.Client
	images  search.ImageClient
	archive Archiver
	now     func() time.Time
}

func NewMachine(llm llmclient.LLMClient, store *tripstore.Store, searchClient search.Client) *Machine {
	return &Machine{
		llm:    llm,
		store:  store,
		search: searchClient,
		now:    time.Now,
	}
}

// WithImages enables the destination image search run on start.
func (m *Machine) WithImages(c search.ImageClient) *Machine {
	m.images = c
	return m
}

// WithArchive enables snapshot export of finalized plans.
func (m *Machine) WithArchive(a Archiver) *Machine {
	m.archive = a
	return m
}

// Outcome summarizes a completed turn for the non-streaming response path.
type Outcome struct {
	Trip              tripstore.Trip      `json:"trip"`
	Version           tripstore.TripVersion `json:"version"`
	Phase             Phase               `json:"phase"`
	HasHighRisk       bool                `json:"has_high_risk"`
	Questions         []string            `json:"questions,omitempty"`
	Message           string              `json:"message,omitempty"`
	RefinementOptions []string            `json:"refinement_options,omitempty"`
}

// genInput is the structured input handed to the generator alongside the
// phase prompt. User-authored fields are pre-wrapped as data.
type genInput struct {
	UserPrompt    string             `json:"user_prompt,omitempty"`
	Answers       string             `json:"answers,omitempty"`
	Modifications string             `json:"modifications,omitempty"`
	Instruction   string             `json:"instruction,omitempty"`
	Note          string             `json:"note,omitempty"`
	Constraints   *TravelConstraints `json:"constraints,omitempty"`
	Questions     []string           `json:"outstanding_questions,omitempty"`
	Risk          *RiskAssessment    `json:"risk_assessment,omitempty"`
	Assumptions   *Assumptions       `json:"assumptions,omitempty"`
	PriorPlan     *TravelPlan        `json:"prior_plan,omitempty"`
	Research      []string           `json:"research,omitempty"`
	Currency      string             `json:"budget_currency,omitempty"`
}

// Start creates a trip from the user's first prompt and runs the
// clarification phase. When the prompt already pins down every required
// constraint the machine cascades straight into feasibility within the
// same call.
func (m *Machine) Start(ctx context.Context, userID, prompt string, sink stream.Sink) (*Outcome, error) {
	clean := Sanitize(prompt)
	origin, destination := ParseOriginDestination(clean)

	title := "Trip"
	if destination != "" {
		title = "Trip to " + destination
	} else if len(clean) > 0 {
		title = clean
		if len(title) > 60 {
			title = title[:60]
		}
	}

	trip, err := m.store.CreateTrip(ctx, tripstore.Trip{
		UserID:      userID,
		Title:       title,
		Origin:      origin,
		Destination: destination,
	})
	if err != nil {
		_ = sink.Error(ErrorCode(err), err.Error())
		return nil, err
	}

	version, err := m.store.BeginVersion(ctx, trip.ID, string(PhaseClarification))
	if err != nil {
		_ = sink.Error(ErrorCode(err), err.Error())
		return nil, err
	}
	if err := sink.Meta(stream.Meta{TripID: trip.ID, VersionID: version.ID, Phase: string(PhaseClarification)}); err != nil {
		return nil, m.fail(ctx, sink, version.ID, err)
	}
	m.appendMessage(ctx, trip.ID, "user", clean)

	if m.images != nil && destination != "" {
		imgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if imgs := search.DestinationImages(imgCtx, m.images, destination, 6); len(imgs) > 0 {
			_ = sink.Images(imgs)
		}
		cancel()
	}

	input := genInput{UserPrompt: WrapUserContent(clean)}
	raw, narrative, err := m.generate(ctx, PhaseClarification, input, sink)
	if err != nil {
		return nil, m.fail(ctx, sink, version.ID, err)
	}
	var result ClarificationResult
	if err := jsonutil.UnmarshalRaw(raw, &result); err != nil {
		return nil, m.fail(ctx, sink, version.ID, fmt.Errorf("%w: %v", ErrGenerationInvalid, err))
	}

	payload := tripstore.VersionPayload{Phase: string(PhaseClarification), Constraints: raw}
	version, err = m.store.FinalizeVersion(ctx, version.ID, payload)
	if err != nil {
		return nil, m.fail(ctx, sink, version.ID, err)
	}
	m.appendMessage(ctx, trip.ID, "assistant", firstNonEmpty(narrative, result.Message))

	if len(result.Questions) > 0 {
		out := &Outcome{
			Trip: trip, Version: version, Phase: PhaseClarification,
			Questions: result.Questions, Message: result.Message,
		}
		_ = sink.Done(out)
		return out, nil
	}
	return m.cascadeFeasibility(ctx, trip, version, &result, sink)
}

// Clarify merges the user's answers into the constraints and re-runs the
// clarification generator. When no questions remain the machine cascades
// into feasibility.
func (m *Machine) Clarify(ctx context.Context, userID, tripID, answers string, sink stream.Sink) (*Outcome, error) {
	trip, cur, err := m.requirePhase(ctx, userID, tripID, PhaseClarification)
	if err != nil {
		_ = sink.Error(ErrorCode(err), err.Error())
		return nil, err
	}
	if err := m.checkStagnation(ctx, tripID); err != nil {
		_ = sink.Error(ErrorCode(err), err.Error())
		return nil, err
	}

	prior, _ := readClarification(cur)
	version, err := m.store.BeginVersion(ctx, tripID, string(PhaseClarification))
	if err != nil {
		_ = sink.Error(ErrorCode(err), err.Error())
		return nil, err
	}
	if err := sink.Meta(stream.Meta{TripID: tripID, VersionID: version.ID, Phase: string(PhaseClarification)}); err != nil {
		return nil, m.fail(ctx, sink, version.ID, err)
	}
	m.appendMessage(ctx, tripID, "user", Sanitize(answers))

	input := genInput{
		Answers:     WrapUserContent(answers),
		Constraints: priorConstraints(prior),
		Questions:   priorQuestions(prior),
	}
	raw, narrative, err := m.generate(ctx, PhaseClarification, input, sink)
	if err != nil {
		return nil, m.fail(ctx, sink, version.ID, err)
	}
	var result ClarificationResult
	if err := jsonutil.UnmarshalRaw(raw, &result); err != nil {
		return nil, m.fail(ctx, sink, version.ID, fmt.Errorf("%w: %v", ErrGenerationInvalid, err))
	}

	payload := carryForward(cur)
	payload.Phase = string(PhaseClarification)
	payload.Constraints = raw
	version, err = m.store.FinalizeVersion(ctx, version.ID, payload)
	if err != nil {
		return nil, m.fail(ctx, sink, version.ID, err)
	}
	m.appendMessage(ctx, tripID, "assistant", firstNonEmpty(narrative, result.Message))

	if len(result.Questions) > 0 {
		out := &Outcome{
			Trip: trip, Version: version, Phase: PhaseClarification,
			Questions: result.Questions, Message: result.Message,
		}
		_ = sink.Done(out)
		return out, nil
	}
	return m.cascadeFeasibility(ctx, trip, version, &result, sink)
}

// Proceed accepts or rejects the feasibility assessment. The machine does
// not re-derive risk here; a true is taken at face value even for
// high-risk trips, and a false rewinds to clarification for revised
// constraints.
func (m *Machine) Proceed(ctx context.Context, userID, tripID string, proceed bool, sink stream.Sink) (*Outcome, error) {
	trip, cur, err := m.requirePhase(ctx, userID, tripID, PhaseFeasibility)
	if err != nil {
		_ = sink.Error(ErrorCode(err), err.Error())
		return nil, err
	}
	clar, _ := readClarification(cur)
	risk, _ := readRisk(cur)

	if !proceed {
		version, err := m.store.BeginVersion(ctx, tripID, string(PhaseClarification))
		if err != nil {
			_ = sink.Error(ErrorCode(err), err.Error())
			return nil, err
		}
		if err := sink.Meta(stream.Meta{TripID: tripID, VersionID: version.ID, Phase: string(PhaseClarification), HasHighRisk: hasHighRisk(risk)}); err != nil {
			return nil, m.fail(ctx, sink, version.ID, err)
		}
		input := genInput{
			Note:        "The user does not want to proceed with this plan as assessed. Ask what they would like to change about their constraints.",
			Constraints: priorConstraints(clar),
			Risk:        risk,
		}
		raw, narrative, err := m.generate(ctx, PhaseClarification, input, sink)
		if err != nil {
			return nil, m.fail(ctx, sink, version.ID, err)
		}
		var result ClarificationResult
		if err := jsonutil.UnmarshalRaw(raw, &result); err != nil {
			return nil, m.fail(ctx, sink, version.ID, fmt.Errorf("%w: %v", ErrGenerationInvalid, err))
		}
		// The rejected assessment stays on the superseded feasibility
		// version only; the rewound clarification version starts over
		// from the revised constraints.
		payload := tripstore.VersionPayload{
			Phase:       string(PhaseClarification),
			Constraints: raw,
		}
		version, err = m.store.FinalizeVersion(ctx, version.ID, payload)
		if err != nil {
			return nil, m.fail(ctx, sink, version.ID, err)
		}
		m.appendMessage(ctx, tripID, "assistant", firstNonEmpty(narrative, result.Message))
		out := &Outcome{
			Trip: trip, Version: version, Phase: PhaseClarification,
			HasHighRisk: hasHighRisk(risk), Questions: result.Questions, Message: result.Message,
		}
		_ = sink.Done(out)
		return out, nil
	}

	version, err := m.store.BeginVersion(ctx, tripID, string(PhaseAssumptions))
	if err != nil {
		_ = sink.Error(ErrorCode(err), err.Error())
		return nil, err
	}
	if err := sink.Meta(stream.Meta{TripID: tripID, VersionID: version.ID, Phase: string(PhaseAssumptions), HasHighRisk: hasHighRisk(risk)}); err != nil {
		return nil, m.fail(ctx, sink, version.ID, err)
	}
	return m.runAssumptions(ctx, trip, cur, version, clar, risk, "", sink)
}

// ConfirmAssumptions either advances to planning (the tool-heavy call) or
// folds the user's modifications back into a regenerated assumption set.
func (m *Machine) ConfirmAssumptions(ctx context.Context, userID, tripID string, confirmed bool, modifications string, sink stream.Sink) (*Outcome, error) {
	trip, cur, err := m.requirePhase(ctx, userID, tripID, PhaseAssumptions)
	if err != nil {
		_ = sink.Error(ErrorCode(err), err.Error())
		return nil, err
	}
	clar, _ := readClarification(cur)
	risk, _ := readRisk(cur)

	if !confirmed {
		version, err := m.store.BeginVersion(ctx, tripID, string(PhaseAssumptions))
		if err != nil {
			_ = sink.Error(ErrorCode(err), err.Error())
			return nil, err
		}
		if err := sink.Meta(stream.Meta{TripID: tripID, VersionID: version.ID, Phase: string(PhaseAssumptions), HasHighRisk: hasHighRisk(risk)}); err != nil {
			return nil, m.fail(ctx, sink, version.ID, err)
		}
		if modifications != "" {
			m.appendMessage(ctx, tripID, "user", Sanitize(modifications))
		}
		return m.runAssumptions(ctx, trip, cur, version, clar, risk, modifications, sink)
	}

	version, err := m.store.BeginVersion(ctx, tripID, string(PhasePlanning))
	if err != nil {
		_ = sink.Error(ErrorCode(err), err.Error())
		return nil, err
	}
	if err := sink.Meta(stream.Meta{TripID: tripID, VersionID: version.ID, Phase: string(PhasePlanning), HasHighRisk: hasHighRisk(risk)}); err != nil {
		return nil, m.fail(ctx, sink, version.ID, err)
	}
	return m.runPlanning(ctx, trip, cur, version, clar, sink)
}

// Refine applies a change request to the current plan. Refinement is
// terminal and reentrant: every call appends another refinement version.
func (m *Machine) Refine(ctx context.Context, userID, tripID, instruction string, sink stream.Sink) (*Outcome, error) {
	trip, cur, err := m.requirePhase(ctx, userID, tripID, PhasePlanning, PhaseRefinement)
	if err != nil {
		_ = sink.Error(ErrorCode(err), err.Error())
		return nil, err
	}
	clar, _ := readClarification(cur)
	risk, _ := readRisk(cur)
	priorPlan := readPlan(cur)

	version, err := m.store.BeginVersion(ctx, tripID, string(PhaseRefinement))
	if err != nil {
		_ = sink.Error(ErrorCode(err), err.Error())
		return nil, err
	}
	if err := sink.Meta(stream.Meta{TripID: tripID, VersionID: version.ID, Phase: string(PhaseRefinement), HasHighRisk: hasHighRisk(risk)}); err != nil {
		return nil, m.fail(ctx, sink, version.ID, err)
	}
	m.appendMessage(ctx, tripID, "user", Sanitize(instruction))

	currency := ""
	if c := priorConstraints(clar); c != nil {
		currency = DetectBudgetCurrency(c.Budget)
	}
	input := genInput{
		Instruction: WrapUserContent(instruction),
		Constraints: priorConstraints(clar),
		PriorPlan:   priorPlan,
		Currency:    currency,
	}
	raw, narrative, err := m.generate(ctx, PhaseRefinement, input, sink)
	if err != nil {
		return nil, m.fail(ctx, sink, version.ID, err)
	}
	var plan TravelPlan
	if err := jsonutil.UnmarshalRaw(raw, &plan); err != nil {
		return nil, m.fail(ctx, sink, version.ID, fmt.Errorf("%w: %v", ErrGenerationInvalid, err))
	}
	if len(plan.Sources) == 0 && priorPlan != nil {
		plan.Sources = priorPlan.Sources
	}
	EnrichPlanWithTrustMetadata(&plan, nil, trip.Destination)

	version, err = m.finalizePlanVersion(ctx, cur, version, &plan, PhaseRefinement)
	if err != nil {
		return nil, m.fail(ctx, sink, version.ID, err)
	}
	m.appendMessage(ctx, tripID, "assistant", firstNonEmpty(narrative, plan.Summary))

	_ = sink.PlanMeta(planMeta(&plan))
	out := &Outcome{
		Trip: trip, Version: version, Phase: PhaseRefinement,
		HasHighRisk: hasHighRisk(risk), Message: plan.Summary,
		RefinementOptions: RefinementOptions,
	}
	_ = sink.Done(out)
	return out, nil
}

// ---- phase runners ----

func (m *Machine) cascadeFeasibility(ctx context.Context, trip tripstore.Trip, prev tripstore.TripVersion, clar *ClarificationResult, sink stream.Sink) (*Outcome, error) {
	version, err := m.store.BeginVersion(ctx, trip.ID, string(PhaseFeasibility))
	if err != nil {
		_ = sink.Error(ErrorCode(err), err.Error())
		return nil, err
	}

	c := clar.Constraints
	queries := []string{
		fmt.Sprintf("travel advisory %s safety", c.Destination),
		fmt.Sprintf("%s weather %s", c.Destination, c.MonthOrSeason),
	}
	research, _, err := m.research(ctx, PhaseFeasibility, queries, sink)
	if err != nil {
		return nil, m.fail(ctx, sink, version.ID, err)
	}

	input := genInput{Constraints: &c, Research: research}
	raw, narrative, err := m.generate(ctx, PhaseFeasibility, input, sink)
	if err != nil {
		return nil, m.fail(ctx, sink, version.ID, err)
	}
	var risk RiskAssessment
	if err := jsonutil.UnmarshalRaw(raw, &risk); err != nil {
		return nil, m.fail(ctx, sink, version.ID, fmt.Errorf("%w: %v", ErrGenerationInvalid, err))
	}

	payload := carryForward(prev)
	payload.Phase = string(PhaseFeasibility)
	payload.RiskAssessment = raw
	version, err = m.store.FinalizeVersion(ctx, version.ID, payload)
	if err != nil {
		return nil, m.fail(ctx, sink, version.ID, err)
	}
	m.appendMessage(ctx, trip.ID, "assistant", firstNonEmpty(narrative, risk.FriendlySummary))

	out := &Outcome{
		Trip: trip, Version: version, Phase: PhaseFeasibility,
		HasHighRisk: risk.HasHighRisk(), Message: risk.FriendlySummary,
	}
	_ = sink.Done(out)
	return out, nil
}

func (m *Machine) runAssumptions(ctx context.Context, trip tripstore.Trip, prev, version tripstore.TripVersion, clar *ClarificationResult, risk *RiskAssessment, modifications string, sink stream.Sink) (*Outcome, error) {
	c := priorConstraints(clar)
	var queries []string
	if c != nil && len(c.Interests) > 0 {
		queries = append(queries, fmt.Sprintf("%s %s", c.Destination, strings.Join(c.Interests, " ")))
	}
	research, degraded, err := m.research(ctx, PhaseAssumptions, queries, sink)
	if err != nil {
		return nil, m.fail(ctx, sink, version.ID, err)
	}
	if degraded {
		log.Printf("agent: assumptions for trip %s proceeding without fresh search context", trip.ID)
	}

	input := genInput{Constraints: c, Risk: risk, Research: research}
	if modifications != "" {
		input.Modifications = WrapUserContent(modifications)
		prior, _ := readAssumptions(prev)
		input.Assumptions = prior
	}
	raw, narrative, err := m.generate(ctx, PhaseAssumptions, input, sink)
	if err != nil {
		return nil, m.fail(ctx, sink, version.ID, err)
	}
	var assumptions Assumptions
	if err := jsonutil.UnmarshalRaw(raw, &assumptions); err != nil {
		return nil, m.fail(ctx, sink, version.ID, fmt.Errorf("%w: %v", ErrGenerationInvalid, err))
	}

	payload := carryForward(prev)
	payload.Phase = string(PhaseAssumptions)
	payload.Assumptions = raw
	version, err = m.store.FinalizeVersion(ctx, version.ID, payload)
	if err != nil {
		return nil, m.fail(ctx, sink, version.ID, err)
	}
	m.appendMessage(ctx, trip.ID, "assistant", firstNonEmpty(narrative, strings.Join(assumptions.Assumptions, " ")))

	out := &Outcome{
		Trip: trip, Version: version, Phase: PhaseAssumptions,
		HasHighRisk: hasHighRisk(risk), Message: narrative,
	}
	_ = sink.Done(out)
	return out, nil
}

func (m *Machine) runPlanning(ctx context.Context, trip tripstore.Trip, prev, version tripstore.TripVersion, clar *ClarificationResult, sink stream.Sink) (*Outcome, error) {
	c := priorConstraints(clar)
	if c == nil {
		c = &TravelConstraints{Origin: trip.Origin, Destination: trip.Destination}
	}
	assumptions, _ := readAssumptions(prev)
	risk, _ := readRisk(prev)
	currency := DetectBudgetCurrency(c.Budget)

	var research []string
	if m.search != nil {
		_ = sink.Status("Searching flights...")
		if flight := search.FlightCostContext(ctx, m.search, c.Origin, c.Destination, c.MonthOrSeason); flight != "" {
			research = append(research, flight)
		}
	}
	queries := []string{
		fmt.Sprintf("%s hotel prices per night %s %s", c.Destination, c.MonthOrSeason, currency),
		fmt.Sprintf("things to do in %s cost entry fees", c.Destination),
		fmt.Sprintf("%s local transport cost %s", c.Destination, currency),
	}
	if len(c.Interests) > 0 {
		queries = append(queries, fmt.Sprintf("%s %s events tickets", c.Destination, strings.Join(c.Interests, " ")))
	}
	more, _, err := m.research(ctx, PhasePlanning, queries, sink)
	if err != nil {
		return nil, m.fail(ctx, sink, version.ID, err)
	}
	research = append(research, more...)

	input := genInput{
		Constraints: c,
		Risk:        risk,
		Assumptions: assumptions,
		Research:    research,
		Currency:    currency,
	}
	raw, narrative, err := m.generate(ctx, PhasePlanning, input, sink)
	if err != nil {
		return nil, m.fail(ctx, sink, version.ID, err)
	}
	var plan TravelPlan
	if err := jsonutil.UnmarshalRaw(raw, &plan); err != nil {
		return nil, m.fail(ctx, sink, version.ID, fmt.Errorf("%w: %v", ErrGenerationInvalid, err))
	}
	EnrichPlanWithTrustMetadata(&plan, research, c.Destination)

	version, err = m.finalizePlanVersion(ctx, prev, version, &plan, PhasePlanning)
	if err != nil {
		return nil, m.fail(ctx, sink, version.ID, err)
	}
	m.appendMessage(ctx, trip.ID, "assistant", firstNonEmpty(narrative, plan.Summary))

	_ = sink.PlanMeta(planMeta(&plan))
	out := &Outcome{
		Trip: trip, Version: version, Phase: PhasePlanning,
		HasHighRisk: hasHighRisk(risk), Message: plan.Summary,
		RefinementOptions: RefinementOptions,
	}
	_ = sink.Done(out)
	return out, nil
}

// finalizePlanVersion splits a plan into the version's payload fields:
// days and budget_breakdown get their own columns, plan keeps the rest.
func (m *Machine) finalizePlanVersion(ctx context.Context, prev, version tripstore.TripVersion, plan *TravelPlan, phase Phase) (tripstore.TripVersion, error) {
	days := plan.Days
	budget := plan.BudgetBreakdown

	stripped := *plan
	stripped.Days = nil
	stripped.BudgetBreakdown = nil

	planRaw, err := jsonutil.MarshalNoEscape(stripped)
	if err != nil {
		return version, err
	}
	daysRaw, err := jsonutil.MarshalNoEscape(days)
	if err != nil {
		return version, err
	}
	payload := carryForward(prev)
	payload.Phase = string(phase)
	payload.Plan = planRaw
	payload.Days = daysRaw
	if budget != nil {
		budgetRaw, err := jsonutil.MarshalNoEscape(budget)
		if err != nil {
			return version, err
		}
		payload.BudgetBreakdown = budgetRaw
	}

	final, err := m.store.FinalizeVersion(ctx, version.ID, payload)
	if err != nil {
		return version, err
	}
	if m.archive != nil {
		m.archive.Snapshot(context.WithoutCancel(ctx), final)
	}
	return final, nil
}

// ---- generation and tools ----

// generate runs one streamed generation with schema validation, retrying
// once in structured mode with an explicit correction instruction. The
// second failure is permanent. Only the prose ahead of the payload fence
// is streamed to the sink and persisted; the structured object arrives
// solely through the returned raw message.
func (m *Machine) generate(ctx context.Context, phase Phase, input genInput, sink stream.Sink) (json.RawMessage, string, error) {
	prompt := phasePrompt(phase, m.now())
	ctx = llmclient.WithPhase(ctx, string(phase))

	var prose strings.Builder
	filter := llmclient.NewProseStream(func(out string) {
		prose.WriteString(out)
		_ = sink.Text(out)
	})
	raw, err := m.llm.GenerateJSONStream(ctx, prompt, input, filter.Feed)
	if err != nil {
		return nil, "", err
	}
	narrative := strings.TrimSpace(prose.String())
	// An unfenced payload passes the filter untouched; cut it here so the
	// message log never records raw JSON.
	if cut := llmclient.NarrativeBefore(narrative); cut != "" {
		narrative = cut
	}

	verr := ValidatePhasePayload(phase, raw)
	if verr == nil {
		return raw, narrative, nil
	}

	log.Printf("agent: %s output invalid, retrying with correction: %v", phase, verr)
	raw, err = m.llm.GenerateJSON(ctx, withCorrection(prompt, verr), input)
	if err != nil {
		return nil, "", fmt.Errorf("%w: retry failed: %v", ErrGenerationInvalid, err)
	}
	if verr := ValidatePhasePayload(phase, raw); verr != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrGenerationInvalid, verr)
	}
	return raw, narrative, nil
}

// research executes year-qualified searches under the phase's tool policy:
// failures degrade clarification and assumptions but are fatal (after one
// retry) for feasibility and planning, where pricing and advisory currency
// is load-bearing.
func (m *Machine) research(ctx context.Context, phase Phase, queries []string, sink stream.Sink) ([]string, bool, error) {
	if m.search == nil || len(queries) == 0 {
		return nil, false, nil
	}
	fatal := phase == PhaseFeasibility || phase == PhasePlanning
	degraded := false
	out := make([]string, 0, len(queries))

	for _, q := range queries {
		query := search.QualifyYear(q, m.now())
		_ = sink.Status(search.LabelForQuery(query))

		results, err := m.search.Search(ctx, query, 8)
		if err != nil && fatal {
			results, err = m.search.Search(ctx, query, 8)
		}
		if err != nil {
			if fatal {
				return nil, false, err
			}
			log.Printf("agent: search degraded for %q: %v", query, err)
			degraded = true
			continue
		}
		out = append(out, fmt.Sprintf("Search: %s\n%s", query, search.FormatResults(results)))
	}
	return out, degraded, nil
}

// ---- gating and stagnation ----

func (m *Machine) requirePhase(ctx context.Context, userID, tripID string, phases ...Phase) (tripstore.Trip, tripstore.TripVersion, error) {
	trip, err := m.store.GetTrip(ctx, tripID)
	if err != nil {
		return tripstore.Trip{}, tripstore.TripVersion{}, err
	}
	if trip.UserID != userID {
		return tripstore.Trip{}, tripstore.TripVersion{}, tripstore.ErrNotFound
	}
	cur, err := m.store.CurrentVersion(ctx, tripID)
	if err != nil {
		return tripstore.Trip{}, tripstore.TripVersion{}, err
	}
	for _, p := range phases {
		if cur.Phase == string(p) {
			return trip, cur, nil
		}
	}
	return tripstore.Trip{}, tripstore.TripVersion{}, fmt.Errorf("%w: current phase is %s", ErrWrongPhase, cur.Phase)
}

// checkStagnation refuses a third clarify call when the last two completed
// clarification turns returned the same nonzero question count.
func (m *Machine) checkStagnation(ctx context.Context, tripID string) error {
	versions, err := m.store.Versions(ctx, tripID)
	if err != nil {
		return err
	}
	counts := make([]int, 0, 4)
	for _, v := range versions {
		if v.Status != tripstore.StatusComplete || v.Phase != string(PhaseClarification) {
			continue
		}
		var result ClarificationResult
		if err := jsonutil.UnmarshalRaw(v.Constraints, &result); err != nil {
			continue
		}
		counts = append(counts, len(result.Questions))
	}
	if len(counts) >= 2 {
		a, b := counts[len(counts)-2], counts[len(counts)-1]
		if a == b && a > 0 {
			return fmt.Errorf("%w: %d questions outstanding after repeated attempts", ErrStagnation, b)
		}
	}
	return nil
}

// ---- helpers ----

// fail marks the version failed and emits the terminal error event. The
// store write uses a detached context so a client disconnect cannot leave
// an in_progress row behind.
func (m *Machine) fail(ctx context.Context, sink stream.Sink, versionID string, err error) error {
	if ferr := m.store.FailVersion(context.WithoutCancel(ctx), versionID); ferr != nil {
		log.Printf("agent: fail version %s: %v", versionID, ferr)
	}
	_ = sink.Error(ErrorCode(err), err.Error())
	return err
}

func (m *Machine) appendMessage(ctx context.Context, tripID, role, content string) {
	content = strings.TrimSpace(content)
	if content == "" {
		return
	}
	err := m.store.AppendMessage(context.WithoutCancel(ctx), tripstore.ConversationMessage{
		TripID: tripID, Role: role, Content: content,
	})
	if err != nil {
		log.Printf("agent: append message for trip %s: %v", tripID, err)
	}
}

func readClarification(v tripstore.TripVersion) (*ClarificationResult, error) {
	if len(v.Constraints) == 0 {
		return nil, nil
	}
	var result ClarificationResult
	if err := jsonutil.UnmarshalRaw(v.Constraints, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func readRisk(v tripstore.TripVersion) (*RiskAssessment, error) {
	if len(v.RiskAssessment) == 0 {
		return nil, nil
	}
	var risk RiskAssessment
	if err := jsonutil.UnmarshalRaw(v.RiskAssessment, &risk); err != nil {
		return nil, err
	}
	return &risk, nil
}

func readAssumptions(v tripstore.TripVersion) (*Assumptions, error) {
	if len(v.Assumptions) == 0 {
		return nil, nil
	}
	var a Assumptions
	if err := jsonutil.UnmarshalRaw(v.Assumptions, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// readPlan recombines the split payload fields into the full plan.
func readPlan(v tripstore.TripVersion) *TravelPlan {
	if len(v.Plan) == 0 {
		return nil
	}
	var plan TravelPlan
	if err := jsonutil.UnmarshalRaw(v.Plan, &plan); err != nil {
		return nil
	}
	if len(v.Days) > 0 {
		_ = jsonutil.UnmarshalRaw(v.Days, &plan.Days)
	}
	if len(v.BudgetBreakdown) > 0 {
		var budget BudgetBreakdown
		if err := jsonutil.UnmarshalRaw(v.BudgetBreakdown, &budget); err == nil {
			plan.BudgetBreakdown = &budget
		}
	}
	return &plan
}

// carryForward copies the previous version's payload so each finalized
// version is a complete snapshot of the trip's state.
func carryForward(prev tripstore.TripVersion) tripstore.VersionPayload {
	return tripstore.VersionPayload{
		Constraints:     prev.Constraints,
		RiskAssessment:  prev.RiskAssessment,
		Assumptions:     prev.Assumptions,
		Plan:            prev.Plan,
		BudgetBreakdown: prev.BudgetBreakdown,
		Days:            prev.Days,
	}
}

func priorConstraints(clar *ClarificationResult) *TravelConstraints {
	if clar == nil {
		return nil
	}
	c := clar.Constraints
	return &c
}

func priorQuestions(clar *ClarificationResult) []string {
	if clar == nil {
		return nil
	}
	return clar.Questions
}

func hasHighRisk(risk *RiskAssessment) bool {
	return risk != nil && risk.HasHighRisk()
}

// planMeta builds the plan_meta event payload: trust metadata plus the
// bookable candidates.
func planMeta(plan *TravelPlan) map[string]any {
	return map[string]any{
		"confidence": plan.Confidence,
		"sources":    plan.Sources,
		"flights":    plan.Flights,
		"lodgings":   plan.Lodgings,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
