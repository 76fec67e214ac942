package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/shreyansh232/planfirst/internal/llmclient"
	"github.com/shreyansh232/planfirst/internal/search"
	"github.com/shreyansh232/planfirst/internal/stream"
	"github.com/shreyansh232/planfirst/internal/tripstore"
)

// stubSearch returns one canned hit per query, or fails every call.
type stubSearch struct {
	fail  bool
	calls int
}

func (s *stubSearch) Search(_ context.Context, query string, _ int) ([]search.Result, error) {
	s.calls++
	if s.fail {
		return nil, fmt.Errorf("%w: stubbed outage", search.ErrToolUnavailable)
	}
	return []search.Result{{Title: "Hit for " + query, URL: "https://www.example.org/hit", Snippet: "snippet"}}, nil
}

// fencedLLM streams a provider-shaped reply: prose followed by the
// payload in a trailing fenced block, split across small chunks so the
// fence itself crosses chunk boundaries.
type fencedLLM struct{}

func (fencedLLM) Name() string { return "fenced" }
func (fencedLLM) Close() error { return nil }

func (fencedLLM) reply() string {
	return "Great, Lisbon from Boston! Let me check a couple of details.\n\n```json\n" +
		`{"constraints":{"origin":"Boston","destination":"Lisbon"},"questions":["How many days?"],"message":"A few details first."}` +
		"\n```"
}

func (f fencedLLM) GenerateJSON(context.Context, string, any) (json.RawMessage, error) {
	raw, _ := llmclient.ExtractJSON(f.reply())
	return raw, nil
}

func (f fencedLLM) GenerateJSONStream(_ context.Context, _ string, _ any, onChunk func(string)) (json.RawMessage, error) {
	reply := f.reply()
	if onChunk != nil {
		for i := 0; i < len(reply); i += 7 {
			end := i + 7
			if end > len(reply) {
				end = len(reply)
			}
			onChunk(reply[i:end])
		}
	}
	raw, _ := llmclient.ExtractJSON(reply)
	return raw, nil
}

// brokenLLM returns a payload that fails schema validation in both modes.
type brokenLLM struct{}

func (brokenLLM) Name() string { return "broken" }
func (brokenLLM) Close() error { return nil }
func (brokenLLM) GenerateJSON(context.Context, string, any) (json.RawMessage, error) {
	return json.RawMessage(`{"unexpected":"shape"}`), nil
}
func (b brokenLLM) GenerateJSONStream(ctx context.Context, prompt string, input any, onChunk func(string)) (json.RawMessage, error) {
	return b.GenerateJSON(ctx, prompt, input)
}

func newTestMachine(llm llmclient.LLMClient, searchClient search.Client) (*Machine, *tripstore.Store) {
	store := tripstore.New()
	return NewMachine(llm, store, searchClient), store
}

func TestStart_CascadesWhenNoQuestionsRemain(t *testing.T) {
	m, store := newTestMachine(llmclient.NewFakeClient(), &stubSearch{})
	ctx := context.Background()
	sink := stream.NewCollector()

	out, err := m.Start(ctx, "u1", "Plan a trip to Lisbon from Boston in June, 5 days, $2000", sink)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if out.Phase != PhaseFeasibility {
		t.Fatalf("expected cascade into feasibility, got %s", out.Phase)
	}
	if len(out.Questions) != 0 {
		t.Fatalf("expected no questions, got %v", out.Questions)
	}

	vs, err := store.Versions(ctx, out.Trip.ID)
	if err != nil {
		t.Fatalf("versions: %v", err)
	}
	if len(vs) != 2 {
		t.Fatalf("expected clarification + feasibility versions, got %d", len(vs))
	}
	if vs[0].Phase != string(PhaseClarification) || vs[1].Phase != string(PhaseFeasibility) {
		t.Fatalf("unexpected phases: %s, %s", vs[0].Phase, vs[1].Phase)
	}
	// The feasibility version carries the clarification payload forward.
	if len(vs[1].Constraints) == 0 || len(vs[1].RiskAssessment) == 0 {
		t.Fatalf("cascaded version is not a full snapshot")
	}
	if sink.Narrative() == "" {
		t.Fatalf("expected streamed narrative")
	}
	if sink.Result == nil {
		t.Fatalf("expected a done event")
	}
}

func TestStart_StopsOnOpenQuestions(t *testing.T) {
	fake := &llmclient.FakeClient{Questions: []string{"How many days do you have?"}}
	m, store := newTestMachine(fake, nil)
	sink := stream.NewCollector()

	out, err := m.Start(context.Background(), "u1", "Trip to Lisbon from Boston", sink)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if out.Phase != PhaseClarification || len(out.Questions) != 1 {
		t.Fatalf("expected clarification with one question, got %s %v", out.Phase, out.Questions)
	}
	vs, _ := store.Versions(context.Background(), out.Trip.ID)
	if len(vs) != 1 {
		t.Fatalf("expected a single version, got %d", len(vs))
	}
}

func TestClarify_StagnationOnThirdRepeat(t *testing.T) {
	fake := &llmclient.FakeClient{Questions: []string{"How many days do you have?"}}
	m, _ := newTestMachine(fake, nil)
	ctx := context.Background()

	out, err := m.Start(ctx, "u1", "Trip to Lisbon from Boston", sinkDiscard())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := m.Clarify(ctx, "u1", out.Trip.ID, "not sure yet", sinkDiscard()); err != nil {
		t.Fatalf("first clarify: %v", err)
	}
	_, err = m.Clarify(ctx, "u1", out.Trip.ID, "still not sure", sinkDiscard())
	if !errors.Is(err, ErrStagnation) {
		t.Fatalf("expected ErrStagnation, got %v", err)
	}
}

func TestClarify_ResolvingQuestionsCascades(t *testing.T) {
	fake := &llmclient.FakeClient{Questions: []string{"How many days do you have?"}}
	m, store := newTestMachine(fake, nil)
	ctx := context.Background()

	out, err := m.Start(ctx, "u1", "Trip to Lisbon from Boston", sinkDiscard())
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	fake.Questions = []string{}
	out, err = m.Clarify(ctx, "u1", out.Trip.ID, "5 days", sinkDiscard())
	if err != nil {
		t.Fatalf("clarify: %v", err)
	}
	if out.Phase != PhaseFeasibility {
		t.Fatalf("expected cascade to feasibility, got %s", out.Phase)
	}
	cur, err := store.CurrentVersion(ctx, out.Trip.ID)
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if cur.Phase != string(PhaseFeasibility) || cur.VersionNumber != 3 {
		t.Fatalf("expected v3 feasibility, got v%d %s", cur.VersionNumber, cur.Phase)
	}
}

func TestFullFlow_ThroughRefinement(t *testing.T) {
	m, store := newTestMachine(llmclient.NewFakeClient(), &stubSearch{})
	ctx := context.Background()

	out, err := m.Start(ctx, "u1", "Plan a trip to Lisbon from Boston in June", sinkDiscard())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	tripID := out.Trip.ID

	out, err = m.Proceed(ctx, "u1", tripID, true, sinkDiscard())
	if err != nil {
		t.Fatalf("proceed: %v", err)
	}
	if out.Phase != PhaseAssumptions {
		t.Fatalf("expected assumptions, got %s", out.Phase)
	}

	col := stream.NewCollector()
	out, err = m.ConfirmAssumptions(ctx, "u1", tripID, true, "", col)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if out.Phase != PhasePlanning {
		t.Fatalf("expected planning, got %s", out.Phase)
	}
	if len(out.RefinementOptions) == 0 {
		t.Fatalf("expected refinement options after planning")
	}
	if col.PlanMetaObj == nil {
		t.Fatalf("expected plan_meta event on the planning turn")
	}

	cur, err := store.CurrentVersion(ctx, tripID)
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	// The plan payload is split across the version's fields.
	if len(cur.Plan) == 0 || len(cur.Days) == 0 || len(cur.BudgetBreakdown) == 0 {
		t.Fatalf("plan payload not split: plan=%d days=%d budget=%d", len(cur.Plan), len(cur.Days), len(cur.BudgetBreakdown))
	}
	plan := readPlan(cur)
	if plan == nil || len(plan.Days) != 2 || plan.BudgetBreakdown == nil {
		t.Fatalf("readPlan failed to recombine: %+v", plan)
	}
	if plan.Confidence == nil {
		t.Fatalf("expected confidence metadata on the stored plan")
	}

	out, err = m.Refine(ctx, "u1", tripID, "Make it safer", sinkDiscard())
	if err != nil {
		t.Fatalf("refine: %v", err)
	}
	if out.Phase != PhaseRefinement {
		t.Fatalf("expected refinement, got %s", out.Phase)
	}
	// Refinement is reentrant.
	if _, err := m.Refine(ctx, "u1", tripID, "Increase comfort", sinkDiscard()); err != nil {
		t.Fatalf("second refine: %v", err)
	}
}

func TestProceed_FalseRewindsToClarification(t *testing.T) {
	m, store := newTestMachine(llmclient.NewFakeClient(), nil)
	ctx := context.Background()

	out, err := m.Start(ctx, "u1", "Plan a trip to Lisbon from Boston", sinkDiscard())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	out, err = m.Proceed(ctx, "u1", out.Trip.ID, false, sinkDiscard())
	if err != nil {
		t.Fatalf("proceed false: %v", err)
	}
	if out.Phase != PhaseClarification {
		t.Fatalf("expected rewind to clarification, got %s", out.Phase)
	}
	cur, _ := store.CurrentVersion(ctx, out.Trip.ID)
	if cur.Phase != string(PhaseClarification) {
		t.Fatalf("current phase should be clarification, got %s", cur.Phase)
	}
	// The rejected assessment lives only on the superseded feasibility
	// version; the current state must not expose it.
	if len(cur.RiskAssessment) != 0 {
		t.Fatalf("rejected assessment leaked into current state: %s", cur.RiskAssessment)
	}
	vs, _ := store.Versions(ctx, out.Trip.ID)
	if len(vs) != 3 {
		t.Fatalf("expected 3 versions after rewind, got %d", len(vs))
	}
	if vs[1].Phase != string(PhaseFeasibility) || len(vs[1].RiskAssessment) == 0 {
		t.Fatalf("superseded feasibility version must retain the assessment: %+v", vs[1])
	}
}

func TestGenerate_StreamedTextExcludesPayload(t *testing.T) {
	m, store := newTestMachine(fencedLLM{}, nil)
	ctx := context.Background()
	sink := stream.NewCollector()

	out, err := m.Start(ctx, "u1", "Trip to Lisbon from Boston", sink)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	narrative := sink.Narrative()
	if narrative == "" {
		t.Fatalf("expected streamed prose")
	}
	if strings.Contains(narrative, "```") || strings.Contains(narrative, `"constraints"`) {
		t.Fatalf("payload leaked into the streamed text: %q", narrative)
	}

	ms, err := store.Messages(ctx, out.Trip.ID)
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	if len(ms) < 2 {
		t.Fatalf("expected user and assistant messages, got %d", len(ms))
	}
	if strings.Contains(ms[1].Content, "```") || strings.Contains(ms[1].Content, "{") {
		t.Fatalf("payload leaked into the message log: %q", ms[1].Content)
	}
}

func TestEntryPoints_WrongPhase(t *testing.T) {
	m, _ := newTestMachine(llmclient.NewFakeClient(), nil)
	ctx := context.Background()

	out, err := m.Start(ctx, "u1", "Plan a trip to Lisbon from Boston", sinkDiscard())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	// Current phase is feasibility; only Proceed is legal.
	if _, err := m.ConfirmAssumptions(ctx, "u1", out.Trip.ID, true, "", sinkDiscard()); !errors.Is(err, ErrWrongPhase) {
		t.Fatalf("expected ErrWrongPhase for confirm, got %v", err)
	}
	if _, err := m.Refine(ctx, "u1", out.Trip.ID, "safer", sinkDiscard()); !errors.Is(err, ErrWrongPhase) {
		t.Fatalf("expected ErrWrongPhase for refine, got %v", err)
	}
}

func TestOwnership_OtherUserSeesNotFound(t *testing.T) {
	m, _ := newTestMachine(llmclient.NewFakeClient(), nil)
	ctx := context.Background()

	out, err := m.Start(ctx, "u1", "Plan a trip to Lisbon from Boston", sinkDiscard())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := m.Proceed(ctx, "u2", out.Trip.ID, true, sinkDiscard()); !errors.Is(err, tripstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign user, got %v", err)
	}
}

func TestGenerate_InvalidPayloadFailsVersion(t *testing.T) {
	m, store := newTestMachine(brokenLLM{}, nil)
	ctx := context.Background()
	sink := stream.NewCollector()

	_, err := m.Start(ctx, "u1", "Plan a trip to Lisbon from Boston", sink)
	if !errors.Is(err, ErrGenerationInvalid) {
		t.Fatalf("expected ErrGenerationInvalid, got %v", err)
	}
	if sink.Err == nil || sink.Err.Code != "GENERATION_INVALID" {
		t.Fatalf("expected GENERATION_INVALID on the stream, got %+v", sink.Err)
	}

	trips, _ := store.ListTrips(ctx, "u1")
	if len(trips) != 1 {
		t.Fatalf("expected the trip row to exist, got %d", len(trips))
	}
	vs, _ := store.Versions(ctx, trips[0].ID)
	if len(vs) != 1 || vs[0].Status != tripstore.StatusFailed {
		t.Fatalf("expected one failed version, got %+v", vs)
	}
	// No complete version exists, so there is no current state.
	if _, err := store.CurrentVersion(ctx, trips[0].ID); !errors.Is(err, tripstore.ErrNotFound) {
		t.Fatalf("expected no current version, got %v", err)
	}
}

func TestResearch_FatalPhaseRetriesThenFails(t *testing.T) {
	stub := &stubSearch{fail: true}
	m, store := newTestMachine(llmclient.NewFakeClient(), stub)
	ctx := context.Background()

	_, err := m.Start(ctx, "u1", "Plan a trip to Lisbon from Boston", sinkDiscard())
	if !errors.Is(err, search.ErrToolUnavailable) {
		t.Fatalf("expected ErrToolUnavailable from feasibility research, got %v", err)
	}
	// First feasibility query is attempted twice before giving up.
	if stub.calls != 2 {
		t.Fatalf("expected 2 search attempts, got %d", stub.calls)
	}

	trips, _ := store.ListTrips(ctx, "u1")
	vs, _ := store.Versions(ctx, trips[0].ID)
	if len(vs) != 2 || vs[1].Status != tripstore.StatusFailed {
		t.Fatalf("expected failed feasibility version, got %+v", vs)
	}
	// The clarification result survives; the user can rewind and retry.
	cur, err := store.CurrentVersion(ctx, trips[0].ID)
	if err != nil || cur.Phase != string(PhaseClarification) {
		t.Fatalf("expected clarification as current, got %+v (%v)", cur, err)
	}
}

func TestMessages_LoggedPerTurn(t *testing.T) {
	m, store := newTestMachine(llmclient.NewFakeClient(), nil)
	ctx := context.Background()

	out, err := m.Start(ctx, "u1", "Plan a trip to Lisbon from Boston", sinkDiscard())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	ms, err := store.Messages(ctx, out.Trip.ID)
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	if len(ms) < 2 || ms[0].Role != "user" || ms[1].Role != "assistant" {
		t.Fatalf("expected user then assistant messages, got %+v", ms)
	}
}

func sinkDiscard() stream.Sink { return stream.NewCollector() }
