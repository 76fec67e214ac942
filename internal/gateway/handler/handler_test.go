package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shreyansh232/planfirst/internal/agent"
	"github.com/shreyansh232/planfirst/internal/gateway/handler"
	"github.com/shreyansh232/planfirst/internal/gateway/middleware"
	"github.com/shreyansh232/planfirst/internal/gateway/server"
	"github.com/shreyansh232/planfirst/internal/llmclient"
	"github.com/shreyansh232/planfirst/internal/tripstore"
)

func newTestServer(t *testing.T, tokens map[string]string) (http.Handler, *tripstore.Store) {
	t.Helper()
	store := tripstore.New()
	machine := agent.NewMachine(llmclient.NewFakeClient(), store, nil)
	h := handler.New(machine, store, handler.NewHub())
	return server.NewMux(h, middleware.StaticVerifier{Tokens: tokens}), store
}

func doJSON(t *testing.T, mux http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestStartEndpoint_ReturnsOutcome(t *testing.T) {
	mux, _ := newTestServer(t, nil)

	rec := doJSON(t, mux, http.MethodPost, "/v1/trips", `{"prompt":"Plan a trip to Lisbon from Boston in June"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Trip      tripstore.Trip `json:"trip"`
		Phase     string         `json:"phase"`
		Narrative string         `json:"narrative"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Trip.ID == "" || resp.Phase != "feasibility" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Narrative == "" {
		t.Fatalf("expected narrative text in the buffered response")
	}
}

func TestStartStream_EmitsEventProtocol(t *testing.T) {
	mux, _ := newTestServer(t, nil)

	rec := doJSON(t, mux, http.MethodPost, "/v1/trips/stream", `{"prompt":"Plan a trip to Lisbon from Boston"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type %q", ct)
	}
	body := rec.Body.String()
	if !strings.HasPrefix(body, "event: meta\n") {
		t.Fatalf("meta must be the first event: %q", body[:min(len(body), 80)])
	}
	for _, ev := range []string{"event: delta\n", "event: done\n"} {
		if !strings.Contains(body, ev) {
			t.Fatalf("missing %q in stream", ev)
		}
	}
	if strings.Contains(body, "event: error\n") {
		t.Fatalf("unexpected error event: %s", body)
	}
}

func TestStream_TokenGranularity(t *testing.T) {
	mux, _ := newTestServer(t, nil)

	rec := doJSON(t, mux, http.MethodPost, "/v1/trips/stream?mode=token", `{"prompt":"Plan a trip to Lisbon from Boston"}`)
	body := rec.Body.String()
	if !strings.Contains(body, "event: token\n") || strings.Contains(body, "event: delta\n") {
		t.Fatalf("expected token granularity, got: %s", body[:min(len(body), 200)])
	}
}

func TestWrongPhase_Maps422(t *testing.T) {
	mux, _ := newTestServer(t, nil)

	rec := doJSON(t, mux, http.MethodPost, "/v1/trips", `{"prompt":"Plan a trip to Lisbon from Boston"}`)
	var resp struct {
		Trip tripstore.Trip `json:"trip"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)

	// Current phase is feasibility; refine is not legal yet.
	rec = doJSON(t, mux, http.MethodPost, "/v1/trips/"+resp.Trip.ID+"/refine", `{"instruction":"safer"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
	var errBody struct {
		Code string `json:"code"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &errBody)
	if errBody.Code != "WRONG_PHASE" {
		t.Fatalf("expected WRONG_PHASE, got %q", errBody.Code)
	}
}

func TestAuth_MissingTokenIs401(t *testing.T) {
	mux, _ := newTestServer(t, map[string]string{"secret": "alice"})

	rec := doJSON(t, mux, http.MethodGet, "/v1/trips", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "SESSION_EXPIRED") {
		t.Fatalf("expected SESSION_EXPIRED body, got %s", rec.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/trips", nil)
	req.Header.Set("Authorization", "Bearer secret")
	ok := httptest.NewRecorder()
	mux.ServeHTTP(ok, req)
	if ok.Code != http.StatusOK {
		t.Fatalf("expected 200 with valid token, got %d", ok.Code)
	}
}

func TestTripResources_OwnershipAndDelete(t *testing.T) {
	tokens := map[string]string{"ta": "alice", "tb": "bob"}
	mux, _ := newTestServer(t, tokens)

	req := httptest.NewRequest(http.MethodPost, "/v1/trips", strings.NewReader(`{"prompt":"Plan a trip to Lisbon from Boston"}`))
	req.Header.Set("Authorization", "Bearer ta")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	var resp struct {
		Trip tripstore.Trip `json:"trip"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Trip.ID == "" {
		t.Fatalf("no trip created: %s", rec.Body.String())
	}

	// Bob cannot see Alice's trip.
	req = httptest.NewRequest(http.MethodGet, "/v1/trips/"+resp.Trip.ID, nil)
	req.Header.Set("Authorization", "Bearer tb")
	other := httptest.NewRecorder()
	mux.ServeHTTP(other, req)
	if other.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign trip, got %d", other.Code)
	}

	// Alice sees versions and messages, then deletes.
	for _, path := range []string{"/versions", "/messages", ""} {
		req = httptest.NewRequest(http.MethodGet, "/v1/trips/"+resp.Trip.ID+path, nil)
		req.Header.Set("Authorization", "Bearer ta")
		got := httptest.NewRecorder()
		mux.ServeHTTP(got, req)
		if got.Code != http.StatusOK {
			t.Fatalf("GET %s: %d %s", path, got.Code, got.Body.String())
		}
	}
	req = httptest.NewRequest(http.MethodDelete, "/v1/trips/"+resp.Trip.ID, nil)
	req.Header.Set("Authorization", "Bearer ta")
	del := httptest.NewRecorder()
	mux.ServeHTTP(del, req)
	if del.Code != http.StatusNoContent {
		t.Fatalf("delete: %d", del.Code)
	}
}

func TestBadBody_Is400(t *testing.T) {
	mux, _ := newTestServer(t, nil)
	rec := doJSON(t, mux, http.MethodPost, "/v1/trips", `{"prompt": 12`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
