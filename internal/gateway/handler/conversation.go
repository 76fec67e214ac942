package handler

import (
	"context"
	"net/http"

	"github.com/shreyansh232/planfirst/internal/agent"
	"github.com/shreyansh232/planfirst/internal/gateway/middleware"
	"github.com/shreyansh232/planfirst/internal/stream"
)

// Conversation endpoints come in pairs: the plain variant buffers the turn
// and replies with one JSON document; the /stream variant writes the event
// protocol as it happens.

type startRequest struct {
	Prompt string `json:"prompt"`
}

type clarifyRequest struct {
	Answers string `json:"answers"`
}

type proceedRequest struct {
	Proceed bool `json:"proceed"`
}

type confirmAssumptionsRequest struct {
	Confirmed     bool   `json:"confirmed"`
	Modifications string `json:"modifications,omitempty"`
}

type refineRequest struct {
	Instruction string `json:"instruction"`
}

type turn func(ctx context.Context, userID string, sink stream.Sink) (*agent.Outcome, error)

// runJSON executes a turn against a collector and renders one response.
func (h *Handler) runJSON(w http.ResponseWriter, r *http.Request, t turn) {
	userID := middleware.UserFrom(r.Context())
	col := stream.NewCollector()
	sink := &teeSink{inner: col, hub: h.hub}

	out, err := t(r.Context(), userID, sink)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		*agent.Outcome
		Narrative string `json:"narrative,omitempty"`
		PlanMeta  any    `json:"plan_meta,omitempty"`
		Images    []any  `json:"images,omitempty"`
	}{
		Outcome:   out,
		Narrative: col.Narrative(),
		PlanMeta:  col.PlanMetaObj,
		Images:    col.ImageSets,
	})
}

// runStream executes a turn against a live encoder. The machine writes the
// terminal event itself, so errors here only need logging via the stream.
func (h *Handler) runStream(w http.ResponseWriter, r *http.Request, t turn) {
	userID := middleware.UserFrom(r.Context())

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")

	granularity := stream.GranularityDelta
	if r.URL.Query().Get("mode") == "token" {
		granularity = stream.GranularityToken
	}
	enc := stream.NewEncoder(w, granularity)
	sink := &teeSink{inner: enc, hub: h.hub}

	_, _ = t(r.Context(), userID, sink)
	if !enc.Closed() {
		// The turn ended without a terminal event; close the protocol
		// rather than leave the client hanging.
		_ = enc.Error("INTERNAL", "stream ended unexpectedly")
	}
}

func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Code: "BAD_REQUEST", Message: err.Error()})
		return
	}
	h.runJSON(w, r, func(ctx context.Context, userID string, sink stream.Sink) (*agent.Outcome, error) {
		return h.machine.Start(ctx, userID, req.Prompt, sink)
	})
}

func (h *Handler) StartStream(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Code: "BAD_REQUEST", Message: err.Error()})
		return
	}
	h.runStream(w, r, func(ctx context.Context, userID string, sink stream.Sink) (*agent.Outcome, error) {
		return h.machine.Start(ctx, userID, req.Prompt, sink)
	})
}

func (h *Handler) Clarify(w http.ResponseWriter, r *http.Request) {
	tripID := r.PathValue("id")
	var req clarifyRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Code: "BAD_REQUEST", Message: err.Error()})
		return
	}
	h.runJSON(w, r, func(ctx context.Context, userID string, sink stream.Sink) (*agent.Outcome, error) {
		return h.machine.Clarify(ctx, userID, tripID, req.Answers, sink)
	})
}

func (h *Handler) ClarifyStream(w http.ResponseWriter, r *http.Request) {
	tripID := r.PathValue("id")
	var req clarifyRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Code: "BAD_REQUEST", Message: err.Error()})
		return
	}
	h.runStream(w, r, func(ctx context.Context, userID string, sink stream.Sink) (*agent.Outcome, error) {
		return h.machine.Clarify(ctx, userID, tripID, req.Answers, sink)
	})
}

func (h *Handler) Proceed(w http.ResponseWriter, r *http.Request) {
	tripID := r.PathValue("id")
	var req proceedRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Code: "BAD_REQUEST", Message: err.Error()})
		return
	}
	h.runJSON(w, r, func(ctx context.Context, userID string, sink stream.Sink) (*agent.Outcome, error) {
		return h.machine.Proceed(ctx, userID, tripID, req.Proceed, sink)
	})
}

func (h *Handler) ProceedStream(w http.ResponseWriter, r *http.Request) {
	tripID := r.PathValue("id")
	var req proceedRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Code: "BAD_REQUEST", Message: err.Error()})
		return
	}
	h.runStream(w, r, func(ctx context.Context, userID string, sink stream.Sink) (*agent.Outcome, error) {
		return h.machine.Proceed(ctx, userID, tripID, req.Proceed, sink)
	})
}

func (h *Handler) ConfirmAssumptions(w http.ResponseWriter, r *http.Request) {
	tripID := r.PathValue("id")
	var req confirmAssumptionsRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Code: "BAD_REQUEST", Message: err.Error()})
		return
	}
	h.runJSON(w, r, func(ctx context.Context, userID string, sink stream.Sink) (*agent.Outcome, error) {
		return h.machine.ConfirmAssumptions(ctx, userID, tripID, req.Confirmed, req.Modifications, sink)
	})
}

func (h *Handler) ConfirmAssumptionsStream(w http.ResponseWriter, r *http.Request) {
	tripID := r.PathValue("id")
	var req confirmAssumptionsRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Code: "BAD_REQUEST", Message: err.Error()})
		return
	}
	h.runStream(w, r, func(ctx context.Context, userID string, sink stream.Sink) (*agent.Outcome, error) {
		return h.machine.ConfirmAssumptions(ctx, userID, tripID, req.Confirmed, req.Modifications, sink)
	})
}

func (h *Handler) Refine(w http.ResponseWriter, r *http.Request) {
	tripID := r.PathValue("id")
	var req refineRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Code: "BAD_REQUEST", Message: err.Error()})
		return
	}
	h.runJSON(w, r, func(ctx context.Context, userID string, sink stream.Sink) (*agent.Outcome, error) {
		return h.machine.Refine(ctx, userID, tripID, req.Instruction, sink)
	})
}

func (h *Handler) RefineStream(w http.ResponseWriter, r *http.Request) {
	tripID := r.PathValue("id")
	var req refineRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Code: "BAD_REQUEST", Message: err.Error()})
		return
	}
	h.runStream(w, r, func(ctx context.Context, userID string, sink stream.Sink) (*agent.Outcome, error) {
		return h.machine.Refine(ctx, userID, tripID, req.Instruction, sink)
	})
}
