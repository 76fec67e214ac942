package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/shreyansh232/planfirst/internal/agent"
	"github.com/shreyansh232/planfirst/internal/tripstore"
	"github.com/shreyansh232/planfirst/internal/util/jsonutil"
)

// Handler serves the conversation endpoints and trip CRUD.
type Handler struct {
	machine *agent.Machine
	store   *tripstore.Store
	hub     *Hub
}

func New(machine *agent.Machine, store *tripstore.Store, hub *Hub) *Handler {
	return &Handler{machine: machine, store: store, hub: hub}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	b, err := jsonutil.MarshalNoEscape(v)
	if err != nil {
		return
	}
	_, _ = w.Write(b)
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, err error) {
	code := agent.ErrorCode(err)
	writeJSON(w, httpStatus(code), errorBody{Code: code, Message: err.Error()})
}

func httpStatus(code string) int {
	switch code {
	case "NOT_FOUND":
		return http.StatusNotFound
	case "CONCURRENT_PHASE_IN_PROGRESS", "VERSION_ALREADY_FINALIZED", "TRIP_EXISTS":
		return http.StatusConflict
	case "WRONG_PHASE", "STAGNATION":
		return http.StatusUnprocessableEntity
	case "TOOL_UNAVAILABLE":
		return http.StatusBadGateway
	case "SESSION_EXPIRED":
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(r *http.Request, v any) error {
	defer func() { _, _ = io.Copy(io.Discard, r.Body) }()
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid request body")
	}
	return nil
}
