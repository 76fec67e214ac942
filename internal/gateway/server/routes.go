package server

import (
	"net/http"

	"github.com/shreyansh232/planfirst/internal/gateway/handler"
	"github.com/shreyansh232/planfirst/internal/gateway/middleware"
)

func NewMux(h *handler.Handler, verifier middleware.SessionVerifier) http.Handler {
	mux := http.NewServeMux()

	// Conversation turns
	mux.HandleFunc("POST /v1/trips", h.Start)
	mux.HandleFunc("POST /v1/trips/stream", h.StartStream)
	mux.HandleFunc("POST /v1/trips/{id}/clarify", h.Clarify)
	mux.HandleFunc("POST /v1/trips/{id}/clarify/stream", h.ClarifyStream)
	mux.HandleFunc("POST /v1/trips/{id}/proceed", h.Proceed)
	mux.HandleFunc("POST /v1/trips/{id}/proceed/stream", h.ProceedStream)
	mux.HandleFunc("POST /v1/trips/{id}/assumptions", h.ConfirmAssumptions)
	mux.HandleFunc("POST /v1/trips/{id}/assumptions/stream", h.ConfirmAssumptionsStream)
	mux.HandleFunc("POST /v1/trips/{id}/refine", h.Refine)
	mux.HandleFunc("POST /v1/trips/{id}/refine/stream", h.RefineStream)

	// Trip resources
	mux.HandleFunc("GET /v1/trips", h.ListTrips)
	mux.HandleFunc("GET /v1/trips/{id}", h.GetTrip)
	mux.HandleFunc("GET /v1/trips/{id}/versions", h.ListVersions)
	mux.HandleFunc("GET /v1/trips/{id}/versions/{versionID}", h.GetVersion)
	mux.HandleFunc("GET /v1/trips/{id}/messages", h.ListMessages)
	mux.HandleFunc("DELETE /v1/trips/{id}", h.DeleteTrip)

	// Live progress
	mux.HandleFunc("GET /v1/trips/{id}/watch", h.Watch)

	return middleware.CORS(middleware.Auth(verifier)(mux))
}
