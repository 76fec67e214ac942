package handler

import (
	"errors"
	"net/http"

	"github.com/shreyansh232/planfirst/internal/gateway/middleware"
	"github.com/shreyansh232/planfirst/internal/tripstore"
)

// ownedTrip loads a trip and enforces that it belongs to the caller.
// Trips owned by someone else look like they do not exist.
func (h *Handler) ownedTrip(r *http.Request) (tripstore.Trip, error) {
	trip, err := h.store.GetTrip(r.Context(), r.PathValue("id"))
	if err != nil {
		return tripstore.Trip{}, err
	}
	if trip.UserID != middleware.UserFrom(r.Context()) {
		return tripstore.Trip{}, tripstore.ErrNotFound
	}
	return trip, nil
}

func (h *Handler) ListTrips(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserFrom(r.Context())
	trips, err := h.store.ListTrips(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	if trips == nil {
		trips = []tripstore.TripSummary{}
	}
	writeJSON(w, http.StatusOK, struct {
		Trips []tripstore.TripSummary `json:"trips"`
	}{Trips: trips})
}

func (h *Handler) GetTrip(w http.ResponseWriter, r *http.Request) {
	trip, err := h.ownedTrip(r)
	if err != nil {
		writeError(w, err)
		return
	}
	current, err := h.store.CurrentVersion(r.Context(), trip.ID)
	if err != nil && !errors.Is(err, tripstore.ErrNotFound) {
		writeError(w, err)
		return
	}
	resp := struct {
		Trip    tripstore.Trip         `json:"trip"`
		Current *tripstore.TripVersion `json:"current_version,omitempty"`
	}{Trip: trip}
	if err == nil {
		resp.Current = &current
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) ListVersions(w http.ResponseWriter, r *http.Request) {
	trip, err := h.ownedTrip(r)
	if err != nil {
		writeError(w, err)
		return
	}
	versions, err := h.store.Versions(r.Context(), trip.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	if versions == nil {
		versions = []tripstore.TripVersion{}
	}
	writeJSON(w, http.StatusOK, struct {
		Versions []tripstore.TripVersion `json:"versions"`
	}{Versions: versions})
}

func (h *Handler) GetVersion(w http.ResponseWriter, r *http.Request) {
	trip, err := h.ownedTrip(r)
	if err != nil {
		writeError(w, err)
		return
	}
	version, err := h.store.GetVersion(r.Context(), r.PathValue("versionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	if version.TripID != trip.ID {
		writeError(w, tripstore.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, version)
}

func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	trip, err := h.ownedTrip(r)
	if err != nil {
		writeError(w, err)
		return
	}
	messages, err := h.store.Messages(r.Context(), trip.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	if messages == nil {
		messages = []tripstore.ConversationMessage{}
	}
	writeJSON(w, http.StatusOK, struct {
		Messages []tripstore.ConversationMessage `json:"messages"`
	}{Messages: messages})
}

func (h *Handler) DeleteTrip(w http.ResponseWriter, r *http.Request) {
	trip, err := h.ownedTrip(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.store.DeleteTrip(r.Context(), trip.ID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
