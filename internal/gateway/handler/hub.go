package handler

import (
	"sync"

	"github.com/shreyansh232/planfirst/internal/stream"
)

// ProgressEvent is one entry fanned out to watchers of a trip.
type ProgressEvent struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Hub fans conversation progress out to websocket watchers. Subscribers
// with full buffers drop events rather than block the turn.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[chan ProgressEvent]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan ProgressEvent]struct{})}
}

func (h *Hub) Subscribe(tripID string) (<-chan ProgressEvent, func()) {
	ch := make(chan ProgressEvent, 64)
	h.mu.Lock()
	if h.subs[tripID] == nil {
		h.subs[tripID] = make(map[chan ProgressEvent]struct{})
	}
	h.subs[tripID][ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if set, ok := h.subs[tripID]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(h.subs, tripID)
			}
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

func (h *Hub) Broadcast(tripID string, ev ProgressEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[tripID] {
		select {
		case ch <- ev:
		default:
		}
	}
}

// teeSink forwards the turn's events to the inner sink and mirrors the
// coarse progress (meta, status, terminal) to hub watchers. Text deltas
// are not mirrored; watchers care about state, not prose.
type teeSink struct {
	inner  stream.Sink
	hub    *Hub
	tripID string
}

func (t *teeSink) setTrip(id string) { t.tripID = id }

func (t *teeSink) broadcast(typ string, data any) {
	if t.hub == nil || t.tripID == "" {
		return
	}
	t.hub.Broadcast(t.tripID, ProgressEvent{Type: typ, Data: data})
}

func (t *teeSink) Meta(m stream.Meta) error {
	t.tripID = m.TripID
	t.broadcast("meta", m)
	return t.inner.Meta(m)
}

func (t *teeSink) Text(fragment string) error { return t.inner.Text(fragment) }

func (t *teeSink) Status(label string) error {
	t.broadcast("status", stream.Status{Label: label})
	return t.inner.Status(label)
}

func (t *teeSink) Images(images any) error { return t.inner.Images(images) }

func (t *teeSink) PlanMeta(meta any) error { return t.inner.PlanMeta(meta) }

func (t *teeSink) Done(result any) error {
	t.broadcast("done", result)
	return t.inner.Done(result)
}

func (t *teeSink) Error(code, message string) error {
	t.broadcast("error", stream.ErrorPayload{Code: code, Message: message})
	return t.inner.Error(code, message)
}
