package handler

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	watchWSWriteWait = 10 * time.Second
	watchWSPongWait  = 60 * time.Second
	watchWSPingEvery = (watchWSPongWait * 9) / 10
)

var watchWSUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

type watchWSInbound struct {
	Type string `json:"type"`
}

// Watch streams conversation progress for one trip over a websocket.
// Events mirror the SSE protocol's coarse signals: meta, status, done,
// error. Text deltas stay on the HTTP stream.
func (h *Handler) Watch(w http.ResponseWriter, r *http.Request) {
	trip, err := h.ownedTrip(r)
	if err != nil {
		writeError(w, err)
		return
	}

	conn, err := watchWSUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx := r.Context()

	if err := conn.SetReadDeadline(time.Now().Add(watchWSPongWait)); err != nil {
		log.Printf("watch ws set read deadline failed: %v", err)
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(watchWSPongWait))
	})

	events, cancel := h.hub.Subscribe(trip.ID)
	defer cancel()

	writeCh := make(chan ProgressEvent, 32)
	writerDone := make(chan struct{})
	readerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(watchWSPingEvery)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-readerDone:
				return
			case ev := <-writeCh:
				if err := conn.SetWriteDeadline(time.Now().Add(watchWSWriteWait)); err != nil {
					return
				}
				if err := conn.WriteJSON(ev); err != nil {
					return
				}
			case ev, ok := <-events:
				if !ok {
					return
				}
				if err := conn.SetWriteDeadline(time.Now().Add(watchWSWriteWait)); err != nil {
					return
				}
				if err := conn.WriteJSON(ev); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(watchWSWriteWait)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	pushWatchWS(writeCh, ProgressEvent{Type: "subscribed", Data: trip.ID})

	// Read loop keeps the connection's pong handling alive and answers
	// application pings. Any read error ends the session.
	for {
		var in watchWSInbound
		if err := conn.ReadJSON(&in); err != nil {
			close(readerDone)
			<-writerDone
			return
		}
		if strings.EqualFold(strings.TrimSpace(in.Type), "ping") {
			pushWatchWS(writeCh, ProgressEvent{Type: "pong"})
		}
	}
}

func pushWatchWS(writeCh chan ProgressEvent, ev ProgressEvent) {
	select {
	case writeCh <- ev:
		return
	default:
	}
	select {
	case <-writeCh:
	default:
	}
	select {
	case writeCh <- ev:
	default:
	}
}
