package stream

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/shreyansh232/planfirst/internal/util/jsonutil"
)

// Encoder writes the event protocol to a wire as newline-delimited records:
// an "event: <type>" line, a "data: <json>" line, then a blank line. It
// enforces the ordering rules so a handler bug cannot produce an illegal
// stream.
//
// States: idle -> meta-sent -> streaming -> closed. Meta must come first and
// exactly once; text uses delta or token consistently per stream; plan_meta
// is legal only after text and before the terminal event; exactly one done
// or error closes the stream and nothing follows it.

type encState int

const (
	stateIdle encState = iota
	stateMetaSent
	stateStreaming
	stateClosed
)

var (
	ErrClosed       = errors.New("stream: already closed")
	ErrMetaFirst    = errors.New("stream: meta must be the first event")
	ErrMetaRepeated = errors.New("stream: meta already sent")
)

// Granularity selects the text event type for a stream.
type Granularity EventType

const (
	GranularityDelta = Granularity(EventDelta)
	GranularityToken = Granularity(EventToken)
)

type Encoder struct {
	w           io.Writer
	flush       func()
	state       encState
	textKind    EventType
	sawText     bool
	sawPlanMeta bool
}

// NewEncoder wraps w. When w is an http.ResponseWriter that supports
// flushing, every record is flushed so chunks reach the client promptly.
func NewEncoder(w io.Writer, g Granularity) *Encoder {
	e := &Encoder{w: w, textKind: EventType(g), flush: func() {}}
	if e.textKind != EventDelta && e.textKind != EventToken {
		e.textKind = EventDelta
	}
	if f, ok := w.(http.Flusher); ok {
		e.flush = f.Flush
	}
	return e
}

func (e *Encoder) write(t EventType, data any) error {
	b, err := jsonutil.MarshalNoEscape(data)
	if err != nil {
		return fmt.Errorf("stream: encode %s: %w", t, err)
	}
	if _, err := fmt.Fprintf(e.w, "event: %s\ndata: %s\n\n", t, b); err != nil {
		return err
	}
	e.flush()
	return nil
}

func (e *Encoder) Meta(m Meta) error {
	switch e.state {
	case stateClosed:
		return ErrClosed
	case stateMetaSent, stateStreaming:
		return ErrMetaRepeated
	}
	if err := e.write(EventMeta, m); err != nil {
		return err
	}
	e.state = stateMetaSent
	return nil
}

func (e *Encoder) content(t EventType, data any) error {
	switch e.state {
	case stateIdle:
		return ErrMetaFirst
	case stateClosed:
		return ErrClosed
	}
	if err := e.write(t, data); err != nil {
		return err
	}
	e.state = stateStreaming
	return nil
}

// Text emits one fragment using the stream's configured granularity.
// Illegal once plan_meta has been sent: plan_meta follows all text.
func (e *Encoder) Text(fragment string) error {
	if fragment == "" {
		return nil
	}
	if e.state != stateClosed && e.sawPlanMeta {
		return errors.New("stream: text after plan_meta")
	}
	if err := e.content(e.textKind, fragment); err != nil {
		return err
	}
	e.sawText = true
	return nil
}

func (e *Encoder) Status(label string) error {
	return e.content(EventStatus, Status{Label: label})
}

func (e *Encoder) Images(images any) error {
	return e.content(EventImages, images)
}

// PlanMeta is only legal between the last text fragment and the terminal
// event; emitting it before any text is a protocol violation.
func (e *Encoder) PlanMeta(meta any) error {
	if e.state != stateClosed && !e.sawText {
		return errors.New("stream: plan_meta before text content")
	}
	if err := e.content(EventPlanMeta, meta); err != nil {
		return err
	}
	e.sawPlanMeta = true
	return nil
}

func (e *Encoder) Done(result any) error {
	if e.state == stateIdle {
		return ErrMetaFirst
	}
	if e.state == stateClosed {
		return ErrClosed
	}
	if err := e.write(EventDone, result); err != nil {
		return err
	}
	e.state = stateClosed
	return nil
}

// Error closes the stream with a typed error record. Unlike the other
// events it is legal even before meta: a turn can fail before a version
// is opened.
func (e *Encoder) Error(code, message string) error {
	if e.state == stateClosed {
		return ErrClosed
	}
	if err := e.write(EventError, ErrorPayload{Code: code, Message: message}); err != nil {
		return err
	}
	e.state = stateClosed
	return nil
}

// Closed reports whether a terminal event has been written.
func (e *Encoder) Closed() bool { return e.state == stateClosed }
