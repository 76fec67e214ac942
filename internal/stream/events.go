package stream

// EventType names a record on the conversation stream.
type EventType string

const (
	// EventMeta opens every stream: trip id, version id, phase, risk flag.
	EventMeta EventType = "meta"
	// EventDelta carries a coarse text chunk. A stream uses delta or token,
	// never both.
	EventDelta EventType = "delta"
	// EventToken carries a fine-grained text fragment.
	EventToken EventType = "token"
	// EventStatus precedes a slow tool call with a progress label.
	EventStatus EventType = "status"
	// EventImages carries destination images, independent of text ordering.
	EventImages EventType = "images"
	// EventPlanMeta carries confidence, sources and booking candidates.
	// Emitted only for planning and refinement, after all text.
	EventPlanMeta EventType = "plan_meta"
	// EventDone terminates a successful stream.
	EventDone EventType = "done"
	// EventError terminates a failed stream.
	EventError EventType = "error"
)

// Meta is the payload of the mandatory opening event.
type Meta struct {
	TripID      string `json:"trip_id"`
	VersionID   string `json:"version_id"`
	Phase       string `json:"phase"`
	HasHighRisk bool   `json:"has_high_risk"`
}

// Status is the payload of a progress label event.
type Status struct {
	Label string `json:"label"`
}

// ErrorPayload is the payload of the terminal error event.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Sink receives the ordered events of one conversation turn. Encoder writes
// them to the wire; Collector buffers them for non-streaming responses.
type Sink interface {
	Meta(m Meta) error
	Text(fragment string) error
	Status(label string) error
	Images(images any) error
	PlanMeta(meta any) error
	Done(result any) error
	Error(code, message string) error
}
