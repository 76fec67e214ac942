package stream

import "strings"

// Collector is a Sink for the non-streaming endpoints: it buffers the turn
// and exposes the accumulated text and the terminal payload so the handler
// can render a single JSON response.
type Collector struct {
	MetaEvent   *Meta
	text        strings.Builder
	StatusLabel string
	ImageSets   []any
	PlanMetaObj any
	Result      any
	Err         *ErrorPayload
}

func NewCollector() *Collector { return &Collector{} }

func (c *Collector) Meta(m Meta) error {
	c.MetaEvent = &m
	return nil
}

func (c *Collector) Text(fragment string) error {
	c.text.WriteString(fragment)
	return nil
}

func (c *Collector) Status(label string) error {
	c.StatusLabel = label
	return nil
}

func (c *Collector) Images(images any) error {
	c.ImageSets = append(c.ImageSets, images)
	return nil
}

func (c *Collector) PlanMeta(meta any) error {
	c.PlanMetaObj = meta
	return nil
}

func (c *Collector) Done(result any) error {
	c.Result = result
	return nil
}

func (c *Collector) Error(code, message string) error {
	c.Err = &ErrorPayload{Code: code, Message: message}
	return nil
}

// Text returns the concatenated narrative of the turn.
func (c *Collector) Narrative() string { return c.text.String() }
