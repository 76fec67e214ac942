package llmclient

import (
	"encoding/json"
	"strings"
)

// ExtractJSON pulls the structured object out of a model response that may
// wrap it in prose or a fenced code block. Streaming responses carry
// narrative text followed by a trailing ```json block; structured-mode
// responses are usually the bare object.
func ExtractJSON(text string) (json.RawMessage, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, false
	}

	// Prefer the last fenced block: the narrative-then-payload contract puts
	// the authoritative object at the end.
	if idx := strings.LastIndex(text, "```json"); idx >= 0 {
		rest := text[idx+len("```json"):]
		if end := strings.Index(rest, "```"); end >= 0 {
			if raw, ok := validObject(rest[:end]); ok {
				return raw, true
			}
		}
	}
	if idx := strings.LastIndex(text, "```"); idx >= 0 {
		// Generic fence, possibly unlabelled.
		head := text[:idx]
		if open := strings.LastIndex(head, "```"); open >= 0 {
			if raw, ok := validObject(head[open+3:]); ok {
				return raw, true
			}
		}
	}

	if raw, ok := validObject(text); ok {
		return raw, true
	}

	// Fall back to the outermost brace span.
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		if raw, ok := validObject(text[start : end+1]); ok {
			return raw, true
		}
	}
	return nil, false
}

// NarrativeBefore returns the prose preceding the structured payload.
// Callers use it to strip an unfenced payload out of display text.
func NarrativeBefore(text string) string {
	if idx := strings.LastIndex(text, "```json"); idx >= 0 {
		return strings.TrimSpace(text[:idx])
	}
	if idx := strings.Index(text, "{"); idx > 0 {
		return strings.TrimSpace(text[:idx])
	}
	return ""
}

// ProseStream forwards streamed reply text to emit until the payload
// fence opens. The narrative-then-payload contract puts the structured
// object in a trailing ``` block; everything from that marker on is
// suppressed so only prose reaches the client. A partial run of
// backticks at a chunk boundary is held back until the next chunk
// disambiguates it.
type ProseStream struct {
	emit func(string)
	tail string
	done bool
}

func NewProseStream(emit func(string)) *ProseStream {
	return &ProseStream{emit: emit}
}

func (p *ProseStream) Feed(chunk string) {
	if p.done || p.emit == nil || chunk == "" {
		return
	}
	p.tail += chunk
	if idx := strings.Index(p.tail, "```"); idx >= 0 {
		if out := p.tail[:idx]; out != "" {
			p.emit(out)
		}
		p.done = true
		p.tail = ""
		return
	}
	hold := trailingBackticks(p.tail)
	if out := p.tail[:len(p.tail)-hold]; out != "" {
		p.emit(out)
	}
	p.tail = p.tail[len(p.tail)-hold:]
}

// trailingBackticks counts the backticks ending s, capped at two: three
// or more would already have matched the fence.
func trailingBackticks(s string) int {
	n := 0
	for n < 2 && n < len(s) && s[len(s)-1-n] == '`' {
		n++
	}
	return n
}

func validObject(s string) (json.RawMessage, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") {
		return nil, false
	}
	if !json.Valid([]byte(s)) {
		return nil, false
	}
	return json.RawMessage(s), true
}
