package llmclient

import (
	"strings"
	"testing"
)

func feedInChunks(p *ProseStream, text string, size int) {
	for i := 0; i < len(text); i += size {
		end := i + size
		if end > len(text) {
			end = len(text)
		}
		p.Feed(text[i:end])
	}
}

func TestProseStream_SuppressesFencedPayload(t *testing.T) {
	var got strings.Builder
	p := NewProseStream(func(s string) { got.WriteString(s) })

	reply := "Here is the plan.\n\n```json\n{\"summary\": \"ok\"}\n```"
	// Small chunks split the fence across boundaries.
	feedInChunks(p, reply, 3)

	if got.String() != "Here is the plan.\n\n" {
		t.Fatalf("unexpected prose: %q", got.String())
	}
}

func TestProseStream_KeepsInlineBackticks(t *testing.T) {
	var got strings.Builder
	p := NewProseStream(func(s string) { got.WriteString(s) })

	reply := "Buy a `viva` card on arrival."
	feedInChunks(p, reply, 2)

	if got.String() != reply {
		t.Fatalf("inline backticks must pass through, got %q", got.String())
	}
}

func TestProseStream_NothingAfterFence(t *testing.T) {
	var got strings.Builder
	p := NewProseStream(func(s string) { got.WriteString(s) })

	p.Feed("prose ```json\n{}\n``` trailing commentary")
	p.Feed("more trailing text")

	if got.String() != "prose " {
		t.Fatalf("expected suppression from the fence on, got %q", got.String())
	}
}

func TestExtractJSON_TrailingFencedBlock(t *testing.T) {
	text := "Here is your itinerary, day by day.\n\n```json\n{\"summary\": \"ok\"}\n```\n"
	raw, ok := ExtractJSON(text)
	if !ok {
		t.Fatalf("expected extraction to succeed")
	}
	if string(raw) != `{"summary": "ok"}` {
		t.Fatalf("unexpected payload: %s", raw)
	}
}

func TestExtractJSON_PrefersLastFence(t *testing.T) {
	text := "First draft:\n```json\n{\"v\": 1}\n```\nFinal:\n```json\n{\"v\": 2}\n```"
	raw, ok := ExtractJSON(text)
	if !ok || string(raw) != `{"v": 2}` {
		t.Fatalf("expected the last fenced block, got %s (ok=%v)", raw, ok)
	}
}

func TestExtractJSON_UnlabelledFence(t *testing.T) {
	text := "Result below.\n```\n{\"a\": true}\n```"
	raw, ok := ExtractJSON(text)
	if !ok || string(raw) != `{"a": true}` {
		t.Fatalf("unlabelled fence failed: %s (ok=%v)", raw, ok)
	}
}

func TestExtractJSON_BareObject(t *testing.T) {
	raw, ok := ExtractJSON(`  {"plain": "object"}  `)
	if !ok || string(raw) != `{"plain": "object"}` {
		t.Fatalf("bare object failed: %s (ok=%v)", raw, ok)
	}
}

func TestExtractJSON_BraceSpanFallback(t *testing.T) {
	text := `The model says {"answer": 42} and then trails off`
	raw, ok := ExtractJSON(text)
	if !ok || string(raw) != `{"answer": 42}` {
		t.Fatalf("brace span failed: %s (ok=%v)", raw, ok)
	}
}

func TestExtractJSON_Failures(t *testing.T) {
	for _, text := range []string{"", "no json here", "```json\nnot json\n```", "{broken"} {
		if raw, ok := ExtractJSON(text); ok {
			t.Fatalf("expected failure for %q, got %s", text, raw)
		}
	}
}

func TestNarrativeBefore(t *testing.T) {
	text := "Some prose first.\n```json\n{\"x\": 1}\n```"
	if got := NarrativeBefore(text); got != "Some prose first." {
		t.Fatalf("unexpected narrative: %q", got)
	}
	if got := NarrativeBefore(`prefix {"x": 1}`); got != "prefix" {
		t.Fatalf("unexpected narrative before bare object: %q", got)
	}
}
