package llmclient

import (
	"context"
	"encoding/json"
	"strings"

	genai "google.golang.org/genai"
)

// GeminiClient is a thin wrapper around the official genai client.
// It only focuses on the API call itself; retries, rate limiting and
// logging are applied via Middleware.
type GeminiClient struct {
	cli   *genai.Client
	model string
}

func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	// The genai client reads GEMINI_API_KEY from env when apiKey is empty.
	cfg := &genai.ClientConfig{Backend: genai.BackendGeminiAPI}
	if strings.TrimSpace(apiKey) != "" {
		cfg.APIKey = apiKey
	}
	cli, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &GeminiClient{cli: cli, model: model}, nil
}

func (g *GeminiClient) Name() string { return "Gemini:" + g.model }
func (g *GeminiClient) Close() error { return nil }

// GenerateJSON concatenates prompt and input, asks for application/json,
// and returns the model's JSON as json.RawMessage.
func (g *GeminiClient) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	resp, err := g.cli.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: fullPrompt(prompt, input)}}}},
		&genai.GenerateContentConfig{ResponseMIMEType: "application/json"},
	)
	if err != nil {
		return nil, err
	}
	txt := firstCandidateText(resp)
	raw, ok := ExtractJSON(txt)
	if !ok {
		return nil, ErrInvalidJSON
	}
	return raw, nil
}

// GenerateJSONStream streams narrative chunks to onChunk and returns the
// trailing structured object once the provider stream closes.
func (g *GeminiClient) GenerateJSONStream(ctx context.Context, prompt string, input any, onChunk func(chunk string)) (json.RawMessage, error) {
	var full strings.Builder
	for resp, err := range g.cli.Models.GenerateContentStream(ctx, g.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: fullPrompt(prompt, input)}}}},
		nil,
	) {
		if err != nil {
			return nil, err
		}
		txt := firstCandidateText(resp)
		if txt == "" {
			continue
		}
		full.WriteString(txt)
		if onChunk != nil {
			onChunk(txt)
		}
	}
	raw, ok := ExtractJSON(full.String())
	if !ok {
		return nil, ErrInvalidJSON
	}
	return raw, nil
}

func fullPrompt(prompt string, input any) string {
	if input == nil {
		return prompt
	}
	in, _ := json.MarshalIndent(input, "", "  ")
	return prompt + "\n\n[INPUT JSON]\n" + string(in)
}

func firstCandidateText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p != nil {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}
