package llmclient

import (
	"context"
	"encoding/json"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const openRouterBaseURL = "https://openrouter.ai/api/v1"

// OpenRouterClient speaks the OpenAI chat-completions dialect against
// OpenRouter, which fronts most hosted models behind one key.
type OpenRouterClient struct {
	cli   openai.Client
	model string
}

func NewOpenRouterClient(apiKey, model string) *OpenRouterClient {
	return &OpenRouterClient{
		cli: openai.NewClient(
			option.WithAPIKey(apiKey),
			option.WithBaseURL(openRouterBaseURL),
		),
		model: model,
	}
}

func (o *OpenRouterClient) Name() string { return "OpenRouter:" + o.model }
func (o *OpenRouterClient) Close() error { return nil }

func (o *OpenRouterClient) params(prompt string, input any) openai.ChatCompletionNewParams {
	user := "Respond per the instructions."
	if input != nil {
		in, _ := json.MarshalIndent(input, "", "  ")
		user = string(in)
	}
	return openai.ChatCompletionNewParams{
		Model: o.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(prompt),
			openai.UserMessage(user),
		},
	}
}

func (o *OpenRouterClient) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	resp, err := o.cli.Chat.Completions.New(ctx, o.params(prompt, input))
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, ErrInvalidJSON
	}
	raw, ok := ExtractJSON(resp.Choices[0].Message.Content)
	if !ok {
		return nil, ErrInvalidJSON
	}
	return raw, nil
}

func (o *OpenRouterClient) GenerateJSONStream(ctx context.Context, prompt string, input any, onChunk func(chunk string)) (json.RawMessage, error) {
	stream := o.cli.Chat.Completions.NewStreaming(ctx, o.params(prompt, input))
	defer stream.Close()

	var full []byte
	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		full = append(full, delta...)
		if onChunk != nil {
			onChunk(delta)
		}
	}
	if err := stream.Err(); err != nil {
		return nil, err
	}
	raw, ok := ExtractJSON(string(full))
	if !ok {
		return nil, ErrInvalidJSON
	}
	return raw, nil
}
