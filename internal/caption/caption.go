package caption

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

const systemPrompt = `You are a creative art curator for an AI art platform called "View of Nova". ` +
	`Generate a poetic, evocative title and description for the artwork. The title should be 3-8 words. ` +
	`The description should be 1-3 sentences capturing the mood, style, and essence. ` +
	`Respond in JSON: {"title": "...", "description": "..."}`

const userPrompt = "Generate a title and description for this artwork:"

var ErrNotConfigured = errors.New("caption: openai api key not configured")

// Caption is the generated title and description of an artwork.
type Caption struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Captioner describes an image.
type Captioner interface {
	Configured() bool
	Describe(ctx context.Context, imageURL string) (Caption, error)
}

type OpenAICaptioner struct {
	client *openai.Client
	model  string
}

var _ Captioner = (*OpenAICaptioner)(nil)

// NewOpenAICaptioner returns a captioner; with an empty key every Describe fails with ErrNotConfigured.
func NewOpenAICaptioner(apiKey, model, baseURL string) *OpenAICaptioner {
	if model == "" {
		model = openai.GPT4o
	}
	if apiKey == "" {
		return &OpenAICaptioner{model: model}
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAICaptioner{client: openai.NewClientWithConfig(cfg), model: model}
}

func (c *OpenAICaptioner) Configured() bool { return c.client != nil }

func (c *OpenAICaptioner) Describe(ctx context.Context, imageURL string) (Caption, error) {
	if c.client == nil {
		return Caption{}, ErrNotConfigured
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: userPrompt},
					{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: imageURL}},
				},
			},
		},
		MaxTokens:      200,
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	})
	if err != nil {
		return Caption{}, fmt.Errorf("caption completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Caption{}, errors.New("caption completion: no choices")
	}

	var out Caption
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &out); err != nil {
		return Caption{}, fmt.Errorf("caption decode: %w", err)
	}
	out.Title = strings.TrimSpace(out.Title)
	out.Description = strings.TrimSpace(out.Description)
	return out, nil
}
