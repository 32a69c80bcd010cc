package data

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"

// GeminiDrafter drafts replies through Gemini's OpenAI-compatible API
type GeminiDrafter struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// NewGeminiDrafter creates a new Gemini drafter
func NewGeminiDrafter(apiKey, model string, timeout time.Duration) *GeminiDrafter {
	if model == "" {
		model = "gemini-2.0-flash"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	config := openai.DefaultConfig(apiKey)
	config.BaseURL = geminiBaseURL

	return &GeminiDrafter{
		client:  openai.NewClientWithConfig(config),
		model:   model,
		timeout: timeout,
	}
}

// Draft sends the prompt and returns the drafted reply text
func (d *GeminiDrafter) Draft(ctx context.Context, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	resp, err := d.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
		Model: d.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.7,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response choices")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
