// Package llm implements OCR through an OpenAI-compatible vision model.
package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/pavelanni/answergrader/internal/llm/prompts"
)

// Client wraps an OpenAI-compatible API client and satisfies ocr.Engine.
type Client struct {
	api          *openai.Client
	model        string
	systemPrompt string
}

// New creates a new vision OCR client.
func New(baseURL, apiKey, modelName string, languages []string) (*Client, error) {
	if modelName == "" {
		return nil, fmt.Errorf("model name is required")
	}
	systemPrompt, err := prompts.BuildTranscribePrompt(languages)
	if err != nil {
		return nil, fmt.Errorf("build transcription prompt: %w", err)
	}

	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:          openai.NewClientWithConfig(config),
		model:        modelName,
		systemPrompt: systemPrompt,
	}, nil
}

func (c *Client) Name() string { return "vision" }

// Ping checks that the endpoint answers.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// Recognize sends the image to the model and returns its transcription.
func (c *Client) Recognize(ctx context.Context, image []byte) (string, error) {
	dataURL := "data:" + http.DetectContentType(image) + ";base64," +
		base64.StdEncoding.EncodeToString(image)

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: c.systemPrompt},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: "Transcribe the answer in this image."},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURL,
							Detail: openai.ImageURLDetailHigh,
						},
					},
				},
			},
		},
		Temperature: 0.1,
	})
	if err != nil {
		return "", fmt.Errorf("LLM API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("LLM returned no choices")
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM transcription", "raw", raw)
	return strings.TrimSpace(prompts.CleanTranscription(raw)), nil
}
