// Package llm talks to the Ollama-compatible model that plays the
// interviewer: chat turns during a live session, one-shot generation for
// attachment transcription, and parsing of the model's structured replies.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/skillgate/go-interview-backend/internal/config"
	"github.com/skillgate/go-interview-backend/internal/domain"
)

// Client wraps the Ollama API client with the configured model and timeout.
type Client struct {
	api     *api.Client
	model   string
	timeout time.Duration
}

// NewClient builds a client from configuration.
func NewClient(cfg config.LLMConfig) (*Client, error) {
	u, err := url.ParseRequestURI(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid llm base url: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Client{
		api:     api.NewClient(u, &http.Client{Timeout: timeout}),
		model:   cfg.Model,
		timeout: timeout,
	}, nil
}

// Chat sends the system instruction plus the conversation so far and returns
// the model's raw reply text.
func (c *Client) Chat(ctx context.Context, system string, turns []domain.Turn) (string, error) {
	msgs := make([]api.Message, 0, len(turns)+1)
	msgs = append(msgs, api.Message{Role: "system", Content: system})
	for _, t := range turns {
		role := "user"
		if t.Role == domain.TurnRoleInterviewer {
			role = "assistant"
		}
		msgs = append(msgs, api.Message{Role: role, Content: t.Content})
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	stream := false
	var sb strings.Builder
	err := c.api.Chat(ctx, &api.ChatRequest{
		Model:    c.model,
		Messages: msgs,
		Stream:   &stream,
	}, func(r api.ChatResponse) error {
		sb.WriteString(r.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("chat: %w", err)
	}
	return sb.String(), nil
}

// Generate runs a single prompt without conversation state. Used by the
// invite worker to transcribe attachment documents.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	stream := false
	var sb strings.Builder
	err := c.api.Generate(ctx, &api.GenerateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: &stream,
	}, func(r api.GenerateResponse) error {
		sb.WriteString(r.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	return sb.String(), nil
}
