package summarizer

import (
	"context"
	"strings"
	"time"

	"tgfeed/internal/domain"
	"tgfeed/internal/infra/llm"
)

type messagesClient interface {
	CreateMessage(ctx context.Context, req llm.MessagesRequest) (llm.MessagesResponse, error)
}

// Anthropic реализует summarizer через Anthropic Messages API.
type Anthropic struct {
	client    messagesClient
	model     string
	maxTokens int
	timeout   time.Duration
}

// NewAnthropic создаёт провайдер суммаризации.
func NewAnthropic(client messagesClient, model string, maxTokens int, timeout time.Duration) *Anthropic {
	if model == "" {
		model = "claude-sonnet-4-5-20250929"
	}
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Anthropic{client: client, model: model, maxTokens: maxTokens, timeout: timeout}
}

// Summarize строит сводку по сообщениям каналов.
func (s *Anthropic) Summarize(ctx context.Context, messages []domain.MessageData) (string, error) {
	if len(messages) == 0 {
		return EmptyInput, nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.client.CreateMessage(ctx, llm.MessagesRequest{
		Model:     s.model,
		MaxTokens: s.maxTokens,
		Messages: []llm.ChatMessage{
			{Role: llm.RoleUser, Content: BuildPrompt(messages)},
		},
	})
	if err != nil {
		return "", wrap("anthropic", err)
	}
	text, ok := resp.Text()
	if !ok || strings.TrimSpace(text) == "" {
		return EmptyOutput, nil
	}
	return strings.TrimSpace(text), nil
}
