package summarizer

import (
	"context"
	"errors"
	"strings"
	"time"

	"tgfeed/internal/domain"
	"tgfeed/internal/infra/llm"
)

type chatClient interface {
	CreateChatCompletion(ctx context.Context, req llm.ChatCompletionRequest) (llm.ChatCompletionResponse, error)
}

// OpenAI реализует summarizer через OpenAI Chat Completions.
type OpenAI struct {
	client    chatClient
	model     string
	maxTokens int
	timeout   time.Duration
}

// NewOpenAI создаёт провайдер суммаризации.
func NewOpenAI(client chatClient, model string, maxTokens int, timeout time.Duration) *OpenAI {
	if model == "" {
		model = "gpt-4.1-mini"
	}
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenAI{client: client, model: model, maxTokens: maxTokens, timeout: timeout}
}

// Summarize строит сводку по сообщениям каналов.
func (s *OpenAI) Summarize(ctx context.Context, messages []domain.MessageData) (string, error) {
	if len(messages) == 0 {
		return EmptyInput, nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req := llm.ChatCompletionRequest{
		Model:       s.model,
		Temperature: 0.2,
		MaxTokens:   s.maxTokens,
		Messages: []llm.ChatMessage{
			{Role: llm.RoleUser, Content: BuildPrompt(messages)},
		},
	}
	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", wrap("openai", err)
	}
	if len(resp.Choices) == 0 {
		return "", wrap("openai", errors.New("пустой ответ"))
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return EmptyOutput, nil
	}
	return text, nil
}
