package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"tgfeed/internal/infra/metrics"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIClient выполняет Chat Completions запросы.
type OpenAIClient struct {
	http    *http.Client
	baseURL string
	apiKey  string
}

// NewOpenAIClient создаёт клиента OpenAI. Пустой baseURL означает публичный API.
func NewOpenAIClient(apiKey, baseURL string, timeout time.Duration) *OpenAIClient {
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	return &OpenAIClient{http: newHTTPClient(timeout), baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey}
}

// ChatCompletionRequest описывает тело запроса.
type ChatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

// ChatMessage представляет сообщение в диалоге.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// ChatCompletionResponse описывает ответ модели.
type ChatCompletionResponse struct {
	Choices []struct {
		Message ChatMessage `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
}

// CreateChatCompletion вызывает /chat/completions.
func (c *OpenAIClient) CreateChatCompletion(ctx context.Context, req ChatCompletionRequest) (ChatCompletionResponse, error) {
	if c.apiKey == "" {
		return ChatCompletionResponse{}, fmt.Errorf("openai: api key is empty")
	}
	var completion ChatCompletionResponse
	start, err := doJSON(ctx, c.http, call{
		component: "openai",
		operation: "chat_completions",
		model:     req.Model,
		endpoint:  c.baseURL + "/chat/completions",
		headers:   map[string]string{"Authorization": "Bearer " + c.apiKey},
		body:      req,
	}, &completion)
	if err != nil {
		return ChatCompletionResponse{}, err
	}
	if completion.Usage != nil {
		metrics.ObserveLLMGeneration(req.Model, time.Since(start), completion.Usage.PromptTokens, completion.Usage.CompletionTokens, completion.Usage.TotalTokens)
	}
	return completion, nil
}
