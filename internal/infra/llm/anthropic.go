package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"tgfeed/internal/infra/metrics"
)

const (
	defaultAnthropicBaseURL = "https://api.anthropic.com"
	anthropicVersion        = "2023-06-01"
)

// AnthropicClient вызывает Messages API.
type AnthropicClient struct {
	http    *http.Client
	baseURL string
	apiKey  string
}

// NewAnthropicClient создаёт клиента Anthropic.
func NewAnthropicClient(apiKey, baseURL string, timeout time.Duration) *AnthropicClient {
	if baseURL == "" {
		baseURL = defaultAnthropicBaseURL
	}
	return &AnthropicClient{http: newHTTPClient(timeout), baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey}
}

// MessagesRequest описывает тело запроса /v1/messages.
type MessagesRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	System    string        `json:"system,omitempty"`
	Messages  []ChatMessage `json:"messages"`
}

// MessagesResponse описывает ответ модели.
type MessagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage *struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage,omitempty"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Text возвращает первый текстовый блок ответа.
func (r MessagesResponse) Text() (string, bool) {
	for _, c := range r.Content {
		if c.Type == "" || c.Type == "text" {
			return c.Text, true
		}
	}
	return "", false
}

// CreateMessage вызывает /v1/messages.
func (c *AnthropicClient) CreateMessage(ctx context.Context, req MessagesRequest) (MessagesResponse, error) {
	if c.apiKey == "" {
		return MessagesResponse{}, fmt.Errorf("anthropic: api key is empty")
	}
	var resp MessagesResponse
	start, err := doJSON(ctx, c.http, call{
		component: "anthropic",
		operation: "messages",
		model:     req.Model,
		endpoint:  c.baseURL + "/v1/messages",
		headers: map[string]string{
			"x-api-key":         c.apiKey,
			"anthropic-version": anthropicVersion,
		},
		body: req,
	}, &resp)
	if err != nil {
		return MessagesResponse{}, err
	}
	if resp.Error != nil && resp.Error.Message != "" {
		return MessagesResponse{}, fmt.Errorf("anthropic: %s", resp.Error.Message)
	}
	if resp.Usage != nil {
		metrics.ObserveLLMGeneration(req.Model, time.Since(start), resp.Usage.InputTokens, resp.Usage.OutputTokens, 0)
	}
	return resp, nil
}
