package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestAnthropicCreateMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("неожиданный путь %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "key" || r.Header.Get("anthropic-version") != anthropicVersion {
			t.Errorf("нет заголовков авторизации: %v", r.Header)
		}
		var req MessagesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("тело запроса не разбирается: %v", err)
		}
		if req.MaxTokens != 1024 || len(req.Messages) != 1 {
			t.Errorf("неожиданный запрос: %+v", req)
		}
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"итог"}],"usage":{"input_tokens":10,"output_tokens":3}}`))
	}))
	defer srv.Close()

	c := NewAnthropicClient("key", srv.URL, time.Second)
	resp, err := c.CreateMessage(context.Background(), MessagesRequest{
		Model:     "claude",
		MaxTokens: 1024,
		Messages:  []ChatMessage{{Role: RoleUser, Content: "привет"}},
	})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if text, ok := resp.Text(); !ok || text != "итог" {
		t.Fatalf("ожидали итог, получили %q", text)
	}
}

func TestAnthropicAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`))
	}))
	defer srv.Close()

	_, err := NewAnthropicClient("key", srv.URL, time.Second).CreateMessage(context.Background(), MessagesRequest{Model: "m", MaxTokens: 1})
	if err == nil || !strings.Contains(err.Error(), "slow down") {
		t.Fatalf("ожидали текст ошибки API, получили %v", err)
	}
}

func TestOpenAIChatCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" || r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("неожиданный запрос %s %v", r.URL.Path, r.Header)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`))
	}))
	defer srv.Close()

	resp, err := NewOpenAIClient("key", srv.URL+"/", time.Second).CreateChatCompletion(context.Background(), ChatCompletionRequest{Model: "m"})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(resp.Choices) != 1 || resp.Choices[0].Message.Content != "ok" {
		t.Fatalf("неожиданный ответ: %+v", resp)
	}
}

func TestEmptyKeyRejected(t *testing.T) {
	if _, err := NewOpenAIClient("", "", 0).CreateChatCompletion(context.Background(), ChatCompletionRequest{}); err == nil {
		t.Fatalf("пустой ключ должен давать ошибку")
	}
	if _, err := NewAnthropicClient("", "", 0).CreateMessage(context.Background(), MessagesRequest{}); err == nil {
		t.Fatalf("пустой ключ должен давать ошибку")
	}
}
