package main

import (
	"testing"

	"tgfeed/internal/adapters/summarizer"
	"tgfeed/internal/infra/config"
	"tgfeed/internal/infra/queue"
)

func TestBuildSummarizer(t *testing.T) {
	var cfg config.AppConfig
	s, err := buildSummarizer(cfg)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if _, ok := s.(*summarizer.SimpleSummarizer); !ok {
		t.Fatalf("по умолчанию ожидали простой суммаризатор, получили %T", s)
	}

	cfg.Summarizer.Provider = "anthropic"
	if _, err := buildSummarizer(cfg); err == nil {
		t.Fatalf("без ключа anthropic ожидали ошибку")
	}
	cfg.Anthropic.APIKey = "key"
	s, err = buildSummarizer(cfg)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if _, ok := s.(*summarizer.Anthropic); !ok {
		t.Fatalf("ожидали Anthropic, получили %T", s)
	}

	cfg.Summarizer.Provider = "gemini"
	if _, err := buildSummarizer(cfg); err == nil {
		t.Fatalf("неизвестный провайдер должен давать ошибку")
	}
}

func TestBuildRelayQueue(t *testing.T) {
	var cfg config.AppConfig
	cfg.Queues.RelaySize = 4
	q, closeFn, err := buildRelayQueue(cfg)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	defer closeFn()
	if _, ok := q.(*queue.MemoryRelayQueue); !ok {
		t.Fatalf("ожидали очередь в памяти, получили %T", q)
	}

	cfg.Queues.RelayBackend = "redis"
	if _, _, err := buildRelayQueue(cfg); err == nil {
		t.Fatalf("без REDIS_ADDR ожидали ошибку")
	}
	cfg.Queues.RelayBackend = "kafka"
	if _, _, err := buildRelayQueue(cfg); err == nil {
		t.Fatalf("неизвестный бэкенд должен давать ошибку")
	}
}

func TestWebhookParamsCarrySecret(t *testing.T) {
	var cfg config.AppConfig
	cfg.Telegram.WebhookURL = "https://bot.example.com/bot/webhook"
	cfg.Telegram.WebhookSecret = "s3cret"
	params := webhookParams(cfg)
	if params["url"] != cfg.Telegram.WebhookURL || params["secret_token"] != "s3cret" {
		t.Fatalf("неожиданные параметры setWebhook: %v", params)
	}
}
