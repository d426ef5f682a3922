package main

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/redis/go-redis/v9"

	"tgfeed/internal/adapters/summarizer"
	"tgfeed/internal/domain"
	"tgfeed/internal/infra/config"
	"tgfeed/internal/infra/llm"
	"tgfeed/internal/infra/queue"
)

// buildRelayQueue выбирает бэкенд очереди пересылки по RELAY_QUEUE_BACKEND.
func buildRelayQueue(cfg config.AppConfig) (domain.RelayQueue, func(), error) {
	switch cfg.Queues.RelayBackend {
	case "", "memory":
		return queue.NewMemoryRelayQueue(cfg.Queues.RelaySize), func() {}, nil
	case "redis":
		if cfg.RedisAddr == "" {
			return nil, nil, fmt.Errorf("REDIS_ADDR не задан")
		}
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return queue.NewRedisRelayQueue(client, cfg.Queues.RelayKey), func() { _ = client.Close() }, nil
	case "rabbitmq":
		if cfg.RabbitMQURL == "" {
			return nil, nil, fmt.Errorf("RABBITMQ_URL не задан")
		}
		q, err := queue.NewRabbitRelayQueue(cfg.RabbitMQURL, cfg.Queues.RelayKey)
		if err != nil {
			return nil, nil, err
		}
		return q, func() { _ = q.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("неизвестный RELAY_QUEUE_BACKEND %q", cfg.Queues.RelayBackend)
	}
}

// buildSummarizer выбирает провайдера по SUMMARIZER_PROVIDER.
func buildSummarizer(cfg config.AppConfig) (domain.Summarizer, error) {
	switch cfg.Summarizer.Provider {
	case "", "simple":
		return summarizer.NewSimple(), nil
	case "openai":
		if cfg.OpenAI.APIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY не задан")
		}
		client := llm.NewOpenAIClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Timeout)
		return summarizer.NewOpenAI(client, cfg.OpenAI.Model, cfg.OpenAI.MaxTokens, cfg.OpenAI.Timeout), nil
	case "anthropic":
		if cfg.Anthropic.APIKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY не задан")
		}
		client := llm.NewAnthropicClient(cfg.Anthropic.APIKey, cfg.Anthropic.BaseURL, cfg.Anthropic.Timeout)
		return summarizer.NewAnthropic(client, cfg.Anthropic.Model, cfg.Anthropic.MaxTokens, cfg.Anthropic.Timeout), nil
	default:
		return nil, fmt.Errorf("неизвестный SUMMARIZER_PROVIDER %q", cfg.Summarizer.Provider)
	}
}

// webhookParams собирает параметры setWebhook вместе с secret_token.
func webhookParams(cfg config.AppConfig) tgbotapi.Params {
	return tgbotapi.Params{
		"url":          cfg.Telegram.WebhookURL,
		"secret_token": cfg.Telegram.WebhookSecret,
	}
}
