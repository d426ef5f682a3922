package config

import (
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервиса.
type AppConfig struct {
	AppEnv      string `envconfig:"APP_ENV" default:"dev"`
	HTTPAddr    string `envconfig:"HTTP_ADDR" default:":8080"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`

	Telegram struct {
		Token         string `envconfig:"TG_BOT_TOKEN"`
		WebhookURL    string `envconfig:"TG_WEBHOOK_URL"`
		WebhookSecret string `envconfig:"TG_WEBHOOK_SECRET"`
		APIID         int    `envconfig:"TG_API_ID"`
		APIHash       string `envconfig:"TG_API_HASH"`
	} `envconfig:""`

	MTProto struct {
		SessionName string `envconfig:"MTPROTO_SESSION_NAME" default:"default"`
	} `envconfig:""`

	PGDSN       string `envconfig:"PG_DSN"`
	RedisAddr   string `envconfig:"REDIS_ADDR"`
	RabbitMQURL string `envconfig:"RABBITMQ_URL"`

	Queues struct {
		RelayBackend string `envconfig:"RELAY_QUEUE_BACKEND" default:"memory"`
		RelayKey     string `envconfig:"RELAY_QUEUE_KEY" default:"tgfeed_relay"`
		RelaySize    int    `envconfig:"RELAY_QUEUE_SIZE" default:"1024"`
		CommandSize  int    `envconfig:"COMMAND_QUEUE_SIZE" default:"100"`
	} `envconfig:""`

	Limits struct {
		MaxSubscriptions int           `envconfig:"MAX_SUBSCRIPTIONS" default:"30"`
		SummarizeMax     int           `envconfig:"SUMMARIZE_MAX_MESSAGES" default:"150"`
		SummarizeWindow  time.Duration `envconfig:"SUMMARIZE_DEFAULT_WINDOW" default:"168h"`
		CallTimeout      time.Duration `envconfig:"MONITOR_CALL_TIMEOUT" default:"2m"`
	} `envconfig:""`

	Summarizer struct {
		Provider string `envconfig:"SUMMARIZER_PROVIDER" default:"simple"`
	} `envconfig:""`

	OpenAI struct {
		APIKey    string        `envconfig:"OPENAI_API_KEY"`
		BaseURL   string        `envconfig:"OPENAI_BASE_URL"`
		Model     string        `envconfig:"OPENAI_MODEL" default:"gpt-4.1-mini"`
		MaxTokens int           `envconfig:"OPENAI_MAX_TOKENS" default:"1024"`
		Timeout   time.Duration `envconfig:"OPENAI_TIMEOUT" default:"60s"`
	} `envconfig:""`

	Anthropic struct {
		APIKey    string        `envconfig:"ANTHROPIC_API_KEY"`
		BaseURL   string        `envconfig:"ANTHROPIC_BASE_URL"`
		Model     string        `envconfig:"ANTHROPIC_MODEL" default:"claude-sonnet-4-5-20250929"`
		MaxTokens int           `envconfig:"ANTHROPIC_MAX_TOKENS" default:"1024"`
		Timeout   time.Duration `envconfig:"ANTHROPIC_TIMEOUT" default:"60s"`
	} `envconfig:""`

	Delivery struct {
		RetryInitial time.Duration `envconfig:"DELIVERY_RETRY_INITIAL" default:"1s"`
		MaxAttempts  int           `envconfig:"DELIVERY_MAX_ATTEMPTS" default:"5"`
		SendTimeout  time.Duration `envconfig:"DELIVERY_SEND_TIMEOUT" default:"30s"`
		Pacing       time.Duration `envconfig:"DELIVERY_PACING" default:"1s"`
	} `envconfig:""`

	// AllowedUsers — telegram id через запятую, добавляются в список доступа при старте.
	AllowedUsers string `envconfig:"ALLOWED_USERS"`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	cfg, err := Parse()
	if err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}

// Parse читает конфиг из окружения без завершения процесса.
func Parse() (AppConfig, error) {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// AllowedUserIDs разбирает ALLOWED_USERS. Некорректные значения возвращаются отдельно.
func (c AppConfig) AllowedUserIDs() ([]int64, []string) {
	var ids []int64
	var invalid []string
	for _, part := range strings.Split(c.AllowedUsers, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			invalid = append(invalid, part)
			continue
		}
		ids = append(ids, id)
	}
	return ids, invalid
}
