package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	IngestedPosts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "monitor_ingested_posts_total",
		Help: "Посты каналов по итогу обработки монитором",
	}, []string{"outcome"})

	MonitorCommands = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "monitor_commands_total",
		Help: "Команды, обработанные монитором",
	}, []string{"command", "status"})

	RelayDeliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_deliveries_total",
		Help: "Доставки пересланных постов подписчикам",
	}, []string{"status"})

	RelayEventSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "relay_event_seconds",
		Help:    "Время доставки одного события всем подписчикам",
		Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
	})

	RateLimited = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_rate_limited_total",
		Help: "Отклонённые лимитером команды",
	}, []string{"scope"})

	BusCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_bus_calls_total",
		Help: "Вызовы монитора через шину команд",
	}, []string{"command", "status"})

	BotSendErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bot_send_errors_total",
		Help: "Ошибки отправки сообщений ботом",
	})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 15, 20, 30, 45, 60, 90, 120},
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})

	LLMGenerationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "llm_generation_duration_seconds",
		Help:    "Длительность генерации ответа LLM",
		Buckets: prometheus.DefBuckets,
	}, []string{"model"})

	LLMTokensTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "llm_tokens_total",
		Help: "Количество токенов, использованных LLM",
	}, []string{"model", "type"})

	SummarizeRequestsByUser = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "summarize_requests_by_user_total",
		Help: "Количество запросов сводки по пользователям",
	}, []string{"user_id"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		IngestedPosts,
		MonitorCommands,
		RelayDeliveries,
		RelayEventSeconds,
		RateLimited,
		BusCalls,
		BotSendErrors,
		NetworkRequestDuration,
		NetworkRequestTotal,
		LLMGenerationDuration,
		LLMTokensTotal,
		SummarizeRequestsByUser,
	)
}

// StartServer запускает HTTP сервер с эндпоинтом /metrics.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	shutdownCtx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-ctx.Done():
		case <-shutdownCtx.Done():
		}
		shutdownTimeout, timeoutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer timeoutCancel()
		if err := srv.Shutdown(shutdownTimeout); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: graceful shutdown failed")
		}
	}()

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics: server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: server stopped")
		}
		cancel()
	}()
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}

// ObserveLLMGeneration записывает длительность и токены генерации LLM.
func ObserveLLMGeneration(model string, duration time.Duration, promptTokens, completionTokens, totalTokens int) {
	if model == "" {
		model = "unknown"
	}
	LLMGenerationDuration.WithLabelValues(model).Observe(duration.Seconds())
	if promptTokens > 0 {
		LLMTokensTotal.WithLabelValues(model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		LLMTokensTotal.WithLabelValues(model, "completion").Add(float64(completionTokens))
	}
	if totalTokens <= 0 {
		totalTokens = promptTokens + completionTokens
	}
	if totalTokens > 0 {
		LLMTokensTotal.WithLabelValues(model, "total").Add(float64(totalTokens))
	}
}

// IncIngested учитывает исход обработки поста.
func IncIngested(outcome string) {
	IngestedPosts.WithLabelValues(outcome).Inc()
}

// IncCommand учитывает команду монитора.
func IncCommand(command string, err error) {
	MonitorCommands.WithLabelValues(command, statusOf(err)).Inc()
}

// IncBusCall учитывает вызов монитора со стороны гейтвея.
func IncBusCall(command string, err error) {
	BusCalls.WithLabelValues(command, statusOf(err)).Inc()
}

// IncRateLimited учитывает отказ лимитера.
func IncRateLimited(scope string) {
	RateLimited.WithLabelValues(scope).Inc()
}

// IncDelivery учитывает доставку подписчику.
func IncDelivery(err error) {
	if err != nil {
		BotSendErrors.Inc()
	}
	RelayDeliveries.WithLabelValues(statusOf(err)).Inc()
}

// IncSummarizeForUser увеличивает счётчик запросов сводки для пользователя.
func IncSummarizeForUser(userID int64) {
	SummarizeRequestsByUser.WithLabelValues(strconv.FormatInt(userID, 10)).Inc()
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
