package main

import (
	"context"
	"errors"
	"os/signal"
	"sync"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"tgfeed/internal/adapters/bot"
	"tgfeed/internal/adapters/mtproto"
	"tgfeed/internal/adapters/repo"
	"tgfeed/internal/domain"
	"tgfeed/internal/infra/commandbus"
	"tgfeed/internal/infra/config"
	"tgfeed/internal/infra/db"
	httpserver "tgfeed/internal/infra/http"
	"tgfeed/internal/infra/log"
	"tgfeed/internal/infra/metrics"
	"tgfeed/internal/infra/ratelimit"
	"tgfeed/internal/infra/retry"
	"tgfeed/internal/usecase/monitor"
)

func main() {
	cfg := config.Load()
	logger := log.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	metrics.MustRegister(prometheus.DefaultRegisterer)
	metrics.StartServer(ctx, logger, cfg.MetricsAddr)

	if cfg.PGDSN == "" {
		logger.Fatal().Msg("PG_DSN не задан")
	}
	pool, err := db.Connect(ctx, cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось подключиться к БД")
	}
	defer pool.Close()

	store := repo.NewPostgres(pool)
	if err := store.Migrate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("не удалось применить схему")
	}
	seedAllowedUsers(ctx, cfg, store, logger)

	relayQueue, closeQueue, err := buildRelayQueue(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось создать очередь пересылки")
	}
	defer closeQueue()

	summarizer, err := buildSummarizer(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось создать суммаризатор")
	}

	client, updates, err := mtproto.Connect(ctx, mtproto.Config{
		APIID:       cfg.Telegram.APIID,
		APIHash:     cfg.Telegram.APIHash,
		SessionName: cfg.MTProto.SessionName,
	}, store, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось подключиться к MTProto")
	}
	defer client.Close()

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось создать бота")
	}
	if _, err := botAPI.Request(bot.BotCommands()); err != nil {
		logger.Warn().Err(err).Msg("не удалось зарегистрировать команды бота")
	}

	bus := commandbus.New(cfg.Queues.CommandSize)
	monitorService := monitor.NewService(client, store, summarizer, relayQueue, logger, monitor.Options{
		MaxSubscriptions: cfg.Limits.MaxSubscriptions,
		SummarizeMax:     cfg.Limits.SummarizeMax,
		DefaultWindow:    cfg.Limits.SummarizeWindow,
	})
	handler := bot.NewHandler(botAPI, logger, bus, ratelimit.NewLimiters(), cfg.Limits.CallTimeout)
	relay := bot.NewRelay(relayQueue, botAPI, retry.Policy{
		Initial:     cfg.Delivery.RetryInitial,
		MaxAttempts: cfg.Delivery.MaxAttempts,
		Timeout:     cfg.Delivery.SendTimeout,
	}, cfg.Delivery.Pacing, logger)

	// Монитор завершается командой Shutdown, а не отменой ctx.
	monitorDone := make(chan error, 1)
	go func() {
		monitorDone <- monitorService.Run(context.Background(), bus, updates)
	}()

	gatewayCtx, stopGateway := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := relay.Run(gatewayCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("relay: цикл завершился с ошибкой")
		}
	}()

	var server *httpserver.Server
	if cfg.Telegram.WebhookURL != "" {
		server = startWebhook(gatewayCtx, cfg, botAPI, handler, logger)
	} else {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runPolling(gatewayCtx, botAPI, handler, logger)
		}()
	}

	logger.Info().Msg("tgfeed запущен")
	select {
	case <-ctx.Done():
		logger.Info().Msg("получен сигнал остановки")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := bus.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("не удалось отправить Shutdown монитору")
		}
		cancel()
		if err := <-monitorDone; err != nil {
			logger.Error().Err(err).Msg("монитор завершился с ошибкой")
		}
	case err := <-monitorDone:
		logger.Error().Err(err).Msg("монитор остановился, завершаем работу")
	}

	stopGateway()
	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = server.Shutdown(shutdownCtx)
		cancel()
	}
	wg.Wait()
	logger.Info().Msg("tgfeed остановлен")
}

func seedAllowedUsers(ctx context.Context, cfg config.AppConfig, users domain.UserRepo, logger zerolog.Logger) {
	ids, invalid := cfg.AllowedUserIDs()
	for _, raw := range invalid {
		logger.Warn().Str("value", raw).Msg("ALLOWED_USERS: некорректный id пропущен")
	}
	for _, id := range ids {
		if err := users.UpsertUser(ctx, domain.User{TelegramID: id, Allowed: true}); err != nil {
			logger.Error().Err(err).Int64("user", id).Msg("не удалось добавить пользователя в список доступа")
		}
	}
	if len(ids) > 0 {
		logger.Info().Int("count", len(ids)).Msg("список доступа обновлён")
	}
}

func runPolling(ctx context.Context, botAPI *tgbotapi.BotAPI, handler *bot.Handler, logger zerolog.Logger) {
	if _, err := botAPI.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		logger.Warn().Err(err).Msg("не удалось снять вебхук")
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := botAPI.GetUpdatesChan(u)
	logger.Info().Msg("бот: long polling запущен")
	for {
		select {
		case <-ctx.Done():
			botAPI.StopReceivingUpdates()
			return
		case upd, ok := <-updates:
			if !ok {
				return
			}
			go handler.HandleUpdate(ctx, upd)
		}
	}
}

func startWebhook(ctx context.Context, cfg config.AppConfig, botAPI *tgbotapi.BotAPI, handler *bot.Handler, logger zerolog.Logger) *httpserver.Server {
	if cfg.Telegram.WebhookSecret == "" {
		logger.Fatal().Msg("TG_WEBHOOK_SECRET обязателен вместе с TG_WEBHOOK_URL")
	}
	if _, err := tgbotapi.NewWebhook(cfg.Telegram.WebhookURL); err != nil {
		logger.Fatal().Err(err).Msg("некорректный TG_WEBHOOK_URL")
	}
	if _, err := botAPI.MakeRequest("setWebhook", webhookParams(cfg)); err != nil {
		logger.Fatal().Err(err).Msg("не удалось зарегистрировать вебхук")
	}
	server := httpserver.NewServer(logger, cfg.HTTPAddr)
	server.MountWebhook(ctx, cfg.Telegram.WebhookSecret, handler.HandleUpdate)
	go func() {
		if err := server.Start(); err != nil {
			logger.Error().Err(err).Msg("HTTP сервер остановлен")
		}
	}()
	return server
}
