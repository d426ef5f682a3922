package bot

import (
	"context"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"tgfeed/internal/adapters/telegram"
	"tgfeed/internal/domain"
	"tgfeed/internal/infra/metrics"
	"tgfeed/internal/infra/retry"
)

// EventReceiver отдаёт события пересылки по одному.
type EventReceiver interface {
	Receive(ctx context.Context) (domain.RelayEvent, domain.RelayAckFunc, error)
}

// Relay доставляет посты каналов подписчикам последовательно.
type Relay struct {
	events EventReceiver
	bot    Sender
	policy retry.Policy
	pacing time.Duration
	log    zerolog.Logger
}

// NewRelay создаёт доставщик. pacing — пауза между получателями одного события.
func NewRelay(events EventReceiver, bot Sender, policy retry.Policy, pacing time.Duration, log zerolog.Logger) *Relay {
	return &Relay{
		events: events,
		bot:    bot,
		policy: policy,
		pacing: pacing,
		log:    log.With().Str("component", "relay").Logger(),
	}
}

// Run вычитывает очередь событий до отмены ctx.
func (r *Relay) Run(ctx context.Context) error {
	r.log.Info().Msg("relay: цикл доставки запущен")
	for {
		event, ack, err := r.events.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.log.Error().Err(err).Msg("relay: не удалось получить событие")
			if !sleepCtx(ctx, time.Second) {
				return nil
			}
			continue
		}

		started := time.Now()
		r.Deliver(ctx, event)
		metrics.RelayEventSeconds.Observe(time.Since(started).Seconds())

		if ack == nil {
			continue
		}
		if err := ack(ctx.Err() == nil); err != nil {
			r.log.Error().Err(err).Int64("channel", event.ChannelID).Msg("relay: не удалось подтвердить событие")
		}
	}
}

// Deliver отправляет событие всем подписчикам по порядку и возвращает число успешных доставок.
// Ошибка доставки одному получателю не прерывает рассылку остальным.
func (r *Relay) Deliver(ctx context.Context, event domain.RelayEvent) int {
	text, ranges := telegram.FormatRelay(event)
	parts := telegram.SplitUTF16(text, telegram.MessageLimit)
	partRanges := telegram.SplitRanges(ranges, parts)

	delivered := 0
	for i, userID := range event.Subscribers {
		if i > 0 && !sleepCtx(ctx, r.pacing) {
			return delivered
		}
		log := r.log.With().Int64("user", userID).Int64("channel", event.ChannelID).Int("message_id", event.MessageID).Logger()
		log.Debug().Msg("relay: отправка сообщения пользователю")

		err := r.sendAll(ctx, log, userID, parts, partRanges)
		metrics.IncDelivery(err)
		if err != nil {
			if ctx.Err() != nil {
				return delivered
			}
			log.Error().Err(err).Msg("relay: не удалось доставить сообщение")
			continue
		}
		delivered++
		log.Info().Msg("relay: сообщение доставлено")
	}
	return delivered
}

func (r *Relay) sendAll(ctx context.Context, log zerolog.Logger, userID int64, parts []string, partRanges [][]domain.TextRange) error {
	policy := r.policy
	policy.OnRetry = func(err error, wait time.Duration) {
		log.Warn().Err(err).Dur("wait", wait).Msg("relay: повтор отправки")
	}
	for i, part := range parts {
		msg := tgbotapi.NewMessage(userID, part)
		msg.Entities = toEntities(partRanges[i])
		msg.DisableWebPagePreview = true
		err := policy.Do(ctx, func(context.Context) error {
			start := time.Now()
			_, err := r.bot.Send(msg)
			metrics.ObserveNetworkRequest("telegram_bot", "relay_message", strconv.FormatInt(userID, 10), start, err)
			return err
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
