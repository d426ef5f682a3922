package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"tgfeed/internal/domain"
	"tgfeed/internal/infra/commandbus"
	"tgfeed/internal/infra/metrics"
)

const (
	// MinStoredRunes — минимальная длина поста для сохранения в историю.
	MinStoredRunes = 20
	// MinSummarizedRunes — посты короче не попадают в сводку.
	MinSummarizedRunes = 31
)

// ErrUpdatesClosed возвращается, если MTProto-клиент закрыл поток обновлений.
var ErrUpdatesClosed = errors.New("поток обновлений закрыт")

// Options задаёт параметры монитора.
type Options struct {
	// MaxSubscriptions ограничивает число подписок пользователя, 0 отключает лимит.
	MaxSubscriptions int
	SummarizeMax     int
	DefaultWindow    time.Duration
	Now              func() time.Time
}

func (o Options) withDefaults() Options {
	if o.SummarizeMax <= 0 {
		o.SummarizeMax = 150
	}
	if o.DefaultWindow <= 0 {
		o.DefaultWindow = 7 * 24 * time.Hour
	}
	if o.Now == nil {
		o.Now = func() time.Time { return time.Now().UTC() }
	}
	return o
}

// CommandSource — очередь команд, которую обслуживает монитор.
type CommandSource interface {
	Requests() <-chan commandbus.Request
	Close()
}

// Service обрабатывает посты каналов и команды пользователей в одном цикле.
type Service struct {
	client     domain.ChatClient
	repo       domain.Repository
	summarizer domain.Summarizer
	publisher  domain.RelayPublisher
	log        zerolog.Logger
	opts       Options
}

// NewService создаёт монитор.
func NewService(client domain.ChatClient, repo domain.Repository, summarizer domain.Summarizer, publisher domain.RelayPublisher, log zerolog.Logger, opts Options) *Service {
	return &Service{
		client:     client,
		repo:       repo,
		summarizer: summarizer,
		publisher:  publisher,
		log:        log.With().Str("component", "monitor").Logger(),
		opts:       opts.withDefaults(),
	}
}

// Run обслуживает команды и обновления до Shutdown, отмены ctx или закрытия потока.
// После выхода очередь команд закрывается, оставшиеся запросы снимаются без ответа.
func (s *Service) Run(ctx context.Context, commands CommandSource, updates <-chan domain.InboundPost) error {
	defer commands.Close()

	requests := commands.Requests()
	s.log.Info().Msg("monitor: цикл запущен")
	for {
		select {
		case <-ctx.Done():
			s.checkpoint()
			return ctx.Err()
		case req := <-requests:
			if req.Command.Kind == domain.CommandShutdown {
				s.log.Info().Str("command_id", req.Command.ID).Msg("monitor: получен сигнал остановки")
				s.checkpoint()
				return nil
			}
			req.Respond(s.HandleCommand(ctx, req.Command))
		case post, ok := <-updates:
			if !ok {
				s.checkpoint()
				return ErrUpdatesClosed
			}
			if err := s.HandlePost(ctx, post); err != nil {
				s.log.Error().Err(err).Int64("channel", post.ChannelID).Int("message_id", post.MessageID).Msg("monitor: пост отброшен")
			}
		}
	}
}

func (s *Service) checkpoint() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.client.Checkpoint(ctx); err != nil {
		s.log.Error().Err(err).Msg("monitor: не удалось сохранить состояние сессии")
	}
}

// HandlePost обрабатывает новый пост канала: фильтрует рекламу, сохраняет и публикует событие пересылки.
// Ошибки хранилища возвращаются, пост при этом не повторяется.
func (s *Service) HandlePost(ctx context.Context, post domain.InboundPost) error {
	if post.Outgoing || !post.IsChannel {
		metrics.IncIngested("skipped")
		return nil
	}
	log := s.log.With().Int64("channel", post.ChannelID).Int("message_id", post.MessageID).Logger()

	if post.ChannelHandle == "" {
		metrics.IncIngested("no_handle")
		return domain.ErrEmptyHandle
	}
	if IsAd(post.Text) {
		log.Info().Str("handle", post.ChannelHandle).Msg("monitor: рекламный пост пропущен")
		metrics.IncIngested("ad")
		return nil
	}
	if post.Text == "" {
		metrics.IncIngested("empty")
		return nil
	}

	if utf8.RuneCountInString(post.Text) >= MinStoredRunes {
		err := s.repo.StoreMessage(ctx, domain.StoredMessage{
			ChannelID:  post.ChannelID,
			MessageID:  post.MessageID,
			Text:       post.Text,
			ReceivedAt: s.opts.Now(),
		})
		if err != nil {
			metrics.IncIngested("store_failed")
			return fmt.Errorf("сохранение поста: %w", err)
		}
	}

	subscribers, err := s.repo.ChannelSubscribers(ctx, post.ChannelID)
	if err != nil {
		metrics.IncIngested("store_failed")
		return fmt.Errorf("получение подписчиков: %w", err)
	}
	if len(subscribers) == 0 {
		metrics.IncIngested("no_subscribers")
		return nil
	}

	event := domain.RelayEvent{
		ChannelID:     post.ChannelID,
		ChannelHandle: post.ChannelHandle,
		MessageID:     post.MessageID,
		Text:          post.Text,
		Subscribers:   subscribers,
		Entities:      post.Entities,
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		log.Error().Err(err).Int("subscribers", len(subscribers)).Msg("monitor: не удалось передать событие гейтвею")
		metrics.IncIngested("publish_failed")
		return nil
	}
	log.Debug().Str("handle", post.ChannelHandle).Int("subscribers", len(subscribers)).Msg("monitor: событие пересылки опубликовано")
	metrics.IncIngested("relayed")
	return nil
}
