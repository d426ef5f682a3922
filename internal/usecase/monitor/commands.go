package monitor

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"tgfeed/internal/domain"
	"tgfeed/internal/infra/metrics"
)

var handleRegex = regexp.MustCompile(`(?i)^(?:@|https?://t\.me/|t\.me/)?([a-z0-9_]{5,32})/?$`)

// ParseHandle приводит ввод пользователя к каноничному алиасу.
// Принимает @alias, alias и ссылки t.me. Некорректный ввод даёт NotFoundError.
func ParseHandle(input string) (string, error) {
	trim := strings.TrimSpace(input)
	matches := handleRegex.FindStringSubmatch(trim)
	if len(matches) < 2 {
		return "", &domain.NotFoundError{Handle: strings.TrimPrefix(trim, "@")}
	}
	return strings.ToLower(matches[1]), nil
}

// HandleCommand авторизует и выполняет команду пользователя.
func (s *Service) HandleCommand(ctx context.Context, cmd domain.Command) domain.Reply {
	log := s.log.With().Str("command_id", cmd.ID).Str("command", string(cmd.Kind)).Int64("user", cmd.UserID).Logger()

	if err := s.authorize(ctx, cmd); err != nil {
		if !errors.Is(err, domain.ErrNotAllowed) {
			log.Error().Err(err).Msg("monitor: не удалось проверить доступ")
			err = domain.ErrInternal
		} else {
			log.Warn().Msg("monitor: пользователь не в списке доступа")
		}
		metrics.IncCommand(string(cmd.Kind), err)
		return domain.ErrorReply(err)
	}

	var reply domain.Reply
	switch cmd.Kind {
	case domain.CommandSubscribe, domain.CommandUnsubscribe:
		handle, err := ParseHandle(cmd.Handle)
		switch {
		case err != nil:
			reply = domain.ErrorReply(err)
		case cmd.Kind == domain.CommandSubscribe:
			reply = s.subscribe(ctx, cmd.UserID, handle)
		default:
			reply = s.unsubscribe(ctx, cmd.UserID, handle)
		}
	case domain.CommandList:
		reply = s.list(ctx, cmd.UserID)
	case domain.CommandSummarize:
		reply = s.summarize(ctx, cmd.UserID)
	default:
		reply = domain.ErrorReply(domain.ErrInternal)
	}
	metrics.IncCommand(string(cmd.Kind), reply.Err)
	if reply.Err != nil {
		log.Warn().Err(reply.Err).Msg("monitor: команда завершилась ошибкой")
	}
	return reply
}

func (s *Service) authorize(ctx context.Context, cmd domain.Command) error {
	if cmd.Kind == domain.CommandShutdown {
		return nil
	}
	allowed, err := s.repo.IsUserAllowed(ctx, cmd.UserID)
	if err != nil {
		return err
	}
	if !allowed {
		return domain.ErrNotAllowed
	}
	return nil
}

func (s *Service) resolve(ctx context.Context, handle string) (domain.ChannelMeta, error) {
	if handle == "" {
		return domain.ChannelMeta{}, &domain.NotFoundError{Handle: handle}
	}
	meta, err := s.client.ResolveHandle(ctx, handle)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ChannelMeta{}, &domain.NotFoundError{Handle: handle}
	}
	if err != nil {
		s.log.Error().Err(err).Str("handle", handle).Msg("monitor: не удалось резолвить алиас")
		return domain.ChannelMeta{}, domain.ErrInternal
	}
	return meta, nil
}

func (s *Service) subscribe(ctx context.Context, userID int64, handle string) domain.Reply {
	meta, err := s.resolve(ctx, handle)
	if err != nil {
		return domain.ErrorReply(err)
	}
	if meta.Handle == "" {
		return domain.ErrorReply(domain.ErrEmptyHandle)
	}
	log := s.log.With().Int64("user", userID).Int64("channel", meta.ID).Str("handle", meta.Handle).Logger()

	subscribed, err := s.repo.IsSubscribed(ctx, userID, meta.ID)
	if err != nil {
		log.Error().Err(err).Msg("monitor: не удалось проверить подписку")
		return domain.ErrorReply(domain.ErrInternal)
	}
	if subscribed {
		return domain.Reply{Handles: []string{meta.Handle}}
	}

	if s.opts.MaxSubscriptions > 0 {
		count, err := s.repo.CountSubscriptions(ctx, userID)
		if err != nil {
			log.Error().Err(err).Msg("monitor: не удалось посчитать подписки")
			return domain.ErrorReply(domain.ErrInternal)
		}
		if count >= s.opts.MaxSubscriptions {
			return domain.ErrorReply(&domain.SubscriptionLimitError{Max: s.opts.MaxSubscriptions})
		}
	}

	if err := s.client.JoinChannel(ctx, meta); err != nil {
		log.Warn().Err(err).Msg("monitor: не удалось вступить в канал")
	}

	err = s.repo.AddSubscription(ctx, domain.Subscription{
		UserID:        userID,
		ChannelID:     meta.ID,
		ChannelHandle: meta.Handle,
		SubscribedAt:  s.opts.Now(),
	})
	if err != nil {
		log.Error().Err(err).Msg("monitor: не удалось сохранить подписку")
		return domain.ErrorReply(domain.ErrInternal)
	}
	log.Info().Msg("monitor: подписка оформлена")
	return domain.Reply{Handles: []string{meta.Handle}}
}

func (s *Service) unsubscribe(ctx context.Context, userID int64, handle string) domain.Reply {
	if handle == "" {
		return domain.ErrorReply(&domain.NotFoundError{Handle: handle})
	}
	removed, err := s.repo.RemoveSubscriptionByHandle(ctx, userID, handle)
	if err != nil {
		s.log.Error().Err(err).Int64("user", userID).Str("handle", handle).Msg("monitor: не удалось удалить подписку")
		return domain.ErrorReply(domain.ErrInternal)
	}
	if removed {
		return domain.Reply{Handles: []string{handle}}
	}

	// алиас в базе мог устареть после переименования канала
	meta, err := s.resolve(ctx, handle)
	if err != nil {
		return domain.ErrorReply(err)
	}
	removed, err = s.repo.RemoveSubscriptionByChannel(ctx, userID, meta.ID)
	if err != nil {
		s.log.Error().Err(err).Int64("user", userID).Int64("channel", meta.ID).Msg("monitor: не удалось удалить подписку")
		return domain.ErrorReply(domain.ErrInternal)
	}
	if !removed {
		return domain.ErrorReply(&domain.NotFoundError{Handle: handle})
	}
	if meta.Handle != "" {
		if err := s.repo.UpdateChannelHandle(ctx, meta.ID, meta.Handle); err != nil {
			s.log.Warn().Err(err).Int64("channel", meta.ID).Msg("monitor: не удалось обновить алиас канала")
		}
	}
	return domain.Reply{Handles: []string{handle}}
}

func (s *Service) list(ctx context.Context, userID int64) domain.Reply {
	subs, err := s.repo.ListSubscriptions(ctx, userID)
	if err != nil {
		s.log.Error().Err(err).Int64("user", userID).Msg("monitor: не удалось получить подписки")
		return domain.ErrorReply(domain.ErrInternal)
	}
	handles := make([]string, 0, len(subs))
	for _, sub := range subs {
		handles = append(handles, sub.ChannelHandle)
	}
	return domain.Reply{Handles: handles}
}
