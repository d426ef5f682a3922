package monitor

import (
	"context"
	"errors"
	"time"

	"tgfeed/internal/domain"
	"tgfeed/internal/infra/metrics"
)

const (
	NothingToSummarize = "You have no subscriptions, nothing to summarize."
	NoNewMessages      = "No new messages since last summary."
)

// summarize строит сводку по постам с момента прошлого запроса.
// Окно сдвигается только после успешного ответа суммаризатора, отметка равна началу запуска.
func (s *Service) summarize(ctx context.Context, userID int64) domain.Reply {
	runStart := s.opts.Now()
	log := s.log.With().Int64("user", userID).Logger()
	metrics.IncSummarizeForUser(userID)

	subs, err := s.repo.ListSubscriptions(ctx, userID)
	if err != nil {
		log.Error().Err(err).Msg("monitor: не удалось получить подписки")
		return domain.ErrorReply(domain.ErrInternal)
	}
	if len(subs) == 0 {
		return domain.Reply{Summary: domain.SummaryResult{Text: NothingToSummarize}}
	}

	since := runStart.Add(-s.opts.DefaultWindow)
	last, ok, err := s.repo.LastSummarizedAt(ctx, userID)
	switch {
	case err != nil:
		log.Warn().Err(err).Msg("monitor: не удалось получить окно сводки, используем окно по умолчанию")
	case ok:
		since = last
	}

	handles := make(map[int64]string, len(subs))
	channelIDs := make([]int64, 0, len(subs))
	for _, sub := range subs {
		handles[sub.ChannelID] = sub.ChannelHandle
		channelIDs = append(channelIDs, sub.ChannelID)
	}

	stored, err := s.repo.MessagesSince(ctx, channelIDs, since, MinSummarizedRunes, s.opts.SummarizeMax)
	if err != nil {
		log.Error().Err(err).Msg("monitor: не удалось получить посты для сводки")
		return domain.ErrorReply(domain.ErrInternal)
	}

	data := make([]domain.MessageData, 0, len(stored))
	for _, msg := range stored {
		handle, ok := handles[msg.ChannelID]
		if !ok {
			continue
		}
		data = append(data, domain.MessageData{ChannelHandle: handle, Text: msg.Text, Date: msg.ReceivedAt})
	}
	if len(data) == 0 {
		return domain.Reply{Summary: domain.SummaryResult{Text: NoNewMessages, Since: since}}
	}

	started := time.Now()
	text, err := s.summarizer.Summarize(ctx, data)
	if err != nil {
		var sumErr *domain.SummarizerError
		if !errors.As(err, &sumErr) {
			err = &domain.SummarizerError{Provider: "unknown", Err: err}
		}
		log.Error().Err(err).Int("messages", len(data)).Msg("monitor: суммаризация не удалась")
		return domain.ErrorReply(err)
	}
	log.Info().Int("messages", len(data)).Dur("took", time.Since(started)).Msg("monitor: сводка готова")

	if err := s.repo.SetLastSummarizedAt(ctx, userID, runStart); err != nil {
		log.Error().Err(err).Msg("monitor: не удалось сохранить окно сводки")
	}
	return domain.Reply{Summary: domain.SummaryResult{Text: text, Count: len(data), Since: since}}
}
