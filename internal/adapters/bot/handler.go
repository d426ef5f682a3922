package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"tgfeed/internal/adapters/telegram"
	"tgfeed/internal/domain"
	"tgfeed/internal/infra/metrics"
	"tgfeed/internal/infra/ratelimit"
	"tgfeed/internal/usecase/monitor"
)

const (
	textWait            = "⏳ Please wait a moment"
	textStart           = "👋 Hello! This is a Telegram channels aggregator. Run /help to see the available commands."
	textSubscribeUsage  = "Usage: /subscribe @channelname"
	textUnsubUsage      = "Usage: /unsubscribe @channelname"
	textMonitorDown     = "❌ Internal error: monitor not responding"
	textNoSubscriptions = "No active subscriptions"
	textSummarizeLimit  = "⏳ /summarize is limited to once per hour"
	textGenerating      = "⏳ Generating summary..."
	textUnknownCommand  = "❌ Unknown command"
)

// Sender отправляет сообщения через Bot API. Реализуется *tgbotapi.BotAPI.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// MonitorCaller передаёт команду монитору и ждёт ответа.
type MonitorCaller interface {
	Call(ctx context.Context, cmd domain.Command) (domain.Reply, error)
}

type botCommand struct {
	name        string
	description string
}

var commands = []botCommand{
	{"help", "Show this help message"},
	{"start", "Start the bot"},
	{"subscribe", "Subscribe to a channel: /subscribe @channel"},
	{"unsubscribe", "Unsubscribe from a channel: /unsubscribe @channel"},
	{"list", "List all subscriptions"},
	{"summarize", "Get AI summary of recent messages"},
}

// Handler обслуживает команды пользователей.
type Handler struct {
	bot         Sender
	log         zerolog.Logger
	monitor     MonitorCaller
	limits      ratelimit.Limiters
	callTimeout time.Duration
}

// NewHandler создаёт обработчик.
func NewHandler(bot Sender, log zerolog.Logger, monitor MonitorCaller, limits ratelimit.Limiters, callTimeout time.Duration) *Handler {
	if callTimeout <= 0 {
		callTimeout = 5 * time.Minute
	}
	return &Handler{
		bot:         bot,
		log:         log.With().Str("component", "bot").Logger(),
		monitor:     monitor,
		limits:      limits,
		callTimeout: callTimeout,
	}
}

// BotCommands возвращает список команд для меню бота.
func BotCommands() tgbotapi.SetMyCommandsConfig {
	list := make([]tgbotapi.BotCommand, 0, len(commands))
	for _, c := range commands {
		list = append(list, tgbotapi.BotCommand{Command: c.name, Description: c.description})
	}
	return tgbotapi.NewSetMyCommands(list...)
}

func helpText() string {
	var b strings.Builder
	b.WriteString("Available commands:\n")
	for _, c := range commands {
		fmt.Fprintf(&b, "\n/%s — %s", c.name, c.description)
	}
	return b.String()
}

// HandleUpdate обрабатывает входящий апдейт.
func (h *Handler) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message == nil || upd.Message.From == nil || upd.Message.Text == "" {
		return
	}
	h.handleMessage(ctx, upd.Message)
}

func (h *Handler) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	userID := msg.From.ID

	if !h.limits.Commands.Allow(userID) {
		h.log.Warn().Int64("user", userID).Msg("bot: превышен лимит команд")
		metrics.IncRateLimited("commands")
		h.reply(chatID, textWait, nil)
		return
	}
	if !msg.IsCommand() {
		h.reply(chatID, textUnknownCommand, nil)
		return
	}

	args := msg.CommandArguments()
	switch msg.Command() {
	case "start":
		h.reply(chatID, textStart, nil)
	case "help":
		h.reply(chatID, helpText(), nil)
	case "subscribe":
		h.handleSubscribe(ctx, chatID, userID, args)
	case "unsubscribe":
		h.handleUnsubscribe(ctx, chatID, userID, args)
	case "list":
		h.handleList(ctx, chatID, userID)
	case "summarize":
		h.handleSummarize(ctx, chatID, userID)
	default:
		h.reply(chatID, textUnknownCommand, nil)
	}
}

func (h *Handler) handleSubscribe(ctx context.Context, chatID, userID int64, args string) {
	handle, err := monitor.ParseHandle(args)
	if err != nil {
		h.reply(chatID, textSubscribeUsage, nil)
		return
	}
	reply, ok := h.call(ctx, chatID, domain.Command{Kind: domain.CommandSubscribe, UserID: userID, Handle: handle})
	if !ok {
		return
	}
	if reply.Err != nil {
		h.reply(chatID, fmt.Sprintf("❌ Failed to subscribe: %s", renderError(reply.Err)), nil)
		return
	}
	h.reply(chatID, fmt.Sprintf("✅ Subscribed to @%s", handle), nil)
}

func (h *Handler) handleUnsubscribe(ctx context.Context, chatID, userID int64, args string) {
	handle, err := monitor.ParseHandle(args)
	if err != nil {
		h.reply(chatID, textUnsubUsage, nil)
		return
	}
	reply, ok := h.call(ctx, chatID, domain.Command{Kind: domain.CommandUnsubscribe, UserID: userID, Handle: handle})
	if !ok {
		return
	}
	if reply.Err != nil {
		h.reply(chatID, fmt.Sprintf("❌ Failed to unsubscribe: %s", renderError(reply.Err)), nil)
		return
	}
	h.reply(chatID, fmt.Sprintf("✅ Unsubscribed from @%s", handle), nil)
}

func (h *Handler) handleList(ctx context.Context, chatID, userID int64) {
	reply, ok := h.call(ctx, chatID, domain.Command{Kind: domain.CommandList, UserID: userID})
	if !ok {
		return
	}
	if reply.Err != nil {
		h.reply(chatID, fmt.Sprintf("❌ Failed to list subscriptions: %s", renderError(reply.Err)), nil)
		return
	}
	if len(reply.Handles) == 0 {
		h.reply(chatID, textNoSubscriptions, nil)
		return
	}
	var b strings.Builder
	b.WriteString("📋 Active subscriptions:\n")
	for _, handle := range reply.Handles {
		fmt.Fprintf(&b, "• @%s\n", handle)
	}
	h.reply(chatID, b.String(), nil)
}

func (h *Handler) handleSummarize(ctx context.Context, chatID, userID int64) {
	if !h.limits.Summarize.Allow(userID) {
		h.log.Warn().Int64("user", userID).Msg("bot: превышен лимит /summarize")
		metrics.IncRateLimited("summarize")
		h.reply(chatID, textSummarizeLimit, nil)
		return
	}
	h.reply(chatID, textGenerating, nil)

	reply, ok := h.call(ctx, chatID, domain.Command{Kind: domain.CommandSummarize, UserID: userID})
	if !ok {
		return
	}
	if reply.Err != nil {
		h.reply(chatID, fmt.Sprintf("❌ Failed summarizing: %s", renderError(reply.Err)), nil)
		return
	}
	h.reply(chatID, reply.Summary.Text, nil)
}

// call возвращает false, если монитор не ответил; пользователю уже отправлено сообщение об ошибке.
func (h *Handler) call(ctx context.Context, chatID int64, cmd domain.Command) (domain.Reply, bool) {
	ctx, cancel := context.WithTimeout(ctx, h.callTimeout)
	defer cancel()

	reply, err := h.monitor.Call(ctx, cmd)
	metrics.IncBusCall(string(cmd.Kind), err)
	if err != nil {
		h.log.Error().Err(err).Int64("user", cmd.UserID).Str("command", string(cmd.Kind)).Msg("bot: монитор не ответил")
		h.reply(chatID, textMonitorDown, nil)
		return domain.Reply{}, false
	}
	return reply, true
}

func renderError(err error) string {
	switch {
	case errors.Is(err, domain.ErrInternal):
		return "Internal server error"
	case errors.Is(err, domain.ErrEmptyHandle):
		return "Private channels not supported"
	default:
		return err.Error()
	}
}

func (h *Handler) reply(chatID int64, text string, ranges []domain.TextRange) {
	parts := telegram.SplitUTF16(text, telegram.MessageLimit)
	partRanges := telegram.SplitRanges(ranges, parts)
	for i, part := range parts {
		msg := tgbotapi.NewMessage(chatID, part)
		msg.Entities = toEntities(partRanges[i])
		start := time.Now()
		_, err := h.bot.Send(msg)
		metrics.ObserveNetworkRequest("telegram_bot", "send_message", strconv.FormatInt(chatID, 10), start, err)
		if err != nil {
			h.log.Error().Err(err).Int64("user", chatID).Msg("bot: не удалось отправить сообщение")
			return
		}
	}
}

func toEntities(ranges []domain.TextRange) []tgbotapi.MessageEntity {
	if len(ranges) == 0 {
		return nil
	}
	out := make([]tgbotapi.MessageEntity, 0, len(ranges))
	for _, r := range ranges {
		out = append(out, tgbotapi.MessageEntity{
			Type:     string(r.Kind),
			Offset:   r.Offset,
			Length:   r.Length,
			URL:      r.URL,
			Language: r.Language,
		})
	}
	return out
}
