package mtproto

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gotd/td/telegram"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	"github.com/rs/zerolog"

	"tgfeed/internal/domain"
	"tgfeed/internal/infra/metrics"
)

// ErrUnauthorized возвращается, если в хранилище нет авторизованной сессии.
var ErrUnauthorized = errors.New("mtproto: сессия не авторизована, импортируйте её через mtproto-session-importer")

// Config задаёт параметры подключения к MTProto.
type Config struct {
	APIID       int
	APIHash     string
	SessionName string
	// UpdatesBuffer — ёмкость канала обновлений.
	UpdatesBuffer int
}

// Client — MTProto-клиент пользовательского аккаунта, который читает каналы.
type Client struct {
	api     *tg.Client
	session *SessionDB
	log     zerolog.Logger

	stop context.CancelFunc
	done chan struct{}

	mu  sync.Mutex
	err error
}

var _ domain.ChatClient = (*Client)(nil)

// Connect поднимает соединение и возвращает клиента вместе с потоком новых постов.
// Поток закрывается, когда соединение завершается.
func Connect(ctx context.Context, cfg Config, sessions domain.SessionRepo, logger zerolog.Logger) (*Client, <-chan domain.InboundPost, error) {
	if cfg.UpdatesBuffer <= 0 {
		cfg.UpdatesBuffer = 64
	}
	log := logger.With().Str("component", "mtproto").Logger()
	storage := NewSessionDB(sessions, cfg.SessionName)
	updates := make(chan domain.InboundPost, cfg.UpdatesBuffer)

	dispatcher := tg.NewUpdateDispatcher()
	dispatcher.OnNewChannelMessage(func(ctx context.Context, e tg.Entities, u *tg.UpdateNewChannelMessage) error {
		post, ok := toInboundPost(e, u)
		if !ok {
			return nil
		}
		select {
		case updates <- post:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	})

	tc := telegram.NewClient(cfg.APIID, cfg.APIHash, telegram.Options{
		SessionStorage: storage,
		UpdateHandler:  dispatcher,
	})

	runCtx, stop := context.WithCancel(context.Background())
	c := &Client{
		api:     tc.API(),
		session: storage,
		log:     log,
		stop:    stop,
		done:    make(chan struct{}),
	}
	ready := make(chan error, 1)

	go func() {
		defer close(c.done)
		defer close(updates)
		err := tc.Run(runCtx, func(ctx context.Context) error {
			status, err := tc.Auth().Status(ctx)
			if err != nil {
				ready <- fmt.Errorf("mtproto: статус авторизации: %w", err)
				return err
			}
			if !status.Authorized {
				ready <- ErrUnauthorized
				return ErrUnauthorized
			}
			if status.User != nil {
				log.Info().Str("username", status.User.Username).Int64("user", status.User.ID).Msg("mtproto: авторизован")
			}
			ready <- nil
			<-ctx.Done()
			return nil
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("mtproto: соединение завершилось с ошибкой")
		}
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
	}()

	select {
	case err := <-ready:
		if err != nil {
			stop()
			<-c.done
			return nil, nil, err
		}
	case <-c.done:
		return nil, nil, fmt.Errorf("mtproto: соединение закрыто до готовности: %w", c.Err())
	case <-ctx.Done():
		stop()
		<-c.done
		return nil, nil, ctx.Err()
	}
	log.Info().Msg("mtproto: поток обновлений запущен")
	return c, updates, nil
}

// ResolveHandle находит публичный канал по алиасу.
func (c *Client) ResolveHandle(ctx context.Context, handle string) (domain.ChannelMeta, error) {
	start := time.Now()
	resolved, err := c.api.ContactsResolveUsername(ctx, handle)
	metrics.ObserveNetworkRequest("mtproto", "contacts_resolve_username", "", start, err)
	if err != nil {
		if tgerr.Is(err, "USERNAME_NOT_OCCUPIED", "USERNAME_INVALID") {
			return domain.ChannelMeta{}, domain.ErrNotFound
		}
		return domain.ChannelMeta{}, fmt.Errorf("mtproto: resolve @%s: %w", handle, err)
	}
	peer, ok := resolved.Peer.(*tg.PeerChannel)
	if !ok {
		return domain.ChannelMeta{}, domain.ErrNotFound
	}
	for _, chat := range resolved.Chats {
		ch, ok := chat.(*tg.Channel)
		if !ok || ch.ID != peer.ChannelID {
			continue
		}
		return channelMeta(ch), nil
	}
	return domain.ChannelMeta{}, domain.ErrNotFound
}

// JoinChannel вступает в канал, чтобы получать его обновления.
func (c *Client) JoinChannel(ctx context.Context, channel domain.ChannelMeta) error {
	start := time.Now()
	_, err := c.api.ChannelsJoinChannel(ctx, &tg.InputChannel{ChannelID: channel.ID, AccessHash: channel.AccessHash})
	metrics.ObserveNetworkRequest("mtproto", "channels_join_channel", "", start, err)
	if err != nil {
		return fmt.Errorf("mtproto: join %d: %w", channel.ID, err)
	}
	return nil
}

// Checkpoint записывает последнюю версию сессии в хранилище.
func (c *Client) Checkpoint(ctx context.Context) error {
	return c.session.Flush(ctx)
}

// Close разрывает соединение и ждёт завершения клиента.
func (c *Client) Close() {
	c.stop()
	<-c.done
}

// Err возвращает ошибку, с которой завершилось соединение.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func channelMeta(ch *tg.Channel) domain.ChannelMeta {
	return domain.ChannelMeta{
		ID:         ch.ID,
		AccessHash: ch.AccessHash,
		Handle:     channelHandle(ch),
		Title:      ch.Title,
	}
}

// channelHandle возвращает основной алиас или первый активный из дополнительных.
func channelHandle(ch *tg.Channel) string {
	if ch.Username != "" {
		return ch.Username
	}
	for _, u := range ch.Usernames {
		if u.Active && u.Username != "" {
			return u.Username
		}
	}
	return ""
}

func toInboundPost(e tg.Entities, u *tg.UpdateNewChannelMessage) (domain.InboundPost, bool) {
	msg, ok := u.Message.(*tg.Message)
	if !ok {
		return domain.InboundPost{}, false
	}
	post := domain.InboundPost{
		MessageID: msg.ID,
		Text:      msg.Message,
		Entities:  ConvertEntities(msg.Entities),
		Outgoing:  msg.Out,
	}
	if peer, ok := msg.PeerID.(*tg.PeerChannel); ok {
		post.ChannelID = peer.ChannelID
		if ch, ok := e.Channels[peer.ChannelID]; ok {
			post.IsChannel = ch.Broadcast
			post.ChannelHandle = channelHandle(ch)
		} else {
			post.IsChannel = msg.Post
		}
	}
	return post, true
}
