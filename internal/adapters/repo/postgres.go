package repo

import (
	"context"
	_ "embed"
	"errors"
	"time"

	"github.com/gotd/td/session"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tgfeed/internal/domain"
	"tgfeed/internal/infra/metrics"
)

//go:embed schema.sql
var schemaSQL string

// Postgres реализует репозитории на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ domain.Repository  = (*Postgres)(nil)
	_ domain.SessionRepo = (*Postgres)(nil)
)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtxWithParent(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// Migrate создаёт таблицы, если их ещё нет.
func (p *Postgres) Migrate(ctx context.Context) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, schemaSQL)
	metrics.ObserveNetworkRequest("postgres", "schema_migrate", "schema", start, err)
	return err
}

// IsUserAllowed реализует domain.UserRepo.
func (p *Postgres) IsUserAllowed(ctx context.Context, telegramID int64) (bool, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var allowed bool
	start := time.Now()
	err := p.pool.QueryRow(ctx, `SELECT allowed FROM users WHERE telegram_id=$1`, telegramID).Scan(&allowed)
	metrics.ObserveNetworkRequest("postgres", "users_is_allowed", "users", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return allowed, err
}

// UpsertUser добавляет пользователя в список доступа или обновляет флаг.
func (p *Postgres) UpsertUser(ctx context.Context, user domain.User) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO users (telegram_id, allowed)
VALUES ($1,$2)
ON CONFLICT (telegram_id) DO UPDATE SET allowed=EXCLUDED.allowed
`, user.TelegramID, user.Allowed)
	metrics.ObserveNetworkRequest("postgres", "users_upsert", "users", start, err)
	return err
}

// AddSubscription сохраняет подписку, повторный вызов обновляет алиас.
func (p *Postgres) AddSubscription(ctx context.Context, sub domain.Subscription) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	if sub.SubscribedAt.IsZero() {
		sub.SubscribedAt = time.Now().UTC()
	}

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO subscriptions (user_id, channel_id, channel_handle, subscribed_at)
VALUES ($1,$2,$3,$4)
ON CONFLICT (user_id, channel_id) DO UPDATE SET channel_handle=EXCLUDED.channel_handle
`, sub.UserID, sub.ChannelID, sub.ChannelHandle, sub.SubscribedAt)
	metrics.ObserveNetworkRequest("postgres", "subscriptions_upsert", "subscriptions", start, err)
	return err
}

// IsSubscribed проверяет наличие подписки.
func (p *Postgres) IsSubscribed(ctx context.Context, userID, channelID int64) (bool, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var exists bool
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT EXISTS (SELECT 1 FROM subscriptions WHERE user_id=$1 AND channel_id=$2)
`, userID, channelID).Scan(&exists)
	metrics.ObserveNetworkRequest("postgres", "subscriptions_exists", "subscriptions", start, err)
	return exists, err
}

// CountSubscriptions считает подписки пользователя.
func (p *Postgres) CountSubscriptions(ctx context.Context, userID int64) (int, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var count int
	start := time.Now()
	err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM subscriptions WHERE user_id=$1`, userID).Scan(&count)
	metrics.ObserveNetworkRequest("postgres", "subscriptions_count", "subscriptions", start, err)
	return count, err
}

// RemoveSubscriptionByHandle удаляет подписку по кэшированному алиасу.
func (p *Postgres) RemoveSubscriptionByHandle(ctx context.Context, userID int64, handle string) (bool, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
DELETE FROM subscriptions WHERE user_id=$1 AND lower(channel_handle)=lower($2)
`, userID, handle)
	metrics.ObserveNetworkRequest("postgres", "subscriptions_delete_by_handle", "subscriptions", start, err)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// RemoveSubscriptionByChannel удаляет подписку по идентификатору канала.
func (p *Postgres) RemoveSubscriptionByChannel(ctx context.Context, userID, channelID int64) (bool, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `DELETE FROM subscriptions WHERE user_id=$1 AND channel_id=$2`, userID, channelID)
	metrics.ObserveNetworkRequest("postgres", "subscriptions_delete_by_channel", "subscriptions", start, err)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// UpdateChannelHandle обновляет алиас канала у всех подписчиков.
func (p *Postgres) UpdateChannelHandle(ctx context.Context, channelID int64, handle string) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `UPDATE subscriptions SET channel_handle=$2 WHERE channel_id=$1`, channelID, handle)
	metrics.ObserveNetworkRequest("postgres", "subscriptions_update_handle", "subscriptions", start, err)
	return err
}

// ListSubscriptions возвращает подписки пользователя в порядке оформления.
func (p *Postgres) ListSubscriptions(ctx context.Context, userID int64) ([]domain.Subscription, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT user_id, channel_id, channel_handle, subscribed_at
FROM subscriptions WHERE user_id=$1
ORDER BY subscribed_at, channel_handle
`, userID)
	metrics.ObserveNetworkRequest("postgres", "subscriptions_list", "subscriptions", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var subs []domain.Subscription
	for rows.Next() {
		var s domain.Subscription
		if err := rows.Scan(&s.UserID, &s.ChannelID, &s.ChannelHandle, &s.SubscribedAt); err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

// ChannelSubscribers возвращает подписчиков канала.
func (p *Postgres) ChannelSubscribers(ctx context.Context, channelID int64) ([]int64, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT user_id FROM subscriptions WHERE channel_id=$1 ORDER BY subscribed_at, user_id
`, channelID)
	metrics.ObserveNetworkRequest("postgres", "subscriptions_subscribers", "subscriptions", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		users = append(users, id)
	}
	return users, rows.Err()
}

// StoreMessage сохраняет пост, повторная доставка перезаписывает текст и время.
func (p *Postgres) StoreMessage(ctx context.Context, msg domain.StoredMessage) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = time.Now().UTC()
	}

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO messages (channel_id, message_id, text, received_at)
VALUES ($1,$2,$3,$4)
ON CONFLICT (channel_id, message_id) DO UPDATE SET text=EXCLUDED.text, received_at=EXCLUDED.received_at
`, msg.ChannelID, msg.MessageID, msg.Text, msg.ReceivedAt)
	metrics.ObserveNetworkRequest("postgres", "messages_upsert", "messages", start, err)
	return err
}

// MessagesSince возвращает посты каналов за окно, от новых к старым.
func (p *Postgres) MessagesSince(ctx context.Context, channelIDs []int64, since time.Time, minRunes, limit int) ([]domain.StoredMessage, error) {
	if len(channelIDs) == 0 {
		return nil, nil
	}
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT channel_id, message_id, text, received_at
FROM messages
WHERE channel_id = ANY($1) AND received_at >= $2 AND char_length(text) >= $3
ORDER BY received_at DESC
LIMIT $4
`, channelIDs, since, minRunes, limit)
	metrics.ObserveNetworkRequest("postgres", "messages_since", "messages", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var msgs []domain.StoredMessage
	for rows.Next() {
		var m domain.StoredMessage
		if err := rows.Scan(&m.ChannelID, &m.MessageID, &m.Text, &m.ReceivedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// LastSummarizedAt возвращает время последней сводки пользователя.
func (p *Postgres) LastSummarizedAt(ctx context.Context, userID int64) (time.Time, bool, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var at time.Time
	start := time.Now()
	err := p.pool.QueryRow(ctx, `SELECT last_summarized_at FROM summarize_state WHERE user_id=$1`, userID).Scan(&at)
	metrics.ObserveNetworkRequest("postgres", "summarize_state_get", "summarize_state", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return at, true, nil
}

// SetLastSummarizedAt сдвигает окно суммаризации пользователя.
func (p *Postgres) SetLastSummarizedAt(ctx context.Context, userID int64, at time.Time) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO summarize_state (user_id, last_summarized_at)
VALUES ($1,$2)
ON CONFLICT (user_id) DO UPDATE SET last_summarized_at=EXCLUDED.last_summarized_at
`, userID, at)
	metrics.ObserveNetworkRequest("postgres", "summarize_state_set", "summarize_state", start, err)
	return err
}

// LoadMTProtoSession загружает сохранённую MTProto-сессию.
func (p *Postgres) LoadMTProtoSession(ctx context.Context, name string) ([]byte, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	if name == "" {
		name = "default"
	}

	var data []byte
	start := time.Now()
	err := p.pool.QueryRow(ctx, `SELECT data FROM mtproto_sessions WHERE name = $1`, name).Scan(&data)
	metrics.ObserveNetworkRequest("postgres", "mtproto_sessions_load", "mtproto_sessions", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	clone := make([]byte, len(data))
	copy(clone, data)
	return clone, nil
}

// StoreMTProtoSession сохраняет MTProto-сессию.
func (p *Postgres) StoreMTProtoSession(ctx context.Context, name string, data []byte) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	if name == "" {
		name = "default"
	}

	tmp := make([]byte, len(data))
	copy(tmp, data)

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO mtproto_sessions (name, data, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (name) DO UPDATE SET data = EXCLUDED.data, updated_at = now()
`, name, tmp)
	metrics.ObserveNetworkRequest("postgres", "mtproto_sessions_store", "mtproto_sessions", start, err)
	return err
}
