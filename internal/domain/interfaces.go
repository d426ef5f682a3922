package domain

import (
	"context"
	"time"
)

// ChatClient — узкий интерфейс MTProto-клиента, которым пользуется монитор.
// Поток обновлений возвращается конструктором адаптера отдельно.
type ChatClient interface {
	// ResolveHandle возвращает ErrNotFound, если алиас не найден.
	ResolveHandle(ctx context.Context, handle string) (ChannelMeta, error)
	JoinChannel(ctx context.Context, channel ChannelMeta) error
	// Checkpoint сохраняет состояние сессии перед остановкой.
	Checkpoint(ctx context.Context) error
}

// Summarizer строит краткое содержание набора сообщений.
type Summarizer interface {
	Summarize(ctx context.Context, messages []MessageData) (string, error)
}

// UserRepo управляет списком доступа.
type UserRepo interface {
	IsUserAllowed(ctx context.Context, telegramID int64) (bool, error)
	UpsertUser(ctx context.Context, user User) error
}

// SubscriptionRepo управляет подписками.
type SubscriptionRepo interface {
	// AddSubscription выполняет upsert по (user_id, channel_id).
	AddSubscription(ctx context.Context, sub Subscription) error
	IsSubscribed(ctx context.Context, userID, channelID int64) (bool, error)
	CountSubscriptions(ctx context.Context, userID int64) (int, error)
	RemoveSubscriptionByHandle(ctx context.Context, userID int64, handle string) (bool, error)
	RemoveSubscriptionByChannel(ctx context.Context, userID, channelID int64) (bool, error)
	// UpdateChannelHandle обновляет кэшированный алиас у всех подписок канала.
	UpdateChannelHandle(ctx context.Context, channelID int64, handle string) error
	ListSubscriptions(ctx context.Context, userID int64) ([]Subscription, error)
	ChannelSubscribers(ctx context.Context, channelID int64) ([]int64, error)
}

// MessageRepo хранит посты для суммаризации.
type MessageRepo interface {
	// StoreMessage выполняет upsert по (channel_id, message_id).
	StoreMessage(ctx context.Context, msg StoredMessage) error
	// MessagesSince возвращает посты не старше since длиннее minRunes символов, от новых к старым.
	MessagesSince(ctx context.Context, channelIDs []int64, since time.Time, minRunes, limit int) ([]StoredMessage, error)
}

// SummarizeStateRepo хранит окна суммаризации.
type SummarizeStateRepo interface {
	// LastSummarizedAt возвращает false, если пользователь ещё не запрашивал сводку.
	LastSummarizedAt(ctx context.Context, userID int64) (time.Time, bool, error)
	SetLastSummarizedAt(ctx context.Context, userID int64, at time.Time) error
}

// SessionRepo хранит сессии MTProto.
type SessionRepo interface {
	LoadMTProtoSession(ctx context.Context, name string) ([]byte, error)
	StoreMTProtoSession(ctx context.Context, name string, data []byte) error
}

// Repository объединяет все хранилища монитора.
type Repository interface {
	UserRepo
	SubscriptionRepo
	MessageRepo
	SummarizeStateRepo
}

// RelayPublisher передаёт события гейтвею.
type RelayPublisher interface {
	Publish(ctx context.Context, event RelayEvent) error
}

// RelayAckFunc подтверждает обработку события или возвращает его в очередь.
type RelayAckFunc func(success bool) error

// RelayQueue — очередь событий между монитором и гейтвеем.
type RelayQueue interface {
	RelayPublisher
	Receive(ctx context.Context) (RelayEvent, RelayAckFunc, error)
}
