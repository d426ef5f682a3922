package repo

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gotd/td/session"

	"tgfeed/internal/domain"
)

type subKey struct {
	userID    int64
	channelID int64
}

type msgKey struct {
	channelID int64
	messageID int
}

// Memory хранит данные в памяти процесса. Используется в тестах и локальном запуске.
type Memory struct {
	mu       sync.RWMutex
	now      func() time.Time
	users    map[int64]bool
	subs     map[subKey]domain.Subscription
	messages map[msgKey]domain.StoredMessage
	state    map[int64]time.Time
	sessions map[string][]byte
}

var (
	_ domain.Repository  = (*Memory)(nil)
	_ domain.SessionRepo = (*Memory)(nil)
)

// NewMemory создаёт пустое хранилище.
func NewMemory() *Memory {
	return &Memory{
		now:      func() time.Time { return time.Now().UTC() },
		users:    make(map[int64]bool),
		subs:     make(map[subKey]domain.Subscription),
		messages: make(map[msgKey]domain.StoredMessage),
		state:    make(map[int64]time.Time),
		sessions: make(map[string][]byte),
	}
}

// IsUserAllowed реализует domain.UserRepo.
func (m *Memory) IsUserAllowed(_ context.Context, telegramID int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.users[telegramID], nil
}

// UpsertUser реализует domain.UserRepo.
func (m *Memory) UpsertUser(_ context.Context, user domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.TelegramID] = user.Allowed
	return nil
}

// AddSubscription реализует domain.SubscriptionRepo.
func (m *Memory) AddSubscription(_ context.Context, sub domain.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := subKey{sub.UserID, sub.ChannelID}
	if existing, ok := m.subs[key]; ok {
		existing.ChannelHandle = sub.ChannelHandle
		m.subs[key] = existing
		return nil
	}
	if sub.SubscribedAt.IsZero() {
		sub.SubscribedAt = m.now()
	}
	m.subs[key] = sub
	return nil
}

// IsSubscribed реализует domain.SubscriptionRepo.
func (m *Memory) IsSubscribed(_ context.Context, userID, channelID int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.subs[subKey{userID, channelID}]
	return ok, nil
}

// CountSubscriptions реализует domain.SubscriptionRepo.
func (m *Memory) CountSubscriptions(_ context.Context, userID int64) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for key := range m.subs {
		if key.userID == userID {
			count++
		}
	}
	return count, nil
}

// RemoveSubscriptionByHandle удаляет подписку по алиасу без учёта регистра.
func (m *Memory) RemoveSubscriptionByHandle(_ context.Context, userID int64, handle string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := false
	for key, sub := range m.subs {
		if key.userID == userID && strings.EqualFold(sub.ChannelHandle, handle) {
			delete(m.subs, key)
			removed = true
		}
	}
	return removed, nil
}

// RemoveSubscriptionByChannel реализует domain.SubscriptionRepo.
func (m *Memory) RemoveSubscriptionByChannel(_ context.Context, userID, channelID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := subKey{userID, channelID}
	if _, ok := m.subs[key]; !ok {
		return false, nil
	}
	delete(m.subs, key)
	return true, nil
}

// UpdateChannelHandle реализует domain.SubscriptionRepo.
func (m *Memory) UpdateChannelHandle(_ context.Context, channelID int64, handle string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, sub := range m.subs {
		if key.channelID == channelID {
			sub.ChannelHandle = handle
			m.subs[key] = sub
		}
	}
	return nil
}

// ListSubscriptions возвращает подписки в порядке оформления.
func (m *Memory) ListSubscriptions(_ context.Context, userID int64) ([]domain.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var subs []domain.Subscription
	for key, sub := range m.subs {
		if key.userID == userID {
			subs = append(subs, sub)
		}
	}
	sort.Slice(subs, func(i, j int) bool {
		if !subs[i].SubscribedAt.Equal(subs[j].SubscribedAt) {
			return subs[i].SubscribedAt.Before(subs[j].SubscribedAt)
		}
		return subs[i].ChannelHandle < subs[j].ChannelHandle
	})
	return subs, nil
}

// ChannelSubscribers реализует domain.SubscriptionRepo.
func (m *Memory) ChannelSubscribers(_ context.Context, channelID int64) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var subs []domain.Subscription
	for key, sub := range m.subs {
		if key.channelID == channelID {
			subs = append(subs, sub)
		}
	}
	sort.Slice(subs, func(i, j int) bool {
		if !subs[i].SubscribedAt.Equal(subs[j].SubscribedAt) {
			return subs[i].SubscribedAt.Before(subs[j].SubscribedAt)
		}
		return subs[i].UserID < subs[j].UserID
	})
	users := make([]int64, 0, len(subs))
	for _, sub := range subs {
		users = append(users, sub.UserID)
	}
	return users, nil
}

// StoreMessage реализует domain.MessageRepo.
func (m *Memory) StoreMessage(_ context.Context, msg domain.StoredMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = m.now()
	}
	m.messages[msgKey{msg.ChannelID, msg.MessageID}] = msg
	return nil
}

// MessagesSince реализует domain.MessageRepo.
func (m *Memory) MessagesSince(_ context.Context, channelIDs []int64, since time.Time, minRunes, limit int) ([]domain.StoredMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	wanted := make(map[int64]struct{}, len(channelIDs))
	for _, id := range channelIDs {
		wanted[id] = struct{}{}
	}
	var out []domain.StoredMessage
	for key, msg := range m.messages {
		if _, ok := wanted[key.channelID]; !ok {
			continue
		}
		if msg.ReceivedAt.Before(since) || utf8.RuneCountInString(msg.Text) < minRunes {
			continue
		}
		out = append(out, msg)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ReceivedAt.After(out[j].ReceivedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// LastSummarizedAt реализует domain.SummarizeStateRepo.
func (m *Memory) LastSummarizedAt(_ context.Context, userID int64) (time.Time, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	at, ok := m.state[userID]
	return at, ok, nil
}

// SetLastSummarizedAt реализует domain.SummarizeStateRepo.
func (m *Memory) SetLastSummarizedAt(_ context.Context, userID int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state[userID] = at
	return nil
}

// MessageCount возвращает число сохранённых постов.
func (m *Memory) MessageCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.messages)
}

// LoadMTProtoSession возвращает session.ErrNotFound, если сессии нет.
func (m *Memory) LoadMTProtoSession(_ context.Context, name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.sessions[name]
	if !ok {
		return nil, session.ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

// StoreMTProtoSession реализует domain.SessionRepo.
func (m *Memory) StoreMTProtoSession(_ context.Context, name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[name] = append([]byte(nil), data...)
	return nil
}
