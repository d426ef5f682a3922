package repo

import (
	"context"
	"testing"
	"time"

	"tgfeed/internal/domain"
)

func TestStoreMessageIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	first := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	second := first.Add(time.Minute)

	if err := m.StoreMessage(ctx, domain.StoredMessage{ChannelID: 1, MessageID: 10, Text: "первая версия текста", ReceivedAt: first}); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if err := m.StoreMessage(ctx, domain.StoredMessage{ChannelID: 1, MessageID: 10, Text: "вторая версия текста", ReceivedAt: second}); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if m.MessageCount() != 1 {
		t.Fatalf("ожидали одну запись, получили %d", m.MessageCount())
	}
	msgs, _ := m.MessagesSince(ctx, []int64{1}, first, 0, 10)
	if len(msgs) != 1 || msgs[0].Text != "вторая версия текста" || !msgs[0].ReceivedAt.Equal(second) {
		t.Fatalf("ожидали последнюю версию, получили %+v", msgs)
	}
}

func TestAddSubscriptionIsUnique(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	sub := domain.Subscription{UserID: 1, ChannelID: 100, ChannelHandle: "news"}
	if err := m.AddSubscription(ctx, sub); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	sub.ChannelHandle = "news_renamed"
	if err := m.AddSubscription(ctx, sub); err != nil {
		t.Fatalf("повторная подписка не должна падать: %v", err)
	}
	count, _ := m.CountSubscriptions(ctx, 1)
	if count != 1 {
		t.Fatalf("ожидали одну подписку, получили %d", count)
	}
	subs, _ := m.ListSubscriptions(ctx, 1)
	if subs[0].ChannelHandle != "news_renamed" {
		t.Fatalf("алиас должен обновиться: %+v", subs[0])
	}
}

func TestMessagesSinceFilters(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	long := "сообщение достаточной длины для сводки"
	_ = m.StoreMessage(ctx, domain.StoredMessage{ChannelID: 1, MessageID: 1, Text: long, ReceivedAt: base.Add(-time.Hour)})
	_ = m.StoreMessage(ctx, domain.StoredMessage{ChannelID: 1, MessageID: 2, Text: long, ReceivedAt: base.Add(time.Hour)})
	_ = m.StoreMessage(ctx, domain.StoredMessage{ChannelID: 1, MessageID: 3, Text: "коротко", ReceivedAt: base.Add(time.Hour)})
	_ = m.StoreMessage(ctx, domain.StoredMessage{ChannelID: 2, MessageID: 4, Text: long, ReceivedAt: base.Add(2 * time.Hour)})
	_ = m.StoreMessage(ctx, domain.StoredMessage{ChannelID: 3, MessageID: 5, Text: long, ReceivedAt: base.Add(2 * time.Hour)})

	msgs, err := m.MessagesSince(ctx, []int64{1, 2}, base, 31, 10)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("ожидали 2 сообщения, получили %d", len(msgs))
	}
	if msgs[0].MessageID != 4 || msgs[1].MessageID != 2 {
		t.Fatalf("сообщения должны идти от новых к старым: %+v", msgs)
	}

	limited, _ := m.MessagesSince(ctx, []int64{1, 2}, base, 31, 1)
	if len(limited) != 1 {
		t.Fatalf("лимит не применён: %d", len(limited))
	}
}

func TestRemoveSubscriptionPaths(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_ = m.AddSubscription(ctx, domain.Subscription{UserID: 1, ChannelID: 5, ChannelHandle: "Old"})
	_ = m.AddSubscription(ctx, domain.Subscription{UserID: 2, ChannelID: 5, ChannelHandle: "Old"})

	removed, _ := m.RemoveSubscriptionByHandle(ctx, 1, "old")
	if !removed {
		t.Fatalf("удаление по алиасу должно быть регистронезависимым")
	}
	if err := m.UpdateChannelHandle(ctx, 5, "fresh"); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	subs, _ := m.ListSubscriptions(ctx, 2)
	if subs[0].ChannelHandle != "fresh" {
		t.Fatalf("алиас не обновлён: %+v", subs[0])
	}
	removed, _ = m.RemoveSubscriptionByChannel(ctx, 2, 5)
	if !removed {
		t.Fatalf("удаление по каналу должно сработать")
	}
	removed, _ = m.RemoveSubscriptionByChannel(ctx, 2, 5)
	if removed {
		t.Fatalf("повторное удаление не должно ничего удалять")
	}
}

func TestSummarizeStateRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	if _, ok, _ := m.LastSummarizedAt(ctx, 9); ok {
		t.Fatalf("для нового пользователя состояния быть не должно")
	}
	at := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	_ = m.SetLastSummarizedAt(ctx, 9, at)
	got, ok, _ := m.LastSummarizedAt(ctx, 9)
	if !ok || !got.Equal(at) {
		t.Fatalf("ожидали %v, получили %v", at, got)
	}
}
