package monitor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"tgfeed/internal/domain"
	"tgfeed/internal/infra/commandbus"
)

var newsChan = domain.ChannelMeta{ID: 100, AccessHash: 1, Handle: "newschan"}

func post(text string) domain.InboundPost {
	return domain.InboundPost{
		ChannelID:     newsChan.ID,
		ChannelHandle: newsChan.Handle,
		MessageID:     1,
		Text:          text,
		IsChannel:     true,
	}
}

func TestHandlePostSkipsNonChannelAndOutgoing(t *testing.T) {
	f := newFixture(0, newsChan)
	ctx := context.Background()
	_ = f.repo.AddSubscription(ctx, domain.Subscription{UserID: 1, ChannelID: newsChan.ID, ChannelHandle: newsChan.Handle})

	p := post(strings.Repeat("н", 40))
	p.IsChannel = false
	if err := f.svc.HandlePost(ctx, p); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	p = post(strings.Repeat("н", 40))
	p.Outgoing = true
	if err := f.svc.HandlePost(ctx, p); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if f.repo.MessageCount() != 0 || len(f.publisher.Events()) != 0 {
		t.Fatalf("такие посты должны отбрасываться молча")
	}
}

func TestHandlePostWithoutHandle(t *testing.T) {
	f := newFixture(0)
	p := post("достаточно длинный текст поста канала")
	p.ChannelHandle = ""
	if err := f.svc.HandlePost(context.Background(), p); !errors.Is(err, domain.ErrEmptyHandle) {
		t.Fatalf("ожидали ErrEmptyHandle, получили %v", err)
	}
	if f.repo.MessageCount() != 0 {
		t.Fatalf("пост без алиаса не должен сохраняться")
	}
}

func TestHandlePostDropsAds(t *testing.T) {
	f := newFixture(0, newsChan)
	ctx := context.Background()
	_ = f.repo.AddSubscription(ctx, domain.Subscription{UserID: 1, ChannelID: newsChan.ID, ChannelHandle: newsChan.Handle})

	if err := f.svc.HandlePost(ctx, post("Отличный сервис доставки #реклама")); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if f.repo.MessageCount() != 0 || len(f.publisher.Events()) != 0 {
		t.Fatalf("реклама не должна сохраняться и пересылаться")
	}
}

func TestHandlePostShortTextRelayedNotStored(t *testing.T) {
	f := newFixture(0, newsChan)
	ctx := context.Background()
	_ = f.repo.AddSubscription(ctx, domain.Subscription{UserID: 1, ChannelID: newsChan.ID, ChannelHandle: newsChan.Handle})

	if err := f.svc.HandlePost(ctx, post("короткий пост")); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if f.repo.MessageCount() != 0 {
		t.Fatalf("короткий пост не должен попадать в историю")
	}
	if len(f.publisher.Events()) != 1 {
		t.Fatalf("короткий пост всё равно пересылается")
	}
}

func TestHandlePostEmptyText(t *testing.T) {
	f := newFixture(0, newsChan)
	ctx := context.Background()
	_ = f.repo.AddSubscription(ctx, domain.Subscription{UserID: 1, ChannelID: newsChan.ID, ChannelHandle: newsChan.Handle})

	if err := f.svc.HandlePost(ctx, post("")); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(f.publisher.Events()) != 0 {
		t.Fatalf("пустой пост не пересылается")
	}
}

func TestHandlePostWithoutSubscribersStoresOnly(t *testing.T) {
	f := newFixture(0, newsChan)
	if err := f.svc.HandlePost(context.Background(), post("двадцать пять символов!!!")); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if f.repo.MessageCount() != 1 {
		t.Fatalf("пост должен сохраниться")
	}
	if len(f.publisher.Events()) != 0 {
		t.Fatalf("без подписчиков событие не публикуется")
	}
}

func TestHandlePostPublishFailureKeepsStoredMessage(t *testing.T) {
	f := newFixture(0, newsChan)
	ctx := context.Background()
	_ = f.repo.AddSubscription(ctx, domain.Subscription{UserID: 1, ChannelID: newsChan.ID, ChannelHandle: newsChan.Handle})
	f.publisher.err = errBoom

	if err := f.svc.HandlePost(ctx, post("двадцать пять символов!!!")); err != nil {
		t.Fatalf("ошибка публикации не должна возвращаться: %v", err)
	}
	if f.repo.MessageCount() != 1 {
		t.Fatalf("сохранённый пост не откатывается")
	}
}

func TestHandlePostStoreFailure(t *testing.T) {
	f := newFixture(0, newsChan)
	failing := &failingRepo{Memory: f.repo, storeErr: errBoom}
	svc := NewService(f.client, failing, f.summarizer, f.publisher, zerolog.Nop(), Options{Now: f.clock.Now})
	_ = f.repo.AddSubscription(context.Background(), domain.Subscription{UserID: 1, ChannelID: newsChan.ID, ChannelHandle: newsChan.Handle})

	err := svc.HandlePost(context.Background(), post("двадцать пять символов!!!"))
	if !errors.Is(err, errBoom) {
		t.Fatalf("ожидали ошибку хранилища, получили %v", err)
	}
	if len(f.publisher.Events()) != 0 {
		t.Fatalf("при ошибке хранилища пост отбрасывается")
	}
}

func TestHandlePostBuildsRelayEvent(t *testing.T) {
	f := newFixture(0, newsChan)
	ctx := context.Background()
	_ = f.repo.AddSubscription(ctx, domain.Subscription{UserID: 1, ChannelID: newsChan.ID, ChannelHandle: newsChan.Handle})
	f.clock.Advance(time.Second)
	_ = f.repo.AddSubscription(ctx, domain.Subscription{UserID: 2, ChannelID: newsChan.ID, ChannelHandle: newsChan.Handle, SubscribedAt: f.clock.Now()})

	p := post("двадцать пять символов!!!")
	p.Entities = []domain.TextRange{{Kind: domain.TextBold, Offset: 0, Length: 8}}
	if err := f.svc.HandlePost(ctx, p); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	events := f.publisher.Events()
	if len(events) != 1 {
		t.Fatalf("ожидали одно событие, получили %d", len(events))
	}
	ev := events[0]
	if ev.ChannelHandle != "newschan" || ev.MessageID != 1 || len(ev.Entities) != 1 {
		t.Fatalf("неожиданное событие: %+v", ev)
	}
	if len(ev.Subscribers) != 2 {
		t.Fatalf("ожидали двух подписчиков, получили %v", ev.Subscribers)
	}
}

func TestRunDrainsQueuedCommandsBeforeShutdown(t *testing.T) {
	f := newFixture(0, newsChan)
	f.allow(1)
	bus := commandbus.New(8)

	replies := make(chan error, 1)
	go func() {
		_, err := bus.Call(context.Background(), domain.Command{Kind: domain.CommandSubscribe, UserID: 1, Handle: "newschan"})
		replies <- err
	}()
	waitQueued(t, bus, 1)
	if err := bus.Shutdown(context.Background()); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	_ = bus.Shutdown(context.Background())

	if err := f.svc.Run(context.Background(), bus, make(chan domain.InboundPost)); err != nil {
		t.Fatalf("Run завершился ошибкой: %v", err)
	}
	if err := <-replies; err != nil {
		t.Fatalf("команда до Shutdown должна быть обработана: %v", err)
	}
	if f.client.checkpoints != 1 {
		t.Fatalf("ожидали один checkpoint, получили %d", f.client.checkpoints)
	}
	if _, err := bus.Call(context.Background(), domain.Command{Kind: domain.CommandList, UserID: 1}); !errors.Is(err, commandbus.ErrMonitorUnavailable) {
		t.Fatalf("после остановки ожидали ErrMonitorUnavailable, получили %v", err)
	}
}

func TestRunProcessesUpdates(t *testing.T) {
	f := newFixture(0, newsChan)
	ctx := context.Background()
	_ = f.repo.AddSubscription(ctx, domain.Subscription{UserID: 1, ChannelID: newsChan.ID, ChannelHandle: newsChan.Handle})
	bus := commandbus.New(1)
	updates := make(chan domain.InboundPost, 1)
	updates <- post("двадцать пять символов!!!")
	close(updates)

	if err := f.svc.Run(ctx, bus, updates); !errors.Is(err, ErrUpdatesClosed) {
		t.Fatalf("ожидали ErrUpdatesClosed, получили %v", err)
	}
	if len(f.publisher.Events()) != 1 {
		t.Fatalf("обновление должно быть обработано")
	}
}

func waitQueued(t *testing.T, bus *commandbus.Bus, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for len(bus.Requests()) < n {
		if time.Now().After(deadline) {
			t.Fatalf("команды не попали в очередь")
		}
		time.Sleep(time.Millisecond)
	}
}
