package monitor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"tgfeed/internal/adapters/repo"
	"tgfeed/internal/domain"
)

type stubClient struct {
	mu          sync.Mutex
	channels    map[string]domain.ChannelMeta
	resolveErr  error
	joinErr     error
	joined      []int64
	resolved    []string
	checkpoints int
}

func newStubClient(channels ...domain.ChannelMeta) *stubClient {
	c := &stubClient{channels: make(map[string]domain.ChannelMeta)}
	for _, ch := range channels {
		c.channels[strings.ToLower(ch.Handle)] = ch
	}
	return c
}

func (c *stubClient) ResolveHandle(_ context.Context, handle string) (domain.ChannelMeta, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resolved = append(c.resolved, handle)
	if c.resolveErr != nil {
		return domain.ChannelMeta{}, c.resolveErr
	}
	meta, ok := c.channels[strings.ToLower(handle)]
	if !ok {
		return domain.ChannelMeta{}, domain.ErrNotFound
	}
	return meta, nil
}

func (c *stubClient) JoinChannel(_ context.Context, ch domain.ChannelMeta) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.joined = append(c.joined, ch.ID)
	return c.joinErr
}

func (c *stubClient) Checkpoint(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checkpoints++
	return nil
}

type stubSummarizer struct {
	calls [][]domain.MessageData
	err   error
}

func (s *stubSummarizer) Summarize(_ context.Context, msgs []domain.MessageData) (string, error) {
	s.calls = append(s.calls, msgs)
	if s.err != nil {
		return "", s.err
	}
	return "сводка", nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.RelayEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event domain.RelayEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Events() []domain.RelayEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.RelayEvent(nil), p.events...)
}

type failingRepo struct {
	*repo.Memory
	allowErr error
	stateErr error
	storeErr error
}

func (f *failingRepo) IsUserAllowed(ctx context.Context, id int64) (bool, error) {
	if f.allowErr != nil {
		return false, f.allowErr
	}
	return f.Memory.IsUserAllowed(ctx, id)
}

func (f *failingRepo) LastSummarizedAt(ctx context.Context, id int64) (time.Time, bool, error) {
	if f.stateErr != nil {
		return time.Time{}, false, f.stateErr
	}
	return f.Memory.LastSummarizedAt(ctx, id)
}

func (f *failingRepo) StoreMessage(ctx context.Context, msg domain.StoredMessage) error {
	if f.storeErr != nil {
		return f.storeErr
	}
	return f.Memory.StoreMessage(ctx, msg)
}

var errBoom = errors.New("boom")

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	svc        *Service
	repo       *repo.Memory
	client     *stubClient
	summarizer *stubSummarizer
	publisher  *recordingPublisher
	clock      *clock
}

func newFixture(maxSubs int, channels ...domain.ChannelMeta) *fixture {
	f := &fixture{
		repo:       repo.NewMemory(),
		client:     newStubClient(channels...),
		summarizer: &stubSummarizer{},
		publisher:  &recordingPublisher{},
		clock:      newClock(),
	}
	f.svc = NewService(f.client, f.repo, f.summarizer, f.publisher, zerolog.Nop(), Options{
		MaxSubscriptions: maxSubs,
		Now:              f.clock.Now,
	})
	return f
}

func (f *fixture) allow(userID int64) {
	_ = f.repo.UpsertUser(context.Background(), domain.User{TelegramID: userID, Allowed: true})
}
