package bot

import (
	"context"
	"errors"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tgfeed/internal/domain"
)

type sentMessage struct {
	chatID   int64
	text     string
	entities []tgbotapi.MessageEntity
}

type fakeSender struct {
	mu       sync.Mutex
	sent     []sentMessage
	failures map[int64]int
	failAll  map[int64]bool
}

func newFakeSender() *fakeSender {
	return &fakeSender{failures: make(map[int64]int), failAll: make(map[int64]bool)}
}

func (s *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := c.(tgbotapi.MessageConfig)
	if !ok {
		return tgbotapi.Message{}, errors.New("unexpected chattable")
	}
	if s.failAll[msg.ChatID] {
		return tgbotapi.Message{}, errors.New("bot was blocked by the user")
	}
	if s.failures[msg.ChatID] > 0 {
		s.failures[msg.ChatID]--
		return tgbotapi.Message{}, errors.New("too many requests")
	}
	s.sent = append(s.sent, sentMessage{chatID: msg.ChatID, text: msg.Text, entities: msg.Entities})
	return tgbotapi.Message{MessageID: len(s.sent)}, nil
}

func (s *fakeSender) Sent() []sentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentMessage(nil), s.sent...)
}

func (s *fakeSender) Texts() []string {
	var out []string
	for _, m := range s.Sent() {
		out = append(out, m.text)
	}
	return out
}

type fakeMonitor struct {
	mu    sync.Mutex
	calls []domain.Command
	reply domain.Reply
	err   error
}

func (m *fakeMonitor) Call(_ context.Context, cmd domain.Command) (domain.Reply, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, cmd)
	return m.reply, m.err
}

type sliceReceiver struct {
	events  []domain.RelayEvent
	acks    []bool
	drained chan struct{}
	once    sync.Once
}

func (r *sliceReceiver) Receive(ctx context.Context) (domain.RelayEvent, domain.RelayAckFunc, error) {
	if len(r.events) == 0 {
		if r.drained != nil {
			r.once.Do(func() { close(r.drained) })
		}
		<-ctx.Done()
		return domain.RelayEvent{}, nil, ctx.Err()
	}
	ev := r.events[0]
	r.events = r.events[1:]
	return ev, func(success bool) error {
		r.acks = append(r.acks, success)
		return nil
	}, nil
}
