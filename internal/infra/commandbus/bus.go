package commandbus

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"tgfeed/internal/domain"
)

var (
	// ErrMonitorUnavailable возвращается, если монитор не принимает команды.
	ErrMonitorUnavailable = errors.New("monitor unavailable")
	// ErrReplyDropped возвращается, если запрос был снят с очереди без ответа.
	ErrReplyDropped = errors.New("reply dropped")
)

// Request — команда с одноразовым слотом для ответа.
type Request struct {
	Command domain.Command

	reply chan domain.Reply
	once  *sync.Once
}

// Respond отправляет ответ. Повторные вызовы игнорируются.
func (r Request) Respond(reply domain.Reply) {
	if r.reply == nil {
		return
	}
	r.once.Do(func() {
		r.reply <- reply
		close(r.reply)
	})
}

// Drop закрывает слот без ответа.
func (r Request) Drop() {
	if r.reply == nil {
		return
	}
	r.once.Do(func() {
		close(r.reply)
	})
}

// Bus — ограниченная очередь запросов от гейтвея к монитору.
type Bus struct {
	requests chan Request

	mu        sync.RWMutex
	closed    bool
	done      chan struct{}
	closeOnce sync.Once
}

// New создаёт шину с очередью заданной ёмкости.
func New(capacity int) *Bus {
	if capacity < 1 {
		capacity = 1
	}
	return &Bus{
		requests: make(chan Request, capacity),
		done:     make(chan struct{}),
	}
}

// Requests возвращает очередь для цикла монитора.
func (b *Bus) Requests() <-chan Request {
	return b.requests
}

// Call ставит команду в очередь и ждёт ответа.
// Время ожидания ограничивает ctx вызывающего.
func (b *Bus) Call(ctx context.Context, cmd domain.Command) (domain.Reply, error) {
	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}
	req := Request{Command: cmd, reply: make(chan domain.Reply, 1), once: &sync.Once{}}
	if err := b.enqueue(ctx, req); err != nil {
		return domain.Reply{}, err
	}

	select {
	case reply, ok := <-req.reply:
		if !ok {
			return domain.Reply{}, ErrReplyDropped
		}
		return reply, nil
	case <-ctx.Done():
		return domain.Reply{}, ctx.Err()
	}
}

// Shutdown ставит в очередь сигнал остановки монитора. Ответа нет.
func (b *Bus) Shutdown(ctx context.Context) error {
	return b.enqueue(ctx, Request{Command: domain.Command{ID: uuid.NewString(), Kind: domain.CommandShutdown}})
}

func (b *Bus) enqueue(ctx context.Context, req Request) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrMonitorUnavailable
	}
	select {
	case b.requests <- req:
		return nil
	case <-b.done:
		return ErrMonitorUnavailable
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close закрывает шину и снимает оставшиеся запросы без ответа.
// Последующие вызовы Call получают ErrMonitorUnavailable.
func (b *Bus) Close() {
	b.closeOnce.Do(func() { close(b.done) })

	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()

	for {
		select {
		case req := <-b.requests:
			req.Drop()
		default:
			return
		}
	}
}
