package queue

import (
	"context"
	"errors"

	"tgfeed/internal/domain"
)

// ErrQueueFull возвращается, если событие некуда вернуть.
var ErrQueueFull = errors.New("relay queue is full")

// MemoryRelayQueue — очередь событий внутри процесса на буферизованном канале.
type MemoryRelayQueue struct {
	ch chan domain.RelayEvent
}

// NewMemoryRelayQueue создаёт очередь заданной ёмкости.
func NewMemoryRelayQueue(capacity int) *MemoryRelayQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &MemoryRelayQueue{ch: make(chan domain.RelayEvent, capacity)}
}

// Publish кладёт событие в очередь, блокируясь при заполнении.
func (q *MemoryRelayQueue) Publish(ctx context.Context, event domain.RelayEvent) error {
	select {
	case q.ch <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive ждёт следующее событие.
func (q *MemoryRelayQueue) Receive(ctx context.Context) (domain.RelayEvent, domain.RelayAckFunc, error) {
	select {
	case event := <-q.ch:
		return event, func(success bool) error {
			if success {
				return nil
			}
			select {
			case q.ch <- event:
				return nil
			default:
				return ErrQueueFull
			}
		}, nil
	case <-ctx.Done():
		return domain.RelayEvent{}, nil, ctx.Err()
	}
}

// Len возвращает число событий в очереди.
func (q *MemoryRelayQueue) Len() int {
	return len(q.ch)
}
