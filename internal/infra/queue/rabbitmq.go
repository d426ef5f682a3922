package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"tgfeed/internal/domain"
	"tgfeed/internal/infra/metrics"
)

// RabbitRelayQueue реализует очередь событий на durable-очереди RabbitMQ с ручным подтверждением.
type RabbitRelayQueue struct {
	conn      *amqp.Connection
	publishCh *amqp.Channel
	consumeCh *amqp.Channel
	queue     string

	mu         sync.Mutex
	deliveries <-chan amqp.Delivery
}

// NewRabbitRelayQueue подключается к брокеру и объявляет очередь.
func NewRabbitRelayQueue(url, queue string) (*RabbitRelayQueue, error) {
	if url == "" {
		return nil, errors.New("amqp url is empty")
	}
	if queue == "" {
		return nil, errors.New("queue name is empty")
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	publishCh, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open publish channel: %w", err)
	}
	consumeCh, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open consume channel: %w", err)
	}
	if _, err := publishCh.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	if err := consumeCh.Qos(1, 0, false); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}
	return &RabbitRelayQueue{conn: conn, publishCh: publishCh, consumeCh: consumeCh, queue: queue}, nil
}

// Publish публикует событие в очередь.
func (q *RabbitRelayQueue) Publish(ctx context.Context, event domain.RelayEvent) error {
	payload, err := encodeEvent(event)
	if err != nil {
		return err
	}
	start := time.Now()
	err = q.publishCh.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         payload,
	})
	metrics.ObserveNetworkRequest("rabbitmq", "publish", q.queue, start, err)
	if err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Receive ждёт событие. Неуспешное подтверждение возвращает сообщение брокеру.
func (q *RabbitRelayQueue) Receive(ctx context.Context) (domain.RelayEvent, domain.RelayAckFunc, error) {
	deliveries, err := q.consume()
	if err != nil {
		return domain.RelayEvent{}, nil, err
	}
	for {
		select {
		case <-ctx.Done():
			return domain.RelayEvent{}, nil, ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return domain.RelayEvent{}, nil, errors.New("rabbitmq: delivery channel closed")
			}
			event, err := decodeEvent(d.Body)
			if err != nil {
				_ = d.Nack(false, false)
				return domain.RelayEvent{}, nil, err
			}
			return event, func(success bool) error {
				if success {
					return d.Ack(false)
				}
				return d.Nack(false, true)
			}, nil
		}
	}
}

func (q *RabbitRelayQueue) consume() (<-chan amqp.Delivery, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.deliveries != nil {
		return q.deliveries, nil
	}
	start := time.Now()
	deliveries, err := q.consumeCh.Consume(q.queue, "", false, false, false, false, nil)
	metrics.ObserveNetworkRequest("rabbitmq", "consume", q.queue, start, err)
	if err != nil {
		return nil, fmt.Errorf("consume: %w", err)
	}
	q.deliveries = deliveries
	return deliveries, nil
}

// Close закрывает соединение с брокером.
func (q *RabbitRelayQueue) Close() error {
	return q.conn.Close()
}
