package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"tgfeed/internal/domain"
	"tgfeed/internal/infra/metrics"
)

// RedisRelayQueue реализует очередь событий на базе Redis lists.
type RedisRelayQueue struct {
	client *redis.Client
	key    string
}

// NewRedisRelayQueue создаёт очередь по указанному ключу.
func NewRedisRelayQueue(client *redis.Client, key string) *RedisRelayQueue {
	return &RedisRelayQueue{client: client, key: key}
}

// Publish публикует событие в очередь.
func (q *RedisRelayQueue) Publish(ctx context.Context, event domain.RelayEvent) error {
	payload, err := encodeEvent(event)
	if err != nil {
		return err
	}
	start := time.Now()
	err = q.client.LPush(ctx, q.key, payload).Err()
	metrics.ObserveNetworkRequest("redis", "lpush", q.key, start, err)
	if err != nil {
		return fmt.Errorf("push event: %w", err)
	}
	return nil
}

// Receive блокирующе читает событие. Неуспешное подтверждение возвращает событие в голову очереди.
func (q *RedisRelayQueue) Receive(ctx context.Context) (domain.RelayEvent, domain.RelayAckFunc, error) {
	for {
		if err := ctx.Err(); err != nil {
			return domain.RelayEvent{}, nil, err
		}

		res, err := q.client.BRPop(ctx, time.Second, q.key).Result()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if ctx.Err() != nil {
					return domain.RelayEvent{}, nil, ctx.Err()
				}
				continue
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			return domain.RelayEvent{}, nil, err
		}
		if len(res) != 2 {
			return domain.RelayEvent{}, nil, errors.New("redis queue: unexpected response")
		}
		event, err := decodeEvent([]byte(res[1]))
		if err != nil {
			return domain.RelayEvent{}, nil, err
		}
		raw := res[1]
		return event, func(success bool) error {
			if success {
				return nil
			}
			requeueCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return q.client.RPush(requeueCtx, q.key, raw).Err()
		}, nil
	}
}

func encodeEvent(event domain.RelayEvent) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return payload, nil
}

func decodeEvent(payload []byte) (domain.RelayEvent, error) {
	var event domain.RelayEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return domain.RelayEvent{}, fmt.Errorf("decode event: %w", err)
	}
	return event, nil
}
