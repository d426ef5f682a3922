package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"tgfeed/internal/domain"
)

// Policy описывает повтор отправки: экспоненциальная пауза и таймаут на попытку.
type Policy struct {
	Initial     time.Duration
	MaxAttempts int
	Timeout     time.Duration
	// OnRetry вызывается перед каждой паузой.
	OnRetry func(err error, wait time.Duration)
}

// DefaultPolicy возвращает параметры доставки по умолчанию.
func DefaultPolicy() Policy {
	return Policy{Initial: time.Second, MaxAttempts: 5, Timeout: 30 * time.Second}
}

// Do выполняет op до успеха, исчерпания попыток или отмены ctx.
// Попытка, не уложившаяся в Timeout, завершается ошибкой domain.ErrTimeout даже если op не смотрит на ctx.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.Initial
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxInterval = time.Hour
	exp.MaxElapsedTime = 0

	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	b := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(attempts-1)), ctx)

	var notify backoff.Notify
	if p.OnRetry != nil {
		notify = backoff.Notify(p.OnRetry)
	}

	return backoff.RetryNotify(func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		err := p.attempt(ctx, op)
		if err != nil && ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}, b, notify)
}

func (p Policy) attempt(ctx context.Context, op func(ctx context.Context) error) error {
	if p.Timeout <= 0 {
		return op(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- op(attemptCtx)
	}()

	select {
	case err := <-done:
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return fmt.Errorf("попытка превысила %s: %w", p.Timeout, domain.ErrTimeout)
		}
		return err
	case <-attemptCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("попытка превысила %s: %w", p.Timeout, domain.ErrTimeout)
	}
}
