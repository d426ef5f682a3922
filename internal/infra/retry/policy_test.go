package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"tgfeed/internal/domain"
)

func fastPolicy() Policy {
	return Policy{Initial: time.Millisecond, MaxAttempts: 5, Timeout: 50 * time.Millisecond}
}

func TestDoSucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := fastPolicy().Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("flood wait")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if calls != 3 {
		t.Fatalf("ожидали 3 попытки, получили %d", calls)
	}
}

func TestDoStopsAfterMaxAttempts(t *testing.T) {
	calls := 0
	sendErr := errors.New("blocked")
	err := fastPolicy().Do(context.Background(), func(context.Context) error {
		calls++
		return sendErr
	})
	if !errors.Is(err, sendErr) {
		t.Fatalf("ожидали исходную ошибку, получили %v", err)
	}
	if calls != 5 {
		t.Fatalf("ожидали 5 попыток, получили %d", calls)
	}
}

func TestDoTimesOutStuckAttempt(t *testing.T) {
	p := Policy{Initial: time.Millisecond, MaxAttempts: 2, Timeout: 10 * time.Millisecond}
	release := make(chan struct{})
	defer close(release)

	err := p.Do(context.Background(), func(context.Context) error {
		<-release
		return nil
	})
	if !errors.Is(err, domain.ErrTimeout) {
		t.Fatalf("ожидали ErrTimeout, получили %v", err)
	}
}

func TestDoRespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Policy{Initial: 20 * time.Millisecond, MaxAttempts: 10, Timeout: time.Second}.Do(ctx, func(context.Context) error {
		calls++
		cancel()
		return errors.New("fail")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("ожидали context.Canceled, получили %v", err)
	}
	if calls != 1 {
		t.Fatalf("после отмены попыток быть не должно, было %d", calls)
	}
}

func TestDoNotifiesBeforeRetry(t *testing.T) {
	var waits []time.Duration
	p := fastPolicy()
	p.OnRetry = func(_ error, wait time.Duration) { waits = append(waits, wait) }
	calls := 0
	_ = p.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("retry")
		}
		return nil
	})
	if len(waits) != 2 {
		t.Fatalf("ожидали 2 уведомления, получили %d", len(waits))
	}
	if waits[1] <= waits[0] {
		t.Fatalf("пауза должна расти: %v", waits)
	}
}
