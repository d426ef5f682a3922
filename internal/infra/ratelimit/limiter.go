package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Keyed хранит отдельный token bucket на каждый ключ.
type Keyed struct {
	mu       sync.Mutex
	limiters map[int64]*rate.Limiter
	every    rate.Limit
	burst    int
	now      func() time.Time
}

// NewKeyed создаёт лимитер с ёмкостью 1 и пополнением раз в period.
func NewKeyed(period time.Duration) *Keyed {
	return &Keyed{
		limiters: make(map[int64]*rate.Limiter),
		every:    rate.Every(period),
		burst:    1,
		now:      time.Now,
	}
}

// WithClock подменяет источник времени.
func (k *Keyed) WithClock(now func() time.Time) *Keyed {
	k.now = now
	return k
}

// Allow проверяет ключ. Отказ не расходует токен.
func (k *Keyed) Allow(key int64) bool {
	k.mu.Lock()
	lim, ok := k.limiters[key]
	if !ok {
		lim = rate.NewLimiter(k.every, k.burst)
		k.limiters[key] = lim
	}
	k.mu.Unlock()
	return lim.AllowN(k.now(), 1)
}

// Limiters объединяет области ограничения гейтвея.
type Limiters struct {
	Commands  *Keyed
	Summarize *Keyed
}

// NewLimiters возвращает лимиты по умолчанию: команды раз в секунду, сводка раз в час.
func NewLimiters() Limiters {
	return Limiters{
		Commands:  NewKeyed(time.Second),
		Summarize: NewKeyed(time.Hour),
	}
}
