package ratelimit

import (
	"sync"
	"time"
)

type Config struct {
	RequestsPerHour int
	Burst           int
	Enabled         bool
}

// Decision - результат admission check. Лимитер никогда не блокирует:
// при отказе возвращаем точный RetryAfter, ждать или нет - решает caller.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

type Status struct {
	RequestsPerHour  int
	Remaining        int
	RequestsThisHour int
	ResetIn          time.Duration
	Limited          bool
}

type bucket struct {
	tokens     float64
	lastRefill time.Time
	hourStart  time.Time
	hourCount  int
}

// Limiter - token bucket на провайдера. Refill ленивый, считается от
// wall-clock при каждом обращении, фоновых таймеров нет.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	cfg     Config
	rate    float64 // tokens per second

	now func() time.Time // подменяется в тестах
}

func New(cfg Config) *Limiter {
	if cfg.RequestsPerHour <= 0 {
		cfg.RequestsPerHour = 150
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 10
	}

	return &Limiter{
		buckets: make(map[string]*bucket),
		cfg:     cfg,
		rate:    float64(cfg.RequestsPerHour) / 3600.0,
		now:     time.Now,
	}
}

// Allow пытается потратить один токен провайдера.
func (l *Limiter) Allow(provider string) Decision {
	if !l.cfg.Enabled {
		return Decision{Allowed: true}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b := l.getBucket(provider, now)
	l.refill(b, now)

	if b.tokens >= 1 {
		b.tokens--
		if now.Sub(b.hourStart) >= time.Hour {
			b.hourStart = now
			b.hourCount = 0
		}
		b.hourCount++
		return Decision{Allowed: true}
	}

	// T = (1 - available) / refill_rate
	wait := time.Duration((1 - b.tokens) / l.rate * float64(time.Second))
	return Decision{Allowed: false, RetryAfter: wait}
}

func (l *Limiter) Status(provider string) Status {
	if !l.cfg.Enabled {
		return Status{
			RequestsPerHour: l.cfg.RequestsPerHour,
			Remaining:       l.cfg.RequestsPerHour,
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b := l.getBucket(provider, now)
	l.refill(b, now)

	var resetIn time.Duration
	if b.tokens < 1 {
		resetIn = time.Duration((1 - b.tokens) / l.rate * float64(time.Second))
	}

	return Status{
		RequestsPerHour:  l.cfg.RequestsPerHour,
		Remaining:        int(b.tokens),
		RequestsThisHour: b.hourCount,
		ResetIn:          resetIn,
		Limited:          b.tokens < 1,
	}
}

// Reset восстанавливает бакет до полной емкости.
func (l *Limiter) Reset(provider string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b := l.getBucket(provider, now)
	b.tokens = float64(l.cfg.Burst)
	b.lastRefill = now
	b.hourStart = now
	b.hourCount = 0
}

func (l *Limiter) getBucket(provider string, now time.Time) *bucket {
	b, ok := l.buckets[provider]
	if !ok {
		b = &bucket{
			tokens:     float64(l.cfg.Burst),
			lastRefill: now,
			hourStart:  now,
		}
		l.buckets[provider] = b
	}
	return b
}

func (l *Limiter) refill(b *bucket, now time.Time) {
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens += elapsed * l.rate
	if max := float64(l.cfg.Burst); b.tokens > max {
		b.tokens = max
	}
	b.lastRefill = now
}
