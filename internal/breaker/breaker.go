package breaker

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

type Config struct {
	// FailureThreshold - доля ошибок в окне, после которой открываемся (0..1).
	FailureThreshold float64
	// Window - скользящее окно, в котором считаем ошибки.
	Window time.Duration
	// Cooldown - сколько держим Open до первой пробы.
	Cooldown time.Duration
	// MinCalls - минимум вызовов в окне, раньше не открываемся.
	MinCalls int
}

func (c Config) withDefaults() Config {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 0.5
	}
	if c.Window <= 0 {
		c.Window = 5 * time.Minute
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 300 * time.Second
	}
	if c.MinCalls <= 0 {
		c.MinCalls = 10
	}
	return c
}

type outcome struct {
	at      time.Time
	failure bool
}

type Stats struct {
	State          State
	Failures       int
	Calls          int
	LastTransition time.Time
}

// Breaker - circuit breaker одного провайдера.
// Closed -> Open при доле ошибок >= порога в скользящем окне,
// Open -> HalfOpen по истечении cooldown, HalfOpen пускает ровно одну пробу.
type Breaker struct {
	mu             sync.Mutex
	cfg            Config
	name           string
	state          State
	outcomes       []outcome
	lastTransition time.Time
	openedAt       time.Time
	probeInFlight  bool
	logger         *zap.Logger

	now func() time.Time
}

func New(name string, cfg Config, logger *zap.Logger) *Breaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Breaker{
		cfg:    cfg.withDefaults(),
		name:   name,
		state:  StateClosed,
		logger: logger,
		now:    time.Now,
	}
}

// Allow решает, можно ли делать вызов. Возвращает probe=true, если это
// единственная HalfOpen-проба: вызвавший обязан отчитаться через
// OnSuccess/OnFailure, иначе breaker застрянет в HalfOpen.
func (b *Breaker) Allow() (allowed, probe bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()

	switch b.state {
	case StateClosed:
		return true, false

	case StateOpen:
		if now.Sub(b.openedAt) >= b.cfg.Cooldown {
			b.transition(StateHalfOpen, now)
			b.probeInFlight = true
			return true, true
		}
		return false, false

	case StateHalfOpen:
		// только одна проба за раз, остальные - в fallback
		if b.probeInFlight {
			return false, false
		}
		b.probeInFlight = true
		return true, true
	}

	return false, false
}

func (b *Breaker) OnSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	b.record(now, false)

	if b.state == StateHalfOpen {
		b.probeInFlight = false
		b.outcomes = nil
		b.transition(StateClosed, now)
	}
}

func (b *Breaker) OnFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	b.record(now, true)

	switch b.state {
	case StateHalfOpen:
		// проба не удалась - снова Open, cooldown заново
		b.probeInFlight = false
		b.open(now)

	case StateClosed:
		calls, failures := b.windowCounts(now)
		if calls >= b.cfg.MinCalls && float64(failures)/float64(calls) >= b.cfg.FailureThreshold {
			b.open(now)
		}
	}
}

// AbandonProbe освобождает HalfOpen-слот, когда проба не состоялась -
// например, caller отменил контекст до ответа провайдера. Исход не
// записываем: следующий Allow выдаст новую пробу вместо вечного
// probeInFlight.
func (b *Breaker) AbandonProbe() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.probeInFlight = false
	}
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) Snapshot() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	calls, failures := b.windowCounts(b.now())
	return Stats{
		State:          b.state,
		Failures:       failures,
		Calls:          calls,
		LastTransition: b.lastTransition,
	}
}

// Reset принудительно закрывает breaker и сбрасывает окно.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.outcomes = nil
	b.probeInFlight = false
	b.transition(StateClosed, b.now())
}

// ForceOpen принудительно открывает breaker (для операционных нужд).
func (b *Breaker) ForceOpen() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.open(b.now())
}

func (b *Breaker) open(now time.Time) {
	b.openedAt = now
	b.transition(StateOpen, now)
}

func (b *Breaker) transition(to State, now time.Time) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	b.lastTransition = now

	b.logger.Info("circuit state changed",
		zap.String("breaker", b.name),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
}

func (b *Breaker) record(now time.Time, failure bool) {
	b.prune(now)
	b.outcomes = append(b.outcomes, outcome{at: now, failure: failure})
}

func (b *Breaker) windowCounts(now time.Time) (calls, failures int) {
	b.prune(now)
	for _, o := range b.outcomes {
		calls++
		if o.failure {
			failures++
		}
	}
	return calls, failures
}

func (b *Breaker) prune(now time.Time) {
	cutoff := now.Add(-b.cfg.Window)
	fresh := b.outcomes[:0]
	for _, o := range b.outcomes {
		if o.at.After(cutoff) {
			fresh = append(fresh, o)
		}
	}
	b.outcomes = fresh
}
