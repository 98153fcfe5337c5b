package service

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kitbuilder587/video-explorer/internal/breaker"
	"github.com/kitbuilder587/video-explorer/internal/cache"
	"github.com/kitbuilder587/video-explorer/internal/domain"
	"github.com/kitbuilder587/video-explorer/internal/metrics"
	"github.com/kitbuilder587/video-explorer/internal/provider"
	"github.com/kitbuilder587/video-explorer/internal/ratelimit"
)

// Explorer - точка входа оркестрации: cache-first, admission через
// rate limiter и circuit breaker, retry на transient, fallback на
// stale cache и синтетический провайдер. UI-слой ничего из этого
// не реализует сам.
type Explorer interface {
	Search(ctx context.Context, req domain.SearchRequest) (*domain.ResultEnvelope, error)
	SearchAll(ctx context.Context, req domain.SearchRequest, providers []string) (*MultiResult, error)
	Health(ctx context.Context) domain.SystemHealth
}

// MultiResult - агрегат мультипровайдерного поиска. Ошибка одной ветки
// не роняет остальные: у каждого провайдера либо конверт, либо ошибка.
type MultiResult struct {
	Envelopes map[string]*domain.ResultEnvelope
	Errors    map[string]error
}

type RetryConfig struct {
	Attempts    int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

type Config struct {
	// CallTimeout - таймаут одной ветки (одного провайдера).
	CallTimeout     time.Duration
	DefaultProvider string
	Retry           RetryConfig
	ProductionMode  bool
}

type Deps struct {
	Providers map[string]provider.Provider
	// Fallback - всегда доступный синтетический провайдер, последний
	// рубеж перед ErrAllSourcesExhausted.
	Fallback provider.Provider
	Limiter  *ratelimit.Limiter
	Breakers *breaker.Manager
	Cache    *cache.Cache
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
	Config   Config
}

type explorer struct {
	providers map[string]provider.Provider
	fallback  provider.Provider
	limiter   *ratelimit.Limiter
	breakers  *breaker.Manager
	cache     *cache.Cache
	logger    *zap.Logger
	metrics   *metrics.Metrics
	config    Config

	circuitMu   sync.Mutex
	lastCircuit map[string]string
}

func New(deps Deps) Explorer {
	if deps.Config.CallTimeout == 0 {
		deps.Config.CallTimeout = 30 * time.Second
	}
	if deps.Config.Retry.Attempts == 0 {
		deps.Config.Retry.Attempts = 3
	}
	if deps.Config.Retry.BaseBackoff == 0 {
		deps.Config.Retry.BaseBackoff = time.Second
	}
	if deps.Config.Retry.MaxBackoff == 0 {
		deps.Config.Retry.MaxBackoff = 30 * time.Second
	}
	if deps.Config.DefaultProvider == "" {
		for name := range deps.Providers {
			deps.Config.DefaultProvider = name
			break
		}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	return &explorer{
		providers:   deps.Providers,
		fallback:    deps.Fallback,
		limiter:     deps.Limiter,
		breakers:    deps.Breakers,
		cache:       deps.Cache,
		logger:      deps.Logger,
		metrics:     deps.Metrics,
		config:      deps.Config,
		lastCircuit: make(map[string]string),
	}
}

func (e *explorer) Search(ctx context.Context, req domain.SearchRequest) (*domain.ResultEnvelope, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	req.Sanitize()

	name := e.config.DefaultProvider
	p, ok := e.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownProvider, name)
	}

	if e.metrics != nil {
		e.metrics.IncSearchesInFlight()
		defer e.metrics.DecSearchesInFlight()
	}

	return e.searchOne(ctx, name, p, req)
}

// SearchAll веером рассылает один запрос N провайдерам. Ветки независимы:
// каждая со своим таймаутом, admission и fallback; join ждет все ветки,
// висящих горутин не оставляем.
func (e *explorer) SearchAll(ctx context.Context, req domain.SearchRequest, names []string) (*MultiResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	req.Sanitize()

	if len(names) == 0 {
		for name := range e.providers {
			names = append(names, name)
		}
	}

	if e.metrics != nil {
		e.metrics.IncSearchesInFlight()
		defer e.metrics.DecSearchesInFlight()
	}

	res := &MultiResult{
		Envelopes: make(map[string]*domain.ResultEnvelope, len(names)),
		Errors:    make(map[string]error),
	}

	var mu sync.Mutex
	g := new(errgroup.Group)

	for _, name := range names {
		p, ok := e.providers[name]
		if !ok {
			res.Errors[name] = fmt.Errorf("%w: %s", domain.ErrUnknownProvider, name)
			continue
		}

		g.Go(func() error {
			env, err := e.searchOne(ctx, name, p, req)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Errors[name] = err
			} else {
				res.Envelopes[name] = env
			}
			return nil
		})
	}

	g.Wait()
	return res, nil
}

// searchOne - алгоритм одного провайдера: кеш, admission, breaker,
// живой вызов с retry, fallback.
func (e *explorer) searchOne(ctx context.Context, name string, p provider.Provider, req domain.SearchRequest) (*domain.ResultEnvelope, error) {
	start := time.Now()
	key := e.cacheKey(req, name)
	tier := tierFor(req)

	// 1. свежий кеш
	if env, ok := e.cachedEnvelope(key); ok {
		if e.metrics != nil {
			e.metrics.RecordCacheHit()
			e.metrics.RecordSearch(name, string(domain.ProvenanceCached), "success", time.Since(start))
		}
		env.Latency = time.Since(start)
		return env, nil
	}
	if e.metrics != nil {
		e.metrics.RecordCacheMiss()
	}

	// 2. admission rate limiter'а
	dec := e.limiter.Allow(name)
	if !dec.Allowed {
		if e.metrics != nil {
			e.metrics.RecordRateLimitRejection(name)
		}
		e.logger.Warn("rate limit rejection",
			zap.String("provider", name),
			zap.Duration("retry_after", dec.RetryAfter),
		)
		if env, ok := e.staleEnvelope(key, name, start); ok {
			return env, nil
		}
		return nil, fmt.Errorf("%w: retry in %.1fs", domain.ErrRateLimited, dec.RetryAfter.Seconds())
	}

	// 3. circuit breaker
	br := e.breakers.Get(name)
	allowed, probe := br.Allow()
	e.observeCircuit(name, br)
	if !allowed {
		if env, ok := e.staleEnvelope(key, name, start); ok {
			return env, nil
		}
		return nil, fmt.Errorf("%w: provider %s", domain.ErrCircuitOpen, name)
	}

	// 4-5. живой вызов с bounded retry
	env, err := e.callWithRetry(ctx, name, p, req, br, probe)
	e.observeCircuit(name, br)
	if err == nil {
		e.cache.Set(key, env, tier)
		if e.metrics != nil {
			e.metrics.RecordSearch(name, string(domain.ProvenanceLive), "success", time.Since(start))
		}
		return env, nil
	}

	if errors.Is(err, context.Canceled) {
		return nil, err
	}

	// 6. fallback: stale cache -> синтетический провайдер -> exhausted
	e.logger.Warn("live call failed, trying fallback",
		zap.String("provider", name),
		zap.Error(err),
	)

	if env, ok := e.staleEnvelope(key, name, start); ok {
		return env, nil
	}

	if e.fallback != nil && !p.Capabilities().Synthetic {
		fenv, ferr := e.fallback.Search(ctx, req)
		if ferr == nil {
			fenv.Provenance = domain.ProvenanceFallback
			fenv.Latency = time.Since(start)
			if e.metrics != nil {
				e.metrics.RecordSearch(name, string(domain.ProvenanceFallback), "success", time.Since(start))
			}
			return fenv, nil
		}
		e.logger.Error("synthetic fallback failed", zap.Error(ferr))
	}

	if e.metrics != nil {
		e.metrics.RecordSearch(name, string(domain.ProvenanceLive), "error", time.Since(start))
	}
	return nil, fmt.Errorf("%w: %v", domain.ErrAllSourcesExhausted, err)
}

// callWithRetry делает до Attempts попыток на transient-ошибках.
// Auth/permanent не ретраим. HalfOpen-проба всегда одна попытка:
// повторы пробы молотили бы по едва ожившему API.
func (e *explorer) callWithRetry(ctx context.Context, name string, p provider.Provider, req domain.SearchRequest, br *breaker.Breaker, probe bool) (*domain.ResultEnvelope, error) {
	attempts := e.config.Retry.Attempts
	if probe {
		attempts = 1
	}
	backoff := e.config.Retry.BaseBackoff

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if e.metrics != nil {
				e.metrics.RecordRetry(name)
			}
			// exponential backoff + jitter
			sleep := backoff/2 + time.Duration(rand.Int63n(int64(backoff/2)+1))
			select {
			case <-ctx.Done():
				if probe {
					br.AbandonProbe()
				}
				return nil, ctx.Err()
			case <-time.After(sleep):
			}
			backoff *= 2
			if backoff > e.config.Retry.MaxBackoff {
				backoff = e.config.Retry.MaxBackoff
			}
		}

		callStart := time.Now()
		callCtx, cancel := context.WithTimeout(ctx, e.config.CallTimeout)
		env, err := p.Search(callCtx, req)
		cancel()

		if err == nil {
			br.OnSuccess()
			if e.metrics != nil {
				e.metrics.RecordProviderCall(name, "success", time.Since(callStart))
			}
			return env, nil
		}

		// истекший таймаут ветки - transient; отмену caller'а не считаем
		// отказом провайдера и не кормим breaker'у. Удерживаемую пробу
		// при этом обязаны отпустить, иначе breaker застрянет в HalfOpen.
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			if probe {
				br.AbandonProbe()
			}
			return nil, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: call timed out after %s", domain.ErrTransient, e.config.CallTimeout)
		}

		br.OnFailure()
		if e.metrics != nil {
			e.metrics.RecordProviderCall(name, "error", time.Since(callStart))
		}

		e.logger.Warn("provider call failed",
			zap.String("provider", name),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)

		lastErr = err
		if !errors.Is(err, domain.ErrTransient) {
			break
		}
	}

	return nil, lastErr
}

func (e *explorer) cachedEnvelope(key string) (*domain.ResultEnvelope, bool) {
	v, ok := e.cache.Get(key)
	if !ok {
		return nil, false
	}
	stored, ok := v.(*domain.ResultEnvelope)
	if !ok {
		return nil, false
	}

	env := *stored
	env.Provenance = domain.ProvenanceCached
	return &env, true
}

func (e *explorer) staleEnvelope(key, name string, start time.Time) (*domain.ResultEnvelope, bool) {
	v, ok := e.cache.GetStale(key)
	if !ok {
		return nil, false
	}
	stored, ok := v.(*domain.ResultEnvelope)
	if !ok {
		return nil, false
	}

	if e.metrics != nil {
		e.metrics.RecordStaleServed()
		e.metrics.RecordSearch(name, string(domain.ProvenanceFallback), "success", time.Since(start))
	}
	e.logger.Info("serving stale cache entry as fallback",
		zap.String("provider", name),
	)

	env := *stored
	env.Provenance = domain.ProvenanceFallback
	env.Latency = time.Since(start)
	return &env, true
}

func (e *explorer) observeCircuit(name string, br *breaker.Breaker) {
	if e.metrics == nil {
		return
	}

	st := string(br.State())
	e.metrics.SetCircuitState(name, st)

	e.circuitMu.Lock()
	if e.lastCircuit[name] != st {
		e.lastCircuit[name] = st
		e.metrics.RecordCircuitTransition(name, st)
	}
	e.circuitMu.Unlock()
}

// cacheKey - детерминированный fingerprint (query, limit, filters, provider).
func (e *explorer) cacheKey(req domain.SearchRequest, providerName string) string {
	var sb strings.Builder
	sb.WriteString(strings.ToLower(strings.TrimSpace(req.Query)))
	fmt.Fprintf(&sb, "|%d|%s|%s|%s", req.Limit, req.Platform, req.MediaType, providerName)
	if !req.DateFrom.IsZero() {
		fmt.Fprintf(&sb, "|from:%d", req.DateFrom.Unix())
	}
	if !req.DateTo.IsZero() {
		fmt.Fprintf(&sb, "|to:%d", req.DateTo.Unix())
	}

	hash := sha256.Sum256([]byte(sb.String()))
	return fmt.Sprintf("search:%x", hash[:8])
}

// tierFor выбирает TTL-тир: контент пользователя живет меньше хештегов,
// многословные (трендовые) запросы - меньше всего.
func tierFor(req domain.SearchRequest) cache.Tier {
	if strings.HasPrefix(req.Query, "@") {
		return cache.TierUserContent
	}
	if req.IsHashtag() {
		return cache.TierHashtag
	}
	return cache.TierTrending
}
