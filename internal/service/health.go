package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kitbuilder587/video-explorer/internal/cache"
	"github.com/kitbuilder587/video-explorer/internal/domain"
)

const healthCacheKey = "health:system"

// Health опрашивает провайдеров параллельно и дополняет их советующий
// статус авторитетным состоянием breaker'а и остатком бюджета.
// Снапшот кешируется в health-тире, чтобы статусный экран не тратил
// токены провайдеров.
func (e *explorer) Health(ctx context.Context) domain.SystemHealth {
	if v, ok := e.cache.Get(healthCacheKey); ok {
		if health, ok := v.(domain.SystemHealth); ok {
			return health
		}
	}

	type named struct {
		name   string
		status domain.ProviderStatus
	}

	var mu sync.Mutex
	statuses := make([]named, 0, len(e.providers))

	g := new(errgroup.Group)
	for name, p := range e.providers {
		g.Go(func() error {
			probeCtx, cancel := context.WithTimeout(ctx, e.config.CallTimeout)
			defer cancel()

			st := p.Health(probeCtx)
			st.Name = name
			st.CircuitState = string(e.breakers.Get(name).State())
			st.RateRemaining = e.limiter.Status(name).Remaining

			mu.Lock()
			statuses = append(statuses, named{name: name, status: st})
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	sort.Slice(statuses, func(i, j int) bool { return statuses[i].name < statuses[j].name })

	health := domain.SystemHealth{
		TotalProviders: len(statuses),
		ProductionMode: e.config.ProductionMode,
		LastCheck:      time.Now(),
	}
	for _, s := range statuses {
		health.Providers = append(health.Providers, s.status)
		if s.status.State == domain.HealthHealthy {
			health.HealthyProviders++
		}
	}
	health.Healthy = health.HealthyProviders > 0

	e.cache.Set(healthCacheKey, health, cache.TierHealth)
	return health
}
