package breaker

import (
	"sync"

	"go.uber.org/zap"
)

// Manager держит по одному breaker на провайдера, создает лениво.
type Manager struct {
	mu       sync.Mutex
	breakers map[string]*Breaker
	cfg      Config
	logger   *zap.Logger
}

func NewManager(cfg Config, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		breakers: make(map[string]*Breaker),
		cfg:      cfg,
		logger:   logger,
	}
}

func (m *Manager) Get(name string) *Breaker {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.breakers[name]
	if !ok {
		b = New(name, m.cfg, m.logger)
		m.breakers[name] = b
	}
	return b
}

func (m *Manager) Snapshots() map[string]Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := make(map[string]Stats, len(m.breakers))
	for name, b := range m.breakers {
		stats[name] = b.Snapshot()
	}
	return stats
}

func (m *Manager) ResetAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, b := range m.breakers {
		b.Reset()
	}
}
