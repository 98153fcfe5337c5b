package cache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Tier определяет TTL записи: результаты по хештегам живут дольше,
// чем трендовые запросы или health-снапшоты.
type Tier string

const (
	TierHashtag     Tier = "hashtag"
	TierUserContent Tier = "user_content"
	TierTrending    Tier = "trending"
	TierHealth      Tier = "health"
	TierToken       Tier = "token"
)

type Config struct {
	MaxEntries     int
	HashtagTTL     time.Duration
	UserContentTTL time.Duration
	TrendingTTL    time.Duration
	HealthTTL      time.Duration
	TokenTTL       time.Duration
	// StaleWindow - насколько просроченную запись еще можно отдать
	// как fallback. Старше - считается мусором.
	StaleWindow time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxEntries <= 0 {
		c.MaxEntries = 1000
	}
	if c.HashtagTTL <= 0 {
		c.HashtagTTL = time.Hour
	}
	if c.UserContentTTL <= 0 {
		c.UserContentTTL = 30 * time.Minute
	}
	if c.TrendingTTL <= 0 {
		c.TrendingTTL = 15 * time.Minute
	}
	if c.HealthTTL <= 0 {
		c.HealthTTL = 5 * time.Minute
	}
	if c.TokenTTL <= 0 {
		c.TokenTTL = time.Hour
	}
	if c.StaleWindow <= 0 {
		c.StaleWindow = time.Hour
	}
	return c
}

type entry struct {
	value     any
	tier      Tier
	createdAt time.Time
	expiresAt time.Time
}

type Stats struct {
	Entries   int
	Hits      int
	Misses    int
	Evictions int
}

// Cache - LRU с TTL по тирам. Вытеснение по размеру делает golang-lru,
// просрочка считается лениво при чтении; фоновых таймеров нет.
// Просроченная запись остается в LRU как кандидат на serve-stale-on-error,
// пока ее не вытеснит давление размера или StaleWindow.
type Cache struct {
	mu        sync.Mutex
	lru       *lru.Cache[string, *entry]
	cfg       Config
	hits      int
	misses    int
	evictions int

	now func() time.Time
}

func New(cfg Config) (*Cache, error) {
	cfg = cfg.withDefaults()

	c := &Cache{
		cfg: cfg,
		now: time.Now,
	}

	l, err := lru.NewWithEvict[string, *entry](cfg.MaxEntries, func(string, *entry) {
		c.evictions++
	})
	if err != nil {
		return nil, err
	}
	c.lru = l

	return c, nil
}

// Get возвращает только свежие записи. Просроченная запись - это miss,
// но из LRU она не удаляется (см. GetStale).
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lru.Get(key)
	if !ok || c.now().After(e.expiresAt) {
		c.misses++
		return nil, false
	}

	c.hits++
	return e.value, true
}

// GetStale возвращает запись даже после истечения TTL, если она
// просрочена не дольше StaleWindow. Используется как last known good,
// когда все живые источники недоступны.
func (c *Cache) GetStale(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}

	if c.now().After(e.expiresAt.Add(c.cfg.StaleWindow)) {
		c.lru.Remove(key)
		return nil, false
	}

	return e.value, true
}

// Set пишет значение с TTL тира. Перезапись по тому же ключу идемпотентна,
// last-writer-wins.
func (c *Cache) Set(key string, value any, tier Tier) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.lru.Add(key, &entry{
		value:     value,
		tier:      tier,
		createdAt: now,
		expiresAt: now.Add(c.ttlFor(tier)),
	})
}

func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(key)
}

func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}

func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Entries:   c.lru.Len(),
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
}

func (c *Cache) ttlFor(tier Tier) time.Duration {
	switch tier {
	case TierHashtag:
		return c.cfg.HashtagTTL
	case TierUserContent:
		return c.cfg.UserContentTTL
	case TierTrending:
		return c.cfg.TrendingTTL
	case TierHealth:
		return c.cfg.HealthTTL
	case TierToken:
		return c.cfg.TokenTTL
	}
	return c.cfg.TrendingTTL
}
