package domain

import "time"

type Platform string

const (
	PlatformInstagram Platform = "instagram"
	PlatformFacebook  Platform = "facebook"
	PlatformMeta      Platform = "meta"
	PlatformAll       Platform = "all"
)

func (p Platform) IsValid() bool {
	switch p {
	case PlatformInstagram, PlatformFacebook, PlatformMeta, PlatformAll:
		return true
	}
	return false
}

func (p Platform) String() string { return string(p) }

type MediaType string

const (
	MediaVideo    MediaType = "video"
	MediaPhoto    MediaType = "photo"
	MediaCarousel MediaType = "carousel"
	MediaReel     MediaType = "reel"
	MediaAll      MediaType = "all"
)

func (m MediaType) IsValid() bool {
	switch m {
	case MediaVideo, MediaPhoto, MediaCarousel, MediaReel, MediaAll:
		return true
	}
	return false
}

func (m MediaType) String() string { return string(m) }

// Matches сообщает, проходит ли результат фильтр по типу медиа.
func (m MediaType) Matches(filter MediaType) bool {
	if filter == MediaAll || filter == "" {
		return true
	}
	return m == filter
}

// Provenance - откуда пришли данные в ResultEnvelope.
// Тег обязан честно отражать путь: live только для безошибочного
// живого вызова, cached/fallback - никогда.
type Provenance string

const (
	ProvenanceLive     Provenance = "live"
	ProvenanceCached   Provenance = "cached"
	ProvenanceFallback Provenance = "fallback"
)

// Capabilities - статический дескриптор провайдера.
type Capabilities struct {
	Name               string
	Platforms          []Platform
	MediaTypes         []MediaType
	SupportsDateFilter bool
	SupportsPagination bool
	Synthetic          bool
}

type HealthState string

const (
	HealthHealthy     HealthState = "healthy"
	HealthDegraded    HealthState = "degraded"
	HealthUnreachable HealthState = "unreachable"
)

// ProviderStatus - рекомендательный статус; авторитетный гейт - circuit breaker.
type ProviderStatus struct {
	Name          string
	State         HealthState
	LastCheck     time.Time
	LastError     string
	ResponseTime  time.Duration
	RateRemaining int
	CircuitState  string
	TokenValid    bool
	TokenExpires  time.Time
}

type SystemHealth struct {
	Healthy          bool
	TotalProviders   int
	HealthyProviders int
	Providers        []ProviderStatus
	ProductionMode   bool
	LastCheck        time.Time
}
