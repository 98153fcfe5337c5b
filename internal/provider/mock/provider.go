package mock

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kitbuilder587/video-explorer/internal/domain"
)

const Name = "mock"

type samplePost struct {
	platform  domain.Platform
	mediaType domain.MediaType
	caption   string
	thumb     string
	likes     int
	comments  int
	age       time.Duration
}

// детерминированный корпус - хватает на limit=50 за счет повторов
var samplePosts = []samplePost{
	{domain.PlatformInstagram, domain.MediaVideo, "Morning surf session #%s #video", "https://picsum.photos/400/400?random=1", 234, 45, 2 * time.Hour},
	{domain.PlatformInstagram, domain.MediaPhoto, "Golden hour shots #%s #photography", "https://picsum.photos/400/400?random=2", 142, 23, 5 * time.Hour},
	{domain.PlatformFacebook, domain.MediaVideo, "Weekend highlights reel #%s", "https://picsum.photos/400/300?random=3", 89, 12, 8 * time.Hour},
	{domain.PlatformInstagram, domain.MediaReel, "Quick tips in 30 seconds #%s #reels", "https://picsum.photos/400/400?random=4", 512, 98, 12 * time.Hour},
	{domain.PlatformFacebook, domain.MediaPhoto, "Community meetup recap #%s", "https://picsum.photos/400/300?random=5", 45, 8, 24 * time.Hour},
	{domain.PlatformInstagram, domain.MediaCarousel, "Top 5 spots this week #%s #explore", "https://picsum.photos/400/400?random=6", 301, 67, 36 * time.Hour},
}

// Provider - синтетический провайдер: всегда доступен, отдает
// детерминированные данные. Используется как последний fallback
// координатора и как инструмент в тестах.
type Provider struct {
	mu    sync.Mutex
	err   error
	delay time.Duration

	CallCount   int
	LastRequest domain.SearchRequest

	now func() time.Time
}

func New() *Provider {
	return &Provider{now: time.Now}
}

// WithError заставляет следующий Search вернуть err (для тестов координатора).
func (p *Provider) WithError(err error) *Provider {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
	return p
}

func (p *Provider) WithDelay(d time.Duration) *Provider {
	p.mu.Lock()
	p.delay = d
	p.mu.Unlock()
	return p
}

func (p *Provider) Capabilities() domain.Capabilities {
	return domain.Capabilities{
		Name:      Name,
		Platforms: []domain.Platform{domain.PlatformInstagram, domain.PlatformFacebook},
		MediaTypes: []domain.MediaType{
			domain.MediaVideo, domain.MediaPhoto, domain.MediaCarousel, domain.MediaReel,
		},
		SupportsDateFilter: true,
		SupportsPagination: false,
		Synthetic:          true,
	}
}

func (p *Provider) Search(ctx context.Context, req domain.SearchRequest) (*domain.ResultEnvelope, error) {
	start := time.Now()

	p.mu.Lock()
	p.CallCount++
	p.LastRequest = req
	err := p.err
	delay := p.delay
	p.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	if err != nil {
		return nil, err
	}

	query := strings.TrimPrefix(req.Query, "@")
	now := p.now()

	var results []domain.NormalizedResult
	for i := 0; len(results) < req.Limit; i++ {
		post := samplePosts[i%len(samplePosts)]
		if !post.mediaType.Matches(req.MediaType) {
			if i >= req.Limit*len(samplePosts) {
				break // фильтр не совпал ни с чем из корпуса
			}
			continue
		}

		createdAt := now.Add(-post.age - time.Duration(i/len(samplePosts))*48*time.Hour)
		if !req.DateFrom.IsZero() && createdAt.Before(req.DateFrom) {
			break
		}

		rawID := fmt.Sprintf("%d%04d", 1000000+i, i)
		title := fmt.Sprintf(post.caption, query)

		raw, _ := json.Marshal(map[string]any{
			"id":         rawID,
			"caption":    title,
			"media_type": string(post.mediaType),
			"synthetic":  true,
		})

		results = append(results, domain.NormalizedResult{
			ID:           domain.ResultID(post.platform, rawID),
			Title:        title,
			URL:          fmt.Sprintf("https://%s.com/p/%s", post.platform, rawID),
			ThumbnailURL: post.thumb,
			CreatedAt:    createdAt,
			Platform:     post.platform,
			MediaType:    post.mediaType,
			LikeCount:    post.likes,
			CommentCount: post.comments,
			Hashtags:     []string{strings.ToLower(query)},
			RawPayload:   raw,
		})
	}

	return &domain.ResultEnvelope{
		Results:    results,
		Provenance: domain.ProvenanceLive,
		Provider:   Name,
		ProducedAt: time.Now(),
		Latency:    time.Since(start),
	}, nil
}

func (p *Provider) Health(ctx context.Context) domain.ProviderStatus {
	return domain.ProviderStatus{
		Name:         Name,
		State:        domain.HealthHealthy,
		LastCheck:    time.Now(),
		ResponseTime: time.Millisecond,
	}
}

// Reset обнуляет счетчики вызовов и инъекции.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CallCount = 0
	p.LastRequest = domain.SearchRequest{}
	p.err = nil
	p.delay = 0
}
