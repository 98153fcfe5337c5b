package meta

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/kitbuilder587/video-explorer/internal/cache"
	"github.com/kitbuilder587/video-explorer/internal/domain"
	"github.com/kitbuilder587/video-explorer/internal/provider"
)

const Name = "meta"

const tokenStatusKey = "token:meta"

// TokenStore хранит last known снапшот состояния app-токена. Когда
// токен-эндпоинт недоступен, статусный экран показывает последнее
// известное состояние вместо пустоты.
type TokenStore interface {
	Get(key string) (any, bool)
	Set(key string, value any, tier cache.Tier)
}

type tokenSnapshot struct {
	Valid     bool
	ExpiresAt time.Time
}

type Config struct {
	AppID             string
	AppSecret         string
	GraphBaseURL      string
	InstagramBaseURL  string
	BusinessAccountID string
	Timeout           time.Duration
	TokenCache        TokenStore
}

// Client - провайдер Meta (Facebook Graph API + Instagram Graph API).
// App token получает через client_credentials, сам протокол нас не
// интересует - это непрозрачная способность oauth2-клиента.
type Client struct {
	cfg    Config
	http   *http.Client
	tokens oauth2.TokenSource
	logger *zap.Logger
}

func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.GraphBaseURL == "" {
		cfg.GraphBaseURL = "https://graph.facebook.com/v18.0"
	}
	if cfg.InstagramBaseURL == "" {
		cfg.InstagramBaseURL = "https://graph.instagram.com/v18.0"
	}
	if cfg.BusinessAccountID == "" {
		cfg.BusinessAccountID = "me"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cc := &clientcredentials.Config{
		ClientID:     cfg.AppID,
		ClientSecret: cfg.AppSecret,
		TokenURL:     cfg.GraphBaseURL + "/oauth/access_token",
	}
	base := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Timeout: cfg.Timeout})

	// один TokenSource на клиент: запросы и Health делят кешированный токен
	ts := cc.TokenSource(base)

	return &Client{
		cfg:    cfg,
		http:   oauth2.NewClient(base, ts),
		tokens: ts,
		logger: logger,
	}
}

func (c *Client) Capabilities() domain.Capabilities {
	return domain.Capabilities{
		Name:      Name,
		Platforms: []domain.Platform{domain.PlatformInstagram, domain.PlatformFacebook},
		MediaTypes: []domain.MediaType{
			domain.MediaVideo, domain.MediaPhoto, domain.MediaCarousel, domain.MediaReel,
		},
		SupportsDateFilter: false,
		SupportsPagination: true,
		Synthetic:          false,
	}
}

func (c *Client) Search(ctx context.Context, req domain.SearchRequest) (*domain.ResultEnvelope, error) {
	start := time.Now()

	var results []domain.NormalizedResult
	var firstErr error

	if user, ok := strings.CutPrefix(req.Query, "@"); ok {
		results, firstErr = c.searchUser(ctx, user, req)
	} else {
		results, firstErr = c.searchHashtag(ctx, req)
	}

	if len(results) == 0 && firstErr != nil {
		return nil, firstErr
	}

	if len(results) > req.Limit {
		results = results[:req.Limit]
	}

	c.logger.Debug("meta search completed",
		zap.String("query", req.Query),
		zap.Int("results", len(results)),
		zap.Duration("latency", time.Since(start)),
	)

	return &domain.ResultEnvelope{
		Results:    results,
		Provenance: domain.ProvenanceLive,
		Provider:   Name,
		ProducedAt: time.Now(),
		Latency:    time.Since(start),
	}, nil
}

// searchHashtag ищет по хештегу в Instagram и Facebook. Падение одной
// площадки не роняет вторую; ошибка возвращается только если обе пусты.
func (c *Client) searchHashtag(ctx context.Context, req domain.SearchRequest) ([]domain.NormalizedResult, error) {
	var results []domain.NormalizedResult
	var firstErr error

	igResults, err := c.searchInstagramHashtag(ctx, req.Query, req.Limit, req.MediaType)
	if err != nil {
		c.logger.Warn("instagram hashtag search failed", zap.Error(err), zap.String("hashtag", req.Query))
		firstErr = err
	}
	results = append(results, igResults...)

	if len(results) < req.Limit {
		fbResults, err := c.searchFacebookHashtag(ctx, req.Query, req.Limit-len(results), req.MediaType)
		if err != nil {
			c.logger.Warn("facebook hashtag search failed", zap.Error(err), zap.String("hashtag", req.Query))
			if firstErr == nil {
				firstErr = err
			}
		}
		results = append(results, fbResults...)
	}

	return results, firstErr
}

func (c *Client) searchInstagramHashtag(ctx context.Context, hashtag string, limit int, mt domain.MediaType) ([]domain.NormalizedResult, error) {
	// сначала резолвим хештег в ID
	body, err := c.get(ctx, c.cfg.GraphBaseURL+"/ig_hashtag_search", url.Values{
		"user_id": {c.cfg.BusinessAccountID},
		"q":       {hashtag},
	})
	if err != nil {
		return nil, err
	}

	var idsResp struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &idsResp); err != nil {
		return nil, fmt.Errorf("%w: decode hashtag search: %v", domain.ErrPermanent, err)
	}
	if len(idsResp.Data) == 0 {
		return nil, nil
	}

	body, err = c.get(ctx, fmt.Sprintf("%s/%s/recent_media", c.cfg.GraphBaseURL, idsResp.Data[0].ID), url.Values{
		"user_id": {c.cfg.BusinessAccountID},
		"fields":  {"id,caption,media_type,media_url,permalink,timestamp,like_count,comments_count"},
		"limit":   {fmt.Sprint(min(limit, 50))},
	})
	if err != nil {
		return nil, err
	}

	return c.mapInstagramMedia(body, mt)
}

func (c *Client) searchFacebookHashtag(ctx context.Context, hashtag string, limit int, mt domain.MediaType) ([]domain.NormalizedResult, error) {
	body, err := c.get(ctx, c.cfg.GraphBaseURL+"/search", url.Values{
		"q":      {"#" + hashtag},
		"type":   {"post"},
		"fields": {"id,message,created_time,full_picture,permalink_url,source"},
		"limit":  {fmt.Sprint(min(limit, 50))},
	})
	if err != nil {
		return nil, err
	}

	return c.mapFacebookPosts(body, mt)
}

// searchUser собирает контент пользователя: IG media + FB posts.
func (c *Client) searchUser(ctx context.Context, user string, req domain.SearchRequest) ([]domain.NormalizedResult, error) {
	var results []domain.NormalizedResult
	var firstErr error

	body, err := c.get(ctx, c.cfg.InstagramBaseURL+"/me/media", url.Values{
		"fields": {"id,caption,media_type,media_url,permalink,timestamp,like_count,comments_count"},
		"limit":  {fmt.Sprint(min(req.Limit, 50))},
	})
	if err != nil {
		c.logger.Warn("instagram user search failed", zap.Error(err), zap.String("user", user))
		firstErr = err
	} else {
		igResults, mapErr := c.mapInstagramMedia(body, req.MediaType)
		if mapErr == nil {
			results = append(results, igResults...)
		}
	}

	if len(results) < req.Limit {
		body, err := c.get(ctx, fmt.Sprintf("%s/%s/posts", c.cfg.GraphBaseURL, url.PathEscape(user)), url.Values{
			"fields": {"id,message,created_time,full_picture,permalink_url,source"},
			"limit":  {fmt.Sprint(min(req.Limit-len(results), 50))},
		})
		if err != nil {
			c.logger.Warn("facebook user search failed", zap.Error(err), zap.String("user", user))
			if firstErr == nil {
				firstErr = err
			}
		} else {
			fbResults, mapErr := c.mapFacebookPosts(body, req.MediaType)
			if mapErr == nil {
				results = append(results, fbResults...)
			}
		}
	}

	return results, firstErr
}

func (c *Client) Health(ctx context.Context) domain.ProviderStatus {
	start := time.Now()
	status := domain.ProviderStatus{
		Name:      Name,
		LastCheck: start,
	}

	_, err := c.get(ctx, c.cfg.GraphBaseURL+"/me", url.Values{})
	status.ResponseTime = time.Since(start)

	switch {
	case err == nil:
		status.State = domain.HealthHealthy
	case errors.Is(err, domain.ErrAuth) || errors.Is(err, domain.ErrPermanent) || errors.Is(err, domain.ErrRateLimited):
		// API отвечает, но не пускает - деградация, не недоступность
		status.State = domain.HealthDegraded
		status.LastError = err.Error()
	default:
		status.State = domain.HealthUnreachable
		status.LastError = err.Error()
	}

	c.reportToken(&status)
	return status
}

// reportToken снимает состояние app-токена. Живой снапшот кешируется;
// когда токен-эндпоинт лежит, отдаем последний известный из кеша.
func (c *Client) reportToken(status *domain.ProviderStatus) {
	tok, err := c.tokens.Token()
	if err == nil {
		status.TokenValid = tok.Valid()
		status.TokenExpires = tok.Expiry
		if c.cfg.TokenCache != nil {
			c.cfg.TokenCache.Set(tokenStatusKey, tokenSnapshot{
				Valid:     tok.Valid(),
				ExpiresAt: tok.Expiry,
			}, cache.TierToken)
		}
		return
	}

	if c.cfg.TokenCache == nil {
		return
	}
	if v, ok := c.cfg.TokenCache.Get(tokenStatusKey); ok {
		if snap, ok := v.(tokenSnapshot); ok {
			status.TokenValid = snap.Valid
			status.TokenExpires = snap.ExpiresAt
		}
	}
}

// get выполняет GET с токеном и классифицирует любую ошибку.
func (c *Client) get(ctx context.Context, rawURL string, params url.Values) ([]byte, error) {
	u := rawURL
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", domain.ErrPermanent, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) {
			return nil, fmt.Errorf("%w: token request failed: status %d", domain.ErrAuth, rerr.Response.StatusCode)
		}
		return nil, provider.ClassifyError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, provider.ClassifyError(err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, provider.ClassifyStatus(resp.StatusCode)
	}

	return body, nil
}

type igMedia struct {
	ID            string `json:"id"`
	Caption       string `json:"caption"`
	MediaType     string `json:"media_type"`
	MediaURL      string `json:"media_url"`
	Permalink     string `json:"permalink"`
	Timestamp     string `json:"timestamp"`
	LikeCount     int    `json:"like_count"`
	CommentsCount int    `json:"comments_count"`
}

type fbPost struct {
	ID           string `json:"id"`
	Message      string `json:"message"`
	CreatedTime  string `json:"created_time"`
	FullPicture  string `json:"full_picture"`
	PermalinkURL string `json:"permalink_url"`
	Source       string `json:"source"`
}

func (c *Client) mapInstagramMedia(body []byte, filter domain.MediaType) ([]domain.NormalizedResult, error) {
	var resp struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode media response: %v", domain.ErrPermanent, err)
	}

	var results []domain.NormalizedResult
	for _, raw := range resp.Data {
		var item igMedia
		if err := json.Unmarshal(raw, &item); err != nil {
			continue
		}

		mt := mapInstagramMediaType(item.MediaType)
		if !mt.Matches(filter) {
			continue
		}

		title := item.Caption
		if title == "" {
			title = "Instagram Post"
		}

		results = append(results, domain.NormalizedResult{
			ID:           domain.ResultID(domain.PlatformInstagram, item.ID),
			Title:        truncate(title, 200),
			URL:          item.Permalink,
			ThumbnailURL: item.MediaURL,
			CreatedAt:    parseGraphTime(item.Timestamp),
			Platform:     domain.PlatformInstagram,
			MediaType:    mt,
			LikeCount:    item.LikeCount,
			CommentCount: item.CommentsCount,
			Hashtags:     extractHashtags(item.Caption),
			RawPayload:   raw,
		})
	}

	return results, nil
}

func (c *Client) mapFacebookPosts(body []byte, filter domain.MediaType) ([]domain.NormalizedResult, error) {
	var resp struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode posts response: %v", domain.ErrPermanent, err)
	}

	var results []domain.NormalizedResult
	for _, raw := range resp.Data {
		var post fbPost
		if err := json.Unmarshal(raw, &post); err != nil {
			continue
		}

		// посты без медиа не интересны
		if post.FullPicture == "" && post.Source == "" {
			continue
		}

		mt := domain.MediaPhoto
		if post.Source != "" {
			mt = domain.MediaVideo
		}
		if !mt.Matches(filter) {
			continue
		}

		title := post.Message
		if title == "" {
			title = "Facebook Post"
		}

		pageURL := post.PermalinkURL
		if pageURL == "" {
			pageURL = "https://facebook.com/" + post.ID
		}

		results = append(results, domain.NormalizedResult{
			ID:           domain.ResultID(domain.PlatformFacebook, post.ID),
			Title:        truncate(title, 200),
			URL:          pageURL,
			ThumbnailURL: post.FullPicture,
			CreatedAt:    parseGraphTime(post.CreatedTime),
			Platform:     domain.PlatformFacebook,
			MediaType:    mt,
			Hashtags:     extractHashtags(post.Message),
			RawPayload:   raw,
		})
	}

	return results, nil
}

func mapInstagramMediaType(s string) domain.MediaType {
	switch strings.ToUpper(s) {
	case "IMAGE":
		return domain.MediaPhoto
	case "VIDEO":
		return domain.MediaVideo
	case "CAROUSEL_ALBUM":
		return domain.MediaCarousel
	case "REEL", "REELS":
		return domain.MediaReel
	}
	return domain.MediaVideo
}

// Graph отдает и RFC3339, и "+0000" без двоеточия
var graphTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05-0700",
}

func parseGraphTime(s string) time.Time {
	for _, layout := range graphTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// truncate режет по рунам: байтовый срез ломал бы многобайтовые
// подписи посреди символа.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func extractHashtags(caption string) []string {
	var tags []string
	for _, f := range strings.Fields(caption) {
		if tag, ok := strings.CutPrefix(f, "#"); ok && tag != "" {
			tags = append(tags, strings.ToLower(tag))
		}
	}
	return tags
}
