package integration

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kitbuilder587/video-explorer/internal/breaker"
	"github.com/kitbuilder587/video-explorer/internal/cache"
	"github.com/kitbuilder587/video-explorer/internal/domain"
	"github.com/kitbuilder587/video-explorer/internal/provider"
	"github.com/kitbuilder587/video-explorer/internal/provider/meta"
	"github.com/kitbuilder587/video-explorer/internal/provider/mock"
	"github.com/kitbuilder587/video-explorer/internal/ratelimit"
	"github.com/kitbuilder587/video-explorer/internal/service"
)

// Полный путь: telegram-подобный запрос -> Explorer -> Meta-клиент ->
// фейковый Graph API. Без контейнеров, вся внешняя поверхность - httptest.

type graphState struct {
	failing atomic.Bool
	calls   atomic.Int64
}

func newGraphServer(t *testing.T, state *graphState) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"test-token","token_type":"bearer","expires_in":3600}`)
	})
	mux.HandleFunc("/ig_hashtag_search", func(w http.ResponseWriter, r *http.Request) {
		state.calls.Add(1)
		if state.failing.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"data":[{"id":"17843"}]}`)
	})
	mux.HandleFunc("/17843/recent_media", func(w http.ResponseWriter, r *http.Request) {
		if state.failing.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"data":[
			{"id":"111","caption":"Trip #travel","media_type":"VIDEO","media_url":"https://cdn.example/111.jpg","permalink":"https://instagram.com/p/111","timestamp":"2024-01-15T14:30:00+0000","like_count":42,"comments_count":7}
		]}`)
	})
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		if state.failing.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"data":[]}`)
	})
	mux.HandleFunc("/me", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"123"}`)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newPipeline(t *testing.T, srv *httptest.Server, cc cache.Config) service.Explorer {
	t.Helper()

	metaClient := meta.New(meta.Config{
		AppID:             "app-id",
		AppSecret:         "app-secret",
		GraphBaseURL:      srv.URL,
		InstagramBaseURL:  srv.URL + "/ig",
		BusinessAccountID: "123",
		Timeout:           5 * time.Second,
	}, nil)

	store, err := cache.New(cc)
	if err != nil {
		t.Fatalf("cache.New: %v", err)
	}

	return service.New(service.Deps{
		Providers: map[string]provider.Provider{meta.Name: metaClient},
		Fallback:  mock.New(),
		Limiter:   ratelimit.New(ratelimit.Config{Enabled: true, RequestsPerHour: 3600, Burst: 10}),
		Breakers:  breaker.NewManager(breaker.Config{MinCalls: 100}, nil),
		Cache:     store,
		Config: service.Config{
			DefaultProvider: meta.Name,
			CallTimeout:     5 * time.Second,
			Retry:           service.RetryConfig{Attempts: 2, BaseBackoff: time.Millisecond, MaxBackoff: 4 * time.Millisecond},
		},
	})
}

func TestPipeline_LiveCachedStale(t *testing.T) {
	state := &graphState{}
	srv := newGraphServer(t, state)
	svc := newPipeline(t, srv, cache.Config{HashtagTTL: 50 * time.Millisecond, StaleWindow: time.Hour})

	req := domain.SearchRequest{Query: "#travel", Limit: 10}

	// живой вызов
	env, err := svc.Search(context.Background(), req)
	if err != nil {
		t.Fatalf("live search: %v", err)
	}
	if env.Provenance != domain.ProvenanceLive {
		t.Fatalf("provenance = %s, want live", env.Provenance)
	}
	if len(env.Results) != 1 || env.Results[0].ID != "instagram_111" {
		t.Fatalf("unexpected results: %+v", env.Results)
	}

	// повтор из кеша, API не трогаем
	before := state.calls.Load()
	env, err = svc.Search(context.Background(), req)
	if err != nil {
		t.Fatalf("cached search: %v", err)
	}
	if env.Provenance != domain.ProvenanceCached {
		t.Errorf("provenance = %s, want cached", env.Provenance)
	}
	if state.calls.Load() != before {
		t.Error("cache hit reached the API")
	}

	// TTL истек, API лежит - отдаем stale как fallback
	time.Sleep(70 * time.Millisecond)
	state.failing.Store(true)

	env, err = svc.Search(context.Background(), req)
	if err != nil {
		t.Fatalf("stale search: %v", err)
	}
	if env.Provenance != domain.ProvenanceFallback {
		t.Errorf("provenance = %s, want fallback", env.Provenance)
	}
	if len(env.Results) != 1 {
		t.Errorf("stale lost results: %+v", env.Results)
	}
}

func TestPipeline_SyntheticFallbackOnColdFailure(t *testing.T) {
	state := &graphState{}
	state.failing.Store(true)
	srv := newGraphServer(t, state)
	svc := newPipeline(t, srv, cache.Config{})

	// кеш пуст, API лежит - синтетический провайдер спасает ответ
	env, err := svc.Search(context.Background(), domain.SearchRequest{Query: "#nature", Limit: 5})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if env.Provenance != domain.ProvenanceFallback {
		t.Errorf("provenance = %s, want fallback", env.Provenance)
	}
	if len(env.Results) == 0 {
		t.Error("fallback returned no results")
	}
}

func TestPipeline_HealthReflectsProviders(t *testing.T) {
	state := &graphState{}
	srv := newGraphServer(t, state)
	svc := newPipeline(t, srv, cache.Config{})

	h := svc.Health(context.Background())
	if !h.Healthy {
		t.Error("system unhealthy with working graph server")
	}
	if h.TotalProviders != 1 {
		t.Errorf("providers = %d, want 1", h.TotalProviders)
	}
	if h.Providers[0].Name != meta.Name {
		t.Errorf("provider name = %q", h.Providers[0].Name)
	}
}

func TestPipeline_ValidationShortCircuits(t *testing.T) {
	state := &graphState{}
	srv := newGraphServer(t, state)
	svc := newPipeline(t, srv, cache.Config{})

	_, err := svc.Search(context.Background(), domain.SearchRequest{Query: "", Limit: 5})
	if !errors.Is(err, domain.ErrEmptyQuery) {
		t.Fatalf("err = %v, want ErrEmptyQuery", err)
	}
	if state.calls.Load() != 0 {
		t.Error("invalid request reached the API")
	}
}
