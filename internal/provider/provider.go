package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/kitbuilder587/video-explorer/internal/domain"
)

// Provider - бэкенд поиска контента. Search обязан классифицировать любую
// ошибку в одну из четырех: ErrAuth, ErrRateLimited, ErrTransient,
// ErrPermanent - глотать ошибки молча нельзя, координатор по классу
// выбирает retry / fallback / abort.
//
// Health - рекомендательный статус для отображения; авторитетный гейт -
// circuit breaker координатора.
type Provider interface {
	Search(ctx context.Context, req domain.SearchRequest) (*domain.ResultEnvelope, error)
	Capabilities() domain.Capabilities
	Health(ctx context.Context) domain.ProviderStatus
}

// ClassifyStatus переводит HTTP-статус в класс ошибки:
// 401/403 - auth, 429 - rate limit, 5xx - transient, прочие 4xx - permanent.
func ClassifyStatus(code int) error {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", domain.ErrAuth, code)
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: status %d", domain.ErrRateLimited, code)
	case code >= 500:
		return fmt.Errorf("%w: status %d", domain.ErrTransient, code)
	case code >= 400:
		return fmt.Errorf("%w: status %d", domain.ErrPermanent, code)
	}
	return nil
}

// ClassifyError классифицирует транспортные ошибки: таймауты и обрывы
// сети - transient, отмена контекста пробрасывается как есть.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	// всё остальное на транспортном уровне (DNS, connreset, таймауты) - transient
	return fmt.Errorf("%w: %v", domain.ErrTransient, err)
}
