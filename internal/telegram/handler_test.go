package telegram

import (
	"fmt"
	"strings"
	"testing"

	"github.com/kitbuilder587/video-explorer/internal/domain"
)

func TestMapErrorToMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{domain.ErrEmptyQuery, "Пустой запрос"},
		{domain.ErrQueryTooLong, "слишком длинный"},
		{domain.ErrLimitOutOfRange, "от 1 до"},
		{domain.ErrInvalidDates, "диапазон дат"},
		{fmt.Errorf("%w: retry in 24.0s", domain.ErrRateLimited), "Слишком много запросов"},
		{fmt.Errorf("%w: provider meta", domain.ErrCircuitOpen), "временно отключен"},
		{fmt.Errorf("%w: timeout", domain.ErrAllSourcesExhausted), "Все источники недоступны"},
		{domain.ErrUnknownProvider, "Неизвестный источник"},
		{fmt.Errorf("something else"), "Произошла ошибка"},
	}

	for _, tt := range tests {
		got := mapErrorToMessage(tt.err)
		if !strings.Contains(got, tt.want) {
			t.Errorf("mapErrorToMessage(%v) = %q, want substring %q", tt.err, got, tt.want)
		}
	}
}
