package telegram

import (
	"strconv"
	"strings"
	"time"

	"github.com/kitbuilder587/video-explorer/internal/domain"
)

const defaultLimit = 10

// ParseSearchCommand разбирает текст сообщения в поисковый запрос.
// Хвостовые модификаторы вида key:value снимаются с запроса:
//
//	/search котики limit:20 media:video platform:instagram from:2024-01-01
//
// Обычный текст без команды - тоже поиск с дефолтами.
func ParseSearchCommand(text string) domain.SearchRequest {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "/search")

	req := domain.SearchRequest{
		Limit:     defaultLimit,
		Platform:  domain.PlatformAll,
		MediaType: domain.MediaAll,
	}

	var queryParts []string
	for _, field := range strings.Fields(text) {
		key, value, found := strings.Cut(field, ":")
		if !found {
			queryParts = append(queryParts, field)
			continue
		}

		switch strings.ToLower(key) {
		case "limit":
			if n, err := strconv.Atoi(value); err == nil {
				req.Limit = n
			}
		case "platform":
			req.Platform = domain.Platform(strings.ToLower(value))
		case "media":
			req.MediaType = domain.MediaType(strings.ToLower(value))
		case "from":
			if ts, err := time.Parse("2006-01-02", value); err == nil {
				req.DateFrom = ts
			}
		case "to":
			if ts, err := time.Parse("2006-01-02", value); err == nil {
				req.DateTo = ts
			}
		default:
			// незнакомый модификатор считаем частью запроса (напр. URL)
			queryParts = append(queryParts, field)
		}
	}

	req.Query = strings.Join(queryParts, " ")
	return req
}
