package telegram

import (
	"fmt"
	"html"
	"strings"

	"github.com/kitbuilder587/video-explorer/internal/domain"
)

// FormatEnvelope рендерит конверт результатов. Маркер происхождения
// виден пользователю всегда: выдавать кеш или синтетику за живые
// данные нельзя.
func FormatEnvelope(env *domain.ResultEnvelope) string {
	var sb strings.Builder

	sb.WriteString(provenanceBanner(env.Provenance))
	sb.WriteString("\n\n")

	if len(env.Results) == 0 {
		sb.WriteString("Ничего не найдено.")
		return sb.String()
	}

	for i, r := range env.Results {
		sb.WriteString(fmt.Sprintf("%d. %s <b>%s</b>\n", i+1, mediaIcon(r.MediaType), html.EscapeString(r.Title)))
		if r.URL != "" {
			escapedURL := html.EscapeString(r.URL)
			sb.WriteString(fmt.Sprintf("   <a href=\"%s\">%s</a>\n", escapedURL, html.EscapeString(truncateURL(r.URL, 50))))
		}
		sb.WriteString(fmt.Sprintf("   %s · ♥ %d · 💬 %d\n\n", r.Platform, r.LikeCount, r.CommentCount))
	}

	sb.WriteString(fmt.Sprintf("Всего: %d · источник: %s", len(env.Results), env.Provider))
	return sb.String()
}

func FormatHealth(h domain.SystemHealth) string {
	var sb strings.Builder

	if h.Healthy {
		sb.WriteString("<b>Система работает</b>\n\n")
	} else {
		sb.WriteString("<b>Все источники недоступны</b>\n\n")
	}

	for _, p := range h.Providers {
		sb.WriteString(fmt.Sprintf("%s <b>%s</b>\n", healthIcon(p.State), html.EscapeString(p.Name)))
		sb.WriteString(fmt.Sprintf("   circuit: %s · осталось запросов: %d\n", p.CircuitState, p.RateRemaining))
		if p.TokenValid && !p.TokenExpires.IsZero() {
			sb.WriteString(fmt.Sprintf("   токен действителен до %s\n", p.TokenExpires.UTC().Format("15:04 02.01.2006")))
		}
		if p.LastError != "" {
			sb.WriteString(fmt.Sprintf("   последняя ошибка: %s\n", html.EscapeString(p.LastError)))
		}
		sb.WriteString("\n")
	}

	sb.WriteString(fmt.Sprintf("Здоровых источников: %d/%d", h.HealthyProviders, h.TotalProviders))
	if h.ProductionMode {
		sb.WriteString(" · production")
	}
	return sb.String()
}

func SplitMessage(text string, maxLen int) []string {
	if len(text) <= maxLen {
		return []string{text}
	}

	var messages []string
	for len(text) > 0 {
		if len(text) <= maxLen {
			messages = append(messages, text)
			break
		}

		splitPoint := findSafeSplitPoint(text, maxLen)
		if splitPoint <= 0 || splitPoint > len(text) {
			splitPoint = maxLen
		}

		messages = append(messages, text[:splitPoint])
		text = text[splitPoint:]
	}

	return messages
}

func findSafeSplitPoint(text string, maxLen int) int {
	// ищем пробел или перевод строки, не ломая HTML-теги
	for i := maxLen - 1; i > maxLen/2; i-- {
		if i >= len(text) {
			continue
		}
		if isInsideHTMLTag(text, i) {
			continue
		}

		if text[i] == '\n' || text[i] == ' ' {
			return i + 1
		}
	}

	// внутри тега - ищем конец
	if maxLen < len(text) && isInsideHTMLTag(text, maxLen) {
		for i := maxLen; i < len(text); i++ {
			if text[i] == '>' {
				for j := i + 1; j < len(text) && j < i+50; j++ {
					if text[j] == '\n' || text[j] == ' ' {
						return j + 1
					}
				}
				return i + 1
			}
		}
	}

	for i := maxLen - 1; i > 0; i-- {
		if text[i] == ' ' || text[i] == '\n' {
			return i + 1
		}
	}

	return maxLen
}

func isInsideHTMLTag(text string, pos int) bool {
	if pos >= len(text) || pos < 0 {
		return false
	}
	for i := pos; i >= 0; i-- {
		if text[i] == '>' {
			return false
		}
		if text[i] == '<' {
			return true
		}
	}
	return false
}

func provenanceBanner(p domain.Provenance) string {
	switch p {
	case domain.ProvenanceLive:
		return "● <i>Живые результаты</i>"
	case domain.ProvenanceCached:
		return "◐ <i>Из кеша</i>"
	case domain.ProvenanceFallback:
		return "○ <i>Резервные данные (источник недоступен)</i>"
	default:
		return ""
	}
}

func mediaIcon(m domain.MediaType) string {
	switch m {
	case domain.MediaVideo, domain.MediaReel:
		return "▶"
	case domain.MediaCarousel:
		return "▤"
	default:
		return "▣"
	}
}

func healthIcon(s domain.HealthState) string {
	switch s {
	case domain.HealthHealthy:
		return "●"
	case domain.HealthDegraded:
		return "◐"
	default:
		return "○"
	}
}

func truncateURL(url string, maxLen int) string {
	if len(url) <= maxLen {
		return url
	}
	return url[:maxLen-3] + "..."
}
