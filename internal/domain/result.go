package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// NormalizedResult - единица выдачи любого провайдера. Создается провайдером
// один раз и дальше не модифицируется. RawPayload хранит оригинальный ответ
// API как есть, для аудита; вниз по стеку не интерпретируется.
type NormalizedResult struct {
	ID           string
	Title        string
	URL          string
	ThumbnailURL string
	CreatedAt    time.Time
	Platform     Platform
	MediaType    MediaType
	LikeCount    int
	CommentCount int
	Hashtags     []string
	RawPayload   json.RawMessage
}

// ResultID строит глобально уникальный в рамках ответа идентификатор
// с префиксом платформы: "instagram_17895695668004550".
func ResultID(p Platform, raw string) string {
	return fmt.Sprintf("%s_%s", p, raw)
}

// ResultEnvelope - единый конверт ответа. Порядок результатов = порядок
// выдачи провайдера, не пересортировывается.
type ResultEnvelope struct {
	Results    []NormalizedResult
	Provenance Provenance
	Provider   string
	ProducedAt time.Time
	Latency    time.Duration
}
