package domain

import (
	"strings"
	"time"
)

const (
	MaxQueryLength = 500
	MaxResultLimit = 50
)

type SearchRequest struct {
	Query     string
	Limit     int
	Platform  Platform
	MediaType MediaType
	DateFrom  time.Time
	DateTo    time.Time
}

func (r *SearchRequest) Validate() error {
	if strings.TrimSpace(r.Query) == "" {
		return ErrEmptyQuery
	}
	if len(r.Query) > MaxQueryLength {
		return ErrQueryTooLong
	}
	if r.Limit < 1 || r.Limit > MaxResultLimit {
		return ErrLimitOutOfRange
	}
	if !r.DateFrom.IsZero() && !r.DateTo.IsZero() && r.DateFrom.After(r.DateTo) {
		return ErrInvalidDates
	}
	return nil
}

// Sanitize нормализует запрос: trim и срезаем ведущий # у хештегов.
func (r *SearchRequest) Sanitize() {
	r.Query = strings.TrimSpace(r.Query)
	r.Query = strings.TrimPrefix(r.Query, "#")
	if r.Platform == "" {
		r.Platform = PlatformAll
	}
	if r.MediaType == "" {
		r.MediaType = MediaAll
	}
}

// IsHashtag - запросы вида "#travel" кешируются дольше обычных.
func (r *SearchRequest) IsHashtag() bool {
	return !strings.ContainsAny(r.Query, " \t")
}
