package domain

import "errors"

// Классификация ошибок провайдера: определяет retry vs fallback vs abort
var (
	ErrAuth        = errors.New("authentication failed")
	ErrRateLimited = errors.New("rate limit exceeded")
	ErrTransient   = errors.New("transient network error")
	ErrPermanent   = errors.New("permanent api error")
)

var (
	ErrAllSourcesExhausted = errors.New("all sources exhausted")
	ErrCircuitOpen         = errors.New("circuit breaker open")
	ErrUnknownProvider     = errors.New("unknown provider")
)

var (
	ErrEmptyQuery      = errors.New("empty query")
	ErrQueryTooLong    = errors.New("query too long")
	ErrLimitOutOfRange = errors.New("limit must be between 1 and 50")
	ErrInvalidDates    = errors.New("date_from must be before date_to")
)
