package ynab

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownRoute — неизвестное действие для построения URL.
	ErrUnknownRoute = errors.New("unknown ynab route")

	// ErrUnauthorized — YNAB отклонил токен (401).
	ErrUnauthorized = errors.New("ynab: unauthorized")

	// ErrRateLimited — превышен лимит запросов YNAB (429).
	ErrRateLimited = errors.New("ynab: rate limited")

	// ErrAPI — прочие ответы YNAB со статусом >= 400.
	ErrAPI = errors.New("ynab api error")

	// ErrResponseTooLarge — тело ответа больше лимита клиента.
	ErrResponseTooLarge = errors.New("ynab: response too large")
)

// APIError — ошибка из тела ответа YNAB.
type APIError struct {
	Status int
	ID     string
	Name   string
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("ynab api error: status %d", e.Status)
	}
	return fmt.Sprintf("ynab api error: status %d: %s", e.Status, e.Detail)
}

// Unwrap позволяет проверять ошибку через errors.Is.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case 401:
		return ErrUnauthorized
	case 429:
		return ErrRateLimited
	default:
		return ErrAPI
	}
}
