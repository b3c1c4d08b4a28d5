package service

import (
	"context"
	"time"
)

// RetryPolicy — политика повторов с фиксированной задержкой.
// Используется проверкой долговечности архива и reaper-ом
// при удалении checkout-сессий.
type RetryPolicy struct {
	// MaxAttempts — общее число попыток (включая первую). Минимум 1.
	MaxAttempts int
	// Delay — фиксированная пауза между попытками.
	Delay time.Duration
	// Retryable решает, имеет ли смысл повторять после данной ошибки.
	// nil означает «повторять любую ошибку».
	Retryable func(error) bool
}

// Do выполняет fn до первого успеха или исчерпания попыток.
// Возвращает ошибку последней попытки. Отмена контекста
// прерывает ожидание между попытками.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(lastErr) {
			return lastErr
		}
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.Delay):
		}
	}
	return lastErr
}
