package model

import "time"

// SessionStatus — статус эфемерной checkout-сессии.
type SessionStatus string

const (
	// SessionPending — оплата не завершена
	SessionPending SessionStatus = "pending"
	// SessionCompleted — оплата прошла, заказ создан
	SessionCompleted SessionStatus = "completed"
	// SessionExpired — сессия заброшена, удалена у провайдера
	SessionExpired SessionStatus = "expired"
)

// CheckoutSession — локальная запись о checkout-сессии платёжного
// провайдера. Сама сессия живёт у провайдера; reaper удаляет
// заброшенные сессии и у провайдера, и локально.
type CheckoutSession struct {
	// CheckoutID — идентификатор сессии у провайдера
	CheckoutID string
	// ProductID — идентификатор товара
	ProductID string
	// PlanID — идентификатор сопутствующего плана у провайдера (опционально)
	PlanID *string
	// Status — локальный статус сессии
	Status SessionStatus
	// ExpiresAt — момент истечения сессии у провайдера
	ExpiresAt time.Time
	// CreatedAt — момент регистрации
	CreatedAt time.Time
	// UpdatedAt — момент последнего изменения
	UpdatedAt time.Time
}
