package model

// Имена событий, которые Delivery Module отдаёт диспетчеру уведомлений.
const (
	// EventOrderDelivered — заказ доставлен
	EventOrderDelivered = "order.delivered"
	// EventOrderRevisionRequested — запрошены правки
	EventOrderRevisionRequested = "order.revision_requested"
)

// Event — событие для внешнего диспетчера уведомлений (email/webhook
// fan-out). Контракт: {"event": "...", "order": {...}}.
// Отправка best-effort: сбой никогда не влияет на состояние заказа.
type Event struct {
	// EventID — уникальный идентификатор события, присваивается
	// диспетчером при постановке в очередь
	EventID string `json:"event_id,omitempty"`
	// Event — имя события
	Event string `json:"event"`
	// Order — контекст заказа
	Order OrderContext `json:"order"`
}
