// Пакет status — статусы заказа и матрица допустимых переходов.
//
// Жизненный цикл заказа:
//   - paid → delivered — доставка медиа оператором
//   - delivered ⇄ revision — запрос правок и повторная доставка
//   - paid → expired — автоэкспирация по времени, необратимая
//
// В отличие от режимов Storage Element статус заказа живёт в строке
// PostgreSQL, поэтому автомат stateless: чистая матрица переходов
// без in-memory состояния.
package status

import "fmt"

// OrderStatus — статус заказа.
type OrderStatus string

const (
	// StatusPaid — оплачен, ожидает доставки
	StatusPaid OrderStatus = "paid"
	// StatusDelivered — медиа доставлено
	StatusDelivered OrderStatus = "delivered"
	// StatusRevision — клиент запросил правки
	StatusRevision OrderStatus = "revision"
	// StatusExpired — заброшен, автоэкспирация (конечный)
	StatusExpired OrderStatus = "expired"
)

// validTransitions — матрица допустимых переходов.
// Ключ — текущий статус, значение — набор допустимых целевых статусов.
var validTransitions = map[OrderStatus]map[OrderStatus]bool{
	StatusPaid:      {StatusDelivered: true, StatusExpired: true},
	StatusDelivered: {StatusRevision: true},
	StatusRevision:  {StatusDelivered: true},
	StatusExpired:   {}, // Конечный статус — переходы запрещены
}

// TransitionError — ошибка недопустимого перехода статуса.
type TransitionError struct {
	From OrderStatus
	To   OrderStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("переход %s → %s недопустим", e.From, e.To)
}

// CanTransition проверяет, допустим ли переход from → to.
// Повторный переход в тот же статус не считается переходом
// (идемпотентные операции обрабатываются на уровне сервиса).
func CanTransition(from, to OrderStatus) bool {
	transitions, ok := validTransitions[from]
	if !ok {
		return false
	}
	return transitions[to]
}

// Transition валидирует и возвращает целевой статус.
// При недопустимом переходе возвращает *TransitionError.
func Transition(from, to OrderStatus) (OrderStatus, error) {
	if !CanTransition(from, to) {
		return from, &TransitionError{From: from, To: to}
	}
	return to, nil
}

// IsValid проверяет, является ли строка допустимым статусом заказа.
func IsValid(s OrderStatus) bool {
	switch s {
	case StatusPaid, StatusDelivered, StatusRevision, StatusExpired:
		return true
	default:
		return false
	}
}

// Parse преобразует строку в OrderStatus.
// Возвращает ошибку для недопустимых значений.
func Parse(s string) (OrderStatus, error) {
	st := OrderStatus(s)
	if !IsValid(st) {
		return "", fmt.Errorf("недопустимый статус: %q, допустимые: paid, delivered, revision, expired", s)
	}
	return st, nil
}
