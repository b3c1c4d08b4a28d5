package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/waqaskhan1437/wishesu-sub002/internal/domain/model"
)

// CheckoutSessionRepository — интерфейс доступа к таблице checkout_sessions.
type CheckoutSessionRepository interface {
	// Create регистрирует checkout-сессию (вызывается платёжной границей).
	Create(ctx context.Context, s *model.CheckoutSession) error
	// GetByID возвращает сессию по идентификатору провайдера.
	GetByID(ctx context.Context, checkoutID string) (*model.CheckoutSession, error)
	// ListExpiredPending возвращает pending-сессии с истёкшим expires_at,
	// не больше limit за раз (ограниченный батч reaper-а).
	ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]*model.CheckoutSession, error)
	// MarkExpired помечает сессию expired после подтверждённого
	// удаления у провайдера.
	MarkExpired(ctx context.Context, checkoutID string) error
	// MarkCompleted помечает сессию завершённой (оплата прошла).
	MarkCompleted(ctx context.Context, checkoutID string) error
}

// checkoutSessionRepo — реализация CheckoutSessionRepository.
type checkoutSessionRepo struct {
	db DBTX
}

// NewCheckoutSessionRepository создаёт репозиторий checkout-сессий.
func NewCheckoutSessionRepository(db DBTX) CheckoutSessionRepository {
	return &checkoutSessionRepo{db: db}
}

func (r *checkoutSessionRepo) Create(ctx context.Context, s *model.CheckoutSession) error {
	query := `
		INSERT INTO checkout_sessions (checkout_id, product_id, plan_id, status, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		s.CheckoutID, s.ProductID, s.PlanID, s.Status, s.ExpiresAt,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: сессия с таким ID уже зарегистрирована", ErrConflict)
		}
		return fmt.Errorf("ошибка регистрации сессии: %w", err)
	}
	return nil
}

func (r *checkoutSessionRepo) GetByID(ctx context.Context, checkoutID string) (*model.CheckoutSession, error) {
	query := `
		SELECT checkout_id, product_id, plan_id, status, expires_at, created_at, updated_at
		FROM checkout_sessions
		WHERE checkout_id = $1`

	s := &model.CheckoutSession{}
	err := r.db.QueryRow(ctx, query, checkoutID).Scan(
		&s.CheckoutID, &s.ProductID, &s.PlanID, &s.Status, &s.ExpiresAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения сессии: %w", err)
	}
	return s, nil
}

func (r *checkoutSessionRepo) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]*model.CheckoutSession, error) {
	query := `
		SELECT checkout_id, product_id, plan_id, status, expires_at, created_at, updated_at
		FROM checkout_sessions
		WHERE status = 'pending' AND expires_at < $1
		ORDER BY expires_at
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения истёкших сессий: %w", err)
	}
	defer rows.Close()

	var result []*model.CheckoutSession
	for rows.Next() {
		s := &model.CheckoutSession{}
		if err := rows.Scan(
			&s.CheckoutID, &s.ProductID, &s.PlanID, &s.Status, &s.ExpiresAt, &s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования сессии: %w", err)
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

func (r *checkoutSessionRepo) MarkExpired(ctx context.Context, checkoutID string) error {
	return r.setStatus(ctx, checkoutID, model.SessionExpired)
}

func (r *checkoutSessionRepo) MarkCompleted(ctx context.Context, checkoutID string) error {
	return r.setStatus(ctx, checkoutID, model.SessionCompleted)
}

func (r *checkoutSessionRepo) setStatus(ctx context.Context, checkoutID string, st model.SessionStatus) error {
	query := `
		UPDATE checkout_sessions
		SET status = $2, updated_at = now()
		WHERE checkout_id = $1`

	tag, err := r.db.Exec(ctx, query, checkoutID, st)
	if err != nil {
		return fmt.Errorf("ошибка обновления статуса сессии: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
