package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/waqaskhan1437/wishesu-sub002/internal/domain/model"
	"github.com/waqaskhan1437/wishesu-sub002/internal/domain/status"
)

// OrderRepository — интерфейс доступа к таблице orders.
// Строка заказа создаётся платёжной границей; все последующие
// мутации — статусные переходы и delivered_* поля — идут отсюда.
type OrderRepository interface {
	// Create создаёт запись заказа (вызывается платёжной границей).
	Create(ctx context.Context, o *model.Order) error
	// GetByID возвращает заказ по внешнему идентификатору.
	GetByID(ctx context.Context, orderID string) (*model.Order, error)
	// List возвращает список заказов с фильтрацией и пагинацией.
	List(ctx context.Context, filters OrderListFilters, limit, offset int) ([]*model.Order, error)
	// Count возвращает количество заказов с фильтрацией.
	Count(ctx context.Context, filters OrderListFilters) (int, error)
	// Update сохраняет мутабельные поля заказа одной строкой.
	Update(ctx context.Context, o *model.Order) error
	// ExpireOlderThan переводит paid-заказы старше cutoff в expired.
	// Возвращает количество затронутых строк.
	ExpireOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// OrderListFilters — фильтры для списка заказов.
type OrderListFilters struct {
	Status    *status.OrderStatus
	ProductID *string
}

// orderRepo — реализация OrderRepository.
type orderRepo struct {
	db DBTX
}

// NewOrderRepository создаёт репозиторий заказов.
func NewOrderRepository(db DBTX) OrderRepository {
	return &orderRepo{db: db}
}

// orderColumns — колонки заказа в порядке сканирования.
const orderColumns = `order_id, product_id, product_title, email, status,
	delivered_video_url, delivered_thumbnail_url, delivered_video_metadata,
	revision_count, revision_requested, revision_reason, delivery_time_minutes,
	archive_url, portfolio_enabled, created_at, delivered_at, updated_at`

func (r *orderRepo) Create(ctx context.Context, o *model.Order) error {
	query := `
		INSERT INTO orders (order_id, product_id, product_title, email, status,
			delivery_time_minutes, portfolio_enabled, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING updated_at`

	err := r.db.QueryRow(ctx, query,
		o.OrderID, o.ProductID, o.ProductTitle, o.Email, o.Status,
		o.DeliveryTimeMinutes, o.PortfolioEnabled, o.CreatedAt,
	).Scan(&o.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: заказ с таким ID уже существует", ErrConflict)
		}
		return fmt.Errorf("ошибка создания заказа: %w", err)
	}
	return nil
}

func (r *orderRepo) GetByID(ctx context.Context, orderID string) (*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE order_id = $1`

	o := &model.Order{}
	err := r.db.QueryRow(ctx, query, orderID).Scan(
		&o.OrderID, &o.ProductID, &o.ProductTitle, &o.Email, &o.Status,
		&o.DeliveredVideoURL, &o.DeliveredThumbnailURL, &o.DeliveredVideoMetadata,
		&o.RevisionCount, &o.RevisionRequested, &o.RevisionReason, &o.DeliveryTimeMinutes,
		&o.ArchiveURL, &o.PortfolioEnabled, &o.CreatedAt, &o.DeliveredAt, &o.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения заказа: %w", err)
	}
	return o, nil
}

// buildOrderWhere строит WHERE-условие и аргументы для фильтрации заказов.
func buildOrderWhere(filters OrderListFilters, startArg int) (string, []any) {
	var conditions []string
	var args []any
	argNum := startArg

	if filters.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argNum))
		args = append(args, *filters.Status)
		argNum++
	}
	if filters.ProductID != nil {
		conditions = append(conditions, fmt.Sprintf("product_id = $%d", argNum))
		args = append(args, *filters.ProductID)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}
	return where, args
}

func (r *orderRepo) List(ctx context.Context, filters OrderListFilters, limit, offset int) ([]*model.Order, error) {
	where, args := buildOrderWhere(filters, 1)
	argNum := len(args) + 1

	query := fmt.Sprintf(`
		SELECT `+orderColumns+`
		FROM orders
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, where, argNum, argNum+1)

	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка заказов: %w", err)
	}
	defer rows.Close()

	var result []*model.Order
	for rows.Next() {
		o := &model.Order{}
		if err := rows.Scan(
			&o.OrderID, &o.ProductID, &o.ProductTitle, &o.Email, &o.Status,
			&o.DeliveredVideoURL, &o.DeliveredThumbnailURL, &o.DeliveredVideoMetadata,
			&o.RevisionCount, &o.RevisionRequested, &o.RevisionReason, &o.DeliveryTimeMinutes,
			&o.ArchiveURL, &o.PortfolioEnabled, &o.CreatedAt, &o.DeliveredAt, &o.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования заказа: %w", err)
		}
		result = append(result, o)
	}
	return result, rows.Err()
}

func (r *orderRepo) Count(ctx context.Context, filters OrderListFilters) (int, error) {
	where, args := buildOrderWhere(filters, 1)
	query := fmt.Sprintf(`SELECT COUNT(*) FROM orders %s`, where)

	var count int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта заказов: %w", err)
	}
	return count, nil
}

func (r *orderRepo) Update(ctx context.Context, o *model.Order) error {
	query := `
		UPDATE orders
		SET status = $2,
			delivered_video_url = $3,
			delivered_thumbnail_url = $4,
			delivered_video_metadata = $5,
			revision_count = $6,
			revision_requested = $7,
			revision_reason = $8,
			archive_url = $9,
			portfolio_enabled = $10,
			delivered_at = $11,
			updated_at = now()
		WHERE order_id = $1
		RETURNING updated_at`

	err := r.db.QueryRow(ctx, query,
		o.OrderID, o.Status,
		o.DeliveredVideoURL, o.DeliveredThumbnailURL, o.DeliveredVideoMetadata,
		o.RevisionCount, o.RevisionRequested, o.RevisionReason,
		o.ArchiveURL, o.PortfolioEnabled, o.DeliveredAt,
	).Scan(&o.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return ErrNotFound
		}
		return fmt.Errorf("ошибка обновления заказа: %w", err)
	}
	return nil
}

func (r *orderRepo) ExpireOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	query := `
		UPDATE orders
		SET status = 'expired', updated_at = now()
		WHERE status = 'paid' AND created_at < $1`

	tag, err := r.db.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("ошибка экспирации заказов: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
