package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/waqaskhan1437/wishesu-sub002/internal/domain/model"
	"github.com/waqaskhan1437/wishesu-sub002/internal/domain/status"
	"github.com/waqaskhan1437/wishesu-sub002/internal/repository"
)

var orderTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "dm_order_transitions_total",
	Help: "Количество статусных переходов заказов",
}, []string{"from", "to"})

// Notifier — отправка событий жизненного цикла заказа.
type Notifier interface {
	Dispatch(event model.Event)
}

// DeliverParams — параметры финализации доставки.
type DeliverParams struct {
	VideoURL     string
	ThumbnailURL *string
	Metadata     *model.DeliveredVideoMetadata
}

// DeliveryService — жизненный цикл заказа: доставка,
// запрос правок, портфолио, архивная ссылка.
type DeliveryService struct {
	orders   repository.OrderRepository
	cache    *ContextCache
	notifier Notifier
	logger   *slog.Logger
}

// NewDeliveryService создаёт сервис жизненного цикла заказов.
func NewDeliveryService(orders repository.OrderRepository, cache *ContextCache, notifier Notifier, logger *slog.Logger) *DeliveryService {
	return &DeliveryService{
		orders:   orders,
		cache:    cache,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "delivery_service")),
	}
}

// Get возвращает заказ по идентификатору.
func (s *DeliveryService) Get(ctx context.Context, orderID string) (*model.Order, error) {
	return s.orders.GetByID(ctx, orderID)
}

// List возвращает страницу заказов и общее количество.
func (s *DeliveryService) List(ctx context.Context, filters repository.OrderListFilters, limit, offset int) ([]*model.Order, int, error) {
	orders, err := s.orders.List(ctx, filters, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.orders.Count(ctx, filters)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// Deliver финализирует доставку заказа: сохраняет ссылки на медиа
// и переводит заказ в delivered. Повторная доставка с той же
// ссылкой — no-op. Отправляет событие order.delivered.
func (s *DeliveryService) Deliver(ctx context.Context, orderID string, params DeliverParams) (*model.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	// Идемпотентность: та же ссылка в уже доставленном заказе
	if order.Status == status.StatusDelivered &&
		order.DeliveredVideoURL != nil && *order.DeliveredVideoURL == params.VideoURL {
		return order, nil
	}

	from := order.Status
	newStatus, err := status.Transition(order.Status, status.StatusDelivered)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	order.Status = newStatus
	order.DeliveredVideoURL = &params.VideoURL
	order.DeliveredThumbnailURL = params.ThumbnailURL
	order.DeliveredVideoMetadata = params.Metadata
	order.DeliveredAt = &now
	order.RevisionRequested = false
	order.RevisionReason = nil

	if err := s.orders.Update(ctx, order); err != nil {
		return nil, fmt.Errorf("ошибка сохранения доставки: %w", err)
	}

	orderTransitionsTotal.WithLabelValues(string(from), string(newStatus)).Inc()
	s.cache.Invalidate(orderID)
	s.notifier.Dispatch(model.Event{
		Event: model.EventOrderDelivered,
		Order: orderContext(order),
	})

	s.logger.Info("Заказ доставлен",
		slog.String("order_id", orderID),
		slog.String("from", string(from)),
	)
	return order, nil
}

// RequestRevision переводит доставленный заказ в revision и
// увеличивает счётчик правок. Повторный запрос правок по заказу,
// уже находящемуся в revision, — no-op без инкремента.
func (s *DeliveryService) RequestRevision(ctx context.Context, orderID, reason string) (*model.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if order.Status == status.StatusRevision {
		return order, nil
	}

	from := order.Status
	newStatus, err := status.Transition(order.Status, status.StatusRevision)
	if err != nil {
		return nil, err
	}

	order.Status = newStatus
	order.RevisionCount++
	order.RevisionRequested = true
	if reason != "" {
		order.RevisionReason = &reason
	}
	// delivered_at заполнен только в статусе delivered
	order.DeliveredAt = nil

	if err := s.orders.Update(ctx, order); err != nil {
		return nil, fmt.Errorf("ошибка сохранения запроса правок: %w", err)
	}

	orderTransitionsTotal.WithLabelValues(string(from), string(newStatus)).Inc()
	s.cache.Invalidate(orderID)
	s.notifier.Dispatch(model.Event{
		Event: model.EventOrderRevisionRequested,
		Order: orderContext(order),
	})

	s.logger.Info("Запрошены правки по заказу",
		slog.String("order_id", orderID),
		slog.Int("revision_count", order.RevisionCount),
	)
	return order, nil
}

// UpdatePortfolio включает или выключает показ работы в портфолио.
func (s *DeliveryService) UpdatePortfolio(ctx context.Context, orderID string, enabled bool) (*model.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.PortfolioEnabled == enabled {
		return order, nil
	}
	order.PortfolioEnabled = enabled
	if err := s.orders.Update(ctx, order); err != nil {
		return nil, fmt.Errorf("ошибка обновления портфолио: %w", err)
	}
	s.cache.Invalidate(orderID)
	return order, nil
}

// UpdateArchiveURL сохраняет ссылку на архивный item заказа.
func (s *DeliveryService) UpdateArchiveURL(ctx context.Context, orderID, archiveURL string) (*model.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	order.ArchiveURL = &archiveURL
	if err := s.orders.Update(ctx, order); err != nil {
		return nil, fmt.Errorf("ошибка обновления архивной ссылки: %w", err)
	}
	s.cache.Invalidate(orderID)
	return order, nil
}

func orderContext(o *model.Order) model.OrderContext {
	return model.OrderContext{
		OrderID:      o.OrderID,
		ProductID:    o.ProductID,
		ProductTitle: o.ProductTitle,
		Email:        o.Email,
	}
}
