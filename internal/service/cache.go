package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/waqaskhan1437/wishesu-sub002/internal/domain/model"
	"github.com/waqaskhan1437/wishesu-sub002/internal/repository"
)

var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dm_order_context_cache_hits_total",
		Help: "Количество попаданий в кэш контекста заказов",
	})
	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dm_order_context_cache_misses_total",
		Help: "Количество промахов кэша контекста заказов",
	})
)

// OrderContextSource — источник контекста заказа для кэша.
// Абстрагирует кэш от конкретного хранилища: в проде это
// репозиторий заказов, в тестах — фейк.
type OrderContextSource interface {
	GetByID(ctx context.Context, orderID string) (*model.Order, error)
}

// ContextCache — LRU-кэш контекста заказов с TTL.
// Используется загрузкой файлов для формирования описания
// архивного item без лишнего похода в базу.
type ContextCache struct {
	cache  *lru.LRU[string, *model.OrderContext]
	source OrderContextSource
	logger *slog.Logger
}

// NewContextCache создаёт кэш на size записей с временем жизни ttl.
func NewContextCache(source OrderContextSource, size int, ttl time.Duration, logger *slog.Logger) *ContextCache {
	return &ContextCache{
		cache:  lru.NewLRU[string, *model.OrderContext](size, nil, ttl),
		source: source,
		logger: logger.With(slog.String("component", "context_cache")),
	}
}

// Lookup возвращает контекст заказа из кэша, при промахе — из источника.
// Отсутствующий заказ не кэшируется и возвращает nil без ошибки.
func (c *ContextCache) Lookup(ctx context.Context, orderID string) (*model.OrderContext, error) {
	if orderID == "" {
		return nil, nil
	}

	if octx, ok := c.cache.Get(orderID); ok {
		cacheHits.Inc()
		return octx, nil
	}
	cacheMisses.Inc()

	order, err := c.source.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	octx := &model.OrderContext{
		OrderID:      order.OrderID,
		ProductID:    order.ProductID,
		ProductTitle: order.ProductTitle,
		Email:        order.Email,
	}
	c.cache.Add(orderID, octx)
	return octx, nil
}

// Invalidate удаляет запись кэша. Вызывается при изменении заказа.
func (c *ContextCache) Invalidate(orderID string) {
	c.cache.Remove(orderID)
}
