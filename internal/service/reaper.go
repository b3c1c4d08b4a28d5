package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/waqaskhan1437/wishesu-sub002/internal/repository"
)

var (
	reaperRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dm_reaper_runs_total",
		Help: "Количество запусков цикла очистки",
	})
	reaperOrdersExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dm_reaper_orders_expired_total",
		Help: "Количество заказов, переведённых в expired",
	})
	reaperSessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dm_reaper_sessions_total",
		Help: "Результаты зачистки checkout-сессий",
	}, []string{"result"})
	reaperStagingDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dm_reaper_staging_deleted_total",
		Help: "Количество удалённых файлов промежуточного хранилища",
	})
	reaperDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dm_reaper_duration_seconds",
		Help:    "Длительность цикла очистки",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	})
)

// CheckoutProvider — удаление сущностей у платёжного провайдера.
type CheckoutProvider interface {
	DeleteSession(ctx context.Context, checkoutID string) error
	DeletePlan(ctx context.Context, planID string) error
}

// StagingSweeper — зачистка промежуточного хранилища по возрасту.
type StagingSweeper interface {
	DeleteOlderThan(cutoff time.Time) (int, error)
}

// ReaperResult — итоги одного цикла очистки.
type ReaperResult struct {
	OrdersExpired   int
	SessionsCleaned int
	SessionsFailed  int
	StagingDeleted  int
}

// ReaperService — фоновая очистка: экспирация заброшенных заказов,
// зачистка истёкших checkout-сессий у провайдера (батчами),
// удаление старых файлов из промежуточного хранилища.
type ReaperService struct {
	orders   repository.OrderRepository
	sessions repository.CheckoutSessionRepository
	provider CheckoutProvider
	staging  StagingSweeper
	logger   *slog.Logger

	interval    time.Duration
	orderTTL    time.Duration
	stagingTTL  time.Duration
	batchLimit  int
	deleteRetry RetryPolicy

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewReaperService создаёт сервис очистки.
func NewReaperService(
	orders repository.OrderRepository,
	sessions repository.CheckoutSessionRepository,
	provider CheckoutProvider,
	stagingSweeper StagingSweeper,
	interval, orderTTL, stagingTTL time.Duration,
	batchLimit int,
	deleteRetry RetryPolicy,
	logger *slog.Logger,
) *ReaperService {
	return &ReaperService{
		orders:      orders,
		sessions:    sessions,
		provider:    provider,
		staging:     stagingSweeper,
		logger:      logger.With(slog.String("component", "reaper")),
		interval:    interval,
		orderTTL:    orderTTL,
		stagingTTL:  stagingTTL,
		batchLimit:  batchLimit,
		deleteRetry: deleteRetry,
	}
}

// Start запускает периодическую очистку в фоне.
func (s *ReaperService) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info("Очистка запущена", slog.Duration("interval", s.interval))
		for {
			select {
			case <-runCtx.Done():
				s.logger.Info("Очистка остановлена")
				return
			case <-ticker.C:
				if _, err := s.RunOnce(runCtx); err != nil {
					s.logger.Error("Ошибка цикла очистки", slog.Any("error", err))
				}
			}
		}
	}()
}

// Stop останавливает фоновую очистку и дожидается завершения.
func (s *ReaperService) Stop() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
}

// RunOnce выполняет один цикл очистки. Частичные отказы не
// прерывают цикл: каждая из трёх зачисток независима.
func (s *ReaperService) RunOnce(ctx context.Context) (ReaperResult, error) {
	// Одновременно выполняется не больше одного цикла
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	defer func() { reaperDuration.Observe(time.Since(start).Seconds()) }()
	reaperRunsTotal.Inc()

	var result ReaperResult
	now := time.Now().UTC()

	expired, err := s.orders.ExpireOlderThan(ctx, now.Add(-s.orderTTL))
	if err != nil {
		s.logger.Error("Ошибка экспирации заказов", slog.Any("error", err))
	} else {
		result.OrdersExpired = expired
		reaperOrdersExpired.Add(float64(expired))
	}

	cleaned, failed := s.reapSessions(ctx, now)
	result.SessionsCleaned = cleaned
	result.SessionsFailed = failed

	deleted, err := s.staging.DeleteOlderThan(now.Add(-s.stagingTTL))
	if err != nil {
		s.logger.Error("Ошибка зачистки промежуточного хранилища", slog.Any("error", err))
	} else {
		result.StagingDeleted = deleted
		reaperStagingDeleted.Add(float64(deleted))
	}

	if result.OrdersExpired > 0 || result.SessionsCleaned > 0 || result.StagingDeleted > 0 {
		s.logger.Info("Цикл очистки завершён",
			slog.Int("orders_expired", result.OrdersExpired),
			slog.Int("sessions_cleaned", result.SessionsCleaned),
			slog.Int("sessions_failed", result.SessionsFailed),
			slog.Int("staging_deleted", result.StagingDeleted),
		)
	}
	return result, nil
}

// reapSessions зачищает истёкшие pending-сессии ограниченным батчем.
// Сессия помечается expired только после подтверждённого удаления
// сессии И её плана у провайдера (404 считается подтверждением);
// при любом отказе строка остаётся pending до следующего цикла.
func (s *ReaperService) reapSessions(ctx context.Context, now time.Time) (cleaned, failed int) {
	sessions, err := s.sessions.ListExpiredPending(ctx, now, s.batchLimit)
	if err != nil {
		s.logger.Error("Ошибка выборки истёкших сессий", slog.Any("error", err))
		return 0, 0
	}

	for _, sess := range sessions {
		err := s.deleteRetry.Do(ctx, func(ctx context.Context) error {
			return s.provider.DeleteSession(ctx, sess.CheckoutID)
		})
		if err != nil {
			failed++
			reaperSessionsTotal.WithLabelValues("failed").Inc()
			s.logger.Warn("Не удалось удалить сессию у провайдера",
				slog.String("checkout_id", sess.CheckoutID),
				slog.Any("error", err),
			)
			continue
		}

		// Отказ удаления плана — тоже частичный отказ: строка остаётся
		// pending, иначе план у провайдера осиротеет навсегда
		if sess.PlanID != nil && *sess.PlanID != "" {
			if err := s.deleteRetry.Do(ctx, func(ctx context.Context) error {
				return s.provider.DeletePlan(ctx, *sess.PlanID)
			}); err != nil {
				failed++
				reaperSessionsTotal.WithLabelValues("failed").Inc()
				s.logger.Warn("Не удалось удалить план у провайдера",
					slog.String("checkout_id", sess.CheckoutID),
					slog.String("plan_id", *sess.PlanID),
					slog.Any("error", err),
				)
				continue
			}
		}

		if err := s.sessions.MarkExpired(ctx, sess.CheckoutID); err != nil {
			failed++
			reaperSessionsTotal.WithLabelValues("failed").Inc()
			s.logger.Error("Не удалось пометить сессию expired",
				slog.String("checkout_id", sess.CheckoutID),
				slog.Any("error", err),
			)
			continue
		}

		cleaned++
		reaperSessionsTotal.WithLabelValues("cleaned").Inc()
	}
	return cleaned, failed
}
