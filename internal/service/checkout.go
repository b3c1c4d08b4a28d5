package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/waqaskhan1437/wishesu-sub002/internal/domain/model"
	"github.com/waqaskhan1437/wishesu-sub002/internal/repository"
)

// CheckoutService — регистрация checkout-сессий платёжного провайдера
// в локальном реестре. Зачисткой истёкших сессий занимается reaper.
type CheckoutService struct {
	sessions repository.CheckoutSessionRepository
	logger   *slog.Logger
}

// NewCheckoutService создаёт сервис реестра checkout-сессий.
func NewCheckoutService(sessions repository.CheckoutSessionRepository, logger *slog.Logger) *CheckoutService {
	return &CheckoutService{
		sessions: sessions,
		logger:   logger.With(slog.String("component", "checkout_service")),
	}
}

// Register регистрирует сессию в реестре.
func (s *CheckoutService) Register(ctx context.Context, checkoutID, productID string, planID *string, expiresAt time.Time) (*model.CheckoutSession, error) {
	session := &model.CheckoutSession{
		CheckoutID: checkoutID,
		ProductID:  productID,
		PlanID:     planID,
		Status:     model.SessionPending,
		ExpiresAt:  expiresAt,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}
	s.logger.Info("Сессия зарегистрирована",
		slog.String("checkout_id", checkoutID),
		slog.String("product_id", productID),
	)
	return session, nil
}

// Complete помечает сессию завершённой после успешной оплаты,
// выводя её из-под зачистки reaper-а.
func (s *CheckoutService) Complete(ctx context.Context, checkoutID string) error {
	return s.sessions.MarkCompleted(ctx, checkoutID)
}
