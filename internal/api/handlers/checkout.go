// checkout.go — HTTP handlers реестра checkout-сессий.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	apierrors "github.com/waqaskhan1437/wishesu-sub002/internal/api/errors"
	"github.com/waqaskhan1437/wishesu-sub002/internal/repository"
	"github.com/waqaskhan1437/wishesu-sub002/internal/service"
)

// CheckoutHandler — обработчик endpoints checkout-сессий.
type CheckoutHandler struct {
	checkoutSvc *service.CheckoutService
}

// NewCheckoutHandler создаёт обработчик checkout-сессий.
func NewCheckoutHandler(checkoutSvc *service.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{checkoutSvc: checkoutSvc}
}

// registerSessionRequest — тело POST /api/v1/checkout-sessions.
type registerSessionRequest struct {
	CheckoutID string    `json:"checkoutId"`
	ProductID  string    `json:"productId"`
	PlanID     *string   `json:"planId,omitempty"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// sessionResponse — представление сессии в API.
type sessionResponse struct {
	CheckoutID string    `json:"checkoutId"`
	ProductID  string    `json:"productId"`
	PlanID     *string   `json:"planId,omitempty"`
	Status     string    `json:"status"`
	ExpiresAt  time.Time `json:"expiresAt"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Register обрабатывает POST /api/v1/checkout-sessions.
// Вызывается платёжной границей при создании сессии у провайдера.
func (h *CheckoutHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}
	if req.CheckoutID == "" || req.ProductID == "" {
		apierrors.ValidationError(w, "checkoutId и productId обязательны")
		return
	}
	if req.ExpiresAt.IsZero() {
		apierrors.ValidationError(w, "expiresAt обязателен")
		return
	}

	session, err := h.checkoutSvc.Register(r.Context(), req.CheckoutID, req.ProductID, req.PlanID, req.ExpiresAt)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			apierrors.Conflict(w, "Сессия с таким ID уже зарегистрирована")
			return
		}
		apierrors.InternalError(w, "Ошибка регистрации сессии")
		return
	}

	writeJSON(w, http.StatusCreated, sessionResponse{
		CheckoutID: session.CheckoutID,
		ProductID:  session.ProductID,
		PlanID:     session.PlanID,
		Status:     string(session.Status),
		ExpiresAt:  session.ExpiresAt,
		CreatedAt:  session.CreatedAt,
	})
}
