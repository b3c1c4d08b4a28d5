// orders.go — HTTP handlers жизненного цикла заказов.
// Deliver, RequestRevision, Patch (портфолио/архивная ссылка), Get, List.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	openapi_types "github.com/oapi-codegen/runtime/types"

	apierrors "github.com/waqaskhan1437/wishesu-sub002/internal/api/errors"
	"github.com/waqaskhan1437/wishesu-sub002/internal/domain/model"
	"github.com/waqaskhan1437/wishesu-sub002/internal/domain/status"
	"github.com/waqaskhan1437/wishesu-sub002/internal/repository"
	"github.com/waqaskhan1437/wishesu-sub002/internal/service"
)

// OrdersHandler — обработчик endpoints заказов.
type OrdersHandler struct {
	deliverySvc *service.DeliveryService
	orders      repository.OrderRepository
}

// NewOrdersHandler создаёт обработчик заказов.
func NewOrdersHandler(deliverySvc *service.DeliveryService, orders repository.OrderRepository) *OrdersHandler {
	return &OrdersHandler{deliverySvc: deliverySvc, orders: orders}
}

// --- DTO ---

// trackDTO — дорожка доставленного видео.
type trackDTO struct {
	Kind  string `json:"kind"`
	Label string `json:"label,omitempty"`
	URL   string `json:"url"`
}

// deliverRequest — тело POST /api/v1/orders/{orderId}/deliver.
type deliverRequest struct {
	VideoURL     string     `json:"videoUrl"`
	ThumbnailURL *string    `json:"thumbnailUrl,omitempty"`
	EmbedURL     string     `json:"embedUrl,omitempty"`
	ItemID       string     `json:"itemId,omitempty"`
	SubtitlesURL string     `json:"subtitlesUrl,omitempty"`
	Tracks       []trackDTO `json:"tracks,omitempty"`
	// ArchiveVerified — результат проверки долговечности из ответа upload
	ArchiveVerified bool `json:"archiveVerified"`
}

// revisionRequest — тело POST /api/v1/orders/{orderId}/revision.
type revisionRequest struct {
	Reason string `json:"reason,omitempty"`
}

// patchOrderRequest — тело PATCH /api/v1/orders/{orderId}.
type patchOrderRequest struct {
	PortfolioEnabled *bool   `json:"portfolioEnabled,omitempty"`
	ArchiveURL       *string `json:"archiveUrl,omitempty"`
}

// createOrderRequest — тело POST /api/v1/orders (платёжная граница).
type createOrderRequest struct {
	OrderID             string               `json:"orderId"`
	ProductID           string               `json:"productId"`
	ProductTitle        string               `json:"productTitle"`
	Email               openapi_types.Email  `json:"email"`
	DeliveryTimeMinutes int                  `json:"deliveryTimeMinutes,omitempty"`
}

// orderResponse — представление заказа в API.
type orderResponse struct {
	OrderID               string                        `json:"orderId"`
	ProductID             string                        `json:"productId"`
	ProductTitle          string                        `json:"productTitle"`
	Email                 string                        `json:"email"`
	Status                string                        `json:"status"`
	DeliveredVideoURL     *string                       `json:"deliveredVideoUrl,omitempty"`
	DeliveredThumbnailURL *string                       `json:"deliveredThumbnailUrl,omitempty"`
	VideoMetadata         *model.DeliveredVideoMetadata `json:"videoMetadata,omitempty"`
	RevisionCount         int                           `json:"revisionCount"`
	RevisionRequested     bool                          `json:"revisionRequested"`
	RevisionReason        *string                       `json:"revisionReason,omitempty"`
	DeliveryTimeMinutes   int                           `json:"deliveryTimeMinutes"`
	ArchiveURL            *string                       `json:"archiveUrl,omitempty"`
	PortfolioEnabled      bool                          `json:"portfolioEnabled"`
	CreatedAt             time.Time                     `json:"createdAt"`
	DeliveredAt           *time.Time                    `json:"deliveredAt,omitempty"`
	UpdatedAt             time.Time                     `json:"updatedAt"`
}

// listOrdersResponse — страница списка заказов.
type listOrdersResponse struct {
	Orders []orderResponse `json:"orders"`
	Total  int             `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

func orderToResponse(o *model.Order) orderResponse {
	return orderResponse{
		OrderID:               o.OrderID,
		ProductID:             o.ProductID,
		ProductTitle:          o.ProductTitle,
		Email:                 o.Email,
		Status:                string(o.Status),
		DeliveredVideoURL:     o.DeliveredVideoURL,
		DeliveredThumbnailURL: o.DeliveredThumbnailURL,
		VideoMetadata:         o.DeliveredVideoMetadata,
		RevisionCount:         o.RevisionCount,
		RevisionRequested:     o.RevisionRequested,
		RevisionReason:        o.RevisionReason,
		DeliveryTimeMinutes:   o.DeliveryTimeMinutes,
		ArchiveURL:            o.ArchiveURL,
		PortfolioEnabled:      o.PortfolioEnabled,
		CreatedAt:             o.CreatedAt,
		DeliveredAt:           o.DeliveredAt,
		UpdatedAt:             o.UpdatedAt,
	}
}

// --- Handlers ---

// Create обрабатывает POST /api/v1/orders.
// Вызывается платёжной границей после подтверждения оплаты.
func (h *OrdersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}
	if req.OrderID == "" || req.ProductID == "" {
		apierrors.ValidationError(w, "orderId и productId обязательны")
		return
	}

	order := &model.Order{
		OrderID:             req.OrderID,
		ProductID:           req.ProductID,
		ProductTitle:        req.ProductTitle,
		Email:               string(req.Email),
		Status:              status.StatusPaid,
		DeliveryTimeMinutes: req.DeliveryTimeMinutes,
		CreatedAt:           time.Now().UTC(),
	}
	if err := h.orders.Create(r.Context(), order); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			apierrors.Conflict(w, "Заказ с таким ID уже существует")
			return
		}
		apierrors.InternalError(w, "Ошибка создания заказа")
		return
	}

	writeJSON(w, http.StatusCreated, orderToResponse(order))
}

// Get обрабатывает GET /api/v1/orders/{orderId}.
func (h *OrdersHandler) Get(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	order, err := h.deliverySvc.Get(r.Context(), orderID)
	if err != nil {
		writeOrderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orderToResponse(order))
}

// List обрабатывает GET /api/v1/orders.
// Query: status, productId, limit (по умолчанию 50), offset.
func (h *OrdersHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filters := repository.OrderListFilters{}
	if raw := q.Get("status"); raw != "" {
		st, err := status.Parse(raw)
		if err != nil {
			apierrors.ValidationError(w, "Недопустимый статус: "+raw)
			return
		}
		filters.Status = &st
	}
	if raw := q.Get("productId"); raw != "" {
		filters.ProductID = &raw
	}

	limit, offset, err := parsePagination(q)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	orders, total, err := h.deliverySvc.List(r.Context(), filters, limit, offset)
	if err != nil {
		apierrors.InternalError(w, "Ошибка получения списка заказов")
		return
	}

	resp := listOrdersResponse{
		Orders: make([]orderResponse, 0, len(orders)),
		Total:  total,
		Limit:  limit,
		Offset: offset,
	}
	for _, o := range orders {
		resp.Orders = append(resp.Orders, orderToResponse(o))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Deliver обрабатывает POST /api/v1/orders/{orderId}/deliver.
func (h *OrdersHandler) Deliver(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	var req deliverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}
	if req.VideoURL == "" {
		apierrors.ValidationError(w, "videoUrl обязателен")
		return
	}
	if !isHTTPURL(req.VideoURL) {
		apierrors.ValidationError(w, "videoUrl должен быть абсолютной http(s)-ссылкой")
		return
	}

	meta := &model.DeliveredVideoMetadata{
		EmbedURL:     req.EmbedURL,
		ItemID:       req.ItemID,
		SubtitlesURL: req.SubtitlesURL,
		Verified:     req.ArchiveVerified,
		DeliveredAt:  time.Now().UTC(),
	}
	for _, tr := range req.Tracks {
		meta.Tracks = append(meta.Tracks, model.Track{Kind: tr.Kind, Label: tr.Label, URL: tr.URL})
	}

	order, err := h.deliverySvc.Deliver(r.Context(), orderID, service.DeliverParams{
		VideoURL:     req.VideoURL,
		ThumbnailURL: req.ThumbnailURL,
		Metadata:     meta,
	})
	if err != nil {
		writeOrderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orderToResponse(order))
}

// RequestRevision обрабатывает POST /api/v1/orders/{orderId}/revision.
func (h *OrdersHandler) RequestRevision(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	var req revisionRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
			return
		}
	}

	order, err := h.deliverySvc.RequestRevision(r.Context(), orderID, req.Reason)
	if err != nil {
		writeOrderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orderToResponse(order))
}

// Patch обрабатывает PATCH /api/v1/orders/{orderId}.
// Поддерживает portfolioEnabled и archiveUrl.
func (h *OrdersHandler) Patch(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	var req patchOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}
	if req.PortfolioEnabled == nil && req.ArchiveURL == nil {
		apierrors.ValidationError(w, "Нечего обновлять: укажите portfolioEnabled или archiveUrl")
		return
	}

	var order *model.Order
	var err error
	if req.PortfolioEnabled != nil {
		order, err = h.deliverySvc.UpdatePortfolio(r.Context(), orderID, *req.PortfolioEnabled)
		if err != nil {
			writeOrderError(w, err)
			return
		}
	}
	if req.ArchiveURL != nil {
		if !isHTTPURL(*req.ArchiveURL) {
			apierrors.ValidationError(w, "archiveUrl должен быть абсолютной http(s)-ссылкой")
			return
		}
		order, err = h.deliverySvc.UpdateArchiveURL(r.Context(), orderID, *req.ArchiveURL)
		if err != nil {
			writeOrderError(w, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, orderToResponse(order))
}

// --- Вспомогательные ---

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

// writeOrderError переводит ошибки сервисного слоя в HTTP-ответы.
func writeOrderError(w http.ResponseWriter, err error) {
	var terr *status.TransitionError
	switch {
	case errors.Is(err, repository.ErrNotFound):
		apierrors.NotFound(w, "Заказ не найден")
	case errors.As(err, &terr):
		apierrors.InvalidTransition(w, terr.Error())
	default:
		apierrors.InternalError(w, "Внутренняя ошибка")
	}
}

func parsePagination(q url.Values) (limit, offset int, err error) {
	limit = 50
	offset = 0
	if raw := q.Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > 500 {
			return 0, 0, errors.New("limit должен быть числом от 1 до 500")
		}
	}
	if raw := q.Get("offset"); raw != "" {
		offset, err = strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return 0, 0, errors.New("offset должен быть неотрицательным числом")
		}
	}
	return limit, offset, nil
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" &&
		!strings.ContainsAny(raw, " \t\n")
}
