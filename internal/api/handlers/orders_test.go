package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/waqaskhan1437/wishesu-sub002/internal/domain/model"
	"github.com/waqaskhan1437/wishesu-sub002/internal/domain/status"
	"github.com/waqaskhan1437/wishesu-sub002/internal/repository"
	"github.com/waqaskhan1437/wishesu-sub002/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memOrderRepo — in-memory OrderRepository для handler-тестов.
type memOrderRepo struct {
	mu     sync.Mutex
	orders map[string]*model.Order
}

func newMemOrderRepo(orders ...*model.Order) *memOrderRepo {
	repo := &memOrderRepo{orders: make(map[string]*model.Order)}
	for _, o := range orders {
		copied := *o
		repo.orders[o.OrderID] = &copied
	}
	return repo
}

func (m *memOrderRepo) Create(ctx context.Context, o *model.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[o.OrderID]; ok {
		return repository.ErrConflict
	}
	copied := *o
	m.orders[o.OrderID] = &copied
	return nil
}

func (m *memOrderRepo) GetByID(ctx context.Context, orderID string) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *o
	return &copied, nil
}

func (m *memOrderRepo) List(ctx context.Context, filters repository.OrderListFilters, limit, offset int) ([]*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*model.Order
	for _, o := range m.orders {
		if filters.Status != nil && o.Status != *filters.Status {
			continue
		}
		copied := *o
		result = append(result, &copied)
	}
	return result, nil
}

func (m *memOrderRepo) Count(ctx context.Context, filters repository.OrderListFilters) (int, error) {
	list, _ := m.List(ctx, filters, 0, 0)
	return len(list), nil
}

func (m *memOrderRepo) Update(ctx context.Context, o *model.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[o.OrderID]; !ok {
		return repository.ErrNotFound
	}
	copied := *o
	m.orders[o.OrderID] = &copied
	return nil
}

func (m *memOrderRepo) ExpireOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	return 0, nil
}

type noopNotifier struct{}

func (noopNotifier) Dispatch(event model.Event) {}

func newOrdersRouter(repo repository.OrderRepository) http.Handler {
	cache := service.NewContextCache(repo, 16, time.Minute, testLogger())
	svc := service.NewDeliveryService(repo, cache, noopNotifier{}, testLogger())
	h := NewOrdersHandler(svc, repo)

	r := chi.NewRouter()
	r.Post("/api/v1/orders", h.Create)
	r.Get("/api/v1/orders", h.List)
	r.Get("/api/v1/orders/{orderId}", h.Get)
	r.Patch("/api/v1/orders/{orderId}", h.Patch)
	r.Post("/api/v1/orders/{orderId}/deliver", h.Deliver)
	r.Post("/api/v1/orders/{orderId}/revision", h.RequestRevision)
	return r
}

func testPaidOrder(orderID string) *model.Order {
	return &model.Order{
		OrderID:      orderID,
		ProductID:    "prod-1",
		ProductTitle: "Видеопоздравление",
		Email:        "client@example.com",
		Status:       status.StatusPaid,
		CreatedAt:    time.Now().UTC().Add(-time.Hour),
		UpdatedAt:    time.Now().UTC().Add(-time.Hour),
	}
}

func TestOrdersDeliver_Success(t *testing.T) {
	router := newOrdersRouter(newMemOrderRepo(testPaidOrder("ord-1")))

	body := `{"videoUrl": "https://archive.example.org/download/item-1/v.mp4", "archiveVerified": true}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/ord-1/deliver", strings.NewReader(body))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("хотели 200, получили %d, тело: %s", rec.Code, rec.Body.String())
	}

	var resp orderResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("ошибка разбора ответа: %v", err)
	}
	if resp.Status != "delivered" {
		t.Errorf("хотели delivered, получили %s", resp.Status)
	}
	if resp.DeliveredAt == nil {
		t.Error("хотели заполненный deliveredAt")
	}
	if resp.VideoMetadata == nil || !resp.VideoMetadata.Verified {
		t.Errorf("хотели verified=true в метаданных, получили %+v", resp.VideoMetadata)
	}
}

func TestOrdersDeliver_MissingVideoURL(t *testing.T) {
	router := newOrdersRouter(newMemOrderRepo(testPaidOrder("ord-1")))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/ord-1/deliver", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("хотели 400, получили %d", rec.Code)
	}
}

func TestOrdersDeliver_RelativeURLRejected(t *testing.T) {
	router := newOrdersRouter(newMemOrderRepo(testPaidOrder("ord-1")))

	body := `{"videoUrl": "/download/item-1/v.mp4"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/ord-1/deliver", strings.NewReader(body))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("относительная ссылка должна отклоняться, получили %d", rec.Code)
	}
}

func TestOrdersDeliver_NotFound(t *testing.T) {
	router := newOrdersRouter(newMemOrderRepo())

	body := `{"videoUrl": "https://x/v.mp4"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/ord-missing/deliver", strings.NewReader(body))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("хотели 404, получили %d", rec.Code)
	}
}

func TestOrdersDeliver_ExpiredConflict(t *testing.T) {
	order := testPaidOrder("ord-1")
	order.Status = status.StatusExpired
	router := newOrdersRouter(newMemOrderRepo(order))

	body := `{"videoUrl": "https://x/v.mp4"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/ord-1/deliver", strings.NewReader(body))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("доставка expired-заказа должна давать 409, получили %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "INVALID_TRANSITION") {
		t.Errorf("хотели код INVALID_TRANSITION, тело: %s", rec.Body.String())
	}
}

func TestOrdersRevision_Flow(t *testing.T) {
	repo := newMemOrderRepo(testPaidOrder("ord-1"))
	router := newOrdersRouter(repo)

	// Сначала доставляем
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/ord-1/deliver",
		strings.NewReader(`{"videoUrl": "https://x/v.mp4"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("доставка: хотели 200, получили %d", rec.Code)
	}

	// Запрашиваем правки
	req = httptest.NewRequest(http.MethodPost, "/api/v1/orders/ord-1/revision",
		strings.NewReader(`{"reason": "другой фон"}`))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("правки: хотели 200, получили %d, тело: %s", rec.Code, rec.Body.String())
	}
	var resp orderResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Status != "revision" || resp.RevisionCount != 1 {
		t.Errorf("хотели revision/1, получили %s/%d", resp.Status, resp.RevisionCount)
	}
}

func TestOrdersRevision_BeforeDeliveryConflict(t *testing.T) {
	router := newOrdersRouter(newMemOrderRepo(testPaidOrder("ord-1")))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/ord-1/revision", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("правки до доставки должны давать 409, получили %d", rec.Code)
	}
}

func TestOrdersGet(t *testing.T) {
	router := newOrdersRouter(newMemOrderRepo(testPaidOrder("ord-1")))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/ord-1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("хотели 200, получили %d", rec.Code)
	}
	var resp orderResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.OrderID != "ord-1" || resp.Status != "paid" {
		t.Errorf("неожиданный ответ: %+v", resp)
	}
}

func TestOrdersList_StatusFilter(t *testing.T) {
	delivered := testPaidOrder("ord-2")
	delivered.Status = status.StatusDelivered
	now := time.Now().UTC()
	delivered.DeliveredAt = &now
	router := newOrdersRouter(newMemOrderRepo(testPaidOrder("ord-1"), delivered))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders?status=paid", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("хотели 200, получили %d", rec.Code)
	}
	var resp listOrdersResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Total != 1 || len(resp.Orders) != 1 {
		t.Errorf("хотели 1 заказ, получили total=%d len=%d", resp.Total, len(resp.Orders))
	}
}

func TestOrdersList_InvalidStatus(t *testing.T) {
	router := newOrdersRouter(newMemOrderRepo())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders?status=shipped", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("хотели 400, получили %d", rec.Code)
	}
}

func TestOrdersList_InvalidLimit(t *testing.T) {
	router := newOrdersRouter(newMemOrderRepo())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders?limit=0", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("хотели 400, получили %d", rec.Code)
	}
}

func TestOrdersPatch_Portfolio(t *testing.T) {
	router := newOrdersRouter(newMemOrderRepo(testPaidOrder("ord-1")))

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/orders/ord-1",
		strings.NewReader(`{"portfolioEnabled": true}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("хотели 200, получили %d", rec.Code)
	}
	var resp orderResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if !resp.PortfolioEnabled {
		t.Error("хотели portfolioEnabled=true")
	}
}

func TestOrdersPatch_Empty(t *testing.T) {
	router := newOrdersRouter(newMemOrderRepo(testPaidOrder("ord-1")))

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/orders/ord-1", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("пустой PATCH должен давать 400, получили %d", rec.Code)
	}
}

func TestOrdersCreate(t *testing.T) {
	router := newOrdersRouter(newMemOrderRepo())

	body := `{"orderId": "ord-new", "productId": "prod-1", "productTitle": "Поздравление", "email": "a@b.c"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("хотели 201, получили %d, тело: %s", rec.Code, rec.Body.String())
	}

	// Повтор — конфликт
	req = httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Errorf("дубль должен давать 409, получили %d", rec.Code)
	}
}
