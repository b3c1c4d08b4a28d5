package repository

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/waqaskhan1437/wishesu-sub002/internal/config"
	"github.com/waqaskhan1437/wishesu-sub002/internal/database"
	"github.com/waqaskhan1437/wishesu-sub002/internal/domain/model"
	"github.com/waqaskhan1437/wishesu-sub002/internal/domain/status"

	"github.com/jackc/pgx/v5/pgxpool"
)

// setupTestDB запускает PostgreSQL контейнер, применяет миграции.
// Возвращает pgxpool.Pool; очистка через t.Cleanup.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("delivery_test"),
		postgres.WithUsername("delivery"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Не удалось запустить PostgreSQL контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Не удалось получить host контейнера: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Не удалось получить port контейнера: %v", err)
	}

	// Настраиваем env для config.Load()
	t.Setenv("DM_DB_HOST", host)
	t.Setenv("DM_DB_PORT", port.Port())
	t.Setenv("DM_DB_NAME", "delivery_test")
	t.Setenv("DM_DB_USER", "delivery")
	t.Setenv("DM_DB_PASSWORD", "test-password")
	t.Setenv("DM_DB_SSL_MODE", "disable")
	t.Setenv("DM_STAGING_DIR", t.TempDir())
	t.Setenv("DM_ARCHIVE_UPLOAD_URL", "http://archive.test/upload")
	t.Setenv("DM_ARCHIVE_DOWNLOAD_URL", "http://archive.test/download")
	t.Setenv("DM_ARCHIVE_ACCESS_KEY", "test")
	t.Setenv("DM_ARCHIVE_SECRET_KEY", "test")
	t.Setenv("DM_CHECKOUT_API_URL", "http://checkout.test")
	t.Setenv("DM_CHECKOUT_API_KEY", "test")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	if err := database.Migrate(cfg, logger); err != nil {
		t.Fatalf("Ошибка миграций: %v", err)
	}

	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Ошибка подключения: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	return pool
}

// --- Тесты OrderRepository ---

func TestOrderCRUD(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewOrderRepository(pool)

	orderID := "ord-" + uuid.New().String()
	order := &model.Order{
		OrderID:             orderID,
		ProductID:           "prod-1",
		ProductTitle:        "Видеопоздравление",
		Email:               "client@example.com",
		Status:              status.StatusPaid,
		DeliveryTimeMinutes: 1440,
		CreatedAt:           time.Now().UTC(),
	}

	// Create
	if err := repo.Create(ctx, order); err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}
	if order.UpdatedAt.IsZero() {
		t.Error("UpdatedAt не установлен")
	}

	// Повторный Create — конфликт
	if err := repo.Create(ctx, order); !errors.Is(err, ErrConflict) {
		t.Errorf("повторный Create: хотели ErrConflict, получили %v", err)
	}

	// GetByID
	got, err := repo.GetByID(ctx, orderID)
	if err != nil {
		t.Fatalf("GetByID() ошибка: %v", err)
	}
	if got.ProductTitle != "Видеопоздравление" || got.Status != status.StatusPaid {
		t.Errorf("неожиданный заказ: %+v", got)
	}
	if got.DeliveredVideoURL != nil {
		t.Error("DeliveredVideoURL должен быть nil до доставки")
	}

	// Update — доставка с jsonb-метаданными
	now := time.Now().UTC().Truncate(time.Microsecond)
	videoURL := "https://archive.example.org/download/item-1/v.mp4"
	got.Status = status.StatusDelivered
	got.DeliveredVideoURL = &videoURL
	got.DeliveredVideoMetadata = &model.DeliveredVideoMetadata{
		ItemID:      "item-1",
		Verified:    true,
		DeliveredAt: now,
	}
	got.DeliveredAt = &now
	if err := repo.Update(ctx, got); err != nil {
		t.Fatalf("Update() ошибка: %v", err)
	}

	reread, err := repo.GetByID(ctx, orderID)
	if err != nil {
		t.Fatalf("GetByID() после Update ошибка: %v", err)
	}
	if reread.Status != status.StatusDelivered {
		t.Errorf("Status = %s, хотели delivered", reread.Status)
	}
	if reread.DeliveredVideoMetadata == nil || !reread.DeliveredVideoMetadata.Verified {
		t.Errorf("метаданные не сохранились: %+v", reread.DeliveredVideoMetadata)
	}
	if reread.DeliveredAt == nil {
		t.Error("DeliveredAt не сохранился")
	}

	// GetByID несуществующего
	if _, err := repo.GetByID(ctx, "ord-missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("хотели ErrNotFound, получили %v", err)
	}
}

func TestOrderListAndCount(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewOrderRepository(pool)

	for i := 0; i < 3; i++ {
		order := &model.Order{
			OrderID:   "ord-" + uuid.New().String(),
			ProductID: "prod-list",
			Status:    status.StatusPaid,
			CreatedAt: time.Now().UTC(),
		}
		if err := repo.Create(ctx, order); err != nil {
			t.Fatalf("Create() ошибка: %v", err)
		}
	}

	productID := "prod-list"
	filters := OrderListFilters{ProductID: &productID}

	list, err := repo.List(ctx, filters, 10, 0)
	if err != nil {
		t.Fatalf("List() ошибка: %v", err)
	}
	if len(list) != 3 {
		t.Errorf("List() вернул %d записей, хотели 3", len(list))
	}

	count, err := repo.Count(ctx, filters)
	if err != nil {
		t.Fatalf("Count() ошибка: %v", err)
	}
	if count != 3 {
		t.Errorf("Count() = %d, хотели 3", count)
	}

	// Пагинация
	page, err := repo.List(ctx, filters, 2, 0)
	if err != nil {
		t.Fatalf("List() с limit ошибка: %v", err)
	}
	if len(page) != 2 {
		t.Errorf("хотели страницу из 2, получили %d", len(page))
	}
}

func TestOrderExpireOlderThan(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewOrderRepository(pool)

	oldID := "ord-" + uuid.New().String()
	old := &model.Order{
		OrderID:   oldID,
		ProductID: "prod-1",
		Status:    status.StatusPaid,
		CreatedAt: time.Now().UTC().Add(-80 * time.Hour),
	}
	fresh := &model.Order{
		OrderID:   "ord-" + uuid.New().String(),
		ProductID: "prod-1",
		Status:    status.StatusPaid,
		CreatedAt: time.Now().UTC(),
	}
	if err := repo.Create(ctx, old); err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}
	if err := repo.Create(ctx, fresh); err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}

	affected, err := repo.ExpireOlderThan(ctx, time.Now().UTC().Add(-72*time.Hour))
	if err != nil {
		t.Fatalf("ExpireOlderThan() ошибка: %v", err)
	}
	if affected != 1 {
		t.Errorf("хотели 1 затронутую строку, получили %d", affected)
	}

	got, _ := repo.GetByID(ctx, oldID)
	if got.Status != status.StatusExpired {
		t.Errorf("хотели expired, получили %s", got.Status)
	}
	got, _ = repo.GetByID(ctx, fresh.OrderID)
	if got.Status != status.StatusPaid {
		t.Errorf("свежий заказ не должен экспирироваться, получили %s", got.Status)
	}
}

// --- Тесты CheckoutSessionRepository ---

func TestCheckoutSessionLifecycle(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewCheckoutSessionRepository(pool)

	planID := "plan-1"
	expired := &model.CheckoutSession{
		CheckoutID: "chk-" + uuid.New().String(),
		ProductID:  "prod-1",
		PlanID:     &planID,
		Status:     model.SessionPending,
		ExpiresAt:  time.Now().UTC().Add(-time.Hour),
	}
	active := &model.CheckoutSession{
		CheckoutID: "chk-" + uuid.New().String(),
		ProductID:  "prod-1",
		Status:     model.SessionPending,
		ExpiresAt:  time.Now().UTC().Add(time.Hour),
	}

	if err := repo.Create(ctx, expired); err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}
	if err := repo.Create(ctx, active); err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}
	if expired.CreatedAt.IsZero() {
		t.Error("CreatedAt не установлен")
	}

	// ListExpiredPending видит только истёкшую pending-сессию
	list, err := repo.ListExpiredPending(ctx, time.Now().UTC(), 50)
	if err != nil {
		t.Fatalf("ListExpiredPending() ошибка: %v", err)
	}
	if len(list) != 1 || list[0].CheckoutID != expired.CheckoutID {
		t.Fatalf("хотели одну истёкшую сессию %s, получили %+v", expired.CheckoutID, list)
	}
	if list[0].PlanID == nil || *list[0].PlanID != "plan-1" {
		t.Errorf("PlanID не сохранился: %+v", list[0].PlanID)
	}

	// MarkExpired выводит сессию из выборки
	if err := repo.MarkExpired(ctx, expired.CheckoutID); err != nil {
		t.Fatalf("MarkExpired() ошибка: %v", err)
	}
	list, err = repo.ListExpiredPending(ctx, time.Now().UTC(), 50)
	if err != nil {
		t.Fatalf("ListExpiredPending() ошибка: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("после MarkExpired выборка должна быть пустой, получили %d", len(list))
	}

	// MarkCompleted
	if err := repo.MarkCompleted(ctx, active.CheckoutID); err != nil {
		t.Fatalf("MarkCompleted() ошибка: %v", err)
	}
	got, err := repo.GetByID(ctx, active.CheckoutID)
	if err != nil {
		t.Fatalf("GetByID() ошибка: %v", err)
	}
	if got.Status != model.SessionCompleted {
		t.Errorf("хотели completed, получили %s", got.Status)
	}

	// MarkExpired несуществующей
	if err := repo.MarkExpired(ctx, "chk-missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("хотели ErrNotFound, получили %v", err)
	}
}
