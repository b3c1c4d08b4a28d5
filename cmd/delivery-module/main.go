// Точка входа Delivery Module — конвейер доставки медиафайлов
// видеомагазина. Загружает конфигурацию, подключается к PostgreSQL,
// применяет миграции, создаёт staging-хранилище и клиенты внешних
// систем, запускает фоновые сервисы (reaper, диспетчер уведомлений,
// topologymetrics) и HTTP-сервер с JWT middleware и graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/waqaskhan1437/wishesu-sub002/internal/api"
	"github.com/waqaskhan1437/wishesu-sub002/internal/api/handlers"
	"github.com/waqaskhan1437/wishesu-sub002/internal/api/middleware"
	"github.com/waqaskhan1437/wishesu-sub002/internal/archive"
	"github.com/waqaskhan1437/wishesu-sub002/internal/checkout"
	"github.com/waqaskhan1437/wishesu-sub002/internal/config"
	"github.com/waqaskhan1437/wishesu-sub002/internal/database"
	"github.com/waqaskhan1437/wishesu-sub002/internal/notify"
	"github.com/waqaskhan1437/wishesu-sub002/internal/repository"
	"github.com/waqaskhan1437/wishesu-sub002/internal/server"
	"github.com/waqaskhan1437/wishesu-sub002/internal/service"
	"github.com/waqaskhan1437/wishesu-sub002/internal/staging"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Delivery Module запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	// 3. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Подключение к PostgreSQL (pgxpool)
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 4.1 Адаптер pgxpool → *sql.DB для topologymetrics
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 5. Staging-хранилище
	stagingStore, err := staging.New(cfg.StagingDir)
	if err != nil {
		logger.Error("Ошибка создания staging-хранилища",
			slog.String("dir", cfg.StagingDir),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	logger.Info("Staging-хранилище готово", slog.String("dir", cfg.StagingDir))

	// 6. Клиенты внешних систем
	archiveClient := archive.New(
		cfg.ArchiveUploadURL, cfg.ArchiveDownloadURL,
		cfg.ArchiveAccessKey, cfg.ArchiveSecretKey,
		logger,
	)
	checkoutClient := checkout.New(cfg.CheckoutAPIURL, cfg.CheckoutAPIKey, logger)

	// 7. Repositories
	orderRepo := repository.NewOrderRepository(pool)
	sessionRepo := repository.NewCheckoutSessionRepository(pool)

	// 8. Диспетчер уведомлений
	notifier := notify.New(cfg.NotifyWebhookURL, cfg.NotifyWorkers, cfg.NotifyQueueSize, logger)
	notifier.Start(ctx)
	defer notifier.Stop()

	// 9. Services
	contextCache := service.NewContextCache(orderRepo, cfg.CacheSize, cfg.CacheTTL, logger)
	uploadSvc := service.NewUploadService(
		stagingStore, archiveClient, contextCache,
		cfg.MaxVideoSize, cfg.MaxFileSize,
		cfg.ArchiveCollection,
		cfg.ArchiveSettleDelay, cfg.ArchiveVerifyAttempts, cfg.ArchiveVerifyDelay,
		logger,
	)
	deliverySvc := service.NewDeliveryService(orderRepo, contextCache, notifier, logger)
	checkoutSvc := service.NewCheckoutService(sessionRepo, logger)

	// 10. Reaper — фоновая очистка
	reaper := service.NewReaperService(
		orderRepo, sessionRepo, checkoutClient, stagingStore,
		cfg.ReaperInterval, cfg.OrderTTL, cfg.StagingTTL,
		cfg.SessionBatchLimit,
		service.RetryPolicy{MaxAttempts: 3, Delay: 2 * time.Second},
		logger,
	)
	reaper.Start(ctx)
	defer reaper.Stop()

	// 11. topologymetrics — мониторинг зависимостей
	dephealthSvc, dephealthErr := service.NewDephealthService(
		"delivery-module",
		cfg.DephealthGroup,
		pgDB,
		cfg.DatabaseURL(),
		cfg.ArchiveDownloadURL,
		cfg.CheckoutAPIURL,
		cfg.DephealthCheckInterval,
		cfg.DephealthName != "",
		logger,
	)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
	} else {
		if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics", slog.String("error", startErr.Error()))
		} else {
			defer dephealthSvc.Stop()
			logger.Info("topologymetrics запущен",
				slog.String("group", cfg.DephealthGroup),
				slog.String("check_interval", cfg.DephealthCheckInterval.String()),
			)
		}
	}

	// 12. JWT middleware (выключен при пустом DM_JWKS_URL)
	var jwtAuth *middleware.JWTAuth
	if cfg.JWKSUrl != "" {
		jwtAuth, err = middleware.NewJWTAuth(middleware.JWTAuthConfig{
			JWKSURL:         cfg.JWKSUrl,
			CACertPath:      cfg.JWKSCACert,
			ClientTimeout:   10 * time.Second,
			RefreshInterval: time.Hour,
			JWTLeeway:       30 * time.Second,
		}, logger)
		if err != nil {
			logger.Error("Ошибка создания JWT middleware", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("JWT middleware инициализирован", slog.String("jwks_url", cfg.JWKSUrl))
	} else {
		logger.Warn("DM_JWKS_URL не задан, аутентификация ВЫКЛЮЧЕНА")
	}

	// 13. OpenAPI-документ
	spec, err := api.LoadSpec(ctx)
	if err != nil {
		logger.Error("Ошибка загрузки OpenAPI-документа", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 14. Handlers
	h := server.Handlers{
		Upload:   handlers.NewUploadHandler(uploadSvc),
		Orders:   handlers.NewOrdersHandler(deliverySvc, orderRepo),
		Checkout: handlers.NewCheckoutHandler(checkoutSvc),
		Health:   handlers.NewHealthHandler(cfg.StagingDir, database.NewReadinessChecker(pool)),
	}

	// 15. HTTP-сервер (блокирующий вызов с graceful shutdown)
	srv := server.New(cfg, logger, h, jwtAuth, spec)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Delivery Module остановлен")
}
