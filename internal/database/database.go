// Пакет database — PostgreSQL-слой Delivery Module: пул pgx с
// размерами под upload-нагрузку, embedded-миграции golang-migrate
// и readiness-проверка для health endpoint.
package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/waqaskhan1437/wishesu-sub002/internal/config"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// pingTimeout ограничивает стартовый и readiness ping.
const pingTimeout = 3 * time.Second

// Connect создаёт и проверяет пул подключений.
//
// Размеры пула приходят из конфигурации: запросы заказов и reaper-а
// короткие, но upload-конвейер ходит за контекстом заказа посреди
// многоминутной загрузки видео, поэтому подключения должны
// оставаться доступными под длительной нагрузкой.
func Connect(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга DSN: %w", err)
	}
	poolCfg.MaxConns = cfg.DBMaxConns
	poolCfg.MinConns = cfg.DBMinConns
	poolCfg.MaxConnLifetime = cfg.DBConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания пула подключений: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("PostgreSQL недоступен (%s:%d/%s): %w",
			cfg.DBHost, cfg.DBPort, cfg.DBName, err)
	}

	logger.Info("Пул подключений PostgreSQL готов",
		slog.String("host", cfg.DBHost),
		slog.Int("port", cfg.DBPort),
		slog.String("database", cfg.DBName),
		slog.Int("max_conns", int(cfg.DBMaxConns)),
		slog.Int("min_conns", int(cfg.DBMinConns)),
	)
	return pool, nil
}

// Migrate доводит схему до актуальной версии из embedded-миграций.
// Запускается до создания пула: схема orders/checkout_sessions
// обязана существовать раньше первого запроса репозиториев.
func Migrate(cfg *config.Config, logger *slog.Logger) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("ошибка чтения embedded-миграций: %w", err)
	}

	// golang-migrate ожидает URL со схемой pgx5://
	dbURL := fmt.Sprintf(
		"pgx5://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName, cfg.DBSSLMode,
	)

	m, err := migrate.NewWithSourceInstance("iofs", source, dbURL)
	if err != nil {
		return fmt.Errorf("ошибка инициализации миграций: %w", err)
	}
	defer m.Close()

	err = m.Up()
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		logger.Info("Схема БД актуальна, миграции не требуются")
	case err != nil:
		return fmt.Errorf("ошибка применения миграций: %w", err)
	default:
		version, dirty, _ := m.Version()
		logger.Info("Миграции применены",
			slog.Uint64("version", uint64(version)),
			slog.Bool("dirty", dirty),
		)
	}
	return nil
}

// ReadinessChecker отвечает на /health/ready за PostgreSQL.
type ReadinessChecker struct {
	pool *pgxpool.Pool
}

func NewReadinessChecker(pool *pgxpool.Pool) *ReadinessChecker {
	return &ReadinessChecker{pool: pool}
}

// CheckReady выполняет ping с таймаутом.
// Возвращает статус ("ok", "fail") и сообщение.
func (c *ReadinessChecker) CheckReady() (status string, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := c.pool.Ping(ctx); err != nil {
		return "fail", fmt.Sprintf("PostgreSQL недоступен: %v", err)
	}
	return "ok", "подключение активно"
}
