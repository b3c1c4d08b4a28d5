// Пакет config — загрузка и валидация конфигурации Delivery Module
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации Delivery Module.
type Config struct {
	// Порт HTTP-сервера (диапазон 8020-8029)
	Port int

	// --- PostgreSQL ---
	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string
	// Максимум подключений пула. Заказы и reaper держат короткие
	// запросы, но upload-конвейер ходит в базу за контекстом заказа
	// во время долгих загрузок — пул должен это переживать.
	DBMaxConns int32
	// Минимум тёплых подключений пула
	DBMinConns int32
	// Максимальное время жизни подключения до пересоздания
	DBConnLifetime time.Duration

	// --- Staging (эфемерное хранилище) ---
	// Путь к директории staging-хранилища
	StagingDir string
	// TTL staged-объектов до зачистки reaper-ом
	StagingTTL time.Duration
	// Максимальный размер видео-файла в байтах
	MaxVideoSize int64
	// Максимальный размер прочих файлов в байтах
	MaxFileSize int64

	// --- Постоянный архив ---
	// Базовый URL upload endpoint архива (S3-style PUT)
	ArchiveUploadURL string
	// Базовый URL download endpoint архива (для верификации и выдачи ссылок)
	ArchiveDownloadURL string
	// Коллекция (bucket) архива для медиа заказов
	ArchiveCollection string
	// Сервисные креденшалы архива
	ArchiveAccessKey string
	ArchiveSecretKey string
	// Пауза перед первой проверкой индексации
	ArchiveSettleDelay time.Duration
	// Количество попыток верификации
	ArchiveVerifyAttempts int
	// Фиксированная задержка между попытками верификации
	ArchiveVerifyDelay time.Duration

	// --- Платёжный провайдер (checkout) ---
	// Базовый URL API провайдера
	CheckoutAPIURL string
	// API-ключ провайдера
	CheckoutAPIKey string

	// --- Reaper ---
	// Интервал запуска reaper
	ReaperInterval time.Duration
	// Возраст paid-заказа до автоэкспирации
	OrderTTL time.Duration
	// Максимум checkout-сессий за один проход
	SessionBatchLimit int

	// --- Уведомления ---
	// URL webhook диспетчера уведомлений (пустой — уведомления выключены)
	NotifyWebhookURL string
	// Количество воркеров отправки
	NotifyWorkers int
	// Размер очереди событий
	NotifyQueueSize int

	// --- Кэш контекста заказов ---
	CacheSize int
	CacheTTL  time.Duration

	// --- Аутентификация ---
	// URL JWKS endpoint (пустой — auth выключен, только для тестов)
	JWKSUrl string
	// Путь к CA-сертификату для JWKS endpoint (опционально)
	JWKSCACert string

	// --- Наблюдаемость ---
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Интервал проверки зависимостей topologymetrics
	DephealthCheckInterval time.Duration
	// Имя группы в метриках topologymetrics
	DephealthGroup string
	// Имя владельца пода для метки name в topologymetrics
	DephealthName string

	// --- HTTP-сервер ---
	// Таймаут чтения запроса целиком, включая тело. Должен покрывать
	// загрузку видео в пределах лимита размера по медленному каналу.
	HTTPReadTimeout time.Duration
	// Таймаут записи ответа
	HTTPWriteTimeout time.Duration
	// Таймаут простоя keep-alive подключения
	HTTPIdleTimeout time.Duration
	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}

	// DM_PORT — порт HTTP-сервера (по умолчанию 8020)
	port, err := getEnvInt("DM_PORT", 8020)
	if err != nil {
		return nil, fmt.Errorf("DM_PORT: %w", err)
	}
	if port < 8020 || port > 8029 {
		return nil, fmt.Errorf("DM_PORT: значение %d вне допустимого диапазона 8020-8029", port)
	}
	cfg.Port = port

	// DM_DB_HOST — обязательный
	cfg.DBHost, err = getEnvRequired("DM_DB_HOST")
	if err != nil {
		return nil, err
	}

	// DM_DB_PORT — порт PostgreSQL (по умолчанию 5432)
	cfg.DBPort, err = getEnvInt("DM_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("DM_DB_PORT: %w", err)
	}

	// DM_DB_NAME — обязательный
	cfg.DBName, err = getEnvRequired("DM_DB_NAME")
	if err != nil {
		return nil, err
	}

	// DM_DB_USER — обязательный
	cfg.DBUser, err = getEnvRequired("DM_DB_USER")
	if err != nil {
		return nil, err
	}

	// DM_DB_PASSWORD — обязательный
	cfg.DBPassword, err = getEnvRequired("DM_DB_PASSWORD")
	if err != nil {
		return nil, err
	}

	// DM_DB_SSL_MODE — режим SSL (по умолчанию disable)
	cfg.DBSSLMode = getEnvDefault("DM_DB_SSL_MODE", "disable")
	validSSL := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSL[cfg.DBSSLMode] {
		return nil, fmt.Errorf("DM_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// DM_DB_MAX_CONNS — максимум подключений пула (по умолчанию 16)
	dbMaxConns, err := getEnvInt("DM_DB_MAX_CONNS", 16)
	if err != nil {
		return nil, fmt.Errorf("DM_DB_MAX_CONNS: %w", err)
	}
	if dbMaxConns < 1 {
		return nil, fmt.Errorf("DM_DB_MAX_CONNS: значение должно быть >= 1")
	}
	cfg.DBMaxConns = int32(dbMaxConns)

	// DM_DB_MIN_CONNS — минимум тёплых подключений (по умолчанию 2)
	dbMinConns, err := getEnvInt("DM_DB_MIN_CONNS", 2)
	if err != nil {
		return nil, fmt.Errorf("DM_DB_MIN_CONNS: %w", err)
	}
	if dbMinConns < 0 || dbMinConns > dbMaxConns {
		return nil, fmt.Errorf("DM_DB_MIN_CONNS: значение должно быть в диапазоне 0..DM_DB_MAX_CONNS")
	}
	cfg.DBMinConns = int32(dbMinConns)

	// DM_DB_CONN_LIFETIME — время жизни подключения (по умолчанию 30m)
	cfg.DBConnLifetime, err = getEnvDuration("DM_DB_CONN_LIFETIME", 30*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("DM_DB_CONN_LIFETIME: %w", err)
	}

	// DM_STAGING_DIR — обязательный
	cfg.StagingDir, err = getEnvRequired("DM_STAGING_DIR")
	if err != nil {
		return nil, err
	}

	// DM_STAGING_TTL — TTL staged-объектов (по умолчанию 24h)
	cfg.StagingTTL, err = getEnvDuration("DM_STAGING_TTL", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("DM_STAGING_TTL: %w", err)
	}

	// DM_MAX_VIDEO_SIZE — лимит видео-файлов (по умолчанию 500 MiB)
	cfg.MaxVideoSize, err = getEnvInt64("DM_MAX_VIDEO_SIZE", 500*1024*1024)
	if err != nil {
		return nil, fmt.Errorf("DM_MAX_VIDEO_SIZE: %w", err)
	}
	if cfg.MaxVideoSize <= 0 {
		return nil, fmt.Errorf("DM_MAX_VIDEO_SIZE: значение должно быть положительным")
	}

	// DM_MAX_FILE_SIZE — лимит прочих файлов (по умолчанию 10 MiB)
	cfg.MaxFileSize, err = getEnvInt64("DM_MAX_FILE_SIZE", 10*1024*1024)
	if err != nil {
		return nil, fmt.Errorf("DM_MAX_FILE_SIZE: %w", err)
	}
	if cfg.MaxFileSize <= 0 {
		return nil, fmt.Errorf("DM_MAX_FILE_SIZE: значение должно быть положительным")
	}

	// DM_ARCHIVE_UPLOAD_URL — обязательный
	cfg.ArchiveUploadURL, err = getEnvRequired("DM_ARCHIVE_UPLOAD_URL")
	if err != nil {
		return nil, err
	}

	// DM_ARCHIVE_DOWNLOAD_URL — обязательный
	cfg.ArchiveDownloadURL, err = getEnvRequired("DM_ARCHIVE_DOWNLOAD_URL")
	if err != nil {
		return nil, err
	}

	// DM_ARCHIVE_COLLECTION — коллекция архива (по умолчанию opensource_movies)
	cfg.ArchiveCollection = getEnvDefault("DM_ARCHIVE_COLLECTION", "opensource_movies")

	// DM_ARCHIVE_ACCESS_KEY / DM_ARCHIVE_SECRET_KEY — обязательные
	cfg.ArchiveAccessKey, err = getEnvRequired("DM_ARCHIVE_ACCESS_KEY")
	if err != nil {
		return nil, err
	}
	cfg.ArchiveSecretKey, err = getEnvRequired("DM_ARCHIVE_SECRET_KEY")
	if err != nil {
		return nil, err
	}

	// DM_ARCHIVE_SETTLE_DELAY — пауза перед верификацией (по умолчанию 2s)
	cfg.ArchiveSettleDelay, err = getEnvDuration("DM_ARCHIVE_SETTLE_DELAY", 2*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DM_ARCHIVE_SETTLE_DELAY: %w", err)
	}

	// DM_ARCHIVE_VERIFY_ATTEMPTS — попытки верификации (по умолчанию 3)
	cfg.ArchiveVerifyAttempts, err = getEnvInt("DM_ARCHIVE_VERIFY_ATTEMPTS", 3)
	if err != nil {
		return nil, fmt.Errorf("DM_ARCHIVE_VERIFY_ATTEMPTS: %w", err)
	}
	if cfg.ArchiveVerifyAttempts < 1 {
		return nil, fmt.Errorf("DM_ARCHIVE_VERIFY_ATTEMPTS: значение должно быть >= 1")
	}

	// DM_ARCHIVE_VERIFY_DELAY — задержка между попытками (по умолчанию 1s)
	cfg.ArchiveVerifyDelay, err = getEnvDuration("DM_ARCHIVE_VERIFY_DELAY", time.Second)
	if err != nil {
		return nil, fmt.Errorf("DM_ARCHIVE_VERIFY_DELAY: %w", err)
	}

	// DM_CHECKOUT_API_URL — обязательный
	cfg.CheckoutAPIURL, err = getEnvRequired("DM_CHECKOUT_API_URL")
	if err != nil {
		return nil, err
	}

	// DM_CHECKOUT_API_KEY — обязательный
	cfg.CheckoutAPIKey, err = getEnvRequired("DM_CHECKOUT_API_KEY")
	if err != nil {
		return nil, err
	}

	// DM_REAPER_INTERVAL — интервал reaper (по умолчанию 1h)
	cfg.ReaperInterval, err = getEnvDuration("DM_REAPER_INTERVAL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("DM_REAPER_INTERVAL: %w", err)
	}

	// DM_ORDER_TTL — возраст paid-заказа до экспирации (по умолчанию 72h)
	cfg.OrderTTL, err = getEnvDuration("DM_ORDER_TTL", 72*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("DM_ORDER_TTL: %w", err)
	}

	// DM_SESSION_BATCH_LIMIT — лимит сессий за проход (по умолчанию 50)
	cfg.SessionBatchLimit, err = getEnvInt("DM_SESSION_BATCH_LIMIT", 50)
	if err != nil {
		return nil, fmt.Errorf("DM_SESSION_BATCH_LIMIT: %w", err)
	}
	if cfg.SessionBatchLimit < 1 {
		return nil, fmt.Errorf("DM_SESSION_BATCH_LIMIT: значение должно быть >= 1")
	}

	// DM_NOTIFY_WEBHOOK_URL — URL диспетчера уведомлений (опционально)
	cfg.NotifyWebhookURL = getEnvDefault("DM_NOTIFY_WEBHOOK_URL", "")

	// DM_NOTIFY_WORKERS — воркеры отправки (по умолчанию 2)
	cfg.NotifyWorkers, err = getEnvInt("DM_NOTIFY_WORKERS", 2)
	if err != nil {
		return nil, fmt.Errorf("DM_NOTIFY_WORKERS: %w", err)
	}
	if cfg.NotifyWorkers < 1 {
		return nil, fmt.Errorf("DM_NOTIFY_WORKERS: значение должно быть >= 1")
	}

	// DM_NOTIFY_QUEUE_SIZE — размер очереди событий (по умолчанию 256)
	cfg.NotifyQueueSize, err = getEnvInt("DM_NOTIFY_QUEUE_SIZE", 256)
	if err != nil {
		return nil, fmt.Errorf("DM_NOTIFY_QUEUE_SIZE: %w", err)
	}

	// DM_CACHE_SIZE — размер LRU-кэша контекста заказов (по умолчанию 512)
	cfg.CacheSize, err = getEnvInt("DM_CACHE_SIZE", 512)
	if err != nil {
		return nil, fmt.Errorf("DM_CACHE_SIZE: %w", err)
	}

	// DM_CACHE_TTL — TTL записей кэша (по умолчанию 10m)
	cfg.CacheTTL, err = getEnvDuration("DM_CACHE_TTL", 10*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("DM_CACHE_TTL: %w", err)
	}

	// DM_JWKS_URL — JWKS endpoint (пустой — auth выключен)
	cfg.JWKSUrl = getEnvDefault("DM_JWKS_URL", "")

	// DM_JWKS_CA_CERT — CA-сертификат JWKS endpoint (опционально)
	cfg.JWKSCACert = getEnvDefault("DM_JWKS_CA_CERT", "")

	// DM_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("DM_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("DM_LOG_LEVEL: %w", err)
	}

	// DM_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("DM_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("DM_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// DM_DEPHEALTH_CHECK_INTERVAL — интервал проверки зависимостей (по умолчанию 15s)
	cfg.DephealthCheckInterval, err = getEnvDuration("DM_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DM_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// DM_DEPHEALTH_GROUP — имя группы в метриках topologymetrics
	cfg.DephealthGroup = getEnvDefault("DM_DEPHEALTH_GROUP", "delivery-module")

	// DEPHEALTH_NAME — имя владельца пода для метки name в topologymetrics
	cfg.DephealthName = getEnvDefault("DEPHEALTH_NAME", "")

	// DM_HTTP_READ_TIMEOUT — таймаут чтения запроса (по умолчанию 15m:
	// видео на лимите размера должно успеть дойти по медленному каналу)
	cfg.HTTPReadTimeout, err = getEnvDuration("DM_HTTP_READ_TIMEOUT", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("DM_HTTP_READ_TIMEOUT: %w", err)
	}

	// DM_HTTP_WRITE_TIMEOUT — таймаут записи ответа (по умолчанию 1m)
	cfg.HTTPWriteTimeout, err = getEnvDuration("DM_HTTP_WRITE_TIMEOUT", time.Minute)
	if err != nil {
		return nil, fmt.Errorf("DM_HTTP_WRITE_TIMEOUT: %w", err)
	}

	// DM_HTTP_IDLE_TIMEOUT — таймаут keep-alive (по умолчанию 120s)
	cfg.HTTPIdleTimeout, err = getEnvDuration("DM_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DM_HTTP_IDLE_TIMEOUT: %w", err)
	}

	// DM_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("DM_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DM_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL подключения к PostgreSQL
// (для лейблов topologymetrics, не для подключения).
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvInt64 возвращает int64 значение переменной окружения или значение по умолчанию.
func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 72h)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
