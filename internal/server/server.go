// Пакет server — HTTP-сервер Delivery Module с graceful shutdown.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/waqaskhan1437/wishesu-sub002/internal/api"
	"github.com/waqaskhan1437/wishesu-sub002/internal/api/handlers"
	"github.com/waqaskhan1437/wishesu-sub002/internal/api/middleware"
	"github.com/waqaskhan1437/wishesu-sub002/internal/config"
)

// Handlers — набор обработчиков для маршрутизации.
type Handlers struct {
	Upload   *handlers.UploadHandler
	Orders   *handlers.OrdersHandler
	Checkout *handlers.CheckoutHandler
	Health   *handlers.HealthHandler
}

// Server — HTTP-сервер Delivery Module.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт HTTP-сервер с настроенными routes и middleware.
// auth == nil — аутентификация выключена (только для тестов
// и локальной разработки без JWKS).
func New(cfg *config.Config, logger *slog.Logger, h Handlers, auth *middleware.JWTAuth, spec *openapi3.T) *Server {
	router := chi.NewRouter()

	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.MetricsMiddleware())

	// Публичные endpoints — без аутентификации
	router.Get("/health/live", h.Health.HealthLive)
	router.Get("/health/ready", h.Health.HealthReady)
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())
	router.Get("/api/v1/openapi.json", api.SpecHandler(spec))

	// Защищённые endpoints
	router.Group(func(r chi.Router) {
		if auth != nil {
			r.Use(auth.Middleware())
		}

		r.With(requireScope(auth, "files:upload")).
			Post("/api/v1/files/upload", h.Upload.Upload)

		r.With(requireScope(auth, "orders:read")).
			Get("/api/v1/orders", h.Orders.List)
		r.With(requireScope(auth, "orders:read")).
			Get("/api/v1/orders/{orderId}", h.Orders.Get)

		r.With(requireScope(auth, "orders:write")).
			Post("/api/v1/orders", h.Orders.Create)
		r.With(requireScope(auth, "orders:write")).
			Patch("/api/v1/orders/{orderId}", h.Orders.Patch)
		r.With(requireScope(auth, "orders:write")).
			Post("/api/v1/orders/{orderId}/deliver", h.Orders.Deliver)
		r.With(requireScope(auth, "orders:write")).
			Post("/api/v1/orders/{orderId}/revision", h.Orders.RequestRevision)

		r.With(requireScope(auth, "checkout:write")).
			Post("/api/v1/checkout-sessions", h.Checkout.Register)
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
		// ReadTimeout покрывает чтение тела целиком: видео на лимите
		// размера должно успеть дойти по медленному каналу
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// requireScope оборачивает RequireScope, пропуская проверку
// при выключенной аутентификации.
func requireScope(auth *middleware.JWTAuth, scope string) func(http.Handler) http.Handler {
	if auth == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return middleware.RequireScope(scope)
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен", slog.String("addr", s.httpServer.Addr))

		err := s.httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
