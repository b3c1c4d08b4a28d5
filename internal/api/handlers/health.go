// health.go — обработчики health endpoints для Kubernetes probes.
package handlers

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/waqaskhan1437/wishesu-sub002/internal/config"
)

const statusFail = "fail"

// ReadinessChecker — проверка готовности зависимости.
type ReadinessChecker interface {
	CheckReady() (status string, message string)
}

// HealthHandler реализует /health/live и /health/ready.
type HealthHandler struct {
	version string
	// stagingDir — путь к промежуточному хранилищу (для проверки FS)
	stagingDir string
	// db — проверка готовности PostgreSQL
	db ReadinessChecker
}

// NewHealthHandler создаёт обработчик health endpoints.
func NewHealthHandler(stagingDir string, db ReadinessChecker) *HealthHandler {
	return &HealthHandler{
		version:    config.Version,
		stagingDir: stagingDir,
		db:         db,
	}
}

// HealthLive обрабатывает GET /health/live.
// Возвращает 200, если процесс жив. Не проверяет зависимости.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"service":   "delivery-module",
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

// HealthReady обрабатывает GET /health/ready.
// Проверяет PostgreSQL и доступность промежуточного хранилища.
func (h *HealthHandler) HealthReady(w http.ResponseWriter, _ *http.Request) {
	overallStatus := "ok"
	httpStatus := http.StatusOK

	dbCheck := map[string]any{"status": "ok", "message": "Проверка не настроена"}
	if h.db != nil {
		st, msg := h.db.CheckReady()
		dbCheck = map[string]any{"status": st, "message": msg}
		if st != "ok" {
			overallStatus = statusFail
			httpStatus = http.StatusServiceUnavailable
		}
	}

	fsCheck := h.checkStaging()
	if fsCheck["status"] != "ok" {
		overallStatus = statusFail
		httpStatus = http.StatusServiceUnavailable
	}

	resp := map[string]any{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"service":   "delivery-module",
		"checks": map[string]any{
			"postgresql": dbCheck,
			"staging":    fsCheck,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(resp)
}

// checkStaging проверяет доступность промежуточного хранилища на запись.
func (h *HealthHandler) checkStaging() map[string]any {
	if h.stagingDir == "" {
		return map[string]any{
			"status":  "ok",
			"message": "Проверка не настроена",
		}
	}

	testFile := filepath.Join(h.stagingDir, ".health_check")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return map[string]any{
			"status":  statusFail,
			"message": "Промежуточное хранилище недоступно для записи: " + err.Error(),
		}
	}
	_ = os.Remove(testFile)

	return map[string]any{
		"status": "ok",
	}
}
