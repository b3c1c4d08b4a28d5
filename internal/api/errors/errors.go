// Пакет errors — конструкторы стандартных ошибок Delivery Module.
// Единый формат: {"error": {"code": "...", "message": "..."}}.
// Ошибки upload-конвейера имеют расширенный формат со stage-тегом:
// {"error": "...", "stage": "...", "r2Uploaded": true, "details": "..."}.
package errors //nolint:revive // конфликт со stdlib, переименование отложено

import (
	"encoding/json"
	"net/http"
)

// Коды ошибок API.
const (
	CodeValidationError       = "VALIDATION_ERROR"
	CodeFileTooLarge          = "FILE_TOO_LARGE"
	CodeNotFound              = "NOT_FOUND"
	CodeUnauthorized          = "UNAUTHORIZED"
	CodeForbidden             = "FORBIDDEN"
	CodeInvalidTransition     = "INVALID_TRANSITION"
	CodeStagingFailure        = "STAGING_FAILURE"
	CodeStagingVerifyFailure  = "STAGING_VERIFY_FAILURE"
	CodeArchiveUploadFailure  = "ARCHIVE_UPLOAD_FAILURE"
	CodeArchiveConnectError   = "ARCHIVE_CONNECT_ERROR"
	CodeConflict              = "CONFLICT"
	CodeInternalError         = "INTERNAL_ERROR"
)

// Stage-теги ошибок upload-конвейера. Клиент по ним отличает
// "ничего не записано" от "staged, но не заархивировано".
const (
	StageValidation     = "validation"
	StageStaging        = "staging"
	StageStagingVerify  = "staging-verify"
	StageArchiveUpload  = "archive-upload"
	StageArchiveConnect = "archive-connect"
)

// errorBody — структура тела ответа ошибки.
type errorBody struct {
	Error errorDetail `json:"error"`
}

// errorDetail — детали ошибки.
type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// uploadErrorBody — тело ошибки upload-конвейера со stage-тегом.
// R2Uploaded=true сообщает клиенту, что staging прошёл и повторять
// нужно только архивную стадию.
type uploadErrorBody struct {
	Error      string `json:"error"`
	Stage      string `json:"stage"`
	R2Uploaded bool   `json:"r2Uploaded"`
	Details    string `json:"details,omitempty"`
}

// WriteError записывает ответ ошибки в стандартном формате.
// statusCode — HTTP статус-код, code — машиночитаемый код, message — описание.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error: errorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// WriteUploadError записывает stage-тегированную ошибку upload-конвейера.
func WriteUploadError(w http.ResponseWriter, statusCode int, message, stage string, r2Uploaded bool, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(uploadErrorBody{
		Error:      message,
		Stage:      stage,
		R2Uploaded: r2Uploaded,
		Details:    details,
	})
}

// --- Конструкторы для типичных ошибок ---

// ValidationError — 400 некорректные входные данные.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeValidationError, message)
}

// FileTooLarge — 400 файл превышает лимит.
// Для upload-конвейера это клиентская ошибка, не 413: лимит зависит
// от типа файла и известен клиенту заранее.
func FileTooLarge(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeFileTooLarge, message)
}

// NotFound — 404 ресурс не найден.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

// Unauthorized — 401 требуется аутентификация.
func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, CodeUnauthorized, message)
}

// Forbidden — 403 недостаточно прав.
func Forbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, CodeForbidden, message)
}

// InvalidTransition — 409 недопустимый переход статуса заказа.
func InvalidTransition(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeInvalidTransition, message)
}

// Conflict — 409 конфликт (дублирующийся ресурс).
func Conflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeConflict, message)
}

// InternalError — 500 внутренняя ошибка.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}
