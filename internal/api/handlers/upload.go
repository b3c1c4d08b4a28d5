// upload.go — HTTP handler загрузки медиафайлов.
// Файл передаётся сырым телом запроса, параметры — в query string.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	apierrors "github.com/waqaskhan1437/wishesu-sub002/internal/api/errors"
	"github.com/waqaskhan1437/wishesu-sub002/internal/service"
)

// UploadHandler — обработчик POST /api/v1/files/upload.
type UploadHandler struct {
	uploadSvc *service.UploadService
}

// NewUploadHandler создаёт обработчик загрузки.
func NewUploadHandler(uploadSvc *service.UploadService) *UploadHandler {
	return &UploadHandler{uploadSvc: uploadSvc}
}

// uploadResponse — тело успешного ответа загрузки.
type uploadResponse struct {
	Success         bool   `json:"success"`
	URL             string `json:"url"`
	EmbedURL        string `json:"embedUrl,omitempty"`
	ItemID          string `json:"itemId"`
	Filename        string `json:"filename"`
	R2Verified      bool   `json:"r2Verified"`
	ArchiveVerified bool   `json:"archiveVerified"`
	IsVideo         bool   `json:"isVideo"`
}

// Upload обрабатывает POST /api/v1/files/upload.
// Query: itemId (обязательно), filename (обязательно),
// originalFilename, orderId (опционально). Тело — содержимое файла.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	params := service.UploadParams{
		ItemID:           q.Get("itemId"),
		Filename:         q.Get("filename"),
		OriginalFilename: q.Get("originalFilename"),
		OrderID:          q.Get("orderId"),
		ContentType:      r.Header.Get("Content-Type"),
		ContentLength:    r.ContentLength,
		Body:             r.Body,
	}

	result, err := h.uploadSvc.Upload(r.Context(), params)
	if err != nil {
		var failure *service.UploadFailure
		if errors.As(err, &failure) {
			details := ""
			if failure.Err != nil {
				details = failure.Err.Error()
			}
			apierrors.WriteUploadError(w, failure.Status, failure.Message, failure.Stage, failure.R2Uploaded, details)
			return
		}
		apierrors.InternalError(w, "Внутренняя ошибка загрузки")
		return
	}

	resp := uploadResponse{
		Success:         true,
		URL:             result.URL,
		EmbedURL:        result.EmbedURL,
		ItemID:          result.ItemID,
		Filename:        result.Filename,
		R2Verified:      result.R2Verified,
		ArchiveVerified: result.ArchiveVerified,
		IsVideo:         result.IsVideo,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}
