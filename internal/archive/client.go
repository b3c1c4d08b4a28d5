// Пакет archive — HTTP-клиент постоянного внешнего архива.
// Загрузка — одиночный S3-style PUT с метаданными в заголовках,
// верификация — HEAD по download-ссылке объекта.
package archive

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// ItemMetadata — описательные метаданные архивного объекта.
// Передаются заголовками x-archive-meta-* при загрузке.
type ItemMetadata struct {
	// MediaType — тип медиа (movies, data)
	MediaType string
	// Collection — коллекция архива
	Collection string
	// Title — человекочитаемое название
	Title string
	// Description — описание (из заказа или generic)
	Description string
	// Language — язык контента
	Language string
}

// ConnectError — архив недоступен на сетевом уровне.
type ConnectError struct {
	Err error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("архив недоступен: %v", e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// UploadError — архив отверг загрузку (non-2xx).
type UploadError struct {
	StatusCode int
	Body       string
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("архив отверг загрузку: статус %d: %s", e.StatusCode, e.Body)
}

// Client — клиент постоянного архива.
type Client struct {
	httpClient   *http.Client
	uploadBase   string
	downloadBase string
	accessKey    string
	secretKey    string
	logger       *slog.Logger
}

// New создаёт клиент архива.
// uploadBase — базовый URL S3-style upload endpoint.
// downloadBase — базовый URL выдачи объектов (для верификации и ссылок).
func New(uploadBase, downloadBase, accessKey, secretKey string, logger *slog.Logger) *Client {
	return &Client{
		httpClient:   &http.Client{Timeout: 5 * time.Minute},
		uploadBase:   strings.TrimRight(uploadBase, "/"),
		downloadBase: strings.TrimRight(downloadBase, "/"),
		accessKey:    accessKey,
		secretKey:    secretKey,
		logger:       logger.With(slog.String("component", "archive_client")),
	}
}

// Put загружает объект в архив одиночным PUT.
// itemID/filename образуют путь объекта, meta уходит заголовками.
// Ошибки: *ConnectError (сеть), *UploadError (non-2xx).
func (c *Client) Put(ctx context.Context, itemID, filename string, body io.Reader, size int64, contentType string, meta ItemMetadata) error {
	reqURL := fmt.Sprintf("%s/%s/%s", c.uploadBase, itemID, filename)

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, reqURL, body)
	if err != nil {
		return fmt.Errorf("создание запроса Put: %w", err)
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", fmt.Sprintf("LOW %s:%s", c.accessKey, c.secretKey))
	req.Header.Set("x-amz-auto-make-bucket", "1")
	req.Header.Set("x-archive-meta-mediatype", meta.MediaType)
	req.Header.Set("x-archive-meta-collection", meta.Collection)
	req.Header.Set("x-archive-meta-title", meta.Title)
	req.Header.Set("x-archive-meta-description", meta.Description)
	req.Header.Set("x-archive-meta-language", meta.Language)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &ConnectError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &UploadError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	c.logger.Info("Объект загружен в архив",
		slog.String("item_id", itemID),
		slog.String("filename", filename),
		slog.Int64("size", size),
	)
	return nil
}

// Exists проверяет, проиндексирован ли объект архивом (HEAD по
// download-ссылке). 200 — объект доступен, 404 — ещё нет.
func (c *Client) Exists(ctx context.Context, itemID, filename string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.DownloadURL(itemID, filename), nil)
	if err != nil {
		return false, fmt.Errorf("создание запроса Exists: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, &ConnectError{Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode <= 299:
		return true, nil
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("архив вернул статус %d на HEAD %s/%s", resp.StatusCode, itemID, filename)
	}
}

// DownloadURL возвращает постоянную download-ссылку объекта.
func (c *Client) DownloadURL(itemID, filename string) string {
	return fmt.Sprintf("%s/%s/%s", c.downloadBase, itemID, filename)
}

// EmbedURL возвращает embed-ссылку плеера архива для объекта.
func (c *Client) EmbedURL(itemID string) string {
	base := c.downloadBase
	if idx := strings.Index(base, "/download"); idx != -1 {
		base = base[:idx]
	}
	return fmt.Sprintf("%s/embed/%s", base, itemID)
}
