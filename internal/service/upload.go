package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	apierrors "github.com/waqaskhan1437/wishesu-sub002/internal/api/errors"
	"github.com/waqaskhan1437/wishesu-sub002/internal/archive"
	"github.com/waqaskhan1437/wishesu-sub002/internal/staging"
)

var (
	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dm_uploads_total",
		Help: "Количество загрузок файлов по результату",
	}, []string{"result"})
	uploadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dm_upload_bytes_total",
		Help: "Суммарный объём загруженных файлов в байтах",
	})
	archiveVerifyTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dm_archive_verify_total",
		Help: "Результаты проверки доступности файла в архиве",
	}, []string{"result"})
	uploadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dm_upload_duration_seconds",
		Help:    "Длительность полного цикла загрузки",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})
)

// Расширения, считающиеся видео. Для них действует
// увеличенный лимит размера и строится embed-ссылка.
var videoExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".avi":  true,
	".mkv":  true,
	".webm": true,
	".m4v":  true,
}

// StagingStore — промежуточное хранилище загружаемых файлов.
type StagingStore interface {
	Put(key string, reader io.Reader, contentType string, maxSize int64) (int64, error)
	Open(key string) (io.ReadCloser, error)
	Stat(key string) (*staging.Object, error)
}

// ArchiveStore — постоянное архивное хранилище.
type ArchiveStore interface {
	Put(ctx context.Context, itemID, filename string, body io.Reader, size int64, contentType string, meta archive.ItemMetadata) error
	Exists(ctx context.Context, itemID, filename string) (bool, error)
	DownloadURL(itemID, filename string) string
	EmbedURL(itemID string) string
}

// UploadParams — параметры загрузки файла.
type UploadParams struct {
	ItemID           string
	Filename         string
	OriginalFilename string
	OrderID          string
	ContentType      string
	ContentLength    int64
	Body             io.Reader
}

// UploadResult — результат успешной загрузки.
// ArchiveVerified=false означает мягкий успех: файл принят архивом,
// но ещё не виден на download-узлах.
type UploadResult struct {
	URL             string `json:"url"`
	EmbedURL        string `json:"embedUrl,omitempty"`
	ItemID          string `json:"itemId"`
	Filename        string `json:"filename"`
	R2Verified      bool   `json:"r2Verified"`
	ArchiveVerified bool   `json:"archiveVerified"`
	IsVideo         bool   `json:"isVideo"`
}

// UploadFailure — ошибка загрузки с привязкой к этапу конвейера.
type UploadFailure struct {
	Status     int
	Code       string
	Stage      string
	R2Uploaded bool
	Message    string
	Err        error
}

func (e *UploadFailure) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (этап %s): %v", e.Message, e.Stage, e.Err)
	}
	return fmt.Sprintf("%s (этап %s)", e.Message, e.Stage)
}

func (e *UploadFailure) Unwrap() error { return e.Err }

// UploadService — конвейер доставки медиафайлов:
// валидация, staging с контрольным чтением, выгрузка в архив,
// проверка долговечности.
type UploadService struct {
	staging      StagingStore
	archive      ArchiveStore
	contextCache *ContextCache
	logger       *slog.Logger

	maxVideoSize   int64
	maxFileSize    int64
	collection     string
	settleDelay    time.Duration
	verifyAttempts int
	verifyDelay    time.Duration
}

// NewUploadService создаёт сервис загрузки.
func NewUploadService(
	stagingStore StagingStore,
	archiveStore ArchiveStore,
	contextCache *ContextCache,
	maxVideoSize, maxFileSize int64,
	collection string,
	settleDelay time.Duration,
	verifyAttempts int,
	verifyDelay time.Duration,
	logger *slog.Logger,
) *UploadService {
	return &UploadService{
		staging:        stagingStore,
		archive:        archiveStore,
		contextCache:   contextCache,
		logger:         logger.With(slog.String("component", "upload_service")),
		maxVideoSize:   maxVideoSize,
		maxFileSize:    maxFileSize,
		collection:     collection,
		settleDelay:    settleDelay,
		verifyAttempts: verifyAttempts,
		verifyDelay:    verifyDelay,
	}
}

// IsVideoFilename сообщает, относится ли файл к видео по расширению.
func IsVideoFilename(filename string) bool {
	return videoExtensions[strings.ToLower(filepath.Ext(filename))]
}

// Upload проводит файл через весь конвейер. Возвращает *UploadFailure
// при любой ошибке, с указанием этапа и признака r2Uploaded.
func (s *UploadService) Upload(ctx context.Context, params UploadParams) (*UploadResult, error) {
	start := time.Now()
	defer func() { uploadDuration.Observe(time.Since(start).Seconds()) }()

	itemID := staging.Sanitize(params.ItemID)
	filename := staging.Sanitize(params.Filename)
	if itemID == "" || filename == "" {
		uploadsTotal.WithLabelValues("validation_error").Inc()
		return nil, &UploadFailure{
			Status:  http.StatusBadRequest,
			Code:    apierrors.CodeValidationError,
			Stage:   apierrors.StageValidation,
			Message: "itemId и filename обязательны",
		}
	}

	isVideo := IsVideoFilename(filename)
	maxSize := s.maxFileSize
	if isVideo {
		maxSize = s.maxVideoSize
	}

	// Досрочный отказ по заявленному размеру, до чтения тела
	if params.ContentLength > maxSize {
		uploadsTotal.WithLabelValues("too_large").Inc()
		return nil, s.tooLargeFailure(filename, params.ContentLength, maxSize, isVideo)
	}

	key := staging.Key(itemID, filename)
	contentType := params.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	// При ErrTooLarge и ErrEmpty rename в staging не происходит:
	// ранее staged-объект под этим ключом остаётся нетронутым.
	written, err := s.staging.Put(key, params.Body, contentType, maxSize)
	if err != nil {
		if errors.Is(err, staging.ErrTooLarge) {
			uploadsTotal.WithLabelValues("too_large").Inc()
			return nil, s.tooLargeFailure(filename, written, maxSize, isVideo)
		}
		if errors.Is(err, staging.ErrEmpty) {
			uploadsTotal.WithLabelValues("validation_error").Inc()
			return nil, &UploadFailure{
				Status:  http.StatusBadRequest,
				Code:    apierrors.CodeValidationError,
				Stage:   apierrors.StageValidation,
				Message: "пустое тело запроса",
			}
		}
		uploadsTotal.WithLabelValues("staging_error").Inc()
		return nil, &UploadFailure{
			Status:  http.StatusInternalServerError,
			Code:    apierrors.CodeStagingFailure,
			Stage:   apierrors.StageStaging,
			Message: "не удалось записать файл в промежуточное хранилище",
			Err:     err,
		}
	}

	// Контрольное чтение: объект должен существовать и совпадать по размеру.
	// Непрошедший верификацию staged-объект непригоден для архива,
	// поэтому r2Uploaded остаётся false.
	obj, err := s.staging.Stat(key)
	if err != nil || obj.Size != written {
		uploadsTotal.WithLabelValues("staging_verify_error").Inc()
		return nil, &UploadFailure{
			Status:  http.StatusInternalServerError,
			Code:    apierrors.CodeStagingVerifyFailure,
			Stage:   apierrors.StageStagingVerify,
			Message: "контрольное чтение промежуточного хранилища не прошло",
			Err:     err,
		}
	}

	meta := s.buildMetadata(ctx, params, isVideo)

	body, err := s.staging.Open(key)
	if err != nil {
		uploadsTotal.WithLabelValues("staging_verify_error").Inc()
		return nil, &UploadFailure{
			Status:  http.StatusInternalServerError,
			Code:    apierrors.CodeStagingVerifyFailure,
			Stage:   apierrors.StageStagingVerify,
			Message: "не удалось открыть файл из промежуточного хранилища",
			Err:     err,
		}
	}
	defer body.Close()

	if err := s.archive.Put(ctx, itemID, filename, body, written, contentType, meta); err != nil {
		var connErr *archive.ConnectError
		if errors.As(err, &connErr) {
			uploadsTotal.WithLabelValues("archive_connect_error").Inc()
			return nil, &UploadFailure{
				Status:     http.StatusBadGateway,
				Code:       apierrors.CodeArchiveConnectError,
				Stage:      apierrors.StageArchiveConnect,
				R2Uploaded: true,
				Message:    "архивное хранилище недоступно",
				Err:        err,
			}
		}
		uploadsTotal.WithLabelValues("archive_upload_error").Inc()
		return nil, &UploadFailure{
			Status:     http.StatusBadGateway,
			Code:       apierrors.CodeArchiveUploadFailure,
			Stage:      apierrors.StageArchiveUpload,
			R2Uploaded: true,
			Message:    "архивное хранилище отклонило файл",
			Err:        err,
		}
	}

	uploadBytesTotal.Add(float64(written))

	verified := s.verifyDurability(ctx, itemID, filename)

	result := &UploadResult{
		URL:             s.archive.DownloadURL(itemID, filename),
		ItemID:          itemID,
		Filename:        filename,
		R2Verified:      true,
		ArchiveVerified: verified,
		IsVideo:         isVideo,
	}
	if isVideo {
		result.EmbedURL = s.archive.EmbedURL(itemID)
	}

	uploadsTotal.WithLabelValues("success").Inc()
	s.logger.Info("Файл загружен",
		slog.String("item_id", itemID),
		slog.String("filename", filename),
		slog.Int64("size", written),
		slog.Bool("is_video", isVideo),
		slog.Bool("archive_verified", verified),
	)

	return result, nil
}

// verifyDurability ждёт settleDelay и опрашивает архив ограниченным
// числом HEAD-запросов. Исчерпание попыток — мягкий успех:
// файл принят архивом, подтверждение видимости не получено.
func (s *UploadService) verifyDurability(ctx context.Context, itemID, filename string) bool {
	select {
	case <-ctx.Done():
		archiveVerifyTotal.WithLabelValues("cancelled").Inc()
		return false
	case <-time.After(s.settleDelay):
	}

	policy := RetryPolicy{MaxAttempts: s.verifyAttempts, Delay: s.verifyDelay}
	err := policy.Do(ctx, func(ctx context.Context) error {
		ok, err := s.archive.Exists(ctx, itemID, filename)
		if err != nil {
			return err
		}
		if !ok {
			return errors.New("файл ещё не виден в архиве")
		}
		return nil
	})
	if err != nil {
		archiveVerifyTotal.WithLabelValues("unverified").Inc()
		s.logger.Warn("Проверка долговечности не подтвердила файл",
			slog.String("item_id", itemID),
			slog.String("filename", filename),
			slog.Any("error", err),
		)
		return false
	}

	archiveVerifyTotal.WithLabelValues("verified").Inc()
	return true
}

// buildMetadata формирует метаданные архивного item. При наличии
// контекста заказа описание включает товар и покупателя.
func (s *UploadService) buildMetadata(ctx context.Context, params UploadParams, isVideo bool) archive.ItemMetadata {
	mediaType := "data"
	if isVideo {
		mediaType = "movies"
	}

	title := params.OriginalFilename
	if title == "" {
		title = params.Filename
	}

	description := fmt.Sprintf("Файл %s", title)
	if s.contextCache != nil && params.OrderID != "" {
		octx, err := s.contextCache.Lookup(ctx, params.OrderID)
		if err != nil {
			s.logger.Warn("Не удалось получить контекст заказа",
				slog.String("order_id", params.OrderID),
				slog.Any("error", err),
			)
		} else if octx != nil {
			description = fmt.Sprintf("Доставка по заказу %s: %s (%s)",
				octx.OrderID, octx.ProductTitle, octx.Email)
		}
	}

	return archive.ItemMetadata{
		MediaType:   mediaType,
		Collection:  s.collection,
		Title:       title,
		Description: description,
		Language:    "rus",
	}
}

func (s *UploadService) tooLargeFailure(filename string, size, maxSize int64, isVideo bool) *UploadFailure {
	kind := "файла"
	if isVideo {
		kind = "видео"
	}
	return &UploadFailure{
		Status:  http.StatusBadRequest,
		Code:    apierrors.CodeFileTooLarge,
		Stage:   apierrors.StageValidation,
		Message: fmt.Sprintf("размер %s %q превышает лимит %d байт", kind, filename, maxSize),
	}
}
