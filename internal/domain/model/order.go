// Пакет model — доменные модели Delivery Module.
package model

import (
	"time"

	"github.com/waqaskhan1437/wishesu-sub002/internal/domain/status"
)

// Track — ссылка на дополнительную дорожку доставленного видео
// (аудио, субтитры).
type Track struct {
	Kind  string `json:"kind"`
	Label string `json:"label,omitempty"`
	URL   string `json:"url"`
}

// DeliveredVideoMetadata — структурированные метаданные доставленного
// видео. Хранятся в orders.delivered_video_metadata (jsonb).
type DeliveredVideoMetadata struct {
	// EmbedURL — ссылка для встраивания плеера
	EmbedURL string `json:"embed_url,omitempty"`
	// ItemID — идентификатор объекта в постоянном архиве
	ItemID string `json:"item_id,omitempty"`
	// SubtitlesURL — ссылка на файл субтитров
	SubtitlesURL string `json:"subtitles_url,omitempty"`
	// Tracks — дополнительные дорожки
	Tracks []Track `json:"tracks,omitempty"`
	// Verified — подтверждена ли индексация в постоянном архиве.
	// false — soft success: ссылка может кратковременно отдавать 404.
	Verified bool `json:"verified"`
	// DeliveredAt — момент доставки
	DeliveredAt time.Time `json:"delivered_at"`
}

// Order — заказ магазина. Владелец строки — Delivery Module:
// статусные переходы и delivered_* поля меняются только здесь.
type Order struct {
	// OrderID — внешний идентификатор заказа
	OrderID string
	// ProductID — идентификатор товара
	ProductID string
	// ProductTitle — название товара на момент покупки
	ProductTitle string
	// Email — адрес покупателя для уведомлений
	Email string
	// Status — статус жизненного цикла
	Status status.OrderStatus
	// DeliveredVideoURL — постоянная ссылка на доставленное видео
	DeliveredVideoURL *string
	// DeliveredThumbnailURL — постоянная ссылка на превью
	DeliveredThumbnailURL *string
	// DeliveredVideoMetadata — структурированные метаданные доставки
	DeliveredVideoMetadata *DeliveredVideoMetadata
	// RevisionCount — количество запрошенных правок (монотонный)
	RevisionCount int
	// RevisionRequested — есть ли открытый запрос правок
	RevisionRequested bool
	// RevisionReason — причина последнего запроса правок
	RevisionReason *string
	// DeliveryTimeMinutes — обещанное время доставки
	DeliveryTimeMinutes int
	// ArchiveURL — ссылка на страницу заказа в архиве (редактируется оператором)
	ArchiveURL *string
	// PortfolioEnabled — разрешён ли показ в портфолио
	PortfolioEnabled bool
	// CreatedAt — момент создания (оплаты)
	CreatedAt time.Time
	// DeliveredAt — момент доставки; заполнен ⇔ Status == delivered
	DeliveredAt *time.Time
	// UpdatedAt — момент последнего изменения строки
	UpdatedAt time.Time
}

// IsAbandoned сообщает, подлежит ли paid-заказ автоэкспирации:
// оплачен и старше ttl на момент now.
func (o *Order) IsAbandoned(now time.Time, ttl time.Duration) bool {
	return o.Status == status.StatusPaid && now.Sub(o.CreatedAt) > ttl
}

// OrderContext — срез заказа для событий уведомлений и описаний
// архивных объектов. Кэшируется в LRU.
type OrderContext struct {
	OrderID      string `json:"order_id"`
	ProductID    string `json:"product_id"`
	ProductTitle string `json:"product_title"`
	Email        string `json:"email"`
}
