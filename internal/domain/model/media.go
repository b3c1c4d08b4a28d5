package model

// MediaArtifact — транзитное значение upload-конвейера.
// Не персистится отдельно: при успешной доставке сливается в Order.
type MediaArtifact struct {
	// Key — детерминированный ключ staging-объекта: temp/{itemId}/{filename}
	Key string
	// ItemID — идентификатор объекта в постоянном архиве
	ItemID string
	// Filename — имя файла после санитизации
	Filename string
	// ContentType — разрешённый MIME-тип
	ContentType string
	// SizeBytes — размер payload в байтах
	SizeBytes int64
	// StagingLocation — путь объекта в эфемерном хранилище
	StagingLocation string
	// PermanentLocation — URL объекта в постоянном архиве
	PermanentLocation string
	// IsVideo — классифицирован ли файл как видео (по расширению)
	IsVideo bool
	// Verified — подтверждена ли индексация в постоянном архиве
	Verified bool
}
