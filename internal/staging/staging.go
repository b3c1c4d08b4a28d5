// Пакет staging — эфемерное staging-хранилище upload-конвейера.
// Объект приземляется сюда до пуша в постоянный архив и живёт
// не дольше StagingTTL (зачистку выполняет reaper).
//
// Ключ детерминированный: temp/{itemId}/{filename} — повторная
// загрузка с теми же параметрами перезаписывает объект.
package staging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrTooLarge — payload превысил переданный лимит.
// Запись прерывается до атомарного rename: объект в хранилище не появляется.
var ErrTooLarge = errors.New("payload превышает лимит размера")

// ErrEmpty — payload пустой. Как и при ErrTooLarge, rename не
// выполняется: прежняя версия объекта под этим ключом остаётся нетронутой.
var ErrEmpty = errors.New("пустой payload")

// ErrNotFound — staged-объект не найден.
var ErrNotFound = errors.New("staged-объект не найден")

// Store — staging-хранилище на локальном диске.
type Store struct {
	// baseDir — корневая директория staging (DM_STAGING_DIR)
	baseDir string
}

// Object — staged-объект и его атрибуты.
type Object struct {
	// Key — ключ объекта: temp/{itemId}/{filename}
	Key string
	// Size — размер в байтах
	Size int64
	// ContentType — MIME-тип, сохранённый рядом с объектом
	ContentType string
	// ModTime — момент записи
	ModTime time.Time
}

// New создаёт Store. Проверяет и создаёт корневую директорию.
func New(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать staging-директорию %s: %w", baseDir, err)
	}
	return &Store{baseDir: baseDir}, nil
}

// Key строит детерминированный ключ staging-объекта.
func Key(itemID, filename string) string {
	return fmt.Sprintf("temp/%s/%s", itemID, filename)
}

// Put записывает payload под ключом key с лимитом maxSize.
//
// Паттерн: temp файл → запись с контролем лимита → fsync → atomic rename.
// При превышении лимита, пустом payload или ошибке temp файл удаляется —
// объект под ключом key не появляется (или остаётся прежняя версия).
// Возвращает размер записанных данных.
func (s *Store) Put(key string, reader io.Reader, contentType string, maxSize int64) (int64, error) {
	fullPath, err := s.fullPath(key)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return 0, fmt.Errorf("ошибка создания директории объекта: %w", err)
	}

	tmpPath := fullPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return 0, fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	// Читаем на один байт больше лимита: ровно maxSize допустим,
	// maxSize+1 — превышение.
	size, err := io.Copy(f, io.LimitReader(reader, maxSize+1))
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return 0, fmt.Errorf("ошибка записи данных: %w", err)
	}
	if size > maxSize {
		f.Close()
		os.Remove(tmpPath)
		return 0, ErrTooLarge
	}
	if size == 0 {
		f.Close()
		os.Remove(tmpPath)
		return 0, ErrEmpty
	}

	// fsync для гарантии записи на диск
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return 0, fmt.Errorf("ошибка fsync: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	// Атомарный rename
	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	// Content-Type храним в sidecar-файле (у локального диска нет метаданных объекта)
	if err := os.WriteFile(fullPath+".ct", []byte(contentType), 0o640); err != nil {
		return 0, fmt.Errorf("ошибка записи content-type: %w", err)
	}

	return size, nil
}

// Open открывает staged-объект для чтения.
// Вызывающий код обязан закрыть ReadCloser.
func (s *Store) Open(key string) (io.ReadCloser, error) {
	fullPath, err := s.fullPath(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка открытия объекта %s: %w", key, err)
	}
	return f, nil
}

// Stat возвращает атрибуты staged-объекта.
// Используется для read-back верификации сразу после Put.
func (s *Store) Stat(key string) (*Object, error) {
	fullPath, err := s.fullPath(key)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка stat объекта %s: %w", key, err)
	}

	ct, _ := os.ReadFile(fullPath + ".ct")

	return &Object{
		Key:         key,
		Size:        info.Size(),
		ContentType: string(ct),
		ModTime:     info.ModTime(),
	}, nil
}

// Delete удаляет staged-объект и его sidecar.
// Возвращает nil, если объект уже не существует.
func (s *Store) Delete(key string) error {
	fullPath, err := s.fullPath(key)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления объекта %s: %w", key, err)
	}
	_ = os.Remove(fullPath + ".ct")
	return nil
}

// DeleteOlderThan удаляет staged-объекты старше cutoff.
// Возвращает количество удалённых объектов (sidecar-ы не считаются).
func (s *Store) DeleteOlderThan(cutoff time.Time) (int, error) {
	count := 0
	err := filepath.WalkDir(s.baseDir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if strings.HasSuffix(path, ".ct") || strings.HasSuffix(path, ".tmp") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil // Файл исчез между WalkDir и Info
		}
		if info.ModTime().Before(cutoff) {
			if rmErr := os.Remove(path); rmErr == nil {
				_ = os.Remove(path + ".ct")
				count++
			}
		}
		return nil
	})
	if err != nil {
		return count, fmt.Errorf("ошибка обхода staging-директории: %w", err)
	}
	return count, nil
}

// BaseDir возвращает корневую директорию staging.
func (s *Store) BaseDir() string {
	return s.baseDir
}

// fullPath резолвит ключ в путь на диске, запрещая выход за baseDir.
func (s *Store) fullPath(key string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(key))
	if cleaned == "." || strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("недопустимый ключ объекта: %q", key)
	}
	return filepath.Join(s.baseDir, cleaned), nil
}

// Sanitize убирает небезопасные символы из itemId/filename.
// Оставляет только буквы, цифры, точку, дефис и подчёркивание.
func Sanitize(s string) string {
	var result strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' || r == '.' {
			result.WriteRune(r)
		}
	}
	return strings.Trim(result.String(), ".")
}
