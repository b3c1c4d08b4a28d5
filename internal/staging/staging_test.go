package staging

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("Ошибка создания Store: %v", err)
	}
	return store
}

func TestPutAndStat_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	data := []byte("test video payload")
	key := Key("item-1", "video.mp4")

	size, err := store.Put(key, bytes.NewReader(data), "video/mp4", 1024)
	if err != nil {
		t.Fatalf("Put: неожиданная ошибка: %v", err)
	}
	if size != int64(len(data)) {
		t.Errorf("Put size: хотели %d, получили %d", len(data), size)
	}

	obj, err := store.Stat(key)
	if err != nil {
		t.Fatalf("Stat: неожиданная ошибка: %v", err)
	}
	if obj.Size != int64(len(data)) {
		t.Errorf("Stat size: хотели %d, получили %d", len(data), obj.Size)
	}
	if obj.ContentType != "video/mp4" {
		t.Errorf("ContentType: хотели video/mp4, получили %s", obj.ContentType)
	}

	rc, err := store.Open(key)
	if err != nil {
		t.Fatalf("Open: неожиданная ошибка: %v", err)
	}
	defer rc.Close()

	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll: неожиданная ошибка: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("Прочитанные данные не совпадают с записанными")
	}
}

func TestPut_ExactLimitAccepted(t *testing.T) {
	store := newTestStore(t)
	data := bytes.Repeat([]byte("a"), 100)

	size, err := store.Put(Key("item-2", "exact.bin"), bytes.NewReader(data), "application/octet-stream", 100)
	if err != nil {
		t.Fatalf("Put: файл ровно в лимит должен приниматься: %v", err)
	}
	if size != 100 {
		t.Errorf("size: хотели 100, получили %d", size)
	}
}

func TestPut_OverLimitRejected(t *testing.T) {
	store := newTestStore(t)
	data := bytes.Repeat([]byte("a"), 101)
	key := Key("item-3", "over.bin")

	_, err := store.Put(key, bytes.NewReader(data), "application/octet-stream", 100)
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("Put: хотели ErrTooLarge, получили %v", err)
	}

	// Объект не должен появиться в хранилище
	if _, err := store.Stat(key); !errors.Is(err, ErrNotFound) {
		t.Errorf("Stat: после превышения лимита объект не должен существовать, получили %v", err)
	}
}

func TestPut_EmptyPayloadRejected(t *testing.T) {
	store := newTestStore(t)
	key := Key("item-5", "empty.bin")

	_, err := store.Put(key, strings.NewReader(""), "application/octet-stream", 100)
	if !errors.Is(err, ErrEmpty) {
		t.Fatalf("Put: хотели ErrEmpty, получили %v", err)
	}
	if _, err := store.Stat(key); !errors.Is(err, ErrNotFound) {
		t.Errorf("Stat: пустой объект не должен существовать, получили %v", err)
	}
}

func TestPut_EmptyPayloadKeepsPreviousVersion(t *testing.T) {
	store := newTestStore(t)
	key := Key("item-6", "video.mp4")

	if _, err := store.Put(key, strings.NewReader("валидная версия"), "video/mp4", 1024); err != nil {
		t.Fatalf("Put #1: %v", err)
	}

	if _, err := store.Put(key, strings.NewReader(""), "video/mp4", 1024); !errors.Is(err, ErrEmpty) {
		t.Fatalf("Put #2: хотели ErrEmpty, получили %v", err)
	}

	// Прежняя версия остаётся на месте
	rc, err := store.Open(key)
	if err != nil {
		t.Fatalf("Open: объект должен пережить пустой Put: %v", err)
	}
	defer rc.Close()

	got, _ := io.ReadAll(rc)
	if string(got) != "валидная версия" {
		t.Errorf("Содержимое: хотели %q, получили %q", "валидная версия", string(got))
	}
}

func TestPut_OverwriteSameKey(t *testing.T) {
	store := newTestStore(t)
	key := Key("item-4", "video.mp4")

	if _, err := store.Put(key, strings.NewReader("первая версия"), "video/mp4", 1024); err != nil {
		t.Fatalf("Put #1: %v", err)
	}
	if _, err := store.Put(key, strings.NewReader("вторая"), "video/mp4", 1024); err != nil {
		t.Fatalf("Put #2: %v", err)
	}

	rc, err := store.Open(key)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()

	got, _ := io.ReadAll(rc)
	if string(got) != "вторая" {
		t.Errorf("Перезапись: хотели %q, получили %q", "вторая", string(got))
	}
}

func TestDelete_MissingNoError(t *testing.T) {
	store := newTestStore(t)
	if err := store.Delete(Key("ghost", "none.bin")); err != nil {
		t.Errorf("Delete несуществующего объекта: неожиданная ошибка: %v", err)
	}
}

func TestFullPath_Traversal(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Put("../escape.bin", strings.NewReader("x"), "text/plain", 10)
	if err == nil {
		t.Fatal("Put: ключ с ../ должен отклоняться")
	}
}

func TestDeleteOlderThan(t *testing.T) {
	store := newTestStore(t)

	oldKey := Key("item-old", "old.mp4")
	newKey := Key("item-new", "new.mp4")
	if _, err := store.Put(oldKey, strings.NewReader("old"), "video/mp4", 100); err != nil {
		t.Fatalf("Put old: %v", err)
	}
	if _, err := store.Put(newKey, strings.NewReader("new"), "video/mp4", 100); err != nil {
		t.Fatalf("Put new: %v", err)
	}

	// Состариваем первый объект
	oldPath := filepath.Join(store.BaseDir(), "temp", "item-old", "old.mp4")
	past := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(oldPath, past, past); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}

	count, err := store.DeleteOlderThan(time.Now().Add(-24 * time.Hour))
	if err != nil {
		t.Fatalf("DeleteOlderThan: %v", err)
	}
	if count != 1 {
		t.Errorf("count: хотели 1, получили %d", count)
	}

	if _, err := store.Stat(oldKey); !errors.Is(err, ErrNotFound) {
		t.Error("Старый объект должен быть удалён")
	}
	if _, err := store.Stat(newKey); err != nil {
		t.Errorf("Новый объект не должен быть затронут: %v", err)
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"video.mp4", "video.mp4"},
		{"my file (1).mp4", "myfile1.mp4"},
		{"../../etc/passwd", "etcpasswd"},
		{"wish_2026-08-28.mov", "wish_2026-08-28.mov"},
		{"...", ""},
	}

	for _, tt := range tests {
		if got := Sanitize(tt.in); got != tt.want {
			t.Errorf("Sanitize(%q): хотели %q, получили %q", tt.in, tt.want, got)
		}
	}
}
