package service

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/waqaskhan1437/wishesu-sub002/internal/archive"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeArchive — архив в памяти с настраиваемыми отказами.
type fakeArchive struct {
	mu          sync.Mutex
	items       map[string][]byte
	meta        map[string]archive.ItemMetadata
	putErr      error
	existsErr   error
	existsAfter int // количество Exists-вызовов до появления файла
	existsCalls int
}

func newFakeArchive() *fakeArchive {
	return &fakeArchive{
		items: make(map[string][]byte),
		meta:  make(map[string]archive.ItemMetadata),
	}
}

func (f *fakeArchive) key(itemID, filename string) string {
	return itemID + "/" + filename
}

func (f *fakeArchive) Put(ctx context.Context, itemID, filename string, body io.Reader, size int64, contentType string, meta archive.ItemMetadata) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.items[f.key(itemID, filename)] = data
	f.meta[f.key(itemID, filename)] = meta
	return nil
}

func (f *fakeArchive) Exists(ctx context.Context, itemID, filename string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.existsCalls++
	if f.existsErr != nil {
		return false, f.existsErr
	}
	if f.existsCalls <= f.existsAfter {
		return false, nil
	}
	_, ok := f.items[f.key(itemID, filename)]
	return ok, nil
}

func (f *fakeArchive) DownloadURL(itemID, filename string) string {
	return "https://archive.example.org/download/" + itemID + "/" + filename
}

func (f *fakeArchive) EmbedURL(itemID string) string {
	return "https://archive.example.org/embed/" + itemID
}
