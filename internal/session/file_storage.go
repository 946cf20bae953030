package session

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/go-faster/errors"
	tdsession "github.com/gotd/td/session"
	"go.uber.org/zap"

	"telegram-bridge/internal/infra/logger"
	"telegram-bridge/internal/infra/storage"
)

// FileStorage реализует tdsession.Storage поверх файла. Используется клиентами,
// которые работают не в памяти: сессия переживает перезапуск процесса.
// OnStore, если задан, вызывается после каждой успешной записи.
type FileStorage struct {
	Path    string
	OnStore func()
	mux     sync.Mutex
}

var _ tdsession.Storage = (*FileStorage)(nil)

// LoadSession читает файл сессии с диска.
func (f *FileStorage) LoadSession(_ context.Context) ([]byte, error) {
	if f == nil {
		return nil, errors.New("nil session storage is invalid")
	}
	f.mux.Lock()
	defer f.mux.Unlock()

	data, err := os.ReadFile(f.Path)
	if os.IsNotExist(err) {
		return nil, tdsession.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "read session")
	}
	return data, nil
}

// StoreSession атомарно сохраняет сессию.
func (f *FileStorage) StoreSession(_ context.Context, data []byte) error {
	if f == nil {
		return errors.New("nil session storage is invalid")
	}

	f.mux.Lock()
	defer f.mux.Unlock()

	if err := storage.AtomicWriteFile(f.Path, data); err != nil {
		return fmt.Errorf("atomic write session: %w", err)
	}
	logger.Debug("session stored", zap.String("path", f.Path))
	if f.OnStore != nil {
		f.OnStore()
	}
	return nil
}
