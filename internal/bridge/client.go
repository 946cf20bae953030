package bridge

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"telegram-bridge/internal/session"
)

// Backend — имя бэкенда.
type Backend string

const (
	BackendGotd   Backend = "gotd"
	BackendGogram Backend = "gogram"
)

// Handler обрабатывает одно входящее сообщение. Ошибка логируется и не
// разрывает соединение.
type Handler func(ctx context.Context, c Client, m Message) error

// SendOptions — параметры SendMessage.
type SendOptions struct {
	// Reply — ответить на целевое сообщение.
	Reply bool
	// DisableLinkPreview — не разворачивать превью ссылок.
	DisableLinkPreview bool
}

// Client — единая поверхность клиента поверх gotd или gogram.
//
// Start/Stop и ошибки конструктора возвращаются вызывающему. Stop идемпотентен.
// Ошибки обработки отдельных апдейтов логируются и проглатываются.
type Client interface {
	Backend() Backend

	AddMessageHandler(h Handler)
	HasHandlers() bool

	Start(ctx context.Context) error
	Stop(ctx context.Context) error

	// SelfID — id авторизованного пользователя; 0 до Start.
	SelfID() int64
	ExportSession(ctx context.Context) (session.Record, error)

	SendMessage(ctx context.Context, target Message, text string, opts SendOptions) error
	ReadHistory(ctx context.Context, m Message) error

	GetMediaGroup(ctx context.Context, m Message) ([]InputMedia, error)
	GetMediaGroupMessages(ctx context.Context, m Message) ([]Message, error)
	DownloadMedia(ctx context.Context, ref FileRef) ([]byte, error)
	DownloadMediaFromMessage(ctx context.Context, m Message) ([]byte, error)

	// LookupChat — полное разрешение чата или отправителя (может ходить в сеть).
	LookupChat(ctx context.Context, m Message, kind PeerKind) (Peer, error)
	// LookupInputChat — дешёвое разрешение до input-пира.
	LookupInputChat(ctx context.Context, m Message, kind PeerKind) (Peer, error)
}

// HandlerSet — набор обработчиков под одним мьютексом. Dispatch берёт снимок
// под блокировкой, поэтому регистрация не пересекается с чтением таблицы.
type HandlerSet struct {
	mu       sync.RWMutex
	handlers []Handler
}

// Add регистрирует обработчик.
func (s *HandlerSet) Add(h Handler) {
	if h == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, h)
}

// Len — число обработчиков.
func (s *HandlerSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.handlers)
}

// Clear удаляет все обработчики.
func (s *HandlerSet) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = nil
}

func (s *HandlerSet) snapshot() []Handler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Handler, len(s.handlers))
	copy(out, s.handlers)
	return out
}

// Dispatch вызывает обработчики по очереди. Ошибки и паники логируются.
func (s *HandlerSet) Dispatch(ctx context.Context, c Client, m Message, log *zap.Logger) {
	for _, h := range s.snapshot() {
		if err := safeCall(ctx, h, c, m); err != nil {
			log.Warn("message handler failed",
				zap.Int64("chat_id", m.ChatID()),
				zap.Int("msg_id", m.ID()),
				zap.Error(err),
			)
		}
	}
}

func safeCall(ctx context.Context, h Handler, c Client, m Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	return h(ctx, c, m)
}

// PanicError — паника внутри обработчика, превращённая в ошибку.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("handler panic: %v", e.Value)
}
