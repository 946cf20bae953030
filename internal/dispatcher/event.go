package dispatcher

import (
	"context"
	"time"

	"go.uber.org/zap"

	"telegram-bridge/internal/bridge"
	"telegram-bridge/internal/infra/logger"
)

// Event — нормализованное входящее сообщение, которое диспетчер отдаёт дальше.
type Event struct {
	DispatcherID string
	AccountID    int64
	Backend      bridge.Backend
	ReceivedAt   time.Time

	ChatID       int64
	ChatUsername string
	MessageID    int
	ReplyToID    int
	Text         string
	HTML         string
	Permalink    string

	MediaType    bridge.MediaType
	MediaGroupID int64
	Poll         *bridge.Poll
	ReplyMarkup  *bridge.InlineKeyboard

	Sender *bridge.Sender
	// Chat и SenderPeer пусты, если резолвер не смог или не стал их разрешать.
	Chat       *bridge.Peer
	SenderPeer *bridge.Peer

	// Message — исходное сообщение. Живёт не дольше вызова Forward.
	Message bridge.Message
	// Client — клиент, получивший сообщение; нужен для скачивания медиа и ответа.
	Client bridge.Client
}

func newEvent(d *Dispatcher, c bridge.Client, m bridge.Message) Event {
	ev := Event{
		DispatcherID: d.id,
		AccountID:    d.accountID,
		Backend:      c.Backend(),
		ReceivedAt:   time.Now(),
		ChatID:       m.ChatID(),
		ChatUsername: m.ChatUsername(),
		MessageID:    m.ID(),
		Text:         m.Text(),
		HTML:         m.HTML(),
		Permalink:    m.Permalink(),
		MediaType:    m.MediaType(),
		Poll:         m.Poll(),
		ReplyMarkup:  m.ReplyMarkup(),
		Message:      m,
		Client:       c,
	}
	if id, ok := m.ReplyToID(); ok {
		ev.ReplyToID = id
	}
	if gid, ok := m.MediaGroupID(); ok {
		ev.MediaGroupID = gid
	}
	if s, ok := m.Sender(); ok {
		ev.Sender = &s
	}
	return ev
}

// Sink принимает события диспетчера. Ошибка логируется клиентом и не рвёт
// соединение.
type Sink interface {
	Forward(ctx context.Context, ev Event) error
}

// SinkFunc — адаптер функции к Sink.
type SinkFunc func(ctx context.Context, ev Event) error

// Forward вызывает f.
func (f SinkFunc) Forward(ctx context.Context, ev Event) error { return f(ctx, ev) }

// LogSink пишет каждое событие в лог.
type LogSink struct {
	Logger *zap.Logger
}

// Forward логирует событие на уровне info.
func (s LogSink) Forward(_ context.Context, ev Event) error {
	log := s.Logger
	if log == nil {
		log = logger.Logger()
	}
	fields := []zap.Field{
		zap.Int64("account_id", ev.AccountID),
		zap.String("backend", string(ev.Backend)),
		zap.Int64("chat_id", ev.ChatID),
		zap.Int("msg_id", ev.MessageID),
		zap.Stringer("media", ev.MediaType),
	}
	if ev.Permalink != "" {
		fields = append(fields, zap.String("link", ev.Permalink))
	}
	if ev.Chat != nil && ev.Chat.Title != "" {
		fields = append(fields, zap.String("chat", ev.Chat.Title))
	}
	if ev.Sender != nil {
		fields = append(fields, zap.Int64("sender_id", ev.Sender.ID))
	}
	if ev.MediaGroupID != 0 {
		fields = append(fields, zap.Int64("group_id", ev.MediaGroupID))
	}
	log.Info(ev.Text, fields...)
	return nil
}
