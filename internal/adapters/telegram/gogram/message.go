package gogram

import (
	"telegram-bridge/internal/bridge"
)

// Message — представление сообщения gogram. Поля заполняются при конвертации
// нативного сообщения, поэтому аксессоры не ходят в сеть.
type Message struct {
	id           int
	out          bool
	chatID       int64
	chatUsername string
	sender       *bridge.Sender

	text     string
	entities []bridge.Entity
	replyTo  int

	hasMedia bool
	flags    bridge.MediaFlags
	size     int64
	ref      *bridge.FileRef
	fileName string
	groupID  int64

	poll   *bridge.Poll
	markup *bridge.InlineKeyboard
}

var _ bridge.Message = (*Message)(nil)

func (m *Message) Text() string { return m.text }

func (m *Message) HTML() string { return bridge.RenderHTML(m.text, m.entities) }

func (m *Message) Sender() (bridge.Sender, bool) {
	if m.sender == nil {
		return bridge.Sender{}, false
	}
	return *m.sender, true
}

func (m *Message) ChatID() int64 { return m.chatID }

func (m *Message) ChatUsername() string { return m.chatUsername }

func (m *Message) ID() int { return m.id }

func (m *Message) ReplyToID() (int, bool) { return m.replyTo, m.replyTo != 0 }

func (m *Message) Permalink() string {
	return bridge.Permalink(m.chatUsername, m.chatID, m.id)
}

func (m *Message) HasMedia() bool { return m.hasMedia }

func (m *Message) MediaType() bridge.MediaType { return m.flags.Classify() }

func (m *Message) MediaSize() (int64, bool) { return m.size, m.size > 0 }

func (m *Message) FileRef() (bridge.FileRef, bool) {
	if m.ref == nil {
		return bridge.FileRef{}, false
	}
	return *m.ref, true
}

func (m *Message) FileName() string { return m.fileName }

func (m *Message) MediaGroupID() (int64, bool) { return m.groupID, m.groupID != 0 }

func (m *Message) Poll() *bridge.Poll { return m.poll }

func (m *Message) ReplyMarkup() *bridge.InlineKeyboard { return m.markup }

// own приводит bridge.Message к сообщению этого бэкенда.
func own(m bridge.Message) (*Message, error) {
	msg, ok := m.(*Message)
	if !ok || msg == nil {
		return nil, bridge.ErrForeignMessage
	}
	return msg, nil
}
