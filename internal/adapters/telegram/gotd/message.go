package gotd

import (
	"github.com/gotd/td/tg"

	"telegram-bridge/internal/bridge"
	"telegram-bridge/internal/tgutil"
)

// Message — представление tg.Message вместе с сущностями апдейта.
type Message struct {
	msg  *tg.Message
	ents tg.Entities
}

var _ bridge.Message = (*Message)(nil)

// NewMessage оборачивает сообщение. Пустые карты сущностей допустимы.
func NewMessage(msg *tg.Message, ents tg.Entities) *Message {
	return &Message{msg: msg, ents: ents}
}

// Raw возвращает нативное сообщение.
func (m *Message) Raw() *tg.Message { return m.msg }

func (m *Message) Text() string { return m.msg.Message }

func (m *Message) HTML() string { return RenderHTML(m.msg.Message, m.msg.Entities) }

// senderPeer возвращает отправителя; в личке без from_id это сам собеседник.
func (m *Message) senderPeer() tg.PeerClass {
	if from, ok := m.msg.GetFromID(); ok {
		return from
	}
	if _, ok := m.msg.PeerID.(*tg.PeerUser); ok {
		return m.msg.PeerID
	}
	return nil
}

func (m *Message) Sender() (bridge.Sender, bool) {
	p, ok := m.senderPeer().(*tg.PeerUser)
	if !ok {
		return bridge.Sender{}, false
	}
	s := bridge.Sender{ID: p.UserID}
	if u, ok := m.ents.Users[p.UserID]; ok {
		s.FirstName = u.FirstName
		s.LastName = u.LastName
		s.Username = u.Username
		s.IsBot = u.Bot
	}
	return s, true
}

func (m *Message) ChatID() int64 { return tgutil.MarkedID(m.msg.PeerID) }

func (m *Message) ChatUsername() string {
	switch p := m.msg.PeerID.(type) {
	case *tg.PeerChannel:
		if ch, ok := m.ents.Channels[p.ChannelID]; ok {
			return ch.Username
		}
	case *tg.PeerUser:
		if u, ok := m.ents.Users[p.UserID]; ok {
			return u.Username
		}
	}
	return ""
}

func (m *Message) ID() int { return m.msg.ID }

func (m *Message) ReplyToID() (int, bool) {
	h, ok := m.msg.ReplyTo.(*tg.MessageReplyHeader)
	if !ok {
		return 0, false
	}
	return h.GetReplyToMsgID()
}

func (m *Message) Permalink() string {
	return bridge.Permalink(m.ChatUsername(), m.ChatID(), m.ID())
}

func (m *Message) HasMedia() bool {
	media, ok := m.msg.GetMedia()
	if !ok {
		return false
	}
	_, empty := media.(*tg.MessageMediaEmpty)
	return !empty
}

func (m *Message) MediaType() bridge.MediaType { return m.flags().Classify() }

func (m *Message) flags() bridge.MediaFlags {
	var f bridge.MediaFlags
	media, _ := m.msg.GetMedia()
	switch v := media.(type) {
	case *tg.MessageMediaPhoto:
		_, f.Photo = v.GetPhoto()
	case *tg.MessageMediaDocument:
		if doc, ok := document(v); ok {
			f = documentAttrs(doc).Flags()
		}
	case *tg.MessageMediaPoll:
		f.Poll = true
	case *tg.MessageMediaContact:
		f.Contact = true
	case *tg.MessageMediaGeo, *tg.MessageMediaGeoLive:
		f.Location = true
	case *tg.MessageMediaVenue:
		f.Venue = true
	case *tg.MessageMediaGame:
		f.Game = true
	}
	return f
}

func (m *Message) MediaSize() (int64, bool) {
	media, _ := m.msg.GetMedia()
	switch v := media.(type) {
	case *tg.MessageMediaPhoto:
		if p, ok := photo(v); ok {
			_, size := largestPhotoSize(p)
			return size, size > 0
		}
	case *tg.MessageMediaDocument:
		if doc, ok := document(v); ok {
			return doc.Size, true
		}
	}
	return 0, false
}

func (m *Message) FileRef() (bridge.FileRef, bool) {
	media, _ := m.msg.GetMedia()
	ref := bridge.FileRef{
		Backend:   bridge.BackendGotd,
		Type:      m.MediaType(),
		ChatID:    m.ChatID(),
		MessageID: m.ID(),
	}
	switch v := media.(type) {
	case *tg.MessageMediaPhoto:
		p, ok := photo(v)
		if !ok {
			return bridge.FileRef{}, false
		}
		thumb, size := largestPhotoSize(p)
		ref.ID, ref.AccessHash, ref.FileReference = p.ID, p.AccessHash, p.FileReference
		ref.ThumbSize, ref.Size, ref.DCID = thumb, size, p.DCID
		return ref, true
	case *tg.MessageMediaDocument:
		doc, ok := document(v)
		if !ok {
			return bridge.FileRef{}, false
		}
		ref.ID, ref.AccessHash, ref.FileReference = doc.ID, doc.AccessHash, doc.FileReference
		ref.Size, ref.DCID = doc.Size, doc.DCID
		return ref, true
	}
	return bridge.FileRef{}, false
}

func (m *Message) FileName() string {
	media, _ := m.msg.GetMedia()
	if v, ok := media.(*tg.MessageMediaDocument); ok {
		if doc, ok := document(v); ok {
			for _, attr := range doc.Attributes {
				if fn, ok := attr.(*tg.DocumentAttributeFilename); ok {
					return fn.FileName
				}
			}
		}
	}
	return ""
}

func (m *Message) MediaGroupID() (int64, bool) { return m.msg.GetGroupedID() }

func (m *Message) Poll() *bridge.Poll {
	media, _ := m.msg.GetMedia()
	if v, ok := media.(*tg.MessageMediaPoll); ok {
		return convertPoll(v)
	}
	return nil
}

func (m *Message) ReplyMarkup() *bridge.InlineKeyboard {
	markup, ok := m.msg.ReplyMarkup.(*tg.ReplyInlineMarkup)
	if !ok {
		return nil
	}
	kb := &bridge.InlineKeyboard{Rows: make([][]bridge.InlineButton, 0, len(markup.Rows))}
	for _, row := range markup.Rows {
		buttons := make([]bridge.InlineButton, 0, len(row.Buttons))
		for _, b := range row.Buttons {
			btn := bridge.InlineButton{Text: b.GetText()}
			switch v := b.(type) {
			case *tg.KeyboardButtonURL:
				btn.URL = v.URL
			case *tg.KeyboardButtonCallback:
				btn.CallbackData = v.Data
			}
			buttons = append(buttons, btn)
		}
		kb.Rows = append(kb.Rows, buttons)
	}
	return kb
}

func photo(v *tg.MessageMediaPhoto) (*tg.Photo, bool) {
	p, ok := v.GetPhoto()
	if !ok {
		return nil, false
	}
	raw, ok := p.(*tg.Photo)
	return raw, ok
}

func document(v *tg.MessageMediaDocument) (*tg.Document, bool) {
	d, ok := v.GetDocument()
	if !ok {
		return nil, false
	}
	raw, ok := d.(*tg.Document)
	return raw, ok
}

// documentAttrs собирает атрибуты, определяющие тип документа.
func documentAttrs(doc *tg.Document) bridge.DocumentAttrs {
	var a bridge.DocumentAttrs
	for _, attr := range doc.Attributes {
		switch v := attr.(type) {
		case *tg.DocumentAttributeVideo:
			a.Video, a.Round = true, v.RoundMessage
		case *tg.DocumentAttributeAudio:
			a.Audio, a.Voice = true, v.Voice
		case *tg.DocumentAttributeAnimated:
			a.Animated = true
		case *tg.DocumentAttributeSticker:
			a.Sticker = true
		}
	}
	return a
}

// largestPhotoSize выбирает самый крупный вариант фото для скачивания.
func largestPhotoSize(p *tg.Photo) (string, int64) {
	var (
		typ  string
		best int64
	)
	for _, s := range p.Sizes {
		var size int64
		switch v := s.(type) {
		case *tg.PhotoSize:
			size = int64(v.Size)
		case *tg.PhotoSizeProgressive:
			if n := len(v.Sizes); n > 0 {
				size = int64(v.Sizes[n-1])
			}
		case *tg.PhotoCachedSize:
			size = int64(len(v.Bytes))
		default:
			continue
		}
		if size >= best {
			typ, best = s.GetType(), size
		}
	}
	return typ, best
}
