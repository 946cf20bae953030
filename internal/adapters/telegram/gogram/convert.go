package gogram

import (
	"strconv"
	"time"

	"github.com/amarnathcjd/gogram/telegram"

	"telegram-bridge/internal/bridge"
	"telegram-bridge/internal/tgutil"
)

func markedID(p telegram.Peer) int64 {
	switch v := p.(type) {
	case *telegram.PeerUser:
		return tgutil.Mark(tgutil.KindUser, v.UserID)
	case *telegram.PeerChat:
		return tgutil.Mark(tgutil.KindChat, v.ChatID)
	case *telegram.PeerChannel:
		return tgutil.Mark(tgutil.KindChannel, v.ChannelID)
	default:
		return 0
	}
}

// convertMessage снимает с нативного сообщения всё, что нужно аксессорам.
func convertMessage(nm *telegram.NewMessage) *Message {
	if nm == nil || nm.Message == nil {
		return nil
	}
	raw := nm.Message
	m := &Message{
		id:       int(raw.ID),
		out:      raw.Out,
		chatID:   markedID(raw.PeerID),
		text:     raw.Message,
		entities: convertEntities(raw.Entities),
		groupID:  raw.GroupedID,
		markup:   convertMarkup(raw.ReplyMarkup),
	}
	if h, ok := raw.ReplyTo.(*telegram.MessageReplyHeaderObj); ok {
		m.replyTo = int(h.ReplyToMsgID)
	}

	senderPeer := raw.FromID
	if senderPeer == nil {
		if _, private := raw.PeerID.(*telegram.PeerUser); private {
			senderPeer = raw.PeerID
		}
	}
	if pu, ok := senderPeer.(*telegram.PeerUser); ok {
		s := bridge.Sender{ID: pu.UserID}
		if u := nm.Sender; u != nil && u.ID == pu.UserID {
			s.FirstName, s.LastName, s.Username, s.IsBot = u.FirstName, u.LastName, u.Username, u.Bot
		}
		m.sender = &s
	}

	switch p := raw.PeerID.(type) {
	case *telegram.PeerChannel:
		if ch := nm.Channel; ch != nil && ch.ID == p.ChannelID {
			m.chatUsername = ch.Username
		}
	case *telegram.PeerUser:
		if m.sender != nil && m.sender.ID == p.UserID {
			m.chatUsername = m.sender.Username
		}
	}

	convertMedia(m, raw.Media)
	return m
}

func convertEntities(entities []telegram.MessageEntity) []bridge.Entity {
	out := make([]bridge.Entity, 0, len(entities))
	for _, e := range entities {
		var ent bridge.Entity
		switch v := e.(type) {
		case *telegram.MessageEntityBold:
			ent = bridge.Entity{Kind: bridge.EntityBold, Offset: int(v.Offset), Length: int(v.Length)}
		case *telegram.MessageEntityItalic:
			ent = bridge.Entity{Kind: bridge.EntityItalic, Offset: int(v.Offset), Length: int(v.Length)}
		case *telegram.MessageEntityUnderline:
			ent = bridge.Entity{Kind: bridge.EntityUnderline, Offset: int(v.Offset), Length: int(v.Length)}
		case *telegram.MessageEntityStrike:
			ent = bridge.Entity{Kind: bridge.EntityStrike, Offset: int(v.Offset), Length: int(v.Length)}
		case *telegram.MessageEntitySpoiler:
			ent = bridge.Entity{Kind: bridge.EntitySpoiler, Offset: int(v.Offset), Length: int(v.Length)}
		case *telegram.MessageEntityCode:
			ent = bridge.Entity{Kind: bridge.EntityCode, Offset: int(v.Offset), Length: int(v.Length)}
		case *telegram.MessageEntityPre:
			ent = bridge.Entity{Kind: bridge.EntityPre, Offset: int(v.Offset), Length: int(v.Length), Language: v.Language}
		case *telegram.MessageEntityTextURL:
			ent = bridge.Entity{Kind: bridge.EntityTextURL, Offset: int(v.Offset), Length: int(v.Length), URL: v.URL}
		case *telegram.MessageEntityMentionName:
			ent = bridge.Entity{Kind: bridge.EntityMentionName, Offset: int(v.Offset), Length: int(v.Length), UserID: v.UserID}
		case *telegram.MessageEntityBlockquote:
			ent = bridge.Entity{Kind: bridge.EntityBlockquote, Offset: int(v.Offset), Length: int(v.Length)}
		case *telegram.MessageEntityCustomEmoji:
			ent = bridge.Entity{Kind: bridge.EntityCustomEmoji, Offset: int(v.Offset), Length: int(v.Length), EmojiID: v.DocumentID}
		default:
			continue
		}
		out = append(out, ent)
	}
	return out
}

func convertMedia(m *Message, media telegram.MessageMedia) {
	switch v := media.(type) {
	case nil, *telegram.MessageMediaEmpty:
		return
	case *telegram.MessageMediaPhoto:
		m.hasMedia = true
		p, ok := v.Photo.(*telegram.PhotoObj)
		if !ok {
			return
		}
		m.flags.Photo = true
		thumb, size := largestPhotoSize(p.Sizes)
		m.size = size
		m.ref = &bridge.FileRef{
			Backend: bridge.BackendGogram, Type: bridge.MediaPhoto,
			ID: p.ID, AccessHash: p.AccessHash, FileReference: p.FileReference,
			ThumbSize: thumb, DCID: int(p.DcID), Size: size,
			ChatID: m.chatID, MessageID: m.id,
		}
	case *telegram.MessageMediaDocument:
		m.hasMedia = true
		d, ok := v.Document.(*telegram.DocumentObj)
		if !ok {
			return
		}
		var attrs bridge.DocumentAttrs
		for _, attr := range d.Attributes {
			switch a := attr.(type) {
			case *telegram.DocumentAttributeVideo:
				attrs.Video, attrs.Round = true, a.RoundMessage
			case *telegram.DocumentAttributeAudio:
				attrs.Audio, attrs.Voice = true, a.Voice
			case *telegram.DocumentAttributeAnimated:
				attrs.Animated = true
			case *telegram.DocumentAttributeSticker:
				attrs.Sticker = true
			case *telegram.DocumentAttributeFilename:
				m.fileName = a.FileName
			}
		}
		m.flags = attrs.Flags()
		m.size = d.Size
		m.ref = &bridge.FileRef{
			Backend: bridge.BackendGogram, Type: m.flags.Classify(),
			ID: d.ID, AccessHash: d.AccessHash, FileReference: d.FileReference,
			DCID: int(d.DcID), Size: d.Size,
			ChatID: m.chatID, MessageID: m.id,
		}
	case *telegram.MessageMediaPoll:
		m.hasMedia = true
		m.flags.Poll = true
		m.poll = convertPoll(v)
	case *telegram.MessageMediaContact:
		m.hasMedia, m.flags.Contact = true, true
	case *telegram.MessageMediaGeo, *telegram.MessageMediaGeoLive:
		m.hasMedia, m.flags.Location = true, true
	case *telegram.MessageMediaVenue:
		m.hasMedia, m.flags.Venue = true, true
	case *telegram.MessageMediaGame:
		m.hasMedia, m.flags.Game = true, true
	default:
		m.hasMedia = true
	}
}

func largestPhotoSize(sizes []telegram.PhotoSize) (string, int64) {
	var (
		typ  string
		best int64
	)
	for _, s := range sizes {
		switch v := s.(type) {
		case *telegram.PhotoSizeObj:
			if int64(v.Size) >= best {
				typ, best = v.Type, int64(v.Size)
			}
		case *telegram.PhotoSizeProgressive:
			if n := len(v.Sizes); n > 0 && int64(v.Sizes[n-1]) >= best {
				typ, best = v.Type, int64(v.Sizes[n-1])
			}
		}
	}
	return typ, best
}

// convertPoll соединяет варианты и результаты по индексу; без результатов
// счётчики остаются nil.
func convertPoll(media *telegram.MessageMediaPoll) *bridge.Poll {
	def := media.Poll
	if def == nil {
		return nil
	}
	p := &bridge.Poll{
		ID:                    strconv.FormatInt(def.ID, 10),
		IsClosed:              def.Closed,
		IsAnonymous:           !def.PublicVoters,
		Type:                  bridge.PollRegular,
		AllowsMultipleAnswers: def.MultipleChoice,
		OpenPeriod:            int(def.ClosePeriod),
		Options:               make([]bridge.PollOption, 0, len(def.Answers)),
	}
	if def.Question != nil {
		p.Question = def.Question.Text
	}
	if def.Quiz {
		p.Type = bridge.PollQuiz
	}
	if def.CloseDate != 0 {
		p.CloseDate = time.Unix(int64(def.CloseDate), 0).UTC()
	}

	var results []*telegram.PollAnswerVoters
	if res := media.Results; res != nil {
		results = res.Results
		if res.Results != nil {
			total := int(res.TotalVoters)
			p.TotalVoterCount = &total
		}
		p.Explanation = res.Solution
	}
	for i, answer := range def.Answers {
		if answer == nil {
			continue
		}
		opt := bridge.PollOption{Data: answer.Option}
		if answer.Text != nil {
			opt.Text = answer.Text.Text
		}
		if i < len(results) && results[i] != nil {
			r := results[i]
			voters := int(r.Voters)
			opt.VoterCount = &voters
			if r.Chosen {
				chosen := i
				p.ChosenOptionID = &chosen
			}
			if r.Correct {
				correct := i
				p.CorrectOptionID = &correct
			}
		}
		p.Options = append(p.Options, opt)
	}
	return p
}

func convertMarkup(markup telegram.ReplyMarkup) *bridge.InlineKeyboard {
	inline, ok := markup.(*telegram.ReplyInlineMarkup)
	if !ok {
		return nil
	}
	kb := &bridge.InlineKeyboard{Rows: make([][]bridge.InlineButton, 0, len(inline.Rows))}
	for _, row := range inline.Rows {
		if row == nil {
			continue
		}
		buttons := make([]bridge.InlineButton, 0, len(row.Buttons))
		for _, b := range row.Buttons {
			switch v := b.(type) {
			case *telegram.KeyboardButtonURL:
				buttons = append(buttons, bridge.InlineButton{Text: v.Text, URL: v.URL})
			case *telegram.KeyboardButtonCallback:
				buttons = append(buttons, bridge.InlineButton{Text: v.Text, CallbackData: v.Data})
			case *telegram.KeyboardButtonObj:
				buttons = append(buttons, bridge.InlineButton{Text: v.Text})
			}
		}
		kb.Rows = append(kb.Rows, buttons)
	}
	return kb
}
