package gotd

import (
	"github.com/gotd/td/tg"

	"telegram-bridge/internal/bridge"
)

// RenderHTML восстанавливает HTML-разметку из текста и сущностей gotd.
func RenderHTML(text string, entities []tg.MessageEntityClass) string {
	return bridge.RenderHTML(text, convertEntities(entities))
}

func convertEntities(entities []tg.MessageEntityClass) []bridge.Entity {
	out := make([]bridge.Entity, 0, len(entities))
	for _, e := range entities {
		ent := bridge.Entity{Offset: e.GetOffset(), Length: e.GetLength()}
		switch v := e.(type) {
		case *tg.MessageEntityBold:
			ent.Kind = bridge.EntityBold
		case *tg.MessageEntityItalic:
			ent.Kind = bridge.EntityItalic
		case *tg.MessageEntityUnderline:
			ent.Kind = bridge.EntityUnderline
		case *tg.MessageEntityStrike:
			ent.Kind = bridge.EntityStrike
		case *tg.MessageEntitySpoiler:
			ent.Kind = bridge.EntitySpoiler
		case *tg.MessageEntityCode:
			ent.Kind = bridge.EntityCode
		case *tg.MessageEntityPre:
			ent.Kind, ent.Language = bridge.EntityPre, v.Language
		case *tg.MessageEntityTextURL:
			ent.Kind, ent.URL = bridge.EntityTextURL, v.URL
		case *tg.MessageEntityMentionName:
			ent.Kind, ent.UserID = bridge.EntityMentionName, v.UserID
		case *tg.MessageEntityBlockquote:
			ent.Kind = bridge.EntityBlockquote
		case *tg.MessageEntityCustomEmoji:
			ent.Kind, ent.EmojiID = bridge.EntityCustomEmoji, v.DocumentID
		default:
			continue
		}
		out = append(out, ent)
	}
	return out
}
