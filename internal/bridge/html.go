package bridge

import (
	"html"
	"slices"
	"strconv"
	"strings"
	"unicode/utf16"
)

// EntityKind — тип форматирующей сущности текста.
type EntityKind int

const (
	EntityBold EntityKind = iota + 1
	EntityItalic
	EntityUnderline
	EntityStrike
	EntitySpoiler
	EntityCode
	EntityPre
	EntityTextURL
	EntityMentionName
	EntityBlockquote
	EntityCustomEmoji
)

// Entity — сущность в нейтральной форме. Смещения в кодовых единицах UTF-16.
type Entity struct {
	Kind     EntityKind
	Offset   int
	Length   int
	URL      string
	Language string
	UserID   int64
	EmojiID  int64
}

type tagEvent struct {
	pos   int
	open  bool
	order int // порядок открытия; закрытия идут в обратном порядке
	tag   string
}

// RenderHTML восстанавливает HTML-разметку из текста и сущностей.
// Неизвестные сущности пропускаются, текст экранируется.
func RenderHTML(text string, entities []Entity) string {
	if len(entities) == 0 {
		return html.EscapeString(text)
	}
	units := utf16.Encode([]rune(text))

	sorted := slices.Clone(entities)
	slices.SortStableFunc(sorted, func(a, b Entity) int {
		if a.Offset != b.Offset {
			return a.Offset - b.Offset
		}
		return b.Length - a.Length
	})

	events := make([]tagEvent, 0, 2*len(sorted))
	for i, e := range sorted {
		open, closeTag, ok := e.tags()
		if !ok {
			continue
		}
		start := clamp(e.Offset, 0, len(units))
		end := clamp(e.Offset+e.Length, start, len(units))
		events = append(events,
			tagEvent{pos: start, open: true, order: i, tag: open},
			tagEvent{pos: end, open: false, order: i, tag: closeTag},
		)
	}
	slices.SortStableFunc(events, func(a, b tagEvent) int {
		if a.pos != b.pos {
			return a.pos - b.pos
		}
		switch {
		case a.open == b.open && a.open:
			return a.order - b.order
		case a.open == b.open:
			return b.order - a.order
		case a.open:
			return 1
		default:
			return -1
		}
	})

	var sb strings.Builder
	last := 0
	for _, ev := range events {
		if ev.pos > last {
			sb.WriteString(html.EscapeString(string(utf16.Decode(units[last:ev.pos]))))
			last = ev.pos
		}
		sb.WriteString(ev.tag)
	}
	if last < len(units) {
		sb.WriteString(html.EscapeString(string(utf16.Decode(units[last:]))))
	}
	return sb.String()
}

func (e Entity) tags() (string, string, bool) {
	switch e.Kind {
	case EntityBold:
		return "<b>", "</b>", true
	case EntityItalic:
		return "<i>", "</i>", true
	case EntityUnderline:
		return "<u>", "</u>", true
	case EntityStrike:
		return "<s>", "</s>", true
	case EntitySpoiler:
		return "<tg-spoiler>", "</tg-spoiler>", true
	case EntityCode:
		return "<code>", "</code>", true
	case EntityPre:
		if e.Language != "" {
			return `<pre><code class="language-` + html.EscapeString(e.Language) + `">`, "</code></pre>", true
		}
		return "<pre>", "</pre>", true
	case EntityTextURL:
		return `<a href="` + html.EscapeString(e.URL) + `">`, "</a>", true
	case EntityMentionName:
		return `<a href="tg://user?id=` + strconv.FormatInt(e.UserID, 10) + `">`, "</a>", true
	case EntityBlockquote:
		return "<blockquote>", "</blockquote>", true
	case EntityCustomEmoji:
		return `<tg-emoji emoji-id="` + strconv.FormatInt(e.EmojiID, 10) + `">`, "</tg-emoji>", true
	default:
		return "", "", false
	}
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
