package gotd

import (
	"testing"

	"github.com/gotd/td/tg"
	"github.com/stretchr/testify/assert"
)

func TestRenderHTML(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		text     string
		entities []tg.MessageEntityClass
		want     string
	}{
		{
			name: "plain escaped",
			text: "a < b & c",
			want: "a &lt; b &amp; c",
		},
		{
			name:     "bold",
			text:     "This is bold text",
			entities: []tg.MessageEntityClass{&tg.MessageEntityBold{Offset: 8, Length: 4}},
			want:     "This is <b>bold</b> text",
		},
		{
			name: "nested",
			text: "hello world",
			entities: []tg.MessageEntityClass{
				&tg.MessageEntityItalic{Offset: 6, Length: 5},
				&tg.MessageEntityBold{Offset: 0, Length: 11},
			},
			want: "<b>hello <i>world</i></b>",
		},
		{
			name:     "utf16 offsets after emoji",
			text:     "😀 link",
			entities: []tg.MessageEntityClass{&tg.MessageEntityTextURL{Offset: 3, Length: 4, URL: "https://x.y/?a=1&b=2"}},
			want:     `😀 <a href="https://x.y/?a=1&amp;b=2">link</a>`,
		},
		{
			name:     "pre with language",
			text:     "x := 1",
			entities: []tg.MessageEntityClass{&tg.MessageEntityPre{Offset: 0, Length: 6, Language: "go"}},
			want:     `<pre><code class="language-go">x := 1</code></pre>`,
		},
		{
			name:     "mention name",
			text:     "hi Bob",
			entities: []tg.MessageEntityClass{&tg.MessageEntityMentionName{Offset: 3, Length: 3, UserID: 42}},
			want:     `hi <a href="tg://user?id=42">Bob</a>`,
		},
		{
			name:     "unknown entity is ignored",
			text:     "#tag",
			entities: []tg.MessageEntityClass{&tg.MessageEntityHashtag{Offset: 0, Length: 4}},
			want:     "#tag",
		},
		{
			name:     "out of range is clamped",
			text:     "abc",
			entities: []tg.MessageEntityClass{&tg.MessageEntityCode{Offset: 1, Length: 10}},
			want:     "a<code>bc</code>",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, RenderHTML(tt.text, tt.entities))
		})
	}
}
