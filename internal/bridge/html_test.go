package bridge_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"telegram-bridge/internal/bridge"
)

func TestRenderHTMLAdjacentAndUnknown(t *testing.T) {
	t.Parallel()

	got := bridge.RenderHTML("ab", []bridge.Entity{
		{Kind: bridge.EntityBold, Offset: 0, Length: 1},
		{Kind: bridge.EntityItalic, Offset: 1, Length: 1},
		{Kind: 0, Offset: 0, Length: 2},
	})
	assert.Equal(t, "<b>a</b><i>b</i>", got)

	assert.Equal(t, `<tg-emoji emoji-id="7">x</tg-emoji>`, bridge.RenderHTML("x", []bridge.Entity{
		{Kind: bridge.EntityCustomEmoji, Length: 1, EmojiID: 7},
	}))
}
