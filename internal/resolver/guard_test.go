package resolver

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gotd/td/tgerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"telegram-bridge/internal/bridge"
)

type stubMessage struct {
	bridge.Message
	chatID int64
}

func (m stubMessage) ChatID() int64 { return m.chatID }

type stubLookuper struct {
	chatErr  error
	inputErr error
	chat     atomic.Int32
	input    atomic.Int32
}

func (s *stubLookuper) LookupChat(context.Context, bridge.Message, bridge.PeerKind) (bridge.Peer, error) {
	s.chat.Add(1)
	if s.chatErr != nil {
		return bridge.Peer{}, s.chatErr
	}
	return bridge.Peer{Type: bridge.PeerTypeChannel, ID: 1, Full: true}, nil
}

func (s *stubLookuper) LookupInputChat(context.Context, bridge.Message, bridge.PeerKind) (bridge.Peer, error) {
	s.input.Add(1)
	if s.inputErr != nil {
		return bridge.Peer{}, s.inputErr
	}
	return bridge.Peer{Type: bridge.PeerTypeChannel, ID: 1}, nil
}

func (s *stubLookuper) calls() int { return int(s.chat.Load() + s.input.Load()) }

func newGuard(blocks *BlockSet) *Guard {
	return New(Options{AccountID: 42, Blocks: blocks, Logger: zap.NewNop()})
}

func TestTryResolveSuccess(t *testing.T) {
	t.Parallel()

	g := newGuard(NewBlockSet(0, 0))
	l := &stubLookuper{}
	peer, ok := g.TryResolve(context.Background(), l, stubMessage{chatID: -100})
	require.True(t, ok)
	assert.True(t, peer.Full)
	assert.Equal(t, 0, g.ErrorCount())
}

func TestTryResolveFallsBackToInput(t *testing.T) {
	t.Parallel()

	g := newGuard(NewBlockSet(0, 0))
	l := &stubLookuper{chatErr: tgerr.New(400, "CHANNEL_PRIVATE")}
	m := stubMessage{chatID: -100}

	peer, ok := g.TryResolve(context.Background(), l, m)
	require.True(t, ok)
	assert.False(t, peer.Full)
	assert.Equal(t, 1, g.ErrorCount())

	// Полный lookup для этого чата больше не пробуется.
	_, ok = g.TryResolve(context.Background(), l, m)
	require.True(t, ok)
	assert.EqualValues(t, 1, l.chat.Load())
	assert.EqualValues(t, 2, l.input.Load())
}

func TestTryResolveSuppressesKnownBadChat(t *testing.T) {
	t.Parallel()

	g := newGuard(NewBlockSet(0, 0))
	boom := errors.New("boom")
	l := &stubLookuper{chatErr: boom, inputErr: boom}
	m := stubMessage{chatID: 7}

	_, ok := g.TryResolve(context.Background(), l, m)
	assert.False(t, ok)
	assert.Equal(t, 2, l.calls())
	assert.Equal(t, 2, g.ErrorCount())

	_, ok = g.TryResolve(context.Background(), l, m)
	assert.False(t, ok)
	assert.Equal(t, 2, l.calls())
}

func TestTryResolveThreshold(t *testing.T) {
	t.Parallel()

	blocks := NewBlockSet(0, time.Minute)
	g := newGuard(blocks)
	boom := errors.New("boom")
	l := &stubLookuper{chatErr: boom, inputErr: boom}
	ctx := context.Background()

	// Каждый новый чат даёт две ошибки; 26 чатов дают 52 > 50.
	for i := range 25 {
		_, ok := g.TryResolve(ctx, l, stubMessage{chatID: int64(i + 1)})
		require.False(t, ok)
	}
	assert.Equal(t, 50, g.ErrorCount())
	assert.False(t, blocks.Blocked(42))

	_, ok := g.TryResolve(ctx, l, stubMessage{chatID: 26})
	require.False(t, ok)
	assert.True(t, blocks.Blocked(42))
	assert.Equal(t, 0, g.ErrorCount())

	before := l.calls()
	for _, chatID := range []int64{1000, 2000, -1001234567890} {
		_, ok := g.TryResolve(ctx, l, stubMessage{chatID: chatID})
		assert.False(t, ok)
	}
	assert.Equal(t, before, l.calls(), "blocked account must not reach lookups")

	// Блокировка общая: второй Guard того же аккаунта тоже молчит.
	other := newGuard(blocks)
	_, ok = other.TryResolve(ctx, &stubLookuper{}, stubMessage{chatID: 1})
	assert.False(t, ok)
}

func TestTryResolveCooldownExpires(t *testing.T) {
	t.Parallel()

	blocks := NewBlockSet(0, 50*time.Millisecond)
	blocks.Block(42)
	g := newGuard(blocks)
	l := &stubLookuper{}

	_, ok := g.TryResolve(context.Background(), l, stubMessage{chatID: 1})
	assert.False(t, ok)

	require.Eventually(t, func() bool {
		return !blocks.Blocked(42)
	}, time.Second, 10*time.Millisecond)

	_, ok = g.TryResolve(context.Background(), l, stubMessage{chatID: 1})
	assert.True(t, ok)
}

func TestClearCache(t *testing.T) {
	t.Parallel()

	g := newGuard(NewBlockSet(0, 0))
	boom := errors.New("boom")
	l := &stubLookuper{chatErr: boom, inputErr: boom}
	m := stubMessage{chatID: 3}

	g.TryResolve(context.Background(), l, m)
	require.Equal(t, 2, g.ErrorCount())

	g.ClearCache()
	assert.Equal(t, 0, g.ErrorCount())

	g.TryResolve(context.Background(), l, m)
	assert.Equal(t, 4, l.calls())
}

func TestNewRequiresSharedBlockSet(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { New(Options{AccountID: 1, Logger: zap.NewNop()}) })
}
