// Package resolver разрешает метаданные чата или отправителя входящего
// сообщения, не давая повторяющимся ошибкам долбить живое соединение.
//
// Guard помнит чаты, на которых падал полный и «input» lookup, и после
// серии ошибок блокирует аккаунт в общем BlockSet на время остывания.
package resolver

import (
	"context"
	"sync"
	"time"

	"github.com/gotd/td/tgerr"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"telegram-bridge/internal/bridge"
	"telegram-bridge/internal/infra/logger"
)

// Значения по умолчанию.
const (
	DefaultThreshold = 50
	DefaultCacheSize = 5000
	DefaultChatTTL   = 5 * time.Minute
	DefaultInputTTL  = 3 * time.Minute
)

// Lookuper — часть bridge.Client, нужная для разрешения.
type Lookuper interface {
	LookupChat(ctx context.Context, m bridge.Message, kind bridge.PeerKind) (bridge.Peer, error)
	LookupInputChat(ctx context.Context, m bridge.Message, kind bridge.PeerKind) (bridge.Peer, error)
}

// Options настраивает Guard.
type Options struct {
	AccountID int64
	Kind      bridge.PeerKind
	Blocks    *BlockSet
	Threshold int
	CacheSize int
	ChatTTL   time.Duration
	InputTTL  time.Duration
	Logger    *zap.Logger
}

// Guard принадлежит одному диспетчеру.
type Guard struct {
	accountID int64
	kind      bridge.PeerKind
	blocks    *BlockSet
	threshold int
	log       *zap.Logger

	chatFailed  *expirable.LRU[int64, struct{}]
	inputFailed *expirable.LRU[int64, struct{}]

	mu     sync.Mutex
	errors int
}

// New создаёт Guard. Blocks обязателен: набор блокировок общий на процесс и
// создаётся вызывающим, nil приводит к панике.
func New(opts Options) *Guard {
	if opts.Blocks == nil {
		panic("resolver: nil BlockSet")
	}
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultCacheSize
	}
	if opts.ChatTTL <= 0 {
		opts.ChatTTL = DefaultChatTTL
	}
	if opts.InputTTL <= 0 {
		opts.InputTTL = DefaultInputTTL
	}
	log := opts.Logger
	if log == nil {
		log = logger.Logger()
	}
	return &Guard{
		accountID:   opts.AccountID,
		kind:        opts.Kind,
		blocks:      opts.Blocks,
		threshold:   opts.Threshold,
		log:         log.Named("resolver").With(zap.Int64("account_id", opts.AccountID), zap.Stringer("kind", opts.Kind)),
		chatFailed:  expirable.NewLRU[int64, struct{}](opts.CacheSize, nil, opts.ChatTTL),
		inputFailed: expirable.NewLRU[int64, struct{}](opts.CacheSize, nil, opts.InputTTL),
	}
}

// TryResolve пытается получить пир сначала полным lookup, затем «input».
// Ошибки не возвращаются: ok == false означает «нет результата».
func (g *Guard) TryResolve(ctx context.Context, l Lookuper, m bridge.Message) (bridge.Peer, bool) {
	if g.blocks.Blocked(g.accountID) {
		return bridge.Peer{}, false
	}
	chatID := m.ChatID()

	if _, failed := g.chatFailed.Get(chatID); !failed {
		peer, err := l.LookupChat(ctx, m, g.kind)
		if err == nil {
			return peer, true
		}
		if tgerr.Is(err, "CHANNEL_PRIVATE") {
			g.log.Debug("chat is private", zap.Int64("chat_id", chatID))
		} else {
			g.log.Debug("chat lookup failed", zap.Int64("chat_id", chatID), zap.Error(err))
		}
		g.chatFailed.Add(chatID, struct{}{})
		g.inc()
	}

	if _, failed := g.inputFailed.Get(chatID); !failed {
		peer, err := l.LookupInputChat(ctx, m, g.kind)
		if err == nil {
			return peer, true
		}
		g.log.Debug("input chat lookup failed", zap.Int64("chat_id", chatID), zap.Error(err))
		g.inputFailed.Add(chatID, struct{}{})
		g.inc()
	}

	g.mu.Lock()
	tripped := g.errors > g.threshold
	if tripped {
		g.errors = 0
	}
	g.mu.Unlock()
	if tripped {
		g.log.Warn("too many lookup errors, resolution paused", zap.Duration("cooldown", g.blocks.TTL()))
		g.blocks.Block(g.accountID)
	}
	return bridge.Peer{}, false
}

func (g *Guard) inc() {
	g.mu.Lock()
	g.errors++
	g.mu.Unlock()
}

// ErrorCount — текущее значение счётчика ошибок.
func (g *Guard) ErrorCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.errors
}

// ClearCache сбрасывает кэши неудач и счётчик. Блокировка аккаунта остаётся.
func (g *Guard) ClearCache() {
	g.chatFailed.Purge()
	g.inputFailed.Purge()
	g.mu.Lock()
	g.errors = 0
	g.mu.Unlock()
}
