// Package dispatcher связывает один аккаунт с его клиентом: на каждое
// входящее сообщение отбрасывает дубликаты, разрешает чат и отправителя
// через resolver.Guard и передаёт нормализованное событие в Sink.
//
// Диспетчер владеет клиентом целиком: запускает, останавливает,
// перезапускает и при обрыве соединения через прокси пересобирает клиента
// без прокси.
package dispatcher

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"telegram-bridge/internal/bridge"
	"telegram-bridge/internal/infra/concurrency"
	"telegram-bridge/internal/infra/logger"
	"telegram-bridge/internal/resolver"
)

// DefaultRestartDelay — пауза между остановкой и новым стартом.
const DefaultRestartDelay = time.Second

var (
	// ErrNoFactory возвращается New без фабрики клиента.
	ErrNoFactory = errors.New("dispatcher: client factory is required")
	// ErrNoBlockSet возвращается New без общего набора блокировок.
	ErrNoBlockSet = errors.New("dispatcher: shared block set is required")
)

// Factory собирает клиента аккаунта. withProxy == false означает сборку
// в обход настроенного прокси.
type Factory func(withProxy bool) (bridge.Client, error)

// Options настраивает Dispatcher.
type Options struct {
	AccountID int64
	Factory   Factory
	// UseProxy — у аккаунта настроен прокси, и первый клиент собирается через него.
	UseProxy bool

	// Dedup общий на процесс; nil отключает отбраковку дубликатов.
	Dedup *concurrency.Deduplicator
	// Blocks общий на процесс набор заблокированных аккаунтов. Обязателен.
	Blocks *resolver.BlockSet

	ResolverThreshold int
	ResolverCacheSize int
	ResolverChatTTL   time.Duration
	ResolverInputTTL  time.Duration

	Sink         Sink
	RestartDelay time.Duration
	Logger       *zap.Logger
}

// Dispatcher обслуживает один аккаунт.
type Dispatcher struct {
	id        string
	accountID int64
	factory   Factory
	dedup     *concurrency.Deduplicator
	sink      Sink
	delay     time.Duration
	log       *zap.Logger

	chatGuard   *resolver.Guard
	senderGuard *resolver.Guard

	mu       sync.RWMutex
	client   bridge.Client
	useProxy bool
}

// New собирает диспетчер и первого клиента. Сеть не трогается до Start.
func New(opts Options) (*Dispatcher, error) {
	if opts.Factory == nil {
		return nil, ErrNoFactory
	}
	if opts.Blocks == nil {
		return nil, ErrNoBlockSet
	}
	if opts.Sink == nil {
		opts.Sink = LogSink{}
	}
	if opts.RestartDelay < 0 {
		opts.RestartDelay = 0
	} else if opts.RestartDelay == 0 {
		opts.RestartDelay = DefaultRestartDelay
	}
	log := opts.Logger
	if log == nil {
		log = logger.Logger()
	}

	id := uuid.NewString()
	d := &Dispatcher{
		id:        id,
		accountID: opts.AccountID,
		factory:   opts.Factory,
		dedup:     opts.Dedup,
		sink:      opts.Sink,
		delay:     opts.RestartDelay,
		log:       log.Named("dispatcher").With(zap.Int64("account_id", opts.AccountID), zap.String("dispatcher_id", id)),
		useProxy:  opts.UseProxy,
	}
	guard := func(kind bridge.PeerKind) *resolver.Guard {
		return resolver.New(resolver.Options{
			AccountID: opts.AccountID,
			Kind:      kind,
			Blocks:    opts.Blocks,
			Threshold: opts.ResolverThreshold,
			CacheSize: opts.ResolverCacheSize,
			ChatTTL:   opts.ResolverChatTTL,
			InputTTL:  opts.ResolverInputTTL,
			Logger:    log,
		})
	}
	d.chatGuard = guard(bridge.PeerChat)
	d.senderGuard = guard(bridge.PeerSender)

	client, err := opts.Factory(opts.UseProxy)
	if err != nil {
		return nil, err
	}
	d.client = client
	d.ensureHandler(client)
	return d, nil
}

// ID — идентификатор экземпляра диспетчера.
func (d *Dispatcher) ID() string { return d.id }

// AccountID — аккаунт, которым владеет диспетчер.
func (d *Dispatcher) AccountID() int64 { return d.accountID }

// Client — текущий клиент. После отката с прокси это уже другой объект.
func (d *Dispatcher) Client() bridge.Client {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.client
}

// ensureHandler регистрирует обработчик, если у клиента его нет.
func (d *Dispatcher) ensureHandler(c bridge.Client) {
	if !c.HasHandlers() {
		c.AddMessageHandler(d.handle)
	}
}

// Start запускает клиента. Ошибка соединения при включённом прокси ведёт к
// одной попытке пересобрать клиента без прокси.
func (d *Dispatcher) Start(ctx context.Context) error {
	client := d.Client()
	d.ensureHandler(client)
	err := client.Start(ctx)
	if err == nil {
		d.log.Info("dispatcher started", zap.String("backend", string(client.Backend())))
		return nil
	}

	d.mu.RLock()
	useProxy := d.useProxy
	d.mu.RUnlock()
	if !useProxy || ctx.Err() != nil || !isConnError(err) {
		return err
	}

	d.log.Error("connect through proxy failed, retrying without proxy", zap.Error(err))
	if stopErr := client.Stop(ctx); stopErr != nil {
		d.log.Debug("stop after failed start", zap.Error(stopErr))
	}
	direct, ferr := d.factory(false)
	if ferr != nil {
		return errors.Join(err, ferr)
	}
	d.mu.Lock()
	d.client = direct
	d.useProxy = false
	d.mu.Unlock()

	d.ensureHandler(direct)
	if err := direct.Start(ctx); err != nil {
		d.log.Error("reconnect without proxy failed", zap.Error(err))
		return err
	}
	d.log.Info("dispatcher started without proxy", zap.String("backend", string(direct.Backend())))
	return nil
}

// Stop останавливает клиента. Ошибка только логируется.
func (d *Dispatcher) Stop(ctx context.Context) {
	if err := d.Client().Stop(ctx); err != nil {
		d.log.Warn("dispatcher stop failed", zap.Error(err))
		return
	}
	d.log.Info("dispatcher stopped")
}

// Restart — Stop, пауза и новый Start. Обработчик регистрируется заново,
// если клиент его потерял.
func (d *Dispatcher) Restart(ctx context.Context) error {
	d.Stop(ctx)
	d.ensureHandler(d.Client())

	timer := time.NewTimer(d.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}
	return d.Start(ctx)
}

// Run запускает диспетчер и держит его до отмены ctx.
func (d *Dispatcher) Run(ctx context.Context) error {
	if err := d.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second) //nolint:mnd // время на остановку
	defer cancel()
	d.Stop(stopCtx)
	return nil
}

// ClearResolverCache сбрасывает кэши неудач обоих резолверов.
func (d *Dispatcher) ClearResolverCache() {
	d.chatGuard.ClearCache()
	d.senderGuard.ClearCache()
}

// handle — обработчик входящих сообщений клиента.
func (d *Dispatcher) handle(ctx context.Context, c bridge.Client, m bridge.Message) error {
	if d.dedup != nil && d.dedup.Seen(d.accountID, m.ChatID(), m.ID()) {
		d.log.Debug("duplicate message skipped", zap.Int64("chat_id", m.ChatID()), zap.Int("msg_id", m.ID()))
		return nil
	}

	ev := newEvent(d, c, m)
	if peer, ok := d.chatGuard.TryResolve(ctx, c, m); ok {
		ev.Chat = &peer
	}
	if bridge.HasSender(m) {
		if peer, ok := d.senderGuard.TryResolve(ctx, c, m); ok {
			ev.SenderPeer = &peer
		}
	}
	return d.sink.Forward(ctx, ev)
}
