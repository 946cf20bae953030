// Package gotd — вариант bridge.Client поверх github.com/gotd/td.
//
// Клиент держит одно MTProto-соединение: Start поднимает его в фоне, проводит
// авторизацию по полям autofill и, если нужны апдейты, запускает updates.Manager.
// Ошибки обработчиков сообщений логируются и не рвут соединение.
package gotd

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/go-faster/errors"
	boltstor "github.com/gotd/contrib/bbolt"
	"github.com/gotd/contrib/middleware/floodwait"
	"github.com/gotd/contrib/middleware/ratelimit"
	tdsession "github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/dcs"
	"github.com/gotd/td/telegram/downloader"
	"github.com/gotd/td/telegram/message"
	tgupdates "github.com/gotd/td/telegram/updates"
	"github.com/gotd/td/tg"
	"go.etcd.io/bbolt"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/time/rate"

	"telegram-bridge/internal/bridge"
	"telegram-bridge/internal/session"
)

// lazyUpdateHandler позволяет назначить обработчик после создания клиента:
// менеджеру апдейтов нужен API, а API появляется только у готового клиента.
type lazyUpdateHandler struct {
	mu      sync.RWMutex
	handler telegram.UpdateHandler
}

func (h *lazyUpdateHandler) Handle(ctx context.Context, u tg.UpdatesClass) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.handler != nil {
		return h.handler.Handle(ctx, u)
	}
	return nil
}

func (h *lazyUpdateHandler) set(real telegram.UpdateHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handler = real
}

// Option настраивает gotd-специфичные параметры.
type Option func(*extra)

type extra struct {
	stateDB *bbolt.DB
	bucket  string
}

// WithStateDB хранит состояние апдейтов и пиры в общей базе bbolt.
// bucket — имя корзины пиров этого аккаунта.
func WithStateDB(db *bbolt.DB, bucket string) Option {
	return func(e *extra) {
		e.stateDB = db
		e.bucket = bucket
	}
}

// Client — bridge.Client поверх gotd.
type Client struct {
	opts     bridge.ClientOpts
	log      *zap.Logger
	handlers bridge.HandlerSet

	tg      *telegram.Client
	api     *tg.Client
	waiter  *floodwait.Waiter
	storage tdsession.Storage
	peers   *peerService
	updMgr  *tgupdates.Manager
	dl      *downloader.Downloader
	sender  *message.Sender

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	self   *tg.User
}

var _ bridge.Client = (*Client)(nil)

// New собирает клиента. Сеть не трогается до Start.
func New(opts bridge.ClientOpts, options ...Option) (*Client, error) {
	opts = opts.Normalize()
	if opts.APIID == 0 || opts.APIHash == "" {
		return nil, errors.New("api id and api hash are required")
	}
	var ex extra
	for _, o := range options {
		o(&ex)
	}

	c := &Client{
		opts:   opts,
		log:    opts.Logger.Named("gotd").With(zap.Int("api_id", opts.APIID)),
		waiter: floodwait.NewWaiter(),
		dl:     downloader.NewDownloader(),
	}

	st, err := c.sessionStorage()
	if err != nil {
		return nil, err
	}
	c.storage = st

	lazy := &lazyUpdateHandler{}
	tOpts := telegram.Options{
		SessionStorage: st,
		NoUpdates:      !opts.ReceiveUpdates,
		Middlewares: []telegram.Middleware{
			c.waiter,
			ratelimit.New(rate.Limit(opts.ThrottleRPS), opts.ThrottleRPS*2), //nolint:mnd // burst = 2*rate
		},
		Device: telegram.DeviceConfig{
			DeviceModel:   opts.Device.DeviceModel,
			SystemVersion: opts.Device.SystemVersion,
			AppVersion:    opts.Device.AppVersion,
		},
		Logger: opts.Logger.Named("mtproto").WithOptions(zap.IncreaseLevel(zapcore.WarnLevel)),
	}
	if opts.ReceiveUpdates {
		tOpts.UpdateHandler = lazy
	}
	if opts.TestMode {
		tOpts.DCList = dcs.Test()
	}
	if opts.Proxy != nil {
		dial, err := opts.Proxy.Dialer()
		if err != nil {
			return nil, err
		}
		tOpts.Resolver = dcs.Plain(dcs.PlainOptions{Dial: dcs.DialFunc(dial)})
	}

	c.tg = telegram.NewClient(opts.APIID, opts.APIHash, tOpts)
	c.api = c.tg.API()
	c.sender = message.NewSender(c.api)
	c.peers = newPeerService(c.api, ex.stateDB, ex.bucket)

	if opts.ReceiveUpdates {
		dispatcher := tg.NewUpdateDispatcher()
		dispatcher.OnNewMessage(func(ctx context.Context, e tg.Entities, u *tg.UpdateNewMessage) error {
			return c.onMessage(ctx, e, u.Message)
		})
		dispatcher.OnNewChannelMessage(func(ctx context.Context, e tg.Entities, u *tg.UpdateNewChannelMessage) error {
			return c.onMessage(ctx, e, u.Message)
		})

		var state tgupdates.StateStorage
		if ex.stateDB != nil {
			state = boltstor.NewStateStorage(ex.stateDB)
		} else {
			state = newJSONStateStorage(c.statePath())
		}
		c.updMgr = tgupdates.New(tgupdates.Config{
			Handler:      dispatcher,
			Storage:      state,
			AccessHasher: c.peers.mgr,
			Logger:       opts.Logger.Named("updates").WithOptions(zap.IncreaseLevel(zapcore.WarnLevel)),
		})
		lazy.set(c.peers.hook(c.updMgr))
	}
	return c, nil
}

// sessionStorage выбирает хранилище: память или файл <api_id>.session.
// Переданная запись сессии засевается в пустое хранилище.
func (c *Client) sessionStorage() (tdsession.Storage, error) {
	ctx := context.Background()
	if c.opts.InMemory {
		if c.opts.Session == nil {
			return new(tdsession.StorageMemory), nil
		}
		return c.opts.Session.MemoryStorage(ctx)
	}

	fs := &session.FileStorage{Path: filepath.Join(c.opts.SessionsDir, strconv.Itoa(c.opts.APIID)+".session")}
	if c.opts.Session == nil {
		return fs, nil
	}
	if _, err := fs.LoadSession(ctx); err == nil {
		return fs, nil
	} else if !errors.Is(err, tdsession.ErrNotFound) {
		return nil, err
	}
	data, err := c.opts.Session.Data()
	if err != nil {
		return nil, err
	}
	if err := (&tdsession.Loader{Storage: fs}).Save(ctx, data); err != nil {
		return nil, fmt.Errorf("seed session file: %w", err)
	}
	return fs, nil
}

func (c *Client) statePath() string {
	if c.opts.InMemory {
		return ""
	}
	return filepath.Join(c.opts.SessionsDir, strconv.Itoa(c.opts.APIID)+".state.json")
}

func (c *Client) onMessage(ctx context.Context, e tg.Entities, raw tg.MessageClass) error {
	msg, ok := raw.(*tg.Message)
	if !ok || msg.Out {
		return nil
	}
	c.handlers.Dispatch(ctx, c, NewMessage(msg, e), c.log)
	return nil
}

func (c *Client) Backend() bridge.Backend { return bridge.BackendGotd }

func (c *Client) AddMessageHandler(h bridge.Handler) { c.handlers.Add(h) }

func (c *Client) HasHandlers() bool { return c.handlers.Len() > 0 }

// API возвращает сырой RPC-клиент gotd.
func (c *Client) API() *tg.Client { return c.api }

func (c *Client) SelfID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.self == nil {
		return 0
	}
	return c.self.ID
}

// Start подключается, авторизуется и возвращает управление, когда клиент готов.
// Повторный вызов на запущенном клиенте ничего не делает.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.cancel, c.done = cancel, done
	c.mu.Unlock()

	ready := make(chan *tg.User, 1)
	runErr := make(chan error, 1)
	go func() {
		defer close(done)
		runErr <- c.run(runCtx, ready)
	}()

	select {
	case self := <-ready:
		c.mu.Lock()
		c.self = self
		c.mu.Unlock()
		c.log.Info("logged in",
			zap.Int64("user_id", self.ID),
			zap.String("username", self.Username),
			zap.Bool("bot", self.Bot),
		)
		go c.watch(runErr, done)
		return nil
	case err := <-runErr:
		c.reset(done)
		if err == nil {
			err = errors.New("client stopped before ready")
		}
		return err
	case <-ctx.Done():
		cancel()
		<-done
		c.reset(done)
		return ctx.Err()
	}
}

func (c *Client) run(ctx context.Context, ready chan<- *tg.User) error {
	return c.waiter.Run(ctx, func(ctx context.Context) error {
		return c.tg.Run(ctx, func(ctx context.Context) error {
			au := &authorizer{api: c.tg.Auth(), fields: c.opts.Fields, opts: c.opts, log: c.log}
			self, err := au.Run(ctx)
			if err != nil {
				return errors.Wrap(err, "auth")
			}
			if err := c.peers.LoadFromStorage(ctx); err != nil {
				c.log.Warn("load peers from storage", zap.Error(err))
			}
			ready <- self

			if c.updMgr == nil {
				<-ctx.Done()
				return ctx.Err()
			}
			return c.updMgr.Run(ctx, c.api, self.ID, tgupdates.AuthOptions{
				IsBot: self.Bot,
				OnStart: func(context.Context) {
					c.log.Debug("updates manager started")
				},
			})
		})
	})
}

// watch логирует падение соединения после успешного старта.
func (c *Client) watch(runErr <-chan error, done chan struct{}) {
	err := <-runErr
	if err != nil && !errors.Is(err, context.Canceled) {
		c.log.Error("client stopped", zap.Error(err))
	}
	c.reset(done)
}

// reset забывает запуск done, если он всё ещё текущий.
func (c *Client) reset(done chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done != done || c.cancel == nil {
		return
	}
	c.cancel()
	c.cancel = nil
}

// Stop гасит соединение и ждёт завершения. Остановленный клиент — не ошибка.
func (c *Client) Stop(ctx context.Context) error {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel = nil
	c.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ExportSession возвращает текущую сессию как session.Record.
func (c *Client) ExportSession(ctx context.Context) (session.Record, error) {
	data, err := session.LoadData(ctx, c.storage)
	if err != nil {
		return session.Record{}, err
	}
	rec, err := session.FromData(data, c.opts.APIID, c.opts.TestMode)
	if err != nil {
		return session.Record{}, err
	}
	c.mu.Lock()
	if c.self != nil {
		rec.UserID = c.self.ID
		rec.IsBot = c.self.Bot
	}
	c.mu.Unlock()
	return rec, nil
}
