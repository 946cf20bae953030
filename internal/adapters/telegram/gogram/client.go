// Package gogram — вариант bridge.Client поверх github.com/amarnathcjd/gogram.
//
// Всё обращение к gogram собрано в native.go; остальной код работает с
// узким интерфейсом nativeAPI и нейтральным Message.
package gogram

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"telegram-bridge/internal/bridge"
	"telegram-bridge/internal/infra/throttle"
	"telegram-bridge/internal/session"
)

// mediaCacheSize — сколько скачанных файлов держится в памяти.
const mediaCacheSize = 16

// errNotConnected — клиент уже отключён; Stop считает это успехом.
var errNotConnected = errors.New("client is not connected")

// errSignUpRequired — номер не зарегистрирован.
var errSignUpRequired = errors.New("sign up required")

// nativeAPI — операции gogram, которыми пользуется клиент. Ошибки RPC
// приходят как *tgerr.Error.
type nativeAPI interface {
	Connect() error
	Disconnect() error

	IsAuthorized() (bool, error)
	SendCode(phone string) (hash string, err error)
	SignIn(phone, hash, code string) error
	CheckPassword(password string) error
	Self() (id int64, bot bool, err error)
	ExportAuth() (authKey []byte, addr string, appID int, err error)

	OnMessage(h func(*Message))

	SendMessage(chatID int64, text string, replyTo int, noPreview bool) error
	ReadHistory(chatID int64, maxID int) error
	MediaGroup(chatID int64, msgID int) ([]*Message, error)
	Download(ref bridge.FileRef) ([]byte, error)

	Peer(id int64) (bridge.Peer, error)
	InputPeer(id int64) (bridge.Peer, error)
}

// Client реализует bridge.Client поверх gogram.
type Client struct {
	opts     bridge.ClientOpts
	log      *zap.Logger
	api      nativeAPI
	th       *throttle.Throttler
	handlers bridge.HandlerSet
	media    *lru.Cache[string, []byte]

	mu      sync.Mutex
	runCtx  context.Context
	cancel  context.CancelFunc
	started bool
	selfID  int64
	isBot   bool
}

var _ bridge.Client = (*Client)(nil)

// New создаёт клиент gogram. Соединение устанавливает Start.
func New(opts bridge.ClientOpts) (*Client, error) {
	opts = opts.Normalize()
	if opts.APIID == 0 || opts.APIHash == "" {
		return nil, errors.New("api id and api hash are required")
	}
	api, err := newNative(opts)
	if err != nil {
		return nil, err
	}
	return newWithAPI(opts, api), nil
}

func newWithAPI(opts bridge.ClientOpts, api nativeAPI) *Client {
	opts = opts.Normalize()
	media, _ := lru.New[string, []byte](mediaCacheSize)
	c := &Client{
		opts:  opts,
		log:   opts.Logger.Named("gogram"),
		api:   api,
		th:    throttle.New(opts.ThrottleRPS, throttle.WithWaitExtractors(throttle.FloodWait)),
		media: media,
	}
	api.OnMessage(c.onMessage)
	return c
}

func (c *Client) Backend() bridge.Backend { return bridge.BackendGogram }

func (c *Client) AddMessageHandler(h bridge.Handler) { c.handlers.Add(h) }

func (c *Client) HasHandlers() bool { return c.handlers.Len() > 0 }

func (c *Client) onMessage(m *Message) {
	if m == nil || m.out || !c.opts.ReceiveUpdates {
		return
	}
	c.mu.Lock()
	ctx := c.runCtx
	c.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}
	c.handlers.Dispatch(ctx, c, m, c.log)
}

// Start подключается и при необходимости проходит вход.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	if err := c.api.Connect(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	if err := c.authorize(ctx); err != nil {
		_ = c.api.Disconnect()
		return err
	}
	id, bot, err := c.api.Self()
	if err != nil {
		_ = c.api.Disconnect()
		return fmt.Errorf("get self: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.runCtx, c.cancel = runCtx, cancel
	c.started = true
	c.selfID, c.isBot = id, bot
	c.mu.Unlock()

	c.log.Info("client started", zap.Int64("self_id", id), zap.Bool("updates", c.opts.ReceiveUpdates))
	return nil
}

// Stop отключает клиент. Повторный вызов и «не подключён» — не ошибка.
func (c *Client) Stop(context.Context) error {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.started = false
	c.mu.Unlock()

	if err := c.api.Disconnect(); err != nil && !errors.Is(err, errNotConnected) {
		return fmt.Errorf("disconnect: %w", err)
	}
	return nil
}

func (c *Client) SelfID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selfID
}

// ExportSession собирает Record из ключа авторизации и адреса DC.
func (c *Client) ExportSession(context.Context) (session.Record, error) {
	key, addr, appID, err := c.api.ExportAuth()
	if err != nil {
		return session.Record{}, fmt.Errorf("export auth: %w", err)
	}
	rec, err := recordFromAuth(key, addr, appID)
	if err != nil {
		return session.Record{}, err
	}
	c.mu.Lock()
	rec.UserID, rec.IsBot = c.selfID, c.isBot
	c.mu.Unlock()
	return rec, nil
}

func (c *Client) SendMessage(ctx context.Context, target bridge.Message, text string, opts bridge.SendOptions) error {
	m, err := own(target)
	if err != nil {
		return err
	}
	replyTo := 0
	if opts.Reply {
		replyTo = m.id
	}
	err = c.th.Do(ctx, func() error {
		return c.api.SendMessage(m.chatID, text, replyTo, opts.DisableLinkPreview)
	})
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

func (c *Client) ReadHistory(ctx context.Context, target bridge.Message) error {
	m, err := own(target)
	if err != nil {
		return err
	}
	if err := c.th.Do(ctx, func() error { return c.api.ReadHistory(m.chatID, m.id) }); err != nil {
		return fmt.Errorf("read history: %w", err)
	}
	return nil
}

func peerID(m *Message, kind bridge.PeerKind) (int64, error) {
	if kind == bridge.PeerSender {
		if m.sender == nil {
			return 0, errors.New("message has no sender")
		}
		return m.sender.ID, nil
	}
	return m.chatID, nil
}

func (c *Client) LookupChat(ctx context.Context, bm bridge.Message, kind bridge.PeerKind) (bridge.Peer, error) {
	m, err := own(bm)
	if err != nil {
		return bridge.Peer{}, err
	}
	id, err := peerID(m, kind)
	if err != nil {
		return bridge.Peer{}, err
	}
	var peer bridge.Peer
	err = c.th.Do(ctx, func() (err error) {
		peer, err = c.api.Peer(id)
		return err
	})
	return peer, err
}

func (c *Client) LookupInputChat(ctx context.Context, bm bridge.Message, kind bridge.PeerKind) (bridge.Peer, error) {
	m, err := own(bm)
	if err != nil {
		return bridge.Peer{}, err
	}
	id, err := peerID(m, kind)
	if err != nil {
		return bridge.Peer{}, err
	}
	var peer bridge.Peer
	err = c.th.Do(ctx, func() (err error) {
		peer, err = c.api.InputPeer(id)
		return err
	})
	return peer, err
}

// recordFromAuth восстанавливает номер DC по адресу из таблицы.
func recordFromAuth(key []byte, addr string, appID int) (session.Record, error) {
	host := addr
	if h, _, err := net.SplitHostPort(addr); err == nil {
		host = h
	}
	dc, test, ok := session.LookupIP(host)
	if !ok {
		return session.Record{}, fmt.Errorf("%w: unknown data center address %q", session.ErrSessionFormat, addr)
	}
	ep, err := session.LookupDC(dc, test)
	if err != nil {
		return session.Record{}, err
	}
	rec := session.Record{
		DCID:     dc,
		APIID:    appID,
		HasAPIID: appID != 0,
		TestMode: test,
		AuthKey:  key,
		IP:       ep.IP,
		Port:     ep.Port,
	}
	if err := rec.Validate(); err != nil {
		return session.Record{}, err
	}
	return rec, nil
}
