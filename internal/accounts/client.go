package accounts

import (
	"errors"
	"fmt"
	"strconv"

	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	"telegram-bridge/internal/adapters/telegram/gogram"
	"telegram-bridge/internal/adapters/telegram/gotd"
	"telegram-bridge/internal/autofill"
	"telegram-bridge/internal/bridge"
	"telegram-bridge/internal/infra/config"
	"telegram-bridge/internal/infra/logger"
	"telegram-bridge/internal/proxy"
)

// Opener собирает клиентов для аккаунтов по конфигурации процесса.
type Opener struct {
	env     config.EnvConfig
	stateDB *bbolt.DB
	log     *zap.Logger
}

// NewOpener создаёт сборщик. stateDB — общая база состояния апдейтов gotd;
// nil означает JSON-файлы рядом с сессиями.
func NewOpener(env config.EnvConfig, stateDB *bbolt.DB, log *zap.Logger) *Opener {
	if log == nil {
		log = logger.Logger()
	}
	return &Opener{env: env, stateDB: stateDB, log: log}
}

// OpenClient собирает клиента по глобальной конфигурации. receiveUpdates ==
// false даёт клиента для разовых запросов.
func OpenClient(acc Protocol, receiveUpdates bool) (bridge.Client, error) {
	return NewOpener(config.Env(), nil, nil).Open(acc, receiveUpdates, true)
}

// BackendFor — бэкенд аккаунта: собственный или из конфигурации.
func (o *Opener) BackendFor(acc Protocol) string {
	if b, ok := acc.(interface{ BackendName() string }); ok && b.BackendName() != "" {
		return b.BackendName()
	}
	return o.env.Backend
}

// ProxyFor — прокси аккаунта или процесса; nil, если не задан.
func (o *Opener) ProxyFor(acc Protocol) (*proxy.Proxy, error) {
	raw := o.env.Proxy
	if p, ok := acc.(interface{ ProxyURL() string }); ok && p.ProxyURL() != "" {
		raw = p.ProxyURL()
	}
	if raw == "" {
		return nil, nil //nolint:nilnil // прокси не задан
	}
	px, err := proxy.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &px, nil
}

// Options собирает параметры клиента без обращения к сети. Аккаунт без
// сессии получает параметры для входа с нуля.
func (o *Opener) Options(acc Protocol, receiveUpdates, withProxy bool) (bridge.ClientOpts, error) {
	apiID, apiHash := acc.APIData()
	opts := bridge.ClientOpts{
		APIID:          apiID,
		APIHash:        apiHash,
		InMemory:       true,
		SessionsDir:    o.env.SessionsDir,
		ReceiveUpdates: receiveUpdates,
		TestMode:       o.env.TestDC,
		Fields:         autofill.New(o.env.AutofillTimeout),
		Device: bridge.Device{
			AppVersion:    o.env.AppVersion,
			DeviceModel:   o.env.DeviceModel,
			SystemVersion: o.env.SystemVersion,
		},
		ThrottleRPS:   o.env.ThrottleRPS,
		MaxMediaBytes: o.env.MediaGroupMaxBytes,
		Logger:        o.log.With(zap.Int64("account_id", acc.ID())),
	}
	if phone := acc.PhoneNumber(); phone != "" {
		opts.Fields.Set(bridge.FieldPhoneNumber, autofill.Literal(phone))
	}

	rec, err := Record(acc)
	switch {
	case err == nil:
		opts.Session = &rec
		opts.TestMode = opts.TestMode || rec.TestMode
	case !errors.Is(err, ErrNoSession):
		return bridge.ClientOpts{}, err
	}

	if withProxy {
		px, err := o.ProxyFor(acc)
		if err != nil {
			return bridge.ClientOpts{}, err
		}
		opts.Proxy = px
	}
	return opts, nil
}

// Open собирает клиента для сохранённого аккаунта.
func (o *Opener) Open(acc Protocol, receiveUpdates, withProxy bool) (bridge.Client, error) {
	opts, err := o.Options(acc, receiveUpdates, withProxy)
	if err != nil {
		return nil, err
	}
	return o.New(o.BackendFor(acc), acc.ID(), opts)
}

// Factory — сборщик клиентов аккаунта для диспетчера.
func (o *Opener) Factory(acc Protocol) func(withProxy bool) (bridge.Client, error) {
	return func(withProxy bool) (bridge.Client, error) {
		return o.Open(acc, true, withProxy)
	}
}

// New собирает клиента нужного бэкенда из готовых параметров.
func (o *Opener) New(backend string, accountID int64, opts bridge.ClientOpts) (bridge.Client, error) {
	switch backend {
	case config.BackendGogram:
		c, err := gogram.New(opts)
		if err != nil {
			return nil, err
		}
		return c, nil
	case config.BackendGotd, "":
		var options []gotd.Option
		if o.stateDB != nil {
			options = append(options, gotd.WithStateDB(o.stateDB, "peers_"+strconv.FormatInt(accountID, 10)))
		}
		c, err := gotd.New(opts, options...)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown backend %q", backend)
	}
}
