package bridge

import (
	"context"
	"time"

	"go.uber.org/zap"

	"telegram-bridge/internal/autofill"
	"telegram-bridge/internal/infra/logger"
	"telegram-bridge/internal/proxy"
	"telegram-bridge/internal/session"
)

// Имена полей autofill, которые читает авторизация.
const (
	FieldPhoneNumber = "phone_number"
	FieldPhoneCode   = "phone_code"
	FieldPassword    = "password"
)

// MaxAuthAttempts — сколько раз повторяется ввод кода или пароля.
const MaxAuthAttempts = 3

// DefaultMaxMediaBytes — предел размера одного элемента альбома.
const DefaultMaxMediaBytes int64 = 50 << 20

// ErrorCallback уведомляет о неверном вводе до повторного запроса значения.
type ErrorCallback func(ctx context.Context, err error)

// Device — «паспорт» клиента, который видит Telegram.
type Device struct {
	AppVersion    string
	DeviceModel   string
	SystemVersion string
}

// DefaultDevice — паспорт по умолчанию.
func DefaultDevice() Device {
	return Device{AppVersion: "TeleBridge v2", DeviceModel: "Linux", SystemVersion: "6.1"}
}

// ClientOpts — общие параметры обоих бэкендов.
type ClientOpts struct {
	APIID   int
	APIHash string

	// Session — готовая сессия; nil означает вход с нуля.
	Session *session.Record
	// InMemory — не хранить сессию на диске.
	InMemory bool
	// SessionsDir — каталог файловых сессий (если InMemory == false).
	SessionsDir string
	// ReceiveUpdates — подписываться ли на апдейты.
	ReceiveUpdates bool
	TestMode       bool

	// Fields хранит phone_number, phone_code и password.
	Fields *autofill.Autofill

	PhoneNumberError ErrorCallback
	PhoneCodeError   ErrorCallback
	PasswordError    ErrorCallback

	Proxy *proxy.Proxy

	Device        Device
	ThrottleRPS   int
	MaxMediaBytes int64

	Logger *zap.Logger
}

// Normalize заполняет пустые поля значениями по умолчанию.
func (o ClientOpts) Normalize() ClientOpts {
	if o.Fields == nil {
		o.Fields = autofill.New(autofill.DefaultTimeout)
	}
	if o.Device == (Device{}) {
		o.Device = DefaultDevice()
	}
	if o.ThrottleRPS <= 0 {
		o.ThrottleRPS = 5
	}
	if o.MaxMediaBytes <= 0 {
		o.MaxMediaBytes = DefaultMaxMediaBytes
	}
	if o.SessionsDir == "" {
		o.SessionsDir = "sessions"
	}
	if o.Logger == nil {
		o.Logger = logger.Logger()
	}
	return o
}

// AutofillTimeout — таймаут разрешения полей.
func (o ClientOpts) AutofillTimeout() time.Duration {
	if o.Fields == nil {
		return autofill.DefaultTimeout
	}
	return o.Fields.Timeout()
}

// Notify вызывает колбэк, если он задан.
func (cb ErrorCallback) Notify(ctx context.Context, err error) {
	if cb != nil {
		cb(ctx, err)
	}
}
