// Package accounts хранит аккаунты Telegram и заводит новые.
//
// Аккаунт — это пара api_id/api_hash, номер телефона и строка сессии в
// формате Pyrogram. Из него собирается клиент выбранного бэкенда: для
// диспетчера с подпиской на апдейты или для разовых запросов без неё.
package accounts

import (
	"errors"
	"fmt"
	"time"

	"telegram-bridge/internal/session"
)

// ErrNotFound — аккаунта с таким id нет.
var ErrNotFound = errors.New("account not found")

// ErrNoSession — аккаунт ещё не авторизован.
var ErrNoSession = errors.New("account has no session")

// Protocol — минимум, который нужен для сборки клиента.
type Protocol interface {
	ID() int64
	PhoneNumber() string
	SessionString() string
	APIData() (apiID int, apiHash string)
}

// Status — состояние аккаунта.
type Status string

const (
	StatusNew    Status = "new"
	StatusActive Status = "active"
)

// Account — сохранённый аккаунт.
type Account struct {
	Key     int64  `json:"id"`
	Phone   string `json:"phone_number"`
	Session string `json:"session_string,omitempty"`
	AppID   int    `json:"api_id"`
	AppHash string `json:"api_hash"`

	UserID int64 `json:"user_id,omitempty"`
	IsBot  bool  `json:"is_bot,omitempty"`

	// Backend переопределяет BACKEND из конфигурации; пусто — как в конфиге.
	Backend string `json:"backend,omitempty"`
	// Proxy — URL прокси аккаунта; пусто — PROXY из конфигурации.
	Proxy string `json:"proxy,omitempty"`

	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

var _ Protocol = (*Account)(nil)

func (a *Account) ID() int64             { return a.Key }
func (a *Account) PhoneNumber() string   { return a.Phone }
func (a *Account) SessionString() string { return a.Session }

func (a *Account) APIData() (int, string) { return a.AppID, a.AppHash }

// ProxyURL — прокси аккаунта, если задан.
func (a *Account) ProxyURL() string { return a.Proxy }

// BackendName — бэкенд аккаунта, если задан.
func (a *Account) BackendName() string { return a.Backend }

// Record декодирует строку сессии. Старые строки без api_id получают его
// из данных аккаунта.
func Record(p Protocol) (session.Record, error) {
	s := p.SessionString()
	if s == "" {
		return session.Record{}, ErrNoSession
	}
	rec, err := session.DecodePyrogram(s)
	if err != nil {
		return session.Record{}, fmt.Errorf("account %d: %w", p.ID(), err)
	}
	if !rec.HasAPIID {
		rec.APIID, _ = p.APIData()
		rec.HasAPIID = rec.APIID != 0
	}
	return rec, nil
}
