// Package session описывает каноническую запись MTProto-сессии и кодеки строковых
// представлений, которыми обмениваются клиенты разных бэкендов.
//
// Record — промежуточная форма: строка одного формата декодируется в Record,
// Record кодируется в строку другого формата. IP и порт в бинарные блобы
// формата Pyrogram не попадают и каждый раз восстанавливаются по таблице DC.
package session

import (
	"crypto/sha1" //nolint:gosec // идентификатор ключа MTProto определён через SHA1
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"strconv"
)

// AuthKeySize — длина ключа авторизации MTProto в байтах.
const AuthKeySize = 256

// ErrSessionFormat возвращается при любой ошибке разбора строки сессии:
// битый base64, неизвестная длина блоба, неизвестный DC. Частичный результат не возвращается.
var ErrSessionFormat = errors.New("session format error")

// formatErrorf оборачивает ErrSessionFormat с пояснением.
func formatErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrSessionFormat, fmt.Sprintf(format, args...))
}

// Record — декодированная сессия.
//
// HasAPIID=false означает, что исходный формат не хранил api_id (устаревший
// Pyrogram или Telethon). При кодировании в Pyrogram в этом случае пишется 0.
type Record struct {
	DCID     int
	APIID    int
	HasAPIID bool
	TestMode bool
	AuthKey  []byte
	UserID   int64
	IsBot    bool
	IP       string
	Port     int
}

// Addr возвращает адрес DC в форме host:port.
func (r Record) Addr() string {
	return net.JoinHostPort(r.IP, strconv.Itoa(r.Port))
}

// AuthKeyID — 8 младших байт SHA1 от ключа (как его считает MTProto).
func (r Record) AuthKeyID() []byte {
	if len(r.AuthKey) == 0 {
		return nil
	}
	sum := sha1.Sum(r.AuthKey) //nolint:gosec
	id := make([]byte, 8)
	copy(id, sum[12:20])
	return id
}

// Base64AuthKey отдаёт ключ в urlsafe base64 с паддингом.
func (r Record) Base64AuthKey() string {
	return base64.URLEncoding.EncodeToString(r.AuthKey)
}

// Validate проверяет поля, без которых сессию нельзя закодировать.
func (r Record) Validate() error {
	if r.DCID <= 0 || r.DCID > 255 {
		return formatErrorf("dc id %d out of range", r.DCID)
	}
	if len(r.AuthKey) != AuthKeySize {
		return formatErrorf("auth key must be %d bytes, got %d", AuthKeySize, len(r.AuthKey))
	}
	return nil
}

// withEndpoint заполняет IP/порт из таблицы DC.
func (r Record) withEndpoint() (Record, error) {
	ep, err := LookupDC(r.DCID, r.TestMode)
	if err != nil {
		return Record{}, err
	}
	r.IP = ep.IP
	r.Port = ep.Port
	return r, nil
}
