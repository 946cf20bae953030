// Package proxy описывает прокси-дескриптор и его представления для обоих
// бэкендов: кортеж Telethon, URL для gogram и dialer для gotd.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	xproxy "golang.org/x/net/proxy"
)

// Поддерживаемые схемы.
const (
	SchemeSOCKS4 = "socks4"
	SchemeSOCKS5 = "socks5"
	SchemeHTTP   = "http"
)

// ErrUnsupportedScheme — схема не поддерживается выбранным представлением.
var ErrUnsupportedScheme = errors.New("proxy: unsupported scheme")

// Proxy — структурный дескриптор прокси.
type Proxy struct {
	Scheme   string
	Hostname string
	Port     int
	Username string
	Password string
}

// Parse разбирает URL вида scheme://[user:pass@]host:port.
func Parse(raw string) (Proxy, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Proxy{}, fmt.Errorf("parse proxy url: %w", err)
	}
	p := Proxy{
		Scheme:   strings.ToLower(u.Scheme),
		Hostname: u.Hostname(),
	}
	if port := u.Port(); port != "" {
		if p.Port, err = strconv.Atoi(port); err != nil {
			return Proxy{}, fmt.Errorf("parse proxy port %q: %w", port, err)
		}
	}
	if u.User != nil {
		p.Username = u.User.Username()
		p.Password, _ = u.User.Password()
	}
	if err := p.Validate(); err != nil {
		return Proxy{}, err
	}
	return p, nil
}

// Validate проверяет схему, хост и порт.
func (p Proxy) Validate() error {
	switch p.Scheme {
	case SchemeSOCKS4, SchemeSOCKS5, SchemeHTTP:
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedScheme, p.Scheme)
	}
	if p.Hostname == "" {
		return errors.New("proxy: empty hostname")
	}
	if p.Port <= 0 || p.Port > 65535 {
		return fmt.Errorf("proxy: invalid port %d", p.Port)
	}
	return nil
}

// Addr — host:port.
func (p Proxy) Addr() string {
	return net.JoinHostPort(p.Hostname, strconv.Itoa(p.Port))
}

// URL собирает дескриптор обратно в строку; формат принимает gogram.
func (p Proxy) URL() string {
	u := url.URL{Scheme: p.Scheme, Host: p.Addr()}
	if p.Username != "" {
		if p.Password != "" {
			u.User = url.UserPassword(p.Username, p.Password)
		} else {
			u.User = url.User(p.Username)
		}
	}
	return u.String()
}

// Telethon — 6-кортеж (type, host, port, rdns, username, password).
type Telethon struct {
	Type     int
	Host     string
	Port     int
	RDNS     bool
	Username string
	Password string
}

// Коды типов прокси в кортеже Telethon.
const (
	TelethonSOCKS4 = 1
	TelethonSOCKS5 = 2
	TelethonHTTP   = 3
)

// Telethon переводит дескриптор в кортеж; rdns включён только для socks.
func (p Proxy) Telethon() (Telethon, error) {
	codes := map[string]int{
		SchemeSOCKS4: TelethonSOCKS4,
		SchemeSOCKS5: TelethonSOCKS5,
		SchemeHTTP:   TelethonHTTP,
	}
	code, ok := codes[p.Scheme]
	if !ok {
		return Telethon{}, fmt.Errorf("%w: %q", ErrUnsupportedScheme, p.Scheme)
	}
	return Telethon{
		Type:     code,
		Host:     p.Hostname,
		Port:     p.Port,
		RDNS:     p.Scheme == SchemeSOCKS4 || p.Scheme == SchemeSOCKS5,
		Username: p.Username,
		Password: p.Password,
	}, nil
}

// DialFunc — сигнатура, которую принимает dcs.PlainOptions.Dial.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Dialer строит dialer через x/net/proxy. gotd умеет ходить только через socks5.
func (p Proxy) Dialer() (DialFunc, error) {
	if p.Scheme != SchemeSOCKS5 {
		return nil, fmt.Errorf("%w: %q for gotd transport", ErrUnsupportedScheme, p.Scheme)
	}
	var auth *xproxy.Auth
	if p.Username != "" {
		auth = &xproxy.Auth{User: p.Username, Password: p.Password}
	}
	d, err := xproxy.SOCKS5("tcp", p.Addr(), auth, xproxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("socks5 dialer: %w", err)
	}
	cd, ok := d.(xproxy.ContextDialer)
	if !ok {
		return nil, errors.New("socks5 dialer does not support context")
	}
	return cd.DialContext, nil
}
