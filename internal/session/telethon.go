package session

import (
	"encoding/base64"
	"encoding/binary"
	"net"
	"strings"
)

// Строка Telethon: символ версии '1' и urlsafe base64 (с паддингом) от
//
//	dc_id u8 | ip [4 или 16] | port u16 | auth_key [256]
//
// api_id, user_id, is_bot и test_mode этот формат не хранит.
const (
	telethonVersion  = '1'
	telethonIPv4Size = 1 + net.IPv4len + 2 + AuthKeySize
	telethonIPv6Size = 1 + net.IPv6len + 2 + AuthKeySize
)

// DecodeTelethon разбирает строку сессии Telethon. Адрес берётся из самой строки,
// а не из таблицы DC.
func DecodeTelethon(s string) (Record, error) {
	s = strings.TrimSpace(s)
	if s == "" || s[0] != telethonVersion {
		return Record{}, formatErrorf("telethon string must start with version %q", telethonVersion)
	}
	raw, err := base64.URLEncoding.DecodeString(s[1:])
	if err != nil {
		return Record{}, formatErrorf("telethon base64: %v", err)
	}

	var ipLen int
	switch len(raw) {
	case telethonIPv4Size:
		ipLen = net.IPv4len
	case telethonIPv6Size:
		ipLen = net.IPv6len
	default:
		return Record{}, formatErrorf("telethon blob has unexpected length %d", len(raw))
	}

	ip := net.IP(cloneBytes(raw[1 : 1+ipLen]))
	rest := raw[1+ipLen:]
	return Record{
		DCID:    int(raw[0]),
		IP:      ip.String(),
		Port:    int(binary.BigEndian.Uint16(rest[:2])),
		AuthKey: cloneBytes(rest[2 : 2+AuthKeySize]),
	}, nil
}

// EncodeTelethon кодирует запись в строку Telethon. Если IP не задан, он
// подставляется из таблицы DC.
func EncodeTelethon(r Record) (string, error) {
	if err := r.Validate(); err != nil {
		return "", err
	}
	if r.IP == "" {
		var err error
		if r, err = r.withEndpoint(); err != nil {
			return "", err
		}
	}
	ip := net.ParseIP(r.IP)
	if ip == nil {
		return "", formatErrorf("invalid server address %q", r.IP)
	}
	if v4 := ip.To4(); v4 != nil {
		ip = v4
	}

	buf := make([]byte, 0, 1+len(ip)+2+AuthKeySize)
	buf = append(buf, byte(r.DCID))
	buf = append(buf, ip...)
	buf = binary.BigEndian.AppendUint16(buf, uint16(r.Port)) //nolint:gosec
	buf = append(buf, r.AuthKey...)

	return string(telethonVersion) + base64.URLEncoding.EncodeToString(buf), nil
}
