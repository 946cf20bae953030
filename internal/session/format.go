package session

import (
	"fmt"
	"strings"
)

// Format — строковое представление сессии.
type Format int

const (
	// FormatPyrogram — бинарная раскладка Pyrogram, потребляется gotd-адаптером.
	FormatPyrogram Format = iota + 1
	// FormatTelethon — строка Telethon, потребляется gogram-адаптером.
	FormatTelethon
)

func (f Format) String() string {
	switch f {
	case FormatPyrogram:
		return "pyrogram"
	case FormatTelethon:
		return "telethon"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// ParseFormat принимает имя формата без учёта регистра.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pyrogram", "pyro":
		return FormatPyrogram, nil
	case "telethon", "tele":
		return FormatTelethon, nil
	default:
		return 0, fmt.Errorf("unknown session format %q", s)
	}
}

// Decode разбирает строку указанного формата.
func Decode(blob string, f Format) (Record, error) {
	switch f {
	case FormatPyrogram:
		return DecodePyrogram(blob)
	case FormatTelethon:
		return DecodeTelethon(blob)
	default:
		return Record{}, fmt.Errorf("decode: unsupported format %v", f)
	}
}

// Encode кодирует запись в строку указанного формата.
func Encode(r Record, f Format) (string, error) {
	switch f {
	case FormatPyrogram:
		return EncodePyrogram(r)
	case FormatTelethon:
		return EncodeTelethon(r)
	default:
		return "", fmt.Errorf("encode: unsupported format %v", f)
	}
}

// Convert перекодирует строку из одного формата в другой через Record.
// При переходе через Telethon теряются api_id, user_id, is_bot и test_mode.
func Convert(blob string, from, to Format) (string, error) {
	r, err := Decode(blob, from)
	if err != nil {
		return "", err
	}
	return Encode(r, to)
}
