package session

import (
	"encoding/base64"
	"encoding/binary"
	"strings"
)

// Раскладки строки Pyrogram (big-endian, без тега версии, выбор по длине):
//
//	current:   dc_id u8 | api_id u32 | test_mode u8 | auth_key [256] | user_id u64 | is_bot u8  (271 байт)
//	legacy:    dc_id u8 | test_mode u8 | auth_key [256] | user_id u32 | is_bot u8               (263 байта)
//	legacy-64: dc_id u8 | test_mode u8 | auth_key [256] | user_id u64 | is_bot u8               (267 байт)
const (
	pyrogramCurrentSize  = 1 + 4 + 1 + AuthKeySize + 8 + 1
	pyrogramLegacySize   = 1 + 1 + AuthKeySize + 4 + 1
	pyrogramLegacy64Size = 1 + 1 + AuthKeySize + 8 + 1
)

// DecodePyrogram разбирает строку сессии Pyrogram. Паддинг base64 восстанавливается
// до кратности 4, после чего раскладка выбирается по длине блоба.
func DecodePyrogram(s string) (Record, error) {
	s = strings.TrimSpace(s)
	if rem := len(s) % 4; rem != 0 {
		s += strings.Repeat("=", 4-rem)
	}
	raw, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return Record{}, formatErrorf("pyrogram base64: %v", err)
	}

	var r Record
	switch len(raw) {
	case pyrogramCurrentSize:
		r.DCID = int(raw[0])
		r.APIID = int(binary.BigEndian.Uint32(raw[1:5]))
		r.HasAPIID = true
		r.TestMode = raw[5] != 0
		r.AuthKey = cloneBytes(raw[6 : 6+AuthKeySize])
		tail := raw[6+AuthKeySize:]
		r.UserID = int64(binary.BigEndian.Uint64(tail[:8])) //nolint:gosec // id хранится как беззнаковое
		r.IsBot = tail[8] != 0
	case pyrogramLegacySize:
		r.DCID = int(raw[0])
		r.TestMode = raw[1] != 0
		r.AuthKey = cloneBytes(raw[2 : 2+AuthKeySize])
		tail := raw[2+AuthKeySize:]
		r.UserID = int64(binary.BigEndian.Uint32(tail[:4]))
		r.IsBot = tail[4] != 0
	case pyrogramLegacy64Size:
		r.DCID = int(raw[0])
		r.TestMode = raw[1] != 0
		r.AuthKey = cloneBytes(raw[2 : 2+AuthKeySize])
		tail := raw[2+AuthKeySize:]
		r.UserID = int64(binary.BigEndian.Uint64(tail[:8])) //nolint:gosec
		r.IsBot = tail[8] != 0
	default:
		return Record{}, formatErrorf("pyrogram blob has unexpected length %d", len(raw))
	}

	return r.withEndpoint()
}

// EncodePyrogram всегда пишет актуальную раскладку (с api_id); отсутствующий api_id
// кодируется нулём. Паддинг base64 отбрасывается.
func EncodePyrogram(r Record) (string, error) {
	if err := r.Validate(); err != nil {
		return "", err
	}
	apiID := 0
	if r.HasAPIID {
		apiID = r.APIID
	}

	buf := make([]byte, pyrogramCurrentSize)
	buf[0] = byte(r.DCID)
	binary.BigEndian.PutUint32(buf[1:5], uint32(apiID)) //nolint:gosec
	buf[5] = boolByte(r.TestMode)
	copy(buf[6:6+AuthKeySize], r.AuthKey)
	tail := buf[6+AuthKeySize:]
	binary.BigEndian.PutUint64(tail[:8], uint64(r.UserID)) //nolint:gosec
	tail[8] = boolByte(r.IsBot)

	return strings.TrimRight(base64.URLEncoding.EncodeToString(buf), "="), nil
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
