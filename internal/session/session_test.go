package session_test

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telegram-bridge/internal/session"
)

func testKey() []byte {
	key := make([]byte, session.AuthKeySize)
	for i := range key {
		key[i] = byte(i)
	}
	return key
}

func testRecord() session.Record {
	return session.Record{
		DCID:     2,
		APIID:    12345,
		HasAPIID: true,
		AuthKey:  testKey(),
		UserID:   987654321,
		IP:       "149.154.167.51",
		Port:     443,
	}
}

func TestEncodePyrogramLayout(t *testing.T) {
	t.Parallel()

	s, err := session.EncodePyrogram(testRecord())
	require.NoError(t, err)

	assert.Len(t, s, 362)
	assert.True(t, strings.HasPrefix(s, "AgAAMDkAAAECAwQFBgcICQoL"))
	assert.True(t, strings.HasSuffix(s, "f4-fr7_P3-_wAAAAA63mixAA"))
	assert.NotContains(t, s, "=")
}

func TestPyrogramRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		rec  session.Record
	}{
		{name: "user", rec: testRecord()},
		{name: "bot in test dc", rec: func() session.Record {
			r := testRecord()
			r.DCID = 1
			r.TestMode = true
			r.IsBot = true
			r.UserID = 1<<40 + 7
			r.IP = "149.154.175.10"
			return r
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s, err := session.EncodePyrogram(tt.rec)
			require.NoError(t, err)
			got, err := session.DecodePyrogram(s)
			require.NoError(t, err)
			assert.Equal(t, tt.rec, got)
		})
	}
}

func legacyBlob(userID uint32, wide bool) string {
	buf := []byte{4, 0}
	buf = append(buf, testKey()...)
	if wide {
		buf = binary.BigEndian.AppendUint64(buf, uint64(userID))
	} else {
		buf = binary.BigEndian.AppendUint32(buf, userID)
	}
	buf = append(buf, 1)
	return strings.TrimRight(base64.URLEncoding.EncodeToString(buf), "=")
}

func TestDecodePyrogramLegacy(t *testing.T) {
	t.Parallel()

	for _, wide := range []bool{false, true} {
		blob := legacyBlob(42, wide)
		if !wide {
			require.Len(t, blob, 351)
		}

		rec, err := session.DecodePyrogram(blob)
		require.NoError(t, err)
		assert.False(t, rec.HasAPIID)
		assert.Equal(t, 4, rec.DCID)
		assert.Equal(t, int64(42), rec.UserID)
		assert.True(t, rec.IsBot)
		assert.Equal(t, testKey(), rec.AuthKey)

		again, err := session.EncodePyrogram(rec)
		require.NoError(t, err)
		reread, err := session.DecodePyrogram(again)
		require.NoError(t, err)
		assert.True(t, reread.HasAPIID)
		assert.Equal(t, 0, reread.APIID)
		assert.Equal(t, rec.UserID, reread.UserID)
	}
}

func TestDecodePyrogramErrors(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"bad base64":   "!!!not-base64!!!",
		"short blob":   strings.TrimRight(base64.URLEncoding.EncodeToString(make([]byte, 100)), "="),
		"unknown dc":   func() string { r := make([]byte, 271); r[0] = 77; return base64.URLEncoding.EncodeToString(r) }(),
		"empty string": "",
	}
	for name, blob := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := session.DecodePyrogram(blob)
			require.ErrorIs(t, err, session.ErrSessionFormat)
		})
	}
}

func TestDCLookupDeterministic(t *testing.T) {
	t.Parallel()

	s, err := session.EncodePyrogram(testRecord())
	require.NoError(t, err)
	a, err := session.DecodePyrogram(s)
	require.NoError(t, err)
	b, err := session.DecodePyrogram(s)
	require.NoError(t, err)
	assert.Equal(t, a.IP, b.IP)
	assert.Equal(t, a.Port, b.Port)
	assert.Equal(t, "149.154.167.51", a.IP)
}

func TestLookupIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ip     string
		dc     int
		test   bool
		exists bool
	}{
		{"149.154.167.51", 2, false, true},
		{"149.154.167.40", 2, true, true},
		{"10.0.0.1", 0, false, false},
	}
	for _, tt := range tests {
		dc, test, ok := session.LookupIP(tt.ip)
		assert.Equal(t, tt.exists, ok, tt.ip)
		assert.Equal(t, tt.dc, dc, tt.ip)
		assert.Equal(t, tt.test, test, tt.ip)
	}
}

func TestTelethonEncoding(t *testing.T) {
	t.Parallel()

	s, err := session.EncodeTelethon(testRecord())
	require.NoError(t, err)
	assert.Len(t, s, 353)
	assert.True(t, strings.HasPrefix(s, "1ApWapzMBuwABAgMEBQY"))
	assert.True(t, strings.HasSuffix(s, "-_z9_v8="))

	rec, err := session.DecodeTelethon(s)
	require.NoError(t, err)
	assert.Equal(t, 2, rec.DCID)
	assert.Equal(t, "149.154.167.51", rec.IP)
	assert.Equal(t, 443, rec.Port)
	assert.Equal(t, testKey(), rec.AuthKey)
	assert.False(t, rec.HasAPIID)
}

func TestTelethonIPv6(t *testing.T) {
	t.Parallel()

	r := testRecord()
	r.IP = "2001:67c:4e8:f002::a"
	s, err := session.EncodeTelethon(r)
	require.NoError(t, err)

	rec, err := session.DecodeTelethon(s)
	require.NoError(t, err)
	assert.Equal(t, "2001:67c:4e8:f002::a", rec.IP)
}

func TestTelethonErrors(t *testing.T) {
	t.Parallel()

	_, err := session.DecodeTelethon("2AAAA")
	require.ErrorIs(t, err, session.ErrSessionFormat)
	_, err = session.DecodeTelethon("1" + base64.URLEncoding.EncodeToString(make([]byte, 10)))
	require.ErrorIs(t, err, session.ErrSessionFormat)
}

func TestCrossFormatRoundTrip(t *testing.T) {
	t.Parallel()

	src := testRecord()
	tele, err := session.Encode(src, session.FormatTelethon)
	require.NoError(t, err)
	pyro, err := session.Convert(tele, session.FormatTelethon, session.FormatPyrogram)
	require.NoError(t, err)

	got, err := session.Decode(pyro, session.FormatPyrogram)
	require.NoError(t, err)
	assert.Equal(t, src.DCID, got.DCID)
	assert.Equal(t, src.AuthKey, got.AuthKey)
	assert.Equal(t, src.IP, got.IP)
}

func TestGotdData(t *testing.T) {
	t.Parallel()

	rec := testRecord()
	data, err := rec.Data()
	require.NoError(t, err)
	assert.Equal(t, 2, data.DC)
	assert.Equal(t, "149.154.167.51:443", data.Addr)
	assert.Len(t, data.AuthKeyID, 8)

	st, err := rec.MemoryStorage(context.Background())
	require.NoError(t, err)
	loaded, err := session.LoadData(context.Background(), st)
	require.NoError(t, err)

	back, err := session.FromData(loaded, rec.APIID, false)
	require.NoError(t, err)
	assert.Equal(t, rec.DCID, back.DCID)
	assert.Equal(t, rec.AuthKey, back.AuthKey)
	assert.Equal(t, rec.APIID, back.APIID)
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	f, err := session.ParseFormat(" Telethon ")
	require.NoError(t, err)
	assert.Equal(t, session.FormatTelethon, f)
	_, err = session.ParseFormat("tdata")
	require.Error(t, err)
}
