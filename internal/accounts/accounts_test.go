package accounts

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"telegram-bridge/internal/bridge"
	"telegram-bridge/internal/infra/config"
	"telegram-bridge/internal/session"
)

func testKey() []byte {
	key := make([]byte, session.AuthKeySize)
	for i := range key {
		key[i] = byte(i * 7)
	}
	return key
}

func testRecord() session.Record {
	return session.Record{DCID: 2, APIID: 111, HasAPIID: true, AuthKey: testKey(), UserID: 5005, IP: "149.154.167.51", Port: 443}
}

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data", "accounts.bbolt"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreCRUD(t *testing.T) {
	t.Parallel()

	s := openStore(t)

	a := &Account{Phone: "+10000000001", AppID: 1, AppHash: "h1"}
	require.NoError(t, s.Save(a))
	assert.Equal(t, int64(1), a.Key)
	assert.Equal(t, StatusNew, a.Status)
	assert.False(t, a.CreatedAt.IsZero())

	b := &Account{Phone: "+10000000002", AppID: 2, AppHash: "h2"}
	require.NoError(t, s.Save(b))
	assert.Equal(t, int64(2), b.Key)

	got, err := s.Get(1)
	require.NoError(t, err)
	assert.Equal(t, "+10000000001", got.PhoneNumber())
	apiID, apiHash := got.APIData()
	assert.Equal(t, 1, apiID)
	assert.Equal(t, "h1", apiHash)

	got.Status = StatusActive
	require.NoError(t, s.Save(got))
	again, err := s.Get(1)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, again.Status)
	assert.Equal(t, got.CreatedAt.Unix(), again.CreatedAt.Unix())

	found, err := s.FindByAPI(2, "h2")
	require.NoError(t, err)
	assert.Equal(t, int64(2), found.ID())
	_, err = s.FindByAPI(2, "other")
	require.ErrorIs(t, err, ErrNotFound)

	all, err := s.List()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, int64(1), all[0].Key)

	require.NoError(t, s.Delete(1))
	_, err = s.Get(1)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, s.Delete(1), ErrNotFound)
}

func TestRecord(t *testing.T) {
	t.Parallel()

	current, err := session.EncodePyrogram(testRecord())
	require.NoError(t, err)

	// Устаревшая раскладка >B?256sI? без api_id.
	raw := make([]byte, 0, 263)
	raw = append(raw, 2, 0)
	raw = append(raw, testKey()...)
	raw = binary.BigEndian.AppendUint32(raw, 5005)
	raw = append(raw, 0)
	legacy := base64.RawURLEncoding.EncodeToString(raw)

	tests := []struct {
		name    string
		acc     *Account
		wantAPI int
		wantErr error
	}{
		{name: "current", acc: &Account{Key: 1, Session: current, AppID: 999}, wantAPI: 111},
		{name: "legacy", acc: &Account{Key: 5, Session: legacy, AppID: 999}, wantAPI: 999},
		{name: "empty", acc: &Account{Key: 2}, wantErr: ErrNoSession},
		{name: "garbage", acc: &Account{Key: 3, Session: "!!"}, wantErr: session.ErrSessionFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec, err := Record(tt.acc)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantAPI, rec.APIID)
			assert.Equal(t, 2, rec.DCID)
			assert.Equal(t, int64(5005), rec.UserID)
		})
	}
}

func TestOpenerOptions(t *testing.T) {
	t.Parallel()

	str, err := session.EncodePyrogram(testRecord())
	require.NoError(t, err)

	env := config.Defaults()
	env.Proxy = "socks5://127.0.0.1:1080"
	o := NewOpener(env, nil, zap.NewNop())

	acc := &Account{Key: 4, Phone: "+1555", Session: str, AppID: 111, AppHash: "hash", Backend: config.BackendGogram}
	opts, err := o.Options(acc, true, true)
	require.NoError(t, err)
	assert.Equal(t, 111, opts.APIID)
	assert.True(t, opts.InMemory)
	assert.True(t, opts.ReceiveUpdates)
	require.NotNil(t, opts.Session)
	assert.Equal(t, 2, opts.Session.DCID)
	require.NotNil(t, opts.Proxy)
	assert.Equal(t, "127.0.0.1", opts.Proxy.Hostname)
	phone, ok, err := opts.Fields.Resolve(context.Background(), bridge.FieldPhoneNumber)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "+1555", phone)
	assert.Equal(t, config.BackendGogram, o.BackendFor(acc))

	direct, err := o.Options(acc, false, false)
	require.NoError(t, err)
	assert.Nil(t, direct.Proxy)
	assert.False(t, direct.ReceiveUpdates)

	acc.Proxy = "ftp://nowhere:1"
	_, err = o.Options(acc, true, true)
	require.Error(t, err)

	fresh, err := o.Options(&Account{Key: 5, AppID: 1, AppHash: "x"}, false, false)
	require.NoError(t, err)
	assert.Nil(t, fresh.Session)
	assert.Equal(t, config.BackendGotd, o.BackendFor(&Account{}))
}

func TestOpenerNewUnknownBackend(t *testing.T) {
	t.Parallel()

	o := NewOpener(config.Defaults(), nil, zap.NewNop())
	_, err := o.New("mtproto-x", 1, bridge.ClientOpts{APIID: 1, APIHash: "x"})
	require.Error(t, err)
}

type scriptedPrompter struct {
	mu      sync.Mutex
	lines   map[string][]string
	notices []string
}

func (p *scriptedPrompter) next(prompt string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	q := p.lines[prompt]
	if len(q) == 0 {
		return "", io.EOF
	}
	p.lines[prompt] = q[1:]
	return q[0], nil
}

func (p *scriptedPrompter) ReadLine(prompt string) (string, error)     { return p.next(prompt) }
func (p *scriptedPrompter) ReadPassword(prompt string) (string, error) { return p.next(prompt) }

func (p *scriptedPrompter) Notify(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notices = append(p.notices, msg)
}

// loginClient имитирует вход: телефон, код с одной ошибкой, пароль.
type loginClient struct {
	bridge.Client
	opts     bridge.ClientOpts
	wantCode string
	phone    string
	password string
	stopped  bool
}

func (c *loginClient) Backend() bridge.Backend { return bridge.BackendGotd }

func (c *loginClient) Start(ctx context.Context) error {
	f := c.opts.Fields
	phone, ok, err := f.Resolve(ctx, bridge.FieldPhoneNumber)
	if err != nil {
		return err
	}
	if !ok {
		return bridge.ErrPhoneRequired
	}
	c.phone = phone

	code, _, err := f.Resolve(ctx, bridge.FieldPhoneCode)
	for attempt := 1; err == nil && code != c.wantCode; attempt++ {
		if attempt >= bridge.MaxAuthAttempts {
			return errors.New("PHONE_CODE_INVALID")
		}
		c.opts.PhoneCodeError.Notify(ctx, errors.New("PHONE_CODE_INVALID"))
		code, _, err = f.Retry(ctx, bridge.FieldPhoneCode)
	}
	if err != nil {
		return err
	}

	pw, ok, err := f.Resolve(ctx, bridge.FieldPassword)
	if err != nil {
		return err
	}
	if ok {
		c.password = pw
	}
	return nil
}

func (c *loginClient) Stop(context.Context) error {
	c.stopped = true
	return nil
}

func (c *loginClient) ExportSession(context.Context) (session.Record, error) {
	return testRecord(), nil
}

func newProvisioner(t *testing.T, prompt Prompter, client *loginClient) (*Provisioner, *Store) {
	t.Helper()
	s := openStore(t)
	p := NewProvisioner(s, NewOpener(config.Defaults(), nil, zap.NewNop()), prompt)
	p.newClient = func(_ string, _ int64, opts bridge.ClientOpts) (bridge.Client, error) {
		client.opts = opts
		return client, nil
	}
	return p, s
}

func TestProvisionerAdd(t *testing.T) {
	t.Parallel()

	prompt := &scriptedPrompter{lines: map[string][]string{
		"Номер телефона: ":  {" +1 (555) 010-99 "},
		"Код из Telegram: ": {"11111", "22222"},
		"Пароль 2FA: ":      {"secret"},
	}}
	client := &loginClient{wantCode: "22222"}
	p, s := newProvisioner(t, prompt, client)

	acc, err := p.Add(context.Background(), Input{APIID: 111, APIHash: "hash"})
	require.NoError(t, err)
	assert.Equal(t, "+155501099", client.phone)
	assert.Equal(t, "secret", client.password)
	assert.True(t, client.stopped)
	assert.Equal(t, "+155501099", acc.Phone)
	require.Len(t, prompt.notices, 1)
	assert.Contains(t, prompt.notices[0], "Неверный код")

	assert.Equal(t, StatusActive, acc.Status)
	assert.Equal(t, int64(5005), acc.UserID)
	rec, err := session.DecodePyrogram(acc.Session)
	require.NoError(t, err)
	assert.Equal(t, testKey(), rec.AuthKey)

	stored, err := s.Get(acc.Key)
	require.NoError(t, err)
	assert.Equal(t, acc.Session, stored.Session)

	// Повторное заведение с той же парой api перезаписывает аккаунт.
	prompt.lines["Код из Telegram: "] = []string{"22222"}
	prompt.lines["Пароль 2FA: "] = []string{"secret"}
	again, err := p.Add(context.Background(), Input{APIID: 111, APIHash: "hash", Phone: "+1555"})
	require.NoError(t, err)
	assert.Equal(t, acc.Key, again.Key)
	all, err := s.List()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestProvisionerInputFailure(t *testing.T) {
	t.Parallel()

	prompt := &scriptedPrompter{lines: map[string][]string{}}
	client := &loginClient{wantCode: "1"}
	p, s := newProvisioner(t, prompt, client)

	_, err := p.Add(context.Background(), Input{APIID: 1, APIHash: "h", Phone: "+1"})
	require.ErrorIs(t, err, io.EOF)
	assert.True(t, client.stopped)

	all, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestProvisionerValidation(t *testing.T) {
	t.Parallel()

	p, _ := newProvisioner(t, &scriptedPrompter{}, &loginClient{})
	_, err := p.Add(context.Background(), Input{APIHash: "h"})
	require.Error(t, err)
	_, err = p.Add(context.Background(), Input{APIID: 1, APIHash: " "})
	require.Error(t, err)
}

func TestClearPhone(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "+79991234567", clearPhone(" +7 (999) 123-45-67 "))
	assert.Equal(t, "79991234567", clearPhone("7-999-123+45-67"))
	assert.Empty(t, clearPhone(""))
}
