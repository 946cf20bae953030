package gotd

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"telegram-bridge/internal/autofill"
	"telegram-bridge/internal/bridge"
)

type fakeAuth struct {
	mu sync.Mutex

	authorized *tg.User
	sendErrs   []error
	signInErrs []error
	pwdErrs    []error

	phones    []string
	codes     []string
	passwords []string
}

func pop(errs *[]error) error {
	if len(*errs) == 0 {
		return nil
	}
	err := (*errs)[0]
	*errs = (*errs)[1:]
	return err
}

func (f *fakeAuth) Status(context.Context) (*auth.Status, error) {
	if f.authorized != nil {
		return &auth.Status{Authorized: true, User: f.authorized}, nil
	}
	return &auth.Status{}, nil
}

func (f *fakeAuth) SendCode(_ context.Context, phone string, _ auth.SendCodeOptions) (tg.AuthSentCodeClass, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.phones = append(f.phones, phone)
	if err := pop(&f.sendErrs); err != nil {
		return nil, err
	}
	return &tg.AuthSentCode{PhoneCodeHash: "hash"}, nil
}

func (f *fakeAuth) SignIn(_ context.Context, _, code, hash string) (*tg.AuthAuthorization, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codes = append(f.codes, code)
	if hash != "hash" {
		return nil, tgerr.New(400, "PHONE_CODE_HASH_EMPTY")
	}
	if err := pop(&f.signInErrs); err != nil {
		return nil, err
	}
	return &tg.AuthAuthorization{User: &tg.User{ID: 42, FirstName: "Alice"}}, nil
}

func (f *fakeAuth) Password(_ context.Context, password string) (*tg.AuthAuthorization, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.passwords = append(f.passwords, password)
	if err := pop(&f.pwdErrs); err != nil {
		return nil, err
	}
	return &tg.AuthAuthorization{User: &tg.User{ID: 42}}, nil
}

// sequence отдаёт значения по очереди при каждом запуске производителя.
func sequence(values ...string) autofill.Value {
	var (
		mu sync.Mutex
		i  int
	)
	return autofill.Sync(func() (autofill.Value, error) {
		mu.Lock()
		defer mu.Unlock()
		if i >= len(values) {
			return autofill.Absent(), nil
		}
		v := values[i]
		i++
		return autofill.Literal(v), nil
	})
}

func newAuthorizer(api authAPI, fields *autofill.Autofill, opts bridge.ClientOpts) *authorizer {
	return &authorizer{api: api, fields: fields, opts: opts, log: zap.NewNop()}
}

func TestAuthorizerAlreadyAuthorized(t *testing.T) {
	t.Parallel()

	api := &fakeAuth{authorized: &tg.User{ID: 7}}
	a := newAuthorizer(api, autofill.New(time.Second), bridge.ClientOpts{})

	u, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), u.ID)
	assert.Empty(t, api.phones)
}

func TestAuthorizerRetriesCode(t *testing.T) {
	t.Parallel()

	api := &fakeAuth{signInErrs: []error{tgerr.New(400, "PHONE_CODE_INVALID")}}
	fields := autofill.New(time.Second)
	fields.Set(bridge.FieldPhoneNumber, autofill.Literal("+10000000000"))
	fields.Set(bridge.FieldPhoneCode, sequence("11111", "22222"))

	var notified []error
	a := newAuthorizer(api, fields, bridge.ClientOpts{
		PhoneCodeError: func(_ context.Context, err error) { notified = append(notified, err) },
	})

	u, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), u.ID)
	assert.Equal(t, []string{"11111", "22222"}, api.codes)
	assert.Equal(t, []string{"+10000000000"}, api.phones, "code is sent once")
	require.Len(t, notified, 1)
	assert.True(t, tgerr.Is(notified[0], "PHONE_CODE_INVALID"))
}

func TestAuthorizerRetriesCodeFromQueue(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	codes := autofill.NewQueue(2)
	require.NoError(t, codes.Put(ctx, "11111"))
	require.NoError(t, codes.Put(ctx, "22222"))

	api := &fakeAuth{signInErrs: []error{tgerr.New(400, "PHONE_CODE_INVALID")}}
	fields := autofill.New(time.Second)
	fields.Set(bridge.FieldPhoneNumber, autofill.Literal("+10000000000"))
	fields.Set(bridge.FieldPhoneCode, autofill.FromQueue(codes))

	u, err := newAuthorizer(api, fields, bridge.ClientOpts{}).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(42), u.ID)
	assert.Equal(t, []string{"11111", "22222"}, api.codes)
	assert.Equal(t, 0, codes.Len())
}

func TestAuthorizerGivesUpAfterMaxCodeAttempts(t *testing.T) {
	t.Parallel()

	invalid := tgerr.New(400, "PHONE_CODE_INVALID")
	api := &fakeAuth{signInErrs: []error{invalid, invalid, invalid, invalid}}
	fields := autofill.New(time.Second)
	fields.Set(bridge.FieldPhoneNumber, autofill.Literal("+10000000000"))
	fields.Set(bridge.FieldPhoneCode, sequence("1", "2", "3", "4"))

	_, err := newAuthorizer(api, fields, bridge.ClientOpts{}).Run(context.Background())
	require.Error(t, err)
	assert.True(t, tgerr.Is(err, "PHONE_CODE_INVALID"))
	assert.Len(t, api.codes, bridge.MaxAuthAttempts)
}

func TestAuthorizerPasswordFlow(t *testing.T) {
	t.Parallel()

	api := &fakeAuth{
		signInErrs: []error{auth.ErrPasswordAuthNeeded},
		pwdErrs:    []error{auth.ErrPasswordInvalid},
	}
	fields := autofill.New(time.Second)
	fields.Set(bridge.FieldPhoneNumber, autofill.Literal("+10000000000"))
	fields.Set(bridge.FieldPhoneCode, autofill.Literal("12345"))
	fields.Set(bridge.FieldPassword, sequence("wrong", "secret"))

	var pwdNotified int
	a := newAuthorizer(api, fields, bridge.ClientOpts{
		PasswordError: func(context.Context, error) { pwdNotified++ },
	})

	_, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"wrong", "secret"}, api.passwords)
	assert.Equal(t, 1, pwdNotified)
}

func TestAuthorizerPasswordRequired(t *testing.T) {
	t.Parallel()

	api := &fakeAuth{signInErrs: []error{auth.ErrPasswordAuthNeeded}}
	fields := autofill.New(time.Second)
	fields.Set(bridge.FieldPhoneNumber, autofill.Literal("+10000000000"))
	fields.Set(bridge.FieldPhoneCode, autofill.Literal("12345"))

	_, err := newAuthorizer(api, fields, bridge.ClientOpts{}).Run(context.Background())
	require.ErrorIs(t, err, bridge.ErrPasswordRequired)
}

func TestAuthorizerPhoneRejected(t *testing.T) {
	t.Parallel()

	api := &fakeAuth{sendErrs: []error{tgerr.New(400, "PHONE_NUMBER_INVALID")}}
	fields := autofill.New(time.Second)
	fields.Set(bridge.FieldPhoneNumber, sequence("bad", "+10000000000"))
	fields.Set(bridge.FieldPhoneCode, autofill.Literal("12345"))

	var phoneNotified int
	a := newAuthorizer(api, fields, bridge.ClientOpts{
		PhoneNumberError: func(context.Context, error) { phoneNotified++ },
	})

	_, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"bad", "+10000000000"}, api.phones)
	assert.Equal(t, 1, phoneNotified)
}

func TestAuthorizerMissingFields(t *testing.T) {
	t.Parallel()

	_, err := newAuthorizer(&fakeAuth{}, autofill.New(time.Second), bridge.ClientOpts{}).
		Run(context.Background())
	require.ErrorIs(t, err, bridge.ErrPhoneRequired)

	fields := autofill.New(time.Second)
	fields.Set(bridge.FieldPhoneNumber, autofill.Literal("+10000000000"))
	_, err = newAuthorizer(&fakeAuth{}, fields, bridge.ClientOpts{}).Run(context.Background())
	require.ErrorIs(t, err, bridge.ErrCodeRequired)
}

func TestAuthorizerSignUpUnsupported(t *testing.T) {
	t.Parallel()

	api := &fakeAuth{signInErrs: []error{&auth.SignUpRequired{}}}
	fields := autofill.New(time.Second)
	fields.Set(bridge.FieldPhoneNumber, autofill.Literal("+10000000000"))
	fields.Set(bridge.FieldPhoneCode, autofill.Literal("12345"))

	_, err := newAuthorizer(api, fields, bridge.ClientOpts{}).Run(context.Background())
	require.ErrorIs(t, err, bridge.ErrSignUpUnsupported)
}
