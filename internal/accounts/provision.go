package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"telegram-bridge/internal/autofill"
	"telegram-bridge/internal/bridge"
	"telegram-bridge/internal/session"
)

// Prompter — источник интерактивного ввода при заведении аккаунта.
type Prompter interface {
	ReadLine(prompt string) (string, error)
	ReadPassword(prompt string) (string, error)
	// Notify сообщает пользователю о неверном вводе.
	Notify(msg string)
}

// Input — данные нового аккаунта. Пустой Phone запрашивается у Prompter.
type Input struct {
	APIID   int
	APIHash string
	Phone   string
	Proxy   string
	Backend string
}

// Provisioner заводит аккаунты: входит в Telegram, экспортирует сессию в
// строку Pyrogram и сохраняет аккаунт.
type Provisioner struct {
	store  *Store
	opener *Opener
	prompt Prompter
	log    *zap.Logger

	newClient func(backend string, accountID int64, opts bridge.ClientOpts) (bridge.Client, error)
}

// NewProvisioner связывает хранилище, сборщик клиентов и источник ввода.
func NewProvisioner(store *Store, opener *Opener, prompt Prompter) *Provisioner {
	return &Provisioner{
		store:     store,
		opener:    opener,
		prompt:    prompt,
		log:       opener.log.Named("provision"),
		newClient: opener.New,
	}
}

// Add входит в аккаунт и сохраняет его. Аккаунт с той же парой
// api_id/api_hash перезаписывается.
func (p *Provisioner) Add(ctx context.Context, in Input) (*Account, error) {
	in.APIHash = strings.TrimSpace(in.APIHash)
	if in.APIID <= 0 || in.APIHash == "" {
		return nil, errors.New("api id and api hash are required")
	}

	acc, err := p.store.FindByAPI(in.APIID, in.APIHash)
	switch {
	case errors.Is(err, ErrNotFound):
		acc = &Account{AppID: in.APIID, AppHash: in.APIHash}
	case err != nil:
		return nil, err
	}
	acc.Phone = clearPhone(in.Phone)
	acc.Proxy = in.Proxy
	acc.Backend = in.Backend
	// Старая сессия не используется: вход выполняется заново.
	acc.Session = ""

	opts, err := p.opener.Options(acc, false, true)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	opts.Fields = p.fields(ctx, acc.Phone, opts.AutofillTimeout(), cancel)
	opts.PhoneNumberError = p.notify("Неверный номер телефона")
	opts.PhoneCodeError = p.notify("Неверный код")
	opts.PasswordError = p.notify("Неверный пароль")

	client, err := p.newClient(p.opener.BackendFor(acc), acc.Key, opts)
	if err != nil {
		return nil, err
	}
	log := p.log.With(zap.String("backend", string(client.Backend())), zap.Int("api_id", in.APIID))
	log.Info("signing in")

	if err := client.Start(ctx); err != nil {
		if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
			err = cause
		}
		_ = client.Stop(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("sign in: %w", err)
	}
	defer func() {
		if err := client.Stop(context.WithoutCancel(ctx)); err != nil {
			log.Warn("client stop failed", zap.Error(err))
		}
	}()

	if v := opts.Fields.Get(bridge.FieldPhoneNumber); v.Kind() == autofill.KindLiteral {
		acc.Phone = v.String()
	}
	rec, err := client.ExportSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("export session: %w", err)
	}
	if !rec.HasAPIID {
		rec.APIID, rec.HasAPIID = in.APIID, true
	}
	str, err := session.EncodePyrogram(rec)
	if err != nil {
		return nil, err
	}

	acc.Session = str
	acc.UserID = rec.UserID
	acc.IsBot = rec.IsBot
	acc.Status = StatusActive
	if err := p.store.Save(acc); err != nil {
		return nil, err
	}
	log.Info("account saved", zap.Int64("account_id", acc.Key), zap.Int64("user_id", acc.UserID))
	return acc, nil
}

// fields собирает поля autofill. Код и пароль приходят через очередь,
// которую наполняет горутина запроса ввода; ошибка ввода отменяет вход.
func (p *Provisioner) fields(ctx context.Context, phone string, timeout time.Duration, fail context.CancelCauseFunc) *autofill.Autofill {
	f := autofill.New(timeout)
	if phone != "" {
		f.Set(bridge.FieldPhoneNumber, autofill.Literal(phone))
	} else {
		f.Set(bridge.FieldPhoneNumber, autofill.Sync(func() (autofill.Value, error) {
			s, err := p.prompt.ReadLine("Номер телефона: ")
			if err != nil {
				return autofill.Absent(), err
			}
			return autofill.Literal(clearPhone(s)), nil
		}))
	}
	f.Set(bridge.FieldPhoneCode, p.queued(ctx, "Код из Telegram: ", p.prompt.ReadLine, fail))
	f.Set(bridge.FieldPassword, p.queued(ctx, "Пароль 2FA: ", p.prompt.ReadPassword, fail))
	return f
}

func (p *Provisioner) queued(
	ctx context.Context,
	prompt string,
	read func(string) (string, error),
	fail context.CancelCauseFunc,
) autofill.Value {
	return autofill.Async(func(context.Context) (autofill.Value, error) {
		q := autofill.NewQueue(1)
		go func() {
			v, err := read(prompt)
			if err != nil {
				fail(fmt.Errorf("read %q: %w", strings.TrimSpace(prompt), err))
				return
			}
			if err := q.Put(ctx, strings.TrimSpace(v)); err != nil {
				p.log.Debug("input dropped", zap.Error(err))
			}
		}()
		return autofill.FromQueue(q), nil
	})
}

func (p *Provisioner) notify(msg string) bridge.ErrorCallback {
	return func(_ context.Context, err error) {
		p.prompt.Notify(fmt.Sprintf("%s: %v", msg, err))
	}
}

// clearPhone оставляет в номере только цифры и ведущий плюс.
func clearPhone(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	for i, r := range s {
		if (r >= '0' && r <= '9') || (r == '+' && i == 0) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
