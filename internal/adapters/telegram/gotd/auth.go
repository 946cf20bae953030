package gotd

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	"go.uber.org/zap"

	"telegram-bridge/internal/autofill"
	"telegram-bridge/internal/bridge"
)

// authAPI — часть *auth.Client, нужная для входа.
type authAPI interface {
	Status(ctx context.Context) (*auth.Status, error)
	SendCode(ctx context.Context, phone string, options auth.SendCodeOptions) (tg.AuthSentCodeClass, error)
	SignIn(ctx context.Context, phone, code, codeHash string) (*tg.AuthAuthorization, error)
	Password(ctx context.Context, password string) (*tg.AuthAuthorization, error)
}

// authorizer проводит вход по полям autofill: телефон, код, пароль.
// Неверный ввод сообщается колбэком, после чего значение запрашивается
// заново той же цепочкой производителей.
type authorizer struct {
	api    authAPI
	fields *autofill.Autofill
	opts   bridge.ClientOpts
	log    *zap.Logger
}

// Run возвращает текущего пользователя, при необходимости выполнив вход.
func (a *authorizer) Run(ctx context.Context) (*tg.User, error) {
	status, err := a.api.Status(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "auth status")
	}
	if status.Authorized && status.User != nil {
		a.log.Debug("already authorized, session restored")
		return status.User, nil
	}

	phone, hash, err := a.sendCode(ctx)
	if err != nil {
		return nil, err
	}
	authz, err := a.signIn(ctx, phone, hash)
	if err != nil {
		return nil, err
	}
	user, ok := authz.User.AsNotEmpty()
	if !ok {
		return nil, errors.New("authorization returned empty user")
	}
	return user, nil
}

func (a *authorizer) sendCode(ctx context.Context) (string, string, error) {
	phone, ok, err := a.fields.Resolve(ctx, bridge.FieldPhoneNumber)
	if err != nil {
		return "", "", err
	}
	for attempt := 1; ; attempt++ {
		if !ok || phone == "" {
			return "", "", bridge.ErrPhoneRequired
		}
		sent, err := a.api.SendCode(ctx, phone, auth.SendCodeOptions{})
		if err == nil {
			switch s := sent.(type) {
			case *tg.AuthSentCode:
				return phone, s.PhoneCodeHash, nil
			default:
				return "", "", fmt.Errorf("unexpected sent code type %T", sent)
			}
		}
		if !tgerr.Is(err, "PHONE_NUMBER_INVALID", "PHONE_NUMBER_BANNED", "PHONE_NUMBER_FLOOD") ||
			attempt >= bridge.MaxAuthAttempts {
			return "", "", errors.Wrap(err, "send code")
		}
		a.log.Warn("phone number rejected", zap.Error(err))
		a.opts.PhoneNumberError.Notify(ctx, err)
		if phone, ok, err = a.fields.Retry(ctx, bridge.FieldPhoneNumber); err != nil {
			return "", "", err
		}
	}
}

func (a *authorizer) signIn(ctx context.Context, phone, hash string) (*tg.AuthAuthorization, error) {
	code, ok, err := a.fields.Resolve(ctx, bridge.FieldPhoneCode)
	for attempt := 1; ; attempt++ {
		if err != nil {
			return nil, err
		}
		if !ok || code == "" {
			return nil, bridge.ErrCodeRequired
		}

		authz, signErr := a.api.SignIn(ctx, phone, code, hash)
		switch {
		case signErr == nil:
			return authz, nil
		case errors.Is(signErr, auth.ErrPasswordAuthNeeded):
			return a.password(ctx)
		case isSignUpRequired(signErr):
			return nil, bridge.ErrSignUpUnsupported
		case tgerr.Is(signErr, "PHONE_CODE_INVALID", "PHONE_CODE_EMPTY") && attempt < bridge.MaxAuthAttempts:
			a.log.Warn("phone code rejected", zap.Int("attempt", attempt), zap.Error(signErr))
			a.opts.PhoneCodeError.Notify(ctx, signErr)
			code, ok, err = a.fields.Retry(ctx, bridge.FieldPhoneCode)
		default:
			return nil, errors.Wrap(signErr, "sign in")
		}
	}
}

func (a *authorizer) password(ctx context.Context) (*tg.AuthAuthorization, error) {
	pwd, ok, err := a.fields.Resolve(ctx, bridge.FieldPassword)
	for attempt := 1; ; attempt++ {
		if err != nil {
			return nil, err
		}
		if !ok || pwd == "" {
			return nil, bridge.ErrPasswordRequired
		}

		authz, pwdErr := a.api.Password(ctx, pwd)
		switch {
		case pwdErr == nil:
			return authz, nil
		case (errors.Is(pwdErr, auth.ErrPasswordInvalid) || tgerr.Is(pwdErr, "PASSWORD_HASH_INVALID")) &&
			attempt < bridge.MaxAuthAttempts:
			a.log.Warn("password rejected", zap.Int("attempt", attempt))
			a.opts.PasswordError.Notify(ctx, pwdErr)
			pwd, ok, err = a.fields.Retry(ctx, bridge.FieldPassword)
		default:
			return nil, errors.Wrap(pwdErr, "check password")
		}
	}
}

func isSignUpRequired(err error) bool {
	var signUp *auth.SignUpRequired
	return errors.As(err, &signUp)
}
