package gogram

import (
	"context"
	"errors"
	"fmt"

	"github.com/gotd/td/tgerr"
	"go.uber.org/zap"

	"telegram-bridge/internal/bridge"
)

// authorize проводит вход по полям autofill, если сессия ещё не авторизована.
// Код запрашивается один раз; неверный код или пароль переспрашиваются не
// более bridge.MaxAuthAttempts раз.
func (c *Client) authorize(ctx context.Context) error {
	ok, err := c.api.IsAuthorized()
	if err != nil {
		return fmt.Errorf("auth status: %w", err)
	}
	if ok {
		c.log.Debug("already authorized, session restored")
		return nil
	}

	phone, hash, err := c.sendCode(ctx)
	if err != nil {
		return err
	}
	return c.signIn(ctx, phone, hash)
}

func (c *Client) sendCode(ctx context.Context) (string, string, error) {
	fields := c.opts.Fields
	phone, ok, err := fields.Resolve(ctx, bridge.FieldPhoneNumber)
	for attempt := 1; ; attempt++ {
		if err != nil {
			return "", "", err
		}
		if !ok || phone == "" {
			return "", "", bridge.ErrPhoneRequired
		}
		hash, sendErr := c.api.SendCode(phone)
		if sendErr == nil {
			return phone, hash, nil
		}
		if !tgerr.Is(sendErr, "PHONE_NUMBER_INVALID", "PHONE_NUMBER_BANNED", "PHONE_NUMBER_FLOOD") ||
			attempt >= bridge.MaxAuthAttempts {
			return "", "", fmt.Errorf("send code: %w", sendErr)
		}
		c.log.Warn("phone number rejected", zap.Error(sendErr))
		c.opts.PhoneNumberError.Notify(ctx, sendErr)
		phone, ok, err = fields.Retry(ctx, bridge.FieldPhoneNumber)
	}
}

func (c *Client) signIn(ctx context.Context, phone, hash string) error {
	fields := c.opts.Fields
	code, ok, err := fields.Resolve(ctx, bridge.FieldPhoneCode)
	for attempt := 1; ; attempt++ {
		if err != nil {
			return err
		}
		if !ok || code == "" {
			return bridge.ErrCodeRequired
		}
		signErr := c.api.SignIn(phone, hash, code)
		switch {
		case signErr == nil:
			return nil
		case tgerr.Is(signErr, "SESSION_PASSWORD_NEEDED"):
			return c.password(ctx)
		case errors.Is(signErr, errSignUpRequired):
			return bridge.ErrSignUpUnsupported
		case tgerr.Is(signErr, "PHONE_CODE_INVALID", "PHONE_CODE_EMPTY") && attempt < bridge.MaxAuthAttempts:
			c.log.Warn("phone code rejected", zap.Int("attempt", attempt), zap.Error(signErr))
			c.opts.PhoneCodeError.Notify(ctx, signErr)
			code, ok, err = fields.Retry(ctx, bridge.FieldPhoneCode)
		default:
			return fmt.Errorf("sign in: %w", signErr)
		}
	}
}

func (c *Client) password(ctx context.Context) error {
	fields := c.opts.Fields
	pwd, ok, err := fields.Resolve(ctx, bridge.FieldPassword)
	for attempt := 1; ; attempt++ {
		if err != nil {
			return err
		}
		if !ok || pwd == "" {
			return bridge.ErrPasswordRequired
		}
		pwdErr := c.api.CheckPassword(pwd)
		switch {
		case pwdErr == nil:
			return nil
		case tgerr.Is(pwdErr, "PASSWORD_HASH_INVALID") && attempt < bridge.MaxAuthAttempts:
			c.log.Warn("password rejected", zap.Int("attempt", attempt))
			c.opts.PasswordError.Notify(ctx, pwdErr)
			pwd, ok, err = fields.Retry(ctx, bridge.FieldPassword)
		default:
			return fmt.Errorf("check password: %w", pwdErr)
		}
	}
}
