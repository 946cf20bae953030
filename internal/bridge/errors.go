package bridge

import "errors"

var (
	// ErrInvalidAnchor — id сообщения-якоря не положителен.
	ErrInvalidAnchor = errors.New("message id must be positive")
	// ErrNoMediaGroup — якорь не входит в альбом.
	ErrNoMediaGroup = errors.New("message does not belong to a media group")
	// ErrForeignFileRef — ссылка на файл выдана другим бэкендом.
	ErrForeignFileRef = errors.New("file ref belongs to another backend")
	// ErrFileRefExpired — ссылка больше не может быть разрешена.
	ErrFileRefExpired = errors.New("file ref is no longer resolvable")
	// ErrNoMedia — в сообщении нет вложения.
	ErrNoMedia = errors.New("message has no media")
	// ErrNotStarted — клиент не запущен.
	ErrNotStarted = errors.New("client is not started")
	// ErrForeignMessage — сообщение создано другим бэкендом.
	ErrForeignMessage = errors.New("message belongs to another backend")

	// ErrPhoneRequired — телефон не задан, а сессия не авторизована.
	ErrPhoneRequired = errors.New("phone number is required")
	// ErrCodeRequired — код подтверждения не получен.
	ErrCodeRequired = errors.New("phone code is required")
	// ErrPasswordRequired — включена 2FA, а пароль не задан.
	ErrPasswordRequired = errors.New("two-step verification is enabled, password is required")
	// ErrSignUpUnsupported — номер не зарегистрирован в Telegram.
	ErrSignUpUnsupported = errors.New("phone number is not registered, sign up is not supported")
)
