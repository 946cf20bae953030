// Package throttle ограничивает частоту вызовов Telegram у бэкенда без
// собственных middleware (gogram) и повторяет вызов после FLOOD_WAIT.
//
// Частота задаётся токен-бакетом golang.org/x/time/rate (RPS + burst).
// Паузу перед повтором определяют WaitExtractor по ошибке; ошибки без
// распознанной паузы возвращаются сразу, потому что RPC Telegram в общем
// случае не идемпотентны.
package throttle

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/gotd/td/tgerr"
	"golang.org/x/time/rate"
)

// burstMultiplier — burst по умолчанию относительно rate.
const burstMultiplier = 2

// Значения по умолчанию для повторов.
const (
	DefaultMaxRetries = 3
	DefaultMaxWait    = time.Minute
)

// floodWaitJitterMax — верхняя граница добавки к FLOOD_WAIT.
const floodWaitJitterMax = 3 * time.Second

// WaitExtractor возвращает паузу перед повтором, если распознал ошибку.
type WaitExtractor func(err error) (time.Duration, bool)

// Option настраивает Throttler.
type Option func(*Throttler)

// WithBurst переопределяет ёмкость бакета. burst <= 0 — 2*rate.
func WithBurst(burst int) Option {
	return func(t *Throttler) { t.burst = burst }
}

// WithMaxRetries ограничивает число повторов после пауз. 0 отключает повторы.
func WithMaxRetries(n int) Option {
	return func(t *Throttler) { t.maxRetries = n }
}

// WithMaxWait — пауза длиннее этой не выжидается: ошибка уходит вызывающему.
func WithMaxWait(d time.Duration) Option {
	return func(t *Throttler) { t.maxWait = d }
}

// WithWaitExtractors добавляет экстракторы; первый совпавший определяет паузу.
func WithWaitExtractors(extractors ...WaitExtractor) Option {
	return func(t *Throttler) { t.extractors = append(t.extractors, extractors...) }
}

// Throttler потокобезопасен: Do можно звать из нескольких горутин.
type Throttler struct {
	limiter    *rate.Limiter
	burst      int
	maxRetries int
	maxWait    time.Duration
	extractors []WaitExtractor
}

// New создаёт троттлер на rps вызовов в секунду (минимум 1).
func New(rps int, opts ...Option) *Throttler {
	if rps <= 0 {
		rps = 1
	}
	t := &Throttler{
		burst:      rps * burstMultiplier,
		maxRetries: DefaultMaxRetries,
		maxWait:    DefaultMaxWait,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.burst <= 0 {
		t.burst = rps * burstMultiplier
	}
	t.limiter = rate.NewLimiter(rate.Limit(rps), t.burst)
	return t
}

// Do ждёт токен и вызывает fn. Если экстрактор распознал паузу не длиннее
// maxWait, Do выжидает её и повторяет, пока не кончатся повторы.
func (t *Throttler) Do(ctx context.Context, fn func() error) error {
	for attempt := 0; ; attempt++ {
		if err := t.limiter.Wait(ctx); err != nil {
			return err
		}
		err := fn()
		if err == nil {
			return nil
		}
		wait, ok := t.extractWait(err)
		if !ok || wait > t.maxWait {
			return err
		}
		if attempt >= t.maxRetries {
			return fmt.Errorf("throttle: max retries reached (%d): %w", t.maxRetries, err)
		}
		if wErr := sleep(ctx, wait); wErr != nil {
			return wErr
		}
	}
}

func (t *Throttler) extractWait(err error) (time.Duration, bool) {
	for _, extract := range t.extractors {
		if extract == nil {
			continue
		}
		if wait, ok := extract(err); ok {
			return wait, true
		}
	}
	return 0, false
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// FloodWait распознаёт FLOOD_WAIT и FLOOD_PREMIUM_WAIT и добавляет к паузе
// случайную секундную добавку, чтобы разнести повторы разных аккаунтов.
func FloodWait(err error) (time.Duration, bool) {
	wait, ok := tgerr.AsFloodWait(err)
	if !ok {
		return 0, false
	}
	return wait + floodWaitJitter(), true
}

func floodWaitJitter() time.Duration {
	sec := int(floodWaitJitterMax / time.Second)
	if sec <= 0 {
		return 0
	}
	return time.Duration(rand.IntN(sec)) * time.Second // #nosec G404
}
