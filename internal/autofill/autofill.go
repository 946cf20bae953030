package autofill

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// DefaultTimeout — граница ожидания одного разрешения по умолчанию.
const DefaultTimeout = 60 * time.Second

// ErrTimeout — разрешение не уложилось в таймаут.
var ErrTimeout = errors.New("autofill: resolution timed out")

// Autofill хранит именованные отложенные значения и кэш производителей.
//
// Первый встреченный производитель поля запоминается. Если поле уже
// разрешилось в литерал через производителя, повторный Resolve возвращает
// «нет значения», а Retry перезапускает ту же цепочку.
type Autofill struct {
	timeout time.Duration

	mu     sync.Mutex
	fields map[string]Value
	cache  map[string]Value
}

// New создаёт набор полей с таймаутом разрешения; timeout <= 0 — DefaultTimeout.
func New(timeout time.Duration) *Autofill {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Autofill{
		timeout: timeout,
		fields:  make(map[string]Value),
		cache:   make(map[string]Value),
	}
}

// Timeout возвращает таймаут одного разрешения.
func (a *Autofill) Timeout() time.Duration { return a.timeout }

// Set задаёт значение поля.
func (a *Autofill) Set(name string, v Value) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fields[name] = v
}

// Get возвращает текущее значение поля без разрешения.
func (a *Autofill) Get(name string) Value {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.fields[name]
}

// Cached возвращает запомненного производителя поля.
func (a *Autofill) Cached(name string) (Value, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	v, ok := a.cache[name]
	return v, ok
}

// Resolve разрешает поле name. ok=false означает отсутствие значения (это не ошибка).
// Результат записывается обратно в поле литералом, кроме полей-очередей:
// такое поле остаётся очередью, и каждый вызов забирает из неё новый элемент.
func (a *Autofill) Resolve(ctx context.Context, name string) (value string, ok bool, err error) {
	a.mu.Lock()
	v := a.fields[name]
	cached, hasCached := a.cache[name]
	a.mu.Unlock()

	if v.IsAbsent() {
		return "", false, nil
	}
	if hasCached {
		if v.Kind() == KindLiteral {
			return "", false, nil
		}
		v = cached
	}
	return a.run(ctx, name, v)
}

// Retry заново запускает запомненную цепочку производителей поля. Без
// запомненного производителя возвращает ok=false: повтор литерала бессмыслен.
func (a *Autofill) Retry(ctx context.Context, name string) (string, bool, error) {
	a.mu.Lock()
	cached, hasCached := a.cache[name]
	a.mu.Unlock()
	if !hasCached {
		return "", false, nil
	}
	return a.run(ctx, name, cached)
}

func (a *Autofill) run(ctx context.Context, name string, v Value) (string, bool, error) {
	runCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	res, err := a.drive(runCtx, name, v)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return "", false, fmt.Errorf("%w: field %q after %s", ErrTimeout, name, a.timeout)
		}
		return "", false, fmt.Errorf("resolve %q: %w", name, err)
	}

	if v.Kind() != KindQueue {
		a.mu.Lock()
		a.fields[name] = res
		a.mu.Unlock()
	}

	if res.IsAbsent() {
		return "", false, nil
	}
	return res.lit, true, nil
}

// drive раскручивает производителей до непроизводителя и забирает один элемент очереди.
func (a *Autofill) drive(ctx context.Context, name string, v Value) (Value, error) {
	for v.IsProducer() {
		a.remember(name, v)
		next, err := invoke(ctx, v)
		if err != nil {
			return Value{}, err
		}
		v = next
	}

	if v.Kind() == KindQueue {
		a.remember(name, v)
		item, err := v.queue.Get(ctx)
		if err != nil {
			return Value{}, err
		}
		v.queue.Done()
		return Literal(item), nil
	}
	return v, nil
}

func (a *Autofill) remember(name string, v Value) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.cache[name]; !ok {
		a.cache[name] = v
	}
}

type syncResult struct {
	v   Value
	err error
}

func invoke(ctx context.Context, v Value) (Value, error) {
	switch v.Kind() {
	case KindAsync:
		return v.async(ctx)
	case KindPending:
		select {
		case res, ok := <-v.pending:
			if !ok {
				return Absent(), nil
			}
			return res, nil
		case <-ctx.Done():
			return Value{}, ctx.Err()
		}
	case KindSync:
		// Синхронный производитель нельзя прервать: при таймауте горутина
		// доработает сама, результат будет выброшен.
		done := make(chan syncResult, 1)
		go func() {
			res, err := v.sync()
			done <- syncResult{v: res, err: err}
		}()
		select {
		case r := <-done:
			return r.v, r.err
		case <-ctx.Done():
			return Value{}, ctx.Err()
		}
	default:
		return v, nil
	}
}
