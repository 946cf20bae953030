// Package autofill разрешает отложенные значения конфигурации клиента: номер
// телефона, код подтверждения, пароль 2FA. Значение может быть литералом,
// синхронным или асинхронным производителем, ожидаемым результатом или очередью.
// Разрешение всегда заканчивается литералом, отсутствием значения или ошибкой.
package autofill

import (
	"context"
	"strconv"
)

// Kind — вариант Value.
type Kind uint8

const (
	KindAbsent Kind = iota
	KindLiteral
	KindSync
	KindAsync
	KindPending
	KindQueue
)

func (k Kind) String() string {
	switch k {
	case KindAbsent:
		return "absent"
	case KindLiteral:
		return "literal"
	case KindSync:
		return "sync"
	case KindAsync:
		return "async"
	case KindPending:
		return "pending"
	case KindQueue:
		return "queue"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// SyncFunc — блокирующий производитель без контекста. Запускается в отдельной горутине.
type SyncFunc func() (Value, error)

// AsyncFunc — производитель, уважающий отмену контекста.
type AsyncFunc func(ctx context.Context) (Value, error)

// Value — размеченное объединение. Нулевое значение — Absent.
type Value struct {
	kind    Kind
	lit     string
	sync    SyncFunc
	async   AsyncFunc
	pending <-chan Value
	queue   *Queue
}

// Absent — явное «значения нет».
func Absent() Value { return Value{} }

// Literal оборачивает строку.
func Literal(s string) Value { return Value{kind: KindLiteral, lit: s} }

// Int оборачивает число как литерал.
func Int(n int) Value { return Literal(strconv.Itoa(n)) }

// Sync оборачивает блокирующий производитель. nil даёт Absent.
func Sync(f SyncFunc) Value {
	if f == nil {
		return Absent()
	}
	return Value{kind: KindSync, sync: f}
}

// Async оборачивает производитель с контекстом. nil даёт Absent.
func Async(f AsyncFunc) Value {
	if f == nil {
		return Absent()
	}
	return Value{kind: KindAsync, async: f}
}

// Pending оборачивает уже запущенное вычисление. Закрытый канал без значения даёт Absent.
func Pending(ch <-chan Value) Value {
	if ch == nil {
		return Absent()
	}
	return Value{kind: KindPending, pending: ch}
}

// FromQueue оборачивает очередь передачи значений.
func FromQueue(q *Queue) Value {
	if q == nil {
		return Absent()
	}
	return Value{kind: KindQueue, queue: q}
}

// Kind возвращает вариант значения.
func (v Value) Kind() Kind { return v.kind }

// IsAbsent сообщает, что значения нет.
func (v Value) IsAbsent() bool { return v.kind == KindAbsent }

// IsProducer — истина для Sync, Async и Pending.
func (v Value) IsProducer() bool {
	return v.kind == KindSync || v.kind == KindAsync || v.kind == KindPending
}

// String отдаёт литерал; для прочих вариантов пустую строку.
func (v Value) String() string {
	if v.kind == KindLiteral {
		return v.lit
	}
	return ""
}
