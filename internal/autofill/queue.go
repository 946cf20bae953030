package autofill

import (
	"context"
	"sync"
)

// Queue — очередь передачи значений между слоем команд и клиентом.
// Put/Get/Done/Join повторяют семантику очереди задач: Join ждёт, пока
// каждое положенное значение будет забрано и подтверждено через Done.
type Queue struct {
	ch chan string

	mu      sync.Mutex
	pending int
	idle    chan struct{}
}

// NewQueue создаёт очередь ёмкостью size (минимум 1).
func NewQueue(size int) *Queue {
	if size < 1 {
		size = 1
	}
	idle := make(chan struct{})
	close(idle)
	return &Queue{ch: make(chan string, size), idle: idle}
}

// Put кладёт значение, блокируясь при заполненной очереди.
func (q *Queue) Put(ctx context.Context, v string) error {
	q.mu.Lock()
	if q.pending == 0 {
		q.idle = make(chan struct{})
	}
	q.pending++
	q.mu.Unlock()

	select {
	case q.ch <- v:
		return nil
	case <-ctx.Done():
		q.Done()
		return ctx.Err()
	}
}

// Get забирает одно значение.
func (q *Queue) Get(ctx context.Context) (string, error) {
	select {
	case v := <-q.ch:
		return v, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Done подтверждает обработку одного значения. Лишние вызовы игнорируются.
func (q *Queue) Done() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pending == 0 {
		return
	}
	q.pending--
	if q.pending == 0 {
		close(q.idle)
	}
}

// Join ждёт подтверждения всех положенных значений.
func (q *Queue) Join(ctx context.Context) error {
	q.mu.Lock()
	idle := q.idle
	q.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Len — число значений, лежащих в очереди.
func (q *Queue) Len() int { return len(q.ch) }
