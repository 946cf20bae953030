// Package concurrency — вспомогательная инфраструктура конкурентного исполнения.
// Deduplicator подавляет повторную обработку одного и того же входящего сообщения
// в пределах окна: gotd и gogram при переподключении могут повторно доставить апдейт,
// а диспетчер должен переслать его дальше один раз.
package concurrency

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"telegram-bridge/internal/infra/logger"
)

// Deduplicator хранит ключи `<account>:<chat>:<msg>` с временем истечения.
// Структура потокобезопасна.
type Deduplicator struct {
	mu     sync.Mutex
	seen   map[string]time.Time // key -> expireAt
	window time.Duration
	now    func() time.Time

	runMu  sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDeduplicator создаёт кэш с окном window. Нулевое окно фактически
// отключает подавление: запись истекает в момент создания.
func NewDeduplicator(window time.Duration) *Deduplicator {
	return &Deduplicator{
		seen:   make(map[string]time.Time),
		window: window,
		now:    time.Now,
	}
}

// Start поднимает фоновую очистку устаревших ключей. Повторные вызовы игнорируются.
func (d *Deduplicator) Start(ctx context.Context) {
	if ctx == nil {
		return
	}

	d.runMu.Lock()
	defer d.runMu.Unlock()

	if d.cancel != nil {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.wg.Go(func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				d.Cleanup()
			}
		}
	})
}

// Stop завершает фоновую очистку и дожидается её окончания.
func (d *Deduplicator) Stop() {
	d.runMu.Lock()
	cancel := d.cancel
	d.cancel = nil
	d.runMu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	d.wg.Wait()
}

// Seen сообщает, встречалось ли сообщение в пределах окна. Если нет —
// регистрирует его и возвращает false.
func (d *Deduplicator) Seen(accountID, chatID int64, msgID int) bool {
	key := fmt.Sprintf("%d:%d:%d", accountID, chatID, msgID)

	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if exp, ok := d.seen[key]; ok && now.Before(exp) {
		logger.Debug("duplicate update suppressed", zap.String("key", key))
		return true
	}
	d.seen[key] = now.Add(d.window)
	return false
}

// Cleanup удаляет записи с истёкшим сроком.
func (d *Deduplicator) Cleanup() {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	for k, exp := range d.seen {
		if !now.Before(exp) {
			delete(d.seen, k)
		}
	}
}

// Len — число живых записей; нужен для диагностики и тестов.
func (d *Deduplicator) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
