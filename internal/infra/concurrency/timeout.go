package concurrency

import (
	"context"
	"time"

	"go.uber.org/zap"

	"telegram-bridge/internal/infra/logger"
)

// StartTimeoutTimer вызывает cancelFunc через timeout, если ctx не завершится раньше.
// Используется командой run для ограниченного по времени запуска.
// Нулевой timeout или nil cancelFunc — no-op.
func StartTimeoutTimer(ctx context.Context, timeout time.Duration, cancelFunc context.CancelFunc) {
	if timeout <= 0 || cancelFunc == nil {
		return
	}

	go func() {
		logger.Info("Auto-shutdown timer started", zap.Duration("timeout", timeout))

		timer := time.NewTimer(timeout)
		defer timer.Stop()

		select {
		case <-timer.C:
			logger.Info("Auto-shutdown timeout reached, initiating graceful shutdown")
			cancelFunc()
		case <-ctx.Done():
			logger.Debug("Auto-shutdown timer cancelled due to context cancellation")
		}
	}()
}
