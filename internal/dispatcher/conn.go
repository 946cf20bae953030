package dispatcher

import (
	"context"
	"errors"
	"io"
	"net"

	"github.com/gotd/td/pool"
	"github.com/gotd/td/rpc"
)

// isConnError сообщает, что ошибка старта пришла с транспортного уровня
// (обрыв, отказ прокси, таймаут), а не от Telegram.
func isConnError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, pool.ErrConnDead) || errors.Is(err, rpc.ErrEngineClosed) {
		return true
	}
	var retryErr *rpc.RetryLimitReachedErr
	if errors.As(err, &retryErr) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
