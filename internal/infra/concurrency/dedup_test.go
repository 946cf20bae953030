package concurrency

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeduplicatorSeen(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0)
	d := NewDeduplicator(time.Minute)
	d.now = func() time.Time { return now }

	assert.False(t, d.Seen(1, -100, 5))
	assert.True(t, d.Seen(1, -100, 5))
	assert.False(t, d.Seen(2, -100, 5), "other account is a different key")
	assert.False(t, d.Seen(1, -100, 6))

	now = now.Add(2 * time.Minute)
	assert.False(t, d.Seen(1, -100, 5), "window expired")
}

func TestDeduplicatorCleanup(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0)
	d := NewDeduplicator(time.Second)
	d.now = func() time.Time { return now }

	d.Seen(1, 1, 1)
	d.Seen(1, 1, 2)
	assert.Equal(t, 2, d.Len())

	now = now.Add(time.Second)
	d.Cleanup()
	assert.Equal(t, 0, d.Len())
}

func TestDeduplicatorStartStopIdempotent(t *testing.T) {
	t.Parallel()

	d := NewDeduplicator(time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d.Start(ctx)
	d.Start(ctx)
	d.Stop()
	d.Stop()
}

func TestStartTimeoutTimerCancels(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	StartTimeoutTimer(ctx, 10*time.Millisecond, cancel)

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not cancel context")
	}
}
