package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLocker(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	release, err := l.Acquire(ctx, "acme", time.Minute)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "acme", time.Minute)
	assert.ErrorIs(t, err, ErrLocked)

	other, err := l.Acquire(ctx, "globex", time.Minute)
	require.NoError(t, err)
	other()

	release()
	release2, err := l.Acquire(ctx, "acme", time.Minute)
	require.NoError(t, err)
	release2()
}

func TestLocalLocker_Expires(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewLocalLocker()
	l.clock = func() time.Time { return now }

	stale, err := l.Acquire(context.Background(), "acme", time.Minute)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = l.Acquire(context.Background(), "acme", time.Minute)
	require.NoError(t, err)

	// Releasing the expired holder must not drop the new one.
	stale()
	_, err = l.Acquire(context.Background(), "acme", time.Minute)
	assert.ErrorIs(t, err, ErrLocked)
}

func TestNewRedisLockerFromURL(t *testing.T) {
	_, err := NewRedisLockerFromURL("not a url")
	assert.Error(t, err)

	l, err := NewRedisLockerFromURL("redis://localhost:6379/0")
	require.NoError(t, err)
	assert.NoError(t, l.Close())
}
