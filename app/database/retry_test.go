package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubRetrySleep(t *testing.T) *[]time.Duration {
	t.Helper()
	var delays []time.Duration
	orig := retrySleep
	retrySleep = func(d time.Duration) <-chan time.Time {
		delays = append(delays, d)
		ch := make(chan time.Time, 1)
		ch <- time.Time{}
		return ch
	}
	t.Cleanup(func() { retrySleep = orig })
	return &delays
}

func TestWithRetryBackoffSchedule(t *testing.T) {
	delays := stubRetrySleep(t)

	transient := errors.New("database is locked (5) (SQLITE_BUSY)")
	calls := 0
	_, err := WithRetry(context.Background(), func() (int, error) {
		calls++
		return 0, transient
	})

	require.ErrorIs(t, err, transient)
	assert.Equal(t, 6, calls, "five retries then the sixth failure propagates")
	assert.Equal(t, []time.Duration{
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		1600 * time.Millisecond,
		3200 * time.Millisecond,
	}, *delays)
}

func TestWithRetryNonTransientPropagatesImmediately(t *testing.T) {
	delays := stubRetrySleep(t)

	boom := errors.New("UNIQUE constraint failed: feeds.url")
	calls := 0
	_, err := WithRetry(context.Background(), func() (string, error) {
		calls++
		return "", boom
	})

	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *delays)
}

func TestWithRetrySucceedsAfterTransientFailures(t *testing.T) {
	delays := stubRetrySleep(t)

	calls := 0
	result, err := WithRetry(context.Background(), func() (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("disk I/O error")
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Len(t, *delays, 2)
}

func TestWithRetryRespectsContextCancellation(t *testing.T) {
	orig := retrySleep
	retrySleep = func(d time.Duration) <-chan time.Time {
		return make(chan time.Time) // never fires
	}
	t.Cleanup(func() { retrySleep = orig })

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := WithRetry(ctx, func() (int, error) {
		return 0, errors.New("database is locked")
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(errors.New("database is locked")))
	assert.True(t, IsTransient(errors.New("disk I/O error")))
	assert.False(t, IsTransient(errors.New("no such table: feeds")))
	assert.False(t, IsTransient(nil))
}
