package database

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"modernc.org/sqlite"
)

const (
	retryMaxAttempts = 5
	retryBaseDelay   = 200 * time.Millisecond
)

// SQLite result codes that show up when the database file sits on a
// synced or network-mounted volume: lock contention plus the extended
// IOERR read/write/fsync/lock/close classes.
var transientResultCodes = map[int]struct{}{
	5:    {}, // SQLITE_BUSY
	6:    {}, // SQLITE_LOCKED
	10:   {}, // SQLITE_IOERR
	266:  {}, // SQLITE_IOERR_READ
	522:  {}, // SQLITE_IOERR_SHORT_READ
	778:  {}, // SQLITE_IOERR_WRITE
	1034: {}, // SQLITE_IOERR_FSYNC
	3850: {}, // SQLITE_IOERR_LOCK
	4106: {}, // SQLITE_IOERR_CLOSE
}

// retrySleep is swapped out by tests to observe the backoff schedule.
var retrySleep = func(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// IsTransient reports whether err is a storage error expected to clear
// on its own shortly, warranting a retry rather than propagation.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var se *sqlite.Error
	if errors.As(err, &se) {
		_, ok := transientResultCodes[se.Code()]
		return ok
	}

	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "disk I/O error")
}

// WithRetry executes op, retrying transient storage failures with
// exponential backoff (200, 400, 800, 1600, 3200ms). Non-transient
// errors and failures past the retry budget propagate unchanged. The
// backoff sleep is preempted by context cancellation.
func WithRetry[T any](ctx context.Context, op func() (T, error)) (T, error) {
	return withRetry(ctx, op)
}

// withRetryErr is WithRetry for operations without a result.
func withRetryErr(ctx context.Context, op func() error) error {
	_, err := withRetry(ctx, func() (struct{}, error) {
		return struct{}{}, op()
	})
	return err
}

func withRetry[T any](ctx context.Context, op func() (T, error)) (T, error) {
	var zero T
	for attempt := 1; ; attempt++ {
		result, err := op()
		if err == nil {
			return result, nil
		}
		if !IsTransient(err) || attempt > retryMaxAttempts {
			return zero, err
		}

		delay := retryBaseDelay << (attempt - 1)
		slog.Warn("Transient storage error, retrying",
			"attempt", attempt,
			"delay", delay,
			"error", err)

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-retrySleep(delay):
		}
	}
}
