package eventlog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gofrs/flock"
)

const (
	// lockPollInterval is how often a contender retries the lock.
	lockPollInterval = 25 * time.Millisecond

	// lockTimeout bounds how long a writer waits for a thread's lock.
	lockTimeout = 5 * time.Second
)

// errLockHeld tells the retry loop the lock is owned elsewhere.
var errLockHeld = errors.New("lock is held")

// fileLock serializes appends and rehydrations for one thread's log, across
// goroutines and across processes.
type fileLock struct {
	flock *flock.Flock
}

func newFileLock(path string) *fileLock {
	return &fileLock{flock: flock.New(path)}
}

// Acquire polls for the exclusive lock until it is granted or the deadline
// passes.
func (l *fileLock) Acquire(ctx context.Context) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()
	policy := backoff.WithContext(backoff.NewConstantBackOff(lockPollInterval), timeoutCtx)
	operation := func() error {
		locked, err := l.flock.TryLock()
		if err != nil {
			return backoff.Permanent(err)
		}
		if !locked {
			return errLockHeld
		}
		return nil
	}
	if err := backoff.Retry(operation, policy); err != nil {
		return fmt.Errorf("failed to acquire lock %s: %w", l.flock.Path(), err)
	}
	return nil
}

// Release releases the lock. Safe to call multiple times.
func (l *fileLock) Release() error {
	return l.flock.Unlock()
}
