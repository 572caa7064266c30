package cache

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// maxReaders bounds concurrent Get calls per store.
const maxReaders = 64

// rwLock is a context aware RWMutex built on a weighted semaphore. Readers
// take weight 1, the single writer takes the full weight.
type rwLock struct {
	sem *semaphore.Weighted
}

func newRWLock() *rwLock {
	return &rwLock{
		sem: semaphore.NewWeighted(maxReaders),
	}
}

func (l *rwLock) RLock(ctx context.Context) error {
	return l.sem.Acquire(ctx, 1)
}

func (l *rwLock) RUnlock() {
	l.sem.Release(1)
}

func (l *rwLock) Lock(ctx context.Context) error {
	return l.sem.Acquire(ctx, maxReaders)
}

func (l *rwLock) Unlock() {
	l.sem.Release(maxReaders)
}
