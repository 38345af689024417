package concurrency

import (
	"context"
	"hash/fnv"
)

// SimpleMutex is a channel used for locking.
type SimpleMutex chan struct{}

// NewSimpleMutex creates and returns a new SimpleMutex object.
func NewSimpleMutex() SimpleMutex {
	return make(SimpleMutex, 1)
}

// Lock acquires a lock on the mutex.
func (s SimpleMutex) Lock() {
	s <- struct{}{}
}

// LockContext acquires a lock on the mutex or gives up when ctx is done.
func (s SimpleMutex) LockContext(ctx context.Context) error {
	select {
	case s <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryLock attempts to acquire a lock on the mutex.
// Returns true if the lock has been acquired, false otherwise.
func (s SimpleMutex) TryLock() bool {
	select {
	case s <- struct{}{}:
		return true
	default:
		return false
	}
}

// Unlock releases the mutex.
func (s SimpleMutex) Unlock() {
	<-s
}

// StripedMutex is a fixed set of SimpleMutexes indexed by a string key.
// Operations on the same key are mutually exclusive. Distinct keys may share a stripe.
type StripedMutex []SimpleMutex

// NewStripedMutex allocates a StripedMutex with n stripes.
func NewStripedMutex(n int) StripedMutex {
	if n <= 0 {
		n = 1
	}
	sm := make(StripedMutex, n)
	for i := range sm {
		sm[i] = NewSimpleMutex()
	}
	return sm
}

// For returns the mutex guarding key.
func (sm StripedMutex) For(key string) SimpleMutex {
	h := fnv.New32a()
	h.Write([]byte(key))
	return sm[h.Sum32()%uint32(len(sm))]
}
